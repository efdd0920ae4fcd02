package downloads

type Event interface {
	// The ID of the download this event relates to.
	JobID() string
}

type jobEvent struct {
	id string
}

func (e jobEvent) JobID() string {
	return e.id
}

// Progress is emitted while a download is transferring, at most once per
// whole-percent increase. No Progress events are emitted when the total
// size is unknown.
type Progress struct {
	jobEvent
	Percent int
}

// StateChanged is emitted on every lifecycle transition. Err is non-nil
// only when State is StateFailed.
type StateChanged struct {
	jobEvent
	State State
	Err   error
}
