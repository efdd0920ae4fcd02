package downloads

import (
	"time"

	"github.com/freetube/tubecore/generic"
)

// State is the lifecycle state of a download.
type State string

const (
	StateUndefined State = ""
	StatePending   State = "pending"
	StateRunning   State = "running"
	StatePaused    State = "paused"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

var activeStates = generic.NewSet(StatePending, StateRunning)

var terminalStates = generic.NewSet(StateCompleted, StateFailed, StateCancelled)

// IsActive returns true if the state is one where some goroutine should be
// driving the download forward.
func (s State) IsActive() bool {
	return activeStates.Contains(s)
}

// IsTerminal returns true if the state is final; a terminal download only
// changes state by being started again.
func (s State) IsTerminal() bool {
	return terminalStates.Contains(s)
}

// Record is the persistent state of a single download, keyed by video ID.
// Progress percent is deliberately not part of the record; it is ephemeral
// and only observable through events.
type Record struct {
	ID        string
	Title     string
	Quality   string
	FilePath  string
	SizeBytes int64
	State     State
	Error     string
	AddedAt   time.Time
}

type Store interface {
	GetDownload(id string) (*Record, error)
	ListDownloads() ([]Record, error)
	WriteDownload(*Record) error
	DeleteDownload(id string) error
}

// NilStore is a Store that stores nothing.
type NilStore struct{}

func (s NilStore) GetDownload(_ string) (*Record, error) {
	return nil, nil
}

func (s NilStore) ListDownloads() ([]Record, error) {
	return nil, nil
}

func (s NilStore) WriteDownload(_ *Record) error {
	return nil
}

func (s NilStore) DeleteDownload(_ string) error {
	return nil
}
