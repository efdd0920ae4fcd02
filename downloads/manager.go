// Package downloads runs and tracks media downloads: single-stream HTTP
// transfers written to a save directory, with persistent per-video records
// and an event stream for progress and lifecycle transitions.
package downloads

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/freetube/tubecore"
	"github.com/freetube/tubecore/internal/pubsub"
	"github.com/freetube/tubecore/internal/sync_"
)

// Target is a resolved downloadable stream.
type Target struct {
	URL       string
	Title     string
	SizeBytes int64
}

// Source resolves the stream a download should fetch. Implementations are
// expected to return *tubecore.Error values for classified failures.
type Source interface {
	ResolveTarget(ctx context.Context, ref tubecore.ResourceRef, quality tubecore.QualityPref) (Target, error)
}

// SourceFunc adapts a plain function to the Source interface.
type SourceFunc func(ctx context.Context, ref tubecore.ResourceRef, quality tubecore.QualityPref) (Target, error)

func (f SourceFunc) ResolveTarget(ctx context.Context, ref tubecore.ResourceRef, quality tubecore.QualityPref) (Target, error) {
	return f(ctx, ref, quality)
}

type Config struct {
	SavePath   string
	Store      Store
	Source     Source
	HTTPClient *http.Client
	// ChunkSize is the transfer buffer size; cancellation is checked before
	// every chunk is written.
	ChunkSize int
}

var DefaultConfig = Config{
	SavePath:  ".",
	Store:     NilStore{},
	ChunkSize: 8192,
}

type jobsByID = map[string]*job

// Manager owns all live download jobs. At most one job exists per video ID.
type Manager struct {
	config    Config
	ctx       context.Context
	ctxCancel context.CancelFunc
	log       *zap.SugaredLogger

	jobs   *sync_.RWMutexed[jobsByID]
	events *pubsub.Publisher[Event]
	wg     sync.WaitGroup
}

func New(config Config, ctx context.Context) (*Manager, error) {
	if config.Source == nil {
		return nil, fmt.Errorf("downloads: config has no source")
	}
	if config.Store == nil {
		config.Store = DefaultConfig.Store
	}
	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}
	if config.SavePath == "" {
		config.SavePath = DefaultConfig.SavePath
	}
	if config.ChunkSize <= 0 {
		config.ChunkSize = DefaultConfig.ChunkSize
	}
	ctx, cancel := context.WithCancel(ctx)
	m := &Manager{
		config:    config,
		ctx:       ctx,
		ctxCancel: cancel,
		log:       zap.S().Named("downloads"),

		jobs:   sync_.NewRWMutexed(make(jobsByID)),
		events: pubsub.NewPublisher[Event](),
	}
	return m, nil
}

func (m *Manager) Subscribe() (pubsub.ReceiverCloser[Event], error) {
	return m.events.Subscribe()
}

// Start begins downloading the referenced video at the preferred quality,
// returning the download ID (the video ID). Starting an already-running
// download is a no-op returning the same ID. Starting a paused or failed
// download reuses its record and restarts the transfer from the beginning
// of the stream.
func (m *Manager) Start(ref tubecore.ResourceRef, quality tubecore.QualityPref) (string, error) {
	if ref.Kind != tubecore.KindVideo {
		return "", tubecore.NewError(tubecore.KindMalformed, "downloads.start",
			fmt.Errorf("cannot download %s %q", ref.Kind, ref.ID))
	}
	id := ref.ID
	for {
		var existing *job
		inserted := false
		err := m.jobs.Locked(func(jobs jobsByID) error {
			if j := jobs[id]; j != nil && !j.done.IsSet() {
				existing = j
				return nil
			}
			rec, err := m.startRecord(id, quality)
			if err != nil {
				return err
			}
			jctx, jcancel := context.WithCancel(m.ctx)
			j := &job{
				manager:   m,
				id:        id,
				ref:       ref,
				quality:   quality,
				ctxCancel: jcancel,
				rec:       rec,
			}
			jobs[id] = j
			m.wg.Add(1)
			go j.run(jctx)
			inserted = true
			return nil
		})
		if err != nil {
			return "", err
		}
		if inserted {
			m.events.Send(StateChanged{jobEvent{id}, StatePending, nil})
			return id, nil
		}
		if !existing.stopping() && existing.snapshot().State.IsActive() {
			return id, nil
		}
		// The previous job is winding down; let it finish before
		// starting a replacement.
		<-existing.done.Wait()
	}
}

// startRecord builds and persists the initial record for a new job, reusing
// whatever the store already has for this ID.
func (m *Manager) startRecord(id string, quality tubecore.QualityPref) (Record, error) {
	rec := Record{
		ID:      id,
		Quality: string(quality),
		State:   StatePending,
		AddedAt: time.Now(),
	}
	if prev, err := m.config.Store.GetDownload(id); err == nil && prev != nil {
		rec = *prev
		rec.State = StatePending
		rec.Error = ""
		if quality != "" {
			rec.Quality = string(quality)
		}
	}
	if err := m.config.Store.WriteDownload(&rec); err != nil {
		return Record{}, tubecore.NewError(tubecore.KindDiskFailure, "downloads.start", err)
	}
	return rec, nil
}

// Pause stops a running download, keeping its record so it can be started
// again later. Pausing an absent or already-paused download does nothing.
func (m *Manager) Pause(id string) {
	if j := m.getJob(id); j != nil {
		j.requestStop(stopPause)
	}
}

// Cancel stops the download if it is running, removes any partial file, and
// deletes the stored record. Cancelling an unknown download does nothing.
func (m *Manager) Cancel(id string) error {
	if j := m.getJob(id); j != nil {
		j.requestStop(stopCancel)
		return nil
	}
	rec, err := m.config.Store.GetDownload(id)
	if err != nil {
		return tubecore.NewError(tubecore.KindDiskFailure, "downloads.cancel", err)
	}
	if rec == nil {
		return nil
	}
	if rec.State != StateCompleted && rec.FilePath != "" {
		if rerr := os.Remove(rec.FilePath); rerr != nil && !os.IsNotExist(rerr) {
			m.log.Warnw("failed to remove partial file", "path", rec.FilePath, "error", rerr)
		}
	}
	if err := m.config.Store.DeleteDownload(id); err != nil {
		return tubecore.NewError(tubecore.KindDiskFailure, "downloads.cancel", err)
	}
	m.events.Send(StateChanged{jobEvent{id}, StateCancelled, nil})
	return nil
}

// Get returns the current record for a download, preferring the live job
// over the store.
func (m *Manager) Get(id string) (Record, bool) {
	if j := m.getJob(id); j != nil {
		return j.snapshot(), true
	}
	rec, err := m.config.Store.GetDownload(id)
	if err != nil || rec == nil {
		return Record{}, false
	}
	return *rec, true
}

// List returns all known download records ordered by when they were added,
// with live jobs contributing their in-memory state.
func (m *Manager) List() ([]Record, error) {
	records, err := m.config.Store.ListDownloads()
	if err != nil {
		return nil, tubecore.NewError(tubecore.KindDiskFailure, "downloads.list", err)
	}
	live := make(map[string]Record)
	_ = m.jobs.RLocked(func(jobs jobsByID) error {
		for id, j := range jobs {
			live[id] = j.snapshot()
		}
		return nil
	})
	for i, rec := range records {
		if lr, ok := live[rec.ID]; ok {
			records[i] = lr
			delete(live, rec.ID)
		}
	}
	for _, rec := range live {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, k int) bool {
		if !records[i].AddedAt.Equal(records[k].AddedAt) {
			return records[i].AddedAt.Before(records[k].AddedAt)
		}
		return records[i].ID < records[k].ID
	})
	return records, nil
}

// Close stops all running downloads as if paused and waits for them to
// finish winding down.
func (m *Manager) Close() {
	m.ctxCancel()
	m.wg.Wait()
	m.events.Close()
}

func (m *Manager) getJob(id string) (j *job) {
	_ = m.jobs.RLocked(func(jobs jobsByID) error {
		j = jobs[id]
		return nil
	})
	return j
}

func (m *Manager) removeJob(j *job) {
	_ = m.jobs.Locked(func(jobs jobsByID) error {
		if jobs[j.id] == j {
			delete(jobs, j.id)
		}
		return nil
	})
}
