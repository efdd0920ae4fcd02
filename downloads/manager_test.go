package downloads

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	assert_ "github.com/stretchr/testify/assert"
	require_ "github.com/stretchr/testify/require"

	"github.com/freetube/tubecore"
	"github.com/freetube/tubecore/internal/pubsub"
)

// memStore is an in-memory Store for tests.
type memStore struct {
	mu      sync.Mutex
	records map[string]Record
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]Record)}
}

func (s *memStore) GetDownload(id string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *memStore) ListDownloads() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		records = append(records, rec)
	}
	return records, nil
}

func (s *memStore) WriteDownload(rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = *rec
	return nil
}

func (s *memStore) DeleteDownload(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

func staticSource(url string, title string, size int64) Source {
	return SourceFunc(func(_ context.Context, _ tubecore.ResourceRef, _ tubecore.QualityPref) (Target, error) {
		return Target{URL: url, Title: title, SizeBytes: size}, nil
	})
}

func newTestManager(t *testing.T, config Config) *Manager {
	t.Helper()
	if config.SavePath == "" {
		config.SavePath = t.TempDir()
	}
	if config.Store == nil {
		config.Store = newMemStore()
	}
	m, err := New(config, context.Background())
	require_.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

// waitTerminal consumes events for id until a paused/terminal StateChanged
// arrives, returning everything seen along the way.
func waitTerminal(t *testing.T, events pubsub.ReceiverCloser[Event], id string) (collected []Event, last StateChanged) {
	t.Helper()
	timeout := time.After(10 * time.Second)
	for {
		select {
		case event, ok := <-events.Receive():
			if !ok {
				t.Fatal("event stream closed before a terminal state")
			}
			if event.JobID() != id {
				continue
			}
			collected = append(collected, event)
			if sc, isState := event.(StateChanged); isState {
				if sc.State.IsTerminal() || sc.State == StatePaused {
					return collected, sc
				}
			}
		case <-timeout:
			t.Fatal("timed out waiting for a terminal state")
		}
	}
}

func TestDownloadComplete(t *testing.T) {
	assert := assert_.New(t)

	content := bytes.Repeat([]byte("x"), 1000)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(content)
	}))
	defer server.Close()

	store := newMemStore()
	dir := t.TempDir()
	m := newTestManager(t, Config{
		SavePath:  dir,
		Store:     store,
		Source:    staticSource(server.URL, "some video", 0),
		ChunkSize: 100,
	})

	events, err := m.Subscribe()
	require_.NoError(t, err)
	defer events.Close()

	id, err := m.Start(tubecore.VideoRef("dQw4w9WgXcQ"), "720p")
	assert.NoError(err)
	assert.Equal("dQw4w9WgXcQ", id)

	collected, last := waitTerminal(t, events, id)
	assert.Equal(StateCompleted, last.State)
	assert.NoError(last.Err)

	// Progress is monotonic, whole-percent, and ends at 100.
	var percents []int
	for _, event := range collected {
		if p, ok := event.(Progress); ok {
			percents = append(percents, p.Percent)
		}
	}
	require_.NotEmpty(t, percents)
	for i := 1; i < len(percents); i++ {
		assert.Greater(percents[i], percents[i-1])
	}
	assert.Equal(100, percents[len(percents)-1])

	// The file contains exactly what the server sent.
	path := filepath.Join(dir, "some video.mp4")
	data, err := os.ReadFile(path)
	assert.NoError(err)
	assert.Equal(content, data)

	// The persisted record reflects the finished transfer.
	rec, err := store.GetDownload(id)
	assert.NoError(err)
	require_.NotNil(t, rec)
	assert.Equal(StateCompleted, rec.State)
	assert.Equal(int64(len(content)), rec.SizeBytes)
	assert.Equal(path, rec.FilePath)
}

func TestDownloadUnknownLengthSuppressesProgress(t *testing.T) {
	assert := assert_.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for i := 0; i < 10; i++ {
			_, _ = w.Write(bytes.Repeat([]byte("y"), 100))
			flusher.Flush()
		}
	}))
	defer server.Close()

	m := newTestManager(t, Config{
		Source:    staticSource(server.URL, "mystery", 0),
		ChunkSize: 64,
	})

	events, err := m.Subscribe()
	require_.NoError(t, err)
	defer events.Close()

	id, err := m.Start(tubecore.VideoRef("dQw4w9WgXcQ"), "")
	assert.NoError(err)

	collected, last := waitTerminal(t, events, id)
	assert.Equal(StateCompleted, last.State)
	for _, event := range collected {
		_, isProgress := event.(Progress)
		assert.False(isProgress, "no progress events without a known total size")
	}
}

func TestDownloadCancelRemovesFileAndRecord(t *testing.T) {
	assert := assert_.New(t)

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		_, _ = w.Write([]byte("partial"))
		flusher.Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	store := newMemStore()
	dir := t.TempDir()
	m := newTestManager(t, Config{
		SavePath: dir,
		Store:    store,
		Source:   staticSource(server.URL, "doomed", 0),
	})

	events, err := m.Subscribe()
	require_.NoError(t, err)
	defer events.Close()

	id, err := m.Start(tubecore.VideoRef("dQw4w9WgXcQ"), "")
	assert.NoError(err)

	// Wait until bytes are flowing before cancelling.
	waitState(t, events, id, StateRunning)
	assert.NoError(m.Cancel(id))

	_, last := waitTerminal(t, events, id)
	assert.Equal(StateCancelled, last.State)

	// No partial file, no record.
	_, err = os.Stat(filepath.Join(dir, "doomed.mp4"))
	assert.True(os.IsNotExist(err))
	rec, err := store.GetDownload(id)
	assert.NoError(err)
	assert.Nil(rec)
	_, found := m.Get(id)
	assert.False(found)
}

func TestDownloadPauseThenRestart(t *testing.T) {
	assert := assert_.New(t)

	var requests int32
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) == 1 {
			flusher := w.(http.Flusher)
			_, _ = w.Write([]byte("partial"))
			flusher.Flush()
			select {
			case <-release:
			case <-r.Context().Done():
			}
			return
		}
		_, _ = w.Write([]byte("complete content"))
	}))
	defer server.Close()
	defer close(release)

	store := newMemStore()
	dir := t.TempDir()
	m := newTestManager(t, Config{
		SavePath: dir,
		Store:    store,
		Source:   staticSource(server.URL, "resumable", 0),
	})

	events, err := m.Subscribe()
	require_.NoError(t, err)
	defer events.Close()

	ref := tubecore.VideoRef("dQw4w9WgXcQ")
	id, err := m.Start(ref, "480p")
	assert.NoError(err)

	waitState(t, events, id, StateRunning)
	m.Pause(id)

	_, last := waitTerminal(t, events, id)
	assert.Equal(StatePaused, last.State)

	// The record survives a pause; the partial file does not.
	rec, err := store.GetDownload(id)
	assert.NoError(err)
	require_.NotNil(t, rec)
	assert.Equal(StatePaused, rec.State)
	_, err = os.Stat(filepath.Join(dir, "resumable.mp4"))
	assert.True(os.IsNotExist(err))

	// Pausing again is a no-op.
	m.Pause(id)

	// Restart reuses the record and transfers from the beginning.
	id2, err := m.Start(ref, "")
	assert.NoError(err)
	assert.Equal(id, id2)

	_, last = waitTerminal(t, events, id)
	assert.Equal(StateCompleted, last.State)

	data, err := os.ReadFile(filepath.Join(dir, "resumable.mp4"))
	assert.NoError(err)
	assert.Equal([]byte("complete content"), data)

	records, err := m.List()
	assert.NoError(err)
	assert.Len(records, 1)
	// The paused quality preference sticks when the restart does not name one.
	assert.Equal("480p", records[0].Quality)
}

func TestDownloadDuplicateStartIsNoop(t *testing.T) {
	assert := assert_.New(t)

	release := make(chan struct{})
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		flusher := w.(http.Flusher)
		_, _ = w.Write([]byte("slow"))
		flusher.Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	m := newTestManager(t, Config{
		Source: staticSource(server.URL, "once", 0),
	})

	events, err := m.Subscribe()
	require_.NoError(t, err)
	defer events.Close()

	ref := tubecore.VideoRef("dQw4w9WgXcQ")
	id, err := m.Start(ref, "")
	assert.NoError(err)
	waitState(t, events, id, StateRunning)

	id2, err := m.Start(ref, "")
	assert.NoError(err)
	assert.Equal(id, id2)
	assert.EqualValues(1, atomic.LoadInt32(&requests))

	close(release)
	_, last := waitTerminal(t, events, id)
	assert.Equal(StateCompleted, last.State)
}

func TestDownloadFailed(t *testing.T) {
	assert := assert_.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	store := newMemStore()
	m := newTestManager(t, Config{
		Store:  store,
		Source: staticSource(server.URL, "broken", 0),
	})

	events, err := m.Subscribe()
	require_.NoError(t, err)
	defer events.Close()

	id, err := m.Start(tubecore.VideoRef("dQw4w9WgXcQ"), "")
	assert.NoError(err)

	_, last := waitTerminal(t, events, id)
	assert.Equal(StateFailed, last.State)
	assert.True(tubecore.IsKind(last.Err, tubecore.KindTransportFailure))

	rec, err := store.GetDownload(id)
	assert.NoError(err)
	require_.NotNil(t, rec)
	assert.Equal(StateFailed, rec.State)
	assert.NotEqual("", rec.Error)
}

func TestDownloadSourceFailure(t *testing.T) {
	assert := assert_.New(t)

	m := newTestManager(t, Config{
		Source: SourceFunc(func(_ context.Context, ref tubecore.ResourceRef, _ tubecore.QualityPref) (Target, error) {
			return Target{}, tubecore.NewError(tubecore.KindNotFound, "video",
				fmt.Errorf("no such video %q", ref.ID))
		}),
	})

	events, err := m.Subscribe()
	require_.NoError(t, err)
	defer events.Close()

	id, err := m.Start(tubecore.VideoRef("dQw4w9WgXcQ"), "")
	assert.NoError(err)

	_, last := waitTerminal(t, events, id)
	assert.Equal(StateFailed, last.State)
	assert.True(tubecore.IsKind(last.Err, tubecore.KindNotFound))
}

func TestStartRejectsNonVideoRefs(t *testing.T) {
	assert := assert_.New(t)

	m := newTestManager(t, Config{
		Source: staticSource("http://unused", "unused", 0),
	})

	_, err := m.Start(tubecore.ChannelRefID("UC0123456789abcdefghijkl"), "")
	assert.True(tubecore.IsKind(err, tubecore.KindMalformed))
}

func TestPauseAndCancelUnknownID(t *testing.T) {
	assert := assert_.New(t)

	m := newTestManager(t, Config{
		Source: staticSource("http://unused", "unused", 0),
	})

	// Both are no-ops for unknown downloads.
	m.Pause("zzzzzzzzzzz")
	assert.NoError(m.Cancel("zzzzzzzzzzz"))
}

func TestStateProperties(t *testing.T) {
	assert := assert_.New(t)

	assert.True(StatePending.IsActive())
	assert.True(StateRunning.IsActive())
	assert.False(StatePaused.IsActive())
	assert.False(StateCompleted.IsActive())

	assert.True(StateCompleted.IsTerminal())
	assert.True(StateFailed.IsTerminal())
	assert.True(StateCancelled.IsTerminal())
	assert.False(StatePaused.IsTerminal())
	assert.False(StateRunning.IsTerminal())
}

// waitState consumes events for id until the wanted state change arrives.
func waitState(t *testing.T, events pubsub.ReceiverCloser[Event], id string, want State) {
	t.Helper()
	timeout := time.After(10 * time.Second)
	for {
		select {
		case event, ok := <-events.Receive():
			if !ok {
				t.Fatalf("event stream closed waiting for %s", want)
			}
			if event.JobID() != id {
				continue
			}
			if sc, isState := event.(StateChanged); isState && sc.State == want {
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}
