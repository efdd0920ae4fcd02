package downloads

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/r3labs/diff/v3"
	"go.uber.org/zap"

	"github.com/freetube/tubecore"
	"github.com/freetube/tubecore/internal/sync_"
)

type stopReason int

const (
	stopNone stopReason = iota
	stopPause
	stopCancel
)

// job is the in-memory side of a download while a goroutine is driving it.
// Everything durable lives in the Record; the job only adds control state.
type job struct {
	manager   *Manager
	id        string
	ref       tubecore.ResourceRef
	quality   tubecore.QualityPref
	ctxCancel context.CancelFunc

	mu     sync.Mutex
	rec    Record
	reason stopReason

	done sync_.Event
}

func (j *job) log() *zap.SugaredLogger {
	return j.manager.log.With("download_id", j.id)
}

func (j *job) snapshot() Record {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.rec
}

func (j *job) stopping() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.reason != stopNone
}

func (j *job) stopReason() stopReason {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.reason
}

// requestStop asks the transfer goroutine to wind down. A cancel request
// upgrades an earlier pause request, never the other way around.
func (j *job) requestStop(r stopReason) {
	j.mu.Lock()
	if j.reason == stopNone || (j.reason == stopPause && r == stopCancel) {
		j.reason = r
	}
	j.mu.Unlock()
	j.ctxCancel()
}

// update applies f to the record and persists it, returning true if anything
// actually changed. Persistence failures mid-transfer are logged rather than
// surfaced; there is nobody left to return them to.
func (j *job) update(f func(*Record)) bool {
	j.mu.Lock()
	old := j.rec
	f(&j.rec)
	rec := j.rec
	j.mu.Unlock()
	if !diff.Changed(old, rec) {
		return false
	}
	if err := j.manager.config.Store.WriteDownload(&rec); err != nil {
		j.log().Warnw("failed to persist download record", "error", err)
	}
	return true
}

func (j *job) setState(state State, err error) {
	changed := j.update(func(r *Record) {
		r.State = state
		if err != nil {
			r.Error = err.Error()
		} else {
			r.Error = ""
		}
	})
	if changed {
		j.manager.events.Send(StateChanged{jobEvent{j.id}, state, err})
	}
}

func (j *job) run(ctx context.Context) {
	defer j.manager.wg.Done()
	err := j.transfer(ctx)
	j.finish(err)
	j.manager.removeJob(j)
	j.done.Set()
}

func (j *job) transfer(ctx context.Context) error {
	m := j.manager

	target, err := m.config.Source.ResolveTarget(ctx, j.ref, j.quality)
	if err != nil {
		if ctx.Err() != nil {
			return tubecore.NewError(tubecore.KindCancelled, "download", ctx.Err())
		}
		return err
	}
	j.update(func(r *Record) {
		if r.Title == "" {
			r.Title = target.Title
		}
		if r.FilePath == "" {
			r.FilePath = filepath.Join(m.config.SavePath, targetFilename(target.Title, j.id))
		}
		if target.SizeBytes > 0 {
			r.SizeBytes = target.SizeBytes
		}
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.URL, nil)
	if err != nil {
		return tubecore.NewError(tubecore.KindTransportFailure, "download", err)
	}
	resp, err := m.config.HTTPClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return tubecore.NewError(tubecore.KindCancelled, "download", ctx.Err())
		}
		return tubecore.NewError(tubecore.KindTransportFailure, "download", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return tubecore.NewError(tubecore.KindTransportFailure, "download",
			fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	rec := j.snapshot()
	if err := os.MkdirAll(filepath.Dir(rec.FilePath), 0775); err != nil {
		return tubecore.NewError(tubecore.KindDiskFailure, "download", err)
	}
	f, err := os.Create(rec.FilePath)
	if err != nil {
		return tubecore.NewError(tubecore.KindDiskFailure, "download", err)
	}
	defer f.Close()

	j.setState(StateRunning, nil)
	j.log().Infow("download started", "url_host", req.URL.Host, "path", rec.FilePath)

	total := resp.ContentLength
	if total <= 0 {
		total = rec.SizeBytes
	}
	buf := make([]byte, m.config.ChunkSize)
	var written int64
	lastPercent := -1
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if ctx.Err() != nil {
				return tubecore.NewError(tubecore.KindCancelled, "download", ctx.Err())
			}
			if _, werr := f.Write(buf[:n]); werr != nil {
				return tubecore.NewError(tubecore.KindDiskFailure, "download", werr)
			}
			written += int64(n)
			if total > 0 {
				if pct := int(written * 100 / total); pct > lastPercent {
					lastPercent = pct
					m.events.Send(Progress{jobEvent{j.id}, pct})
				}
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			if ctx.Err() != nil {
				return tubecore.NewError(tubecore.KindCancelled, "download", ctx.Err())
			}
			return tubecore.NewError(tubecore.KindTransportFailure, "download", rerr)
		}
	}

	if err := f.Close(); err != nil {
		return tubecore.NewError(tubecore.KindDiskFailure, "download", err)
	}
	// The reported size is sometimes approximate; trust what was written.
	j.update(func(r *Record) {
		r.SizeBytes = written
	})
	return nil
}

func (j *job) finish(err error) {
	m := j.manager
	rec := j.snapshot()
	switch {
	case err == nil:
		j.setState(StateCompleted, nil)
		j.log().Infow("download complete", "path", rec.FilePath, "size", rec.SizeBytes)
	case tubecore.IsKind(err, tubecore.KindCancelled):
		j.removePartialFile(rec)
		if j.stopReason() == stopCancel {
			if derr := m.config.Store.DeleteDownload(j.id); derr != nil {
				j.log().Warnw("failed to delete download record", "error", derr)
			}
			m.events.Send(StateChanged{jobEvent{j.id}, StateCancelled, nil})
			j.log().Infow("download cancelled")
		} else {
			// A pause (or manager shutdown) keeps the record so the
			// download can be started again later.
			j.setState(StatePaused, nil)
			j.log().Infow("download paused")
		}
	default:
		j.removePartialFile(rec)
		j.setState(StateFailed, err)
		j.log().Warnw("download failed", "error", err)
	}
}

// removePartialFile deletes the incomplete output file. Transfers restart
// from the beginning of the stream, so a partial file is never useful.
func (j *job) removePartialFile(rec Record) {
	if rec.FilePath == "" {
		return
	}
	if err := os.Remove(rec.FilePath); err != nil && !os.IsNotExist(err) {
		j.log().Warnw("failed to remove partial file", "path", rec.FilePath, "error", err)
	}
}

func targetFilename(title string, id string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		default:
			return r
		}
	}, title)
	name = strings.TrimSpace(name)
	if name == "" {
		name = id
	}
	return name + ".mp4"
}
