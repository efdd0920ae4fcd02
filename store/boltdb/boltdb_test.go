package boltdb

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	assert_ "github.com/stretchr/testify/assert"
	require_ "github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/freetube/tubecore/downloads"
)

func newTestStore(t *testing.T) Store {
	s, err := New(filepath.Join(t.TempDir(), "state.db"))
	require_.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNewWritesVersion(t *testing.T) {
	assert := assert_.New(t)
	s := newTestStore(t)

	var version int
	err := s.(*store).View(func(tx *bbolt.Tx) error {
		metadata := tx.Bucket(Buckets.Metadata)
		return json.Unmarshal(metadata.Get(MetadataKeys.Version), &version)
	})
	assert.NoError(err)
	assert.Equal(currentVersion, version)
}

func TestDownloadRoundTrip(t *testing.T) {
	assert := assert_.New(t)
	s := newTestStore(t)

	// Missing record is not an error
	rec, err := s.GetDownload("nope")
	assert.NoError(err)
	assert.Nil(rec)

	records, err := s.ListDownloads()
	assert.NoError(err)
	assert.Empty(records)

	added := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	a := downloads.Record{
		ID:      "aaa",
		Title:   "first",
		State:   downloads.StateCompleted,
		AddedAt: added,
	}
	b := downloads.Record{
		ID:      "bbb",
		Title:   "second",
		State:   downloads.StatePaused,
		AddedAt: added.Add(time.Minute),
	}
	assert.NoError(s.WriteDownload(&a))
	assert.NoError(s.WriteDownload(&b))

	rec, err = s.GetDownload("aaa")
	assert.NoError(err)
	assert.Equal(&a, rec)

	// Overwriting replaces the record
	a.State = downloads.StateFailed
	a.Error = "boom"
	assert.NoError(s.WriteDownload(&a))
	rec, err = s.GetDownload("aaa")
	assert.NoError(err)
	assert.Equal(&a, rec)

	records, err = s.ListDownloads()
	assert.NoError(err)
	assert.ElementsMatch([]downloads.Record{a, b}, records)

	// Delete is idempotent
	assert.NoError(s.DeleteDownload("aaa"))
	assert.NoError(s.DeleteDownload("aaa"))
	rec, err = s.GetDownload("aaa")
	assert.NoError(err)
	assert.Nil(rec)
}

func TestPersistsAcrossReopen(t *testing.T) {
	assert := assert_.New(t)
	path := filepath.Join(t.TempDir(), "state.db")

	s, err := New(path)
	require_.NoError(t, err)
	rec := downloads.Record{ID: "aaa", Title: "kept", State: downloads.StatePaused}
	assert.NoError(s.WriteDownload(&rec))
	assert.NoError(s.Close())

	s, err = New(path)
	require_.NoError(t, err)
	defer s.Close()
	got, err := s.GetDownload("aaa")
	assert.NoError(err)
	assert.Equal(&rec, got)
}
