// Package boltdb persists download records in a single-file bbolt database,
// one JSON document per download keyed by video ID.
package boltdb

import (
	"encoding/json"

	"go.etcd.io/bbolt"

	"github.com/freetube/tubecore/downloads"
)

var Buckets = struct {
	Metadata  []byte
	Downloads []byte
}{
	Metadata:  []byte("__metadata__"),
	Downloads: []byte("downloads"),
}

var MetadataKeys = struct {
	Version []byte
}{
	Version: []byte("version"),
}

const currentVersion = 1

type Store interface {
	Close() error

	downloads.Store
}

type store struct {
	*bbolt.DB
}

func New(path string) (_ Store, err error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) (err error) {
		// Ensure buckets exist
		var metadata *bbolt.Bucket
		if metadata, err = tx.CreateBucketIfNotExists(Buckets.Metadata); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(Buckets.Downloads); err != nil {
			return err
		}

		// Get the current version of the database
		var version int
		if versionBytes := metadata.Get(MetadataKeys.Version); versionBytes == nil {
			version = 0
		} else if err = json.Unmarshal(versionBytes, &version); err != nil {
			return err
		}
		_ = version

		// Set the current version of the database
		if versionBytes, err := json.Marshal(currentVersion); err != nil {
			return err
		} else if err = metadata.Put(MetadataKeys.Version, versionBytes); err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &store{db}, nil
}

func (s *store) GetDownload(id string) (*downloads.Record, error) {
	var rec *downloads.Record
	err := s.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(Buckets.Downloads)
		data := bucket.Get([]byte(id))
		if data == nil {
			return nil
		}
		rec = &downloads.Record{}
		return json.Unmarshal(data, rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *store) ListDownloads() (records []downloads.Record, err error) {
	err = s.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(Buckets.Downloads)
		return bucket.ForEach(func(k, v []byte) error {
			var rec downloads.Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			records = append(records, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *store) WriteDownload(rec *downloads.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(Buckets.Downloads)
		return bucket.Put([]byte(rec.ID), data)
	})
}

func (s *store) DeleteDownload(id string) error {
	return s.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(Buckets.Downloads)
		return bucket.Delete([]byte(id))
	})
}
