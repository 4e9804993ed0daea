package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"crmload/internal/stats"
)

const bucketRuns = "runs"

// RunRecord is what a finished run leaves behind in history.
type RunRecord struct {
	ID          string        `json:"id"`
	Timestamp   time.Time     `json:"timestamp"`
	BaseURL     string        `json:"base_url"`
	Total       int           `json:"total_requests"`
	Success     int           `json:"success"`
	Errors      int           `json:"errors"`
	SuccessRate float64       `json:"success_rate"`
	Latency     stats.Summary `json:"latency"`
	Passed      bool          `json:"passed"`
}

// Store is a bbolt-backed run history.
type Store struct {
	db *bbolt.DB
}

// Open opens (or creates) the history database. An empty path defaults to
// $HOME/.crmload/history.db.
func Open(path string) (*Store, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dir := filepath.Join(home, ".crmload")
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
		path = filepath.Join(dir, "history.db")
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketRuns))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores a run record. Keys sort by timestamp so List can walk the
// cursor backwards for newest-first ordering.
func (s *Store) Save(rec RunRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketRuns))

		key := []byte(rec.Timestamp.UTC().Format(time.RFC3339Nano) + "/" + rec.ID)
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}

// List returns all run records, newest first.
func (s *Store) List() ([]RunRecord, error) {
	var items []RunRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(bucketRuns)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var rec RunRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				continue
			}
			items = append(items, rec)
		}
		return nil
	})

	return items, err
}

// Get fetches one run by id.
func (s *Store) Get(id string) (*RunRecord, error) {
	var found *RunRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(bucketRuns)).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var rec RunRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				continue
			}
			if rec.ID == id {
				found = &rec
				return nil
			}
		}
		return fmt.Errorf("run %s not found", id)
	})
	if err != nil {
		return nil, err
	}

	return found, nil
}
