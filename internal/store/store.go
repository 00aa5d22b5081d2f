// Package store provides a thin bbolt wrapper for athmon's local state.
//
// The store holds configuration only: named preparation profiles and a log
// of past runs. Datasets and prepared frames are never written; every run
// recomputes from its input file.
//
// Buckets:
//
//	profiles: named preparation settings keyed by profile name
//	runs:     run log entries keyed by run ID
//	_meta:    internal: schema version, created_at
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/derickschaefer/athmon/internal/grid"
)

// Current schema version. Bump when bucket layout or key format changes.
const schemaVersion = 1

// Bucket name constants.
var (
	bucketProfiles = []byte("profiles")
	bucketRuns     = []byte("runs")
	bucketInternal = []byte("_meta")
)

// AllBuckets lists every top-level bucket for stats and clear operations.
var AllBuckets = []string{"profiles", "runs"}

// Store wraps a bbolt database.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the bbolt database at path.
// Parent directories are created automatically.
// Runs schema migrations on every open.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening db %s: %w", path, err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the filesystem path of the open database.
func (s *Store) Path() string {
	return s.db.Path()
}

// ─── Migrations ───────────────────────────────────────────────────────────────

// migrate ensures all buckets exist and schema is current.
func (s *Store) migrate() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketProfiles, bucketRuns, bucketInternal} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}

		meta := tx.Bucket(bucketInternal)
		if meta.Get([]byte("schema_version")) == nil {
			if err := meta.Put([]byte("schema_version"), []byte(fmt.Sprintf("%d", schemaVersion))); err != nil {
				return err
			}
			if err := meta.Put([]byte("created_at"), []byte(time.Now().UTC().Format(time.RFC3339))); err != nil {
				return err
			}
		}
		return nil
	})
}

// ─── Profiles ─────────────────────────────────────────────────────────────────

// Profile is a named set of preparation settings. Missing-value settings are
// strings so "NA" survives the round trip.
type Profile struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	Columns         grid.Columns `json:"columns"`
	Acute           int          `json:"acute"`
	Chronic         int          `json:"chronic"`
	DayAggregate    string       `json:"day_aggregate"`
	Estimators      []string     `json:"estimators"`
	GroupEstimators []string     `json:"group_estimators"`
	Posthoc         string       `json:"posthoc"`
	NASession       string       `json:"na_session"`
	NADay           string       `json:"na_day"`
	RollingFill     string       `json:"rolling_fill"`
	UseCounts       bool         `json:"use_counts"`
	MaxLevels       int          `json:"max_levels"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// Overrides returns the profile as configuration keys, for layering over
// the loaded configuration.
func (p Profile) Overrides() map[string]interface{} {
	return map[string]interface{}{
		"columns.athlete":  p.Columns.Athlete,
		"columns.date":     p.Columns.Date,
		"columns.variable": p.Columns.Variable,
		"columns.value":    p.Columns.Value,
		"acute":            p.Acute,
		"chronic":          p.Chronic,
		"day_aggregate":    p.DayAggregate,
		"estimators":       p.Estimators,
		"group_estimators": p.GroupEstimators,
		"posthoc":          p.Posthoc,
		"na_session":       p.NASession,
		"na_day":           p.NADay,
		"rolling_fill":     p.RollingFill,
		"use_counts":       p.UseCounts,
		"max_levels":       p.MaxLevels,
	}
}

// PutProfile saves p under its name. Saving over an existing name keeps the
// original ID and CreatedAt.
func (s *Store) PutProfile(p Profile) (Profile, error) {
	if p.Name == "" {
		return p, fmt.Errorf("profile name must not be empty")
	}
	now := time.Now().UTC()
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProfiles)
		if v := b.Get([]byte(p.Name)); v != nil {
			var old Profile
			if err := json.Unmarshal(v, &old); err != nil {
				return fmt.Errorf("decoding profile %s: %w", p.Name, err)
			}
			p.ID, p.CreatedAt = old.ID, old.CreatedAt
		} else {
			p.ID, p.CreatedAt = uuid.NewString(), now
		}
		p.UpdatedAt = now
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encoding profile: %w", err)
		}
		return b.Put([]byte(p.Name), data)
	})
	return p, err
}

// GetProfile retrieves a profile by name.
// Returns (profile, true, nil) if found, (zero, false, nil) if not found.
func (s *Store) GetProfile(name string) (Profile, bool, error) {
	var p Profile
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketProfiles).Get([]byte(name))
		if v == nil {
			return nil
		}
		return json.Unmarshal(v, &p)
	})
	if err != nil {
		return p, false, err
	}
	return p, p.ID != "", nil
}

// ListProfiles returns all profiles sorted by name.
func (s *Store) ListProfiles() ([]Profile, error) {
	var out []Profile
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketProfiles).ForEach(func(k, v []byte) error {
			var p Profile
			if err := json.Unmarshal(v, &p); err != nil {
				return fmt.Errorf("decoding profile %s: %w", k, err)
			}
			out = append(out, p)
			return nil
		})
	})
	return out, err
}

// DeleteProfile removes a profile by name. Returns false if it did not exist.
func (s *Store) DeleteProfile(name string) (bool, error) {
	found := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProfiles)
		if b.Get([]byte(name)) == nil {
			return nil
		}
		found = true
		return b.Delete([]byte(name))
	})
	return found, err
}

// ─── Run log ──────────────────────────────────────────────────────────────────

// Run records that a preparation happened: what was read, with which
// settings and whether it failed. It carries no data values.
type Run struct {
	ID         string    `json:"id"`
	Command    string    `json:"command"`
	Input      string    `json:"input"`
	Profile    string    `json:"profile,omitempty"`
	Acute      int       `json:"acute"`
	Chronic    int       `json:"chronic"`
	Type       string    `json:"type,omitempty"`
	Rows       int       `json:"rows"`
	Athletes   int       `json:"athletes"`
	Variables  int       `json:"variables"`
	Columns    []string  `json:"columns"`
	DurationMs int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Failed reports whether the run ended in an error.
func (r Run) Failed() bool { return r.Error != "" }

// PutRun appends a run log entry, stamping CreatedAt if unset.
func (s *Store) PutRun(r Run) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding run: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRuns).Put([]byte(r.ID), data)
	})
}

// ListRuns returns the most recent limit runs, newest first. limit <= 0
// returns all.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	var runs []Run
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRuns).ForEach(func(k, v []byte) error {
			var r Run
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("decoding run %s: %w", k, err)
			}
			runs = append(runs, r)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].CreatedAt.After(runs[j].CreatedAt) })
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// ─── Stats & Maintenance ──────────────────────────────────────────────────────

// BucketStats holds row count and byte size for a single bucket.
type BucketStats struct {
	Name  string
	Count int
	Bytes int64
}

// Stats returns row counts and approximate sizes for all buckets, in
// AllBuckets order.
func (s *Store) Stats() ([]BucketStats, error) {
	var stats []BucketStats
	err := s.db.View(func(tx *bolt.Tx) error {
		for _, name := range AllBuckets {
			b := tx.Bucket([]byte(name))
			if b == nil {
				continue
			}
			st := BucketStats{Name: name}
			if err := b.ForEach(func(k, v []byte) error {
				st.Count++
				st.Bytes += int64(len(k) + len(v))
				return nil
			}); err != nil {
				return err
			}
			stats = append(stats, st)
		}
		return nil
	})
	return stats, err
}

// ClearBucket deletes all entries in the named bucket.
func (s *Store) ClearBucket(name string) error {
	known := false
	for _, b := range AllBuckets {
		known = known || b == name
	}
	if !known {
		return fmt.Errorf("unknown bucket %q", name)
	}
	bname := []byte(name)
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bname); err != nil {
			return fmt.Errorf("clearing bucket %s: %w", name, err)
		}
		_, err := tx.CreateBucket(bname)
		return err
	})
}

// ClearAll deletes all entries in every bucket.
func (s *Store) ClearAll() error {
	for _, name := range AllBuckets {
		if err := s.ClearBucket(name); err != nil {
			return err
		}
	}
	return nil
}
