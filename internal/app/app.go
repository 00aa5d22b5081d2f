// Package app wires together configuration, the local store and metrics into
// a single Deps struct that commands receive at runtime.
package app

import (
	"fmt"

	"github.com/derickschaefer/athmon/internal/config"
	"github.com/derickschaefer/athmon/internal/metrics"
	"github.com/derickschaefer/athmon/internal/store"
)

// Deps holds all runtime dependencies injected into command Run functions.
// The store is opened lazily so commands that never touch it do not lock
// the database file.
type Deps struct {
	Config  *config.Config
	Metrics *metrics.Recorder

	store *store.Store
}

// New builds a Deps from resolved config. withMetrics enables the
// Prometheus recorder.
func New(cfg *config.Config, withMetrics bool) *Deps {
	d := &Deps{Config: cfg}
	if withMetrics {
		d.Metrics = metrics.New()
	}
	return d
}

// Store opens the profile store on first use.
func (d *Deps) Store() (*store.Store, error) {
	if d.store != nil {
		return d.store, nil
	}
	if d.Config.DBPath == "" {
		return nil, fmt.Errorf("no database path configured (set db_path or --db)")
	}
	s, err := store.Open(d.Config.DBPath)
	if err != nil {
		return nil, err
	}
	d.store = s
	return s, nil
}

// Close releases the store if it was opened.
func (d *Deps) Close() error {
	if d.store == nil {
		return nil
	}
	err := d.store.Close()
	d.store = nil
	return err
}
