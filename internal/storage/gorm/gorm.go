// Package gormstorage records runs through a gorm-managed database,
// Postgres when reachable and in-memory SQLite otherwise.
package gormstorage

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/anchorwatch/anchorsim/internal/database"
	"github.com/anchorwatch/anchorsim/internal/model"
)

// tickFlushSize batches tick inserts; a settled boat produces two ticks per
// second and row-at-a-time inserts dominate the runner otherwise.
const tickFlushSize = 120

// Backend records sessions, ticks, and stage events via a database.Manager.
type Backend struct {
	mgr *database.Manager

	mu      sync.Mutex
	session *model.Session
	pending []model.TickState

	dumpDone chan struct{}
}

// New creates a backend on top of an already-connected manager.
func New(mgr *database.Manager) *Backend {
	return &Backend{mgr: mgr}
}

// Init migrates the schema.
func (b *Backend) Init() error {
	if b.mgr == nil || !b.mgr.IsValid {
		return fmt.Errorf("database manager not connected")
	}
	return b.mgr.Setup()
}

// StartPeriodicDump dumps the in-memory database to disk every interval, so
// a crash loses at most one interval of the run. No-op for on-disk databases.
func (b *Backend) StartPeriodicDump(interval time.Duration) {
	if !b.mgr.ShouldSaveLocal || b.mgr.SqliteFilePath == "" || interval <= 0 {
		return
	}
	b.dumpDone = make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-b.dumpDone:
				return
			case <-ticker.C:
				b.mu.Lock()
				err := b.flushLocked()
				b.mu.Unlock()
				if err == nil {
					err = b.mgr.DumpMemoryToDisk()
				}
				if err != nil {
					b.mgr.Logger.Warn().Err(err).Msg("Periodic database dump failed")
				}
			}
		}
	}()
}

// Close flushes pending rows and closes the connection. For the in-memory
// fallback the database is dumped to disk first when a path is configured.
func (b *Backend) Close() error {
	if b.dumpDone != nil {
		close(b.dumpDone)
		b.dumpDone = nil
	}
	if err := b.EndSession(); err != nil {
		return err
	}
	return b.mgr.Close()
}

// StartSession inserts the session row and becomes the target for all
// subsequent recording.
func (b *Backend) StartSession(session *model.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session != nil {
		return fmt.Errorf("session %d already running", b.session.ID)
	}
	if err := b.mgr.DB.Create(session).Error; err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	b.session = session
	return nil
}

// EndSession flushes buffered ticks and stamps the session end time.
func (b *Backend) EndSession() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return nil
	}
	if err := b.flushLocked(); err != nil {
		return err
	}

	b.session.EndTime = sql.NullTime{Time: time.Now().UTC(), Valid: true}
	if err := b.mgr.DB.Save(b.session).Error; err != nil {
		return fmt.Errorf("ending session: %w", err)
	}
	b.session = nil

	if b.mgr.ShouldSaveLocal && b.mgr.SqliteFilePath != "" {
		return b.mgr.DumpMemoryToDisk()
	}
	return nil
}

// RecordTickState buffers a tick row, flushing in batches.
func (b *Backend) RecordTickState(t *model.TickState) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return fmt.Errorf("no session running")
	}
	t.SessionID = b.session.ID
	b.pending = append(b.pending, *t)
	if len(b.pending) >= tickFlushSize {
		return b.flushLocked()
	}
	return nil
}

// RecordStageEvent writes the transition immediately; they are rare and the
// row ordering against ticks matters for replay.
func (b *Backend) RecordStageEvent(e *model.StageEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return fmt.Errorf("no session running")
	}
	if err := b.flushLocked(); err != nil {
		return err
	}
	e.SessionID = b.session.ID
	if err := b.mgr.DB.Create(e).Error; err != nil {
		return fmt.Errorf("recording stage event: %w", err)
	}
	return nil
}

func (b *Backend) flushLocked() error {
	if len(b.pending) == 0 {
		return nil
	}
	if err := b.mgr.DB.CreateInBatches(b.pending, tickFlushSize).Error; err != nil {
		return fmt.Errorf("flushing tick states: %w", err)
	}
	b.pending = b.pending[:0]
	return nil
}
