// Package memory records a run in memory and exports it to a JSON file when
// the session ends. It is the zero-infrastructure backend for validation
// runs.
package memory

import (
	"fmt"
	"sync"

	"github.com/anchorwatch/anchorsim/internal/config"
	"github.com/anchorwatch/anchorsim/internal/model"
)

// Backend accumulates the run and writes one file per session.
type Backend struct {
	cfg config.MemoryConfig

	mu          sync.Mutex
	session     *model.Session
	ticks       []model.TickState
	stageEvents []model.StageEvent

	exportedPath string
}

// New creates a new memory backend.
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{cfg: cfg}
}

// Init initializes the backend.
func (b *Backend) Init() error {
	return nil
}

// Close finalizes any session still running.
func (b *Backend) Close() error {
	return b.EndSession()
}

// StartSession begins recording a new run.
func (b *Backend) StartSession(session *model.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session != nil {
		return fmt.Errorf("session already running")
	}
	session.ID = 1
	b.session = session
	b.ticks = nil
	b.stageEvents = nil
	return nil
}

// EndSession exports the recorded run to disk.
func (b *Backend) EndSession() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return nil
	}
	err := b.exportJSON()
	b.session = nil
	return err
}

// RecordTickState appends a tick snapshot to the run.
func (b *Backend) RecordTickState(t *model.TickState) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return fmt.Errorf("no session running")
	}
	t.SessionID = b.session.ID
	b.ticks = append(b.ticks, *t)
	return nil
}

// RecordStageEvent appends a sequencer transition to the run.
func (b *Backend) RecordStageEvent(e *model.StageEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return fmt.Errorf("no session running")
	}
	e.SessionID = b.session.ID
	b.stageEvents = append(b.stageEvents, *e)
	return nil
}

// GetExportedFilePath returns the path written by the last EndSession, or
// empty if nothing was exported yet.
func (b *Backend) GetExportedFilePath() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.exportedPath
}
