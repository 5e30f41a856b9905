package storage

import "github.com/anchorwatch/anchorsim/internal/model"

// Backend is the interface all run-recording implementations must satisfy.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management
	StartSession(session *model.Session) error
	EndSession() error

	// Recording
	RecordTickState(t *model.TickState) error
	RecordStageEvent(e *model.StageEvent) error
}

// Exportable is an optional interface for backends that produce a run file
// on EndSession.
type Exportable interface {
	GetExportedFilePath() string
}
