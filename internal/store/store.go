package store

import (
	"context"

	"github.com/richxcame/driver-agent/pkg/models"
)

// Store durably keeps the in-flight ride session so the engine can resume
// after a crash or process kill. Implementations must make each write
// atomic: a reader never observes a partially written record.
type Store interface {
	SaveSession(ctx context.Context, session *models.RideSession) error
	// LoadSession returns nil with no error when nothing is persisted.
	LoadSession(ctx context.Context) (*models.RideSession, error)
	SaveFlags(ctx context.Context, flags models.Flags) error
	LoadFlags(ctx context.Context) (models.Flags, error)
	// Clear removes both records. Clearing an empty store is a no-op.
	Clear(ctx context.Context) error
}
