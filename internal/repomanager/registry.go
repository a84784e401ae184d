package repomanager

import (
	"context"

	"github.com/google/uuid"

	"github.com/sevigo/reposync/internal/core"
)

// Registry persists RepositoryRecord snapshots so the in-memory registry
// survives a process restart. Optional: a nil Registry leaves the manager
// exactly as memory-only as before persistence was added. Implementations
// must tolerate concurrent calls for distinct repository IDs.
type Registry interface {
	Save(ctx context.Context, record core.RepositoryRecord) error
	Load(ctx context.Context) ([]core.RepositoryRecord, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
