// Package repomanager owns the registry of repositories under management,
// the worker pool that runs their indexing jobs, and the per-repository
// broadcast channels progress subscribers read from.
package repomanager

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/sevigo/reposync/internal/core"
	"github.com/sevigo/reposync/internal/vectorstore"
)

// RegisterOptions parameterizes one Register call beyond the descriptor
// itself: whether to queue an indexing run immediately (the auto_index
// flag of the register operation) and any client-supplied metadata to
// stamp on the record.
type RegisterOptions struct {
	AutoIndex bool
	Metadata  map[string]string
}

// RepositoryManager is the contract exposed to the outer transport layers
// (cmd/server, cmd/cli).
type RepositoryManager interface {
	Register(ctx context.Context, desc core.RepositoryDescriptor, opts RegisterOptions, principal string) (*core.RepositoryRecord, error)
	Get(ctx context.Context, id uuid.UUID) (*core.RepositoryRecord, error)
	List(ctx context.Context) ([]*core.RepositoryRecord, error)
	Delete(ctx context.Context, id uuid.UUID, principal string) error
	Reindex(ctx context.Context, id uuid.UUID, principal string) error
	Subscribe(ctx context.Context, id uuid.UUID) (<-chan core.IndexingUpdate, func(), error)
	Stop()
}

// Config parameterizes New.
type Config struct {
	Workers       int
	EmbedderModel string
	Authz         core.AuthzFunc
	Persist       Registry
}

// manager implements RepositoryManager: a buffered-channel worker pool
// whose indexJob.Run(ctx, repositoryID) drives one repository through
// Acquirer -> Chunker -> Embedder -> VectorStore.
type manager struct {
	registry sync.Map // uuid.UUID -> *recordEntry

	queue   chan uuid.UUID
	wg      sync.WaitGroup
	workers int

	authz         core.AuthzFunc
	embedderModel string

	acquirer    core.Acquirer
	chunker     core.Chunker
	embedder    core.Embedder
	vectorStore core.VectorStore

	persist Registry
	logger  *slog.Logger
}

const defaultQueueDepth = 256

// New builds a RepositoryManager and starts its worker pool. If
// cfg.Workers is 0 or negative, it defaults to runtime.NumCPU() via the
// caller (app wiring resolves that; this package stays import-light and
// accepts whatever positive count it's given, falling back to 1).
func New(cfg Config, acq core.Acquirer, chunker core.Chunker, embedder core.Embedder, store core.VectorStore, logger *slog.Logger) RepositoryManager {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	authz := cfg.Authz
	if authz == nil {
		authz = func(string, string) bool { return true }
	}
	m := &manager{
		queue:         make(chan uuid.UUID, defaultQueueDepth),
		workers:       cfg.Workers,
		authz:         authz,
		embedderModel: cfg.EmbedderModel,
		acquirer:      acq,
		chunker:       chunker,
		embedder:      embedder,
		vectorStore:   store,
		persist:       cfg.Persist,
		logger:        logger,
	}
	m.restore()
	m.startWorkers()
	return m
}

// restore loads any previously persisted records back into the registry. A
// repository caught mid-run when the process last exited did not finish, so
// it surfaces as failed rather than silently resuming as if still indexing.
func (m *manager) restore() {
	if m.persist == nil {
		return
	}
	records, err := m.persist.Load(context.Background())
	if err != nil {
		m.logger.Error("failed to load persisted repository registry", "error", err)
		return
	}
	for _, rec := range records {
		if rec.Status == core.StatusIndexing {
			rec.Status = core.StatusFailed
			rec.LastError = "indexing interrupted by process restart"
		}
		m.registry.Store(rec.ID, newRecordEntry(rec))
	}
}

// persistSave best-effort saves a snapshot; persistence failures are logged
// but never fail the operation that triggered them, since the in-memory
// registry remains the source of truth for a running process.
func (m *manager) persistSave(rec core.RepositoryRecord) {
	if m.persist == nil {
		return
	}
	if err := m.persist.Save(context.Background(), rec); err != nil {
		m.logger.Error("failed to persist repository record", "repository_id", rec.ID, "error", err)
	}
}

func (m *manager) startWorkers() {
	job := &indexJob{mgr: m}
	for i := 0; i < m.workers; i++ {
		m.wg.Add(1)
		go func(workerID int) {
			defer m.wg.Done()
			m.logger.Info("starting index worker", "id", workerID)
			for id := range m.queue {
				if err := job.Run(context.Background(), id); err != nil {
					m.logger.Error("indexing job failed", "repository_id", id, "error", err)
				}
			}
			m.logger.Info("shutting down index worker", "id", workerID)
		}(i)
	}
}

func (m *manager) Stop() {
	close(m.queue)
	m.wg.Wait()
}

func (m *manager) entry(id uuid.UUID) (*recordEntry, bool) {
	v, ok := m.registry.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*recordEntry), true
}

// Register creates a new record in status Pending. Registration is never
// idempotent: the same descriptor registered twice yields two distinct
// records. An indexing run is queued only when opts.AutoIndex is set; a
// record left Pending is picked up later via Reindex.
func (m *manager) Register(ctx context.Context, desc core.RepositoryDescriptor, opts RegisterOptions, principal string) (*core.RepositoryRecord, error) {
	if !m.authz(core.ActionRegister, principal) {
		return nil, core.NewErrorf(core.KindUnauthorized, "repomanager.register", "principal %q may not register repositories", principal)
	}

	id := newUUID()
	ts := now()
	rec := core.RepositoryRecord{
		ID:                   id,
		Descriptor:           desc,
		Status:               core.StatusPending,
		EmbedderModel:        m.embedderModel,
		QdrantCollectionName: vectorstore.GenerateCollectionName(id.String(), m.embedderModel),
		OwnerID:              principal,
		Metadata:             opts.Metadata,
		CreatedAt:            ts,
		UpdatedAt:            ts,
	}
	entry := newRecordEntry(rec)
	m.registry.Store(id, entry)
	m.persistSave(rec)

	if opts.AutoIndex {
		if err := m.enqueue(id); err != nil {
			entry.setStatus(core.StatusFailed, 0, err.Error())
			m.persistSave(entry.snapshot())
			return nil, err
		}
	}
	snap := entry.snapshot()
	return &snap, nil
}

func (m *manager) enqueue(id uuid.UUID) error {
	select {
	case m.queue <- id:
		return nil
	default:
		return core.NewErrorf(core.KindValidation, "repomanager.enqueue", "indexing queue is full, cannot accept repository %s", id)
	}
}

func (m *manager) Get(_ context.Context, id uuid.UUID) (*core.RepositoryRecord, error) {
	entry, ok := m.entry(id)
	if !ok {
		return nil, core.NewErrorf(core.KindNotFound, "repomanager.get", "repository %s not found", id)
	}
	snap := entry.snapshot()
	return &snap, nil
}

func (m *manager) List(_ context.Context) ([]*core.RepositoryRecord, error) {
	var out []*core.RepositoryRecord
	m.registry.Range(func(_, v any) bool {
		snap := v.(*recordEntry).snapshot()
		out = append(out, &snap)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *manager) Delete(_ context.Context, id uuid.UUID, principal string) error {
	if !m.authz(core.ActionDelete, principal) {
		return core.NewErrorf(core.KindUnauthorized, "repomanager.delete", "principal %q may not delete repository %s", principal, id)
	}
	entry, ok := m.entry(id)
	if !ok {
		return core.NewErrorf(core.KindNotFound, "repomanager.delete", "repository %s not found", id)
	}
	entry.cancelRun()
	m.registry.Delete(id)
	entry.closeSubs()
	if m.persist != nil {
		if err := m.persist.Delete(context.Background(), id); err != nil {
			m.logger.Error("failed to delete persisted repository record", "repository_id", id, "error", err)
		}
	}
	if err := m.vectorStore.DeleteByRepository(context.Background(), id.String()); err != nil {
		m.logger.Error("failed to delete vectors for repository", "repository_id", id, "error", err)
		return err
	}
	return nil
}

func (m *manager) Reindex(_ context.Context, id uuid.UUID, principal string) error {
	if !m.authz(core.ActionReindex, principal) {
		return core.NewErrorf(core.KindUnauthorized, "repomanager.reindex", "principal %q may not reindex repository %s", principal, id)
	}
	entry, ok := m.entry(id)
	if !ok {
		return core.NewErrorf(core.KindNotFound, "repomanager.reindex", "repository %s not found", id)
	}
	entry.beginRun()
	m.persistSave(entry.snapshot())
	return m.enqueue(id)
}

func (m *manager) Subscribe(_ context.Context, id uuid.UUID) (<-chan core.IndexingUpdate, func(), error) {
	entry, ok := m.entry(id)
	if !ok {
		return nil, nil, core.NewErrorf(core.KindNotFound, "repomanager.subscribe", "repository %s not found", id)
	}
	ch, unsub := entry.subscribe()
	return ch, unsub, nil
}
