// Package storage persists the Repository Manager's registry so
// repository records survive a process restart: sqlx + lib/pq,
// named-query upserts, JSON columns for semi-structured fields.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/google/uuid"

	"github.com/sevigo/reposync/internal/core"
	"github.com/sevigo/reposync/internal/repomanager"
)

// ErrNotFound names a missing record; no RegistryStore method currently
// returns it (Delete of an unknown id succeeds).
var ErrNotFound = errors.New("record not found")

// repositoryRow mirrors core.RepositoryRecord's columns; Descriptor,
// SkippedFiles and Metadata round-trip through JSONB since they vary in
// shape across providers and don't earn their own tables.
type repositoryRow struct {
	ID                   uuid.UUID `db:"id"`
	Descriptor           []byte    `db:"descriptor"`
	Status               string    `db:"status"`
	Progress             float64   `db:"progress"`
	EmbedderModel        string    `db:"embedder_model"`
	QdrantCollectionName string    `db:"qdrant_collection_name"`
	CreatedAt            time.Time `db:"created_at"`
	UpdatedAt            time.Time `db:"updated_at"`
	IndexedAt            *time.Time `db:"indexed_at"`
	LastError            string    `db:"last_error"`
	OwnerID              string    `db:"owner_id"`
	SkippedFiles         []byte    `db:"skipped_files"`
	Metadata             []byte    `db:"metadata"`
}

// RegistryStore persists core.RepositoryRecord snapshots. It implements
// repomanager.Registry.
type RegistryStore struct {
	db *sqlx.DB
}

var _ repomanager.Registry = (*RegistryStore)(nil)

// NewRegistryStore creates a RegistryStore backed by a migrated Postgres
// connection.
func NewRegistryStore(db *sqlx.DB) *RegistryStore {
	return &RegistryStore{db: db}
}

func toRow(rec core.RepositoryRecord) (repositoryRow, error) {
	desc, err := json.Marshal(rec.Descriptor)
	if err != nil {
		return repositoryRow{}, fmt.Errorf("marshal descriptor: %w", err)
	}
	skipped, err := json.Marshal(rec.SkippedFiles)
	if err != nil {
		return repositoryRow{}, fmt.Errorf("marshal skipped files: %w", err)
	}
	meta, err := json.Marshal(rec.Metadata)
	if err != nil {
		return repositoryRow{}, fmt.Errorf("marshal metadata: %w", err)
	}
	return repositoryRow{
		ID:                   rec.ID,
		Descriptor:           desc,
		Status:               string(rec.Status),
		Progress:             rec.Progress,
		EmbedderModel:        rec.EmbedderModel,
		QdrantCollectionName: rec.QdrantCollectionName,
		CreatedAt:            rec.CreatedAt,
		UpdatedAt:            rec.UpdatedAt,
		IndexedAt:            rec.IndexedAt,
		LastError:            rec.LastError,
		OwnerID:              rec.OwnerID,
		SkippedFiles:         skipped,
		Metadata:             meta,
	}, nil
}

func (row repositoryRow) toRecord() (core.RepositoryRecord, error) {
	rec := core.RepositoryRecord{
		ID:                   row.ID,
		Status:               core.Status(row.Status),
		Progress:             row.Progress,
		EmbedderModel:        row.EmbedderModel,
		QdrantCollectionName: row.QdrantCollectionName,
		CreatedAt:            row.CreatedAt,
		UpdatedAt:            row.UpdatedAt,
		IndexedAt:            row.IndexedAt,
		LastError:            row.LastError,
		OwnerID:              row.OwnerID,
	}
	if err := json.Unmarshal(row.Descriptor, &rec.Descriptor); err != nil {
		return rec, fmt.Errorf("unmarshal descriptor: %w", err)
	}
	if len(row.SkippedFiles) > 0 {
		if err := json.Unmarshal(row.SkippedFiles, &rec.SkippedFiles); err != nil {
			return rec, fmt.Errorf("unmarshal skipped files: %w", err)
		}
	}
	if len(row.Metadata) > 0 {
		if err := json.Unmarshal(row.Metadata, &rec.Metadata); err != nil {
			return rec, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return rec, nil
}

// Save upserts one repository record.
func (s *RegistryStore) Save(ctx context.Context, rec core.RepositoryRecord) error {
	row, err := toRow(rec)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO repository_records (
			id, descriptor, status, progress, embedder_model, qdrant_collection_name,
			created_at, updated_at, indexed_at, last_error, owner_id,
			skipped_files, metadata
		) VALUES (
			:id, :descriptor, :status, :progress, :embedder_model, :qdrant_collection_name,
			:created_at, :updated_at, :indexed_at, :last_error, :owner_id,
			:skipped_files, :metadata
		)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			progress = EXCLUDED.progress,
			qdrant_collection_name = EXCLUDED.qdrant_collection_name,
			updated_at = EXCLUDED.updated_at,
			indexed_at = EXCLUDED.indexed_at,
			last_error = EXCLUDED.last_error,
			skipped_files = EXCLUDED.skipped_files,
			metadata = EXCLUDED.metadata`

	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			return fmt.Errorf("save repository record %s: %s (%s): %w", rec.ID, pqErr.Message, pqErr.Code, err)
		}
		return fmt.Errorf("save repository record %s: %w", rec.ID, err)
	}
	return nil
}

// Load returns every persisted repository record, in no particular order;
// the Repository Manager re-sorts by CreatedAt once loaded.
func (s *RegistryStore) Load(ctx context.Context) ([]core.RepositoryRecord, error) {
	const query = `
		SELECT id, descriptor, status, progress, embedder_model, qdrant_collection_name,
		       created_at, updated_at, indexed_at, last_error, owner_id,
		       skipped_files, metadata
		FROM repository_records`

	var rows []repositoryRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load repository records: %w", err)
	}

	out := make([]core.RepositoryRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toRecord()
		if err != nil {
			return nil, fmt.Errorf("decode repository record %s: %w", row.ID, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Delete removes a repository record by id.
func (s *RegistryStore) Delete(ctx context.Context, id uuid.UUID) error {
	const query = `DELETE FROM repository_records WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete repository record %s: %w", id, err)
	}
	return nil
}
