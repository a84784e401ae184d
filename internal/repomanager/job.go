package repomanager

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/sevigo/reposync/internal/core"
)

// Progress stage weights: acquisition 0.10, chunking 0.25, embedding
// 0.55, store commit 0.10.
const (
	weightAcquire = 0.10
	weightChunk   = 0.25
	weightEmbed   = 0.55
	weightCommit  = 0.10
	weightMidRun  = weightAcquire + weightChunk + weightEmbed
)

// indexJob drives one repository through Acquirer -> Chunker ->
// Embedder -> VectorStore, pulling the repository's descriptor from the
// registry by id rather than receiving it as an argument.
type indexJob struct {
	mgr *manager
}

func (j *indexJob) Run(parent context.Context, id uuid.UUID) error {
	m := j.mgr
	entry, ok := m.entry(id)
	if !ok {
		return core.NewErrorf(core.KindNotFound, "indexjob.run", "repository %s not found", id)
	}

	ctx, cancel := context.WithCancel(parent)
	entry.setCancel(cancel)
	defer cancel()

	rec := entry.snapshot()
	entry.beginRun()
	m.persistSave(entry.snapshot())
	entry.publish(core.IndexingUpdate{RepositoryID: id, Status: core.StatusIndexing, Progress: 0, Message: "indexing started", Timestamp: now()})

	repoKey := id.String()
	if err := m.vectorStore.BeginRun(ctx, repoKey); err != nil {
		return j.abort(entry, id, err)
	}

	_, files, errs := m.acquirer.Acquire(ctx, rec.Descriptor, core.AccessConfig{
		PreferredMode: rec.Descriptor.PreferredMode,
		Token:         rec.Descriptor.AccessToken,
	})

	var skipped []core.SkippedFile
	var fatal error
	errDone := make(chan struct{})
	go func() {
		defer close(errDone)
		for e := range errs {
			// a per-file fetch failure carries the file's path and is
			// tolerated as a skipped file; Unauthorized and any
			// repository-level failure (tree listing, clone, local
			// walk) abort the whole job.
			if core.KindOf(e) != core.KindUnauthorized && core.PathOf(e) != "" {
				skipped = append(skipped, core.SkippedFile{Path: core.PathOf(e), Reason: e.Error()})
				continue
			}
			if fatal == nil {
				fatal = e
			}
		}
	}()

	processed := 0
	for f := range files {
		if ctx.Err() != nil {
			m.vectorStore.DiscardRun(context.Background(), repoKey)
			entry.setStatus(core.StatusCancelled, entry.snapshot().Progress, "cancelled")
			m.persistSave(entry.snapshot())
			entry.publish(core.IndexingUpdate{RepositoryID: id, Status: core.StatusCancelled, Progress: entry.snapshot().Progress, Message: "cancelled", Timestamp: now()})
			<-errDone
			return ctx.Err()
		}

		if err := j.processFile(ctx, m, repoKey, id, f); err != nil {
			m.vectorStore.DiscardRun(context.Background(), repoKey)
			<-errDone
			return j.abort(entry, id, err)
		}

		processed++
		progress := weightMidRun * (1 - 1/float64(processed+1))
		entry.setStatus(core.StatusIndexing, progress, "")
		entry.publish(core.IndexingUpdate{RepositoryID: id, Status: core.StatusIndexing, Progress: progress, Message: f.Path, Timestamp: now()})
	}
	<-errDone

	if fatal != nil {
		m.vectorStore.DiscardRun(context.Background(), repoKey)
		return j.abort(entry, id, fatal)
	}

	if err := m.vectorStore.CommitRun(ctx, repoKey); err != nil {
		return j.abort(entry, id, err)
	}

	entry.setSkipped(skipped)
	final := weightMidRun + weightCommit
	entry.setStatus(core.StatusCompleted, final, "")
	m.persistSave(entry.snapshot())
	entry.publish(core.IndexingUpdate{RepositoryID: id, Status: core.StatusCompleted, Progress: final, Message: "indexing complete", Timestamp: now()})
	return nil
}

func (j *indexJob) processFile(ctx context.Context, m *manager, repoKey string, repoID uuid.UUID, f core.AcquiredFile) error {
	fileRec := core.FileRecord{
		Path: f.Path,
		Size: int64(len(f.Bytes)),
		Kind: f.Kind,
		Lang: f.Lang,
	}
	chunks, err := m.chunker.Split(ctx, fileRec, f.Bytes)
	if err != nil {
		return nil // a chunker failure on one file is tolerated, not fatal
	}
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := m.embedder.Embed(ctx, texts)
	if err != nil {
		return err
	}

	for i, c := range chunks {
		c.ID = uuid.New()
		c.RepositoryID = repoID
		c.Path = f.Path
		if err := m.vectorStore.Upsert(ctx, repoKey, c, vectors[i]); err != nil {
			return err
		}
	}
	return nil
}

func (j *indexJob) abort(entry *recordEntry, id uuid.UUID, err error) error {
	status := core.StatusFailed
	if errors.Is(err, context.Canceled) || errors.Is(err, core.ErrCancelled) || core.KindOf(err) == core.KindCancelled {
		status = core.StatusCancelled
	}
	entry.setStatus(status, entry.snapshot().Progress, err.Error())
	j.mgr.persistSave(entry.snapshot())
	entry.publish(core.IndexingUpdate{RepositoryID: id, Status: status, Progress: entry.snapshot().Progress, Message: err.Error(), Timestamp: now()})
	return err
}
