package acquirer

import (
	"context"
	"fmt"

	"github.com/sevigo/reposync/internal/core"
)

// streamAPI drives the API access mode: list the tree once, then fetch
// and filter each blob in turn. Per-file fetch failures are wrapped with
// their path (skippedErr) and tolerated; the Repository Manager reads
// them off errc and folds them into the RepositoryRecord. A tree-listing
// failure or Unauthorized is sent bare, without a path, which the
// consumer treats as fatal for the whole run.
func (a *Acquirer) streamAPI(ctx context.Context, prov core.Provider, desc core.RepositoryDescriptor, filter *Filter, out chan<- core.AcquiredFile, errc chan<- error) {
	defer close(out)
	defer close(errc)

	// Branch is left empty; every adapter resolves the repository's
	// default branch itself when none is given.
	const branch = ""
	entries, err := prov.Tree(ctx, desc.Owner, desc.Name, branch)
	if err != nil {
		errc <- err
		return
	}

	for _, entry := range entries {
		select {
		case <-ctx.Done():
			errc <- core.ErrCancelled
			return
		default:
		}

		ok, _ := filter.Accept(entry.Path, entry.Size)
		if !ok {
			continue
		}

		content, err := prov.File(ctx, desc.Owner, desc.Name, entry.Path, branch)
		if err != nil {
			if core.KindOf(err) == core.KindUnauthorized {
				errc <- err
				return
			}
			errc <- skippedErr(entry.Path, err)
			continue
		}

		if binary, _ := filter.RejectBinary(entry.Path, content); binary {
			continue
		}

		kind, lang := ClassifyKind(entry.Path)
		select {
		case out <- core.AcquiredFile{Path: entry.Path, Bytes: content, Kind: kind, Lang: lang}:
		case <-ctx.Done():
			errc <- core.ErrCancelled
			return
		}
	}
}

// skippedErr wraps a per-file failure with its path so the Repository
// Manager can record it as a core.SkippedFile without aborting the run.
// Errors sent on the channel without a path (tree listing, clone, walk,
// Unauthorized) are fatal to the whole run.
func skippedErr(path string, err error) error {
	return core.NewFileError(core.KindOf(err), "acquirer.file", path, fmt.Errorf("%s: %w", path, err))
}
