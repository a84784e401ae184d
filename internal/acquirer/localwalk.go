package acquirer

import (
	"context"
	"os"
	"path/filepath"

	"github.com/sevigo/reposync/internal/core"
)

// streamLocalDir walks root (a clone checkout or an operator-supplied
// directory) and yields filtered, classified files. Shared by both the
// Clone and LocalDir access modes once a local path is in hand.
func (a *Acquirer) streamLocalDir(ctx context.Context, root string, filter *Filter, out chan<- core.AcquiredFile, errc chan<- error) {
	defer close(out)
	defer close(errc)

	err := filepath.WalkDir(root, func(p string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		select {
		case <-ctx.Done():
			return context.Canceled
		default:
		}
		if d.IsDir() {
			if d.Name() != "." && buildCacheDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		info, infoErr := d.Info()
		if infoErr != nil {
			return nil
		}
		if ok, _ := filter.Accept(rel, info.Size()); !ok {
			return nil
		}

		content, readErr := os.ReadFile(p)
		if readErr != nil {
			errc <- skippedErr(rel, core.NewError(core.KindNetwork, "acquirer.localfile", readErr))
			return nil
		}
		if binary, _ := filter.RejectBinary(rel, content); binary {
			return nil
		}

		kind, lang := ClassifyKind(rel)
		select {
		case out <- core.AcquiredFile{Path: rel, Bytes: content, Kind: kind, Lang: lang}:
		case <-ctx.Done():
			return context.Canceled
		}
		return nil
	})
	if err != nil && err != context.Canceled {
		errc <- core.NewError(core.KindNetwork, "acquirer.walk", err)
	}
}
