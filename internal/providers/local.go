package providers

import (
	"context"
	"os"
	"path/filepath"

	"github.com/sevigo/reposync/internal/core"
)

// localAdapter walks a filesystem path directly, confirming that the
// Local provider kind needs no network client at all: "owner" is the
// parent directory and "repo" is the path to the repository root,
// exactly as the descriptor's URL carries it for this kind.
type localAdapter struct{}

func newLocalAdapter() core.Provider { return &localAdapter{} }

func localRoot(owner, repo string) string {
	if owner == "" {
		return repo
	}
	return filepath.Join(owner, repo)
}

func (a *localAdapter) Metadata(_ context.Context, owner, repo string) (core.RepositoryMetadata, error) {
	root := localRoot(owner, repo)
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return core.RepositoryMetadata{}, core.NewError(core.KindNotFound, "local.metadata", err)
		}
		return core.RepositoryMetadata{}, core.NewError(core.KindNetwork, "local.metadata", err)
	}
	return core.RepositoryMetadata{Name: filepath.Base(root), DefaultBranch: "", Private: info.Mode().Perm()&0o044 == 0}, nil
}

func (a *localAdapter) DefaultBranch(_ context.Context, _, _ string) (string, error) {
	return "", nil
}

func (a *localAdapter) Exists(_ context.Context, owner, repo string) (bool, error) {
	_, err := os.Stat(localRoot(owner, repo))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, core.NewError(core.KindNetwork, "local.exists", err)
	}
	return true, nil
}

func (a *localAdapter) Tree(_ context.Context, owner, repo, _ string) ([]core.TreeEntry, error) {
	root := localRoot(owner, repo)
	var out []core.TreeEntry
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		info, infoErr := d.Info()
		if infoErr != nil {
			return infoErr
		}
		out = append(out, core.TreeEntry{Path: filepath.ToSlash(rel), Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, core.NewError(core.KindNetwork, "local.tree", err)
	}
	return out, nil
}

func (a *localAdapter) File(_ context.Context, owner, repo, path, _ string) ([]byte, error) {
	full := filepath.Join(localRoot(owner, repo), path)
	b, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, core.NewError(core.KindNotFound, "local.file", err)
		}
		return nil, core.NewError(core.KindNetwork, "local.file", err)
	}
	return b, nil
}

func (a *localAdapter) Readme(ctx context.Context, owner, repo, branch string) ([]byte, string, error) {
	return probeReadme(ctx, a, owner, repo, branch)
}
