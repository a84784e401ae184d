// Package acquirer implements the Source Acquirer: given a repository
// descriptor it picks an access mode (remote API, shallow clone, or a
// local directory) and streams the repository's filtered, classified
// files to the caller.
package acquirer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sevigo/reposync/internal/config"
	"github.com/sevigo/reposync/internal/core"
	"github.com/sevigo/reposync/internal/gitutil"
	"github.com/sevigo/reposync/internal/providers"
)

const fileChanBuffer = 32

// ProviderFactory builds a core.Provider for a given kind; normally
// providers.New, overridable in tests.
type ProviderFactory func(kind core.ProviderKind, cfg providers.ApiClientConfig) (core.Provider, error)

// Config parameterizes file filtering and clone placement, independent
// of any single repository's descriptor.
type Config struct {
	MaxFileBytes         int64
	ExcludeGlobs         []string
	BinaryExtensionAllow []string
	CloneWorkDir         string
	UserAgent            string
	RequestTimeoutSecs   int
}

// Acquirer implements core.Acquirer.
type Acquirer struct {
	cfg     Config
	newProv ProviderFactory
	git     *gitutil.Client
	logger  *slog.Logger
}

// New builds an Acquirer. gitClient may be nil, in which case one is
// constructed with the given logger, or slog.Default() when logger is
// also nil (Clone mode requires it).
func New(cfg Config, gitClient *gitutil.Client, logger *slog.Logger) *Acquirer {
	if logger == nil {
		logger = slog.Default()
	}
	if gitClient == nil {
		gitClient = gitutil.NewClient(logger)
	}
	return &Acquirer{cfg: cfg, newProv: providers.New, git: gitClient, logger: logger}
}

func (a *Acquirer) buildFilter(desc core.RepositoryDescriptor) *Filter {
	var excludeDirs, excludeGlobs []string
	if desc.Config != nil {
		excludeDirs = desc.Config.ExcludeDirs
		excludeGlobs = append(excludeGlobs, desc.Config.ExcludeExts...)
	}
	globs := append(append([]string{}, a.cfg.ExcludeGlobs...), toGlobs(excludeGlobs)...)
	return NewFilter(globs, excludeDirs, a.cfg.MaxFileBytes, a.cfg.BinaryExtensionAllow)
}

// toGlobs turns a RepoConfig.ExcludeExts list (bare or dotted extensions)
// into base-name glob patterns, e.g. "log" or ".log" -> "*.log".
func toGlobs(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		out = append(out, "*."+normalizeExt(e))
	}
	return out
}

// Acquire implements core.Acquirer. The returned RepositoryAccess is
// materialized synchronously (mode selection, and for Clone/LocalDir
// modes, local-path resolution); file bytes then stream asynchronously
// over the returned channel.
func (a *Acquirer) Acquire(ctx context.Context, desc core.RepositoryDescriptor, cfg core.AccessConfig) (core.RepositoryAccess, <-chan core.AcquiredFile, <-chan error) {
	mode := selectMode(desc, cfg)
	access := core.RepositoryAccess{Descriptor: desc, Mode: mode}
	out := make(chan core.AcquiredFile, fileChanBuffer)
	errc := make(chan error, fileChanBuffer)
	filter := a.buildFilter(desc)

	switch mode {
	case core.AccessModeAPI:
		token := cfg.Token
		if token == "" {
			token = desc.AccessToken
		}
		prov, err := a.newProv(desc.Provider, providers.ApiClientConfig{
			UserAgent:   a.cfg.UserAgent,
			TimeoutSecs: a.cfg.RequestTimeoutSecs,
			Token:       token,
		})
		if err != nil {
			close(out)
			errc <- core.NewError(core.KindConfig, "acquirer.acquire", err)
			close(errc)
			return access, out, errc
		}
		access.Ready = true
		go a.streamAPI(ctx, prov, desc, filter, out, errc)
		return access, out, errc

	case core.AccessModeClone:
		localPath, err := a.cloneRepo(ctx, desc, cfg)
		if err != nil {
			close(out)
			errc <- err
			close(errc)
			return access, out, errc
		}
		access.LocalPath = localPath
		access.Ready = true
		go a.streamLocalDir(ctx, localPath, a.localFilter(desc, localPath, filter), out, errc)
		return access, out, errc

	case core.AccessModeLocalDir:
		localPath := cfg.CustomLocalPath
		if localPath == "" {
			localPath = desc.URL
		}
		if localPath == "" {
			localPath = desc.Name
		}
		if _, err := os.Stat(localPath); err != nil {
			close(out)
			errc <- core.NewError(core.KindNotFound, "acquirer.acquire", fmt.Errorf("local path %q: %w", localPath, err))
			close(errc)
			return access, out, errc
		}
		access.LocalPath = localPath
		access.Ready = true
		go a.streamLocalDir(ctx, localPath, a.localFilter(desc, localPath, filter), out, errc)
		return access, out, errc

	default:
		close(out)
		errc <- core.NewErrorf(core.KindConfig, "acquirer.acquire", "unsupported access mode %q", mode)
		close(errc)
		return access, out, errc
	}
}

// cloneRepo shallow-clones desc.URL into a repository-scoped subdirectory
// of CloneWorkDir, or reuses it in place if already present; refreshing
// an existing checkout on reindex is the Repository Manager's concern,
// not the Acquirer's.
func (a *Acquirer) cloneRepo(ctx context.Context, desc core.RepositoryDescriptor, cfg core.AccessConfig) (string, error) {
	if desc.URL == "" {
		return "", core.NewErrorf(core.KindValidation, "acquirer.clone", "descriptor has no URL to clone")
	}
	workDir := a.cfg.CloneWorkDir
	if workDir == "" {
		workDir = os.TempDir()
	}
	target := filepath.Join(workDir, safeSegment(desc.Owner), safeSegment(desc.Name))

	token := cfg.Token
	if token == "" {
		token = desc.AccessToken
	}
	depth := cfg.CloneDepth
	if depth <= 0 {
		depth = 1
	}

	if info, err := os.Stat(target); err == nil && info.IsDir() {
		return target, nil
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return "", core.NewError(core.KindConfig, "acquirer.clone", err)
	}
	branch := ""
	if _, err := a.git.CloneShallow(ctx, desc.URL, target, token, branch, depth); err != nil {
		_ = os.RemoveAll(target)
		return "", core.NewError(core.KindNetwork, "acquirer.clone", err)
	}
	return target, nil
}

// localFilter upgrades the descriptor-derived filter with a repository's
// own .reposync.yml once a local checkout is in hand; a descriptor that
// already carries an explicit RepoConfig wins over the checked-in file.
func (a *Acquirer) localFilter(desc core.RepositoryDescriptor, localPath string, fallback *Filter) *Filter {
	if desc.Config != nil {
		return fallback
	}
	rc, err := config.LoadRepoConfig(localPath)
	if err != nil {
		return fallback
	}
	desc.Config = rc
	return a.buildFilter(desc)
}

func safeSegment(s string) string {
	if s == "" {
		return "_"
	}
	return filepath.Base(filepath.Clean("/" + s))
}
