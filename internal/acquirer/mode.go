package acquirer

import "github.com/sevigo/reposync/internal/core"

// selectMode picks the access mode: honor ForceMode
// when set; else Local always resolves to LocalDir; else honor an
// explicit PreferredMode; else prefer API when the descriptor carries a
// usable URL (every remote provider variant supports API access),
// falling back to Clone when it doesn't.
func selectMode(desc core.RepositoryDescriptor, cfg core.AccessConfig) core.AccessMode {
	if cfg.ForceMode != "" {
		return cfg.ForceMode
	}
	if desc.Provider == core.ProviderLocal {
		return core.AccessModeLocalDir
	}
	if cfg.PreferredMode != "" {
		return cfg.PreferredMode
	}
	if desc.URL != "" {
		return core.AccessModeAPI
	}
	return core.AccessModeClone
}
