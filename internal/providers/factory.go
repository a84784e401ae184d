package providers

import (
	"fmt"

	"github.com/sevigo/reposync/internal/core"
)

// ApiClientConfig is the shared HTTP client configuration every adapter
// accepts: user agent, timeout, custom headers, optional bearer token.
// TimeoutSecs is not read by any adapter (the REST adapters keep the
// httpapi client's default timeout), and the GitHub adapter does not send
// Headers; only the GitLab, Gitea and Bitbucket adapters do.
type ApiClientConfig struct {
	UserAgent   string
	TimeoutSecs int
	Headers     map[string]string
	Token       string
	BaseURL     string // override for self-hosted Gitea/GitLab/Bitbucket Server instances
}

// readmeCandidates is the fixed ordered probe list shared by every
// adapter; the first candidate that resolves wins. The plain "README"
// name is checked before the less common .rst/.txt variants, plus the
// two case-variant spellings hosted repositories commonly use.
var readmeCandidates = []string{
	"README.md", "README", "README.rst", "README.txt", "Readme.md", "readme.md",
}

// New maps a ProviderKind to a constructed core.Provider: small structs
// satisfying one interface, no deep hierarchy.
func New(kind core.ProviderKind, cfg ApiClientConfig) (core.Provider, error) {
	switch kind {
	case core.ProviderGitHub:
		return newGitHubAdapter(cfg)
	case core.ProviderGitLab:
		return newGitLabAdapter(cfg), nil
	case core.ProviderBitbucket:
		return newBitbucketAdapter(cfg), nil
	case core.ProviderGitea:
		return newGiteaAdapter(cfg), nil
	case core.ProviderLocal:
		return newLocalAdapter(), nil
	default:
		return nil, fmt.Errorf("providers: unsupported provider kind %q", kind)
	}
}
