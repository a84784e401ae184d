package providers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/go-github/v73/github"
	"golang.org/x/oauth2"

	"github.com/sevigo/reposync/internal/core"
	"github.com/sevigo/reposync/internal/retry"
)

// githubAdapter wraps google/go-github/v73. GitHub's API always
// base64-encodes file content in a JSON envelope; the SDK's
// RepositoryContent.GetContent decodes it, so this adapter never touches
// base64 itself.
type githubAdapter struct {
	client *github.Client
	retry  retry.Config
}

func newGitHubAdapter(cfg ApiClientConfig) (core.Provider, error) {
	httpClient := &http.Client{}
	if cfg.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
		httpClient = oauth2.NewClient(context.Background(), ts)
	}
	client := github.NewClient(httpClient)
	if cfg.BaseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(cfg.BaseURL, cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("github: invalid enterprise base url: %w", err)
		}
	}
	if cfg.UserAgent != "" {
		client.UserAgent = cfg.UserAgent
	}
	return &githubAdapter{client: client, retry: retry.DefaultConfig()}, nil
}

// do runs one SDK call under the shared backoff discipline; fn returns an
// already-classified error so transient kinds are retried and the rest
// surface immediately.
func (a *githubAdapter) do(ctx context.Context, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, a.retry, core.IsRetryable, fn)
}

func (a *githubAdapter) Metadata(ctx context.Context, owner, repo string) (core.RepositoryMetadata, error) {
	var r *github.Repository
	err := a.do(ctx, func(ctx context.Context) error {
		got, resp, err := a.client.Repositories.Get(ctx, owner, repo)
		if err != nil {
			return mapGitHubErr(ctx, "github.metadata", resp, err)
		}
		r = got
		return nil
	})
	if err != nil {
		return core.RepositoryMetadata{}, err
	}
	return core.RepositoryMetadata{
		Name:          r.GetName(),
		Description:   r.GetDescription(),
		DefaultBranch: r.GetDefaultBranch(),
		Language:      r.GetLanguage(),
		Private:       r.GetPrivate(),
	}, nil
}

func (a *githubAdapter) DefaultBranch(ctx context.Context, owner, repo string) (string, error) {
	var r *github.Repository
	err := a.do(ctx, func(ctx context.Context) error {
		got, resp, err := a.client.Repositories.Get(ctx, owner, repo)
		if err != nil {
			return mapGitHubErr(ctx, "github.default_branch", resp, err)
		}
		r = got
		return nil
	})
	if err != nil {
		return "", err
	}
	return r.GetDefaultBranch(), nil
}

func (a *githubAdapter) Exists(ctx context.Context, owner, repo string) (bool, error) {
	err := a.do(ctx, func(ctx context.Context) error {
		_, resp, err := a.client.Repositories.Get(ctx, owner, repo)
		if err != nil {
			return mapGitHubErr(ctx, "github.exists", resp, err)
		}
		return nil
	})
	if core.KindOf(err) == core.KindNotFound {
		return false, nil
	}
	return err == nil, err
}

// Tree paginates by recursing into directories whenever GitHub reports the
// recursive tree as truncated, accumulating blob entries only until no
// further truncation is signalled; GitHub has no page cursor for trees,
// so "continue until the provider signals end-of-cursor" here means
// "continue descending until Truncated is false."
func (a *githubAdapter) Tree(ctx context.Context, owner, repo, branch string) ([]core.TreeEntry, error) {
	if branch == "" {
		var err error
		branch, err = a.DefaultBranch(ctx, owner, repo)
		if err != nil {
			return nil, err
		}
	}
	var t *github.Tree
	err := a.do(ctx, func(ctx context.Context) error {
		got, resp, err := a.client.Git.GetTree(ctx, owner, repo, branch, true)
		if err != nil {
			return mapGitHubErr(ctx, "github.tree", resp, err)
		}
		t = got
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !t.GetTruncated() {
		return blobEntries(t.Entries), nil
	}
	return a.walkTree(ctx, owner, repo, branch, "")
}

func (a *githubAdapter) walkTree(ctx context.Context, owner, repo, branch, path string) ([]core.TreeEntry, error) {
	ref := branch
	if path != "" {
		ref = path
	}
	var t *github.Tree
	err := a.do(ctx, func(ctx context.Context) error {
		got, resp, err := a.client.Git.GetTree(ctx, owner, repo, ref, false)
		if err != nil {
			return mapGitHubErr(ctx, "github.tree", resp, err)
		}
		t = got
		return nil
	})
	if err != nil {
		return nil, err
	}
	var out []core.TreeEntry
	for _, e := range t.Entries {
		if e.GetType() == "tree" {
			sub, err := a.walkTree(ctx, owner, repo, branch, e.GetSHA())
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
			continue
		}
		if e.GetType() == "blob" {
			out = append(out, core.TreeEntry{Path: e.GetPath(), Size: int64(e.GetSize()), SHA: e.GetSHA()})
		}
	}
	return out, nil
}

func blobEntries(entries []*github.TreeEntry) []core.TreeEntry {
	var out []core.TreeEntry
	for _, e := range entries {
		if e.GetType() != "blob" {
			continue
		}
		out = append(out, core.TreeEntry{Path: e.GetPath(), Size: int64(e.GetSize()), SHA: e.GetSHA()})
	}
	return out
}

func (a *githubAdapter) File(ctx context.Context, owner, repo, path, branch string) ([]byte, error) {
	var opts *github.RepositoryContentGetOptions
	if branch != "" {
		opts = &github.RepositoryContentGetOptions{Ref: branch}
	}
	var content *github.RepositoryContent
	err := a.do(ctx, func(ctx context.Context) error {
		got, _, resp, err := a.client.Repositories.GetContents(ctx, owner, repo, path, opts)
		if err != nil {
			return mapGitHubErr(ctx, "github.file", resp, err)
		}
		content = got
		return nil
	})
	if err != nil {
		return nil, err
	}
	if content == nil {
		return nil, core.NewErrorf(core.KindNotFound, "github.file", "%s is a directory, not a file", path)
	}
	s, err := content.GetContent()
	if err != nil {
		return nil, core.NewError(core.KindMalformed, "github.file", err)
	}
	return []byte(s), nil
}

// Readme probes the fixed candidate list until one resolves, returning
// "not found" (no error) if all fail.
func (a *githubAdapter) Readme(ctx context.Context, owner, repo, branch string) ([]byte, string, error) {
	for _, name := range readmeCandidates {
		b, err := a.File(ctx, owner, repo, name, branch)
		if err == nil {
			return b, name, nil
		}
		if core.KindOf(err) != core.KindNotFound {
			return nil, "", err
		}
	}
	return nil, "", nil
}

func mapGitHubErr(_ context.Context, op string, resp *github.Response, err error) error {
	if resp == nil {
		return core.NewError(core.KindNetwork, op, err)
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return core.NewError(core.KindUnauthorized, op, err)
	case http.StatusForbidden:
		return &core.CoreError{Kind: core.KindForbidden, Op: op, Err: err, Suggestion: "check token scope or GitHub rate limit"}
	case http.StatusNotFound:
		return core.NewError(core.KindNotFound, op, err)
	case http.StatusTooManyRequests:
		return core.NewError(core.KindRateLimited, op, err)
	default:
		return core.NewError(core.KindNetwork, op, err)
	}
}
