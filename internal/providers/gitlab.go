package providers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/sevigo/reposync/internal/core"
	"github.com/sevigo/reposync/internal/providers/httpapi"
)

const gitlabDefaultBaseURL = "https://gitlab.com/api/v4"

// gitlabAdapter talks to the GitLab REST v4 API. Its file-content endpoint
// base64-encodes content in a JSON envelope; Bitbucket is the direct-raw
// variant.
type gitlabAdapter struct {
	c *httpapi.Client
}

func newGitLabAdapter(cfg ApiClientConfig) core.Provider {
	base := cfg.BaseURL
	if base == "" {
		base = gitlabDefaultBaseURL
	}
	return &gitlabAdapter{c: httpapi.New(httpapi.Config{
		BaseURL:   base,
		Token:     cfg.Token,
		UserAgent: cfg.UserAgent,
		Headers:   mergeHeader(cfg.Headers, "PRIVATE-TOKEN", cfg.Token),
	})}
}

func mergeHeader(h map[string]string, key, val string) map[string]string {
	if val == "" {
		return h
	}
	out := make(map[string]string, len(h)+1)
	for k, v := range h {
		out[k] = v
	}
	out[key] = val
	return out
}

func projectID(owner, repo string) string {
	return url.PathEscape(owner + "/" + repo)
}

type gitlabProject struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	DefaultBranch string `json:"default_branch"`
	Visibility    string `json:"visibility"`
}

func (a *gitlabAdapter) getProject(ctx context.Context, owner, repo string) (gitlabProject, int, error) {
	var p gitlabProject
	status, body, err := a.c.GetJSON(ctx, "/projects/"+projectID(owner, repo), nil, &p)
	if err != nil {
		return p, status, core.NewError(core.KindNetwork, "gitlab.project", err)
	}
	if status < 200 || status >= 300 {
		return p, status, classifyStatus("gitlab.project", status, body)
	}
	return p, status, nil
}

func (a *gitlabAdapter) Metadata(ctx context.Context, owner, repo string) (core.RepositoryMetadata, error) {
	p, _, err := a.getProject(ctx, owner, repo)
	if err != nil {
		return core.RepositoryMetadata{}, err
	}
	return core.RepositoryMetadata{
		Name:          p.Name,
		Description:   p.Description,
		DefaultBranch: p.DefaultBranch,
		Private:       p.Visibility != "public",
	}, nil
}

func (a *gitlabAdapter) DefaultBranch(ctx context.Context, owner, repo string) (string, error) {
	p, _, err := a.getProject(ctx, owner, repo)
	if err != nil {
		return "", err
	}
	return p.DefaultBranch, nil
}

func (a *gitlabAdapter) Exists(ctx context.Context, owner, repo string) (bool, error) {
	_, status, err := a.getProject(ctx, owner, repo)
	if status == 404 {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

type gitlabTreeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"` // "blob" or "tree"
	ID   string `json:"id"`
}

// Tree paginates via the X-Next-Page response header until GitLab reports
// it empty.
func (a *gitlabAdapter) Tree(ctx context.Context, owner, repo, branch string) ([]core.TreeEntry, error) {
	var out []core.TreeEntry
	page := "1"
	path := "/projects/" + projectID(owner, repo) + "/repository/tree"
	for page != "" {
		q := url.Values{"recursive": {"true"}, "per_page": {"100"}, "page": {page}}
		if branch != "" {
			q.Set("ref", branch)
		}
		status, hdr, body, err := a.c.GetWithHeaders(ctx, path, q)
		if err != nil {
			return nil, core.NewError(core.KindNetwork, "gitlab.tree", err)
		}
		if status < 200 || status >= 300 {
			return nil, classifyStatus("gitlab.tree", status, body)
		}
		var entries []gitlabTreeEntry
		if err := json.Unmarshal(body, &entries); err != nil {
			return nil, core.NewError(core.KindMalformed, "gitlab.tree", err)
		}
		for _, e := range entries {
			if e.Type == "blob" {
				out = append(out, core.TreeEntry{Path: e.Path, SHA: e.ID})
			}
		}
		page = hdr.Get("X-Next-Page")
	}
	return out, nil
}

type gitlabFile struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

func (a *gitlabAdapter) File(ctx context.Context, owner, repo, path, branch string) ([]byte, error) {
	q := url.Values{}
	if branch != "" {
		q.Set("ref", branch)
	}
	encoded := url.PathEscape(path)
	var f gitlabFile
	status, body, err := a.c.GetJSON(ctx, "/projects/"+projectID(owner, repo)+"/repository/files/"+encoded, q, &f)
	if err != nil {
		return nil, core.NewError(core.KindNetwork, "gitlab.file", err)
	}
	if status < 200 || status >= 300 {
		return nil, classifyStatus("gitlab.file", status, body)
	}
	if f.Encoding != "base64" {
		return []byte(f.Content), nil
	}
	raw, err := base64.StdEncoding.DecodeString(f.Content)
	if err != nil {
		return nil, core.NewError(core.KindMalformed, "gitlab.file", fmt.Errorf("decode base64: %w", err))
	}
	return raw, nil
}

func (a *gitlabAdapter) Readme(ctx context.Context, owner, repo, branch string) ([]byte, string, error) {
	return probeReadme(ctx, a, owner, repo, branch)
}

// probeReadme is the shared README-probing loop used by every REST-based
// adapter (GitLab, Bitbucket, Gitea): try each candidate name in order,
// stop at the first success, return "not found" without error if all fail.
func probeReadme(ctx context.Context, p core.Provider, owner, repo, branch string) ([]byte, string, error) {
	for _, name := range readmeCandidates {
		b, err := p.File(ctx, owner, repo, name, branch)
		if err == nil {
			return b, name, nil
		}
		if core.KindOf(err) != core.KindNotFound {
			return nil, "", err
		}
	}
	return nil, "", nil
}
