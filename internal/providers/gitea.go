package providers

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"

	"github.com/sevigo/reposync/internal/core"
	"github.com/sevigo/reposync/internal/providers/httpapi"
)

// giteaAdapter talks to a self-hosted Gitea (or Forgejo) instance's API v1,
// which mirrors GitHub's shape closely, including base64-encoded file
// content in a JSON envelope.
type giteaAdapter struct {
	c *httpapi.Client
}

func newGiteaAdapter(cfg ApiClientConfig) core.Provider {
	base := cfg.BaseURL
	if base == "" {
		base = "http://localhost:3000/api/v1"
	}
	return &giteaAdapter{c: httpapi.New(httpapi.Config{
		BaseURL:   base,
		Token:     cfg.Token,
		UserAgent: cfg.UserAgent,
		Headers:   mergeHeader(cfg.Headers, "Authorization", tokenHeader(cfg.Token)),
	})}
}

func tokenHeader(token string) string {
	if token == "" {
		return ""
	}
	return "token " + token
}

type giteaRepo struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	DefaultBranch string `json:"default_branch"`
	Private       bool   `json:"private"`
	Language      string `json:"language"`
}

func (a *giteaAdapter) getRepo(ctx context.Context, owner, repo string) (giteaRepo, int, error) {
	var r giteaRepo
	status, body, err := a.c.GetJSON(ctx, "/repos/"+owner+"/"+repo, nil, &r)
	if err != nil {
		return r, status, core.NewError(core.KindNetwork, "gitea.repo", err)
	}
	if status < 200 || status >= 300 {
		return r, status, classifyStatus("gitea.repo", status, body)
	}
	return r, status, nil
}

func (a *giteaAdapter) Metadata(ctx context.Context, owner, repo string) (core.RepositoryMetadata, error) {
	r, _, err := a.getRepo(ctx, owner, repo)
	if err != nil {
		return core.RepositoryMetadata{}, err
	}
	return core.RepositoryMetadata{
		Name: r.Name, Description: r.Description, DefaultBranch: r.DefaultBranch,
		Language: r.Language, Private: r.Private,
	}, nil
}

func (a *giteaAdapter) DefaultBranch(ctx context.Context, owner, repo string) (string, error) {
	r, _, err := a.getRepo(ctx, owner, repo)
	if err != nil {
		return "", err
	}
	return r.DefaultBranch, nil
}

func (a *giteaAdapter) Exists(ctx context.Context, owner, repo string) (bool, error) {
	_, status, err := a.getRepo(ctx, owner, repo)
	if status == 404 {
		return false, nil
	}
	return err == nil, err
}

type giteaTreeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"` // "blob" or "tree"
	SHA  string `json:"sha"`
	Size int64  `json:"size"`
}

type giteaTreeResponse struct {
	Tree              []giteaTreeEntry `json:"tree"`
	Truncated         bool             `json:"truncated"`
	Page              int              `json:"page"`
	TotalCount        int              `json:"total_count"`
}

// Tree paginates by page number until Gitea reports the last page
// (page*per-page count exceeds total_count), accumulating blob entries.
func (a *giteaAdapter) Tree(ctx context.Context, owner, repo, branch string) ([]core.TreeEntry, error) {
	if branch == "" {
		var err error
		branch, err = a.DefaultBranch(ctx, owner, repo)
		if err != nil {
			return nil, err
		}
	}
	var out []core.TreeEntry
	page := 1
	for {
		q := url.Values{"recursive": {"true"}, "per_page": {"100"}, "page": {fmt.Sprint(page)}}
		var resp giteaTreeResponse
		status, body, err := a.c.GetJSON(ctx, "/repos/"+owner+"/"+repo+"/git/trees/"+branch, q, &resp)
		if err != nil {
			return nil, core.NewError(core.KindNetwork, "gitea.tree", err)
		}
		if status < 200 || status >= 300 {
			return nil, classifyStatus("gitea.tree", status, body)
		}
		for _, e := range resp.Tree {
			if e.Type == "blob" {
				out = append(out, core.TreeEntry{Path: e.Path, SHA: e.SHA, Size: e.Size})
			}
		}
		if len(resp.Tree) == 0 || page*100 >= resp.TotalCount {
			break
		}
		page++
	}
	return out, nil
}

type giteaContent struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

func (a *giteaAdapter) File(ctx context.Context, owner, repo, path, branch string) ([]byte, error) {
	q := url.Values{}
	if branch != "" {
		q.Set("ref", branch)
	}
	var c giteaContent
	status, body, err := a.c.GetJSON(ctx, "/repos/"+owner+"/"+repo+"/contents/"+path, q, &c)
	if err != nil {
		return nil, core.NewError(core.KindNetwork, "gitea.file", err)
	}
	if status < 200 || status >= 300 {
		return nil, classifyStatus("gitea.file", status, body)
	}
	if c.Encoding != "base64" {
		return []byte(c.Content), nil
	}
	raw, err := base64.StdEncoding.DecodeString(c.Content)
	if err != nil {
		return nil, core.NewError(core.KindMalformed, "gitea.file", err)
	}
	return raw, nil
}

func (a *giteaAdapter) Readme(ctx context.Context, owner, repo, branch string) ([]byte, string, error) {
	return probeReadme(ctx, a, owner, repo, branch)
}
