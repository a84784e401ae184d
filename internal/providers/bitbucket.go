package providers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sevigo/reposync/internal/core"
	"github.com/sevigo/reposync/internal/providers/httpapi"
)

const bitbucketDefaultBaseURL = "https://api.bitbucket.org/2.0"

// bitbucketAdapter talks to the Bitbucket Cloud REST v2 API. Its src
// endpoint returns raw file bytes directly with no JSON envelope; GitLab
// and Gitea both base64-encode content in a JSON body instead.
type bitbucketAdapter struct {
	c *httpapi.Client
}

func newBitbucketAdapter(cfg ApiClientConfig) core.Provider {
	base := cfg.BaseURL
	if base == "" {
		base = bitbucketDefaultBaseURL
	}
	return &bitbucketAdapter{c: httpapi.New(httpapi.Config{
		BaseURL:    base,
		Token:      cfg.Token,
		UserAgent:  cfg.UserAgent,
		BearerAuth: true,
		Headers:    cfg.Headers,
	})}
}

type bitbucketRepo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsPrivate   bool   `json:"is_private"`
	MainBranch  struct {
		Name string `json:"name"`
	} `json:"mainbranch"`
	Language string `json:"language"`
}

func (a *bitbucketAdapter) getRepo(ctx context.Context, owner, repo string) (bitbucketRepo, int, error) {
	var r bitbucketRepo
	status, body, err := a.c.GetJSON(ctx, "/repositories/"+owner+"/"+repo, nil, &r)
	if err != nil {
		return r, status, core.NewError(core.KindNetwork, "bitbucket.repo", err)
	}
	if status < 200 || status >= 300 {
		return r, status, classifyStatus("bitbucket.repo", status, body)
	}
	return r, status, nil
}

func (a *bitbucketAdapter) Metadata(ctx context.Context, owner, repo string) (core.RepositoryMetadata, error) {
	r, _, err := a.getRepo(ctx, owner, repo)
	if err != nil {
		return core.RepositoryMetadata{}, err
	}
	return core.RepositoryMetadata{
		Name: r.Name, Description: r.Description, DefaultBranch: r.MainBranch.Name,
		Language: r.Language, Private: r.IsPrivate,
	}, nil
}

func (a *bitbucketAdapter) DefaultBranch(ctx context.Context, owner, repo string) (string, error) {
	r, _, err := a.getRepo(ctx, owner, repo)
	if err != nil {
		return "", err
	}
	return r.MainBranch.Name, nil
}

func (a *bitbucketAdapter) Exists(ctx context.Context, owner, repo string) (bool, error) {
	_, status, err := a.getRepo(ctx, owner, repo)
	if status == 404 {
		return false, nil
	}
	return err == nil, err
}

type bitbucketSrcEntry struct {
	Path string `json:"path"`
	Type string `json:"type"` // "commit_file" or "commit_directory"
	Size int64  `json:"size"`
}

type bitbucketSrcPage struct {
	Values []bitbucketSrcEntry `json:"values"`
	Next   string              `json:"next"`
}

// Tree recurses into directories, following the "next" page-URL cursor
// within each directory listing until the provider stops returning one.
func (a *bitbucketAdapter) Tree(ctx context.Context, owner, repo, branch string) ([]core.TreeEntry, error) {
	if branch == "" {
		var err error
		branch, err = a.DefaultBranch(ctx, owner, repo)
		if err != nil {
			return nil, err
		}
	}
	return a.walkDir(ctx, owner, repo, branch, "")
}

func (a *bitbucketAdapter) walkDir(ctx context.Context, owner, repo, branch, dir string) ([]core.TreeEntry, error) {
	var out []core.TreeEntry
	path := "/repositories/" + owner + "/" + repo + "/src/" + branch + "/" + dir
	nextPath := path
	for nextPath != "" {
		status, body, err := a.c.Get(ctx, nextPath, nil)
		if err != nil {
			return nil, core.NewError(core.KindNetwork, "bitbucket.tree", err)
		}
		if status < 200 || status >= 300 {
			return nil, classifyStatus("bitbucket.tree", status, body)
		}
		var page bitbucketSrcPage
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, core.NewError(core.KindMalformed, "bitbucket.tree", err)
		}
		for _, e := range page.Values {
			switch e.Type {
			case "commit_file":
				out = append(out, core.TreeEntry{Path: e.Path, Size: e.Size})
			case "commit_directory":
				sub, err := a.walkDir(ctx, owner, repo, branch, e.Path)
				if err != nil {
					return nil, err
				}
				out = append(out, sub...)
			}
		}
		nextPath = relativeCursor(page.Next)
	}
	return out, nil
}

// relativeCursor strips the Bitbucket API host/prefix from a "next" URL so
// it can be re-issued through our Client, which always joins onto its own
// base URL.
func relativeCursor(next string) string {
	if next == "" {
		return ""
	}
	idx := indexAfter(next, "/2.0")
	if idx < 0 {
		return ""
	}
	return next[idx:]
}

func indexAfter(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func (a *bitbucketAdapter) File(ctx context.Context, owner, repo, path, branch string) ([]byte, error) {
	if branch == "" {
		var err error
		branch, err = a.DefaultBranch(ctx, owner, repo)
		if err != nil {
			return nil, err
		}
	}
	status, body, err := a.c.Get(ctx, fmt.Sprintf("/repositories/%s/%s/src/%s/%s", owner, repo, branch, path), nil)
	if err != nil {
		return nil, core.NewError(core.KindNetwork, "bitbucket.file", err)
	}
	if status < 200 || status >= 300 {
		return nil, classifyStatus("bitbucket.file", status, body)
	}
	return body, nil
}

func (a *bitbucketAdapter) Readme(ctx context.Context, owner, repo, branch string) ([]byte, string, error) {
	return probeReadme(ctx, a, owner, repo, branch)
}
