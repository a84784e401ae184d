package providers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/reposync/internal/core"
)

// newGiteaTestServer serves a minimal slice of the Gitea v1 API: one
// repository ("octo/demo" on branch "main") with a paginated tree and
// base64-enveloped file contents.
func newGiteaTestServer(t *testing.T, treeSize int, files map[string]string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/repos/octo/demo", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"name":           "demo",
			"description":    "demo repository",
			"default_branch": "main",
			"private":        false,
			"language":       "Go",
		})
	})

	mux.HandleFunc("/repos/octo/demo/git/trees/main", func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page < 1 {
			page = 1
		}
		const perPage = 100
		start := (page - 1) * perPage
		var entries []map[string]any
		for i := start; i < treeSize && i < start+perPage; i++ {
			entries = append(entries, map[string]any{
				"path": fmt.Sprintf("file%03d.go", i),
				"type": "blob",
				"sha":  fmt.Sprintf("sha%03d", i),
				"size": 10,
			})
		}
		// one directory entry per page, which the adapter must drop
		entries = append(entries, map[string]any{"path": "subdir", "type": "tree", "sha": "deadbeef", "size": 0})
		json.NewEncoder(w).Encode(map[string]any{
			"tree":        entries,
			"truncated":   false,
			"page":        page,
			"total_count": treeSize,
		})
	})

	mux.HandleFunc("/repos/octo/demo/contents/", func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Path[len("/repos/octo/demo/contents/"):]
		content, ok := files[name]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"message":"not found"}`)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"content":  base64.StdEncoding.EncodeToString([]byte(content)),
			"encoding": "base64",
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestGitea(srvURL string) core.Provider {
	return newGiteaAdapter(ApiClientConfig{BaseURL: srvURL, UserAgent: "reposync-test"})
}

func TestGitea_Metadata(t *testing.T) {
	srv := newGiteaTestServer(t, 0, nil)
	p := newTestGitea(srv.URL)

	md, err := p.Metadata(context.Background(), "octo", "demo")
	require.NoError(t, err)
	assert.Equal(t, "demo", md.Name)
	assert.Equal(t, "main", md.DefaultBranch)
	assert.Equal(t, "Go", md.Language)
	assert.False(t, md.Private)
}

func TestGitea_Tree_PaginatesToTheEndOfCursor(t *testing.T) {
	srv := newGiteaTestServer(t, 150, nil)
	p := newTestGitea(srv.URL)

	entries, err := p.Tree(context.Background(), "octo", "demo", "")
	require.NoError(t, err)
	assert.Len(t, entries, 150, "all pages accumulated")
	for _, e := range entries {
		assert.NotEqual(t, "subdir", e.Path, "directory entries are excluded")
	}
	assert.Equal(t, "file000.go", entries[0].Path)
	assert.Equal(t, "file149.go", entries[149].Path)
}

func TestGitea_File_DecodesBase64Envelope(t *testing.T) {
	srv := newGiteaTestServer(t, 0, map[string]string{"main.go": "package main\n"})
	p := newTestGitea(srv.URL)

	content, err := p.File(context.Background(), "octo", "demo", "main.go", "main")
	require.NoError(t, err)
	assert.Equal(t, "package main\n", string(content))
}

func TestGitea_File_NotFound(t *testing.T) {
	srv := newGiteaTestServer(t, 0, nil)
	p := newTestGitea(srv.URL)

	_, err := p.File(context.Background(), "octo", "demo", "missing.go", "main")
	require.Error(t, err)
	assert.Equal(t, core.KindNotFound, core.KindOf(err))
}

func TestGitea_Readme_ProbesCandidatesInOrder(t *testing.T) {
	// README.md (the first candidate) is absent; the plain README name
	// (second candidate) must win before the .rst/.txt variants.
	srv := newGiteaTestServer(t, 0, map[string]string{
		"README":     "plain readme",
		"README.rst": "rst readme",
	})
	p := newTestGitea(srv.URL)

	content, name, err := p.Readme(context.Background(), "octo", "demo", "main")
	require.NoError(t, err)
	assert.Equal(t, "README", name)
	assert.Equal(t, "plain readme", string(content))
}

func TestGitea_Readme_AllCandidatesMissingIsNotAnError(t *testing.T) {
	srv := newGiteaTestServer(t, 0, nil)
	p := newTestGitea(srv.URL)

	content, name, err := p.Readme(context.Background(), "octo", "demo", "main")
	require.NoError(t, err, "an absent README is expected control flow, not a failure")
	assert.Nil(t, content)
	assert.Empty(t, name)
}

func TestGitea_Exists(t *testing.T) {
	srv := newGiteaTestServer(t, 0, nil)
	p := newTestGitea(srv.URL)

	ok, err := p.Exists(context.Background(), "octo", "demo")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.Exists(context.Background(), "octo", "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClassifyStatus_MapsTheTaxonomy(t *testing.T) {
	cases := []struct {
		status int
		want   core.Kind
	}{
		{http.StatusUnauthorized, core.KindUnauthorized},
		{http.StatusForbidden, core.KindForbidden},
		{http.StatusNotFound, core.KindNotFound},
		{http.StatusInternalServerError, core.KindNetwork},
		{http.StatusBadGateway, core.KindNetwork},
	}
	for _, tc := range cases {
		err := classifyStatus("test.op", tc.status, []byte("body snippet"))
		assert.Equalf(t, tc.want, core.KindOf(err), "status %d", tc.status)
	}
}

func TestClassifyStatus_ForbiddenCarriesRecoverySuggestion(t *testing.T) {
	err := classifyStatus("test.op", http.StatusForbidden, []byte("rate limit exceeded"))
	assert.Contains(t, err.Error(), "rate limit", "the response body snippet survives")
	assert.Contains(t, err.Error(), "token", "the recovery suggestion names the token")
}

func TestNew_DispatchesByKind(t *testing.T) {
	for _, kind := range []core.ProviderKind{core.ProviderGitHub, core.ProviderGitLab, core.ProviderBitbucket, core.ProviderGitea, core.ProviderLocal} {
		p, err := New(kind, ApiClientConfig{})
		require.NoErrorf(t, err, "kind %s", kind)
		assert.NotNil(t, p)
	}

	_, err := New("sourcehut", ApiClientConfig{})
	require.Error(t, err)
}
