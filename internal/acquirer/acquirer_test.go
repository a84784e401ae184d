package acquirer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/sevigo/reposync/internal/core"
	"github.com/sevigo/reposync/internal/providers"
	"github.com/sevigo/reposync/mocks"
)

func writeFile(t *testing.T, root, rel string, content []byte) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
	require.NoError(t, os.WriteFile(p, content, 0o600))
}

// drain collects everything the Acquirer streamed, blocking until both
// channels close.
func drain(files <-chan core.AcquiredFile, errs <-chan error) ([]core.AcquiredFile, []error) {
	var outFiles []core.AcquiredFile
	var outErrs []error
	for files != nil || errs != nil {
		select {
		case f, ok := <-files:
			if !ok {
				files = nil
				continue
			}
			outFiles = append(outFiles, f)
		case e, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			outErrs = append(outErrs, e)
		}
	}
	return outFiles, outErrs
}

func TestAcquire_LocalDir_FiltersAndClassifies(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", []byte("package main\n"))
	writeFile(t, root, "README.md", []byte("# demo\n"))
	writeFile(t, root, "node_modules/dep/index.js", []byte("module.exports = 1\n"))
	writeFile(t, root, "big.txt", make([]byte, 2048))
	writeFile(t, root, "blob.bin", []byte{0x00, 0x01, 0x02})

	a := New(Config{MaxFileBytes: 1024}, nil, nil)
	desc := core.RepositoryDescriptor{Provider: core.ProviderLocal, Name: "demo"}

	access, files, errs := a.Acquire(context.Background(), desc, core.AccessConfig{CustomLocalPath: root})
	got, gotErrs := drain(files, errs)

	assert.Equal(t, core.AccessModeLocalDir, access.Mode)
	assert.Equal(t, root, access.LocalPath)
	assert.True(t, access.Ready)
	assert.Empty(t, gotErrs)

	byPath := map[string]core.AcquiredFile{}
	for _, f := range got {
		byPath[f.Path] = f
	}
	require.Len(t, byPath, 2, "only main.go and README.md survive the filter, got %v", byPath)
	assert.Equal(t, core.FileKindCode, byPath["main.go"].Kind)
	assert.Equal(t, "go", byPath["main.go"].Lang)
	assert.Equal(t, core.FileKindDoc, byPath["README.md"].Kind)
}

func TestAcquire_LocalDir_HonorsRepoScopedConfigFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".reposync.yml", []byte("exclude_exts: [\"log\"]\nexclude_dirs: [\"generated\"]\n"))
	writeFile(t, root, "main.go", []byte("package main\n"))
	writeFile(t, root, "debug.log", []byte("noise\n"))
	writeFile(t, root, "generated/out.go", []byte("package out\n"))

	a := New(Config{}, nil, nil)
	desc := core.RepositoryDescriptor{Provider: core.ProviderLocal, Name: "demo"}

	_, files, errs := a.Acquire(context.Background(), desc, core.AccessConfig{CustomLocalPath: root})
	got, gotErrs := drain(files, errs)

	assert.Empty(t, gotErrs)
	paths := make([]string, 0, len(got))
	for _, f := range got {
		paths = append(paths, f.Path)
	}
	assert.Contains(t, paths, "main.go")
	assert.NotContains(t, paths, "debug.log")
	assert.NotContains(t, paths, "generated/out.go")
}

func TestAcquire_LocalDir_MissingPath(t *testing.T) {
	a := New(Config{}, nil, nil)
	desc := core.RepositoryDescriptor{Provider: core.ProviderLocal, Name: "demo"}

	_, files, errs := a.Acquire(context.Background(), desc, core.AccessConfig{CustomLocalPath: "/does/not/exist"})
	got, gotErrs := drain(files, errs)

	assert.Empty(t, got)
	require.Len(t, gotErrs, 1)
	assert.Equal(t, core.KindNotFound, core.KindOf(gotErrs[0]))
}

func apiAcquirer(prov core.Provider) *Acquirer {
	a := New(Config{}, nil, nil)
	a.newProv = func(core.ProviderKind, providers.ApiClientConfig) (core.Provider, error) {
		return prov, nil
	}
	return a
}

func TestAcquire_API_SkipsFailedFiles(t *testing.T) {
	ctrl := gomock.NewController(t)
	prov := mocks.NewMockProvider(ctrl)

	entries := []core.TreeEntry{
		{Path: "ok.go", Size: 10},
		{Path: "gone.go", Size: 10},
		{Path: "docs/guide.md", Size: 10},
	}
	prov.EXPECT().Tree(gomock.Any(), "octo", "demo", "").Return(entries, nil)
	prov.EXPECT().File(gomock.Any(), "octo", "demo", "ok.go", "").Return([]byte("package ok\n"), nil)
	prov.EXPECT().File(gomock.Any(), "octo", "demo", "gone.go", "").
		Return(nil, core.NewErrorf(core.KindNotFound, "test.file", "blob missing"))
	prov.EXPECT().File(gomock.Any(), "octo", "demo", "docs/guide.md", "").Return([]byte("# guide\n"), nil)

	a := apiAcquirer(prov)
	desc := core.RepositoryDescriptor{Provider: core.ProviderGitHub, Owner: "octo", Name: "demo", URL: "https://github.com/octo/demo"}

	access, files, errs := a.Acquire(context.Background(), desc, core.AccessConfig{})
	got, gotErrs := drain(files, errs)

	assert.Equal(t, core.AccessModeAPI, access.Mode)
	require.Len(t, got, 2, "the failed file is skipped, not fatal")
	require.Len(t, gotErrs, 1)
	assert.Equal(t, "gone.go", core.PathOf(gotErrs[0]), "the skip error names the file for skipped_files accounting")
}

func TestAcquire_API_TreeFailureIsSentWithoutAPath(t *testing.T) {
	ctrl := gomock.NewController(t)
	prov := mocks.NewMockProvider(ctrl)
	prov.EXPECT().Tree(gomock.Any(), "octo", "demo", "").
		Return(nil, core.NewErrorf(core.KindNotFound, "test.tree", "no such repository"))

	a := apiAcquirer(prov)
	desc := core.RepositoryDescriptor{Provider: core.ProviderGitHub, Owner: "octo", Name: "demo", URL: "https://github.com/octo/demo"}

	_, files, errs := a.Acquire(context.Background(), desc, core.AccessConfig{})
	got, gotErrs := drain(files, errs)

	assert.Empty(t, got)
	require.Len(t, gotErrs, 1)
	assert.Equal(t, core.KindNotFound, core.KindOf(gotErrs[0]))
	assert.Empty(t, core.PathOf(gotErrs[0]), "a repository-level failure carries no path, marking it fatal to the run")
}

func TestAcquire_API_UnauthorizedAbortsTheRun(t *testing.T) {
	ctrl := gomock.NewController(t)
	prov := mocks.NewMockProvider(ctrl)

	entries := []core.TreeEntry{
		{Path: "secret.go", Size: 10},
		{Path: "never-reached.go", Size: 10},
	}
	prov.EXPECT().Tree(gomock.Any(), "octo", "demo", "").Return(entries, nil)
	prov.EXPECT().File(gomock.Any(), "octo", "demo", "secret.go", "").
		Return(nil, core.NewErrorf(core.KindUnauthorized, "test.file", "token rejected"))

	a := apiAcquirer(prov)
	desc := core.RepositoryDescriptor{Provider: core.ProviderGitHub, Owner: "octo", Name: "demo", URL: "https://github.com/octo/demo"}

	_, files, errs := a.Acquire(context.Background(), desc, core.AccessConfig{})
	got, gotErrs := drain(files, errs)

	assert.Empty(t, got)
	require.Len(t, gotErrs, 1)
	assert.Equal(t, core.KindUnauthorized, core.KindOf(gotErrs[0]))
}

func TestAcquire_API_BinarySniffAppliesToFetchedContent(t *testing.T) {
	ctrl := gomock.NewController(t)
	prov := mocks.NewMockProvider(ctrl)

	prov.EXPECT().Tree(gomock.Any(), "octo", "demo", "").
		Return([]core.TreeEntry{{Path: "asset.dat", Size: 10}}, nil)
	prov.EXPECT().File(gomock.Any(), "octo", "demo", "asset.dat", "").
		Return([]byte{0x00, 0xff, 0x00}, nil)

	a := apiAcquirer(prov)
	desc := core.RepositoryDescriptor{Provider: core.ProviderGitHub, Owner: "octo", Name: "demo", URL: "https://github.com/octo/demo"}

	_, files, errs := a.Acquire(context.Background(), desc, core.AccessConfig{})
	got, gotErrs := drain(files, errs)

	assert.Empty(t, got, "NUL-sniffed content is dropped even though the tree listed it")
	assert.Empty(t, gotErrs)
}
