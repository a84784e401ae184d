package acquirer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sevigo/reposync/internal/core"
)

func TestAccept_SizeCapBoundary(t *testing.T) {
	f := NewFilter(nil, nil, 100, nil)

	ok, _ := f.Accept("src/exact.go", 100)
	assert.True(t, ok, "a file at exactly the size cap is accepted")

	ok, reason := f.Accept("src/over.go", 101)
	assert.False(t, ok, "one byte over the cap is rejected")
	assert.Equal(t, "exceeds size cap", reason)
}

func TestAccept_BuildCacheDirectories(t *testing.T) {
	f := NewFilter(nil, nil, 0, nil)

	for _, p := range []string{".git/config", "node_modules/left-pad/index.js", "vendor/pkg/a.go", "target/debug/out"} {
		ok, _ := f.Accept(p, 10)
		assert.Falsef(t, ok, "%s should be rejected", p)
	}

	ok, _ := f.Accept("src/vendor.go", 10)
	assert.True(t, ok, "only the first path component is checked against the deny set")
}

func TestAccept_ExclusionGlobs(t *testing.T) {
	f := NewFilter([]string{"*.min.js", "*.lock"}, nil, 0, nil)

	ok, _ := f.Accept("dist-src/app.min.js", 10)
	assert.False(t, ok)
	ok, _ = f.Accept("Cargo.lock", 10)
	assert.False(t, ok)
	ok, _ = f.Accept("src/app.js", 10)
	assert.True(t, ok)
}

func TestAccept_RepoScopedExcludeDirs(t *testing.T) {
	f := NewFilter(nil, []string{"docs"}, 0, nil)

	ok, _ := f.Accept("docs/guide.md", 10)
	assert.False(t, ok)
	ok, _ = f.Accept("src/docs/guide.md", 10)
	assert.False(t, ok, "repo-scoped dirs match at any depth")
	ok, _ = f.Accept("src/main.go", 10)
	assert.True(t, ok)
}

func TestRejectBinary_NulByteSniff(t *testing.T) {
	f := NewFilter(nil, nil, 0, nil)

	binary, reason := f.RejectBinary("blob.dat", []byte{0x7f, 'E', 'L', 'F', 0x00, 0x01})
	assert.True(t, binary)
	assert.Contains(t, reason, "NUL byte")

	binary, _ = f.RejectBinary("main.go", []byte("package main\n"))
	assert.False(t, binary)
}

func TestRejectBinary_ExtensionAllowList(t *testing.T) {
	f := NewFilter(nil, nil, 0, []string{"go", ".md"})

	binary, _ := f.RejectBinary("main.go", []byte("package main"))
	assert.False(t, binary)
	binary, _ = f.RejectBinary("README.md", []byte("# hi"))
	assert.False(t, binary, "a leading dot in the configured extension is tolerated")
	binary, reason := f.RejectBinary("app.exe", []byte("MZ"))
	assert.True(t, binary)
	assert.Contains(t, reason, "allow-list")
}

func TestClassifyKind(t *testing.T) {
	cases := []struct {
		path     string
		wantKind core.FileKind
		wantLang string
	}{
		{"main.go", core.FileKindCode, "go"},
		{"web/app.tsx", core.FileKindCode, "typescript"},
		{"script.sh", core.FileKindCode, "shell"},
		{"docs/guide.md", core.FileKindDoc, ""},
		{"notes.txt", core.FileKindDoc, ""},
		{"config.yaml", core.FileKindConfig, ""},
		{"settings.ini", core.FileKindConfig, ""},
		{"Makefile", core.FileKindOther, ""},
		{"README", core.FileKindDoc, ""},
		{"readme.rst", core.FileKindDoc, ""},
		{"README.go", core.FileKindDoc, ""}, // README wins over any extension
	}
	for _, tc := range cases {
		kind, lang := ClassifyKind(tc.path)
		assert.Equalf(t, tc.wantKind, kind, "kind of %s", tc.path)
		assert.Equalf(t, tc.wantLang, lang, "lang of %s", tc.path)
	}
}
