package acquirer

import (
	"path"
	"strings"

	"github.com/sevigo/reposync/internal/core"
)

// buildCacheDirs is the built-in "build/cache" set whose presence as a
// path's first component always rejects the file, regardless of any
// configured exclusion glob set.
var buildCacheDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	"vendor":       true,
	"target":       true,
	"dist":         true,
	"build":        true,
	".venv":        true,
	"venv":         true,
	"__pycache__":  true,
	".idea":        true,
	".vscode":      true,
	".tox":         true,
	"bin":          true,
	"obj":          true,
}

// codeExtensions maps a lowercase extension (without the leading dot) to
// a canonical language name, used for Code(lang) kind classification.
var codeExtensions = map[string]string{
	"go":    "go",
	"js":    "javascript",
	"jsx":   "javascript",
	"ts":    "typescript",
	"tsx":   "typescript",
	"py":    "python",
	"java":  "java",
	"c":     "c",
	"h":     "c",
	"cpp":   "cpp",
	"cc":    "cpp",
	"hpp":   "cpp",
	"rs":    "rust",
	"rb":    "ruby",
	"php":   "php",
	"cs":    "csharp",
	"kt":    "kotlin",
	"swift": "swift",
	"scala": "scala",
	"sh":    "shell",
	"bash":  "shell",
}

var docExtensions = map[string]bool{"md": true, "markdown": true, "rst": true, "txt": true}
var configExtensions = map[string]bool{"json": true, "yaml": true, "yml": true, "toml": true, "ini": true}

// Filter holds the exclusion configuration consumed by Accept/RejectBinary.
// BinaryExtensionAllow, when non-empty, restricts file acceptance to
// extensions known to be text; an unlisted extension is treated as
// binary. A nil/empty allow-list disables this check and relies solely on the
// NUL-byte sniff.
type Filter struct {
	ExcludeGlobs         []string
	ExcludeDirs          []string
	MaxFileBytes         int64
	BinaryExtensionAllow []string
	binaryAllowSet       map[string]bool
}

// NewFilter builds a Filter, merging repository-scoped exclusions (from
// RepoConfig) with process-wide defaults.
func NewFilter(excludeGlobs, excludeDirs []string, maxFileBytes int64, binaryAllow []string) *Filter {
	f := &Filter{
		ExcludeGlobs: excludeGlobs,
		ExcludeDirs:  excludeDirs,
		MaxFileBytes: maxFileBytes,
	}
	if len(binaryAllow) > 0 {
		f.binaryAllowSet = make(map[string]bool, len(binaryAllow))
		for _, e := range binaryAllow {
			f.binaryAllowSet[normalizeExt(e)] = true
		}
	}
	return f
}

func normalizeExt(e string) string {
	return strings.ToLower(strings.TrimPrefix(e, "."))
}

// Accept reports whether relPath should be acquired, given its size. It
// does not perform the binary-content sniff (that requires the bytes);
// call RejectBinary once the content is in hand.
func (f *Filter) Accept(relPath string, size int64) (bool, string) {
	relPath = path.Clean(relPath)
	first := firstComponent(relPath)
	if buildCacheDirs[first] {
		return false, "build/cache directory"
	}
	for _, d := range f.ExcludeDirs {
		if d != "" && pathHasDir(relPath, d) {
			return false, "excluded directory: " + d
		}
	}
	base := path.Base(relPath)
	for _, g := range f.ExcludeGlobs {
		if g == "" {
			continue
		}
		if ok, _ := path.Match(g, base); ok {
			return false, "matches exclusion glob: " + g
		}
		if ok, _ := path.Match(g, relPath); ok {
			return false, "matches exclusion glob: " + g
		}
	}
	if f.MaxFileBytes > 0 && size > f.MaxFileBytes {
		return false, "exceeds size cap"
	}
	return true, ""
}

// RejectBinary applies the extension allow-list and the NUL-byte sniff:
// a NUL byte in the first kilobyte, or an extension outside the
// configured allow-list, marks the content as binary.
func (f *Filter) RejectBinary(relPath string, content []byte) (bool, string) {
	if f.binaryAllowSet != nil {
		ext := normalizeExt(path.Ext(relPath))
		if !f.binaryAllowSet[ext] {
			return true, "extension not in binary allow-list"
		}
	}
	if isLikelyBinary(content) {
		return true, "contains NUL byte in first 1KiB"
	}
	return false, ""
}

// isLikelyBinary reports whether a NUL byte appears anywhere in the
// first kilobyte of content.
func isLikelyBinary(content []byte) bool {
	n := len(content)
	if n > 1024 {
		n = 1024
	}
	for i := 0; i < n; i++ {
		if content[i] == 0 {
			return true
		}
	}
	return false
}

func firstComponent(relPath string) string {
	idx := strings.IndexByte(relPath, '/')
	if idx < 0 {
		return relPath
	}
	return relPath[:idx]
}

func pathHasDir(relPath, dir string) bool {
	dir = strings.Trim(dir, "/")
	if dir == "" {
		return false
	}
	for _, part := range strings.Split(relPath, "/") {
		if part == dir {
			return true
		}
	}
	return false
}

// ClassifyKind classifies a path by its base name and extension: README*
// is always Doc regardless of extension; otherwise classification falls
// through Doc, Config, Code(lang), Other.
func ClassifyKind(relPath string) (core.FileKind, string) {
	base := strings.ToLower(path.Base(relPath))
	if strings.HasPrefix(base, "readme") {
		return core.FileKindDoc, ""
	}
	ext := normalizeExt(path.Ext(relPath))
	if docExtensions[ext] {
		return core.FileKindDoc, ""
	}
	if configExtensions[ext] {
		return core.FileKindConfig, ""
	}
	if lang, ok := codeExtensions[ext]; ok {
		return core.FileKindCode, lang
	}
	return core.FileKindOther, ""
}
