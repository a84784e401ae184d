package chunker

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strings"

	"github.com/sevigo/reposync/internal/core"
)

// codeASTChunker is the syntax-aware splitter for Go source: one chunk
// per top-level declaration, import blocks included (plus one header
// chunk for whatever precedes the first declaration, i.e. the package
// clause and its comments), spilling any declaration that exceeds the token
// budget by line while preserving the declaration's name in every
// spilled chunk's Heading. Go is the only language with an AST splitter
// in this tree (see DESIGN.md).
type codeASTChunker struct {
	tok core.Tokenizer
}

func (c *codeASTChunker) split(file core.FileRecord, content []byte, preset Preset) ([]core.Chunk, error) {
	fset := token.NewFileSet()
	astFile, err := parser.ParseFile(fset, file.Path, content, parser.ParseComments)
	if err != nil {
		return nil, err
	}

	var out []core.Chunk

	headerEnd := len(content)
	if len(astFile.Decls) > 0 {
		headerEnd = declStart(fset, astFile.Decls[0])
	}
	if headerEnd > 0 {
		out = append(out, c.unit(file, content, 0, headerEnd, "package "+astFile.Name.Name, preset)...)
	}

	for _, decl := range astFile.Decls {
		start := declStart(fset, decl)
		end := fset.Position(decl.End()).Offset
		out = append(out, c.unit(file, content, start, end, declName(decl), preset)...)
	}
	return out, nil
}

func declStart(fset *token.FileSet, decl ast.Decl) int {
	pos := decl.Pos()
	switch d := decl.(type) {
	case *ast.GenDecl:
		if d.Doc != nil {
			pos = d.Doc.Pos()
		}
	case *ast.FuncDecl:
		if d.Doc != nil {
			pos = d.Doc.Pos()
		}
	}
	return fset.Position(pos).Offset
}

func declName(decl ast.Decl) string {
	switch d := decl.(type) {
	case *ast.FuncDecl:
		if d.Recv != nil && len(d.Recv.List) > 0 {
			return recvTypeName(d.Recv.List[0].Type) + "." + d.Name.Name
		}
		return d.Name.Name
	case *ast.GenDecl:
		var names []string
		for _, spec := range d.Specs {
			switch s := spec.(type) {
			case *ast.TypeSpec:
				names = append(names, s.Name.Name)
			case *ast.ValueSpec:
				for _, n := range s.Names {
					names = append(names, n.Name)
				}
			case *ast.ImportSpec:
				names = append(names, "import")
			}
		}
		return strings.Join(names, ",")
	}
	return ""
}

func recvTypeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return recvTypeName(t.X)
	case *ast.Ident:
		return t.Name
	default:
		return ""
	}
}

// unit turns one declaration's byte span into one or more chunks,
// spilling by line when it exceeds the token budget while preserving
// name in every spilled chunk's Heading.
func (c *codeASTChunker) unit(file core.FileRecord, content []byte, start, end int, name string, preset Preset) []core.Chunk {
	if start >= end || start < 0 || end > len(content) {
		return nil
	}
	body := content[start:end]
	text := string(body)
	if c.tok.CountTokens(text) <= preset.MaxTokens {
		return []core.Chunk{{
			Path: file.Path, StartByte: start, EndByte: end, Text: text,
			TokenCount: c.tok.CountTokens(text), MaxTokens: preset.MaxTokens,
			Variant: "code_ast", Language: file.Lang, Heading: name,
		}}
	}
	windows := windowUnits(rebase(lineUnits(body), start), c.tok, preset.MaxTokens, preset.Overlap)
	out := make([]core.Chunk, 0, len(windows))
	for _, w := range windows {
		t, s, e := joinWindow(w)
		out = append(out, core.Chunk{
			Path: file.Path, StartByte: s, EndByte: e, Text: t,
			TokenCount: c.tok.CountTokens(t), MaxTokens: preset.MaxTokens,
			Variant: "code_ast", Language: file.Lang, Heading: name,
		})
	}
	return out
}
