// Package adapter contains the infrastructure components paratest relies on:
// Go source resolution, package loading, report persistence and platform
// queries. The domain layer stays free of parsing and filesystem details.
package adapter

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	m "paratest.dev/pkg/paratest/internal/model"
)

// GoSourceAdapter turns runtime function values and raw source snippets into
// callables the safety classifier can analyze.
type GoSourceAdapter interface {
	// ResolveFunction locates the declaration of the function behind pc. The
	// enclosing package directory is parsed so sibling helpers become
	// bindings for transitive analysis.
	ResolveFunction(pc uintptr) (*m.Callable, error)

	// ParseSnippet parses a standalone function snippet and returns the
	// callable for the function named name (or the first function when name
	// is empty). Snippet callables carry no identity key and are therefore
	// never cached.
	ParseSnippet(name, src string) (*m.Callable, error)
}

// LocalGoSourceAdapter resolves functions against the local filesystem,
// memoizing parsed package directories.
type LocalGoSourceAdapter struct {
	mu   sync.Mutex
	dirs map[string]*packageIndex
}

type packageIndex struct {
	fset  *token.FileSet
	files map[string]*ast.File // filename -> parsed file
	// callables holds every top-level function in the directory, keyed by
	// name, all sharing one bindings map so call graphs can be followed.
	callables map[string]*m.Callable
}

// NewLocalGoSourceAdapter constructs a LocalGoSourceAdapter.
func NewLocalGoSourceAdapter() *LocalGoSourceAdapter {
	return &LocalGoSourceAdapter{dirs: make(map[string]*packageIndex)}
}

// ResolveFunction implements GoSourceAdapter.
func (a *LocalGoSourceAdapter) ResolveFunction(pc uintptr) (*m.Callable, error) {
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return nil, fmt.Errorf("no function at pc %#x", pc)
	}

	file, line := fn.FileLine(fn.Entry())
	if file == "" {
		return nil, fmt.Errorf("no source recorded for %s", fn.Name())
	}

	index, err := a.indexDir(filepath.Dir(file))
	if err != nil {
		return nil, err
	}

	parsed, ok := index.files[file]
	if !ok {
		return nil, fmt.Errorf("file %s not found in parsed package", file)
	}

	decl := declAtLine(index.fset, parsed, line)
	if decl == nil {
		return nil, fmt.Errorf("no function declaration at %s:%d", file, line)
	}

	callable, ok := index.callables[decl.Name.Name]
	if !ok {
		return nil, fmt.Errorf("function %s not indexed in %s", decl.Name.Name, file)
	}

	return callable, nil
}

func (a *LocalGoSourceAdapter) indexDir(dir string) (*packageIndex, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if index, ok := a.dirs[dir]; ok {
		return index, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read package dir %s: %w", dir, err)
	}

	index := &packageIndex{
		fset:  token.NewFileSet(),
		files: make(map[string]*ast.File),
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".go") {
			continue
		}

		path := filepath.Join(dir, entry.Name())

		parsed, err := parser.ParseFile(index.fset, path, nil, parser.ParseComments)
		if err != nil {
			// A broken sibling file must not abort analysis of the rest.
			continue
		}

		index.files[path] = parsed
	}

	files := make([]*ast.File, 0, len(index.files))
	for _, f := range index.files {
		files = append(files, f)
	}

	index.callables = BuildCallables(index.fset, files)
	a.dirs[dir] = index

	return index, nil
}

// ParseSnippet implements GoSourceAdapter. Snippets may be full files, bare
// function declarations, or indented fragments cut out of an enclosing
// declaration; the latter two are normalized and wrapped in a synthetic
// package clause so they parse standalone.
func (a *LocalGoSourceAdapter) ParseSnippet(name, src string) (*m.Callable, error) {
	fset := token.NewFileSet()

	parsed, err := parser.ParseFile(fset, "snippet.go", src, parser.ParseComments)
	if err != nil {
		normalized := "package p\n\n" + dedent(src)

		parsed, err = parser.ParseFile(fset, "snippet.go", normalized, parser.ParseComments)
		if err != nil {
			return nil, fmt.Errorf("parse snippet: %w", err)
		}
	}

	callables := BuildCallables(fset, []*ast.File{parsed})
	for _, c := range callables {
		// Snippet identities are not stable across calls.
		c.Key = ""
	}

	if name != "" {
		c, ok := callables[name]
		if !ok {
			return nil, fmt.Errorf("snippet does not declare %s", name)
		}

		return c, nil
	}

	for _, decl := range parsed.Decls {
		if fd, ok := decl.(*ast.FuncDecl); ok {
			return callables[fd.Name.Name], nil
		}
	}

	return nil, fmt.Errorf("snippet declares no function")
}

// dedent strips the indentation of the first non-blank line from every line,
// so a fragment lifted out of a nested declaration parses standalone.
func dedent(src string) string {
	lines := strings.Split(src, "\n")

	prefix := ""
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}

		prefix = line[:len(line)-len(strings.TrimLeft(line, " \t"))]

		break
	}

	if prefix == "" {
		return src
	}

	for i, line := range lines {
		lines[i] = strings.TrimPrefix(line, prefix)
	}

	return strings.Join(lines, "\n")
}

// declAtLine returns the function declaration spanning the given line.
func declAtLine(fset *token.FileSet, file *ast.File, line int) *ast.FuncDecl {
	for _, decl := range file.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok {
			continue
		}

		start := fset.Position(fd.Pos()).Line
		end := fset.Position(fd.End()).Line

		if line >= start && line <= end {
			return fd
		}
	}

	return nil
}
