package adapter

import (
	"context"
	"fmt"
	"go/ast"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/go/packages"

	m "paratest.dev/pkg/paratest/internal/model"
)

// TestFunc couples a discovered test function with its package.
type TestFunc struct {
	Package  string
	File     m.Path
	Callable *m.Callable
}

// PackageLoader discovers the test functions of whole packages for static
// classification.
type PackageLoader interface {
	LoadTestFunctions(ctx context.Context, patterns []string) ([]TestFunc, error)
}

// LocalPackageLoader loads packages through the go toolchain.
type LocalPackageLoader struct{}

// NewPackageLoader constructs a LocalPackageLoader.
func NewPackageLoader() *LocalPackageLoader {
	return &LocalPackageLoader{}
}

const loadMode = packages.NeedName |
	packages.NeedFiles |
	packages.NeedCompiledGoFiles |
	packages.NeedSyntax

// LoadTestFunctions implements PackageLoader. Packages are indexed
// concurrently; the result is sorted by package then function name so
// reports are deterministic.
func (l *LocalPackageLoader) LoadTestFunctions(ctx context.Context, patterns []string) ([]TestFunc, error) {
	cfg := &packages.Config{
		Mode:    loadMode,
		Context: ctx,
		Tests:   true,
	}

	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("load packages: %w", err)
	}

	var (
		mu    sync.Mutex
		funcs []TestFunc
	)

	group, _ := errgroup.WithContext(ctx)

	seen := make(map[string]struct{})

	for _, pkg := range pkgs {
		// The test variant of a package shadows the plain one.
		if _, ok := seen[pkg.PkgPath]; ok {
			continue
		}

		seen[pkg.PkgPath] = struct{}{}

		group.Go(func() error {
			found := collectTestFunctions(pkg)

			mu.Lock()
			funcs = append(funcs, found...)
			mu.Unlock()

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(funcs, func(i, j int) bool {
		if funcs[i].Package != funcs[j].Package {
			return funcs[i].Package < funcs[j].Package
		}

		return funcs[i].Callable.Name < funcs[j].Callable.Name
	})

	return funcs, nil
}

func collectTestFunctions(pkg *packages.Package) []TestFunc {
	callables := BuildCallables(pkg.Fset, pkg.Syntax)

	var funcs []TestFunc

	for _, file := range pkg.Syntax {
		filename := pkg.Fset.Position(file.Pos()).Filename
		if !strings.HasSuffix(filename, "_test.go") {
			continue
		}

		for _, decl := range file.Decls {
			fd, ok := decl.(*ast.FuncDecl)
			if !ok || fd.Recv != nil || !isTestName(fd.Name.Name) {
				continue
			}

			funcs = append(funcs, TestFunc{
				Package:  pkg.PkgPath,
				File:     m.Path(filename),
				Callable: callables[fd.Name.Name],
			})
		}
	}

	return funcs
}

// isTestName mirrors the go toolchain's rule: "Test" followed by nothing or
// a non-lowercase rune.
func isTestName(name string) bool {
	if !strings.HasPrefix(name, "Test") {
		return false
	}

	rest := name[len("Test"):]

	return rest == "" || rest[0] < 'a' || rest[0] > 'z'
}
