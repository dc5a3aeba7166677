package adapter

import (
	"fmt"
	"go/ast"
	"go/token"
	"path"
	"strconv"
	"strings"

	m "paratest.dev/pkg/paratest/internal/model"
)

// BuildCallables turns the top-level function declarations of one package's
// files into callables. All returned callables share a single bindings map,
// so cycles in the package call graph resolve naturally.
func BuildCallables(fset *token.FileSet, files []*ast.File) map[string]*m.Callable {
	bindings := make(map[string]*m.Callable)

	for _, file := range files {
		imports := importTable(file)
		aliases := funcAliasTable(file, imports)

		for _, decl := range file.Decls {
			fd, ok := decl.(*ast.FuncDecl)
			if !ok || fd.Recv != nil {
				continue
			}

			pos := fset.Position(fd.Pos())
			bindings[fd.Name.Name] = &m.Callable{
				Name:        fd.Name.Name,
				Decl:        fd,
				Imports:     imports,
				Bindings:    bindings,
				FuncAliases: aliases,
				Key:         fmt.Sprintf("%s:%d", pos.Filename, pos.Line),
			}
		}
	}

	return bindings
}

// importTable maps the name each import is known by inside the file to its
// module path. Blank and dot imports carry no usable name and are skipped.
func importTable(file *ast.File) map[string]string {
	table := make(map[string]string, len(file.Imports))

	for _, spec := range file.Imports {
		modulePath, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			continue
		}

		name := path.Base(modulePath)
		if spec.Name != nil {
			name = spec.Name.Name
		}

		if name == "_" || name == "." {
			continue
		}

		table[name] = modulePath
	}

	return table
}

// funcAliasTable finds package-level re-exports of foreign functions, such as
// `var capture = log.Capture`, and records their real identity.
func funcAliasTable(file *ast.File, imports map[string]string) map[string]m.Entry {
	aliases := make(map[string]m.Entry)

	for _, decl := range file.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok || gd.Tok != token.VAR {
			continue
		}

		for _, spec := range gd.Specs {
			vs, ok := spec.(*ast.ValueSpec)
			if !ok || len(vs.Names) != 1 || len(vs.Values) != 1 {
				continue
			}

			sel, ok := vs.Values[0].(*ast.SelectorExpr)
			if !ok {
				continue
			}

			chain := selectorChain(sel)
			if len(chain) < 2 {
				continue
			}

			module := strings.Join(chain[:len(chain)-1], ".")
			if resolved, ok := imports[chain[0]]; ok {
				module = strings.Join(append([]string{resolved}, chain[1:len(chain)-1]...), ".")
			}

			aliases[vs.Names[0].Name] = m.Entry{Module: module, Symbol: chain[len(chain)-1]}
		}
	}

	return aliases
}

// selectorChain flattens a.b.c into ["a", "b", "c"]. A chain not rooted in a
// plain identifier yields nil.
func selectorChain(sel *ast.SelectorExpr) []string {
	var chain []string

	current := ast.Expr(sel)
	for {
		s, ok := current.(*ast.SelectorExpr)
		if !ok {
			break
		}

		chain = append([]string{s.Sel.Name}, chain...)
		current = s.X
	}

	ident, ok := current.(*ast.Ident)
	if !ok {
		return nil
	}

	return append([]string{ident.Name}, chain...)
}
