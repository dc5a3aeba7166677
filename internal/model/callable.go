package model

import "go/ast"

// Callable is a resolved analysis unit: a function declaration plus the
// lexical environment the classifier needs to resolve names. Callables are
// immutable once built.
type Callable struct {
	Name string

	// Decl is the function's syntax tree. A nil Decl (or nil body) means the
	// source is unavailable and the callable is assumed thread-safe.
	Decl *ast.FuncDecl

	// Imports maps the name an import is known by inside the enclosing file
	// to its module path.
	Imports map[string]string

	// Bindings maps package-level names visible to the function to sibling
	// callables, so transitive call-graph descent can follow bare-name calls.
	Bindings map[string]*Callable

	// FuncAliases maps package-level names bound to functions from other
	// modules (e.g. `var capture = log.Capture`) to their real identity.
	FuncAliases map[string]Entry

	// Key is a stable identity for memoization, conventionally "file:line"
	// of the declaration. Empty means the callable cannot be cached and
	// every classification is computed directly.
	Key string
}
