// Package safety implements static thread-safety classification of test
// functions: it walks a function's syntax tree (and, to a bounded depth, the
// trees of functions it calls) looking for calls into a configured blocklist
// of thread-unsafe APIs.
package safety

import (
	m "paratest.dev/pkg/paratest/internal/model"
)

// aliasTable is the resolved view of one callable's lexical environment:
// which local names denote blocked modules, which denote re-exported foreign
// functions, and which denote sibling callables. It is built once per
// callable, ahead of traversal.
type aliasTable struct {
	modules  map[string]string
	funcs    map[string]m.Entry
	bindings map[string]*m.Callable
}

// resolveAliases builds the alias table for a callable. Module aliases are
// retained only when they can reach a blocklisted module, so traversal does
// a single map probe per call expression.
func resolveAliases(c *m.Callable, blocklist *m.Blocklist) aliasTable {
	table := aliasTable{
		modules:  make(map[string]string),
		funcs:    c.FuncAliases,
		bindings: c.Bindings,
	}

	blocked := blocklist.Modules()

	for name, modulePath := range c.Imports {
		if _, ok := blocked[modulePath]; ok {
			table.modules[name] = modulePath
		}
	}

	return table
}

// resolveModule maps a local name to the module path it denotes, falling
// back to the name itself when it is not a tracked alias.
func (t aliasTable) resolveModule(name string) string {
	if modulePath, ok := t.modules[name]; ok {
		return modulePath
	}

	return name
}
