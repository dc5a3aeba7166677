package safety

import (
	"go/ast"
	"log/slog"
	"strings"
	"sync/atomic"

	m "paratest.dev/pkg/paratest/internal/model"
)

// maxDepth bounds transitive call-graph descent. A callee reached at this
// depth is assumed safe without analysis; a documented limitation, not a
// silent heuristic.
const maxDepth = 2

// sentinelName is the assignment target a function uses to declare its own
// thread-safety: `threadSafe = false` marks it unsafe explicitly.
const sentinelName = "threadSafe"

// Classifier decides whether a callable is safe to invoke concurrently.
// Safe for concurrent use; duplicated cache population is wasted work, not
// a correctness problem.
type Classifier struct {
	cache    *VerdictCache
	detector PropertyTestDetector

	// analyses counts full tree walks, exercised by the memoization tests.
	analyses atomic.Int64
}

// NewClassifier constructs a Classifier. cache and detector may be nil, in
// which case results are not memoized and no property-test short-circuit
// applies.
func NewClassifier(cache *VerdictCache, detector PropertyTestDetector) *Classifier {
	return &Classifier{cache: cache, detector: detector}
}

// Classify reports whether callable is safe to run concurrently under the
// given blocklist and flags. Verdicts are memoized by callable identity; a
// callable without an identity key bypasses the cache.
func (c *Classifier) Classify(callable *m.Callable, blocklist *m.Blocklist, flags m.Flags) m.Verdict {
	if callable == nil {
		return m.Verdict{}
	}

	if c.detector != nil {
		if recognized, verdict := c.detector.Verdict(callable, flags); recognized {
			return verdict
		}
	}

	if c.cache == nil || callable.Key == "" {
		return c.analyze(callable, blocklist)
	}

	key := cacheKey(callable, blocklist, flags)
	if verdict, ok := c.cache.Get(key); ok {
		return verdict
	}

	verdict := c.analyze(callable, blocklist)
	c.cache.Put(key, verdict)

	return verdict
}

type frame struct {
	callable *m.Callable
	depth    int
}

// analyze walks the callable's tree and, bounded by maxDepth, the trees of
// callables it calls. The frontier is an explicit worklist so pathological
// call graphs cannot grow the stack; traversal is source order, so the first
// unsafe reason is reproducible. Any panic during analysis degrades to a
// safe verdict with a warning.
func (c *Classifier) analyze(callable *m.Callable, blocklist *m.Blocklist) (verdict m.Verdict) {
	c.analyses.Add(1)

	defer func() {
		if r := recover(); r != nil {
			slog.Warn("thread-safety analysis failed, assuming safe",
				"callable", callable.Name, "panic", r)

			verdict = m.Verdict{}
		}
	}()

	work := []frame{{callable: callable}}
	visited := map[*m.Callable]struct{}{callable: {}}

	for len(work) > 0 {
		current := work[0]
		work = work[1:]

		if current.callable.Decl == nil || current.callable.Decl.Body == nil {
			// Source unavailable: unknown, assume safe.
			continue
		}

		aliases := resolveAliases(current.callable, blocklist)

		found, callees := walkBody(current.callable.Decl.Body, aliases, blocklist)
		if found.Unsafe {
			return found
		}

		if current.depth+1 >= maxDepth {
			continue
		}

		for _, callee := range callees {
			if _, ok := visited[callee]; ok {
				continue
			}

			visited[callee] = struct{}{}
			work = append(work, frame{callable: callee, depth: current.depth + 1})
		}
	}

	return m.Verdict{}
}

// walkBody scans a single function body in source order. It returns the
// verdict for direct matches plus the callees to descend into. Traversal
// stops at the first unsafe node.
func walkBody(body *ast.BlockStmt, aliases aliasTable, blocklist *m.Blocklist) (m.Verdict, []*m.Callable) {
	var (
		verdict m.Verdict
		callees []*m.Callable
	)

	ast.Inspect(body, func(n ast.Node) bool {
		if verdict.Unsafe {
			return false
		}

		switch node := n.(type) {
		case *ast.CallExpr:
			verdict, callees = visitCall(node, aliases, blocklist, callees)
		case *ast.AssignStmt:
			verdict = visitAssign(node)
		}

		return !verdict.Unsafe
	})

	return verdict, callees
}

func visitCall(call *ast.CallExpr, aliases aliasTable, blocklist *m.Blocklist, callees []*m.Callable) (m.Verdict, []*m.Callable) {
	switch fun := call.Fun.(type) {
	case *ast.SelectorExpr:
		if verdict := matchSelector(fun, aliases, blocklist); verdict.Unsafe {
			return verdict, callees
		}
	case *ast.Ident:
		if entry, ok := aliases.funcs[fun.Name]; ok {
			if blocklist.Blocks(entry.Module, entry.Symbol) {
				return m.UnsafeVerdict("calls thread-unsafe function: " + fun.Name), callees
			}

			return m.Verdict{}, callees
		}

		if callee, ok := aliases.bindings[fun.Name]; ok {
			callees = append(callees, callee)
		}
	}

	return m.Verdict{}, callees
}

// matchSelector checks a call target of the form mod.symbol or a longer
// chain a.b.symbol against the blocklist, resolving the root through the
// alias table. First match wins.
func matchSelector(sel *ast.SelectorExpr, aliases aliasTable, blocklist *m.Blocklist) m.Verdict {
	chain := selectorChain(sel)
	if len(chain) < 2 {
		return m.Verdict{}
	}

	symbol := chain[len(chain)-1]
	root := aliases.resolveModule(chain[0])
	module := strings.Join(append([]string{root}, chain[1:len(chain)-1]...), ".")

	if blocklist.Blocks(module, symbol) {
		return m.UnsafeVerdict("calls thread-unsafe function: " + module + "." + symbol)
	}

	return m.Verdict{}
}

// visitAssign detects the explicit safety sentinel: a single-target
// assignment of a false literal to the sentinel name.
func visitAssign(assign *ast.AssignStmt) m.Verdict {
	if len(assign.Lhs) != 1 || len(assign.Rhs) != 1 {
		return m.Verdict{}
	}

	target, ok := assign.Lhs[0].(*ast.Ident)
	if !ok || target.Name != sentinelName {
		return m.Verdict{}
	}

	if value, ok := assign.Rhs[0].(*ast.Ident); ok && value.Name == "false" {
		return m.UnsafeVerdict("explicit thread-unsafe declaration")
	}

	return m.Verdict{}
}

// selectorChain flattens a.b.c into ["a", "b", "c"]. Chains not rooted in a
// plain identifier (method calls on expressions) yield nil and are ignored.
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
