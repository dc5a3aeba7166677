package safety

import (
	"strings"
	"sync"

	m "paratest.dev/pkg/paratest/internal/model"
)

// VerdictCache memoizes classification results. Population races are benign:
// both racers compute identical verdicts, so last-write-wins is correct.
type VerdictCache struct {
	entries sync.Map // string -> m.Verdict
}

// NewVerdictCache constructs an empty cache.
func NewVerdictCache() *VerdictCache {
	return &VerdictCache{}
}

// Get returns the cached verdict for key, if present.
func (c *VerdictCache) Get(key string) (m.Verdict, bool) {
	value, ok := c.entries.Load(key)
	if !ok {
		return m.Verdict{}, false
	}

	return value.(m.Verdict), true
}

// Put stores a verdict under key.
func (c *VerdictCache) Put(key string, verdict m.Verdict) {
	c.entries.Store(key, verdict)
}

// Len counts the cached entries.
func (c *VerdictCache) Len() int {
	count := 0

	c.entries.Range(func(_, _ any) bool {
		count++
		return true
	})

	return count
}

// cacheKey combines the callable's identity with the blocklist contents and
// the flag set. Identity, not structure: two distinct callables never share
// a verdict even when their bodies are textually identical.
func cacheKey(c *m.Callable, blocklist *m.Blocklist, flags m.Flags) string {
	var b strings.Builder

	b.WriteString(c.Key)
	b.WriteByte('|')
	b.WriteString(blocklist.Fingerprint())
	b.WriteByte('|')
	b.WriteString(flags.Key())

	return b.String()
}
