package model

import (
	"fmt"
	"sort"
	"strings"
)

// WildcardSymbol blocks every symbol of a module when used as Entry.Symbol.
const WildcardSymbol = "*"

// Entry identifies one function considered unsafe to call concurrently.
type Entry struct {
	Module string
	Symbol string
}

func (e Entry) String() string {
	return e.Module + "." + e.Symbol
}

// ParseEntry parses "module.symbol" (or "module.*") into an Entry. The last
// dot separates the module path from the symbol, so "log/slog.SetDefault"
// works as expected.
func ParseEntry(s string) (Entry, error) {
	idx := strings.LastIndex(s, ".")
	if idx <= 0 || idx == len(s)-1 {
		return Entry{}, fmt.Errorf("invalid blocklist entry %q: want module.symbol", s)
	}

	return Entry{Module: s[:idx], Symbol: s[idx+1:]}, nil
}

// Blocklist is the configured set of thread-unsafe functions. It is built
// once per run and never mutated afterwards.
type Blocklist struct {
	entries map[Entry]struct{}
}

// NewBlocklist creates a blocklist holding the given entries.
func NewBlocklist(entries ...Entry) *Blocklist {
	b := &Blocklist{entries: make(map[Entry]struct{}, len(entries))}
	for _, e := range entries {
		b.entries[e] = struct{}{}
	}

	return b
}

// Add registers one more entry. Only used while assembling the list.
func (b *Blocklist) Add(e Entry) {
	b.entries[e] = struct{}{}
}

// Blocks reports whether calling module.symbol is considered unsafe, either
// directly or through a module wildcard.
func (b *Blocklist) Blocks(module, symbol string) bool {
	if _, ok := b.entries[Entry{Module: module, Symbol: symbol}]; ok {
		return true
	}

	_, ok := b.entries[Entry{Module: module, Symbol: WildcardSymbol}]

	return ok
}

// Modules returns the set of module paths that appear in the blocklist,
// including the root element of compound paths. Alias resolution only needs
// to track names that can reach one of these.
func (b *Blocklist) Modules() map[string]struct{} {
	modules := make(map[string]struct{}, len(b.entries))
	for e := range b.entries {
		modules[e.Module] = struct{}{}
		if idx := strings.IndexAny(e.Module, "/."); idx > 0 {
			modules[e.Module[:idx]] = struct{}{}
		}
	}

	return modules
}

// Fingerprint returns a stable digest of the entries for use in cache keys.
func (b *Blocklist) Fingerprint() string {
	parts := make([]string, 0, len(b.entries))
	for e := range b.entries {
		parts = append(parts, e.String())
	}

	sort.Strings(parts)

	return strings.Join(parts, ";")
}

// Flags adjusts the effective blocklist for the current runtime. They are
// part of the classification cache key: recomputing with different flags
// produces a distinct verdict.
type Flags struct {
	// WarningsCaptureSafe excludes the log-capture surface from the built-in
	// blocklist when the runtime serializes it safely.
	WarningsCaptureSafe bool

	// FFISafe excludes the raw syscall surface from the built-in blocklist.
	FFISafe bool

	// PropertyTestsUnsafe forces property-based test harnesses to be treated
	// as thread-unsafe regardless of their version.
	PropertyTestsUnsafe bool
}

// Key returns a stable representation for cache keys.
func (f Flags) Key() string {
	return fmt.Sprintf("w=%t|f=%t|p=%t", f.WarningsCaptureSafe, f.FFISafe, f.PropertyTestsUnsafe)
}

// BuiltinEntries returns the blocklist entries that apply regardless of user
// configuration: functions that mutate process-global state. The flag-gated
// groups are dropped when the runtime is known to handle them safely.
func BuiltinEntries(flags Flags) []Entry {
	entries := []Entry{
		{Module: "os", Symbol: "Setenv"},
		{Module: "os", Symbol: "Unsetenv"},
		{Module: "os", Symbol: "Clearenv"},
		{Module: "os", Symbol: "Chdir"},
		{Module: "runtime", Symbol: "GOMAXPROCS"},
	}

	if !flags.WarningsCaptureSafe {
		entries = append(entries,
			Entry{Module: "log", Symbol: "SetOutput"},
			Entry{Module: "log", Symbol: "SetFlags"},
			Entry{Module: "log/slog", Symbol: "SetDefault"},
		)
	}

	if !flags.FFISafe {
		entries = append(entries, Entry{Module: "syscall", Symbol: WildcardSymbol})
	}

	return entries
}
