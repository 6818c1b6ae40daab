// Package alias implements jarvish's alias table: single-pass expansion of
// the leading word of a line before tokenization (spec.md §4.1, §9 "Open
// question — alias recursion": single-pass expansion is the chosen,
// documented behavior).
package alias

import (
	"sort"
	"strings"
	"sync"
)

// Table is a thread-confined (REPL-task-only, per spec.md §5) name→expansion
// map.
type Table struct {
	mu      sync.RWMutex
	entries map[string]string
}

// New creates a Table seeded from the given initial entries (typically the
// config file's [alias] section).
func New(initial map[string]string) *Table {
	t := &Table{entries: make(map[string]string, len(initial))}
	for k, v := range initial {
		t.entries[k] = v
	}
	return t
}

// Set defines or redefines an alias.
func (t *Table) Set(name, expansion string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[name] = expansion
}

// Reset replaces the entire table with entries, used by a config reload to
// make a freshly re-read [alias] section take effect immediately.
func (t *Table) Reset(entries map[string]string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[string]string, len(entries))
	for k, v := range entries {
		t.entries[k] = v
	}
}

// Unset removes an alias. Returns false if it was not defined.
func (t *Table) Unset(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.entries[name]; !ok {
		return false
	}
	delete(t.entries, name)
	return true
}

// Get returns the expansion for name and whether it is defined.
func (t *Table) Get(name string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.entries[name]
	return v, ok
}

// List returns all aliases sorted by name, for the `alias` built-in with no
// arguments.
func (t *Table) List() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.entries))
	for k := range t.entries {
		names = append(names, k)
	}
	sort.Strings(names)
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = n + "=" + t.entries[n]
	}
	return out
}

// Expand replaces line's leading whitespace-delimited word with its alias
// expansion, if the word is an alias key. Expansion applies at most once: if
// the expansion's own leading word is itself an alias, it is NOT expanded
// again.
func (t *Table) Expand(line string) string {
	trimmed := strings.TrimLeft(line, " \t")
	if trimmed == "" {
		return line
	}
	leadingLen := len(line) - len(trimmed)

	end := strings.IndexAny(trimmed, " \t")
	var word, rest string
	if end < 0 {
		word = trimmed
		rest = ""
	} else {
		word = trimmed[:end]
		rest = trimmed[end:]
	}

	expansion, ok := t.Get(word)
	if !ok {
		return line
	}

	return line[:leadingLen] + expansion + rest
}
