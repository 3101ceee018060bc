package keys

import (
	"regexp"
	"sync"
)

// Validator answers "is this credential usable" against a Store. patterns arrive
// as plain strings from the catalog and are compiled lazily on first use; the
// compiled form is cached for subsequent checks.
type Validator struct {
	store Store

	mu       sync.RWMutex
	patterns map[string]*regexp.Regexp // pattern string -> compiled, nil for invalid
}

// NewValidator creates a validator over the given store.
// panics on a nil store: that is a wiring bug, not a runtime condition.
func NewValidator(store Store) *Validator {
	if store == nil {
		panic("keys: nil store")
	}
	return &Validator{store: store, patterns: make(map[string]*regexp.Regexp)}
}

// Has reports whether the named credential is present and, when a pattern is
// declared, matches it. every failure mode maps to false: unset or empty value,
// pattern mismatch, store lookup error, even an uncompilable pattern. nothing
// propagates — resolution degrades instead of erroring.
func (v *Validator) Has(name, pattern string) bool {
	if name == "" {
		return false
	}
	value, err := v.store.Lookup(name)
	if err != nil || value == "" {
		return false
	}
	if pattern == "" {
		return true
	}
	re := v.compiled(pattern)
	if re == nil {
		// declared pattern does not compile: treat the key as unusable rather
		// than letting a bad catalog entry admit arbitrary values
		return false
	}
	return re.MatchString(value)
}

// compiled returns the cached compiled pattern, compiling on first use.
// returns nil for patterns that fail to compile (cached as nil too).
func (v *Validator) compiled(pattern string) *regexp.Regexp {
	v.mu.RLock()
	re, ok := v.patterns[pattern]
	v.mu.RUnlock()
	if ok {
		return re
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		re = nil
	}
	v.mu.Lock()
	v.patterns[pattern] = re
	v.mu.Unlock()
	return re
}

// Snapshot is a point-in-time validity view. one resolution pass works from a
// single snapshot so a key appearing or disappearing mid-pass cannot reorder
// tiers within that pass.
type Snapshot map[string]bool

// Snapshot checks each (name, pattern) pair once and freezes the results.
// pairs maps credential name to its declared pattern ("" for none).
func (v *Validator) Snapshot(pairs map[string]string) Snapshot {
	snap := make(Snapshot, len(pairs))
	for name, pattern := range pairs {
		snap[name] = v.Has(name, pattern)
	}
	return snap
}
