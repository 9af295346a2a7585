// MacroGuard - Real-time Input Macro Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/macroguard

package session

import (
	"strings"
	"sync"
)

// DomainFilter decides which origins are monitored. An empty filter
// monitors everything. Patterns are exact hostnames or "*.example.com",
// which matches example.com and every subdomain.
type DomainFilter struct {
	mu       sync.RWMutex
	exact    map[string]struct{}
	suffixes []string
	patterns []string
}

// NewDomainFilter creates a filter from patterns.
func NewDomainFilter(patterns []string) *DomainFilter {
	f := &DomainFilter{}
	f.Set(patterns)
	return f
}

// Set replaces the patterns.
func (f *DomainFilter) Set(patterns []string) {
	exact := make(map[string]struct{}, len(patterns))
	var suffixes, kept []string
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		kept = append(kept, p)
		if rest, ok := strings.CutPrefix(p, "*."); ok {
			suffixes = append(suffixes, rest)
			continue
		}
		exact[p] = struct{}{}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.exact = exact
	f.suffixes = suffixes
	f.patterns = kept
}

// Patterns returns the normalized patterns.
func (f *DomainFilter) Patterns() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]string{}, f.patterns...)
}

// Monitored reports whether events from domain should be analyzed.
// Events without a domain are always analyzed.
func (f *DomainFilter) Monitored(domain string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(f.patterns) == 0 || domain == "" {
		return true
	}
	domain = strings.ToLower(strings.TrimSuffix(domain, "."))
	if _, ok := f.exact[domain]; ok {
		return true
	}
	for _, s := range f.suffixes {
		if domain == s || strings.HasSuffix(domain, "."+s) {
			return true
		}
	}
	return false
}
