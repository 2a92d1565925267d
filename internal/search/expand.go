// Package search implements hybrid lexical+semantic retrieval: query
// expansion, Reciprocal Rank Fusion, and query-aware snippet generation
// (spec §4.6).
package search

import (
	"strings"

	"github.com/kittclouds/memctl/internal/textmatch"
)

// synonymMap is the built-in domain synonym overlay, grouped by the
// categories spec §4.6 names explicitly.
var synonymMap = map[string][]string{
	// error
	"error": {"exception", "failure", "bug"}, "exception": {"error"},
	"bug": {"issue", "defect"}, "crash": {"panic", "fault"},
	// api
	"api": {"endpoint", "interface"}, "endpoint": {"route", "api"},
	// database
	"database": {"db", "datastore"}, "db": {"database"},
	"query": {"statement"},
	// function
	"function": {"method", "routine"}, "method": {"function"},
	// auth
	"auth": {"authentication", "authorization"}, "login": {"signin", "auth"},
}

// ExpanderConfig configures the query expander, per spec §6's
// `expansion.enabled`/`expansion.max_variants`.
type ExpanderConfig struct {
	Enabled     bool
	MaxVariants int
	Overlay     map[string][]string // user-provided synonym overlay
}

// Expand tokenizes query, drops stop words, looks up each remaining word in
// the synonym map (and overlay), and generates up to MaxVariants
// permutations preserving word order. The original query is always the
// first variant.
func Expand(query string, cfg ExpanderConfig) []string {
	if !cfg.Enabled {
		return []string{query}
	}

	words := strings.Fields(query)
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		norm := textmatch.Canonicalize(w)
		if norm == "" || textmatch.IsStopWord(norm) {
			continue
		}
		tokens = append(tokens, norm)
	}

	variants := []string{query}
	if len(tokens) == 0 {
		return variants
	}

	maxVariants := cfg.MaxVariants
	if maxVariants <= 0 {
		maxVariants = 5
	}

	seen := map[string]bool{strings.ToLower(query): true}
	for i, tok := range tokens {
		var syns []string
		syns = append(syns, cfg.Overlay[tok]...)
		syns = append(syns, synonymMap[tok]...)
		for _, syn := range syns {
			if len(variants) >= maxVariants {
				return variants
			}
			replaced := make([]string, len(tokens))
			copy(replaced, tokens)
			replaced[i] = syn
			candidate := strings.Join(replaced, " ")
			key := strings.ToLower(candidate)
			if seen[key] {
				continue
			}
			seen[key] = true
			variants = append(variants, candidate)
		}
	}
	return variants
}
