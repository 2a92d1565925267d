package search

import (
	"sort"
	"strings"
	"unicode"

	"github.com/kittclouds/memctl/internal/textmatch"
)

// SnippetConfig controls snippet generation, per spec §4.6.
type SnippetConfig struct {
	MaxLength    int // window length in characters; snapping to a word end, ellipses and highlight tags add to it
	WindowStep   int // slide step in characters, default 10
	HighlightTag [2]string // [open, close], e.g. ["**", "**"]
}

// DefaultSnippetConfig matches spec §4.6's stated defaults.
func DefaultSnippetConfig() SnippetConfig {
	return SnippetConfig{MaxLength: 240, WindowStep: 10, HighlightTag: [2]string{"**", "**"}}
}

// queryTerms tokenizes query, keeping only terms of length >= 2 that are not
// stop words, per spec §4.6.
func queryTerms(query string) []string {
	var terms []string
	for _, w := range strings.Fields(query) {
		norm := textmatch.Canonicalize(w)
		if len([]rune(norm)) < 2 || textmatch.IsStopWord(norm) {
			continue
		}
		terms = append(terms, norm)
	}
	return terms
}

// Snippet extracts a query-aware excerpt from text. It scores a sliding
// window over text by counting term occurrences (case-insensitive) plus a
// bonus for starting on a sentence boundary, picks the highest-scoring
// window, snaps its edges to whitespace, adds ellipses where the window
// doesn't reach the text's edge, and wraps matched terms (longest first, so
// a shorter term that is a substring of a longer one never double-wraps it)
// in cfg.HighlightTag. When no term appears in text at all, it falls back to
// a leading word-aligned excerpt with no highlighting.
func Snippet(text, query string, cfg SnippetConfig) string {
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = 240
	}
	if cfg.WindowStep <= 0 {
		cfg.WindowStep = 10
	}

	terms := queryTerms(query)
	runes := []rune(text)
	if len(runes) == 0 {
		return ""
	}

	windowLen := cfg.MaxLength
	if windowLen > len(runes) {
		windowLen = len(runes)
	}

	lowerText := strings.ToLower(text)
	lowerRunes := []rune(lowerText)

	bestStart, bestScore := 0, -1.0
	found := false
	for start := 0; start+windowLen <= len(runes) || start == 0; start += cfg.WindowStep {
		end := start + windowLen
		if end > len(runes) {
			end = len(runes)
		}
		window := string(lowerRunes[start:end])
		score := scoreWindow(window, terms)
		if score > 0 {
			found = true
		}
		if isSentenceStart(runes, start) {
			score += 0.5
		}
		if score > bestScore {
			bestScore = score
			bestStart = start
		}
		if end == len(runes) {
			break
		}
	}

	start, end := bestStart, bestStart+windowLen
	if end > len(runes) {
		end = len(runes)
	}
	start, end = snapSnippetBounds(runes, start, end)

	var b strings.Builder
	if start > 0 {
		b.WriteString("…")
	}
	b.WriteString(string(runes[start:end]))
	if end < len(runes) {
		b.WriteString("…")
	}
	excerpt := b.String()

	if !found {
		return leadingExcerpt(runes, cfg.MaxLength)
	}
	return highlight(excerpt, terms, cfg.HighlightTag)
}

func scoreWindow(lowerWindow string, terms []string) float64 {
	var score float64
	for _, t := range terms {
		score += float64(strings.Count(lowerWindow, t))
	}
	return score
}

func isSentenceStart(runes []rune, pos int) bool {
	if pos == 0 {
		return true
	}
	for i := pos - 1; i >= 0 && i >= pos-2; i-- {
		c := runes[i]
		if c == '.' || c == '!' || c == '?' {
			return true
		}
		if !unicode.IsSpace(c) {
			return false
		}
	}
	return false
}

func snapSnippetBounds(runes []rune, start, end int) (int, int) {
	for start > 0 && !unicode.IsSpace(runes[start-1]) && !unicode.IsSpace(runes[start]) {
		start--
	}
	for start < len(runes) && unicode.IsSpace(runes[start]) {
		start++
	}
	for end < len(runes) && !unicode.IsSpace(runes[end]) {
		end++
	}
	for end > start && unicode.IsSpace(runes[end-1]) {
		end--
	}
	return start, end
}

func leadingExcerpt(runes []rune, maxLength int) string {
	end := maxLength
	if end > len(runes) {
		return string(runes)
	}
	for end > 0 && !unicode.IsSpace(runes[end]) {
		end--
	}
	if end == 0 {
		end = maxLength
		if end > len(runes) {
			end = len(runes)
		}
	}
	return strings.TrimRight(string(runes[:end]), " \t\n") + "…"
}

// highlight wraps each occurrence of terms in text with tag, processing
// longest terms first so a short term that's a prefix/substring of a longer
// one doesn't get wrapped independently inside an already-wrapped span.
func highlight(text string, terms []string, tag [2]string) string {
	if len(terms) == 0 {
		return text
	}
	sorted := append([]string(nil), terms...)
	sort.Slice(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })

	lower := strings.ToLower(text)
	type span struct{ start, end int }
	var spans []span
	covered := make([]bool, len(text))

	for _, t := range sorted {
		if t == "" {
			continue
		}
		searchFrom := 0
		for {
			idx := strings.Index(lower[searchFrom:], t)
			if idx < 0 {
				break
			}
			absStart := searchFrom + idx
			absEnd := absStart + len(t)
			searchFrom = absEnd

			overlap := false
			for i := absStart; i < absEnd; i++ {
				if covered[i] {
					overlap = true
					break
				}
			}
			if overlap {
				continue
			}
			for i := absStart; i < absEnd; i++ {
				covered[i] = true
			}
			spans = append(spans, span{absStart, absEnd})
		}
	}

	if len(spans) == 0 {
		return text
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	var b strings.Builder
	pos := 0
	for _, s := range spans {
		if s.start < pos {
			continue
		}
		b.WriteString(text[pos:s.start])
		b.WriteString(tag[0])
		b.WriteString(text[s.start:s.end])
		b.WriteString(tag[1])
		pos = s.end
	}
	b.WriteString(text[pos:])
	return b.String()
}
