// Package textmatch provides the shared text-normalisation and
// pattern-matching primitives used by sanitisation, extraction, and query
// expansion: a canonical form for comparing surface text, an offset-preserving
// tokenizer, a stopword filter, and an Aho-Corasick trigger-phrase matcher.
package textmatch

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/coregx/ahocorasick"
	"github.com/orsinium-labs/stopwords"
)

// isJoiner reports whether r is punctuation that commonly appears inside a
// term rather than between terms ("don't", "multi-word", "v1.2").
func isJoiner(r rune) bool {
	switch r {
	case '\'', '’', '‘',
		'-', '–', '—',
		'.', '_', '/':
		return true
	default:
		return false
	}
}

func isSeparator(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) || isJoiner(r) {
		return false
	}
	return true
}

// Canonicalize lowercases s, folds curly quotes and en/em dashes to their
// plain equivalents, keeps letters/digits/joiners, and collapses every run of
// other characters to a single space. Used identically when compiling trigger
// patterns and when scanning text, so offsets line up between the two.
func Canonicalize(s string) string {
	var out strings.Builder
	out.Grow(len(s))

	lastWasSpace := true
	for _, ch := range s {
		c := unicode.ToLower(ch)
		switch c {
		case '’', '‘':
			c = '\''
		case '–', '—':
			c = '-'
		}

		if unicode.IsLetter(c) || unicode.IsDigit(c) || isJoiner(c) {
			out.WriteRune(c)
			lastWasSpace = false
		} else if !lastWasSpace {
			out.WriteRune(' ')
			lastWasSpace = true
		}
	}

	result := out.String()
	return strings.TrimRight(result, " ")
}

// Token is a word with its byte offsets in the original, un-canonicalized
// string.
type Token struct {
	Text  string
	Start int
	End   int
}

// TokenizeWithOffsets splits s into tokens, preserving byte offsets into s.
func TokenizeWithOffsets(s string) []Token {
	out := make([]Token, 0, 32)
	i := 0
	for i < len(s) {
		for i < len(s) {
			r, w := utf8.DecodeRuneInString(s[i:])
			if !isSeparator(r) {
				break
			}
			i += w
		}
		start := i
		for i < len(s) {
			r, w := utf8.DecodeRuneInString(s[i:])
			if isSeparator(r) {
				break
			}
			i += w
		}
		end := i
		if start < end {
			out = append(out, Token{Text: Canonicalize(s[start:end]), Start: start, End: end})
		}
	}
	return out
}

// StopWords is a small hand-maintained core list, kept independent of the
// stopwords package below so callers can extend or narrow it per use site.
var StopWords = map[string]bool{
	"the": true, "a": true, "an": true, "of": true, "and": true, "or": true,
	"to": true, "in": true, "on": true, "for": true, "at": true, "by": true,
	"is": true, "it": true, "as": true, "be": true, "was": true, "are": true,
	"been": true, "with": true, "from": true, "into": true, "that": true,
	"this": true, "has": true, "have": true, "had": true, "its": true,
}

var enStopwords = stopwords.MustGet("en")

// IsStopWord reports whether w is a stop word under either the hand-written
// core list or the orsinium-labs/stopwords English set. Two layers catch
// words the small hardcoded list misses without depending solely on the
// library's judgment calls.
func IsStopWord(w string) bool {
	if StopWords[w] {
		return true
	}
	return enStopwords.Contains(w)
}

// TokenizeFiltered canonicalizes text, splits on whitespace, and drops stop
// words and tokens shorter than minLen.
func TokenizeFiltered(text string, minLen int) []string {
	words := strings.Fields(Canonicalize(text))
	out := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) < minLen || IsStopWord(w) {
			continue
		}
		out = append(out, w)
	}
	return out
}

// PatternSet is a compiled Aho-Corasick automaton over a fixed list of
// trigger phrases, each tagged with an arbitrary label. It canonicalizes
// both the compiled patterns and the scanned text through Canonicalize, then
// maps matches back to byte offsets in the original text.
type PatternSet struct {
	ac       *ahocorasick.Automaton
	labels   [][]string
	patterns []string
}

// CompilePatterns builds a PatternSet from a label -> phrases map.
func CompilePatterns(labeled map[string][]string) (*PatternSet, error) {
	ps := &PatternSet{}
	patternIndex := make(map[string]int)

	for label, phrases := range labeled {
		for _, phrase := range phrases {
			key := Canonicalize(phrase)
			if key == "" {
				continue
			}
			if idx, ok := patternIndex[key]; ok {
				ps.labels[idx] = appendUnique(ps.labels[idx], label)
				continue
			}
			idx := len(ps.patterns)
			ps.patterns = append(ps.patterns, key)
			ps.labels = append(ps.labels, []string{label})
			patternIndex[key] = idx
		}
	}

	automaton, err := ahocorasick.NewBuilder().
		AddStrings(ps.patterns).
		SetMatchKind(ahocorasick.LeftmostLongest).
		SetPrefilter(true).
		Build()
	if err != nil {
		return nil, err
	}
	ps.ac = automaton
	return ps, nil
}

// Hit is one trigger-phrase match in the original text.
type Hit struct {
	Start  int
	End    int
	Text   string
	Labels []string
}

// Scan finds every trigger-phrase occurrence in text, with offsets mapped
// back into the original (pre-canonicalization) string.
func (ps *PatternSet) Scan(text string) []Hit {
	if ps.ac == nil {
		return nil
	}
	canon := Canonicalize(text)
	offsetMap := buildOffsetMap(text)

	matches := ps.ac.FindAllOverlapping([]byte(canon))
	hits := make([]Hit, 0, len(matches))
	for _, m := range matches {
		start := mapOffset(m.Start, offsetMap, len(text))
		end := mapOffset(m.End, offsetMap, len(text))
		if start >= len(text) || end > len(text) || start >= end {
			continue
		}
		hits = append(hits, Hit{
			Start:  start,
			End:    end,
			Text:   text[start:end],
			Labels: ps.labels[m.PatternID],
		})
	}
	return hits
}

func buildOffsetMap(original string) []int {
	mapping := make([]int, 0, len(original)+1)
	lastWasSpace := true
	origPos := 0

	for _, ch := range original {
		runeLen := utf8.RuneLen(ch)
		c := unicode.ToLower(ch)
		switch c {
		case '’', '‘':
			c = '\''
		case '–', '—':
			c = '-'
		}

		if unicode.IsLetter(c) || unicode.IsDigit(c) || isJoiner(c) {
			canonLen := utf8.RuneLen(c)
			for i := 0; i < canonLen; i++ {
				mapping = append(mapping, origPos)
			}
			lastWasSpace = false
		} else if !lastWasSpace {
			mapping = append(mapping, origPos)
			lastWasSpace = true
		}
		origPos += runeLen
	}
	mapping = append(mapping, origPos)
	return mapping
}

func mapOffset(canonOffset int, mapping []int, originalLen int) int {
	if canonOffset >= len(mapping) {
		return originalLen
	}
	if canonOffset < 0 {
		return 0
	}
	return mapping[canonOffset]
}

func appendUnique(slice []string, item string) []string {
	for _, s := range slice {
		if s == item {
			return slice
		}
	}
	return append(slice, item)
}
