// Package chunk splits message content into embedding-sized pieces (spec
// §4.4). Three strategies are implemented: sentence-aware packing,
// blank-line paragraph packing, and a character-based sliding window, all
// offset-exact against the original string.
package chunk

import (
	"regexp"
	"strings"
)

// Strategy selects a chunking algorithm.
type Strategy string

const (
	StrategySentence      Strategy = "sentence"
	StrategySlidingWindow Strategy = "sliding_window"
	StrategyParagraph     Strategy = "paragraph"
)

// Config parametrizes chunking, per spec §4.4.
type Config struct {
	Strategy           Strategy
	TargetTokens        int
	MinTokens           int
	MaxTokens           int
	OverlapFraction     float64
	CharsPerTokenProse  float64
	CharsPerTokenCode   float64
}

// DefaultConfig mirrors commonly used embedding-model chunk sizes.
func DefaultConfig() Config {
	return Config{
		Strategy:           StrategySentence,
		TargetTokens:       400,
		MinTokens:          50,
		MaxTokens:          600,
		OverlapFraction:    0.15,
		CharsPerTokenProse: 4.0,
		CharsPerTokenCode:  2.5,
	}
}

// TextChunk is one emitted chunk, per spec §4.4.
type TextChunk struct {
	Content         string
	Index           int
	TotalChunks     int
	StartOffset     int
	EndOffset       int
	EstimatedTokens int
	Strategy        Strategy
	WasChunked      bool
}

var sentenceTerminator = regexp.MustCompile(`[.!?]+[\s]+|[.!?]+$`)
var codeFenceSpan = regexp.MustCompile("(?s)```.*?```")

// Chunk splits text according to cfg. If the whole input fits within
// TargetTokens, a single unchunked TextChunk is returned.
func Chunk(text string, cfg Config) []TextChunk {
	if text == "" {
		return nil
	}

	total := EstimateTokens(text, cfg)
	if total <= cfg.TargetTokens {
		return []TextChunk{{
			Content:         text,
			Index:           0,
			TotalChunks:     1,
			StartOffset:     0,
			EndOffset:       len(text),
			EstimatedTokens: total,
			Strategy:        cfg.Strategy,
			WasChunked:      false,
		}}
	}

	var chunks []TextChunk
	switch cfg.Strategy {
	case StrategySlidingWindow:
		chunks = slidingWindow(text, cfg)
	case StrategyParagraph:
		chunks = paragraphPacked(text, cfg)
	default:
		chunks = sentencePacked(text, cfg)
	}

	for i := range chunks {
		chunks[i].Index = i
		chunks[i].TotalChunks = len(chunks)
		chunks[i].WasChunked = true
	}
	return chunks
}

// sentencePacked preserves fenced code blocks verbatim, splits prose at
// sentence terminators, greedily packs sentences up to TargetTokens, and
// overlaps successive chunks by OverlapFraction of trailing sentences.
func sentencePacked(text string, cfg Config) []TextChunk {
	units := splitPreservingCode(text)

	var chunks []TextChunk
	var cur []unit
	curTokens := 0
	curStart := -1

	flush := func(nextStart int) {
		if len(cur) == 0 {
			return
		}
		start := cur[0].start
		end := cur[len(cur)-1].end
		chunks = append(chunks, TextChunk{
			Content:         text[start:end],
			StartOffset:     start,
			EndOffset:       end,
			EstimatedTokens: curTokens,
			Strategy:        StrategySentence,
		})

		overlapCount := int(float64(len(cur)) * cfg.OverlapFraction)
		if overlapCount > 0 && overlapCount < len(cur) {
			cur = append([]unit{}, cur[len(cur)-overlapCount:]...)
			curTokens = 0
			for _, u := range cur {
				curTokens += EstimateTokens(text[u.start:u.end], cfg)
			}
		} else {
			cur = nil
			curTokens = 0
		}
		curStart = -1
		_ = nextStart
	}

	for _, u := range units {
		uTokens := EstimateTokens(text[u.start:u.end], cfg)

		if uTokens > cfg.MaxTokens && !u.isCode {
			// A single oversized sentence falls through to a word-level
			// sliding window for that sentence only (spec §4.4).
			flush(u.start)
			sub := slidingWindowSpan(text, u.start, u.end, cfg)
			chunks = append(chunks, sub...)
			continue
		}

		if curTokens+uTokens > cfg.TargetTokens && len(cur) > 0 {
			flush(u.start)
		}
		if curStart < 0 {
			curStart = u.start
		}
		cur = append(cur, u)
		curTokens += uTokens
	}
	flush(len(text))

	return chunks
}

// paragraphPacked packs blank-line-delimited paragraphs the way
// sentencePacked packs sentences. A paragraph that alone exceeds MaxTokens
// falls through to the sliding window for that span only.
func paragraphPacked(text string, cfg Config) []TextChunk {
	var chunks []TextChunk
	var cur []unit
	curTokens := 0

	flush := func() {
		if len(cur) == 0 {
			return
		}
		start := cur[0].start
		end := cur[len(cur)-1].end
		chunks = append(chunks, TextChunk{
			Content:         text[start:end],
			StartOffset:     start,
			EndOffset:       end,
			EstimatedTokens: curTokens,
			Strategy:        StrategyParagraph,
		})
		cur = nil
		curTokens = 0
	}

	for _, u := range splitParagraphs(text) {
		uTokens := EstimateTokens(text[u.start:u.end], cfg)
		if uTokens > cfg.MaxTokens {
			flush()
			chunks = append(chunks, slidingWindowSpan(text, u.start, u.end, cfg)...)
			continue
		}
		if curTokens+uTokens > cfg.TargetTokens && len(cur) > 0 {
			flush()
		}
		cur = append(cur, u)
		curTokens += uTokens
	}
	flush()
	return chunks
}

func splitParagraphs(text string) []unit {
	var units []unit
	start := 0
	for start < len(text) {
		idx := strings.Index(text[start:], "\n\n")
		end := len(text)
		if idx >= 0 {
			end = start + idx + 1 // keep the first newline with its paragraph
		}
		if strings.TrimSpace(text[start:end]) != "" {
			units = append(units, unit{start: start, end: end})
		}
		if idx < 0 {
			break
		}
		start = end + 1
	}
	return units
}

type unit struct {
	start, end int
	isCode     bool
}

// splitPreservingCode splits text into sentence-like units, keeping any
// fenced code block as a single indivisible unit.
func splitPreservingCode(text string) []unit {
	var units []unit
	pos := 0

	fences := codeFenceSpan.FindAllStringIndex(text, -1)
	fenceIdx := 0

	for pos < len(text) {
		var nextFenceStart = len(text)
		if fenceIdx < len(fences) {
			nextFenceStart = fences[fenceIdx][0]
		}

		if pos < nextFenceStart {
			prose := text[pos:nextFenceStart]
			units = append(units, splitSentences(prose, pos)...)
			pos = nextFenceStart
		}

		if fenceIdx < len(fences) && pos == fences[fenceIdx][0] {
			units = append(units, unit{start: fences[fenceIdx][0], end: fences[fenceIdx][1], isCode: true})
			pos = fences[fenceIdx][1]
			fenceIdx++
		}
	}
	return units
}

func splitSentences(s string, offset int) []unit {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var units []unit
	locs := sentenceTerminator.FindAllStringIndex(s, -1)
	start := 0
	for _, loc := range locs {
		end := loc[1]
		if strings.TrimSpace(s[start:end]) != "" {
			units = append(units, unit{start: offset + start, end: offset + end})
		}
		start = end
	}
	if start < len(s) && strings.TrimSpace(s[start:]) != "" {
		units = append(units, unit{start: offset + start, end: offset + len(s)})
	}
	return units
}

// slidingWindow implements the character-window strategy over the whole
// text (spec §4.4): window size derived from TargetTokens and this text's
// prose/code ratio, step = window - overlap, both edges snapped to
// whitespace, guaranteed forward progress.
func slidingWindow(text string, cfg Config) []TextChunk {
	return slidingWindowSpan(text, 0, len(text), cfg)
}

func slidingWindowSpan(text string, spanStart, spanEnd int, cfg Config) []TextChunk {
	span := text[spanStart:spanEnd]
	ratio := codeSpanRatio(span)
	avgCharsPerToken := cfg.CharsPerTokenProse*(1-ratio) + cfg.CharsPerTokenCode*ratio
	if avgCharsPerToken <= 0 {
		avgCharsPerToken = 4
	}

	window := int(float64(cfg.TargetTokens) * avgCharsPerToken)
	if window < 1 {
		window = 1
	}
	overlap := int(float64(window) * cfg.OverlapFraction)
	step := window - overlap
	if step < 1 {
		step = 1
	}

	var chunks []TextChunk
	pos := spanStart
	for pos < spanEnd {
		end := pos + window
		if end > spanEnd {
			end = spanEnd
		} else {
			end = snapToWhitespace(text, end, spanEnd, true)
		}
		start := snapToWhitespace(text, pos, spanStart, false)
		if start >= end {
			end = min(start+1, spanEnd)
		}

		chunks = append(chunks, TextChunk{
			Content:         text[start:end],
			StartOffset:     start,
			EndOffset:       end,
			EstimatedTokens: EstimateTokens(text[start:end], cfg),
			Strategy:        StrategySlidingWindow,
		})

		next := pos + step
		if next <= pos {
			next = pos + 1 // always make forward progress
		}
		pos = next
		if end >= spanEnd {
			break
		}
	}
	return chunks
}

// snapToWhitespace moves pos outward to the nearest whitespace boundary,
// never crossing limit. forward controls the search direction.
func snapToWhitespace(text string, pos, limit int, forward bool) int {
	if pos <= 0 || pos >= len(text) {
		return pos
	}
	if forward {
		for i := pos; i < len(text) && i < limit+1 && i-pos < 40; i++ {
			if text[i] == ' ' || text[i] == '\n' || text[i] == '\t' {
				return i
			}
		}
		return pos
	}
	for i := pos; i > limit && pos-i < 40; i-- {
		if text[i] == ' ' || text[i] == '\n' || text[i] == '\t' {
			return i
		}
	}
	return pos
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
