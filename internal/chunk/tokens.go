package chunk

import (
	"regexp"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// codeFencePattern detects fenced code blocks for the prose/code mixture
// estimate (spec §4.4).
var codeFencePattern = regexp.MustCompile("(?s)```.*?```")

// codePatternHints are inline signals that a span not inside a fence is
// still likely code (a single backtick span, or a line that looks like a
// statement).
var codePatternHints = regexp.MustCompile("`[^`\n]+`|^\\s*(func|def|class|import|const|let|var)\\b")

var encoding = initEncoding()

func initEncoding() *tiktoken.Tiktoken {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		// Falls back to a nil encoding; EstimateTokens degrades to the
		// chars-per-token heuristic alone in that case.
		return nil
	}
	return enc
}

// codeSpanRatio returns the fraction of text (by byte length) that falls
// inside a fenced code block or looks like an inline code hint.
func codeSpanRatio(text string) float64 {
	if text == "" {
		return 0
	}
	codeBytes := 0
	for _, m := range codeFencePattern.FindAllStringIndex(text, -1) {
		codeBytes += m[1] - m[0]
	}
	for _, line := range strings.Split(text, "\n") {
		if codePatternHints.MatchString(line) {
			codeBytes += len(line)
		}
	}
	if codeBytes > len(text) {
		codeBytes = len(text)
	}
	return float64(codeBytes) / float64(len(text))
}

// EstimateTokens returns the cl100k_base tokenizer count when that encoding
// loaded. Only when it did not does it fall back to the prose/code
// chars-per-token mixture; the two estimates are never combined.
func EstimateTokens(text string, cfg Config) int {
	if text == "" {
		return 0
	}
	if encoding != nil {
		return len(encoding.Encode(text, nil, nil))
	}

	ratio := codeSpanRatio(text)
	charsPerToken := cfg.CharsPerTokenProse*(1-ratio) + cfg.CharsPerTokenCode*ratio
	if charsPerToken <= 0 {
		charsPerToken = 4
	}
	return int(float64(len(text))/charsPerToken) + 1
}
