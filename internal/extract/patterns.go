package extract

import "github.com/kittclouds/memctl/internal/textmatch"

// decisionTriggers are phrases that, when found in an assistant message,
// mark it as a candidate decision statement. Documented per spec §4.2
// rather than learned, so the extractor stays deterministic.
var decisionTriggers = map[string][]string{
	"decision": {
		"i'll use", "i will use", "let's go with", "let's use",
		"i'm going to use", "i am going to use", "going with",
		"i recommend using", "the best approach is", "i'll go with",
		"i chose", "i've decided to", "i have decided to",
	},
}

// mistakeTriggers are user-authored correction openers.
var mistakeTriggers = map[string][]string{
	"mistake": {
		"that's wrong", "that is wrong", "no, that's not",
		"this doesn't work", "this does not work", "that broke",
		"you broke", "actually that's incorrect", "that's not right",
		"this is broken", "revert that", "undo that",
	},
}

// problemStatementTriggers mark the start of a methodology span.
var problemStatementTriggers = map[string][]string{
	"problem": {
		"can you help me", "i need to", "how do i", "please fix",
		"there's a bug", "there is a bug", "i'm trying to", "i am trying to",
		"let's figure out", "can you investigate",
	},
}

// outcomeTriggers mark the end of a methodology span, tagged success/failure.
var outcomeTriggers = map[string][]string{
	"success": {
		"that fixed it", "that worked", "all tests pass", "looks good now",
		"that solved it", "great, that works", "perfect, thanks",
	},
	"failure": {
		"still broken", "didn't work", "did not work", "still failing",
		"giving up", "let's abandon this",
	},
}

// requirementTriggers mark a stated constraint or acceptance criterion
// from either party, per the Requirement record of spec §3 (data model defines it;
// §4.2 documents its sibling extractors' pattern-based style, which this
// follows).
var requirementTriggers = map[string][]string{
	"requirement": {
		"must", "needs to", "has to", "it's required that", "it is required that",
		"make sure", "don't forget to", "do not forget to", "should always",
		"never allow", "requirement:", "the requirement is",
	},
}

var (
	decisionPatterns    = mustCompile(decisionTriggers)
	mistakePatterns     = mustCompile(mistakeTriggers)
	problemPatterns     = mustCompile(problemStatementTriggers)
	outcomePatterns     = mustCompile(outcomeTriggers)
	requirementPatterns = mustCompile(requirementTriggers)
)

func mustCompile(m map[string][]string) *textmatch.PatternSet {
	ps, err := textmatch.CompilePatterns(m)
	if err != nil {
		// The trigger lists above are fixed string literals; a compile
		// failure here means a programming error, not bad input.
		panic("extract: pattern compilation failed: " + err.Error())
	}
	return ps
}
