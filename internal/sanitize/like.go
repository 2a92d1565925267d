package sanitize

import "strings"

// likeEscaper backslash-escapes the SQLite LIKE wildcard characters plus the
// escape character itself, in the order that guarantees no double-escaping.
var likeEscaper = strings.NewReplacer(
	`\`, `\\`,
	`%`, `\%`,
	`_`, `\_`,
	`"`, `\"`,
)

// ForLike escapes s so that `... LIKE '%' || ForLike(s) || '%' ESCAPE '\'`
// matches only literal occurrences of s, never treating its own `%`, `_`, or
// `"` as wildcards.
func ForLike(s string) string {
	return likeEscaper.Replace(s)
}

// ForFTSMatch quotes a single term for use inside an FTS5 MATCH expression,
// escaping embedded double quotes so the term is treated as a literal
// phrase rather than FTS5 query syntax (column filters, NEAR, boolean
// operators).
func ForFTSMatch(term string) string {
	escaped := strings.ReplaceAll(term, `"`, `""`)
	return `"` + escaped + `"`
}

// ForFTSOrQuery joins terms into a `"t1" OR "t2" OR ...` FTS5 query, used by
// the deletion service's lexical discovery pass so each keyword is matched
// literally rather than interpreted as an FTS operator.
func ForFTSOrQuery(terms []string) string {
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		quoted = append(quoted, ForFTSMatch(t))
	}
	return strings.Join(quoted, " OR ")
}
