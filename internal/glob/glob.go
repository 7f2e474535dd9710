// Package glob matches the ? and * wildcards supported by text queries.
//
// The matcher is an explicit two-pointer automaton over runes rather than a
// translation to regexp, so matching semantics do not depend on the regexp
// engine: ? consumes exactly one rune, * consumes zero or more runes.
package glob

import "strings"

// HasWildcard reports whether the pattern contains ? or *.
func HasWildcard(pattern string) bool {
	return strings.ContainsAny(pattern, "?*")
}

// Pattern is a compiled wildcard pattern.
type Pattern struct {
	runes []rune
}

// Compile prepares a pattern for repeated matching. Matching is
// case-sensitive; callers normalize case before compiling.
func Compile(pattern string) *Pattern {
	return &Pattern{runes: []rune(pattern)}
}

// Match reports whether s matches the pattern in full.
func (p *Pattern) Match(s string) bool {
	str := []rune(s)
	pat := p.runes

	// si/pi walk the string and pattern; star/mark remember the most recent
	// * so the automaton can backtrack by letting it absorb one more rune.
	si, pi := 0, 0
	star, mark := -1, 0

	for si < len(str) {
		switch {
		case pi < len(pat) && (pat[pi] == '?' || pat[pi] == str[si]):
			si++
			pi++
		case pi < len(pat) && pat[pi] == '*':
			star = pi
			mark = si
			pi++
		case star >= 0:
			pi = star + 1
			mark++
			si = mark
		default:
			return false
		}
	}
	for pi < len(pat) && pat[pi] == '*' {
		pi++
	}
	return pi == len(pat)
}
