package util

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	reBoldRef = regexp.MustCompile(`\*\*\s*\[([Ff]\d+)\]\s*\*\*`)
	reFactRef = regexp.MustCompile(`\[([Ff])(\d+)\]`)
	reRefSep  = regexp.MustCompile(`\][\t ]+\[F`)
)

// NormalizeFactRefs cleans evidence references ("[F1]") in generated answer
// text. Markdown emphasis around a reference is unwrapped, lowercase
// references are upcased, references pointing past factCount are dropped,
// and runs of the same reference collapse to a single one.
func NormalizeFactRefs(s string, factCount int) string {
	s = reBoldRef.ReplaceAllString(s, "[$1]")
	s = upcaseRefs(s)
	s = stripDanglingRefs(s, factCount)
	s = dedupeAdjacentRefs(s)

	s = reRefSep.ReplaceAllString(s, "] [F")

	return s
}

func upcaseRefs(s string) string {
	return reFactRef.ReplaceAllString(s, "[F$2]")
}

func stripDanglingRefs(s string, factCount int) string {
	matches := reFactRef.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	cursor := 0

	for _, m := range matches {
		start, end := m[0], m[1]
		n, err := strconv.Atoi(s[m[4]:m[5]])
		if err == nil && n >= 1 && n <= factCount {
			continue
		}

		segEnd := start
		if segEnd > cursor && s[segEnd-1] == ' ' {
			segEnd--
		}
		b.WriteString(s[cursor:segEnd])
		cursor = end
	}

	if cursor < len(s) {
		b.WriteString(s[cursor:])
	}
	return b.String()
}

func dedupeAdjacentRefs(s string) string {
	matches := reFactRef.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	cursor := 0

	for mi := 0; mi < len(matches); mi++ {
		m := matches[mi]
		start, end := m[0], m[1]
		ref := s[m[4]:m[5]]

		b.WriteString(s[cursor:start])

		dupEnd := end
		next := mi + 1
		initialAtLineStart := isLineStart(s, start)

		for next < len(matches) {
			nextStart := matches[next][0]
			sep := s[dupEnd:nextStart]

			if !onlyWhitespace(sep) {
				break
			}
			if containsLineBreak(sep) && !initialAtLineStart {
				break
			}

			nextRef := s[matches[next][4]:matches[next][5]]
			if nextRef != ref {
				break
			}
			dupEnd = matches[next][1]
			next++
		}

		b.WriteString(s[start:end])

		cursor = dupEnd
		mi = next - 1
	}

	if cursor < len(s) {
		b.WriteString(s[cursor:])
	}
	return b.String()
}

func onlyWhitespace(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

func containsLineBreak(s string) bool {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\n', '\r':
			return true
		}
	}
	return false
}

func isLineStart(s string, idx int) bool {
	if idx <= 0 {
		return true
	}
	prev := s[idx-1]
	return prev == '\n' || prev == '\r'
}
