package ical

import (
	"strings"
	"unicode/utf8"
)

const (
	// RFC 5545 §3.1: physical lines are limited to 75 octets, not counting
	// the CRLF. Continuation lines lose one octet to the leading space.
	maxLineOctets         = 75
	maxContinuationOctets = 74
)

// foldLine wraps a logical content line into physical lines of at most 75
// UTF-8 octets, continuation lines prefixed with a single space. Folding
// walks code points so a multi-byte character is never split across a
// boundary. The returned string always ends with CRLF.
func foldLine(line string) string {
	if len(line) <= maxLineOctets {
		return line + "\r\n"
	}

	var b strings.Builder
	budget := maxLineOctets
	used := 0
	for _, r := range line {
		n := utf8.RuneLen(r)
		if used+n > budget {
			b.WriteString("\r\n ")
			budget = maxContinuationOctets
			used = 0
		}
		b.WriteRune(r)
		used += n
	}
	b.WriteString("\r\n")
	return b.String()
}

// unfoldLines normalizes line endings and reverses RFC 5545 folding: any
// break immediately followed by a space or tab continues the previous
// line. This must run before any property line is tokenized.
func unfoldLines(raw string) []string {
	normalized := strings.ReplaceAll(raw, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")

	var out []string
	for _, line := range strings.Split(normalized, "\n") {
		if line == "" {
			continue
		}
		if (line[0] == ' ' || line[0] == '\t') && len(out) > 0 {
			out[len(out)-1] += line[1:]
			continue
		}
		out = append(out, line)
	}
	return out
}
