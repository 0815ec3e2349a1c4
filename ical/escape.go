package ical

import "strings"

var textEscaper = strings.NewReplacer(
	`\`, `\\`,
	"\r\n", `\n`,
	"\r", `\n`,
	"\n", `\n`,
	`;`, `\;`,
	`,`, `\,`,
)

// EscapeText escapes a TEXT property value per RFC 5545 §3.3.11. Raw CR
// and CRLF are normalized to the escaped newline: TEXT values may not
// contain a bare CR, and emitting one would split the property line at
// the next unfold.
func EscapeText(s string) string {
	return textEscaper.Replace(s)
}

// backslashPlaceholder is a code point that cannot appear in iCalendar
// TEXT values (controls are forbidden), so it is safe as a swap marker.
const backslashPlaceholder = "\x00"

// UnescapeText reverses EscapeText. Literal backslashes are swapped out
// first and restored last, so an escaped sequence like `\\n` decodes to a
// backslash followed by "n" instead of being double-unescaped.
func UnescapeText(s string) string {
	s = strings.ReplaceAll(s, `\\`, backslashPlaceholder)
	s = strings.ReplaceAll(s, `\n`, "\n")
	s = strings.ReplaceAll(s, `\N`, "\n")
	s = strings.ReplaceAll(s, `\;`, ";")
	s = strings.ReplaceAll(s, `\,`, ",")
	return strings.ReplaceAll(s, backslashPlaceholder, `\`)
}
