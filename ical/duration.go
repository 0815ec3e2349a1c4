package ical

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseICalDuration decodes an RFC 5545 duration literal
// ([+|-]P[nW][nD][T[nH][nM][nS]]) into a signed time.Duration. Alarm
// triggers commonly use negative durations ("before").
func ParseICalDuration(value string) (time.Duration, error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}

	negative := false
	switch s[0] {
	case '-':
		negative = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	if len(s) == 0 || s[0] != 'P' {
		return 0, fmt.Errorf("invalid duration %q: missing P designator", value)
	}
	s = s[1:]

	var total time.Duration
	inTime := false
	num := ""
	sawComponent := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			num += string(c)
		case c == 'T':
			if num != "" {
				return 0, fmt.Errorf("invalid duration %q: digits before T", value)
			}
			inTime = true
		default:
			if num == "" {
				return 0, fmt.Errorf("invalid duration %q: designator %c without digits", value, c)
			}
			n, err := strconv.Atoi(num)
			if err != nil {
				return 0, fmt.Errorf("invalid duration %q: %w", value, err)
			}
			num = ""
			sawComponent = true
			switch {
			case c == 'W' && !inTime:
				total += time.Duration(n) * 7 * 24 * time.Hour
			case c == 'D' && !inTime:
				total += time.Duration(n) * 24 * time.Hour
			case c == 'H' && inTime:
				total += time.Duration(n) * time.Hour
			case c == 'M' && inTime:
				total += time.Duration(n) * time.Minute
			case c == 'S' && inTime:
				total += time.Duration(n) * time.Second
			default:
				return 0, fmt.Errorf("invalid duration %q: unexpected designator %c", value, c)
			}
		}
	}
	if num != "" {
		return 0, fmt.Errorf("invalid duration %q: trailing digits", value)
	}
	if !sawComponent {
		return 0, fmt.Errorf("invalid duration %q: no components", value)
	}

	if negative {
		total = -total
	}
	return total, nil
}

// FormatICalDuration encodes a signed duration in the normalized RFC 5545
// form. Whole weeks collapse to nW; sub-second precision is dropped.
func FormatICalDuration(d time.Duration) string {
	var b strings.Builder
	if d < 0 {
		b.WriteByte('-')
		d = -d
	}
	b.WriteByte('P')

	const week = 7 * 24 * time.Hour
	if d > 0 && d%week == 0 {
		fmt.Fprintf(&b, "%dW", d/week)
		return b.String()
	}

	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	seconds := d / time.Second

	if days > 0 {
		fmt.Fprintf(&b, "%dD", days)
	}
	if hours > 0 || minutes > 0 || seconds > 0 {
		b.WriteByte('T')
		if hours > 0 {
			fmt.Fprintf(&b, "%dH", hours)
		}
		if minutes > 0 {
			fmt.Fprintf(&b, "%dM", minutes)
		}
		if seconds > 0 {
			fmt.Fprintf(&b, "%dS", seconds)
		}
	}
	if days == 0 && hours == 0 && minutes == 0 && seconds == 0 {
		b.WriteString("T0S")
	}
	return b.String()
}
