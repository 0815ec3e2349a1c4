package ical

import (
	"fmt"
	"strings"
	"time"
)

// TimeForm distinguishes the four wire encodings of an iCalendar time value.
type TimeForm int

const (
	FormUTC TimeForm = iota
	FormZoned
	FormFloating
	FormDate
)

const (
	dateLayout      = "20060102"
	localTimeLayout = "20060102T150405"
	utcTimeLayout   = "20060102T150405Z"
)

// DateTime is an immutable point in time carrying its original wire form:
// a UTC instant, an instant bound to an IANA timezone, a floating local
// time, or a date-only (all-day) value. Comparison is by underlying instant.
type DateTime struct {
	t    time.Time
	tzid string
	form TimeForm
}

// NewUTC builds a UTC date-time value.
func NewUTC(t time.Time) DateTime {
	return DateTime{t: t.UTC(), form: FormUTC}
}

// NewZoned builds a date-time bound to an IANA timezone identifier. The
// instant keeps its wall clock in loc; tzid is preserved for round-trip.
func NewZoned(t time.Time, tzid string, loc *time.Location) DateTime {
	return DateTime{t: t.In(loc), tzid: tzid, form: FormZoned}
}

// NewFloating builds a zone-less local time. It is stored with a UTC
// location purely so it has a concrete instant for ordering; the form keeps
// it from ever being serialized with a zone.
func NewFloating(t time.Time) DateTime {
	return DateTime{
		t:    time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC),
		form: FormFloating,
	}
}

// NewDate builds a date-only (all-day) value. Date values never carry a
// timezone offset; they are pinned to midnight UTC for arithmetic.
func NewDate(year int, month time.Month, day int) DateTime {
	return DateTime{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC), form: FormDate}
}

// NewDateOf truncates t to a date-only value.
func NewDateOf(t time.Time) DateTime {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// Time returns the underlying instant.
func (d DateTime) Time() time.Time { return d.t }

// Form returns the wire form of the value.
func (d DateTime) Form() TimeForm { return d.form }

// TZID returns the IANA timezone identifier for zoned values, "" otherwise.
func (d DateTime) TZID() string { return d.tzid }

// IsDate reports whether this is a date-only (all-day) value.
func (d DateTime) IsDate() bool { return d.form == FormDate }

// IsZero reports whether the value is unset.
func (d DateTime) IsZero() bool { return d.t.IsZero() }

func (d DateTime) Equal(other DateTime) bool { return d.t.Equal(other.t) }

func (d DateTime) Before(other DateTime) bool { return d.t.Before(other.t) }

func (d DateTime) After(other DateTime) bool { return d.t.After(other.t) }

// Add returns a copy shifted by dur, keeping form and zone binding.
func (d DateTime) Add(dur time.Duration) DateTime {
	return DateTime{t: d.t.Add(dur), tzid: d.tzid, form: d.form}
}

// WithInstant returns a copy of d whose instant is replaced by t but whose
// form and zone binding are preserved. The recurrence engine uses this to
// shift a master start onto an occurrence date.
func (d DateTime) WithInstant(t time.Time) DateTime {
	if d.form == FormDate {
		return NewDateOf(t)
	}
	return DateTime{t: t, tzid: d.tzid, form: d.form}
}

// encode renders the value part of a property line. The caller is
// responsible for emitting the matching VALUE=DATE / TZID parameter.
func (d DateTime) encode() string {
	switch d.form {
	case FormDate:
		return d.t.Format(dateLayout)
	case FormUTC:
		return d.t.UTC().Format(utcTimeLayout)
	default:
		return d.t.Format(localTimeLayout)
	}
}

// params renders the property parameter suffix ("" / ";VALUE=DATE" /
// ";TZID=...") matching the value form.
func (d DateTime) params() string {
	switch d.form {
	case FormDate:
		return ";VALUE=DATE"
	case FormZoned:
		return ";TZID=" + d.tzid
	default:
		return ""
	}
}

func (d DateTime) String() string {
	if d.form == FormZoned {
		return d.encode() + " [" + d.tzid + "]"
	}
	return d.encode()
}

// parseDateTimeValue decodes one DATE or DATE-TIME literal. The form is
// chosen per the decode rules: an explicit VALUE=DATE parameter or a bare
// 8-digit literal is a date; a trailing Z is UTC; a TZID parameter binds
// the wall clock to that zone; anything else floats.
func parseDateTimeValue(value string, params map[string][]string) (DateTime, error) {
	value = strings.TrimSpace(value)

	isDate := len(value) == len(dateLayout)
	if vp := firstParam(params, "VALUE"); strings.EqualFold(vp, "DATE") {
		isDate = true
	}
	if isDate {
		t, err := time.Parse(dateLayout, value)
		if err != nil {
			return DateTime{}, fmt.Errorf("invalid DATE value %q: %w", value, err)
		}
		return NewDateOf(t), nil
	}

	if strings.HasSuffix(value, "Z") {
		t, err := time.Parse(utcTimeLayout, value)
		if err != nil {
			return DateTime{}, fmt.Errorf("invalid UTC DATE-TIME value %q: %w", value, err)
		}
		return NewUTC(t), nil
	}

	if tzid := firstParam(params, "TZID"); tzid != "" {
		loc := resolveLocation(tzid)
		t, err := time.ParseInLocation(localTimeLayout, value, loc)
		if err != nil {
			return DateTime{}, fmt.Errorf("invalid zoned DATE-TIME value %q: %w", value, err)
		}
		return NewZoned(t, tzid, loc), nil
	}

	t, err := time.Parse(localTimeLayout, value)
	if err != nil {
		return DateTime{}, fmt.Errorf("invalid floating DATE-TIME value %q: %w", value, err)
	}
	return NewFloating(t), nil
}

func firstParam(params map[string][]string, name string) string {
	if params == nil {
		return ""
	}
	if vs := params[name]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}
