package ical

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// Frequency is the FREQ part of a recurrence rule.
type Frequency int

const (
	Secondly Frequency = iota
	Minutely
	Hourly
	Daily
	Weekly
	Monthly
	Yearly
)

var frequencyNames = map[Frequency]string{
	Secondly: "SECONDLY",
	Minutely: "MINUTELY",
	Hourly:   "HOURLY",
	Daily:    "DAILY",
	Weekly:   "WEEKLY",
	Monthly:  "MONTHLY",
	Yearly:   "YEARLY",
}

func (f Frequency) String() string { return frequencyNames[f] }

// SubDaily reports whether the frequency generates more than one
// occurrence per calendar day.
func (f Frequency) SubDaily() bool { return f <= Hourly }

// WeekdayNum is a BYDAY entry: a weekday plus an optional ordinal, e.g.
// {Tuesday, 2} for "the 2nd Tuesday" or {Friday, -1} for "the last Friday".
// N == 0 means every matching weekday.
type WeekdayNum struct {
	Day time.Weekday
	N   int
}

var weekdayCodes = map[time.Weekday]string{
	time.Sunday:    "SU",
	time.Monday:    "MO",
	time.Tuesday:   "TU",
	time.Wednesday: "WE",
	time.Thursday:  "TH",
	time.Friday:    "FR",
	time.Saturday:  "SA",
}

var codeWeekdays = map[string]time.Weekday{
	"SU": time.Sunday,
	"MO": time.Monday,
	"TU": time.Tuesday,
	"WE": time.Wednesday,
	"TH": time.Thursday,
	"FR": time.Friday,
	"SA": time.Saturday,
}

func (w WeekdayNum) String() string {
	if w.N != 0 {
		return strconv.Itoa(w.N) + weekdayCodes[w.Day]
	}
	return weekdayCodes[w.Day]
}

// RRule is a parsed RFC 5545 recurrence rule. It is immutable once parsed;
// COUNT and UNTIL are mutually exclusive and validated at parse time.
type RRule struct {
	Freq       Frequency
	Interval   int // >= 1
	Count      int // 0 = unset
	Until      *DateTime
	ByDay      []WeekdayNum
	ByMonthDay []int
	ByMonth    []int
	ByWeekNo   []int
	ByYearDay  []int
	ByHour     []int
	ByMinute   []int
	BySecond   []int
	BySetPos   []int
	WeekStart  time.Weekday // WKST, default Monday
}

// SubDaily reports whether the rule can generate more than one occurrence
// per calendar day: either its frequency is sub-daily, or a coarser rule
// fans out over multiple BYHOUR/BYMINUTE/BYSECOND values.
func (r *RRule) SubDaily() bool {
	return r.Freq.SubDaily() || len(r.ByHour) > 1 || len(r.ByMinute) > 1 || len(r.BySecond) > 1
}

// ParseRRule decodes an RRULE property value. Malformed rules are rejected
// here so the recurrence engine never has to fail at expansion time.
func ParseRRule(value string) (*RRule, error) {
	rule := &RRule{Interval: 1, WeekStart: time.Monday}
	sawFreq := false

	for _, part := range strings.Split(strings.TrimSpace(value), ";") {
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return nil, &ParseError{Type: ErrBadRecurrence, Property: "RRULE",
				Message: fmt.Sprintf("malformed rule part %q", part)}
		}
		key := strings.ToUpper(kv[0])
		val := kv[1]

		var err error
		switch key {
		case "FREQ":
			sawFreq = true
			err = rule.parseFreq(val)
		case "INTERVAL":
			rule.Interval, err = strconv.Atoi(val)
		case "COUNT":
			rule.Count, err = strconv.Atoi(val)
		case "UNTIL":
			var until DateTime
			until, err = parseDateTimeValue(val, nil)
			if err == nil {
				rule.Until = &until
			}
		case "BYDAY":
			err = rule.parseByDay(val)
		case "BYMONTHDAY":
			rule.ByMonthDay, err = parseIntList(val, -31, 31)
		case "BYMONTH":
			rule.ByMonth, err = parseIntList(val, 1, 12)
		case "BYWEEKNO":
			rule.ByWeekNo, err = parseIntList(val, -53, 53)
		case "BYYEARDAY":
			rule.ByYearDay, err = parseIntList(val, -366, 366)
		case "BYHOUR":
			rule.ByHour, err = parseIntList(val, 0, 23)
		case "BYMINUTE":
			rule.ByMinute, err = parseIntList(val, 0, 59)
		case "BYSECOND":
			rule.BySecond, err = parseIntList(val, 0, 59)
		case "BYSETPOS":
			rule.BySetPos, err = parseIntList(val, -366, 366)
		case "WKST":
			day, ok := codeWeekdays[strings.ToUpper(val)]
			if !ok {
				err = fmt.Errorf("unknown weekday %q", val)
			} else {
				rule.WeekStart = day
			}
		default:
			// Unrecognized rule parts (vendor extensions, typos) are
			// rejected rather than silently dropped.
			err = fmt.Errorf("unsupported rule part %q", key)
		}
		if err != nil {
			return nil, &ParseError{Type: ErrBadRecurrence, Property: "RRULE",
				Message: fmt.Sprintf("invalid %s", key), Err: err}
		}
	}

	if !sawFreq {
		return nil, &ParseError{Type: ErrBadRecurrence, Property: "RRULE", Message: "missing FREQ"}
	}
	if rule.Interval < 1 {
		return nil, &ParseError{Type: ErrBadRecurrence, Property: "RRULE", Message: "INTERVAL must be >= 1"}
	}
	if rule.Count < 0 {
		return nil, &ParseError{Type: ErrBadRecurrence, Property: "RRULE", Message: "COUNT must be positive"}
	}
	if rule.Count > 0 && rule.Until != nil {
		return nil, &ParseError{Type: ErrBadRecurrence, Property: "RRULE", Message: "COUNT and UNTIL are mutually exclusive"}
	}
	return rule, nil
}

func (r *RRule) parseFreq(val string) error {
	for freq, name := range frequencyNames {
		if strings.EqualFold(val, name) {
			r.Freq = freq
			return nil
		}
	}
	return fmt.Errorf("unknown frequency %q", val)
}

func (r *RRule) parseByDay(val string) error {
	for _, token := range strings.Split(val, ",") {
		token = strings.ToUpper(strings.TrimSpace(token))
		if len(token) < 2 {
			return fmt.Errorf("malformed BYDAY token %q", token)
		}
		code := token[len(token)-2:]
		day, ok := codeWeekdays[code]
		if !ok {
			return fmt.Errorf("unknown weekday in BYDAY token %q", token)
		}
		n := 0
		if ord := token[:len(token)-2]; ord != "" {
			v, err := strconv.Atoi(ord)
			if err != nil || v == 0 || v < -53 || v > 53 {
				return fmt.Errorf("bad ordinal in BYDAY token %q", token)
			}
			n = v
		}
		r.ByDay = append(r.ByDay, WeekdayNum{Day: day, N: n})
	}
	return nil
}

func parseIntList(val string, min, max int) ([]int, error) {
	var out []int
	for _, s := range strings.Split(val, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return nil, err
		}
		if n < min || n > max {
			return nil, fmt.Errorf("value %d out of range [%d, %d]", n, min, max)
		}
		out = append(out, n)
	}
	return out, nil
}

// String renders the rule as a canonical RRULE property value.
func (r *RRule) String() string {
	parts := []string{"FREQ=" + r.Freq.String()}
	if r.Interval > 1 {
		parts = append(parts, "INTERVAL="+strconv.Itoa(r.Interval))
	}
	if r.Count > 0 {
		parts = append(parts, "COUNT="+strconv.Itoa(r.Count))
	}
	if r.Until != nil {
		parts = append(parts, "UNTIL="+r.Until.encode())
	}
	if len(r.ByDay) > 0 {
		tokens := make([]string, len(r.ByDay))
		for i, wd := range r.ByDay {
			tokens[i] = wd.String()
		}
		parts = append(parts, "BYDAY="+strings.Join(tokens, ","))
	}
	parts = appendIntList(parts, "BYMONTHDAY", r.ByMonthDay)
	parts = appendIntList(parts, "BYMONTH", r.ByMonth)
	parts = appendIntList(parts, "BYWEEKNO", r.ByWeekNo)
	parts = appendIntList(parts, "BYYEARDAY", r.ByYearDay)
	parts = appendIntList(parts, "BYHOUR", r.ByHour)
	parts = appendIntList(parts, "BYMINUTE", r.ByMinute)
	parts = appendIntList(parts, "BYSECOND", r.BySecond)
	parts = appendIntList(parts, "BYSETPOS", r.BySetPos)
	if r.WeekStart != time.Monday {
		parts = append(parts, "WKST="+weekdayCodes[r.WeekStart])
	}
	return strings.Join(parts, ";")
}

func appendIntList(parts []string, name string, vals []int) []string {
	if len(vals) == 0 {
		return parts
	}
	tokens := make([]string, len(vals))
	for i, v := range vals {
		tokens[i] = strconv.Itoa(v)
	}
	return append(parts, name+"="+strings.Join(tokens, ","))
}

var rruleFrequencies = map[Frequency]rrule.Frequency{
	Secondly: rrule.SECONDLY,
	Minutely: rrule.MINUTELY,
	Hourly:   rrule.HOURLY,
	Daily:    rrule.DAILY,
	Weekly:   rrule.WEEKLY,
	Monthly:  rrule.MONTHLY,
	Yearly:   rrule.YEARLY,
}

var rruleWeekdays = map[time.Weekday]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

// ROption converts the rule to a teambition/rrule-go option set seeded at
// dtstart, ready for materialization over a time range.
func (r *RRule) ROption(dtstart time.Time) rrule.ROption {
	opt := rrule.ROption{
		Freq:       rruleFrequencies[r.Freq],
		Interval:   r.Interval,
		Count:      r.Count,
		Wkst:       rruleWeekdays[r.WeekStart],
		Bymonthday: r.ByMonthDay,
		Bymonth:    r.ByMonth,
		Byweekno:   r.ByWeekNo,
		Byyearday:  r.ByYearDay,
		Byhour:     r.ByHour,
		Byminute:   r.ByMinute,
		Bysecond:   r.BySecond,
		Bysetpos:   r.BySetPos,
		Dtstart:    dtstart,
	}
	if r.Until != nil {
		opt.Until = r.Until.Time()
	}
	for _, wd := range r.ByDay {
		day := rruleWeekdays[wd.Day]
		if wd.N != 0 {
			day = day.Nth(wd.N)
		}
		opt.Byweekday = append(opt.Byweekday, day)
	}
	return opt
}
