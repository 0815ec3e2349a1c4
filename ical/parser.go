package ical

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/mo"
)

// contentLine is one unfolded property line, split into its parts. rawKey
// keeps the original pre-colon text so unmodeled properties can be
// preserved byte for byte.
type contentLine struct {
	name   string
	rawKey string
	params map[string][]string
	value  string
}

// rawComponent is a BEGIN/END block before typed decoding.
type rawComponent struct {
	name     string
	lines    []*contentLine
	children []*rawComponent
}

// Parse converts raw RFC 5545 text into a Calendar. Structural failures
// (unterminated blocks, illegal base grammar) abort the whole parse; a
// component missing required properties is skipped and reported through
// Calendar.Warnings while its siblings still parse.
func Parse(raw string) mo.Result[*Calendar] {
	roots, err := buildComponentTree(unfoldLines(raw))
	if err != nil {
		return mo.Err[*Calendar](err)
	}
	if len(roots) == 0 {
		return mo.Err[*Calendar](structuralError("no VCALENDAR component found", nil))
	}

	cal := &Calendar{}
	for _, root := range roots {
		if root.name != "VCALENDAR" {
			return mo.Err[*Calendar](structuralError(
				fmt.Sprintf("unexpected top-level component %s", root.name), nil))
		}
		decodeCalendar(root, cal)
	}
	return mo.Ok(cal)
}

// ParseAllEvents is the common-case entry point: all VEVENTs of the blob
// as a flat list, master and overrides side by side.
func ParseAllEvents(raw string) mo.Result[[]*Event] {
	res := Parse(raw)
	if res.IsError() {
		return mo.Err[[]*Event](res.Error())
	}
	return mo.Ok(res.MustGet().Events)
}

// buildComponentTree walks BEGIN/END blocks into raw component trees.
func buildComponentTree(lines []string) ([]*rawComponent, error) {
	relaxed := activeConfig().RelaxedParsing

	var roots []*rawComponent
	var stack []*rawComponent
	for _, line := range lines {
		cl, err := parseContentLine(line)
		if err != nil {
			if relaxed {
				continue
			}
			return nil, structuralError(fmt.Sprintf("unparseable content line %q", line), err)
		}

		switch cl.name {
		case "BEGIN":
			comp := &rawComponent{name: strings.ToUpper(cl.value)}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, comp)
			} else {
				roots = append(roots, comp)
			}
			stack = append(stack, comp)
		case "END":
			if len(stack) == 0 {
				return nil, structuralError(fmt.Sprintf("END:%s without matching BEGIN", cl.value), nil)
			}
			top := stack[len(stack)-1]
			if !strings.EqualFold(cl.value, top.name) {
				return nil, structuralError(
					fmt.Sprintf("END:%s does not close BEGIN:%s", cl.value, top.name), nil)
			}
			stack = stack[:len(stack)-1]
		default:
			if len(stack) == 0 {
				if relaxed {
					continue
				}
				return nil, structuralError(fmt.Sprintf("property %s outside any component", cl.name), nil)
			}
			top := stack[len(stack)-1]
			top.lines = append(top.lines, cl)
		}
	}
	if len(stack) > 0 {
		return nil, structuralError(fmt.Sprintf("unterminated BEGIN:%s", stack[len(stack)-1].name), nil)
	}
	return roots, nil
}

// parseContentLine splits "NAME;PARAM=value:value" on the first colon
// outside a quoted parameter value. Quoted values may contain ':', ';'
// and ',' and are kept as a single token.
func parseContentLine(line string) (*contentLine, error) {
	inQuotes := false
	colon := -1
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '"':
			inQuotes = !inQuotes
		case ':':
			if !inQuotes {
				colon = i
			}
		}
		if colon >= 0 {
			break
		}
	}
	if colon < 0 {
		return nil, fmt.Errorf("no colon in content line")
	}

	rawKey := line[:colon]
	value := line[colon+1:]

	parts := splitUnquoted(rawKey, ';')
	name := strings.ToUpper(strings.TrimSpace(parts[0]))
	if name == "" {
		return nil, fmt.Errorf("empty property name")
	}

	var params map[string][]string
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("malformed parameter %q", p)
		}
		if params == nil {
			params = make(map[string][]string)
		}
		key := strings.ToUpper(strings.TrimSpace(kv[0]))
		for _, v := range splitUnquoted(kv[1], ',') {
			params[key] = append(params[key], strings.Trim(v, `"`))
		}
	}

	return &contentLine{name: name, rawKey: rawKey, params: params, value: value}, nil
}

// splitUnquoted splits on sep outside double quotes.
func splitUnquoted(s string, sep byte) []string {
	var out []string
	inQuotes := false
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuotes = !inQuotes
		case sep:
			if !inQuotes {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	return append(out, s[start:])
}

func decodeCalendar(root *rawComponent, cal *Calendar) {
	for _, cl := range root.lines {
		switch cl.name {
		case "PRODID":
			cal.ProdID = cl.value
		case "VERSION":
			cal.Version = cl.value
		case "NAME", "X-WR-CALNAME":
			if cal.Name == "" {
				cal.Name = UnescapeText(cl.value)
			}
		case "COLOR", "X-APPLE-CALENDAR-COLOR":
			if cal.Color == "" {
				cal.Color = cl.value
			}
		}
	}

	for _, child := range root.children {
		switch child.name {
		case "VEVENT":
			event, perr := decodeEvent(child)
			if perr != nil {
				cal.Warnings = append(cal.Warnings, perr)
			}
			if event != nil {
				cal.Events = append(cal.Events, event)
			}
		case "VTODO":
			todo, perr := decodeTodo(child)
			if perr != nil {
				cal.Warnings = append(cal.Warnings, perr)
			}
			if todo != nil {
				cal.Todos = append(cal.Todos, todo)
			}
		case "VJOURNAL":
			journal, perr := decodeJournal(child)
			if perr != nil {
				cal.Warnings = append(cal.Warnings, perr)
			}
			if journal != nil {
				cal.Journals = append(cal.Journals, journal)
			}
		case "VTIMEZONE":
			// TZIDs are resolved through the configured location resolver;
			// embedded definitions are not interpreted.
		}
	}
}

// decodeEvent turns a raw VEVENT into an Event. A nil event with a non-nil
// error means the component was skipped; both non-nil means the event was
// kept but degraded (e.g. its RRULE was unreadable and dropped, leaving
// the caller to decide whether a non-recurring rendition is acceptable).
func decodeEvent(comp *rawComponent) (*Event, *ParseError) {
	e := &Event{}
	var degraded *ParseError

	for _, cl := range comp.lines {
		switch cl.name {
		case "UID":
			e.UID = cl.value
		case "SUMMARY":
			e.Summary = UnescapeText(cl.value)
		case "DESCRIPTION":
			e.Description = UnescapeText(cl.value)
		case "LOCATION":
			e.Location = UnescapeText(cl.value)
		case "STATUS":
			e.Status = strings.ToUpper(cl.value)
		case "SEQUENCE":
			if n, err := strconv.Atoi(cl.value); err == nil {
				e.Sequence = n
			}
		case "DTSTART":
			dt, err := parseDateTimeValue(cl.value, cl.params)
			if err != nil {
				return nil, &ParseError{Type: ErrBadValue, Component: "VEVENT",
					Property: "DTSTART", Message: "unreadable start", Err: err}
			}
			e.Start = dt
		case "DTEND":
			dt, err := parseDateTimeValue(cl.value, cl.params)
			if err != nil {
				return nil, &ParseError{Type: ErrBadValue, Component: "VEVENT",
					Property: "DTEND", Message: "unreadable end", Err: err}
			}
			e.End = &dt
		case "DURATION":
			dur, err := ParseICalDuration(cl.value)
			if err != nil {
				return nil, &ParseError{Type: ErrBadValue, Component: "VEVENT",
					Property: "DURATION", Message: "unreadable duration", Err: err}
			}
			e.Duration = &dur
		case "RRULE":
			rule, err := ParseRRule(cl.value)
			if err != nil {
				// Keep the event as non-recurring and surface the error;
				// dropping the whole component is the caller's call.
				degraded = err.(*ParseError)
				degraded.Component = "VEVENT"
				continue
			}
			e.RRule = rule
		case "EXDATE":
			dates, err := parseDateTimeList(cl.value, cl.params)
			if err != nil {
				return nil, &ParseError{Type: ErrBadValue, Component: "VEVENT",
					Property: "EXDATE", Message: "unreadable exception date", Err: err}
			}
			e.ExDates = append(e.ExDates, dates...)
		case "RDATE":
			if strings.EqualFold(firstParam(cl.params, "VALUE"), "PERIOD") {
				// PERIOD-valued RDATEs are preserved, not modeled.
				setRaw(e, cl)
				continue
			}
			dates, err := parseDateTimeList(cl.value, cl.params)
			if err != nil {
				return nil, &ParseError{Type: ErrBadValue, Component: "VEVENT",
					Property: "RDATE", Message: "unreadable recurrence date", Err: err}
			}
			e.RDates = append(e.RDates, dates...)
		case "RECURRENCE-ID":
			dt, err := parseDateTimeValue(cl.value, cl.params)
			if err != nil {
				return nil, &ParseError{Type: ErrBadValue, Component: "VEVENT",
					Property: "RECURRENCE-ID", Message: "unreadable recurrence id", Err: err}
			}
			e.RecurrenceID = &dt
		case "ORGANIZER":
			org := decodeAttendee(cl)
			e.Organizer = &org
		case "ATTENDEE":
			e.Attendees = append(e.Attendees, decodeAttendee(cl))
		case "DTSTAMP":
			// Regenerated on every serialization; not preserved.
		default:
			setRaw(e, cl)
		}
	}

	for _, child := range comp.children {
		if child.name == "VALARM" {
			if alarm, ok := decodeAlarm(child); ok {
				e.Alarms = append(e.Alarms, alarm)
			}
		}
	}

	if e.UID == "" {
		return nil, missingPropertyError("VEVENT", "UID")
	}
	if e.Start.IsZero() {
		return nil, missingPropertyError("VEVENT", "DTSTART")
	}
	if e.End != nil && e.Duration != nil {
		// DTEND and DURATION are mutually exclusive; DTEND wins.
		e.Duration = nil
	}

	e.ImportID = e.UID
	if e.RecurrenceID != nil {
		e.ImportID = e.UID + ":" + e.RecurrenceID.encode()
	}
	return e, degraded
}

func setRaw(e *Event, cl *contentLine) {
	if e.RawProperties == nil {
		e.RawProperties = make(map[string]string)
	}
	e.RawProperties[cl.rawKey] = cl.value
}

func parseDateTimeList(value string, params map[string][]string) ([]DateTime, error) {
	var out []DateTime
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		dt, err := parseDateTimeValue(part, params)
		if err != nil {
			return nil, err
		}
		out = append(out, dt)
	}
	return out, nil
}

func decodeAttendee(cl *contentLine) Attendee {
	return Attendee{
		Address:    cl.value,
		CommonName: UnescapeText(firstParam(cl.params, "CN")),
		Role:       firstParam(cl.params, "ROLE"),
		PartStat:   firstParam(cl.params, "PARTSTAT"),
		RSVP:       strings.EqualFold(firstParam(cl.params, "RSVP"), "TRUE"),
	}
}

func decodeAlarm(comp *rawComponent) (Alarm, bool) {
	var alarm Alarm
	sawTrigger := false
	for _, cl := range comp.lines {
		switch cl.name {
		case "ACTION":
			alarm.Action = AlarmAction(strings.ToUpper(cl.value))
		case "TRIGGER":
			if strings.EqualFold(firstParam(cl.params, "VALUE"), "DATE-TIME") ||
				strings.HasSuffix(cl.value, "Z") {
				dt, err := parseDateTimeValue(cl.value, cl.params)
				if err != nil {
					continue
				}
				alarm.Trigger.Absolute = &dt
			} else {
				dur, err := ParseICalDuration(cl.value)
				if err != nil {
					continue
				}
				alarm.Trigger.Relative = &dur
				alarm.Trigger.RelatedEnd = strings.EqualFold(firstParam(cl.params, "RELATED"), "END")
			}
			sawTrigger = true
		case "REPEAT":
			if n, err := strconv.Atoi(cl.value); err == nil {
				alarm.Repeat = n
			}
		case "DURATION":
			if dur, err := ParseICalDuration(cl.value); err == nil {
				alarm.RepeatInterval = dur
			}
		case "DESCRIPTION":
			alarm.Description = UnescapeText(cl.value)
		}
	}
	if alarm.Action == "" {
		alarm.Action = ActionDisplay
	}
	return alarm, sawTrigger
}

func decodeTodo(comp *rawComponent) (*Todo, *ParseError) {
	t := &Todo{}
	for _, cl := range comp.lines {
		switch cl.name {
		case "UID":
			t.UID = cl.value
		case "SUMMARY":
			t.Summary = UnescapeText(cl.value)
		case "STATUS":
			t.Status = strings.ToUpper(cl.value)
		case "DTSTART":
			if dt, err := parseDateTimeValue(cl.value, cl.params); err == nil {
				t.Start = &dt
			}
		case "DUE":
			if dt, err := parseDateTimeValue(cl.value, cl.params); err == nil {
				t.Due = &dt
			}
		case "DTSTAMP":
		default:
			if t.RawProperties == nil {
				t.RawProperties = make(map[string]string)
			}
			t.RawProperties[cl.rawKey] = cl.value
		}
	}
	if t.UID == "" {
		return nil, missingPropertyError("VTODO", "UID")
	}
	return t, nil
}

func decodeJournal(comp *rawComponent) (*Journal, *ParseError) {
	j := &Journal{}
	for _, cl := range comp.lines {
		switch cl.name {
		case "UID":
			j.UID = cl.value
		case "SUMMARY":
			j.Summary = UnescapeText(cl.value)
		case "DTSTART":
			if dt, err := parseDateTimeValue(cl.value, cl.params); err == nil {
				j.Start = &dt
			}
		case "DTSTAMP":
		default:
			if j.RawProperties == nil {
				j.RawProperties = make(map[string]string)
			}
			j.RawProperties[cl.rawKey] = cl.value
		}
	}
	if j.UID == "" {
		return nil, missingPropertyError("VJOURNAL", "UID")
	}
	return j, nil
}
