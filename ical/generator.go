package ical

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// GenerateOptions controls VCALENDAR-level output.
type GenerateOptions struct {
	// ProdID overrides the default product identifier.
	ProdID string
	// Name emits an X-WR-CALNAME calendar name when set.
	Name string
	// Now supplies the DTSTAMP clock; nil means time.Now. Tests pin it.
	Now func() time.Time
}

const defaultProdID = "-//cyp0633//icalsync//EN"

// Generate serializes a single event into a complete VCALENDAR blob.
// The output is guaranteed to re-parse to an equal value: modeled fields
// by type, preserved raw properties verbatim.
func Generate(event *Event, opts GenerateOptions) string {
	return GenerateCalendar([]*Event{event}, opts)
}

// GenerateCalendar serializes N events into one VCALENDAR. Referenced
// IANA timezone identifiers are collected across the batch and emitted as
// one VTIMEZONE each before the events, for clients that cannot resolve
// bare TZIDs.
func GenerateCalendar(events []*Event, opts GenerateOptions) string {
	prodID := opts.ProdID
	if prodID == "" {
		prodID = defaultProdID
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	var b strings.Builder
	writeLine(&b, "BEGIN:VCALENDAR")
	writeProp(&b, "VERSION", "2.0")
	writeProp(&b, "PRODID", prodID)
	if opts.Name != "" {
		writeProp(&b, "X-WR-CALNAME", EscapeText(opts.Name))
	}

	for _, tzid := range referencedTimezones(events) {
		writeTimezone(&b, tzid, now())
	}
	for _, event := range events {
		writeEvent(&b, event, now())
	}

	writeLine(&b, "END:VCALENDAR")
	return b.String()
}

func writeLine(b *strings.Builder, line string) {
	b.WriteString(foldLine(line))
}

func writeProp(b *strings.Builder, key, value string) {
	writeLine(b, key+":"+value)
}

func writeDateTimeProp(b *strings.Builder, name string, dt DateTime) {
	writeLine(b, name+dt.params()+":"+dt.encode())
}

// referencedTimezones collects the distinct TZIDs of a batch, sorted for
// deterministic output.
func referencedTimezones(events []*Event) []string {
	seen := make(map[string]bool)
	add := func(dt DateTime) {
		if dt.Form() == FormZoned && dt.TZID() != "" {
			seen[dt.TZID()] = true
		}
	}
	for _, e := range events {
		add(e.Start)
		if e.End != nil {
			add(*e.End)
		}
		if e.RecurrenceID != nil {
			add(*e.RecurrenceID)
		}
		for _, dt := range e.RDates {
			add(dt)
		}
		for _, dt := range e.ExDates {
			add(dt)
		}
	}
	tzids := make([]string, 0, len(seen))
	for tzid := range seen {
		tzids = append(tzids, tzid)
	}
	sort.Strings(tzids)
	return tzids
}

// writeTimezone synthesizes a minimal VTIMEZONE for an IANA identifier:
// the standard offset, plus a daylight block when the zone observes one.
// Transition rules are approximated by mid-winter/mid-summer probes; full
// rule synthesis is unnecessary for clients that know the IANA id and
// harmless for those that only read the offsets.
func writeTimezone(b *strings.Builder, tzid string, now time.Time) {
	loc := resolveLocation(tzid)
	year := now.Year()

	janName, janOffset := time.Date(year, time.January, 15, 12, 0, 0, 0, loc).Zone()
	julName, julOffset := time.Date(year, time.July, 15, 12, 0, 0, 0, loc).Zone()

	stdName, stdOffset := janName, janOffset
	dstName, dstOffset := julName, julOffset
	// Southern hemisphere zones are on daylight time in January.
	if janOffset > julOffset {
		stdName, stdOffset = julName, julOffset
		dstName, dstOffset = janName, janOffset
	}

	writeLine(b, "BEGIN:VTIMEZONE")
	writeProp(b, "TZID", tzid)
	writeLine(b, "BEGIN:STANDARD")
	writeProp(b, "DTSTART", "19700101T000000")
	writeProp(b, "TZOFFSETFROM", formatUTCOffset(dstOffset))
	writeProp(b, "TZOFFSETTO", formatUTCOffset(stdOffset))
	if stdName != "" {
		writeProp(b, "TZNAME", stdName)
	}
	writeLine(b, "END:STANDARD")
	if dstOffset != stdOffset {
		writeLine(b, "BEGIN:DAYLIGHT")
		writeProp(b, "DTSTART", "19700101T000000")
		writeProp(b, "TZOFFSETFROM", formatUTCOffset(stdOffset))
		writeProp(b, "TZOFFSETTO", formatUTCOffset(dstOffset))
		if dstName != "" {
			writeProp(b, "TZNAME", dstName)
		}
		writeLine(b, "END:DAYLIGHT")
	}
	writeLine(b, "END:VTIMEZONE")
}

func formatUTCOffset(seconds int) string {
	sign := "+"
	if seconds < 0 {
		sign = "-"
		seconds = -seconds
	}
	return fmt.Sprintf("%s%02d%02d", sign, seconds/3600, (seconds%3600)/60)
}

func writeEvent(b *strings.Builder, e *Event, now time.Time) {
	writeLine(b, "BEGIN:VEVENT")

	// UID, DTSTAMP, STATUS and SEQUENCE are unconditional: at least one
	// major CalDAV provider rejects uploads missing any of them with 400.
	writeProp(b, "UID", e.UID)
	writeProp(b, "DTSTAMP", now.UTC().Format(utcTimeLayout))
	writeDateTimeProp(b, "DTSTART", e.Start)
	switch {
	case e.End != nil:
		writeDateTimeProp(b, "DTEND", *e.End)
	case e.Duration != nil:
		writeProp(b, "DURATION", FormatICalDuration(*e.Duration))
	}

	if e.Summary != "" {
		writeProp(b, "SUMMARY", EscapeText(e.Summary))
	}
	if e.Description != "" {
		writeProp(b, "DESCRIPTION", EscapeText(e.Description))
	}
	if e.Location != "" {
		writeProp(b, "LOCATION", EscapeText(e.Location))
	}
	status := e.Status
	if status == "" {
		status = StatusConfirmed
	}
	writeProp(b, "STATUS", status)
	writeProp(b, "SEQUENCE", strconv.Itoa(e.Sequence))

	// An override never carries its own RRULE.
	if e.RRule != nil && e.RecurrenceID == nil {
		writeProp(b, "RRULE", e.RRule.String())
	}
	writeDateTimeListProp(b, "RDATE", e.RDates)
	writeDateTimeListProp(b, "EXDATE", e.ExDates)
	if e.RecurrenceID != nil {
		writeDateTimeProp(b, "RECURRENCE-ID", *e.RecurrenceID)
	}

	if e.Organizer != nil {
		writeLine(b, attendeeLine("ORGANIZER", *e.Organizer))
	}
	for _, att := range e.Attendees {
		writeLine(b, attendeeLine("ATTENDEE", att))
	}

	// Preserved raw properties go back out verbatim, sorted for
	// deterministic output; the key already carries any parameters.
	rawKeys := make([]string, 0, len(e.RawProperties))
	for key := range e.RawProperties {
		rawKeys = append(rawKeys, key)
	}
	sort.Strings(rawKeys)
	for _, key := range rawKeys {
		writeLine(b, key+":"+e.RawProperties[key])
	}

	for _, alarm := range e.Alarms {
		writeAlarm(b, alarm)
	}

	writeLine(b, "END:VEVENT")
}

// writeDateTimeListProp groups a date list into a single property line per
// form, since one line must not mix DATE and DATE-TIME values.
func writeDateTimeListProp(b *strings.Builder, name string, dates []DateTime) {
	byParams := make(map[string][]string)
	var order []string
	for _, dt := range dates {
		p := dt.params()
		if _, ok := byParams[p]; !ok {
			order = append(order, p)
		}
		byParams[p] = append(byParams[p], dt.encode())
	}
	for _, p := range order {
		writeLine(b, name+p+":"+strings.Join(byParams[p], ","))
	}
}

func attendeeLine(name string, att Attendee) string {
	var params strings.Builder
	if att.CommonName != "" {
		cn := att.CommonName
		if strings.ContainsAny(cn, ";:,") {
			cn = `"` + cn + `"`
		}
		params.WriteString(";CN=" + cn)
	}
	if att.Role != "" {
		params.WriteString(";ROLE=" + att.Role)
	}
	if att.PartStat != "" {
		params.WriteString(";PARTSTAT=" + att.PartStat)
	}
	if att.RSVP {
		params.WriteString(";RSVP=TRUE")
	}
	return name + params.String() + ":" + att.Address
}

func writeAlarm(b *strings.Builder, alarm Alarm) {
	writeLine(b, "BEGIN:VALARM")
	action := alarm.Action
	if action == "" {
		action = ActionDisplay
	}
	writeProp(b, "ACTION", string(action))
	switch {
	case alarm.Trigger.Absolute != nil:
		writeLine(b, "TRIGGER;VALUE=DATE-TIME:"+alarm.Trigger.Absolute.encode())
	case alarm.Trigger.Relative != nil:
		if alarm.Trigger.RelatedEnd {
			writeLine(b, "TRIGGER;RELATED=END:"+FormatICalDuration(*alarm.Trigger.Relative))
		} else {
			writeProp(b, "TRIGGER", FormatICalDuration(*alarm.Trigger.Relative))
		}
	}
	if alarm.Description != "" {
		writeProp(b, "DESCRIPTION", EscapeText(alarm.Description))
	}
	if alarm.Repeat > 0 {
		writeProp(b, "REPEAT", strconv.Itoa(alarm.Repeat))
		writeProp(b, "DURATION", FormatICalDuration(alarm.RepeatInterval))
	}
	writeLine(b, "END:VALARM")
}
