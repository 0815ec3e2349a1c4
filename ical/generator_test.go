package ical

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
}

func TestGenerateRequiredProperties(t *testing.T) {
	event := &Event{
		UID:   "req-1",
		Start: NewUTC(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)),
	}
	out := Generate(event, GenerateOptions{Now: fixedClock})

	// Some servers reject uploads missing any of these with a 400, so
	// they are emitted even when the model carries zero values.
	assert.Contains(t, out, "UID:req-1\r\n")
	assert.Contains(t, out, "DTSTAMP:20240601T120000Z\r\n")
	assert.Contains(t, out, "STATUS:CONFIRMED\r\n")
	assert.Contains(t, out, "SEQUENCE:0\r\n")
	assert.Contains(t, out, "VERSION:2.0\r\n")
	assert.Contains(t, out, "PRODID:")
}

func TestGenerateEndXorDuration(t *testing.T) {
	start := NewUTC(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	end := NewUTC(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))
	dur := time.Hour

	withEnd := Generate(&Event{UID: "e1", Start: start, End: &end}, GenerateOptions{Now: fixedClock})
	assert.Contains(t, withEnd, "DTEND:20240101T100000Z\r\n")
	assert.NotContains(t, withEnd, "DURATION:")

	withDur := Generate(&Event{UID: "e2", Start: start, Duration: &dur}, GenerateOptions{Now: fixedClock})
	assert.Contains(t, withDur, "DURATION:PT1H\r\n")
	assert.NotContains(t, withDur, "DTEND:")
}

func TestGenerateOverrideNeverCarriesRRule(t *testing.T) {
	recID := NewUTC(time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC))
	rule, err := ParseRRule("FREQ=WEEKLY;COUNT=4")
	require.NoError(t, err)

	override := &Event{
		UID:          "ovr-1",
		Start:        NewUTC(time.Date(2024, 1, 8, 14, 0, 0, 0, time.UTC)),
		RecurrenceID: &recID,
		RRule:        rule, // invalid state, the generator must not emit it
	}
	out := Generate(override, GenerateOptions{Now: fixedClock})
	assert.NotContains(t, out, "RRULE:")
	assert.Contains(t, out, "RECURRENCE-ID:20240108T090000Z\r\n")
}

func TestGenerateDateTimeForms(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	tests := []struct {
		name string
		dt   DateTime
		want string
	}{
		{"all-day", NewDate(2024, time.March, 1), "DTSTART;VALUE=DATE:20240301\r\n"},
		{"utc", NewUTC(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)), "DTSTART:20240101T090000Z\r\n"},
		{"zoned", NewZoned(time.Date(2024, 6, 15, 14, 0, 0, 0, berlin), "Europe/Berlin", berlin), "DTSTART;TZID=Europe/Berlin:20240615T140000\r\n"},
		{"floating", NewFloating(time.Date(2024, 6, 15, 14, 0, 0, 0, time.UTC)), "DTSTART:20240615T140000\r\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Generate(&Event{UID: "dt-1", Start: tt.dt}, GenerateOptions{Now: fixedClock})
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestGenerateSynthesizesVTimezones(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	events := []*Event{
		{UID: "tz-1", Start: NewZoned(time.Date(2024, 6, 15, 14, 0, 0, 0, berlin), "Europe/Berlin", berlin)},
		{UID: "tz-2", Start: NewZoned(time.Date(2024, 6, 15, 9, 0, 0, 0, ny), "America/New_York", ny)},
		{UID: "tz-3", Start: NewZoned(time.Date(2024, 7, 1, 14, 0, 0, 0, berlin), "Europe/Berlin", berlin)},
	}
	out := GenerateCalendar(events, GenerateOptions{Now: fixedClock})

	// One block per distinct TZID, deduplicated across the batch.
	assert.Equal(t, 2, strings.Count(out, "BEGIN:VTIMEZONE"))
	assert.Contains(t, out, "TZID:Europe/Berlin\r\n")
	assert.Contains(t, out, "TZID:America/New_York\r\n")
	assert.Contains(t, out, "TZOFFSETTO:+0100\r\n")  // Berlin standard
	assert.Contains(t, out, "TZOFFSETTO:-0500\r\n")  // New York standard

	// Timezones precede the first event.
	assert.Less(t, strings.Index(out, "BEGIN:VTIMEZONE"), strings.Index(out, "BEGIN:VEVENT"))
}

func TestGenerateLongSummaryFoldsAndReparses(t *testing.T) {
	summary := strings.Repeat("x", 200)
	event := &Event{
		UID:   "fold-1",
		Start: NewUTC(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)),
	}
	event.Summary = summary

	out := Generate(event, GenerateOptions{Now: fixedClock})
	for i, line := range strings.Split(strings.TrimSuffix(out, "\r\n"), "\r\n") {
		assert.LessOrEqual(t, len(line), maxLineOctets, "physical line %d exceeds 75 octets", i)
	}

	events, err := ParseAllEvents(out).Get()
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, summary, events[0].Summary)
}

func TestGenerateEmojiSummaryFoldsOnOctets(t *testing.T) {
	summary := strings.Repeat("\U0001F389", 40) // 160 octets of payload
	event := &Event{
		UID:   "emoji-1",
		Start: NewUTC(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)),
	}
	event.Summary = summary

	out := Generate(event, GenerateOptions{Now: fixedClock})
	for i, line := range strings.Split(strings.TrimSuffix(out, "\r\n"), "\r\n") {
		assert.LessOrEqual(t, len(line), maxLineOctets, "physical line %d exceeds 75 octets", i)
	}

	events, err := ParseAllEvents(out).Get()
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, summary, events[0].Summary)
}

func TestRoundTripPreservesModeledFieldsAndRawProperties(t *testing.T) {
	res := Parse(sampleCalendar)
	require.True(t, res.IsOk())
	first := res.MustGet().Events[0]

	out := Generate(first, GenerateOptions{Now: fixedClock})
	res2 := Parse(out)
	require.True(t, res2.IsOk(), "re-parse failed: %v", res2.Error())
	second := res2.MustGet().Events[0]

	assert.Equal(t, first.UID, second.UID)
	assert.Equal(t, first.Summary, second.Summary)
	assert.Equal(t, first.Description, second.Description)
	assert.Equal(t, first.Location, second.Location)
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.Sequence, second.Sequence)
	assert.True(t, first.Start.Equal(second.Start))
	require.NotNil(t, second.End)
	assert.True(t, first.End.Equal(*second.End))
	assert.Equal(t, first.RRule, second.RRule)
	assert.Equal(t, first.ExDates, second.ExDates)
	assert.Equal(t, first.Organizer, second.Organizer)
	assert.Equal(t, first.Attendees, second.Attendees)
	assert.Equal(t, first.Alarms, second.Alarms)

	// Vendor extensions survive byte for byte, key and value.
	assert.Equal(t, first.RawProperties, second.RawProperties)
}

func TestGenerateEscapesTextFields(t *testing.T) {
	event := &Event{
		UID:     "esc-1",
		Start:   NewUTC(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)),
		Summary: "a, b; c\\d\ne",
	}
	out := Generate(event, GenerateOptions{Now: fixedClock})
	assert.Contains(t, out, `SUMMARY:a\, b\; c\\d\ne`)

	events, err := ParseAllEvents(out).Get()
	require.NoError(t, err)
	assert.Equal(t, event.Summary, events[0].Summary)
}

func TestGenerateAbsoluteAndRelatedEndTriggers(t *testing.T) {
	abs := NewUTC(time.Date(2024, 1, 1, 8, 45, 0, 0, time.UTC))
	rel := -30 * time.Minute
	event := &Event{
		UID:   "alarm-1",
		Start: NewUTC(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)),
		Alarms: []Alarm{
			{Action: ActionDisplay, Trigger: Trigger{Absolute: &abs}},
			{Action: ActionEmail, Trigger: Trigger{Relative: &rel, RelatedEnd: true}},
		},
	}
	out := Generate(event, GenerateOptions{Now: fixedClock})
	assert.Contains(t, out, "TRIGGER;VALUE=DATE-TIME:20240101T084500Z\r\n")
	assert.Contains(t, out, "TRIGGER;RELATED=END:-PT30M\r\n")

	events, err := ParseAllEvents(out).Get()
	require.NoError(t, err)
	require.Len(t, events[0].Alarms, 2)
	require.NotNil(t, events[0].Alarms[0].Trigger.Absolute)
	assert.True(t, events[0].Alarms[0].Trigger.Absolute.Equal(abs))
	require.NotNil(t, events[0].Alarms[1].Trigger.Relative)
	assert.Equal(t, rel, *events[0].Alarms[1].Trigger.Relative)
	assert.True(t, events[0].Alarms[1].Trigger.RelatedEnd)
}
