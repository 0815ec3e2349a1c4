package ical

import (
	"time"

	"github.com/google/uuid"
)

// Event status values
const (
	StatusConfirmed = "CONFIRMED"
	StatusTentative = "TENTATIVE"
	StatusCancelled = "CANCELLED"
)

// AlarmAction identifies what a VALARM does when it fires.
type AlarmAction string

const (
	ActionDisplay AlarmAction = "DISPLAY"
	ActionAudio   AlarmAction = "AUDIO"
	ActionEmail   AlarmAction = "EMAIL"
)

// Trigger is a VALARM trigger: either a signed duration relative to the
// event start (or end, when RelatedEnd is set) or an absolute date-time.
// Negative relative durations mean "before", matching RFC 5545 directly.
type Trigger struct {
	Relative   *time.Duration
	RelatedEnd bool
	Absolute   *DateTime
}

// Alarm is a VALARM attached to an event or todo.
type Alarm struct {
	Action         AlarmAction
	Trigger        Trigger
	Description    string
	Repeat         int
	RepeatInterval time.Duration
}

// Attendee models an ATTENDEE or ORGANIZER property. Address keeps the
// raw cal-address value (usually a mailto: URI) for round-trip.
type Attendee struct {
	Address    string
	CommonName string
	Role       string
	PartStat   string
	RSVP       bool
}

// Event is the central calendar entity. A master event (RecurrenceID nil,
// RRule set) owns zero or more override events sharing its UID, each
// carrying a distinct RecurrenceID equal to the occurrence start it
// replaces. Instances are never mutated in place; updates produce copies.
type Event struct {
	UID string
	// ImportID is unique per concrete occurrence: the UID alone for
	// masters, "uid:recurrence-id" for overrides, "uid:OCC:<key>" for
	// engine-generated occurrences.
	ImportID string

	Summary     string
	Description string
	Location    string
	Status      string
	Sequence    int

	Start DateTime
	// Exactly one of End and Duration is carried (or neither, for
	// zero-length events); DTEND and DURATION are mutually exclusive.
	End      *DateTime
	Duration *time.Duration

	// RRule is only meaningful on masters (RecurrenceID == nil).
	RRule        *RRule
	RDates       []DateTime
	ExDates      []DateTime
	RecurrenceID *DateTime

	Organizer *Attendee
	Attendees []Attendee
	Alarms    []Alarm

	// RawProperties preserves every property the parser did not model,
	// keyed by the full pre-colon text ("NAME" or "NAME;PARAM=VALUE").
	// Re-emitting them verbatim is what makes parsing lossless.
	RawProperties map[string]string
}

// NewEvent creates a minimal local event with a fresh UID.
func NewEvent(summary string, start DateTime) *Event {
	uid := uuid.NewString()
	return &Event{
		UID:      uid,
		ImportID: uid,
		Summary:  summary,
		Status:   StatusConfirmed,
		Start:    start,
	}
}

// IsAllDay reports whether the event is date-only.
func (e *Event) IsAllDay() bool { return e.Start.IsDate() }

// IsMaster reports whether this event may own a recurrence set.
func (e *Event) IsMaster() bool { return e.RecurrenceID == nil }

// IsRecurring reports whether expansion can yield more than one occurrence.
func (e *Event) IsRecurring() bool {
	return e.IsMaster() && (e.RRule != nil || len(e.RDates) > 0)
}

// EffectiveDuration computes the occurrence duration: DTEND minus DTSTART,
// the explicit DURATION when DTEND is absent, one day for all-day events
// with neither, zero otherwise. RFC 5545 keeps duration constant across a
// recurrence set, so the engine computes this once per expansion.
func (e *Event) EffectiveDuration() time.Duration {
	if e.End != nil {
		return e.End.Time().Sub(e.Start.Time())
	}
	if e.Duration != nil {
		return *e.Duration
	}
	if e.IsAllDay() {
		return 24 * time.Hour
	}
	return 0
}

// Clone returns a shallow-ish copy: slices are copied, the raw property
// map is shared (it is treated as read-only once parsed).
func (e *Event) Clone() *Event {
	c := *e
	c.RDates = append([]DateTime(nil), e.RDates...)
	c.ExDates = append([]DateTime(nil), e.ExDates...)
	c.Attendees = append([]Attendee(nil), e.Attendees...)
	c.Alarms = append([]Alarm(nil), e.Alarms...)
	return &c
}

// WithSequence returns a copy with the revision counter replaced. Callers
// bump this before pushing an updated event to a server.
func (e *Event) WithSequence(seq int) *Event {
	c := e.Clone()
	c.Sequence = seq
	return c
}

// Todo is a VTODO carried through parsing with its unmodeled properties
// preserved, enough for a sync layer to round-trip it.
type Todo struct {
	UID           string
	Summary       string
	Status        string
	Start         *DateTime
	Due           *DateTime
	RawProperties map[string]string
}

// Journal is a VJOURNAL carried through parsing, like Todo.
type Journal struct {
	UID           string
	Summary       string
	Start         *DateTime
	RawProperties map[string]string
}

// Calendar holds calendar-level metadata plus the parsed components of one
// VCALENDAR blob. Events is flat: a master VEVENT and its overrides appear
// side by side; grouping them is the recurrence layer's job.
type Calendar struct {
	ProdID  string
	Version string
	Name    string
	Color   string

	Events   []*Event
	Todos    []*Todo
	Journals []*Journal

	// Warnings collects per-component recoverable errors (components
	// skipped for missing UID/DTSTART, unreadable values). A non-empty
	// Warnings list still comes with a usable result.
	Warnings []*ParseError
}
