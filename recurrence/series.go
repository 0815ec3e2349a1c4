package recurrence

import (
	"sort"
	"time"

	"github.com/cyp0633/icalsync/ical"
)

// Series is one UID's recurrence set as found in a parsed blob: the master
// event plus its overrides keyed by the occurrence they replace. Overrides
// are linked to the master only by shared UID and a RECURRENCE-ID that
// matches a generated occurrence; they are not children of the master.
type Series struct {
	UID    string
	Master *ical.Event
	// Overrides maps OccurrenceKey(RECURRENCE-ID) to the override event.
	Overrides map[string]*ical.Event
	// Orphans are override events that could not be attached: either no
	// master shares their UID, or they carry no RECURRENCE-ID context.
	// They are never expanded or displayed, only surfaced for diagnosis.
	Orphans []*ical.Event
}

// Group assembles the flat event list a parse produces into one Series per
// UID. Masters are identified by the absence of RECURRENCE-ID; everything
// else is an override of some occurrence.
func Group(events []*ical.Event) map[string]*Series {
	series := make(map[string]*Series)
	get := func(uid string) *Series {
		s, ok := series[uid]
		if !ok {
			s = &Series{UID: uid, Overrides: make(map[string]*ical.Event)}
			series[uid] = s
		}
		return s
	}

	for _, event := range events {
		if event.IsMaster() {
			get(event.UID).Master = event
		}
	}
	for _, event := range events {
		if event.IsMaster() {
			continue
		}
		s := get(event.UID)
		if s.Master == nil || event.RecurrenceID == nil {
			s.Orphans = append(s.Orphans, event)
			continue
		}
		subDaily := s.Master.RRule != nil && s.Master.RRule.SubDaily()
		loc := s.Master.Start.Time().Location()
		s.Overrides[OccurrenceKey(*event.RecurrenceID, subDaily, loc)] = event
	}
	return series
}

// ExpandSeries expands one grouped series over a range. A series without a
// master (overrides only) expands to nothing.
func (e *Engine) ExpandSeries(s *Series, rangeStart, rangeEnd time.Time) ([]*ical.Event, error) {
	if s.Master == nil {
		return nil, nil
	}
	return e.Expand(s.Master, rangeStart, rangeEnd, s.Overrides)
}

// ExpandAll groups a flat event list and expands every series over the
// range, returning the combined occurrence list ordered by start time.
func (e *Engine) ExpandAll(events []*ical.Event, rangeStart, rangeEnd time.Time) ([]*ical.Event, error) {
	var out []*ical.Event
	for _, s := range Group(events) {
		occurrences, err := e.ExpandSeries(s, rangeStart, rangeEnd)
		if err != nil {
			return nil, err
		}
		out = append(out, occurrences...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out, nil
}
