package recurrence

import (
	"fmt"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/cyp0633/icalsync/ical"
)

// Engine expands recurring events into concrete occurrences. Expansion is
// a pure function of its inputs, which is what makes the result cache
// safe: identical arguments always produce identical ordered output.
type Engine struct {
	cache  *ExpansionCache
	config EngineConfig
}

// NewEngine creates an engine with the default configuration.
func NewEngine() *Engine {
	return NewEngineWithConfig(DefaultEngineConfig)
}

// NewEngineWithConfig creates an engine with custom configuration.
func NewEngineWithConfig(config EngineConfig) *Engine {
	var cache *ExpansionCache
	if config.CacheEnabled {
		cache = NewExpansionCache(config.CacheConfig)
	}
	return &Engine{cache: cache, config: config}
}

// Close releases the engine's cache resources.
func (e *Engine) Close() {
	if e.cache != nil {
		e.cache.Close()
	}
}

// OccurrenceKey derives the canonical key used to match occurrences
// against EXDATE entries and override events. Rules at daily or coarser
// frequency key by calendar day in loc, the event's own zone: an EXDATE
// or RECURRENCE-ID encoded in UTC still lands on the same local day as
// the zoned occurrence it targets, which is how mixed-encoding exports
// arrive in practice. Date-only values carry no zone and key verbatim.
// Sub-daily rules share a day between occurrences, so they key by exact
// UTC instant instead.
func OccurrenceKey(dt ical.DateTime, subDaily bool, loc *time.Location) string {
	if subDaily {
		return dt.Time().UTC().Format("20060102T150405Z")
	}
	if dt.IsDate() {
		return dt.Time().Format("20060102")
	}
	return dt.Time().In(loc).Format("20060102")
}

// Expand computes the recurrence set of a master event intersecting
// [rangeStart, rangeEnd]: RRULE-generated dates plus RDATEs, minus
// EXDATEs, with overrides substituted per occurrence key. The result is
// ordered by start time. Overrides whose key matches no generated date
// are dropped. A well-formed master never fails; an empty intersection
// returns an empty, valid result.
func (e *Engine) Expand(master *ical.Event, rangeStart, rangeEnd time.Time, overrides map[string]*ical.Event) ([]*ical.Event, error) {
	// Non-recurring fast path.
	if !master.IsRecurring() {
		return []*ical.Event{master}, nil
	}

	if e.cache != nil {
		if occurrences, ok := e.cache.Get(expansionKey(master, rangeStart, rangeEnd, overrides)); ok {
			return occurrences, nil
		}
	}

	subDaily := master.RRule != nil && master.RRule.SubDaily()
	duration := master.EffectiveDuration()
	loc := master.Start.Time().Location()

	excluded := make(map[string]bool, len(master.ExDates))
	for _, exdate := range master.ExDates {
		excluded[OccurrenceKey(exdate, subDaily, loc)] = true
	}

	emitted := make(map[string]bool)
	var occurrences []*ical.Event
	capReached := func() bool {
		return e.config.MaxOccurrences > 0 && len(occurrences) >= e.config.MaxOccurrences
	}
	emit := func(start ical.DateTime) {
		key := OccurrenceKey(start, subDaily, loc)
		if emitted[key] {
			return
		}
		emitted[key] = true
		if excluded[key] {
			// EXDATE wins over both generated dates and RDATEs.
			return
		}
		if override, ok := overrides[key]; ok {
			occurrences = append(occurrences, override)
			return
		}
		occurrences = append(occurrences, synthesizeOccurrence(master, start, duration, key))
	}

	// DTSTART belongs to the recurrence set even when the rule pattern
	// would not regenerate it (or there is no rule at all, only RDATEs).
	startEnd := master.Start.Time().Add(duration)
	if !master.Start.Time().After(rangeEnd) && !startEnd.Before(rangeStart) {
		emit(master.Start)
	}

	if master.RRule != nil {
		rule, err := rrule.NewRRule(master.RRule.ROption(master.Start.Time()))
		if err != nil {
			return nil, fmt.Errorf("failed to build recurrence rule %q: %w", master.RRule, err)
		}
		// Pull the window start back by one duration so an occurrence
		// already in progress at rangeStart is still reported.
		for _, t := range rule.Between(rangeStart.Add(-duration), rangeEnd, true) {
			if capReached() {
				break
			}
			emit(master.Start.WithInstant(t))
		}
	}

	for _, rdate := range master.RDates {
		if capReached() {
			break
		}
		rdateEnd := rdate.Time().Add(duration)
		if rdate.Time().After(rangeEnd) || rdateEnd.Before(rangeStart) {
			continue
		}
		emit(rdate)
	}

	sort.SliceStable(occurrences, func(i, j int) bool {
		return occurrences[i].Start.Before(occurrences[j].Start)
	})

	if e.cache != nil {
		e.cache.Set(expansionKey(master, rangeStart, rangeEnd, overrides), occurrences)
	}
	return occurrences, nil
}

// HasOccurrenceInRange reports whether any occurrence of the master lands
// in the range, without the caller having to keep the full expansion. For
// large ranges it probes a limited window first and widens only when the
// probe was inconclusive.
func (e *Engine) HasOccurrenceInRange(master *ical.Event, rangeStart, rangeEnd time.Time, overrides map[string]*ical.Event) (bool, error) {
	if !master.IsRecurring() {
		masterEnd := master.Start.Time().Add(master.EffectiveDuration())
		inRange := !master.Start.Time().After(rangeEnd) && !masterEnd.Before(rangeStart)
		return inRange, nil
	}

	limitedEnd := rangeEnd
	if e.config.LargeRangeThreshold > 0 && rangeEnd.Sub(rangeStart) > e.config.LargeRangeThreshold {
		limitedEnd = rangeStart.Add(e.config.LargeRangeLimit)
	}

	occurrences, err := e.Expand(master, rangeStart, limitedEnd, overrides)
	if err != nil {
		return false, err
	}
	if len(occurrences) > 0 {
		return true, nil
	}
	if limitedEnd.Before(rangeEnd) {
		occurrences, err = e.Expand(master, limitedEnd, rangeEnd, overrides)
		if err != nil {
			return false, err
		}
		return len(occurrences) > 0, nil
	}
	return false, nil
}

// synthesizeOccurrence derives one concrete occurrence from the master:
// start and end shifted onto the occurrence date, the master's duration
// conserved, and the recurrence machinery cleared since an occurrence is
// not itself a master.
func synthesizeOccurrence(master *ical.Event, start ical.DateTime, duration time.Duration, key string) *ical.Event {
	occ := master.Clone()
	occ.Start = start
	if master.End != nil {
		end := start.Add(duration)
		occ.End = &end
	}
	occ.RRule = nil
	occ.RDates = nil
	occ.ExDates = nil
	occ.RecurrenceID = nil
	occ.ImportID = master.UID + ":OCC:" + key
	return occ
}
