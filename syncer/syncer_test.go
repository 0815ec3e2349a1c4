package syncer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cyp0633/icalsync/ical"
	"github.com/cyp0633/icalsync/recurrence"
)

const testCollection = "https://cal.example.com/user/personal/"

func testClock() time.Time {
	return time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSyncer(t *testing.T, transport Transport, store CalendarStore) *Syncer {
	t.Helper()
	engine := recurrence.NewEngineWithConfig(recurrence.DisabledCacheConfig)
	t.Cleanup(engine.Close)
	return New(quietLogger(), transport, store, engine, Options{Now: testClock})
}

// weeklyCalendarData builds one raw object holding a weekly master plus an
// override that moves the second occurrence.
func weeklyCalendarData(t *testing.T) string {
	t.Helper()
	rule, err := ical.ParseRRule("FREQ=WEEKLY;COUNT=4")
	require.NoError(t, err)

	master := &ical.Event{
		UID:     "series-9",
		Summary: "Standup",
		Start:   ical.NewUTC(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)),
		RRule:   rule,
	}
	recID := ical.NewUTC(time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC))
	override := &ical.Event{
		UID:          "series-9",
		Summary:      "Standup (moved)",
		Start:        ical.NewUTC(time.Date(2024, 1, 8, 14, 0, 0, 0, time.UTC)),
		RecurrenceID: &recID,
	}
	return ical.GenerateCalendar([]*ical.Event{master, override}, ical.GenerateOptions{Now: testClock})
}

func TestPullCollection(t *testing.T) {
	transport := new(MockTransport)
	store := new(MockStore)

	objects := []CalendarObject{
		{Path: "/cal/1.ics", ETag: "e1", Data: weeklyCalendarData(t)},
		{Path: "/cal/garbage.ics", ETag: "e2", Data: "this is not a calendar"},
	}
	transport.On("ListObjects", mock.Anything, testCollection).Return(objects, nil)

	var gotOccurrences []*ical.Event
	var gotOverrides map[string]*ical.Event
	store.On("ReplaceWindow", mock.Anything, testCollection, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			gotOccurrences = args.Get(2).([]*ical.Event)
			gotOverrides = args.Get(3).(map[string]*ical.Event)
		}).
		Return(nil)

	s := newTestSyncer(t, transport, store)
	require.NoError(t, s.PullCollection(context.Background(), testCollection))

	transport.AssertExpectations(t)
	store.AssertExpectations(t)

	// Four weekly occurrences, one of them the override; the garbage
	// object was skipped without aborting the collection.
	require.Len(t, gotOccurrences, 4)
	summaries := make(map[string]int)
	for _, occ := range gotOccurrences {
		summaries[occ.Summary]++
	}
	assert.Equal(t, 3, summaries["Standup"])
	assert.Equal(t, 1, summaries["Standup (moved)"])

	require.Len(t, gotOverrides, 1)
	moved, ok := gotOverrides["series-9:20240108T090000Z"]
	require.True(t, ok)
	assert.Equal(t, "Standup (moved)", moved.Summary)
}

func TestPullCollectionListFailure(t *testing.T) {
	transport := new(MockTransport)
	store := new(MockStore)
	transport.On("ListObjects", mock.Anything, testCollection).Return(nil, errors.New("network down"))

	s := newTestSyncer(t, transport, store)
	err := s.PullCollection(context.Background(), testCollection)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "network down")
	store.AssertNotCalled(t, "ReplaceWindow", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPullCollectionStoreFailure(t *testing.T) {
	transport := new(MockTransport)
	store := new(MockStore)
	transport.On("ListObjects", mock.Anything, testCollection).Return([]CalendarObject{}, nil)
	store.On("ReplaceWindow", mock.Anything, testCollection, mock.Anything, mock.Anything).
		Return(errors.New("disk full"))

	s := newTestSyncer(t, transport, store)
	err := s.PullCollection(context.Background(), testCollection)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestPushCollection(t *testing.T) {
	transport := new(MockTransport)
	store := new(MockStore)

	event := &ical.Event{
		UID:      "push-1",
		Summary:  "Edited locally",
		Sequence: 3,
		Start:    ical.NewUTC(time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)),
	}
	changes := []LocalChange{{Event: event, Path: "/cal/push-1.ics", ETag: "old-etag"}}
	store.On("DirtyEvents", mock.Anything, testCollection).Return(changes, nil)

	transport.On("PutObject", mock.Anything, "/cal/push-1.ics", "old-etag",
		mock.MatchedBy(func(data string) bool {
			return strings.Contains(data, "UID:push-1\r\n") && strings.Contains(data, "SEQUENCE:4\r\n")
		})).Return("new-etag", nil)
	store.On("MarkSynced", mock.Anything, "/cal/push-1.ics", "new-etag").Return(nil)

	s := newTestSyncer(t, transport, store)
	require.NoError(t, s.PushCollection(context.Background(), testCollection))

	transport.AssertExpectations(t)
	store.AssertExpectations(t)

	// The stored original keeps its revision; the bump went out on a copy.
	assert.Equal(t, 3, event.Sequence)
}

func TestPushCollectionContinuesAfterUploadFailure(t *testing.T) {
	transport := new(MockTransport)
	store := new(MockStore)

	first := &ical.Event{UID: "push-a", Start: ical.NewUTC(time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC))}
	second := &ical.Event{UID: "push-b", Start: ical.NewUTC(time.Date(2024, 2, 2, 9, 0, 0, 0, time.UTC))}
	changes := []LocalChange{
		{Event: first, Path: "/cal/a.ics", ETag: "ea"},
		{Event: second, Path: "/cal/b.ics", ETag: "eb"},
	}
	store.On("DirtyEvents", mock.Anything, testCollection).Return(changes, nil)

	transport.On("PutObject", mock.Anything, "/cal/a.ics", "ea", mock.Anything).
		Return("", errors.New("precondition failed"))
	transport.On("PutObject", mock.Anything, "/cal/b.ics", "eb", mock.Anything).
		Return("etag-b2", nil)
	store.On("MarkSynced", mock.Anything, "/cal/b.ics", "etag-b2").Return(nil)

	s := newTestSyncer(t, transport, store)
	require.NoError(t, s.PushCollection(context.Background(), testCollection))

	transport.AssertExpectations(t)
	store.AssertExpectations(t)
	store.AssertNotCalled(t, "MarkSynced", mock.Anything, "/cal/a.ics", mock.Anything)
}

func TestPushCollectionDirtyListFailure(t *testing.T) {
	transport := new(MockTransport)
	store := new(MockStore)
	store.On("DirtyEvents", mock.Anything, testCollection).Return(nil, errors.New("db locked"))

	s := newTestSyncer(t, transport, store)
	err := s.PushCollection(context.Background(), testCollection)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db locked")
}
