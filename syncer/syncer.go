// Package syncer drives the parse → group → expand → store pipeline over
// the two external collaborators of the core: a Transport that produces
// and consumes raw iCalendar text with opaque ETags, and a CalendarStore
// that persists fully-expanded occurrences. Neither side's protocol or
// schema is owned here.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cyp0633/icalsync/ical"
	"github.com/cyp0633/icalsync/recurrence"
)

// CalendarObject is one raw resource of a collection: the iCalendar text
// blob plus the server-assigned ETag, which stays opaque to this core.
type CalendarObject struct {
	Path string
	ETag string
	Data string
}

// Transport is the network side. Implementations wrap whatever CalDAV or
// file plumbing applies; this core only needs text in and text out.
type Transport interface {
	ListObjects(ctx context.Context, collectionURL string) ([]CalendarObject, error)
	PutObject(ctx context.Context, path, etag, data string) (newETag string, err error)
}

// LocalChange is a locally modified event awaiting upload, with the path
// and ETag the change was based on.
type LocalChange struct {
	Event *ical.Event
	Path  string
	ETag  string
}

// CalendarStore is the platform calendar sink. It receives the expanded,
// time-bounded occurrence list plus the override map (keyed by override
// ImportID) and owns its persistence schema and change tracking.
type CalendarStore interface {
	ReplaceWindow(ctx context.Context, collectionURL string, occurrences []*ical.Event, overrides map[string]*ical.Event) error
	DirtyEvents(ctx context.Context, collectionURL string) ([]LocalChange, error)
	MarkSynced(ctx context.Context, path, etag string) error
}

// Options configures a Syncer.
type Options struct {
	// Window is the half-width of the expansion window around now.
	// Defaults to one year each side.
	Window time.Duration
	// ProdID overrides the generator's product identifier.
	ProdID string
	// Now supplies the clock; nil means time.Now. Tests pin it.
	Now func() time.Time
}

// Syncer orchestrates synchronization for calendar collections.
type Syncer struct {
	logger    *slog.Logger
	transport Transport
	store     CalendarStore
	engine    *recurrence.Engine
	opts      Options
}

// New creates a Syncer. A nil engine gets the default configuration; a
// nil logger falls back to slog.Default.
func New(logger *slog.Logger, transport Transport, store CalendarStore, engine *recurrence.Engine, opts Options) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	if engine == nil {
		engine = recurrence.NewEngine()
	}
	if opts.Window <= 0 {
		opts.Window = 365 * 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Syncer{logger: logger, transport: transport, store: store, engine: engine, opts: opts}
}

// PullCollection fetches every object of a collection, parses it with
// per-component error isolation, groups masters with their overrides,
// expands the recurrence sets over the sync window and hands the result
// to the store. One unreadable object never aborts the collection.
func (s *Syncer) PullCollection(ctx context.Context, collectionURL string) error {
	objects, err := s.transport.ListObjects(ctx, collectionURL)
	if err != nil {
		return fmt.Errorf("failed to list objects in %s: %w", collectionURL, err)
	}
	s.logger.Info("pulled collection", "url", collectionURL, "objects", len(objects))

	var events []*ical.Event
	for _, obj := range objects {
		res := ical.Parse(obj.Data)
		if res.IsError() {
			s.logger.Error("skipping unparseable object", "path", obj.Path, "error", res.Error())
			continue
		}
		cal := res.MustGet()
		for _, warning := range cal.Warnings {
			s.logger.Warn("component skipped or degraded", "path", obj.Path, "error", warning)
		}
		events = append(events, cal.Events...)
	}

	now := s.opts.Now()
	rangeStart := now.Add(-s.opts.Window)
	rangeEnd := now.Add(s.opts.Window)

	var occurrences []*ical.Event
	overrides := make(map[string]*ical.Event)
	for uid, series := range recurrence.Group(events) {
		for _, orphan := range series.Orphans {
			s.logger.Warn("orphan override dropped", "uid", uid, "importID", orphan.ImportID)
		}
		if series.Master == nil {
			continue
		}
		expanded, err := s.engine.ExpandSeries(series, rangeStart, rangeEnd)
		if err != nil {
			s.logger.Error("failed to expand series", "uid", uid, "error", err)
			continue
		}
		occurrences = append(occurrences, expanded...)
		for _, override := range series.Overrides {
			overrides[override.ImportID] = override
		}
	}

	if err := s.store.ReplaceWindow(ctx, collectionURL, occurrences, overrides); err != nil {
		return fmt.Errorf("failed to store expanded window for %s: %w", collectionURL, err)
	}
	s.logger.Info("stored expanded window", "url", collectionURL,
		"occurrences", len(occurrences), "overrides", len(overrides))
	return nil
}

// PushCollection serializes every locally changed event and uploads it
// with the ETag the change was based on. Each event gets a bumped
// SEQUENCE on a fresh copy; the stored original is never mutated. Upload
// failures are logged per event and do not stop the batch.
func (s *Syncer) PushCollection(ctx context.Context, collectionURL string) error {
	changes, err := s.store.DirtyEvents(ctx, collectionURL)
	if err != nil {
		return fmt.Errorf("failed to list local changes in %s: %w", collectionURL, err)
	}

	for _, change := range changes {
		updated := change.Event.WithSequence(change.Event.Sequence + 1)
		data := ical.Generate(updated, ical.GenerateOptions{ProdID: s.opts.ProdID, Now: s.opts.Now})

		newETag, err := s.transport.PutObject(ctx, change.Path, change.ETag, data)
		if err != nil {
			s.logger.Error("failed to upload event", "path", change.Path, "uid", updated.UID, "error", err)
			continue
		}
		if err := s.store.MarkSynced(ctx, change.Path, newETag); err != nil {
			s.logger.Error("failed to mark event synced", "path", change.Path, "error", err)
		}
	}
	s.logger.Info("pushed collection", "url", collectionURL, "changes", len(changes))
	return nil
}
