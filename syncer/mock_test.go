package syncer

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/cyp0633/icalsync/ical"
)

// MockTransport implements the Transport interface for testing
type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) ListObjects(ctx context.Context, collectionURL string) ([]CalendarObject, error) {
	args := m.Called(ctx, collectionURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]CalendarObject), args.Error(1)
}

func (m *MockTransport) PutObject(ctx context.Context, path, etag, data string) (string, error) {
	args := m.Called(ctx, path, etag, data)
	return args.String(0), args.Error(1)
}

// MockStore implements the CalendarStore interface for testing
type MockStore struct {
	mock.Mock
}

func (m *MockStore) ReplaceWindow(ctx context.Context, collectionURL string, occurrences []*ical.Event, overrides map[string]*ical.Event) error {
	args := m.Called(ctx, collectionURL, occurrences, overrides)
	return args.Error(0)
}

func (m *MockStore) DirtyEvents(ctx context.Context, collectionURL string) ([]LocalChange, error) {
	args := m.Called(ctx, collectionURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]LocalChange), args.Error(1)
}

func (m *MockStore) MarkSynced(ctx context.Context, path, etag string) error {
	args := m.Called(ctx, path, etag)
	return args.Error(0)
}
