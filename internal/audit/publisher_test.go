package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "kycgate/pkg/domain"
	"kycgate/pkg/requestcontext"
)

func TestPublisher_StoresSynchronously(t *testing.T) {
	store := NewInMemoryStore()
	pub := NewPublisher(store)

	userID := id.NewUserID()
	require.NoError(t, pub.Emit(context.Background(), Event{UserID: userID, Action: EventUserRegistered}))

	events, err := pub.List(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventUserRegistered, events[0].Action)
	assert.Equal(t, CategoryCompliance, events[0].Category)
	assert.Nil(t, pub.Stream())
}

func TestPublisher_FillsDefaults(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	pub := NewPublisher(NewInMemoryStore(), WithClock(func() time.Time { return fixed }))

	userID := id.NewUserID()
	ctx := requestcontext.WithRequestID(context.Background(), "req-42")
	require.NoError(t, pub.Emit(ctx, Event{UserID: userID, Action: EventKycDocumentUploaded}))

	events, err := pub.List(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, fixed, events[0].Timestamp)
	assert.Equal(t, "req-42", events[0].RequestID)
	assert.Equal(t, CategoryOperations, events[0].Category)
}

func TestPublisher_StreamQueuesCopy(t *testing.T) {
	pub := NewPublisher(NewInMemoryStore(), WithStream(2))

	userID := id.NewUserID()
	require.NoError(t, pub.Emit(context.Background(), Event{UserID: userID, Action: EventKycVerified}))

	select {
	case ev := <-pub.Stream():
		assert.Equal(t, EventKycVerified, ev.Action)
	default:
		t.Fatal("expected queued event")
	}
}

func TestPublisher_FullStreamDropsButStores(t *testing.T) {
	store := NewInMemoryStore()
	pub := NewPublisher(store, WithStream(1), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	userID := id.NewUserID()
	for range 5 {
		require.NoError(t, pub.Emit(context.Background(), Event{UserID: userID, Action: EventKycRejected}))
	}

	events, err := store.ListByUser(context.Background(), userID)
	require.NoError(t, err)
	assert.Len(t, events, 5)
	assert.Len(t, pub.Stream(), 1)
}

type failingStore struct{ InMemoryStore }

func (failingStore) Append(context.Context, Event) error { return errors.New("disk full") }

func TestPublisher_StoreErrorPropagates(t *testing.T) {
	pub := NewPublisher(&failingStore{}, WithStream(1))
	err := pub.Emit(context.Background(), Event{UserID: id.NewUserID(), Action: EventUserRegistered})
	require.Error(t, err)
	assert.Len(t, pub.Stream(), 0)
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (s *recordingSink) Append(_ context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return s.err
}

func (s *recordingSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestWorker_ForwardsAndDrainsOnCancel(t *testing.T) {
	pub := NewPublisher(NewInMemoryStore(), WithStream(16))
	sink := &recordingSink{}
	worker := NewWorker(sink, pub.Stream(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	userID := id.NewUserID()
	for range 3 {
		require.NoError(t, pub.Emit(context.Background(), Event{UserID: userID, Action: EventKycVerified}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	require.Eventually(t, func() bool { return sink.len() == 3 }, time.Second, 5*time.Millisecond)

	require.NoError(t, pub.Emit(context.Background(), Event{UserID: userID, Action: EventKycRejected}))
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, 4, sink.len())
}

func TestWorker_SinkErrorsDoNotStopWorker(t *testing.T) {
	inbox := make(chan Event, 2)
	sink := &recordingSink{err: errors.New("broker down")}
	worker := NewWorker(sink, inbox, slog.New(slog.NewTextHandler(io.Discard, nil)))

	inbox <- Event{UserID: id.NewUserID(), Action: EventKycVerified}
	inbox <- Event{UserID: id.NewUserID(), Action: EventKycRejected}
	close(inbox)

	require.NoError(t, worker.Run(context.Background()))
	assert.Equal(t, 2, sink.len())
}
