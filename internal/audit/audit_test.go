package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signupd/pkg/requestcontext"
)

func TestPublisherFillsEventMetadata(t *testing.T) {
	store := NewInMemoryStore()
	publisher := NewPublisher(store)

	ctx := requestcontext.WithClientMetadata(context.Background(), "203.0.113.9", "test-agent")
	ctx = requestcontext.WithDevice(ctx, "Chrome on Linux")

	require.NoError(t, publisher.Emit(ctx, Event{
		Action:   ActionSubmitRegistration,
		Username: "new_user",
		Outcome:  "success",
	}))

	events, err := publisher.List(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)

	got := events[0]
	assert.NotEmpty(t, got.ID)
	assert.False(t, got.Timestamp.IsZero())
	assert.Equal(t, "203.0.113.9", got.ClientIP)
	assert.Equal(t, "Chrome on Linux", got.Device)
	assert.Equal(t, "new_user", got.Username)
}

func TestAsyncPublisherDrainsThroughWorker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewInMemoryStore()
	inbox := make(chan Event, 8)
	worker := NewWorker(store, inbox)
	done := make(chan struct{})
	go func() {
		_ = worker.Run(ctx)
		close(done)
	}()

	publisher := NewAsyncPublisher(inbox)
	require.NoError(t, publisher.Emit(ctx, Event{Action: ActionRateLimited, Reason: "window exceeded"}))

	require.Eventually(t, func() bool {
		events, err := store.List(ctx)
		return err == nil && len(events) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestAsyncPublisherDropsWhenInboxFull(t *testing.T) {
	inbox := make(chan Event, 1)
	publisher := NewAsyncPublisher(inbox)

	ctx := context.Background()
	require.NoError(t, publisher.Emit(ctx, Event{Action: ActionRateLimited}))
	// No worker is draining; the second emit must not block.
	require.NoError(t, publisher.Emit(ctx, Event{Action: ActionRateLimited}))
	assert.Len(t, inbox, 1)
}
