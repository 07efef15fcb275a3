package eventstream_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentctl/controlplane/event"
	"github.com/agentctl/controlplane/eventstream"
)

func newTestStream() *eventstream.Stream {
	s := eventstream.New()
	s.YieldInterval = 0
	return s
}

func TestPublishAssignsDenseIncreasingIDs(t *testing.T) {
	s := newTestStream()
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 5; i++ {
		id, err := s.Publish(ctx, event.NewMessageAction("hi", event.Meta{Source: event.SourceUser}))
		require.NoError(t, err)
		ids = append(ids, id)
	}
	for i, id := range ids {
		assert.Equal(t, int64(i+1), id)
	}
	assert.Equal(t, int64(5), s.LatestID())
}

func TestSubscribersObserveEventsInOrder(t *testing.T) {
	s := newTestStream()
	ctx := context.Background()

	var seen []int64
	_, err := s.Subscribe("controller", "p1", func(_ context.Context, evt event.Event) error {
		seen = append(seen, evt.ID())
		return nil
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := s.Publish(ctx, event.NewNullAction(event.Meta{}))
		require.NoError(t, err)
	}
	assert.Equal(t, []int64{1, 2, 3}, seen)
}

func TestReentrantPublishIsQueuedNotImmediate(t *testing.T) {
	s := newTestStream()
	ctx := context.Background()

	var order []int64
	sub, err := s.Subscribe("controller", "p1", func(_ context.Context, evt event.Event) error {
		order = append(order, evt.ID())
		if evt.ID() == 1 {
			// Re-entrant publish from inside a handler must not be
			// delivered until this handler call returns.
			_, perr := s.Publish(ctx, event.NewNullAction(event.Meta{}))
			require.NoError(t, perr)
		}
		return nil
	})
	require.NoError(t, err)
	defer sub.Close()

	_, err = s.Publish(ctx, event.NewNullAction(event.Meta{}))
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2}, order)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	s := newTestStream()
	ctx := context.Background()

	count := 0
	sub, err := s.Subscribe("controller", "p1", func(context.Context, event.Event) error {
		count++
		return nil
	})
	require.NoError(t, err)

	_, _ = s.Publish(ctx, event.NewNullAction(event.Meta{}))
	require.NoError(t, sub.Close())
	_, _ = s.Publish(ctx, event.NewNullAction(event.Meta{}))

	assert.Equal(t, 1, count)
}

func TestGetEventsFiltersHiddenAndType(t *testing.T) {
	s := newTestStream()
	ctx := context.Background()

	_, _ = s.Publish(ctx, event.NewMessageAction("u1", event.Meta{Source: event.SourceUser}))
	_, _ = s.Publish(ctx, event.NewNullAction(event.Meta{Hidden: true}))
	_, _ = s.Publish(ctx, event.NewAgentFinishAction("done", nil, event.Meta{}))

	visible := s.GetEvents(1, 0, false, nil, true)
	require.Len(t, visible, 2)
	assert.Equal(t, event.KindMessage, visible[0].Type())
	assert.Equal(t, event.KindAgentFinish, visible[1].Type())

	onlyFinish := s.GetEvents(1, 0, false, []event.Kind{event.KindAgentFinish}, true)
	require.Len(t, onlyFinish, 1)
	assert.Equal(t, event.KindAgentFinish, onlyFinish[0].Type())
}

func TestGetEventsReverse(t *testing.T) {
	s := newTestStream()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, _ = s.Publish(ctx, event.NewNullAction(event.Meta{}))
	}
	rev := s.GetEvents(1, 0, true, nil, false)
	require.Len(t, rev, 3)
	assert.Equal(t, int64(3), rev[0].ID())
	assert.Equal(t, int64(1), rev[2].ID())
}
