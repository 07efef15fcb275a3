package eventstream_test

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/agentctl/controlplane/event"
	"github.com/agentctl/controlplane/eventstream"
)

func TestPublishIDsAreStrictlyIncreasingProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("every published event gets a strictly greater id than the last", prop.ForAll(
		func(n int) bool {
			s := newTestStream()
			ctx := context.Background()
			var last int64
			for i := 0; i < n; i++ {
				id, err := s.Publish(ctx, event.NewNullAction(event.Meta{}))
				if err != nil || id <= last {
					return false
				}
				last = id
			}
			return s.LatestID() == last
		},
		gen.IntRange(0, 50),
	))

	properties.TestingRun(t)
}

func TestSubscriberOnlySeesEventsFromItsSubscribePointProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("a subscriber added after n events never observes an id from before it subscribed", prop.ForAll(
		func(before, after int) bool {
			s := newTestStream()
			ctx := context.Background()
			for i := 0; i < before; i++ {
				if _, err := s.Publish(ctx, event.NewNullAction(event.Meta{})); err != nil {
					return false
				}
			}
			watermark := s.LatestID()

			var seen []int64
			sub, err := s.Subscribe("late", "p1", func(_ context.Context, evt event.Event) error {
				seen = append(seen, evt.ID())
				return nil
			})
			if err != nil {
				return false
			}
			defer sub.Close()

			for i := 0; i < after; i++ {
				if _, err := s.Publish(ctx, event.NewNullAction(event.Meta{})); err != nil {
					return false
				}
			}
			for _, id := range seen {
				if id <= watermark {
					return false
				}
			}
			return len(seen) == after
		},
		gen.IntRange(0, 10),
		gen.IntRange(0, 10),
	))

	properties.TestingRun(t)
}
