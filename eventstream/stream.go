// Package eventstream implements the single shared, append-only event log
// every controller publishes to and subscribes from. It fuses the
// monotonic-id append log pattern with a synchronous fan-out bus: the
// stream both stores events and dispatches them to subscribers.
package eventstream

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/agentctl/controlplane/event"
)

// Handler reacts to a published event. Returning an error only from a
// handler that must halt delivery for the remaining subscribers; most
// handlers should log and swallow their own failures.
type Handler func(ctx context.Context, evt event.Event) error

// Subscription represents one registered handler. Close is idempotent.
type Subscription interface {
	Close() error
}

var ErrNilHandler = errors.New("eventstream: handler is required")

type subscriberEntry struct {
	name string
	id   string
	h    Handler
	seq  int64
}

// Stream is the append-only, publish/subscribe event log described by
// spec section 4.1: ids are dense and strictly increasing, publish is
// atomic with respect to id assignment, and handlers observe events in
// publication order. A handler publishing a new event while itself
// running does not see it delivered re-entrantly; it is queued and
// delivered once the current dispatch returns.
type Stream struct {
	mu     sync.Mutex
	events []event.Event
	nextID int64

	subs    map[string]*subscriberEntry
	subSeq  int64

	dispatching bool
	queue       []event.Event

	// YieldInterval is the minimum pause between successive event
	// deliveries, keeping a cooperative single-threaded loop responsive
	// (spec section 5: "explicit yields of >=10ms between event
	// deliveries"). Tests may set this to 0.
	YieldInterval time.Duration
}

// New constructs an empty Stream with the default 10ms inter-delivery
// yield.
func New() *Stream {
	return &Stream{
		subs:          make(map[string]*subscriberEntry),
		YieldInterval: 10 * time.Millisecond,
	}
}

// Publish assigns the next monotonic id to evt, appends it to the log,
// and dispatches it (and any events published re-entrantly by handlers)
// to every current subscriber in publication order. It returns the
// assigned id.
func (s *Stream) Publish(ctx context.Context, evt event.Event) (int64, error) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	event.AssignID(evt, id)
	s.events = append(s.events, evt)

	if s.dispatching {
		s.queue = append(s.queue, evt)
		s.mu.Unlock()
		return id, nil
	}
	s.dispatching = true
	s.mu.Unlock()

	if err := s.drain(ctx, evt); err != nil {
		return id, err
	}
	return id, nil
}

// drain delivers first, then anything queued by re-entrant Publish calls
// made from inside a handler, until the queue is empty.
func (s *Stream) drain(ctx context.Context, first event.Event) error {
	current := first
	for {
		for _, h := range s.snapshotHandlers() {
			if err := h(ctx, current); err != nil {
				s.mu.Lock()
				s.dispatching = false
				s.queue = nil
				s.mu.Unlock()
				return err
			}
		}

		if s.YieldInterval > 0 {
			time.Sleep(s.YieldInterval)
		}

		s.mu.Lock()
		if len(s.queue) == 0 {
			s.dispatching = false
			s.mu.Unlock()
			return nil
		}
		current = s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
	}
}

func (s *Stream) snapshotHandlers() []Handler {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := make([]*subscriberEntry, 0, len(s.subs))
	for _, e := range s.subs {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	handlers := make([]Handler, len(entries))
	for i, e := range entries {
		handlers[i] = e.h
	}
	return handlers
}

// Subscribe registers h under (name, subscriberID), replacing any handler
// already registered under the same pair. Handlers are invoked in
// registration order. Returns a Subscription whose Close unregisters it.
func (s *Stream) Subscribe(name, subscriberID string, h Handler) (Subscription, error) {
	if h == nil {
		return nil, ErrNilHandler
	}
	key := name + "\x00" + subscriberID
	s.mu.Lock()
	s.subSeq++
	s.subs[key] = &subscriberEntry{name: name, id: subscriberID, h: h, seq: s.subSeq}
	s.mu.Unlock()
	return &subscription{stream: s, key: key}, nil
}

// Unsubscribe removes the handler registered under (name, subscriberID),
// if any. It is a no-op if no such handler exists.
func (s *Stream) Unsubscribe(name, subscriberID string) {
	s.mu.Lock()
	delete(s.subs, name+"\x00"+subscriberID)
	s.mu.Unlock()
}

type subscription struct {
	stream *Stream
	key    string
	once   sync.Once
}

func (sub *subscription) Close() error {
	sub.once.Do(func() {
		sub.stream.mu.Lock()
		delete(sub.stream.subs, sub.key)
		sub.stream.mu.Unlock()
	})
	return nil
}

// GetEvents returns events in [startID, endID] (endID == 0 means "up to
// latest"), optionally reversed, optionally restricted to filterTypes
// (empty means no kind restriction), and excluding hidden events unless
// filterHidden is false.
func (s *Stream) GetEvents(startID, endID int64, reverse bool, filterTypes []event.Kind, filterHidden bool) []event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	allowed := make(map[event.Kind]bool, len(filterTypes))
	for _, k := range filterTypes {
		allowed[k] = true
	}

	var out []event.Event
	for _, e := range s.events {
		if e.ID() < startID {
			continue
		}
		if endID > 0 && e.ID() > endID {
			continue
		}
		if filterHidden && e.Hidden() {
			continue
		}
		if len(allowed) > 0 && !allowed[e.Type()] {
			continue
		}
		out = append(out, e)
	}
	if reverse {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

// LatestID returns the id of the most recently published event, or 0 if
// the stream is empty.
func (s *Stream) LatestID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextID
}
