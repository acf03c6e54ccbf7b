package realtime

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ammar1510/alumni-chat/internal/events"
	"github.com/ammar1510/alumni-chat/internal/logger"
)

var log = logger.New("realtime")

const publishTimeout = 5 * time.Second

// Hub delivers published events to the sessions in a room. A single
// dispatcher goroutine (Run) drains the broker, so events for one room
// reach every member in publish order.
type Hub struct {
	registry   *Registry
	broker     Broker
	unregister chan *Session
	done       chan struct{}
}

func NewHub(registry *Registry, broker Broker) *Hub {
	return &Hub{
		registry:   registry,
		broker:     broker,
		unregister: make(chan *Session),
		done:       make(chan struct{}),
	}
}

// Registry exposes the session registry the hub delivers to.
func (h *Hub) Registry() *Registry { return h.registry }

// Online reports whether userID has a live session on this instance.
func (h *Hub) Online(userID uuid.UUID) bool {
	return h.registry.Online(userID)
}

// Publish encodes ev and hands it to the broker. It satisfies
// chat.Notifier; failures are logged because the state change that
// produced the event is already durable.
func (h *Hub) Publish(ctx context.Context, room, skip string, ev events.Event) {
	frame, err := events.Encode(ev)
	if err != nil {
		log.Error("encode %s: %v", ev.EventName(), err)
		return
	}

	// Detach from request cancellation; the event must still go out.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := h.broker.Publish(pctx, Envelope{Room: room, Skip: skip, Frame: frame}); err != nil {
		log.Warn("publish %s to %s: %v", ev.EventName(), room, err)
	}
}

// Send delivers ev to one session.
func (h *Hub) Send(ctx context.Context, s *Session, ev events.Event) {
	h.Publish(ctx, SessionRoom(s.ID), "", ev)
}

// Run dispatches envelopes until ctx is cancelled, then closes every
// session's queue.
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()

	messages := h.broker.Messages()
	for {
		select {
		case s := <-h.unregister:
			h.drop(s)
		case env, ok := <-messages:
			if !ok {
				return
			}
			h.dispatch(env)
		case <-ctx.Done():
			return
		}
	}
}

// Unregister hands s to the dispatcher for removal.
func (h *Hub) Unregister(s *Session) {
	select {
	case h.unregister <- s:
	case <-h.done:
	}
}

func (h *Hub) dispatch(env Envelope) {
	for _, s := range h.registry.Members(env.Room) {
		if s.ID == env.Skip {
			continue
		}
		h.deliver(s, env.Frame)
	}
}

func (h *Hub) deliver(s *Session, frame []byte) {
	if s.closed {
		return
	}
	select {
	case s.send <- frame:
	default:
		log.Warn("session %s (user %s) is not keeping up, disconnecting", s.ID, s.UserID)
		h.drop(s)
	}
}

func (h *Hub) drop(s *Session) {
	removed, last := h.registry.Remove(s)
	if !s.closed {
		s.closed = true
		close(s.send)
	}
	if removed {
		log.Info("session %s for user %s disconnected", s.ID, s.UserID)
	}
	if last {
		// Publishing from the dispatcher could block on our own broker.
		go h.Publish(context.Background(), BroadcastRoom, "", events.UserOffline{UserID: s.UserID})
	}
}

func (h *Hub) shutdown() {
	close(h.done)
	for _, s := range h.registry.Members(BroadcastRoom) {
		h.registry.Remove(s)
		if !s.closed {
			s.closed = true
			close(s.send)
		}
	}
}
