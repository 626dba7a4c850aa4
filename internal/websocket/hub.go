package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"campus-chat/internal/metrics"
	"campus-chat/internal/models"
	"campus-chat/internal/presence"
	"campus-chat/internal/stomp"
	"campus-chat/pkg/logger"
)

var (
	ErrHubClosed          = fmt.Errorf("hub: %w", presence.ErrBroadcasterClosed)
	ErrBroadcastQueueFull = errors.New("broadcast queue full")
)

// Presence receives the lifecycle events of every connection.
type Presence interface {
	OnConnect(identity, connID string)
	OnSubscribe(ctx context.Context, identity, connID, channel string)
	OnDisconnect(ctx context.Context, identity, connID string)
	Kick(ctx context.Context, identity string) []string
}

type delivery struct {
	channel string
	body    []byte
}

// Hub tracks live clients and their channel subscriptions and fans out
// published events to subscribers.
type Hub struct {
	mu      sync.RWMutex
	closing bool
	clients map[string]*Client
	// channel -> client -> subscription id
	subs map[string]map[*Client]string

	broadcast chan delivery
	shutdown  chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
	msgSeq    atomic.Uint64
	// one per running ReadPump, so Shutdown can wait for their disconnects
	pumps sync.WaitGroup

	presence  Presence
	extractor presence.IdentityExtractor
	opts      Options
	metrics   *metrics.Metrics
}

func NewHub(extractor presence.IdentityExtractor, opts Options, m *metrics.Metrics) *Hub {
	opts = opts.withDefaults()
	return &Hub{
		clients:   make(map[string]*Client),
		subs:      make(map[string]map[*Client]string),
		broadcast: make(chan delivery, opts.BroadcastBuffer),
		shutdown:  make(chan struct{}),
		stopped:   make(chan struct{}),
		extractor: extractor,
		opts:      opts,
		metrics:   m,
	}
}

// SetPresence must be called before the hub accepts clients.
func (h *Hub) SetPresence(p Presence) {
	h.presence = p
}

func (h *Hub) Run() {
	defer close(h.stopped)
	for {
		select {
		case <-h.shutdown:
			h.mu.RLock()
			for _, client := range h.clients {
				client.close()
			}
			h.mu.RUnlock()
			return

		case d := <-h.broadcast:
			h.fanOut(d)
		}
	}
}

// Publish queues event for every subscriber of channel without waiting for
// delivery.
func (h *Hub) Publish(_ context.Context, channel string, event models.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	select {
	case <-h.shutdown:
		return ErrHubClosed
	default:
	}
	select {
	case h.broadcast <- delivery{channel: channel, body: body}:
		return nil
	default:
		return ErrBroadcastQueueFull
	}
}

func (h *Hub) fanOut(d delivery) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client, subID := range h.subs[d.channel] {
		frame := stomp.New(stomp.CmdMessage,
			stomp.HdrDestination, d.channel,
			stomp.HdrSubscription, subID,
			stomp.HdrMessageID, strconv.FormatUint(h.msgSeq.Add(1), 10),
			stomp.HdrContentType, "application/json",
		)
		frame.Body = d.body
		if !client.trySend(stomp.Encode(frame)) {
			logger.Warn("Dropping slow client %s", client.id)
			h.metrics.IncDropped()
			client.close()
		}
	}
}

func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	if h.closing {
		h.mu.Unlock()
		return false
	}
	h.clients[c.id] = c
	h.pumps.Add(1)
	h.mu.Unlock()
	h.metrics.IncConn()
	return true
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	delete(h.clients, c.id)
	for channel, subscribers := range h.subs {
		if _, ok := subscribers[c]; ok {
			delete(subscribers, c)
			if len(subscribers) == 0 {
				delete(h.subs, channel)
			}
		}
	}
	h.metrics.DecConn()
}

func (h *Hub) subscribe(c *Client, channel, subID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subscribers, ok := h.subs[channel]
	if !ok {
		subscribers = make(map[*Client]string)
		h.subs[channel] = subscribers
	}
	subscribers[c] = subID
}

func (h *Hub) unsubscribe(c *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subscribers, ok := h.subs[channel]; ok {
		delete(subscribers, c)
		if len(subscribers) == 0 {
			delete(h.subs, channel)
		}
	}
}

// DisconnectUser removes every session of identity from presence, which
// announces the LEAVE, then closes its connections.
func (h *Hub) DisconnectUser(ctx context.Context, identity string) int {
	if h.presence == nil {
		return 0
	}
	removed := h.presence.Kick(ctx, identity)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, id := range removed {
		if client, ok := h.clients[id]; ok {
			client.close()
		}
	}
	return len(removed)
}

func (h *Hub) NumClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) NumSubscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[channel])
}

// Shutdown closes every client, stops the run loop and waits until each
// client's disconnect has reached presence.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.closeOnce.Do(func() {
		h.mu.Lock()
		h.closing = true
		h.mu.Unlock()
		close(h.shutdown)
	})
	select {
	case <-h.stopped:
	case <-ctx.Done():
		return ctx.Err()
	}

	drained := make(chan struct{})
	go func() {
		h.pumps.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
