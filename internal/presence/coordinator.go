package presence

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"campus-chat/internal/models"
	"campus-chat/pkg/logger"
)

// State is the per-identity announcement state within an online episode.
type State int

const (
	Absent State = iota
	PendingJoin
	Announced
)

func (s State) String() string {
	switch s {
	case PendingJoin:
		return "pending_join"
	case Announced:
		return "announced"
	default:
		return "absent"
	}
}

// Broadcaster publishes an event to every subscriber of a channel. It must
// not wait for delivery.
type Broadcaster interface {
	Publish(ctx context.Context, channel string, event models.Event) error
}

// Observer is told about every JOIN or LEAVE the coordinator decides on,
// whether or not the broadcast succeeded.
type Observer interface {
	ObservePresence(ctx context.Context, kind models.EventType, identity string, online int)
}

type Options struct {
	Channel      string
	SystemSender string
	CountRefresh bool
	Shards       int
}

// Coordinator turns CONNECT, SUBSCRIBE and DISCONNECT events into at most one
// JOIN and one LEAVE per identity and online episode.
type Coordinator struct {
	registry    *Registry
	broadcaster Broadcaster
	opts        Options
	locks       *keyLock
	states      sync.Map // identity -> State, absent identities are not stored

	obsMu     sync.RWMutex
	observers []Observer
}

func NewCoordinator(registry *Registry, broadcaster Broadcaster, opts Options) *Coordinator {
	if opts.Channel == "" {
		opts.Channel = "/topic/global"
	}
	if opts.SystemSender == "" {
		opts.SystemSender = "System"
	}
	return &Coordinator{
		registry:    registry,
		broadcaster: broadcaster,
		opts:        opts,
		locks:       newKeyLock(opts.Shards),
	}
}

func (c *Coordinator) AddObserver(o Observer) {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	c.observers = append(c.observers, o)
}

func (c *Coordinator) Registry() *Registry {
	return c.registry
}

func (c *Coordinator) Channel() string {
	return c.opts.Channel
}

func (c *Coordinator) State(identity string) State {
	if v, ok := c.states.Load(identity); ok {
		return v.(State)
	}
	return Absent
}

func (c *Coordinator) setState(identity string, s State) {
	if s == Absent {
		c.states.Delete(identity)
		return
	}
	c.states.Store(identity, s)
}

// OnConnect registers the connection and arms a pending JOIN when it is the
// identity's first session. It never broadcasts.
func (c *Coordinator) OnConnect(identity, connID string) {
	if identity == "" {
		logger.Debug("Presence: CONNECT without identity on %s ignored", connID)
		return
	}
	unlock := c.locks.Lock(identity)
	defer unlock()

	before := c.registry.Register(identity, connID)
	if before == 0 {
		c.setState(identity, PendingJoin)
	}
	logger.Debug("Presence: %s connected on %s (sessions before: %d)", identity, connID, before)
}

// OnSubscribe publishes the JOIN for a pending identity once it subscribes to
// the presence channel. Any other subscription is ignored.
func (c *Coordinator) OnSubscribe(ctx context.Context, identity, connID, channel string) {
	if channel != c.opts.Channel {
		return
	}
	if identity == "" {
		logger.Debug("Presence: SUBSCRIBE without identity on %s ignored", connID)
		return
	}
	unlock := c.locks.Lock(identity)
	defer unlock()

	if c.State(identity) != PendingJoin {
		return
	}
	c.setState(identity, Announced)

	count := c.registry.OnlineCount()
	c.publish(ctx, models.Event{
		Type:    models.EventJoin,
		Sender:  identity,
		Content: fmt.Sprintf("%s joined the chat. Online users: %d", identity, count),
	})
	if c.opts.CountRefresh {
		c.publish(ctx, models.Event{
			Type:    models.EventJoin,
			Sender:  c.opts.SystemSender,
			Content: fmt.Sprintf("Online users: %d", count),
		})
	}
	c.notify(ctx, models.EventJoin, identity, count)
	logger.Info("User %s joined. Online users: %d", identity, count)
}

// OnDisconnect unregisters the connection. The last session of an announced
// identity produces a LEAVE; a pending identity leaves silently.
func (c *Coordinator) OnDisconnect(ctx context.Context, identity, connID string) {
	if identity == "" {
		logger.Debug("Presence: DISCONNECT without identity on %s ignored", connID)
		return
	}
	unlock := c.locks.Lock(identity)
	defer unlock()

	before, err := c.registry.Unregister(identity, connID)
	if err != nil {
		logger.Debug("Presence: disconnect of %s for %s: %v", connID, identity, err)
		return
	}

	state := c.State(identity)
	if state == PendingJoin {
		c.setState(identity, Absent)
	}
	if before != 1 {
		return
	}
	c.setState(identity, Absent)
	if state != Announced {
		logger.Debug("Presence: %s left before subscribing", identity)
		return
	}
	c.announceLeave(ctx, identity)
}

// Kick drops every session of identity, announcing a LEAVE if the identity
// was announced. It returns the removed connection ids.
func (c *Coordinator) Kick(ctx context.Context, identity string) []string {
	if identity == "" {
		return nil
	}
	unlock := c.locks.Lock(identity)
	defer unlock()

	removed := c.registry.RemoveUser(identity)
	if len(removed) == 0 {
		return nil
	}
	state := c.State(identity)
	c.setState(identity, Absent)
	if state == Announced {
		c.announceLeave(ctx, identity)
	}
	return removed
}

func (c *Coordinator) announceLeave(ctx context.Context, identity string) {
	count := c.registry.OnlineCount()
	c.publish(ctx, models.Event{
		Type:    models.EventLeave,
		Sender:  identity,
		Content: fmt.Sprintf("%s left the chat. Online users: %d", identity, count),
	})
	c.notify(ctx, models.EventLeave, identity, count)
	logger.Info("User %s left. Online users: %d", identity, count)
}

func (c *Coordinator) publish(ctx context.Context, event models.Event) {
	if c.broadcaster == nil {
		return
	}
	err := c.broadcaster.Publish(ctx, c.opts.Channel, event)
	switch {
	case err == nil:
	case errors.Is(err, ErrBroadcasterClosed):
		logger.Debug("Presence: %s for %s not published: %v", event.Type, event.Sender, err)
	default:
		logger.Error("Presence: failed to publish %s for %s: %v", event.Type, event.Sender, err)
	}
}

func (c *Coordinator) notify(ctx context.Context, kind models.EventType, identity string, online int) {
	c.obsMu.RLock()
	defer c.obsMu.RUnlock()
	for _, o := range c.observers {
		o.ObservePresence(ctx, kind, identity, online)
	}
}
