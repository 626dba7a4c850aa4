package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"campus-chat/internal/models"
	"campus-chat/pkg/logger"

	"github.com/nats-io/nats.go"
)

// NATS mirrors presence events to NATS subjects so other services (the chat
// relay, notifications) can follow joins and leaves.
type NATS struct {
	nc     *nats.Conn
	prefix string
}

func NewNATS(url, prefix string) (*NATS, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url,
		nats.Name("campus-chat"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected to %s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	logger.Info("Connected to NATS at %s", nc.ConnectedUrl())
	return &NATS{nc: nc, prefix: prefix}, nil
}

func (n *NATS) Publish(_ context.Context, channel string, event models.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := n.nc.Publish(Subject(n.prefix, channel), data); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

func (n *NATS) Close() error {
	return n.nc.Drain()
}

// Subject maps a STOMP destination such as /topic/global to a NATS subject
// under prefix, e.g. campus.presence.topic.global.
func Subject(prefix, channel string) string {
	channel = strings.Trim(channel, "/")
	channel = strings.NewReplacer("/", ".", " ", "_").Replace(channel)
	switch {
	case prefix == "":
		return channel
	case channel == "":
		return prefix
	default:
		return prefix + "." + channel
	}
}
