package models

import "time"

type EventType string

const (
	EventJoin  EventType = "JOIN"
	EventLeave EventType = "LEAVE"
)

// Event is the body of every MESSAGE frame published on a channel.
type Event struct {
	Type    EventType `json:"type"`
	Sender  string    `json:"sender"`
	Content string    `json:"content"`
}

type OnlineUsers struct {
	Count int      `json:"count"`
	Users []string `json:"users"`
}

type UserPresence struct {
	Identity string     `json:"identity"`
	Online   bool       `json:"online"`
	Sessions []string   `json:"sessions"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
}
