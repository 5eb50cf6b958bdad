// Package broadcast lets client instances on the same machine discover
// each other. Each instance announces itself on startup and answers with
// its own presence, so two instances holding the same session token can
// deterministically decide which of them yields.
package broadcast

import "context"

// Message kinds.
const (
	KindAnnounce = "announce"
	KindPresence = "presence"
)

// Message is exchanged between local client instances.
type Message struct {
	Kind       string `json:"kind"`
	Token      string `json:"token"`
	InstanceID string `json:"instance_id"`
	OpenedAt   int64  `json:"opened_at"` // unix milliseconds
}

// Bus delivers messages between local instances. Send is best effort;
// a bus with no peers drops the message.
type Bus interface {
	Send(ctx context.Context, msg Message) error
	Receive() <-chan Message
	Close() error
}
