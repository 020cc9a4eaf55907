package domain

import (
	"context"
	"time"
)

// InboundMessage is a chat line received from a messaging channel.
type InboundMessage struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channelId"`
	From      string    `json:"from"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

// OutboundMessage is a chat line to be delivered through a channel.
type OutboundMessage struct {
	ChannelID string `json:"channelId"`
	To        string `json:"to"`
	Body      string `json:"body"`
	Notice    bool   `json:"notice,omitempty"` // progress line rather than a reply
}

// ChannelStatus reports the runtime state of a channel.
type ChannelStatus struct {
	ChannelID string `json:"channelId"`
	Connected bool   `json:"connected"`
	Running   bool   `json:"running"`
	LastError string `json:"lastError,omitempty"`
}

// Channel is a chat front-end that can feed user turns into a session.
type Channel interface {
	// ID returns the channel identifier (e.g., "irc").
	ID() string

	// Start connects the channel and begins listening for messages.
	Start(ctx context.Context) error

	// Stop gracefully disconnects the channel.
	Stop(ctx context.Context) error

	// Send delivers an outbound message through this channel.
	Send(ctx context.Context, msg OutboundMessage) error

	// OnMessage registers a handler for inbound messages.
	OnMessage(handler func(msg InboundMessage))
}
