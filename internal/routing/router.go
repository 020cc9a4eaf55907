// Package routing connects messaging channels to outreach sessions.
package routing

import (
	"context"

	"github.com/soyeahso/helix/internal/channel"
	"github.com/soyeahso/helix/internal/domain"
	"github.com/soyeahso/helix/internal/logging"
	"github.com/soyeahso/helix/internal/sequence"
)

// Turns is the slice of the session service the router drives.
type Turns interface {
	Ensure(id string) bool
	HandleUserTurn(ctx context.Context, id, text string) string
}

// Router routes inbound chat lines to sessions and replies to channels.
type Router struct {
	channels *channel.Registry
	turns    Turns
	log      *logging.Logger
}

// NewRouter creates a message router.
func NewRouter(channels *channel.Registry, turns Turns, log *logging.Logger) *Router {
	return &Router{
		channels: channels,
		turns:    turns,
		log:      log.Sub("routing"),
	}
}

// HandleInbound runs one user turn for the sender's session and sends the
// reply back through the originating channel.
func (r *Router) HandleInbound(ctx context.Context, msg domain.InboundMessage) {
	key := SessionKey(msg.ChannelID, msg.From)
	log := r.log.Session(key)
	log.Info().
		Str("channel", msg.ChannelID).
		Str("from", msg.From).
		Msg("routing inbound message")

	if r.turns == nil {
		log.Warn().Msg("no session service configured, dropping message")
		return
	}

	if r.turns.Ensure(key) {
		log.Info().Msg("created session for new sender")
	}

	reply := r.turns.HandleUserTurn(ctx, key, msg.Body)
	out := domain.OutboundMessage{
		ChannelID: msg.ChannelID,
		To:        msg.From,
		Body:      reply,
	}
	if err := r.channels.Send(ctx, out); err != nil {
		log.Error().Err(err).
			Str("channel", msg.ChannelID).
			Str("to", msg.From).
			Msg("failed to send reply")
		return
	}

	log.Info().
		Str("channel", msg.ChannelID).
		Str("to", msg.From).
		Msg("reply sent")
}

// Wire registers HandleInbound as the message handler on all channels.
func (r *Router) Wire() {
	for _, id := range r.channels.List() {
		ch, ok := r.channels.Get(id)
		if !ok {
			continue
		}
		ch.OnMessage(func(msg domain.InboundMessage) {
			go r.HandleInbound(context.Background(), msg)
		})
		r.log.Debug().Str("channel", id).Msg("wired message handler")
	}
}

// Notifier pushes progress for channel-keyed sessions back to the chat
// user. Chat replies are sent by the Router itself and are skipped here.
type Notifier struct {
	channels *channel.Registry
	log      *logging.Logger
}

// NewNotifier returns a domain.Notifier backed by the channel registry.
func NewNotifier(channels *channel.Registry, log *logging.Logger) *Notifier {
	return &Notifier{channels: channels, log: log.Sub("routing")}
}

func (n *Notifier) send(sessionID, body string, notice bool) {
	channelID, to, ok := ParseSessionKey(sessionID)
	if !ok {
		return
	}
	if _, ok := n.channels.Get(channelID); !ok {
		return
	}
	// Channel sends queue their writes, so this does not wait on the network.
	msg := domain.OutboundMessage{ChannelID: channelID, To: to, Body: body, Notice: notice}
	if err := n.channels.Send(context.Background(), msg); err != nil {
		n.log.Warn().Err(err).Str("sessionId", sessionID).Msg("channel notify failed")
	}
}

func (n *Notifier) SequenceChanged(sessionID string, seq []domain.OutreachMessage) {
	n.send(sessionID, sequence.Render(seq), false)
}

func (n *Notifier) ChatMessage(string, string, string) {}

func (n *Notifier) ToolRunning(sessionID, label string) {
	n.send(sessionID, label, true)
}
