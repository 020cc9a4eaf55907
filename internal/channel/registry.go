// Package channel keeps track of the chat front-ends (IRC today) that feed
// user turns into outreach sessions.
package channel

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/soyeahso/helix/internal/domain"
	"github.com/soyeahso/helix/internal/logging"
)

// statusReporter is implemented by channels that track their connection.
type statusReporter interface {
	Status() domain.ChannelStatus
}

// Registry holds the configured front-ends keyed by channel id. Channels
// start in registration order and stop in reverse.
type Registry struct {
	mu    sync.RWMutex
	byID  map[string]domain.Channel
	order []string
	log   *logging.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		byID: make(map[string]domain.Channel),
		log:  log.Sub("channels"),
	}
}

// Register adds ch. Channel ids are session key prefixes, so a second
// channel with the same id is rejected.
func (r *Registry) Register(ch domain.Channel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := ch.ID()
	if _, dup := r.byID[id]; dup {
		return fmt.Errorf("channel %q already registered", id)
	}
	r.byID[id] = ch
	r.order = append(r.order, id)
	r.log.Info().Str("channel", id).Msg("channel registered")
	return nil
}

// Get returns the channel with the given id.
func (r *Registry) Get(id string) (domain.Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.byID[id]
	return ch, ok
}

// List returns the registered ids, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	ids := slices.Clone(r.order)
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Count returns the number of registered channels.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Send delivers msg through the channel named by msg.ChannelID.
func (r *Registry) Send(ctx context.Context, msg domain.OutboundMessage) error {
	ch, ok := r.Get(msg.ChannelID)
	if !ok {
		return fmt.Errorf("channel %q not registered", msg.ChannelID)
	}
	return ch.Send(ctx, msg)
}

// Status reports every channel, sorted by id. Channels that do not track
// their connection are reported as running.
func (r *Registry) Status() []domain.ChannelStatus {
	out := make([]domain.ChannelStatus, 0, r.Count())
	for _, ch := range r.snapshot() {
		if sr, ok := ch.(statusReporter); ok {
			out = append(out, sr.Status())
			continue
		}
		out = append(out, domain.ChannelStatus{ChannelID: ch.ID(), Running: true})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChannelID < out[j].ChannelID })
	return out
}

// StartAll launches every channel in its own goroutine, since Start may
// block for the life of the connection. Start errors are logged.
func (r *Registry) StartAll(ctx context.Context) error {
	for _, ch := range r.snapshot() {
		r.log.Info().Str("channel", ch.ID()).Msg("starting channel")
		go func(ch domain.Channel) {
			if err := ch.Start(ctx); err != nil {
				r.log.Error().Err(err).Str("channel", ch.ID()).Msg("channel exited with error")
			}
		}(ch)
	}
	return nil
}

// StopAll stops every channel, last registered first.
func (r *Registry) StopAll(ctx context.Context) {
	chs := r.snapshot()
	slices.Reverse(chs)
	for _, ch := range chs {
		r.log.Info().Str("channel", ch.ID()).Msg("stopping channel")
		if err := ch.Stop(ctx); err != nil {
			r.log.Error().Err(err).Str("channel", ch.ID()).Msg("failed to stop channel")
		}
	}
}

// snapshot returns the channels in registration order.
func (r *Registry) snapshot() []domain.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Channel, len(r.order))
	for i, id := range r.order {
		out[i] = r.byID[id]
	}
	return out
}
