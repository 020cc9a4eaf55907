// Package irc lets recruiters drive a session over IRC private messages.
package irc

import (
	"context"
	"crypto/tls"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lrstanley/girc"
	"github.com/soyeahso/helix/internal/config"
	"github.com/soyeahso/helix/internal/domain"
	"github.com/soyeahso/helix/internal/logging"
	"github.com/soyeahso/helix/internal/version"
)

// maxLineBytes keeps each PRIVMSG well under the 512 byte IRC line limit.
const maxLineBytes = 400

// Channel implements domain.Channel for IRC.
type Channel struct {
	cfg    config.IRCConfig
	client *girc.Client
	log    *logging.Logger

	mu      sync.RWMutex
	handler func(msg domain.InboundMessage)
	running bool
	lastErr string
}

// New creates an IRC channel from configuration.
func New(cfg config.IRCConfig, log *logging.Logger) *Channel {
	return &Channel{
		cfg: cfg,
		log: log.Sub("irc"),
	}
}

func (c *Channel) ID() string { return "irc" }

func (c *Channel) OnMessage(handler func(msg domain.InboundMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

// Status returns the current runtime status.
func (c *Channel) Status() domain.ChannelStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return domain.ChannelStatus{
		ChannelID: "irc",
		Connected: c.client != nil && c.client.IsConnected(),
		Running:   c.running,
		LastError: c.lastErr,
	}
}

func (c *Channel) port() int {
	if c.cfg.Port != 0 {
		return c.cfg.Port
	}
	if c.cfg.UseTLS {
		return 6697
	}
	return 6667
}

// gircConfig translates the channel config. SASL PLAIN is used when asked
// for, otherwise a password goes out as PASS.
func (c *Channel) gircConfig() girc.Config {
	gc := girc.Config{
		Server:  c.cfg.Server,
		Port:    c.port(),
		Nick:    c.cfg.Nick,
		User:    c.cfg.Nick,
		Name:    "Helix recruiting assistant",
		SSL:     c.cfg.UseTLS,
		Version: version.UserAgent(),
	}
	if c.cfg.UseTLS {
		gc.TLSConfig = &tls.Config{ServerName: c.cfg.Server}
	}
	switch {
	case c.cfg.Password == "":
	case c.cfg.SASL:
		gc.SASL = &girc.SASLPlain{User: c.cfg.Nick, Pass: c.cfg.Password}
	default:
		gc.ServerPass = c.cfg.Password
	}
	return gc
}

func (c *Channel) setRunning(running bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = running
	if err != nil {
		c.lastErr = err.Error()
	}
}

// Start connects to the IRC server and blocks until the connection ends
// or ctx is cancelled.
func (c *Channel) Start(ctx context.Context) error {
	client := girc.New(c.gircConfig())
	client.Handlers.Add(girc.CONNECTED, c.onConnected)
	client.Handlers.Add(girc.PRIVMSG, c.onPrivmsg)
	client.Handlers.Add(girc.DISCONNECTED, c.onDisconnected)

	c.mu.Lock()
	c.client = client
	c.lastErr = ""
	c.mu.Unlock()
	c.setRunning(true, nil)

	c.log.Info().
		Str("server", c.cfg.Server).
		Int("port", c.port()).
		Str("nick", c.cfg.Nick).
		Bool("tls", c.cfg.UseTLS).
		Msg("connecting to IRC")

	done := make(chan error, 1)
	go func() { done <- client.Connect() }()

	select {
	case err := <-done:
		c.setRunning(false, err)
		if err != nil {
			return fmt.Errorf("irc connect: %w", err)
		}
		return nil
	case <-ctx.Done():
		client.Close()
		c.setRunning(false, nil)
		return ctx.Err()
	}
}

// Stop sends QUIT if connected.
func (c *Channel) Stop(context.Context) error {
	c.mu.Lock()
	client := c.client
	c.mu.Unlock()
	if client != nil && client.IsConnected() {
		c.log.Info().Msg("disconnecting from IRC")
		client.Quit("Helix shutting down")
	}
	c.setRunning(false, nil)
	return nil
}

// Send delivers a message to a nick, one PRIVMSG (or NOTICE) per line.
func (c *Channel) Send(ctx context.Context, msg domain.OutboundMessage) error {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()

	if client == nil || !client.IsConnected() {
		return fmt.Errorf("irc: not connected")
	}
	if msg.To == "" {
		return fmt.Errorf("irc: no target specified")
	}

	lines := splitMessage(msg.Body, maxLineBytes)
	for _, line := range lines {
		if msg.Notice {
			client.Cmd.Notice(msg.To, line)
		} else {
			client.Cmd.Message(msg.To, line)
		}
	}

	c.log.Debug().
		Str("to", msg.To).
		Int("lines", len(lines)).
		Bool("notice", msg.Notice).
		Msg("sent IRC message")
	return nil
}

func (c *Channel) onConnected(client *girc.Client, _ girc.Event) {
	c.log.Info().Str("nick", client.GetNick()).Msg("connected to IRC")
}

func (c *Channel) onDisconnected(*girc.Client, girc.Event) {
	c.log.Warn().Msg("disconnected from IRC")
	c.setRunning(false, nil)
}

func (c *Channel) onPrivmsg(client *girc.Client, e girc.Event) {
	if e.Source == nil || e.Source.Name == client.GetNick() {
		return
	}
	// Channel chatter is ignored; sessions are one per nick.
	if e.IsFromChannel() {
		return
	}

	body := e.Last()
	if e.IsAction() {
		body = e.StripAction()
	}
	c.deliver(e.Source.Name, body)
}

// allowed reports whether nick may drive a session.
func (c *Channel) allowed(nick string) bool {
	return len(c.cfg.Allow) == 0 || slices.ContainsFunc(c.cfg.Allow, func(n string) bool {
		return strings.EqualFold(n, nick)
	})
}

func (c *Channel) deliver(from, body string) {
	body = strings.TrimSpace(body)
	if body == "" {
		return
	}
	if !c.allowed(from) {
		c.log.Debug().Str("nick", from).Msg("ignoring message from nick not in allow list")
		return
	}

	c.mu.RLock()
	handler := c.handler
	c.mu.RUnlock()
	if handler == nil {
		return
	}

	handler(domain.InboundMessage{
		ID:        uuid.NewString(),
		ChannelID: "irc",
		From:      from,
		Body:      body,
		Timestamp: time.Now(),
	})
}

// splitMessage breaks text into IRC-sized lines. Each input line becomes at
// least one output line; blank lines are dropped and long lines are cut at
// the last space before maxLen, or at maxLen when there is none.
func splitMessage(text string, maxLen int) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, " \r\t")
		for len(line) > maxLen {
			cut := strings.LastIndexByte(line[:maxLen], ' ')
			if cut <= 0 {
				cut = maxLen
			}
			out = append(out, line[:cut])
			line = strings.TrimLeft(line[cut:], " ")
		}
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
