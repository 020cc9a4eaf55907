package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/soyeahso/helix/internal/config"
	"github.com/soyeahso/helix/internal/domain"
	"github.com/soyeahso/helix/internal/logging"
	"github.com/soyeahso/helix/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--log-level", "silent"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, true, parseValue("true"))
	assert.Equal(t, false, parseValue("FALSE"))
	assert.Equal(t, 4000, parseValue("4000"))
	assert.Equal(t, 0.5, parseValue("0.5"))
	assert.Equal(t, "loopback", parseValue("loopback"))
}

func TestPrintValue(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printValue(&buf, map[string]any{"port": 4000}))
	assert.Equal(t, "port: 4000\n", buf.String())

	buf.Reset()
	require.NoError(t, printValue(&buf, "info"))
	assert.Equal(t, "info\n", buf.String())
}

func TestRedacted(t *testing.T) {
	c := config.Defaults()
	c.LLM.APIKey = "sk-live"
	c.LLM.Fallbacks = []config.LLMProviderConfig{{Provider: "claude", APIKey: "sk-ant"}}
	c.Gateway.Auth.Token = "tok"
	c.Channels.IRC = &config.IRCConfig{Password: "pw"}

	r := redacted(c)
	assert.Equal(t, "********", r.LLM.APIKey)
	assert.Equal(t, "********", r.LLM.Fallbacks[0].APIKey)
	assert.Equal(t, "********", r.Gateway.Auth.Token)
	assert.Empty(t, r.Gateway.Auth.Password)
	assert.Equal(t, "********", r.Channels.IRC.Password)

	// The original is untouched.
	assert.Equal(t, "sk-ant", c.LLM.Fallbacks[0].APIKey)
	assert.Equal(t, "pw", c.Channels.IRC.Password)
}

func TestVersionCmd(t *testing.T) {
	t.Setenv("HELIX_HOME", t.TempDir())
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "helix dev"))
}

func TestConfigSetGetValidate(t *testing.T) {
	t.Setenv("HELIX_HOME", t.TempDir())
	t.Setenv("OPENAI_API_KEY", "sk-test")

	_, err := run(t, "config", "set", "gateway.port", "4100")
	require.NoError(t, err)

	out, err := run(t, "config", "get", "gateway.port")
	require.NoError(t, err)
	assert.Equal(t, "4100\n", out)

	out, err = run(t, "config", "validate")
	require.NoError(t, err)
	assert.Equal(t, "config OK\n", out)

	_, err = run(t, "config", "set", "gateway.bind", "everywhere")
	require.NoError(t, err)
	out, err = run(t, "config", "validate")
	assert.Error(t, err)
	assert.Contains(t, out, "gateway.bind")
}

func TestConfigShowRedactsKey(t *testing.T) {
	t.Setenv("HELIX_HOME", t.TempDir())
	t.Setenv("OPENAI_API_KEY", "sk-secret-value")

	out, err := run(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "provider: openai")
	assert.NotContains(t, out, "sk-secret-value")
}

func TestSessionsListAndShow(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HELIX_HOME", home)

	db, err := store.Open(filepath.Join(home, "data", "helix.db"), logging.Nop())
	require.NoError(t, err)
	recs := store.NewRecords(db)
	info := domain.UserInfo{ID: "u1", Name: "Pat", Company: "Acme", Role: "Designer"}
	require.NoError(t, recs.UpsertSequenceRecords(context.Background(), "s1", info, []domain.OutreachMessage{
		{ID: "m1", Type: domain.MessageInitialOutreach, Subject: "Hello from Acme", Content: "We are hiring.", Timing: "immediately", Order: 1},
	}))
	require.NoError(t, db.Close())

	out, err := run(t, "sessions", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "s1")
	assert.Contains(t, out, "Acme")
	assert.Contains(t, out, "Designer")

	out, err = run(t, "sessions", "show", "s1")
	require.NoError(t, err)
	assert.Contains(t, out, "Hello from Acme")
	assert.Contains(t, out, "We are hiring.")

	_, err = run(t, "sessions", "show", "nope")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = run(t, "sessions", "delete", "s1")
	require.NoError(t, err)
	out, err = run(t, "sessions", "list")
	require.NoError(t, err)
	assert.Equal(t, "no sessions\n", out)
}

type echoService struct {
	mu    sync.Mutex
	turns []string
}

func (e *echoService) HandleUserTurn(_ context.Context, _ string, text string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.turns = append(e.turns, text)
	return "noted: " + text
}

func (e *echoService) Sequence(string) ([]domain.OutreachMessage, error) {
	return []domain.OutreachMessage{{ID: "m1", Type: domain.MessageFollowUp, Subject: "Checking in", Timing: "3 days after", Order: 1}}, nil
}

func TestRunChat(t *testing.T) {
	svc := &echoService{}
	in := strings.NewReader("Hiring a designer\n\n/show\nRemote is fine\n/quit\nnever read\n")
	var out bytes.Buffer

	require.NoError(t, runChat(context.Background(), svc, "s1", in, &out))

	assert.Equal(t, []string{"Hiring a designer", "Remote is fine"}, svc.turns)
	assert.Contains(t, out.String(), "noted: Hiring a designer")
	assert.Contains(t, out.String(), "Checking in")
}

func TestRunChatStopsAtEOF(t *testing.T) {
	svc := &echoService{}
	var out bytes.Buffer
	require.NoError(t, runChat(context.Background(), svc, "s1", strings.NewReader("hello"), &out))
	assert.Equal(t, []string{"hello"}, svc.turns)
}

func TestTermNotifierFiltersSession(t *testing.T) {
	var out bytes.Buffer
	n := &termNotifier{out: &out, sessionID: "s1"}

	n.ToolRunning("s1", "Generating a message sequence .....")
	n.ToolRunning("s2", "not mine")
	n.ChatMessage("s1", "ignored", domain.RoleAssistant)
	n.SequenceChanged("s1", nil)

	assert.Contains(t, out.String(), "Generating a message sequence")
	assert.NotContains(t, out.String(), "not mine")
	assert.NotContains(t, out.String(), "ignored")
	assert.Contains(t, out.String(), "(empty sequence)")
}
