package gateway

import (
	"testing"

	"github.com/soyeahso/helix/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLog() *logging.Logger {
	return logging.New(nil, "silent")
}

func TestClientRegistryAddGetRemove(t *testing.T) {
	reg := NewClientRegistry(testLog())
	assert.Equal(t, 0, reg.Count())

	reg.Add(&Client{ConnID: "conn-1", Info: ClientInfo{ID: "web"}})
	reg.Add(&Client{ConnID: "conn-2"})
	assert.Equal(t, 2, reg.Count())

	got, ok := reg.Get("conn-1")
	require.True(t, ok)
	assert.Equal(t, "web", got.Info.ID)

	reg.Remove("conn-1")
	reg.Remove("nonexistent")
	assert.Equal(t, 1, reg.Count())
	_, ok = reg.Get("conn-1")
	assert.False(t, ok)
}

func TestClientRegistryRooms(t *testing.T) {
	reg := NewClientRegistry(testLog())
	reg.Add(&Client{ConnID: "a"})
	reg.Add(&Client{ConnID: "b"})

	reg.Join("s1", "b")
	reg.Join("s1", "a")
	reg.Join("s2", "a")
	assert.Equal(t, []string{"a", "b"}, reg.Members("s1"))

	reg.Leave("s1", "b")
	assert.Equal(t, []string{"a"}, reg.Members("s1"))

	// Disconnecting leaves every room.
	reg.Remove("a")
	assert.Empty(t, reg.Members("s1"))
	assert.Empty(t, reg.Members("s2"))
	assert.Empty(t, reg.rooms)
}

func TestClientRegistryJoinUnknownConnIgnored(t *testing.T) {
	reg := NewClientRegistry(testLog())
	reg.Join("s1", "ghost")
	assert.Empty(t, reg.Members("s1"))

	// Nothing to deliver to; must not panic or encode.
	reg.BroadcastRoom("s1", EventToolCall, ToolPayload{SessionID: "s1"}, 1)
}

func TestClientRegistryCloseAll(t *testing.T) {
	reg := NewClientRegistry(testLog())

	// Already-closed clients skip the socket close.
	reg.Add(&Client{ConnID: "conn-1", closed: true})
	reg.Add(&Client{ConnID: "conn-2", closed: true})
	reg.Join("s1", "conn-1")

	reg.CloseAll()
	assert.Equal(t, 0, reg.Count())
	assert.Empty(t, reg.Members("s1"))
}

func TestClientSendAfterClose(t *testing.T) {
	c := &Client{ConnID: "conn-1", closed: true}
	assert.ErrorIs(t, c.SendEvent(EventChatMessage, nil, 1), ErrClientClosed)
}
