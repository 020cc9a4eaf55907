package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigPath(t *testing.T) {
	tests := []struct {
		input   string
		want    []string
		wantErr string
	}{
		{"gateway", []string{"gateway"}, ""},
		{"llm.temperature", []string{"llm", "temperature"}, ""},
		{"channels.irc.nick", []string{"channels", "irc", "nick"}, ""},
		{"", nil, "empty config path"},
		{"gateway..port", nil, "invalid segment"},
		{".gateway", nil, "invalid segment"},
		{"gateway.", nil, "invalid segment"},
		{"gateway.my port", nil, "invalid segment"},
		{"plugins.x", nil, "unknown config section"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseConfigPath(tt.input)
			if tt.wantErr != "" {
				var ce *ConfigError
				require.ErrorAs(t, err, &ce)
				assert.Contains(t, ce.Message, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func rawConfig() map[string]any {
	return map[string]any{
		"gateway": map[string]any{
			"port": 4000,
			"bind": "loopback",
			"auth": map[string]any{"mode": "token"},
		},
		"store": "sqlite",
	}
}

func TestGetValueAtPath(t *testing.T) {
	root := rawConfig()
	tests := []struct {
		path []string
		want any
		ok   bool
	}{
		{[]string{"gateway", "port"}, 4000, true},
		{[]string{"gateway", "auth", "mode"}, "token", true},
		{[]string{"store"}, "sqlite", true},
		{[]string{"llm"}, nil, false},
		{[]string{"gateway", "tls"}, nil, false},
		{[]string{"store", "driver"}, nil, false},
	}
	for _, tt := range tests {
		got, ok := GetValueAtPath(root, tt.path)
		assert.Equal(t, tt.ok, ok, "%v", tt.path)
		assert.Equal(t, tt.want, got, "%v", tt.path)
	}
}

func TestSetValueAtPath(t *testing.T) {
	root := rawConfig()

	SetValueAtPath(root, []string{"gateway", "port"}, 9999)
	SetValueAtPath(root, []string{"channels", "irc", "nick"}, "helix")
	SetValueAtPath(root, []string{"store", "driver"}, "memory")

	v, _ := GetValueAtPath(root, []string{"gateway", "port"})
	assert.Equal(t, 9999, v)
	v, _ = GetValueAtPath(root, []string{"channels", "irc", "nick"})
	assert.Equal(t, "helix", v)
	assert.Equal(t, map[string]any{"driver": "memory"}, root["store"], "scalar replaced by a map")
}

func TestUnsetValueAtPath(t *testing.T) {
	root := rawConfig()

	assert.True(t, UnsetValueAtPath(root, []string{"gateway", "port"}))
	_, found := GetValueAtPath(root, []string{"gateway", "port"})
	assert.False(t, found)
	v, _ := GetValueAtPath(root, []string{"gateway", "bind"})
	assert.Equal(t, "loopback", v, "siblings kept")

	assert.False(t, UnsetValueAtPath(root, []string{"gateway", "port"}))
	assert.False(t, UnsetValueAtPath(root, []string{"llm", "model"}))
	assert.False(t, UnsetValueAtPath(root, []string{"store", "driver"}))
}
