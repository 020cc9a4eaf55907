package routing

import "strings"

// SessionKey builds the session id for a chat user on a channel, e.g.
// "irc:pat". Nicks are case-insensitive so the key is lowercased.
func SessionKey(channelID, from string) string {
	return channelID + ":" + strings.ToLower(from)
}

// ParseSessionKey splits a key built by SessionKey. Gateway sessions use
// bare uuids and never parse.
func ParseSessionKey(key string) (channelID, from string, ok bool) {
	channelID, from, ok = strings.Cut(key, ":")
	if !ok || channelID == "" || from == "" {
		return "", "", false
	}
	return channelID, from, true
}
