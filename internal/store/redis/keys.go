package redis

import "fmt"

const (
	// KeyPrefixSession is the prefix for relay session records
	KeyPrefixSession = "teslahub:session:"
	// KeyPrefixEvents is the prefix for per-session pub/sub channels
	KeyPrefixEvents = "teslahub:session-events:"
	// KeySessionsCreated is the sorted set of session IDs scored by createdAt
	KeySessionsCreated = "teslahub:sessions:created"
)

// SessionKey returns the Redis key for a session by ID
func SessionKey(id string) string {
	return KeyPrefixSession + id
}

// EventsChannel returns the pub/sub channel for a session
func EventsChannel(id string) string {
	return KeyPrefixEvents + id
}

// CreatedKey returns the key of the creation-time index
func CreatedKey() string {
	return KeySessionsCreated
}

// ExtractSessionID extracts the session ID from a Redis key
func ExtractSessionID(key string) (string, error) {
	if len(key) <= len(KeyPrefixSession) {
		return "", fmt.Errorf("invalid session key: %s", key)
	}
	return key[len(KeyPrefixSession):], nil
}
