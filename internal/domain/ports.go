package domain

import "context"

// Notifier is the push channel the core reports progress through.
// Implementations must not block the caller on delivery.
type Notifier interface {
	SequenceChanged(sessionID string, sequence []OutreachMessage)
	ChatMessage(sessionID, text, role string)
	ToolRunning(sessionID, label string)
}

// Persistence is the durable record store. Both operations replace by id,
// so repeating a call with the same input leaves the same records behind.
type Persistence interface {
	// UpsertSessionRecord writes the session row with its user info.
	UpsertSessionRecord(ctx context.Context, sessionID string, info UserInfo) error

	// UpsertSequenceRecords writes the session row and its full message set
	// in one transaction. Messages no longer in the set are removed.
	UpsertSequenceRecords(ctx context.Context, sessionID string, info UserInfo, messages []OutreachMessage) error
}
