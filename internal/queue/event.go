// Package queue defines message payloads exchanged over the message broker
// and the background consumer that turns them into audit-log lines. The
// broker carries out-of-band domain events only; real-time push to
// connected clients goes through the in-process SSE registry.
package queue

// EntryEvent describes one created entry inside an EntriesCreatedEvent.
type EntryEvent struct {
	EntryID    uint64   `json:"entry_id"`
	Value      string   `json:"value"`
	Label      string   `json:"label"`
	Date       string   `json:"date"`
	Categories []uint64 `json:"categories"`
}

// EntriesCreatedEvent is published when financial entries are created,
// whether through the REST surface or by the chat assistant's
// registration tool. It carries enough for downstream consumers to log,
// notify, or feed analytics without querying the primary database.
type EntriesCreatedEvent struct {
	UserID    uint64       `json:"user_id"`
	Source    string       `json:"source"` // "api" or "assistant"
	Entries   []EntryEvent `json:"entries"`
	CreatedAt string       `json:"created_at"`
}
