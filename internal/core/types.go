package core

import "time"

// Resolution tracks how the user answered a posted word.
// An item is created as ResolutionPending and transitions exactly once
// on the first substantive reply in its thread.
type Resolution string

const (
	ResolutionPending  Resolution = "pending"
	ResolutionKnown    Resolution = "known"
	ResolutionLearning Resolution = "learning"
)

// Item is one vocabulary word anchored to one discussion thread.
type Item struct {
	ID         int64
	Word       string
	Resolution Resolution
	ThreadRef  string
	CreatedAt  time.Time
}

// WordCard is the structured output of the word generator.
type WordCard struct {
	Word     string   `json:"word"`
	Meanings []string `json:"meanings"`
	Examples []string `json:"examples"`
	Theme    string   `json:"-"`
}

// SenderKind identifies who wrote a thread message.
type SenderKind string

const (
	SenderUser SenderKind = "user"
	SenderBot  SenderKind = "bot"
)

// ThreadMessage is one entry of a thread's conversation history.
type ThreadMessage struct {
	Sender SenderKind
	Text   string
	SentAt time.Time
}

// InboundEvent is a normalized user event entering the system.
// Any of EventID, ClientMessageID or Timestamp may be missing; the
// dispatcher derives the idempotency key from the first available one.
type InboundEvent struct {
	EventID         string
	ThreadRef       string
	UserID          string
	Text            string
	ClientMessageID string
	Timestamp       time.Time
	Type            string
}
