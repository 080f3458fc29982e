package domain

import (
	"context"
	"time"
)

// Resolver turns a composition buffer into candidates. Implementations
// must be pure: identical input yields identical output.
type Resolver interface {
	Resolve(buffer string) CandidateSet
}

// Recognizer identifies a handwritten character from a PNG bitmap.
// It returns at most eight candidates, best first, and never fails:
// any transport or parse problem yields an empty result.
type Recognizer interface {
	Recognize(ctx context.Context, png []byte) []string
}

// MessageStore holds time-bounded messages in insertion order.
type MessageStore interface {
	Insert(content Content, sender Sender) (Message, error)
	Sweep(now time.Time) []Message
	List() []Message
}

// Sink receives render state produced by the controller loop. Front-ends
// implement it; the controller knows nothing about presentation.
type Sink interface {
	Render(snap Snapshot)
	Messages(msgs []Message)
}
