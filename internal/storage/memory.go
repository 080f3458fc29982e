// Package storage provides the ephemeral message store.
package storage

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/hammamikhairi/burnchat/internal/domain"
	"github.com/hammamikhairi/burnchat/internal/logger"
	"github.com/hammamikhairi/burnchat/internal/telemetry"
)

// Compile-time interface check.
var _ domain.MessageStore = (*MemoryStore)(nil)

// Option configures the store.
type Option func(*MemoryStore)

// WithClock sets the time source used to stamp new messages.
func WithClock(c clock.Clock) Option {
	return func(s *MemoryStore) {
		s.clock = c
	}
}

// WithIDFunc overrides message id generation.
func WithIDFunc(fn func() string) Option {
	return func(s *MemoryStore) {
		s.newID = fn
	}
}

// MemoryStore keeps messages in insertion order until they expire.
// Nothing is written to disk. Safe for concurrent access.
type MemoryStore struct {
	mu       sync.RWMutex
	messages []domain.Message
	clock    clock.Clock
	newID    func() string
	log      *logger.Logger

	inserted metric.Int64Counter
	burned   metric.Int64Counter
}

// NewMemoryStore creates an empty message store.
func NewMemoryStore(log *logger.Logger, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		clock:    clock.New(),
		newID:    uuid.NewString,
		log:      log,
		inserted: telemetry.Counter("burnchat.messages.inserted", "Messages added to the store"),
		burned:   telemetry.Counter("burnchat.messages.burned", "Messages removed after expiry"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Insert stamps content with the current time and appends it. The
// message expires exactly domain.MessageLifetime after creation.
func (s *MemoryStore) Insert(content domain.Content, sender domain.Sender) (domain.Message, error) {
	if content == nil {
		return domain.Message{}, domain.ErrEmptyContent
	}
	if t, ok := content.(domain.Text); ok && strings.TrimSpace(t.Body) == "" {
		return domain.Message{}, domain.ErrEmptyContent
	}

	now := s.clock.Now()
	msg := domain.Message{
		ID:        s.newID(),
		Content:   content,
		Sender:    sender,
		CreatedAt: now,
		ExpiresAt: now.Add(domain.MessageLifetime),
	}

	s.mu.Lock()
	s.messages = append(s.messages, msg)
	count := len(s.messages)
	s.mu.Unlock()

	s.inserted.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", msg.Kind().String())))
	s.log.Debug("inserted %s message %s from %s (%d held)", msg.Kind(), msg.ID, sender, count)
	return msg, nil
}

// Sweep removes every message whose expiry is at or before now and
// returns the removed messages in insertion order. Repeated calls with
// a non-decreasing now are harmless.
func (s *MemoryStore) Sweep(now time.Time) []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []domain.Message
	kept := s.messages[:0]
	for _, m := range s.messages {
		if m.Expired(now) {
			removed = append(removed, m)
			continue
		}
		kept = append(kept, m)
	}
	// Drop references held past the new length.
	for i := len(kept); i < len(s.messages); i++ {
		s.messages[i] = domain.Message{}
	}
	s.messages = kept

	if len(removed) > 0 {
		s.burned.Add(context.Background(), int64(len(removed)))
		s.log.Debug("burned %d message(s), %d left", len(removed), len(kept))
	}
	return removed
}

// List returns a copy of the live messages in insertion order.
func (s *MemoryStore) List() []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Get retrieves a live message by id.
func (s *MemoryStore) Get(id string) (domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.messages {
		if m.ID == id {
			return m, nil
		}
	}
	return domain.Message{}, domain.ErrNotFound
}

// Len returns the number of live messages.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// TimeRemaining is the whole-second countdown shown next to a message:
// max(0, ceil((expiresAt - now) / 1s)).
func TimeRemaining(m domain.Message, now time.Time) int {
	left := m.ExpiresAt.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Seconds()))
}
