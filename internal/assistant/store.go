package assistant

import (
	"github.com/inkwell/storybot/internal/model"
)

// Store is an ordered, append-only message sequence. It is not safe for
// concurrent use; a Controller owns it.
type Store struct {
	messages []model.Message
	limit    int
}

// NewStore creates a store seeded with one message. A positive limit
// retains only the newest limit messages; zero keeps everything.
func NewStore(seed model.Message, limit int) *Store {
	s := &Store{
		messages: make([]model.Message, 0, 16),
		limit:    limit,
	}
	s.messages = append(s.messages, seed)
	return s
}

// Append adds a message after all existing ones.
func (s *Store) Append(msg model.Message) {
	s.messages = append(s.messages, msg)
	if s.limit > 0 && len(s.messages) > s.limit {
		kept := make([]model.Message, s.limit, cap(s.messages))
		copy(kept, s.messages[len(s.messages)-s.limit:])
		s.messages = kept
	}
}

// All returns a copy of the sequence in order.
func (s *Store) All() []model.Message {
	copied := make([]model.Message, len(s.messages))
	copy(copied, s.messages)
	return copied
}

// Len returns the number of messages held.
func (s *Store) Len() int {
	return len(s.messages)
}

// Last returns the newest message.
func (s *Store) Last() model.Message {
	return s.messages[len(s.messages)-1]
}
