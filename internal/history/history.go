// Package history keeps the bounded per-conversation context window.
// It lives in memory only: a restart clears every thread, which is the
// privacy property the bot promises.
package history

import (
	"strings"
	"sync"
)

type Role string

const (
	RoleUser      Role = "User"
	RoleAssistant Role = "Assistant"
)

type Turn struct {
	Role Role
	Text string
}

const DefaultMaxTurns = 20

type Store struct {
	mu       sync.Mutex
	maxTurns int
	threads  map[string][]Turn
}

func NewStore(maxTurns int) *Store {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &Store{
		maxTurns: maxTurns,
		threads:  make(map[string][]Turn),
	}
}

// Append records one turn and trims the thread to the cap, oldest first.
func (s *Store) Append(key string, role Role, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns := append(s.threads[key], Turn{Role: role, Text: text})
	if overflow := len(turns) - s.maxTurns; overflow > 0 {
		turns = append([]Turn(nil), turns[overflow:]...)
	}
	s.threads[key] = turns
}

// Render returns the thread as "Role: text" lines, oldest first, with a
// trailing newline, or "" when the thread is empty. The result is a
// plain string so callers never hold the store's lock across a
// generation call.
func (s *Store) Render(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns := s.threads[key]
	if len(turns) == 0 {
		return ""
	}
	var b strings.Builder
	for _, turn := range turns {
		b.WriteString(string(turn.Role))
		b.WriteString(": ")
		b.WriteString(turn.Text)
		b.WriteString("\n")
	}
	return b.String()
}

func (s *Store) Len(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.threads[key])
}
