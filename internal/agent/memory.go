package agent

import (
	"sync"
	"time"
)

// Turn is one answered question.
type Turn struct {
	Question string
	Answer   string
	At       time.Time
}

// Memory is an append-only conversation log that keeps the most recent
// turns. It belongs to a single Orchestrator.
type Memory struct {
	mu    sync.Mutex
	limit int
	turns []Turn
}

// NewMemory keeps at most limit turns. A limit of 0 keeps none.
func NewMemory(limit int) *Memory {
	if limit < 0 {
		limit = 0
	}
	return &Memory{limit: limit}
}

// Append records a turn, evicting the oldest beyond the limit.
func (m *Memory) Append(question, answer string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.limit == 0 {
		return
	}
	m.turns = append(m.turns, Turn{Question: question, Answer: answer, At: time.Now()})
	if over := len(m.turns) - m.limit; over > 0 {
		m.turns = append([]Turn(nil), m.turns[over:]...)
	}
}

// Turns returns a copy of the retained turns, oldest first.
func (m *Memory) Turns() []Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Turn(nil), m.turns...)
}

// Len returns the number of retained turns.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.turns)
}

// Clear drops every turn.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = nil
}
