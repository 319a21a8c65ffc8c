package session

import (
	"github.com/TTTPOB/chatgpt-tg-bot/internal/domain"
	"github.com/TTTPOB/chatgpt-tg-bot/internal/tokenizer"
)

// DefaultBudget is the default context token budget per session.
const DefaultBudget = 3500

// ContextWindow holds one session's ordered transcript, oldest first, bounded
// by a token budget. It is owned exclusively by one Session, which serializes
// access; the window itself is not safe for concurrent use.
type ContextWindow struct {
	turns   []domain.Turn
	budget  int
	counter tokenizer.Counter
}

// NewContextWindow creates an empty window. A non-positive budget falls back
// to DefaultBudget.
func NewContextWindow(counter tokenizer.Counter, budget int) *ContextWindow {
	if budget <= 0 {
		budget = DefaultBudget
	}
	return &ContextWindow{budget: budget, counter: counter}
}

// Append adds turn at the tail, then evicts oldest turns one at a time until
// the total cost fits the budget. A single turn is never evicted even when it
// alone exceeds the budget, otherwise an oversized first message could never
// be sent. Returns the number of evicted turns.
func (w *ContextWindow) Append(turn domain.Turn) int {
	w.turns = append(w.turns, turn)
	evicted := 0
	for w.TotalCost() > w.budget && len(w.turns) > 1 {
		w.turns = w.turns[1:]
		evicted++
	}
	return evicted
}

// RemoveLast removes the most recently appended turn. It is the rollback for
// a user turn whose completion call failed. Returns false on an empty window.
func (w *ContextWindow) RemoveLast() bool {
	if len(w.turns) == 0 {
		return false
	}
	w.turns = w.turns[:len(w.turns)-1]
	return true
}

// Clear empties the transcript.
func (w *ContextWindow) Clear() {
	w.turns = nil
}

// SetBudget replaces the budget. Callers validate positivity; eviction against
// the new budget happens on the next Append.
func (w *ContextWindow) SetBudget(n int) {
	w.budget = n
}

// Budget returns the current token budget.
func (w *ContextWindow) Budget() int {
	return w.budget
}

// Len returns the number of turns held.
func (w *ContextWindow) Len() int {
	return len(w.turns)
}

// TotalCost sums the token cost over all held turns.
func (w *ContextWindow) TotalCost() int {
	total := 0
	for _, t := range w.turns {
		total += w.counter.Count(t.Content)
	}
	return total
}

// Turns returns a copy of the transcript, oldest first.
func (w *ContextWindow) Turns() []domain.Turn {
	out := make([]domain.Turn, len(w.turns))
	copy(out, w.turns)
	return out
}
