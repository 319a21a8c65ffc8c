package session

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TTTPOB/chatgpt-tg-bot/internal/domain"
)

// byteCost counts one token per byte, making costs easy to reason about.
type byteCost struct{}

func (byteCost) Count(text string) int { return len(text) }

func userTurn(content string) domain.Turn {
	return domain.Turn{Role: domain.RoleUser, Content: content}
}

func TestAppendWithinBudget(t *testing.T) {
	w := NewContextWindow(byteCost{}, 100)

	evicted := w.Append(userTurn("hello"))
	assert.Equal(t, 0, evicted)
	assert.Equal(t, 1, w.Len())
	assert.Equal(t, 5, w.TotalCost())
}

func TestAppendEvictsOldestUntilBudget(t *testing.T) {
	w := NewContextWindow(byteCost{}, 10)

	w.Append(userTurn("aaaa"))
	w.Append(userTurn("bbbb"))
	evicted := w.Append(userTurn("cccc"))

	require.Equal(t, 1, evicted)
	assert.Equal(t, 2, w.Len())
	assert.LessOrEqual(t, w.TotalCost(), w.Budget())
	// Oldest goes first.
	turns := w.Turns()
	assert.Equal(t, "bbbb", turns[0].Content)
	assert.Equal(t, "cccc", turns[1].Content)
}

func TestEvictionIsALoop(t *testing.T) {
	// One eviction is not enough when several early turns are large.
	w := NewContextWindow(byteCost{}, 10)
	w.turns = []domain.Turn{userTurn("aaaaa"), userTurn("bbbbb"), userTurn("cc")}

	evicted := w.Append(userTurn("ddd"))

	assert.Equal(t, 2, evicted)
	assert.Equal(t, 2, w.Len())
	assert.LessOrEqual(t, w.TotalCost(), w.Budget())
}

func TestSingleOversizedTurnIsNeverEvicted(t *testing.T) {
	w := NewContextWindow(byteCost{}, 5)

	evicted := w.Append(userTurn(strings.Repeat("x", 50)))

	assert.Equal(t, 0, evicted)
	require.Equal(t, 1, w.Len())
	assert.Greater(t, w.TotalCost(), w.Budget())
}

func TestBudgetInvariantHoldsAfterEveryAppend(t *testing.T) {
	w := NewContextWindow(byteCost{}, 20)
	contents := []string{"a", "bbbbbbbb", "cc", strings.Repeat("d", 30), "e", "ffffffffff", "g"}

	for _, content := range contents {
		w.Append(userTurn(content))
		if w.Len() > 1 {
			assert.LessOrEqual(t, w.TotalCost(), w.Budget(), "invariant broken after appending %q", content)
		}
	}
}

func TestRemoveLast(t *testing.T) {
	w := NewContextWindow(byteCost{}, 100)
	w.Append(userTurn("first"))
	w.Append(userTurn("second"))

	require.True(t, w.RemoveLast())
	require.Equal(t, 1, w.Len())
	assert.Equal(t, "first", w.Turns()[0].Content)
}

func TestRemoveLastOnEmptyWindowIsNoop(t *testing.T) {
	w := NewContextWindow(byteCost{}, 100)
	assert.False(t, w.RemoveLast())
	assert.Equal(t, 0, w.Len())
}

func TestClear(t *testing.T) {
	w := NewContextWindow(byteCost{}, 100)
	w.Append(userTurn("one"))
	w.Append(userTurn("two"))

	w.Clear()

	assert.Equal(t, 0, w.Len())
	assert.Equal(t, 0, w.TotalCost())
}

func TestLoweredBudgetEvictsOnNextAppend(t *testing.T) {
	w := NewContextWindow(byteCost{}, 100)
	w.Append(userTurn(strings.Repeat("a", 40)))
	w.Append(userTurn(strings.Repeat("b", 40)))
	require.Equal(t, 80, w.TotalCost())

	w.SetBudget(50)
	// SetBudget itself does not evict; the next append does.
	assert.Equal(t, 2, w.Len())

	w.Append(userTurn("cc"))
	assert.LessOrEqual(t, w.TotalCost(), 50)
	assert.Equal(t, 2, w.Len())
}

func TestTurnsReturnsACopy(t *testing.T) {
	w := NewContextWindow(byteCost{}, 100)
	w.Append(userTurn("original"))

	turns := w.Turns()
	turns[0].Content = "mutated"

	assert.Equal(t, "original", w.Turns()[0].Content)
}

func TestNonPositiveBudgetFallsBackToDefault(t *testing.T) {
	w := NewContextWindow(byteCost{}, 0)
	assert.Equal(t, DefaultBudget, w.Budget())
}
