package memory_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sentio-ai/sentio-go/pkg/memory"
)

func TestWorkingWindowTurnBudget(t *testing.T) {
	window := memory.NewWorkingWindow(3, 10_000)

	for i := 0; i < 5; i++ {
		window.Append(memory.Turn{Role: "user", Content: fmt.Sprintf("message %d", i)})
	}

	turns := window.Turns()
	assert.Len(t, turns, 3)
	assert.Equal(t, "message 2", turns[0].Content, "oldest turns are dropped first")
	assert.Equal(t, "message 4", turns[2].Content)
}

func TestWorkingWindowImportantTurnsSurvive(t *testing.T) {
	window := memory.NewWorkingWindow(3, 10_000)

	window.Append(memory.Turn{Role: "user", Content: "please remember this: my anniversary is May 2nd"})
	for i := 0; i < 5; i++ {
		window.Append(memory.Turn{Role: "user", Content: fmt.Sprintf("chit chat %d", i)})
	}

	turns := window.Turns()
	assert.Len(t, turns, 3)
	assert.Equal(t, "please remember this: my anniversary is May 2nd", turns[0].Content,
		"important turns are exempt from truncation")
}

func TestWorkingWindowHighIntensityMarksImportant(t *testing.T) {
	window := memory.NewWorkingWindow(2, 10_000)

	window.Append(memory.Turn{Role: "user", Content: "something upsetting happened", EmotionIntensity: 9})
	window.Append(memory.Turn{Role: "user", Content: "filler one"})
	window.Append(memory.Turn{Role: "user", Content: "filler two"})

	turns := window.Turns()
	assert.Len(t, turns, 2)
	assert.Equal(t, "something upsetting happened", turns[0].Content)
}

func TestWorkingWindowTokenBudget(t *testing.T) {
	window := memory.NewWorkingWindow(100, 20)

	window.Append(memory.Turn{Role: "user", Content: "a reasonably long first message that costs tokens"})
	window.Append(memory.Turn{Role: "user", Content: "a reasonably long second message that costs tokens"})

	assert.LessOrEqual(t, window.TokenCount(), 20, "window must stay within the token budget")
	assert.Equal(t, 1, window.Len())
}

func TestWorkingWindowRecent(t *testing.T) {
	window := memory.NewWorkingWindow(10, 10_000)
	for i := 0; i < 5; i++ {
		window.Append(memory.Turn{Role: "user", Content: fmt.Sprintf("m%d", i)})
	}

	recent := window.Recent(2)
	assert.Len(t, recent, 2)
	assert.Equal(t, "m3", recent[0].Content)
	assert.Equal(t, "m4", recent[1].Content)
}
