package memory

import (
	"strings"
	"sync"
	"time"
)

// Turn is one conversational exchange held in working memory.
type Turn struct {
	// Role is "user" or "assistant".
	Role string `json:"role"`

	// Content is the turn text.
	Content string `json:"content"`

	// EmotionIntensity is the observed emotion strength (0-10).
	EmotionIntensity float64 `json:"emotion_intensity,omitempty"`

	// Important exempts the turn from truncation. Set explicitly by the
	// caller or derived from keywords and emotion intensity on append.
	Important bool `json:"important,omitempty"`

	// Timestamp is when the turn was appended.
	Timestamp time.Time `json:"timestamp"`
}

// WorkingWindow is a bounded, ordered sequence of recent conversational turns
// for one session, capped by a token budget and a turn-count budget.
//
// Turns flagged important survive truncation: when the window overflows, the
// oldest non-important turns are dropped first. Important turns are evicted
// only when they alone exceed the budgets.
//
// A window is owned by a single session's turn processing but is safe for
// concurrent use.
type WorkingWindow struct {
	mu          sync.Mutex
	turns       []Turn
	maxTurns    int
	tokenBudget int

	// highIntensity marks turns important when their emotion intensity
	// reaches this value.
	highIntensity float64
}

// importantMarkers are phrases that flag a turn as important on append.
var importantMarkers = []string{
	"remember this", "don't forget", "important", "promise",
}

// NewWorkingWindow creates a window with the given budgets. Non-positive
// budgets fall back to 20 turns and 2000 tokens.
func NewWorkingWindow(maxTurns, tokenBudget int) *WorkingWindow {
	if maxTurns <= 0 {
		maxTurns = 20
	}
	if tokenBudget <= 0 {
		tokenBudget = 2000
	}
	return &WorkingWindow{
		maxTurns:      maxTurns,
		tokenBudget:   tokenBudget,
		highIntensity: 7.5,
	}
}

// Append adds a turn to the window, marking it important when it matches a
// keyword marker or carries high emotion intensity, then truncates to the
// budgets.
func (w *WorkingWindow) Append(turn Turn) {
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}
	if !turn.Important {
		turn.Important = w.isImportant(turn)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.turns = append(w.turns, turn)
	w.truncate()
}

// Turns returns a copy of the current window, oldest first.
func (w *WorkingWindow) Turns() []Turn {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]Turn, len(w.turns))
	copy(out, w.turns)
	return out
}

// Recent returns up to limit of the most recent turns, oldest first.
func (w *WorkingWindow) Recent(limit int) []Turn {
	w.mu.Lock()
	defer w.mu.Unlock()

	if limit <= 0 || limit > len(w.turns) {
		limit = len(w.turns)
	}
	out := make([]Turn, limit)
	copy(out, w.turns[len(w.turns)-limit:])
	return out
}

// Len returns the number of turns currently held.
func (w *WorkingWindow) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.turns)
}

// TokenCount returns the approximate token usage of the window.
func (w *WorkingWindow) TokenCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	total := 0
	for _, t := range w.turns {
		total += estimateTokens(t.Content)
	}
	return total
}

// Clear drops all turns.
func (w *WorkingWindow) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.turns = nil
}

// truncate drops oldest non-important turns until both budgets hold. Caller
// holds the lock.
func (w *WorkingWindow) truncate() {
	for len(w.turns) > w.maxTurns || w.tokens() > w.tokenBudget {
		idx := -1
		for i, t := range w.turns {
			if !t.Important {
				idx = i
				break
			}
		}
		if idx < 0 {
			// Only important turns left; evict the oldest.
			idx = 0
		}
		w.turns = append(w.turns[:idx], w.turns[idx+1:]...)
		if len(w.turns) == 0 {
			return
		}
	}
}

func (w *WorkingWindow) tokens() int {
	total := 0
	for _, t := range w.turns {
		total += estimateTokens(t.Content)
	}
	return total
}

func (w *WorkingWindow) isImportant(turn Turn) bool {
	if turn.EmotionIntensity >= w.highIntensity {
		return true
	}
	lower := strings.ToLower(turn.Content)
	for _, marker := range importantMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// estimateTokens approximates token usage as one token per four characters,
// with a floor of one token per word.
func estimateTokens(text string) int {
	byChars := len(text) / 4
	byWords := len(strings.Fields(text))
	if byWords > byChars {
		return byWords
	}
	return byChars
}
