package agent

import (
	"context"
	"strings"
)

// EmotionState is the detected emotional reading of a user message.
type EmotionState struct {
	// Tag labels the dominant emotion ("sadness", "anxiety", "joy",
	// "anger", "neutral").
	Tag string `json:"tag"`

	// Intensity is the emotion strength on a 0-10 scale.
	Intensity float64 `json:"intensity"`
}

// SafetyResult is the outcome of safety screening.
type SafetyResult struct {
	// Flagged marks content that needs a careful, supportive response.
	Flagged bool `json:"flagged"`

	// Reason says why the content was flagged.
	Reason string `json:"reason,omitempty"`
}

// EmotionAnalyzer detects the emotional state of a message. Implementations
// may call an external model; the default is keyword-based and local.
type EmotionAnalyzer interface {
	Analyze(ctx context.Context, text string) (*EmotionState, error)
}

// SafetyScreener screens a message for content requiring special care.
type SafetyScreener interface {
	Screen(ctx context.Context, text string) (*SafetyResult, error)
}

// KeywordEmotionAnalyzer is the default EmotionAnalyzer: keyword lexicons
// per emotion, with intensity raised by emphasis markers.
type KeywordEmotionAnalyzer struct{}

var emotionLexicon = map[string][]string{
	"sadness": {"sad", "depressed", "miserable", "crying", "lonely", "miss", "grief", "heartbroken"},
	"anxiety": {"worried", "anxious", "nervous", "scared", "afraid", "stress", "panic", "overwhelmed"},
	"anger":   {"angry", "furious", "annoyed", "hate", "frustrated", "unfair", "mad"},
	"joy":     {"happy", "excited", "great", "wonderful", "amazing", "love", "thrilled", "glad"},
}

// Analyze scores each lexicon against the text and returns the strongest
// emotion. Base intensity grows with keyword hits; exclamation marks and
// intensifiers raise it further.
func (a *KeywordEmotionAnalyzer) Analyze(ctx context.Context, text string) (*EmotionState, error) {
	lower := strings.ToLower(text)

	bestTag := "neutral"
	bestHits := 0
	for tag, words := range emotionLexicon {
		hits := 0
		for _, w := range words {
			if strings.Contains(lower, w) {
				hits++
			}
		}
		if hits > bestHits || (hits == bestHits && hits > 0 && tag < bestTag) {
			bestTag = tag
			bestHits = hits
		}
	}

	if bestHits == 0 {
		return &EmotionState{Tag: "neutral", Intensity: 2.0}, nil
	}

	intensity := 4.0 + 1.5*float64(bestHits)
	intensity += float64(strings.Count(text, "!"))
	for _, intensifier := range []string{"so ", "very ", "really ", "extremely ", "can't stop"} {
		if strings.Contains(lower, intensifier) {
			intensity += 1.0
		}
	}
	if intensity > 10 {
		intensity = 10
	}

	return &EmotionState{Tag: bestTag, Intensity: intensity}, nil
}

// KeywordSafetyScreener is the default SafetyScreener: flags content
// matching crisis phrases so the response path can prioritize support.
type KeywordSafetyScreener struct{}

var crisisMarkers = []string{
	"hurt myself", "end it all", "no reason to live", "kill myself", "self harm",
}

// Screen flags crisis phrasing.
func (s *KeywordSafetyScreener) Screen(ctx context.Context, text string) (*SafetyResult, error) {
	lower := strings.ToLower(text)
	for _, marker := range crisisMarkers {
		if strings.Contains(lower, marker) {
			return &SafetyResult{Flagged: true, Reason: "crisis language detected"}, nil
		}
	}
	return &SafetyResult{}, nil
}
