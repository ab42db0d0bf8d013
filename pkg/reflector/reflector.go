// Package reflector evaluates completed interactions and decides whether a
// proactive follow-up is warranted. Evaluation produces advisory improvement
// notes; follow-up decisions are handed to an external scheduler for
// delivery.
package reflector

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sentio-ai/sentio-go/pkg/memory"
	"github.com/sentio-ai/sentio-go/pkg/planner"
)

// Outcome classifies an interaction's result.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial"
	OutcomeFailure Outcome = "failure"
)

// Interaction is the completed turn handed to Evaluate.
type Interaction struct {
	// OwnerID identifies the user.
	OwnerID string

	// InteractionID links the turn's envelopes.
	InteractionID string

	// Goal is the plan's classified goal.
	Goal planner.Goal

	// Strategy is the strategy the plan selected.
	Strategy planner.Strategy

	// GoalAddressed reports whether the response covered the plan's goal.
	GoalAddressed bool

	// Latency is the end-to-end turn duration.
	Latency time.Duration

	// PreEmotionIntensity is the emotion strength before the response (0-10).
	PreEmotionIntensity float64

	// PostEmotionIntensity is the emotion strength after the response, if
	// measured. Negative means unmeasured.
	PostEmotionIntensity float64

	// ToolFailures counts failed tool calls during the turn.
	ToolFailures int

	// Degraded reports whether the turn completed in degraded mode.
	Degraded bool
}

// EvaluationResult is Evaluate's output.
type EvaluationResult struct {
	// Score is the composite quality score in [0,1].
	Score float64 `json:"score"`

	// Outcome classifies the score (success, partial, failure).
	Outcome Outcome `json:"outcome"`

	// EmotionDelta is post minus pre intensity, 0 when unmeasured.
	EmotionDelta float64 `json:"emotion_delta"`

	// Notes are advisory natural-language improvement suggestions.
	Notes []string `json:"notes,omitempty"`
}

// FollowupTask is a recommendation to proactively contact the user.
type FollowupTask struct {
	// OwnerID identifies the user.
	OwnerID string `json:"owner_id"`

	// Reason records which trigger fired: "stale_concern",
	// "emotion_change", or "inactivity".
	Reason string `json:"reason"`

	// Message is the follow-up message template.
	Message string `json:"message"`

	// At is the recommended delivery time.
	At time.Time `json:"at"`

	// MemoryID references the triggering memory record, if any.
	MemoryID int64 `json:"memory_id,omitempty"`
}

// FollowupContext carries the per-call signals for PlanFollowup.
type FollowupContext struct {
	// CurrentEmotionIntensity is the latest observed intensity (0-10).
	CurrentEmotionIntensity float64

	// CurrentEmotionTag labels the latest observed emotion.
	CurrentEmotionTag string
}

// Config configures a Reflector.
type Config struct {
	// Hub supplies memory records and session statistics (required).
	Hub *memory.Hub

	// ImportanceThreshold marks memories eligible for the stale-concern
	// trigger (default 0.7).
	ImportanceThreshold float64

	// StaleDays is the age in days after which an important memory with no
	// follow-up triggers one (default 7).
	StaleDays int

	// InactivityDays is the silence period that triggers a check-in
	// (default 7).
	InactivityDays int

	// Cooldown suppresses repeat follow-ups per user (default 24h).
	Cooldown time.Duration

	// FollowupDelay is how far ahead recommended deliveries are scheduled
	// (default 1h).
	FollowupDelay time.Duration

	// Logger receives reflection events. A zero Logger is usable and silent.
	Logger zerolog.Logger
}

// Reflector evaluates interactions and plans follow-ups. Safe for concurrent
// use.
type Reflector struct {
	hub                 *memory.Hub
	importanceThreshold float64
	staleDays           int
	inactivityDays      int
	cooldown            time.Duration
	followupDelay       time.Duration
	logger              zerolog.Logger

	mu           sync.Mutex
	lastFollowup map[string]time.Time
}

// New creates a Reflector.
func New(cfg *Config) (*Reflector, error) {
	if cfg == nil || cfg.Hub == nil {
		return nil, fmt.Errorf("reflector requires a memory hub")
	}

	r := &Reflector{
		hub:                 cfg.Hub,
		importanceThreshold: cfg.ImportanceThreshold,
		staleDays:           cfg.StaleDays,
		inactivityDays:      cfg.InactivityDays,
		cooldown:            cfg.Cooldown,
		followupDelay:       cfg.FollowupDelay,
		logger:              cfg.Logger,
		lastFollowup:        make(map[string]time.Time),
	}
	if r.importanceThreshold == 0 {
		r.importanceThreshold = 0.7
	}
	if r.staleDays == 0 {
		r.staleDays = 7
	}
	if r.inactivityDays == 0 {
		r.inactivityDays = 7
	}
	if r.cooldown == 0 {
		r.cooldown = 24 * time.Hour
	}
	if r.followupDelay == 0 {
		r.followupDelay = time.Hour
	}
	return r, nil
}

// Evaluate scores a completed interaction from response latency, goal
// coverage, and emotion-trend delta, then classifies the outcome and
// produces advisory improvement notes.
func (r *Reflector) Evaluate(interaction *Interaction) *EvaluationResult {
	score := 1.0
	var notes []string

	switch {
	case interaction.Latency > 10*time.Second:
		score -= 0.3
		notes = append(notes, "response latency exceeded 10s; consider trimming retrieval or tool work")
	case interaction.Latency > 5*time.Second:
		score -= 0.15
		notes = append(notes, "response latency above 5s")
	}

	if !interaction.GoalAddressed {
		score -= 0.4
		notes = append(notes, fmt.Sprintf("response did not address the %s goal", interaction.Goal))
	}

	var delta float64
	if interaction.PostEmotionIntensity >= 0 {
		delta = interaction.PostEmotionIntensity - interaction.PreEmotionIntensity
		switch {
		case delta <= -1.0:
			// Distress eased.
			score += 0.1
		case delta >= 1.0:
			score -= 0.2
			notes = append(notes, "emotion intensity rose during the interaction; lead with acknowledgment next time")
		}
	}

	if interaction.ToolFailures > 0 {
		score -= 0.1 * float64(interaction.ToolFailures)
		notes = append(notes, fmt.Sprintf("%d tool call(s) failed", interaction.ToolFailures))
	}
	if interaction.Degraded {
		score -= 0.2
		notes = append(notes, "turn completed in degraded mode; check external dependencies")
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	result := &EvaluationResult{
		Score:        score,
		Outcome:      classify(score),
		EmotionDelta: delta,
		Notes:        notes,
	}

	r.logger.Debug().
		Str("interaction_id", interaction.InteractionID).
		Float64("score", score).
		Str("outcome", string(result.Outcome)).
		Msg("interaction evaluated")

	return result
}

// PlanFollowup decides whether the user warrants a proactive follow-up.
//
// Triggers, checked in order: an important memory untouched for the stale
// window, a measurable emotion change since a flagged concern, and user
// inactivity. At most one task is emitted per call, and none within the
// per-user cooldown. The actual delivery is delegated to an external
// scheduler; this method only decides whether and with what message.
func (r *Reflector) PlanFollowup(ctx context.Context, ownerID string, fctx *FollowupContext) (*FollowupTask, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("plan followup: owner id is required")
	}
	if fctx == nil {
		fctx = &FollowupContext{}
	}
	if r.inCooldown(ownerID) {
		return nil, nil
	}

	task, err := r.staleConcernTask(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		task = r.emotionChangeTask(ctx, ownerID, fctx)
	}
	if task == nil {
		task = r.inactivityTask(ownerID)
	}
	if task == nil {
		return nil, nil
	}

	r.markFollowup(ownerID)
	if task.MemoryID != 0 {
		// Record the follow-up so the stale trigger does not refire.
		err := r.hub.UpdateMetadata(ctx, task.MemoryID, map[string]string{
			"followup_at": strconv.FormatInt(time.Now().Unix(), 10),
		})
		if err != nil {
			r.logger.Warn().Err(err).Int64("memory_id", task.MemoryID).Msg("followup bookkeeping failed")
		}
	}

	r.logger.Info().
		Str("owner_id", ownerID).
		Str("reason", task.Reason).
		Msg("followup recommended")

	return task, nil
}

// staleConcernTask fires when an important memory has had no follow-up
// within the stale window.
func (r *Reflector) staleConcernTask(ctx context.Context, ownerID string) (*FollowupTask, error) {
	records, err := r.hub.ScanRecent(ctx, ownerID, 50, r.importanceThreshold)
	if err != nil {
		return nil, fmt.Errorf("plan followup: %w", err)
	}

	staleBefore := time.Now().AddDate(0, 0, -r.staleDays)
	for _, rec := range records {
		if rec.CreatedAt.After(staleBefore) {
			continue
		}
		if lastTouch(rec).After(staleBefore) {
			continue
		}
		return &FollowupTask{
			OwnerID:  ownerID,
			Reason:   "stale_concern",
			Message:  fmt.Sprintf("Check in about: %s", topicOf(rec)),
			At:       time.Now().Add(r.followupDelay),
			MemoryID: rec.ID,
		}, nil
	}
	return nil, nil
}

// emotionChangeTask fires when the current emotion has measurably moved
// since a flagged concern.
func (r *Reflector) emotionChangeTask(ctx context.Context, ownerID string, fctx *FollowupContext) *FollowupTask {
	if fctx.CurrentEmotionIntensity <= 0 {
		// Intensity unmeasured this call.
		return nil
	}
	records, err := r.hub.ScanRecent(ctx, ownerID, 20, 0.5)
	if err != nil {
		return nil
	}

	for _, rec := range records {
		if rec.Category != memory.CategoryConcern {
			continue
		}
		delta := fctx.CurrentEmotionIntensity - rec.EmotionIntensity
		if delta >= 2.0 || delta <= -2.0 {
			direction := "improved"
			if delta > 0 {
				direction = "intensified"
			}
			return &FollowupTask{
				OwnerID:  ownerID,
				Reason:   "emotion_change",
				Message:  fmt.Sprintf("The user's feelings about %q have %s; ask how things are going", topicOf(rec), direction),
				At:       time.Now().Add(r.followupDelay),
				MemoryID: rec.ID,
			}
		}
	}
	return nil
}

// inactivityTask fires when the user has not interacted for the inactivity
// window.
func (r *Reflector) inactivityTask(ownerID string) *FollowupTask {
	stats := r.hub.Stats(ownerID)
	if stats == nil || stats.LastInteractionAt.IsZero() {
		return nil
	}
	if time.Since(stats.LastInteractionAt) <= time.Duration(r.inactivityDays)*24*time.Hour {
		return nil
	}
	return &FollowupTask{
		OwnerID: ownerID,
		Reason:  "inactivity",
		Message: "It has been a while; send a friendly check-in",
		At:      time.Now().Add(r.followupDelay),
	}
}

func (r *Reflector) inCooldown(ownerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	last, ok := r.lastFollowup[ownerID]
	return ok && time.Since(last) < r.cooldown
}

func (r *Reflector) markFollowup(ownerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastFollowup[ownerID] = time.Now()
}

func classify(score float64) Outcome {
	switch {
	case score >= 0.8:
		return OutcomeSuccess
	case score >= 0.5:
		return OutcomePartial
	}
	return OutcomeFailure
}

// lastTouch returns the record's most recent access or follow-up time,
// falling back to creation time.
func lastTouch(rec *memory.Record) time.Time {
	latest := rec.CreatedAt
	if rec.LastAccessedAt != nil && rec.LastAccessedAt.After(latest) {
		latest = *rec.LastAccessedAt
	}
	if rec.Metadata != nil {
		if raw, ok := rec.Metadata["followup_at"]; ok {
			if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
				at := time.Unix(unix, 0)
				if at.After(latest) {
					latest = at
				}
			}
		}
	}
	return latest
}

func topicOf(rec *memory.Record) string {
	if rec.Summary != "" {
		return rec.Summary
	}
	content := rec.Content
	if len(content) > 60 {
		content = content[:60]
	}
	return content
}
