// Package orchestrator manages the burnout assessment lifecycle: creating
// sessions, recording and aggregating multimodal responses, and sequencing the
// scoring, summarization, and completion pipeline exactly once per session.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/maremivazquez1/DigitalTherapyAssistant-sub001/internal/models"
	"github.com/maremivazquez1/DigitalTherapyAssistant-sub001/internal/store"
)

// Default janitor settings. Sessions are evicted after sitting untouched for
// the TTL; completed sessions are kept until they expire so clients may
// re-request results idempotently.
const (
	DefaultSessionTTL      = 2 * time.Hour
	DefaultJanitorInterval = 10 * time.Minute
)

// AssessmentWorker defines the generation capabilities the orchestrator
// depends on. All calls may be slow and may fail; no retries are attempted.
type AssessmentWorker interface {
	GenerateAssessment(ctx context.Context) (models.Assessment, error)
	GenerateScore(ctx context.Context, transcript string) (float64, string, error)
	GenerateSummary(ctx context.Context, transcript string) (string, error)
}

// Opts holds orchestrator configuration options.
type Opts struct {
	SessionTTL      time.Duration
	JanitorInterval time.Duration
}

// Option defines a configuration option for the orchestrator.
type Option func(*Opts)

// WithSessionTTL sets how long an untouched session survives before eviction.
func WithSessionTTL(ttl time.Duration) Option {
	return func(o *Opts) {
		o.SessionTTL = ttl
	}
}

// WithJanitorInterval sets how often the eviction sweep runs.
func WithJanitorInterval(interval time.Duration) Option {
	return func(o *Opts) {
		o.JanitorInterval = interval
	}
}

// Orchestrator coordinates sessions, the assessment worker, and the session
// store. All operations on one session serialize through a per-session mutex;
// operations on different sessions proceed independently.
type Orchestrator struct {
	store  store.Store
	worker AssessmentWorker

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	sessionTTL      time.Duration
	janitorInterval time.Duration
	stopJanitor     chan struct{}
	janitorOnce     sync.Once
}

// New creates an orchestrator backed by the given store and worker.
func New(st store.Store, worker AssessmentWorker, opts ...Option) *Orchestrator {
	cfg := Opts{
		SessionTTL:      DefaultSessionTTL,
		JanitorInterval: DefaultJanitorInterval,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("orchestrator.New: creating orchestrator", "session_ttl", cfg.SessionTTL, "janitor_interval", cfg.JanitorInterval)
	return &Orchestrator{
		store:           st,
		worker:          worker,
		locks:           make(map[string]*sync.Mutex),
		sessionTTL:      cfg.SessionTTL,
		janitorInterval: cfg.JanitorInterval,
		stopJanitor:     make(chan struct{}),
	}
}

// sessionLock returns the mutex serializing operations for one session,
// creating it on first use.
func (o *Orchestrator) sessionLock(sessionID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	lock, ok := o.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		o.locks[sessionID] = lock
	}
	return lock
}

// releaseSessionLock drops the lock entry for an evicted session.
func (o *Orchestrator) releaseSessionLock(sessionID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.locks, sessionID)
}

// CreateAssessmentSession generates a fresh session for the user: a new
// session ID, a generated assessment, and storage of the aggregate. Answering
// begins immediately. On generation failure nothing is stored.
func (o *Orchestrator) CreateAssessmentSession(ctx context.Context, userID string) (*models.Session, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, models.ErrEmptyUserID
	}

	sessionID := uuid.NewString()
	slog.Info("Orchestrator.CreateAssessmentSession: creating session", "user_id", userID, "session_id", sessionID)

	assessment, err := o.worker.GenerateAssessment(ctx)
	if err != nil {
		slog.Error("Orchestrator.CreateAssessmentSession: assessment generation failed", "error", err, "user_id", userID)
		return nil, fmt.Errorf("failed to generate assessment: %w", err)
	}

	session := models.NewSession(sessionID, userID, assessment)
	if err := o.store.SaveSession(session); err != nil {
		slog.Error("Orchestrator.CreateAssessmentSession: failed to store session", "error", err, "session_id", sessionID)
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	slog.Info("Orchestrator.CreateAssessmentSession: session created", "session_id", sessionID, "user_id", userID, "question_count", len(assessment.Questions))
	return session, nil
}

// RecordResponse merges an answer into the session. Text and media insights
// for the same question accumulate across calls: non-empty fields in the new
// call replace the corresponding stored fields, absent fields leave prior
// values untouched. Responses for unknown questions are rejected, not stored.
func (o *Orchestrator) RecordResponse(ctx context.Context, sessionID, questionID, text string, insights map[string]any) error {
	lock := o.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := o.getSession(sessionID)
	if err != nil {
		return err
	}

	if _, ok := session.Assessment.FindQuestion(questionID); !ok {
		slog.Warn("Orchestrator.RecordResponse: unknown question", "session_id", sessionID, "question_id", questionID)
		return fmt.Errorf("%w: %s", models.ErrUnknownQuestion, questionID)
	}

	session.MergeResponse(questionID, text, insights)
	if err := o.store.SaveSession(session); err != nil {
		return fmt.Errorf("failed to save session %s: %w", sessionID, err)
	}

	slog.Info("Orchestrator.RecordResponse: response recorded", "session_id", sessionID, "question_id", questionID,
		"response_count", len(session.Responses), "question_count", len(session.Assessment.Questions))
	return nil
}

// CalculateScore runs the scoring stage for the session. The score is
// write-once: repeated calls return the cached value without invoking the
// scoring capability again. Fails when no responses are recorded.
func (o *Orchestrator) CalculateScore(ctx context.Context, sessionID string) (*models.Score, error) {
	lock := o.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := o.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	return o.calculateScoreLocked(ctx, session)
}

// calculateScoreLocked is the scoring stage body; callers hold the session lock.
func (o *Orchestrator) calculateScoreLocked(ctx context.Context, session *models.Session) (*models.Score, error) {
	if session.Score != nil {
		slog.Debug("Orchestrator.CalculateScore: returning cached score", "session_id", session.SessionID, "score", session.Score.OverallScore)
		return session.Score, nil
	}
	if len(session.Responses) == 0 {
		slog.Error("Orchestrator.CalculateScore: no responses recorded", "session_id", session.SessionID)
		return nil, fmt.Errorf("%w: %s", models.ErrNoResponses, session.SessionID)
	}

	transcript := FormatTranscript(session)
	scoreValue, explanation, err := o.worker.GenerateScore(ctx, transcript)
	if err != nil {
		slog.Error("Orchestrator.CalculateScore: scoring failed", "error", err, "session_id", session.SessionID)
		return nil, fmt.Errorf("failed to calculate score: %w", err)
	}

	session.Score = &models.Score{
		SessionID:    session.SessionID,
		UserID:       session.UserID,
		OverallScore: scoreValue,
		Explanation:  explanation,
	}
	session.Touch()
	if err := o.store.SaveSession(session); err != nil {
		session.Score = nil
		return nil, fmt.Errorf("failed to save session %s: %w", session.SessionID, err)
	}

	slog.Info("Orchestrator.CalculateScore: score calculated", "session_id", session.SessionID, "score", scoreValue)
	return session.Score, nil
}

// GenerateSummary runs the summarization stage for the session. Requires the
// score to exist; write-once like the score.
func (o *Orchestrator) GenerateSummary(ctx context.Context, sessionID string) (*models.Summary, error) {
	lock := o.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := o.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	return o.generateSummaryLocked(ctx, session)
}

// generateSummaryLocked is the summarization stage body; callers hold the session lock.
func (o *Orchestrator) generateSummaryLocked(ctx context.Context, session *models.Session) (*models.Summary, error) {
	if session.Summary != nil {
		slog.Debug("Orchestrator.GenerateSummary: returning cached summary", "session_id", session.SessionID)
		return session.Summary, nil
	}
	if session.Score == nil {
		slog.Error("Orchestrator.GenerateSummary: score not calculated", "session_id", session.SessionID)
		return nil, fmt.Errorf("%w: %s", models.ErrScoreNotCalculated, session.SessionID)
	}

	transcript := FormatTranscript(session)
	overallInsight, err := o.worker.GenerateSummary(ctx, transcript)
	if err != nil {
		slog.Error("Orchestrator.GenerateSummary: summarization failed", "error", err, "session_id", session.SessionID)
		return nil, fmt.Errorf("failed to generate summary: %w", err)
	}

	session.Summary = &models.Summary{
		SessionID:      session.SessionID,
		OverallInsight: overallInsight,
	}
	session.Touch()
	if err := o.store.SaveSession(session); err != nil {
		session.Summary = nil
		return nil, fmt.Errorf("failed to save session %s: %w", session.SessionID, err)
	}

	slog.Info("Orchestrator.GenerateSummary: summary generated", "session_id", session.SessionID)
	return session.Summary, nil
}

// CompleteAssessment computes any missing pipeline stage, marks the session
// completed, and returns the result projection. Safe to call multiple times:
// cached stages are reused and an equal result is reassembled. A stage failure
// leaves the session not completed.
func (o *Orchestrator) CompleteAssessment(ctx context.Context, sessionID string) (*models.AssessmentResult, error) {
	lock := o.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := o.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	slog.Info("Orchestrator.CompleteAssessment: completing assessment", "session_id", sessionID,
		"response_count", len(session.Responses), "question_count", len(session.Assessment.Questions))

	score, err := o.calculateScoreLocked(ctx, session)
	if err != nil {
		return nil, err
	}
	summary, err := o.generateSummaryLocked(ctx, session)
	if err != nil {
		return nil, err
	}

	if !session.Completed {
		now := time.Now()
		session.Completed = true
		session.CompletedAt = &now
		session.Touch()
		if err := o.store.SaveSession(session); err != nil {
			session.Completed = false
			session.CompletedAt = nil
			return nil, fmt.Errorf("failed to save session %s: %w", sessionID, err)
		}
	}

	result := &models.AssessmentResult{
		SessionID:   session.SessionID,
		UserID:      session.UserID,
		Assessment:  session.Assessment,
		Responses:   session.Responses,
		Score:       *score,
		Summary:     summary.OverallInsight,
		CompletedAt: *session.CompletedAt,
	}

	slog.Info("Orchestrator.CompleteAssessment: assessment completed", "session_id", sessionID, "score", score.OverallScore)
	return result, nil
}

// GetSession returns the current state of a session.
func (o *Orchestrator) GetSession(sessionID string) (*models.Session, error) {
	lock := o.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()
	return o.getSession(sessionID)
}

// getSession looks up a session, mapping absence to ErrSessionNotFound.
func (o *Orchestrator) getSession(sessionID string) (*models.Session, error) {
	session, err := o.store.GetSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	if session == nil {
		slog.Warn("Orchestrator.getSession: session not found", "session_id", sessionID)
		// Session IDs are never reused: an absent session cannot gain state
		// later, so its lock entry is dropped rather than left to accumulate
		// for every unknown ID a client names.
		o.releaseSessionLock(sessionID)
		return nil, fmt.Errorf("%w: %s", models.ErrSessionNotFound, sessionID)
	}
	return session, nil
}

// FormatTranscript renders the session's questions and answers as the text
// transcript consumed by the scoring and summarization capabilities. Questions
// appear in their fixed generation order; unanswered questions get an explicit
// marker; multimodal insights are rendered with sorted keys so the output is
// deterministic.
func FormatTranscript(session *models.Session) string {
	var b strings.Builder
	for _, question := range session.Assessment.Questions {
		b.WriteString("Q: ")
		b.WriteString(question.Text)
		b.WriteString("\n")

		response, ok := session.Responses[question.QuestionID]
		if ok {
			b.WriteString("A: ")
			b.WriteString(response.TextResponse)
			b.WriteString("\n")
			if len(response.MultimodalInsights) > 0 {
				b.WriteString("Multimodal: ")
				b.WriteString(renderInsights(response.MultimodalInsights))
				b.WriteString("\n")
			}
		} else {
			b.WriteString("A: [No response]\n")
		}
		b.WriteString("---\n")
	}
	return b.String()
}

// renderInsights renders the opaque insight map as "key=value" pairs in key order.
func renderInsights(insights map[string]any) string {
	keys := make([]string, 0, len(insights))
	for key := range insights {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", key, insights[key]))
	}
	return strings.Join(parts, ", ")
}

// StartJanitor launches the background eviction sweep. Call Close to stop it.
func (o *Orchestrator) StartJanitor() {
	o.janitorOnce.Do(func() {
		go o.janitorLoop()
	})
}

// Close stops the eviction janitor.
func (o *Orchestrator) Close() {
	select {
	case <-o.stopJanitor:
	default:
		close(o.stopJanitor)
	}
}

func (o *Orchestrator) janitorLoop() {
	ticker := time.NewTicker(o.janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			o.EvictExpiredSessions()
		case <-o.stopJanitor:
			return
		}
	}
}

// EvictExpiredSessions deletes sessions whose last mutation is older than the
// session TTL and returns how many were removed.
func (o *Orchestrator) EvictExpiredSessions() int {
	ids, err := o.store.ListSessionIDs()
	if err != nil {
		slog.Error("Orchestrator.EvictExpiredSessions: failed to list sessions", "error", err)
		return 0
	}

	evicted := 0
	cutoff := time.Now().Add(-o.sessionTTL)
	for _, id := range ids {
		lock := o.sessionLock(id)
		lock.Lock()
		deleted := false
		session, err := o.store.GetSession(id)
		if err == nil && session != nil && session.UpdatedAt.Before(cutoff) {
			if err := o.store.DeleteSession(id); err != nil {
				slog.Error("Orchestrator.EvictExpiredSessions: failed to delete session", "error", err, "session_id", id)
			} else {
				deleted = true
				evicted++
				slog.Info("Orchestrator.EvictExpiredSessions: session evicted", "session_id", id, "updated_at", session.UpdatedAt)
			}
		}
		lock.Unlock()
		if deleted {
			o.releaseSessionLock(id)
		}
	}
	return evicted
}
