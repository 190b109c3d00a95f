// Package models defines the core data structures for the burnout assessment service.
//
// It includes the immutable question/assessment types, the mutable session
// aggregate, and the result projection, which are shared across modules.
package models

import (
	"errors"
	"time"
)

// AssessmentDomain identifies a thematic category of assessment questions.
type AssessmentDomain string

const (
	// DomainWork covers job stressors and workplace dynamics.
	DomainWork AssessmentDomain = "WORK"
	// DomainPersonal covers interpersonal relationships.
	DomainPersonal AssessmentDomain = "PERSONAL"
	// DomainLifestyle covers routines, sleep habits, and diet/nutrition.
	DomainLifestyle AssessmentDomain = "LIFESTYLE"
)

// AllDomains returns the assessment domains in their fixed generation order.
// Question ordering in a generated assessment depends on this order.
func AllDomains() []AssessmentDomain {
	return []AssessmentDomain{DomainWork, DomainPersonal, DomainLifestyle}
}

// DisplayName returns the human-readable name of the domain.
func (d AssessmentDomain) DisplayName() string {
	switch d {
	case DomainWork:
		return "Work"
	case DomainPersonal:
		return "Personal"
	case DomainLifestyle:
		return "Lifestyle"
	default:
		return string(d)
	}
}

// Description returns the prompt description used when generating questions
// for the domain.
func (d AssessmentDomain) Description() string {
	switch d {
	case DomainWork:
		return "Questions about job stressors and workplace dynamics"
	case DomainPersonal:
		return "Questions about interpersonal relationships with friends, family, and partners"
	case DomainLifestyle:
		return "Questions about routines, sleep habits, and diet/nutrition"
	default:
		return ""
	}
}

// IsValidDomain checks if the given domain is supported.
func IsValidDomain(d AssessmentDomain) bool {
	switch d {
	case DomainWork, DomainPersonal, DomainLifestyle:
		return true
	default:
		return false
	}
}

// Error variables for the assessment lifecycle. Handlers translate these into
// the wire-level error envelope.
var (
	ErrEmptyUserID        = errors.New("userId cannot be empty")
	ErrSessionNotFound    = errors.New("session not found")
	ErrUnknownQuestion    = errors.New("question not found in session assessment")
	ErrNoResponses        = errors.New("no responses recorded for session")
	ErrScoreNotCalculated = errors.New("score not calculated for session")
	ErrScoreParse         = errors.New("score output could not be parsed")
	ErrGenerationFailed   = errors.New("assessment generation failed")
	ErrUploadFailed       = errors.New("media upload failed")
)

// Question is a single assessment question. Immutable once generated.
//
// QuestionID is unique within an assessment and encodes domain, kind, and
// ordinal (e.g. "work_std_1", "work_multi_1").
type Question struct {
	QuestionID string           `json:"questionId"`
	Text       string           `json:"text"`
	Domain     AssessmentDomain `json:"domain"`
	Multimodal bool             `json:"multimodal"`
}

// Assessment is an ordered, fixed set of questions. Immutable after generation.
type Assessment struct {
	Questions []Question `json:"questions"`
}

// FindQuestion returns the question with the given ID, if present.
func (a Assessment) FindQuestion(questionID string) (Question, bool) {
	for _, q := range a.Questions {
		if q.QuestionID == questionID {
			return q, true
		}
	}
	return Question{}, false
}

// QuestionsForDomain returns the subset of questions for the given domain,
// preserving their generation order.
func (a Assessment) QuestionsForDomain(domain AssessmentDomain) []Question {
	var questions []Question
	for _, q := range a.Questions {
		if q.Domain == domain {
			questions = append(questions, q)
		}
	}
	return questions
}

// MultimodalQuestions returns the subset of open-response questions.
func (a Assessment) MultimodalQuestions() []Question {
	var questions []Question
	for _, q := range a.Questions {
		if q.Multimodal {
			questions = append(questions, q)
		}
	}
	return questions
}

// StandardQuestions returns the subset of Likert-scale questions.
func (a Assessment) StandardQuestions() []Question {
	var questions []Question
	for _, q := range a.Questions {
		if !q.Multimodal {
			questions = append(questions, q)
		}
	}
	return questions
}

// Validate checks the generator invariants: at least one question, no empty
// text, and pairwise-unique question IDs.
func (a Assessment) Validate() error {
	if len(a.Questions) == 0 {
		return errors.New("assessment has no questions")
	}
	seen := make(map[string]struct{}, len(a.Questions))
	for _, q := range a.Questions {
		if q.QuestionID == "" {
			return errors.New("assessment question has empty ID")
		}
		if q.Text == "" {
			return errors.New("assessment question has empty text")
		}
		if !IsValidDomain(q.Domain) {
			return errors.New("assessment question has invalid domain")
		}
		if _, dup := seen[q.QuestionID]; dup {
			return errors.New("assessment question IDs are not unique")
		}
		seen[q.QuestionID] = struct{}{}
	}
	return nil
}

// UserResponse holds everything recorded for a single question: the text
// answer plus any multimodal insight payloads supplied by upstream analysis
// collaborators. The service only stores the insight values, never inspects
// them.
type UserResponse struct {
	QuestionID         string         `json:"questionId"`
	TextResponse       string         `json:"textResponse"`
	MultimodalInsights map[string]any `json:"multimodalInsights,omitempty"`
}

// Score is the scoring stage output for a session. Produced exactly once.
type Score struct {
	SessionID    string  `json:"sessionId"`
	UserID       string  `json:"userId"`
	OverallScore float64 `json:"overallScore"`
	Explanation  string  `json:"explanation,omitempty"`
}

// Summary is the summarization stage output for a session. Produced exactly once.
type Summary struct {
	SessionID      string `json:"sessionId"`
	OverallInsight string `json:"overallInsight"`
}

// Session is the central mutable aggregate for one user's run through an
// assessment. Score and Summary are write-once; Completed implies both are set
// and CompletedAt is non-nil.
type Session struct {
	SessionID   string                   `json:"sessionId"`
	UserID      string                   `json:"userId"`
	Assessment  Assessment               `json:"assessment"`
	Responses   map[string]*UserResponse `json:"responses"`
	Score       *Score                   `json:"score,omitempty"`
	Summary     *Summary                 `json:"summary,omitempty"`
	Completed   bool                     `json:"completed"`
	CreatedAt   time.Time                `json:"createdAt"`
	UpdatedAt   time.Time                `json:"updatedAt"`
	CompletedAt *time.Time               `json:"completedAt,omitempty"`
}

// NewSession constructs a session ready to accept answers.
func NewSession(sessionID, userID string, assessment Assessment) *Session {
	now := time.Now()
	return &Session{
		SessionID:  sessionID,
		UserID:     userID,
		Assessment: assessment,
		Responses:  make(map[string]*UserResponse),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Touch records mutation time; the eviction janitor keys off UpdatedAt.
func (s *Session) Touch() {
	s.UpdatedAt = time.Now()
}

// MergeResponse merges an incoming answer into the session. Non-empty text
// replaces the stored text; each supplied insight key replaces or adds that
// key; absent fields leave prior values untouched, so a text answer and a
// later-arriving media upload for the same question both survive.
//
// The caller is responsible for validating that questionID exists in the
// session's assessment.
func (s *Session) MergeResponse(questionID, text string, insights map[string]any) *UserResponse {
	response, ok := s.Responses[questionID]
	if !ok {
		response = &UserResponse{QuestionID: questionID}
		s.Responses[questionID] = response
	}
	if text != "" {
		response.TextResponse = text
	}
	if len(insights) > 0 {
		if response.MultimodalInsights == nil {
			response.MultimodalInsights = make(map[string]any, len(insights))
		}
		for key, value := range insights {
			response.MultimodalInsights[key] = value
		}
	}
	s.Touch()
	return response
}

// AssessmentResult is the completion-time projection of a session. It is
// assembled on demand and never stored.
type AssessmentResult struct {
	SessionID   string                   `json:"sessionId"`
	UserID      string                   `json:"userId"`
	Assessment  Assessment               `json:"assessment"`
	Responses   map[string]*UserResponse `json:"responses"`
	Score       Score                    `json:"score"`
	Summary     string                   `json:"summary"`
	CompletedAt time.Time                `json:"completedAt"`
}
