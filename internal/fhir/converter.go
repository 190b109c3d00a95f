// Package fhir exports completed assessment results as FHIR R4
// QuestionnaireResponse documents for clinical-record storage.
package fhir

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/maremivazquez1/DigitalTherapyAssistant-sub001/internal/models"
)

// Link IDs for the synthetic score and summary items appended after the
// per-question items.
const (
	ScoreLinkID   = "overall_score"
	SummaryLinkID = "overall_summary"
)

// Reference is a FHIR reference to another resource.
type Reference struct {
	Reference string `json:"reference"`
}

// Answer is a single QuestionnaireResponse item answer.
type Answer struct {
	ValueString  string   `json:"valueString,omitempty"`
	ValueDecimal *float64 `json:"valueDecimal,omitempty"`
	ValueURI     string   `json:"valueUri,omitempty"`
}

// Item is one question/answer pair in a QuestionnaireResponse.
type Item struct {
	LinkID string   `json:"linkId"`
	Text   string   `json:"text,omitempty"`
	Answer []Answer `json:"answer,omitempty"`
}

// QuestionnaireResponse is the FHIR R4 resource produced for a completed
// assessment.
type QuestionnaireResponse struct {
	ResourceType string    `json:"resourceType"`
	ID           string    `json:"id"`
	Status       string    `json:"status"`
	Subject      Reference `json:"subject"`
	Authored     string    `json:"authored"`
	Item         []Item    `json:"item"`
}

// ConvertResult maps an assessment result onto a QuestionnaireResponse: one
// item per question in assessment order (text answer plus media references as
// URI answers), then the score and summary as dedicated items.
func ConvertResult(result *models.AssessmentResult) QuestionnaireResponse {
	items := make([]Item, 0, len(result.Assessment.Questions)+2)
	for _, question := range result.Assessment.Questions {
		item := Item{
			LinkID: question.QuestionID,
			Text:   question.Text,
		}
		if response, ok := result.Responses[question.QuestionID]; ok {
			if response.TextResponse != "" {
				item.Answer = append(item.Answer, Answer{ValueString: response.TextResponse})
			}
			for _, key := range []string{models.MediaTypeAudio, models.MediaTypeVideo} {
				if ref, ok := response.MultimodalInsights[key]; ok {
					item.Answer = append(item.Answer, Answer{ValueURI: fmt.Sprintf("%v", ref)})
				}
			}
		}
		items = append(items, item)
	}

	// answer.value[x] is a one-of choice in R4; the explanation goes in a
	// second answer element rather than alongside the decimal.
	score := result.Score.OverallScore
	scoreAnswers := []Answer{{ValueDecimal: &score}}
	if result.Score.Explanation != "" {
		scoreAnswers = append(scoreAnswers, Answer{ValueString: result.Score.Explanation})
	}
	items = append(items, Item{
		LinkID: ScoreLinkID,
		Text:   "Overall burnout score (0-10)",
		Answer: scoreAnswers,
	})
	items = append(items, Item{
		LinkID: SummaryLinkID,
		Text:   "Assessment summary",
		Answer: []Answer{{ValueString: result.Summary}},
	})

	return QuestionnaireResponse{
		ResourceType: "QuestionnaireResponse",
		ID:           uuid.NewString(),
		Status:       "completed",
		Subject:      Reference{Reference: "Patient/" + result.UserID},
		Authored:     result.CompletedAt.Format(time.RFC3339),
		Item:         items,
	}
}

// Validate checks the structural invariants a receiving FHIR server would
// reject on: resource type, status, subject, and non-empty items.
func (qr QuestionnaireResponse) Validate() error {
	if qr.ResourceType != "QuestionnaireResponse" {
		return fmt.Errorf("unexpected resource type %q", qr.ResourceType)
	}
	if qr.Status != "completed" && qr.Status != "in-progress" {
		return fmt.Errorf("invalid status %q", qr.Status)
	}
	if qr.Subject.Reference == "" || qr.Subject.Reference == "Patient/" {
		return fmt.Errorf("subject reference missing")
	}
	if len(qr.Item) == 0 {
		return fmt.Errorf("questionnaire response has no items")
	}
	for _, item := range qr.Item {
		if item.LinkID == "" {
			return fmt.Errorf("questionnaire response item missing linkId")
		}
		for _, answer := range item.Answer {
			populated := 0
			if answer.ValueString != "" {
				populated++
			}
			if answer.ValueDecimal != nil {
				populated++
			}
			if answer.ValueURI != "" {
				populated++
			}
			if populated != 1 {
				return fmt.Errorf("item %s answer must populate exactly one value, has %d", item.LinkID, populated)
			}
		}
	}
	return nil
}
