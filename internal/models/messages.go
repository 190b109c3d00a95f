// Package models defines wire-level message shapes for the WebSocket protocol.
package models

// Message types recognized by the dispatcher.
const (
	// MessageTypeStartBurnout requests a new assessment session.
	MessageTypeStartBurnout = "start-burnout"
	// MessageTypeAnswer records a text answer for a question.
	MessageTypeAnswer = "answer"
	// MessageTypeMediaUpload announces a binary audio/video frame for a question.
	MessageTypeMediaUpload = "media-upload"
	// MessageTypeAssessmentComplete triggers scoring, summarization, and completion.
	MessageTypeAssessmentComplete = "assessment-complete"

	// MessageTypeSystem is sent once on connection establishment.
	MessageTypeSystem = "system"
	// MessageTypeQuestions carries the generated question set back to the client.
	MessageTypeQuestions = "burnout-questions"
	// MessageTypeResult carries the final score and summary back to the client.
	MessageTypeResult = "assessment-result"
)

// Media types accepted in a media-upload announcement.
const (
	MediaTypeAudio = "audio"
	MediaTypeVideo = "video"
)

// ClientMessage is the inbound structured message. Type discriminates which of
// the remaining fields are meaningful.
type ClientMessage struct {
	Type       string `json:"type"`
	UserID     string `json:"userId,omitempty"`
	SessionID  string `json:"sessionId,omitempty"`
	QuestionID string `json:"questionId,omitempty"`
	Response   string `json:"response,omitempty"`
	MediaType  string `json:"mediaType,omitempty"`
}

// SystemMessage is the connection welcome notice.
type SystemMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// QuestionsMessage is the reply to start-burnout.
type QuestionsMessage struct {
	Type      string     `json:"type"`
	SessionID string     `json:"sessionId"`
	Questions []Question `json:"questions"`
}

// ResultMessage is the reply to assessment-complete.
type ResultMessage struct {
	Type      string  `json:"type"`
	SessionID string  `json:"sessionId"`
	Score     float64 `json:"score"`
	Summary   string  `json:"summary"`
}

// ErrorEnvelope is the uniform failure reply. RequestID names the handler that
// failed so clients can correlate errors with the message they sent.
type ErrorEnvelope struct {
	RequestID string `json:"requestId"`
	Error     string `json:"error"`
}
