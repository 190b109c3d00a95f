package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/maremivazquez1/DigitalTherapyAssistant-sub001/internal/fhir"
	"github.com/maremivazquez1/DigitalTherapyAssistant-sub001/internal/models"
	"github.com/maremivazquez1/DigitalTherapyAssistant-sub001/internal/orchestrator"
	"github.com/maremivazquez1/DigitalTherapyAssistant-sub001/internal/store"
)

// fakeWriter records outbound messages in place of a websocket connection.
type fakeWriter struct {
	messages []any
	err      error
}

func (f *fakeWriter) WriteJSON(v any) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, v)
	return nil
}

// fakeUploader records uploads and returns deterministic URLs.
type fakeUploader struct {
	keys []string
	data [][]byte
	err  error
}

func (f *fakeUploader) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.keys = append(f.keys, key)
	f.data = append(f.data, data)
	return "s3://test-bucket/" + key, nil
}

// stubWorker produces a fixed two-question assessment.
type stubWorker struct{}

func (stubWorker) GenerateAssessment(ctx context.Context) (models.Assessment, error) {
	return models.Assessment{Questions: []models.Question{
		{QuestionID: "work_std_1", Text: "I feel drained by my work.", Domain: models.DomainWork},
		{QuestionID: "work_multi_1", Text: "Describe a recent stressful day.", Domain: models.DomainWork, Multimodal: true},
	}}, nil
}

func (stubWorker) GenerateScore(ctx context.Context, transcript string) (float64, string, error) {
	return 4.5, "Moderate strain.", nil
}

func (stubWorker) GenerateSummary(ctx context.Context, transcript string) (string, error) {
	return "Today your assessment shows moderate work strain.", nil
}

func newTestServer(uploader *fakeUploader) *Server {
	orch := orchestrator.New(store.NewInMemoryStore(), stubWorker{})
	if uploader == nil {
		// A typed nil would still satisfy the interface; pass an untyped nil.
		return NewServer(orch, nil, nil)
	}
	return NewServer(orch, uploader, nil)
}

func marshal(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

// startSession drives the start-burnout path and returns the session ID from
// the questions reply.
func startSession(t *testing.T, s *Server, conn *connection, writer *fakeWriter) string {
	t.Helper()
	s.dispatchText(context.Background(), conn, marshal(t, models.ClientMessage{
		Type:   models.MessageTypeStartBurnout,
		UserID: "u1",
	}))
	if len(writer.messages) == 0 {
		t.Fatal("no reply to start-burnout")
	}
	reply, ok := writer.messages[len(writer.messages)-1].(models.QuestionsMessage)
	if !ok {
		t.Fatalf("expected QuestionsMessage, got %T", writer.messages[len(writer.messages)-1])
	}
	return reply.SessionID
}

func TestStartBurnoutSession(t *testing.T) {
	s := newTestServer(nil)
	writer := &fakeWriter{}
	conn := newConnection(writer)

	sessionID := startSession(t, s, conn, writer)
	if sessionID == "" {
		t.Error("expected a session ID in the questions reply")
	}

	reply := writer.messages[0].(models.QuestionsMessage)
	if reply.Type != models.MessageTypeQuestions {
		t.Errorf("expected type %q, got %q", models.MessageTypeQuestions, reply.Type)
	}
	if len(reply.Questions) != 2 {
		t.Errorf("expected 2 questions, got %d", len(reply.Questions))
	}
}

func TestStartBurnoutSessionEmptyUser(t *testing.T) {
	s := newTestServer(nil)
	writer := &fakeWriter{}
	conn := newConnection(writer)

	s.dispatchText(context.Background(), conn, marshal(t, models.ClientMessage{
		Type: models.MessageTypeStartBurnout,
	}))

	if len(writer.messages) != 1 {
		t.Fatalf("expected 1 outbound message, got %d", len(writer.messages))
	}
	envelope, ok := writer.messages[0].(models.ErrorEnvelope)
	if !ok {
		t.Fatalf("expected ErrorEnvelope, got %T", writer.messages[0])
	}
	if envelope.RequestID != handlerStartBurnout {
		t.Errorf("expected requestId %q, got %q", handlerStartBurnout, envelope.RequestID)
	}
}

func TestHandleUserAnswerSilentSuccess(t *testing.T) {
	s := newTestServer(nil)
	writer := &fakeWriter{}
	conn := newConnection(writer)
	sessionID := startSession(t, s, conn, writer)
	before := len(writer.messages)

	s.dispatchText(context.Background(), conn, marshal(t, models.ClientMessage{
		Type:       models.MessageTypeAnswer,
		SessionID:  sessionID,
		QuestionID: "work_std_1",
		Response:   "I feel tired",
	}))

	if len(writer.messages) != before {
		t.Errorf("successful answer must be silent, got %+v", writer.messages[before:])
	}
}

func TestHandleUserAnswerUnknownSession(t *testing.T) {
	s := newTestServer(nil)
	writer := &fakeWriter{}
	conn := newConnection(writer)

	s.dispatchText(context.Background(), conn, marshal(t, models.ClientMessage{
		Type:       models.MessageTypeAnswer,
		SessionID:  "missing",
		QuestionID: "work_std_1",
		Response:   "answer",
	}))

	if len(writer.messages) != 1 {
		t.Fatalf("expected 1 outbound message, got %d", len(writer.messages))
	}
	envelope, ok := writer.messages[0].(models.ErrorEnvelope)
	if !ok {
		t.Fatalf("expected ErrorEnvelope, got %T", writer.messages[0])
	}
	if envelope.RequestID != handlerUserAnswer {
		t.Errorf("expected requestId %q, got %q", handlerUserAnswer, envelope.RequestID)
	}
	if envelope.Error == "" {
		t.Error("expected a non-empty error message")
	}
}

func TestUnknownMessageTypeIgnored(t *testing.T) {
	s := newTestServer(nil)
	writer := &fakeWriter{}
	conn := newConnection(writer)

	s.dispatchText(context.Background(), conn, marshal(t, models.ClientMessage{Type: "bogus-type"}))
	s.dispatchText(context.Background(), conn, []byte("{not json"))

	if len(writer.messages) != 0 {
		t.Errorf("unknown or malformed messages must produce no reply, got %+v", writer.messages)
	}
}

func TestMediaUploadFlow(t *testing.T) {
	uploader := &fakeUploader{}
	s := newTestServer(uploader)
	writer := &fakeWriter{}
	conn := newConnection(writer)
	sessionID := startSession(t, s, conn, writer)
	before := len(writer.messages)

	s.dispatchText(context.Background(), conn, marshal(t, models.ClientMessage{
		Type:       models.MessageTypeMediaUpload,
		SessionID:  sessionID,
		QuestionID: "work_multi_1",
		MediaType:  models.MediaTypeVideo,
	}))
	if len(writer.messages) != before {
		t.Fatalf("media-upload announcement must be silent, got %+v", writer.messages[before:])
	}

	s.dispatchBinary(context.Background(), conn, []byte("frame-bytes"))

	if len(uploader.keys) != 1 {
		t.Fatalf("expected 1 upload, got %d", len(uploader.keys))
	}
	wantKey := fmt.Sprintf("video_%s_work_multi_1.mp4", sessionID)
	if uploader.keys[0] != wantKey {
		t.Errorf("expected key %q, got %q", wantKey, uploader.keys[0])
	}
	if string(uploader.data[0]) != "frame-bytes" {
		t.Errorf("frame bytes not passed through: %q", uploader.data[0])
	}

	session, _ := s.orch.GetSession(sessionID)
	r := session.Responses["work_multi_1"]
	if r == nil {
		t.Fatal("media response not recorded")
	}
	url, _ := r.MultimodalInsights[models.MediaTypeVideo].(string)
	if !strings.HasSuffix(url, wantKey) {
		t.Errorf("expected storage URL ending in %q, got %q", wantKey, url)
	}

	// The arm is consumed; a second frame without announcement is dropped.
	s.dispatchBinary(context.Background(), conn, []byte("stray"))
	if len(uploader.keys) != 1 {
		t.Errorf("unarmed binary frame must be dropped, got %d uploads", len(uploader.keys))
	}
}

func TestMediaUploadValidation(t *testing.T) {
	uploader := &fakeUploader{}
	s := newTestServer(uploader)
	writer := &fakeWriter{}
	conn := newConnection(writer)
	sessionID := startSession(t, s, conn, writer)
	before := len(writer.messages)

	cases := []struct {
		name string
		msg  models.ClientMessage
	}{
		{"unsupported media type", models.ClientMessage{
			Type: models.MessageTypeMediaUpload, SessionID: sessionID, QuestionID: "work_multi_1", MediaType: "image",
		}},
		{"missing question", models.ClientMessage{
			Type: models.MessageTypeMediaUpload, SessionID: sessionID, MediaType: models.MediaTypeAudio,
		}},
		{"missing session", models.ClientMessage{
			Type: models.MessageTypeMediaUpload, QuestionID: "work_multi_1", MediaType: models.MediaTypeAudio,
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s.dispatchText(context.Background(), conn, marshal(t, tc.msg))
			last := writer.messages[len(writer.messages)-1]
			envelope, ok := last.(models.ErrorEnvelope)
			if !ok {
				t.Fatalf("expected ErrorEnvelope, got %T", last)
			}
			if envelope.RequestID != handlerMediaUpload {
				t.Errorf("expected requestId %q, got %q", handlerMediaUpload, envelope.RequestID)
			}
			if conn.takeMedia() != nil {
				t.Error("rejected announcement must not arm the connection")
			}
		})
	}
	if len(writer.messages) != before+len(cases) {
		t.Errorf("expected %d error envelopes, got %d messages", len(cases), len(writer.messages)-before)
	}
}

func TestMediaUploadWithoutStorage(t *testing.T) {
	s := newTestServer(nil)
	writer := &fakeWriter{}
	conn := newConnection(writer)
	sessionID := startSession(t, s, conn, writer)

	s.dispatchText(context.Background(), conn, marshal(t, models.ClientMessage{
		Type:       models.MessageTypeMediaUpload,
		SessionID:  sessionID,
		QuestionID: "work_multi_1",
		MediaType:  models.MediaTypeAudio,
	}))

	last := writer.messages[len(writer.messages)-1]
	envelope, ok := last.(models.ErrorEnvelope)
	if !ok {
		t.Fatalf("expected ErrorEnvelope, got %T", last)
	}
	if envelope.RequestID != handlerMediaUpload {
		t.Errorf("expected requestId %q, got %q", handlerMediaUpload, envelope.RequestID)
	}
}

func TestBinaryFrameUploadFailure(t *testing.T) {
	uploader := &fakeUploader{err: errors.New("bucket unavailable")}
	s := newTestServer(uploader)
	writer := &fakeWriter{}
	conn := newConnection(writer)
	sessionID := startSession(t, s, conn, writer)

	s.dispatchText(context.Background(), conn, marshal(t, models.ClientMessage{
		Type:       models.MessageTypeMediaUpload,
		SessionID:  sessionID,
		QuestionID: "work_multi_1",
		MediaType:  models.MediaTypeAudio,
	}))
	s.dispatchBinary(context.Background(), conn, []byte("frame"))

	last := writer.messages[len(writer.messages)-1]
	envelope, ok := last.(models.ErrorEnvelope)
	if !ok {
		t.Fatalf("expected ErrorEnvelope, got %T", last)
	}
	if envelope.RequestID != handlerBinaryFrame {
		t.Errorf("expected requestId %q, got %q", handlerBinaryFrame, envelope.RequestID)
	}

	// Upload failed, so nothing may be merged into the session.
	session, _ := s.orch.GetSession(sessionID)
	if len(session.Responses) != 0 {
		t.Errorf("failed upload must not record a response: %+v", session.Responses)
	}
}

func TestCompleteAssessment(t *testing.T) {
	s := newTestServer(nil)
	writer := &fakeWriter{}
	conn := newConnection(writer)
	sessionID := startSession(t, s, conn, writer)

	s.dispatchText(context.Background(), conn, marshal(t, models.ClientMessage{
		Type:       models.MessageTypeAnswer,
		SessionID:  sessionID,
		QuestionID: "work_std_1",
		Response:   "I feel tired",
	}))
	s.dispatchText(context.Background(), conn, marshal(t, models.ClientMessage{
		Type:      models.MessageTypeAssessmentComplete,
		SessionID: sessionID,
	}))

	last := writer.messages[len(writer.messages)-1]
	result, ok := last.(models.ResultMessage)
	if !ok {
		t.Fatalf("expected ResultMessage, got %T", last)
	}
	if result.Type != models.MessageTypeResult {
		t.Errorf("expected type %q, got %q", models.MessageTypeResult, result.Type)
	}
	if result.SessionID != sessionID {
		t.Errorf("expected session %q, got %q", sessionID, result.SessionID)
	}
	if result.Score != 4.5 {
		t.Errorf("expected score 4.5, got %v", result.Score)
	}
	if result.Summary == "" {
		t.Error("expected non-empty summary")
	}
}

func TestCompleteAssessmentNoResponses(t *testing.T) {
	s := newTestServer(nil)
	writer := &fakeWriter{}
	conn := newConnection(writer)
	sessionID := startSession(t, s, conn, writer)

	s.dispatchText(context.Background(), conn, marshal(t, models.ClientMessage{
		Type:      models.MessageTypeAssessmentComplete,
		SessionID: sessionID,
	}))

	last := writer.messages[len(writer.messages)-1]
	envelope, ok := last.(models.ErrorEnvelope)
	if !ok {
		t.Fatalf("expected ErrorEnvelope, got %T", last)
	}
	if envelope.RequestID != handlerCompleteAssessment {
		t.Errorf("expected requestId %q, got %q", handlerCompleteAssessment, envelope.RequestID)
	}
}

func TestFHIRExportKeepsReplyIntact(t *testing.T) {
	uploader := &fakeUploader{}
	orch := orchestrator.New(store.NewInMemoryStore(), stubWorker{})
	s := NewServer(orch, uploader, fhir.NewService(uploader))
	writer := &fakeWriter{}
	conn := newConnection(writer)
	sessionID := startSession(t, s, conn, writer)

	s.dispatchText(context.Background(), conn, marshal(t, models.ClientMessage{
		Type:       models.MessageTypeAnswer,
		SessionID:  sessionID,
		QuestionID: "work_std_1",
		Response:   "I feel tired",
	}))
	s.dispatchText(context.Background(), conn, marshal(t, models.ClientMessage{
		Type:      models.MessageTypeAssessmentComplete,
		SessionID: sessionID,
	}))

	last := writer.messages[len(writer.messages)-1]
	if _, ok := last.(models.ResultMessage); !ok {
		t.Fatalf("expected ResultMessage, got %T", last)
	}
}
