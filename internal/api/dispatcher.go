// Package api provides the WebSocket server and message dispatcher.
//
// This file implements per-connection message dispatch. Handler failures are
// reported as error envelopes on the same connection; they never terminate
// the connection or the process.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/maremivazquez1/DigitalTherapyAssistant-sub001/internal/media"
	"github.com/maremivazquez1/DigitalTherapyAssistant-sub001/internal/models"
	"github.com/maremivazquez1/DigitalTherapyAssistant-sub001/internal/util"
)

// Handler names used as the requestId of error envelopes.
const (
	handlerStartBurnout       = "startBurnoutSession"
	handlerUserAnswer         = "handleUserAnswer"
	handlerMediaUpload        = "handleMediaUpload"
	handlerBinaryFrame        = "handleBinaryFrame"
	handlerCompleteAssessment = "handleCompleteAssessment"
)

// messageWriter is the outbound half of a connection. *websocket.Conn
// satisfies it; tests substitute a recorder.
type messageWriter interface {
	WriteJSON(v any) error
}

// mediaContext correlates the next binary frame on a connection with a
// session and question, armed by a preceding media-upload message.
type mediaContext struct {
	sessionID  string
	questionID string
	mediaType  string
}

// connection is the per-socket dispatch state.
type connection struct {
	id     string
	writer messageWriter

	mu      sync.Mutex
	pending *mediaContext
}

func newConnection(writer messageWriter) *connection {
	return &connection{id: util.GenerateConnectionID(), writer: writer}
}

// writeJSON serializes an outbound message. The mutex guards against
// interleaved writes from the handler goroutine and async completions.
func (c *connection) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writer.WriteJSON(v)
}

// armMedia stores the correlation for the next binary frame, replacing any
// previous unconsumed arm.
func (c *connection) armMedia(mc mediaContext) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = &mc
}

// takeMedia returns and clears the armed correlation.
func (c *connection) takeMedia() *mediaContext {
	c.mu.Lock()
	defer c.mu.Unlock()
	mc := c.pending
	c.pending = nil
	return mc
}

// sendError emits the uniform error envelope. Failures to write are logged,
// never propagated: an unreachable client must not take the handler down.
func (c *connection) sendError(handlerName string, err error) {
	slog.Error("connection.sendError: handler failed", "connection_id", c.id, "handler", handlerName, "error", err)
	envelope := models.ErrorEnvelope{RequestID: handlerName, Error: err.Error()}
	if writeErr := c.writeJSON(envelope); writeErr != nil {
		slog.Error("connection.sendError: failed to write error envelope", "connection_id", c.id, "error", writeErr)
	}
}

// wsHandler upgrades the HTTP request and runs the connection's read loop.
func (s *Server) wsHandler(w http.ResponseWriter, r *http.Request) {
	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Server.wsHandler: upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}
	defer wsConn.Close()

	conn := newConnection(wsConn)
	slog.Info("Server.wsHandler: connection established", "connection_id", conn.id, "remote", r.RemoteAddr)

	welcome := models.SystemMessage{Type: models.MessageTypeSystem, Message: "Burnout session connected successfully"}
	if err := conn.writeJSON(welcome); err != nil {
		slog.Warn("Server.wsHandler: failed to send welcome", "connection_id", conn.id, "error", err)
		return
	}

	ctx := r.Context()
	for {
		messageType, data, err := wsConn.ReadMessage()
		if err != nil {
			slog.Info("Server.wsHandler: connection closed", "connection_id", conn.id, "reason", err)
			return
		}
		switch messageType {
		case websocket.TextMessage:
			s.dispatchText(ctx, conn, data)
		case websocket.BinaryMessage:
			s.dispatchBinary(ctx, conn, data)
		default:
			slog.Debug("Server.wsHandler: ignoring control frame", "connection_id", conn.id, "message_type", messageType)
		}
	}
}

// dispatchText routes one structured message to its handler. Unrecognized
// types are logged and ignored.
func (s *Server) dispatchText(ctx context.Context, conn *connection, data []byte) {
	var msg models.ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.Warn("Server.dispatchText: invalid JSON message", "connection_id", conn.id, "error", err)
		return
	}

	slog.Debug("Server.dispatchText: dispatching message", "connection_id", conn.id, "type", msg.Type)
	switch msg.Type {
	case models.MessageTypeStartBurnout:
		if err := s.startBurnoutSession(ctx, conn, msg); err != nil {
			conn.sendError(handlerStartBurnout, err)
		}
	case models.MessageTypeAnswer:
		if err := s.handleUserAnswer(ctx, conn, msg); err != nil {
			conn.sendError(handlerUserAnswer, err)
		}
	case models.MessageTypeMediaUpload:
		if err := s.handleMediaUpload(ctx, conn, msg); err != nil {
			conn.sendError(handlerMediaUpload, err)
		}
	case models.MessageTypeAssessmentComplete:
		if err := s.handleCompleteAssessment(ctx, conn, msg); err != nil {
			conn.sendError(handlerCompleteAssessment, err)
		}
	default:
		slog.Warn("Server.dispatchText: unhandled message type", "connection_id", conn.id, "type", msg.Type)
	}
}

// startBurnoutSession creates a session and returns the generated questions.
func (s *Server) startBurnoutSession(ctx context.Context, conn *connection, msg models.ClientMessage) error {
	session, err := s.orch.CreateAssessmentSession(ctx, msg.UserID)
	if err != nil {
		return err
	}

	reply := models.QuestionsMessage{
		Type:      models.MessageTypeQuestions,
		SessionID: session.SessionID,
		Questions: session.Assessment.Questions,
	}
	if err := conn.writeJSON(reply); err != nil {
		return fmt.Errorf("failed to send questions: %w", err)
	}
	slog.Info("Server.startBurnoutSession: session started", "connection_id", conn.id, "session_id", session.SessionID, "user_id", msg.UserID)
	return nil
}

// handleUserAnswer records a text answer. Success is silent.
func (s *Server) handleUserAnswer(ctx context.Context, conn *connection, msg models.ClientMessage) error {
	return s.orch.RecordResponse(ctx, msg.SessionID, msg.QuestionID, msg.Response, nil)
}

// handleMediaUpload arms the connection so the next binary frame is uploaded
// and merged for the announced session/question.
func (s *Server) handleMediaUpload(ctx context.Context, conn *connection, msg models.ClientMessage) error {
	if s.uploader == nil {
		return fmt.Errorf("media storage not configured")
	}
	if msg.MediaType != models.MediaTypeAudio && msg.MediaType != models.MediaTypeVideo {
		return fmt.Errorf("unsupported media type %q", msg.MediaType)
	}
	if msg.SessionID == "" || msg.QuestionID == "" {
		return fmt.Errorf("sessionId and questionId are required for media upload")
	}

	conn.armMedia(mediaContext{sessionID: msg.SessionID, questionID: msg.QuestionID, mediaType: msg.MediaType})
	slog.Debug("Server.handleMediaUpload: connection armed for media frame",
		"connection_id", conn.id, "session_id", msg.SessionID, "question_id", msg.QuestionID, "media_type", msg.MediaType)
	return nil
}

// dispatchBinary uploads an armed media frame and merges the storage
// reference into the session. Frames with no prior media-upload announcement
// are dropped.
func (s *Server) dispatchBinary(ctx context.Context, conn *connection, data []byte) {
	mc := conn.takeMedia()
	if mc == nil {
		slog.Warn("Server.dispatchBinary: binary frame without media-upload announcement, dropping", "connection_id", conn.id, "size", len(data))
		return
	}
	if err := s.handleBinaryFrame(ctx, *mc, data); err != nil {
		conn.sendError(handlerBinaryFrame, err)
	}
}

// handleBinaryFrame stores the frame and records the reference. An upload
// failure means no response merge occurs.
func (s *Server) handleBinaryFrame(ctx context.Context, mc mediaContext, data []byte) error {
	var key, contentType string
	switch mc.mediaType {
	case models.MediaTypeAudio:
		key = media.AudioKey(mc.sessionID, mc.questionID)
		contentType = media.ContentTypeAudio
	case models.MediaTypeVideo:
		key = media.VideoKey(mc.sessionID, mc.questionID)
		contentType = media.ContentTypeVideo
	default:
		return fmt.Errorf("unsupported media type %q", mc.mediaType)
	}

	url, err := s.uploader.Upload(ctx, key, contentType, data)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrUploadFailed, err)
	}

	if err := s.orch.RecordResponse(ctx, mc.sessionID, mc.questionID, "", map[string]any{mc.mediaType: url}); err != nil {
		return err
	}
	slog.Info("Server.handleBinaryFrame: media recorded", "session_id", mc.sessionID, "question_id", mc.questionID, "media_type", mc.mediaType, "url", url)
	return nil
}

// handleCompleteAssessment runs the completion pipeline and returns the
// result. Clinical-record export, when configured, runs asynchronously and
// never affects the client reply.
func (s *Server) handleCompleteAssessment(ctx context.Context, conn *connection, msg models.ClientMessage) error {
	result, err := s.orch.CompleteAssessment(ctx, msg.SessionID)
	if err != nil {
		return err
	}

	reply := models.ResultMessage{
		Type:      models.MessageTypeResult,
		SessionID: result.SessionID,
		Score:     result.Score.OverallScore,
		Summary:   result.Summary,
	}
	if err := conn.writeJSON(reply); err != nil {
		return fmt.Errorf("failed to send result: %w", err)
	}

	if s.fhirService != nil {
		go func(result *models.AssessmentResult) {
			// Export outlives the triggering request.
			if _, err := s.fhirService.ProcessAndStoreResult(context.Background(), result); err != nil {
				slog.Error("Server.handleCompleteAssessment: FHIR export failed", "error", err, "session_id", result.SessionID)
			}
		}(result)
	}

	slog.Info("Server.handleCompleteAssessment: assessment completed", "connection_id", conn.id, "session_id", result.SessionID, "score", result.Score.OverallScore)
	return nil
}
