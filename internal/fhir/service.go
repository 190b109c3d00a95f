// Package fhir exports completed assessment results as FHIR documents.
//
// This file implements the export service that converts, validates, and
// stores the document.
package fhir

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/maremivazquez1/DigitalTherapyAssistant-sub001/internal/media"
	"github.com/maremivazquez1/DigitalTherapyAssistant-sub001/internal/models"
)

// Service converts assessment results to FHIR and stores them in object
// storage. Export is a one-way sink: the assessment pipeline never depends on
// its success.
type Service struct {
	uploader media.Uploader
}

// NewService creates a FHIR export service backed by the given uploader.
func NewService(uploader media.Uploader) *Service {
	slog.Debug("fhir.NewService: export service created")
	return &Service{uploader: uploader}
}

// ProcessAndStoreResult converts the result to a QuestionnaireResponse,
// validates it, and uploads the JSON document. Returns the storage reference.
func (s *Service) ProcessAndStoreResult(ctx context.Context, result *models.AssessmentResult) (string, error) {
	slog.Info("Service.ProcessAndStoreResult: converting result to FHIR", "session_id", result.SessionID)

	qr := ConvertResult(result)
	if err := qr.Validate(); err != nil {
		slog.Error("Service.ProcessAndStoreResult: FHIR validation failed", "error", err, "session_id", result.SessionID)
		return "", fmt.Errorf("FHIR validation failed: %w", err)
	}

	data, err := json.Marshal(qr)
	if err != nil {
		slog.Error("Service.ProcessAndStoreResult: FHIR marshal failed", "error", err, "session_id", result.SessionID)
		return "", fmt.Errorf("failed to marshal FHIR document: %w", err)
	}

	key := fmt.Sprintf("fhir/%s.json", result.SessionID)
	url, err := s.uploader.Upload(ctx, key, media.ContentTypeJSON, data)
	if err != nil {
		slog.Error("Service.ProcessAndStoreResult: FHIR upload failed", "error", err, "session_id", result.SessionID)
		return "", fmt.Errorf("failed to store FHIR document: %w", err)
	}

	slog.Info("Service.ProcessAndStoreResult: FHIR document stored", "session_id", result.SessionID, "url", url)
	return url, nil
}
