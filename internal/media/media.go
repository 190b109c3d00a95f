// Package media stores uploaded audio/video frames in object storage and
// returns retrievable references for the response recorder.
package media

import (
	"context"
	"fmt"
)

// Uploader is the object storage contract used by the binary-frame handlers.
type Uploader interface {
	// Upload stores data under key with the given content type and returns a
	// retrievable reference URL.
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// Content types for assessment media frames.
const (
	ContentTypeAudio = "audio/mpeg"
	ContentTypeVideo = "video/mp4"
	ContentTypeJSON  = "application/json"
)

// AudioKey builds the storage key for an audio response frame.
func AudioKey(sessionID, questionID string) string {
	return fmt.Sprintf("audio_%s_%s.mp3", sessionID, questionID)
}

// VideoKey builds the storage key for a video response frame.
func VideoKey(sessionID, questionID string) string {
	return fmt.Sprintf("video_%s_%s.mp4", sessionID, questionID)
}
