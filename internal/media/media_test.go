package media

import (
	"context"
	"testing"
)

func TestStorageKeys(t *testing.T) {
	if got := AudioKey("s1", "work_multi_1"); got != "audio_s1_work_multi_1.mp3" {
		t.Errorf("unexpected audio key %q", got)
	}
	if got := VideoKey("s1", "work_multi_1"); got != "video_s1_work_multi_1.mp4" {
		t.Errorf("unexpected video key %q", got)
	}
}

func TestNewS3UploaderRequiresBucket(t *testing.T) {
	if _, err := NewS3Uploader(context.Background()); err == nil {
		t.Error("expected error when no bucket is configured")
	}
}
