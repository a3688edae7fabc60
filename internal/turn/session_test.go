package turn_test

import (
	"bytes"
	"testing"

	"github.com/quastler/openfloor/internal/turn"
)

func TestRecordingSessionConcatenatesInOrder(t *testing.T) {
	t.Parallel()

	s := turn.NewRecordingSession("audio/webm")
	s.Append([]byte("abc"))
	s.Append(nil)
	s.Append([]byte("def"))

	buf, ok := s.Stop()
	if !ok {
		t.Fatal("first Stop() reported not ok")
	}
	if !bytes.Equal(buf, []byte("abcdef")) {
		t.Fatalf("buffer = %q, want %q", buf, "abcdef")
	}
	if s.ContentType() != "audio/webm" {
		t.Fatalf("ContentType() = %q", s.ContentType())
	}
}

func TestRecordingSessionStopIsIdempotent(t *testing.T) {
	t.Parallel()

	s := turn.NewRecordingSession("audio/pcm")
	s.Append([]byte("abc"))

	if _, ok := s.Stop(); !ok {
		t.Fatal("first Stop() reported not ok")
	}
	if buf, ok := s.Stop(); ok || buf != nil {
		t.Fatalf("second Stop() = (%v, %v), want (nil, false)", buf, ok)
	}
	if s.Open() {
		t.Fatal("session still open after Stop")
	}
}

func TestRecordingSessionDropsAppendsAfterStop(t *testing.T) {
	t.Parallel()

	s := turn.NewRecordingSession("audio/pcm")
	s.Stop()
	s.Append([]byte("late"))
	if buf, ok := s.Stop(); ok || buf != nil {
		t.Fatalf("Stop() after late append = (%v, %v), want (nil, false)", buf, ok)
	}
}
