package turn

// RecordingSession accumulates captured audio chunks for one utterance in
// arrival order and finalizes them into a single buffer. Chunk boundaries
// carry no meaning; nothing is reordered or deduplicated. Not safe for
// concurrent use; the Supervisor touches it from its single execution
// context only.
type RecordingSession struct {
	chunks      [][]byte
	contentType string
	size        int
	open        bool
}

// NewRecordingSession opens an empty session for chunks of the given
// content type.
func NewRecordingSession(contentType string) *RecordingSession {
	return &RecordingSession{contentType: contentType, open: true}
}

// Append adds one chunk. Appends after Stop are dropped.
func (s *RecordingSession) Append(chunk []byte) {
	if !s.open || len(chunk) == 0 {
		return
	}
	s.chunks = append(s.chunks, chunk)
	s.size += len(chunk)
}

// Open reports whether the session is still accepting chunks.
func (s *RecordingSession) Open() bool { return s.open }

// ContentType returns the content type the session was opened with.
func (s *RecordingSession) ContentType() string { return s.contentType }

// Stop finalizes the session, concatenating all chunks into one buffer.
// It is idempotent: the first call returns the buffer and true, every
// later call returns nil and false.
func (s *RecordingSession) Stop() ([]byte, bool) {
	if !s.open {
		return nil, false
	}
	s.open = false
	buf := make([]byte, 0, s.size)
	for _, c := range s.chunks {
		buf = append(buf, c...)
	}
	s.chunks = nil
	return buf, true
}
