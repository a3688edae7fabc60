package turn

// Recording is one finalized utterance: the concatenated capture chunks
// collected between recording start and stop.
type Recording struct {
	Data        []byte
	ContentType string

	// Interruption is true when the recording was opened by barging in on
	// active playback rather than by the speech debounce.
	Interruption bool
}

// Outcome is the result handle passed to OnProcessingComplete after the
// utterance pipeline has run.
type Outcome struct {
	Transcript string
	Reply      string
	Audio      []byte
	AudioType  string

	// NoSpeech is true when transcription returned nothing usable (silence,
	// or playback echo filtered out). The reply fields are empty in that
	// case. This is a normal outcome, not an error.
	NoSpeech bool
}

// Events is the fixed set of callback slots the conversation core exposes.
// Nil slots are allowed and treated as no-ops. Callbacks fire on the core's
// own goroutines after internal state has settled, so a handler may call
// back into the Supervisor (for example stopping playback from
// OnInterruption).
type Events struct {
	// OnSpeechDetected fires when a monitored frame first classifies as
	// speech, before the debounce confirms it.
	OnSpeechDetected func()

	// OnRecordingStart fires when an utterance recording opens.
	OnRecordingStart func(interruption bool)

	// OnRecordingStop delivers the finalized utterance.
	OnRecordingStop func(rec Recording)

	// OnSilenceDetected fires when sustained silence ends a recording,
	// immediately before OnRecordingStop.
	OnSilenceDetected func()

	// OnInterruption fires when speech is detected during playback. The
	// handler is expected to halt playback and call NotifyPlaybackStopped.
	OnInterruption func()

	// OnProcessingStart and OnProcessingComplete bracket the downstream
	// transcribe/reply/synthesize pipeline for one utterance.
	OnProcessingStart    func()
	OnProcessingComplete func(out Outcome)

	// OnError reports initialization failures and downstream service
	// failures. The core recovers locally; nothing terminates the process.
	OnError func(msg string)
}

// Normalized returns a copy with every nil slot replaced by a no-op, so
// firing sites need no nil checks.
func (e Events) Normalized() Events {
	if e.OnSpeechDetected == nil {
		e.OnSpeechDetected = func() {}
	}
	if e.OnRecordingStart == nil {
		e.OnRecordingStart = func(bool) {}
	}
	if e.OnRecordingStop == nil {
		e.OnRecordingStop = func(Recording) {}
	}
	if e.OnSilenceDetected == nil {
		e.OnSilenceDetected = func() {}
	}
	if e.OnInterruption == nil {
		e.OnInterruption = func() {}
	}
	if e.OnProcessingStart == nil {
		e.OnProcessingStart = func() {}
	}
	if e.OnProcessingComplete == nil {
		e.OnProcessingComplete = func(Outcome) {}
	}
	if e.OnError == nil {
		e.OnError = func(string) {}
	}
	return e
}
