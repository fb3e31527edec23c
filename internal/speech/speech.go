// Package speech abstracts speech capture and synthesis behind two small
// capabilities so the interview orchestrator stays portable across delivery
// mechanisms (local TTS vs server-delivered audio).
package speech

import (
	"context"
	"fmt"
	"sync"
)

// ErrorCode classifies adapter failures. Failures are reported as values,
// never as panics escaping the adapter boundary.
type ErrorCode string

const (
	CodePermissionDenied  ErrorCode = "permission_denied"
	CodeNoSpeechDetected  ErrorCode = "no_speech_detected"
	CodeDeviceUnavailable ErrorCode = "device_unavailable"
	CodeSynthesisFailed   ErrorCode = "synthesis_failed"
)

// Error is a typed adapter failure.
type Error struct {
	Code   ErrorCode
	Detail string
}

func (e *Error) Error() string { return fmt.Sprintf("speech: %s: %s", e.Code, e.Detail) }

// Errorf builds a typed adapter error.
func Errorf(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Detail: fmt.Sprintf(format, args...)}
}

// Result is one recognition update. Partial results may still change; a
// final result is committed. Err, when set, is a terminal failure for the
// current capture and the stream ends after it.
type Result struct {
	Text  string
	Final bool
	Err   *Error
}

// Synthesizer speaks text aloud. Speak blocks until the utterance completes,
// is cancelled, or fails; it returns even on synthesis failure so the caller
// never hangs on a dead voice.
type Synthesizer interface {
	Speak(ctx context.Context, text string) error
	// Cancel stops the in-progress utterance, if any. Safe to call anytime.
	Cancel()
}

// Recognizer captures microphone speech. StartCapture yields a fresh result
// stream for one listening turn; StopCapture is idempotent and safe to call
// when not capturing.
type Recognizer interface {
	StartCapture(ctx context.Context) (<-chan Result, error)
	StopCapture()
}

// PCMSink consumes 48kHz PCM bytes and performs delivery (e.g. paced frames
// to an output device). Implementations buffer internally.
type PCMSink interface {
	WritePCM(pcm []byte)
	FlushTail()
	// Reset drops queued audio immediately (used for barge-in).
	Reset()
}

// IO combines a synthesizer and recognizer into the adapter the orchestrator
// consumes. It enforces two rules: at most one utterance plays at a time,
// and starting capture cancels in-progress speech so the user can interrupt
// the interviewer.
type IO struct {
	synth Synthesizer
	recog Recognizer

	mu       sync.Mutex
	speaking bool
}

// NewIO wires a synthesizer and recognizer together.
func NewIO(s Synthesizer, r Recognizer) *IO {
	return &IO{synth: s, recog: r}
}

// Speak cancels any playing utterance, then speaks text to completion.
func (a *IO) Speak(ctx context.Context, text string) error {
	a.mu.Lock()
	if a.speaking {
		a.synth.Cancel()
	}
	a.speaking = true
	a.mu.Unlock()

	err := a.synth.Speak(ctx, text)

	a.mu.Lock()
	a.speaking = false
	a.mu.Unlock()
	return err
}

// Cancel stops the current utterance, if any.
func (a *IO) Cancel() { a.synth.Cancel() }

// StartCapture begins a listening turn, barging in on any current speech.
func (a *IO) StartCapture(ctx context.Context) (<-chan Result, error) {
	a.synth.Cancel()
	return a.recog.StartCapture(ctx)
}

// StopCapture ends the listening turn. Idempotent.
func (a *IO) StopCapture() { a.recog.StopCapture() }
