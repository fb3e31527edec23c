package speech

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/pkg/api/speak/v1/websocket/interfaces"
	clientinterfaces "github.com/deepgram/deepgram-go-sdk/pkg/client/interfaces/v1"
	"github.com/deepgram/deepgram-go-sdk/pkg/client/speak"
)

// DeepgramSynthesizer speaks text through Deepgram's streaming TTS,
// delivering 48kHz linear16 PCM into a sink. At most one utterance is in
// flight; starting a new one cancels the previous.
type DeepgramSynthesizer struct {
	apiKey     string
	model      string
	sampleRate int
	encoding   string
	sink       PCMSink

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewDeepgramSynthesizer constructs a synthesizer. An empty model selects a
// default Aura voice.
func NewDeepgramSynthesizer(apiKey, model string, sink PCMSink) *DeepgramSynthesizer {
	if model == "" {
		model = "aura-2-thalia-en"
	}
	return &DeepgramSynthesizer{
		apiKey:     apiKey,
		model:      model,
		sampleRate: 48000,
		encoding:   "linear16",
		sink:       sink,
	}
}

// Speak synthesizes text and blocks until playback audio has been fully
// streamed into the sink, the context is cancelled, or synthesis fails.
// Failures come back as a typed *Error; the call always returns.
func (d *DeepgramSynthesizer) Speak(ctx context.Context, text string) error {
	d.Cancel()

	ctx, cancel := context.WithCancel(ctx)
	d.mu.Lock()
	d.cancel = cancel
	d.mu.Unlock()
	defer func() {
		cancel()
		d.mu.Lock()
		if d.cancel != nil {
			d.cancel = nil
		}
		d.mu.Unlock()
	}()

	if text == "" {
		return nil
	}
	if d.apiKey == "" {
		return Errorf(CodeSynthesisFailed, "deepgram API key missing")
	}

	options := &clientinterfaces.WSSpeakOptions{
		Model:      d.model,
		Encoding:   d.encoding,
		SampleRate: d.sampleRate,
	}

	var lastRecvUnix int64
	var seenAudio int32

	cb := &speakCallback{onBinary: func(data []byte) error {
		if len(data) == 0 {
			return nil
		}
		atomic.StoreInt64(&lastRecvUnix, time.Now().UnixNano())
		atomic.StoreInt32(&seenAudio, 1)
		if ctx.Err() == nil {
			b := make([]byte, len(data))
			copy(b, data)
			d.sink.WritePCM(b)
		}
		return nil
	}}

	dg, err := speak.NewWSUsingCallback(ctx, d.apiKey, &clientinterfaces.ClientOptions{}, options, cb)
	if err != nil {
		return Errorf(CodeSynthesisFailed, "create ws client: %v", err)
	}

	var stopOnce sync.Once
	stopClient := func() { stopOnce.Do(dg.Stop) }
	defer stopClient()

	if ok := dg.Connect(); !ok {
		return Errorf(CodeSynthesisFailed, "deepgram connect failed")
	}
	if err := dg.SpeakWithText(text); err != nil {
		return Errorf(CodeSynthesisFailed, "speak text: %v", err)
	}
	if err := dg.Flush(); err != nil {
		log.Printf("deepgram: flush error: %v", err)
	}

	// The speak socket has no explicit end-of-audio signal we can wait on, so
	// treat a quiet window after the first audio as completion, with a hard
	// deadline as backstop.
	idleWindow := 400 * time.Millisecond
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.Now().Add(30 * time.Second)
	for {
		select {
		case <-ctx.Done():
			d.sink.Reset()
			return nil
		case <-ticker.C:
			if atomic.LoadInt32(&seenAudio) == 1 {
				last := time.Unix(0, atomic.LoadInt64(&lastRecvUnix))
				if time.Since(last) > idleWindow {
					d.sink.FlushTail()
					return nil
				}
			}
			if time.Now().After(deadline) {
				if atomic.LoadInt32(&seenAudio) == 0 {
					return Errorf(CodeSynthesisFailed, "no audio received before deadline")
				}
				d.sink.FlushTail()
				return nil
			}
		}
	}
}

// Cancel stops the in-progress utterance and drops queued audio.
func (d *DeepgramSynthesizer) Cancel() {
	d.mu.Lock()
	cancel := d.cancel
	d.cancel = nil
	d.mu.Unlock()
	if cancel != nil {
		cancel()
		d.sink.Reset()
	}
}

type speakCallback struct{ onBinary func([]byte) error }

func (s *speakCallback) Open(*msginterfaces.OpenResponse) error         { return nil }
func (s *speakCallback) Metadata(*msginterfaces.MetadataResponse) error { return nil }
func (s *speakCallback) Flush(*msginterfaces.FlushedResponse) error     { return nil }
func (s *speakCallback) Clear(*msginterfaces.ClearedResponse) error     { return nil }
func (s *speakCallback) Close(*msginterfaces.CloseResponse) error       { return nil }
func (s *speakCallback) Warning(*msginterfaces.WarningResponse) error   { return nil }
func (s *speakCallback) Error(*msginterfaces.ErrorResponse) error       { return nil }
func (s *speakCallback) UnhandledEvent([]byte) error                    { return nil }
func (s *speakCallback) Binary(byMsg []byte) error {
	if s.onBinary != nil {
		return s.onBinary(byMsg)
	}
	return nil
}
