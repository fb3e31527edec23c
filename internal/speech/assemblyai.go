package speech

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"log"
	"math"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/gorilla/websocket"
)

// silenceThreshold is the base inactivity window required before an
// utterance is considered complete. Conservative so the candidate is not cut
// off mid-sentence.
const silenceThreshold = 700 * time.Millisecond

// continuationExtension is added when the last word suggests the speaker
// will continue (e.g. "and", "if").
const continuationExtension = 1200 * time.Millisecond

// stabilizationGrace absorbs late ASR updates after the silence window.
const stabilizationGrace = 250 * time.Millisecond

// AssemblyAIRecognizer captures speech through AssemblyAI's realtime
// streaming API. Each StartCapture opens a fresh streaming session for one
// listening turn; partial transcripts stream as non-final results and a
// silence-detected utterance end emits the final result.
type AssemblyAIRecognizer struct {
	apiKey string

	mu     sync.Mutex
	active *captureSession
}

// NewAssemblyAIRecognizer constructs a recognizer.
func NewAssemblyAIRecognizer(apiKey string) *AssemblyAIRecognizer {
	return &AssemblyAIRecognizer{apiKey: apiKey}
}

// StartCapture opens a streaming session and returns its result stream. Any
// previous session is stopped first.
func (r *AssemblyAIRecognizer) StartCapture(ctx context.Context) (<-chan Result, error) {
	if r.apiKey == "" {
		return nil, Errorf(CodeDeviceUnavailable, "AssemblyAI API key missing")
	}

	r.mu.Lock()
	prev := r.active
	r.active = nil
	r.mu.Unlock()
	if prev != nil {
		prev.close()
	}

	s := newCaptureSession(r.apiKey)
	if err := s.connect(ctx); err != nil {
		return nil, Errorf(CodeDeviceUnavailable, "connect: %v", err)
	}

	r.mu.Lock()
	r.active = s
	r.mu.Unlock()
	return s.results, nil
}

// StopCapture ends the active session. Idempotent; safe when not capturing.
func (r *AssemblyAIRecognizer) StopCapture() {
	r.mu.Lock()
	s := r.active
	r.active = nil
	r.mu.Unlock()
	if s != nil {
		s.close()
	}
}

// FeedPCM16KLE forwards captured microphone audio (16kHz mono PCM16LE) into
// the active session. No-op while not capturing.
func (r *AssemblyAIRecognizer) FeedPCM16KLE(pcm []byte) {
	r.mu.Lock()
	s := r.active
	r.mu.Unlock()
	if s != nil {
		s.sendAudio(pcm)
	}
}

// captureSession is one AssemblyAI streaming connection.
type captureSession struct {
	apiKey    string
	conn      *websocket.Conn
	results   chan Result
	audioData chan []byte
	stopCh    chan struct{}
	stopOnce  sync.Once

	accMu                   sync.Mutex
	latestFullTranscript    string
	committedFullTranscript string
	lastUpdateTime          time.Time
	lastVoiceTime           time.Time
	silenceTimer            *time.Timer
	finalized               bool
}

func newCaptureSession(apiKey string) *captureSession {
	return &captureSession{
		apiKey:    apiKey,
		results:   make(chan Result, 100),
		audioData: make(chan []byte, 1000),
		stopCh:    make(chan struct{}),
	}
}

// AssemblyAI wire messages.
type aaiBeginMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	ExpiresAt int64  `json:"expires_at"`
}

type aaiTurnMessage struct {
	Type       string `json:"type"`
	Transcript string `json:"transcript"`
}

type aaiErrorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func (s *captureSession) connect(ctx context.Context) error {
	params := url.Values{}
	params.Set("sample_rate", "16000")
	params.Set("format_turns", "false")
	params.Set("encoding", "pcm_s16le")
	wsURL := "wss://streaming.assemblyai.com/v3/ws?" + params.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, wsURL, map[string][]string{
		"Authorization": {s.apiKey},
	})
	if err != nil {
		if resp != nil {
			log.Printf("speech: AssemblyAI dial failed with status %d", resp.StatusCode)
		}
		return err
	}

	s.conn = conn
	now := time.Now()
	s.accMu.Lock()
	s.lastUpdateTime = now
	s.lastVoiceTime = now
	s.accMu.Unlock()

	go s.readLoop()
	go s.writeLoop()
	return nil
}

func (s *captureSession) sendAudio(pcm []byte) {
	select {
	case <-s.stopCh:
		return
	default:
	}
	s.detectVoiceActivity(pcm)
	select {
	case s.audioData <- pcm:
	default:
		log.Println("speech: audio buffer full, dropping packet")
	}
}

// detectVoiceActivity updates lastVoiceTime when the PCM buffer carries
// voice energy above an RMS threshold.
func (s *captureSession) detectVoiceActivity(pcm []byte) {
	const minSamples = 160 // 10ms at 16kHz
	if len(pcm) < minSamples*2 {
		return
	}
	step := 2
	if len(pcm) > 3200 {
		step = 4
	}
	var sumSquares float64
	count := 0
	for i := 0; i+1 < len(pcm); i += 2 * step {
		v := int16(binary.LittleEndian.Uint16(pcm[i : i+2]))
		sumSquares += float64(v) * float64(v)
		count++
	}
	if count == 0 {
		return
	}
	const voiceRMS = 250.0
	if math.Sqrt(sumSquares/float64(count)) >= voiceRMS {
		s.accMu.Lock()
		s.lastVoiceTime = time.Now()
		s.accMu.Unlock()
	}
}

func (s *captureSession) close() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.accMu.Lock()
		if s.silenceTimer != nil {
			_ = s.silenceTimer.Stop()
			s.silenceTimer = nil
		}
		s.accMu.Unlock()
		if s.conn != nil {
			_ = s.conn.WriteJSON(map[string]string{"type": "Terminate"})
			_ = s.conn.Close()
		}
		s.flushPendingDelta()
		close(s.results)
	})
}

func (s *captureSession) readLoop() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("speech: recovered in readLoop: %v", r)
		}
	}()
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.stopCh:
			default:
				log.Printf("speech: AssemblyAI read error: %v", err)
			}
			return
		}
		s.processMessage(message)
	}
}

func (s *captureSession) writeLoop() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("speech: recovered in writeLoop: %v", r)
		}
	}()
	for {
		select {
		case <-s.stopCh:
			return
		case pcm := <-s.audioData:
			if err := s.conn.WriteMessage(websocket.BinaryMessage, pcm); err != nil {
				log.Printf("speech: AssemblyAI write error: %v", err)
				return
			}
		}
	}
}

func (s *captureSession) processMessage(message []byte) {
	var base struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(message, &base); err != nil {
		log.Printf("speech: unmarshal message: %v", err)
		return
	}
	switch base.Type {
	case "Begin":
		var msg aaiBeginMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			return
		}
		log.Printf("speech: AssemblyAI session began id=%s", msg.ID)
	case "Turn":
		var msg aaiTurnMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			return
		}
		if msg.Transcript == "" {
			return
		}
		s.deliver(Result{Text: msg.Transcript, Final: false})
		s.accMu.Lock()
		s.latestFullTranscript = msg.Transcript
		s.lastUpdateTime = time.Now()
		if s.silenceTimer == nil {
			s.silenceTimer = time.AfterFunc(silenceThreshold, s.finalizeDueToSilence)
		} else {
			_ = s.silenceTimer.Stop()
			s.silenceTimer.Reset(silenceThreshold)
		}
		s.accMu.Unlock()
	case "Termination":
		s.flushPendingDelta()
	case "Error":
		var msg aaiErrorMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			return
		}
		log.Printf("speech: AssemblyAI error: %s", msg.Error)
		s.deliver(Result{Err: Errorf(CodeDeviceUnavailable, "%s", msg.Error)})
	default:
		log.Printf("speech: unknown AssemblyAI message type %q", base.Type)
	}
}

// finalizeDueToSilence fires after the silence window and emits the delta
// since the last committed transcript, extending the window when the last
// word suggests the speaker will continue.
func (s *captureSession) finalizeDueToSilence() {
	defer func() {
		// close() may shut the results channel while a finalize is mid-flight
		if r := recover(); r != nil {
			log.Printf("speech: recovered in finalize: %v", r)
		}
	}()
	select {
	case <-s.stopCh:
		return
	default:
	}

	s.accMu.Lock()
	now := time.Now()
	threshold := silenceThreshold
	if isContinuationLikely(s.latestFullTranscript) {
		threshold += continuationExtension
	}
	sinceText := now.Sub(s.lastUpdateTime)
	sinceVoice := now.Sub(s.lastVoiceTime)
	if sinceText < threshold || sinceVoice < threshold {
		wait := threshold
		if rem := threshold - sinceText; sinceText < threshold && rem < wait {
			wait = rem
		}
		if rem := threshold - sinceVoice; sinceVoice < threshold && rem < wait {
			wait = rem
		}
		if wait < 10*time.Millisecond {
			wait = 10 * time.Millisecond
		}
		s.rescheduleLocked(wait)
		s.accMu.Unlock()
		return
	}
	lastUpdateAt := s.lastUpdateTime
	s.accMu.Unlock()

	time.Sleep(stabilizationGrace)

	s.accMu.Lock()
	if s.finalized {
		s.accMu.Unlock()
		return
	}
	if s.lastUpdateTime.After(lastUpdateAt) {
		// A late update arrived during the grace window; push the timer out.
		threshold2 := silenceThreshold
		if isContinuationLikely(s.latestFullTranscript) {
			threshold2 += continuationExtension
		}
		wait := threshold2
		if rem := threshold2 - time.Since(s.lastUpdateTime); rem > 10*time.Millisecond && rem < wait {
			wait = rem
		}
		s.rescheduleLocked(wait)
		s.accMu.Unlock()
		return
	}
	delta := s.commitDeltaLocked()
	s.accMu.Unlock()

	if delta == "" {
		return
	}
	select {
	case <-s.stopCh:
	case s.results <- Result{Text: delta, Final: true}:
	}
}

func (s *captureSession) rescheduleLocked(wait time.Duration) {
	if s.silenceTimer == nil {
		s.silenceTimer = time.AfterFunc(wait, s.finalizeDueToSilence)
	} else {
		_ = s.silenceTimer.Stop()
		s.silenceTimer.Reset(wait)
	}
}

// commitDeltaLocked computes the uncommitted transcript suffix and marks it
// committed. Caller holds accMu.
func (s *captureSession) commitDeltaLocked() string {
	latest := s.latestFullTranscript
	base := s.committedFullTranscript
	delta := strings.TrimSpace(strings.TrimPrefix(latest, base))
	if delta == "" && base != "" {
		if idx := strings.LastIndex(latest, base); idx >= 0 && idx+len(base) <= len(latest) {
			delta = strings.TrimSpace(latest[idx+len(base):])
		}
	}
	s.committedFullTranscript = latest
	return delta
}

// flushPendingDelta emits any remaining uncommitted transcript, best-effort.
func (s *captureSession) flushPendingDelta() {
	s.accMu.Lock()
	if s.finalized {
		s.accMu.Unlock()
		return
	}
	s.finalized = true
	delta := s.commitDeltaLocked()
	s.accMu.Unlock()
	if delta == "" {
		return
	}
	select {
	case s.results <- Result{Text: delta, Final: true}:
	case <-time.After(200 * time.Millisecond):
		log.Printf("speech: flush timed out delivering final delta")
	}
}

func (s *captureSession) deliver(r Result) {
	select {
	case s.results <- r:
	default:
	}
}

// isContinuationLikely reports that the last meaningful word suggests the
// speaker will keep going (conjunctions, prepositions, fillers).
func isContinuationLikely(text string) bool {
	w := lastWord(text)
	if w == "" {
		return false
	}
	_, ok := continuationWords[w]
	return ok
}

func lastWord(text string) string {
	trim := strings.TrimSpace(text)
	if trim == "" {
		return ""
	}
	fields := strings.FieldsFunc(trim, func(r rune) bool { return !unicode.IsLetter(r) })
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[len(fields)-1])
}

var continuationWords = map[string]struct{}{
	"and": {}, "or": {}, "but": {}, "nor": {}, "yet": {}, "so": {},
	"if": {}, "when": {}, "while": {}, "though": {}, "although": {},
	"because": {}, "since": {}, "unless": {}, "until": {}, "whereas": {},
	"also": {}, "plus": {}, "um": {}, "uh": {}, "like": {},
	"about": {}, "with": {}, "to": {}, "of": {}, "for": {}, "on": {}, "in": {}, "at": {},
}
