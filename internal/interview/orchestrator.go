package interview

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/yatharthsameer/ai-voice-interviewer-FE/internal/protocol"
	"github.com/yatharthsameer/ai-voice-interviewer-FE/internal/speech"
	"github.com/yatharthsameer/ai-voice-interviewer-FE/internal/transport"
)

// SkipAnswer is the conventionalized answer sent when the candidate skips a
// question; skip is not a distinct wire message.
const SkipAnswer = "I'd prefer to skip this question."

// Transport is what the orchestrator needs from the session transport. The
// connection handle itself stays inside the transport package.
type Transport interface {
	Connect()
	Retry()
	Send(msg protocol.Outbound)
	Inbound() <-chan protocol.Inbound
	States() <-chan transport.State
	IsConnected() bool
}

// SpeechIO is the speech adapter contract consumed by the orchestrator.
type SpeechIO interface {
	Speak(ctx context.Context, text string) error
	Cancel()
	StartCapture(ctx context.Context) (<-chan speech.Result, error)
	StopCapture()
}

// Config tunes orchestrator behavior. The flags exist because different
// interview tracks want slightly different turn-taking, not different code.
type Config struct {
	// AnswerTimeout bounds one listening turn. Defaults to 60s.
	AnswerTimeout time.Duration
	// SettleDelay separates the end of AI speech from the start of
	// listening, so the question's tail is not clipped. Defaults to 1s.
	SettleDelay time.Duration
	// BargeIn lets capture interrupt in-progress AI speech.
	BargeIn bool
}

func (c *Config) applyDefaults() {
	if c.AnswerTimeout <= 0 {
		c.AnswerTimeout = 60 * time.Second
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = time.Second
	}
}

type commandKind int

const (
	cmdStart commandKind = iota
	cmdEnd
	cmdSkip
	cmdRetry
	cmdBarge
)

type command struct {
	kind    commandKind
	profile protocol.UserProfile
	itype   InterviewType
}

type eventKind int

const (
	evSpeakDone eventKind = iota
	evSettleElapsed
	evCaptureResult
	evTimerTick
	evTimerExpired
)

// event is an internal async completion. gen ties it to the turn it was
// scheduled in; stale generations are discarded.
type event struct {
	kind       eventKind
	gen        int
	isQuestion bool
	result     speech.Result
	remaining  int
}

// Orchestrator is the single-threaded state machine coordinating transport,
// speech, timers and user commands. All inputs funnel through one loop; one
// event is fully handled before the next.
type Orchestrator struct {
	tr   Transport
	io   SpeechIO
	sink Sink
	cfg  Config

	commands chan command
	events   chan event
	done     chan struct{}
	stopOnce sync.Once

	// loop-owned; mu guards reads from Snapshot only.
	mu              sync.Mutex
	state           State
	sessionID       string
	profile         protocol.UserProfile
	interviewType   InterviewType
	startedAt       time.Time
	questionIndex   int
	totalQuestions  int
	currentQuestion string
	transcript      []TranscriptEntry
	started         bool
	completed       bool

	gen        int
	timerStop  chan struct{}
	settleStop *time.Timer
	speakCtx   context.CancelFunc
}

// NewOrchestrator wires the state machine. Run must be called to start it.
func NewOrchestrator(tr Transport, io SpeechIO, sink Sink, cfg Config) *Orchestrator {
	cfg.applyDefaults()
	if sink == nil {
		sink = NopSink{}
	}
	return &Orchestrator{
		tr:       tr,
		io:       io,
		sink:     sink,
		cfg:      cfg,
		commands: make(chan command, 16),
		events:   make(chan event, 64),
		done:     make(chan struct{}),
		state:    StateConnecting,
	}
}

// Run processes events until Stop is called. It must run in its own
// goroutine; it is the only goroutine that mutates session state.
func (o *Orchestrator) Run() {
	for {
		select {
		case <-o.done:
			return
		case cmd := <-o.commands:
			o.handleCommand(cmd)
		case msg, ok := <-o.tr.Inbound():
			if !ok {
				return
			}
			o.handleInbound(msg)
		case st := <-o.tr.States():
			o.handleTransportState(st)
		case ev := <-o.events:
			o.handleEvent(ev)
		}
	}
}

// Stop halts the loop and cancels in-flight speech and capture. The answer
// timer goroutine, if any, exits on done.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() {
		close(o.done)
		o.io.Cancel()
		o.io.StopCapture()
	})
}

// Start requests an interview start; valid once the session is ready.
func (o *Orchestrator) Start(profile protocol.UserProfile, itype InterviewType) {
	o.post(command{kind: cmdStart, profile: profile, itype: itype})
}

// End terminates the interview from any non-terminal state.
func (o *Orchestrator) End() { o.post(command{kind: cmdEnd}) }

// Skip skips the current question.
func (o *Orchestrator) Skip() { o.post(command{kind: cmdSkip}) }

// RetryConnection leaves the error state through a fresh connection attempt.
func (o *Orchestrator) RetryConnection() { o.post(command{kind: cmdRetry}) }

// BargeIn interrupts in-progress AI speech and starts listening right away.
// No-op unless Config.BargeIn is set and a question is being spoken.
func (o *Orchestrator) BargeIn() { o.post(command{kind: cmdBarge}) }

// Snapshot returns the observable session surface.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	tr := make([]TranscriptEntry, len(o.transcript))
	copy(tr, o.transcript)
	return Snapshot{
		State:           o.state,
		SessionID:       o.sessionID,
		CurrentQuestion: o.currentQuestion,
		QuestionNumber:  o.questionIndex,
		TotalQuestions:  o.totalQuestions,
		IsConnected:     o.tr.IsConnected(),
		Transcript:      tr,
	}
}

func (o *Orchestrator) post(cmd command) {
	select {
	case o.commands <- cmd:
	case <-o.done:
	}
}

func (o *Orchestrator) postEvent(ev event) {
	select {
	case o.events <- ev:
	case <-o.done:
	}
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	if o.state == s {
		o.mu.Unlock()
		return
	}
	o.state = s
	o.mu.Unlock()
	log.Printf("interview: state -> %s", s)
	o.sink.StateChanged(s)
}

func (o *Orchestrator) appendEntry(speaker Speaker, content string) {
	e := newEntry(speaker, content)
	o.mu.Lock()
	o.transcript = append(o.transcript, e)
	o.mu.Unlock()
	o.sink.TranscriptAppended(e)
}

func (o *Orchestrator) handleCommand(cmd command) {
	switch cmd.kind {
	case cmdStart:
		if o.state != StateReady || o.started {
			log.Printf("interview: start ignored in state %s", o.state)
			return
		}
		o.mu.Lock()
		o.profile = cmd.profile
		o.interviewType = cmd.itype
		o.started = true
		o.mu.Unlock()
		o.tr.Send(protocol.Outbound{
			Type: protocol.TypeStartInterview,
			Data: protocol.StartInterviewData{
				UserProfile:   cmd.profile,
				InterviewType: string(cmd.itype),
				Timestamp:     time.Now().UnixMilli(),
			},
		})
	case cmdEnd:
		if o.state.Terminal() {
			return
		}
		// Fire-and-forget so a hung server can never block the UI.
		o.tr.Send(protocol.Outbound{
			Type: protocol.TypeEndInterview,
			Data: protocol.EndInterviewData{SessionID: o.sessionID},
		})
		o.complete(nil)
	case cmdSkip:
		if o.state != StateListening {
			log.Printf("interview: skip ignored in state %s", o.state)
			return
		}
		o.io.StopCapture()
		o.appendEntry(SpeakerUser, SkipAnswer)
		o.submitAnswer(SkipAnswer)
	case cmdRetry:
		if o.state != StateError {
			return
		}
		o.setState(StateConnecting)
		o.tr.Retry()
	case cmdBarge:
		if !o.cfg.BargeIn || o.state != StateAISpeaking {
			log.Printf("interview: barge-in ignored in state %s", o.state)
			return
		}
		o.gen++
		o.cancelSettle()
		o.cancelSpeak()
		o.io.Cancel()
		o.beginListening()
	}
}

func (o *Orchestrator) handleTransportState(st transport.State) {
	switch st {
	case transport.StateConnecting:
		if o.state.Terminal() || o.state == StateConnecting {
			return
		}
		// A turn cannot outlive its connection: drop the timer, speech and
		// capture before re-entering connecting.
		o.gen++
		o.cancelSettle()
		o.stopAnswerTimer()
		o.cancelSpeak()
		o.io.Cancel()
		o.io.StopCapture()
		o.setState(StateConnecting)
	case transport.StateOpen:
		// Stay in connecting until the server assigns a session id.
		o.mu.Lock()
		hasSession := o.sessionID != ""
		o.mu.Unlock()
		if o.state == StateConnecting && hasSession {
			o.setState(StateReady)
		}
	case transport.StateFailed:
		o.fail("connection lost and retries exhausted")
	case transport.StateClosed:
		// User-initiated teardown; nothing to transition.
	}
}

func (o *Orchestrator) handleInbound(msg protocol.Inbound) {
	switch msg.Type {
	case protocol.TypeConnection:
		o.mu.Lock()
		o.sessionID = msg.SessionID
		o.mu.Unlock()
		if o.state == StateConnecting {
			o.setState(StateReady)
		}
	case protocol.TypeInterviewStarted:
		if o.state != StateReady || !o.started {
			log.Printf("interview: interview_started ignored in state %s", o.state)
			return
		}
		question := msg.QuestionText()
		o.mu.Lock()
		o.startedAt = time.Now()
		o.questionIndex = msg.QuestionNumber
		if o.questionIndex <= 0 {
			o.questionIndex = 1
		}
		o.totalQuestions = msg.TotalQuestions
		o.currentQuestion = question
		o.mu.Unlock()
		o.askQuestion(question)
	case protocol.TypeResponseAnalyzed, protocol.TypeNextQuestion:
		o.handleNextQuestion(msg)
	case protocol.TypeInterviewCompleted:
		if o.state.Terminal() {
			log.Printf("interview: duplicate interview_completed ignored")
			return
		}
		o.complete(msg.Summary)
	case protocol.TypeError:
		log.Printf("interview: server error: %s", msg.Message)
		o.sink.Notice(msg.Message)
	default:
		// Forward-compatible: unknown types are logged and ignored.
		log.Printf("interview: ignoring unknown message type %q", msg.Type)
	}
}

// handleNextQuestion applies a next-question message only when it is the
// strict successor of the current question; duplicates and out-of-order
// deliveries leave the session untouched.
func (o *Orchestrator) handleNextQuestion(msg protocol.Inbound) {
	if o.state != StateWaitingBackend && o.state != StateSending {
		log.Printf("interview: %s ignored in state %s", msg.Type, o.state)
		return
	}
	o.mu.Lock()
	expected := o.questionIndex + 1
	o.mu.Unlock()
	if msg.QuestionNumber != expected {
		log.Printf("interview: discarding question %d, expected %d", msg.QuestionNumber, expected)
		return
	}
	question := msg.QuestionText()
	o.mu.Lock()
	o.questionIndex = msg.QuestionNumber
	if msg.TotalQuestions > o.totalQuestions {
		// Servers may revise the total upward mid-session.
		o.totalQuestions = msg.TotalQuestions
	}
	o.currentQuestion = question
	o.mu.Unlock()
	o.askQuestion(question)
}

// askQuestion appends the AI entry, enters aiSpeaking and speaks the text.
func (o *Orchestrator) askQuestion(question string) {
	o.appendEntry(SpeakerAI, question)
	o.setState(StateAISpeaking)

	o.gen++
	gen := o.gen
	ctx, cancel := context.WithCancel(context.Background())
	o.speakCtx = cancel
	isQuestion := strings.Contains(question, "?")
	go func() {
		if err := o.io.Speak(ctx, question); err != nil {
			// Degrade gracefully: a dead voice must not hang the machine.
			log.Printf("interview: speak failed: %v", err)
		}
		o.postEvent(event{kind: evSpeakDone, gen: gen, isQuestion: isQuestion})
	}()
}

func (o *Orchestrator) handleEvent(ev event) {
	if ev.gen != o.gen {
		return
	}
	switch ev.kind {
	case evSpeakDone:
		if o.state != StateAISpeaking {
			return
		}
		if !ev.isQuestion {
			// Statement, not a question: nothing to answer, wait on server.
			o.setState(StateWaitingBackend)
			return
		}
		gen := o.gen
		o.settleStop = time.AfterFunc(o.cfg.SettleDelay, func() {
			o.postEvent(event{kind: evSettleElapsed, gen: gen})
		})
	case evSettleElapsed:
		if o.state != StateAISpeaking {
			return
		}
		o.beginListening()
	case evCaptureResult:
		o.handleCaptureResult(ev.result)
	case evTimerTick:
		if o.state == StateListening {
			o.sink.TimerTick(ev.remaining)
		}
	case evTimerExpired:
		if o.state != StateListening {
			return
		}
		// Deterministic timeout policy: silence becomes an explicit empty
		// response rather than a hung session.
		log.Printf("interview: answer timer expired for question %d", o.questionIndex)
		o.io.StopCapture()
		o.appendEntry(SpeakerUser, "")
		o.submitAnswer("")
	}
}

// beginListening starts capture and the single answer timer. A capture
// failure is surfaced but the timer still runs so the timeout policy keeps
// the session moving.
func (o *Orchestrator) beginListening() {
	gen := o.gen
	ch, err := o.io.StartCapture(context.Background())
	if err != nil {
		log.Printf("interview: capture failed: %v", err)
		o.sink.Notice(err.Error())
		if se, ok := err.(*speech.Error); ok && se.Code == speech.CodePermissionDenied {
			o.fail(se.Detail)
			return
		}
	} else {
		go func() {
			for r := range ch {
				o.postEvent(event{kind: evCaptureResult, gen: gen, result: r})
			}
		}()
	}
	o.setState(StateListening)
	o.startAnswerTimer(gen)
}

func (o *Orchestrator) handleCaptureResult(r speech.Result) {
	if o.state != StateListening {
		return
	}
	if r.Err != nil {
		o.sink.Notice(r.Err.Error())
		if r.Err.Code == speech.CodePermissionDenied {
			o.fail(r.Err.Detail)
		}
		return
	}
	if !r.Final {
		o.sink.PartialTranscript(r.Text)
		return
	}
	text := strings.TrimSpace(r.Text)
	if text == "" {
		return
	}
	o.io.StopCapture()
	o.appendEntry(SpeakerUser, text)
	o.submitAnswer(text)
}

// submitAnswer sends the response for the current question and moves the
// machine through sending into waitingBackend. Exactly one answer is in
// flight at a time.
func (o *Orchestrator) submitAnswer(text string) {
	o.stopAnswerTimer()
	o.setState(StateSending)
	o.tr.Send(protocol.Outbound{
		Type: protocol.TypeUserResponse,
		Data: protocol.UserResponseData{
			Response:       text,
			QuestionNumber: o.questionIndex,
		},
	})
	o.gen++ // invalidate any straggling capture/timer events
	o.setState(StateWaitingBackend)

	o.mu.Lock()
	finished := o.totalQuestions > 0 && o.questionIndex >= o.totalQuestions
	o.mu.Unlock()
	if finished {
		// Final question answered; complete without waiting on the server.
		o.complete(nil)
	}
}

// complete finalizes the session exactly once: cancels the timer, then
// speech, then capture, assembles the result and reports it.
func (o *Orchestrator) complete(summary *protocol.Summary) {
	o.mu.Lock()
	if o.completed {
		o.mu.Unlock()
		return
	}
	o.completed = true
	o.mu.Unlock()

	o.gen++
	o.cancelSettle()
	o.stopAnswerTimer()
	o.cancelSpeak()
	o.io.Cancel()
	o.io.StopCapture()

	o.mu.Lock()
	var duration time.Duration
	if !o.startedAt.IsZero() {
		duration = time.Since(o.startedAt)
	}
	tr := make([]TranscriptEntry, len(o.transcript))
	copy(tr, o.transcript)
	profile := o.profile
	o.mu.Unlock()

	o.setState(StateCompleted)
	o.sink.Completed(Result{
		UserProfile: profile,
		Transcript:  tr,
		DurationMs:  duration.Milliseconds(),
		GeneratedAt: time.Now(),
		Summary:     summary,
	})
}

// fail enters the terminal error state, cancelling everything live.
func (o *Orchestrator) fail(reason string) {
	if o.state.Terminal() {
		return
	}
	log.Printf("interview: fatal: %s", reason)
	o.gen++
	o.cancelSettle()
	o.stopAnswerTimer()
	o.cancelSpeak()
	o.io.Cancel()
	o.io.StopCapture()
	o.sink.Notice(reason)
	o.setState(StateError)
}

// startAnswerTimer starts the one live countdown for this listening turn,
// always cancelling a prior timer first.
func (o *Orchestrator) startAnswerTimer(gen int) {
	o.stopAnswerTimer()
	stop := make(chan struct{})
	o.timerStop = stop
	go func() {
		remaining := int(o.cfg.AnswerTimeout / time.Second)
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-o.done:
				return
			case <-ticker.C:
				remaining--
				if remaining <= 0 {
					o.postEvent(event{kind: evTimerExpired, gen: gen})
					return
				}
				o.postEvent(event{kind: evTimerTick, gen: gen, remaining: remaining})
			}
		}
	}()
}

func (o *Orchestrator) stopAnswerTimer() {
	if o.timerStop != nil {
		close(o.timerStop)
		o.timerStop = nil
	}
}

func (o *Orchestrator) cancelSpeak() {
	if o.speakCtx != nil {
		o.speakCtx()
		o.speakCtx = nil
	}
}

func (o *Orchestrator) cancelSettle() {
	if o.settleStop != nil {
		_ = o.settleStop.Stop()
		o.settleStop = nil
	}
}

// timerActive reports whether a countdown is live. Used by tests.
func (o *Orchestrator) timerActive() bool { return o.timerStop != nil }
