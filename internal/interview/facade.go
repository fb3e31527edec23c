package interview

import (
	"sync"

	"github.com/yatharthsameer/ai-voice-interviewer-FE/internal/protocol"
)

// Facade is the externally consumed session object. The application root
// constructs exactly one and passes it down; it is never recreated per UI
// mount, so connection and session state survive remounts.
type Facade struct {
	tr   Transport
	orch *Orchestrator

	runOnce   sync.Once
	closeOnce sync.Once
}

// Closer is implemented by transports that own a real connection.
type Closer interface{ Close() }

// NewFacade assembles the session: transport, speech adapter, orchestrator.
// The orchestrator loop starts immediately and idles until Connect.
func NewFacade(tr Transport, io SpeechIO, sink Sink, cfg Config) *Facade {
	f := &Facade{
		tr:   tr,
		orch: NewOrchestrator(tr, io, sink, cfg),
	}
	f.runOnce.Do(func() { go f.orch.Run() })
	return f
}

// Connect opens the server connection. Idempotent.
func (f *Facade) Connect() { f.tr.Connect() }

// StartInterview begins the interview; valid only once connected.
func (f *Facade) StartInterview(profile protocol.UserProfile, itype InterviewType) {
	f.orch.Start(profile, itype)
}

// EndInterview terminates the session from any non-terminal state.
func (f *Facade) EndInterview() { f.orch.End() }

// SkipCurrentQuestion skips the question currently being answered.
func (f *Facade) SkipCurrentQuestion() { f.orch.Skip() }

// BargeIn interrupts AI speech and opens the floor to the candidate. No-op
// when barge-in is disabled or nothing is being spoken.
func (f *Facade) BargeIn() { f.orch.BargeIn() }

// RetryConnection resets the reconnect budget and dials again; the manual
// affordance out of the error state.
func (f *Facade) RetryConnection() { f.orch.RetryConnection() }

// Snapshot returns the observable state for the UI.
func (f *Facade) Snapshot() Snapshot { return f.orch.Snapshot() }

// IsConnected reports whether the transport socket is open.
func (f *Facade) IsConnected() bool { return f.tr.IsConnected() }

// Close discards the session and releases the connection.
func (f *Facade) Close() {
	f.closeOnce.Do(func() {
		f.orch.Stop()
		if c, ok := f.tr.(Closer); ok {
			c.Close()
		}
	})
}
