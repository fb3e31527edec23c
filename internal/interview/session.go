// Package interview contains the orchestrator driving the turn-taking
// protocol between the candidate and the AI interviewer, and the facade the
// UI layer consumes.
package interview

import (
	"time"

	"github.com/google/uuid"

	"github.com/yatharthsameer/ai-voice-interviewer-FE/internal/protocol"
)

// InterviewType selects the question track.
type InterviewType string

const (
	TypeGeneral         InterviewType = "general"
	TypeTechnical       InterviewType = "technical"
	TypeSales           InterviewType = "sales"
	TypeLeadership      InterviewType = "leadership"
	TypeCustomerService InterviewType = "customer_service"
	TypeCoding          InterviewType = "coding"
	TypeHomeCare        InterviewType = "home_care"
)

// State models the session lifecycle.
type State string

const (
	StateConnecting     State = "connecting"
	StateReady          State = "ready"
	StateAISpeaking     State = "aiSpeaking"
	StateListening      State = "listening"
	StateSending        State = "sending"
	StateWaitingBackend State = "waitingBackend"
	StateCompleted      State = "completed"
	StateError          State = "error"
)

// Terminal reports whether no further transitions are possible without a
// manual retry.
func (s State) Terminal() bool { return s == StateCompleted || s == StateError }

// Speaker identifies who produced a transcript entry.
type Speaker string

const (
	SpeakerAI   Speaker = "ai"
	SpeakerUser Speaker = "user"
)

// TranscriptEntry is one ordered, append-only transcript record.
type TranscriptEntry struct {
	ID        string    `json:"id"`
	Speaker   Speaker   `json:"speaker"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

func newEntry(speaker Speaker, content string) TranscriptEntry {
	return TranscriptEntry{
		ID:        uuid.NewString(),
		Speaker:   speaker,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// Result is the finalized session artifact handed to the results layer.
type Result struct {
	UserProfile protocol.UserProfile `json:"userProfile"`
	Transcript  []TranscriptEntry    `json:"transcript"`
	DurationMs  int64                `json:"durationMs"`
	GeneratedAt time.Time            `json:"generatedAt"`
	Summary     *protocol.Summary    `json:"summary,omitempty"`
}

// Snapshot is the observable session surface for the UI layer.
type Snapshot struct {
	State           State             `json:"state"`
	SessionID       string            `json:"sessionId"`
	CurrentQuestion string            `json:"currentQuestion"`
	QuestionNumber  int               `json:"questionNumber"`
	TotalQuestions  int               `json:"totalQuestions"`
	IsConnected     bool              `json:"isConnected"`
	Transcript      []TranscriptEntry `json:"transcript"`
}

// Sink receives UI-facing updates from the orchestrator. Implementations
// must return quickly; they are called from the event loop.
type Sink interface {
	StateChanged(s State)
	TranscriptAppended(e TranscriptEntry)
	PartialTranscript(text string)
	TimerTick(remainingSeconds int)
	// Notice carries user-visible, non-fatal conditions (server-reported
	// errors, device problems).
	Notice(text string)
	Completed(r Result)
}

// NopSink discards all updates.
type NopSink struct{}

func (NopSink) StateChanged(State)                 {}
func (NopSink) TranscriptAppended(TranscriptEntry) {}
func (NopSink) PartialTranscript(string)           {}
func (NopSink) TimerTick(int)                      {}
func (NopSink) Notice(string)                      {}
func (NopSink) Completed(Result)                   {}
