// Package protocol defines the JSON envelopes exchanged with the interview
// server over the persistent connection, and normalizes loosely shaped
// inbound payloads at the wire boundary so the rest of the client only ever
// sees canonical types.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Inbound message types.
const (
	TypeConnection         = "connection"
	TypeInterviewStarted   = "interview_started"
	TypeResponseAnalyzed   = "response_analyzed"
	TypeNextQuestion       = "next_question"
	TypeInterviewCompleted = "interview_completed"
	TypeError              = "error"
)

// Outbound message types.
const (
	TypeStartInterview = "start_interview"
	TypeUserResponse   = "user_response"
	TypeEndInterview   = "end_interview"
)

// UserProfile is the candidate record collected by the (excluded) form layer.
// The client treats it as opaque and forwards it verbatim.
type UserProfile map[string]interface{}

// Outbound is the envelope for every client-to-server message.
type Outbound struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// StartInterviewData starts a new interview for the given candidate.
type StartInterviewData struct {
	UserProfile   UserProfile `json:"userProfile"`
	InterviewType string      `json:"interviewType"`
	Timestamp     int64       `json:"timestamp"`
}

// UserResponseData carries one answer and the question number it answers.
type UserResponseData struct {
	Response       string `json:"response"`
	QuestionNumber int    `json:"questionNumber"`
}

// EndInterviewData terminates the session server-side.
type EndInterviewData struct {
	SessionID string `json:"sessionId"`
}

// SummaryEntry is one question/answer pair in a completed-interview summary.
type SummaryEntry struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Summary is delivered with interview_completed.
type Summary struct {
	DurationMs int64          `json:"durationMs,omitempty"`
	Feedback   string         `json:"feedback,omitempty"`
	Transcript []SummaryEntry `json:"transcript,omitempty"`
}

// Inbound is the envelope for every server-to-client message. Fields are
// populated per message type; absent fields stay zero.
type Inbound struct {
	Type           string          `json:"type"`
	SessionID      string          `json:"sessionId,omitempty"`
	Question       json.RawMessage `json:"question,omitempty"`
	QuestionNumber int             `json:"questionNumber,omitempty"`
	TotalQuestions int             `json:"totalQuestions,omitempty"`
	Summary        *Summary        `json:"summary,omitempty"`
	Message        string          `json:"message,omitempty"`
}

// Decode parses one inbound frame. A frame without a type field is an error;
// unknown types decode fine and are the caller's to ignore.
func Decode(data []byte) (Inbound, error) {
	var m Inbound
	if err := json.Unmarshal(data, &m); err != nil {
		return Inbound{}, fmt.Errorf("protocol: decode frame: %w", err)
	}
	if m.Type == "" {
		return Inbound{}, fmt.Errorf("protocol: frame missing type field")
	}
	return m, nil
}

// QuestionText coerces the question payload to plain text. Servers have been
// observed to deliver a bare string, an object with a "question" field, or an
// object with a "text" field; nesting one level deep also occurs.
func (m Inbound) QuestionText() string {
	return normalizeQuestion(m.Question, 0)
}

// IsNextQuestion reports whether the message advances the interview to a new
// question. response_analyzed and next_question are aliases on the wire.
func (m Inbound) IsNextQuestion() bool {
	return m.Type == TypeResponseAnalyzed || m.Type == TypeNextQuestion
}

func normalizeQuestion(raw json.RawMessage, depth int) string {
	if len(raw) == 0 || depth > 2 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var obj struct {
		Question json.RawMessage `json:"question"`
		Text     json.RawMessage `json:"text"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ""
	}
	if t := normalizeQuestion(obj.Question, depth+1); t != "" {
		return t
	}
	return normalizeQuestion(obj.Text, depth+1)
}
