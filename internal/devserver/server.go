// Package devserver implements the server side of the interview wire
// protocol for local development and integration tests. It assigns session
// ids, walks a canned question bank per interview track (optionally asking
// an LLM for follow-ups) and emits the completion summary.
package devserver

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/yatharthsameer/ai-voice-interviewer-FE/internal/protocol"
	"github.com/yatharthsameer/ai-voice-interviewer-FE/internal/questiongen"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Local development only; restrict in production.
		return true
	},
}

// QuestionGenerator produces one follow-up question. Optional; the canned
// bank is the fallback.
type QuestionGenerator interface {
	NextQuestion(ctx context.Context, interviewType, lastAnswer string) (string, error)
}

// Server hosts the interview WebSocket endpoint.
type Server struct {
	e   *echo.Echo
	gen QuestionGenerator
}

// New constructs the server. gen may be nil.
func New(gen QuestionGenerator) *Server {
	s := &Server{gen: gen}
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/ws", s.handleWS)
	s.e = e
	return s
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler { return s.e }

// Start serves until the listener fails.
func (s *Server) Start(addr string) error { return s.e.Start(addr) }

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }

// outbound mirrors the client's envelope: {type, data}.
type outbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type wsSession struct {
	conn      *websocket.Conn
	sessionID string
	itype     string
	questions []string
	current   int
	startedAt time.Time
	answers   []protocol.SummaryEntry
	completed bool
}

func (s *Server) handleWS(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	sess := &wsSession{conn: conn, sessionID: uuid.NewString()}
	sess.write(protocol.Inbound{Type: protocol.TypeConnection, SessionID: sess.sessionID})
	log.Printf("devserver: session %s connected", sess.sessionID)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Printf("devserver: session %s closed: %v", sess.sessionID, err)
			return nil
		}
		var msg outbound
		if err := json.Unmarshal(data, &msg); err != nil {
			sess.writeError("malformed message")
			continue
		}
		switch msg.Type {
		case protocol.TypeStartInterview:
			s.startInterview(sess, msg.Data)
		case protocol.TypeUserResponse:
			s.userResponse(c.Request().Context(), sess, msg.Data)
		case protocol.TypeEndInterview:
			sess.complete()
			return nil
		default:
			sess.writeError("unknown message type: " + msg.Type)
		}
	}
}

func (s *Server) startInterview(sess *wsSession, data json.RawMessage) {
	var d protocol.StartInterviewData
	if err := json.Unmarshal(data, &d); err != nil {
		sess.writeError("malformed start_interview")
		return
	}
	sess.itype = d.InterviewType
	sess.questions = questiongen.Bank(d.InterviewType)
	sess.current = 1
	sess.startedAt = time.Now()
	sess.write(protocol.Inbound{
		Type:           protocol.TypeInterviewStarted,
		Question:       rawString(sess.questions[0]),
		QuestionNumber: 1,
		TotalQuestions: len(sess.questions),
	})
}

func (s *Server) userResponse(ctx context.Context, sess *wsSession, data json.RawMessage) {
	var d protocol.UserResponseData
	if err := json.Unmarshal(data, &d); err != nil {
		sess.writeError("malformed user_response")
		return
	}
	if sess.current == 0 {
		sess.writeError("interview not started")
		return
	}
	if d.QuestionNumber != sess.current {
		sess.writeError("unexpected question number")
		return
	}
	sess.answers = append(sess.answers, protocol.SummaryEntry{
		Question: sess.questions[sess.current-1],
		Answer:   d.Response,
	})
	if sess.current >= len(sess.questions) {
		sess.complete()
		return
	}

	next := sess.questions[sess.current]
	if s.gen != nil && d.Response != "" {
		if q, err := s.gen.NextQuestion(ctx, sess.itype, d.Response); err == nil && q != "" {
			next = q
			sess.questions[sess.current] = q
		} else if err != nil {
			log.Printf("devserver: question generation failed, using bank: %v", err)
		}
	}
	sess.current++
	sess.write(protocol.Inbound{
		Type:           protocol.TypeNextQuestion,
		Question:       rawString(next),
		QuestionNumber: sess.current,
		TotalQuestions: len(sess.questions),
	})
}

func (sess *wsSession) complete() {
	if sess.completed {
		return
	}
	sess.completed = true
	var duration time.Duration
	if !sess.startedAt.IsZero() {
		duration = time.Since(sess.startedAt)
	}
	sess.write(protocol.Inbound{
		Type: protocol.TypeInterviewCompleted,
		Summary: &protocol.Summary{
			DurationMs: duration.Milliseconds(),
			Feedback:   "Thank you for completing the interview.",
			Transcript: sess.answers,
		},
	})
}

func (sess *wsSession) write(msg protocol.Inbound) {
	if err := sess.conn.WriteJSON(msg); err != nil {
		log.Printf("devserver: write %s: %v", msg.Type, err)
	}
}

func (sess *wsSession) writeError(text string) {
	sess.write(protocol.Inbound{Type: protocol.TypeError, Message: text})
}

func rawString(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}
