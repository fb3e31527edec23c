package transport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yatharthsameer/ai-voice-interviewer-FE/internal/protocol"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

// wsTestServer accepts connections, greets each with a connection envelope
// and counts how many sockets were ever opened.
type wsTestServer struct {
	srv    *httptest.Server
	conns  chan *websocket.Conn
	dials  int32
	reject atomic.Bool
}

func newWSTestServer(t *testing.T) *wsTestServer {
	t.Helper()
	s := &wsTestServer{conns: make(chan *websocket.Conn, 8)}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.reject.Load() {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		atomic.AddInt32(&s.dials, 1)
		_ = conn.WriteJSON(map[string]string{"type": "connection", "sessionId": "s-1"})
		s.conns <- conn
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *wsTestServer) url() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

func (s *wsTestServer) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-s.conns:
		return conn
	case <-time.After(2 * time.Second):
		t.Fatalf("no connection accepted")
		return nil
	}
}

func waitInbound(t *testing.T, c *Client, wantType string) protocol.Inbound {
	t.Helper()
	for {
		select {
		case msg, ok := <-c.Inbound():
			if !ok {
				t.Fatalf("inbound closed while waiting for %s", wantType)
			}
			if msg.Type == wantType {
				return msg
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for inbound %s", wantType)
		}
	}
}

func waitConnected(t *testing.T, c *Client) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.IsConnected() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("client never connected")
}

func waitState(t *testing.T, c *Client, want State) {
	t.Helper()
	for {
		select {
		case st := <-c.States():
			if st == want {
				return
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("timed out waiting for state %s", want)
		}
	}
}

func TestClient_ConnectDeliversDecodedMessages(t *testing.T) {
	srv := newWSTestServer(t)
	c := New(Config{URL: srv.url()})
	defer c.Close()

	c.Connect()
	waitState(t, c, StateOpen)
	msg := waitInbound(t, c, protocol.TypeConnection)
	if msg.SessionID != "s-1" {
		t.Fatalf("sessionId = %q", msg.SessionID)
	}
}

func TestClient_ConnectIsIdempotent(t *testing.T) {
	srv := newWSTestServer(t)
	c := New(Config{URL: srv.url()})
	defer c.Close()

	c.Connect()
	c.Connect()
	c.Connect()
	waitConnected(t, c)
	time.Sleep(50 * time.Millisecond)
	if n := atomic.LoadInt32(&srv.dials); n != 1 {
		t.Fatalf("expected exactly one socket, server saw %d", n)
	}
}

func TestClient_SendWhileDisconnectedDrops(t *testing.T) {
	c := New(Config{URL: "ws://127.0.0.1:1/ws"})
	defer c.Close()
	// Must not panic or block.
	c.Send(protocol.Outbound{Type: protocol.TypeEndInterview})
}

func TestClient_SendReachesServer(t *testing.T) {
	srv := newWSTestServer(t)
	c := New(Config{URL: srv.url()})
	defer c.Close()

	c.Connect()
	conn := srv.accept(t)
	waitConnected(t, c)

	c.Send(protocol.Outbound{
		Type: protocol.TypeUserResponse,
		Data: protocol.UserResponseData{Response: "hello", QuestionNumber: 1},
	})

	var got struct {
		Type string `json:"type"`
		Data struct {
			Response       string `json:"response"`
			QuestionNumber int    `json:"questionNumber"`
		} `json:"data"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Type != protocol.TypeUserResponse || got.Data.Response != "hello" || got.Data.QuestionNumber != 1 {
		t.Fatalf("unexpected frame: %+v", got)
	}
}

func TestClient_MalformedFramesAreSkipped(t *testing.T) {
	srv := newWSTestServer(t)
	c := New(Config{URL: srv.url()})
	defer c.Close()

	c.Connect()
	conn := srv.accept(t)
	waitInbound(t, c, protocol.TypeConnection)

	_ = conn.WriteMessage(websocket.TextMessage, []byte(`{{{not json`))
	_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"noType":true}`))
	_ = conn.WriteJSON(map[string]interface{}{"type": "next_question", "questionNumber": 2})

	msg := waitInbound(t, c, protocol.TypeNextQuestion)
	if msg.QuestionNumber != 2 {
		t.Fatalf("questionNumber = %d", msg.QuestionNumber)
	}
}

func TestClient_ReconnectsAfterUnexpectedClose(t *testing.T) {
	srv := newWSTestServer(t)
	c := New(Config{
		URL:         srv.url(),
		BackoffBase: 10 * time.Millisecond,
		BackoffCap:  40 * time.Millisecond,
		MaxRetries:  5,
	})
	defer c.Close()

	c.Connect()
	conn := srv.accept(t)
	waitInbound(t, c, protocol.TypeConnection)

	// Kill the socket server-side; the client must dial again on its own.
	_ = conn.Close()
	srv.accept(t)
	waitInbound(t, c, protocol.TypeConnection)
	if n := atomic.LoadInt32(&srv.dials); n != 2 {
		t.Fatalf("expected 2 sockets total, got %d", n)
	}
}

func TestClient_FailsAfterRetryBudgetThenRetryRecovers(t *testing.T) {
	srv := newWSTestServer(t)
	c := New(Config{
		URL:         srv.url(),
		BackoffBase: 5 * time.Millisecond,
		BackoffCap:  20 * time.Millisecond,
		MaxRetries:  3,
	})
	defer c.Close()

	c.Connect()
	conn := srv.accept(t)
	waitInbound(t, c, protocol.TypeConnection)

	// Take the server down and sever the socket: every reconnect fails.
	srv.reject.Store(true)
	_ = conn.Close()
	waitState(t, c, StateFailed)
	if c.IsConnected() {
		t.Fatalf("client claims connected after failure")
	}

	// Manual retry resets the budget and succeeds once the server is back.
	srv.reject.Store(false)
	c.Retry()
	waitInbound(t, c, protocol.TypeConnection)
	if !c.IsConnected() {
		t.Fatalf("retry did not reconnect")
	}
}

func TestClient_CloseEndsInbound(t *testing.T) {
	srv := newWSTestServer(t)
	c := New(Config{URL: srv.url()})

	c.Connect()
	waitInbound(t, c, protocol.TypeConnection)
	c.Close()

	deadline := time.Now().Add(2 * time.Second)
	for {
		select {
		case _, ok := <-c.Inbound():
			if !ok {
				return
			}
		default:
			if time.Now().After(deadline) {
				t.Fatalf("inbound never closed")
			}
			time.Sleep(2 * time.Millisecond)
		}
	}
}

func TestBackoffDelay_DoublesAndCaps(t *testing.T) {
	base, max := time.Second, 10*time.Second
	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		10 * time.Second,
		10 * time.Second,
	}
	for i, w := range want {
		if got := backoffDelay(base, max, i+1); got != w {
			t.Errorf("attempt %d: got %s, want %s", i+1, got, w)
		}
	}
}
