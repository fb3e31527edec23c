package interview

import (
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yatharthsameer/ai-voice-interviewer-FE/internal/protocol"
)

type closableTransport struct {
	*fakeTransport
	closes int32
}

func (c *closableTransport) Close() { atomic.AddInt32(&c.closes, 1) }

func TestFacade_LifecycleThroughSingleInstance(t *testing.T) {
	tr := &closableTransport{fakeTransport: newFakeTransport()}
	sp := &fakeSpeech{speakDur: time.Millisecond}
	sink := &recordingSink{}
	f := NewFacade(tr, sp, sink, Config{SettleDelay: 5 * time.Millisecond})
	defer f.Close()

	f.Connect()
	if !f.IsConnected() {
		t.Fatalf("connect not forwarded to transport")
	}

	tr.inbound <- protocol.Inbound{Type: protocol.TypeConnection, SessionID: "sess-9"}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && f.Snapshot().State != StateReady {
		time.Sleep(2 * time.Millisecond)
	}
	snap := f.Snapshot()
	if snap.State != StateReady || snap.SessionID != "sess-9" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	f.StartInterview(protocol.UserProfile{"name": "Ada"}, TypeTechnical)
	select {
	case msg := <-tr.sent:
		if msg.Type != protocol.TypeStartInterview {
			t.Fatalf("sent %s", msg.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("start never sent")
	}

	tr.inbound <- protocol.Inbound{
		Type:           protocol.TypeInterviewStarted,
		Question:       json.RawMessage(`"First question?"`),
		QuestionNumber: 1,
		TotalQuestions: 3,
	}
	for time.Now().Before(deadline) && f.Snapshot().State != StateListening {
		time.Sleep(2 * time.Millisecond)
	}
	if f.Snapshot().CurrentQuestion != "First question?" {
		t.Fatalf("question not surfaced: %+v", f.Snapshot())
	}
}

func TestFacade_CloseIsIdempotentAndClosesTransport(t *testing.T) {
	tr := &closableTransport{fakeTransport: newFakeTransport()}
	f := NewFacade(tr, &fakeSpeech{}, nil, Config{})
	f.Close()
	f.Close()
	if n := atomic.LoadInt32(&tr.closes); n != 1 {
		t.Fatalf("transport closed %d times", n)
	}
}
