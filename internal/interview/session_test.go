package interview

import "testing"

func TestState_Terminal(t *testing.T) {
	terminal := map[State]bool{
		StateConnecting:     false,
		StateReady:          false,
		StateAISpeaking:     false,
		StateListening:      false,
		StateSending:        false,
		StateWaitingBackend: false,
		StateCompleted:      true,
		StateError:          true,
	}
	for s, want := range terminal {
		if got := s.Terminal(); got != want {
			t.Errorf("%s: terminal = %v, want %v", s, got, want)
		}
	}
}

func TestNewEntry_AssignsIdentityAndTime(t *testing.T) {
	a := newEntry(SpeakerAI, "hello")
	b := newEntry(SpeakerUser, "world")
	if a.ID == b.ID {
		t.Fatalf("entry ids must be unique")
	}
	if a.Timestamp.IsZero() || b.Timestamp.IsZero() {
		t.Fatalf("timestamps must be set")
	}
	if a.Speaker != SpeakerAI || b.Speaker != SpeakerUser {
		t.Fatalf("speakers not preserved")
	}
}
