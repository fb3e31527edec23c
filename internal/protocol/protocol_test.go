package protocol

import (
	"encoding/json"
	"testing"
)

func TestDecode_RequiresType(t *testing.T) {
	if _, err := Decode([]byte(`{"sessionId":"abc"}`)); err == nil {
		t.Fatalf("expected error for frame without type")
	}
	if _, err := Decode([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for malformed frame")
	}
	m, err := Decode([]byte(`{"type":"connection","sessionId":"abc"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m.Type != TypeConnection || m.SessionID != "abc" {
		t.Fatalf("unexpected message: %+v", m)
	}
}

func TestDecode_UnknownTypePasses(t *testing.T) {
	m, err := Decode([]byte(`{"type":"future_thing","payload":1}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m.Type != "future_thing" {
		t.Fatalf("got type %q", m.Type)
	}
}

func TestQuestionText_Shapes(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"bare string", `"Tell me about yourself?"`, "Tell me about yourself?"},
		{"question field", `{"question":"Why this role?"}`, "Why this role?"},
		{"text field", `{"text":"Describe a conflict?"}`, "Describe a conflict?"},
		{"nested", `{"question":{"text":"Nested?"}}`, "Nested?"},
		{"whitespace trimmed", `"  padded  "`, "padded"},
		{"absent", ``, ""},
		{"number", `42`, ""},
		{"empty object", `{}`, ""},
	}
	for _, tc := range cases {
		m := Inbound{Type: TypeNextQuestion}
		if tc.raw != "" {
			m.Question = json.RawMessage(tc.raw)
		}
		if got := m.QuestionText(); got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestQuestionText_DepthBounded(t *testing.T) {
	m := Inbound{Question: json.RawMessage(`{"question":{"question":{"question":"too deep?"}}}`)}
	if got := m.QuestionText(); got != "" {
		t.Fatalf("expected nesting cutoff, got %q", got)
	}
}

func TestIsNextQuestion_Aliases(t *testing.T) {
	if !(Inbound{Type: TypeNextQuestion}).IsNextQuestion() {
		t.Fatalf("next_question should advance")
	}
	if !(Inbound{Type: TypeResponseAnalyzed}).IsNextQuestion() {
		t.Fatalf("response_analyzed should advance")
	}
	if (Inbound{Type: TypeInterviewCompleted}).IsNextQuestion() {
		t.Fatalf("interview_completed must not advance")
	}
}
