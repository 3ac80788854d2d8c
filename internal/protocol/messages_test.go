package protocol

import (
	"encoding/json"
	"testing"
)

func TestDecodeJoin(t *testing.T) {
	msg, err := DecodeInbound([]byte(`{"type":"join","name":"Alice"}`))
	if err != nil {
		t.Fatalf("decode join: %v", err)
	}
	join, ok := msg.(Join)
	if !ok {
		t.Fatalf("expected Join, got %T", msg)
	}
	if join.Name != "Alice" {
		t.Fatalf("expected name Alice, got %q", join.Name)
	}
}

func TestDecodeAnswer(t *testing.T) {
	msg, err := DecodeInbound([]byte(`{"type":"answer","answer":"Tokyo"}`))
	if err != nil {
		t.Fatalf("decode answer: %v", err)
	}
	answer, ok := msg.(Answer)
	if !ok {
		t.Fatalf("expected Answer, got %T", msg)
	}
	if answer.Answer != "Tokyo" {
		t.Fatalf("expected answer Tokyo, got %q", answer.Answer)
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", `{"type":`},
		{"missing type", `{"name":"Alice"}`},
		{"unknown type", `{"type":"leaderboard"}`},
		{"join without name", `{"type":"join"}`},
		{"join with empty name", `{"type":"join","name":""}`},
		{"answer without answer", `{"type":"answer"}`},
	}
	for _, tc := range cases {
		if _, err := DecodeInbound([]byte(tc.raw)); err == nil {
			t.Fatalf("%s: expected decode error", tc.name)
		}
	}
}

func TestEncodeQuestion(t *testing.T) {
	data, err := Encode(Question("What is 2 + 2?", []string{"3", "4"}))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["type"] != TypeQuestion {
		t.Fatalf("expected question type, got %v", decoded["type"])
	}
	if decoded["question"] != "What is 2 + 2?" {
		t.Fatalf("unexpected question %v", decoded["question"])
	}
	opts, ok := decoded["options"].([]any)
	if !ok || len(opts) != 2 {
		t.Fatalf("expected 2 options, got %v", decoded["options"])
	}
}

func TestEncodeRankIsFlat(t *testing.T) {
	data, err := Encode(Rank(3))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := `{"type":"rank","rank":3}`
	if string(data) != want {
		t.Fatalf("expected %s, got %s", want, data)
	}
}
