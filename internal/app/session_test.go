package app

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"quizcast-service/internal/domain"
	"quizcast-service/internal/protocol"
)

const testWindow = 10 * time.Second

func testSet() domain.QuestionSet {
	return domain.QuestionSet{
		ID: "geography",
		Questions: []domain.Question{
			{
				Prompt:  "Capital of Japan?",
				Options: []string{"Tokyo", "Osaka", "Kyoto"},
				Answer:  "Tokyo",
			},
			{
				Prompt:  "2+2?",
				Options: []string{"3", "4", "5"},
				Answer:  "4",
			},
		},
	}
}

func newTestSession(set domain.QuestionSet) (*Session, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClock()
	return NewSessionWithClock(set, testWindow, zerolog.Nop(), clock), clock
}

func msgTypes(t *testing.T, h *fakeHandle) []string {
	t.Helper()
	var types []string
	for _, raw := range h.messages() {
		var env struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("unmarshal sent message: %v", err)
		}
		types = append(types, env.Type)
	}
	return types
}

func lastMessage(t *testing.T, h *fakeHandle) map[string]any {
	t.Helper()
	msgs := h.messages()
	if len(msgs) == 0 {
		t.Fatalf("expected at least one message")
	}
	var decoded map[string]any
	if err := json.Unmarshal(msgs[len(msgs)-1], &decoded); err != nil {
		t.Fatalf("unmarshal sent message: %v", err)
	}
	return decoded
}

func countType(t *testing.T, h *fakeHandle, typ string) int {
	t.Helper()
	n := 0
	for _, got := range msgTypes(t, h) {
		if got == typ {
			n++
		}
	}
	return n
}

func participantRanks(s *Session) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, 0, s.reg.size())
	for _, p := range s.reg.all() {
		out = append(out, p.rank)
	}
	return out
}

func waitForPhase(t *testing.T, s *Session, want Phase) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.Phase() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for phase %v, still %v", want, s.Phase())
}

// closeWindow fires the armed window timer and waits for the transition.
func closeWindow(t *testing.T, s *Session, clock *clockwork.FakeClock) {
	t.Helper()
	clock.BlockUntil(1)
	clock.Advance(testWindow)
	waitForPhase(t, s, PhaseQuestionClosed)
}

func TestStartRequiresParticipants(t *testing.T) {
	s, _ := newTestSession(testSet())
	if err := s.Start(); !errors.Is(err, domain.ErrNoParticipants) {
		t.Fatalf("expected ErrNoParticipants, got %v", err)
	}
	if s.Phase() != PhaseIdle {
		t.Fatalf("phase changed on refused start: %v", s.Phase())
	}
}

func TestStartRequiresQuestions(t *testing.T) {
	s, _ := newTestSession(domain.QuestionSet{ID: "empty"})
	s.Join("Alice", &fakeHandle{})
	if err := s.Start(); !errors.Is(err, domain.ErrNoQuestions) {
		t.Fatalf("expected ErrNoQuestions, got %v", err)
	}
	if s.Phase() != PhaseIdle {
		t.Fatalf("phase changed on refused start: %v", s.Phase())
	}
}

func TestStartTwiceIsRefused(t *testing.T) {
	s, _ := newTestSession(testSet())
	s.Join("Alice", &fakeHandle{})
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Start(); !errors.Is(err, domain.ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestAdvanceGuards(t *testing.T) {
	s, _ := newTestSession(testSet())
	if err := s.Advance(); !errors.Is(err, domain.ErrNotStarted) {
		t.Fatalf("expected ErrNotStarted, got %v", err)
	}

	s.Join("Alice", &fakeHandle{})
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Advance(); !errors.Is(err, domain.ErrQuestionOpen) {
		t.Fatalf("expected ErrQuestionOpen while window open, got %v", err)
	}
	if s.Phase() != PhaseQuestionOpen {
		t.Fatalf("refused advance changed phase: %v", s.Phase())
	}
}

func TestFullQuizRun(t *testing.T) {
	s, clock := newTestSession(testSet())
	alice := &fakeHandle{}
	bob := &fakeHandle{}
	s.Join("Alice", alice)
	s.Join("Bob", bob)

	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	for _, h := range []*fakeHandle{alice, bob} {
		got := msgTypes(t, h)
		if len(got) != 2 || got[0] != protocol.TypeWelcome || got[1] != protocol.TypeQuestion {
			t.Fatalf("expected welcome+question, got %v", got)
		}
	}

	// Alice is first and correct, Bob is wrong.
	s.SubmitAnswer(alice, "Tokyo")
	last := lastMessage(t, alice)
	if last["type"] != protocol.TypeRank || last["rank"] != float64(1) {
		t.Fatalf("expected rank 1 for Alice, got %v", last)
	}
	s.SubmitAnswer(bob, "Osaka")
	if last := lastMessage(t, bob); last["type"] != protocol.TypeFeedback {
		t.Fatalf("expected feedback for Bob, got %v", last)
	}

	closeWindow(t, s, clock)
	for _, h := range []*fakeHandle{alice, bob} {
		if countType(t, h, protocol.TypeTimeout) != 1 {
			t.Fatalf("expected one timeout broadcast, got %v", msgTypes(t, h))
		}
	}
	for i, rank := range participantRanks(s) {
		if rank != 0 {
			t.Fatalf("participant %d rank not reset: %d", i, rank)
		}
	}
	if idx := s.QuestionIndex(); idx != 1 {
		t.Fatalf("expected question index 1, got %d", idx)
	}

	// Second question: Bob redeems himself.
	if err := s.Advance(); err != nil {
		t.Fatalf("advance: %v", err)
	}
	s.SubmitAnswer(bob, "4")
	if last := lastMessage(t, bob); last["type"] != protocol.TypeRank || last["rank"] != float64(1) {
		t.Fatalf("expected rank 1 for Bob on question 2, got %v", last)
	}

	closeWindow(t, s, clock)
	if idx := s.QuestionIndex(); idx != 2 {
		t.Fatalf("expected question index 2, got %d", idx)
	}

	// Set exhausted: advancing finishes the quiz.
	if err := s.Advance(); err != nil {
		t.Fatalf("final advance: %v", err)
	}
	if s.Phase() != PhaseFinished {
		t.Fatalf("expected finished, got %v", s.Phase())
	}
	for _, h := range []*fakeHandle{alice, bob} {
		if countType(t, h, protocol.TypeEnd) != 1 {
			t.Fatalf("expected end broadcast, got %v", msgTypes(t, h))
		}
	}
	if err := s.Advance(); !errors.Is(err, domain.ErrQuizFinished) {
		t.Fatalf("expected ErrQuizFinished, got %v", err)
	}

	// Finished accepts no further submissions.
	before := len(alice.messages())
	s.SubmitAnswer(alice, "Tokyo")
	if len(alice.messages()) != before {
		t.Fatalf("submission after finish produced output")
	}
}

func TestRanksStrictlyIncreaseInSubmissionOrder(t *testing.T) {
	s, _ := newTestSession(testSet())
	handles := []*fakeHandle{{}, {}, {}, {}}
	for i, h := range handles {
		s.Join(string(rune('A'+i)), h)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	s.SubmitAnswer(handles[2], "Tokyo")
	s.SubmitAnswer(handles[0], "Tokyo")
	s.SubmitAnswer(handles[3], "Osaka")
	s.SubmitAnswer(handles[1], "Tokyo")

	got := participantRanks(s)
	want := []int{2, 3, 1, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected ranks %v, got %v", want, got)
		}
	}
}

func TestSecondCorrectAnswerIsIgnored(t *testing.T) {
	s, _ := newTestSession(testSet())
	alice := &fakeHandle{}
	s.Join("Alice", alice)
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	s.SubmitAnswer(alice, "Tokyo")
	s.SubmitAnswer(alice, "Tokyo")
	if n := countType(t, alice, protocol.TypeRank); n != 1 {
		t.Fatalf("expected exactly one rank message, got %d", n)
	}
	if got := participantRanks(s); got[0] != 1 {
		t.Fatalf("expected rank 1, got %d", got[0])
	}
}

// A wrong answer does not consume the attempt: participants may retry until
// correct, and the first correct answer wins the rank.
func TestRetryAfterWrongAnswer(t *testing.T) {
	s, _ := newTestSession(testSet())
	alice := &fakeHandle{}
	s.Join("Alice", alice)
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	s.SubmitAnswer(alice, "Osaka")
	s.SubmitAnswer(alice, "Kyoto")
	if n := countType(t, alice, protocol.TypeFeedback); n != 2 {
		t.Fatalf("expected two feedback messages, got %d", n)
	}
	s.SubmitAnswer(alice, "Tokyo")
	if last := lastMessage(t, alice); last["type"] != protocol.TypeRank || last["rank"] != float64(1) {
		t.Fatalf("expected rank 1 after retry, got %v", last)
	}
}

func TestSubmitOutsideWindowIsDropped(t *testing.T) {
	s, clock := newTestSession(testSet())
	alice := &fakeHandle{}
	s.Join("Alice", alice)

	// Before start.
	s.SubmitAnswer(alice, "Tokyo")
	if n := countType(t, alice, protocol.TypeRank); n != 0 {
		t.Fatalf("scored an answer while idle")
	}

	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	closeWindow(t, s, clock)

	// After the window closed.
	before := len(alice.messages())
	s.SubmitAnswer(alice, "Tokyo")
	if len(alice.messages()) != before {
		t.Fatalf("submission after window close produced output")
	}
}

func TestSubmitFromUnknownHandleIsIgnored(t *testing.T) {
	s, _ := newTestSession(testSet())
	s.Join("Alice", &fakeHandle{})
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	stranger := &fakeHandle{}
	s.SubmitAnswer(stranger, "Tokyo")
	if len(stranger.messages()) != 0 {
		t.Fatalf("unknown handle received messages: %v", msgTypes(t, stranger))
	}
}

func TestEmptyRegistryResetsSession(t *testing.T) {
	s, clock := newTestSession(testSet())
	alice := &fakeHandle{}
	bob := &fakeHandle{}
	s.Join("Alice", alice)
	s.Join("Bob", bob)
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	clock.BlockUntil(1)

	s.Leave(alice)
	if s.Phase() != PhaseQuestionOpen {
		t.Fatalf("session reset while participants remain")
	}
	s.Leave(bob)
	if s.Phase() != PhaseIdle {
		t.Fatalf("expected idle after last leave, got %v", s.Phase())
	}
	if idx := s.QuestionIndex(); idx != 0 {
		t.Fatalf("expected question index 0 after reset, got %d", idx)
	}

	// The pending window timer was cancelled; firing it must not touch the
	// fresh session.
	clock.Advance(testWindow)
	time.Sleep(20 * time.Millisecond)
	if s.Phase() != PhaseIdle {
		t.Fatalf("stale timer mutated reset session: %v", s.Phase())
	}

	// A fresh session can start over.
	carol := &fakeHandle{}
	s.Join("Carol", carol)
	if err := s.Start(); err != nil {
		t.Fatalf("restart after reset: %v", err)
	}
	if types := msgTypes(t, carol); types[len(types)-1] != protocol.TypeQuestion {
		t.Fatalf("expected question broadcast after restart, got %v", types)
	}
}

func TestDuplicateLeaveIsNoop(t *testing.T) {
	s, _ := newTestSession(testSet())
	alice := &fakeHandle{}
	bob := &fakeHandle{}
	s.Join("Alice", alice)
	s.Join("Bob", bob)

	s.Leave(alice)
	s.Leave(alice)
	if s.Participants() != 1 {
		t.Fatalf("expected 1 participant, got %d", s.Participants())
	}
	if s.Phase() != PhaseIdle {
		t.Fatalf("unexpected phase %v", s.Phase())
	}
}

func TestBroadcastFailureIsIsolated(t *testing.T) {
	s, _ := newTestSession(testSet())
	broken := &fakeHandle{failed: true}
	alice := &fakeHandle{}
	s.Join("Broken", broken)
	s.Join("Alice", alice)

	if err := s.Start(); err != nil {
		t.Fatalf("start despite broken handle: %v", err)
	}
	if n := countType(t, alice, protocol.TypeQuestion); n != 1 {
		t.Fatalf("healthy participant missed the question: %v", msgTypes(t, alice))
	}
	// The broken participant stays registered; removal is the connection
	// layer's call.
	if s.Participants() != 2 {
		t.Fatalf("delivery failure changed membership: %d", s.Participants())
	}
}

func TestWindowClosesAcrossRosterChurn(t *testing.T) {
	s, clock := newTestSession(testSet())
	alice := &fakeHandle{}
	bob := &fakeHandle{}
	s.Join("Alice", alice)
	s.Join("Bob", bob)
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	clock.BlockUntil(1)

	// Mid-window the roster churns but someone always remains, so the
	// window keeps running and closes normally.
	carol := &fakeHandle{}
	s.Join("Carol", carol)
	s.Leave(alice)
	s.Leave(bob)

	clock.Advance(testWindow)
	waitForPhase(t, s, PhaseQuestionClosed)
	if n := countType(t, carol, protocol.TypeTimeout); n != 1 {
		t.Fatalf("expected timeout for remaining participant, got %v", msgTypes(t, carol))
	}
}
