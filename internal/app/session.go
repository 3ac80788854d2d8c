// Package app contains the quiz session core: the phase state machine, the
// participant registry, and the broadcast fan-out that ties them together.
// All session state is guarded by a single mutex; the answer-window timer
// feeds its transition through that same boundary, so a timeout can never
// interleave with a submission or a reset.
package app

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"quizcast-service/internal/domain"
	"quizcast-service/internal/protocol"
)

// Phase is the session lifecycle state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseQuestionOpen
	PhaseQuestionClosed
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseQuestionOpen:
		return "question-open"
	case PhaseQuestionClosed:
		return "question-closed"
	case PhaseFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Session owns the quiz state machine for one live session. It is the only
// component that mutates ranking state. Participants may keep answering
// after a wrong answer; the first correct answer wins the rank, and a
// participant with a rank already assigned is ignored for the rest of the
// window.
type Session struct {
	log    zerolog.Logger
	clock  clockwork.Clock
	window time.Duration

	mu          sync.Mutex
	questions   []domain.Question
	reg         *registry
	phase       Phase
	current     int // cursor into questions, len(questions) means exhausted
	rankCounter int
	accepting   bool

	timer       clockwork.Timer
	timerCancel chan struct{}
	timerGen    uint64
}

// NewSession builds a session over an immutable question set. window is the
// fixed duration each question accepts answers for.
func NewSession(set domain.QuestionSet, window time.Duration, logger zerolog.Logger) *Session {
	return NewSessionWithClock(set, window, logger, clockwork.NewRealClock())
}

// NewSessionWithClock injects the clock for deterministic timer tests.
func NewSessionWithClock(set domain.QuestionSet, window time.Duration, logger zerolog.Logger, clock clockwork.Clock) *Session {
	return &Session{
		log:         logger.With().Str("component", "session").Logger(),
		clock:       clock,
		window:      window,
		questions:   set.Questions,
		reg:         newRegistry(),
		phase:       PhaseIdle,
		rankCounter: 1,
	}
}

// Join registers a new participant and welcomes them. Joining never fails;
// duplicate names are allowed and mid-question joins simply enter the
// current window unranked.
func (s *Session) Join(name string, handle Handle) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.reg.register(name, handle)
	s.log.Info().
		Str("participant", p.id.String()).
		Str("name", name).
		Int("connected", s.reg.size()).
		Msg("participant joined")
	s.unicastLocked(p, protocol.Welcome("welcome, "+name))
	return p.id
}

// Leave removes the participant owning the handle. Late or duplicate leave
// signals are no-ops. When the last participant leaves, the session resets
// to idle and any pending window timer is cancelled.
func (s *Session) Leave(handle Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.reg.resolve(handle)
	if !ok {
		return
	}
	empty := s.reg.unregister(handle)
	s.log.Info().
		Str("participant", p.id.String()).
		Str("name", p.displayName).
		Int("connected", s.reg.size()).
		Msg("participant left")
	if empty {
		s.resetLocked()
	}
}

// Start opens the first question. Valid only from idle with at least one
// participant and at least one question; violations are reported to the
// operator as errors without touching state.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseIdle {
		return domain.ErrAlreadyStarted
	}
	if s.reg.size() == 0 {
		return domain.ErrNoParticipants
	}
	if len(s.questions) == 0 {
		return domain.ErrNoQuestions
	}
	s.current = 0
	s.rankCounter = 1
	s.openQuestionLocked()
	return nil
}

// Advance opens the next question, or finishes the quiz when the set is
// exhausted. Valid only after a window has fully closed; anything else is a
// reported no-op.
func (s *Session) Advance() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.phase {
	case PhaseIdle:
		return domain.ErrNotStarted
	case PhaseQuestionOpen:
		return domain.ErrQuestionOpen
	case PhaseFinished:
		return domain.ErrQuizFinished
	}

	if s.current >= len(s.questions) {
		s.phase = PhaseFinished
		s.log.Info().Msg("quiz finished")
		s.broadcastLocked(protocol.End("the quiz is over, thanks for playing"))
		return nil
	}
	s.openQuestionLocked()
	return nil
}

// SubmitAnswer scores an answer for the participant owning the handle.
// Submissions outside an open window, from unknown handles, or from
// participants already ranked this window are silently dropped. A correct
// answer is assigned the next rank and acknowledged; a wrong answer gets
// feedback and leaves the participant free to retry.
func (s *Session) SubmitAnswer(handle Handle, answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseQuestionOpen || !s.accepting {
		return
	}
	p, ok := s.reg.resolve(handle)
	if !ok {
		return
	}
	if p.rank != 0 {
		return
	}
	if answer == s.questions[s.current].Answer {
		p.rank = s.rankCounter
		s.rankCounter++
		s.log.Info().
			Str("participant", p.id.String()).
			Str("name", p.displayName).
			Int("rank", p.rank).
			Msg("correct answer")
		s.unicastLocked(p, protocol.Rank(p.rank))
		return
	}
	s.unicastLocked(p, protocol.Feedback("wrong answer"))
}

// Phase reports the current lifecycle phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// QuestionIndex reports the question cursor; it equals the number of windows
// that have closed so far.
func (s *Session) QuestionIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Participants reports how many handles are registered.
func (s *Session) Participants() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.size()
}

// openQuestionLocked broadcasts the question at the cursor and arms the
// window timer.
func (s *Session) openQuestionLocked() {
	q := s.questions[s.current]
	s.phase = PhaseQuestionOpen
	s.accepting = true
	s.armWindowLocked()
	s.log.Info().
		Int("question", s.current).
		Str("prompt", q.Prompt).
		Msg("question opened")
	s.broadcastLocked(protocol.Question(q.Prompt, q.Options))
}

// armWindowLocked starts the one-shot window timer. The generation counter
// invalidates any timer that outlives a reset, so a stale fire can never
// mutate a logically different session.
func (s *Session) armWindowLocked() {
	s.cancelWindowLocked()
	s.timerGen++
	gen := s.timerGen
	cancel := make(chan struct{})
	timer := s.clock.NewTimer(s.window)
	s.timer = timer
	s.timerCancel = cancel

	go func() {
		select {
		case <-timer.Chan():
			s.windowTimeout(gen)
		case <-cancel:
		}
	}()
}

// cancelWindowLocked stops a pending timer, if any, and releases its
// goroutine. Bumping the generation guards against a fire that already left
// the timer channel.
func (s *Session) cancelWindowLocked() {
	if s.timer == nil {
		return
	}
	s.timer.Stop()
	close(s.timerCancel)
	s.timer = nil
	s.timerCancel = nil
	s.timerGen++
}

// windowTimeout closes the current question's window. It fires exactly once
// per opened question; a stale generation means the session was reset (or
// re-armed) after this timer was created, and the fire is discarded.
func (s *Session) windowTimeout(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.timerGen || s.phase != PhaseQuestionOpen {
		return
	}
	s.timer = nil
	s.timerCancel = nil
	s.accepting = false
	s.reg.resetRanks()
	s.rankCounter = 1
	s.current++
	s.phase = PhaseQuestionClosed
	s.log.Info().
		Int("next_question", s.current).
		Msg("answer window closed")
	s.broadcastLocked(protocol.Timeout("time is up"))
}

// resetLocked returns the session to idle. Called when the registry empties;
// the pending timer is cancelled so it cannot fire against the fresh state.
func (s *Session) resetLocked() {
	s.cancelWindowLocked()
	s.phase = PhaseIdle
	s.current = 0
	s.rankCounter = 1
	s.accepting = false
	s.log.Info().Msg("all participants left, session reset")
}
