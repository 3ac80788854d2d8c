package domain

import "errors"

var (
	// ErrQuestionSetNotFound indicates the question set could not be loaded.
	ErrQuestionSetNotFound = errors.New("question set not found")
	// ErrNoParticipants is returned when starting a session with nobody connected.
	ErrNoParticipants = errors.New("no participants connected")
	// ErrNoQuestions is returned when starting a session with an empty question set.
	ErrNoQuestions = errors.New("no questions loaded")
	// ErrAlreadyStarted is returned when Start is called outside the idle phase.
	ErrAlreadyStarted = errors.New("session already started")
	// ErrQuestionOpen is returned when Advance is called while answers are still accepted.
	ErrQuestionOpen = errors.New("question window still open")
	// ErrNotStarted is returned when Advance is called before the session started.
	ErrNotStarted = errors.New("session not started")
	// ErrQuizFinished is returned when Advance is called after the last question closed.
	ErrQuizFinished = errors.New("quiz already finished")
)
