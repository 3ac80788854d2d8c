// Package protocol defines the JSON wire messages exchanged with quiz
// participants. Every message is a flat object carrying a "type"
// discriminator; inbound payloads are decoded into a closed set of variants
// with explicit validation instead of free-form field access.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Message type discriminators.
const (
	TypeJoin     = "join"
	TypeAnswer   = "answer"
	TypeWelcome  = "welcome"
	TypeQuestion = "question"
	TypeRank     = "rank"
	TypeFeedback = "feedback"
	TypeTimeout  = "timeout"
	TypeEnd      = "end"
	TypeError    = "error"
)

// Inbound is the closed set of messages a participant may send.
type Inbound interface{ inbound() }

// Join registers a participant under a display name.
type Join struct {
	Name string
}

// Answer submits an answer to the currently open question.
type Answer struct {
	Answer string
}

func (Join) inbound()   {}
func (Answer) inbound() {}

type inboundEnvelope struct {
	Type   string  `json:"type"`
	Name   *string `json:"name"`
	Answer *string `json:"answer"`
}

// DecodeInbound parses a raw client message into one of the Inbound
// variants. Unknown discriminators and missing required fields are errors;
// the caller is expected to answer those with an error message rather than
// dropping the connection.
func DecodeInbound(data []byte) (Inbound, error) {
	var env inboundEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	switch env.Type {
	case TypeJoin:
		if env.Name == nil || *env.Name == "" {
			return nil, fmt.Errorf("join message requires a name")
		}
		return Join{Name: *env.Name}, nil
	case TypeAnswer:
		if env.Answer == nil {
			return nil, fmt.Errorf("answer message requires an answer")
		}
		return Answer{Answer: *env.Answer}, nil
	case "":
		return nil, fmt.Errorf("message missing type")
	default:
		return nil, fmt.Errorf("unsupported message type %q", env.Type)
	}
}

// Outbound is the closed set of messages the server sends.
type Outbound interface{ outbound() }

type WelcomeMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type QuestionMessage struct {
	Type     string   `json:"type"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

// RankMessage is unicast to a participant whose answer was accepted.
type RankMessage struct {
	Type string `json:"type"`
	Rank int    `json:"rank"`
}

// FeedbackMessage is unicast to a participant whose answer was wrong.
type FeedbackMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type TimeoutMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type EndMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (WelcomeMessage) outbound()  {}
func (QuestionMessage) outbound() {}
func (RankMessage) outbound()     {}
func (FeedbackMessage) outbound() {}
func (TimeoutMessage) outbound()  {}
func (EndMessage) outbound()      {}
func (ErrorMessage) outbound()    {}

func Welcome(message string) WelcomeMessage {
	return WelcomeMessage{Type: TypeWelcome, Message: message}
}

func Question(prompt string, options []string) QuestionMessage {
	return QuestionMessage{Type: TypeQuestion, Question: prompt, Options: options}
}

func Rank(rank int) RankMessage {
	return RankMessage{Type: TypeRank, Rank: rank}
}

func Feedback(message string) FeedbackMessage {
	return FeedbackMessage{Type: TypeFeedback, Message: message}
}

func Timeout(message string) TimeoutMessage {
	return TimeoutMessage{Type: TypeTimeout, Message: message}
}

func End(message string) EndMessage {
	return EndMessage{Type: TypeEnd, Message: message}
}

func Error(message string) ErrorMessage {
	return ErrorMessage{Type: TypeError, Message: message}
}

// Encode marshals an outbound message once; broadcast reuses the bytes for
// every recipient.
func Encode(msg Outbound) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", msg, err)
	}
	return data, nil
}
