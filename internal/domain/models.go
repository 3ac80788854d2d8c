package domain

// Question is a single prompt with its candidate options and the expected
// answer. Submitted answers are compared against Answer by exact string
// equality. Answer is expected to appear in Options; that is a contract on
// the question source, not something the server enforces.
type Question struct {
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
	Answer  string   `json:"answer"`
}

// QuestionSet is an ordered collection of questions, immutable once loaded.
// An empty Questions slice is a valid load result; starting a session with
// zero questions is refused at the session level instead.
type QuestionSet struct {
	ID        string     `json:"id"`
	Questions []Question `json:"questions"`
}
