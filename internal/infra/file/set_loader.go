// Package file loads question sets from JSON documents on disk.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"quizcast-service/internal/domain"
)

// SetLoader reads one question set from a JSON file shaped
// {"id": "...", "questions": [{"prompt","options","answer"}, ...]}.
// The file is read on every LoadSet call; callers that want caching wrap
// this in a cached repository.
type SetLoader struct {
	path string
}

func NewSetLoader(path string) *SetLoader {
	return &SetLoader{path: path}
}

func (l *SetLoader) LoadSet(_ context.Context, setID string) (domain.QuestionSet, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return domain.QuestionSet{}, fmt.Errorf("read question file %s: %w", l.path, err)
	}

	var set domain.QuestionSet
	if err := json.Unmarshal(data, &set); err != nil {
		return domain.QuestionSet{}, fmt.Errorf("parse question file %s: %w", l.path, err)
	}
	if set.ID == "" {
		set.ID = strings.TrimSuffix(filepath.Base(l.path), filepath.Ext(l.path))
	}
	if setID != "" && set.ID != setID {
		return domain.QuestionSet{}, fmt.Errorf("file %s holds set %q, want %q: %w",
			l.path, set.ID, setID, domain.ErrQuestionSetNotFound)
	}
	if err := validate(set); err != nil {
		return domain.QuestionSet{}, fmt.Errorf("question file %s: %w", l.path, err)
	}
	return set, nil
}

// validate rejects structurally broken records. An empty question list is
// fine; whether the answer appears among the options is a contract on the
// data, not checked here.
func validate(set domain.QuestionSet) error {
	for i, q := range set.Questions {
		if q.Prompt == "" {
			return fmt.Errorf("question %d: missing prompt", i)
		}
		if len(q.Options) == 0 {
			return fmt.Errorf("question %d: no options", i)
		}
		if q.Answer == "" {
			return fmt.Errorf("question %d: missing answer", i)
		}
	}
	return nil
}
