package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Question is a single generated question. Options is empty for free-response questions.
type Question struct {
	Text          string   `json:"question"`
	CorrectAnswer string   `json:"answer"`
	Options       []string `json:"options,omitempty"`
	Type          string   `json:"type,omitempty"`
	Difficulty    string   `json:"difficulty,omitempty"`
	Explanation   string   `json:"explanation,omitempty"`
}

// IsFreeResponse reports whether the question is answered with free text.
func (q Question) IsFreeResponse() bool {
	return len(q.Options) == 0
}

// QuestionEntry pairs a question with the opaque key assigned by the backend.
type QuestionEntry struct {
	Key      string
	Question Question
}

// QuestionItems is an ordered key → question mapping. On the wire it is a JSON
// object whose member order is the presentation order.
type QuestionItems []QuestionEntry

// UnmarshalJSON decodes a JSON object keeping member order. A JSON array is
// accepted too, keyed "1".."n".
func (qi *QuestionItems) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("questions: %w", err)
	}
	if tok == nil {
		*qi = nil
		return nil
	}
	delim, ok := tok.(json.Delim)
	if !ok || (delim != '{' && delim != '[') {
		return fmt.Errorf("questions: expected object, got %v", tok)
	}

	var items QuestionItems
	seen := make(map[string]bool)
	for i := 1; dec.More(); i++ {
		key := strconv.Itoa(i)
		if delim == '{' {
			tok, err := dec.Token()
			if err != nil {
				return fmt.Errorf("questions: %w", err)
			}
			key, ok = tok.(string)
			if !ok {
				return fmt.Errorf("questions: unexpected token %v", tok)
			}
		}
		if seen[key] {
			return fmt.Errorf("questions: duplicate key %q", key)
		}
		seen[key] = true

		var q Question
		if err := dec.Decode(&q); err != nil {
			return fmt.Errorf("question %q: %w", key, err)
		}
		items = append(items, QuestionEntry{Key: key, Question: q})
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("questions: %w", err)
	}

	*qi = items
	return nil
}

// MarshalJSON encodes the items as a JSON object in presentation order.
func (qi QuestionItems) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range qi {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(e.Question)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// QuestionSet is a generated set of objective or subjective questions.
type QuestionSet struct {
	TotalCount  int           `json:"total_questions"`
	AnswerStyle AnswerStyle   `json:"answer_style,omitempty"`
	Items       QuestionItems `json:"questions"`
}

// Len returns the number of questions in the set.
func (s *QuestionSet) Len() int {
	return len(s.Items)
}

// Get returns the question stored under key.
func (s *QuestionSet) Get(key string) (Question, bool) {
	for _, e := range s.Items {
		if e.Key == key {
			return e.Question, true
		}
	}
	return Question{}, false
}

// Has reports whether key belongs to the set.
func (s *QuestionSet) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Keys returns the question keys in presentation order.
func (s *QuestionSet) Keys() []string {
	keys := make([]string, len(s.Items))
	for i, e := range s.Items {
		keys[i] = e.Key
	}
	return keys
}
