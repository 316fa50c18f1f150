// Package quiz implements the objective-question quiz: traversal, answer
// selection, scoring and review.
package quiz

import (
	"errors"
	"fmt"
	"math"

	"github.com/pavelanni/studysimplify/internal/model"
)

var (
	// ErrNotAnswering is returned for answer or navigation operations after scoring.
	ErrNotAnswering = errors.New("quiz is not accepting answers")
	// ErrUnanswered is returned by Advance while the current question has no answer.
	ErrUnanswered = errors.New("current question has no answer")
	// ErrUnknownQuestion is returned when an answer names a key outside the set.
	ErrUnknownQuestion = errors.New("question is not part of this quiz")
)

// Engine drives a QuizSession over a fixed question set.
type Engine struct {
	set     *model.QuestionSet
	session model.QuizSession
}

// New starts a quiz over set in the answering phase.
func New(set *model.QuestionSet) (*Engine, error) {
	if set == nil || set.Len() == 0 {
		return nil, &model.ValidationError{Field: "questions", Reason: "question set is empty"}
	}
	e := &Engine{set: set}
	e.Reset()
	return e, nil
}

// Resume rebuilds an engine from stored progress, rejecting progress that
// does not belong to set.
func Resume(set *model.QuestionSet, s model.QuizSession) (*Engine, error) {
	e, err := New(set)
	if err != nil {
		return nil, err
	}
	for key := range s.Answers {
		if !set.Has(key) {
			return nil, fmt.Errorf("resume: %w: %q", ErrUnknownQuestion, key)
		}
	}
	switch s.Phase {
	case model.PhaseAnswering:
		if s.CurrentIndex < 0 || s.CurrentIndex >= set.Len() {
			return nil, &model.ValidationError{Field: "quiz", Reason: fmt.Sprintf("index %d out of range", s.CurrentIndex)}
		}
	case model.PhaseReviewing:
	default:
		return nil, &model.ValidationError{Field: "quiz", Reason: "unknown phase " + string(s.Phase)}
	}

	e.session.Phase = s.Phase
	e.session.CurrentIndex = s.CurrentIndex
	for k, v := range s.Answers {
		e.session.Answers[k] = v
	}
	return e, nil
}

// Session returns a copy of the current progress.
func (e *Engine) Session() model.QuizSession {
	answers := make(map[string]string, len(e.session.Answers))
	for k, v := range e.session.Answers {
		answers[k] = v
	}
	return model.QuizSession{
		Answers:      answers,
		CurrentIndex: e.session.CurrentIndex,
		Phase:        e.session.Phase,
	}
}

// Phase returns the current phase.
func (e *Engine) Phase() model.QuizPhase {
	return e.session.Phase
}

// Index returns the zero-based position of the active question.
func (e *Engine) Index() int {
	return e.session.CurrentIndex
}

// Current returns the active question and its key.
func (e *Engine) Current() model.QuestionEntry {
	return e.set.Items[e.session.CurrentIndex]
}

// IsLast reports whether the active question is the last one.
func (e *Engine) IsLast() bool {
	return e.session.CurrentIndex == e.set.Len()-1
}

// Answer returns the recorded answer for key.
func (e *Engine) Answer(key string) (string, bool) {
	v, ok := e.session.Answers[key]
	return v, ok
}

// Progress returns the number of answered questions and the total.
func (e *Engine) Progress() (answered, total int) {
	return len(e.session.Answers), e.set.Len()
}

// SelectAnswer records value as the answer to key, replacing any earlier answer.
func (e *Engine) SelectAnswer(key, value string) error {
	if e.session.Phase != model.PhaseAnswering {
		return ErrNotAnswering
	}
	if !e.set.Has(key) {
		return fmt.Errorf("%w: %q", ErrUnknownQuestion, key)
	}
	e.session.Answers[key] = value
	return nil
}

// Advance moves to the next question. On the last question it ends the quiz
// and enters the reviewing phase.
func (e *Engine) Advance() error {
	if e.session.Phase != model.PhaseAnswering {
		return ErrNotAnswering
	}
	if _, ok := e.session.Answers[e.Current().Key]; !ok {
		return ErrUnanswered
	}
	if e.IsLast() {
		e.session.Phase = model.PhaseReviewing
		return nil
	}
	e.session.CurrentIndex++
	return nil
}

// Retreat moves to the previous question. It is a no-op on the first
// question and after scoring.
func (e *Engine) Retreat() {
	if e.session.Phase != model.PhaseAnswering || e.session.CurrentIndex == 0 {
		return
	}
	e.session.CurrentIndex--
}

// Reset discards all answers and restarts from the first question.
func (e *Engine) Reset() {
	e.session = model.QuizSession{
		Answers:      make(map[string]string),
		CurrentIndex: 0,
		Phase:        model.PhaseAnswering,
	}
}

// Outcome is the graded result of one question.
type Outcome struct {
	Key      string
	Question model.Question
	Answer   string
	Answered bool
	Correct  bool
}

// Result is the score of a quiz.
type Result struct {
	Score      int
	Total      int
	Percentage int
	Outcomes   []Outcome
}

// Score grades the current answers. Answers must equal the stored correct
// answer exactly; a missing answer is incorrect.
func (e *Engine) Score() Result {
	return Grade(e.set, e.session.Answers)
}

// Grade scores answers against set.
func Grade(set *model.QuestionSet, answers map[string]string) Result {
	res := Result{Total: set.Len()}
	for _, item := range set.Items {
		ans, ok := answers[item.Key]
		correct := ok && ans == item.Question.CorrectAnswer
		if correct {
			res.Score++
		}
		res.Outcomes = append(res.Outcomes, Outcome{
			Key:      item.Key,
			Question: item.Question,
			Answer:   ans,
			Answered: ok,
			Correct:  correct,
		})
	}
	res.Percentage = Percentage(res.Score, res.Total)
	return res
}

// Percentage returns round(100*score/total), or 0 when total is zero.
func Percentage(score, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(score) / float64(total)))
}
