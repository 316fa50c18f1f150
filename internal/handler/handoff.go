package handler

import "github.com/pavelanni/studysimplify/internal/model"

// Each page validates the data it needs from the session on entry. A missing
// field is a ValidationError and the caller redirects to the start screen.

func missing(field string) error {
	return &model.ValidationError{Field: field, Reason: "not available, start from the upload page"}
}

type resultsPayload struct {
	Transcript model.Transcript
}

func newResultsPayload(s *model.SessionState) (resultsPayload, error) {
	if s == nil || s.Transcript == nil {
		return resultsPayload{}, missing("transcript")
	}
	return resultsPayload{Transcript: *s.Transcript}, nil
}

type summaryPayload struct {
	FileName string
	Summary  model.Summary
}

func newSummaryPayload(s *model.SessionState) (summaryPayload, error) {
	if s == nil || s.Transcript == nil {
		return summaryPayload{}, missing("transcript")
	}
	if s.Summary == nil {
		return summaryPayload{}, missing("summary")
	}
	return summaryPayload{FileName: s.FileName(), Summary: *s.Summary}, nil
}

type questionsPayload struct {
	FileName  string
	Questions *model.QuestionSet
}

func newObjectivePayload(s *model.SessionState) (questionsPayload, error) {
	if s == nil || s.Transcript == nil {
		return questionsPayload{}, missing("transcript")
	}
	if s.Objective == nil || s.Objective.Len() == 0 {
		return questionsPayload{}, missing("objective questions")
	}
	return questionsPayload{FileName: s.FileName(), Questions: s.Objective}, nil
}

func newSubjectivePayload(s *model.SessionState) (questionsPayload, error) {
	if s == nil || s.Transcript == nil {
		return questionsPayload{}, missing("transcript")
	}
	if s.Subjective == nil {
		return questionsPayload{}, missing("subjective questions")
	}
	return questionsPayload{FileName: s.FileName(), Questions: s.Subjective}, nil
}

type quizPayload struct {
	questionsPayload
	Quiz model.QuizSession
}

func newQuizPayload(s *model.SessionState) (quizPayload, error) {
	qp, err := newObjectivePayload(s)
	if err != nil {
		return quizPayload{}, err
	}
	if s.Quiz == nil {
		return quizPayload{}, missing("quiz")
	}
	return quizPayload{questionsPayload: qp, Quiz: *s.Quiz}, nil
}
