package model

import "time"

// SessionState carries the artifacts accumulated for one browser session
// across page transitions. It performs no validation of its own.
type SessionState struct {
	ID        string
	Epoch     int64
	ExpiresAt time.Time

	Transcript *Transcript
	Summary    *Summary
	Objective  *QuestionSet
	Subjective *QuestionSet
	Quiz       *QuizSession
}

// SetTranscript stores a new transcript and drops every artifact derived from
// the previous one.
func (s *SessionState) SetTranscript(t Transcript) {
	s.Transcript = &t
	s.Summary = nil
	s.Objective = nil
	s.Subjective = nil
	s.Quiz = nil
}

// SetSummary stores the summary artifact.
func (s *SessionState) SetSummary(sum Summary) {
	s.Summary = &sum
}

// SetObjective stores a new objective question set. Any quiz over the
// previous set is discarded.
func (s *SessionState) SetObjective(set QuestionSet) {
	s.Objective = &set
	s.Quiz = nil
}

// SetSubjective stores the subjective question set.
func (s *SessionState) SetSubjective(set QuestionSet) {
	s.Subjective = &set
}

// SetQuiz stores the quiz progress.
func (s *SessionState) SetQuiz(q QuizSession) {
	s.Quiz = &q
}

// Clear drops all artifacts. The epoch is advanced by the store, not here.
func (s *SessionState) Clear() {
	s.Transcript = nil
	s.Summary = nil
	s.Objective = nil
	s.Subjective = nil
	s.Quiz = nil
}

// FileName returns the source file name of the current transcript, if any.
func (s *SessionState) FileName() string {
	if s.Transcript == nil {
		return ""
	}
	return s.Transcript.SourceFileName
}
