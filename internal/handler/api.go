package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/pavelanni/studysimplify/internal/model"
	"github.com/pavelanni/studysimplify/internal/quiz"
)

type apiError struct {
	Error string `json:"error"`
}

type apiSession struct {
	FileName   string             `json:"file_name,omitempty"`
	Epoch      int64              `json:"epoch"`
	WordCount  int                `json:"word_count"`
	CharCount  int                `json:"char_count"`
	Transcript string             `json:"transcript,omitempty"`
	Summary    *model.Summary     `json:"summary,omitempty"`
	Objective  *model.QuestionSet `json:"objective,omitempty"`
	Subjective *model.QuestionSet `json:"subjective,omitempty"`
	HasQuiz    bool               `json:"has_quiz"`
	Busy       []model.Action     `json:"busy"`
}

type apiQuiz struct {
	Phase        model.QuizPhase   `json:"phase"`
	CurrentIndex int               `json:"current_index"`
	Total        int               `json:"total"`
	Answered     int               `json:"answered"`
	Answers      map[string]string `json:"answers"`
	Score        *int              `json:"score,omitempty"`
	Percentage   *int              `json:"percentage,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// apiSessionState loads the caller's session without creating one.
func (h *Handler) apiSessionState(w http.ResponseWriter, r *http.Request) *model.SessionState {
	sess, err := h.loadSession(r)
	if err != nil {
		slog.Error("failed to load session", "error", err)
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "internal error"})
		return nil
	}
	if sess == nil {
		writeJSON(w, http.StatusNotFound, apiError{Error: "no session"})
		return nil
	}
	return sess
}

func (h *Handler) handleAPISession(w http.ResponseWriter, r *http.Request) {
	sess := h.apiSessionState(w, r)
	if sess == nil {
		return
	}
	busy, err := h.store.BusyActions(sess.ID)
	if err != nil {
		slog.Error("failed to load busy actions", "session", sess.ID, "error", err)
	}

	out := apiSession{
		FileName:   sess.FileName(),
		Epoch:      sess.Epoch,
		Summary:    sess.Summary,
		Objective:  sess.Objective,
		Subjective: sess.Subjective,
		HasQuiz:    sess.Quiz != nil,
		Busy:       []model.Action{},
	}
	if sess.Transcript != nil {
		out.Transcript = sess.Transcript.Text
		out.WordCount = sess.Transcript.WordCount()
		out.CharCount = sess.Transcript.CharCount()
	}
	for _, a := range []model.Action{model.ActionTranscribe, model.ActionSummary, model.ActionObjective, model.ActionSubjective} {
		if busy[a] {
			out.Busy = append(out.Busy, a)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleAPIQuiz(w http.ResponseWriter, r *http.Request) {
	sess := h.apiSessionState(w, r)
	if sess == nil {
		return
	}
	p, err := newQuizPayload(sess)
	if err != nil {
		writeJSON(w, http.StatusNotFound, apiError{Error: "no quiz in progress"})
		return
	}
	e, err := quiz.Resume(p.Questions, p.Quiz)
	if err != nil {
		writeJSON(w, http.StatusConflict, apiError{Error: err.Error()})
		return
	}

	s := e.Session()
	answered, total := e.Progress()
	out := apiQuiz{
		Phase:        s.Phase,
		CurrentIndex: s.CurrentIndex,
		Total:        total,
		Answered:     answered,
		Answers:      s.Answers,
	}
	if s.Phase == model.PhaseReviewing {
		res := e.Score()
		out.Score = &res.Score
		out.Percentage = &res.Percentage
	}
	writeJSON(w, http.StatusOK, out)
}
