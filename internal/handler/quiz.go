package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/pavelanni/studysimplify/internal/handler/views"
	"github.com/pavelanni/studysimplify/internal/model"
	"github.com/pavelanni/studysimplify/internal/quiz"
	"github.com/pavelanni/studysimplify/internal/store"
)

func (h *Handler) handleQuizStart(w http.ResponseWriter, r *http.Request) {
	sess := model.SessionFromContext(r.Context())
	if _, err := newObjectivePayload(sess); err != nil {
		h.redirectHome(w, r, err)
		return
	}

	_, err := h.store.Update(sess.ID, sess.Epoch, func(s *model.SessionState) error {
		p, err := newObjectivePayload(s)
		if err != nil {
			return err
		}
		e, err := quiz.New(p.Questions)
		if err != nil {
			return err
		}
		s.SetQuiz(e.Session())
		return nil
	})
	if err != nil {
		h.redirectHome(w, r, err)
		return
	}
	http.Redirect(w, r, h.path("/objective/quiz"), http.StatusSeeOther)
}

func (h *Handler) handleQuiz(w http.ResponseWriter, r *http.Request) {
	p, err := newQuizPayload(model.SessionFromContext(r.Context()))
	if err != nil {
		h.redirectHome(w, r, err)
		return
	}
	e, err := quiz.Resume(p.Questions, p.Quiz)
	if err != nil {
		slog.Warn("discarding invalid quiz state", "error", err)
		http.Redirect(w, r, h.path("/objective"), http.StatusSeeOther)
		return
	}
	h.renderQuiz(w, r, p.FileName, e, nil)
}

// handleQuizAnswer records the submitted answer and then moves in the
// direction given by nav ("next" or "prev"; anything else only saves).
func (h *Handler) handleQuizAnswer(w http.ResponseWriter, r *http.Request) {
	sess := model.SessionFromContext(r.Context())
	key := r.PostFormValue("key")
	answer := r.PostFormValue("answer")
	nav := r.PostFormValue("nav")

	var (
		e        *quiz.Engine
		fileName string
		inputErr error
	)
	_, err := h.store.Update(sess.ID, sess.Epoch, func(s *model.SessionState) error {
		p, err := newQuizPayload(s)
		if err != nil {
			return err
		}
		e, err = quiz.Resume(p.Questions, p.Quiz)
		if err != nil {
			return err
		}
		fileName = p.FileName
		inputErr = applyQuizInput(e, key, answer, nav)
		s.SetQuiz(e.Session())
		return nil
	})

	var ve *model.ValidationError
	switch {
	case errors.Is(err, store.ErrStaleSession):
		h.redirectStale(w, r)
		return
	case errors.As(err, &ve):
		h.redirectHome(w, r, err)
		return
	case err != nil:
		slog.Warn("failed to update quiz", "session", sess.ID, "error", err)
		http.Redirect(w, r, h.path("/objective"), http.StatusSeeOther)
		return
	case inputErr != nil && !errors.Is(inputErr, quiz.ErrNotAnswering):
		h.renderQuiz(w, r, fileName, e, inputErr)
		return
	}
	http.Redirect(w, r, h.path("/objective/quiz"), http.StatusSeeOther)
}

func applyQuizInput(e *quiz.Engine, key, answer, nav string) error {
	if answer != "" {
		if err := e.SelectAnswer(key, answer); err != nil {
			return err
		}
	}
	switch nav {
	case "next":
		return e.Advance()
	case "prev":
		e.Retreat()
	}
	return nil
}

func (h *Handler) handleQuizReset(w http.ResponseWriter, r *http.Request) {
	sess := model.SessionFromContext(r.Context())
	_, err := h.store.Update(sess.ID, sess.Epoch, func(s *model.SessionState) error {
		p, err := newQuizPayload(s)
		if err != nil {
			return err
		}
		e, err := quiz.Resume(p.Questions, p.Quiz)
		if err != nil {
			if e, err = quiz.New(p.Questions); err != nil {
				return err
			}
		}
		e.Reset()
		s.SetQuiz(e.Session())
		return nil
	})
	if err != nil {
		h.redirectHome(w, r, err)
		return
	}
	http.Redirect(w, r, h.path("/objective/quiz"), http.StatusSeeOther)
}

func (h *Handler) renderQuiz(w http.ResponseWriter, r *http.Request, fileName string, e *quiz.Engine, err error) {
	answered, total := e.Progress()
	v := views.QuizView{
		FileName:  fileName,
		Reviewing: e.Phase() == model.PhaseReviewing,
		Total:     total,
		Answered:  answered,
	}
	if v.Reviewing {
		v.Result = e.Score()
	} else {
		v.Current = e.Current()
		v.Answer, _ = e.Answer(v.Current.Key)
		v.Number = e.Index() + 1
		v.IsFirst = e.Index() == 0
		v.IsLast = e.IsLast()
	}
	status := http.StatusOK
	if err != nil {
		v.Error = errorMessage(r.Context(), err)
		status = errorStatus(err)
	}
	h.render(w, r, status, views.QuizPage(v))
}
