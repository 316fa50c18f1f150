package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/pavelanni/studysimplify/internal/handler/views"
	"github.com/pavelanni/studysimplify/internal/model"
	"github.com/pavelanni/studysimplify/internal/store"
)

// runAction claims the busy flag for action, runs fn and releases the flag.
// fn runs detached from the request's cancellation: a request, once sent, is
// never aborted, and a stale result is dropped by the epoch check instead.
func (h *Handler) runAction(r *http.Request, sess *model.SessionState, action model.Action, fn func(ctx context.Context) error) error {
	ok, err := h.store.BeginAction(sess.ID, action, sess.Epoch)
	if err != nil {
		return fmt.Errorf("claim %s: %w", action, err)
	}
	if !ok {
		return errBusy
	}
	defer func() {
		if err := h.store.EndAction(sess.ID, action, sess.Epoch); err != nil {
			slog.Error("failed to release busy flag", "session", sess.ID, "action", action, "error", err)
		}
	}()
	return fn(context.WithoutCancel(r.Context()))
}

// generate runs an artifact request for the current transcript and stores the
// result with apply. On success it redirects to next; on failure it re-renders
// the results page with an error banner.
func (h *Handler) generate(w http.ResponseWriter, r *http.Request, action model.Action, next string,
	request func(ctx context.Context, text string) (func(*model.SessionState), error)) {
	sess := model.SessionFromContext(r.Context())
	p, err := newResultsPayload(sess)
	if err != nil {
		h.redirectHome(w, r, err)
		return
	}

	err = h.runAction(r, sess, action, func(ctx context.Context) error {
		apply, err := request(ctx, p.Transcript.Text)
		if err != nil {
			return err
		}
		_, err = h.store.Update(sess.ID, sess.Epoch, func(s *model.SessionState) error {
			apply(s)
			return nil
		})
		return err
	})
	if errors.Is(err, store.ErrStaleSession) {
		slog.Info("discarding stale response", "session", sess.ID, "action", action)
		h.redirectStale(w, r)
		return
	}
	if err != nil {
		slog.Warn("artifact request failed", "session", sess.ID, "action", action, "error", err)
		h.renderResults(w, r, sess, err)
		return
	}
	http.Redirect(w, r, h.path(next), http.StatusSeeOther)
}

// questionCount reads the requested number of questions. Anything that is not
// a number falls back to the default; numbers are clamped by the requesters.
func questionCount(r *http.Request) int {
	n, err := strconv.Atoi(r.PostFormValue("count"))
	if err != nil {
		return model.DefaultQuestionCount
	}
	return n
}

// useEvaluator reads the evaluator checkbox. The form posts a hidden "false"
// before the checkbox, so the last value wins; absence means true.
func useEvaluator(r *http.Request) bool {
	if err := r.ParseForm(); err != nil {
		slog.Debug("unreadable form, keeping evaluator on", "error", err)
		return true
	}
	vals := r.PostForm["use_evaluator"]
	if len(vals) == 0 {
		return true
	}
	v, err := strconv.ParseBool(vals[len(vals)-1])
	return err != nil || v
}

func (h *Handler) handleGenerateSummary(w http.ResponseWriter, r *http.Request) {
	h.generate(w, r, model.ActionSummary, "/summary", func(ctx context.Context, text string) (func(*model.SessionState), error) {
		sum, err := h.generator.Summarize(ctx, text)
		if err != nil {
			return nil, err
		}
		return func(s *model.SessionState) { s.SetSummary(*sum) }, nil
	})
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	p, err := newSummaryPayload(model.SessionFromContext(r.Context()))
	if err != nil {
		h.redirectHome(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, views.SummaryPage(views.SummaryView{
		FileName: p.FileName,
		Summary:  p.Summary,
	}))
}

func (h *Handler) handleGenerateObjective(w http.ResponseWriter, r *http.Request) {
	opts := model.ObjectiveOptions{
		QuestionCount: questionCount(r),
		OptionCount:   h.config.NumOptions,
	}
	h.generate(w, r, model.ActionObjective, "/objective", func(ctx context.Context, text string) (func(*model.SessionState), error) {
		set, err := h.generator.GenerateObjective(ctx, text, opts)
		if err != nil {
			return nil, err
		}
		if set.Len() == 0 {
			return nil, &model.RequestError{Op: "generate objective questions", Message: "no questions were generated"}
		}
		return func(s *model.SessionState) { s.SetObjective(*set) }, nil
	})
}

func (h *Handler) handleObjective(w http.ResponseWriter, r *http.Request) {
	sess := model.SessionFromContext(r.Context())
	p, err := newObjectivePayload(sess)
	if err != nil {
		h.redirectHome(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, views.ObjectivePage(views.ObjectiveView{
		FileName:  p.FileName,
		Questions: p.Questions,
		HasQuiz:   sess.Quiz != nil,
	}))
}

func (h *Handler) handleGenerateSubjective(w http.ResponseWriter, r *http.Request) {
	opts := model.SubjectiveOptions{
		QuestionCount: questionCount(r),
		AnswerStyle:   model.ParseAnswerStyle(r.PostFormValue("answer_style")),
		UseEvaluator:  useEvaluator(r),
	}
	h.generate(w, r, model.ActionSubjective, "/subjective", func(ctx context.Context, text string) (func(*model.SessionState), error) {
		set, err := h.generator.GenerateSubjective(ctx, text, opts)
		if err != nil {
			return nil, err
		}
		return func(s *model.SessionState) { s.SetSubjective(*set) }, nil
	})
}

func (h *Handler) handleSubjective(w http.ResponseWriter, r *http.Request) {
	p, err := newSubjectivePayload(model.SessionFromContext(r.Context()))
	if err != nil {
		h.redirectHome(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, views.SubjectivePage(views.SubjectiveView{
		FileName:  p.FileName,
		Questions: p.Questions,
	}))
}
