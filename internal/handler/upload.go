package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/pavelanni/studysimplify/internal/handler/views"
	"github.com/pavelanni/studysimplify/internal/model"
	"github.com/pavelanni/studysimplify/internal/store"
)

// multipartOverhead is allowed on top of the upload limit for form framing.
const multipartOverhead = 64 << 10

// handleHome shows the start screen. Arriving there starts over: the session
// is cleared and responses still in flight are discarded.
func (h *Handler) handleHome(w http.ResponseWriter, r *http.Request) {
	sess := model.SessionFromContext(r.Context())
	if err := h.store.ClearSession(sess); err != nil && !errors.Is(err, store.ErrStaleSession) {
		slog.Error("failed to clear session", "session", sess.ID, "error", err)
		h.renderHome(w, r, err)
		return
	}
	h.renderHome(w, r, nil)
}

func (h *Handler) renderHome(w http.ResponseWriter, r *http.Request, err error) {
	v := views.HomeView{
		Accept:      acceptList(),
		MaxUploadMB: h.config.MaxUploadSize >> 20,
	}
	status := http.StatusOK
	if err != nil {
		v.Error = errorMessage(r.Context(), err)
		status = errorStatus(err)
	}
	h.render(w, r, status, views.HomePage(v))
}

func (h *Handler) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	sess := model.SessionFromContext(r.Context())

	doc, err := h.readDocument(w, r)
	if err == nil {
		err = doc.Validate()
	}
	if err == nil {
		err = h.runAction(r, sess, model.ActionTranscribe, func(ctx context.Context) error {
			tr, err := h.transcriber.Transcribe(ctx, doc)
			if err != nil {
				return err
			}
			_, err = h.store.Replace(sess.ID, sess.Epoch, func(s *model.SessionState) error {
				s.SetTranscript(*tr)
				return nil
			})
			return err
		})
	}
	if errors.Is(err, store.ErrStaleSession) {
		h.redirectStale(w, r)
		return
	}
	if err != nil {
		slog.Warn("transcription failed", "session", sess.ID, "file", doc.Name, "error", err)
		h.renderHome(w, r, err)
		return
	}

	slog.Info("document transcribed", "session", sess.ID, "file", doc.Name)
	http.Redirect(w, r, h.path("/results"), http.StatusSeeOther)
}

// readDocument extracts the uploaded file, enforcing the upload size limit.
// A request without a file yields an empty Document.
func (h *Handler) readDocument(w http.ResponseWriter, r *http.Request) (model.Document, error) {
	tooLarge := &model.ValidationError{
		Field:  "file",
		Reason: fmt.Sprintf("file is larger than %d MB", h.config.MaxUploadSize>>20),
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadSize+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return model.Document{}, tooLarge
		}
		if errors.Is(err, http.ErrNotMultipart) {
			return model.Document{}, nil
		}
		return model.Document{}, &model.ValidationError{Field: "file", Reason: "malformed upload"}
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return model.Document{}, nil
	}
	if err != nil {
		return model.Document{}, fmt.Errorf("read upload: %w", err)
	}
	defer file.Close()

	if header.Size > h.config.MaxUploadSize {
		return model.Document{}, tooLarge
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return model.Document{}, fmt.Errorf("read upload: %w", err)
	}
	return model.Document{Name: header.Filename, Data: data}, nil
}

// handleRestart clears the session and returns to the start screen. Responses
// to requests still in flight are discarded.
func (h *Handler) handleRestart(w http.ResponseWriter, r *http.Request) {
	sess := model.SessionFromContext(r.Context())
	if err := h.store.ClearSession(sess); err != nil && !errors.Is(err, store.ErrStaleSession) {
		slog.Error("failed to clear session", "session", sess.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	slog.Debug("session cleared", "session", sess.ID, "epoch", sess.Epoch)
	http.Redirect(w, r, h.path("/"), http.StatusSeeOther)
}

func (h *Handler) handleResults(w http.ResponseWriter, r *http.Request) {
	h.renderResults(w, r, model.SessionFromContext(r.Context()), nil)
}

func (h *Handler) renderResults(w http.ResponseWriter, r *http.Request, sess *model.SessionState, err error) {
	p, perr := newResultsPayload(sess)
	if perr != nil {
		h.redirectHome(w, r, perr)
		return
	}
	busy, berr := h.store.BusyActions(sess.ID)
	if berr != nil {
		slog.Error("failed to load busy actions", "session", sess.ID, "error", berr)
	}
	v := views.ResultsView{
		Transcript:     p.Transcript,
		SummaryBusy:    busy[model.ActionSummary],
		ObjectiveBusy:  busy[model.ActionObjective],
		SubjectiveBusy: busy[model.ActionSubjective],
		HasObjective:   sess.Objective != nil && sess.Objective.Len() > 0,
		HasSubjective:  sess.Subjective != nil,
		MinCount:       model.MinQuestionCount,
		MaxCount:       model.MaxQuestionCount,
		DefaultCount:   model.DefaultQuestionCount,
		AnswerStyles:   model.AnswerStyles,
	}
	status := http.StatusOK
	if err != nil {
		v.Error = errorMessage(r.Context(), err)
		status = errorStatus(err)
	}
	h.render(w, r, status, views.ResultsPage(v))
}
