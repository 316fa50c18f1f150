package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	appI18n "github.com/pavelanni/studysimplify/internal/i18n"
	"github.com/pavelanni/studysimplify/internal/model"
	"github.com/pavelanni/studysimplify/internal/quiz"
	"github.com/pavelanni/studysimplify/internal/store"
)

// Transcriber turns an uploaded document into text.
type Transcriber interface {
	Transcribe(ctx context.Context, doc model.Document) (*model.Transcript, error)
}

// Generator produces the artifacts derived from a transcript.
type Generator interface {
	Summarize(ctx context.Context, text string) (*model.Summary, error)
	GenerateObjective(ctx context.Context, text string, opts model.ObjectiveOptions) (*model.QuestionSet, error)
	GenerateSubjective(ctx context.Context, text string, opts model.SubjectiveOptions) (*model.QuestionSet, error)
}

// errBusy is reported when an action is already in flight for the session.
var errBusy = errors.New("action already in progress")

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store       *store.Store
	transcriber Transcriber
	generator   Generator
	config      model.Config
}

// New creates a new Handler.
func New(s *store.Store, t Transcriber, g Generator, cfg model.Config) (*Handler, error) {
	if s == nil || t == nil || g == nil {
		return nil, errors.New("handler: store, transcriber and generator are required")
	}
	if cfg.NumOptions <= 1 {
		cfg.NumOptions = model.DefaultOptionCount
	}
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = 25 << 20
	}
	return &Handler{store: s, transcriber: t, generator: g, config: cfg}, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)

	r.Route("/api", func(api chi.Router) {
		api.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORSOrigins,
			AllowedMethods:   []string{"GET", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			ExposedHeaders:   []string{"Content-Length"},
			AllowCredentials: len(h.config.CORSOrigins) > 0,
			MaxAge:           300,
		}))
		api.Get("/session", h.handleAPISession)
		api.Get("/quiz", h.handleAPIQuiz)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.sessionMiddleware)
		r.Use(h.csrfMiddleware)

		r.Get("/", h.handleHome)
		r.Post("/transcribe", h.handleTranscribe)
		r.Post("/restart", h.handleRestart)
		r.Get("/results", h.handleResults)

		r.Post("/summary", h.handleGenerateSummary)
		r.Get("/summary", h.handleSummary)

		r.Post("/objective", h.handleGenerateObjective)
		r.Get("/objective", h.handleObjective)
		r.Post("/objective/quiz/start", h.handleQuizStart)
		r.Get("/objective/quiz", h.handleQuiz)
		r.Post("/objective/quiz/answer", h.handleQuizAnswer)
		r.Post("/objective/quiz/reset", h.handleQuizReset)

		r.Post("/subjective", h.handleGenerateSubjective)
		r.Get("/subjective", h.handleSubjective)
	})
}

// BasePathMiddleware stores the configured URL prefix in the request context.
func (h *Handler) BasePathMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := model.ContextWithBasePath(r.Context(), h.config.BasePath)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// path prefixes p with the configured base path.
func (h *Handler) path(p string) string {
	return h.config.BasePath + p
}

func (h *Handler) cookiePath() string {
	if h.config.BasePath != "" {
		return h.config.BasePath + "/"
	}
	return "/"
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

// redirectHome sends the user back to the start screen. It is used when a
// page is entered without the data it needs.
func (h *Handler) redirectHome(w http.ResponseWriter, r *http.Request, err error) {
	slog.Debug("missing handoff data, redirecting to start", "path", r.URL.Path, "error", err)
	http.Redirect(w, r, h.path("/"), http.StatusSeeOther)
}

// redirectStale drops a response whose session moved on while it was being
// computed, either cleared or given a new transcript. The results page shows
// whatever the session holds now and falls through to the start screen when
// it holds nothing.
func (h *Handler) redirectStale(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.path("/results"), http.StatusSeeOther)
}

// errorStatus maps an error to the HTTP status of the page that reports it.
func errorStatus(err error) int {
	var ve *model.ValidationError
	var re *model.RequestError
	switch {
	case errors.Is(err, errBusy):
		return http.StatusConflict
	case errors.Is(err, quiz.ErrUnanswered), errors.Is(err, quiz.ErrUnknownQuestion), errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.As(err, &re):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage returns the localized banner text for err.
func errorMessage(ctx context.Context, err error) string {
	var ve *model.ValidationError
	var re *model.RequestError
	switch {
	case errors.Is(err, errBusy):
		return appI18n.T(ctx, "ErrBusy")
	case errors.Is(err, quiz.ErrUnanswered):
		return appI18n.T(ctx, "ErrUnanswered")
	case errors.Is(err, quiz.ErrUnknownQuestion):
		return appI18n.Td(ctx, "ErrValidation", map[string]any{"Reason": err.Error()})
	case errors.As(err, &ve):
		return appI18n.Td(ctx, "ErrValidation", map[string]any{"Reason": ve.Error()})
	case errors.As(err, &re):
		return appI18n.Td(ctx, "ErrRequest", map[string]any{"Reason": re.Error()})
	default:
		return appI18n.T(ctx, "ErrInternal")
	}
}

// acceptList is the value of the upload input's accept attribute.
func acceptList() string {
	return strings.Join(model.AllowedExtensions, ",")
}
