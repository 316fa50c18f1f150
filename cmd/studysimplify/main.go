package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/pavelanni/studysimplify/internal/backend"
	"github.com/pavelanni/studysimplify/internal/handler"
	appI18n "github.com/pavelanni/studysimplify/internal/i18n"
	"github.com/pavelanni/studysimplify/internal/llm"
	"github.com/pavelanni/studysimplify/internal/model"
	"github.com/pavelanni/studysimplify/internal/store"
)

const (
	janitorInterval = 5 * time.Minute
	shutdownTimeout = 10 * time.Second
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "studysimplify",
		Short: "Turn study documents into summaries and practice questions",
	}

	serve := serveCmd()
	root.AddCommand(serve, generateCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `studysimplify --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

// addGeneratorFlags registers the flags shared by every command that talks
// to the backend or the LLM.
func addGeneratorFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("backend-url", "http://localhost:8000", "Transcription and generation backend base URL")
	f.Duration("backend-timeout", 5*time.Minute, "Timeout for a single backend request (0 = none)")
	f.String("generator", "backend", "Artifact generator (backend, llm)")
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL (generator=llm)")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	f.Int("num-options", model.DefaultOptionCount, "Options per multiple-choice question")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE:  runServe,
	}
	addGeneratorFlags(cmd)
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", ":memory:", "SQLite database path for session state")
	f.StringP("lang", "l", "", "UI language (en, ru; empty = follow the browser)")
	f.Int64("max-upload-mb", 25, "Maximum upload size in MB")
	f.Duration("session-ttl", store.DefaultSessionTTL, "Idle lifetime of a browser session")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /study)")
	f.Bool("secure-cookies", true, "Set Secure flag on session cookies")
	f.StringSlice("cors-origins", nil, "Origins allowed to read the JSON API")
	return cmd
}

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate FILE",
		Short: "Transcribe a document and print an artifact as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runGenerate,
	}
	addGeneratorFlags(cmd)
	f := cmd.Flags()
	f.String("artifact", string(model.ArtifactObjective), "Artifact to produce (transcript, summary, objective, subjective)")
	f.IntP("count", "n", model.DefaultQuestionCount, "Number of questions (1-10)")
	f.String("answer-style", string(model.AnswerStyleAll), "Subjective answer style (short, detailed, all)")
	f.Bool("use-evaluator", true, "Ask the generator to review subjective answers")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("STUDYSIMPLIFY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("studysimplify")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/studysimplify")
	v.AddConfigPath("/etc/studysimplify")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// newGenerator returns the backend client, used for transcription, and the
// generator selected by --generator.
func newGenerator(ctx context.Context, v *viper.Viper) (*backend.Client, handler.Generator, error) {
	backendURL := v.GetString("backend-url")
	bc := backend.New(backendURL, v.GetDuration("backend-timeout"))
	if err := bc.Ping(ctx); err != nil {
		slog.Warn("backend is not reachable", "url", backendURL, "error", err)
	} else {
		slog.Info("backend OK", "url", backendURL)
	}

	switch strings.ToLower(v.GetString("generator")) {
	case "", "backend":
		return bc, bc, nil
	case "llm":
		lc, err := llm.New(v.GetString("llm-url"), v.GetString("llm-key"), v.GetString("llm-model"))
		if err != nil {
			return nil, nil, fmt.Errorf("create LLM client: %w", err)
		}
		if err := lc.Ping(ctx); err != nil {
			return nil, nil, fmt.Errorf("LLM health check: %w", err)
		}
		slog.Info("LLM endpoint OK", "url", v.GetString("llm-url"), "model", v.GetString("llm-model"))
		return bc, lc, nil
	default:
		return nil, nil, fmt.Errorf("unknown generator %q (want backend or llm)", v.GetString("generator"))
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	db.SetSessionTTL(v.GetDuration("session-ttl"))
	if t := v.GetDuration("backend-timeout"); t > 0 {
		db.SetBusyTimeout(t + time.Minute)
	}

	lang := v.GetString("lang")
	defaultLang := lang
	if defaultLang == "" {
		defaultLang = "en"
	}
	if err := appI18n.Init(defaultLang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	bc, gen, err := newGenerator(ctx, v)
	if err != nil {
		return err
	}

	// Normalize base path.
	basePath := strings.TrimRight(v.GetString("base-path"), "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	cfg := model.Config{
		NumOptions:    v.GetInt("num-options"),
		MaxUploadSize: v.GetInt64("max-upload-mb") << 20,
		SessionTTL:    v.GetDuration("session-ttl"),
		BasePath:      basePath,
		SecureCookies: v.GetBool("secure-cookies"),
		CORSOrigins:   v.GetStringSlice("cors-origins"),
	}

	h, err := handler.New(db, bc, gen, cfg)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))

	if basePath != "" {
		r.Route(basePath, func(sub chi.Router) {
			sub.Use(h.BasePathMiddleware)
			h.Routes(sub)
		})
		r.Get(basePath, func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, basePath+"/", http.StatusMovedPermanently)
		})
	} else {
		r.Use(h.BasePathMiddleware)
		h.Routes(r)
	}

	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("starting server",
		"addr", addr,
		"backend_url", v.GetString("backend-url"),
		"generator", v.GetString("generator"),
		"lang", lang,
		"num_options", cfg.NumOptions,
		"max_upload_mb", cfg.MaxUploadSize>>20,
		"session_ttl", cfg.SessionTTL,
		"base_path", basePath,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		runJanitor(gctx, db)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// runJanitor removes expired sessions until ctx is done.
func runJanitor(ctx context.Context, db *store.Store) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := db.CleanupExpiredSessions()
			if err != nil {
				slog.Error("failed to clean up sessions", "error", err)
				continue
			}
			if n > 0 {
				remaining, _ := db.SessionCount()
				slog.Info("removed expired sessions", "count", n, "remaining", remaining)
			}
		}
	}
}

func runGenerate(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	kind := model.ArtifactKind(strings.ToLower(v.GetString("artifact")))
	switch kind {
	case model.ArtifactTranscript, model.ArtifactSummary, model.ArtifactObjective, model.ArtifactSubjective:
	default:
		return fmt.Errorf("unknown artifact %q", kind)
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}
	doc := model.Document{Name: filepath.Base(args[0]), Data: data}
	if err := doc.Validate(); err != nil {
		return err
	}

	bc, gen, err := newGenerator(ctx, v)
	if err != nil {
		return err
	}
	tr, err := bc.Transcribe(ctx, doc)
	if err != nil {
		return err
	}

	export := model.ArtifactExport{
		FileName:    tr.SourceFileName,
		Artifact:    kind,
		GeneratedAt: time.Now().UTC(),
		WordCount:   tr.WordCount(),
		CharCount:   tr.CharCount(),
	}
	switch kind {
	case model.ArtifactTranscript:
		export.Transcript = tr.Text
	case model.ArtifactSummary:
		if export.Summary, err = gen.Summarize(ctx, tr.Text); err != nil {
			return err
		}
	case model.ArtifactObjective:
		export.Questions, err = gen.GenerateObjective(ctx, tr.Text, model.ObjectiveOptions{
			QuestionCount: v.GetInt("count"),
			OptionCount:   v.GetInt("num-options"),
		})
		if err != nil {
			return err
		}
	case model.ArtifactSubjective:
		export.Questions, err = gen.GenerateSubjective(ctx, tr.Text, model.SubjectiveOptions{
			QuestionCount: v.GetInt("count"),
			AnswerStyle:   model.ParseAnswerStyle(v.GetString("answer-style")),
			UseEvaluator:  v.GetBool("use-evaluator"),
		})
		if err != nil {
			return err
		}
	}

	out, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	slog.Info("artifact written", "file", doc.Name, "artifact", kind, "output", outPath)
	return nil
}
