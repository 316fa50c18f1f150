package model

import (
	"context"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"
)

type basePathCtxKey struct{}

// ContextWithBasePath stores the base path prefix in context.
func ContextWithBasePath(ctx context.Context, basePath string) context.Context {
	return context.WithValue(ctx, basePathCtxKey{}, basePath)
}

// BasePathFromContext retrieves the base path from context (empty string if not set).
func BasePathFromContext(ctx context.Context) string {
	bp, _ := ctx.Value(basePathCtxKey{}).(string)
	return bp
}

type csrfCtxKey struct{}

// ContextWithCSRFToken stores the CSRF token in context.
func ContextWithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfCtxKey{}, token)
}

// CSRFTokenFromContext retrieves the CSRF token from context.
func CSRFTokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(csrfCtxKey{}).(string)
	return t
}

type sessionCtxKey struct{}

// ContextWithSession stores the session state in the request context.
func ContextWithSession(ctx context.Context, s *SessionState) context.Context {
	return context.WithValue(ctx, sessionCtxKey{}, s)
}

// SessionFromContext retrieves the session state from context, or nil.
func SessionFromContext(ctx context.Context) *SessionState {
	s, _ := ctx.Value(sessionCtxKey{}).(*SessionState)
	return s
}

// AllowedExtensions lists the document types accepted for transcription.
var AllowedExtensions = []string{".pdf", ".ppt", ".pptx", ".jpg", ".jpeg", ".png", ".doc", ".docx"}

// Document is an uploaded file awaiting transcription. It is never stored.
type Document struct {
	Name string
	Data []byte
}

// Validate reports whether the document can be sent for transcription.
func (d Document) Validate() error {
	if d.Name == "" || len(d.Data) == 0 {
		return &ValidationError{Field: "file", Reason: "no file selected"}
	}
	ext := strings.ToLower(filepath.Ext(d.Name))
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return nil
		}
	}
	return &ValidationError{Field: "file", Reason: "unsupported file type " + ext}
}

// Transcript is the text extracted from a document by the backend.
type Transcript struct {
	Text           string `json:"text"`
	SourceFileName string `json:"source_file_name"`
}

// WordCount returns the number of whitespace-separated words.
func (t Transcript) WordCount() int {
	return len(strings.Fields(t.Text))
}

// CharCount returns the number of characters in the transcript.
func (t Transcript) CharCount() int {
	return utf8.RuneCountInString(t.Text)
}

// Summary holds the keywords and summary paragraph for a transcript.
type Summary struct {
	ImportantWords []string `json:"important_words"`
	Text           string   `json:"summary"`
}

// Question limits applied to every generation request.
const (
	MinQuestionCount     = 1
	MaxQuestionCount     = 10
	DefaultQuestionCount = 5
	DefaultOptionCount   = 4
)

// ClampQuestionCount coerces n into [MinQuestionCount, MaxQuestionCount].
func ClampQuestionCount(n int) int {
	if n < MinQuestionCount {
		return MinQuestionCount
	}
	if n > MaxQuestionCount {
		return MaxQuestionCount
	}
	return n
}

// AnswerStyle controls the length of generated subjective answers.
type AnswerStyle string

const (
	AnswerStyleShort    AnswerStyle = "short"
	AnswerStyleDetailed AnswerStyle = "detailed"
	AnswerStyleAll      AnswerStyle = "all"
)

// AnswerStyles lists the styles in the order shown in the settings form.
var AnswerStyles = []AnswerStyle{AnswerStyleAll, AnswerStyleShort, AnswerStyleDetailed}

// ParseAnswerStyle returns the matching style, falling back to AnswerStyleAll.
func ParseAnswerStyle(s string) AnswerStyle {
	switch AnswerStyle(strings.ToLower(strings.TrimSpace(s))) {
	case AnswerStyleShort:
		return AnswerStyleShort
	case AnswerStyleDetailed:
		return AnswerStyleDetailed
	default:
		return AnswerStyleAll
	}
}

// ObjectiveOptions configures a multiple-choice generation request.
type ObjectiveOptions struct {
	QuestionCount int
	OptionCount   int
}

// Normalized returns a copy with the question count clamped and defaults applied.
func (o ObjectiveOptions) Normalized() ObjectiveOptions {
	o.QuestionCount = ClampQuestionCount(o.QuestionCount)
	if o.OptionCount <= 1 {
		o.OptionCount = DefaultOptionCount
	}
	return o
}

// SubjectiveOptions configures an open-ended generation request.
type SubjectiveOptions struct {
	QuestionCount int
	AnswerStyle   AnswerStyle
	UseEvaluator  bool
}

// Normalized returns a copy with the question count clamped and the style validated.
func (o SubjectiveOptions) Normalized() SubjectiveOptions {
	o.QuestionCount = ClampQuestionCount(o.QuestionCount)
	o.AnswerStyle = ParseAnswerStyle(string(o.AnswerStyle))
	return o
}

// QuizPhase is the state of an objective quiz.
type QuizPhase string

const (
	PhaseAnswering QuizPhase = "answering"
	PhaseReviewing QuizPhase = "reviewing"
)

// QuizSession is the client-side progress through an objective question set.
type QuizSession struct {
	Answers      map[string]string `json:"answers"`
	CurrentIndex int               `json:"current_index"`
	Phase        QuizPhase         `json:"phase"`
}

// Action names a backend request that holds a busy flag while in flight.
type Action string

const (
	ActionTranscribe Action = "transcribe"
	ActionSummary    Action = "summary"
	ActionObjective  Action = "objective"
	ActionSubjective Action = "subjective"
)

// Config holds runtime parameters set via CLI flags.
type Config struct {
	NumOptions    int
	MaxUploadSize int64
	SessionTTL    time.Duration
	BasePath      string // URL prefix for sub-path deployments (e.g. "/study")
	SecureCookies bool   // Set Secure flag on cookies (disable for local dev)
	CORSOrigins   []string
}
