// Package backend talks to the transcription and question-generation service.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/pavelanni/studysimplify/internal/model"
)

// Client wraps the backend's HTTP JSON API. Every call is a single attempt.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a backend client. A zero timeout leaves the transport default.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Ping checks that the backend answers on its root path.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &model.RequestError{Op: "ping", Err: err}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &model.RequestError{Op: "ping", Status: resp.StatusCode}
	}
	return nil
}

type transcribeResponse struct {
	Success    bool   `json:"success"`
	Transcript string `json:"transcript"`
	Message    string `json:"message"`
}

// Transcribe uploads doc and returns its transcript.
func (c *Client) Transcribe(ctx context.Context, doc model.Document) (*model.Transcript, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", doc.Name)
	if err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}
	if _, err := part.Write(doc.Data); err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}

	var out transcribeResponse
	if err := c.do(ctx, "transcribe", "/transcribe", &buf, writer.FormDataContentType(), &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, failure("transcribe", out.Message, "failed to process file")
	}
	slog.Debug("transcribed document", "file", doc.Name, "chars", len(out.Transcript))
	return &model.Transcript{Text: out.Transcript, SourceFileName: doc.Name}, nil
}

type summarizeRequest struct {
	Text string `json:"text"`
}

type summarizeResponse struct {
	Success        bool     `json:"success"`
	ImportantWords []string `json:"important_words"`
	Summary        string   `json:"summary"`
	Message        string   `json:"message"`
}

// Summarize requests keywords and a summary paragraph for text.
func (c *Client) Summarize(ctx context.Context, text string) (*model.Summary, error) {
	var out summarizeResponse
	if err := c.postJSON(ctx, "summarize", "/summarize", summarizeRequest{Text: text}, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, failure("summarize", out.Message, "failed to generate summary")
	}
	return &model.Summary{ImportantWords: out.ImportantWords, Text: out.Summary}, nil
}

type objectiveRequest struct {
	Text         string `json:"text"`
	NumQuestions int    `json:"num_questions"`
	NumOptions   int    `json:"num_options"`
}

type subjectiveRequest struct {
	Text         string `json:"text"`
	NumQuestions int    `json:"num_questions"`
	AnswerStyle  string `json:"answer_style"`
	UseEvaluator bool   `json:"use_evaluator"`
}

type questionsResponse struct {
	Success        bool                `json:"success"`
	Questions      model.QuestionItems `json:"questions"`
	TotalQuestions *int                `json:"total_questions"`
	AnswerStyle    string              `json:"answer_style"`
	Message        string              `json:"message"`
}

func (r questionsResponse) set() *model.QuestionSet {
	set := &model.QuestionSet{Items: r.Questions, TotalCount: len(r.Questions)}
	if r.TotalQuestions != nil {
		set.TotalCount = *r.TotalQuestions
	}
	if r.AnswerStyle != "" {
		set.AnswerStyle = model.ParseAnswerStyle(r.AnswerStyle)
	}
	return set
}

// GenerateObjective requests multiple-choice questions for text.
func (c *Client) GenerateObjective(ctx context.Context, text string, opts model.ObjectiveOptions) (*model.QuestionSet, error) {
	opts = opts.Normalized()
	body := objectiveRequest{
		Text:         text,
		NumQuestions: opts.QuestionCount,
		NumOptions:   opts.OptionCount,
	}
	var out questionsResponse
	if err := c.postJSON(ctx, "generate objective questions", "/generate-questions", body, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, failure("generate objective questions", out.Message, "failed to generate questions")
	}
	return out.set(), nil
}

// GenerateSubjective requests open-ended questions with reference answers for text.
func (c *Client) GenerateSubjective(ctx context.Context, text string, opts model.SubjectiveOptions) (*model.QuestionSet, error) {
	opts = opts.Normalized()
	body := subjectiveRequest{
		Text:         text,
		NumQuestions: opts.QuestionCount,
		AnswerStyle:  string(opts.AnswerStyle),
		UseEvaluator: opts.UseEvaluator,
	}
	var out questionsResponse
	if err := c.postJSON(ctx, "generate subjective questions", "/generate-subjective-questions", body, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, failure("generate subjective questions", out.Message, "failed to generate questions")
	}
	set := out.set()
	if set.AnswerStyle == "" {
		set.AnswerStyle = opts.AnswerStyle
	}
	return set, nil
}

func (c *Client) postJSON(ctx context.Context, op, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", op, err)
	}
	return c.do(ctx, op, path, bytes.NewReader(payload), "application/json", out)
}

func (c *Client) do(ctx context.Context, op, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &model.RequestError{Op: op, Err: err}
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	slog.Debug("backend call", "op", op, "status", resp.StatusCode, "duration", time.Since(start))
	if readErr != nil {
		return &model.RequestError{Op: op, Status: resp.StatusCode, Err: readErr}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &model.RequestError{Op: op, Status: resp.StatusCode, Message: errorDetail(raw)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &model.RequestError{Op: op, Status: resp.StatusCode, Message: "malformed response", Err: err}
	}
	return nil
}

// errorDetail extracts the message from an error body such as {"detail": "..."}.
func errorDetail(raw []byte) string {
	var body struct {
		Detail  any    `json:"detail"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if s, ok := body.Detail.(string); ok && s != "" {
			return s
		}
		if body.Message != "" {
			return body.Message
		}
	}
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

func failure(op, message, fallback string) *model.RequestError {
	if message == "" {
		message = fallback
	}
	return &model.RequestError{Op: op, Message: message}
}
