package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/pavelanni/studysimplify/internal/llm/prompts"
	"github.com/pavelanni/studysimplify/internal/model"

	openai "github.com/sashabaranov/go-openai"
)

// MaxKeywords caps the keywords kept from a summary response.
const MaxKeywords = 15

// Client generates study artifacts through an OpenAI-compatible API.
type Client struct {
	api   *openai.Client
	model string
}

// New creates a new LLM client and loads the prompt templates.
func New(baseURL, apiKey, modelName string) (*Client, error) {
	if err := prompts.Load(prompts.Templates); err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
	}, nil
}

// Ping checks that the API endpoint answers.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return &model.RequestError{Op: "ping", Err: err}
	}
	return nil
}

type summaryResponse struct {
	Keywords []string `json:"keywords"`
	Summary  string   `json:"summary"`
}

// Summarize asks the LLM for keywords and a summary paragraph.
func (c *Client) Summarize(ctx context.Context, text string) (*model.Summary, error) {
	prompt, err := prompts.BuildSummaryPrompt(text)
	if err != nil {
		return nil, fmt.Errorf("build summary prompt: %w", err)
	}
	var out summaryResponse
	if err := c.complete(ctx, "summarize", prompt, 0.3, &out); err != nil {
		return nil, err
	}
	return formatSummary(out), nil
}

type objectiveResponse struct {
	Questions []struct {
		Question      string   `json:"question"`
		Options       []string `json:"options"`
		CorrectAnswer string   `json:"correct_answer"`
		Explanation   string   `json:"explanation"`
	} `json:"questions"`
}

// GenerateObjective asks the LLM for multiple-choice questions.
func (c *Client) GenerateObjective(ctx context.Context, text string, opts model.ObjectiveOptions) (*model.QuestionSet, error) {
	opts = opts.Normalized()
	prompt, err := prompts.BuildObjectivePrompt(text, opts)
	if err != nil {
		return nil, fmt.Errorf("build objective prompt: %w", err)
	}
	var out objectiveResponse
	if err := c.complete(ctx, "generate objective questions", prompt, 0.5, &out); err != nil {
		return nil, err
	}
	return formatObjective(out, opts), nil
}

type subjectiveResponse struct {
	Questions []struct {
		Question   string `json:"question"`
		Answer     string `json:"answer"`
		Difficulty string `json:"difficulty"`
	} `json:"questions"`
}

// GenerateSubjective asks the LLM for open-ended questions with reference answers.
func (c *Client) GenerateSubjective(ctx context.Context, text string, opts model.SubjectiveOptions) (*model.QuestionSet, error) {
	opts = opts.Normalized()
	prompt, err := prompts.BuildSubjectivePrompt(text, opts)
	if err != nil {
		return nil, fmt.Errorf("build subjective prompt: %w", err)
	}
	var out subjectiveResponse
	if err := c.complete(ctx, "generate subjective questions", prompt, 0.7, &out); err != nil {
		return nil, err
	}
	return formatSubjective(out, opts), nil
}

// complete sends prompt as a single user message and decodes the JSON reply into out.
func (c *Client) complete(ctx context.Context, op, prompt string, temperature float32, out any) error {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: temperature,
	})
	if err != nil {
		re := &model.RequestError{Op: op, Message: "LLM API call failed", Err: err}
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			re.Status = apiErr.HTTPStatusCode
			re.Message = apiErr.Message
		}
		return re
	}
	if len(resp.Choices) == 0 {
		return &model.RequestError{Op: op, Message: "LLM returned no choices"}
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "op", op, "raw", raw)

	if err := json.Unmarshal([]byte(stripCodeFence(raw)), out); err != nil {
		return &model.RequestError{Op: op, Message: "malformed response", Err: err}
	}
	return nil
}

func formatSummary(out summaryResponse) *model.Summary {
	keywords := make([]string, 0, len(out.Keywords))
	for _, k := range out.Keywords {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, k)
		}
	}
	if len(keywords) > MaxKeywords {
		keywords = keywords[:MaxKeywords]
	}
	return &model.Summary{ImportantWords: keywords, Text: strings.TrimSpace(out.Summary)}
}

// formatObjective numbers questions from 1 and fits every option list to
// opts.OptionCount. A correct answer missing from the options becomes the first option.
func formatObjective(out objectiveResponse, opts model.ObjectiveOptions) *model.QuestionSet {
	qs := out.Questions
	if len(qs) > opts.QuestionCount {
		qs = qs[:opts.QuestionCount]
	}
	items := make(model.QuestionItems, 0, len(qs))
	for i, q := range qs {
		text := q.Question
		if text == "" {
			text = fmt.Sprintf("Question %d", i+1)
		}
		options := append([]string(nil), q.Options...)
		for len(options) < opts.OptionCount {
			options = append(options, fmt.Sprintf("Option %d", len(options)+1))
		}
		options = options[:opts.OptionCount]

		answer := q.CorrectAnswer
		if !slices.Contains(options, answer) {
			answer = options[0]
		}
		items = append(items, model.QuestionEntry{
			Key: strconv.Itoa(i + 1),
			Question: model.Question{
				Text:          text,
				CorrectAnswer: answer,
				Options:       options,
				Explanation:   q.Explanation,
			},
		})
	}
	return &model.QuestionSet{TotalCount: len(items), Items: items}
}

func formatSubjective(out subjectiveResponse, opts model.SubjectiveOptions) *model.QuestionSet {
	qs := out.Questions
	if len(qs) > opts.QuestionCount {
		qs = qs[:opts.QuestionCount]
	}
	items := make(model.QuestionItems, 0, len(qs))
	for i, q := range qs {
		text := q.Question
		if text == "" {
			text = fmt.Sprintf("Question %d", i+1)
		}
		difficulty := q.Difficulty
		if difficulty == "" {
			difficulty = "medium"
		}
		items = append(items, model.QuestionEntry{
			Key: strconv.Itoa(i + 1),
			Question: model.Question{
				Text:          text,
				CorrectAnswer: q.Answer,
				Type:          "subjective",
				Difficulty:    difficulty,
			},
		})
	}
	return &model.QuestionSet{TotalCount: len(items), AnswerStyle: opts.AnswerStyle, Items: items}
}

// stripCodeFence removes a surrounding ``` or ```json fence.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
