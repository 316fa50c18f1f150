package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/studysimplify/internal/model"
)

// Templates holds the built-in prompt templates.
//
//go:embed templates/*.txt
var Templates embed.FS

// MaxTextRunes caps the document text placed into a prompt.
const MaxTextRunes = 30000

var documentTagRegex = regexp.MustCompile(`(?i)</?\s*document\b[^>]*>`)

// Kind identifies a prompt template.
type Kind string

const (
	KindSummarize  Kind = "summarize"
	KindObjective  Kind = "objective"
	KindSubjective Kind = "subjective"
)

var kinds = []Kind{KindSummarize, KindObjective, KindSubjective}

var styleInstructions = map[model.AnswerStyle]string{
	model.AnswerStyleShort:    "Provide concise answers (1-2 sentences each).",
	model.AnswerStyleDetailed: "Provide comprehensive answers (3-5 sentences each).",
	model.AnswerStyleAll:      "Mix short and detailed answers as appropriate for each question.",
}

var (
	loadOnce  sync.Once
	loadErr   error
	templates map[Kind]*template.Template
)

// SummaryData holds template data for summary prompts.
type SummaryData struct {
	Text string
}

// ObjectiveData holds template data for multiple-choice prompts.
type ObjectiveData struct {
	Text          string
	QuestionCount int
	OptionCount   int
}

// SubjectiveData holds template data for open-ended prompts.
type SubjectiveData struct {
	Text             string
	QuestionCount    int
	StyleInstruction string
	UseEvaluator     bool
}

// Load parses the prompt templates from fsys, once per process.
func Load(fsys fs.FS) error {
	loadOnce.Do(func() {
		parsed := make(map[Kind]*template.Template, len(kinds))
		for _, k := range kinds {
			file := "templates/" + string(k) + ".txt"
			content, err := fs.ReadFile(fsys, file)
			if err != nil {
				loadErr = fmt.Errorf("read prompt file %s: %w", file, err)
				return
			}
			tmpl, err := template.New(string(k)).Option("missingkey=error").Parse(string(content))
			if err != nil {
				loadErr = fmt.Errorf("parse prompt template %s: %w", file, err)
				return
			}
			parsed[k] = tmpl
		}
		templates = parsed
	})
	return loadErr
}

// BuildSummaryPrompt builds the keyword and summary prompt for text.
func BuildSummaryPrompt(text string) (string, error) {
	return execute(KindSummarize, SummaryData{Text: sanitizeText(text)})
}

// BuildObjectivePrompt builds the multiple-choice prompt for text.
func BuildObjectivePrompt(text string, opts model.ObjectiveOptions) (string, error) {
	opts = opts.Normalized()
	return execute(KindObjective, ObjectiveData{
		Text:          sanitizeText(text),
		QuestionCount: opts.QuestionCount,
		OptionCount:   opts.OptionCount,
	})
}

// BuildSubjectivePrompt builds the open-ended question prompt for text.
func BuildSubjectivePrompt(text string, opts model.SubjectiveOptions) (string, error) {
	opts = opts.Normalized()
	return execute(KindSubjective, SubjectiveData{
		Text:             sanitizeText(text),
		QuestionCount:    opts.QuestionCount,
		StyleInstruction: StyleInstruction(opts.AnswerStyle),
		UseEvaluator:     opts.UseEvaluator,
	})
}

// StyleInstruction returns the answer-length instruction for style.
func StyleInstruction(style model.AnswerStyle) string {
	return styleInstructions[model.ParseAnswerStyle(string(style))]
}

func execute(k Kind, data any) (string, error) {
	if templates == nil {
		if loadErr != nil {
			return "", fmt.Errorf("templates load failed: %w", loadErr)
		}
		return "", errors.New("templates not initialized: call Load first")
	}
	tmpl, ok := templates[k]
	if !ok {
		return "", errors.New("unknown prompt kind: " + string(k))
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// sanitizeText strips document delimiters from text and truncates it.
func sanitizeText(text string) string {
	text = documentTagRegex.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) > MaxTextRunes {
		runes := []rune(text)
		text = string(runes[:MaxTextRunes]) + "\n\n[Text truncated due to length]"
	}
	return text
}
