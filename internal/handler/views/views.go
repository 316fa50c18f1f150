// Package views holds the application's HTML pages as templ components.
package views

//go:generate templ generate

import (
	"context"
	"fmt"
	"strconv"

	appI18n "github.com/pavelanni/studysimplify/internal/i18n"
	"github.com/pavelanni/studysimplify/internal/model"
	"github.com/pavelanni/studysimplify/internal/quiz"
)

// Page carries what every page shows regardless of its content.
type Page struct {
	Error string
}

type HomeView struct {
	Page
	Accept      string
	MaxUploadMB int64
}

type ResultsView struct {
	Page
	Transcript     model.Transcript
	SummaryBusy    bool
	ObjectiveBusy  bool
	SubjectiveBusy bool
	HasObjective   bool
	HasSubjective  bool
	MinCount       int
	MaxCount       int
	DefaultCount   int
	AnswerStyles   []model.AnswerStyle
}

type SummaryView struct {
	Page
	FileName string
	Summary  model.Summary
}

type ObjectiveView struct {
	Page
	FileName  string
	Questions *model.QuestionSet
	HasQuiz   bool
}

// QuizView describes either the answering step or the review of a quiz.
// Number is 1-based.
type QuizView struct {
	Page
	FileName  string
	Reviewing bool
	Number    int
	Total     int
	Answered  int
	Current   model.QuestionEntry
	Answer    string
	IsFirst   bool
	IsLast    bool
	Result    quiz.Result
}

type SubjectiveView struct {
	Page
	FileName  string
	Questions *model.QuestionSet
}

func t(ctx context.Context, id string) string {
	return appI18n.T(ctx, id)
}

// td translates id with template data given as alternating keys and values.
func td(ctx context.Context, id string, kv ...any) string {
	data := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		data[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return appI18n.Td(ctx, id, data)
}

func tp(ctx context.Context, id string, n int) string {
	return appI18n.Tp(ctx, id, n)
}

func num(ctx context.Context, n int) string {
	return appI18n.FormatNumber(ctx, n)
}

func lang(ctx context.Context) string {
	return appI18n.Language(ctx).String()
}

// path prefixes p with the base path the app is mounted under.
func path(ctx context.Context, p string) string {
	return model.BasePathFromContext(ctx) + p
}

func csrf(ctx context.Context) string {
	return model.CSRFTokenFromContext(ctx)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

func answerStyleLabel(ctx context.Context, s model.AnswerStyle) string {
	return t(ctx, "AnswerStyle_"+string(s))
}
