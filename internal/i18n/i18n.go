// Package i18n translates UI strings and formats numbers for the request's
// language.
package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed locales/*.json
var localeFS embed.FS

var bundle *i18n.Bundle

// Supported lists the languages with a locale file, default first.
var Supported = []language.Tag{language.English, language.Russian}

// Init loads every embedded locale file into a bundle whose default language
// is lang. Each supported language must have a file.
func Init(lang string) error {
	tag, err := language.Parse(lang)
	if err != nil {
		return fmt.Errorf("parse language %q: %w", lang, err)
	}

	b := i18n.NewBundle(tag)
	b.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return fmt.Errorf("read locales dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := localeFS.ReadFile("locales/" + e.Name())
		if err != nil {
			return fmt.Errorf("read locale file %s: %w", e.Name(), err)
		}
		if _, err := b.ParseMessageFileBytes(data, e.Name()); err != nil {
			return fmt.Errorf("parse locale file %s: %w", e.Name(), err)
		}
		slog.Debug("loaded locale file", "file", e.Name())
	}

	loaded := b.LanguageTags()
	for _, want := range Supported {
		if !slices.Contains(loaded, want) {
			return fmt.Errorf("no locale file for %s", want)
		}
	}

	bundle = b
	return nil
}

// Locale is the language a request is served in.
type Locale struct {
	Tag       language.Tag
	localizer *i18n.Localizer
}

// NewLocale returns the locale for a language tag such as "en" or "ru".
// Without a loaded bundle it translates nothing.
func NewLocale(lang string) Locale {
	l := Locale{Tag: language.Make(lang)}
	if bundle != nil {
		l.localizer = i18n.NewLocalizer(bundle, lang)
	}
	return l
}

type ctxKey struct{}

// WithLocale stores l in the context.
func WithLocale(ctx context.Context, l Locale) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the request locale, English if none was set.
func FromContext(ctx context.Context) Locale {
	if l, ok := ctx.Value(ctxKey{}).(Locale); ok {
		return l
	}
	return NewLocale("en")
}

// Language returns the request language tag.
func Language(ctx context.Context) language.Tag {
	return FromContext(ctx).Tag
}

// FormatNumber formats n with the digit grouping of the request language.
func FormatNumber(ctx context.Context, n int) string {
	return message.NewPrinter(Language(ctx)).Sprintf("%d", n)
}

// localize falls back to the message ID when no translation exists.
func localize(ctx context.Context, cfg *i18n.LocalizeConfig) string {
	l := FromContext(ctx)
	if l.localizer == nil {
		return cfg.MessageID
	}
	s, err := l.localizer.Localize(cfg)
	if err != nil {
		slog.Warn("missing translation", "id", cfg.MessageID, "lang", l.Tag, "error", err)
		return cfg.MessageID
	}
	return s
}

// T translates a message by ID.
func T(ctx context.Context, msgID string) string {
	return localize(ctx, &i18n.LocalizeConfig{MessageID: msgID})
}

// Td translates a message by ID with template data.
func Td(ctx context.Context, msgID string, data map[string]any) string {
	return localize(ctx, &i18n.LocalizeConfig{MessageID: msgID, TemplateData: data})
}

// Tp translates a pluralized message; the template sees the count as .Count.
func Tp(ctx context.Context, msgID string, count int) string {
	return localize(ctx, &i18n.LocalizeConfig{
		MessageID:    msgID,
		PluralCount:  count,
		TemplateData: map[string]any{"Count": count},
	})
}
