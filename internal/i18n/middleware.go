package i18n

import (
	"net/http"

	"golang.org/x/text/language"
)

var matcher = language.NewMatcher(Supported)

// Middleware stores the locale for lang in every request context. An empty
// lang follows the browser's Accept-Language header.
func Middleware(lang string) func(http.Handler) http.Handler {
	fixed := lang != ""
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := lang
			if !fixed {
				l = negotiate(r.Header.Get("Accept-Language"))
			}
			next.ServeHTTP(w, r.WithContext(WithLocale(r.Context(), NewLocale(l))))
		})
	}
}

// negotiate picks the best supported language for an Accept-Language header.
func negotiate(accept string) string {
	tags, _, _ := language.ParseAcceptLanguage(accept)
	_, idx, _ := matcher.Match(tags...)
	base, _ := Supported[idx].Base()
	return base.String()
}
