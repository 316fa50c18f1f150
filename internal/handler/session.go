package handler

import (
	"log/slog"
	"net/http"

	"github.com/pavelanni/studysimplify/internal/model"
)

const sessionCookieName = "ss_session"

// sessionMiddleware loads the browser's session state, creating an empty one
// on first visit or after expiry, and places it in the request context.
// Every visit restarts the session's idle lifetime.
func (h *Handler) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := h.loadSession(r)
		if err != nil {
			slog.Error("failed to load session", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if sess == nil {
			sess, err = h.store.CreateSession()
			if err != nil {
				slog.Error("failed to create session", "error", err)
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			http.SetCookie(w, &http.Cookie{
				Name:     sessionCookieName,
				Value:    sess.ID,
				Path:     h.cookiePath(),
				HttpOnly: true,
				Secure:   h.config.SecureCookies,
				SameSite: http.SameSiteLaxMode,
			})
			slog.Debug("created session", "session", sess.ID)
		} else if err := h.store.Touch(sess); err != nil {
			slog.Warn("failed to refresh session", "session", sess.ID, "error", err)
		}
		ctx := model.ContextWithSession(r.Context(), sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loadSession returns the session named by the request cookie, or nil.
func (h *Handler) loadSession(r *http.Request) (*model.SessionState, error) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, nil
	}
	return h.store.GetSession(cookie.Value)
}
