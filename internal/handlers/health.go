package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
)

// Healthz reports whether the database answers a ping.
func (e *Env) Healthz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := e.DB.PingContext(ctx); err != nil {
			e.log(r, "healthz").WithError(err).Warn("database ping failed")
			respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// NotFound renders the error page for unknown paths.
func (e *Env) NotFound() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e.RenderErrorPage(w, r, http.StatusNotFound, "The page you are looking for does not exist.")
	}
}

// NewFlashStore returns the cookie store used for one-shot UI messages,
// signed with the auth secret.
func NewFlashStore(secret string, secure bool) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   300,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}
