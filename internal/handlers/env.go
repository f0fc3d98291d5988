package handlers

import (
	"database/sql"
	"time"

	"github.com/gorilla/sessions"
	"github.com/sirupsen/logrus"
	"github.com/taskboard/app/internal/auth"
)

// Env carries what the handlers share. It is built once at startup.
type Env struct {
	DB     *sql.DB
	Auth   *auth.Service
	Logger logrus.FieldLogger

	// Flashes stores one-shot UI messages (gorilla/sessions cookie store).
	Flashes sessions.Store

	CookieName   string
	CookieSecure bool

	// Now is the clock used for due badges. Defaults to time.Now.
	Now func() time.Time
}

func (e *Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}
