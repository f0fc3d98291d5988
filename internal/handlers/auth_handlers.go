package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/taskboard/app/internal/auth"
	"github.com/taskboard/app/internal/database"
	"github.com/taskboard/app/internal/middleware"
	"github.com/taskboard/app/internal/models"
)

const (
	flashSessionName = "taskboard_flash"

	// loginFailedFlash is shown for every failed sign-in, whatever the cause.
	loginFailedFlash = "Invalid email or password."
)

var errEmailTaken = errors.New("email already registered")

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expires_at"`
	User      models.PublicUser `json:"user"`
}

func (req *registerRequest) validate() string {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	switch {
	case req.Username == "" || req.Email == "" || req.Password == "":
		return "username, email and password are required"
	case len(req.Username) > 64:
		return "username is too long"
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return "email is not valid"
	}
	return ""
}

// registerUser creates the account unless the email is already taken.
func (e *Env) registerUser(r *http.Request, req registerRequest) (*models.User, error) {
	_, err := database.GetUserByEmail(r.Context(), e.DB, req.Email)
	if err == nil {
		return nil, errEmailTaken
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return database.CreateUser(r.Context(), e.DB, req.Username, req.Email, req.Password)
}

// signIn runs the credential check and records the outcome.
func (e *Env) signIn(r *http.Request, email, password string) (*auth.Session, string, error) {
	sess, token, err := e.Auth.SignIn(r.Context(), strings.TrimSpace(email), password)
	switch {
	case err == nil:
		middleware.AuthAttempts.WithLabelValues("success").Inc()
	case errors.Is(err, auth.ErrInvalidCredentials):
		middleware.AuthAttempts.WithLabelValues("invalid").Inc()
	default:
		middleware.AuthAttempts.WithLabelValues("error").Inc()
	}
	return sess, token, err
}

func (e *Env) setSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     e.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		HttpOnly: true,
		Secure:   e.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (e *Env) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     e.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   e.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// sessionFromRequest restores the session carried by the request, if any.
func (e *Env) sessionFromRequest(r *http.Request) (*auth.Session, bool) {
	token := auth.TokenFromRequest(r, e.CookieName)
	if token == "" {
		return nil, false
	}
	sess, err := e.Auth.ParseToken(token)
	if err != nil {
		return nil, false
	}
	return sess, true
}

// RequireSession guards the JSON API: no valid token means 401.
func (e *Env) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := e.sessionFromRequest(r)
		if !ok {
			respondWithError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithSession(r.Context(), sess)))
	})
}

// RequirePageSession guards server-rendered pages: no session means a
// redirect to the sign-in form.
func (e *Env) RequirePageSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := e.sessionFromRequest(r)
		if !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithSession(r.Context(), sess)))
	})
}

// APIRegister handles POST /api/auth/register.
func (e *Env) APIRegister() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := decodeJSON(w, r, &req); err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if msg := req.validate(); msg != "" {
			respondWithError(w, http.StatusBadRequest, msg)
			return
		}

		user, err := e.registerUser(r, req)
		if errors.Is(err, errEmailTaken) {
			respondWithError(w, http.StatusConflict, errEmailTaken.Error())
			return
		}
		if err != nil {
			e.log(r, "api_register").WithError(err).Error("create user")
			respondWithError(w, http.StatusInternalServerError, "could not create user")
			return
		}
		e.log(r, "api_register").WithField("user_id", user.ID).Info("user registered")
		respondWithJSON(w, http.StatusCreated, user.Public())
	}
}

// APILogin handles POST /api/auth/login.
func (e *Env) APILogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := decodeJSON(w, r, &req); err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		sess, token, err := e.signIn(r, req.Email, req.Password)
		if errors.Is(err, auth.ErrInvalidCredentials) {
			respondWithError(w, http.StatusUnauthorized, auth.ErrInvalidCredentials.Error())
			return
		}
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, "sign-in failed")
			return
		}

		e.setSessionCookie(w, token, sess.ExpiresAt)
		respondWithJSON(w, http.StatusOK, loginResponse{
			Token:     token,
			ExpiresAt: sess.ExpiresAt,
			User:      models.PublicUser{ID: sess.UserID, Username: sess.Username, Email: sess.Email},
		})
	}
}

// APILogout handles POST /api/auth/logout. Tokens are stateless, so this
// only drops the cookie; a bearer token stays valid until it expires.
func (e *Env) APILogout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e.clearSessionCookie(w)
		w.WriteHeader(http.StatusNoContent)
	}
}

// APISession handles GET /api/auth/session.
func (e *Env) APISession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := e.sessionFromRequest(r)
		if !ok {
			respondWithError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		respondWithJSON(w, http.StatusOK, sess)
	}
}

// LoginPage renders the sign-in form with any pending flash messages.
func (e *Env) LoginPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := e.sessionFromRequest(r); ok {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}

		var flashes []string
		if fs, err := e.Flashes.Get(r, flashSessionName); err == nil {
			for _, f := range fs.Flashes() {
				if s, ok := f.(string); ok {
					flashes = append(flashes, s)
				}
			}
			if err := fs.Save(r, w); err != nil {
				e.log(r, "login_page").WithError(err).Warn("save flash session")
			}
		}
		e.render(w, r, "login.html", map[string]any{
			"Title":   "Login",
			"Flashes": flashes,
		})
	}
}

// Login handles the sign-in form. Every failure redirects back to the form
// with the same flash message.
func (e *Env) Login() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			e.RenderErrorPage(w, r, http.StatusBadRequest, "Error parsing form")
			return
		}

		sess, token, err := e.signIn(r, r.FormValue("email"), r.FormValue("password"))
		if err != nil {
			e.flash(w, r, loginFailedFlash)
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		e.setSessionCookie(w, token, sess.ExpiresAt)
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

func (e *Env) flash(w http.ResponseWriter, r *http.Request, msg string) {
	fs, err := e.Flashes.Get(r, flashSessionName)
	if err != nil && fs == nil {
		e.log(r, "flash").WithError(err).Warn("load flash session")
		return
	}
	fs.AddFlash(msg)
	if err := fs.Save(r, w); err != nil {
		e.log(r, "flash").WithError(err).Warn("save flash session")
	}
}

// RegisterPage renders the registration form.
func (e *Env) RegisterPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e.render(w, r, "register.html", map[string]any{
			"Title": "Register",
			"Form":  registerRequest{},
		})
	}
}

// Register handles the registration form and sends the user on to sign in.
func (e *Env) Register() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			e.RenderErrorPage(w, r, http.StatusBadRequest, "Error parsing form")
			return
		}

		req := registerRequest{
			Username: r.FormValue("username"),
			Email:    r.FormValue("email"),
			Password: r.FormValue("password"),
		}
		fail := func(status int, msg string) {
			if err := RenderTemplate(w, status, "register.html", map[string]any{
				"Title": "Register",
				"Error": msg,
				"Form":  registerRequest{Username: req.Username, Email: req.Email},
			}); err != nil {
				e.log(r, "register").WithError(err).Error("render template")
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}

		if msg := req.validate(); msg != "" {
			fail(http.StatusBadRequest, strings.ToUpper(msg[:1])+msg[1:]+".")
			return
		}
		if req.Password != r.FormValue("confirm_password") {
			fail(http.StatusBadRequest, "Passwords do not match.")
			return
		}

		user, err := e.registerUser(r, req)
		if errors.Is(err, errEmailTaken) {
			fail(http.StatusConflict, "Email already registered.")
			return
		}
		if err != nil {
			e.log(r, "register").WithError(err).Error("create user")
			e.RenderErrorPage(w, r, http.StatusInternalServerError, "Could not create the account.")
			return
		}
		e.log(r, "register").WithField("user_id", user.ID).Info("user registered")
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	}
}

// Logout clears the session cookie and returns to the sign-in form.
func (e *Env) Logout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e.clearSessionCookie(w)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	}
}
