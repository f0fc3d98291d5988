package handlers

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/taskboard/app/internal/logger"
	"github.com/taskboard/app/internal/middleware"
	"github.com/taskboard/app/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

// Template helper functions
var funcMap = template.FuncMap{
	"FormatDateTime": FormatDateTime,
	"Nl2br":          Nl2br,
	"BadgeClass":     BadgeClass,
}

// FormatDateTime formats a due date for display, e.g. "Jan 2, 2006 3:04 PM".
func FormatDateTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format("Jan 2, 2006 3:04 PM")
}

// Nl2br escapes s and turns newlines into <br> tags.
func Nl2br(s string) template.HTML {
	return template.HTML(strings.ReplaceAll(template.HTMLEscapeString(s), "\n", "<br>"))
}

// BadgeClass maps a due status to the CSS class of its badge.
func BadgeClass(s models.DueStatus) string {
	switch s {
	case models.DueOverdue:
		return "badge badge-overdue"
	case models.DueSoon:
		return "badge badge-soon"
	default:
		return ""
	}
}

// templates holds one parsed set per page, each joined with the layout.
var templates = mustParseTemplates("login.html", "register.html", "index.html", "error.html")

func mustParseTemplates(pages ...string) map[string]*template.Template {
	out := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		out[page] = template.Must(template.New(page).Funcs(funcMap).
			ParseFS(templateFS, "templates/layout.html", "templates/"+page))
	}
	return out
}

// RenderTemplate renders a page inside the layout. Output is buffered so a
// template error becomes a clean 500 rather than a half-written page.
func RenderTemplate(w http.ResponseWriter, status int, name string, data map[string]any) error {
	tmpl, ok := templates[name]
	if !ok {
		return fmt.Errorf("template %s not found", name)
	}
	if data == nil {
		data = map[string]any{}
	}
	if _, ok := data["Year"]; !ok {
		data["Year"] = time.Now().Year()
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("execute template %s: %w", name, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// RenderErrorPage renders the standard error page. It falls back to plain
// text when the page itself cannot be rendered.
func (e *Env) RenderErrorPage(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	data := map[string]any{
		"Title":      fmt.Sprintf("Error %d", statusCode),
		"StatusCode": statusCode,
		"StatusText": http.StatusText(statusCode),
		"Message":    message,
	}
	if err := RenderTemplate(w, statusCode, "error.html", data); err != nil {
		e.log(r, "error_page").WithError(err).Error("render error page")
		http.Error(w, http.StatusText(statusCode), statusCode)
	}
}

func (e *Env) render(w http.ResponseWriter, r *http.Request, name string, data map[string]any) {
	if err := RenderTemplate(w, http.StatusOK, name, data); err != nil {
		e.log(r, name).WithError(err).Error("render template")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// log returns the request-scoped logger for a handler.
func (e *Env) log(r *http.Request, handler string) *logrus.Entry {
	return logger.WithRequestID(e.Logger, middleware.GetRequestID(r.Context())).
		WithFields(logrus.Fields{"component": "handlers", "handler": handler})
}

type errorResponse struct {
	Error string `json:"error"`
}

func respondWithJSON(w http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

func respondWithError(w http.ResponseWriter, status int, message string) {
	respondWithJSON(w, status, errorResponse{Error: message})
}

// decodeJSON reads a size-limited JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	return dec.Decode(dst)
}

// taskIDFromRequest reads the {id} route variable.
func taskIDFromRequest(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", mux.Vars(r)["id"])
	}
	return id, nil
}

// expectedVersion picks the optimistic-concurrency token for a write: the
// body's version wins, then an If-Match header. Zero means unconditional.
func expectedVersion(r *http.Request, bodyVersion int64) (int64, error) {
	if bodyVersion < 0 {
		return 0, fmt.Errorf("invalid version %d", bodyVersion)
	}
	if bodyVersion > 0 {
		return bodyVersion, nil
	}
	h := strings.TrimSpace(r.Header.Get("If-Match"))
	if h == "" || h == "*" {
		return 0, nil
	}
	h = strings.Trim(strings.TrimPrefix(h, "W/"), `"`)
	v, err := strconv.ParseInt(h, 10, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid If-Match %q", h)
	}
	return v, nil
}

func etag(version int64) string {
	return strconv.Quote(strconv.FormatInt(version, 10))
}
