// Package taskclient is the Go client for the task API. It keeps an ordered
// local copy of the signed-in user's tasks that only changes after the
// server confirms a write.
package taskclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/taskboard/app/internal/middleware"
	"github.com/taskboard/app/internal/models"
)

// DefaultTimeout bounds every request made with the default HTTP client.
const DefaultTimeout = 10 * time.Second

type Client struct {
	baseURL string
	http    *http.Client
	logger  logrus.FieldLogger
	now     func() time.Time

	mu      sync.Mutex
	token   string
	tasks   []models.Task
	lastErr error
}

type Option func(*Client)

// WithHTTPClient replaces the default client (which has DefaultTimeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken starts the client with an existing session token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) { c.logger = l }
}

// WithClock sets the time source used by DueStatus.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New returns a client for the server at baseURL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("taskclient: invalid base url %q", baseURL)
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		c.logger = l
	}
	c.logger = c.logger.WithField("component", "taskclient")
	return c, nil
}

type loginResponse struct {
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expires_at"`
	User      models.PublicUser `json:"user"`
}

// Login signs in and keeps the token for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (models.PublicUser, error) {
	var resp loginResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &resp)
	if err != nil {
		return models.PublicUser{}, err
	}
	c.mu.Lock()
	c.token = resp.Token
	c.mu.Unlock()
	return resp.User, nil
}

// Token returns the current session token, or "".
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Load replaces the local list with the server's. On failure the list is
// left as it was and the error is also kept for LastError.
func (c *Client) Load(ctx context.Context) error {
	var tasks []models.Task
	err := c.do(ctx, http.MethodGet, "/tasks/", nil, &tasks)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = err
	if err != nil {
		c.logger.WithError(err).Warn("load tasks failed")
		return err
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	c.tasks = tasks
	return nil
}

// LastError returns the error of the most recent Load, or nil.
func (c *Client) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Create adds a task and puts the stored version at the front of the list.
func (c *Client) Create(ctx context.Context, in models.TaskInput) (models.Task, error) {
	var task models.Task
	if err := c.do(ctx, http.MethodPost, "/tasks/", newTaskBody(in, 0), &task); err != nil {
		return models.Task{}, err
	}
	c.mu.Lock()
	c.tasks = append([]models.Task{task}, c.tasks...)
	c.mu.Unlock()
	return task, nil
}

// Update replaces every writable field of task on the server. The write is
// conditional on task.Version; a newer server row yields ErrConflict.
func (c *Client) Update(ctx context.Context, task models.Task) (models.Task, error) {
	var updated models.Task
	err := c.do(ctx, http.MethodPut, taskPath(task.ID), newTaskBody(task.Input(), task.Version), &updated)
	if err != nil {
		return models.Task{}, err
	}
	c.splice(updated)
	return updated, nil
}

// SetCompleted writes the local snapshot of id back with only the
// completed flag changed.
func (c *Client) SetCompleted(ctx context.Context, id int64, completed bool) (models.Task, error) {
	snapshot, ok := c.find(id)
	if !ok {
		return models.Task{}, fmt.Errorf("task %d is not loaded: %w", id, ErrNotFound)
	}
	snapshot.Completed = completed
	return c.Update(ctx, snapshot)
}

// Patch changes only the fields set in patch.
func (c *Client) Patch(ctx context.Context, id int64, patch models.TaskPatch) (models.Task, error) {
	var updated models.Task
	if err := c.do(ctx, http.MethodPatch, taskPath(id), patchBody(patch), &updated); err != nil {
		return models.Task{}, err
	}
	c.splice(updated)
	return updated, nil
}

// Delete removes id on the server and locally. A task the server no
// longer has counts as deleted.
func (c *Client) Delete(ctx context.Context, id int64) error {
	err := c.do(ctx, http.MethodDelete, taskPath(id), nil, nil)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.tasks {
		if c.tasks[i].ID == id {
			c.tasks = append(c.tasks[:i:i], c.tasks[i+1:]...)
			break
		}
	}
	return nil
}

// Tasks returns a copy of the local list in display order.
func (c *Client) Tasks() []models.Task {
	return c.filter(func(models.Task) bool { return true })
}

// Active returns the tasks shown on the "active" tab.
func (c *Client) Active() []models.Task {
	return c.filter(models.IsActive)
}

// Completed returns the tasks shown on the "completed" tab.
func (c *Client) Completed() []models.Task {
	return c.filter(func(t models.Task) bool { return !models.IsActive(t) })
}

// DueStatus classifies task's due date against the client clock.
func (c *Client) DueStatus(task models.Task) models.DueStatus {
	return models.ClassifyDue(task.DueDate, c.now())
}

func (c *Client) filter(keep func(models.Task) bool) []models.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Task, 0, len(c.tasks))
	for _, t := range c.tasks {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

func (c *Client) find(id int64) (models.Task, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return models.Task{}, false
}

// splice swaps in task by id, or prepends it when it is not loaded.
func (c *Client) splice(task models.Task) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.tasks {
		if c.tasks[i].ID == task.ID {
			c.tasks[i] = task
			return
		}
	}
	c.tasks = append([]models.Task{task}, c.tasks...)
}

func taskPath(id int64) string {
	return "/tasks/" + strconv.FormatInt(id, 10)
}

type taskBody struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
	DueDate     *string `json:"due_date"`
	Completed   bool    `json:"completed"`
	Version     int64   `json:"version,omitempty"`
}

func newTaskBody(in models.TaskInput, version int64) taskBody {
	return taskBody{
		Title:       in.Title,
		Description: in.Description,
		DueDate:     formatDue(in.DueDate),
		Completed:   in.Completed,
		Version:     version,
	}
}

func patchBody(p models.TaskPatch) map[string]any {
	body := map[string]any{}
	if p.Title != nil {
		body["title"] = *p.Title
	}
	if p.Description != nil {
		body["description"] = *p.Description
	}
	if p.ClearDueDate {
		body["due_date"] = nil
	} else if p.DueDate != nil {
		body["due_date"] = formatDue(p.DueDate)
	}
	if p.Completed != nil {
		body["completed"] = *p.Completed
	}
	return body
}

func formatDue(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339Nano)
	return &s
}

// do performs one API call. in is sent as JSON when non-nil; a 2xx body is
// decoded into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("taskclient: encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &RequestError{Method: method, Path: path, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	requestID := middleware.GetRequestID(ctx)
	if requestID != "" {
		req.Header.Set(middleware.RequestIDHeader, requestID)
	}

	log := c.logger.WithFields(logrus.Fields{"method": method, "path": path, "request_id": requestID})
	log.Debug("calling task api")

	resp, err := c.http.Do(req)
	if err != nil {
		log.WithError(err).Warn("task api unreachable")
		return &RequestError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var payload struct {
			Error string `json:"error"`
		}
		if data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); err == nil && json.Unmarshal(data, &payload) == nil {
			apiErr.Message = payload.Error
		}
		log.WithField("status", resp.StatusCode).Debug("task api returned an error")
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &RequestError{Method: method, Path: path, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
