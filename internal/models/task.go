package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Task is a single to-do item owned by one user.
type Task struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	Completed   bool       `json:"completed"`
	Version     int64      `json:"version"`
	UserID      int64      `json:"-"`
	CreatedAt   time.Time  `json:"-"`
	UpdatedAt   time.Time  `json:"-"`
}

// TaskInput carries every writable field of a task. It is used for
// creation and for full replacement.
type TaskInput struct {
	Title       string
	Description *string
	DueDate     *time.Time
	Completed   bool
}

// TaskPatch carries only the fields a caller wants to change.
// ClearDueDate takes precedence over DueDate.
type TaskPatch struct {
	Title        *string
	Description  *string
	DueDate      *time.Time
	ClearDueDate bool
	Completed    *bool
}

// Empty reports whether the patch would change nothing.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.DueDate == nil && !p.ClearDueDate && p.Completed == nil
}

var (
	ErrTitleRequired  = errors.New("title is required")
	ErrInvalidDueDate = errors.New("invalid due_date")
)

// Normalize trims the title and rejects an empty one. An empty description
// is stored as NULL.
func (in *TaskInput) Normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return ErrTitleRequired
	}
	if in.Description != nil && strings.TrimSpace(*in.Description) == "" {
		in.Description = nil
	}
	return nil
}

// Input returns the writable fields of t.
func (t *Task) Input() TaskInput {
	return TaskInput{
		Title:       t.Title,
		Description: t.Description,
		DueDate:     t.DueDate,
		Completed:   t.Completed,
	}
}

// Apply returns the input that results from applying p on top of t.
func (p TaskPatch) Apply(t *Task) TaskInput {
	in := t.Input()
	if p.Title != nil {
		in.Title = *p.Title
	}
	if p.Description != nil {
		in.Description = p.Description
	}
	if p.ClearDueDate {
		in.DueDate = nil
	} else if p.DueDate != nil {
		in.DueDate = p.DueDate
	}
	if p.Completed != nil {
		in.Completed = *p.Completed
	}
	return in
}

// IsActive is the predicate used to split a task list into the
// "active" and "completed" tabs.
func IsActive(t Task) bool {
	return !t.Completed
}

// dueDateLayouts are tried in order by ParseDueDate. The short forms are
// what an HTML datetime-local / date input submits.
var dueDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDueDate parses a due date as submitted by a form or API client.
// An empty string yields nil. Layouts without a zone are read as UTC.
func ParseDueDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range dueDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w %q", ErrInvalidDueDate, s)
}

// DueDateField decodes a JSON due_date that may be absent, null, a string
// or empty. Set is true whenever the key was present in the document.
type DueDateField struct {
	Set   bool
	Value *time.Time
}

func (f *DueDateField) UnmarshalJSON(data []byte) error {
	f.Set = true
	if string(data) == "null" {
		f.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: must be a string or null", ErrInvalidDueDate)
	}
	v, err := ParseDueDate(s)
	if err != nil {
		return err
	}
	f.Value = v
	return nil
}

// TextField decodes an optional JSON string where null is meaningful.
// Value is nil for null; Set is true whenever the key was present.
type TextField struct {
	Set   bool
	Value *string
}

func (f *TextField) UnmarshalJSON(data []byte) error {
	f.Set = true
	if string(data) == "null" {
		f.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	f.Value = &s
	return nil
}
