package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/taskboard/app/internal/models"
)

const taskColumns = "id, user_id, title, description, due_date, completed, version, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(s rowScanner) (*models.Task, error) {
	var (
		task        models.Task
		description sql.NullString
		dueDate     sql.NullTime
	)
	err := s.Scan(&task.ID, &task.UserID, &task.Title, &description, &dueDate,
		&task.Completed, &task.Version, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if description.Valid {
		task.Description = &description.String
	}
	if dueDate.Valid {
		due := dueDate.Time.UTC()
		task.DueDate = &due
	}
	return &task, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// ListTasks returns the user's tasks, newest first.
func ListTasks(ctx context.Context, db *sql.DB, userID int64) ([]*models.Task, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE user_id = $1 ORDER BY id DESC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []*models.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

// GetTask returns one of the user's tasks. Tasks owned by someone else are
// reported as sql.ErrNoRows, same as missing ones.
func GetTask(ctx context.Context, db *sql.DB, userID, id int64) (*models.Task, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE id = $1 AND user_id = $2", id, userID)
	return scanTask(row)
}

// CreateTask inserts a task for the user and returns it as stored.
func CreateTask(ctx context.Context, db *sql.DB, userID int64, in models.TaskInput) (*models.Task, error) {
	if err := in.Normalize(); err != nil {
		return nil, err
	}

	var id int64
	err := db.QueryRowContext(ctx,
		`INSERT INTO tasks (user_id, title, description, due_date, completed)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		userID, in.Title, nullString(in.Description), nullTime(in.DueDate), in.Completed,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && id == 0) {
		return nil, fmt.Errorf("create task: %w", ErrCreation)
	}
	if err != nil {
		return nil, err
	}
	return GetTask(ctx, db, userID, id)
}

// ReplaceTask overwrites every writable field of a task. When
// expectedVersion is positive the write only succeeds if the stored row is
// still at that version; otherwise ErrVersionConflict is returned.
func ReplaceTask(ctx context.Context, db *sql.DB, userID, id int64, in models.TaskInput, expectedVersion int64) (*models.Task, error) {
	if err := in.Normalize(); err != nil {
		return nil, err
	}

	u := newTaskUpdate()
	u.set("title", in.Title)
	u.set("description", nullString(in.Description))
	u.set("due_date", nullTime(in.DueDate))
	u.set("completed", in.Completed)
	return u.exec(ctx, db, userID, id, expectedVersion)
}

// PatchTask writes only the fields present in patch.
func PatchTask(ctx context.Context, db *sql.DB, userID, id int64, patch models.TaskPatch, expectedVersion int64) (*models.Task, error) {
	if patch.Empty() {
		task, err := GetTask(ctx, db, userID, id)
		if err != nil {
			return nil, err
		}
		if expectedVersion > 0 && task.Version != expectedVersion {
			return nil, ErrVersionConflict
		}
		return task, nil
	}

	u := newTaskUpdate()
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, models.ErrTitleRequired
		}
		u.set("title", title)
	}
	if patch.Description != nil {
		desc := patch.Description
		if strings.TrimSpace(*desc) == "" {
			desc = nil
		}
		u.set("description", nullString(desc))
	}
	if patch.ClearDueDate {
		u.set("due_date", sql.NullTime{})
	} else if patch.DueDate != nil {
		u.set("due_date", nullTime(patch.DueDate))
	}
	if patch.Completed != nil {
		u.set("completed", *patch.Completed)
	}
	return u.exec(ctx, db, userID, id, expectedVersion)
}

// DeleteTask permanently removes one of the user's tasks.
func DeleteTask(ctx context.Context, db *sql.DB, userID, id int64) error {
	res, err := db.ExecContext(ctx, "DELETE FROM tasks WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// taskUpdate builds a single UPDATE statement. Placeholders are numbered in
// the order they appear, which sqlite requires for $n parameters.
type taskUpdate struct {
	sets []string
	args []any
}

func newTaskUpdate() *taskUpdate {
	return &taskUpdate{}
}

func (u *taskUpdate) set(column string, value any) {
	u.args = append(u.args, value)
	u.sets = append(u.sets, fmt.Sprintf("%s = $%d", column, len(u.args)))
}

func (u *taskUpdate) exec(ctx context.Context, db *sql.DB, userID, id, expectedVersion int64) (*models.Task, error) {
	sets := append(u.sets, "version = version + 1", "updated_at = CURRENT_TIMESTAMP")
	args := append(u.args, id, userID)
	query := fmt.Sprintf("UPDATE tasks SET %s WHERE id = $%d AND user_id = $%d",
		strings.Join(sets, ", "), len(args)-1, len(args))
	if expectedVersion > 0 {
		args = append(args, expectedVersion)
		query += fmt.Sprintf(" AND version = $%d", len(args))
	}

	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// Either the row is gone (or not ours) or someone else wrote first.
		if _, err := GetTask(ctx, db, userID, id); err != nil {
			return nil, err
		}
		return nil, ErrVersionConflict
	}
	return GetTask(ctx, db, userID, id)
}
