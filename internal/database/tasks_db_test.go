package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/taskboard/app/internal/models"
)

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func TestCreateTaskAndGetTask(t *testing.T) {
	db, teardown := setupTestDB(t)
	defer teardown()
	ctx := context.Background()

	owner := createTestUser(t, db, "owner@example.com", "pw-owner")
	due := time.Now().Add(48 * time.Hour).UTC().Round(time.Second)

	t.Run("Create and Get Task", func(t *testing.T) {
		created, err := CreateTask(ctx, db, owner.ID, models.TaskInput{
			Title:       "  Buy milk ",
			Description: strPtr("semi-skimmed"),
			DueDate:     &due,
		})
		if err != nil {
			t.Fatalf("CreateTask() error = %v", err)
		}
		if created.ID == 0 {
			t.Error("CreateTask() returned task with ID 0")
		}
		if created.Title != "Buy milk" {
			t.Errorf("Title = %q, want trimmed %q", created.Title, "Buy milk")
		}
		if created.Completed {
			t.Error("new task should not be completed")
		}
		if created.Version != 1 {
			t.Errorf("Version = %d, want 1", created.Version)
		}
		if created.Description == nil || *created.Description != "semi-skimmed" {
			t.Errorf("Description = %v", created.Description)
		}
		if created.DueDate == nil || !created.DueDate.Equal(due) {
			t.Errorf("DueDate = %v, want %v", created.DueDate, due)
		}

		got, err := GetTask(ctx, db, owner.ID, created.ID)
		if err != nil {
			t.Fatalf("GetTask() error = %v", err)
		}
		if got.ID != created.ID || got.Title != created.Title {
			t.Errorf("GetTask() = %+v, want %+v", got, created)
		}
	})

	t.Run("Optional fields stay null", func(t *testing.T) {
		created, err := CreateTask(ctx, db, owner.ID, models.TaskInput{Title: "Bare"})
		if err != nil {
			t.Fatalf("CreateTask() error = %v", err)
		}
		if created.Description != nil || created.DueDate != nil {
			t.Errorf("expected nil description and due date, got %+v", created)
		}
	})

	t.Run("Blank title rejected", func(t *testing.T) {
		_, err := CreateTask(ctx, db, owner.ID, models.TaskInput{Title: "   "})
		if !errors.Is(err, models.ErrTitleRequired) {
			t.Errorf("CreateTask() blank title error = %v, want ErrTitleRequired", err)
		}
	})
}

func TestListTasksIsScopedAndNewestFirst(t *testing.T) {
	db, teardown := setupTestDB(t)
	defer teardown()
	ctx := context.Background()

	alice := createTestUser(t, db, "alice@example.com", "pw")
	bob := createTestUser(t, db, "bob@example.com", "pw")

	for _, title := range []string{"first", "second", "third"} {
		if _, err := CreateTask(ctx, db, alice.ID, models.TaskInput{Title: title}); err != nil {
			t.Fatalf("CreateTask(%s) error = %v", title, err)
		}
	}
	bobTask, err := CreateTask(ctx, db, bob.ID, models.TaskInput{Title: "bob's"})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	tasks, err := ListTasks(ctx, db, alice.ID)
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("ListTasks() returned %d tasks, want 3", len(tasks))
	}
	if tasks[0].Title != "third" || tasks[2].Title != "first" {
		t.Errorf("ListTasks() order = %q..%q, want newest first", tasks[0].Title, tasks[2].Title)
	}

	if _, err := GetTask(ctx, db, alice.ID, bobTask.ID); err != sql.ErrNoRows {
		t.Errorf("GetTask() across users err = %v, want sql.ErrNoRows", err)
	}

	empty := createTestUser(t, db, "carol@example.com", "pw")
	none, err := ListTasks(ctx, db, empty.ID)
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Errorf("ListTasks() for user without tasks = %v, want empty non-nil slice", none)
	}
}

func TestReplaceTask(t *testing.T) {
	db, teardown := setupTestDB(t)
	defer teardown()
	ctx := context.Background()

	owner := createTestUser(t, db, "owner@example.com", "pw")
	task, err := CreateTask(ctx, db, owner.ID, models.TaskInput{Title: "Draft", Description: strPtr("v1")})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	t.Run("Full replace bumps version", func(t *testing.T) {
		updated, err := ReplaceTask(ctx, db, owner.ID, task.ID, models.TaskInput{Title: "Final", Completed: true}, task.Version)
		if err != nil {
			t.Fatalf("ReplaceTask() error = %v", err)
		}
		if updated.ID != task.ID {
			t.Errorf("ID changed from %d to %d", task.ID, updated.ID)
		}
		if updated.Title != "Final" || !updated.Completed || updated.Description != nil {
			t.Errorf("ReplaceTask() = %+v", updated)
		}
		if updated.Version != task.Version+1 {
			t.Errorf("Version = %d, want %d", updated.Version, task.Version+1)
		}
	})

	t.Run("Stale version conflicts and leaves row alone", func(t *testing.T) {
		_, err := ReplaceTask(ctx, db, owner.ID, task.ID, models.TaskInput{Title: "Stale"}, task.Version)
		if !errors.Is(err, ErrVersionConflict) {
			t.Fatalf("ReplaceTask() stale err = %v, want ErrVersionConflict", err)
		}
		current, err := GetTask(ctx, db, owner.ID, task.ID)
		if err != nil {
			t.Fatalf("GetTask() error = %v", err)
		}
		if current.Title != "Final" {
			t.Errorf("stale write changed title to %q", current.Title)
		}
	})

	t.Run("Unversioned write always applies", func(t *testing.T) {
		updated, err := ReplaceTask(ctx, db, owner.ID, task.ID, models.TaskInput{Title: "Forced"}, 0)
		if err != nil {
			t.Fatalf("ReplaceTask() error = %v", err)
		}
		if updated.Title != "Forced" {
			t.Errorf("Title = %q", updated.Title)
		}
	})

	t.Run("Missing task", func(t *testing.T) {
		_, err := ReplaceTask(ctx, db, owner.ID, 424242, models.TaskInput{Title: "x"}, 1)
		if err != sql.ErrNoRows {
			t.Errorf("ReplaceTask() missing err = %v, want sql.ErrNoRows", err)
		}
	})
}

func TestPatchTaskOnlyTouchesGivenFields(t *testing.T) {
	db, teardown := setupTestDB(t)
	defer teardown()
	ctx := context.Background()

	owner := createTestUser(t, db, "owner@example.com", "pw")
	due := time.Now().Add(time.Hour).UTC().Round(time.Second)
	task, err := CreateTask(ctx, db, owner.ID, models.TaskInput{
		Title:       "Call plumber",
		Description: strPtr("kitchen sink"),
		DueDate:     &due,
	})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	patched, err := PatchTask(ctx, db, owner.ID, task.ID, models.TaskPatch{Completed: boolPtr(true)}, task.Version)
	if err != nil {
		t.Fatalf("PatchTask() error = %v", err)
	}
	if !patched.Completed {
		t.Error("Completed not set")
	}
	if patched.Title != task.Title || *patched.Description != *task.Description || !patched.DueDate.Equal(due) {
		t.Errorf("PatchTask() changed untouched fields: %+v", patched)
	}

	cleared, err := PatchTask(ctx, db, owner.ID, task.ID, models.TaskPatch{ClearDueDate: true}, 0)
	if err != nil {
		t.Fatalf("PatchTask() clear due error = %v", err)
	}
	if cleared.DueDate != nil {
		t.Errorf("DueDate = %v, want nil", cleared.DueDate)
	}

	if _, err := PatchTask(ctx, db, owner.ID, task.ID, models.TaskPatch{Title: strPtr(" ")}, 0); !errors.Is(err, models.ErrTitleRequired) {
		t.Errorf("PatchTask() blank title err = %v, want ErrTitleRequired", err)
	}

	if _, err := PatchTask(ctx, db, owner.ID, task.ID, models.TaskPatch{Completed: boolPtr(false)}, task.Version); !errors.Is(err, ErrVersionConflict) {
		t.Errorf("PatchTask() stale err = %v, want ErrVersionConflict", err)
	}

	if _, err := PatchTask(ctx, db, owner.ID, task.ID, models.TaskPatch{}, task.Version); !errors.Is(err, ErrVersionConflict) {
		t.Errorf("empty PatchTask() with stale version err = %v, want ErrVersionConflict", err)
	}
}

func TestDeleteTask(t *testing.T) {
	db, teardown := setupTestDB(t)
	defer teardown()
	ctx := context.Background()

	owner := createTestUser(t, db, "owner@example.com", "pw")
	intruder := createTestUser(t, db, "intruder@example.com", "pw")
	task, err := CreateTask(ctx, db, owner.ID, models.TaskInput{Title: "Temp"})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	if err := DeleteTask(ctx, db, intruder.ID, task.ID); err != sql.ErrNoRows {
		t.Errorf("DeleteTask() by another user err = %v, want sql.ErrNoRows", err)
	}
	if err := DeleteTask(ctx, db, owner.ID, task.ID); err != nil {
		t.Fatalf("DeleteTask() error = %v", err)
	}
	if _, err := GetTask(ctx, db, owner.ID, task.ID); err != sql.ErrNoRows {
		t.Errorf("GetTask() after delete err = %v, want sql.ErrNoRows", err)
	}
	if err := DeleteTask(ctx, db, owner.ID, task.ID); err != sql.ErrNoRows {
		t.Errorf("second DeleteTask() err = %v, want sql.ErrNoRows", err)
	}
}
