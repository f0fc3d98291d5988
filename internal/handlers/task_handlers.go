package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/taskboard/app/internal/auth"
	"github.com/taskboard/app/internal/database"
	"github.com/taskboard/app/internal/models"
)

// taskRequest is the body of POST and PUT. Absent optional fields are
// stored as null.
type taskRequest struct {
	Title       string              `json:"title"`
	Description *string             `json:"description"`
	DueDate     models.DueDateField `json:"due_date"`
	Completed   bool                `json:"completed"`
	Version     int64               `json:"version"`
}

func (req taskRequest) input() models.TaskInput {
	return models.TaskInput{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate.Value,
		Completed:   req.Completed,
	}
}

// taskPatchRequest is the body of PATCH. Only keys present are applied; a
// null description or due_date clears it.
type taskPatchRequest struct {
	Title       *string             `json:"title"`
	Description models.TextField    `json:"description"`
	DueDate     models.DueDateField `json:"due_date"`
	Completed   *bool               `json:"completed"`
	Version     int64               `json:"version"`
}

func (req taskPatchRequest) patch() models.TaskPatch {
	p := models.TaskPatch{Title: req.Title, Completed: req.Completed}
	if req.Description.Set {
		empty := ""
		p.Description = &empty
		if req.Description.Value != nil {
			p.Description = req.Description.Value
		}
	}
	if req.DueDate.Set {
		if req.DueDate.Value == nil {
			p.ClearDueDate = true
		} else {
			p.DueDate = req.DueDate.Value
		}
	}
	return p
}

// currentUserID is only called behind RequireSession.
func currentUserID(r *http.Request) int64 {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		return 0
	}
	return sess.UserID
}

// writeTaskError translates store errors into status codes without leaking
// their text.
func (e *Env) writeTaskError(w http.ResponseWriter, r *http.Request, handler string, taskID int64, err error) {
	switch {
	case errors.Is(err, models.ErrTitleRequired):
		respondWithError(w, http.StatusBadRequest, models.ErrTitleRequired.Error())
	case errors.Is(err, sql.ErrNoRows):
		respondWithError(w, http.StatusNotFound, "task not found")
	case errors.Is(err, database.ErrVersionConflict):
		respondWithError(w, http.StatusConflict, "task was modified by another request")
	default:
		e.log(r, handler).WithError(err).WithField("task_id", taskID).Error("task store failure")
		respondWithError(w, http.StatusInternalServerError, "internal error")
	}
}

func badBody(w http.ResponseWriter, err error) {
	if errors.Is(err, models.ErrInvalidDueDate) {
		respondWithError(w, http.StatusBadRequest, "invalid due_date")
		return
	}
	respondWithError(w, http.StatusBadRequest, "invalid request body")
}

func respondWithTask(w http.ResponseWriter, status int, task *models.Task) {
	w.Header().Set("ETag", etag(task.Version))
	respondWithJSON(w, status, task)
}

// ListTasks handles GET /tasks/.
func (e *Env) ListTasks() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tasks, err := database.ListTasks(r.Context(), e.DB, currentUserID(r))
		if err != nil {
			e.writeTaskError(w, r, "list_tasks", 0, err)
			return
		}
		respondWithJSON(w, http.StatusOK, tasks)
	}
}

// CreateTask handles POST /tasks/.
func (e *Env) CreateTask() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req taskRequest
		if err := decodeJSON(w, r, &req); err != nil {
			badBody(w, err)
			return
		}

		task, err := database.CreateTask(r.Context(), e.DB, currentUserID(r), req.input())
		if err != nil {
			e.writeTaskError(w, r, "create_task", 0, err)
			return
		}
		e.log(r, "create_task").WithFields(logrus.Fields{
			"task_id": task.ID,
			"user_id": task.UserID,
		}).Info("task created")
		respondWithTask(w, http.StatusCreated, task)
	}
}

// GetTask handles GET /tasks/{id}.
func (e *Env) GetTask() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := taskIDFromRequest(r)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid task id")
			return
		}
		task, err := database.GetTask(r.Context(), e.DB, currentUserID(r), id)
		if err != nil {
			e.writeTaskError(w, r, "get_task", id, err)
			return
		}
		respondWithTask(w, http.StatusOK, task)
	}
}

// ReplaceTask handles PUT /tasks/{id}: every writable field is replaced.
func (e *Env) ReplaceTask() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := taskIDFromRequest(r)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid task id")
			return
		}
		var req taskRequest
		if err := decodeJSON(w, r, &req); err != nil {
			badBody(w, err)
			return
		}
		version, err := expectedVersion(r, req.Version)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid version")
			return
		}

		task, err := database.ReplaceTask(r.Context(), e.DB, currentUserID(r), id, req.input(), version)
		if err != nil {
			e.writeTaskError(w, r, "replace_task", id, err)
			return
		}
		respondWithTask(w, http.StatusOK, task)
	}
}

// PatchTask handles PATCH /tasks/{id}: only the given fields change.
func (e *Env) PatchTask() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := taskIDFromRequest(r)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid task id")
			return
		}
		var req taskPatchRequest
		if err := decodeJSON(w, r, &req); err != nil {
			badBody(w, err)
			return
		}
		version, err := expectedVersion(r, req.Version)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid version")
			return
		}

		task, err := database.PatchTask(r.Context(), e.DB, currentUserID(r), id, req.patch(), version)
		if err != nil {
			e.writeTaskError(w, r, "patch_task", id, err)
			return
		}
		respondWithTask(w, http.StatusOK, task)
	}
}

// DeleteTask handles DELETE /tasks/{id}.
func (e *Env) DeleteTask() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := taskIDFromRequest(r)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid task id")
			return
		}
		if err := database.DeleteTask(r.Context(), e.DB, currentUserID(r), id); err != nil {
			e.writeTaskError(w, r, "delete_task", id, err)
			return
		}
		e.log(r, "delete_task").WithField("task_id", id).Info("task deleted")
		w.WriteHeader(http.StatusNoContent)
	}
}

// taskView is a task as the list page shows it.
type taskView struct {
	models.Task
	Due models.DueStatus
}

// IndexPage lists the signed-in user's tasks split into active and
// completed tabs.
func (e *Env) IndexPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, _ := auth.SessionFromContext(r.Context())
		tasks, err := database.ListTasks(r.Context(), e.DB, sess.UserID)
		if err != nil {
			e.log(r, "index").WithError(err).Error("list tasks")
			e.RenderErrorPage(w, r, http.StatusInternalServerError, "Could not load your tasks.")
			return
		}

		tab := r.URL.Query().Get("tab")
		if tab != "completed" {
			tab = "active"
		}

		now := e.now()
		var views []taskView
		active := 0
		for _, t := range tasks {
			isActive := models.IsActive(*t)
			if isActive {
				active++
			}
			if isActive == (tab == "active") {
				views = append(views, taskView{Task: *t, Due: models.ClassifyDue(t.DueDate, now)})
			}
		}

		e.render(w, r, "index.html", map[string]any{
			"Title":          "Tasks",
			"User":           sess,
			"Tab":            tab,
			"Tasks":          views,
			"ActiveCount":    active,
			"CompletedCount": len(tasks) - active,
		})
	}
}
