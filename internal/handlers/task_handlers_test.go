package handlers

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/taskboard/app/internal/models"
)

func TestTaskAPIRequiresSession(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Teardown()

	for _, tc := range []struct{ method, path string }{
		{"GET", "/tasks/"},
		{"POST", "/tasks/"},
		{"GET", "/tasks/1"},
		{"PUT", "/tasks/1"},
		{"PATCH", "/tasks/1"},
		{"DELETE", "/tasks/1"},
	} {
		var body errorResponse
		resp := ts.doJSON(t, tc.method, tc.path, "", map[string]string{"title": "x"}, &body)
		if resp.StatusCode != http.StatusUnauthorized || body.Error != "unauthorized" {
			t.Errorf("%s %s = %d %+v, want 401 unauthorized", tc.method, tc.path, resp.StatusCode, body)
		}
	}
}

func TestTaskCRUD(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Teardown()
	token := ts.registerAndLogin(t, "frank", "frank@example.com", "pw-frank")

	t.Run("empty list is an array", func(t *testing.T) {
		resp, err := http.DefaultClient.Do(mustRequest(t, "GET", ts.server.URL+"/tasks/", token, ""))
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		if strings.TrimSpace(string(body)) != "[]" {
			t.Errorf("body = %s, want []", body)
		}
	})

	var created models.Task
	t.Run("create", func(t *testing.T) {
		resp := ts.doJSON(t, "POST", "/tasks/", token, map[string]any{
			"title":       "Write report",
			"description": "quarterly",
			"due_date":    "2030-01-02T15:04",
		}, &created)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("status = %d, want 201", resp.StatusCode)
		}
		if created.ID == 0 || created.Title != "Write report" || created.Completed || created.Version != 1 {
			t.Errorf("created = %+v", created)
		}
		want := time.Date(2030, 1, 2, 15, 4, 0, 0, time.UTC)
		if created.DueDate == nil || !created.DueDate.Equal(want) {
			t.Errorf("due_date = %v, want %v", created.DueDate, want)
		}
		if resp.Header.Get("ETag") != `"1"` {
			t.Errorf("ETag = %q", resp.Header.Get("ETag"))
		}
	})

	t.Run("create rejects blank title and bad due date", func(t *testing.T) {
		resp := ts.doJSON(t, "POST", "/tasks/", token, map[string]any{"title": "  "}, nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("blank title status = %d, want 400", resp.StatusCode)
		}
		var body errorResponse
		resp = ts.doJSON(t, "POST", "/tasks/", token, map[string]any{"title": "x", "due_date": "soon"}, &body)
		if resp.StatusCode != http.StatusBadRequest || body.Error != "invalid due_date" {
			t.Errorf("bad due date = %d %+v", resp.StatusCode, body)
		}
	})

	t.Run("get", func(t *testing.T) {
		var got models.Task
		resp := ts.doJSON(t, "GET", "/tasks/"+strconv.FormatInt(created.ID, 10), token, nil, &got)
		if resp.StatusCode != http.StatusOK || got.ID != created.ID {
			t.Errorf("get = %d %+v", resp.StatusCode, got)
		}
		if resp := ts.doJSON(t, "GET", "/tasks/abc", token, nil, nil); resp.StatusCode != http.StatusBadRequest {
			t.Errorf("malformed id status = %d, want 400", resp.StatusCode)
		}
		if resp := ts.doJSON(t, "GET", "/tasks/99999", token, nil, nil); resp.StatusCode != http.StatusNotFound {
			t.Errorf("missing id status = %d, want 404", resp.StatusCode)
		}
	})

	path := "/tasks/" + strconv.FormatInt(created.ID, 10)

	t.Run("put replaces and bumps version", func(t *testing.T) {
		var updated models.Task
		resp := ts.doJSON(t, "PUT", path, token, map[string]any{
			"title":     "Write report v2",
			"completed": true,
			"version":   created.Version,
		}, &updated)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if updated.ID != created.ID || !updated.Completed || updated.Description != nil || updated.DueDate != nil {
			t.Errorf("updated = %+v", updated)
		}
		if updated.Version != created.Version+1 {
			t.Errorf("version = %d, want %d", updated.Version, created.Version+1)
		}
	})

	t.Run("stale put conflicts", func(t *testing.T) {
		var body errorResponse
		resp := ts.doJSON(t, "PUT", path, token, map[string]any{
			"title":   "stale",
			"version": created.Version,
		}, &body)
		if resp.StatusCode != http.StatusConflict {
			t.Errorf("status = %d, want 409", resp.StatusCode)
		}
		var current models.Task
		ts.doJSON(t, "GET", path, token, nil, &current)
		if current.Title != "Write report v2" {
			t.Errorf("stale write applied: %+v", current)
		}
	})

	t.Run("If-Match is honoured", func(t *testing.T) {
		req := mustRequest(t, "PUT", ts.server.URL+path, token, `{"title":"via header"}`)
		req.Header.Set("If-Match", `"1"`)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusConflict {
			t.Errorf("stale If-Match status = %d, want 409", resp.StatusCode)
		}
	})

	t.Run("patch toggles only completed", func(t *testing.T) {
		var before, after models.Task
		ts.doJSON(t, "GET", path, token, nil, &before)
		resp := ts.doJSON(t, "PATCH", path, token, map[string]any{"completed": false}, &after)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if after.Completed || after.Title != before.Title || after.Version != before.Version+1 {
			t.Errorf("after = %+v, before = %+v", after, before)
		}
	})

	t.Run("patch with null clears due date", func(t *testing.T) {
		var withDue, cleared models.Task
		ts.doJSON(t, "PATCH", path, token, map[string]any{"due_date": "2031-05-01"}, &withDue)
		if withDue.DueDate == nil {
			t.Fatal("due date not set")
		}
		ts.doJSON(t, "PATCH", path, token, map[string]any{"due_date": nil, "description": nil}, &cleared)
		if cleared.DueDate != nil || cleared.Description != nil {
			t.Errorf("cleared = %+v", cleared)
		}
	})

	t.Run("other users cannot see or touch the task", func(t *testing.T) {
		other := ts.registerAndLogin(t, "gina", "gina@example.com", "pw-gina")
		if resp := ts.doJSON(t, "GET", path, other, nil, nil); resp.StatusCode != http.StatusNotFound {
			t.Errorf("GET by other user = %d, want 404", resp.StatusCode)
		}
		if resp := ts.doJSON(t, "DELETE", path, other, nil, nil); resp.StatusCode != http.StatusNotFound {
			t.Errorf("DELETE by other user = %d, want 404", resp.StatusCode)
		}
		var list []models.Task
		ts.doJSON(t, "GET", "/tasks/", other, nil, &list)
		if len(list) != 0 {
			t.Errorf("other user's list = %+v, want empty", list)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if resp := ts.doJSON(t, "DELETE", path, token, nil, nil); resp.StatusCode != http.StatusNoContent {
			t.Errorf("DELETE status = %d, want 204", resp.StatusCode)
		}
		if resp := ts.doJSON(t, "DELETE", path, token, nil, nil); resp.StatusCode != http.StatusNotFound {
			t.Errorf("second DELETE status = %d, want 404", resp.StatusCode)
		}
	})
}

func TestIndexPageTabsAndBadges(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Teardown()
	token := ts.registerAndLogin(t, "hank", "hank@example.com", "pw-hank")

	now := time.Now().UTC()

	for _, in := range []map[string]any{
		{"title": "Late thing", "due_date": now.Add(-time.Hour).Format(time.RFC3339)},
		{"title": "Soon thing", "due_date": now.Add(3 * time.Hour).Format(time.RFC3339)},
		{"title": "Done thing", "completed": true},
	} {
		if resp := ts.doJSON(t, "POST", "/tasks/", token, in, nil); resp.StatusCode != http.StatusCreated {
			t.Fatalf("create %v status = %d", in["title"], resp.StatusCode)
		}
	}

	get := func(query string) string {
		t.Helper()
		req := mustRequest(t, "GET", ts.server.URL+"/"+query, "", "")
		req.AddCookie(&http.Cookie{Name: testCookieName, Value: token})
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET /%s status = %d", query, resp.StatusCode)
		}
		body, _ := io.ReadAll(resp.Body)
		return string(body)
	}

	active := get("")
	if !strings.Contains(active, "Late thing") || !strings.Contains(active, "Soon thing") {
		t.Error("active tab is missing open tasks")
	}
	if strings.Contains(active, "Done thing") {
		t.Error("active tab shows a completed task")
	}
	if !strings.Contains(active, "Overdue") || !strings.Contains(active, "Due Soon") {
		t.Error("active tab is missing due badges")
	}

	completed := get("?tab=completed")
	if !strings.Contains(completed, "Done thing") || strings.Contains(completed, "Late thing") {
		t.Error("completed tab has the wrong tasks")
	}
}

func mustRequest(t *testing.T, method, url, token, body string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}
