package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"daydash/internal/domain"
	"daydash/internal/settings"
	"daydash/internal/store"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T, fetch func(ctx context.Context, user *domain.UserProfile, dateKey string) ([]domain.CalendarRow, error)) *testServer {
	t.Helper()
	root := t.TempDir()
	st := store.New(store.Options{
		DataRoot: root,
		GuestDir: filepath.Join(root, "guest"),
	})
	handler, err := New(Config{
		Store:    st,
		Settings: settings.NewService(nil, root),
		Fetch:    fetch,
		Now:      func() time.Time { return time.Date(2026, 2, 18, 9, 0, 0, 0, time.UTC) },
		BasePath: "/api/v1",
		Auth:     AuthConfig{JWTSecret: "test-secret"},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	ts := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
		},
	}
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func createTask(t *testing.T, srv *testServer, headers map[string]string, title string) domain.Task {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/v1/tasks", map[string]any{
		"date":    "2026-02-18",
		"project": "alpha",
		"title":   title,
	}, headers)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create task status %d: %s", res.StatusCode, string(data))
	}
	var task domain.Task
	if err := json.Unmarshal(data, &task); err != nil {
		t.Fatalf("unmarshal task: %v", err)
	}
	return task
}

func login(t *testing.T, srv *testServer, email string) map[string]string {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/v1/auth/login", map[string]any{
		"name":  "Alex",
		"email": email,
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("login status %d: %s", res.StatusCode, string(data))
	}
	var out LoginResponse
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal login: %v", err)
	}
	return map[string]string{"Authorization": "Bearer " + out.Token}
}

func TestGuestTaskRoundTrip(t *testing.T) {
	srv := newTestServer(t, nil)
	task := createTask(t, srv, nil, "write report")
	if task.UserID != domain.GuestUserID {
		t.Fatalf("userId = %s", task.UserID)
	}

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/v1/tasks?date=2026-02-18", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list status %d: %s", res.StatusCode, string(data))
	}
	var list domain.TaskListResponse
	if err := json.Unmarshal(data, &list); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if len(list.Tasks) != 1 || list.Tasks[0].Title != "write report" {
		t.Fatalf("tasks = %+v", list.Tasks)
	}
}

func TestAuthenticatedTasksAreIsolatedFromGuest(t *testing.T) {
	srv := newTestServer(t, nil)
	headers := login(t, srv, "alex@example.com")
	task := createTask(t, srv, headers, "planning")
	if task.UserID != "alex@example.com" {
		t.Fatalf("userId = %s", task.UserID)
	}

	_, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/v1/tasks?date=2026-02-18", nil, nil)
	var list domain.TaskListResponse
	if err := json.Unmarshal(data, &list); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if len(list.Tasks) != 0 {
		t.Fatalf("guest sees authenticated tasks: %+v", list.Tasks)
	}
}

func TestInvalidTokenRejected(t *testing.T) {
	srv := newTestServer(t, nil)
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/v1/tasks?date=2026-02-18", nil, map[string]string{
		"Authorization": "Bearer not-a-token",
	})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status %d: %s", res.StatusCode, string(data))
	}
}

func TestCreateTaskValidation(t *testing.T) {
	srv := newTestServer(t, nil)
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/v1/tasks", map[string]any{
		"date":    "2026-02-18",
		"project": "   ",
		"title":   "x",
	}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if envelope.Error.Code != "bad_request" {
		t.Fatalf("code = %s", envelope.Error.Code)
	}
}

func TestLifecycleEndpoints(t *testing.T) {
	srv := newTestServer(t, nil)
	task := createTask(t, srv, nil, "deep work")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/v1/tasks/"+task.ID+"/start", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("start status %d: %s", res.StatusCode, string(data))
	}
	var started domain.Task
	_ = json.Unmarshal(data, &started)
	if started.Status != domain.StatusDoing || len(started.Actual.Logs) != 1 {
		t.Fatalf("started = %+v", started)
	}

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/v1/tasks/"+task.ID+"/stop", map[string]any{
		"status": "carryover",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("stop status %d: %s", res.StatusCode, string(data))
	}
	var stopped domain.Task
	_ = json.Unmarshal(data, &stopped)
	if stopped.Status != domain.StatusCarryover {
		t.Fatalf("status = %s", stopped.Status)
	}
	if stopped.Actual.Logs[0].End == nil {
		t.Fatal("stop must close the open log")
	}

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/v1/tasks/missing/start", nil, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("missing task status %d: %s", res.StatusCode, string(data))
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	srv := newTestServer(t, nil)
	res, data := doJSON(t, srv.Client(), http.MethodPut, srv.URL+"/api/v1/settings", map[string]any{
		"autoFetchTime":            "09:30",
		"autoFetchIntervalMinutes": 15,
		"taskTimeDisplayMode":      "decimal",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("put status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/v1/settings", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get status %d: %s", res.StatusCode, string(data))
	}
	var got domain.AppSettings
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal settings: %v", err)
	}
	if got.AutoFetchTime == nil || *got.AutoFetchTime != "09:30" {
		t.Fatalf("autoFetchTime = %v", got.AutoFetchTime)
	}
	if got.TaskTimeDisplayMode != settings.DisplayDecimal {
		t.Fatalf("display mode = %s", got.TaskTimeDisplayMode)
	}
}

func TestCalendarFetchSwallowsProviderErrors(t *testing.T) {
	srv := newTestServer(t, func(ctx context.Context, user *domain.UserProfile, dateKey string) ([]domain.CalendarRow, error) {
		return nil, errors.New("provider down")
	})
	headers := login(t, srv, "alex@example.com")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/v1/calendar/fetch", map[string]any{
		"date": "2026-02-18",
	}, headers)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("fetch status %d: %s", res.StatusCode, string(data))
	}
	var update domain.CalendarUpdate
	if err := json.Unmarshal(data, &update); err != nil {
		t.Fatalf("unmarshal update: %v", err)
	}
	if len(update.Events) != 0 || update.Source != "manual" {
		t.Fatalf("update = %+v", update)
	}
}

func TestCalendarFetchReturnsRows(t *testing.T) {
	srv := newTestServer(t, func(ctx context.Context, user *domain.UserProfile, dateKey string) ([]domain.CalendarRow, error) {
		return []domain.CalendarRow{{CalendarName: "team", Subject: "standup", DateTime: "09:00-09:15"}}, nil
	})
	headers := login(t, srv, "alex@example.com")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/v1/calendar/fetch", map[string]any{
		"date": "2026-02-18",
	}, headers)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("fetch status %d: %s", res.StatusCode, string(data))
	}
	var update domain.CalendarUpdate
	if err := json.Unmarshal(data, &update); err != nil {
		t.Fatalf("unmarshal update: %v", err)
	}
	if len(update.Events) != 1 || update.Events[0].Subject != "standup" {
		t.Fatalf("events = %+v", update.Events)
	}
}

func TestHealthIsOpen(t *testing.T) {
	srv := newTestServer(t, nil)
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/v1/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d: %s", res.StatusCode, string(data))
	}
}
