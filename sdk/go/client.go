package daydashsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Daydash HTTP API client. Without a BearerToken all
// calls run against the guest identity.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Task mirrors the API task model.
type Task struct {
	ID        string       `json:"id"`
	UserID    string       `json:"userId"`
	Date      string       `json:"date"`
	Project   string       `json:"project"`
	Category  string       `json:"category"`
	Title     string       `json:"title"`
	Status    string       `json:"status"`
	Priority  string       `json:"priority"`
	Memo      string       `json:"memo"`
	CreatedAt string       `json:"createdAt"`
	UpdatedAt string       `json:"updatedAt"`
	Estimated TaskEstimate `json:"estimated"`
	Actual    TaskActual   `json:"actual"`
}

type TaskEstimate struct {
	Start   *string `json:"start"`
	End     *string `json:"end"`
	Minutes int     `json:"minutes"`
}

type TaskActual struct {
	Minutes          int     `json:"minutes"`
	SuspendMinutes   int     `json:"suspendMinutes"`
	SuspendStartedAt *string `json:"suspendStartedAt"`
}

// TaskList is the read projection for one date.
type TaskList struct {
	Tasks             []Task              `json:"tasks"`
	Projects          []string            `json:"projects"`
	Categories        []string            `json:"categories"`
	ProjectCategories map[string][]string `json:"projectCategories"`
	ProjectTitles     map[string][]string `json:"projectTitles"`
}

// Settings mirrors per-identity preferences.
type Settings struct {
	AutoFetchTime            *string `json:"autoFetchTime"`
	AutoFetchIntervalMinutes *int    `json:"autoFetchIntervalMinutes"`
	TaskTimeDisplayMode      string  `json:"taskTimeDisplayMode"`
}

// CalendarUpdate is the result of a calendar fetch.
type CalendarUpdate struct {
	Events []struct {
		CalendarName string `json:"calendarName"`
		Subject      string `json:"subject"`
		DateTime     string `json:"dateTime"`
	} `json:"events"`
	UpdatedAt string `json:"updatedAt"`
	Source    string `json:"source"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Login exchanges a profile for a session token and stores it on the
// client.
func (c *Client) Login(ctx context.Context, name, email string) error {
	var resp struct {
		Token string `json:"token"`
	}
	err := c.do(ctx, http.MethodPost, "auth/login", map[string]any{
		"name":  name,
		"email": email,
	}, &resp)
	if err != nil {
		return err
	}
	c.BearerToken = resp.Token
	return nil
}

// ListTasks returns the tasks for one yyyy-mm-dd date.
func (c *Client) ListTasks(ctx context.Context, date string) (TaskList, error) {
	var resp TaskList
	err := c.do(ctx, http.MethodGet, "tasks?date="+url.QueryEscape(date), nil, &resp)
	return resp, err
}

// CreateTask creates a task.
func (c *Client) CreateTask(ctx context.Context, date, project, title string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, "tasks", map[string]any{
		"date":    date,
		"project": project,
		"title":   title,
	}, &resp)
	return resp, err
}

// RemoveTask deletes a task by id.
func (c *Client) RemoveTask(ctx context.Context, taskID string) error {
	return c.do(ctx, http.MethodDelete, "tasks/"+url.PathEscape(taskID), nil, nil)
}

// StartTask begins time tracking.
func (c *Client) StartTask(ctx context.Context, taskID string) (Task, error) {
	return c.transition(ctx, taskID, "start", nil)
}

// SuspendTask pauses time tracking.
func (c *Client) SuspendTask(ctx context.Context, taskID string) (Task, error) {
	return c.transition(ctx, taskID, "suspend", nil)
}

// ResumeTask resumes a suspended task.
func (c *Client) ResumeTask(ctx context.Context, taskID string) (Task, error) {
	return c.transition(ctx, taskID, "resume", nil)
}

// StopTask closes tracking with a terminal status: done, carryover or
// finished.
func (c *Client) StopTask(ctx context.Context, taskID, status string) (Task, error) {
	return c.transition(ctx, taskID, "stop", map[string]any{"status": status})
}

func (c *Client) transition(ctx context.Context, taskID, action string, body any) (Task, error) {
	var resp Task
	endpoint := fmt.Sprintf("tasks/%s/%s", url.PathEscape(taskID), action)
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// GetSettings returns the identity's preferences.
func (c *Client) GetSettings(ctx context.Context) (Settings, error) {
	var resp Settings
	err := c.do(ctx, http.MethodGet, "settings", nil, &resp)
	return resp, err
}

// PutSettings replaces the identity's preferences.
func (c *Client) PutSettings(ctx context.Context, s Settings) (Settings, error) {
	var resp Settings
	err := c.do(ctx, http.MethodPut, "settings", s, &resp)
	return resp, err
}

// FetchCalendar pulls one day of calendar events.
func (c *Client) FetchCalendar(ctx context.Context, date string) (CalendarUpdate, error) {
	var resp CalendarUpdate
	err := c.do(ctx, http.MethodPost, "calendar/fetch", map[string]any{"date": date}, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/api/v1/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
