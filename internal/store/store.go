// Package store persists each identity's task collection as a single JSON
// document, re-read lazily and re-written in full on every mutation. Guest
// data lives in a process-scoped temp directory and is erased on demand.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"daydash/internal/domain"
	"daydash/internal/identity"
)

const taskFileName = "tasks.json"

var (
	// ErrProjectRequired and ErrTitleRequired flag the two load-bearing
	// free-text fields that must survive trimming.
	ErrProjectRequired = errors.New("project is required")
	ErrTitleRequired   = errors.New("title is required")

	// ErrInvalidDate flags a date that does not match yyyy-mm-dd.
	ErrInvalidDate = errors.New("invalid task date")
)

var (
	datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timePattern = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)
)

// Options wires the store's collaborators. Zero fields fall back to real
// implementations; tests inject deterministic ones.
type Options struct {
	Resolve  identity.Resolver
	DataRoot string
	GuestDir string
	Now      func() time.Time
	NewID    func() string
}

// Store owns one durable collection per identity plus the ephemeral guest
// collection.
type Store struct {
	resolve  identity.Resolver
	dataRoot string
	guestDir string
	now      func() time.Time
	newID    func() string

	mu      sync.Mutex
	handles map[string]*handle
}

// handle is the cached in-memory collection for one identity. Operations on
// the same identity serialize on its mutex so read-modify-write cannot lose
// an update.
type handle struct {
	mu     sync.Mutex
	path   string
	loaded bool
	data   domain.TaskCollection
}

// New builds a Store. Resolve may be nil, in which case every caller is the
// guest identity.
func New(opts Options) *Store {
	resolve := opts.Resolve
	if resolve == nil {
		resolve = func() *domain.UserProfile { return nil }
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	guestDir := opts.GuestDir
	if guestDir == "" {
		guestDir = identity.GuestDataDir()
	}
	return &Store{
		resolve:  resolve,
		dataRoot: opts.DataRoot,
		guestDir: guestDir,
		now:      now,
		newID:    newID,
		handles:  map[string]*handle{},
	}
}

// GetAll returns the read projection for one date under the resolved
// identity.
func (s *Store) GetAll(date string) (domain.TaskListResponse, error) {
	return s.getAll(s.userID(), date)
}

// GetAllFor is GetAll acting as an explicit identity, for callers that
// carry identity per request instead of process-wide.
func (s *Store) GetAllFor(user *domain.UserProfile, date string) (domain.TaskListResponse, error) {
	return s.getAll(identity.Key(user), date)
}

func (s *Store) getAll(userID, date string) (domain.TaskListResponse, error) {
	if !datePattern.MatchString(date) {
		return domain.TaskListResponse{}, fmt.Errorf("%w: %s", ErrInvalidDate, date)
	}
	h := s.handleFor(userID)
	h.mu.Lock()
	defer h.mu.Unlock()

	h.load()
	return buildTaskListResponse(h.data, date), nil
}

// Add sanitizes the input, assigns identity, id and timestamps, appends the
// task and persists the collection.
func (s *Store) Add(input domain.TaskCreateInput) (domain.Task, error) {
	return s.add(s.userID(), input)
}

// AddFor is Add acting as an explicit identity.
func (s *Store) AddFor(user *domain.UserProfile, input domain.TaskCreateInput) (domain.Task, error) {
	return s.add(identity.Key(user), input)
}

func (s *Store) add(userID string, input domain.TaskCreateInput) (domain.Task, error) {
	sanitized, err := sanitizeCreateInput(input)
	if err != nil {
		return domain.Task{}, err
	}

	h := s.handleFor(userID)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.load()

	nowIso := s.nowIso()
	status := sanitized.Status
	if status == "" {
		status = domain.StatusTodo
	}
	task := domain.Task{
		ID:        s.newID(),
		UserID:    userID,
		Date:      sanitized.Date,
		Project:   sanitized.Project,
		Category:  sanitized.Category,
		Title:     sanitized.Title,
		Status:    status,
		Priority:  sanitized.Priority,
		Memo:      sanitized.Memo,
		Estimated: sanitized.Estimated,
		Actual:    sanitizeActual(sanitized.Actual),
		CreatedAt: nowIso,
		UpdatedAt: nowIso,
	}

	h.data.Tasks = append(h.data.Tasks, task)
	h.data.Projects = upsertMaster(h.data.Projects, task.Project)
	h.data.Categories = upsertMaster(h.data.Categories, task.Category)
	if err := h.persist(); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// Find returns a task by id under the resolved identity, or nil when it
// does not exist.
func (s *Store) Find(taskID string) (*domain.Task, error) {
	return s.find(s.userID(), taskID)
}

// FindFor is Find acting as an explicit identity.
func (s *Store) FindFor(user *domain.UserProfile, taskID string) (*domain.Task, error) {
	return s.find(identity.Key(user), taskID)
}

func (s *Store) find(userID, taskID string) (*domain.Task, error) {
	h := s.handleFor(userID)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.load()

	for _, task := range h.data.Tasks {
		if task.ID == taskID && task.UserID == userID {
			found := task
			return &found, nil
		}
	}
	return nil, nil
}

// Update merges sanitized fields onto an existing record, preserving
// createdAt and refreshing updatedAt. A missing record returns (nil, nil).
func (s *Store) Update(task domain.Task) (*domain.Task, error) {
	return s.update(s.userID(), task)
}

// UpdateFor is Update acting as an explicit identity.
func (s *Store) UpdateFor(user *domain.UserProfile, task domain.Task) (*domain.Task, error) {
	return s.update(identity.Key(user), task)
}

func (s *Store) update(userID string, task domain.Task) (*domain.Task, error) {
	h := s.handleFor(userID)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.load()

	index := -1
	for i, existing := range h.data.Tasks {
		if existing.ID == task.ID && existing.UserID == userID {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, nil
	}

	sanitized, err := sanitizeTaskForUpdate(task, userID)
	if err != nil {
		return nil, err
	}
	existing := h.data.Tasks[index]
	sanitized.CreatedAt = existing.CreatedAt
	sanitized.UpdatedAt = s.nowIso()

	h.data.Tasks[index] = sanitized
	h.data.Projects = upsertMaster(h.data.Projects, sanitized.Project)
	h.data.Categories = upsertMaster(h.data.Categories, sanitized.Category)
	if err := h.persist(); err != nil {
		return nil, err
	}
	result := sanitized
	return &result, nil
}

// Remove deletes a record by (id, identity). It reports whether anything
// was actually removed.
func (s *Store) Remove(taskID string) (bool, error) {
	return s.remove(s.userID(), taskID)
}

// RemoveFor is Remove acting as an explicit identity.
func (s *Store) RemoveFor(user *domain.UserProfile, taskID string) (bool, error) {
	return s.remove(identity.Key(user), taskID)
}

func (s *Store) remove(userID, taskID string) (bool, error) {
	h := s.handleFor(userID)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.load()

	kept := h.data.Tasks[:0:0]
	for _, task := range h.data.Tasks {
		if task.ID == taskID && task.UserID == userID {
			continue
		}
		kept = append(kept, task)
	}
	if len(kept) == len(h.data.Tasks) {
		return false, nil
	}
	h.data.Tasks = kept
	if err := h.persist(); err != nil {
		return false, err
	}
	return true, nil
}

// ClearGuestData drops the cached guest collection and erases its directory.
// Guest data is not expected to outlive the process.
func (s *Store) ClearGuestData() error {
	s.mu.Lock()
	delete(s.handles, domain.GuestUserID)
	s.mu.Unlock()
	return os.RemoveAll(s.guestDir)
}

func (s *Store) userID() string {
	return identity.Key(s.resolve())
}

func (s *Store) nowIso() string {
	return s.now().UTC().Format(time.RFC3339)
}

// handleFor returns the cached handle for an identity, lazily creating it.
// Handles are never evicted; the map is bounded by the identities seen in
// one process lifetime.
func (s *Store) handleFor(userID string) *handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.handles[userID]; ok {
		return h
	}

	var path string
	if userID == domain.GuestUserID {
		path = filepath.Join(s.guestDir, taskFileName)
	} else {
		path = filepath.Join(identity.UserDataDir(s.dataRoot, userID), taskFileName)
	}
	h := &handle{path: path}
	s.handles[userID] = h
	return h
}

// load reads the collection from disk once per handle. Unreadable or
// corrupt files are treated as an empty collection. Records are normalized
// on read so older documents acquire newer defaults without a migration.
func (h *handle) load() {
	if h.loaded {
		return
	}
	h.loaded = true
	h.data = domain.TaskCollection{}

	raw, err := os.ReadFile(h.path)
	if err == nil {
		var parsed domain.TaskCollection
		if json.Unmarshal(raw, &parsed) == nil {
			h.data = parsed
		}
	}
	for i := range h.data.Tasks {
		h.data.Tasks[i].Actual = sanitizeActual(h.data.Tasks[i].Actual)
	}
	h.data.Projects = sortUnique(h.data.Projects)
	h.data.Categories = sortUnique(h.data.Categories)
	if h.data.Tasks == nil {
		h.data.Tasks = []domain.Task{}
	}
}

// persist rewrites the whole document.
func (h *handle) persist() error {
	if err := os.MkdirAll(filepath.Dir(h.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(h.data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal task collection: %w", err)
	}
	return os.WriteFile(h.path, data, 0o644)
}

// --- sanitization ---

func sanitizeCreateInput(input domain.TaskCreateInput) (domain.TaskCreateInput, error) {
	project := strings.TrimSpace(input.Project)
	title := strings.TrimSpace(input.Title)
	if project == "" {
		return domain.TaskCreateInput{}, ErrProjectRequired
	}
	if title == "" {
		return domain.TaskCreateInput{}, ErrTitleRequired
	}
	if !datePattern.MatchString(input.Date) {
		return domain.TaskCreateInput{}, fmt.Errorf("%w: %s", ErrInvalidDate, input.Date)
	}

	return domain.TaskCreateInput{
		Date:      input.Date,
		Project:   project,
		Category:  strings.TrimSpace(input.Category),
		Title:     title,
		Status:    normalizeStatus(input.Status),
		Priority:  normalizePriority(input.Priority),
		Memo:      strings.TrimSpace(input.Memo),
		Estimated: sanitizeEstimate(input.Estimated),
		Actual:    sanitizeActual(input.Actual),
	}, nil
}

func sanitizeTaskForUpdate(task domain.Task, userID string) (domain.Task, error) {
	project := strings.TrimSpace(task.Project)
	title := strings.TrimSpace(task.Title)
	if project == "" {
		return domain.Task{}, ErrProjectRequired
	}
	if title == "" {
		return domain.Task{}, ErrTitleRequired
	}
	if !datePattern.MatchString(task.Date) {
		return domain.Task{}, fmt.Errorf("%w: %s", ErrInvalidDate, task.Date)
	}

	task.UserID = userID
	task.Project = project
	task.Category = strings.TrimSpace(task.Category)
	task.Title = title
	task.Status = normalizeStatus(task.Status)
	task.Priority = normalizePriority(task.Priority)
	task.Memo = strings.TrimSpace(task.Memo)
	task.Estimated = sanitizeEstimate(task.Estimated)
	task.Actual = sanitizeActual(task.Actual)
	return task, nil
}

func sanitizeEstimate(estimate domain.TaskEstimate) domain.TaskEstimate {
	return domain.TaskEstimate{
		Start:   normalizeTimeValue(estimate.Start),
		End:     normalizeTimeValue(estimate.End),
		Minutes: normalizeMinutes(estimate.Minutes),
	}
}

func sanitizeActual(actual domain.TaskActual) domain.TaskActual {
	return domain.TaskActual{
		Minutes:          normalizeMinutes(actual.Minutes),
		SuspendMinutes:   normalizeMinutes(actual.SuspendMinutes),
		SuspendStartedAt: normalizeIsoValue(actual.SuspendStartedAt),
		Logs:             normalizeLogs(actual.Logs),
	}
}

func normalizeStatus(value string) string {
	for _, status := range domain.TaskStatuses {
		if value == status {
			return value
		}
	}
	return domain.StatusTodo
}

func normalizePriority(value string) string {
	for _, priority := range domain.TaskPriorities {
		if value == priority {
			return value
		}
	}
	return domain.PriorityMedium
}

func normalizeTimeValue(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if !timePattern.MatchString(trimmed) {
		return nil
	}
	return &trimmed
}

func normalizeMinutes(value int) int {
	if value <= 0 {
		return 0
	}
	return value
}

func normalizeIsoValue(value *string) *string {
	if value == nil {
		return nil
	}
	parsed, err := parseTimestamp(*value)
	if err != nil {
		return nil
	}
	iso := parsed.UTC().Format(time.RFC3339)
	return &iso
}

// normalizeLogs drops malformed entries silently: start must parse, end
// must be nil or parse.
func normalizeLogs(logs []domain.TaskActualLog) []domain.TaskActualLog {
	out := []domain.TaskActualLog{}
	for _, log := range logs {
		if log.Start == "" {
			continue
		}
		if _, err := parseTimestamp(log.Start); err != nil {
			continue
		}
		if log.End != nil {
			if _, err := parseTimestamp(*log.End); err != nil {
				continue
			}
		}
		out = append(out, log)
	}
	return out
}

func parseTimestamp(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Parse(time.RFC3339, value)
	}
	return t, nil
}

// --- master lists and read projection ---

func sortUnique(items []string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, item := range items {
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	collate.New(language.Japanese).SortStrings(out)
	return out
}

func upsertMaster(list []string, value string) []string {
	normalized := strings.TrimSpace(value)
	if normalized == "" {
		return list
	}
	return sortUnique(append(append([]string{}, list...), normalized))
}

// buildProjectScopedMasters recomputes the per-project autocomplete maps
// from the full task list on every read; they are never stored.
func buildProjectScopedMasters(tasks []domain.Task) (map[string][]string, map[string][]string) {
	categories := map[string][]string{}
	titles := map[string][]string{}
	for _, task := range tasks {
		project := strings.TrimSpace(task.Project)
		if project == "" {
			continue
		}
		if _, ok := categories[project]; !ok {
			categories[project] = []string{}
			titles[project] = []string{}
		}
		if category := strings.TrimSpace(task.Category); category != "" {
			categories[project] = append(categories[project], category)
		}
		if title := strings.TrimSpace(task.Title); title != "" {
			titles[project] = append(titles[project], title)
		}
	}
	for project := range categories {
		categories[project] = sortUnique(categories[project])
		titles[project] = sortUnique(titles[project])
	}
	return categories, titles
}

func buildTaskListResponse(data domain.TaskCollection, date string) domain.TaskListResponse {
	projectCategories, projectTitles := buildProjectScopedMasters(data.Tasks)

	tasks := []domain.Task{}
	for _, task := range data.Tasks {
		if task.Date == date {
			tasks = append(tasks, task)
		}
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt < tasks[j].CreatedAt
	})

	return domain.TaskListResponse{
		Tasks:             tasks,
		Projects:          sortUnique(data.Projects),
		Categories:        sortUnique(data.Categories),
		ProjectCategories: projectCategories,
		ProjectTitles:     projectTitles,
	}
}
