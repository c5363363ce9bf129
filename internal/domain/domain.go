package domain

// GuestUserID is the reserved identity key used when nobody is signed in.
const GuestUserID = "guest"

// Task statuses. todo is the entry state; done, carryover and finished are
// terminal with respect to time tracking.
const (
	StatusTodo      = "todo"
	StatusDoing     = "doing"
	StatusSuspend   = "suspend"
	StatusDone      = "done"
	StatusCarryover = "carryover"
	StatusFinished  = "finished"
)

// Task priorities, ranked urgent > high > medium > low.
const (
	PriorityUrgent = "urgent"
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// TaskStatuses lists every allowed status value.
var TaskStatuses = []string{
	StatusTodo, StatusDoing, StatusSuspend,
	StatusDone, StatusCarryover, StatusFinished,
}

// TaskPriorities lists every allowed priority label.
var TaskPriorities = []string{
	PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow,
}

// TaskActualLog is one tracked interval. End is nil while tracking is active.
type TaskActualLog struct {
	Start string  `json:"start" format:"date-time"`
	End   *string `json:"end" format:"date-time"`
}

// TaskEstimate is the planned work window for a task.
type TaskEstimate struct {
	Start   *string `json:"start"`
	End     *string `json:"end"`
	Minutes int     `json:"minutes" minimum:"0"`
}

// TaskActual accumulates tracked work time. Minutes holds closed-log work,
// SuspendMinutes holds folded suspend intervals, SuspendStartedAt marks the
// currently open suspend interval if any.
type TaskActual struct {
	Minutes          int             `json:"minutes" minimum:"0"`
	SuspendMinutes   int             `json:"suspendMinutes" minimum:"0"`
	SuspendStartedAt *string         `json:"suspendStartedAt" format:"date-time"`
	Logs             []TaskActualLog `json:"logs"`
}

// Task is one trackable work item owned by an identity.
type Task struct {
	ID        string       `json:"id"`
	UserID    string       `json:"userId"`
	Date      string       `json:"date"`
	Project   string       `json:"project"`
	Category  string       `json:"category"`
	Title     string       `json:"title"`
	Status    string       `json:"status" enum:"todo,doing,suspend,done,carryover,finished"`
	Priority  string       `json:"priority" enum:"urgent,high,medium,low"`
	Memo      string       `json:"memo"`
	Estimated TaskEstimate `json:"estimated"`
	Actual    TaskActual   `json:"actual"`
	CreatedAt string       `json:"createdAt" format:"date-time"`
	UpdatedAt string       `json:"updatedAt" format:"date-time"`
}

// TaskCreateInput carries caller-supplied fields for a new task.
type TaskCreateInput struct {
	Date      string       `json:"date"`
	Project   string       `json:"project"`
	Category  string       `json:"category"`
	Title     string       `json:"title"`
	Status    string       `json:"status,omitempty" enum:"todo,doing,suspend,done,carryover,finished"`
	Priority  string       `json:"priority" enum:"urgent,high,medium,low"`
	Memo      string       `json:"memo"`
	Estimated TaskEstimate `json:"estimated"`
	Actual    TaskActual   `json:"actual,omitempty"`
}

// TaskCollection is the durable per-identity document. Projects and
// Categories are global sorted-unique master lists independent of date.
type TaskCollection struct {
	Tasks      []Task   `json:"tasks"`
	Projects   []string `json:"projects"`
	Categories []string `json:"categories"`
}

// TaskListResponse is the read projection for one date plus the master
// lists and the per-project autocomplete maps derived from all tasks.
type TaskListResponse struct {
	Tasks             []Task              `json:"tasks"`
	Projects          []string            `json:"projects"`
	Categories        []string            `json:"categories"`
	ProjectCategories map[string][]string `json:"projectCategories"`
	ProjectTitles     map[string][]string `json:"projectTitles"`
}

// CalendarRow is one provider event shaped for display.
type CalendarRow struct {
	CalendarName string `json:"calendarName"`
	Subject      string `json:"subject"`
	DateTime     string `json:"dateTime"`
}

// CalendarUpdate is pushed to subscribers after a fetch completes.
type CalendarUpdate struct {
	Events    []CalendarRow `json:"events"`
	UpdatedAt string        `json:"updatedAt" format:"date-time"`
	Source    string        `json:"source" enum:"manual,auto"`
}

// UserProfile describes the signed-in account, if any.
type UserProfile struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	IconURL string `json:"iconUrl"`
}

// AppSettings holds per-identity dashboard preferences. Nil means unset.
type AppSettings struct {
	AutoFetchTime            *string `json:"autoFetchTime"`
	AutoFetchIntervalMinutes *int    `json:"autoFetchIntervalMinutes"`
	TaskTimeDisplayMode      string  `json:"taskTimeDisplayMode" enum:"hourMinute,decimal"`
}
