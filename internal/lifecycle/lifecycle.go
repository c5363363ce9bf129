// Package lifecycle implements the pure task time-tracking state machine.
// Every transition takes a task value and the current instant and returns a
// new task value; persistence is the caller's concern.
package lifecycle

import (
	"time"

	"daydash/internal/domain"
	"daydash/internal/timecalc"
)

// Start begins (or resumes) tracking: any open suspend interval is folded
// into suspendMinutes, a log is opened unless one already is, and the task
// moves to doing. Terminal statuses are left untouched.
func Start(task domain.Task, now time.Time) domain.Task {
	if isTerminal(task.Status) {
		return task
	}

	nowIso := formatInstant(now)
	task.Actual.SuspendMinutes = foldedSuspendMinutes(task.Actual, nowIso)
	task.Actual.SuspendStartedAt = nil
	task.Status = domain.StatusDoing

	if latestOpenLogIndex(task.Actual.Logs) < 0 {
		logs := cloneLogs(task.Actual.Logs)
		logs = append(logs, domain.TaskActualLog{Start: nowIso, End: nil})
		task.Actual.Logs = logs
	}
	return task
}

// Suspend closes the most recent open log, credits its elapsed minutes to
// actual minutes, and opens a suspend interval unless one is already open.
func Suspend(task domain.Task, now time.Time) domain.Task {
	nowIso := formatInstant(now)
	task = closeLatestOpenLog(task, nowIso)

	task.Actual.SuspendMinutes = max(0, task.Actual.SuspendMinutes)
	if task.Actual.SuspendStartedAt == nil {
		task.Actual.SuspendStartedAt = &nowIso
	}
	task.Status = domain.StatusSuspend
	return task
}

// Resume reuses the start path: the suspend interval is folded and tracking
// reopens.
func Resume(task domain.Task, now time.Time) domain.Task {
	return Start(task, now)
}

// Stop closes the most recent open log and folds any open suspend interval,
// then moves the task to nextStatus (done, finished or carryover).
func Stop(task domain.Task, now time.Time, nextStatus string) domain.Task {
	nowIso := formatInstant(now)
	task = closeLatestOpenLog(task, nowIso)

	task.Actual.SuspendMinutes = foldedSuspendMinutes(task.Actual, nowIso)
	task.Actual.SuspendStartedAt = nil
	task.Status = nextStatus
	return task
}

func isTerminal(status string) bool {
	switch status {
	case domain.StatusDone, domain.StatusCarryover, domain.StatusFinished:
		return true
	}
	return false
}

func formatInstant(now time.Time) string {
	return now.UTC().Format(time.RFC3339)
}

// foldedSuspendMinutes adds the elapsed minutes of an open suspend interval
// onto the accumulated total.
func foldedSuspendMinutes(actual domain.TaskActual, nowIso string) int {
	base := max(0, actual.SuspendMinutes)
	if actual.SuspendStartedAt == nil {
		return base
	}
	return base + timecalc.CalculateElapsedMinutes(*actual.SuspendStartedAt, nowIso)
}

// closeLatestOpenLog ends the last open log entry at nowIso and credits its
// break-aware elapsed minutes; a task without an open log is unchanged.
func closeLatestOpenLog(task domain.Task, nowIso string) domain.Task {
	index := latestOpenLogIndex(task.Actual.Logs)
	if index < 0 {
		return task
	}

	logs := cloneLogs(task.Actual.Logs)
	end := nowIso
	logs[index].End = &end
	task.Actual.Logs = logs
	task.Actual.Minutes += timecalc.CalculateElapsedMinutes(logs[index].Start, nowIso)
	return task
}

func latestOpenLogIndex(logs []domain.TaskActualLog) int {
	for i := len(logs) - 1; i >= 0; i-- {
		if logs[i].End == nil {
			return i
		}
	}
	return -1
}

func cloneLogs(logs []domain.TaskActualLog) []domain.TaskActualLog {
	out := make([]domain.TaskActualLog, len(logs))
	copy(out, logs)
	return out
}
