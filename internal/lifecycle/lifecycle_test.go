package lifecycle_test

import (
	"testing"
	"time"

	"daydash/internal/domain"
	"daydash/internal/lifecycle"
)

func newTodoTask() domain.Task {
	return domain.Task{
		ID:       "task-1",
		UserID:   "guest",
		Date:     "2026-02-18",
		Project:  "dashboard",
		Title:    "wire scheduler",
		Status:   domain.StatusTodo,
		Priority: domain.PriorityMedium,
	}
}

func at(hour, minute int) time.Time {
	return time.Date(2026, 2, 18, hour, minute, 0, 0, time.UTC)
}

func openLogCount(task domain.Task) int {
	count := 0
	for _, l := range task.Actual.Logs {
		if l.End == nil {
			count++
		}
	}
	return count
}

func TestStartOpensSingleLog(t *testing.T) {
	task := lifecycle.Start(newTodoTask(), at(9, 0))
	if task.Status != domain.StatusDoing {
		t.Fatalf("status = %s; want doing", task.Status)
	}
	if len(task.Actual.Logs) != 1 || openLogCount(task) != 1 {
		t.Fatalf("expected exactly one open log, got %+v", task.Actual.Logs)
	}
	if task.Actual.Logs[0].Start != "2026-02-18T09:00:00Z" {
		t.Fatalf("log start = %s", task.Actual.Logs[0].Start)
	}
}

func TestStartIsIdempotentForOpenLog(t *testing.T) {
	task := lifecycle.Start(newTodoTask(), at(9, 0))
	task = lifecycle.Start(task, at(9, 30))
	if len(task.Actual.Logs) != 1 {
		t.Fatalf("expected one log after double start, got %d", len(task.Actual.Logs))
	}
}

func TestSuspendClosesLogAndOpensInterval(t *testing.T) {
	task := lifecycle.Start(newTodoTask(), at(9, 0))
	task = lifecycle.Suspend(task, at(10, 30))

	if task.Status != domain.StatusSuspend {
		t.Fatalf("status = %s; want suspend", task.Status)
	}
	if openLogCount(task) != 0 {
		t.Fatal("expected no open log after suspend")
	}
	if task.Actual.Minutes != 90 {
		t.Fatalf("actual minutes = %d; want 90", task.Actual.Minutes)
	}
	if task.Actual.SuspendStartedAt == nil || *task.Actual.SuspendStartedAt != "2026-02-18T10:30:00Z" {
		t.Fatalf("suspendStartedAt = %v", task.Actual.SuspendStartedAt)
	}
}

func TestResumeFoldsSuspendInterval(t *testing.T) {
	task := lifecycle.Start(newTodoTask(), at(9, 0))
	task = lifecycle.Suspend(task, at(10, 30))
	task = lifecycle.Resume(task, at(10, 45))

	if task.Status != domain.StatusDoing {
		t.Fatalf("status = %s; want doing", task.Status)
	}
	if task.Actual.SuspendStartedAt != nil {
		t.Fatal("expected suspend interval cleared on resume")
	}
	if task.Actual.SuspendMinutes != 15 {
		t.Fatalf("suspend minutes = %d; want 15", task.Actual.SuspendMinutes)
	}
	if openLogCount(task) != 1 || len(task.Actual.Logs) != 2 {
		t.Fatalf("expected a second open log, got %+v", task.Actual.Logs)
	}
}

func TestStopAfterResumeLeavesNothingOpen(t *testing.T) {
	task := lifecycle.Start(newTodoTask(), at(9, 0))
	task = lifecycle.Suspend(task, at(10, 30))
	task = lifecycle.Resume(task, at(10, 45))
	task = lifecycle.Stop(task, at(11, 45), domain.StatusDone)

	if task.Status != domain.StatusDone {
		t.Fatalf("status = %s; want done", task.Status)
	}
	if openLogCount(task) != 0 {
		t.Fatal("expected all logs closed")
	}
	if task.Actual.SuspendStartedAt != nil {
		t.Fatal("expected suspend interval cleared")
	}
	if task.Actual.Minutes != 150 {
		t.Fatalf("actual minutes = %d; want 150", task.Actual.Minutes)
	}
	if task.Actual.SuspendMinutes != 15 {
		t.Fatalf("suspend minutes = %d; want 15", task.Actual.SuspendMinutes)
	}
}

func TestStopWhileSuspendedFoldsInterval(t *testing.T) {
	task := lifecycle.Start(newTodoTask(), at(9, 0))
	task = lifecycle.Suspend(task, at(10, 0))
	task = lifecycle.Stop(task, at(10, 20), domain.StatusCarryover)

	if task.Status != domain.StatusCarryover {
		t.Fatalf("status = %s; want carryover", task.Status)
	}
	if task.Actual.Minutes != 60 {
		t.Fatalf("actual minutes = %d; want 60", task.Actual.Minutes)
	}
	if task.Actual.SuspendMinutes != 20 {
		t.Fatalf("suspend minutes = %d; want 20", task.Actual.SuspendMinutes)
	}
	if task.Actual.SuspendStartedAt != nil {
		t.Fatal("expected suspend interval cleared")
	}
}

func TestTrackingExcludesBreakWindow(t *testing.T) {
	task := lifecycle.Start(newTodoTask(), at(11, 30))
	task = lifecycle.Stop(task, at(13, 30), domain.StatusFinished)
	if task.Actual.Minutes != 60 {
		t.Fatalf("actual minutes = %d; want 60 (break excluded)", task.Actual.Minutes)
	}
}

func TestStartDoesNotResurrectTerminalTask(t *testing.T) {
	for _, status := range []string{domain.StatusDone, domain.StatusCarryover, domain.StatusFinished} {
		task := newTodoTask()
		task.Status = status
		got := lifecycle.Start(task, at(9, 0))
		if got.Status != status || len(got.Actual.Logs) != 0 {
			t.Fatalf("start on %s task: got status %s, logs %+v", status, got.Status, got.Actual.Logs)
		}
	}
}

func TestSuspendWithoutOpenLog(t *testing.T) {
	task := lifecycle.Suspend(newTodoTask(), at(9, 0))
	if task.Actual.Minutes != 0 {
		t.Fatalf("actual minutes = %d; want 0", task.Actual.Minutes)
	}
	if task.Actual.SuspendStartedAt == nil {
		t.Fatal("expected suspend interval opened")
	}
	if task.Status != domain.StatusSuspend {
		t.Fatalf("status = %s", task.Status)
	}
}

func TestSuspendKeepsExistingInterval(t *testing.T) {
	task := lifecycle.Suspend(newTodoTask(), at(9, 0))
	again := lifecycle.Suspend(task, at(9, 30))
	if *again.Actual.SuspendStartedAt != *task.Actual.SuspendStartedAt {
		t.Fatal("second suspend must not move the open interval start")
	}
}
