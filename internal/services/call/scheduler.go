package call

import (
	"sort"
	"sync"
	"time"
)

// Scheduler defers work. The production implementation uses real timers; the
// manual implementation lets tests advance virtual time instead of sleeping.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func())
}

// TimerScheduler schedules on real wall-clock timers.
type TimerScheduler struct{}

// NewTimerScheduler creates the production scheduler.
func NewTimerScheduler() TimerScheduler {
	return TimerScheduler{}
}

func (TimerScheduler) AfterFunc(d time.Duration, fn func()) {
	time.AfterFunc(d, fn)
}

// ManualScheduler queues deferred work and runs it when Advance moves its
// virtual clock past the due time.
type ManualScheduler struct {
	mu    sync.Mutex
	now   time.Duration
	tasks []manualTask
}

type manualTask struct {
	due time.Duration
	fn  func()
}

// NewManualScheduler creates a scheduler with a virtual clock at zero.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

func (m *ManualScheduler) AfterFunc(d time.Duration, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, manualTask{due: m.now + d, fn: fn})
}

// Advance moves the virtual clock forward and synchronously runs every task
// that has come due, in due order.
func (m *ManualScheduler) Advance(d time.Duration) {
	m.mu.Lock()
	m.now += d

	var due []manualTask
	var pending []manualTask
	for _, task := range m.tasks {
		if task.due <= m.now {
			due = append(due, task)
		} else {
			pending = append(pending, task)
		}
	}
	m.tasks = pending
	m.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].due < due[j].due })
	for _, task := range due {
		task.fn()
	}
}

// Pending reports how many tasks are still queued.
func (m *ManualScheduler) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}
