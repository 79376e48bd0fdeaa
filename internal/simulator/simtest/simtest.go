// Package simtest provides deterministic time and randomness for simulator tests.
package simtest

import (
	"sort"
	"sync"
	"time"

	"github.com/zhouzirui/pulse-hr/backend/internal/simulator"
)

// ManualScheduler fires callbacks only when Advance moves its clock past their deadline.
// Callbacks run synchronously on the goroutine calling Advance.
type ManualScheduler struct {
	mu    sync.Mutex
	now   time.Duration
	seq   int
	tasks []*task
}

type task struct {
	owner *ManualScheduler
	at    time.Duration
	seq   int
	fn    func()
	done  bool
}

// Stop implements simulator.Timer.
func (t *task) Stop() bool {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

// NewManualScheduler returns a scheduler at time zero.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// AfterFunc implements simulator.Scheduler.
func (m *ManualScheduler) AfterFunc(d time.Duration, f func()) simulator.Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &task{owner: m, at: m.now + d, seq: m.seq, fn: f}
	m.tasks = append(m.tasks, t)
	return t
}

// Advance moves the clock forward by d, firing due callbacks in deadline order.
// Callbacks scheduled while advancing fire too if they fall due. It returns the
// number of callbacks run.
func (m *ManualScheduler) Advance(d time.Duration) int {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	fired := 0
	for {
		m.mu.Lock()
		next := m.nextDueLocked(target)
		if next == nil {
			m.now = target
			m.compactLocked()
			m.mu.Unlock()
			return fired
		}
		next.done = true
		m.now = next.at
		m.mu.Unlock()

		next.fn()
		fired++
	}
}

// Pending counts scheduled callbacks that have neither fired nor been stopped.
func (m *ManualScheduler) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tasks {
		if !t.done {
			n++
		}
	}
	return n
}

func (m *ManualScheduler) nextDueLocked(target time.Duration) *task {
	var due []*task
	for _, t := range m.tasks {
		if !t.done && t.at <= target {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].at == due[j].at {
			return due[i].seq < due[j].seq
		}
		return due[i].at < due[j].at
	})
	return due[0]
}

func (m *ManualScheduler) compactLocked() {
	live := m.tasks[:0]
	for _, t := range m.tasks {
		if !t.done {
			live = append(live, t)
		}
	}
	m.tasks = live
}

// ScriptedRand replays values in order, reducing each modulo n. Once exhausted it
// keeps returning its last value.
type ScriptedRand struct {
	mu     sync.Mutex
	values []int
	pos    int
}

// NewScriptedRand returns a Rand replaying values.
func NewScriptedRand(values ...int) *ScriptedRand {
	return &ScriptedRand{values: values}
}

// Intn implements simulator.Rand.
func (r *ScriptedRand) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.values) == 0 {
		return 0
	}
	idx := r.pos
	if idx >= len(r.values) {
		idx = len(r.values) - 1
	} else {
		r.pos++
	}
	v := r.values[idx] % n
	if v < 0 {
		v += n
	}
	return v
}

// Delta encodes a score step for a walk bounded by maxDelta, for use with ScriptedRand.
func Delta(step, maxDelta int) int {
	return step + maxDelta
}
