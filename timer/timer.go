// timer/timer.go
package timer

import (
	"sync"
	"time"

	"github.com/coder/quartz"
)

type TimerTask struct {
	Id       int64
	Key      string
	Execute  time.Time
	Callback func()
	timer    *quartz.Timer
}

// TimerManager runs one-shot callbacks on a quartz clock. Tasks may carry a
// key; adding a task under a key that already has a pending task stops the
// older one first. Stopping is best-effort: a task that already started
// still runs to completion.
type TimerManager struct {
	clock  quartz.Clock
	mutex  sync.Mutex
	nextId int64
	tasks  map[int64]*TimerTask
	byKey  map[string]int64
}

func NewTimerManager(clock quartz.Clock) *TimerManager {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &TimerManager{
		clock:  clock,
		nextId: 1,
		tasks:  make(map[int64]*TimerTask),
		byKey:  make(map[string]int64),
	}
}

// AddTimer schedules callback after delay and returns the task id.
func (m *TimerManager) AddTimer(key string, delay time.Duration, callback func()) int64 {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if key != "" {
		if prev, ok := m.byKey[key]; ok {
			m.removeLocked(prev)
		}
	}

	task := &TimerTask{
		Id:       m.nextId,
		Key:      key,
		Execute:  m.clock.Now().Add(delay),
		Callback: callback,
	}
	m.nextId++

	id := task.Id
	task.timer = m.clock.AfterFunc(delay, func() {
		m.mutex.Lock()
		_, live := m.tasks[id]
		m.forgetLocked(id)
		m.mutex.Unlock()
		if live {
			callback()
		}
	}, "timer", key)

	m.tasks[id] = task
	if key != "" {
		m.byKey[key] = id
	}
	return id
}

// Schedule lets the manager serve as a round deadline scheduler.
func (m *TimerManager) Schedule(key string, d time.Duration, fn func()) {
	m.AddTimer(key, d, fn)
}

func (m *TimerManager) RemoveTimer(timerId int64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.removeLocked(timerId)
}

// Pending returns the number of tasks that have not fired or been removed.
func (m *TimerManager) Pending() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.tasks)
}

// Stop cancels every pending task.
func (m *TimerManager) Stop() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for id := range m.tasks {
		m.removeLocked(id)
	}
}

func (m *TimerManager) removeLocked(id int64) {
	task, ok := m.tasks[id]
	if !ok {
		return
	}
	task.timer.Stop()
	m.forgetLocked(id)
}

func (m *TimerManager) forgetLocked(id int64) {
	task, ok := m.tasks[id]
	if !ok {
		return
	}
	delete(m.tasks, id)
	if task.Key != "" && m.byKey[task.Key] == id {
		delete(m.byKey, task.Key)
	}
}
