// Package scheduler implements the task registry and priority scheduler: a
// bounded worker pool that dequeues from internal/queue and tracks every
// task's lifecycle from submission to a terminal state. It is grounded on
// the teacher's semaphore-gated worker-slot pattern
// (internal/judge/service/pool_retry.go's acquireSlot/releaseSlot), widened
// from gating a single message-consumer loop into a full pool that pulls
// its own work from a priority queue instead of an external broker.
package scheduler

import (
	"context"
	"sync"
	"time"

	"evaljudge/internal/apperr"
	"evaljudge/internal/ids"
	"evaljudge/internal/queue"
)

// Status is a task's lifecycle state. Transitions are monotone:
// Pending -> Running -> (Completed | Failed).
type Status string

const (
	Pending   Status = "pending"
	Running   Status = "running"
	Completed Status = "completed"
	Failed    Status = "failed"
)

// HandlerFunc executes one task's payload and returns its result. A
// returned error puts the task into Failed with the error's message; a nil
// error with any result (including a "failure" verdict struct) is Completed.
type HandlerFunc func(ctx context.Context, data interface{}) (interface{}, error)

// Task is one unit of scheduled work, plus its lifecycle bookkeeping.
type Task struct {
	ID        string
	Type      string
	Data      interface{}
	Priority  int
	Status    Status
	Result    interface{}
	Err       string
	CreatedAt time.Time
	StartedAt time.Time
	EndedAt   time.Time
}

// Snapshot is an immutable copy of a Task safe to hand to callers outside
// the scheduler's lock.
type Snapshot = Task

// Scheduler owns the task registry, the priority queue, and the worker pool
// draining it. A single mutex protects queue + registry + activeWorkers, per
// the concurrency model this implements; handler execution itself always
// happens outside that lock.
type Scheduler struct {
	mu            sync.Mutex
	tasks         map[string]*Task
	q             *queue.Queue
	handlers      map[string]HandlerFunc
	concurrency   int
	activeWorkers int
	retention     int
	completedIDs  []string // terminal tasks in completion order, for retention eviction

	closed bool
}

// New creates a scheduler with the given worker concurrency and how many
// terminal tasks to retain before evicting the oldest.
func New(concurrency, retention int) *Scheduler {
	if concurrency < 1 {
		concurrency = 1
	}
	if retention < 1 {
		retention = 1000
	}
	return &Scheduler{
		tasks:       make(map[string]*Task),
		q:           queue.New(),
		handlers:    make(map[string]HandlerFunc),
		concurrency: concurrency,
		retention:   retention,
	}
}

// RegisterHandler binds a task type to the function that executes it.
// Unregistered types are discovered at dispatch time, not at AddTask time,
// so an unrecognized type surfaces as a failed task, not a rejected
// submission — the handler-vs-client-error split CORE SPEC draws.
func (s *Scheduler) RegisterHandler(taskType string, fn HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[taskType] = fn
}

// SetConcurrency changes the worker pool size, waking the dispatcher if it
// grew.
func (s *Scheduler) SetConcurrency(n int) {
	if n < 1 {
		n = 1
	}
	s.mu.Lock()
	s.concurrency = n
	s.mu.Unlock()
	s.dispatch()
}

// AddTask enqueues a new task and returns its handle immediately; it never
// fails due to an unknown type or busy queue, matching the "always accepted,
// discovered at run time" contract.
func (s *Scheduler) AddTask(taskType string, data interface{}, priority int) string {
	id := ids.New()
	now := time.Now()
	task := &Task{
		ID:        id,
		Type:      taskType,
		Data:      data,
		Priority:  priority,
		Status:    Pending,
		CreatedAt: now,
	}

	s.mu.Lock()
	s.tasks[id] = task
	s.q.Push(id, priority, task)
	s.mu.Unlock()

	s.dispatch()
	return id
}

// GetTask returns an immutable snapshot of a task's current state.
func (s *Scheduler) GetTask(id string) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return Snapshot{}, false
	}
	return *t, true
}

// StatusSummary summarizes the scheduler for GET /status.
type StatusSummary struct {
	QueueSize     int
	ActiveWorkers int
	Concurrency   int
	TotalTasks    int
}

func (s *Scheduler) Status() StatusSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StatusSummary{
		QueueSize:     s.q.Len(),
		ActiveWorkers: s.activeWorkers,
		Concurrency:   s.concurrency,
		TotalTasks:    len(s.tasks),
	}
}

// Stop marks the scheduler closed; tasks already running finish normally,
// but no further tasks are dispatched from the queue.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// dispatch starts as many queued tasks as available worker slots allow. It
// is called after every state change that could free a slot or add work,
// and loops internally so a single call drains everything currently
// dispatchable.
func (s *Scheduler) dispatch() {
	for {
		s.mu.Lock()
		if s.closed || s.activeWorkers >= s.concurrency {
			s.mu.Unlock()
			return
		}
		item := s.q.Pop()
		if item == nil {
			s.mu.Unlock()
			return
		}
		task := item.Payload.(*Task)
		task.Status = Running
		task.StartedAt = time.Now()
		s.activeWorkers++
		handler, known := s.handlers[task.Type]
		s.mu.Unlock()

		go s.runWorker(task, handler, known)
	}
}

func (s *Scheduler) runWorker(task *Task, handler HandlerFunc, known bool) {
	var result interface{}
	var err error

	if !known {
		err = apperr.New(apperr.UnknownTaskType).WithDetail("type", task.Type)
	} else {
		ctx := context.Background()
		result, err = handler(ctx, task.Data)
	}

	s.mu.Lock()
	task.EndedAt = time.Now()
	task.Result = result
	if err != nil {
		task.Status = Failed
		task.Err = err.Error()
	} else {
		task.Status = Completed
	}
	s.activeWorkers--
	s.completedIDs = append(s.completedIDs, task.ID)
	s.evictOverRetentionLocked()
	s.mu.Unlock()

	s.dispatch()
}

func (s *Scheduler) evictOverRetentionLocked() {
	for len(s.completedIDs) > s.retention {
		oldest := s.completedIDs[0]
		s.completedIDs = s.completedIDs[1:]
		delete(s.tasks, oldest)
	}
}
