package taskqueue

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"asd_commerce/internal/domain"
)

var ErrInvalidTask = errors.New("invalid task")

// Recorder persists queued tasks so pending work survives a restart.
type Recorder interface {
	CreateTask(ctx context.Context, task domain.Task) error
}

// taskHeap orders by priority (lower first), then by insertion sequence.
type taskHeap []domain.Task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority
	}
	return h[i].Seq < h[j].Seq
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) {
	*h = append(*h, x.(domain.Task))
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

type Manager struct {
	mu       sync.Mutex
	tasks    taskHeap
	seq      int64
	recorder Recorder
}

func New(recorder Recorder) *Manager {
	m := &Manager{recorder: recorder}
	heap.Init(&m.tasks)
	return m
}

func (m *Manager) AddTask(ctx context.Context, priority int, agentType domain.AgentType, description string) (domain.Task, error) {
	if strings.TrimSpace(string(agentType)) == "" {
		return domain.Task{}, fmt.Errorf("%w: agent type is empty", ErrInvalidTask)
	}
	if strings.TrimSpace(description) == "" {
		return domain.Task{}, fmt.Errorf("%w: description is empty", ErrInvalidTask)
	}

	now := time.Now().UTC()
	m.mu.Lock()
	m.seq++
	task := domain.Task{
		ID:          uuid.NewString(),
		Priority:    priority,
		AgentType:   agentType,
		Description: description,
		Seq:         m.seq,
		Status:      domain.TaskStatusQueued,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.mu.Unlock()

	if m.recorder != nil {
		if err := m.recorder.CreateTask(ctx, task); err != nil {
			return domain.Task{}, fmt.Errorf("record task: %w", err)
		}
	}

	m.mu.Lock()
	heap.Push(&m.tasks, task)
	m.mu.Unlock()
	return task, nil
}

// Next pops the most urgent task. The boolean is false when the queue is empty.
func (m *Manager) Next() (domain.Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tasks.Len() == 0 {
		return domain.Task{}, false
	}
	return heap.Pop(&m.tasks).(domain.Task), true
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tasks.Len()
}

// Pending returns the queued tasks in dispatch order without removing them.
func (m *Manager) Pending() []domain.Task {
	m.mu.Lock()
	cp := make(taskHeap, len(m.tasks))
	copy(cp, m.tasks)
	m.mu.Unlock()

	out := make([]domain.Task, 0, len(cp))
	for cp.Len() > 0 {
		out = append(out, heap.Pop(&cp).(domain.Task))
	}
	return out
}

// Restore re-queues previously recorded tasks without recording them again.
func (m *Manager) Restore(tasks []domain.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range tasks {
		if t.Seq > m.seq {
			m.seq = t.Seq
		}
		heap.Push(&m.tasks, t)
	}
}
