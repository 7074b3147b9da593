package taskqueue

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asd_commerce/internal/domain"
)

type recorder struct {
	tasks []domain.Task
	err   error
}

func (r *recorder) CreateTask(_ context.Context, task domain.Task) error {
	if r.err != nil {
		return r.err
	}
	r.tasks = append(r.tasks, task)
	return nil
}

func TestNextOrdersByPriority(t *testing.T) {
	ctx := context.Background()
	m := New(nil)
	_, err := m.AddTask(ctx, 4, domain.AgentTypeSales, "Lead Generation: Generate leads for iPhone 12")
	require.NoError(t, err)
	_, err = m.AddTask(ctx, 1, domain.AgentTypeProduct, "Product Research: Research top-selling products in electronics")
	require.NoError(t, err)
	_, err = m.AddTask(ctx, 3, domain.AgentTypeMarket, "Market Research: Research market trends for smartphones")
	require.NoError(t, err)
	_, err = m.AddTask(ctx, 2, domain.AgentTypeCustomer, "Sentiment Analysis: Analyze customer reviews for iPhone 12")
	require.NoError(t, err)

	var got []domain.AgentType
	for {
		task, ok := m.Next()
		if !ok {
			break
		}
		got = append(got, task.AgentType)
	}
	assert.Equal(t, []domain.AgentType{
		domain.AgentTypeProduct,
		domain.AgentTypeCustomer,
		domain.AgentTypeMarket,
		domain.AgentTypeSales,
	}, got)
}

func TestEqualPrioritiesAreFIFO(t *testing.T) {
	ctx := context.Background()
	m := New(nil)
	descriptions := []string{"first", "second", "third", "fourth", "fifth"}
	for _, d := range descriptions {
		_, err := m.AddTask(ctx, 1, domain.AgentTypeSales, d)
		require.NoError(t, err)
	}
	for _, want := range descriptions {
		task, ok := m.Next()
		require.True(t, ok)
		assert.Equal(t, want, task.Description)
	}
}

func TestNextOnEmptyQueue(t *testing.T) {
	m := New(nil)
	task, ok := m.Next()
	assert.False(t, ok)
	assert.Empty(t, task.ID)
	assert.Equal(t, 0, m.Len())
}

func TestAddTaskValidation(t *testing.T) {
	m := New(nil)
	_, err := m.AddTask(context.Background(), 1, "", "Deal Closing")
	assert.ErrorIs(t, err, ErrInvalidTask)
	_, err = m.AddTask(context.Background(), 1, domain.AgentTypeSales, "  ")
	assert.ErrorIs(t, err, ErrInvalidTask)
}

func TestRecorderFailureKeepsQueueEmpty(t *testing.T) {
	r := &recorder{err: errors.New("database is locked")}
	m := New(r)
	_, err := m.AddTask(context.Background(), 1, domain.AgentTypeSales, "Lead Generation: Generate leads for iPhone 12")
	require.Error(t, err)
	assert.Equal(t, 0, m.Len())
}

func TestRecorderSeesQueuedTask(t *testing.T) {
	r := &recorder{}
	m := New(r)
	task, err := m.AddTask(context.Background(), 2, domain.AgentTypeMarket, "Trend Analysis")
	require.NoError(t, err)
	require.Len(t, r.tasks, 1)
	assert.Equal(t, task.ID, r.tasks[0].ID)
	assert.Equal(t, domain.TaskStatusQueued, r.tasks[0].Status)
}

func TestPendingDoesNotConsume(t *testing.T) {
	ctx := context.Background()
	m := New(nil)
	_, _ = m.AddTask(ctx, 2, domain.AgentTypeMarket, "b")
	_, _ = m.AddTask(ctx, 1, domain.AgentTypeMarket, "a")

	pending := m.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, "a", pending[0].Description)
	assert.Equal(t, 2, m.Len())
}

func TestRestoreContinuesSequence(t *testing.T) {
	m := New(nil)
	m.Restore([]domain.Task{
		{ID: "t1", Priority: 1, AgentType: domain.AgentTypeSales, Description: "restored", Seq: 7},
	})
	added, err := m.AddTask(context.Background(), 1, domain.AgentTypeSales, "new")
	require.NoError(t, err)
	assert.Equal(t, int64(8), added.Seq)

	first, ok := m.Next()
	require.True(t, ok)
	assert.Equal(t, "restored", first.Description)
}

func TestConcurrentAdd(t *testing.T) {
	m := New(nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			_, _ = m.AddTask(context.Background(), p%5, domain.AgentTypeMarket, "Trend Analysis")
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, m.Len())

	last := -1
	for {
		task, ok := m.Next()
		if !ok {
			break
		}
		assert.GreaterOrEqual(t, task.Priority, last)
		last = task.Priority
	}
}
