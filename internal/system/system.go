// Package system wires the knowledge graph, task queue, decision engine and
// agents together. It drains the queue with a single consumer and fans
// collaboration prompts out into agent tasks.
package system

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"asd_commerce/internal/agent"
	"asd_commerce/internal/decision"
	"asd_commerce/internal/domain"
	"asd_commerce/internal/graph"
	"asd_commerce/internal/metrics"
	"asd_commerce/internal/source"
	"asd_commerce/internal/taskqueue"
)

const systemActor = "asd_system"

var ErrUnknownAgent = errors.New("no agent registered for task type")

type Store interface {
	CreateTask(ctx context.Context, task domain.Task) error
	UpdateTaskStatus(ctx context.Context, taskID string, status domain.TaskStatus, result, lastError string) error
	ListPendingTasks(ctx context.Context) ([]domain.Task, error)
	UpsertNode(ctx context.Context, node domain.Node) error
	UpsertEdge(ctx context.Context, edge domain.Edge) error
	LoadGraph(ctx context.Context) (domain.GraphSnapshot, error)
	LogDecision(ctx context.Context, entry domain.DecisionLog) error
	RecordSale(ctx context.Context, sale domain.SaleRecord) error
}

type Bus interface {
	Publish(evt domain.Event) error
}

// Sources bundles the data sources the agents read from. Static is used
// for any that are nil.
type Sources struct {
	Catalog source.Catalog
	CRM     source.CRM
	Market  source.MarketData
	Sales   source.SalesDesk
}

type Config struct {
	DrainInterval         time.Duration
	DefaultInventoryLevel int
	Decision              decision.Config
}

func (c Config) withDefaults() Config {
	if c.DrainInterval <= 0 {
		c.DrainInterval = time.Second
	}
	if c.DefaultInventoryLevel <= 0 {
		c.DefaultInventoryLevel = 50
	}
	return c
}

type Options struct {
	Store   Store
	Bus     Bus
	Policy  agent.Delegation
	Metrics *metrics.Recorder
	Sources Sources
	Config  Config
	Logger  zerolog.Logger
}

type System struct {
	store   Store
	bus     Bus
	graph   *graph.KnowledgeGraph
	queue   *meteredQueue
	engine  *decision.Engine
	agents  map[domain.AgentType]agent.Agent
	metrics *metrics.Recorder
	cfg     Config
	logger  zerolog.Logger

	runMu sync.Mutex
}

func New(opts Options) (*System, error) {
	if opts.Store == nil {
		return nil, errors.New("system requires a store")
	}
	cfg := opts.Config.withDefaults()
	rec := opts.Metrics
	if rec == nil {
		rec = metrics.Noop()
	}
	static := source.NewStatic(source.Credentials{})
	src := opts.Sources
	if src.Catalog == nil {
		src.Catalog = static
	}
	if src.CRM == nil {
		src.CRM = static
	}
	if src.Market == nil {
		src.Market = static
	}
	if src.Sales == nil {
		src.Sales = static
	}

	s := &System{
		store:   opts.Store,
		bus:     opts.Bus,
		graph:   graph.New(opts.Store),
		queue:   &meteredQueue{Manager: taskqueue.New(opts.Store), metrics: rec},
		engine:  decision.New(cfg.Decision, opts.Logger),
		metrics: rec,
		cfg:     cfg,
		logger:  opts.Logger.With().Str("component", "system").Logger(),
	}
	deps := agent.Deps{
		Graph:     s.graph,
		Queue:     s.queue,
		Sentiment: s.engine,
		Store:     opts.Store,
		Policy:    opts.Policy,
		Catalog:   src.Catalog,
		CRM:       src.CRM,
		Market:    src.Market,
		Sales:     src.Sales,
		Logger:    opts.Logger,
	}
	if opts.Bus != nil {
		deps.Events = opts.Bus
	}
	s.agents = agent.NewAll(deps)
	return s, nil
}

func (s *System) Graph() *graph.KnowledgeGraph { return s.graph }

func (s *System) Engine() *decision.Engine { return s.engine }

func (s *System) Pending() []domain.Task { return s.queue.Pending() }

func (s *System) AddTask(ctx context.Context, priority int, agentType domain.AgentType, description string) (domain.Task, error) {
	return s.queue.AddTask(ctx, priority, agentType, description)
}

// Restore reloads the persisted graph and re-queues tasks that were never
// drained.
func (s *System) Restore(ctx context.Context) (int, error) {
	if err := s.graph.Load(ctx, s.store); err != nil {
		return 0, err
	}
	pending, err := s.store.ListPendingTasks(ctx)
	if err != nil {
		return 0, fmt.Errorf("list pending tasks: %w", err)
	}
	s.queue.Restore(pending)
	s.logger.Info().Int("nodes", s.graph.Len()).Int("tasks", len(pending)).Msg("state restored")
	return len(pending), nil
}

// Run drains the queue, handing each task to the agent of its type, and
// returns the number of tasks processed. It stops early only when ctx is
// done; a failing task is recorded and the drain continues.
func (s *System) Run(ctx context.Context) (int, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	processed := 0
	for {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		task, ok := s.queue.Next()
		if !ok {
			return processed, nil
		}
		if err := s.execute(ctx, task); err != nil {
			return processed, err
		}
		processed++
	}
}

// DrainLoop runs Run every drain interval until ctx is done.
func (s *System) DrainLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.DrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if s.queue.Len() == 0 {
				continue
			}
			if n, err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error().Err(err).Int("processed", n).Msg("drain loop error")
			}
		}
	}
}

// execute only returns an error when ctx was cancelled mid-task; the task is
// then put back so a later drain or restart picks it up.
func (s *System) execute(ctx context.Context, task domain.Task) error {
	started := time.Now()
	log := s.logger.With().Str("task", task.ID).Str("agent", string(task.AgentType)).Logger()

	var (
		result string
		err    error
	)
	a, ok := s.agents[task.AgentType]
	if !ok {
		err = fmt.Errorf("%w: %q", ErrUnknownAgent, task.AgentType)
	} else {
		result, err = a.Execute(agent.WithTaskID(ctx, task.ID), task.Description)
	}
	if err != nil && ctx.Err() != nil {
		s.queue.Restore([]domain.Task{task})
		return ctx.Err()
	}

	status := domain.TaskStatusDone
	topic := domain.EventTaskCompleted
	payload := domain.TaskEventPayload{TaskID: task.ID, AgentType: task.AgentType, Result: result}
	if err != nil {
		status = domain.TaskStatusFailed
		topic = domain.EventTaskFailed
		payload.Error = err.Error()
		log.Error().Err(err).Str("description", task.Description).Msg("Task failed")
		_ = s.store.LogDecision(ctx, domain.DecisionLog{
			TaskID:  task.ID,
			Actor:   systemActor,
			Action:  "task_failed",
			Reason:  err.Error(),
			Payload: mustJSON(task),
		})
	} else {
		log.Info().Msgf("Task completed: %s", result)
	}

	lastError := payload.Error
	if updErr := s.store.UpdateTaskStatus(ctx, task.ID, status, result, lastError); updErr != nil {
		log.Warn().Err(updErr).Msg("persist task status")
	}
	s.metrics.TaskFinished(ctx, string(task.AgentType), string(status), time.Since(started))
	s.publish(topic, payload)
	return nil
}

func (s *System) publish(topic string, payload any) {
	if s.bus == nil {
		return
	}
	err := s.bus.Publish(domain.Event{
		ID:        uuid.NewString(),
		Topic:     topic,
		Payload:   mustJSON(payload),
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		s.logger.Debug().Err(err).Str("topic", topic).Msg("event not delivered")
	}
}

// meteredQueue counts every task added, including ones agents delegate.
type meteredQueue struct {
	*taskqueue.Manager
	metrics *metrics.Recorder
}

func (q *meteredQueue) AddTask(ctx context.Context, priority int, agentType domain.AgentType, description string) (domain.Task, error) {
	task, err := q.Manager.AddTask(ctx, priority, agentType, description)
	if err != nil {
		return domain.Task{}, err
	}
	q.metrics.TaskQueued(ctx, string(agentType))
	return task, nil
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
