// Package agent implements the four role agents. Each one picks a behavior
// by looking for a known phrase in the task description, pulls the subject
// out of the surrounding text, and writes what it learns into the graph.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"asd_commerce/internal/decision"
	"asd_commerce/internal/domain"
	"asd_commerce/internal/source"
)

var (
	ErrUnsupportedTask  = errors.New("task not supported by agent")
	ErrMalformedTask    = errors.New("task description has no subject")
	ErrDelegationDenied = errors.New("delegation denied")
)

type Agent interface {
	Type() domain.AgentType
	Execute(ctx context.Context, description string) (string, error)
}

type Graph interface {
	AddNode(ctx context.Context, nodeType domain.NodeType, id string, attrs domain.Attributes) error
	AddEdge(ctx context.Context, from, to, relationship string) error
	NodeAttributes(id string) (domain.Attributes, error)
}

type Queue interface {
	AddTask(ctx context.Context, priority int, agentType domain.AgentType, description string) (domain.Task, error)
}

type SentimentAnalyzer interface {
	AnalyzeSentiment(text string) decision.SentimentScores
}

type Store interface {
	LogDecision(ctx context.Context, entry domain.DecisionLog) error
	RecordSale(ctx context.Context, sale domain.SaleRecord) error
}

type Delegation interface {
	CanDelegate(ctx context.Context, from, to domain.AgentType) (bool, string, error)
}

type Publisher interface {
	Publish(evt domain.Event) error
}

// Deps is everything an agent may touch. Store, Policy and Events are
// optional; a nil Policy allows every delegation.
type Deps struct {
	Graph     Graph
	Queue     Queue
	Sentiment SentimentAnalyzer
	Store     Store
	Policy    Delegation
	Events    Publisher
	Catalog   source.Catalog
	CRM       source.CRM
	Market    source.MarketData
	Sales     source.SalesDesk
	Logger    zerolog.Logger
}

// NewAll builds one agent per type, keyed for dispatch.
func NewAll(deps Deps) map[domain.AgentType]Agent {
	return map[domain.AgentType]Agent{
		domain.AgentTypeProduct:  NewProduct(deps),
		domain.AgentTypeCustomer: NewCustomer(deps),
		domain.AgentTypeMarket:   NewMarket(deps),
		domain.AgentTypeSales:    NewSales(deps),
	}
}

type taskIDKey struct{}

// WithTaskID tags ctx with the id of the task being executed so decisions
// the agent logs can be traced back to it.
func WithTaskID(ctx context.Context, taskID string) context.Context {
	return context.WithValue(ctx, taskIDKey{}, taskID)
}

func TaskIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(taskIDKey{}).(string)
	return id
}

type base struct {
	typ domain.AgentType
	Deps
	logger zerolog.Logger
}

func newBase(typ domain.AgentType, deps Deps) base {
	return base{
		typ:    typ,
		Deps:   deps,
		logger: deps.Logger.With().Str("agent", string(typ)).Logger(),
	}
}

func (b *base) Type() domain.AgentType {
	return b.typ
}

func (b *base) unsupported(description string) error {
	b.logger.Warn().Str("description", description).Msg("no behavior matches task")
	return fmt.Errorf("%w: %s agent cannot handle %q", ErrUnsupportedTask, b.typ, TrimText(description, 120))
}

// delegate hands a follow-up task to another agent if the policy allows it.
func (b *base) delegate(ctx context.Context, to domain.AgentType, priority int, description string) error {
	if err := b.mayDelegate(ctx, to, description); err != nil {
		return err
	}
	return b.handOff(ctx, to, priority, description)
}

// mayDelegate consults the policy without enqueuing anything, so callers can
// check before they change state.
func (b *base) mayDelegate(ctx context.Context, to domain.AgentType, description string) error {
	if b.Policy == nil {
		return nil
	}
	allowed, reason, err := b.Policy.CanDelegate(ctx, b.typ, to)
	if err != nil {
		return fmt.Errorf("check delegation: %w", err)
	}
	if !allowed {
		b.logAction(ctx, "delegation_denied", reason, map[string]any{
			"to":          to,
			"description": description,
		})
		return fmt.Errorf("%w: %s", ErrDelegationDenied, reason)
	}
	return nil
}

func (b *base) handOff(ctx context.Context, to domain.AgentType, priority int, description string) error {
	task, err := b.Queue.AddTask(ctx, priority, to, description)
	if err != nil {
		return fmt.Errorf("enqueue follow-up for %s: %w", to, err)
	}
	b.logAction(ctx, "task_delegated", fmt.Sprintf("%s handed work to %s", b.typ, to), map[string]any{
		"task_id":  task.ID,
		"priority": priority,
		"to":       to,
	})
	return nil
}

func (b *base) publish(topic string, payload any) {
	if b.Events == nil {
		return
	}
	err := b.Events.Publish(domain.Event{
		ID:        uuid.NewString(),
		Topic:     topic,
		Payload:   mustJSON(payload),
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		b.logger.Debug().Err(err).Str("topic", topic).Msg("event not delivered")
	}
}

func (b *base) logAction(ctx context.Context, action, reason string, payload any) {
	if b.Store == nil || action == "" {
		return
	}
	raw := []byte("{}")
	if payload != nil {
		raw = mustJSON(payload)
	}
	_ = b.Store.LogDecision(ctx, domain.DecisionLog{
		TaskID:  TaskIDFrom(ctx),
		Actor:   strings.ToLower(string(b.typ)) + "_agent",
		Action:  action,
		Reason:  reason,
		Payload: raw,
	})
}

// Between returns the text following the first sep, cut at the next sep.
func Between(text, sep string) (string, error) {
	_, rest, ok := strings.Cut(text, sep)
	if !ok {
		return "", fmt.Errorf("%w: expected %q in %q", ErrMalformedTask, sep, TrimText(text, 120))
	}
	s, _, _ := strings.Cut(rest, sep)
	return s, nil
}

// Subject is Between(text, open) cut before the first end marker.
func Subject(text, open, end string) (string, error) {
	s, err := Between(text, open)
	if err != nil {
		return "", err
	}
	s, _, _ = strings.Cut(s, end)
	return s, nil
}

func mustJSON(v any) []byte {
	raw, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return raw
}

// TrimText shortens s to at most limit runes for log and error messages.
func TrimText(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	cut := 0
	for i := range s {
		if limit == 0 {
			cut = i
			break
		}
		limit--
	}
	return s[:cut] + "..."
}
