package system

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asd_commerce/internal/decision"
	"asd_commerce/internal/domain"
	"asd_commerce/internal/graph"
	"asd_commerce/internal/messaging/inproc"
	"asd_commerce/internal/policy"
	sqlitestore "asd_commerce/internal/store/sqlite"
)

type systemHarness struct {
	sys    *System
	store  *sqlitestore.Store
	bus    *inproc.Bus
	events <-chan domain.Event
}

func openStore(t *testing.T, path string) *sqlitestore.Store {
	t.Helper()
	store, err := sqlitestore.Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate store: %v", err)
	}
	return store
}

func newSystemHarness(t *testing.T) *systemHarness {
	t.Helper()
	return newSystemHarnessAt(t, filepath.Join(t.TempDir(), "asd.db"))
}

func newSystemHarnessAt(t *testing.T, path string) *systemHarness {
	t.Helper()
	return newSystemHarnessWith(t, path, Config{})
}

func newSystemHarnessWith(t *testing.T, path string, cfg Config) *systemHarness {
	t.Helper()
	store := openStore(t, path)
	bus := inproc.New(256)
	sys, err := New(Options{
		Store:  store,
		Bus:    bus,
		Policy: policy.New(policy.DefaultRules()),
		Config: cfg,
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	return &systemHarness{
		sys:    sys,
		store:  store,
		bus:    bus,
		events: bus.Subscribe("test", inproc.Wildcard),
	}
}

func (h *systemHarness) add(t *testing.T, priority int, agentType domain.AgentType, description string) domain.Task {
	t.Helper()
	task, err := h.sys.AddTask(context.Background(), priority, agentType, description)
	require.NoError(t, err)
	return task
}

func (h *systemHarness) drain(t *testing.T) int {
	t.Helper()
	n, err := h.sys.Run(context.Background())
	require.NoError(t, err)
	return n
}

// taskEvents returns the task lifecycle events published so far.
func (h *systemHarness) taskEvents(t *testing.T) []domain.TaskEventPayload {
	t.Helper()
	var out []domain.TaskEventPayload
	for {
		select {
		case evt := <-h.events:
			if evt.Topic != domain.EventTaskCompleted && evt.Topic != domain.EventTaskFailed {
				continue
			}
			var p domain.TaskEventPayload
			require.NoError(t, json.Unmarshal(evt.Payload, &p))
			out = append(out, p)
		default:
			return out
		}
	}
}

func (h *systemHarness) decisions(t *testing.T, action string) []domain.DecisionLog {
	t.Helper()
	all, err := h.store.ListDecisions(context.Background(), 100)
	require.NoError(t, err)
	var out []domain.DecisionLog
	for _, d := range all {
		if d.Action == action {
			out = append(out, d)
		}
	}
	return out
}

func descriptions(tasks []domain.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Description)
	}
	return out
}

func TestRunDrainsSeedTasksInPriorityOrder(t *testing.T) {
	h := newSystemHarness(t)
	lead := h.add(t, 4, domain.AgentTypeSales, "Lead Generation: Generate leads for iPhone 12")
	research := h.add(t, 1, domain.AgentTypeProduct, "Product Research: Research top-selling products in electronics")
	h.add(t, 3, domain.AgentTypeMarket, "Market Research: Research market trends for smartphones")
	h.add(t, 2, domain.AgentTypeCustomer, "Sentiment Analysis: Analyze customer reviews for iPhone 12")

	assert.Equal(t, 4, h.drain(t))
	assert.Empty(t, h.sys.Pending())

	events := h.taskEvents(t)
	require.Len(t, events, 4)
	gotOrder := make([]domain.AgentType, 0, len(events))
	for _, e := range events {
		assert.Empty(t, e.Error)
		gotOrder = append(gotOrder, e.AgentType)
	}
	wantOrder := []domain.AgentType{domain.AgentTypeProduct, domain.AgentTypeCustomer, domain.AgentTypeMarket, domain.AgentTypeSales}
	if diff := cmp.Diff(wantOrder, gotOrder); diff != "" {
		t.Fatalf("dispatch order mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "Researched top-selling products in electronics", events[0].Result)

	stored, err := h.store.GetTask(context.Background(), research.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusDone, stored.Status)
	assert.Equal(t, "Researched top-selling products in electronics", stored.Result)

	stored, err = h.store.GetTask(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusDone, stored.Status)
	assert.Len(t, h.sys.Graph().NodesByType(domain.NodeTypeLead), 2)
}

func TestRunBreaksPriorityTiesByInsertion(t *testing.T) {
	h := newSystemHarness(t)
	h.add(t, 1, domain.AgentTypeMarket, "Market Research: Research market trends for tablets")
	h.add(t, 1, domain.AgentTypeMarket, "Market Research: Research market trends for laptops")

	assert.Equal(t, 2, h.drain(t))
	events := h.taskEvents(t)
	require.Len(t, events, 2)
	assert.Equal(t, "Researched market trends for tablets", events[0].Result)
	assert.Equal(t, "Researched market trends for laptops", events[1].Result)
}

func TestRunRunsDelegatedTasksInSameDrain(t *testing.T) {
	h := newSystemHarness(t)
	h.add(t, 1, domain.AgentTypeProduct,
		"Inventory Management: Update inventory levels for iPhone 12 and alert Sales Agent (SA) about stock availability")

	assert.Equal(t, 2, h.drain(t))
	events := h.taskEvents(t)
	require.Len(t, events, 2)
	assert.Equal(t, domain.AgentTypeSales, events[1].AgentType)
	assert.Equal(t, "Alerted about stock availability for iPhone 12. Current level: 50", events[1].Result)
}

func TestRunRecordsFailuresAndContinues(t *testing.T) {
	h := newSystemHarness(t)
	unknown := h.add(t, 1, domain.AgentType("Warehouse"), "Count pallets")
	unsupported := h.add(t, 2, domain.AgentTypeMarket, "Water the plants")
	h.add(t, 3, domain.AgentTypeMarket, "Trend Analysis: weekly")

	assert.Equal(t, 3, h.drain(t))

	stored, err := h.store.GetTask(context.Background(), unknown.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, stored.Status)
	assert.Contains(t, stored.LastError, ErrUnknownAgent.Error())

	stored, err = h.store.GetTask(context.Background(), unsupported.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, stored.Status)

	assert.True(t, h.sys.Graph().HasNode("global"))
	assert.Len(t, h.decisions(t, "task_failed"), 2)

	events := h.taskEvents(t)
	require.Len(t, events, 3)
	assert.NotEmpty(t, events[0].Error)
	assert.Empty(t, events[2].Error)
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	h := newSystemHarness(t)
	h.add(t, 1, domain.AgentTypeMarket, "Trend Analysis: weekly")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n, err := h.sys.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)
	assert.Len(t, h.sys.Pending(), 1)
}

func TestDrainLoopProcessesQueuedTasksUntilCancelled(t *testing.T) {
	h := newSystemHarnessWith(t, filepath.Join(t.TempDir(), "asd.db"), Config{DrainInterval: 10 * time.Millisecond})
	task := h.add(t, 1, domain.AgentTypeMarket, "Market Research: Research market trends for smartphones")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- h.sys.DrainLoop(ctx) }()

	require.Eventually(t, func() bool {
		stored, err := h.store.GetTask(context.Background(), task.ID)
		return err == nil && stored.Status == domain.TaskStatusDone
	}, 5*time.Second, 10*time.Millisecond)
	assert.Empty(t, h.sys.Pending())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("drain loop did not stop after cancel")
	}
}

func TestCollaboratePPCEnqueuesAnalysisTasks(t *testing.T) {
	h := newSystemHarness(t)
	out, err := h.sys.Collaborate(context.Background(),
		"Product-Price-Customer (PPC) Analysis: Collaborate to analyze iPhone 12 features, pricing, and customer preferences")
	require.NoError(t, err)
	assert.Equal(t, "Initiated PPC Analysis for iPhone 12", out)

	pending := h.sys.Pending()
	want := []string{
		"Pricing Analysis: Analyze prices of iPhone 12 across different online retailers",
		"Sentiment Analysis: Analyze customer reviews for iPhone 12",
		"Market Research: Research market trends for iPhone",
	}
	if diff := cmp.Diff(want, descriptions(pending)); diff != "" {
		t.Fatalf("queued tasks mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []int{1, 2, 3}, []int{pending[0].Priority, pending[1].Priority, pending[2].Priority})
}

func TestCollaborateSalesStrategyKeepsTrailingText(t *testing.T) {
	h := newSystemHarness(t)
	out, err := h.sys.Collaborate(context.Background(),
		"Sales Strategy Development: Develop sales strategies for iPhone 12 based on market trends, customer profiles, and competitor analysis")
	require.NoError(t, err)
	product := "iPhone 12 based on market trends, customer profiles, and competitor analysis"
	assert.Equal(t, "Initiated Sales Strategy Development for "+product, out)

	pending := h.sys.Pending()
	require.Len(t, pending, 3)
	assert.Equal(t, domain.AgentTypeSales, pending[0].AgentType)
	assert.Equal(t, "Lead Generation: Generate leads for "+product, pending[0].Description)
	assert.Equal(t, domain.AgentTypeCustomer, pending[2].AgentType)
}

func TestCollaborateAutonomousFailsWithoutGraphData(t *testing.T) {
	h := newSystemHarness(t)
	_, err := h.sys.Collaborate(context.Background(),
		"Autonomous Decision-Making: Make autonomous decisions on pricing, inventory management, and sales strategies for iPhone 12")
	require.ErrorIs(t, err, graph.ErrNodeNotFound)

	assert.Len(t, h.sys.Pending(), 2)
	failed := h.decisions(t, "pricing_failed")
	require.Len(t, failed, 1)
	assert.Equal(t, decisionActor, failed[0].Actor)
}

func TestDecidePricingRejectsUntypedProductNode(t *testing.T) {
	h := newSystemHarness(t)
	h.add(t, 1, domain.AgentTypeCustomer, "Sentiment Analysis: Analyze customer reviews for iPhone 12")
	h.add(t, 2, domain.AgentTypeMarket, "Trend Analysis: weekly")
	h.drain(t)

	_, err := h.sys.DecidePricing(context.Background(), "iPhone 12")
	require.ErrorIs(t, err, graph.ErrNodeNotFound)
}

func TestCollaborateAutonomousPricesFromGraph(t *testing.T) {
	h := newSystemHarness(t)
	ctx := context.Background()
	_, err := h.sys.Collaborate(ctx,
		"Product-Price-Customer (PPC) Analysis: Collaborate to analyze iPhone 12 features, pricing, and customer preferences")
	require.NoError(t, err)
	h.add(t, 4, domain.AgentTypeMarket, "Trend Analysis: weekly")
	h.add(t, 5, domain.AgentTypeMarket, "Competitor Monitoring: Monitor competitor prices and product offerings for iPhone")
	h.drain(t)

	out, err := h.sys.Collaborate(ctx,
		"Autonomous Decision-Making: Make autonomous decisions on pricing, inventory management, and sales strategies for iPhone 12")
	require.NoError(t, err)
	assert.Equal(t, "Made autonomous decisions for iPhone 12", out)

	var payload domain.PricingDecisionPayload
	found := false
	for !found {
		select {
		case evt := <-h.events:
			if evt.Topic == domain.EventPricingDecision {
				require.NoError(t, json.Unmarshal(evt.Payload, &payload))
				found = true
			}
		default:
			t.Fatal("no pricing.decision event published")
		}
	}
	assert.Equal(t, "iPhone 12", payload.Product)
	assert.Equal(t, decision.StrategyPremium, payload.Strategy)
	assert.InDelta(t, 109.989, payload.Price, 1e-9)
	assert.Equal(t, 99.99, payload.CurrentPrice)
	assert.Equal(t, 50, payload.InventoryLevel)
	assert.Equal(t, map[string]float64{"competitor1_price": 109.99, "competitor2_price": 89.99}, payload.CompetitorPrices)
	assert.Equal(t, []string{"Competitor A", "Competitor B"}, payload.Competitors)

	assert.Len(t, h.decisions(t, "pricing_decision"), 1)
}

func TestDecidePricingUsesRecordedInventory(t *testing.T) {
	h := newSystemHarness(t)
	ctx := context.Background()
	kg := h.sys.Graph()
	require.NoError(t, kg.AddNode(ctx, domain.NodeTypePricingInfo, "Pixel 8", domain.Attributes{
		"amazon_price":      100.0,
		"competitor1_price": 80.0,
		"competitor2_price": 120.0,
	}))
	require.NoError(t, kg.AddNode(ctx, domain.NodeTypeTrendAnalysis, "global", domain.Attributes{}))
	require.NoError(t, kg.AddNode(ctx, domain.NodeTypeInventory, graph.ScopedID(domain.NodeTypeInventory, "Pixel 8"),
		domain.Attributes{"level": 500}))

	got, err := h.sys.DecidePricing(ctx, "Pixel 8")
	require.NoError(t, err)
	assert.Equal(t, decision.StrategyClearance, got.Strategy)
	assert.Equal(t, 500, got.InventoryLevel)
	assert.InDelta(t, 90.0, got.Price, 1e-9)
}

func TestCollaborateRejectsUnknownPrompt(t *testing.T) {
	h := newSystemHarness(t)
	_, err := h.sys.Collaborate(context.Background(), "Plan the office party")
	require.ErrorIs(t, err, ErrUnknownPrompt)
	assert.Empty(t, h.sys.Pending())
}

func TestRestoreReloadsGraphAndPendingTasks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "asd.db")
	first := newSystemHarnessAt(t, path)
	first.add(t, 1, domain.AgentTypeMarket, "Trend Analysis: weekly")
	first.drain(t)
	first.add(t, 2, domain.AgentTypeSales, "Lead Generation: Generate leads for iPhone 12")
	first.add(t, 1, domain.AgentTypeCustomer, "Customer Profiling: Create customer profiles based on purchase history")
	require.NoError(t, first.store.Close())

	second := newSystemHarnessAt(t, path)
	n, err := second.sys.Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, second.sys.Graph().HasNode("global"))

	pending := second.sys.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, domain.AgentTypeCustomer, pending[0].AgentType)
	assert.Equal(t, 2, second.drain(t))
}
