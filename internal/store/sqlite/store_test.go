package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"asd_commerce/internal/domain"
)

func TestTaskLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	low := domain.Task{
		ID:          uuid.NewString(),
		Priority:    3,
		AgentType:   domain.AgentTypeMarket,
		Description: "Market Research: Research market trends for smartphones",
		Seq:         1,
	}
	high := domain.Task{
		ID:          uuid.NewString(),
		Priority:    1,
		AgentType:   domain.AgentTypeProduct,
		Description: "Product Research: Research top-selling products in electronics",
		Seq:         2,
	}
	for _, task := range []domain.Task{low, high} {
		if err := store.CreateTask(ctx, task); err != nil {
			t.Fatalf("create task: %v", err)
		}
	}

	pending, err := store.ListPendingTasks(ctx)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending tasks, got %d", len(pending))
	}
	if pending[0].ID != high.ID {
		t.Fatalf("expected priority 1 task first, got %s", pending[0].Description)
	}

	if err := store.UpdateTaskStatus(ctx, high.ID, domain.TaskStatusDone, "Researched top-selling products in electronics", ""); err != nil {
		t.Fatalf("update status: %v", err)
	}
	got, err := store.GetTask(ctx, high.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.Status != domain.TaskStatusDone || got.Result == "" {
		t.Fatalf("unexpected task after update: %+v", got)
	}

	pending, err = store.ListPendingTasks(ctx)
	if err != nil {
		t.Fatalf("list pending after update: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != low.ID {
		t.Fatalf("expected only the market task to stay pending, got %+v", pending)
	}
}

func TestUpdateMissingTask(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	err := store.UpdateTaskStatus(context.Background(), "missing", domain.TaskStatusDone, "", "")
	if !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
	if _, err := store.GetTask(context.Background(), "missing"); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound from get, got %v", err)
	}
}

func TestGraphRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	if err := store.UpsertNode(ctx, domain.Node{
		ID:         "iPhone 12",
		Type:       domain.NodeTypePricingInfo,
		Attributes: domain.Attributes{"amazon_price": 99.99},
	}); err != nil {
		t.Fatalf("upsert node: %v", err)
	}
	if err := store.UpsertNode(ctx, domain.Node{
		ID:         "iPhone 12",
		Type:       domain.NodeTypeSentiment,
		Attributes: domain.Attributes{"compound": 0.8},
	}); err != nil {
		t.Fatalf("overwrite node: %v", err)
	}
	if err := store.UpsertEdge(ctx, domain.Edge{From: "L001", To: "iPhone 12", Relationship: "interested_in"}); err != nil {
		t.Fatalf("upsert edge: %v", err)
	}
	if err := store.UpsertEdge(ctx, domain.Edge{From: "iPhone 12", To: "L001", Relationship: "lead_for"}); err != nil {
		t.Fatalf("upsert reversed edge: %v", err)
	}

	snap, err := store.LoadGraph(ctx)
	if err != nil {
		t.Fatalf("load graph: %v", err)
	}
	if len(snap.Nodes) != 1 {
		t.Fatalf("expected overwrite to keep a single node, got %d", len(snap.Nodes))
	}
	if snap.Nodes[0].Type != domain.NodeTypeSentiment {
		t.Fatalf("expected last write to win, got %s", snap.Nodes[0].Type)
	}
	if _, ok := snap.Nodes[0].Attributes["amazon_price"]; ok {
		t.Fatalf("expected attributes to be replaced on overwrite")
	}
	if len(snap.Edges) != 1 {
		t.Fatalf("expected undirected edge to be stored once, got %d", len(snap.Edges))
	}
	if snap.Edges[0].Relationship != "lead_for" {
		t.Fatalf("expected relationship to be replaced, got %s", snap.Edges[0].Relationship)
	}
}

func TestDecisionAndSalesLog(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	for _, action := range []string{"task_queued", "pricing_decision"} {
		if err := store.LogDecision(ctx, domain.DecisionLog{
			Actor:  "system",
			Action: action,
			Reason: "test",
		}); err != nil {
			t.Fatalf("log decision: %v", err)
		}
	}
	decisions, err := store.ListDecisions(ctx, 10)
	if err != nil {
		t.Fatalf("list decisions: %v", err)
	}
	if len(decisions) != 2 || decisions[0].Action != "pricing_decision" {
		t.Fatalf("expected newest decision first, got %+v", decisions)
	}
	if string(decisions[0].Payload) != "{}" {
		t.Fatalf("expected empty payload to default to {}, got %s", decisions[0].Payload)
	}

	for i := 0; i < 2; i++ {
		if err := store.RecordSale(ctx, domain.SaleRecord{Product: "iPhone 12", Quantity: 100, TotalValue: 8999}); err != nil {
			t.Fatalf("record sale: %v", err)
		}
	}
	if err := store.RecordSale(ctx, domain.SaleRecord{Product: " "}); err == nil {
		t.Fatalf("expected sale without product to be rejected")
	}
	totals, err := store.ListSalesTotals(ctx)
	if err != nil {
		t.Fatalf("list sales totals: %v", err)
	}
	if len(totals) != 1 {
		t.Fatalf("expected one product total, got %d", len(totals))
	}
	if totals[0].Deals != 2 || totals[0].Quantity != 200 || totals[0].TotalValue != 17998 {
		t.Fatalf("unexpected totals: %+v", totals[0])
	}
}

func TestExportLog(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	if err := store.LogExport(ctx, domain.ExportLog{Actor: "cli", Path: "../escape.json", Allowed: false, Reason: "path escapes workspace root"}); err != nil {
		t.Fatalf("log export: %v", err)
	}
	if err := store.LogExport(ctx, domain.ExportLog{Actor: "cli", Path: "graph.json", Allowed: true, Reason: "written", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("log export: %v", err)
	}
	items, err := store.ListExports(ctx, 0)
	if err != nil {
		t.Fatalf("list exports: %v", err)
	}
	if len(items) != 2 || !items[0].Allowed || items[1].Allowed {
		t.Fatalf("unexpected export log: %+v", items)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := store.Migrate(context.Background()); err != nil {
		store.Close()
		t.Fatalf("migrate store: %v", err)
	}
	return store
}
