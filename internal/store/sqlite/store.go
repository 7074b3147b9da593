package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/pressly/goose/v3"

	"asd_commerce/internal/domain"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

var ErrTaskNotFound = errors.New("task not found")

type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set sqlite pragma %q: %w", stmt, err)
		}
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Migrate(ctx context.Context) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, s.db, fsys)
	if err != nil {
		return fmt.Errorf("create migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

func (s *Store) CreateTask(ctx context.Context, task domain.Task) error {
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = now
	}
	if task.Status == "" {
		task.Status = domain.TaskStatusQueued
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO tasks(
			id, priority, agent_type, description, seq, status, result, last_error, created_at, updated_at
		) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.Priority, string(task.AgentType), task.Description, task.Seq, string(task.Status),
		task.Result, task.LastError, task.CreatedAt.Unix(), task.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (s *Store) GetTask(ctx context.Context, taskID string) (domain.Task, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, priority, agent_type, description, seq, status, result, last_error, created_at, updated_at
		FROM tasks WHERE id = ?`,
		taskID,
	)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
		}
		return domain.Task{}, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func (s *Store) ListTasks(ctx context.Context, limit int) ([]domain.Task, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, priority, agent_type, description, seq, status, result, last_error, created_at, updated_at
		FROM tasks ORDER BY created_at DESC, seq DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return result, nil
}

func (s *Store) ListPendingTasks(ctx context.Context) ([]domain.Task, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, priority, agent_type, description, seq, status, result, last_error, created_at, updated_at
		FROM tasks
		WHERE status = ?
		ORDER BY priority ASC, seq ASC`,
		string(domain.TaskStatusQueued),
	)
	if err != nil {
		return nil, fmt.Errorf("list pending tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending tasks: %w", err)
	}
	return tasks, nil
}

func (s *Store) UpdateTaskStatus(ctx context.Context, taskID string, status domain.TaskStatus, result, lastError string) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE tasks SET status = ?, result = ?, last_error = ?, updated_at = ? WHERE id = ?`,
		string(status), result, lastError, time.Now().UTC().Unix(), taskID,
	)
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update task affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	return nil
}

func (s *Store) UpsertNode(ctx context.Context, node domain.Node) error {
	attrs, err := json.Marshal(node.Attributes)
	if err != nil {
		return fmt.Errorf("marshal node attributes: %w", err)
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO graph_nodes(id, type, attributes, updated_at)
		VALUES(?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			attributes = excluded.attributes,
			updated_at = excluded.updated_at`,
		node.ID, string(node.Type), string(attrs), time.Now().UTC().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert node: %w", err)
	}
	return nil
}

func (s *Store) UpsertEdge(ctx context.Context, edge domain.Edge) error {
	a, b := edgeKey(edge.From, edge.To)
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO graph_edges(node_a, node_b, relationship, updated_at)
		VALUES(?, ?, ?, ?)
		ON CONFLICT(node_a, node_b) DO UPDATE SET
			relationship = excluded.relationship,
			updated_at = excluded.updated_at`,
		a, b, edge.Relationship, time.Now().UTC().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert edge: %w", err)
	}
	return nil
}

func (s *Store) LoadGraph(ctx context.Context) (domain.GraphSnapshot, error) {
	var snap domain.GraphSnapshot

	rows, err := s.db.QueryContext(ctx, `SELECT id, type, attributes FROM graph_nodes ORDER BY id ASC`)
	if err != nil {
		return snap, fmt.Errorf("load graph nodes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var n domain.Node
		var typ, attrs string
		if err := rows.Scan(&n.ID, &typ, &attrs); err != nil {
			return snap, fmt.Errorf("scan graph node: %w", err)
		}
		n.Type = domain.NodeType(typ)
		if err := json.Unmarshal([]byte(attrs), &n.Attributes); err != nil {
			return snap, fmt.Errorf("decode attributes of node %s: %w", n.ID, err)
		}
		snap.Nodes = append(snap.Nodes, n)
	}
	if err := rows.Err(); err != nil {
		return snap, fmt.Errorf("iterate graph nodes: %w", err)
	}

	edgeRows, err := s.db.QueryContext(ctx, `SELECT node_a, node_b, relationship FROM graph_edges ORDER BY node_a, node_b`)
	if err != nil {
		return snap, fmt.Errorf("load graph edges: %w", err)
	}
	defer edgeRows.Close()
	for edgeRows.Next() {
		var e domain.Edge
		if err := edgeRows.Scan(&e.From, &e.To, &e.Relationship); err != nil {
			return snap, fmt.Errorf("scan graph edge: %w", err)
		}
		snap.Edges = append(snap.Edges, e)
	}
	if err := edgeRows.Err(); err != nil {
		return snap, fmt.Errorf("iterate graph edges: %w", err)
	}
	return snap, nil
}

func (s *Store) LogDecision(ctx context.Context, entry domain.DecisionLog) error {
	payload := string(entry.Payload)
	if payload == "" {
		payload = "{}"
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO decision_log(task_id, actor, action, reason, payload, created_at)
		VALUES(?, ?, ?, ?, ?, ?)`,
		entry.TaskID, entry.Actor, entry.Action, entry.Reason, payload, time.Now().UTC().Unix(),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}

func (s *Store) ListDecisions(ctx context.Context, limit int) ([]domain.DecisionLog, error) {
	if limit <= 0 {
		limit = 300
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, task_id, actor, action, reason, payload, created_at
		FROM decision_log
		ORDER BY id DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	result := make([]domain.DecisionLog, 0, limit)
	for rows.Next() {
		var item domain.DecisionLog
		var payload string
		var createdAt int64
		if err := rows.Scan(&item.ID, &item.TaskID, &item.Actor, &item.Action, &item.Reason, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		item.Payload = []byte(payload)
		item.CreatedAt = unixToTime(createdAt)
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decisions: %w", err)
	}
	return result, nil
}

func (s *Store) RecordSale(ctx context.Context, sale domain.SaleRecord) error {
	if strings.TrimSpace(sale.Product) == "" {
		return fmt.Errorf("record sale: product is required")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO sales_metrics(product, quantity, total_value, created_at) VALUES(?, ?, ?, ?)`,
		sale.Product, sale.Quantity, sale.TotalValue, time.Now().UTC().Unix(),
	)
	if err != nil {
		return fmt.Errorf("record sale: %w", err)
	}
	return nil
}

func (s *Store) ListSalesTotals(ctx context.Context) ([]domain.SalesTotal, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT product, COUNT(*), COALESCE(SUM(quantity), 0), COALESCE(SUM(total_value), 0)
		FROM sales_metrics
		GROUP BY product
		ORDER BY product ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list sales totals: %w", err)
	}
	defer rows.Close()

	var result []domain.SalesTotal
	for rows.Next() {
		var item domain.SalesTotal
		if err := rows.Scan(&item.Product, &item.Deals, &item.Quantity, &item.TotalValue); err != nil {
			return nil, fmt.Errorf("scan sales total: %w", err)
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sales totals: %w", err)
	}
	return result, nil
}

func (s *Store) LogExport(ctx context.Context, entry domain.ExportLog) error {
	allowed := 0
	if entry.Allowed {
		allowed = 1
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO export_log(actor, path, allowed, reason, created_at) VALUES(?, ?, ?, ?, ?)`,
		entry.Actor, entry.Path, allowed, entry.Reason, time.Now().UTC().Unix(),
	)
	if err != nil {
		return fmt.Errorf("log export: %w", err)
	}
	return nil
}

func (s *Store) ListExports(ctx context.Context, limit int) ([]domain.ExportLog, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, actor, path, allowed, reason, created_at FROM export_log ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list exports: %w", err)
	}
	defer rows.Close()

	var result []domain.ExportLog
	for rows.Next() {
		var item domain.ExportLog
		var allowed int
		var createdAt int64
		if err := rows.Scan(&item.ID, &item.Actor, &item.Path, &allowed, &item.Reason, &createdAt); err != nil {
			return nil, fmt.Errorf("scan export: %w", err)
		}
		item.Allowed = allowed == 1
		item.CreatedAt = unixToTime(createdAt)
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exports: %w", err)
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (domain.Task, error) {
	var t domain.Task
	var agentType, status string
	var created, updated int64
	if err := row.Scan(
		&t.ID, &t.Priority, &agentType, &t.Description, &t.Seq, &status,
		&t.Result, &t.LastError, &created, &updated,
	); err != nil {
		return domain.Task{}, err
	}
	t.AgentType = domain.AgentType(agentType)
	t.Status = domain.TaskStatus(status)
	t.CreatedAt = unixToTime(created)
	t.UpdatedAt = unixToTime(updated)
	return t, nil
}

// edgeKey orders the endpoints so an undirected edge has a single row.
func edgeKey(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

func unixToTime(v int64) time.Time {
	return time.Unix(v, 0).UTC()
}
