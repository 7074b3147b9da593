// Package export writes knowledge graph snapshots to disk. Every path is
// resolved under a single root and every attempt is recorded.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"asd_commerce/internal/domain"
)

var ErrForbiddenPath = errors.New("export path is not allowed")

type AuditLogger interface {
	LogExport(ctx context.Context, entry domain.ExportLog) error
}

type Gateway struct {
	root  string
	audit AuditLogger
}

func NewGateway(root string, audit AuditLogger) (*Gateway, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve export root: %w", err)
	}
	if err := os.MkdirAll(absRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create export root: %w", err)
	}
	return &Gateway{root: absRoot, audit: audit}, nil
}

func (g *Gateway) Root() string {
	return g.root
}

// WriteSnapshot stores snap as indented JSON at relPath and returns the
// absolute path written.
func (g *Gateway) WriteSnapshot(ctx context.Context, actor, relPath string, snap domain.GraphSnapshot) (string, error) {
	absPath, normalized, err := g.resolve(relPath)
	if err != nil {
		g.record(ctx, actor, relPath, false, err.Error())
		return "", err
	}

	content, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return "", fmt.Errorf("create parent directories: %w", err)
	}
	tmp := absPath + ".tmp"
	if err := os.WriteFile(tmp, append(content, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, absPath); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("replace snapshot: %w", err)
	}

	g.record(ctx, actor, normalized, true, fmt.Sprintf("%d nodes, %d edges", len(snap.Nodes), len(snap.Edges)))
	return absPath, nil
}

func (g *Gateway) ReadSnapshot(ctx context.Context, actor, relPath string) (domain.GraphSnapshot, error) {
	absPath, normalized, err := g.resolve(relPath)
	if err != nil {
		g.record(ctx, actor, relPath, false, err.Error())
		return domain.GraphSnapshot{}, err
	}
	content, err := os.ReadFile(absPath)
	if err != nil {
		return domain.GraphSnapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	var snap domain.GraphSnapshot
	if err := json.Unmarshal(content, &snap); err != nil {
		return domain.GraphSnapshot{}, fmt.Errorf("decode snapshot %s: %w", normalized, err)
	}
	return snap, nil
}

func (g *Gateway) record(ctx context.Context, actor, path string, allowed bool, reason string) {
	if g.audit == nil {
		return
	}
	_ = g.audit.LogExport(ctx, domain.ExportLog{
		Actor:     actor,
		Path:      path,
		Allowed:   allowed,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	})
}

func (g *Gateway) resolve(relPath string) (absolute string, normalized string, err error) {
	normalized = strings.ReplaceAll(strings.TrimSpace(relPath), "\\", "/")
	normalized = strings.TrimPrefix(normalized, "./")
	if normalized == "" || normalized == "." {
		return "", "", fmt.Errorf("%w: empty path", ErrForbiddenPath)
	}
	if strings.HasPrefix(normalized, "/") || filepath.IsAbs(relPath) {
		return "", "", fmt.Errorf("%w: %q is absolute", ErrForbiddenPath, relPath)
	}
	if !strings.EqualFold(filepath.Ext(normalized), ".json") {
		return "", "", fmt.Errorf("%w: %q is not a .json file", ErrForbiddenPath, relPath)
	}

	absClean := filepath.Clean(filepath.Join(g.root, filepath.FromSlash(normalized)))
	rel, err := filepath.Rel(g.root, absClean)
	if err != nil {
		return "", "", fmt.Errorf("resolve relative path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", "", fmt.Errorf("%w: %q escapes export root", ErrForbiddenPath, relPath)
	}
	return absClean, filepath.ToSlash(rel), nil
}
