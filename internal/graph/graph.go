// Package graph holds the shared knowledge graph the agents write into.
//
// Nodes are keyed by a string id and carry a type plus a free-form attribute
// map. Edges are undirected and labelled with a relationship. Adding a node
// whose id already exists replaces it.
package graph

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"gonum.org/v1/gonum/graph/simple"

	"asd_commerce/internal/domain"
)

var (
	ErrNodeNotFound = errors.New("node not found")
	ErrEmptyNodeID  = errors.New("node id is empty")
	ErrSelfLoop     = errors.New("self edges are not supported")
)

// TypeKey is the attribute under which a node's type is reported.
const TypeKey = "type"

// Persister receives every write so the graph can be rebuilt after a restart.
type Persister interface {
	UpsertNode(ctx context.Context, node domain.Node) error
	UpsertEdge(ctx context.Context, edge domain.Edge) error
}

type Loader interface {
	LoadGraph(ctx context.Context) (domain.GraphSnapshot, error)
}

type Neighbor struct {
	ID           string `json:"id"`
	Relationship string `json:"relationship"`
}

type entry struct {
	typ   domain.NodeType
	attrs domain.Attributes
}

type KnowledgeGraph struct {
	mu        sync.RWMutex
	g         *simple.UndirectedGraph
	ids       map[string]int64
	names     map[int64]string
	entries   map[string]*entry
	relations map[[2]int64]string
	persister Persister
}

func New(persister Persister) *KnowledgeGraph {
	return &KnowledgeGraph{
		g:         simple.NewUndirectedGraph(),
		ids:       make(map[string]int64),
		names:     make(map[int64]string),
		entries:   make(map[string]*entry),
		relations: make(map[[2]int64]string),
		persister: persister,
	}
}

// Load replays a persisted snapshot into the graph without writing it back.
func (kg *KnowledgeGraph) Load(ctx context.Context, src Loader) error {
	snap, err := src.LoadGraph(ctx)
	if err != nil {
		return fmt.Errorf("load graph: %w", err)
	}
	kg.mu.Lock()
	defer kg.mu.Unlock()
	for _, n := range snap.Nodes {
		kg.putNodeLocked(n.Type, n.ID, n.Attributes)
	}
	for _, e := range snap.Edges {
		if err := kg.putEdgeLocked(e.From, e.To, e.Relationship); err != nil {
			return fmt.Errorf("restore edge %s-%s: %w", e.From, e.To, err)
		}
	}
	return nil
}

func (kg *KnowledgeGraph) AddNode(ctx context.Context, nodeType domain.NodeType, id string, attrs domain.Attributes) error {
	if id == "" {
		return ErrEmptyNodeID
	}
	kg.mu.Lock()
	kg.putNodeLocked(nodeType, id, attrs)
	kg.mu.Unlock()

	if kg.persister == nil {
		return nil
	}
	if err := kg.persister.UpsertNode(ctx, domain.Node{ID: id, Type: nodeType, Attributes: cloneAttrs(attrs)}); err != nil {
		return fmt.Errorf("persist node %s: %w", id, err)
	}
	return nil
}

// AddEdge links two nodes, creating untyped endpoints that do not exist yet.
func (kg *KnowledgeGraph) AddEdge(ctx context.Context, from, to, relationship string) error {
	if from == "" || to == "" {
		return ErrEmptyNodeID
	}
	if from == to {
		return fmt.Errorf("%w: %s", ErrSelfLoop, from)
	}
	kg.mu.Lock()
	err := kg.putEdgeLocked(from, to, relationship)
	kg.mu.Unlock()
	if err != nil {
		return err
	}

	if kg.persister == nil {
		return nil
	}
	if err := kg.persister.UpsertEdge(ctx, domain.Edge{From: from, To: to, Relationship: relationship}); err != nil {
		return fmt.Errorf("persist edge %s-%s: %w", from, to, err)
	}
	return nil
}

// NodeAttributes returns a copy of the node's attributes with its type under TypeKey.
func (kg *KnowledgeGraph) NodeAttributes(id string) (domain.Attributes, error) {
	kg.mu.RLock()
	defer kg.mu.RUnlock()
	e, ok := kg.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, id)
	}
	out := cloneAttrs(e.attrs)
	out[TypeKey] = string(e.typ)
	return out, nil
}

func (kg *KnowledgeGraph) Node(id string) (domain.Node, error) {
	kg.mu.RLock()
	defer kg.mu.RUnlock()
	e, ok := kg.entries[id]
	if !ok {
		return domain.Node{}, fmt.Errorf("%w: %q", ErrNodeNotFound, id)
	}
	return domain.Node{ID: id, Type: e.typ, Attributes: cloneAttrs(e.attrs)}, nil
}

func (kg *KnowledgeGraph) HasNode(id string) bool {
	kg.mu.RLock()
	defer kg.mu.RUnlock()
	_, ok := kg.entries[id]
	return ok
}

func (kg *KnowledgeGraph) Neighbors(id string) ([]Neighbor, error) {
	kg.mu.RLock()
	defer kg.mu.RUnlock()
	nid, ok := kg.ids[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, id)
	}
	var out []Neighbor
	it := kg.g.From(nid)
	for it.Next() {
		other := it.Node().ID()
		out = append(out, Neighbor{
			ID:           kg.names[other],
			Relationship: kg.relations[pairKey(nid, other)],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (kg *KnowledgeGraph) NodesByType(nodeType domain.NodeType) []domain.Node {
	kg.mu.RLock()
	defer kg.mu.RUnlock()
	var out []domain.Node
	for id, e := range kg.entries {
		if e.typ != nodeType {
			continue
		}
		out = append(out, domain.Node{ID: id, Type: e.typ, Attributes: cloneAttrs(e.attrs)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (kg *KnowledgeGraph) Len() int {
	kg.mu.RLock()
	defer kg.mu.RUnlock()
	return len(kg.entries)
}

func (kg *KnowledgeGraph) Snapshot() domain.GraphSnapshot {
	kg.mu.RLock()
	defer kg.mu.RUnlock()
	snap := domain.GraphSnapshot{
		Nodes: make([]domain.Node, 0, len(kg.entries)),
		Edges: make([]domain.Edge, 0, len(kg.relations)),
	}
	for id, e := range kg.entries {
		snap.Nodes = append(snap.Nodes, domain.Node{ID: id, Type: e.typ, Attributes: cloneAttrs(e.attrs)})
	}
	for key, rel := range kg.relations {
		a, b := kg.names[key[0]], kg.names[key[1]]
		if b < a {
			a, b = b, a
		}
		snap.Edges = append(snap.Edges, domain.Edge{From: a, To: b, Relationship: rel})
	}
	sort.Slice(snap.Nodes, func(i, j int) bool { return snap.Nodes[i].ID < snap.Nodes[j].ID })
	sort.Slice(snap.Edges, func(i, j int) bool {
		if snap.Edges[i].From != snap.Edges[j].From {
			return snap.Edges[i].From < snap.Edges[j].From
		}
		return snap.Edges[i].To < snap.Edges[j].To
	})
	return snap
}

func (kg *KnowledgeGraph) putNodeLocked(nodeType domain.NodeType, id string, attrs domain.Attributes) {
	if _, ok := kg.ids[id]; !ok {
		n := kg.g.NewNode()
		kg.g.AddNode(n)
		kg.ids[id] = n.ID()
		kg.names[n.ID()] = id
	}
	kg.entries[id] = &entry{typ: nodeType, attrs: cloneAttrs(attrs)}
}

func (kg *KnowledgeGraph) putEdgeLocked(from, to, relationship string) error {
	if from == to {
		return fmt.Errorf("%w: %s", ErrSelfLoop, from)
	}
	for _, id := range []string{from, to} {
		if _, ok := kg.entries[id]; !ok {
			kg.putNodeLocked("", id, nil)
		}
	}
	a, b := kg.ids[from], kg.ids[to]
	kg.g.SetEdge(kg.g.NewEdge(simple.Node(a), simple.Node(b)))
	kg.relations[pairKey(a, b)] = relationship
	return nil
}

func pairKey(a, b int64) [2]int64 {
	if b < a {
		a, b = b, a
	}
	return [2]int64{a, b}
}

func cloneAttrs(attrs domain.Attributes) domain.Attributes {
	out := make(domain.Attributes, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

// ScopedID names a node derived from key, e.g. "Sentiment:iPhone 12", so
// results about the same subject do not overwrite each other.
func ScopedID(nodeType domain.NodeType, key string) string {
	return string(nodeType) + ":" + key
}
