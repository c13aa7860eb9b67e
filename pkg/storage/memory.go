package storage

import (
	"context"
	"iter"
	"sync"
)

// adjacency is one node's edge lists in creation order.
type adjacency struct {
	out []EdgeID
	in  []EdgeID
}

// MemoryEngine keeps the whole graph in maps behind one RWMutex. It backs
// tests and ad-hoc runs over a Neo4j export. Streams yield edges in the
// order they were created.
type MemoryEngine struct {
	mu     sync.RWMutex
	nodes  map[NodeID]*Node
	edges  map[EdgeID]*Edge
	adj    map[NodeID]*adjacency
	closed bool
}

func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{
		nodes: make(map[NodeID]*Node),
		edges: make(map[EdgeID]*Edge),
		adj:   make(map[NodeID]*adjacency),
	}
}

func (m *MemoryEngine) CreateNode(node *Node) error {
	return m.BulkCreateNodes([]*Node{node})
}

func (m *MemoryEngine) CreateEdge(edge *Edge) error {
	return m.BulkCreateEdges([]*Edge{edge})
}

// GetNode returns a copy of the stored node.
func (m *MemoryEngine) GetNode(id NodeID) (*Node, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStorageClosed
	}
	node, ok := m.nodes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return node.clone(), nil
}

// BulkCreateNodes stores every node or none of them.
func (m *MemoryEngine) BulkCreateNodes(nodes []*Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStorageClosed
	}

	batch := make(map[NodeID]bool, len(nodes))
	for _, node := range nodes {
		if err := node.validate(); err != nil {
			return err
		}
		if _, taken := m.nodes[node.ID]; taken || batch[node.ID] {
			return ErrAlreadyExists
		}
		batch[node.ID] = true
	}

	for _, node := range nodes {
		m.nodes[node.ID] = node.clone()
	}
	return nil
}

// BulkCreateEdges stores every edge or none of them. Both endpoints must
// already exist.
func (m *MemoryEngine) BulkCreateEdges(edges []*Edge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStorageClosed
	}

	batch := make(map[EdgeID]bool, len(edges))
	for _, edge := range edges {
		if err := edge.validate(); err != nil {
			return err
		}
		if _, taken := m.edges[edge.ID]; taken || batch[edge.ID] {
			return ErrAlreadyExists
		}
		if m.nodes[edge.StartNode] == nil || m.nodes[edge.EndNode] == nil {
			return ErrInvalidEdge
		}
		batch[edge.ID] = true
	}

	for _, edge := range edges {
		m.edges[edge.ID] = edge.clone()
		m.adjacencyOf(edge.StartNode).out = append(m.adjacencyOf(edge.StartNode).out, edge.ID)
		m.adjacencyOf(edge.EndNode).in = append(m.adjacencyOf(edge.EndNode).in, edge.ID)
	}
	return nil
}

// adjacencyOf returns the lists for id, creating them. Caller holds mu.
func (m *MemoryEngine) adjacencyOf(id NodeID) *adjacency {
	a := m.adj[id]
	if a == nil {
		a = &adjacency{}
		m.adj[id] = a
	}
	return a
}

func (m *MemoryEngine) StreamOutgoingEdges(ctx context.Context, nodeID NodeID) iter.Seq2[*Edge, error] {
	return m.stream(ctx, nodeID, func(a *adjacency) []EdgeID { return a.out })
}

func (m *MemoryEngine) StreamIncomingEdges(ctx context.Context, nodeID NodeID) iter.Seq2[*Edge, error] {
	return m.stream(ctx, nodeID, func(a *adjacency) []EdgeID { return a.in })
}

// stream fixes the edge list when ranging starts and then takes the read
// lock once per pulled edge. Edges appended later are not seen by a range
// already in progress.
func (m *MemoryEngine) stream(ctx context.Context, nodeID NodeID, side func(*adjacency) []EdgeID) iter.Seq2[*Edge, error] {
	if nodeID == "" {
		return errSeq(ErrInvalidID)
	}
	return func(yield func(*Edge, error) bool) {
		m.mu.RLock()
		if m.closed {
			m.mu.RUnlock()
			yield(nil, ErrStorageClosed)
			return
		}
		var ids []EdgeID
		if a := m.adj[nodeID]; a != nil {
			// Lists are append-only, so the slice header is a stable snapshot.
			ids = side(a)
		}
		m.mu.RUnlock()

		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			m.mu.RLock()
			edge := m.edges[id].clone()
			m.mu.RUnlock()
			if edge == nil {
				continue
			}
			if !yield(edge, nil) {
				return
			}
		}
	}
}

// Close drops all data. Later calls fail with ErrStorageClosed.
func (m *MemoryEngine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.nodes, m.edges, m.adj = nil, nil, nil
	return nil
}

var _ StreamingEngine = (*MemoryEngine)(nil)
