package storage

import (
	"context"
	"iter"
	"strings"
)

// NamespacedEngine lets several logical graphs share one physical engine.
// Every node and edge id is stored as "<namespace>:<id>"; callers only ever
// see the bare id, and streams only reach edges of the same namespace
// because both endpoints carry the prefix.
type NamespacedEngine struct {
	inner     StreamingEngine
	namespace string
}

func NewNamespacedEngine(inner StreamingEngine, namespace string) *NamespacedEngine {
	return &NamespacedEngine{inner: inner, namespace: namespace}
}

func (n *NamespacedEngine) Namespace() string { return n.namespace }

func (n *NamespacedEngine) wrap(id string) string {
	if id == "" {
		return ""
	}
	return n.namespace + ":" + id
}

func (n *NamespacedEngine) unwrap(id string) string {
	return strings.TrimPrefix(id, n.namespace+":")
}

func (n *NamespacedEngine) storedNode(node *Node) *Node {
	s := node.clone()
	s.ID = NodeID(n.wrap(string(node.ID)))
	return s
}

func (n *NamespacedEngine) storedEdge(edge *Edge) *Edge {
	s := edge.clone()
	s.ID = EdgeID(n.wrap(string(edge.ID)))
	s.StartNode = NodeID(n.wrap(string(edge.StartNode)))
	s.EndNode = NodeID(n.wrap(string(edge.EndNode)))
	return s
}

// visibleEdge strips the namespace in place; e is always a fresh copy from
// the inner engine.
func (n *NamespacedEngine) visibleEdge(e *Edge) *Edge {
	if e != nil {
		e.ID = EdgeID(n.unwrap(string(e.ID)))
		e.StartNode = NodeID(n.unwrap(string(e.StartNode)))
		e.EndNode = NodeID(n.unwrap(string(e.EndNode)))
	}
	return e
}

func (n *NamespacedEngine) CreateNode(node *Node) error {
	return n.BulkCreateNodes([]*Node{node})
}

func (n *NamespacedEngine) CreateEdge(edge *Edge) error {
	return n.BulkCreateEdges([]*Edge{edge})
}

func (n *NamespacedEngine) GetNode(id NodeID) (*Node, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	node, err := n.inner.GetNode(NodeID(n.wrap(string(id))))
	if err != nil {
		return nil, err
	}
	node.ID = id
	return node, nil
}

func (n *NamespacedEngine) BulkCreateNodes(nodes []*Node) error {
	stored := make([]*Node, 0, len(nodes))
	for _, node := range nodes {
		if err := node.validate(); err != nil {
			return err
		}
		stored = append(stored, n.storedNode(node))
	}
	return n.inner.BulkCreateNodes(stored)
}

func (n *NamespacedEngine) BulkCreateEdges(edges []*Edge) error {
	stored := make([]*Edge, 0, len(edges))
	for _, edge := range edges {
		if err := edge.validate(); err != nil {
			return err
		}
		stored = append(stored, n.storedEdge(edge))
	}
	return n.inner.BulkCreateEdges(stored)
}

func (n *NamespacedEngine) StreamOutgoingEdges(ctx context.Context, nodeID NodeID) iter.Seq2[*Edge, error] {
	if nodeID == "" {
		return errSeq(ErrInvalidID)
	}
	return n.unwrapSeq(n.inner.StreamOutgoingEdges(ctx, NodeID(n.wrap(string(nodeID)))))
}

func (n *NamespacedEngine) StreamIncomingEdges(ctx context.Context, nodeID NodeID) iter.Seq2[*Edge, error] {
	if nodeID == "" {
		return errSeq(ErrInvalidID)
	}
	return n.unwrapSeq(n.inner.StreamIncomingEdges(ctx, NodeID(n.wrap(string(nodeID)))))
}

func (n *NamespacedEngine) unwrapSeq(seq iter.Seq2[*Edge, error]) iter.Seq2[*Edge, error] {
	return func(yield func(*Edge, error) bool) {
		for e, err := range seq {
			if !yield(n.visibleEdge(e), err) || err != nil {
				return
			}
		}
	}
}

// Close closes the inner engine. When several namespaces share it, close the
// inner engine directly instead.
func (n *NamespacedEngine) Close() error {
	return n.inner.Close()
}

var _ StreamingEngine = (*NamespacedEngine)(nil)
