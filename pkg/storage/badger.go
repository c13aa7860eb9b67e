package storage

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"iter"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// Key layout. Adjacency keys are kind + node id + 0x00 + edge id with an
// empty value, so a node's edges are one prefix scan in edge id order.
const (
	kindNode byte = 0x01
	kindEdge byte = 0x02
	kindOut  byte = 0x04
	kindIn   byte = 0x05
)

func init() {
	// Property values are gob-encoded behind interfaces.
	gob.Register(map[string]any{})
	gob.Register([]any{})
}

// BadgerOptions configures a BadgerEngine.
type BadgerOptions struct {
	// DataDir is ignored when InMemory is set.
	DataDir  string
	InMemory bool

	SyncWrites bool

	// EncryptionKey turns on encryption at rest. It must be 16, 24 or 32
	// bytes; DeriveEncryptionKey produces one from a password.
	EncryptionKey []byte

	// Logger receives Badger's own log output. Nil silences it.
	Logger badger.Logger
}

// BadgerEngine stores the graph in BadgerDB. Writes run in one update
// transaction per call; each adjacency stream reads from its own snapshot.
type BadgerEngine struct {
	db *badger.DB

	mu     sync.RWMutex
	closed bool
}

// NewBadgerEngine opens or creates an engine in dataDir.
func NewBadgerEngine(dataDir string) (*BadgerEngine, error) {
	return NewBadgerEngineWithOptions(BadgerOptions{DataDir: dataDir})
}

// NewBadgerEngineInMemory opens an engine that persists nothing.
func NewBadgerEngineInMemory() (*BadgerEngine, error) {
	return NewBadgerEngineWithOptions(BadgerOptions{InMemory: true})
}

func NewBadgerEngineWithOptions(opts BadgerOptions) (*BadgerEngine, error) {
	bopts := badger.DefaultOptions(opts.DataDir).
		WithSyncWrites(opts.SyncWrites).
		WithLogger(opts.Logger)
	if opts.InMemory {
		bopts = bopts.WithInMemory(true).WithDir("").WithValueDir("")
	}
	if n := len(opts.EncryptionKey); n > 0 {
		if n != 16 && n != 24 && n != 32 {
			return nil, fmt.Errorf("encryption key must be 16, 24, or 32 bytes (got %d bytes)", n)
		}
		// Badger refuses encryption without an index cache.
		bopts = bopts.WithEncryptionKey(opts.EncryptionKey).WithIndexCacheSize(32 << 20)
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}
	return &BadgerEngine{db: db}, nil
}

func key(kind byte, id string) []byte {
	k := make([]byte, 0, 1+len(id))
	k = append(k, kind)
	return append(k, id...)
}

func adjacencyPrefix(kind byte, node NodeID) []byte {
	return append(key(kind, string(node)), 0x00)
}

func adjacencyKey(kind byte, node NodeID, edge EdgeID) []byte {
	return append(adjacencyPrefix(kind, node), string(edge)...)
}

func edgeIDOf(adjKey, prefix []byte) EdgeID {
	return EdgeID(adjKey[len(prefix):])
}

func gobEncode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// load reads and decodes the value at k into out.
func load(txn *badger.Txn, k []byte, out any) error {
	item, err := txn.Get(k)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return gob.NewDecoder(bytes.NewReader(val)).Decode(out)
	})
}

func present(txn *badger.Txn, k []byte) (bool, error) {
	_, err := txn.Get(k)
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

func (b *BadgerEngine) checkOpen() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrStorageClosed
	}
	return nil
}

func (b *BadgerEngine) CreateNode(node *Node) error {
	return b.BulkCreateNodes([]*Node{node})
}

func (b *BadgerEngine) CreateEdge(edge *Edge) error {
	return b.BulkCreateEdges([]*Edge{edge})
}

func (b *BadgerEngine) GetNode(id NodeID) (*Node, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	if err := b.checkOpen(); err != nil {
		return nil, err
	}
	var node Node
	err := b.db.View(func(txn *badger.Txn) error {
		return load(txn, key(kindNode, string(id)), &node)
	})
	if err != nil {
		return nil, err
	}
	return &node, nil
}

// BulkCreateNodes writes all nodes in one transaction.
func (b *BadgerEngine) BulkCreateNodes(nodes []*Node) error {
	for _, node := range nodes {
		if err := node.validate(); err != nil {
			return err
		}
	}
	if err := b.checkOpen(); err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		for _, node := range nodes {
			if err := insertNode(txn, node); err != nil {
				return fmt.Errorf("node %s: %w", node.ID, err)
			}
		}
		return nil
	})
}

// BulkCreateEdges writes all edges and their adjacency keys in one
// transaction.
func (b *BadgerEngine) BulkCreateEdges(edges []*Edge) error {
	for _, edge := range edges {
		if err := edge.validate(); err != nil {
			return err
		}
	}
	if err := b.checkOpen(); err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		for _, edge := range edges {
			if err := insertEdge(txn, edge); err != nil {
				return fmt.Errorf("edge %s: %w", edge.ID, err)
			}
		}
		return nil
	})
}

func insertNode(txn *badger.Txn, node *Node) error {
	k := key(kindNode, string(node.ID))
	if taken, err := present(txn, k); err != nil || taken {
		return cmpErr(err, ErrAlreadyExists)
	}
	data, err := gobEncode(node)
	if err != nil {
		return fmt.Errorf("failed to encode node: %w", err)
	}
	return txn.Set(k, data)
}

func insertEdge(txn *badger.Txn, edge *Edge) error {
	k := key(kindEdge, string(edge.ID))
	if taken, err := present(txn, k); err != nil || taken {
		return cmpErr(err, ErrAlreadyExists)
	}
	for _, end := range [2]NodeID{edge.StartNode, edge.EndNode} {
		if ok, err := present(txn, key(kindNode, string(end))); err != nil || !ok {
			return cmpErr(err, ErrInvalidEdge)
		}
	}

	data, err := gobEncode(edge)
	if err != nil {
		return fmt.Errorf("failed to encode edge: %w", err)
	}
	if err := txn.Set(k, data); err != nil {
		return err
	}
	if err := txn.Set(adjacencyKey(kindOut, edge.StartNode, edge.ID), []byte{}); err != nil {
		return err
	}
	return txn.Set(adjacencyKey(kindIn, edge.EndNode, edge.ID), []byte{})
}

// cmpErr prefers a lookup failure over the sentinel.
func cmpErr(lookup, sentinel error) error {
	if lookup != nil {
		return lookup
	}
	return sentinel
}

func (b *BadgerEngine) StreamOutgoingEdges(ctx context.Context, nodeID NodeID) iter.Seq2[*Edge, error] {
	return b.stream(ctx, kindOut, nodeID)
}

func (b *BadgerEngine) StreamIncomingEdges(ctx context.Context, nodeID NodeID) iter.Seq2[*Edge, error] {
	return b.stream(ctx, kindIn, nodeID)
}

// stream scans one adjacency prefix inside a read transaction that is opened
// when ranging starts and discarded when the range ends, early or not.
func (b *BadgerEngine) stream(ctx context.Context, kind byte, nodeID NodeID) iter.Seq2[*Edge, error] {
	if nodeID == "" {
		return errSeq(ErrInvalidID)
	}
	prefix := adjacencyPrefix(kind, nodeID)

	return func(yield func(*Edge, error) bool) {
		if err := b.checkOpen(); err != nil {
			yield(nil, err)
			return
		}
		txn := b.db.NewTransaction(false)
		defer txn.Discard()

		iopts := badger.DefaultIteratorOptions
		iopts.PrefetchValues = false
		iopts.Prefix = prefix
		it := txn.NewIterator(iopts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			var edge Edge
			err := load(txn, key(kindEdge, string(edgeIDOf(it.Item().Key(), prefix))), &edge)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(&edge, nil) {
				return
			}
		}
	}
}

// Close closes the database. Streams still being ranged over must finish
// first. Closing twice is a no-op.
func (b *BadgerEngine) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.db.Close()
}

var _ StreamingEngine = (*BadgerEngine)(nil)
