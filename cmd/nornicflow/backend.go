package main

import (
	"context"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/orneryd/nornicflow/pkg/config"
	"github.com/orneryd/nornicflow/pkg/graph"
	"github.com/orneryd/nornicflow/pkg/graph/pggraph"
	"github.com/orneryd/nornicflow/pkg/storage"
)

// backend is the graph the CLI runs against plus what it needs to load data
// into it and shut it down.
type backend struct {
	engine storage.StreamingEngine
	pg     *pggraph.Graph
	pool   *pgxpool.Pool
	graph  graph.Graph
}

func openBackend(ctx context.Context, cfg *config.Config, logger *logrus.Logger, namespace string) (*backend, error) {
	if cfg.Storage.Engine == config.EnginePostgres {
		if namespace != "" {
			return nil, fmt.Errorf("namespaces are not supported by the postgres engine")
		}
		pool, err := pggraph.Open(ctx, cfg.Storage.PostgresURL)
		if err != nil {
			return nil, err
		}
		g := pggraph.New(pool)
		if err := g.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return &backend{pg: g, pool: pool, graph: g}, nil
	}

	engine, err := openEngine(cfg, logger)
	if err != nil {
		return nil, err
	}
	if namespace != "" {
		engine = storage.NewNamespacedEngine(engine, namespace)
	}
	return &backend{engine: engine, graph: graph.NewStorageGraph(engine)}, nil
}

func openEngine(cfg *config.Config, logger *logrus.Logger) (storage.StreamingEngine, error) {
	if cfg.Storage.Engine == config.EngineMemory {
		return storage.NewMemoryEngine(), nil
	}

	opts := storage.BadgerOptions{
		DataDir:    cfg.Storage.DataDir,
		InMemory:   cfg.Storage.InMemory,
		SyncWrites: cfg.Storage.SyncWrites,
	}
	if logger.IsLevelEnabled(logrus.DebugLevel) {
		opts.Logger = logger
	}
	if cfg.Storage.EncryptionPassword != "" {
		if cfg.Storage.InMemory {
			return nil, fmt.Errorf("encryption requires an on-disk badger engine")
		}
		salt, err := storage.LoadOrCreateSalt(cfg.Storage.DataDir)
		if err != nil {
			return nil, err
		}
		key, err := storage.DeriveEncryptionKey(cfg.Storage.EncryptionPassword, salt)
		if err != nil {
			return nil, err
		}
		opts.EncryptionKey = key
	}
	engine, err := storage.NewBadgerEngineWithOptions(opts)
	if err != nil {
		return nil, err
	}
	return engine, nil
}

func (b *backend) Graph() graph.Graph { return b.graph }

// Load reads a Neo4j JSON export into the backend.
func (b *backend) Load(ctx context.Context, r io.Reader) (int, int, error) {
	if b.engine != nil {
		return storage.LoadNeo4jExport(b.engine, r)
	}
	export, err := storage.DecodeNeo4jExport(r)
	if err != nil {
		return 0, 0, err
	}
	nodes, edges := storage.FromNeo4jExport(export)
	if err := b.pg.Import(ctx, nodes, edges); err != nil {
		return 0, 0, err
	}
	return len(nodes), len(edges), nil
}

func (b *backend) Close() {
	if b.engine != nil {
		_ = b.engine.Close()
	}
	if b.pool != nil {
		b.pool.Close()
	}
}
