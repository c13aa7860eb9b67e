// Package main provides the nornicflow CLI entry point.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/orneryd/nornicflow/pkg/config"
	"github.com/orneryd/nornicflow/pkg/dataflow"
	"github.com/orneryd/nornicflow/pkg/graph"
	"github.com/orneryd/nornicflow/pkg/operator"
	"github.com/orneryd/nornicflow/pkg/plan"
	"github.com/orneryd/nornicflow/pkg/record"
)

var (
	version   = "0.1.0"
	commit    = "dev"
	buildTime = "unknown" // Set via ldflags: -X main.buildTime=$(date +%Y%m%d-%H%M%S)
)

// app is the state shared by subcommands once flags are parsed.
type app struct {
	configPath  string
	logLevel    string
	metricsAddr string
	namespace   string

	cfg    *config.Config
	logger *logrus.Logger
	runID  string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "nornicflow",
		Short: "nornicflow - edge expansion over property graphs",
		Long: `nornicflow runs graph traversal plans against a property graph.

Plans are YAML documents of edge_expand and prop_fill steps. Each step is
compiled once into an operator and records stream through the chain lazily.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (default: search nornicflow.yaml, ~/.nornicflow/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&a.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	rootCmd.PersistentFlags().StringVar(&a.namespace, "namespace", "", "Isolate ids under this namespace (memory and badger engines)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "nornicflow v%s (%s) built %s\n", version, commit, buildTime)
		},
	})

	loadCmd := &cobra.Command{
		Use:   "load",
		Short: "Load a Neo4j JSON export into the configured engine",
		RunE:  a.runLoad,
	}
	loadCmd.Flags().String("export", "", "Neo4j JSON export file")
	_ = loadCmd.MarkFlagRequired("export")
	rootCmd.AddCommand(loadCmd)

	expandCmd := &cobra.Command{
		Use:   "expand",
		Short: "Run a plan from one or more start vertices",
		RunE:  a.runExpand,
	}
	expandCmd.Flags().String("plan", "", "Plan file (YAML)")
	expandCmd.Flags().StringSlice("start", nil, "Start vertex id (repeatable)")
	expandCmd.Flags().String("start-tag", "", "Tag the start vertex is stored under (default: first declared tag)")
	expandCmd.Flags().String("export", "", "Load this export into a fresh memory engine instead of the configured one")
	expandCmd.Flags().Int("limit", 0, "Stop after this many output records (0 = all)")
	_ = expandCmd.MarkFlagRequired("plan")
	_ = expandCmd.MarkFlagRequired("start")
	rootCmd.AddCommand(expandCmd)

	return rootCmd
}

func (a *app) setup() error {
	path := a.configPath
	if path == "" {
		path = config.FindConfigFile()
	}
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return err
	}
	config.ApplyEnvVars(cfg)

	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Address = a.metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger
	a.runID = uuid.NewString()
	a.log().WithField("config", cfg.String()).Debug("configuration loaded")
	return nil
}

func (a *app) log() *logrus.Entry {
	return a.logger.WithField("run_id", a.runID)
}

// serveMetrics starts the Prometheus endpoint when enabled and returns a
// function that shuts it down.
func (a *app) serveMetrics() func() {
	if !a.cfg.Metrics.Enabled {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: a.cfg.Metrics.Address, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log().WithError(err).Error("metrics server failed")
		}
	}()
	a.log().WithField("address", a.cfg.Metrics.Address).Info("serving metrics")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func (a *app) runLoad(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	exportPath, _ := cmd.Flags().GetString("export")

	stopMetrics := a.serveMetrics()
	defer stopMetrics()

	b, err := openBackend(ctx, a.cfg, a.logger, a.namespace)
	if err != nil {
		return err
	}
	defer b.Close()

	f, err := os.Open(exportPath)
	if err != nil {
		return fmt.Errorf("failed to open export file: %w", err)
	}
	defer f.Close()

	start := time.Now()
	nodes, edges, err := b.Load(ctx, f)
	if err != nil {
		return err
	}
	a.log().WithFields(logrus.Fields{
		"engine":   a.cfg.Storage.Engine,
		"nodes":    nodes,
		"edges":    edges,
		"duration": time.Since(start).String(),
	}).Info("export loaded")
	fmt.Fprintf(cmd.OutOrStdout(), "loaded %d nodes and %d edges\n", nodes, edges)
	return nil
}

func (a *app) runExpand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	planPath, _ := cmd.Flags().GetString("plan")
	starts, _ := cmd.Flags().GetStringSlice("start")
	startTag, _ := cmd.Flags().GetString("start-tag")
	exportPath, _ := cmd.Flags().GetString("export")
	limit, _ := cmd.Flags().GetInt("limit")

	stopMetrics := a.serveMetrics()
	defer stopMetrics()

	doc, err := plan.LoadFile(planPath)
	if err != nil {
		return err
	}

	cfg := *a.cfg
	if exportPath != "" {
		cfg.Storage.Engine = config.EngineMemory
	}
	b, err := openBackend(ctx, &cfg, a.logger, a.namespace)
	if err != nil {
		return err
	}
	defer b.Close()

	if exportPath != "" {
		f, err := os.Open(exportPath)
		if err != nil {
			return fmt.Errorf("failed to open export file: %w", err)
		}
		_, _, err = b.Load(ctx, f)
		f.Close()
		if err != nil {
			return err
		}
	}

	graph.Register(b.Graph())
	defer graph.Reset()

	tags := doc.TagTable()
	stages, err := operator.Compile(doc, operator.BuildEnv{Tags: tags, Logger: a.logger})
	if err != nil {
		return err
	}

	inputs, err := seedRecords(ctx, b.Graph(), tags, startTag, starts)
	if err != nil {
		return err
	}

	out := bufio.NewWriter(cmd.OutOrStdout())
	defer out.Flush()

	n, err := a.run(ctx, inputs, stages, limit, out)
	if err != nil {
		return err
	}
	a.log().WithFields(logrus.Fields{
		"plan":    planPath,
		"starts":  len(starts),
		"records": n,
	}).Info("expansion finished")
	return nil
}

// seedRecords loads every start vertex and stores it as the head and under
// the start tag.
func seedRecords(ctx context.Context, g graph.Graph, tags *plan.TagTable, startTag string, starts []string) ([]record.Record, error) {
	var tag *record.KeyID
	switch {
	case startTag != "":
		t, err := tags.Resolve(plan.Name(startTag))
		if err != nil {
			return nil, err
		}
		tag = t
	case len(tags.Names()) > 0:
		t, err := tags.Resolve(plan.Name(tags.Names()[0]))
		if err != nil {
			return nil, err
		}
		tag = t
	}

	inputs := make([]record.Record, 0, len(starts))
	for _, id := range starts {
		v, err := g.GetVertex(ctx, graph.ID(id), nil)
		if err != nil {
			return nil, fmt.Errorf("start vertex %s: %w", id, err)
		}
		entry := record.VertexEntry(v)
		r := record.New(entry)
		if tag != nil {
			r = r.Set(tag, entry)
		}
		inputs = append(inputs, r)
	}
	return inputs, nil
}

// run streams one input lazily through the chain, or fans several out over
// the configured worker pool. Output is flushed every BatchSize records.
func (a *app) run(ctx context.Context, inputs []record.Record, stages []dataflow.FlatMapFunction, limit int, out *bufio.Writer) (int, error) {
	n := 0
	emit := func(r record.Record) error {
		if _, err := io.WriteString(out, r.String()+"\n"); err != nil {
			return err
		}
		n++
		if n%a.cfg.Execution.BatchSize == 0 {
			return out.Flush()
		}
		return nil
	}

	if len(inputs) == 1 {
		seq := dataflow.Chain(ctx, dataflow.Source(inputs...), stages...)
		if limit > 0 {
			seq = dataflow.Take(seq, limit)
		}
		for r, err := range seq {
			if err != nil {
				return n, err
			}
			if err := emit(r); err != nil {
				return n, err
			}
		}
		return n, nil
	}

	errLimit := errors.New("limit reached")
	err := dataflow.RunParallel(ctx, inputs, a.cfg.Execution.Workers, func(r record.Record) error {
		if limit > 0 && n >= limit {
			return errLimit
		}
		return emit(r)
	}, stages...)
	if errors.Is(err, errLimit) {
		err = nil
	}
	return n, err
}
