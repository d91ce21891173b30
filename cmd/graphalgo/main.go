package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dd0wney/cluso-graphalgo/pkg/algorithms"
	"github.com/dd0wney/cluso-graphalgo/pkg/config"
	"github.com/dd0wney/cluso-graphalgo/pkg/graph"
	"github.com/dd0wney/cluso-graphalgo/pkg/loading"
	"github.com/dd0wney/cluso-graphalgo/pkg/logging"
	"github.com/dd0wney/cluso-graphalgo/pkg/metrics"
	"github.com/dd0wney/cluso-graphalgo/pkg/store"
	"github.com/dd0wney/cluso-graphalgo/pkg/store/pgstore"
)

type options struct {
	configPath   string
	snapshot     string
	databaseURL  string
	importPath   string
	generatePath string
	algorithm    string
	top          int
	logLevel     string
	metricsOut   string
	timeout      time.Duration
	generate     store.GenerateOptions
}

func parseFlags() options {
	var o options
	o.generate = store.DefaultGenerateOptions()

	flag.StringVar(&o.configPath, "config", "", "YAML file with graph, pageRank and louvain sections")
	flag.StringVar(&o.snapshot, "snapshot", "", "Snapshot file to load the graph from")
	flag.StringVar(&o.databaseURL, "pg", os.Getenv("GRAPHALGO_DATABASE_URL"), "PostgreSQL URL to load the graph from")
	flag.StringVar(&o.importPath, "pg-import", "", "Snapshot file to copy into PostgreSQL before running")
	flag.StringVar(&o.generatePath, "generate-snapshot", "", "Write a generated clustered graph to this snapshot file and exit")
	flag.StringVar(&o.algorithm, "algo", algorithms.AlgorithmPageRank, "Algorithm to run: pagerank or louvain")
	flag.IntVar(&o.top, "top", 0, "Print only the N best PageRank scores (0 prints all)")
	flag.StringVar(&o.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&o.metricsOut, "metrics-out", "", "Write Prometheus metrics to this textfile when done")
	flag.DurationVar(&o.timeout, "timeout", 0, "Cancel the run after this long (0 disables)")
	flag.IntVar(&o.generate.Nodes, "nodes", o.generate.Nodes, "Generated node count")
	flag.IntVar(&o.generate.Relationships, "edges", o.generate.Relationships, "Generated relationship count")
	flag.IntVar(&o.generate.Groups, "groups", o.generate.Groups, "Generated planted communities")
	flag.Int64Var(&o.generate.Seed, "seed", o.generate.Seed, "Generator seed")
	flag.Parse()
	return o
}

func main() {
	opts := parseFlags()
	logger := logging.NewJSONLogger(os.Stderr, logging.ParseLevel(opts.logLevel))
	logging.SetDefaultLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	if err := run(ctx, opts, logger, os.Stdout); err != nil {
		log.Fatalf("graphalgo: %v", err)
	}
}

func run(ctx context.Context, opts options, logger logging.Logger, out io.Writer) error {
	if opts.generatePath != "" {
		return generate(opts, logger)
	}

	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return err
		}
		cfg = *loaded
	}
	// PageRank traverses the graph in its own direction; load it that way.
	if opts.algorithm == algorithms.AlgorithmPageRank {
		cfg.Graph.Direction = cfg.PageRank.GraphDirection().String()
	}
	if key := cfg.Louvain.SeedProperty; opts.algorithm == algorithms.AlgorithmLouvain && key != "" &&
		!slices.Contains(cfg.Graph.NodeProperties, key) {
		cfg.Graph.NodeProperties = append(cfg.Graph.NodeProperties, key)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	reg := metrics.DefaultRegistry()
	scanner, closeStore, err := openStore(ctx, opts, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	loader, err := loading.NewLoader(scanner, cfg.Graph, loading.WithLogger(logger), loading.WithMetrics(reg))
	if err != nil {
		return err
	}
	g, _, err := loader.Load(ctx)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(out)
	switch opts.algorithm {
	case algorithms.AlgorithmPageRank:
		err = runPageRank(ctx, g, cfg.PageRank, opts.top, logger, reg, w)
	case algorithms.AlgorithmLouvain:
		err = runLouvain(ctx, g, cfg.Louvain, logger, reg, w)
	default:
		err = fmt.Errorf("unknown algorithm %q", opts.algorithm)
	}
	if err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if opts.metricsOut != "" {
		reg.UpdateSystemMetrics()
		if err := reg.WriteTextfile(opts.metricsOut); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

func generate(opts options, logger logging.Logger) error {
	s, err := store.Generate(opts.generate)
	if err != nil {
		return err
	}
	defer s.Close()

	info, err := s.WriteSnapshot(opts.generatePath)
	if err != nil {
		return err
	}
	logger.Info("snapshot written",
		logging.Path(opts.generatePath),
		logging.Uint64("nodes", info.Nodes),
		logging.Uint64("relationships", info.Relationships),
		logging.Int64("bytes", info.Bytes))
	return nil
}

// openStore opens the configured record store and returns it with its
// close function.
func openStore(ctx context.Context, opts options, logger logging.Logger) (store.Scanner, func(), error) {
	switch {
	case opts.databaseURL != "":
		pg, err := pgstore.NewPGStore(ctx, opts.databaseURL)
		if err != nil {
			return nil, nil, err
		}
		if opts.importPath != "" {
			src, _, err := store.OpenSnapshot(opts.importPath)
			if err != nil {
				pg.Close()
				return nil, nil, err
			}
			stats, err := pg.Import(ctx, src)
			src.Close()
			if err != nil {
				pg.Close()
				return nil, nil, err
			}
			logger.Info("snapshot imported",
				logging.Path(opts.importPath),
				logging.Int64("nodes", stats.Nodes),
				logging.Int64("relationships", stats.Relationships))
		}
		return pg, func() { pg.Close() }, nil

	case opts.snapshot != "":
		s, info, err := store.OpenSnapshot(opts.snapshot)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("snapshot opened",
			logging.Path(opts.snapshot),
			logging.Uint64("nodes", info.Nodes),
			logging.Uint64("relationships", info.Relationships))
		return s, func() { s.Close() }, nil

	default:
		return nil, nil, errors.New("one of -snapshot or -pg is required")
	}
}

func runPageRank(ctx context.Context, g *graph.Graph, cfg config.PageRankConfig, top int, logger logging.Logger, reg *metrics.Registry, w io.Writer) error {
	pr, err := algorithms.NewPageRank(g, cfg, algorithms.WithLogger(logger), algorithms.WithMetrics(reg))
	if err != nil {
		return err
	}
	result, err := pr.Run(ctx)
	if err != nil {
		return err
	}

	if top > 0 {
		for _, rn := range result.TopNodes(top) {
			fmt.Fprintf(w, "%d\t%s\n", rn.NodeID, formatScore(rn.Score))
		}
		return nil
	}
	result.ForEach(func(id uint64, score float64) bool {
		fmt.Fprintf(w, "%d\t%s\n", id, formatScore(score))
		return true
	})
	return nil
}

func runLouvain(ctx context.Context, g *graph.Graph, cfg config.LouvainConfig, logger logging.Logger, reg *metrics.Registry, w io.Writer) error {
	l, err := algorithms.NewLouvain(g, cfg, algorithms.WithLogger(logger), algorithms.WithMetrics(reg))
	if err != nil {
		return err
	}
	result, err := l.Run(ctx)
	if err != nil {
		return err
	}

	result.ForEach(func(id uint64, community int) bool {
		if history := result.IntermediateCommunities(id); history != nil {
			fmt.Fprintf(w, "%d\t%d\t%s\n", id, community, formatHistory(history))
		} else {
			fmt.Fprintf(w, "%d\t%d\n", id, community)
		}
		return true
	})
	return nil
}

func formatScore(s float64) string {
	return strconv.FormatFloat(s, 'g', -1, 64)
}

func formatHistory(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
