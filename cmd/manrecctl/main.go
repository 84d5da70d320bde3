// Command manrecctl is the operator tool for the manrec recommendation
// service: it fits index artifacts offline and runs ad-hoc ranking queries
// against them.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/inkvine/manrec/internal/config"
	"github.com/inkvine/manrec/internal/domain"
	"github.com/inkvine/manrec/internal/domain/catalog"
	"github.com/inkvine/manrec/internal/domain/rec"
	logpkg "github.com/inkvine/manrec/internal/logger"
	"github.com/inkvine/manrec/internal/metrics"
	"github.com/inkvine/manrec/internal/repository/artifacts"
	openaiEmb "github.com/inkvine/manrec/internal/transport/openai"
	fituc "github.com/inkvine/manrec/internal/usecase/fit"
	recommenduc "github.com/inkvine/manrec/internal/usecase/recommend"
	"github.com/inkvine/manrec/internal/version"
)

func main() {
	app := &cli.App{
		Name:    "manrecctl",
		Usage:   "Operator tooling for the manrec recommendation service",
		Version: version.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env",
				Usage: "Config environment name (local, dev, prod)",
				Value: config.GetEnv(),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "fit",
				Usage:  "Fit both indices from a catalog snapshot and save the artifacts",
				Action: fitCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "snapshot",
						Usage: "Catalog snapshot path (overrides config)",
					},
					&cli.StringFlag{
						Name:  "artifacts-dir",
						Usage: "Artifact output directory (overrides config)",
					},
				},
			},
			{
				Name:      "query",
				Usage:     "Rank the catalog against a query using saved artifacts",
				ArgsUsage: "<query>",
				Action:    queryCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Number of results to print",
						Value:   10,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print results as JSON",
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// loadEnv reads config for the chosen environment and builds a logger.
func loadEnv(c *cli.Context) (config.Config, *zap.Logger, error) {
	env := c.String("env")
	cfg, err := config.Load(env)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("create logger: %w", err)
	}
	return cfg, logger, nil
}

func fitCommand(c *cli.Context) error {
	cfg, logger, err := loadEnv(c)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if path := c.String("snapshot"); path != "" {
		cfg.Catalog.SnapshotPath = path
	}
	if dir := c.String("artifacts-dir"); dir != "" {
		cfg.Artifacts.Dir = dir
	}

	metrics.RegisterEmbeddingMetrics()

	cat, err := catalog.LoadStore(cfg.Catalog.SnapshotPath)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Catalog: %s (%d entries)\n", cfg.Catalog.SnapshotPath, cat.Len())

	embedder := newEmbedder(cfg, cfg.Embedding.DocumentInstruction, logger)

	fitSvc := fituc.New(fituc.Config{
		Embedder:  domain.AsBatchEmbedder(embedder),
		Artifacts: artifacts.New(cfg.Artifacts.Dir, logger),
		BatchSize: cfg.Embedding.BatchSize,
		Workers:   cfg.Embedding.FitWorkers,
		Logger:    logger,
	})

	dix, vec, err := fitSvc.Fit(context.Background(), cat)
	if err != nil {
		return fmt.Errorf("fit: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Dense index: %d rows x %d dims\n", dix.Len(), dix.Dims())
	fmt.Fprintf(os.Stderr, "Sparse index: %d rows, %d terms\n", vec.Len(), vec.VocabSize())
	fmt.Fprintf(os.Stderr, "Artifacts written to %s\n", cfg.Artifacts.Dir)
	return nil
}

func queryCommand(c *cli.Context) error {
	query := c.Args().First()
	if query == "" {
		return fmt.Errorf("query text is required")
	}

	cfg, logger, err := loadEnv(c)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	metrics.RegisterEmbeddingMetrics()

	cat, err := catalog.LoadStore(cfg.Catalog.SnapshotPath)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	dix, vec, ok, err := artifacts.New(cfg.Artifacts.Dir, logger).Load(cat.Fingerprint())
	if err != nil {
		return fmt.Errorf("load artifacts: %w", err)
	}
	if !ok {
		return fmt.Errorf("no usable artifacts in %s, run %q first", cfg.Artifacts.Dir, "manrecctl fit")
	}

	embedder := newEmbedder(cfg, cfg.Embedding.QueryInstruction, logger)
	svc := recommenduc.New(cat, dix, vec, embedder, rankerWeights(cfg.Ranker))

	results, err := svc.Recommend(context.Background(), rec.New(query, c.Int("top-k")))
	if err != nil {
		return fmt.Errorf("recommend: %w", err)
	}

	if c.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	for i, r := range results {
		fmt.Printf("%2d. %-40s score=%.4f dense=%.4f sparse=%.4f boost=%.1f  %s\n",
			i+1, r.Entry.Title, r.Score, r.DenseScore, r.SparseScore, r.TitleBoost, r.Reason)
	}
	return nil
}

func rankerWeights(cfg config.RankerConfig) recommenduc.Weights {
	return recommenduc.Weights{
		Dense:            cfg.DenseWeight,
		Sparse:           cfg.SparseWeight,
		DirectTitleBoost: cfg.DirectTitleBoost,
		TitleTokenBoost:  cfg.KeywordTitleBoost,
		KeywordThreshold: cfg.KeywordThreshold,
		CandidatePool:    cfg.CandidatePool,
		TitleTokenMinLen: cfg.TitleTokenMinLen,
	}
}

func newEmbedder(cfg config.Config, instruction string, logger *zap.Logger) domain.Embedder {
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})
	if instruction != "" {
		return domain.NewInstructionEmbedder(base, instruction)
	}
	return base
}
