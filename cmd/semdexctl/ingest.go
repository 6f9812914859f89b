package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/semdex-io/semdex/internal/config"
	"github.com/semdex-io/semdex/internal/domain"
	"github.com/semdex-io/semdex/internal/embedding/hash"
	"github.com/semdex-io/semdex/internal/engine"
	"github.com/semdex-io/semdex/internal/index"
	logpkg "github.com/semdex-io/semdex/internal/logger"
	"github.com/semdex-io/semdex/internal/repository/corpus"
	"github.com/semdex-io/semdex/internal/source"
	ollamaEmb "github.com/semdex-io/semdex/internal/transport/ollama"
	openaiEmb "github.com/semdex-io/semdex/internal/transport/openai"
	ingestuc "github.com/semdex-io/semdex/internal/usecase/ingest"
)

func init() {
	rootCmd.AddCommand(ingestCmd)
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Acquire papers, build the index, and persist it",
	Long: `Acquire papers from the sources enabled in the configuration, store
them in the corpus database, build the vector index, and persist the pair
into the data directory.

Runs directly against the data directory; a server started afterwards
loads the persisted index at startup. The configuration file is chosen by
the ENV variable, exactly like the server.`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

// IngestResult is the response for the ingest command.
type IngestResult struct {
	Status           string `json:"status"`
	Fetched          int    `json:"fetched"`
	Accepted         int    `json:"accepted"`
	DocumentsIndexed int    `json:"documents_indexed"`
	DataDir          string `json:"data_dir"`
}

func runIngest(cmd *cobra.Command, _ []string) error {
	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := cmd.Context()

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o750); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	corpusStore, err := corpus.Open(filepath.Join(cfg.Storage.DataDir, "corpus.db"))
	if err != nil {
		return err
	}
	defer corpusStore.Close()

	embedder, err := buildEmbedder(cfg.Embedding, logger)
	if err != nil {
		return err
	}

	ingestSvc, err := ingestuc.New(corpusStore, engine.New(logger), embedder, ingestuc.Config{
		Index: index.Config{
			Dimension:      cfg.Embedding.Dimension,
			MaxElements:    cfg.Index.MaxElements,
			M:              cfg.Index.M,
			EFConstruction: cfg.Index.EFConstruction,
			EFSearch:       cfg.Index.EFSearch,
		},
		BatchSize: cfg.Ingest.BatchSize,
		Workers:   cfg.Ingest.Workers,
		DataDir:   cfg.Storage.DataDir,
	}, logger)
	if err != nil {
		return err
	}

	docs := source.FetchAll(ctx, logger, enabledSources(cfg, logger)...)
	if len(docs) == 0 {
		return fmt.Errorf("no documents acquired; enable at least one source in config/%s.yaml", env)
	}

	accepted, err := ingestSvc.Add(ctx, docs)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	stats, err := corpusStore.All(ctx)
	if err != nil {
		return fmt.Errorf("read corpus: %w", err)
	}

	return printJSON(IngestResult{
		Status:           "ok",
		Fetched:          len(docs),
		Accepted:         accepted,
		DocumentsIndexed: len(stats),
		DataDir:          cfg.Storage.DataDir,
	})
}

// enabledSources assembles the acquisition sources switched on in config.
func enabledSources(cfg config.Config, logger *zap.Logger) []source.Source {
	var sources []source.Source
	if sc := cfg.Ingest.Sources.JSONFile; sc.Enabled {
		sources = append(sources, source.NewJSONFile(sc.Path, logger))
	}
	if sc := cfg.Ingest.Sources.Synthetic; sc.Enabled {
		sources = append(sources, source.NewSynthetic(sc.Count, sc.Seed))
	}
	if sc := cfg.Ingest.Sources.Arxiv; sc.Enabled {
		sources = append(sources, source.NewArxiv(sc.Query, sc.MaxResults, http.DefaultClient, logger))
	}
	return sources
}

// buildEmbedder creates the provider with the document-instruction prefix
// applied, matching the vectors the server indexes under. The CLI embeds
// each text once, so the server's cache and budget decorators would be
// dead weight here.
func buildEmbedder(cfg config.EmbeddingConfig, logger *zap.Logger) (domain.BatchEmbedder, error) {
	base, err := buildProvider(cfg, logger)
	if err != nil {
		return nil, err
	}
	if cfg.DocumentInstruction != "" {
		return domain.NewInstructionEmbedder(base, cfg.DocumentInstruction), nil
	}
	if be, ok := base.(domain.BatchEmbedder); ok {
		return be, nil
	}
	return nil, fmt.Errorf("%w: provider %q has no batch support", domain.ErrConfiguration, cfg.Provider)
}

func buildProvider(cfg config.EmbeddingConfig, logger *zap.Logger) (domain.Embedder, error) {
	switch cfg.Provider {
	case "openai":
		return openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimension,
			Provider:   cfg.Provider,
			Logger:     logger,
		}), nil
	case "ollama":
		return ollamaEmb.NewEmbedder(&ollamaEmb.Config{
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimension,
			Logger:     logger,
		}), nil
	case "hash":
		return hash.New(cfg.Dimension)
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", domain.ErrConfiguration, cfg.Provider)
	}
}
