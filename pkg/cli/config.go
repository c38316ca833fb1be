package cli

import (
	"context"
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sribot/pkg/adapter"
	"github.com/m-mizutani/sribot/pkg/catalog"
	"github.com/m-mizutani/sribot/pkg/docindex"
	"github.com/m-mizutani/sribot/pkg/memory"
	"github.com/m-mizutani/sribot/pkg/repository"
	"github.com/m-mizutani/sribot/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// config holds configuration values
type config struct {
	// Logging
	logLevel  string
	logFormat string

	// LLM
	geminiAPIKey    string
	geminiProject   string
	geminiLocation  string
	generativeModel string
	embeddingModel  string
	embeddingDim    int64
	embeddingCache  int64

	// Memory store
	memoryBackend     string
	memoryPath        string
	firestoreProject  string
	firestoreDatabase string

	// Document index
	documentPath string

	// Catalog
	catalogBackend   string
	sqlitePath       string
	catalogSeed      string
	bigqueryProject  string
	bigqueryDataset  string
	bigqueryLocation string

	// Blob storage
	storageBucket string
	storagePrefix string
	storageDir    string

	// HTTP server
	addr          string
	baseURL       string
	maxUploadSize int64

	// Agent
	maxRounds    int64
	roundTimeout time.Duration
	toolTimeout  time.Duration
	policyDir    string
	mcpConfig    string

	// Optional tools
	weatherAPIKey string
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("SRIBOT_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format (console, json)",
			Value:       "console",
			Sources:     cli.EnvVars("SRIBOT_LOG_FORMAT"),
			Destination: &cfg.logFormat,
		},
	}
}

// llmFlags returns flags for LLM-related configuration with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-api-key",
			Usage:       "Gemini API key (Gemini API backend)",
			Sources:     cli.EnvVars("GEMINI_API_KEY"),
			Destination: &cfg.geminiAPIKey,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini (Vertex AI backend)",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "gemini-model",
			Usage:       "Generative model name",
			Value:       "gemini-2.5-flash",
			Sources:     cli.EnvVars("GEMINI_MODEL"),
			Destination: &cfg.generativeModel,
		},
		&cli.StringFlag{
			Name:        "embedding-model",
			Usage:       "Embedding model name",
			Value:       "gemini-embedding-001",
			Sources:     cli.EnvVars("GEMINI_EMBEDDING_MODEL"),
			Destination: &cfg.embeddingModel,
		},
		embeddingDimFlag(cfg),
		&cli.IntFlag{
			Name:        "embedding-cache",
			Usage:       "Number of embeddings kept in the in-process cache (0 disables)",
			Value:       10000,
			Sources:     cli.EnvVars("SRIBOT_EMBEDDING_CACHE"),
			Destination: &cfg.embeddingCache,
		},
	}
}

func embeddingDimFlag(cfg *config) cli.Flag {
	return &cli.IntFlag{
		Name:        "embedding-dim",
		Usage:       "Embedding dimensionality",
		Value:       768,
		Sources:     cli.EnvVars("SRIBOT_EMBEDDING_DIM"),
		Destination: &cfg.embeddingDim,
	}
}

// memoryFlags returns flags for the memory store
func memoryFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "memory-backend",
			Usage:       "Memory store backend (memory, chromem, firestore)",
			Value:       "chromem",
			Sources:     cli.EnvVars("SRIBOT_MEMORY_BACKEND"),
			Destination: &cfg.memoryBackend,
		},
		&cli.StringFlag{
			Name:        "memory-path",
			Usage:       "Directory of the chromem memory database (empty keeps it in memory)",
			Value:       "data/memory",
			Sources:     cli.EnvVars("SRIBOT_MEMORY_PATH"),
			Destination: &cfg.memoryPath,
		},
		&cli.StringFlag{
			Name:        "firestore-project",
			Usage:       "Google Cloud project ID of Firestore",
			Sources:     cli.EnvVars("FIRESTORE_PROJECT_ID", "GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.firestoreProject,
		},
		&cli.StringFlag{
			Name:        "firestore-database",
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.firestoreDatabase,
		},
	}
}

// documentFlags returns flags for the document index
func documentFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "document-path",
			Usage:       "Directory of the document index",
			Value:       "data/documents",
			Sources:     cli.EnvVars("SRIBOT_DOCUMENT_PATH"),
			Destination: &cfg.documentPath,
		},
	}
}

// catalogFlags returns flags for the UMKM catalog
func catalogFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "catalog-backend",
			Usage:       "Catalog backend (sqlite, bigquery)",
			Value:       "sqlite",
			Sources:     cli.EnvVars("SRIBOT_CATALOG_BACKEND"),
			Destination: &cfg.catalogBackend,
		},
		&cli.StringFlag{
			Name:        "sqlite-path",
			Usage:       "Path of the SQLite catalog database",
			Value:       "data/catalog.db",
			Sources:     cli.EnvVars("SRIBOT_SQLITE_PATH"),
			Destination: &cfg.sqlitePath,
		},
		&cli.StringFlag{
			Name:        "catalog-seed",
			Usage:       "YAML file loaded into the SQLite catalog at startup",
			Sources:     cli.EnvVars("SRIBOT_CATALOG_SEED"),
			Destination: &cfg.catalogSeed,
		},
		&cli.StringFlag{
			Name:        "bigquery-project",
			Usage:       "Google Cloud project ID of the BigQuery catalog",
			Sources:     cli.EnvVars("BIGQUERY_PROJECT_ID", "GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.bigqueryProject,
		},
		&cli.StringFlag{
			Name:        "bigquery-dataset",
			Usage:       "BigQuery dataset holding UMKM_Profile and Product",
			Sources:     cli.EnvVars("BIGQUERY_DATASET"),
			Destination: &cfg.bigqueryDataset,
		},
		&cli.StringFlag{
			Name:        "bigquery-location",
			Usage:       "BigQuery location",
			Sources:     cli.EnvVars("BIGQUERY_LOCATION"),
			Destination: &cfg.bigqueryLocation,
		},
	}
}

// storageFlags returns flags for blob storage (uploads and sessions)
func storageFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "storage-bucket",
			Usage:       "Cloud Storage bucket; when empty files are kept under --storage-dir",
			Sources:     cli.EnvVars("SRIBOT_STORAGE_BUCKET"),
			Destination: &cfg.storageBucket,
		},
		&cli.StringFlag{
			Name:        "storage-prefix",
			Usage:       "Object prefix in the Cloud Storage bucket",
			Sources:     cli.EnvVars("SRIBOT_STORAGE_PREFIX"),
			Destination: &cfg.storagePrefix,
		},
		&cli.StringFlag{
			Name:        "storage-dir",
			Usage:       "Local directory for uploads and sessions",
			Value:       "data",
			Sources:     cli.EnvVars("SRIBOT_STORAGE_DIR"),
			Destination: &cfg.storageDir,
		},
	}
}

// serverFlags returns flags for the HTTP server
func serverFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Listen address",
			Value:       ":8000",
			Sources:     cli.EnvVars("SRIBOT_ADDR"),
			Destination: &cfg.addr,
		},
		&cli.StringFlag{
			Name:        "base-url",
			Usage:       "Public base URL used to build image URLs",
			Value:       "http://localhost:8000",
			Sources:     cli.EnvVars("SRIBOT_BASE_URL"),
			Destination: &cfg.baseURL,
		},
		&cli.IntFlag{
			Name:        "max-upload-size",
			Usage:       "Maximum image upload size in bytes",
			Value:       5 * 1024 * 1024,
			Sources:     cli.EnvVars("SRIBOT_MAX_UPLOAD_SIZE"),
			Destination: &cfg.maxUploadSize,
		},
	}
}

// agentFlags returns flags for the reasoning loop
func agentFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "max-rounds",
			Usage:       "Maximum tool rounds per message",
			Value:       10,
			Sources:     cli.EnvVars("SRIBOT_MAX_ROUNDS"),
			Destination: &cfg.maxRounds,
		},
		&cli.DurationFlag{
			Name:        "round-timeout",
			Usage:       "Timeout of one model call",
			Value:       60 * time.Second,
			Sources:     cli.EnvVars("SRIBOT_ROUND_TIMEOUT"),
			Destination: &cfg.roundTimeout,
		},
		&cli.DurationFlag{
			Name:        "tool-timeout",
			Usage:       "Timeout of one tool call",
			Value:       30 * time.Second,
			Sources:     cli.EnvVars("SRIBOT_TOOL_TIMEOUT"),
			Destination: &cfg.toolTimeout,
		},
		&cli.StringFlag{
			Name:        "policy-dir",
			Usage:       "Directory of Rego tool policies (package tool)",
			Sources:     cli.EnvVars("SRIBOT_POLICY_DIR"),
			Destination: &cfg.policyDir,
		},
		&cli.StringFlag{
			Name:        "mcp-config",
			Usage:       "YAML file listing MCP servers whose tools are added",
			Sources:     cli.EnvVars("SRIBOT_MCP_CONFIG"),
			Destination: &cfg.mcpConfig,
		},
		&cli.StringFlag{
			Name:        "weather-api-key",
			Usage:       "OpenWeatherMap API key; enables get_weather when set",
			Sources:     cli.EnvVars("WEATHER_API_KEY"),
			Destination: &cfg.weatherAPIKey,
		},
	}
}

// initLogger configures the default logger and returns a context carrying it
func (cfg *config) initLogger(ctx context.Context) context.Context {
	logger := logging.New(cfg.logLevel, os.Stderr, logging.WithFormat(logging.ParseFormat(cfg.logFormat)))
	logging.SetDefault(logger)
	return logging.With(ctx, logger)
}

// newGemini creates the Gemini adapter wrapped in a circuit breaker
func (cfg *config) newGemini(ctx context.Context) (adapter.Gemini, error) {
	opts := []adapter.GeminiOption{
		adapter.WithGenerativeModel(cfg.generativeModel),
		adapter.WithEmbeddingModel(cfg.embeddingModel),
	}
	switch {
	case cfg.geminiAPIKey != "":
		opts = append(opts, adapter.WithAPIKey(cfg.geminiAPIKey))
	case cfg.geminiProject != "":
		if cfg.geminiLocation == "" {
			return nil, goerr.New("gemini-location is required")
		}
		opts = append(opts, adapter.WithVertexAI(cfg.geminiProject, cfg.geminiLocation))
	default:
		return nil, goerr.New("gemini-api-key or gemini-project is required")
	}

	client, err := adapter.NewGemini(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return adapter.WithCircuitBreaker(client, adapter.DefaultBreakerConfig()), nil
}

// newEmbedder creates the Gemini embedder, cached when embedding-cache > 0.
// The returned func releases the cache.
func (cfg *config) newEmbedder(gemini adapter.Gemini) (memory.Embedder, func(), error) {
	if cfg.embeddingDim <= 0 {
		return nil, nil, goerr.New("embedding-dim must be positive", goerr.V("embedding_dim", cfg.embeddingDim))
	}

	embedder := memory.NewGeminiEmbedder(gemini, int(cfg.embeddingDim))
	if cfg.embeddingCache <= 0 {
		return embedder, func() {}, nil
	}

	cached, err := memory.NewCachedEmbedder(embedder, cfg.embeddingCache)
	if err != nil {
		return nil, nil, err
	}
	return cached, cached.Close, nil
}

// newMemoryRepository creates the memory store selected by memory-backend
func (cfg *config) newMemoryRepository(ctx context.Context) (repository.MemoryRepository, error) {
	switch cfg.memoryBackend {
	case "memory":
		return repository.NewMemory(), nil
	case "chromem":
		return repository.NewChromem(cfg.memoryPath, int(cfg.embeddingDim))
	case "firestore":
		if cfg.firestoreProject == "" {
			return nil, goerr.New("firestore-project is required for the firestore backend")
		}
		return repository.NewFirestore(ctx, cfg.firestoreProject, cfg.firestoreDatabase)
	default:
		return nil, goerr.New("unknown memory backend", goerr.V("backend", cfg.memoryBackend))
	}
}

// newDocumentIndex opens the document index
func (cfg *config) newDocumentIndex(embedder memory.Embedder) (*docindex.Index, error) {
	return docindex.Open(cfg.documentPath, embedder)
}

// newCatalog creates the catalog selected by catalog-backend
func (cfg *config) newCatalog(ctx context.Context) (catalog.Catalog, error) {
	switch cfg.catalogBackend {
	case "sqlite":
		db, err := catalog.NewSQLite(cfg.sqlitePath)
		if err != nil {
			return nil, err
		}
		if cfg.catalogSeed != "" {
			seed, err := catalog.LoadSeed(cfg.catalogSeed)
			if err != nil {
				_ = db.Close()
				return nil, err
			}
			if err := db.Seed(ctx, seed.UMKM, seed.Products); err != nil {
				_ = db.Close()
				return nil, err
			}
			logging.From(ctx).Info("catalog seeded", "umkm", len(seed.UMKM), "products", len(seed.Products))
		}
		return db, nil

	case "bigquery":
		if cfg.bigqueryProject == "" || cfg.bigqueryDataset == "" {
			return nil, goerr.New("bigquery-project and bigquery-dataset are required for the bigquery backend")
		}
		var opts []adapter.BigQueryOption
		if cfg.bigqueryLocation != "" {
			opts = append(opts, adapter.WithLocation(cfg.bigqueryLocation))
		}
		bq, err := adapter.NewBigQuery(ctx, cfg.bigqueryProject, opts...)
		if err != nil {
			return nil, err
		}
		return catalog.NewBigQuery(bq, cfg.bigqueryDataset), nil

	default:
		return nil, goerr.New("unknown catalog backend", goerr.V("backend", cfg.catalogBackend))
	}
}

// newStorage creates Cloud Storage when a bucket is set, local files otherwise
func (cfg *config) newStorage(ctx context.Context) (adapter.Storage, error) {
	if cfg.storageBucket != "" {
		storage, err := adapter.NewStorage(ctx, cfg.storageBucket, adapter.WithPrefix(cfg.storagePrefix))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create storage")
		}
		return storage, nil
	}
	return adapter.NewFileStorage(cfg.storageDir)
}
