package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// Storage
	DatabasePath string

	// Auth
	APIKey string

	// Embedding endpoint (OpenAI-compatible). Empty URL disables embedding.
	EmbeddingURL    string
	EmbeddingAPIKey string
	EmbeddingModel  string
	EmbeddingDim    int
	EmbeddingBatch  int

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration

	// PDF
	PDFFallbackPdftotext bool

	// Page ranges. ContentMaxPages <= 0 scans to the end of the document.
	TOCStartPage     int
	TOCEndPage       int
	ContentStartPage int
	ContentMaxPages  int

	// Outline parsing
	SectionMinNumber int

	// Optional YAML file overriding extraction rules.
	RulesFile string
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8091"),

		DatabasePath: envOr("DATABASE_PATH", "stgrag.db"),

		APIKey: os.Getenv("STGRAG_API_KEY"),

		EmbeddingURL:    os.Getenv("EMBEDDING_URL"),
		EmbeddingAPIKey: os.Getenv("EMBEDDING_API_KEY"),
		EmbeddingModel:  envOr("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingDim:    envInt("EMBEDDING_DIM", 0),
		EmbeddingBatch:  envInt("EMBEDDING_BATCH", 32),

		WorkerCount:  envInt("WORKER_COUNT", 2),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 20),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 104857600), // 100MB

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),

		TOCStartPage:     envInt("TOC_START_PAGE", 3),
		TOCEndPage:       envInt("TOC_END_PAGE", 9),
		ContentStartPage: envInt("CONTENT_START_PAGE", 30),
		ContentMaxPages:  envInt("CONTENT_MAX_PAGES", 50),

		SectionMinNumber: envInt("SECTION_MIN_NUMBER", 100),

		RulesFile: os.Getenv("RULES_FILE"),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 20
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 104857600
	}
	if cfg.EmbeddingBatch <= 0 {
		cfg.EmbeddingBatch = 32
	}
	if cfg.EmbeddingDim < 0 {
		cfg.EmbeddingDim = 0
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}
	if cfg.SectionMinNumber < 0 {
		cfg.SectionMinNumber = 100
	}

	return cfg
}

// Validate checks settings the service cannot run without. The CLI only
// needs the page ranges to be sane, so the API key check is separate.
func (c Config) Validate() error {
	if err := c.ValidateRanges(); err != nil {
		return err
	}
	if c.APIKey == "" {
		return fmt.Errorf("STGRAG_API_KEY is required")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	return nil
}

// ValidateRanges checks the TOC and content page ranges.
func (c Config) ValidateRanges() error {
	if c.TOCStartPage < 1 {
		return fmt.Errorf("TOC_START_PAGE must be >= 1, got %d", c.TOCStartPage)
	}
	if c.TOCEndPage < c.TOCStartPage {
		return fmt.Errorf("TOC_END_PAGE (%d) is before TOC_START_PAGE (%d)", c.TOCEndPage, c.TOCStartPage)
	}
	if c.ContentStartPage < 1 {
		return fmt.Errorf("CONTENT_START_PAGE must be >= 1, got %d", c.ContentStartPage)
	}
	return nil
}

// EmbeddingEnabled reports whether an embedding endpoint is configured.
func (c Config) EmbeddingEnabled() bool {
	return c.EmbeddingURL != ""
}

// ContentEndPage returns the last content page to scan, inclusive, or 0 for
// no limit. The range runs from ContentStartPage to ContentStartPage+ContentMaxPages.
func (c Config) ContentEndPage() int {
	if c.ContentMaxPages <= 0 {
		return 0
	}
	return c.ContentStartPage + c.ContentMaxPages
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
