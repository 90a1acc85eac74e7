// Package config loads the immutable per-run configuration for the
// incremental cross-indexing engine.
package config

import (
	"flag"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config is the immutable configuration injected at run start (spec §6).
type Config struct {
	DatabaseURL string

	SplitterCachePath string

	BatchLineBudget     int
	AdjacencyThreshold  int
	SplitterRetries     int
	SplitterConcurrency int
	SplitterRPS         float64
	SplitterBurst       int
	CPUWorkers          int
	MatcherThreshold    float64

	SplitterProvider   string
	SplitterFixtureDir string
	GeminiAPIKey       string
	GeminiModel        string
	GroqAPIKey         string
	GroqModel          string
}

// Load reads configuration from flags, .env, and environment variables,
// in that order of increasing precedence, following the teacher's
// flag+godotenv+env-override pattern.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbURL := flag.String("database-url", "", "postgres connection string (empty selects the file-backed store)")
	budget := flag.Int("batch-line-budget", 5000, "maximum lines per splitter batch")
	adjacency := flag.Int("adjacency-threshold", 3, "line-gap merging threshold for re-analysis ranges")
	retries := flag.Int("splitter-retries", 3, "maximum splitter attempts on transient failure")
	concurrency := flag.Int("splitter-concurrency", 2, "maximum concurrent splitter calls")
	rps := flag.Float64("splitter-rps", 0, "maximum splitter requests per second (0 = unlimited)")
	burst := flag.Int("splitter-burst", 1, "token bucket burst capacity for splitter-rps")
	cpuWorkers := flag.Int("cpu-workers", 0, "worker-pool size for per-file reconcile (0 = runtime.NumCPU)")
	matcherThreshold := flag.Float64("matcher-threshold", 0.5, "minimum similarity score accepted as a match")
	cachePath := flag.String("splitter-cache-path", ".connectgraph-cache", "directory for the on-disk splitter result cache")
	flag.Parse()

	cfg := &Config{
		DatabaseURL:         firstNonEmpty(strings.TrimSpace(os.Getenv("CONNECTGRAPH_DATABASE_URL")), *dbURL),
		SplitterCachePath:   firstNonEmpty(strings.TrimSpace(os.Getenv("CONNECTGRAPH_SPLITTER_CACHE_PATH")), *cachePath),
		BatchLineBudget:     envIntOr("CONNECTGRAPH_BATCH_LINE_BUDGET", *budget),
		AdjacencyThreshold:  envIntOr("CONNECTGRAPH_ADJACENCY_THRESHOLD", *adjacency),
		SplitterRetries:     envIntOr("CONNECTGRAPH_SPLITTER_RETRIES", *retries),
		SplitterConcurrency: envIntOr("CONNECTGRAPH_SPLITTER_CONCURRENCY", *concurrency),
		SplitterRPS:         envFloatOr("CONNECTGRAPH_SPLITTER_RPS", *rps),
		SplitterBurst:       envIntOr("CONNECTGRAPH_SPLITTER_BURST", *burst),
		CPUWorkers:          envIntOr("CONNECTGRAPH_CPU_WORKERS", *cpuWorkers),
		MatcherThreshold:    envFloatOr("CONNECTGRAPH_MATCHER_THRESHOLD", *matcherThreshold),
		SplitterProvider:    firstNonEmpty(strings.TrimSpace(os.Getenv("CONNECTGRAPH_SPLITTER_PROVIDER")), "gemini"),
		SplitterFixtureDir:  firstNonEmpty(strings.TrimSpace(os.Getenv("CONNECTGRAPH_SPLITTER_FIXTURE_DIR")), "testdata/splitter-fixtures"),
		GeminiAPIKey:        strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiModel:         firstNonEmpty(strings.TrimSpace(os.Getenv("GEMINI_MODEL")), "gemini-2.0-flash"),
		GroqAPIKey:          strings.TrimSpace(os.Getenv("GROQ_API_KEY")),
		GroqModel:           firstNonEmpty(strings.TrimSpace(os.Getenv("GROQ_MODEL")), "llama-3.3-70b-versatile"),
	}

	if cfg.BatchLineBudget <= 0 {
		cfg.BatchLineBudget = 5000
	}
	if cfg.AdjacencyThreshold < 0 {
		cfg.AdjacencyThreshold = 3
	}
	if cfg.SplitterRetries <= 0 {
		cfg.SplitterRetries = 3
	}
	if cfg.SplitterConcurrency <= 0 {
		cfg.SplitterConcurrency = 2
	}
	if cfg.CPUWorkers <= 0 {
		cfg.CPUWorkers = runtime.NumCPU()
	}
	if cfg.MatcherThreshold <= 0 {
		cfg.MatcherThreshold = 0.5
	}

	return cfg, nil
}

func envIntOr(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloatOr(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
