package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment  string              `toml:"environment"` // "development" or "production"
	Server       ServerConfig        `toml:"server"`
	Storage      StorageConfig       `toml:"storage"`
	Logging      LoggingConfig       `toml:"logging"`
	Agent        AgentConfig         `toml:"agent"`
	Claude       ClaudeConfig        `toml:"claude"`
	Economist    EconomistConfig     `toml:"economist"`
	Retention    RetentionConfig     `toml:"retention"`
	NewsSources  []NewsSourceSeed    `toml:"news_sources"`  // Seeded into storage at startup
	PriceSources []PriceSourceSeed   `toml:"price_sources"` // Seeded into storage at startup
	AssetSeries  []AssetSeriesConfig `toml:"asset_series"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Format     string   `toml:"format"`      // "json" or "text"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05")
}

// AgentConfig contains the aggregation run and loop settings
type AgentConfig struct {
	LoopIntervalMinutes    int    `toml:"loop_interval_minutes"`      // News run cadence in run-forever mode (minimum effective interval 60s)
	PriceLoopSeconds       int    `toml:"price_loop_seconds"`         // Price sync cadence in run-forever mode (minimum 5s)
	RunForeverEnabled      bool   `toml:"run_forever_enabled"`        // Start the supervisor loop at boot
	FetchWorkers           int    `toml:"fetch_workers"`              // Max concurrent source fetches (default 8)
	MaxItemsPerSource      int    `toml:"max_items_per_source"`       // Cap on normalized items kept per source per run
	IngestLookbackHours    int    `toml:"ingest_lookback_hours"`      // Reject items older than now minus this window
	MinRelevanceScore      int    `toml:"min_relevance_score"`        // Keyword score floor for ingestion
	LLMFilterEnabled       bool   `toml:"llm_filter_enabled"`         // Gate borderline items through the LLM filter
	LLMBudgetPerRun        int    `toml:"llm_budget_per_run"`         // Filter-call budget per run
	LLMReservedForArticles int    `toml:"llm_reserved_for_articles"`  // Budget floor reserved for card generation
	HourlyBackfillHours    int    `toml:"hourly_backfill_hours"`      // How far back hourly finalization may reach (default 72)
	AggregateBackfill      int    `toml:"aggregate_backfill_periods"` // Due-period cap for day/week/month finalization (default 16)
	ArticlePromptTemplate  string `toml:"article_prompt_template"`    // Placeholders: {period_label} {articles}
	FilterPromptTemplate   string `toml:"filter_prompt_template"`     // Placeholders: {title} {summary} {content} {heuristic_score}
	StaleCardCutoffHours   int    `toml:"stale_card_cutoff_hours"`    // Draft aggregate cards older than this are force-finalized (default 48)
	SkipUnchangedDailyCard bool   `toml:"skip_unchanged_daily_card"`  // Skip regenerating the rolling 24h card when its inputs are unchanged
	SideArticleCount       int    `toml:"side_article_count"`         // Companion articles per card (default 2)
	MaxFallbackHighlights  int    `toml:"max_fallback_highlights"`    // Headlines woven into the deterministic summary (default 4)
	SummaryClipChars       int    `toml:"summary_clip_chars"`         // Card summary clip length (default 600)
	MaxReferences          int    `toml:"max_references"`             // Reference URLs kept per card (default 10)
	MinArticleSentences    int    `toml:"min_article_sentences"`      // Completeness gate (default 4)
	MinArticleWords        int    `toml:"min_article_words"`          // Completeness gate (default 80)
	LLMFilterScoreBuffer   int    `toml:"llm_filter_score_buffer"`    // Heuristic score slack below threshold still sent to the filter (default 2)
	LogClipChars           int    `toml:"log_clip_chars"`             // Stored log payload clip length (default 4000)
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`     // Anthropic API key (ANTHROPIC_API_KEY env also honored)
	Model       string  `toml:"model"`       // Model for generation (default: "claude-3-5-haiku-20241022")
	MaxTokens   int     `toml:"max_tokens"`  // Maximum tokens in response (default: 2048)
	Timeout     string  `toml:"timeout"`     // Operation timeout as duration string (default: "2m")
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0.4)
}

// EconomistConfig controls the second-pass narrative rewrite
type EconomistConfig struct {
	Enabled               bool   `toml:"enabled"`
	SignalsPromptTemplate string `toml:"signals_prompt_template"` // Placeholders: {context} {memory}
	WritingPromptTemplate string `toml:"writing_prompt_template"` // Placeholders: {signals} {memory}
	MemoryTokenLimit      int    `toml:"memory_token_limit"`      // Rolling memory budget, chars kept = 4x this (default 2000)
}

// RetentionConfig controls the cron-scheduled log sweep
type RetentionConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"`  // Cron schedule format (5 fields)
	LogDays  int    `toml:"log_days"`  // Delete agent log events older than this many days
	RunDays  int    `toml:"run_days"`  // Delete finished run records older than this many days
	ItemDays int    `toml:"item_days"` // Delete raw news items older than this many days
}

// NewsSourceSeed defines a news source loaded into storage at startup
type NewsSourceSeed struct {
	Name             string            `toml:"name" validate:"required"`
	Kind             string            `toml:"kind" validate:"required,oneof=rss api"`
	URL              string            `toml:"url" validate:"required,url"`
	Enabled          bool              `toml:"enabled"`
	APIKey           string            `toml:"api_key"`
	APIKeyParam      string            `toml:"api_key_param"`  // Query parameter name for the key
	APIKeyHeader     string            `toml:"api_key_header"` // Header name for the key
	Query            string            `toml:"query"`
	QueryParam       string            `toml:"query_param"`
	Language         string            `toml:"language"`
	LanguageParam    string            `toml:"language_param"`
	Region           string            `toml:"region"`
	RegionParam      string            `toml:"region_param"`
	Topic            string            `toml:"topic"`
	TopicParam       string            `toml:"topic_param"`
	SinceParam       string            `toml:"since_param"`  // Query parameter carrying the since timestamp
	SinceFormat      string            `toml:"since_format"` // "unix" or "rfc3339"
	ExtraParams      map[string]string `toml:"extra_params"`
	RateLimitSeconds int               `toml:"rate_limit_seconds"`
}

// PriceSourceSeed defines a price source loaded into storage at startup
type PriceSourceSeed struct {
	Name             string            `toml:"name" validate:"required"`
	Kind             string            `toml:"kind" validate:"required,oneof=rss api"`
	URL              string            `toml:"url" validate:"required,url"`
	Symbol           string            `toml:"symbol" validate:"required"`
	Enabled          bool              `toml:"enabled"`
	APIKey           string            `toml:"api_key"`
	APIKeyParam      string            `toml:"api_key_param"`
	APIKeyHeader     string            `toml:"api_key_header"`
	ExtraParams      map[string]string `toml:"extra_params"`
	PriceRegex       string            `toml:"price_regex"` // Must contain a named group "price" when set
	PriceScale       float64           `toml:"price_scale"`
	RateLimitPerSec  int               `toml:"rate_limit_per_sec"`
	RateLimitSeconds int               `toml:"rate_limit_seconds"`
}

// AssetSeriesConfig defines a tracked asset series for candle storage
type AssetSeriesConfig struct {
	Symbol  string `toml:"symbol" validate:"required"`
	Label   string `toml:"label"`
	Enabled bool   `toml:"enabled"`
}

// NewDefaultConfig creates a configuration with default values
// Technical parameters are hardcoded here for production stability.
// Only user-facing settings should be exposed in nousnews.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout", "file"},
		},
		Agent: AgentConfig{
			LoopIntervalMinutes:    15,
			PriceLoopSeconds:       60,
			RunForeverEnabled:      false,
			FetchWorkers:           8,
			MaxItemsPerSource:      50,
			IngestLookbackHours:    24,
			MinRelevanceScore:      4,
			LLMFilterEnabled:       false,
			LLMBudgetPerRun:        2,
			LLMReservedForArticles: 2,
			HourlyBackfillHours:    72,
			AggregateBackfill:      16,
			ArticlePromptTemplate: "You are a financial news editor. Write a market brief for {period_label}.\n" +
				"Respond with JSON: {\"title\": string, \"summary\": string, \"article\": string, " +
				"\"importance\": 1-3, \"impacts\": [string], \"references\": [string]}.\n" +
				"Source material:\n{articles}",
			FilterPromptTemplate: "Decide whether this item is relevant financial market news.\n" +
				"Title: {title}\nSummary: {summary}\nContent: {content}\nHeuristic score: {heuristic_score}\n" +
				"Respond with JSON: {\"decision\": \"accept\"|\"reject\", \"importance\": 1-3, \"confidence\": 0-1}.",
			StaleCardCutoffHours:   48,
			SkipUnchangedDailyCard: true,
			SideArticleCount:       2,
			MaxFallbackHighlights:  4,
			SummaryClipChars:       600,
			MaxReferences:          10,
			MinArticleSentences:    4,
			MinArticleWords:        80,
			LLMFilterScoreBuffer:   2,
			LogClipChars:           4000,
		},
		Claude: ClaudeConfig{
			APIKey:      "",
			Model:       "claude-3-5-haiku-20241022",
			MaxTokens:   2048,
			Timeout:     "2m",
			Temperature: 0.4,
		},
		Economist: EconomistConfig{
			Enabled: false,
			SignalsPromptTemplate: "Extract the key market signals from the context below as short bullet lines.\n" +
				"Context:\n{context}\n\nPrior memory:\n{memory}",
			WritingPromptTemplate: "Rewrite the market brief using these signals. Keep a neutral analyst tone.\n" +
				"Signals:\n{signals}\n\nPrior memory:\n{memory}",
			MemoryTokenLimit: 2000,
		},
		Retention: RetentionConfig{
			Enabled:  true,
			Schedule: "30 3 * * *", // Daily at 03:30
			LogDays:  14,
			RunDays:  30,
			ItemDays: 45,
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env -> CLI
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files with priority: default -> file1 -> file2 -> ... -> env -> CLI
// Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	// Start with defaults
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier files)
	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		err = toml.Unmarshal(data, config)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	// Apply environment variables (overrides all file configs)
	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	// Environment configuration (highest priority: NOUSNEWS_ENV, fallback: GO_ENV)
	if env := os.Getenv("NOUSNEWS_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("NOUSNEWS_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("NOUSNEWS_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage configuration
	if badgerPath := os.Getenv("NOUSNEWS_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Logging configuration
	if level := os.Getenv("NOUSNEWS_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("NOUSNEWS_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("NOUSNEWS_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			trimmed := strings.TrimSpace(o)
			if trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Agent configuration
	if interval := os.Getenv("NOUSNEWS_AGENT_LOOP_INTERVAL_MINUTES"); interval != "" {
		if v, err := strconv.Atoi(interval); err == nil {
			config.Agent.LoopIntervalMinutes = v
		}
	}
	if interval := os.Getenv("NOUSNEWS_AGENT_PRICE_LOOP_SECONDS"); interval != "" {
		if v, err := strconv.Atoi(interval); err == nil {
			config.Agent.PriceLoopSeconds = v
		}
	}
	if enabled := os.Getenv("NOUSNEWS_AGENT_RUN_FOREVER"); enabled != "" {
		if v, err := strconv.ParseBool(enabled); err == nil {
			config.Agent.RunForeverEnabled = v
		}
	}
	if workers := os.Getenv("NOUSNEWS_AGENT_FETCH_WORKERS"); workers != "" {
		if v, err := strconv.Atoi(workers); err == nil {
			config.Agent.FetchWorkers = v
		}
	}
	if maxItems := os.Getenv("NOUSNEWS_AGENT_MAX_ITEMS_PER_SOURCE"); maxItems != "" {
		if v, err := strconv.Atoi(maxItems); err == nil {
			config.Agent.MaxItemsPerSource = v
		}
	}
	if minScore := os.Getenv("NOUSNEWS_AGENT_MIN_RELEVANCE_SCORE"); minScore != "" {
		if v, err := strconv.Atoi(minScore); err == nil {
			config.Agent.MinRelevanceScore = v
		}
	}
	if filterEnabled := os.Getenv("NOUSNEWS_AGENT_LLM_FILTER_ENABLED"); filterEnabled != "" {
		if v, err := strconv.ParseBool(filterEnabled); err == nil {
			config.Agent.LLMFilterEnabled = v
		}
	}
	if budget := os.Getenv("NOUSNEWS_AGENT_LLM_BUDGET_PER_RUN"); budget != "" {
		if v, err := strconv.Atoi(budget); err == nil {
			config.Agent.LLMBudgetPerRun = v
		}
	}
	if reserved := os.Getenv("NOUSNEWS_AGENT_LLM_RESERVED_FOR_ARTICLES"); reserved != "" {
		if v, err := strconv.Atoi(reserved); err == nil {
			config.Agent.LLMReservedForArticles = v
		}
	}

	// Claude configuration
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if apiKey := os.Getenv("NOUSNEWS_CLAUDE_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey // NOUSNEWS_ prefix takes priority
	}
	if model := os.Getenv("NOUSNEWS_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}
	if maxTokens := os.Getenv("NOUSNEWS_CLAUDE_MAX_TOKENS"); maxTokens != "" {
		if v, err := strconv.Atoi(maxTokens); err == nil {
			config.Claude.MaxTokens = v
		}
	}
	if timeout := os.Getenv("NOUSNEWS_CLAUDE_TIMEOUT"); timeout != "" {
		if _, err := time.ParseDuration(timeout); err == nil {
			config.Claude.Timeout = timeout
		}
	}
	if temperature := os.Getenv("NOUSNEWS_CLAUDE_TEMPERATURE"); temperature != "" {
		if v, err := strconv.ParseFloat(temperature, 32); err == nil {
			config.Claude.Temperature = float32(v)
		}
	}

	// Economist configuration
	if enabled := os.Getenv("NOUSNEWS_ECONOMIST_ENABLED"); enabled != "" {
		if v, err := strconv.ParseBool(enabled); err == nil {
			config.Economist.Enabled = v
		}
	}
	if limit := os.Getenv("NOUSNEWS_ECONOMIST_MEMORY_TOKEN_LIMIT"); limit != "" {
		if v, err := strconv.Atoi(limit); err == nil {
			config.Economist.MemoryTokenLimit = v
		}
	}

	// Retention configuration
	if schedule := os.Getenv("NOUSNEWS_RETENTION_SCHEDULE"); schedule != "" {
		config.Retention.Schedule = schedule
	}
	if days := os.Getenv("NOUSNEWS_RETENTION_LOG_DAYS"); days != "" {
		if v, err := strconv.Atoi(days); err == nil {
			config.Retention.LogDays = v
		}
	}
	if days := os.Getenv("NOUSNEWS_RETENTION_ITEM_DAYS"); days != "" {
		if v, err := strconv.Atoi(days); err == nil {
			config.Retention.ItemDays = v
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	// Command-line flags have highest priority
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// ClaudeTimeout returns the parsed Claude request timeout, falling back to 2 minutes
func (c *Config) ClaudeTimeout() time.Duration {
	if d, err := time.ParseDuration(c.Claude.Timeout); err == nil && d > 0 {
		return d
	}
	return 2 * time.Minute
}

// NewsRunInterval returns the effective news run cadence with the 60s floor applied
func (c *Config) NewsRunInterval() time.Duration {
	secs := c.Agent.LoopIntervalMinutes * 60
	if secs < 60 {
		secs = 60
	}
	return time.Duration(secs) * time.Second
}

// PriceSyncInterval returns the effective price sync cadence with the 5s floor applied
func (c *Config) PriceSyncInterval() time.Duration {
	secs := c.Agent.PriceLoopSeconds
	if secs < 5 {
		secs = 5
	}
	return time.Duration(secs) * time.Second
}

// ValidateRetentionSchedule validates a cron schedule expression for the retention sweep
func ValidateRetentionSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	parts := strings.Fields(schedule)
	if len(parts) < 5 {
		return fmt.Errorf("invalid cron format: expected 5 fields")
	}

	// Retention is a heavy sweep; refuse every-minute schedules
	if parts[0] == "*" {
		return fmt.Errorf("retention schedule must not run every minute")
	}

	return nil
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
