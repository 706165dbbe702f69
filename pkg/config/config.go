package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Ingest     IngestConfig
	Filter     FilterConfig
	Categorize CategorizeConfig
	Classifier ClassifierConfig
	Gemini     GeminiConfig
	Insights   InsightsConfig
}

// IngestConfig controls statement-file parsing.
type IngestConfig struct {
	DefaultCurrency string
	EuropeanFormat  bool
	MaxFileSizeMB   int
}

// FilterConfig controls which transactions survive filtering.
type FilterConfig struct {
	// WithdrawalReviewThresholdCents flags cash withdrawals above this
	// amount for manual review instead of silently dropping them.
	WithdrawalReviewThresholdCents int64
}

// CategorizeConfig controls the local matching engine.
type CategorizeConfig struct {
	RulesPath string
	// ConfidenceThreshold is the minimum local-match confidence; matches
	// below it are deferred to the external classifier.
	ConfidenceThreshold float64
	FuzzyEnabled        bool
}

// ClassifierConfig controls the external HTTP classification service.
type ClassifierConfig struct {
	URL           string
	APIKey        string
	Timeout       time.Duration
	MaxRetries    int
	BatchSize     int
	MaxInFlight   int
	RatePerSecond float64
	RateBurst     int
}

// GeminiConfig configures the Gemini-backed classifier. Only required when
// the Gemini backend is selected.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// InsightsConfig controls aggregation and projection.
type InsightsConfig struct {
	PeriodMonths int
	TopN         int
}

// Classifier backend selectors.
const (
	BackendHTTP   = "http"
	BackendGemini = "gemini"
	BackendNone   = "none"
)

// Load reads configuration from environment variables, after loading a .env
// file if one exists in the working directory.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Ingest: IngestConfig{
			DefaultCurrency: getEnv("DEFAULT_CURRENCY", "USD"),
			EuropeanFormat:  getEnvAsBool("EUROPEAN_AMOUNT_FORMAT", false),
			MaxFileSizeMB:   getEnvAsInt("MAX_FILE_SIZE_MB", 32),
		},
		Filter: FilterConfig{
			WithdrawalReviewThresholdCents: int64(getEnvAsInt("WITHDRAWAL_REVIEW_THRESHOLD_CENTS", 10000)),
		},
		Categorize: CategorizeConfig{
			RulesPath:           getEnv("CATEGORY_RULES_PATH", "categories.yaml"),
			ConfidenceThreshold: getEnvAsFloat("LOCAL_CONFIDENCE_THRESHOLD", 0.6),
			FuzzyEnabled:        getEnvAsBool("FUZZY_MATCHING_ENABLED", true),
		},
		Classifier: ClassifierConfig{
			URL:           getEnv("CLASSIFIER_URL", ""),
			APIKey:        getEnv("CLASSIFIER_API_KEY", ""),
			Timeout:       getEnvAsDuration("CLASSIFIER_TIMEOUT", 30*time.Second),
			MaxRetries:    getEnvAsInt("CLASSIFIER_MAX_RETRIES", 3),
			BatchSize:     getEnvAsInt("CLASSIFIER_BATCH_SIZE", 50),
			MaxInFlight:   getEnvAsInt("CLASSIFIER_MAX_IN_FLIGHT", 4),
			RatePerSecond: getEnvAsFloat("CLASSIFIER_RATE_PER_SECOND", 5),
			RateBurst:     getEnvAsInt("CLASSIFIER_RATE_BURST", 10),
		},
		Gemini: GeminiConfig{
			APIKey: getEnv("GEMINI_API_KEY", ""),
			Model:  getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		},
		Insights: InsightsConfig{
			PeriodMonths: getEnvAsInt("INSIGHTS_PERIOD_MONTHS", 12),
			TopN:         getEnvAsInt("INSIGHTS_TOP_N", 10),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ClassifierBackend returns which external classifier is configured. The HTTP
// backend wins when both are set; neither set means local-only categorization.
func (c *Config) ClassifierBackend() string {
	switch {
	case c.Classifier.URL != "":
		return BackendHTTP
	case c.Gemini.APIKey != "":
		return BackendGemini
	default:
		return BackendNone
	}
}

func (c *Config) validate() error {
	if c.Filter.WithdrawalReviewThresholdCents < 0 {
		return fmt.Errorf("WITHDRAWAL_REVIEW_THRESHOLD_CENTS must be >= 0, got %d", c.Filter.WithdrawalReviewThresholdCents)
	}
	if c.Categorize.ConfidenceThreshold < 0 || c.Categorize.ConfidenceThreshold > 1 {
		return fmt.Errorf("LOCAL_CONFIDENCE_THRESHOLD must be in [0,1], got %f", c.Categorize.ConfidenceThreshold)
	}
	if c.Classifier.BatchSize <= 0 {
		return fmt.Errorf("CLASSIFIER_BATCH_SIZE must be positive, got %d", c.Classifier.BatchSize)
	}
	if c.Classifier.MaxInFlight <= 0 {
		return fmt.Errorf("CLASSIFIER_MAX_IN_FLIGHT must be positive, got %d", c.Classifier.MaxInFlight)
	}
	if c.Insights.PeriodMonths <= 0 {
		return fmt.Errorf("INSIGHTS_PERIOD_MONTHS must be positive, got %d", c.Insights.PeriodMonths)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
