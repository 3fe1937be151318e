package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/pauljones0/brick-resale-tracker/internal/util"
)

const (
	BackendMemory    = "memory"
	BackendFirestore = "firestore"
	BackendPostgres  = "postgres"

	FetchModeHTTP    = "http"
	FetchModeBrowser = "browser"

	defaultSourceURL = "https://www.avenuedelabrique.com/promotions-et-bons-plans-lego"
)

type Config struct {
	Port                string
	StoreBackend        string
	ProjectID           string
	DatabaseURL         string
	RedisAddr           string
	RedisPassword       string
	RedisDB             int
	IndicatorCacheTTL   time.Duration
	SourceURLs          []string
	AllowedDomains      []string
	FetchMode           string
	FetchConcurrency    int
	FetchRatePerSecond  float64
	FetchTimeout        time.Duration
	FetchMaxRetries     int
	IngestSchedule      string
	SelectorsConfigPath string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
		slog.Info("Defaulting to port", "port", port)
	}

	backend := strings.ToLower(getEnv("STORE_BACKEND", BackendMemory))
	projectID := os.Getenv("GOOGLE_CLOUD_PROJECT")
	databaseURL := os.Getenv("DATABASE_URL")
	switch backend {
	case BackendMemory:
		slog.Warn("STORE_BACKEND is memory, records will not survive a restart")
	case BackendFirestore:
		if projectID == "" {
			return nil, fmt.Errorf("GOOGLE_CLOUD_PROJECT environment variable is required for the firestore backend")
		}
	case BackendPostgres:
		if databaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable is required for the postgres backend")
		}
	default:
		return nil, fmt.Errorf("invalid STORE_BACKEND %q: want memory, firestore or postgres", backend)
	}

	redisDB, err := getInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	cacheTTL, err := getDuration("INDICATOR_CACHE_TTL", 15*time.Minute)
	if err != nil {
		return nil, err
	}

	sourceURLs := splitList(getEnv("SOURCE_URLS", defaultSourceURL))
	allowedDomains := splitList(os.Getenv("ALLOWED_DOMAINS"))
	if len(allowedDomains) == 0 {
		for _, u := range sourceURLs {
			if host := util.Hostname(u); host != "" {
				allowedDomains = append(allowedDomains, host)
			}
		}
	}

	fetchMode := strings.ToLower(getEnv("FETCH_MODE", FetchModeHTTP))
	if fetchMode != FetchModeHTTP && fetchMode != FetchModeBrowser {
		return nil, fmt.Errorf("invalid FETCH_MODE %q: want http or browser", fetchMode)
	}
	concurrency, err := getInt("FETCH_CONCURRENCY", 4)
	if err != nil {
		return nil, err
	}
	if concurrency < 1 {
		return nil, fmt.Errorf("invalid FETCH_CONCURRENCY %d: must be at least 1", concurrency)
	}
	ratePerSecond := 2.0
	if v := os.Getenv("FETCH_RATE_PER_SECOND"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid FETCH_RATE_PER_SECOND %q: %w", v, err)
		}
		ratePerSecond = parsed
	}
	fetchTimeout, err := getDuration("FETCH_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	maxRetries, err := getInt("FETCH_MAX_RETRIES", 2)
	if err != nil {
		return nil, err
	}

	schedule := strings.TrimSpace(os.Getenv("INGEST_SCHEDULE"))
	if schedule != "" {
		if _, err := cron.ParseStandard(schedule); err != nil {
			return nil, fmt.Errorf("invalid INGEST_SCHEDULE %q: %w", schedule, err)
		}
	}

	return &Config{
		Port:                port,
		StoreBackend:        backend,
		ProjectID:           projectID,
		DatabaseURL:         databaseURL,
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		RedisDB:             redisDB,
		IndicatorCacheTTL:   cacheTTL,
		SourceURLs:          sourceURLs,
		AllowedDomains:      allowedDomains,
		FetchMode:           fetchMode,
		FetchConcurrency:    concurrency,
		FetchRatePerSecond:  ratePerSecond,
		FetchTimeout:        fetchTimeout,
		FetchMaxRetries:     maxRetries,
		IngestSchedule:      schedule,
		SelectorsConfigPath: getEnv("SELECTORS_CONFIG_PATH", "config/selectors.json"),
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return parsed, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return parsed, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
