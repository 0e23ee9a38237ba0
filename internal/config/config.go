package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"certverify/internal/verify"
)

type Config struct {
	HTTPAddr          string
	DBDriver          string
	DBURL             string
	UploadDir         string
	DownloadDir       string
	VisionCredentials string
	OCREnabled        bool
	GeminiAPIKey      string
	GeminiModel       string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	LinkCacheTTL      time.Duration
	FetchTimeout      time.Duration
	AllowedHosts      []string
	RetainFiles       bool
	ShareSecret       string
	AdminSecret       string
	FrontendBaseURL   string
	MaxUploadMB       int64
	PolicyFile        string
	LogLevel          string
	LogFormat         string
	Policy            verify.Policy
}

// Load reads an optional .env file, then the environment, then the scoring
// policy file when one is named.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	cfg, err := FromEnv()
	if err != nil {
		return cfg, err
	}
	if cfg.PolicyFile != "" {
		p, err := LoadPolicy(cfg.PolicyFile)
		if err != nil {
			return cfg, err
		}
		cfg.Policy = p
	}
	return cfg, nil
}

// FromEnv builds a Config from environment variables alone. The scoring
// policy is left at its defaults.
func FromEnv() (Config, error) {
	var errs []error
	cfg := Config{
		HTTPAddr:          envDefault("HTTP_ADDR", ":8080"),
		DBDriver:          envDefault("DB_DRIVER", "sqlite"),
		DBURL:             os.Getenv("DB_URL"),
		UploadDir:         envDefault("UPLOAD_DIR", "uploads"),
		DownloadDir:       envDefault("DOWNLOAD_DIR", "downloads"),
		VisionCredentials: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		GeminiModel:       os.Getenv("GEMINI_MODEL"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		AllowedHosts:      splitList(envDefault("QR_ALLOWED_HOSTS", "nptel.ac.in")),
		ShareSecret:       os.Getenv("SHARE_TOKEN_SECRET"),
		AdminSecret:       os.Getenv("ADMIN_JWT_SECRET"),
		FrontendBaseURL:   strings.TrimRight(envDefault("FRONTEND_BASE_URL", "http://localhost:3000"), "/"),
		PolicyFile:        os.Getenv("SCORING_POLICY_FILE"),
		LogLevel:          envDefault("LOG_LEVEL", "info"),
		LogFormat:         envDefault("LOG_FORMAT", "text"),
		Policy:            verify.DefaultPolicy(),
	}

	if cfg.DBURL == "" {
		if cfg.DBDriver == "postgres" {
			errs = append(errs, errors.New("DB_URL is required for the postgres driver"))
		}
		cfg.DBURL = "certverify.db"
	}

	var err error
	if cfg.OCREnabled, err = strconv.ParseBool(envDefault("OCR_ENABLED", "true")); err != nil {
		errs = append(errs, fmt.Errorf("OCR_ENABLED: %w", err))
	}
	if cfg.RetainFiles, err = strconv.ParseBool(envDefault("RETAIN_FILES", "false")); err != nil {
		errs = append(errs, fmt.Errorf("RETAIN_FILES: %w", err))
	}
	if cfg.RedisDB, err = strconv.Atoi(envDefault("REDIS_DB", "0")); err != nil {
		errs = append(errs, fmt.Errorf("REDIS_DB: %w", err))
	}
	if cfg.LinkCacheTTL, err = time.ParseDuration(envDefault("LINK_CACHE_TTL", "24h")); err != nil {
		errs = append(errs, fmt.Errorf("LINK_CACHE_TTL: %w", err))
	}
	if cfg.FetchTimeout, err = time.ParseDuration(envDefault("FETCH_TIMEOUT", "30s")); err != nil {
		errs = append(errs, fmt.Errorf("FETCH_TIMEOUT: %w", err))
	}
	if cfg.MaxUploadMB, err = strconv.ParseInt(envDefault("MAX_UPLOAD_MB", "10"), 10, 64); err != nil {
		errs = append(errs, fmt.Errorf("MAX_UPLOAD_MB: %w", err))
	} else if cfg.MaxUploadMB <= 0 {
		errs = append(errs, fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", cfg.MaxUploadMB))
	}
	return cfg, errors.Join(errs...)
}

// LoadPolicy reads a YAML scoring policy. Keys missing from the file keep
// their default values.
func LoadPolicy(path string) (verify.Policy, error) {
	p := verify.DefaultPolicy()
	raw, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read scoring policy: %w", err)
	}
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("parse scoring policy %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("invalid scoring policy %s: %w", path, err)
	}
	return p, nil
}

// ConfigureLogging applies level and format to the standard logrus logger.
func ConfigureLogging(level, format string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	logrus.SetLevel(lvl)
	switch strings.ToLower(format) {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	return nil
}

// splitList parses a comma separated list. A lone "*" yields nil, which
// callers read as "no restriction".
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "*" {
			return nil
		}
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envDefault(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}
