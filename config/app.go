package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrNotConfigured is returned by the optional backend initialisers when
// their connection string is absent.
var ErrNotConfigured = errors.New("not configured")

type AppConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// Durations are in seconds.
	QuestionTimeLimit        int   `yaml:"question_time_limit"`
	EmotionDetectionInterval int   `yaml:"emotion_detection_interval"`
	MaxQuestionsPerInterview int   `yaml:"max_questions_per_interview"`
	SessionTimeout           int   `yaml:"session_timeout"`
	ReaperInterval           int   `yaml:"reaper_interval"`
	MaxUploadBytes           int64 `yaml:"max_upload_bytes"`

	EmotionServiceURL          string  `yaml:"emotion_service_url"`
	EmotionConfidenceThreshold float64 `yaml:"emotion_confidence_threshold"`

	// ResultsCacheTTL falls back to SessionTimeout when zero.
	ResultsCacheTTL int    `yaml:"results_cache_ttl"`
	ResultsWorkers  int    `yaml:"results_workers"`
	GCSBucket       string `yaml:"gcs_bucket"`
}

func DefaultApp() AppConfig {
	return AppConfig{
		Host:                       "0.0.0.0",
		Port:                       5000,
		QuestionTimeLimit:          180,
		EmotionDetectionInterval:   10,
		MaxQuestionsPerInterview:   20,
		SessionTimeout:             3600,
		ReaperInterval:             60,
		MaxUploadBytes:             16 << 20,
		EmotionConfidenceThreshold: 0.5,
		ResultsWorkers:             2,
	}
}

// LoadApp layers defaults, the optional YAML file named by CONFIG_FILE, and
// environment overrides.
func LoadApp() (AppConfig, error) {
	cfg := DefaultApp()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func applyEnv(cfg *AppConfig) error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	var firstErr error
	num := func(key string, dst *int) {
		v, ok := os.LookupEnv(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", key, err)
			}
			return
		}
		*dst = n
	}

	str("HOST", &cfg.Host)
	num("PORT", &cfg.Port)
	num("QUESTION_TIME_LIMIT", &cfg.QuestionTimeLimit)
	num("EMOTION_DETECTION_INTERVAL", &cfg.EmotionDetectionInterval)
	num("MAX_QUESTIONS_PER_INTERVIEW", &cfg.MaxQuestionsPerInterview)
	num("SESSION_TIMEOUT", &cfg.SessionTimeout)
	num("REAPER_INTERVAL", &cfg.ReaperInterval)
	num("RESULTS_CACHE_TTL", &cfg.ResultsCacheTTL)
	num("RESULTS_WORKERS", &cfg.ResultsWorkers)
	str("EMOTION_SERVICE_URL", &cfg.EmotionServiceURL)
	str("GCS_BUCKET", &cfg.GCSBucket)

	if v := strings.TrimSpace(os.Getenv("MAX_UPLOAD_BYTES")); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("MAX_UPLOAD_BYTES: %w", err)
		}
		cfg.MaxUploadBytes = n
	}
	if v := strings.TrimSpace(os.Getenv("EMOTION_CONFIDENCE_THRESHOLD")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("EMOTION_CONFIDENCE_THRESHOLD: %w", err)
		}
		cfg.EmotionConfidenceThreshold = f
	}
	return firstErr
}

func (c AppConfig) Validate() error {
	switch {
	case c.QuestionTimeLimit <= 0:
		return errors.New("QUESTION_TIME_LIMIT must be positive")
	case c.EmotionDetectionInterval <= 0:
		return errors.New("EMOTION_DETECTION_INTERVAL must be positive")
	case c.MaxQuestionsPerInterview <= 0:
		return errors.New("MAX_QUESTIONS_PER_INTERVIEW must be positive")
	case c.SessionTimeout <= 0:
		return errors.New("SESSION_TIMEOUT must be positive")
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	return nil
}

func (c AppConfig) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

func (c AppConfig) QuestionTimeout() time.Duration {
	return time.Duration(c.QuestionTimeLimit) * time.Second
}

func (c AppConfig) EmotionInterval() time.Duration {
	return time.Duration(c.EmotionDetectionInterval) * time.Second
}

func (c AppConfig) IdleTimeout() time.Duration {
	return time.Duration(c.SessionTimeout) * time.Second
}

func (c AppConfig) ReaperEvery() time.Duration {
	if c.ReaperInterval <= 0 {
		return time.Minute
	}
	return time.Duration(c.ReaperInterval) * time.Second
}

func (c AppConfig) CacheTTL() time.Duration {
	if c.ResultsCacheTTL <= 0 {
		return c.IdleTimeout()
	}
	return time.Duration(c.ResultsCacheTTL) * time.Second
}
