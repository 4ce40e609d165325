package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Paths
	RulesPath    string
	InputDir     string
	OutputDir    string
	TempDir      string
	EventLogPath string

	// Input watching
	WatchInput bool

	// Optical extraction
	OCREnabled    bool
	OCRLang       string
	OCRDPI        int
	TesseractPath string
	PdftoppmPath  string
	PdftotextPath string

	// PDF text layer
	PdftotextFallback bool
	MinTextLen        int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	MaxQueueSize int
	JobTTL       time.Duration
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("ALBASORT_API_KEY"),

		RulesPath:    envOr("RULES_PATH", "rules.json"),
		InputDir:     envOr("INPUT_DIR", "input"),
		OutputDir:    envOr("OUTPUT_DIR", "output"),
		TempDir:      os.Getenv("TEMP_DIR"), // empty -> os.TempDir
		EventLogPath: os.Getenv("EVENT_LOG_PATH"),

		WatchInput: envBool("WATCH_INPUT", false),

		OCREnabled:    envBool("OCR_ENABLED", true),
		OCRLang:       envOr("OCR_LANG", "spa"),
		OCRDPI:        envInt("OCR_DPI", 300),
		TesseractPath: envOr("TESSERACT_PATH", "tesseract"),
		PdftoppmPath:  envOr("PDFTOPPM_PATH", "pdftoppm"),
		PdftotextPath: envOr("PDFTOTEXT_PATH", "pdftotext"),

		PdftotextFallback: envBool("PDF_FALLBACK_PDFTOTEXT", true),
		MinTextLen:        envInt("MIN_TEXT_LEN", 10),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 104857600), // 100MB

		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 100),
		JobTTL:       envDuration("JOB_TTL", 1*time.Hour),
	}

	if cfg.OCRDPI <= 0 {
		cfg.OCRDPI = 300
	}
	if cfg.MinTextLen <= 0 {
		cfg.MinTextLen = 10
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 104857600
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("ALBASORT_API_KEY is required")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("OUTPUT_DIR must not be empty")
	}
	return nil
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
