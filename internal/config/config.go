package config

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Upload retention policies.
const (
	RetentionKeep   = "keep"
	RetentionDelete = "delete"
)

type Config struct {
	Host              string
	Port              int
	UploadDirectory   string
	MaxContentLength  int64    // Maksymalny rozmiar żądania w bajtach
	AllowedExtensions []string // Bez kropki, małymi literami
	ModelPath         string
	LabelsPath        string
	Device            string // auto, cpu albo cuda
	InputSize         int
	ConfThreshold     float64
	IoUThreshold      float64
	InferenceWorkers  int // Liczba workerów, każdy z własną siecią
	InferenceQueue    int
	InferenceTimeout  time.Duration
	DatabasePath      string
	UploadRetention   string
	UploadMaxAge      time.Duration
	MaxUploadDirSize  int64
	JanitorInterval   time.Duration
	LogDirectory      string
	StaticDirectory   string
	CORSOrigins       []string
}

// Load reads an optional .env file and builds the configuration from the environment.
func Load() *Config {
	// .env is optional; variables already set in the environment win.
	_ = godotenv.Load()

	return &Config{
		Host:              getEnv("HOST", "0.0.0.0"),
		Port:              getEnvAsInt("PORT", 5000),
		UploadDirectory:   getEnv("UPLOAD_DIR", "uploads"),
		MaxContentLength:  getEnvAsInt64("MAX_CONTENT_LENGTH", 16*1024*1024),
		AllowedExtensions: getEnvAsList("ALLOWED_EXTENSIONS", []string{"png", "jpg", "jpeg"}),
		ModelPath:         getEnv("MODEL_PATH", filepath.Join("model", "my_model.onnx")),
		LabelsPath:        getEnv("LABELS_PATH", filepath.Join("model", "labels.txt")),
		Device:            strings.ToLower(getEnv("DEVICE", "auto")),
		InputSize:         getEnvAsInt("INPUT_SIZE", 640),
		ConfThreshold:     getEnvAsFloat("CONF_THRESHOLD", 0.25),
		IoUThreshold:      getEnvAsFloat("IOU_THRESHOLD", 0.7),
		InferenceWorkers:  getEnvAsInt("INFERENCE_WORKERS", 1),
		InferenceQueue:    getEnvAsInt("INFERENCE_QUEUE_SIZE", 100),
		InferenceTimeout:  getEnvAsDuration("INFERENCE_TIMEOUT", 0),
		DatabasePath:      getEnv("DATABASE_PATH", filepath.Join("data", "uploads.db")),
		UploadRetention:   strings.ToLower(getEnv("UPLOAD_RETENTION", RetentionKeep)),
		UploadMaxAge:      getEnvAsDuration("UPLOAD_MAX_AGE", 0),
		MaxUploadDirSize:  getEnvAsInt64("MAX_UPLOAD_DIR_SIZE", 0),
		JanitorInterval:   getEnvAsDuration("JANITOR_INTERVAL", 0),
		LogDirectory:      getEnv("LOG_DIR", filepath.Join(".", "logs")),
		StaticDirectory:   getEnv("STATIC_DIR", "static"),
		CORSOrigins:       getEnvAsList("CORS_ORIGINS", []string{"*"}),
	}
}

// Addr returns the listen address in host:port form.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// IsAllowedExtension reports whether ext (without the dot) is on the allow-list, ignoring case.
func (c *Config) IsAllowedExtension(ext string) bool {
	ext = strings.ToLower(ext)
	for _, allowed := range c.AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvAsList parses a comma separated list, lowercasing and dropping leading dots.
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(item)), ".")
		if item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
