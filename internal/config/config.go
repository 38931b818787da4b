package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the ASR gateway service.
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8000"`

	// Media ingestion
	TempDir string `envconfig:"TEMP_DIR" default:""` // empty means os.TempDir()

	// Recognition engine
	EnginePython string `envconfig:"ENGINE_PYTHON" default:"python3"` // interpreter for the helper process
	EngineScript string `envconfig:"ENGINE_SCRIPT" default:""`        // override for the embedded helper script

	// Device worker pools. One engine invocation holds one slot; a saturated
	// pool queues jobs until a slot frees or the job's context ends.
	GPUPoolSize int `envconfig:"GPU_POOL_SIZE" default:"1"`
	CPUPoolSize int `envconfig:"CPU_POOL_SIZE" default:"2"`

	// Streaming
	SendTimeoutSeconds int `envconfig:"SEND_TIMEOUT_SECONDS" default:"30"` // per-frame delivery bound
	EventBuffer        int `envconfig:"EVENT_BUFFER" default:"16"`         // controller-to-transport channel depth

	// Default transcription options, applied when a submission omits a field.
	DefaultModelSize   string `envconfig:"DEFAULT_MODEL_SIZE" default:"medium"`
	DefaultDevice      string `envconfig:"DEFAULT_DEVICE" default:"cuda"`
	DefaultComputeType string `envconfig:"DEFAULT_COMPUTE_TYPE" default:"float16"`
	DefaultBeamSize    int    `envconfig:"DEFAULT_BEAM_SIZE" default:"5"`
	DefaultLanguage    string `envconfig:"DEFAULT_LANGUAGE" default:"zh"`

	// Engine circuit breaker
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // seconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"`
}

// Load reads configuration from the environment, first merging a .env file
// when one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return LoadFromEnv()
}

// LoadFromEnv reads configuration directly from environment variables
// without consulting a .env file (useful for containerized deployments).
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.GPUPoolSize < 1 {
		return nil, fmt.Errorf("GPU_POOL_SIZE must be at least 1")
	}
	if cfg.CPUPoolSize < 1 {
		return nil, fmt.Errorf("CPU_POOL_SIZE must be at least 1")
	}
	if cfg.EventBuffer < 1 {
		return nil, fmt.Errorf("EVENT_BUFFER must be at least 1")
	}

	return &cfg, nil
}

// GetEnv returns the value of an environment variable or a default value.
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
