package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the speech relay service
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// Speech provider credentials (recognition, translation and synthesis)
	SpeechKey    string `envconfig:"SPEECH_KEY" required:"true"`
	SpeechRegion string `envconfig:"SPEECH_REGION" default:"eastus"`

	// Provider endpoint overrides. When empty the regional defaults are derived
	// from SpeechRegion; tests point these at an httptest server.
	RecognizeEndpoint string `envconfig:"RECOGNIZE_ENDPOINT" default:""` // one-shot recognize+translate (HTTP)
	StreamEndpoint    string `envconfig:"STREAM_ENDPOINT" default:""`    // continuous recognition (WebSocket)
	SynthesisEndpoint string `envconfig:"SYNTHESIS_ENDPOINT" default:""` // text-to-speech (HTTP)

	// Languages offered to clients for the source/target selectors
	SupportedLanguages []string `envconfig:"SUPPORTED_LANGUAGES" default:"en-US,si-LK,ja-JP,fr-FR,wuu-CN,es-ES,de-DE,ru-RU,hi-IN"`

	// Upload handling
	UploadDir     string `envconfig:"UPLOAD_DIR" default:"uploads"`
	MaxUploadSize int64  `envconfig:"MAX_UPLOAD_SIZE" default:"10485760"` // bytes

	// Resilience configuration for provider HTTP calls
	RetryMaxAttempts    int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`
	RetryInitialBackoff int `envconfig:"RETRY_INITIAL_BACKOFF" default:"100"` // milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.SpeechKey == "" {
		return nil, fmt.Errorf("SPEECH_KEY is required")
	}
	if cfg.SpeechRegion == "" {
		return nil, fmt.Errorf("SPEECH_REGION is required")
	}

	return &cfg, nil
}

// RecognizeURL returns the configured one-shot recognition endpoint, falling
// back to the regional default.
func (c *Config) RecognizeURL() string {
	if c.RecognizeEndpoint != "" {
		return c.RecognizeEndpoint
	}
	return fmt.Sprintf("https://%s.stt.speech.microsoft.com/speech/translation/cognitiveservices/v1", c.SpeechRegion)
}

// StreamURL returns the configured streaming recognition endpoint, falling
// back to the regional default.
func (c *Config) StreamURL() string {
	if c.StreamEndpoint != "" {
		return c.StreamEndpoint
	}
	return fmt.Sprintf("wss://%s.stt.speech.microsoft.com/speech/universal/v2", c.SpeechRegion)
}

// SynthesisURL returns the configured synthesis endpoint, falling back to the
// regional default.
func (c *Config) SynthesisURL() string {
	if c.SynthesisEndpoint != "" {
		return c.SynthesisEndpoint
	}
	return fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", c.SpeechRegion)
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
