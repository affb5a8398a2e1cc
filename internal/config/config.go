package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Camera sources
const (
	CameraV4L2  = "v4l2"
	CameraStill = "still"
)

// Recognition providers
const (
	ProviderSimulated = "simulated"
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
)

// Config holds everything needed to wire a kiosk session
type Config struct {
	BackendURL  string            `yaml:"backend_url"`
	HTTPTimeout time.Duration     `yaml:"http_timeout"`
	Port        string            `yaml:"port"`
	Camera      CameraConfig      `yaml:"camera"`
	Recognition RecognitionConfig `yaml:"recognition"`
}

type CameraConfig struct {
	Source     string `yaml:"source"`
	Device     string `yaml:"device"`
	StillImage string `yaml:"still_image"`
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
}

type RecognitionConfig struct {
	Provider      string  `yaml:"provider"`
	Model         string  `yaml:"model"`
	OllamaURL     string  `yaml:"ollama_url"`
	OpenAIAPIKey  string  `yaml:"-"`
	GeminiAPIKey  string  `yaml:"-"`
	MinConfidence float64 `yaml:"min_confidence"`
	FailureRate   float64 `yaml:"failure_rate"`
}

// Defaults returns the configuration used when nothing is set
func Defaults() *Config {
	return &Config{
		BackendURL:  "http://localhost:5000",
		HTTPTimeout: 30 * time.Second,
		Port:        "8888",
		Camera: CameraConfig{
			Source: CameraV4L2,
			Device: "/dev/video0",
			Width:  640,
			Height: 480,
		},
		Recognition: RecognitionConfig{
			Provider:      ProviderSimulated,
			MinConfidence: 0.5,
			FailureRate:   0.05,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in that order of precedence.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.BackendURL, "ATTENDANCE_BACKEND_URL")
	setString(&c.Port, "ATTENDANCE_PORT")
	setString(&c.Camera.Source, "ATTENDANCE_CAMERA")
	setString(&c.Camera.Device, "ATTENDANCE_CAMERA_DEVICE")
	setString(&c.Camera.StillImage, "ATTENDANCE_STILL_IMAGE")
	setString(&c.Recognition.Provider, "RECOGNITION_PROVIDER")
	setString(&c.Recognition.OpenAIAPIKey, "OPENAI_API_KEY")
	setString(&c.Recognition.GeminiAPIKey, "GEMINI_API_KEY")

	// OLLAMA_URL wins over OLLAMA_HOST
	setString(&c.Recognition.OllamaURL, "OLLAMA_HOST")
	setString(&c.Recognition.OllamaURL, "OLLAMA_URL")

	if v := os.Getenv("ATTENDANCE_HTTP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid ATTENDANCE_HTTP_TIMEOUT %q: %w", v, err)
		}
		c.HTTPTimeout = d
	}

	if v := os.Getenv("RECOGNITION_MIN_CONFIDENCE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid RECOGNITION_MIN_CONFIDENCE %q: %w", v, err)
		}
		c.Recognition.MinConfidence = f
	}

	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// ModelFor returns the configured model or the provider's default
func (r RecognitionConfig) ModelFor() string {
	if r.Model != "" {
		return r.Model
	}

	switch r.Provider {
	case ProviderOpenAI:
		if model := os.Getenv("OPENAI_MODEL"); model != "" {
			return model
		}
		return "gpt-4o"
	case ProviderOllama:
		if model := os.Getenv("OLLAMA_MODEL"); model != "" {
			return model
		}
		return "mistral-small3.2:24b"
	case ProviderGemini:
		if model := os.Getenv("GEMINI_MODEL"); model != "" {
			return model
		}
		return "gemini-1.5-flash"
	default:
		return ""
	}
}

// Validate checks the values a kiosk cannot run without
func (c *Config) Validate() error {
	u, err := url.Parse(c.BackendURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid backend URL %q", c.BackendURL)
	}

	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be positive, got %s", c.HTTPTimeout)
	}

	switch c.Camera.Source {
	case CameraV4L2:
		if c.Camera.Device == "" {
			return fmt.Errorf("camera device is required for the %s source", CameraV4L2)
		}
	case CameraStill:
		if c.Camera.StillImage == "" {
			return fmt.Errorf("still image path is required for the %s source", CameraStill)
		}
	default:
		return fmt.Errorf("unsupported camera source: %s", c.Camera.Source)
	}

	switch c.Recognition.Provider {
	case ProviderSimulated, ProviderOllama, ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("unsupported recognition provider: %s", c.Recognition.Provider)
	}

	if c.Recognition.FailureRate < 0 || c.Recognition.FailureRate > 1 {
		return fmt.Errorf("failure rate must be within [0,1], got %.2f", c.Recognition.FailureRate)
	}
	if c.Recognition.MinConfidence < 0 || c.Recognition.MinConfidence > 1 {
		return fmt.Errorf("min confidence must be within [0,1], got %.2f", c.Recognition.MinConfidence)
	}

	return nil
}
