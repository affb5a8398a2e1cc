// Package recognition decides whether a captured frame shows a face clear
// enough to submit. The capture pipeline only sees the Recognizer interface.
package recognition

import (
	"context"
	"errors"
	"fmt"

	"github.com/lehigh-university-libraries/attendance/internal/capture"
	"github.com/lehigh-university-libraries/attendance/internal/config"
	"github.com/lehigh-university-libraries/attendance/internal/gemini"
	"github.com/lehigh-university-libraries/attendance/internal/ollama"
	"github.com/lehigh-university-libraries/attendance/internal/openai"
)

// ErrNotRecognized is returned when no usable face was found in the frame
var ErrNotRecognized = errors.New("face not recognized clearly")

// Result is the outcome of a successful recognition
type Result struct {
	Confidence float64
}

// Recognizer inspects a captured frame
type Recognizer interface {
	Recognize(ctx context.Context, frame *capture.Frame) (*Result, error)
}

// New returns the recognizer selected by cfg
func New(cfg config.RecognitionConfig) (Recognizer, error) {
	switch cfg.Provider {
	case "", config.ProviderSimulated:
		sim := NewSimulated()
		sim.FailureRate = cfg.FailureRate
		return sim, nil
	case config.ProviderOllama:
		return NewVision(ollama.New(cfg.OllamaURL), cfg.ModelFor(), cfg.MinConfidence), nil
	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY not set")
		}
		return NewVision(openai.New(cfg.OpenAIAPIKey), cfg.ModelFor(), cfg.MinConfidence), nil
	case config.ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY not set")
		}
		return NewVision(gemini.New(cfg.GeminiAPIKey), cfg.ModelFor(), cfg.MinConfidence), nil
	default:
		return nil, fmt.Errorf("unsupported recognition provider: %s", cfg.Provider)
	}
}
