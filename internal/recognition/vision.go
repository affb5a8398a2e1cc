package recognition

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lehigh-university-libraries/attendance/internal/capture"
	"github.com/lehigh-university-libraries/attendance/internal/providers"
)

const visionPrompt = `You are checking a webcam snapshot taken at an attendance kiosk.
Decide whether exactly one human face is clearly visible, facing the camera, and well lit.

Respond with JSON only, no commentary:
{"face_detected": true|false, "face_count": <number of faces>, "confidence": <0.0-1.0>}`

// Vision asks a vision-capable LLM whether the frame holds one clear face
type Vision struct {
	Provider      providers.Provider
	Model         string
	MinConfidence float64
}

func NewVision(provider providers.Provider, model string, minConfidence float64) *Vision {
	return &Vision{
		Provider:      provider,
		Model:         model,
		MinConfidence: minConfidence,
	}
}

type verdict struct {
	FaceDetected bool    `json:"face_detected"`
	FaceCount    int     `json:"face_count"`
	Confidence   float64 `json:"confidence"`
}

func (v *Vision) Recognize(ctx context.Context, frame *capture.Frame) (*Result, error) {
	if frame == nil || len(frame.JPEG) == 0 {
		return nil, fmt.Errorf("no frame to recognize")
	}

	response, err := v.Provider.DescribeImage(ctx, providers.Config{
		Model:       v.Model,
		Temperature: 0,
		Prompt:      visionPrompt,
	}, frame.JPEG)
	if err != nil {
		return nil, fmt.Errorf("%s recognition failed: %w", v.Provider.Name(), err)
	}

	got, err := parseVerdict(response)
	if err != nil {
		return nil, err
	}

	slog.Info("Vision recognition verdict",
		"provider", v.Provider.Name(),
		"model", v.Model,
		"face_detected", got.FaceDetected,
		"face_count", got.FaceCount,
		"confidence", got.Confidence)

	if !got.FaceDetected || got.FaceCount > 1 || got.Confidence < v.MinConfidence {
		return nil, ErrNotRecognized
	}

	return &Result{Confidence: clamp(got.Confidence)}, nil
}

// parseVerdict reads the model's JSON, tolerating markdown code fences
func parseVerdict(response string) (*verdict, error) {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	response = strings.TrimSpace(response)

	var got verdict
	if err := json.Unmarshal([]byte(response), &got); err != nil {
		return nil, fmt.Errorf("failed to parse recognition response: %w", err)
	}
	return &got, nil
}

func clamp(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
