package providers

import (
	"context"
)

// Config represents the configuration for a vision provider call
type Config struct {
	Model       string
	Temperature float64
	Prompt      string
}

// Provider defines the interface for a vision-capable LLM provider
type Provider interface {
	Name() string
	DescribeImage(ctx context.Context, config Config, jpeg []byte) (string, error)
}
