// Package llm owns the generation-model collaborators: provider clients
// behind a single Caller interface, a provider factory, and the retrying
// stage executor every analysis stage runs through.
package llm

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"
)

// Request is one strict-JSON generation call.
type Request struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int64
}

// Caller is the provider-agnostic generation contract. Implementations must
// return the raw text of the model response and surface transport failures
// as errors.
type Caller interface {
	GenerateJSON(ctx context.Context, req Request) (string, error)
}

// Config selects and configures a provider.
type Config struct {
	Provider   string // "anthropic" or "azure-openai"
	APIKey     string
	Model      string
	Endpoint   string // Azure resource endpoint
	Deployment string // Azure deployment name
	APIVersion string
	MaxTokens  int64
}

const defaultMaxTokens = 4096

type failureClass int

const (
	failureTimeout failureClass = iota
	failureRateLimit
	failureServer
	failureClient
)

func classifyTransportError(err error) failureClass {
	if errors.Is(err, context.DeadlineExceeded) {
		return failureTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return failureTimeout
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit"):
		return failureRateLimit
	case strings.Contains(msg, "status code: 5") || strings.Contains(msg, " 5") || strings.Contains(msg, "server error"):
		return failureServer
	case strings.Contains(msg, "status code: 4") || strings.Contains(msg, " 4"):
		return failureClient
	default:
		return failureServer
	}
}

func backoffDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return 1 * time.Second
	}
	return 2 * time.Second
}
