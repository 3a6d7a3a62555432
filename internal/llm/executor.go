package llm

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pkruk/accident-clerk/internal/domain"
)

// Metrics counts what one executor run cost.
type Metrics struct {
	Attempts       int
	ContentRetries int
}

// Executor runs one generation call with up to three attempts. Transient
// transport failures back off and retry; empty or malformed content is
// retried with corrective feedback appended to the prompt; everything else
// fails fast.
type Executor struct {
	caller  Caller
	limiter *rate.Limiter
}

func NewExecutor(caller Caller) *Executor {
	return &Executor{
		caller:  caller,
		limiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 2),
	}
}

// Run sends req and hands the raw response to decode, which repairs and
// validates it. A decode error triggers a content retry carrying the error
// text back to the model as feedback.
func (e *Executor) Run(ctx context.Context, stageName string, req Request, decode func(raw string) error) (Metrics, error) {
	metrics := Metrics{}
	feedback := ""
	for attempt := 1; attempt <= 3; attempt++ {
		metrics.Attempts = attempt

		attemptReq := req
		attemptReq.User = req.User + "\n\nOdpowiedz wyłącznie poprawnym JSON zgodnym ze schematem."
		if feedback != "" {
			attemptReq.User += "\n\n" + feedback
		}

		if err := e.limiter.Wait(ctx); err != nil {
			return metrics, err
		}

		raw, err := e.caller.GenerateJSON(ctx, attemptReq)
		if err != nil {
			class := classifyTransportError(err)
			if class == failureTimeout || class == failureRateLimit || class == failureServer {
				if attempt < 3 {
					log.Printf("[%s] transient transport failure (attempt %d): %v", stageName, attempt, err)
					time.Sleep(backoffDelay(attempt))
					continue
				}
			}
			return metrics, &domain.ExternalServiceError{Service: "llm", Err: fmt.Errorf("%s transport failure: %w", stageName, err)}
		}

		if strings.TrimSpace(raw) == "" {
			if attempt < 3 {
				metrics.ContentRetries++
				feedback = "Poprzednia odpowiedź była pusta. Odpowiedz poprawnym JSON."
				continue
			}
			return metrics, fmt.Errorf("%s failed: empty response", stageName)
		}

		if err := decode(raw); err != nil {
			if attempt < 3 {
				metrics.ContentRetries++
				feedback = fmt.Sprintf("Poprzednia odpowiedź nie przeszła walidacji: %s. Popraw te błędy.", err)
				continue
			}
			return metrics, fmt.Errorf("%s: %w", stageName, err)
		}
		return metrics, nil
	}
	return metrics, fmt.Errorf("%s failed after retries", stageName)
}
