package adapter

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sribot/pkg/utils/logging"
	"github.com/sony/gobreaker"
	"google.golang.org/genai"
)

// BreakerConfig controls when calls to the model are short-circuited
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns the settings used by the serve command
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "gemini",
		MaxRequests:      3,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

type breakerGemini struct {
	next     Gemini
	generate *gobreaker.CircuitBreaker
	embed    *gobreaker.CircuitBreaker
}

// WithCircuitBreaker wraps a Gemini client. Generation and embedding trip independently.
func WithCircuitBreaker(next Gemini, cfg BreakerConfig) Gemini {
	return &breakerGemini{
		next:     next,
		generate: newBreaker(cfg, cfg.Name+"-generate"),
		embed:    newBreaker(cfg, cfg.Name+"-embed"),
	}
}

func newBreaker(cfg BreakerConfig, name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Default().Warn("circuit breaker state changed",
				slog.String("name", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
		// Cancellation by the caller and oversized input are not failures of the model
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || IsTokenLimitError(err)
		},
	})
}

func (b *breakerGemini) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	resp, err := b.generate.Execute(func() (interface{}, error) {
		return b.next.GenerateContent(ctx, contents, config)
	})
	if err != nil {
		return nil, goerr.Wrap(err, "gemini generate call failed", goerr.V("breaker", b.generate.State().String()))
	}
	return resp.(*genai.GenerateContentResponse), nil
}

func (b *breakerGemini) Embedding(ctx context.Context, text string, dimensionality int) ([]float32, error) {
	resp, err := b.embed.Execute(func() (interface{}, error) {
		return b.next.Embedding(ctx, text, dimensionality)
	})
	if err != nil {
		return nil, goerr.Wrap(err, "gemini embedding call failed", goerr.V("breaker", b.embed.State().String()))
	}
	return resp.([]float32), nil
}
