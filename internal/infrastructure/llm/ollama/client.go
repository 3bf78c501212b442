package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/document-enrichment/internal/core/domain"
	"github.com/kirillkom/document-enrichment/internal/infrastructure/resilience"
)

type Options struct {
	Timeout time.Duration
	// APIKey is sent as a bearer token when the endpoint sits behind a gateway.
	APIKey string
	// RateLimitRPS caps outgoing generate calls; zero disables the limiter.
	RateLimitRPS       float64
	RateLimitBurst     int
	ResilienceExecutor *resilience.Executor
}

// Client invokes text generation on an Ollama-compatible endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	executor   *resilience.Executor
	limiter    *rate.Limiter
}

func New(baseURL string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	var limiter *rate.Limiter
	if options.RateLimitRPS > 0 {
		burst := options.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(options.RateLimitRPS), burst)
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     strings.TrimSpace(options.APIKey),
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.ResilienceExecutor,
		limiter:    limiter,
	}
}

// Invoke sends prompt to modelID and returns the trimmed response text.
// Throttling is retried by the executor; once retries run out the error
// carries both ErrModelInvocationFailed and ErrModelThrottled.
func (c *Client) Invoke(ctx context.Context, modelID, prompt string) (string, error) {
	if strings.TrimSpace(modelID) == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "ollama generate", errors.New("model id is required"))
	}

	var text string
	call := func(callCtx context.Context) error {
		if c.limiter != nil {
			if err := c.limiter.Wait(callCtx); err != nil {
				return fmt.Errorf("rate limit wait: %w", err)
			}
		}
		out, err := c.generate(callCtx, modelID, prompt)
		if err != nil {
			return err
		}
		text = out
		return nil
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "ollama.generate", call, classifyOllamaError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", wrapInvocationError("ollama generate", err)
	}
	return text, nil
}

func (c *Client) generate(ctx context.Context, modelID, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  modelID,
		"prompt": prompt,
		"stream": false,
	}
	var response struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}
