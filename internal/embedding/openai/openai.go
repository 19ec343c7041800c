package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"
)

// Client talks to an OpenAI-compatible /embeddings endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	client     *http.Client
	maxRetries uint64
}

// Config configures the embeddings client. APIKeyEnv names the environment
// variable holding the key, so the key itself never lives in config files.
type Config struct {
	BaseURL    string
	APIKeyEnv  string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "OPENAI_API_KEY"
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 5
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     key,
		model:      cfg.Model,
		client:     &http.Client{Timeout: t},
		maxRetries: uint64(retries),
	}, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "openai" }

// Embed returns an embedding vector for the given text. Rate limits and
// server errors are retried with capped exponential backoff.
func (c *Client) Embed(text string) ([]float64, error) {
	var vec []float64
	backoff := retry.WithMaxRetries(c.maxRetries,
		retry.WithCappedDuration(5*time.Second, retry.NewExponential(200*time.Millisecond)))
	err := retry.Do(context.Background(), backoff, func(ctx context.Context) error {
		v, err := c.embedOnce(text)
		if err != nil {
			var re *retriableError
			if errors.As(err, &re) {
				return retry.RetryableError(re.err)
			}
			return err
		}
		vec = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vec, nil
}

type retriableError struct{ err error }

func (e *retriableError) Error() string { return e.err.Error() }

func (c *Client) embedOnce(text string) ([]float64, error) {
	body, _ := json.Marshal(map[string]any{
		"input": text,
		"model": c.model,
	})
	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &retriableError{err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		// Respect Retry-After when the server supplies one.
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, convErr := strconv.Atoi(ra); convErr == nil {
				time.Sleep(time.Duration(secs) * time.Second)
			}
		}
		return nil, &retriableError{fmt.Errorf("embeddings request failed: %s", resp.Status)}
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("embeddings request failed: %s", resp.Status)
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &retriableError{err}
	}
	var out struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &out); err == nil && len(out.Data) > 0 && len(out.Data[0].Embedding) > 0 {
		return out.Data[0].Embedding, nil
	}
	// Ollama-native shape: { "embedding": [...] }
	var alt struct {
		Embedding []float64 `json:"embedding"`
	}
	if err := json.Unmarshal(payload, &alt); err == nil && len(alt.Embedding) > 0 {
		return alt.Embedding, nil
	}
	return nil, errors.New("no embedding returned")
}
