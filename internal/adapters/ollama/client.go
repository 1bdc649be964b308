// Package ollama adapts the external LLM to the detector and text
// generation ports. The model is used strictly for violation detection and
// semantic matching; it never computes scores.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"
)

type Client struct {
	baseURL    string
	model      string
	maxRetries int
	httpClient *http.Client

	// The chat API is preferred; on a 404 we fall back to /api/generate
	// and stay there for the process lifetime.
	useChatAPI atomic.Bool
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

func New(baseURL, model string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		maxRetries: 3,
		httpClient: &http.Client{Timeout: timeout},
	}
	c.useChatAPI.Store(true)
	for _, o := range opts {
		o(c)
	}
	return c
}

// HealthCheck verifies the service is reachable and the configured model
// is present.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama tags: status %d", resp.StatusCode)
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return fmt.Errorf("ollama tags: %w", err)
	}
	for _, m := range tags.Models {
		if strings.Contains(m.Name, c.model) {
			return nil
		}
	}
	return fmt.Errorf("model %q not loaded", c.model)
}

// Generate sends a prompt and returns the raw completion text. Attempts
// are retried with exponential backoff (1s, 2s, 4s, ...) up to the
// configured ceiling; the last error is returned on exhaustion.
func (c *Client) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	var out string
	backoff := retry.WithMaxRetries(uint64(c.maxRetries-1), retry.NewExponential(1*time.Second))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		if c.useChatAPI.Load() {
			out, err = c.chat(ctx, systemPrompt, userPrompt)
		} else {
			out, err = c.generate(ctx, joinPrompt(systemPrompt, userPrompt))
		}
		if err != nil {
			log.Printf("ollama call failed, will retry: %v", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

func joinPrompt(systemPrompt, userPrompt string) string {
	if systemPrompt == "" {
		return userPrompt
	}
	return "System: " + systemPrompt + "\n\nUser: " + userPrompt
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (c *Client) chat(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	msgs := make([]chatMessage, 0, 2)
	if systemPrompt != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: systemPrompt})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: userPrompt})

	body, status, err := c.post(ctx, "/api/chat", chatRequest{Model: c.model, Messages: msgs, Stream: false})
	if err != nil {
		return "", err
	}
	if status == http.StatusNotFound {
		// Older servers only expose /api/generate.
		log.Printf("ollama chat API unavailable, falling back to generate API")
		c.useChatAPI.Store(false)
		return c.generate(ctx, joinPrompt(systemPrompt, userPrompt))
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("ollama chat: status %d", status)
	}

	var out struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	return strings.TrimSpace(out.Message.Content), nil
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	body, status, err := c.post(ctx, "/api/generate", map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"stream": false,
	})
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("ollama generate: status %d", status)
	}

	var out struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	return strings.TrimSpace(out.Response), nil
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, int, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}
