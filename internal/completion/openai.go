package completion

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

	"archive-rag/internal/domain"
)

// Client is an OpenAI-compatible chat-completions client.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	counter    TokenCounter
	maxContext int
	client     *http.Client
	maxRetries int
}

// Config configures the chat-completions client.
type Config struct {
	BaseURL          string
	APIKeyEnv        string
	Model            string
	Timeout          time.Duration
	MaxContextTokens int
}

// NewClient creates a completions client using the provided configuration.
func NewClient(cfg Config, counter TokenCounter) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	maxCtx := cfg.MaxContextTokens
	if maxCtx <= 0 {
		maxCtx = 3000
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     key,
		model:      cfg.Model,
		counter:    counter,
		maxContext: maxCtx,
		client:     &http.Client{Timeout: t},
		maxRetries: 3,
	}, nil
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Complete sends the system prompt, the prior turns and the question with
// its context block, and returns the generated answer.
func (c *Client) Complete(ctx context.Context, system string, turns []domain.Turn, question string, contextChunks []domain.SearchResult) (string, error) {
	messages := make([]message, 0, len(turns)+2)
	messages = append(messages, message{Role: "system", Content: system})
	for _, t := range turns {
		messages = append(messages, message{Role: string(t.Role), Content: t.Text})
	}

	block := BuildContextBlock(contextChunks, c.counter, c.maxContext)
	user := question
	if block != "" {
		user = block + "Question: " + question
	}
	messages = append(messages, message{Role: "user", Content: user})

	reqBody := map[string]any{
		"model":    c.model,
		"messages": messages,
	}
	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}
	url := c.baseURL + "/chat/completions"

	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			if attempt < c.maxRetries && ctx.Err() == nil {
				time.Sleep(retryDelay(attempt))
				continue
			}
			return "", err
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			delay := retryDelay(attempt)
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, err := strconv.Atoi(ra); err == nil {
					delay = time.Duration(secs) * time.Second
				}
			}
			_ = resp.Body.Close()
			if attempt < c.maxRetries {
				time.Sleep(delay)
				continue
			}
			return "", fmt.Errorf("completion request failed: %s", resp.Status)
		}
		if resp.StatusCode >= 300 {
			body, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			return "", fmt.Errorf("completion returned %s: %s", resp.Status, string(body))
		}

		var out struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
		}
		err = json.NewDecoder(resp.Body).Decode(&out)
		_ = resp.Body.Close()
		if err != nil {
			return "", err
		}
		if len(out.Choices) == 0 {
			return "", errors.New("no completion returned")
		}
		return out.Choices[0].Message.Content, nil
	}
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := 200 * time.Millisecond
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
