// Package llm is a small client for OpenAI-compatible chat completion APIs.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/carelink/carelink/internal/platform/apperr"
)

// ErrNoJSON is returned by ExtractJSON when the text holds no JSON object.
var ErrNoJSON = errors.New("llm: no json object in response")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Options struct {
	Temperature float64
	MaxTokens   int
}

// Completer is implemented by Client; services depend on it so tests can
// script responses.
type Completer interface {
	Complete(ctx context.Context, msgs []Message, opts Options) (string, error)
}

type Client struct {
	URL    string
	APIKey string
	Model  string
	HTTP   *http.Client
}

func NewClient(url, apiKey, model string) *Client {
	return &Client{URL: url, APIKey: apiKey, Model: model, HTTP: &http.Client{Timeout: 30 * time.Second}}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Complete sends the conversation and returns the first choice's content.
func (c *Client) Complete(ctx context.Context, msgs []Message, opts Options) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model:       c.Model,
		Messages:    msgs,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: completion: %v", apperr.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return "", fmt.Errorf("%w: completion returned %d: %s", apperr.ErrUpstream, resp.StatusCode, snippet)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode completion: %v", apperr.ErrUpstream, err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: completion returned no choices", apperr.ErrUpstream)
	}
	return out.Choices[0].Message.Content, nil
}

// ExtractJSON strips markdown code fences and returns the first balanced JSON
// object found in s.
func ExtractJSON(s string) (string, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", ErrNoJSON
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		ch := s[i]
		switch {
		case escaped:
			escaped = false
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", ErrNoJSON
}

// CompleteJSON runs a completion and decodes the first JSON object into v.
func CompleteJSON(ctx context.Context, c Completer, msgs []Message, opts Options, v interface{}) error {
	text, err := c.Complete(ctx, msgs, opts)
	if err != nil {
		return err
	}
	raw, err := ExtractJSON(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("decode llm json: %w", err)
	}
	return nil
}
