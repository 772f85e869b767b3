package otp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Sender delivers a text message to a phone number.
type Sender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// HTTPSMSSender posts {to, message} to an SMS gateway.
type HTTPSMSSender struct {
	URL    string
	APIKey string
	Client *http.Client
}

func NewHTTPSMSSender(url, apiKey string) *HTTPSMSSender {
	return &HTTPSMSSender{URL: url, APIKey: apiKey, Client: &http.Client{Timeout: 10 * time.Second}}
}

func (s *HTTPSMSSender) SendSMS(ctx context.Context, to, body string) error {
	payload, err := json.Marshal(map[string]string{"to": to, "message": body})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.APIKey)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("sms gateway returned %d: %s", resp.StatusCode, snippet)
	}
	return nil
}

// LogSender writes messages to the log instead of sending them. Development
// only: the code ends up in plain text.
type LogSender struct {
	Logger zerolog.Logger
}

func (s LogSender) SendSMS(_ context.Context, to, body string) error {
	s.Logger.Warn().Str("to", to).Str("body", body).Msg("sms not sent (development sender)")
	return nil
}
