// Package pdf converts rendered HTML into PDF documents through a hosted
// conversion API.
package pdf

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/carelink/carelink/internal/platform/apperr"
)

const PDFShiftURL = "https://api.pdfshift.io/v3/convert/pdf"

// Renderer turns an HTML document into PDF bytes.
type Renderer interface {
	Render(ctx context.Context, html string) ([]byte, error)
}

// HTML2PDFRenderer posts {"html": ...} with an X-Api-Key header.
type HTML2PDFRenderer struct {
	URL    string
	APIKey string
	Client *http.Client
}

func (r *HTML2PDFRenderer) Render(ctx context.Context, html string) ([]byte, error) {
	req, err := newJSONRequest(ctx, r.URL, map[string]string{"html": html})
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Api-Key", r.APIKey)
	return do(client(r.Client), req)
}

// PDFShiftRenderer posts {"source": ...} using basic auth api:<key>.
type PDFShiftRenderer struct {
	URL    string
	APIKey string
	Client *http.Client
}

func (r *PDFShiftRenderer) Render(ctx context.Context, html string) ([]byte, error) {
	url := r.URL
	if url == "" {
		url = PDFShiftURL
	}
	req, err := newJSONRequest(ctx, url, map[string]string{"source": html})
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth("api", r.APIKey)
	return do(client(r.Client), req)
}

// Options carries the provider settings from configuration.
type Options struct {
	Provider    string
	APIURL      string
	APIKey      string
	PDFShiftKey string
}

// NewRenderer selects a renderer by provider name.
func NewRenderer(o Options) (Renderer, error) {
	hc := &http.Client{Timeout: 30 * time.Second}
	switch o.Provider {
	case "", "html2pdf":
		return &HTML2PDFRenderer{URL: o.APIURL, APIKey: o.APIKey, Client: hc}, nil
	case "pdfshift":
		return &PDFShiftRenderer{APIKey: o.PDFShiftKey, Client: hc}, nil
	}
	return nil, fmt.Errorf("unknown pdf provider %q", o.Provider)
}

func client(c *http.Client) *http.Client {
	if c == nil {
		return http.DefaultClient
	}
	return c
}

func newJSONRequest(ctx context.Context, url string, body interface{}) (*http.Request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build pdf request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func do(c *http.Client, req *http.Request) ([]byte, error) {
	resp, err := c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: pdf render: %v", apperr.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("%w: pdf service returned %d: %s", apperr.ErrUpstream, resp.StatusCode, snippet)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: pdf service returned an empty document", apperr.ErrUpstream)
	}
	return data, nil
}
