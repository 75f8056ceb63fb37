// Package render calls the external report rendering service, which turns a
// report document into PDF bytes.
package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"civicwatch/internal/domain"
)

// DefaultTimeout bounds a single render call.
const DefaultTimeout = 30 * time.Second

// maxPDFBytes caps how much of a response body is read.
const maxPDFBytes = 50 << 20

// Client posts reports to {baseURL}/render and returns the PDF body.
// It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// HTTPClient exposes the underlying client so tests can swap its transport.
func (c *Client) HTTPClient() *http.Client { return c.httpClient }

type renderRequest struct {
	Report                *domain.Report `json:"report"`
	IncludeVisualizations bool           `json:"include_visualizations"`
}

func (c *Client) Render(ctx context.Context, r *domain.Report) ([]byte, error) {
	body, err := json.Marshal(renderRequest{Report: r, IncludeVisualizations: r.Options.IncludeVisualizations})
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/render", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build render request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/pdf")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("render request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("renderer returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	pdf, err := io.ReadAll(io.LimitReader(resp.Body, maxPDFBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read render response: %w", err)
	}
	if len(pdf) > maxPDFBytes {
		return nil, fmt.Errorf("rendered document exceeds %d bytes", maxPDFBytes)
	}
	if len(pdf) == 0 {
		return nil, fmt.Errorf("renderer returned an empty document")
	}
	return pdf, nil
}
