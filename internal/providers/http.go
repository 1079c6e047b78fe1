package providers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

// maxBodyBytes caps how much of a provider response is read.
const maxBodyBytes = 4 << 20

// HTTPProvider posts the location request as JSON to a configured endpoint and
// returns the response body as the raw payload.
type HTTPProvider struct {
	name         string
	category     Category
	priority     int
	url          string
	secret       string
	secretHeader string
	httpClient   *http.Client
}

// HTTPProviderConfig configures an HTTPProvider.
type HTTPProviderConfig struct {
	Name         string
	Category     Category
	Priority     int
	URL          string
	Secret       string
	SecretHeader string
	Client       *http.Client
}

// NewHTTPProvider creates a new HTTP-backed provider
func NewHTTPProvider(cfg HTTPProviderConfig) *HTTPProvider {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	header := cfg.SecretHeader
	if header == "" {
		header = "X-Provider-Secret"
	}
	return &HTTPProvider{
		name:         cfg.Name,
		category:     cfg.Category,
		priority:     cfg.Priority,
		url:          cfg.URL,
		secret:       cfg.Secret,
		secretHeader: header,
		httpClient:   client,
	}
}

func (p *HTTPProvider) Name() string       { return p.name }
func (p *HTTPProvider) Category() Category { return p.category }
func (p *HTTPProvider) Priority() int      { return p.priority }

// Fetch requests the category payload for the given location
func (p *HTTPProvider) Fetch(ctx context.Context, req Request) ([]byte, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if p.secret != "" {
		httpReq.Header.Set(p.secretHeader, p.secret)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := body
		if len(snippet) > 256 {
			snippet = snippet[:256]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(snippet)}
	}

	return body, nil
}
