// Package imagegen wraps the image-generation provider: a text prompt in,
// base64-encoded image bytes out. Generation parameters are fixed per
// deployment.
package imagegen

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

	"github.com/parleylabs/parley/internal/config"
	"go.uber.org/zap"
)

var ErrProvider = errors.New("imagegen_provider_error")

type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type HTTPClient struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	http    *http.Client
	log     *zap.Logger
}

func NewHTTPClient(cfg config.Config, log *zap.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.ImageGenBaseURL, "/"),
		apiKey:  cfg.ImageGenAPIKey,
		timeout: cfg.ImageGenTimeout,
		http:    &http.Client{Timeout: cfg.ImageGenTimeout},
		log:     log.Named("providers.imagegen"),
	}
}

func (c *HTTPClient) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"prompt": prompt,
		"count":  1,
		"format": "b64",
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProvider, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/images", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProvider, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.log.Warn("imagegen request failed",
			zap.Int("status", resp.StatusCode),
		)
		return "", fmt.Errorf("%w: status %d: %s", ErrProvider, resp.StatusCode, string(payload))
	}

	var out struct {
		Images []string `json:"images"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrProvider, err)
	}
	if len(out.Images) == 0 {
		return "", fmt.Errorf("%w: empty response", ErrProvider)
	}
	return out.Images[0], nil
}
