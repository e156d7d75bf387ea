// Package completion wraps the text-completion provider: an ordered,
// role-tagged conversation in, generated text out.
package completion

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

var ErrProvider = errors.New("completion_provider_error")

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Attachment is an inline binary payload (an image) sent alongside the
// latest user turn.
type Attachment struct {
	MimeType   string `json:"mime_type"`
	DataBase64 string `json:"data"`
}

type Request struct {
	Model       string       `json:"model"`
	Turns       []Turn       `json:"messages"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

type HTTPClient struct {
	baseURL string
	apiKey  string
	model   string
	timeout time.Duration
	http    *http.Client
	log     *zap.Logger
}

func NewHTTPClient(cfg config.Config, log *zap.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.CompletionBaseURL, "/"),
		apiKey:  cfg.CompletionAPIKey,
		model:   cfg.CompletionModel,
		timeout: cfg.CompletionTimeout,
		http:    &http.Client{Timeout: cfg.CompletionTimeout},
		log:     log.Named("providers.completion"),
	}
}

func (c *HTTPClient) Complete(ctx context.Context, req Request) (string, error) {
	if req.Model == "" {
		req.Model = c.model
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProvider, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/complete", bytes.NewReader(body))
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
		c.log.Warn("completion request failed",
			zap.Int("status", resp.StatusCode),
		)
		return "", fmt.Errorf("%w: status %d: %s", ErrProvider, resp.StatusCode, string(payload))
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrProvider, err)
	}
	return out.Text, nil
}
