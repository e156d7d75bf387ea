package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/parleylabs/parley/internal/config"
	"github.com/parleylabs/parley/internal/providers/payment/domain"
	"go.uber.org/zap"
)

// Client talks to the payment provider's REST API using key-pair basic auth.
type Client struct {
	baseURL string
	keyID   string
	secret  string
	timeout time.Duration
	http    *http.Client
	log     *zap.Logger
}

func NewClient(cfg config.Config, log *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.PaymentBaseURL, "/"),
		keyID:   cfg.PaymentKeyID,
		secret:  cfg.PaymentKeySecret,
		timeout: cfg.PaymentTimeout,
		http:    &http.Client{Timeout: cfg.PaymentTimeout},
		log:     log.Named("providers.payment"),
	}
}

func (c *Client) Secret() string {
	return c.secret
}

func (c *Client) CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (domain.Order, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return domain.Order{}, fmt.Errorf("%w: %v", domain.ErrProvider, err)
	}

	var order domain.Order
	if err := c.do(ctx, http.MethodPost, "/v1/orders", bytes.NewReader(body), &order); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func (c *Client) FetchOrder(ctx context.Context, providerOrderID string) (domain.Order, error) {
	var order domain.Order
	path := "/v1/orders/" + url.PathEscape(providerOrderID)
	if err := c.do(ctx, http.MethodGet, path, nil, &order); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrProvider, err)
	}
	req.SetBasicAuth(c.keyID, c.secret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrProvider, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrOrderNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.log.Warn("provider request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return fmt.Errorf("%w: status %d: %s", domain.ErrProvider, resp.StatusCode, string(payload))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", domain.ErrProvider, err)
	}
	return nil
}
