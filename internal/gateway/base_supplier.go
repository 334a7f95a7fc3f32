package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/rbravo-MCR/car-rental-reservations/internal/domain"
	"github.com/rbravo-MCR/car-rental-reservations/pkg/logger"
	"github.com/rbravo-MCR/car-rental-reservations/pkg/retry"
)

// supplierRetryConfig retries transport errors and 5xx up to 3 times.
// 4xx responses are never retried: the supplier understood the request and
// rejected it, so repeating it cannot help.
var supplierRetryConfig = &retry.Config{
	MaxRetries:      3,
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     5 * time.Second,
	Multiplier:      2.0,
	JitterFactor:    0.2,
}

// SupplierAPIError is a non-2xx response from a supplier API
type SupplierAPIError struct {
	Supplier   string
	StatusCode int
	Body       []byte
}

func (e *SupplierAPIError) Error() string {
	return fmt.Sprintf("%s returned HTTP %d", e.Supplier, e.StatusCode)
}

// Retryable reports whether repeating the request could succeed
func (e *SupplierAPIError) Retryable() bool {
	return e.StatusCode >= 500
}

// baseSupplierClient carries the HTTP plumbing shared by supplier gateways:
// pooled connections, per-attempt logging, retry policy and timeout
// classification.
type baseSupplierClient struct {
	supplierName string
	baseURL      string
	httpClient   *http.Client
	log          *logger.Logger
}

func newBaseSupplierClient(supplierName, baseURL string, timeout time.Duration) *baseSupplierClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &baseSupplierClient{
		supplierName: supplierName,
		baseURL:      baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		log: logger.Get().With(zap.String("supplier", supplierName)),
	}
}

// doJSON sends a JSON request and decodes a JSON response, applying the
// supplier retry policy. The response body is returned for the audit trail.
func (c *baseSupplierClient) doJSON(ctx context.Context, method, path string, headers map[string]string, reqBody, respBody any) ([]byte, error) {
	var encoded []byte
	if reqBody != nil {
		var err error
		encoded, err = json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s request: %w", c.supplierName, err)
		}
	}

	var raw []byte
	attempt := 0

	err := retry.Do(ctx, supplierRetryConfig, func(ctx context.Context) error {
		attempt++
		start := time.Now()

		body, err := c.doOnce(ctx, method, path, headers, encoded)
		elapsed := time.Since(start)

		log := c.log.With(
			zap.String("method", method),
			zap.String("endpoint", path),
			zap.Int("attempt", attempt),
			zap.Duration("elapsed", elapsed),
		)

		if err != nil {
			var apiErr *SupplierAPIError
			if errors.As(err, &apiErr) {
				log.Warn("supplier request rejected", zap.Int("status", apiErr.StatusCode))
				if !apiErr.Retryable() {
					return retry.Permanent(err)
				}
				return err
			}
			log.Warn("supplier request failed", zap.Error(err))
			return err
		}

		log.Info("supplier request completed")
		raw = body
		return nil
	})

	if err != nil {
		if isTimeout(err) {
			return nil, &domain.SupplierTimeoutError{Supplier: c.supplierName, Message: err.Error()}
		}
		return nil, err
	}

	if respBody != nil {
		if err := json.Unmarshal(raw, respBody); err != nil {
			return raw, fmt.Errorf("failed to decode %s response: %w", c.supplierName, err)
		}
	}
	return raw, nil
}

func (c *baseSupplierClient) doOnce(ctx context.Context, method, path string, headers map[string]string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", c.supplierName, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", c.supplierName, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &SupplierAPIError{
			Supplier:   c.supplierName,
			StatusCode: resp.StatusCode,
			Body:       respBody,
		}
	}
	return respBody, nil
}

// Close releases pooled connections held by the client
func (c *baseSupplierClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
