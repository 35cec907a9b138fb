package workerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/tternquist/districache/internal/apperr"
)

// defaultTimeout bounds every worker RPC. Grounded on the router's
// documented 10s worker-call budget.
const defaultTimeout = 10 * time.Second

// HTTPClient talks to a worker's internal/workerserver endpoints over plain
// HTTP.
type HTTPClient struct {
	addr    string
	base    string
	client  *http.Client
	timeout time.Duration
}

// NewHTTPClient builds a Client for the worker at addr (e.g.
// "http://127.0.0.1:8001").
func NewHTTPClient(addr string) *HTTPClient {
	return &HTTPClient{
		addr:    addr,
		base:    addr,
		client:  &http.Client{},
		timeout: defaultTimeout,
	}
}

var _ Client = (*HTTPClient)(nil)

func (c *HTTPClient) Addr() string { return c.addr }

func (c *HTTPClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

func (c *HTTPClient) do(req *http.Request) (*http.Response, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("workerclient: request to %s: %w", c.addr, apperr.Transport)
	}
	return resp, nil
}

type getResponse struct {
	Found bool   `json:"found"`
	Value string `json:"value"`
}

func (c *HTTPClient) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/get/"+url.PathEscape(key), nil)
	if err != nil {
		return "", false, fmt.Errorf("workerclient: build request: %w", err)
	}
	resp, err := c.do(req)
	if err != nil {
		return "", false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("workerclient: get returned %d: %w", resp.StatusCode, apperr.Transport)
	}
	var out getResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", false, fmt.Errorf("workerclient: decode get response: %w", err)
	}
	return out.Value, out.Found, nil
}

type putRequest struct {
	Key       string `json:"key"`
	Value     string `json:"value"`
	TTLSecond *int   `json:"ttl_seconds,omitempty"`
}

func (c *HTTPClient) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	body := putRequest{Key: key, Value: value}
	if ttl > 0 {
		secs := int(ttl.Seconds())
		body.TTLSecond = &secs
	}
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("workerclient: encode put request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/put", bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("workerclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("workerclient: put returned %d: %w", resp.StatusCode, apperr.Transport)
	}
	return nil
}

type deleteResponse struct {
	Existed bool `json:"existed"`
}

func (c *HTTPClient) Delete(ctx context.Context, key string) (bool, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.base+"/delete/"+url.PathEscape(key), nil)
	if err != nil {
		return false, fmt.Errorf("workerclient: build request: %w", err)
	}
	resp, err := c.do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("workerclient: delete returned %d: %w", resp.StatusCode, apperr.Transport)
	}
	var out deleteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("workerclient: decode delete response: %w", err)
	}
	return out.Existed, nil
}

func (c *HTTPClient) Stats(ctx context.Context) (Stats, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/stats", nil)
	if err != nil {
		return Stats{}, fmt.Errorf("workerclient: build request: %w", err)
	}
	resp, err := c.do(req)
	if err != nil {
		return Stats{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Stats{}, fmt.Errorf("workerclient: stats returned %d: %w", resp.StatusCode, apperr.Transport)
	}
	var out Stats
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Stats{}, fmt.Errorf("workerclient: decode stats response: %w", err)
	}
	return out, nil
}

func (c *HTTPClient) Clear(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/clear", nil)
	if err != nil {
		return fmt.Errorf("workerclient: build request: %w", err)
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("workerclient: clear returned %d: %w", resp.StatusCode, apperr.Transport)
	}
	return nil
}

func (c *HTTPClient) ListWithTTL(ctx context.Context) ([]Entry, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/debug/keys", nil)
	if err != nil {
		return nil, fmt.Errorf("workerclient: build request: %w", err)
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("workerclient: debug/keys returned %d: %w", resp.StatusCode, apperr.Transport)
	}
	var out []Entry
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("workerclient: decode debug/keys response: %w", err)
	}
	return out, nil
}

type cleanupResponse struct {
	Removed int `json:"removed"`
}

func (c *HTTPClient) CleanupExpired(ctx context.Context) (int, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/cleanup", nil)
	if err != nil {
		return 0, fmt.Errorf("workerclient: build request: %w", err)
	}
	resp, err := c.do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("workerclient: cleanup returned %d: %w", resp.StatusCode, apperr.Transport)
	}
	var out cleanupResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("workerclient: decode cleanup response: %w", err)
	}
	return out.Removed, nil
}

func (c *HTTPClient) Health(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/health", nil)
	if err != nil {
		return fmt.Errorf("workerclient: build request: %w", err)
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("workerclient: health returned %d: %w", resp.StatusCode, apperr.Transport)
	}
	return nil
}

// portFromAddr extracts the port component of a worker address, used by the
// router when it needs a bare port identifier for the partition map (e.g.
// "http://127.0.0.1:8001" -> "8001").
func portFromAddr(addr string) string {
	u, err := url.Parse(addr)
	if err != nil {
		return addr
	}
	if p := u.Port(); p != "" {
		return p
	}
	return addr
}

// PortFromAddr is the exported form of portFromAddr, used by the router.
func PortFromAddr(addr string) string { return portFromAddr(addr) }
