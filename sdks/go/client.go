package quadguard

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Client is the QuadGuard SDK client. It calls the QuadGuard HTTP surface's
// /v1/evaluate endpoint to check a candidate valuation against the live
// message or action policy set.
type Client struct {
	serverAddr string
	failMode   string
	timeout    time.Duration
	httpClient *http.Client

	// Cache fields.
	cache        sync.Map
	cacheTTL     time.Duration
	cacheMaxSize int
	cacheCount   int64
	cacheMu      sync.Mutex

	logger *slog.Logger
}

// cacheEntry is a cached evaluation response with expiry.
type cacheEntry struct {
	response  *EvaluateResponse
	expiresAt time.Time
	createdAt time.Time
}

// NewClient creates a new QuadGuard SDK client.
// It reads configuration from QUADGUARD_* environment variables by default.
// Options can be used to override the defaults.
func NewClient(opts ...Option) *Client {
	c := &Client{
		serverAddr:   os.Getenv("QUADGUARD_SERVER_ADDR"),
		failMode:     envOrDefault("QUADGUARD_FAIL_MODE", "open"),
		timeout:      parseDurationEnv("QUADGUARD_TIMEOUT", 5*time.Second),
		cacheTTL:     parseDurationEnv("QUADGUARD_CACHE_TTL", 5*time.Second),
		cacheMaxSize: parseIntEnv("QUADGUARD_CACHE_MAX_SIZE", 1000),
		logger:       slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Timeout: c.timeout,
		}
	}

	return c
}

// Evaluate sends a policy evaluation request to the QuadGuard server and
// returns the decision. On deny, it returns a *PolicyDeniedError. On server
// unreachable with fail_mode=open, it returns an allow response.
func (c *Client) Evaluate(ctx context.Context, req EvaluateRequest) (*EvaluateResponse, error) {
	cacheKey := c.buildCacheKey(req)
	if resp, ok := c.getFromCache(cacheKey); ok {
		return resp, nil
	}

	resp, err := c.doEvaluate(ctx, req)
	if err != nil {
		if isConnectionError(err) {
			if c.failMode == "closed" {
				return nil, &ServerUnreachableError{Cause: err}
			}
			c.logger.Warn("quadguard server unreachable, failing open",
				"server_addr", c.serverAddr,
				"error", err,
			)
			return &EvaluateResponse{Decision: true}, nil
		}
		return nil, err
	}

	if !resp.Decision {
		return nil, &PolicyDeniedError{Violated: resp.Violated, Missing: resp.Missing}
	}

	c.putInCache(cacheKey, resp)
	return resp, nil
}

// Check is a convenience method that evaluates a request and returns a
// boolean. It returns true if the valuation is allowed, false if denied.
// Unlike Evaluate, it does not return an error on policy denial.
func (c *Client) Check(ctx context.Context, req EvaluateRequest) (bool, error) {
	resp, err := c.Evaluate(ctx, req)
	if err != nil {
		var denied *PolicyDeniedError
		if errors.As(err, &denied) {
			return false, nil
		}
		return false, err
	}
	return resp.Decision, nil
}

// doEvaluate sends the HTTP request to the policy evaluation endpoint.
func (c *Client) doEvaluate(ctx context.Context, req EvaluateRequest) (*EvaluateResponse, error) {
	var resp EvaluateResponse
	if err := c.doRequest(ctx, http.MethodPost, "/v1/evaluate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// doRequest performs an HTTP request to the QuadGuard server.
func (c *Client) doRequest(ctx context.Context, method, path string, body any, result any) error {
	url := strings.TrimRight(c.serverAddr, "/") + path

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return &QuadGuardError{
			Code: fmt.Sprintf("HTTP_%d", httpResp.StatusCode),
			Err:  fmt.Errorf("server returned %d: %s", httpResp.StatusCode, string(respBody)),
		}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}

// buildCacheKey creates a cache key from the evaluation request: kind plus
// a hash of the valuation map, since Go map iteration order is unstable.
func (c *Client) buildCacheKey(req EvaluateRequest) string {
	h := sha256.New()
	if req.Valuation != nil {
		valBytes, _ := json.Marshal(req.Valuation)
		h.Write(valBytes)
	}
	valHash := hex.EncodeToString(h.Sum(nil))[:16]
	return fmt.Sprintf("%s:%s", req.Kind, valHash)
}

// getFromCache retrieves a cached response if it exists and hasn't expired.
func (c *Client) getFromCache(key string) (*EvaluateResponse, bool) {
	val, ok := c.cache.Load(key)
	if !ok {
		return nil, false
	}
	entry := val.(*cacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.cache.Delete(key)
		c.cacheMu.Lock()
		c.cacheCount--
		c.cacheMu.Unlock()
		return nil, false
	}
	return entry.response, true
}

// putInCache stores a response in the cache.
func (c *Client) putInCache(key string, resp *EvaluateResponse) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()

	if c.cacheCount >= int64(c.cacheMaxSize) {
		now := time.Now()
		evicted := 0
		c.cache.Range(func(k, v any) bool {
			entry := v.(*cacheEntry)
			if now.After(entry.expiresAt) {
				c.cache.Delete(k)
				evicted++
			}
			return evicted < 100
		})
		c.cacheCount -= int64(evicted)

		if c.cacheCount >= int64(c.cacheMaxSize) {
			var oldest time.Time
			var oldestKey any
			c.cache.Range(func(k, v any) bool {
				entry := v.(*cacheEntry)
				if oldest.IsZero() || entry.createdAt.Before(oldest) {
					oldest = entry.createdAt
					oldestKey = k
				}
				return true
			})
			if oldestKey != nil {
				c.cache.Delete(oldestKey)
				c.cacheCount--
			}
		}
	}

	c.cache.Store(key, &cacheEntry{
		response:  resp,
		expiresAt: time.Now().Add(c.cacheTTL),
		createdAt: time.Now(),
	})
	c.cacheCount++
}

// isConnectionError determines if an error is a connection-level error
// (server unreachable, connection refused, timeout, etc.).
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}

	var qgErr *QuadGuardError
	if errors.As(err, &qgErr) {
		return false
	}

	// All other errors from http.Client.Do are connection errors
	// (DNS resolution, connection refused, TLS handshake, timeouts).
	return true
}

// Helper functions for env var parsing.

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func parseDurationEnv(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return defaultVal
}

func parseIntEnv(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return defaultVal
}
