// FILE: logveil/src/internal/sink/http.go
package sink

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"logveil/src/internal/core"
	"logveil/src/internal/version"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lixenwraith/log"
	"github.com/valyala/fasthttp"
)

// HTTPConfig configures the HTTP push sink.
type HTTPConfig struct {
	URL                string
	TimeoutSeconds     int64
	MaxRetries         int64
	RetryDelayMS       int64
	RetryBackoff       float64
	InsecureSkipVerify bool

	// Auth: either a static bearer token or an HS256 signing secret
	// for minted tokens, not both.
	BearerToken   string
	JWTSecret     string
	JWTIssuer     string
	JWTTTLSeconds int64
}

// HTTPSink pushes NDJSON records to a remote endpoint. It retries
// transient failures with capped exponential backoff; 4xx responses
// are never retried. It implements BatchWriter so a buffered wrapper
// delivers a whole flush in one request.
type HTTPSink struct {
	cfg    HTTPConfig
	client *fasthttp.Client
	logger *log.Logger

	// Minted token cache
	tokenMu sync.Mutex
	token   string
	renewAt time.Time

	// Statistics
	startTime    time.Time
	totalWritten atomic.Uint64
	totalFailed  atomic.Uint64
	totalPosts   atomic.Uint64
	lastWrite    atomic.Value // time.Time
}

// NewHTTPSink creates the sink and its fasthttp client.
func NewHTTPSink(cfg HTTPConfig, logger *log.Logger) (*HTTPSink, error) {
	if !strings.HasPrefix(cfg.URL, "http://") && !strings.HasPrefix(cfg.URL, "https://") {
		return nil, fmt.Errorf("invalid http sink url: %q", cfg.URL)
	}
	if cfg.BearerToken != "" && cfg.JWTSecret != "" {
		return nil, fmt.Errorf("configure either bearer_token or jwt_secret, not both")
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 5
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelayMS <= 0 {
		cfg.RetryDelayMS = 500
	}
	if cfg.RetryBackoff < 1.0 {
		cfg.RetryBackoff = 2.0
	}
	if cfg.JWTTTLSeconds <= 0 {
		cfg.JWTTTLSeconds = 300
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	h := &HTTPSink{
		cfg:    cfg,
		logger: logger,
		client: &fasthttp.Client{
			MaxConnsPerHost:               10,
			MaxIdleConnDuration:           10 * time.Second,
			ReadTimeout:                   timeout,
			WriteTimeout:                  timeout,
			DisableHeaderNamesNormalizing: true,
		},
		startTime: time.Now(),
	}
	h.lastWrite.Store(time.Time{})

	if strings.HasPrefix(cfg.URL, "https://") && cfg.InsecureSkipVerify {
		h.client.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}

	logger.Info("msg", "HTTP sink created",
		"component", "http_sink",
		"url", cfg.URL,
		"timeout_seconds", cfg.TimeoutSeconds,
		"max_retries", cfg.MaxRetries)
	return h, nil
}

// Write implements Sink.
func (h *HTTPSink) Write(rec core.Record) error {
	return h.post([]core.Record{rec})
}

// WriteBatch implements BatchWriter: one POST carries the whole batch.
func (h *HTTPSink) WriteBatch(recs []core.Record) error {
	if len(recs) == 0 {
		return nil
	}
	return h.post(recs)
}

// post sends records as newline-delimited payload with retry logic.
func (h *HTTPSink) post(recs []core.Record) error {
	var buf bytes.Buffer
	for _, rec := range recs {
		buf.Write(rec.Data)
		if len(rec.Data) == 0 || rec.Data[len(rec.Data)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	body := buf.Bytes()

	authHeader, err := h.authHeader()
	if err != nil {
		h.totalFailed.Add(uint64(len(recs)))
		return err
	}

	timeout := time.Duration(h.cfg.TimeoutSeconds) * time.Second
	retryDelay := time.Duration(h.cfg.RetryDelayMS) * time.Millisecond

	var lastErr error
	for attempt := int64(0); attempt <= h.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(retryDelay)

			// Grow the delay with overflow protection, capped at the
			// request timeout.
			newDelay := time.Duration(float64(retryDelay) * h.cfg.RetryBackoff)
			if newDelay > timeout || newDelay < retryDelay {
				retryDelay = timeout
			} else {
				retryDelay = newDelay
			}
		}

		// Acquire inside the loop, release immediately after use
		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()

		req.SetRequestURI(h.cfg.URL)
		req.Header.SetMethod(fasthttp.MethodPost)
		req.Header.SetContentType("application/x-ndjson")
		req.Header.Set("User-Agent", fmt.Sprintf("logveil/%s", version.Short()))
		if authHeader != "" {
			req.Header.Set("Authorization", authHeader)
		}
		req.SetBody(body)

		err := h.client.DoTimeout(req, resp, timeout)

		statusCode := resp.StatusCode()
		var responseBody []byte
		if len(resp.Body()) > 0 {
			responseBody = make([]byte, len(resp.Body()))
			copy(responseBody, resp.Body())
		}

		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)

		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			h.logger.Warn("msg", "HTTP push failed",
				"component", "http_sink",
				"attempt", attempt+1,
				"max_retries", h.cfg.MaxRetries,
				"error", err)
			continue
		}

		if statusCode >= 200 && statusCode < 300 {
			h.totalWritten.Add(uint64(len(recs)))
			h.totalPosts.Add(1)
			h.lastWrite.Store(time.Now())
			return nil
		}

		lastErr = fmt.Errorf("server returned status %d: %s", statusCode, responseBody)

		// Client errors will not get better with retries.
		if statusCode >= 400 && statusCode < 500 {
			break
		}

		h.logger.Warn("msg", "Server returned error status",
			"component", "http_sink",
			"attempt", attempt+1,
			"status_code", statusCode)
	}

	h.totalFailed.Add(uint64(len(recs)))
	return lastErr
}

// authHeader returns the Authorization value for the next request,
// minting and caching an HS256 token when a signing secret is
// configured. Tokens are renewed before expiry so requests never carry
// a stale one.
func (h *HTTPSink) authHeader() (string, error) {
	if h.cfg.BearerToken != "" {
		return "Bearer " + h.cfg.BearerToken, nil
	}
	if h.cfg.JWTSecret == "" {
		return "", nil
	}

	h.tokenMu.Lock()
	defer h.tokenMu.Unlock()

	now := time.Now()
	if h.token != "" && now.Before(h.renewAt) {
		return "Bearer " + h.token, nil
	}

	ttl := time.Duration(h.cfg.JWTTTLSeconds) * time.Second
	claims := jwt.MapClaims{
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if h.cfg.JWTIssuer != "" {
		claims["iss"] = h.cfg.JWTIssuer
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(h.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	h.token = signed
	h.renewAt = now.Add(ttl - ttl/5)
	return "Bearer " + signed, nil
}

// Close releases idle connections. In-flight requests finish on their
// own timeouts.
func (h *HTTPSink) Close() error {
	h.client.CloseIdleConnections()
	return nil
}

func (h *HTTPSink) GetStats() Stats {
	lastWrite, _ := h.lastWrite.Load().(time.Time)

	return Stats{
		Type:         "http",
		TotalWritten: h.totalWritten.Load(),
		TotalFailed:  h.totalFailed.Load(),
		StartTime:    h.startTime,
		LastWrite:    lastWrite,
		Details: map[string]any{
			"url":         h.cfg.URL,
			"total_posts": h.totalPosts.Load(),
			"max_retries": h.cfg.MaxRetries,
		},
	}
}
