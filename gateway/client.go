// Package gateway issues outbound calls to the messaging platform API. Every
// call is wrapped in a bounded retry loop with exponential backoff and a
// circuit breaker; no failure path escapes as an error or panic.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-botway/core"
)

const (
	DefaultMaxAttempts    = 3
	DefaultAttemptTimeout = 10 * time.Second
	DefaultInitialBackoff = time.Second
	DefaultMaxBackoff     = 5 * time.Second
	DefaultRetryAfter     = time.Second

	breakerOpenError   = "circuit breaker open"
	rateLimitErrorCode = 429
)

var retryAfterPattern = regexp.MustCompile(`(?i)retry after (\d+)`)

// apiEnvelope is the upstream error envelope; consumed, never produced.
type apiEnvelope struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
}

// Client is the resilient outbound gateway. One client owns one breaker and
// targets one upstream credential. The breaker state is re-read before each
// attempt; it is never cached across a sleep or a network suspend.
type Client struct {
	BaseURL           string
	Token             string
	HTTPClient        *http.Client
	Logger            core.Logger
	Metrics           core.MetricsRecorder
	MaxAttempts       int
	AttemptTimeout    time.Duration
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	DefaultRetryAfter time.Duration
	Now               func() time.Time
	Sleep             func(ctx context.Context, d time.Duration) error

	breaker *Breaker
}

func NewClient(cfg core.GatewayConfig) *Client {
	client := &Client{
		BaseURL:           strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		Token:             strings.TrimSpace(cfg.Token),
		MaxAttempts:       cfg.MaxAttempts,
		AttemptTimeout:    cfg.AttemptTimeout,
		InitialBackoff:    cfg.InitialBackoff,
		MaxBackoff:        cfg.MaxBackoff,
		DefaultRetryAfter: cfg.DefaultRetryAfter,
		breaker:           NewBreaker(cfg.FailureThreshold, cfg.Cooldown),
	}
	if client.BaseURL == "" {
		client.BaseURL = "https://api.telegram.org"
	}
	return client
}

// Breaker exposes the client's breaker for status reporting.
func (c *Client) Breaker() *Breaker {
	if c == nil {
		return nil
	}
	return c.breaker
}

// Call issues one upstream API call with retries, backoff, and breaker
// protection. It never returns an error; all failures resolve to an
// APIResult with Success=false.
func (c *Client) Call(ctx context.Context, method string, params map[string]any) core.APIResult {
	if c == nil {
		return core.APIResult{Success: false, Error: "gateway: client is not configured"}
	}
	method = strings.TrimSpace(method)
	if method == "" {
		return core.APIResult{Success: false, Error: "gateway: method is required"}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	startedAt := c.nowValue()
	attempts := c.maxAttempts()
	var last core.APIResult
	var holdingProbe bool
	for attempt := 1; attempt <= attempts; attempt++ {
		state, proceed := c.breaker.Allow()
		if state == StateHalfOpen {
			if proceed {
				holdingProbe = true
			} else if holdingProbe {
				// This call already holds the probe slot, so its
				// remaining retries stay admitted.
				proceed = true
			}
		}
		if !proceed {
			c.log(ctx, "warn", "circuit breaker open, fast failing", map[string]any{
				"method":  method,
				"attempt": attempt,
			})
			c.count(ctx, "botway.gateway.breaker_fast_fail", map[string]string{"method": method})
			return core.APIResult{Success: false, Error: breakerOpenError}
		}
		if state == StateHalfOpen {
			c.log(ctx, "info", "circuit breaker half-open, probing upstream", map[string]any{
				"method": method,
			})
		}

		outcome := c.attempt(ctx, method, params)
		if outcome.result.Success {
			c.breaker.RecordSuccess()
			c.count(ctx, "botway.gateway.calls.total", map[string]string{"method": method, "status": "success"})
			c.observe(ctx, startedAt, method)
			return outcome.result
		}
		last = outcome.result

		switch {
		case outcome.rateLimited:
			c.log(ctx, "warn", "upstream rate limited", map[string]any{
				"method":      method,
				"attempt":     attempt,
				"retry_after": outcome.result.RetryAfter.String(),
			})
		case outcome.transport:
			c.log(ctx, "warn", "transport failure", map[string]any{
				"method":  method,
				"attempt": attempt,
				"error":   outcome.result.Error,
			})
		default:
			c.log(ctx, "error", "upstream api error", map[string]any{
				"method":  method,
				"attempt": attempt,
				"error":   outcome.result.Error,
			})
		}

		if attempt == attempts {
			break
		}
		// Rate-limit sleeps honor the advertised hint instead of the
		// backoff schedule but still consume an attempt.
		delay := c.backoffDelay(attempt)
		if outcome.rateLimited {
			delay = outcome.result.RetryAfter
			if delay <= 0 {
				delay = c.defaultRetryAfter()
			}
		}
		if err := c.sleep(ctx, delay); err != nil {
			last = core.APIResult{Success: false, Error: fmt.Sprintf("gateway: call canceled: %v", err)}
			break
		}
	}

	if c.breaker.RecordFailure() {
		snapshot := c.breaker.Snapshot()
		c.log(ctx, "error", "circuit breaker opened", map[string]any{
			"method":               method,
			"consecutive_failures": snapshot.ConsecutiveFailures,
		})
		c.count(ctx, "botway.gateway.breaker_open", map[string]string{"method": method})
	}
	c.count(ctx, "botway.gateway.calls.total", map[string]string{"method": method, "status": "failure"})
	c.observe(ctx, startedAt, method)
	if last.Error == "" {
		last = core.APIResult{Success: false, Error: "gateway: call failed"}
	}
	return last
}

type attemptOutcome struct {
	result      core.APIResult
	rateLimited bool
	transport   bool
}

func (c *Client) attempt(ctx context.Context, method string, params map[string]any) attemptOutcome {
	payload := params
	if payload == nil {
		payload = map[string]any{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return attemptOutcome{result: core.APIResult{
			Success: false,
			Error:   fmt.Sprintf("gateway: encode params: %v", err),
		}}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout())
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.endpoint(method), bytes.NewReader(body))
	if err != nil {
		return attemptOutcome{result: core.APIResult{
			Success: false,
			Error:   fmt.Sprintf("gateway: build request: %v", err),
		}}
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient().Do(req)
	if err != nil {
		return attemptOutcome{
			result:    core.APIResult{Success: false, Error: fmt.Sprintf("gateway: transport: %v", err)},
			transport: true,
		}
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return attemptOutcome{
			result:    core.APIResult{Success: false, Error: fmt.Sprintf("gateway: read response: %v", err)},
			transport: true,
		}
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return attemptOutcome{result: core.APIResult{
			Success: false,
			Error:   fmt.Sprintf("gateway: decode upstream response: %v", err),
		}}
	}

	if envelope.OK {
		return attemptOutcome{result: core.APIResult{Success: true, Data: envelope.Result}}
	}

	if envelope.ErrorCode == rateLimitErrorCode {
		retryAfter := parseRetryAfter(envelope.Description, c.defaultRetryAfter())
		return attemptOutcome{
			result: core.APIResult{
				Success:    false,
				Error:      fmt.Sprintf("upstream error %d: %s", envelope.ErrorCode, envelope.Description),
				RetryAfter: retryAfter,
			},
			rateLimited: true,
		}
	}

	return attemptOutcome{result: core.APIResult{
		Success: false,
		Error:   fmt.Sprintf("upstream error %d: %s", envelope.ErrorCode, envelope.Description),
	}}
}

// parseRetryAfter extracts the "retry after N" hint in seconds from the
// upstream description, falling back when absent or unparsable.
func parseRetryAfter(description string, fallback time.Duration) time.Duration {
	match := retryAfterPattern.FindStringSubmatch(description)
	if len(match) != 2 {
		return fallback
	}
	seconds, err := strconv.Atoi(match[1])
	if err != nil || seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	initial := c.InitialBackoff
	if initial <= 0 {
		initial = DefaultInitialBackoff
	}
	maximum := c.MaxBackoff
	if maximum <= 0 {
		maximum = DefaultMaxBackoff
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maximum {
			return maximum
		}
	}
	if delay > maximum {
		return maximum
	}
	return delay
}

func (c *Client) endpoint(method string) string {
	return c.BaseURL + "/bot" + c.Token + "/" + method
}

func (c *Client) httpClient() *http.Client {
	if c != nil && c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	if c != nil && c.Sleep != nil {
		return c.Sleep(ctx, d)
	}
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) maxAttempts() int {
	if c != nil && c.MaxAttempts > 0 {
		return c.MaxAttempts
	}
	return DefaultMaxAttempts
}

func (c *Client) attemptTimeout() time.Duration {
	if c != nil && c.AttemptTimeout > 0 {
		return c.AttemptTimeout
	}
	return DefaultAttemptTimeout
}

func (c *Client) defaultRetryAfter() time.Duration {
	if c != nil && c.DefaultRetryAfter > 0 {
		return c.DefaultRetryAfter
	}
	return DefaultRetryAfter
}

func (c *Client) nowValue() time.Time {
	if c != nil && c.Now != nil {
		return c.Now().UTC()
	}
	return time.Now().UTC()
}

func (c *Client) log(ctx context.Context, level string, message string, fields map[string]any) {
	core.EmitLog(ctx, c.Logger, level, message, fields)
}

func (c *Client) count(ctx context.Context, name string, tags map[string]string) {
	if c == nil || c.Metrics == nil {
		return
	}
	c.Metrics.IncCounter(ctx, name, 1, core.CloneTags(tags))
}

func (c *Client) observe(ctx context.Context, startedAt time.Time, method string) {
	if c == nil || c.Metrics == nil {
		return
	}
	elapsed := c.nowValue().Sub(startedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	c.Metrics.ObserveHistogram(ctx, "botway.gateway.call.duration_ms", float64(elapsed.Milliseconds()), map[string]string{
		"method": method,
	})
}
