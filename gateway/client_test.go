package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-botway/core"
)

type scriptedCall struct {
	body string
	err  error
}

type fakeTransport struct {
	script []scriptedCall
	calls  int
	paths  []string
}

func (f *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.paths = append(f.paths, req.URL.Path)
	call := scriptedCall{body: `{"ok": true, "result": {}}`}
	if f.calls < len(f.script) {
		call = f.script[f.calls]
	}
	f.calls++
	if call.err != nil {
		return nil, call.err
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(call.body)),
		Header:     http.Header{},
	}, nil
}

func newTestClient(transport *fakeTransport) (*Client, *[]time.Duration) {
	client := NewClient(core.GatewayConfig{
		BaseURL:           "https://api.example.test",
		Token:             "secret-token",
		MaxAttempts:       3,
		AttemptTimeout:    10 * time.Second,
		InitialBackoff:    time.Second,
		MaxBackoff:        5 * time.Second,
		FailureThreshold:  5,
		Cooldown:          30 * time.Second,
		DefaultRetryAfter: time.Second,
	})
	client.HTTPClient = &http.Client{Transport: transport}
	slept := &[]time.Duration{}
	client.Sleep = func(_ context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	}
	return client, slept
}

func TestClient_CallSuccess(t *testing.T) {
	transport := &fakeTransport{script: []scriptedCall{
		{body: `{"ok": true, "result": {"message_id": 10}}`},
	}}
	client, slept := newTestClient(transport)

	result := client.Call(context.Background(), "sendMessage", map[string]any{"chat_id": 42, "text": "hi"})
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if transport.calls != 1 {
		t.Fatalf("expected a single request, got %d", transport.calls)
	}
	if len(*slept) != 0 {
		t.Fatalf("expected no sleeps on success, got %v", *slept)
	}
	if want := "/botsecret-token/sendMessage"; transport.paths[0] != want {
		t.Fatalf("expected path %q, got %q", want, transport.paths[0])
	}
	if snapshot := client.Breaker().Snapshot(); snapshot.ConsecutiveFailures != 0 || snapshot.State != StateClosed {
		t.Fatalf("expected closed breaker, got %+v", snapshot)
	}
}

func TestClient_RetriesTransportFailuresWithBackoff(t *testing.T) {
	transport := &fakeTransport{script: []scriptedCall{
		{err: errors.New("connection reset")},
		{err: errors.New("connection reset")},
		{err: errors.New("connection reset")},
	}}
	client, slept := newTestClient(transport)

	result := client.Call(context.Background(), "sendMessage", nil)
	if result.Success {
		t.Fatal("expected failure after exhausting attempts")
	}
	if transport.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", transport.calls)
	}
	if len(*slept) != 2 {
		t.Fatalf("expected 2 backoff sleeps, got %v", *slept)
	}
	if (*slept)[0] != time.Second || (*slept)[1] != 2*time.Second {
		t.Fatalf("expected 1s then 2s backoff, got %v", *slept)
	}
	if snapshot := client.Breaker().Snapshot(); snapshot.ConsecutiveFailures != 1 {
		t.Fatalf("expected exactly one breaker failure per exhausted call, got %d", snapshot.ConsecutiveFailures)
	}
}

func TestClient_BackoffCapsAtMax(t *testing.T) {
	client, _ := newTestClient(&fakeTransport{})
	client.MaxAttempts = 6

	delays := []time.Duration{
		client.backoffDelay(1),
		client.backoffDelay(2),
		client.backoffDelay(3),
		client.backoffDelay(4),
		client.backoffDelay(5),
	}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for i := range want {
		if delays[i] != want[i] {
			t.Fatalf("attempt %d: expected %s, got %s", i+1, want[i], delays[i])
		}
	}
}

func TestClient_RateLimitSleepsAdvertisedHint(t *testing.T) {
	transport := &fakeTransport{script: []scriptedCall{
		{body: `{"ok": false, "error_code": 429, "description": "Too Many Requests: retry after 3"}`},
		{body: `{"ok": true, "result": {}}`},
	}}
	client, slept := newTestClient(transport)

	result := client.Call(context.Background(), "sendMessage", nil)
	if !result.Success {
		t.Fatalf("expected recovery after rate limit, got %q", result.Error)
	}
	if len(*slept) != 1 || (*slept)[0] != 3*time.Second {
		t.Fatalf("expected a single 3s sleep, got %v", *slept)
	}
}

func TestClient_RateLimitDefaultsWhenHintUnparsable(t *testing.T) {
	transport := &fakeTransport{script: []scriptedCall{
		{body: `{"ok": false, "error_code": 429, "description": "Too Many Requests"}`},
		{body: `{"ok": true, "result": {}}`},
	}}
	client, slept := newTestClient(transport)

	result := client.Call(context.Background(), "sendMessage", nil)
	if !result.Success {
		t.Fatalf("expected recovery, got %q", result.Error)
	}
	if len(*slept) != 1 || (*slept)[0] != time.Second {
		t.Fatalf("expected default 1s sleep, got %v", *slept)
	}
}

func TestClient_RateLimitExhaustionCarriesHint(t *testing.T) {
	transport := &fakeTransport{script: []scriptedCall{
		{body: `{"ok": false, "error_code": 429, "description": "retry after 2"}`},
		{body: `{"ok": false, "error_code": 429, "description": "retry after 2"}`},
		{body: `{"ok": false, "error_code": 429, "description": "retry after 2"}`},
	}}
	client, _ := newTestClient(transport)

	result := client.Call(context.Background(), "sendMessage", nil)
	if result.Success {
		t.Fatal("expected failure")
	}
	if result.RetryAfter != 2*time.Second {
		t.Fatalf("expected retry-after hint surfaced, got %s", result.RetryAfter)
	}
}

func TestClient_UpstreamErrorConsumesAttempts(t *testing.T) {
	transport := &fakeTransport{script: []scriptedCall{
		{body: `{"ok": false, "error_code": 400, "description": "Bad Request: chat not found"}`},
		{body: `{"ok": false, "error_code": 400, "description": "Bad Request: chat not found"}`},
		{body: `{"ok": false, "error_code": 400, "description": "Bad Request: chat not found"}`},
	}}
	client, _ := newTestClient(transport)

	result := client.Call(context.Background(), "sendMessage", nil)
	if result.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(result.Error, "chat not found") {
		t.Fatalf("expected upstream description in error, got %q", result.Error)
	}
	if transport.calls != 3 {
		t.Fatalf("expected the generic attempt loop, got %d attempts", transport.calls)
	}
}

func TestClient_OpenBreakerFastFailsWithoutIO(t *testing.T) {
	transport := &fakeTransport{}
	client, _ := newTestClient(transport)
	now := time.Unix(1_700_000_000, 0).UTC()
	client.Breaker().Now = func() time.Time { return now }
	for i := 0; i < 5; i++ {
		client.Breaker().RecordFailure()
	}

	result := client.Call(context.Background(), "sendMessage", nil)
	if result.Success {
		t.Fatal("expected fast fail")
	}
	if result.Error != "circuit breaker open" {
		t.Fatalf("expected breaker error, got %q", result.Error)
	}
	if transport.calls != 0 {
		t.Fatalf("expected no network io, got %d requests", transport.calls)
	}
	if snapshot := client.Breaker().Snapshot(); snapshot.ConsecutiveFailures != 5 {
		t.Fatalf("fast fail must not count an additional failure, got %d", snapshot.ConsecutiveFailures)
	}
}

func TestClient_HalfOpenProbeRecovers(t *testing.T) {
	transport := &fakeTransport{script: []scriptedCall{
		{body: `{"ok": true, "result": {}}`},
	}}
	client, _ := newTestClient(transport)
	now := time.Unix(1_700_000_000, 0).UTC()
	client.Breaker().Now = func() time.Time { return now }
	for i := 0; i < 5; i++ {
		client.Breaker().RecordFailure()
	}
	now = now.Add(31 * time.Second)

	result := client.Call(context.Background(), "getMe", nil)
	if !result.Success {
		t.Fatalf("expected probe to succeed, got %q", result.Error)
	}
	if snapshot := client.Breaker().Snapshot(); snapshot.State != StateClosed || snapshot.ConsecutiveFailures != 0 {
		t.Fatalf("expected breaker reset after probe, got %+v", snapshot)
	}
}

func TestClient_HalfOpenProbeRetriesWithinCall(t *testing.T) {
	transport := &fakeTransport{script: []scriptedCall{
		{err: errors.New("connection reset")},
		{body: `{"ok": true, "result": {}}`},
	}}
	client, _ := newTestClient(transport)
	now := time.Unix(1_700_000_000, 0).UTC()
	client.Breaker().Now = func() time.Time { return now }
	for i := 0; i < 5; i++ {
		client.Breaker().RecordFailure()
	}
	now = now.Add(31 * time.Second)

	// The probing call keeps its retry budget even though the breaker
	// refuses other callers while the probe is in flight.
	result := client.Call(context.Background(), "getMe", nil)
	if !result.Success {
		t.Fatalf("expected retried probe to succeed, got %q", result.Error)
	}
	if transport.calls != 2 {
		t.Fatalf("expected two requests, got %d", transport.calls)
	}
	if snapshot := client.Breaker().Snapshot(); snapshot.State != StateClosed {
		t.Fatalf("expected breaker reset after probe, got %+v", snapshot)
	}
}

func TestClient_EmptyMethodRejected(t *testing.T) {
	client, _ := newTestClient(&fakeTransport{})
	result := client.Call(context.Background(), "  ", nil)
	if result.Success {
		t.Fatal("expected failure for empty method")
	}
}

func TestParseRetryAfter(t *testing.T) {
	cases := []struct {
		description string
		want        time.Duration
	}{
		{"Too Many Requests: retry after 7", 7 * time.Second},
		{"Retry After 12", 12 * time.Second},
		{"no hint here", time.Second},
		{"retry after zero", time.Second},
		{"retry after 0", time.Second},
	}
	for _, tc := range cases {
		if got := parseRetryAfter(tc.description, time.Second); got != tc.want {
			t.Fatalf("%q: expected %s, got %s", tc.description, tc.want, got)
		}
	}
}

func TestClient_TypedHelpers(t *testing.T) {
	transport := &fakeTransport{}
	client, _ := newTestClient(transport)
	ctx := context.Background()

	client.SendMessage(ctx, 42, "hello", map[string]any{"parse_mode": "HTML"})
	client.EditMessageText(ctx, 42, 7, "edited", nil)
	client.AnswerCallbackQuery(ctx, "cb1", "ack", false)
	client.AnswerInlineQuery(ctx, "iq1", []map[string]any{{"type": "article"}}, nil)
	client.GetMe(ctx)

	wantPaths := []string{
		"/botsecret-token/sendMessage",
		"/botsecret-token/editMessageText",
		"/botsecret-token/answerCallbackQuery",
		"/botsecret-token/answerInlineQuery",
		"/botsecret-token/getMe",
	}
	if len(transport.paths) != len(wantPaths) {
		t.Fatalf("expected %d calls, got %d", len(wantPaths), len(transport.paths))
	}
	for i, want := range wantPaths {
		if transport.paths[i] != want {
			t.Fatalf("call %d: expected %q, got %q", i, want, transport.paths[i])
		}
	}
}

func TestClient_ScenarioFiveExhaustedCallsOpenBreaker(t *testing.T) {
	script := make([]scriptedCall, 0, 15)
	for i := 0; i < 15; i++ {
		script = append(script, scriptedCall{err: fmt.Errorf("connection refused")})
	}
	transport := &fakeTransport{script: script}
	client, _ := newTestClient(transport)
	now := time.Unix(1_700_000_000, 0).UTC()
	client.Breaker().Now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		client.Call(context.Background(), "sendMessage", nil)
	}
	if snapshot := client.Breaker().Snapshot(); snapshot.State != StateOpen {
		t.Fatalf("expected open breaker after 5 exhausted calls, got %s", snapshot.State)
	}

	before := transport.calls
	result := client.Call(context.Background(), "sendMessage", nil)
	if result.Error != "circuit breaker open" {
		t.Fatalf("expected immediate breaker failure, got %q", result.Error)
	}
	if transport.calls != before {
		t.Fatal("expected the sixth call to perform no network io")
	}
}
