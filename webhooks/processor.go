package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-botway/core"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	DeliveryStatusPending    = "pending"
	DeliveryStatusProcessing = "processing"
	DeliveryStatusProcessed  = "processed"
	DeliveryStatusRetryReady = "retry_ready"
	DeliveryStatusDead       = "dead"
)

// DeliveryRecord tracks one webhook delivery through the dedupe ledger.
type DeliveryRecord struct {
	ID            string
	ClaimID       string
	DeliveryID    string
	Status        string
	Attempts      int
	NextAttemptAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DeliveryLedger claims deliveries exactly once per lease. A second claim of
// the same delivery id while the first is live (or after it processed) comes
// back claimed=false so duplicates are acknowledged without re-dispatch.
type DeliveryLedger interface {
	Claim(ctx context.Context, deliveryID string, payload []byte, lease time.Duration) (DeliveryRecord, bool, error)
	Get(ctx context.Context, deliveryID string) (DeliveryRecord, error)
	Complete(ctx context.Context, claimID string) error
	Fail(ctx context.Context, claimID string, cause error, nextAttemptAt time.Time, maxAttempts int) error
}

type Verifier interface {
	Verify(ctx context.Context, req core.InboundRequest) error
}

type DeliveryIDExtractor func(req core.InboundRequest) (string, error)

type RetryPolicy interface {
	NextDelay(attempt int) time.Duration
}

// UpdateDispatcher is the downstream consumer of a parsed update. Dispatch
// always completes; the outcome is informational.
type UpdateDispatcher interface {
	Dispatch(ctx context.Context, update core.Update) core.DispatchOutcome
}

type ExponentialRetryPolicy struct {
	Initial time.Duration
	Max     time.Duration
}

func (p ExponentialRetryPolicy) NextDelay(attempt int) time.Duration {
	initial := p.Initial
	if initial <= 0 {
		initial = time.Second
	}
	maximum := p.Max
	if maximum <= 0 {
		maximum = 30 * time.Second
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

// Processor turns one raw webhook delivery into one dispatched update:
// verify, claim against the ledger, decode, dispatch, settle the claim.
type Processor struct {
	Verifier    Verifier
	Ledger      DeliveryLedger
	Dispatcher  UpdateDispatcher
	ExtractID   DeliveryIDExtractor
	RetryPolicy RetryPolicy
	Logger      glog.Logger
	ClaimLease  time.Duration
	MaxAttempts int
	Now         func() time.Time
}

func NewProcessor(verifier Verifier, ledger DeliveryLedger, dispatcher UpdateDispatcher) *Processor {
	return &Processor{
		Verifier:    verifier,
		Ledger:      ledger,
		Dispatcher:  dispatcher,
		ExtractID:   UpdateIDExtractor,
		RetryPolicy: ExponentialRetryPolicy{},
		Logger:      glog.Nop(),
		ClaimLease:  30 * time.Second,
		MaxAttempts: 8,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (p *Processor) Process(ctx context.Context, req core.InboundRequest) (core.InboundResult, error) {
	if p == nil || p.Dispatcher == nil || p.Ledger == nil {
		return core.InboundResult{}, fmt.Errorf("webhooks: processor requires dispatcher and ledger")
	}

	if p.Verifier != nil {
		if err := p.Verifier.Verify(ctx, req); err != nil {
			return core.InboundResult{
				Accepted:   false,
				StatusCode: http.StatusUnauthorized,
				Metadata:   map[string]any{"rejected": true},
			}, err
		}
	}

	extractor := p.ExtractID
	if extractor == nil {
		extractor = UpdateIDExtractor
	}
	deliveryID, err := extractor(req)
	if err != nil {
		return core.InboundResult{
			Accepted:   false,
			StatusCode: http.StatusBadRequest,
			Metadata:   map[string]any{"rejected": true},
		}, err
	}

	delivery, claimed, err := p.Ledger.Claim(ctx, deliveryID, req.Body, p.claimLease())
	if err != nil {
		return core.InboundResult{}, err
	}
	if !claimed {
		return core.InboundResult{
			Accepted:   true,
			StatusCode: http.StatusOK,
			Metadata: map[string]any{
				"delivery_id": delivery.DeliveryID,
				"status":      delivery.Status,
				"deduped":     true,
			},
		}, nil
	}

	update, parseErr := core.ParseUpdate(req.Body)
	if parseErr != nil {
		// Poison payloads never become parseable; settle the claim so the
		// delivery is not retried, and tell the transport it was malformed.
		if markErr := p.Ledger.Complete(ctx, delivery.ClaimID); markErr != nil {
			return core.InboundResult{}, markErr
		}
		core.EmitLog(ctx, p.Logger, "warn", "malformed update payload", map[string]any{
			"delivery_id": deliveryID,
			"error":       parseErr.Error(),
		})
		return core.InboundResult{
			Accepted:   false,
			StatusCode: http.StatusBadRequest,
			Metadata:   map[string]any{"delivery_id": deliveryID, "malformed": true},
		}, parseErr
	}

	outcome := p.Dispatcher.Dispatch(ctx, update)

	if err := p.Ledger.Complete(ctx, delivery.ClaimID); err != nil {
		nextAttemptAt := p.now().Add(p.retryPolicy().NextDelay(delivery.Attempts))
		_ = p.Ledger.Fail(ctx, delivery.ClaimID, err, nextAttemptAt, p.maxAttempts())
		return core.InboundResult{}, err
	}

	return core.InboundResult{
		Accepted:   true,
		StatusCode: http.StatusOK,
		Metadata: map[string]any{
			"delivery_id": deliveryID,
			"update_id":   update.UpdateID,
			"kind":        string(outcome.Kind),
			"status":      string(outcome.Status),
		},
	}, nil
}

// UpdateIDExtractor derives the dedupe key from the update payload itself;
// the platform retries webhook deliveries with the same update_id.
func UpdateIDExtractor(req core.InboundRequest) (string, error) {
	var probe struct {
		UpdateID *int64 `json:"update_id"`
	}
	if err := json.Unmarshal(req.Body, &probe); err == nil && probe.UpdateID != nil {
		return fmt.Sprintf("update-%d", *probe.UpdateID), nil
	}
	if req.Metadata != nil {
		if value := strings.TrimSpace(fmt.Sprint(req.Metadata["delivery_id"])); value != "" && value != "<nil>" {
			return value, nil
		}
	}
	if value := headerValue(req.Headers, "x-delivery-id"); value != "" {
		return value, nil
	}
	return "", fmt.Errorf("webhooks: delivery id is required for dedupe")
}

func ChainDeliveryIDExtractors(extractors ...DeliveryIDExtractor) DeliveryIDExtractor {
	list := append([]DeliveryIDExtractor(nil), extractors...)
	return func(req core.InboundRequest) (string, error) {
		var lastErr error
		for _, extractor := range list {
			if extractor == nil {
				continue
			}
			deliveryID, err := extractor(req)
			if err == nil && strings.TrimSpace(deliveryID) != "" {
				return strings.TrimSpace(deliveryID), nil
			}
			if err != nil {
				lastErr = err
			}
		}
		if lastErr != nil {
			return "", lastErr
		}
		return "", fmt.Errorf("webhooks: delivery id is required for dedupe")
	}
}

func (p *Processor) now() time.Time {
	if p != nil && p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func (p *Processor) retryPolicy() RetryPolicy {
	if p != nil && p.RetryPolicy != nil {
		return p.RetryPolicy
	}
	return ExponentialRetryPolicy{}
}

func (p *Processor) claimLease() time.Duration {
	if p != nil && p.ClaimLease > 0 {
		return p.ClaimLease
	}
	return 30 * time.Second
}

func (p *Processor) maxAttempts() int {
	if p != nil && p.MaxAttempts > 0 {
		return p.MaxAttempts
	}
	return 8
}

func headerValue(headers map[string]string, key string) string {
	if len(headers) == 0 {
		return ""
	}
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
