package webhooks

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MemoryLedger is the in-process DeliveryLedger; the SQL store provides the
// durable one.
type MemoryLedger struct {
	mu      sync.Mutex
	records map[string]DeliveryRecord

	Now func() time.Time
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		records: map[string]DeliveryRecord{},
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (l *MemoryLedger) Claim(
	_ context.Context,
	deliveryID string,
	_ []byte,
	lease time.Duration,
) (DeliveryRecord, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := strings.TrimSpace(deliveryID)
	if key == "" {
		return DeliveryRecord{}, false, fmt.Errorf("webhooks: delivery id is required")
	}
	now := l.currentTime()
	if lease <= 0 {
		lease = 30 * time.Second
	}

	record, ok := l.records[key]
	if !ok {
		record = DeliveryRecord{
			ID:         key,
			DeliveryID: key,
			Status:     DeliveryStatusPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
	}
	switch record.Status {
	case DeliveryStatusProcessed, DeliveryStatusDead:
		l.records[key] = record
		return record, false, nil
	case DeliveryStatusRetryReady, DeliveryStatusProcessing:
		if record.NextAttemptAt != nil && now.Before(record.NextAttemptAt.UTC()) {
			l.records[key] = record
			return record, false, nil
		}
	}

	record.Status = DeliveryStatusProcessing
	record.Attempts++
	record.ClaimID = key + ":" + strconv.Itoa(record.Attempts)
	next := now.Add(lease)
	record.NextAttemptAt = &next
	record.UpdatedAt = now
	l.records[key] = record
	return record, true, nil
}

func (l *MemoryLedger) Get(_ context.Context, deliveryID string) (DeliveryRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	record, ok := l.records[strings.TrimSpace(deliveryID)]
	if !ok {
		return DeliveryRecord{}, fmt.Errorf("webhooks: delivery not found")
	}
	return record, nil
}

func (l *MemoryLedger) Complete(_ context.Context, claimID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key, attempt, err := parseClaimID(claimID)
	if err != nil {
		return err
	}
	record, ok := l.records[key]
	if !ok {
		return fmt.Errorf("webhooks: delivery not found")
	}
	if record.Status != DeliveryStatusProcessing || record.Attempts != attempt {
		return nil
	}
	record.Status = DeliveryStatusProcessed
	record.NextAttemptAt = nil
	record.UpdatedAt = l.currentTime()
	l.records[key] = record
	return nil
}

func (l *MemoryLedger) Fail(
	_ context.Context,
	claimID string,
	_ error,
	nextAttemptAt time.Time,
	maxAttempts int,
) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key, attempt, err := parseClaimID(claimID)
	if err != nil {
		return err
	}
	record, ok := l.records[key]
	if !ok {
		return fmt.Errorf("webhooks: delivery not found")
	}
	if record.Status != DeliveryStatusProcessing || record.Attempts != attempt {
		return nil
	}
	if maxAttempts <= 0 {
		maxAttempts = 8
	}
	if record.Attempts >= maxAttempts {
		record.Status = DeliveryStatusDead
		record.NextAttemptAt = nil
	} else {
		record.Status = DeliveryStatusRetryReady
		if nextAttemptAt.IsZero() {
			nextAttemptAt = l.currentTime()
		}
		record.NextAttemptAt = &nextAttemptAt
	}
	record.UpdatedAt = l.currentTime()
	l.records[key] = record
	return nil
}

// Snapshot clones the current records for inspection in tests and status
// surfaces.
func (l *MemoryLedger) Snapshot() []DeliveryRecord {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]DeliveryRecord, 0, len(l.records))
	for _, record := range l.records {
		cloned := record
		if record.NextAttemptAt != nil {
			next := *record.NextAttemptAt
			cloned.NextAttemptAt = &next
		}
		out = append(out, cloned)
	}
	return out
}

func (l *MemoryLedger) currentTime() time.Time {
	if l != nil && l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}

func parseClaimID(claimID string) (string, int, error) {
	parts := strings.Split(strings.TrimSpace(claimID), ":")
	if len(parts) < 2 {
		return "", 0, fmt.Errorf("webhooks: invalid claim id")
	}
	attempt, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil || attempt <= 0 {
		return "", 0, fmt.Errorf("webhooks: invalid claim id")
	}
	key := strings.Join(parts[:len(parts)-1], ":")
	return key, attempt, nil
}

var _ DeliveryLedger = (*MemoryLedger)(nil)
