package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-botway/webhooks"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DeliveryStore is the durable webhook dedupe ledger. Claims rely on the
// unique delivery_id index: the first insert wins, every other delivery of
// the same update observes the existing row.
type DeliveryStore struct {
	db   *bun.DB
	repo repository.Repository[*webhookDeliveryRecord]

	Now func() time.Time
}

func NewDeliveryStore(db *bun.DB) (*DeliveryStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*webhookDeliveryRecord](db, deliveryHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid delivery repository wiring: %w", err)
		}
	}
	return &DeliveryStore{
		db:   db,
		repo: repo,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

func (s *DeliveryStore) Claim(
	ctx context.Context,
	deliveryID string,
	payload []byte,
	lease time.Duration,
) (webhooks.DeliveryRecord, bool, error) {
	if s == nil || s.db == nil {
		return webhooks.DeliveryRecord{}, false, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	deliveryID = strings.TrimSpace(deliveryID)
	if deliveryID == "" {
		return webhooks.DeliveryRecord{}, false, fmt.Errorf("sqlstore: delivery id is required")
	}
	now := s.now()
	if lease <= 0 {
		lease = 30 * time.Second
	}
	next := now.Add(lease)

	record := &webhookDeliveryRecord{
		ID:            uuid.NewString(),
		DeliveryID:    deliveryID,
		ClaimID:       uuid.NewString(),
		Status:        webhooks.DeliveryStatusProcessing,
		Attempts:      1,
		Payload:       append([]byte(nil), payload...),
		NextAttemptAt: &next,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if !isUniqueViolation(err) {
			return webhooks.DeliveryRecord{}, false, err
		}
		return s.reclaim(ctx, deliveryID, now, next)
	}
	return deliveryToDomain(record), true, nil
}

// reclaim handles the duplicate-insert path: settled or leased rows are
// deduped, expired leases and retry_ready rows are claimed again with an
// optimistic attempts guard.
func (s *DeliveryStore) reclaim(
	ctx context.Context,
	deliveryID string,
	now time.Time,
	next time.Time,
) (webhooks.DeliveryRecord, bool, error) {
	existing, err := s.Get(ctx, deliveryID)
	if err != nil {
		return webhooks.DeliveryRecord{}, false, err
	}
	switch existing.Status {
	case webhooks.DeliveryStatusProcessed, webhooks.DeliveryStatusDead:
		return existing, false, nil
	}
	if existing.NextAttemptAt != nil && now.Before(existing.NextAttemptAt.UTC()) {
		return existing, false, nil
	}

	claimID := uuid.NewString()
	res, err := s.db.NewUpdate().
		Model((*webhookDeliveryRecord)(nil)).
		Set("status = ?", webhooks.DeliveryStatusProcessing).
		Set("attempts = ?", existing.Attempts+1).
		Set("claim_id = ?", claimID).
		Set("next_attempt_at = ?", next).
		Set("updated_at = ?", now).
		Where("delivery_id = ?", deliveryID).
		Where("attempts = ?", existing.Attempts).
		Exec(ctx)
	if err != nil {
		return webhooks.DeliveryRecord{}, false, err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		// Lost the race to a concurrent claimer.
		return existing, false, nil
	}

	existing.Status = webhooks.DeliveryStatusProcessing
	existing.Attempts++
	existing.ClaimID = claimID
	existing.NextAttemptAt = &next
	existing.UpdatedAt = now
	return existing, true, nil
}

func (s *DeliveryStore) Get(ctx context.Context, deliveryID string) (webhooks.DeliveryRecord, error) {
	if s == nil || s.db == nil {
		return webhooks.DeliveryRecord{}, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	record := &webhookDeliveryRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.delivery_id = ?", strings.TrimSpace(deliveryID)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return webhooks.DeliveryRecord{}, fmt.Errorf("sqlstore: webhook delivery %q not found", deliveryID)
		}
		return webhooks.DeliveryRecord{}, err
	}
	return deliveryToDomain(record), nil
}

func (s *DeliveryStore) Complete(ctx context.Context, claimID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: delivery store is not configured")
	}
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return fmt.Errorf("sqlstore: claim id is required")
	}
	_, err := s.db.NewUpdate().
		Model((*webhookDeliveryRecord)(nil)).
		Set("status = ?", webhooks.DeliveryStatusProcessed).
		Set("next_attempt_at = NULL").
		Set("updated_at = ?", s.now()).
		Where("claim_id = ?", claimID).
		Where("status = ?", webhooks.DeliveryStatusProcessing).
		Exec(ctx)
	return err
}

func (s *DeliveryStore) Fail(
	ctx context.Context,
	claimID string,
	cause error,
	nextAttemptAt time.Time,
	maxAttempts int,
) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: delivery store is not configured")
	}
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return fmt.Errorf("sqlstore: claim id is required")
	}
	if maxAttempts <= 0 {
		maxAttempts = 8
	}

	record := &webhookDeliveryRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.claim_id = ?", claimID).
		Where("?TableAlias.status = ?", webhooks.DeliveryStatusProcessing).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Stale claim; the record moved on already.
			return nil
		}
		return err
	}

	lastError := ""
	if cause != nil {
		lastError = cause.Error()
	}
	now := s.now()

	query := s.db.NewUpdate().
		Model((*webhookDeliveryRecord)(nil)).
		Set("last_error = ?", lastError).
		Set("updated_at = ?", now).
		Where("claim_id = ?", claimID).
		Where("status = ?", webhooks.DeliveryStatusProcessing)
	if record.Attempts >= maxAttempts {
		query = query.
			Set("status = ?", webhooks.DeliveryStatusDead).
			Set("next_attempt_at = NULL")
	} else {
		if nextAttemptAt.IsZero() {
			nextAttemptAt = now
		}
		query = query.
			Set("status = ?", webhooks.DeliveryStatusRetryReady).
			Set("next_attempt_at = ?", nextAttemptAt.UTC())
	}
	_, err = query.Exec(ctx)
	return err
}

func (s *DeliveryStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func deliveryToDomain(record *webhookDeliveryRecord) webhooks.DeliveryRecord {
	if record == nil {
		return webhooks.DeliveryRecord{}
	}
	result := webhooks.DeliveryRecord{
		ID:         record.ID,
		ClaimID:    record.ClaimID,
		DeliveryID: record.DeliveryID,
		Status:     record.Status,
		Attempts:   record.Attempts,
		CreatedAt:  record.CreatedAt,
		UpdatedAt:  record.UpdatedAt,
	}
	if record.NextAttemptAt != nil {
		value := *record.NextAttemptAt
		result.NextAttemptAt = &value
	}
	return result
}

func isUniqueViolation(err error) bool {
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}
