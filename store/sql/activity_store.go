package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-botway/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ActivityStore persists dispatch traces and serves paged listings.
type ActivityStore struct {
	db   *bun.DB
	repo repository.Repository[*dispatchActivityRecord]
}

func NewActivityStore(db *bun.DB) (*ActivityStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*dispatchActivityRecord](db, activityHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid activity repository wiring: %w", err)
		}
	}
	return &ActivityStore{db: db, repo: repo}, nil
}

func (s *ActivityStore) Record(ctx context.Context, entry core.DispatchActivity) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: activity store is not configured")
	}
	if strings.TrimSpace(entry.Kind) == "" || strings.TrimSpace(entry.Status) == "" {
		return fmt.Errorf("sqlstore: activity entries require kind and status")
	}

	id := strings.TrimSpace(entry.ID)
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := entry.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	record := &dispatchActivityRecord{
		ID:        id,
		UpdateID:  entry.UpdateID,
		Kind:      strings.TrimSpace(entry.Kind),
		Status:    strings.TrimSpace(entry.Status),
		ChatID:    entry.ChatID,
		SenderID:  entry.SenderID,
		Detail:    strings.TrimSpace(entry.Detail),
		Metadata:  copyAnyMap(entry.Metadata),
		CreatedAt: createdAt,
	}
	_, err := s.repo.Create(ctx, record)
	return err
}

func (s *ActivityStore) List(ctx context.Context, filter core.DispatchActivityFilter) (core.DispatchActivityPage, error) {
	if s == nil || s.repo == nil {
		return core.DispatchActivityPage{}, fmt.Errorf("sqlstore: activity store is not configured")
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 25
	}
	offset := (page - 1) * perPage

	selectors := []repository.SelectCriteria{
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(perPage, offset),
	}
	if kind := strings.TrimSpace(filter.Kind); kind != "" {
		selectors = append(selectors, repository.SelectBy("kind", "=", kind))
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		selectors = append(selectors, repository.SelectBy("status", "=", status))
	}
	if filter.ChatID != 0 {
		selectors = append(selectors, repository.SelectBy("chat_id", "=", fmt.Sprint(filter.ChatID)))
	}

	records, total, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return core.DispatchActivityPage{}, err
	}
	entries := make([]core.DispatchActivity, 0, len(records))
	for _, record := range records {
		entries = append(entries, activityToDomain(record))
	}
	return core.DispatchActivityPage{
		Entries: entries,
		Total:   total,
		Page:    page,
		PerPage: perPage,
	}, nil
}

// Prune deletes entries older than ttl; returns the number removed.
func (s *ActivityStore) Prune(ctx context.Context, ttl time.Duration) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: activity store is not configured")
	}
	if ttl <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().Add(-ttl)
	res, err := s.db.NewDelete().
		Model((*dispatchActivityRecord)(nil)).
		Where("created_at < ?", cutoff).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, _ := res.RowsAffected()
	return int(affected), nil
}

func activityToDomain(record *dispatchActivityRecord) core.DispatchActivity {
	if record == nil {
		return core.DispatchActivity{}
	}
	return core.DispatchActivity{
		ID:        record.ID,
		UpdateID:  record.UpdateID,
		Kind:      record.Kind,
		Status:    record.Status,
		ChatID:    record.ChatID,
		SenderID:  record.SenderID,
		Detail:    record.Detail,
		Metadata:  copyAnyMap(record.Metadata),
		CreatedAt: record.CreatedAt,
	}
}
