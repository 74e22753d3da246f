package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type webhookDeliveryRecord struct {
	bun.BaseModel `bun:"table:bot_webhook_deliveries,alias:bwd"`

	ID            string     `bun:"id,pk"`
	DeliveryID    string     `bun:"delivery_id,notnull"`
	ClaimID       string     `bun:"claim_id"`
	Status        string     `bun:"status,notnull"`
	Attempts      int        `bun:"attempts,notnull"`
	Payload       []byte     `bun:"payload"`
	LastError     string     `bun:"last_error"`
	NextAttemptAt *time.Time `bun:"next_attempt_at,nullzero"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type dispatchActivityRecord struct {
	bun.BaseModel `bun:"table:bot_dispatch_activity,alias:bda"`

	ID        string         `bun:"id,pk"`
	UpdateID  int64          `bun:"update_id,notnull"`
	Kind      string         `bun:"kind,notnull"`
	Status    string         `bun:"status,notnull"`
	ChatID    int64          `bun:"chat_id"`
	SenderID  int64          `bun:"sender_id"`
	Detail    string         `bun:"detail"`
	Metadata  map[string]any `bun:"metadata,type:jsonb"`
	CreatedAt time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}
