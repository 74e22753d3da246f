package query

import (
	"context"
	"encoding/json"

	"github.com/goliatone/go-botway/core"
	"github.com/goliatone/go-botway/webhooks"
)

// UsageReader exposes the aggregated usage counters.
type UsageReader interface {
	Snapshot() core.UsageSnapshot
}

// DeliveryReader looks up webhook delivery ledger entries.
type DeliveryReader interface {
	Get(ctx context.Context, deliveryID string) (webhooks.DeliveryRecord, error)
}

// GatewayHealth reports the result of a live upstream probe.
type GatewayHealth struct {
	Reachable bool
	BotName   string
	Detail    string
}

type UsageSnapshotQuery struct {
	reader UsageReader
}

func NewUsageSnapshotQuery(reader UsageReader) *UsageSnapshotQuery {
	return &UsageSnapshotQuery{reader: reader}
}

func (q *UsageSnapshotQuery) Query(ctx context.Context, msg UsageSnapshotMessage) (core.UsageSnapshot, error) {
	if q == nil || q.reader == nil {
		return core.UsageSnapshot{}, queryDependencyError("query: usage reader is required")
	}
	return q.reader.Snapshot(), nil
}

type ListActivityQuery struct {
	reader core.ActivityReader
}

func NewListActivityQuery(reader core.ActivityReader) *ListActivityQuery {
	return &ListActivityQuery{reader: reader}
}

func (q *ListActivityQuery) Query(
	ctx context.Context,
	msg ListActivityMessage,
) (core.DispatchActivityPage, error) {
	if q == nil || q.reader == nil {
		return core.DispatchActivityPage{}, queryDependencyError("query: activity reader is required")
	}
	return q.reader.List(ctx, msg.Filter)
}

type GetDeliveryQuery struct {
	reader DeliveryReader
}

func NewGetDeliveryQuery(reader DeliveryReader) *GetDeliveryQuery {
	return &GetDeliveryQuery{reader: reader}
}

func (q *GetDeliveryQuery) Query(ctx context.Context, msg GetDeliveryMessage) (webhooks.DeliveryRecord, error) {
	if q == nil || q.reader == nil {
		return webhooks.DeliveryRecord{}, queryDependencyError("query: delivery reader is required")
	}
	return q.reader.Get(ctx, msg.DeliveryID)
}

type GatewayHealthQuery struct {
	caller core.APICaller
}

func NewGatewayHealthQuery(caller core.APICaller) *GatewayHealthQuery {
	return &GatewayHealthQuery{caller: caller}
}

func (q *GatewayHealthQuery) Query(ctx context.Context, msg GatewayHealthMessage) (GatewayHealth, error) {
	if q == nil || q.caller == nil {
		return GatewayHealth{}, queryDependencyError("query: api caller is required")
	}
	result := q.caller.Call(ctx, "getMe", nil)
	if !result.Success {
		return GatewayHealth{Reachable: false, Detail: result.Error}, nil
	}
	health := GatewayHealth{Reachable: true}
	var me struct {
		Username  string `json:"username"`
		FirstName string `json:"first_name"`
	}
	if err := json.Unmarshal(result.Data, &me); err == nil {
		if me.Username != "" {
			health.BotName = me.Username
		} else {
			health.BotName = me.FirstName
		}
	}
	return health, nil
}
