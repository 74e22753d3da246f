package query

import (
	"strings"

	"github.com/goliatone/go-botway/core"
)

const (
	TypeUsageSnapshot = "botway.query.usage.snapshot"
	TypeListActivity  = "botway.query.activity.list"
	TypeGetDelivery   = "botway.query.delivery.get"
	TypeGatewayHealth = "botway.query.gateway.health"
)

type UsageSnapshotMessage struct{}

func (UsageSnapshotMessage) Type() string { return TypeUsageSnapshot }

func (UsageSnapshotMessage) Validate() error { return nil }

type ListActivityMessage struct {
	Filter core.DispatchActivityFilter
}

func (ListActivityMessage) Type() string { return TypeListActivity }

func (m ListActivityMessage) Validate() error {
	if m.Filter.Page < 0 {
		return queryInvalidInputError("query: page must be >= 0")
	}
	if m.Filter.PerPage < 0 {
		return queryInvalidInputError("query: per_page must be >= 0")
	}
	return nil
}

type GetDeliveryMessage struct {
	DeliveryID string
}

func (GetDeliveryMessage) Type() string { return TypeGetDelivery }

func (m GetDeliveryMessage) Validate() error {
	if strings.TrimSpace(m.DeliveryID) == "" {
		return queryInvalidInputError("query: delivery id is required")
	}
	return nil
}

type GatewayHealthMessage struct{}

func (GatewayHealthMessage) Type() string { return TypeGatewayHealth }

func (GatewayHealthMessage) Validate() error { return nil }
