package query

import (
	"github.com/goliatone/go-botway/core"
	"github.com/goliatone/go-botway/webhooks"
	gocmd "github.com/goliatone/go-command"
)

var (
	_ gocmd.Querier[UsageSnapshotMessage, core.UsageSnapshot]       = (*UsageSnapshotQuery)(nil)
	_ gocmd.Querier[ListActivityMessage, core.DispatchActivityPage] = (*ListActivityQuery)(nil)
	_ gocmd.Querier[GetDeliveryMessage, webhooks.DeliveryRecord]    = (*GetDeliveryQuery)(nil)
	_ gocmd.Querier[GatewayHealthMessage, GatewayHealth]            = (*GatewayHealthQuery)(nil)
)
