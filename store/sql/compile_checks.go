package sqlstore

import (
	"github.com/goliatone/go-botway/core"
	"github.com/goliatone/go-botway/webhooks"
)

var (
	_ webhooks.DeliveryLedger = (*DeliveryStore)(nil)
	_ core.ActivityRecorder   = (*ActivityStore)(nil)
	_ core.ActivityReader     = (*ActivityStore)(nil)
	_ core.ActivityRecorder   = (*CachedActivityStore)(nil)
	_ core.ActivityReader     = (*CachedActivityStore)(nil)
)
