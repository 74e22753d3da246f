package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[ProcessUpdateMessage]  = (*ProcessUpdateCommand)(nil)
	_ gocmd.Commander[ProcessWebhookMessage] = (*ProcessWebhookCommand)(nil)
	_ gocmd.Commander[SendMessageMessage]    = (*SendMessageCommand)(nil)
	_ gocmd.Commander[PruneActivityMessage]  = (*PruneActivityCommand)(nil)
)
