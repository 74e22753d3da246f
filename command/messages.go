package command

import (
	"strings"
	"time"

	"github.com/goliatone/go-botway/core"
)

const (
	TypeProcessUpdate  = "botway.command.update.process"
	TypeProcessWebhook = "botway.command.webhook.process"
	TypeSendMessage    = "botway.command.message.send"
	TypePruneActivity  = "botway.command.activity.prune"
)

type ProcessUpdateMessage struct {
	Update core.Update
}

func (ProcessUpdateMessage) Type() string { return TypeProcessUpdate }

func (m ProcessUpdateMessage) Validate() error {
	if m.Update.Kind() == core.UpdateKindOther && m.Update.UpdateID == 0 {
		return commandInvalidInputError("command: update payload is required")
	}
	return nil
}

type ProcessWebhookMessage struct {
	Request core.InboundRequest
}

func (ProcessWebhookMessage) Type() string { return TypeProcessWebhook }

func (m ProcessWebhookMessage) Validate() error {
	if len(m.Request.Body) == 0 {
		return commandInvalidInputError("command: webhook body is required")
	}
	return nil
}

type SendMessageMessage struct {
	ChatID int64
	Text   string
}

func (SendMessageMessage) Type() string { return TypeSendMessage }

func (m SendMessageMessage) Validate() error {
	if m.ChatID == 0 {
		return commandInvalidInputError("command: chat id is required")
	}
	if strings.TrimSpace(m.Text) == "" {
		return commandInvalidInputError("command: message text is required")
	}
	return nil
}

type PruneActivityMessage struct {
	TTL time.Duration
}

func (PruneActivityMessage) Type() string { return TypePruneActivity }

func (m PruneActivityMessage) Validate() error {
	if m.TTL <= 0 {
		return commandInvalidInputError("command: prune ttl must be positive")
	}
	return nil
}
