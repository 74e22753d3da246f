package command

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-botway/core"
	gocmd "github.com/goliatone/go-command"
)

// UpdateDispatcher mutates bot state by routing one update through the
// gateway. Dispatch always returns an outcome, never an error.
type UpdateDispatcher interface {
	Dispatch(ctx context.Context, update core.Update) core.DispatchOutcome
}

// WebhookProcessor verifies, dedupes and dispatches one raw delivery.
type WebhookProcessor interface {
	Process(ctx context.Context, req core.InboundRequest) (core.InboundResult, error)
}

// ActivityPruner trims persisted dispatch traces older than a TTL.
type ActivityPruner interface {
	Prune(ctx context.Context, ttl time.Duration) (int, error)
}

type ProcessUpdateCommand struct {
	dispatcher UpdateDispatcher
}

func NewProcessUpdateCommand(dispatcher UpdateDispatcher) *ProcessUpdateCommand {
	return &ProcessUpdateCommand{dispatcher: dispatcher}
}

func (c *ProcessUpdateCommand) Execute(ctx context.Context, msg ProcessUpdateMessage) error {
	if c == nil || c.dispatcher == nil {
		return commandDependencyError("command: update dispatcher is required")
	}
	outcome := c.dispatcher.Dispatch(ctx, msg.Update)
	storeResult(ctx, outcome)
	return nil
}

type ProcessWebhookCommand struct {
	processor WebhookProcessor
}

func NewProcessWebhookCommand(processor WebhookProcessor) *ProcessWebhookCommand {
	return &ProcessWebhookCommand{processor: processor}
}

func (c *ProcessWebhookCommand) Execute(ctx context.Context, msg ProcessWebhookMessage) error {
	if c == nil || c.processor == nil {
		return commandDependencyError("command: webhook processor is required")
	}
	out, err := c.processor.Process(ctx, msg.Request)
	if err != nil {
		// The processor still produced a transport answer; callers that
		// collect it can respond even when processing failed.
		storeResult(ctx, out)
		return err
	}
	storeResult(ctx, out)
	return nil
}

type SendMessageCommand struct {
	caller core.APICaller
}

func NewSendMessageCommand(caller core.APICaller) *SendMessageCommand {
	return &SendMessageCommand{caller: caller}
}

func (c *SendMessageCommand) Execute(ctx context.Context, msg SendMessageMessage) error {
	if c == nil || c.caller == nil {
		return commandDependencyError("command: api caller is required")
	}
	result := c.caller.Call(ctx, "sendMessage", map[string]any{
		"chat_id": msg.ChatID,
		"text":    msg.Text,
	})
	storeResult(ctx, result)
	if !result.Success {
		return commandUpstreamError(fmt.Sprintf("command: send message to chat %d failed: %s", msg.ChatID, result.Error))
	}
	return nil
}

type PruneActivityCommand struct {
	pruner ActivityPruner
}

func NewPruneActivityCommand(pruner ActivityPruner) *PruneActivityCommand {
	return &PruneActivityCommand{pruner: pruner}
}

func (c *PruneActivityCommand) Execute(ctx context.Context, msg PruneActivityMessage) error {
	if c == nil || c.pruner == nil {
		return commandDependencyError("command: activity pruner is required")
	}
	removed, err := c.pruner.Prune(ctx, msg.TTL)
	if err != nil {
		return err
	}
	storeResult(ctx, removed)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
