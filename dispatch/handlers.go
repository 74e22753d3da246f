package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-botway/core"
)

// handleCallbackQuery acknowledges the callback first, then attempts the
// chat reply. A failed acknowledgment is logged but never blocks the reply.
func (d *Dispatcher) handleCallbackQuery(ctx context.Context, cb *core.CallbackQuery) (bool, string) {
	if cb == nil || cb.ID == "" {
		return false, "callback without id"
	}
	if d.Caller == nil {
		return false, "callback without caller"
	}

	ack := d.Caller.Call(ctx, "answerCallbackQuery", map[string]any{
		"callback_query_id": cb.ID,
	})
	if !ack.Success {
		core.EmitLog(ctx, d.Logger, "warn", "callback acknowledgment failed", map[string]any{
			"callback_id": cb.ID,
			"error":       ack.Error,
		})
	}

	if cb.Message == nil || cb.Message.Chat == nil {
		return ack.Success, "callback:ack-only"
	}

	choice := strings.TrimSpace(cb.Data)
	if choice == "" {
		choice = "that"
	}
	result := d.send(ctx, cb.Message.Chat.ID, fmt.Sprintf("You picked %q. Working on it!", choice))
	if !result.Success {
		core.EmitLog(ctx, d.Logger, "error", "callback reply failed", map[string]any{
			"callback_id": cb.ID,
			"chat_id":     cb.Message.Chat.ID,
			"error":       result.Error,
		})
		return false, "callback:reply"
	}
	return true, "callback:reply"
}

// handleInlineQuery answers with a single article echoing the query text.
func (d *Dispatcher) handleInlineQuery(ctx context.Context, iq *core.InlineQuery) (bool, string) {
	if iq == nil || iq.ID == "" {
		return false, "inline query without id"
	}
	if d.Caller == nil {
		return false, "inline query without caller"
	}

	queryText := strings.TrimSpace(iq.Query)
	if queryText == "" {
		queryText = "Say something and I'll echo it."
	}
	results := []map[string]any{
		{
			"type":  "article",
			"id":    "echo-1",
			"title": "Echo",
			"input_message_content": map[string]any{
				"message_text": queryText,
			},
		},
	}
	result := d.Caller.Call(ctx, "answerInlineQuery", map[string]any{
		"inline_query_id": iq.ID,
		"results":         results,
	})
	if !result.Success {
		core.EmitLog(ctx, d.Logger, "error", "inline answer failed", map[string]any{
			"inline_query_id": iq.ID,
			"error":           result.Error,
		})
		return false, "inline:answer"
	}
	return true, "inline:answer"
}

// handleChannelPost is a deliberate no-op; channel posts are broadcast
// content the bot observes but never replies to.
func (d *Dispatcher) handleChannelPost(ctx context.Context, post *core.Message) (bool, string) {
	if post == nil {
		return false, "channel post without payload"
	}
	core.EmitLog(ctx, d.Logger, "debug", "channel post observed", map[string]any{
		"message_id": post.MessageID,
	})
	return true, "channel-post:noop"
}

// handleChatMember greets the chat when the bot gains membership; removals
// are observed silently.
func (d *Dispatcher) handleChatMember(ctx context.Context, change *core.ChatMemberUpdate) (bool, string) {
	if change == nil {
		return false, "membership change without payload"
	}

	status := ""
	if change.NewMember != nil {
		status = change.NewMember.Status
	}
	switch status {
	case "member", "administrator", "creator":
		if change.Chat == nil {
			return false, "membership change without chat"
		}
		result := d.send(ctx, change.Chat.ID, fmt.Sprintf(
			"Thanks for adding me! I'm %s. Send /help to see what I can do.", d.botName(),
		))
		if !result.Success {
			core.EmitLog(ctx, d.Logger, "error", "membership greeting failed", map[string]any{
				"chat_id": change.Chat.ID,
				"error":   result.Error,
			})
			return false, "membership:greeting"
		}
		return true, "membership:greeting"
	default:
		core.EmitLog(ctx, d.Logger, "debug", "membership change observed", map[string]any{
			"status": status,
		})
		return true, "membership:noop"
	}
}

// handleEditedMessage sends a short notice acknowledging the edit.
func (d *Dispatcher) handleEditedMessage(ctx context.Context, msg *core.Message) (bool, string) {
	if msg == nil || msg.Chat == nil {
		return false, "edited message without chat"
	}
	result := d.send(ctx, msg.Chat.ID, "I noticed you edited your message. I only act on the original.")
	if !result.Success {
		core.EmitLog(ctx, d.Logger, "error", "edit notice failed", map[string]any{
			"chat_id": msg.Chat.ID,
			"error":   result.Error,
		})
		return false, "edited:notice"
	}
	return true, "edited:notice"
}
