package gateway

import (
	"context"

	"github.com/goliatone/go-botway/core"
)

// Typed wrappers over Call for the platform methods the dispatcher uses.
// Options maps are merged last so callers can set parse modes, keyboards,
// and similar extras without widening the signatures.

func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, options map[string]any) core.APIResult {
	params := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	mergeOptions(params, options)
	return c.Call(ctx, "sendMessage", params)
}

func (c *Client) EditMessageText(ctx context.Context, chatID int64, messageID int64, text string, options map[string]any) core.APIResult {
	params := map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
	}
	mergeOptions(params, options)
	return c.Call(ctx, "editMessageText", params)
}

func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackQueryID string, text string, showAlert bool) core.APIResult {
	params := map[string]any{
		"callback_query_id": callbackQueryID,
	}
	if text != "" {
		params["text"] = text
	}
	if showAlert {
		params["show_alert"] = true
	}
	return c.Call(ctx, "answerCallbackQuery", params)
}

func (c *Client) AnswerInlineQuery(ctx context.Context, inlineQueryID string, results []map[string]any, options map[string]any) core.APIResult {
	if results == nil {
		results = []map[string]any{}
	}
	params := map[string]any{
		"inline_query_id": inlineQueryID,
		"results":         results,
	}
	mergeOptions(params, options)
	return c.Call(ctx, "answerInlineQuery", params)
}

// GetMe is the no-argument identity probe used for upstream reachability.
func (c *Client) GetMe(ctx context.Context) core.APIResult {
	return c.Call(ctx, "getMe", nil)
}

func mergeOptions(params map[string]any, options map[string]any) {
	for key, value := range options {
		params[key] = value
	}
}
