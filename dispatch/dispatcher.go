package dispatch

import (
	"context"
	"time"

	"github.com/goliatone/go-botway/core"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"
)

const (
	fallbackUnsureText     = "I'm not sure how to respond to that. Try /help to see what I can do."
	technicalTroubleText   = "Sorry, I'm having technical difficulties right now. Please try again later."
	dispatchCounterMetric  = "botway.dispatch.total"
	dispatchDurationMetric = "botway.dispatch.duration_ms"
)

// Responder contributes a reply pattern for plain text messages. Responders
// are consulted after the slash commands and before the built-in patterns;
// ok=false passes the message along the chain.
type Responder interface {
	Respond(msg *core.Message) (reply string, detail string, ok bool)
}

// ResponderFunc adapts a function to the Responder interface.
type ResponderFunc func(msg *core.Message) (string, string, bool)

func (f ResponderFunc) Respond(msg *core.Message) (string, string, bool) {
	return f(msg)
}

// Dispatcher runs the per-update state machine: classify, record usage,
// throttle, route to the variant handler, and fall back when nothing
// produced a satisfactory response. Dispatch always completes; it never
// returns an error and never lets a handler panic escape.
type Dispatcher struct {
	Caller     core.APICaller
	Usage      core.UsageRecorder
	Throttle   core.ThrottlePolicy
	Activity   core.ActivityRecorder
	Logger     glog.Logger
	Metrics    core.MetricsRecorder
	BotName    string
	Responders []Responder
	Now        func() time.Time
}

func NewDispatcher(caller core.APICaller, usage core.UsageRecorder, throttle core.ThrottlePolicy) *Dispatcher {
	return &Dispatcher{
		Caller:   caller,
		Usage:    usage,
		Throttle: throttle,
		Logger:   glog.Nop(),
		Metrics:  core.NopMetricsRecorder{},
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// AddResponder appends a custom reply pattern. Not safe for concurrent use
// with Dispatch; register responders before serving traffic.
func (d *Dispatcher) AddResponder(responder Responder) {
	if d == nil || responder == nil {
		return
	}
	d.Responders = append(d.Responders, responder)
}

// Dispatch processes one inbound update end to end. The returned outcome is
// informational; callers must treat every update as fully handled once this
// returns.
func (d *Dispatcher) Dispatch(ctx context.Context, update core.Update) (outcome core.DispatchOutcome) {
	kind := update.Kind()
	senderID, hasSender := update.SenderID()
	chatID, hasChat := update.ChatID()

	outcome = core.DispatchOutcome{
		UpdateID: update.UpdateID,
		Kind:     kind,
		ChatID:   chatID,
		HasChat:  hasChat,
	}

	started := d.now()
	defer func() {
		if cause := recover(); cause != nil {
			outcome.Status = core.DispatchStatusRecovered
			outcome.Detail = "panic recovered"
			d.recoverDispatch(ctx, chatID, hasChat, update.UpdateID, cause)
		}
		d.finish(ctx, outcome, senderID, started)
	}()

	if d.Usage != nil {
		d.Usage.RecordMessage(senderID, hasSender)
	}

	if hasChat && d.Throttle != nil {
		decision := d.Throttle.Allow(chatID)
		if !decision.Allow {
			outcome.Status = core.DispatchStatusThrottled
			outcome.Detail = "throttled"
			core.EmitLog(ctx, d.Logger, "warn", "update throttled", map[string]any{
				"update_id": update.UpdateID,
				"chat_id":   chatID,
				"count":     decision.Count,
			})
			return outcome
		}
	}

	handled, detail := d.route(ctx, kind, update)
	if handled {
		outcome.Status = core.DispatchStatusHandled
		outcome.Detail = detail
		return outcome
	}

	if hasChat {
		outcome.Status = core.DispatchStatusFallback
		outcome.Detail = detail
		d.sendFallback(ctx, chatID, fallbackUnsureText, update.UpdateID)
		return outcome
	}

	outcome.Status = core.DispatchStatusDropped
	outcome.Detail = detail
	core.EmitLog(ctx, d.Logger, "warn", "update dropped without reply target", map[string]any{
		"update_id": update.UpdateID,
		"kind":      string(kind),
	})
	return outcome
}

func (d *Dispatcher) route(ctx context.Context, kind core.UpdateKind, update core.Update) (bool, string) {
	switch kind {
	case core.UpdateKindMessage:
		return d.handleMessage(ctx, update.Message)
	case core.UpdateKindEditedMessage:
		return d.handleEditedMessage(ctx, update.EditedMessage)
	case core.UpdateKindCallbackQuery:
		return d.handleCallbackQuery(ctx, update.CallbackQuery)
	case core.UpdateKindInlineQuery:
		return d.handleInlineQuery(ctx, update.InlineQuery)
	case core.UpdateKindChannelPost:
		return d.handleChannelPost(ctx, update.ChannelPost)
	case core.UpdateKindChatMember:
		return d.handleChatMember(ctx, update.ChatMember)
	default:
		return false, "unrecognized variant"
	}
}

// recoverDispatch converts an escaped handler failure into the fixed
// technical-difficulties reply. It must not raise; a failed fallback send is
// logged and swallowed.
func (d *Dispatcher) recoverDispatch(ctx context.Context, chatID int64, hasChat bool, updateID int64, cause any) {
	if d.Usage != nil {
		d.Usage.RecordError()
	}
	core.EmitLog(ctx, d.Logger, "error", "dispatch failure recovered", map[string]any{
		"update_id": updateID,
		"cause":     cause,
	})
	if !hasChat {
		return
	}
	d.sendFallback(ctx, chatID, technicalTroubleText, updateID)
}

func (d *Dispatcher) sendFallback(ctx context.Context, chatID int64, text string, updateID int64) {
	defer func() {
		if cause := recover(); cause != nil {
			core.EmitLog(ctx, d.Logger, "error", "fallback send panicked", map[string]any{
				"update_id": updateID,
				"cause":     cause,
			})
		}
	}()
	if d.Caller == nil {
		return
	}
	result := d.Caller.Call(ctx, "sendMessage", map[string]any{
		"chat_id": chatID,
		"text":    text,
	})
	if !result.Success {
		core.EmitLog(ctx, d.Logger, "error", "fallback send failed", map[string]any{
			"update_id": updateID,
			"chat_id":   chatID,
			"error":     result.Error,
		})
	}
}

func (d *Dispatcher) finish(ctx context.Context, outcome core.DispatchOutcome, senderID int64, started time.Time) {
	if d.Metrics != nil {
		tags := map[string]string{
			"kind":   string(outcome.Kind),
			"status": string(outcome.Status),
		}
		d.Metrics.IncCounter(ctx, dispatchCounterMetric, 1, tags)
		d.Metrics.ObserveHistogram(ctx, dispatchDurationMetric, float64(d.now().Sub(started).Milliseconds()), tags)
	}
	if d.Activity == nil {
		return
	}
	entry := core.DispatchActivity{
		ID:        uuid.NewString(),
		UpdateID:  outcome.UpdateID,
		Kind:      string(outcome.Kind),
		Status:    string(outcome.Status),
		ChatID:    outcome.ChatID,
		SenderID:  senderID,
		Detail:    outcome.Detail,
		CreatedAt: d.now(),
	}
	if err := d.Activity.Record(ctx, entry); err != nil {
		core.EmitLog(ctx, d.Logger, "warn", "activity record failed", map[string]any{
			"update_id": outcome.UpdateID,
			"error":     err.Error(),
		})
	}
}

func (d *Dispatcher) send(ctx context.Context, chatID int64, text string) core.APIResult {
	if d.Caller == nil {
		return core.APIResult{Error: "dispatch: no api caller configured"}
	}
	return d.Caller.Call(ctx, "sendMessage", map[string]any{
		"chat_id": chatID,
		"text":    text,
	})
}

func (d *Dispatcher) now() time.Time {
	if d != nil && d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}
