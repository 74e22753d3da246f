package command

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/goliatone/go-botway/core"
	gocmd "github.com/goliatone/go-command"
)

type stubDispatcher struct {
	dispatchFn func(ctx context.Context, update core.Update) core.DispatchOutcome
}

func (s stubDispatcher) Dispatch(ctx context.Context, update core.Update) core.DispatchOutcome {
	if s.dispatchFn == nil {
		return core.DispatchOutcome{}
	}
	return s.dispatchFn(ctx, update)
}

type stubProcessor struct {
	processFn func(ctx context.Context, req core.InboundRequest) (core.InboundResult, error)
}

func (s stubProcessor) Process(ctx context.Context, req core.InboundRequest) (core.InboundResult, error) {
	if s.processFn == nil {
		return core.InboundResult{}, nil
	}
	return s.processFn(ctx, req)
}

type stubCaller struct {
	callFn func(ctx context.Context, method string, params map[string]any) core.APIResult
}

func (s stubCaller) Call(ctx context.Context, method string, params map[string]any) core.APIResult {
	if s.callFn == nil {
		return core.APIResult{Success: true}
	}
	return s.callFn(ctx, method, params)
}

type stubPruner struct {
	pruneFn func(ctx context.Context, ttl time.Duration) (int, error)
}

func (s stubPruner) Prune(ctx context.Context, ttl time.Duration) (int, error) {
	if s.pruneFn == nil {
		return 0, nil
	}
	return s.pruneFn(ctx, ttl)
}

func TestProcessUpdateCommand_ExecuteDelegatesAndStoresOutcome(t *testing.T) {
	expected := core.DispatchOutcome{
		UpdateID: 91,
		Kind:     core.UpdateKindMessage,
		Status:   core.DispatchStatusHandled,
		ChatID:   42,
		HasChat:  true,
	}
	called := false

	dispatcher := stubDispatcher{
		dispatchFn: func(_ context.Context, update core.Update) core.DispatchOutcome {
			called = true
			if update.UpdateID != 91 {
				t.Fatalf("expected update 91, got %d", update.UpdateID)
			}
			return expected
		},
	}

	cmd := NewProcessUpdateCommand(dispatcher)
	collector := gocmd.NewResult[core.DispatchOutcome]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	update := core.Update{
		UpdateID: 91,
		Message: &core.Message{
			MessageID: 1,
			Chat:      &core.Chat{ID: 42},
			Text:      "hello",
		},
	}
	if err := cmd.Execute(ctx, ProcessUpdateMessage{Update: update}); err != nil {
		t.Fatalf("execute process update: %v", err)
	}
	if !called {
		t.Fatalf("expected dispatcher invocation")
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatalf("expected dispatch outcome to be stored")
	}
	if result.Status != core.DispatchStatusHandled || result.ChatID != 42 {
		t.Fatalf("unexpected outcome: %#v", result)
	}
}

func TestProcessWebhookCommand_StoresTransportAnswer(t *testing.T) {
	processor := stubProcessor{
		processFn: func(_ context.Context, req core.InboundRequest) (core.InboundResult, error) {
			if len(req.Body) == 0 {
				t.Fatalf("expected delivery body")
			}
			return core.InboundResult{
				Accepted:   true,
				StatusCode: 200,
				Metadata:   map[string]any{"delivery_id": "update-91"},
			}, nil
		},
	}

	cmd := NewProcessWebhookCommand(processor)
	collector := gocmd.NewResult[core.InboundResult]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	msg := ProcessWebhookMessage{Request: core.InboundRequest{Body: []byte(`{"update_id":91}`)}}
	if err := cmd.Execute(ctx, msg); err != nil {
		t.Fatalf("execute process webhook: %v", err)
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatalf("expected inbound result to be stored")
	}
	if !result.Accepted || result.StatusCode != 200 {
		t.Fatalf("unexpected inbound result: %#v", result)
	}
}

func TestSendMessageCommand_CallsGateway(t *testing.T) {
	var gotMethod string
	var gotParams map[string]any
	caller := stubCaller{
		callFn: func(_ context.Context, method string, params map[string]any) core.APIResult {
			gotMethod = method
			gotParams = params
			return core.APIResult{Success: true, Data: json.RawMessage(`{"message_id":7}`)}
		},
	}

	cmd := NewSendMessageCommand(caller)
	collector := gocmd.NewResult[core.APIResult]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	if err := cmd.Execute(ctx, SendMessageMessage{ChatID: 42, Text: "ping"}); err != nil {
		t.Fatalf("execute send message: %v", err)
	}
	if gotMethod != "sendMessage" {
		t.Fatalf("expected sendMessage call, got %q", gotMethod)
	}
	if gotParams["chat_id"] != int64(42) || gotParams["text"] != "ping" {
		t.Fatalf("unexpected params: %#v", gotParams)
	}
	result, ok := collector.Load()
	if !ok || !result.Success {
		t.Fatalf("expected successful api result, got ok=%v %#v", ok, result)
	}
}

func TestSendMessageCommand_FailedCallReturnsError(t *testing.T) {
	caller := stubCaller{
		callFn: func(_ context.Context, _ string, _ map[string]any) core.APIResult {
			return core.APIResult{Success: false, Error: "api unavailable"}
		},
	}

	cmd := NewSendMessageCommand(caller)
	err := cmd.Execute(context.Background(), SendMessageMessage{ChatID: 42, Text: "ping"})
	if err == nil {
		t.Fatalf("expected upstream error")
	}
}

func TestPruneActivityCommand_StoresRemovedCount(t *testing.T) {
	pruner := stubPruner{
		pruneFn: func(_ context.Context, ttl time.Duration) (int, error) {
			if ttl != 24*time.Hour {
				t.Fatalf("expected 24h ttl, got %v", ttl)
			}
			return 3, nil
		},
	}

	cmd := NewPruneActivityCommand(pruner)
	collector := gocmd.NewResult[int]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	if err := cmd.Execute(ctx, PruneActivityMessage{TTL: 24 * time.Hour}); err != nil {
		t.Fatalf("execute prune: %v", err)
	}
	removed, ok := collector.Load()
	if !ok || removed != 3 {
		t.Fatalf("expected 3 removed, got ok=%v removed=%d", ok, removed)
	}
}

func TestMessageValidation(t *testing.T) {
	cases := []struct {
		name    string
		message interface{ Validate() error }
		wantErr bool
	}{
		{"valid update", ProcessUpdateMessage{Update: core.Update{UpdateID: 1, Message: &core.Message{Chat: &core.Chat{ID: 1}, Text: "x"}}}, false},
		{"empty update", ProcessUpdateMessage{}, true},
		{"valid webhook", ProcessWebhookMessage{Request: core.InboundRequest{Body: []byte(`{}`)}}, false},
		{"empty webhook body", ProcessWebhookMessage{}, true},
		{"valid send", SendMessageMessage{ChatID: 1, Text: "hi"}, false},
		{"send without chat", SendMessageMessage{Text: "hi"}, true},
		{"send without text", SendMessageMessage{ChatID: 1, Text: "  "}, true},
		{"valid prune", PruneActivityMessage{TTL: time.Hour}, false},
		{"zero prune ttl", PruneActivityMessage{}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.message.Validate()
			if tc.wantErr && err == nil {
				t.Fatalf("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected validation error: %v", err)
			}
		})
	}
}
