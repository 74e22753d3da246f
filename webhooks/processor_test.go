package webhooks

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/goliatone/go-botway/core"
)

type fakeDispatcher struct {
	updates []core.Update
}

func (f *fakeDispatcher) Dispatch(_ context.Context, update core.Update) core.DispatchOutcome {
	f.updates = append(f.updates, update)
	return core.DispatchOutcome{
		UpdateID: update.UpdateID,
		Kind:     update.Kind(),
		Status:   core.DispatchStatusHandled,
	}
}

func deliveryRequest(body string) core.InboundRequest {
	return core.InboundRequest{
		Headers: map[string]string{SecretTokenHeader: "hunter2"},
		Body:    []byte(body),
	}
}

func newTestProcessor(dispatcher *fakeDispatcher) (*Processor, *MemoryLedger) {
	ledger := NewMemoryLedger()
	p := NewProcessor(NewSecretTokenVerifier("hunter2"), ledger, dispatcher)
	return p, ledger
}

func TestProcess_DispatchesAndCompletes(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	p, ledger := newTestProcessor(dispatcher)

	result, err := p.Process(context.Background(), deliveryRequest(
		`{"update_id": 91, "message": {"message_id": 1, "chat": {"id": 42}, "text": "hi"}}`,
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Accepted || result.StatusCode != http.StatusOK {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Metadata["update_id"] != int64(91) {
		t.Fatalf("expected update id metadata, got %v", result.Metadata["update_id"])
	}
	if result.Metadata["status"] != string(core.DispatchStatusHandled) {
		t.Fatalf("expected dispatch status metadata, got %v", result.Metadata["status"])
	}
	if len(dispatcher.updates) != 1 || dispatcher.updates[0].UpdateID != 91 {
		t.Fatalf("dispatcher saw %+v", dispatcher.updates)
	}

	record, err := ledger.Get(context.Background(), "update-91")
	if err != nil {
		t.Fatalf("ledger record missing: %v", err)
	}
	if record.Status != DeliveryStatusProcessed {
		t.Fatalf("expected processed, got %s", record.Status)
	}
}

func TestProcess_DuplicateDeliveryIsAcknowledgedOnce(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	p, _ := newTestProcessor(dispatcher)
	body := `{"update_id": 91, "message": {"message_id": 1, "chat": {"id": 42}, "text": "hi"}}`

	if _, err := p.Process(context.Background(), deliveryRequest(body)); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	result, err := p.Process(context.Background(), deliveryRequest(body))
	if err != nil {
		t.Fatalf("duplicate delivery: %v", err)
	}
	if !result.Accepted || result.StatusCode != http.StatusOK {
		t.Fatalf("duplicates are acknowledged, got %+v", result)
	}
	if result.Metadata["deduped"] != true {
		t.Fatalf("expected dedupe metadata, got %v", result.Metadata)
	}
	if len(dispatcher.updates) != 1 {
		t.Fatalf("duplicate must not re-dispatch, saw %d updates", len(dispatcher.updates))
	}
}

func TestProcess_RejectsBadSecretToken(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	p, _ := newTestProcessor(dispatcher)

	req := deliveryRequest(`{"update_id": 91}`)
	req.Headers[SecretTokenHeader] = "wrong"

	result, err := p.Process(context.Background(), req)
	if err == nil {
		t.Fatal("expected verification error")
	}
	if result.Accepted || result.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", result)
	}
	if len(dispatcher.updates) != 0 {
		t.Fatal("rejected delivery must not dispatch")
	}
}

func TestProcess_MalformedPayloadIsPoison(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	p, ledger := newTestProcessor(dispatcher)

	req := deliveryRequest(`{"update_id": 91, "message": `)
	req.Metadata = map[string]any{"delivery_id": "raw-91"}

	result, err := p.Process(context.Background(), req)
	if err == nil {
		t.Fatal("expected parse error")
	}
	if result.Accepted || result.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %+v", result)
	}
	if len(dispatcher.updates) != 0 {
		t.Fatal("malformed payload must not dispatch")
	}

	// The claim settles so the poison delivery is never retried.
	record, getErr := ledger.Get(context.Background(), "raw-91")
	if getErr != nil {
		t.Fatalf("ledger record missing: %v", getErr)
	}
	if record.Status != DeliveryStatusProcessed {
		t.Fatalf("expected processed poison record, got %s", record.Status)
	}
}

func TestProcess_MissingDeliveryIDRejected(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	p, _ := newTestProcessor(dispatcher)

	result, err := p.Process(context.Background(), deliveryRequest(`not json at all`))
	if err == nil {
		t.Fatal("expected delivery id error")
	}
	if result.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %+v", result)
	}
}

func TestUpdateIDExtractor(t *testing.T) {
	cases := []struct {
		name    string
		req     core.InboundRequest
		want    string
		wantErr bool
	}{
		{
			name: "from payload",
			req:  core.InboundRequest{Body: []byte(`{"update_id": 7}`)},
			want: "update-7",
		},
		{
			name: "metadata fallback",
			req: core.InboundRequest{
				Body:     []byte(`{}`),
				Metadata: map[string]any{"delivery_id": "abc"},
			},
			want: "abc",
		},
		{
			name: "header fallback",
			req: core.InboundRequest{
				Body:    []byte(`{}`),
				Headers: map[string]string{"X-Delivery-Id": "hdr-1"},
			},
			want: "hdr-1",
		},
		{
			name:    "nothing to key on",
			req:     core.InboundRequest{Body: []byte(`{}`)},
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := UpdateIDExtractor(tc.req)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestMemoryLedger_FailPathLeadsToRetryThenDead(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	ledger := NewMemoryLedger()
	ledger.Now = func() time.Time { return now }
	ctx := context.Background()

	record, claimed, err := ledger.Claim(ctx, "update-1", nil, 30*time.Second)
	if err != nil || !claimed {
		t.Fatalf("claim failed: %v claimed=%v", err, claimed)
	}

	// Claims are leased; a concurrent claim inside the lease is refused.
	if _, again, _ := ledger.Claim(ctx, "update-1", nil, 30*time.Second); again {
		t.Fatal("claim inside live lease should be refused")
	}

	if err := ledger.Fail(ctx, record.ClaimID, context.DeadlineExceeded, now.Add(time.Minute), 2); err != nil {
		t.Fatalf("fail: %v", err)
	}
	got, _ := ledger.Get(ctx, "update-1")
	if got.Status != DeliveryStatusRetryReady {
		t.Fatalf("expected retry_ready, got %s", got.Status)
	}

	// Not yet due for retry.
	if _, again, _ := ledger.Claim(ctx, "update-1", nil, 30*time.Second); again {
		t.Fatal("retry before next attempt time should be refused")
	}

	now = now.Add(2 * time.Minute)
	record, claimed, err = ledger.Claim(ctx, "update-1", nil, 30*time.Second)
	if err != nil || !claimed {
		t.Fatalf("retry claim failed: %v claimed=%v", err, claimed)
	}
	if record.Attempts != 2 {
		t.Fatalf("expected second attempt, got %d", record.Attempts)
	}

	if err := ledger.Fail(ctx, record.ClaimID, context.DeadlineExceeded, now.Add(time.Minute), 2); err != nil {
		t.Fatalf("fail: %v", err)
	}
	got, _ = ledger.Get(ctx, "update-1")
	if got.Status != DeliveryStatusDead {
		t.Fatalf("expected dead after max attempts, got %s", got.Status)
	}

	if _, again, _ := ledger.Claim(ctx, "update-1", nil, 30*time.Second); again {
		t.Fatal("dead deliveries can never be reclaimed")
	}
}

func TestSecretTokenVerifier(t *testing.T) {
	verifier := NewSecretTokenVerifier("hunter2")
	ctx := context.Background()

	ok := core.InboundRequest{Headers: map[string]string{"x-telegram-bot-api-secret-token": "hunter2"}}
	if err := verifier.Verify(ctx, ok); err != nil {
		t.Fatalf("case-insensitive header should verify: %v", err)
	}

	if err := verifier.Verify(ctx, core.InboundRequest{Headers: map[string]string{SecretTokenHeader: "nope"}}); err == nil {
		t.Fatal("mismatched token must fail")
	}
	if err := verifier.Verify(ctx, core.InboundRequest{}); err == nil {
		t.Fatal("missing header must fail")
	}
	if err := (SecretTokenVerifier{}).Verify(ctx, ok); err == nil {
		t.Fatal("empty configured token must fail")
	}
}
