package core

import (
	"context"

	glog "github.com/goliatone/go-logger/glog"
)

// APICaller is the dispatcher-facing contract of the resilient gateway. All
// failure modes resolve to an APIResult with Success=false; Call never
// panics and never returns an error value.
type APICaller interface {
	Call(ctx context.Context, method string, params map[string]any) APIResult
}

// UsageRecorder tracks message volume and sender activity. Recording is
// best-effort and independent of dispatch outcome.
type UsageRecorder interface {
	RecordMessage(senderID int64, hasSender bool)
	RecordError()
	Snapshot() UsageSnapshot
}

// ThrottleDecision reports a throttle check. Count is the window counter
// observed before the check incremented it.
type ThrottleDecision struct {
	Allow bool
	Count int64
}

// ThrottlePolicy bounds updates per reply target within a fixed window.
type ThrottlePolicy interface {
	Allow(targetID int64) ThrottleDecision
}

// ActivityRecorder persists dispatch traces. Failures are surfaced to the
// caller but must never block the dispatch response contract.
type ActivityRecorder interface {
	Record(ctx context.Context, entry DispatchActivity) error
}

// ActivityReader lists persisted dispatch traces.
type ActivityReader interface {
	List(ctx context.Context, filter DispatchActivityFilter) (DispatchActivityPage, error)
}

// InboundRequest is one webhook delivery as handed over by the transport
// layer. The transport itself is an external collaborator.
type InboundRequest struct {
	Headers  map[string]string
	Body     []byte
	Metadata map[string]any
}

// InboundResult is what the transport should answer with.
type InboundResult struct {
	Accepted   bool
	StatusCode int
	Metadata   map[string]any
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger
