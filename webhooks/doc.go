// Package webhooks accepts raw platform deliveries and hands parsed updates
// to the dispatcher.
//
// Delivery processing is driven by a claim lifecycle:
// pending/retry_ready -> processing -> processed|dead.
// This makes retries and crash-recovery explicit and lets duplicate
// deliveries of the same update_id be acknowledged without re-dispatch.
package webhooks
