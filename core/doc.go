// Package core contains the canonical bot domain contracts and entities: the
// inbound update union, outbound call results, usage counters, and the
// configuration surface. Lower-level adapters must depend on this package;
// core must not depend on gateway, dispatch, or storage adapters.
package core
