// Package transport is the out-of-scope collaborator boundary of spec.md
// §6: it dials, frames, and decodes exchange streaming connections, and
// hands parsed (symbol, bid_str, ask_str) quotes to the core's hot path.
// Reconnection is the supervisor package's job, not this one's. None of this package is on the hot write path — only its output,
// a handler.Quote, crosses into the core.
package transport

import (
	"context"

	"github.com/sidequant/qshm-writer/handler"
)

// QuoteSink receives one upstream quote. Implementations (the hot-path
// handler) must not block and must not suspend.
type QuoteSink func(handler.Quote)

// Dialer opens one upstream connection carrying a shard of symbol names
// and streams quotes to sink until the connection closes (return nil) or
// fails (return non-nil). It is the supervisor.DialFunc's underlying
// per-exchange implementation.
type Dialer interface {
	// Connect blocks until ctx is cancelled, the connection closes
	// cleanly, or an error occurs. shard lists the canonical subscribed
	// symbol names (spec.md §4.C) this connection is responsible for.
	// onConnected must be called once the dial and subscribe succeed,
	// before blocking on the read loop, so the supervisor can observe
	// the transport's "established" transition (spec.md §4.H).
	Connect(ctx context.Context, shard []string, sink QuoteSink, onConnected func()) error
}

// notifyConnected calls onConnected if it is non-nil — connectors accept
// a nil callback in tests that don't care about the transition.
func notifyConnected(onConnected func()) {
	if onConnected != nil {
		onConnected()
	}
}

// ReverseSymbolMap builds exchange-native-symbol -> canonical-name from a
// canonical-name -> exchange-native-symbol config table, the same
// direction the teacher's exchanges.BuildReverseSymbolMap performs for its
// two-entry table, generalized to the full subscribed set.
func ReverseSymbolMap(canonicalToNative map[string]string) map[string]string {
	m := make(map[string]string, len(canonicalToNative))
	for canonical, native := range canonicalToNative {
		m[native] = canonical
	}
	return m
}
