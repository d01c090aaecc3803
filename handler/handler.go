// Package handler implements the hot-path write pipeline: given an upstream
// quote, resolve its slot, parse its prices, stamp the publish time, and
// publish — with zero allocation, zero locking, and zero floating point.
package handler

import (
	"github.com/sidequant/qshm-writer/clock"
	"github.com/sidequant/qshm-writer/price"
	"github.com/sidequant/qshm-writer/shm"
	"github.com/sidequant/qshm-writer/stats"
	"github.com/sidequant/qshm-writer/symbols"
)

// FatalFunc terminates the process with the given exit code. Only invoked
// for invariant violations the spec defines as fatal: unknown symbol (10)
// and slot resolution failure (11).
type FatalFunc func(code int, format string, args ...any)

// SlowFunc is called off the critical write path when a message's
// processing time exceeds the configured slow threshold.
type SlowFunc func(symbol string, procUs uint64)

// ParseErrorFunc is called when a price field fails to parse. This is a
// per-message error — logged and skipped, never fatal (spec.md §4.F step 3).
type ParseErrorFunc func(symbol, field, raw string, err error)

// RecordFunc is called once per published message, off the hot path,
// with its processing time and whether it crossed the slow threshold —
// the same point SlowFunc fires from, but unconditional. Used to feed
// operational mirrors (e.g. the Prometheus exporter) of the latency
// counters that are already authoritative in stats.Latency.
type RecordFunc func(procUs uint64, overThreshold bool)

// Quote is one upstream best-bid/best-ask update.
type Quote struct {
	Symbol string
	Bid    string
	Ask    string
}

// Handler resolves, parses, and publishes quotes for a single source_id.
type Handler struct {
	sourceID   uint64
	dir        *symbols.Directory
	mgr        *shm.Manager
	latency    *stats.Latency
	onFatal    FatalFunc
	onSlow     SlowFunc
	onParseErr ParseErrorFunc
	onRecord   RecordFunc
}

// New builds a Handler. dir must already be restricted to the subscribed
// symbol set (symbols.BuildDirectory). onSlow, onParseErr, and onRecord
// may be nil.
func New(sourceID uint64, dir *symbols.Directory, mgr *shm.Manager, latency *stats.Latency, onFatal FatalFunc, onSlow SlowFunc, onParseErr ParseErrorFunc, onRecord RecordFunc) *Handler {
	return &Handler{
		sourceID:   sourceID,
		dir:        dir,
		mgr:        mgr,
		latency:    latency,
		onFatal:    onFatal,
		onSlow:     onSlow,
		onParseErr: onParseErr,
		onRecord:   onRecord,
	}
}

// Handle runs the full hot-path pipeline for one upstream quote. It has no
// return value: a parse failure is reported to onParseErr (when set) and
// the message is skipped; unknown symbol and slot-resolution failures are
// fatal, matching spec.md §4.F.
func (h *Handler) Handle(q Quote) {
	tStart := clock.NowMicros()

	symbolID, ok := h.dir.Lookup(q.Symbol)
	if !ok {
		h.onFatal(10, "unknown symbol observed on hot path: %s", q.Symbol)
		return
	}

	bid, err := price.Parse(q.Bid)
	if err != nil {
		if h.onParseErr != nil {
			h.onParseErr(q.Symbol, "bid", q.Bid, err)
		}
		return
	}
	ask, err := price.Parse(q.Ask)
	if err != nil {
		if h.onParseErr != nil {
			h.onParseErr(q.Symbol, "ask", q.Ask, err)
		}
		return
	}

	ts := clock.NowMicros()

	slot, err := h.mgr.GetSlot(h.sourceID, symbolID)
	if err != nil {
		h.onFatal(11, "slot resolution failed for symbol_id %d: %v", symbolID, err)
		return
	}

	slot.Write(bid, ask, ts)

	tEnd := clock.NowMicros()
	procUs := uint64(tEnd - tStart)
	h.latency.Record(procUs)
	over := h.latency.IsSlow(procUs)

	if h.onRecord != nil {
		h.onRecord(procUs, over)
	}
	if h.onSlow != nil && over {
		h.onSlow(q.Symbol, procUs)
	}
}
