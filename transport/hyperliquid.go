package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/sidequant/qshm-writer/handler"
)

// HyperliquidWSURL is the Hyperliquid L2 book websocket endpoint.
const HyperliquidWSURL = "wss://api.hyperliquid.xyz/ws"

type hlEnvelope struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

type hlL2Book struct {
	Coin   string      `json:"coin"`
	Levels [][]hlLevel `json:"levels"`
}

type hlLevel struct {
	Px string `json:"px"`
}

// Hyperliquid adapts the teacher's exchanges.Hyperliquid connector (which
// wrote float64 BBOs straight into a bespoke matrix) into a
// transport.Dialer that emits decimal-string quotes resolved against the
// shared symbol directory, as one of several source_id producers in a
// multi-exchange deployment (spec.md §9: "each producer uses a distinct
// source_id").
type Hyperliquid struct {
	// canonicalToCoin maps a subscribed canonical name (e.g. "BTCUSDT") to
	// the Hyperliquid coin ticker (e.g. "BTC").
	canonicalToCoin map[string]string
}

// NewHyperliquid builds a Hyperliquid dialer from a canonical-name ->
// coin-ticker table (the runtime config's per-source symbol map).
func NewHyperliquid(canonicalToCoin map[string]string) *Hyperliquid {
	return &Hyperliquid{canonicalToCoin: canonicalToCoin}
}

// Connect subscribes to l2Book for every coin in shard and forwards the
// best bid/ask of each update to sink.
func (h *Hyperliquid) Connect(ctx context.Context, shard []string, sink QuoteSink, onConnected func()) error {
	return h.connectTo(ctx, HyperliquidWSURL, shard, sink, onConnected)
}

func (h *Hyperliquid) connectTo(ctx context.Context, wsURL string, shard []string, sink QuoteSink, onConnected func()) error {
	coinToCanonical := make(map[string]string, len(shard))
	var coins []string
	for _, canonical := range shard {
		coin, ok := h.canonicalToCoin[canonical]
		if !ok {
			continue
		}
		coinToCanonical[coin] = canonical
		coins = append(coins, coin)
	}

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("hyperliquid: dial: %w", err)
	}
	defer conn.CloseNow()

	for _, coin := range coins {
		sub := map[string]any{
			"method":       "subscribe",
			"subscription": map[string]any{"type": "l2Book", "coin": coin},
		}
		if err := wsjson.Write(ctx, conn, sub); err != nil {
			return fmt.Errorf("hyperliquid: subscribe %s: %w", coin, err)
		}
	}

	notifyConnected(onConnected)

	for {
		var raw json.RawMessage
		if err := wsjson.Read(ctx, conn, &raw); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("hyperliquid: read: %w", err)
		}

		var env hlEnvelope
		if err := json.Unmarshal(raw, &env); err != nil || env.Channel != "l2Book" {
			continue
		}

		var book hlL2Book
		if err := json.Unmarshal(env.Data, &book); err != nil {
			continue
		}

		canonical, ok := coinToCanonical[book.Coin]
		if !ok || len(book.Levels) < 2 {
			continue
		}

		bids, asks := book.Levels[0], book.Levels[1]
		if len(bids) == 0 || len(asks) == 0 {
			continue
		}

		sink(handler.Quote{Symbol: canonical, Bid: bids[0].Px, Ask: asks[0].Px})
	}
}
