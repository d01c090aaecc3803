package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"nhooyr.io/websocket"

	"github.com/sidequant/qshm-writer/handler"
)

// BackpackWSURL is the Backpack exchange websocket endpoint.
const BackpackWSURL = "wss://ws.backpack.exchange"

type backpackDepth struct {
	EventType string     `json:"e"`
	Symbol    string     `json:"s"`
	Bids      [][]string `json:"b"` // [price, size]
	Asks      [][]string `json:"a"` // [price, size]
}

// Backpack adapts the teacher's exchanges.Backpack connector.
type Backpack struct {
	// canonicalToNative maps a subscribed canonical name to the Backpack
	// native symbol (e.g. "BTCUSDT" -> "BTC_USDC_PERP").
	canonicalToNative map[string]string
}

// NewBackpack builds a Backpack dialer from a canonical-name -> native-
// symbol table.
func NewBackpack(canonicalToNative map[string]string) *Backpack {
	return &Backpack{canonicalToNative: canonicalToNative}
}

// Connect subscribes to depth.<symbol> for every symbol in shard and
// forwards top-of-book updates to sink.
func (b *Backpack) Connect(ctx context.Context, shard []string, sink QuoteSink, onConnected func()) error {
	return b.connectTo(ctx, BackpackWSURL, shard, sink, onConnected)
}

func (b *Backpack) connectTo(ctx context.Context, wsURL string, shard []string, sink QuoteSink, onConnected func()) error {
	nativeToCanonical := ReverseSymbolMap(restrictTo(b.canonicalToNative, shard))

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("backpack: dial: %w", err)
	}
	defer conn.CloseNow()

	var channels []string
	for native := range nativeToCanonical {
		channels = append(channels, "depth."+native)
	}
	sub := map[string]any{
		"method": "SUBSCRIBE",
		"params": channels,
		"id":     1,
	}
	raw, _ := json.Marshal(sub)
	if err := conn.Write(ctx, websocket.MessageText, raw); err != nil {
		return fmt.Errorf("backpack: subscribe: %w", err)
	}

	notifyConnected(onConnected)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("backpack: read: %w", err)
		}

		var depth backpackDepth
		if json.Unmarshal(data, &depth) != nil {
			continue
		}
		if depth.EventType != "depth" {
			continue
		}

		canonical, ok := nativeToCanonical[depth.Symbol]
		if !ok {
			continue
		}
		if len(depth.Bids) == 0 || len(depth.Asks) == 0 {
			continue
		}
		if len(depth.Bids[0]) == 0 || len(depth.Asks[0]) == 0 {
			continue
		}

		sink(handler.Quote{Symbol: canonical, Bid: depth.Bids[0][0], Ask: depth.Asks[0][0]})
	}
}

// restrictTo returns the subset of m whose keys appear in shard.
func restrictTo(m map[string]string, shard []string) map[string]string {
	out := make(map[string]string, len(shard))
	for _, canonical := range shard {
		if native, ok := m[canonical]; ok {
			out[canonical] = native
		}
	}
	return out
}
