package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"nhooyr.io/websocket"

	"github.com/sidequant/qshm-writer/handler"
)

// ZeroOneWSURL is the 01.xyz exchange websocket endpoint.
const ZeroOneWSURL = "wss://stream.01.xyz/ws"

type zeroOneSubMessage struct {
	Type   string `json:"type"`
	Topic  string `json:"topic"`
	Market string `json:"market"`
}

type zeroOneEvent struct {
	Topic  string      `json:"topic"`
	Market string      `json:"market"`
	Type   string      `json:"type"`
	Data   zeroOneData `json:"data"`
}

type zeroOneData struct {
	Bids [][]string `json:"bids"`
	Asks [][]string `json:"asks"`
}

// ZeroOne adapts the teacher's exchanges.ZeroOne connector (01.xyz).
type ZeroOne struct {
	// canonicalToMarket maps a subscribed canonical name to the 01.xyz
	// market identifier.
	canonicalToMarket map[string]string
}

// NewZeroOne builds a ZeroOne dialer from a canonical-name -> market table.
func NewZeroOne(canonicalToMarket map[string]string) *ZeroOne {
	return &ZeroOne{canonicalToMarket: canonicalToMarket}
}

// Connect subscribes to the orderbook topic for every market in shard and
// forwards top-of-book updates to sink.
func (z *ZeroOne) Connect(ctx context.Context, shard []string, sink QuoteSink, onConnected func()) error {
	return z.connectTo(ctx, ZeroOneWSURL, shard, sink, onConnected)
}

func (z *ZeroOne) connectTo(ctx context.Context, wsURL string, shard []string, sink QuoteSink, onConnected func()) error {
	marketToCanonical := ReverseSymbolMap(restrictTo(z.canonicalToMarket, shard))

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("01: dial: %w", err)
	}
	defer conn.CloseNow()

	for market := range marketToCanonical {
		sub := zeroOneSubMessage{Type: "subscribe", Topic: "orderbook", Market: market}
		raw, _ := json.Marshal(sub)
		if err := conn.Write(ctx, websocket.MessageText, raw); err != nil {
			return fmt.Errorf("01: subscribe %s: %w", market, err)
		}
	}

	notifyConnected(onConnected)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("01: read: %w", err)
		}

		var event zeroOneEvent
		if json.Unmarshal(data, &event) != nil {
			continue
		}
		if event.Topic != "orderbook" || (event.Type != "snapshot" && event.Type != "update") {
			continue
		}
		if len(event.Data.Bids) == 0 || len(event.Data.Asks) == 0 {
			continue
		}
		if len(event.Data.Bids[0]) == 0 || len(event.Data.Asks[0]) == 0 {
			continue
		}

		canonical, ok := marketToCanonical[event.Market]
		if !ok {
			continue
		}

		sink(handler.Quote{Symbol: canonical, Bid: event.Data.Bids[0][0], Ask: event.Data.Asks[0][0]})
	}
}
