package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"nhooyr.io/websocket"

	"github.com/sidequant/qshm-writer/handler"
)

// LighterWSURL is the zkLighter orderbook websocket endpoint.
const LighterWSURL = "wss://mainnet.zklighter.elliot.ai/stream"

type lighterEnvelope struct {
	Type      string          `json:"type"`
	Channel   string          `json:"channel"`
	OrderBook json.RawMessage `json:"order_book"`
}

type lighterBook struct {
	Bids []lighterLevel `json:"bids"`
	Asks []lighterLevel `json:"asks"`
}

type lighterLevel struct {
	Price string `json:"price"`
}

// Lighter adapts the teacher's exchanges.Lighter connector, which keyed its
// subscriptions by a numeric market index rather than a symbol string.
type Lighter struct {
	// canonicalToMktIdx maps a subscribed canonical name to the Lighter
	// numeric market index it corresponds to, given as a decimal string in
	// config (e.g. "BTCUSDT" -> "0").
	canonicalToMktIdx map[string]string
}

// NewLighter builds a Lighter dialer from a canonical-name -> market-index
// table.
func NewLighter(canonicalToMktIdx map[string]string) *Lighter {
	return &Lighter{canonicalToMktIdx: canonicalToMktIdx}
}

// lighterMarketChannel parses the trailing "/<index>" or ":<index>" off a
// channel name, the same walk-from-the-end approach as the teacher's
// parseMarketIndex, generalized to return ok=false instead of -1 on
// failure.
func lighterMarketChannel(channel string) (int, bool) {
	for i := len(channel) - 1; i >= 0; i-- {
		if channel[i] == ':' || channel[i] == '/' {
			n, err := strconv.Atoi(channel[i+1:])
			if err != nil {
				return 0, false
			}
			return n, true
		}
	}
	return 0, false
}

// Connect subscribes to order_book/<index> for every market in shard and
// forwards top-of-book updates to sink.
func (l *Lighter) Connect(ctx context.Context, shard []string, sink QuoteSink, onConnected func()) error {
	return l.connectTo(ctx, LighterWSURL, shard, sink, onConnected)
}

func (l *Lighter) connectTo(ctx context.Context, wsURL string, shard []string, sink QuoteSink, onConnected func()) error {
	mktIdxToCanonical := make(map[int]string, len(shard))
	for _, canonical := range shard {
		raw, ok := l.canonicalToMktIdx[canonical]
		if !ok {
			continue
		}
		idx, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		mktIdxToCanonical[idx] = canonical
	}

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("lighter: dial: %w", err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(1 << 20)

	for idx := range mktIdxToCanonical {
		sub := fmt.Sprintf(`{"type":"subscribe","channel":"order_book/%d"}`, idx)
		if err := conn.Write(ctx, websocket.MessageText, []byte(sub)); err != nil {
			return fmt.Errorf("lighter: subscribe market %d: %w", idx, err)
		}
	}

	notifyConnected(onConnected)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("lighter: read: %w", err)
		}

		var env lighterEnvelope
		if json.Unmarshal(data, &env) != nil {
			continue
		}
		if env.Type != "subscribed/order_book" && env.Type != "update/order_book" {
			continue
		}

		mktIdx, ok := lighterMarketChannel(env.Channel)
		if !ok {
			continue
		}
		canonical, ok := mktIdxToCanonical[mktIdx]
		if !ok {
			continue
		}

		var book lighterBook
		if json.Unmarshal(env.OrderBook, &book) != nil {
			continue
		}
		if len(book.Bids) == 0 || len(book.Asks) == 0 {
			continue
		}

		sink(handler.Quote{Symbol: canonical, Bid: book.Bids[0].Price, Ask: book.Asks[0].Price})
	}
}
