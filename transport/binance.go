package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/sidequant/qshm-writer/handler"
)

// KeepaliveInterval is the application-level keepalive cadence: a Binance
// connection pings its upstream this often. The other connectors in this
// package send no application-level keepalive.
const KeepaliveInterval = 30 * time.Second

// BinanceWSBase is the Binance Futures combined-stream websocket base URL.
const BinanceWSBase = "wss://fstream.binance.com"

// bookTicker is the raw Binance Futures bookTicker payload — only the
// fields the hot path needs are decoded; everything else (update ID,
// bid/ask quantity) is ignored for performance, matching the original
// Rust's BookTickerData.
type bookTicker struct {
	Symbol   string `json:"s"`
	BidPrice string `json:"b"`
	AskPrice string `json:"a"`
}

type binanceStreamMessage struct {
	Stream string     `json:"stream"`
	Data   bookTicker `json:"data"`
}

// Binance connects to the Binance USD-M Futures bookTicker stream. It is
// the transport.Dialer for the original upstream, grounded in the
// teacher's binance/feeder.go and the original Rust ws.rs — the
// original's upstream is Binance Futures specifically.
type Binance struct {
	wsBase string
}

// NewBinance constructs a Binance dialer. wsBase overrides BinanceWSBase
// when non-empty, for testing against a local server.
func NewBinance(wsBase string) *Binance {
	if wsBase == "" {
		wsBase = BinanceWSBase
	}
	return &Binance{wsBase: wsBase}
}

func combinedStreamURL(base string, shard []string) string {
	streams := make([]string, len(shard))
	for i, s := range shard {
		streams[i] = strings.ToLower(s) + "@bookTicker"
	}
	return base + "/stream?streams=" + strings.Join(streams, "/")
}

// Connect dials the combined stream for shard and forwards every
// bookTicker update to sink until ctx is cancelled or the connection
// fails. Malformed frames are skipped, never treated as a connection
// error — an unparseable envelope does not mean the transport is down.
func (b *Binance) Connect(ctx context.Context, shard []string, sink QuoteSink, onConnected func()) error {
	url := combinedStreamURL(b.wsBase, shard)

	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("binance: dial: %w", err)
	}
	defer conn.CloseNow()

	pingCtx, cancelPing := context.WithCancel(ctx)
	defer cancelPing()
	go b.keepalive(pingCtx, conn)

	notifyConnected(onConnected)

	for {
		var raw json.RawMessage
		if err := wsjson.Read(ctx, conn, &raw); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("binance: read: %w", err)
		}

		var msg binanceStreamMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		if msg.Data.Symbol == "" {
			continue
		}

		sink(handler.Quote{
			Symbol: strings.ToUpper(msg.Data.Symbol),
			Bid:    msg.Data.BidPrice,
			Ask:    msg.Data.AskPrice,
		})
	}
}

func (b *Binance) keepalive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(KeepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			_ = conn.Ping(pingCtx)
			cancel()
		}
	}
}
