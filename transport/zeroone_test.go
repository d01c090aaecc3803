package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/sidequant/qshm-writer/handler"
)

func TestZeroOneConnectStreamsQuotesToSink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.CloseNow()
		ctx := r.Context()

		var sub map[string]any
		_ = wsjson.Read(ctx, c, &sub)

		_ = wsjson.Write(ctx, c, map[string]any{
			"topic":  "orderbook",
			"market": "BTC-PERP",
			"type":   "snapshot",
			"data": map[string]any{
				"bids": [][]string{{"43000.1", "1"}},
				"asks": [][]string{{"43000.2", "1"}},
			},
		})
		time.Sleep(100 * time.Millisecond)
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	z := &ZeroOne{canonicalToMarket: map[string]string{"BTCUSDT": "BTC-PERP"}}

	var got []handler.Quote
	done := make(chan struct{})
	go func() {
		_ = z.connectTo(context.Background(), wsURL, []string{"BTCUSDT"}, func(q handler.Quote) {
			got = append(got, q)
			close(done)
		}, nil)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for quote")
	}

	require.Len(t, got, 1)
	assert.Equal(t, "BTCUSDT", got[0].Symbol)
	assert.Equal(t, "43000.1", got[0].Bid)
	assert.Equal(t, "43000.2", got[0].Ask)
}
