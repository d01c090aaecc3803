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

func TestHyperliquidConnectStreamsQuotesToSink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.CloseNow()
		ctx := r.Context()

		// Drain the subscribe frame before replying.
		var sub map[string]any
		_ = wsjson.Read(ctx, c, &sub)

		_ = wsjson.Write(ctx, c, map[string]any{
			"channel": "l2Book",
			"data": map[string]any{
				"coin": "BTC",
				"levels": [][]map[string]string{
					{{"px": "43567.89"}},
					{{"px": "43567.90"}},
				},
			},
		})
		time.Sleep(100 * time.Millisecond)
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	h := &Hyperliquid{canonicalToCoin: map[string]string{"BTCUSDT": "BTC"}}

	var got []handler.Quote
	done := make(chan struct{})
	go func() {
		_ = h.connectTo(context.Background(), wsURL, []string{"BTCUSDT"}, func(q handler.Quote) {
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
	assert.Equal(t, "43567.89", got[0].Bid)
	assert.Equal(t, "43567.90", got[0].Ask)
}
