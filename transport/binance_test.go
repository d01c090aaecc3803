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

func TestCombinedStreamURL(t *testing.T) {
	url := combinedStreamURL(BinanceWSBase, []string{"BTCUSDT", "ETHUSDT"})
	assert.True(t, strings.HasPrefix(url, "wss://fstream.binance.com/stream?streams="))
	assert.Contains(t, url, "btcusdt@bookTicker")
	assert.Contains(t, url, "ethusdt@bookTicker")
}

func TestConnectStreamsQuotesToSink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.CloseNow()

		ctx := r.Context()
		_ = wsjson.Write(ctx, c, binanceStreamMessage{
			Stream: "btcusdt@bookTicker",
			Data:   bookTicker{Symbol: "BTCUSDT", BidPrice: "43567.89", AskPrice: "43567.90"},
		})

		// Hold the connection open briefly so the client has time to read.
		time.Sleep(100 * time.Millisecond)
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	var got []handler.Quote
	var connected bool
	done := make(chan struct{})
	go func() {
		b := NewBinance(wsURL)
		_ = b.Connect(context.Background(), []string{"BTCUSDT"}, func(q handler.Quote) {
			got = append(got, q)
			close(done)
		}, func() { connected = true })
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
	assert.True(t, connected)
}

func TestConnectSkipsUnrecognizedFrames(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.CloseNow()
		ctx := r.Context()
		_ = c.Write(ctx, websocket.MessageText, []byte(`{"unexpected":"shape"}`))
		_ = wsjson.Write(ctx, c, binanceStreamMessage{
			Data: bookTicker{Symbol: "ETHUSDT", BidPrice: "1", AskPrice: "2"},
		})
		time.Sleep(100 * time.Millisecond)
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	var got []handler.Quote
	done := make(chan struct{})
	go func() {
		b := NewBinance(wsURL)
		_ = b.Connect(context.Background(), []string{"ETHUSDT"}, func(q handler.Quote) {
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
	assert.Equal(t, "ETHUSDT", got[0].Symbol)
}
