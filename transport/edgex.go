package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"nhooyr.io/websocket"

	"github.com/sidequant/qshm-writer/handler"
)

// EdgeXWSURL is the EdgeX quote API websocket endpoint.
const EdgeXWSURL = "wss://quote.edgex.exchange/api/v1/public/ws"

type edgexWSEvent struct {
	Type    string           `json:"type"`
	Channel string           `json:"channel"`
	Content edgexContentNode `json:"content"`
}

type edgexContentNode struct {
	Data []edgexDepthData `json:"data"`
}

type edgexDepthData struct {
	ContractID string         `json:"contractId"`
	Bids       []edgexOBLevel `json:"bids"`
	Asks       []edgexOBLevel `json:"asks"`
}

type edgexOBLevel struct {
	Price string `json:"price"`
}

// EdgeX adapts the teacher's exchanges.EdgeX connector, which subscribed to
// a fixed depth-15 channel per contract.
type EdgeX struct {
	// canonicalToContractID maps a subscribed canonical name to the EdgeX
	// contract identifier.
	canonicalToContractID map[string]string
}

// NewEdgeX builds an EdgeX dialer from a canonical-name -> contract-ID
// table.
func NewEdgeX(canonicalToContractID map[string]string) *EdgeX {
	return &EdgeX{canonicalToContractID: canonicalToContractID}
}

// Connect subscribes to depth.<contract>.15 for every symbol in shard and
// forwards top-of-book updates to sink.
func (e *EdgeX) Connect(ctx context.Context, shard []string, sink QuoteSink, onConnected func()) error {
	return e.connectTo(ctx, EdgeXWSURL, shard, sink, onConnected)
}

func (e *EdgeX) connectTo(ctx context.Context, wsURL string, shard []string, sink QuoteSink, onConnected func()) error {
	contractToCanonical := make(map[string]string, len(shard))
	for _, canonical := range shard {
		contractID, ok := e.canonicalToContractID[canonical]
		if !ok {
			continue
		}
		contractToCanonical[contractID] = canonical
	}

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("edgex: dial: %w", err)
	}
	defer conn.CloseNow()

	for contractID := range contractToCanonical {
		sub := map[string]any{
			"type":    "subscribe",
			"channel": fmt.Sprintf("depth.%s.15", contractID),
		}
		raw, _ := json.Marshal(sub)
		if err := conn.Write(ctx, websocket.MessageText, raw); err != nil {
			return fmt.Errorf("edgex: subscribe %s: %w", contractID, err)
		}
	}

	notifyConnected(onConnected)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("edgex: read: %w", err)
		}

		var event edgexWSEvent
		if json.Unmarshal(data, &event) != nil {
			continue
		}
		if event.Type != "quote-event" || !strings.HasPrefix(event.Channel, "depth.") {
			continue
		}
		if len(event.Content.Data) == 0 {
			continue
		}

		depth := event.Content.Data[0]
		if len(depth.Bids) == 0 || len(depth.Asks) == 0 {
			continue
		}

		canonical, ok := contractToCanonical[depth.ContractID]
		if !ok {
			continue
		}

		sink(handler.Quote{Symbol: canonical, Bid: depth.Bids[0].Price, Ask: depth.Asks[0].Price})
	}
}
