// Package diagnostics adapts the teacher's ipc.Publisher (a best-effort
// reconnecting Unix-socket JSON writer aimed at a Rust core process) into
// a periodic operational side-channel: every tick it pushes a snapshot of
// the latency counters and shard connection states to whatever is
// listening on the configured socket. Nothing downstream depends on this
// channel's format or even its presence.
package diagnostics

import (
	"encoding/json"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sidequant/qshm-writer/stats"
)

// DefaultInterval is how often a snapshot is pushed.
const DefaultInterval = 5 * time.Second

// Message is the envelope written to the socket, one JSON object per line.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Snapshot is the payload of a "stats" diagnostics message.
type Snapshot struct {
	TotalMessages      uint64         `json:"total_messages"`
	MaxProcUs          uint64         `json:"max_proc_us"`
	OverThresholdCount uint64         `json:"over_threshold_count"`
	ShardStates        map[int]string `json:"shard_states"`
}

// Reporter dials path and streams periodic Snapshot messages to it,
// reconnecting silently whenever the write side fails — the socket is a
// passive observer, never a dependency of the writer's own liveness.
type Reporter struct {
	path   string
	log    zerolog.Logger
	mu     sync.Mutex
	conn   net.Conn
	states map[int]string
}

// NewReporter constructs a Reporter. An empty path disables it entirely;
// callers should check Enabled() before starting the run loop.
func NewReporter(path string, log zerolog.Logger) *Reporter {
	r := &Reporter{path: path, log: log, states: make(map[int]string)}
	if path != "" {
		r.dial()
	}
	return r
}

// Enabled reports whether a socket path was configured.
func (r *Reporter) Enabled() bool {
	return r.path != ""
}

func (r *Reporter) dial() {
	conn, err := net.Dial("unix", r.path)
	if err != nil {
		return
	}
	r.mu.Lock()
	r.conn = conn
	r.mu.Unlock()
	r.log.Info().Str("component", "diagnostics").Str("socket", r.path).Msg("connected")
}

// SetShardState records a shard's current state for the next snapshot.
func (r *Reporter) SetShardState(shardIndex int, state string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[shardIndex] = state
}

// Publish writes one Snapshot immediately, best-effort.
func (r *Reporter) Publish(report stats.Report) {
	r.mu.Lock()
	states := make(map[int]string, len(r.states))
	for k, v := range r.states {
		states[k] = v
	}
	r.mu.Unlock()

	snap := Snapshot{
		TotalMessages:      report.TotalMessages,
		MaxProcUs:          report.MaxProcUs,
		OverThresholdCount: report.OverThresholdCnt,
		ShardStates:        states,
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return
	}
	msg, err := json.Marshal(Message{Type: "stats", Payload: payload})
	if err != nil {
		return
	}
	msg = append(msg, '\n')

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil {
		conn, err := net.Dial("unix", r.path)
		if err != nil {
			return
		}
		r.conn = conn
	}
	if _, err := r.conn.Write(msg); err != nil {
		r.conn.Close()
		r.conn = nil
	}
}

// Run pushes a snapshot of latency's counters on every tick until done is
// closed. Callers run it in its own goroutine.
func (r *Reporter) Run(done <-chan struct{}, latency *stats.Latency, interval time.Duration) {
	if !r.Enabled() {
		return
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			r.Publish(latency.Snapshot())
		}
	}
}

// Close releases the underlying connection, if any.
func (r *Reporter) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn != nil {
		r.conn.Close()
	}
}
