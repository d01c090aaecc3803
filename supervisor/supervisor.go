// Package supervisor implements the connection supervisor: sharding of a
// subscription set across multiple upstream connections, staggered
// startup, jittered exponential backoff, and consecutive-failure fatality.
// Grounded in the teacher's exchanges.RunConnectionLoop reconnect skeleton,
// generalized to sharding and per-shard state per the original Rust
// ws.rs WsManager/BackoffCalculator.
package supervisor

import (
	"context"
	"sync"
	"time"
)

// DefaultShardSize is the default number of symbols per upstream connection.
const DefaultShardSize = 100

// MaxConsecutiveErrors is the default fatality threshold: a shard whose
// connection fails more than this many times in a row with no intervening
// clean close terminates the process.
const MaxConsecutiveErrors = 10

// BackoffSchedule is the reconnect delay ladder, in order of attempt. The
// last entry repeats for every attempt beyond the table's length.
var BackoffSchedule = []time.Duration{
	200 * time.Millisecond,
	500 * time.Millisecond,
	1000 * time.Millisecond,
	2000 * time.Millisecond,
	5000 * time.Millisecond,
	10000 * time.Millisecond,
	30000 * time.Millisecond,
}

// StaggerInterval is the additional per-shard delay before first connect,
// i.e. shard i waits i*StaggerInterval before its first attempt.
const StaggerInterval = 200 * time.Millisecond

// JitterUnit is the per-shard additive jitter applied to every backoff
// delay: shard i's jitter is (i * JitterUnit) mod JitterPeriod.
const JitterUnit = 50 * time.Millisecond

// JitterPeriod bounds the jitter computed from JitterUnit.
const JitterPeriod = 500 * time.Millisecond

// Backoff tracks the reconnect attempt counter for one shard.
type Backoff struct {
	attempt int
}

// Next returns the next delay in the schedule and advances the attempt
// counter. Delays beyond the schedule's length repeat its last entry.
func (b *Backoff) Next() time.Duration {
	idx := b.attempt
	if idx >= len(BackoffSchedule) {
		idx = len(BackoffSchedule) - 1
	}
	b.attempt++
	return BackoffSchedule[idx]
}

// Reset zeroes the attempt counter, e.g. after a clean close.
func (b *Backoff) Reset() {
	b.attempt = 0
}

// Jitter computes the per-shard additive jitter for shard index i.
func Jitter(shardIndex int) time.Duration {
	return time.Duration(int64(shardIndex)*int64(JitterUnit)) % JitterPeriod
}

// ShardSymbols splits names into ceil(len(names)/shardSize) shards of at
// most shardSize entries each, preserving order.
func ShardSymbols(names []string, shardSize int) [][]string {
	if shardSize <= 0 {
		shardSize = DefaultShardSize
	}
	if len(names) == 0 {
		return nil
	}
	var shards [][]string
	for i := 0; i < len(names); i += shardSize {
		end := i + shardSize
		if end > len(names) {
			end = len(names)
		}
		shards = append(shards, names[i:end])
	}
	return shards
}

// State is one of the per-connection lifecycle states of spec.md §4.H.
type State int

const (
	StateConnecting State = iota
	StateStreaming
	StateBackoff
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateBackoff:
		return "backoff"
	default:
		return "unknown"
	}
}

// DialFunc runs one connection attempt for a shard until it terminates: it
// blocks until the connection closes (nil, a clean close) or fails
// (non-nil error), or ctx is cancelled. Suspension happens only inside
// this call — the supervisor itself never suspends except for the
// staggered-startup and backoff sleeps. onConnected must be called once
// the transport is actually up (after dial and subscribe succeed, before
// blocking on the read loop) so the supervisor can emit StateStreaming;
// a DialFunc that never calls it leaves the shard reporting Connecting
// for the life of a healthy connection.
type DialFunc func(ctx context.Context, shardIndex int, shard []string, onConnected func()) error

// FatalFunc terminates the process. Called once, from at most one shard,
// when that shard's consecutive failures exceed MaxConsecutiveErrors.
type FatalFunc func(code int, format string, args ...any)

// StateChangeFunc is notified of every state transition, for logging or
// metrics. May be nil.
type StateChangeFunc func(shardIndex int, state State, consecutiveErrors int)

// Supervisor runs one DialFunc per shard of a subscription set.
type Supervisor struct {
	Name                 string
	Shards               [][]string
	Dial                 DialFunc
	MaxConsecutiveErrors int
	OnFatal              FatalFunc
	OnStateChange        StateChangeFunc
}

// Run starts one goroutine per shard and blocks until ctx is cancelled or
// every shard's goroutine returns (which normally never happens — shards
// loop forever until cancellation or fatality).
func (s *Supervisor) Run(ctx context.Context) {
	maxErrors := s.MaxConsecutiveErrors
	if maxErrors <= 0 {
		maxErrors = MaxConsecutiveErrors
	}

	var wg sync.WaitGroup
	for i, shard := range s.Shards {
		wg.Add(1)
		go func(shardIndex int, shard []string) {
			defer wg.Done()
			s.runShard(ctx, shardIndex, shard, maxErrors)
		}(i, shard)
	}
	wg.Wait()
}

func (s *Supervisor) runShard(ctx context.Context, shardIndex int, shard []string, maxErrors int) {
	stagger := time.Duration(shardIndex) * StaggerInterval
	if stagger > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(stagger):
		}
	}

	var backoff Backoff
	consecutiveErrors := 0

	for {
		if ctx.Err() != nil {
			return
		}

		s.notify(shardIndex, StateConnecting, consecutiveErrors)
		streamingErrCount := consecutiveErrors
		onConnected := func() {
			s.notify(shardIndex, StateStreaming, streamingErrCount)
		}
		err := s.Dial(ctx, shardIndex, shard, onConnected)

		if ctx.Err() != nil {
			return
		}

		if err == nil {
			backoff.Reset()
			consecutiveErrors = 0
		} else {
			consecutiveErrors++
			if consecutiveErrors > maxErrors {
				if s.OnFatal != nil {
					s.OnFatal(3, "%s shard %d: %d consecutive connection failures: %v", s.Name, shardIndex, consecutiveErrors, err)
				}
				return
			}
		}

		s.notify(shardIndex, StateBackoff, consecutiveErrors)
		delay := backoff.Next() + Jitter(shardIndex)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (s *Supervisor) notify(shardIndex int, state State, consecutiveErrors int) {
	if s.OnStateChange != nil {
		s.OnStateChange(shardIndex, state, consecutiveErrors)
	}
}
