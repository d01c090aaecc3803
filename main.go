package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/sidequant/qshm-writer/bootstrap"
	"github.com/sidequant/qshm-writer/config"
	"github.com/sidequant/qshm-writer/diagnostics"
	"github.com/sidequant/qshm-writer/handler"
	"github.com/sidequant/qshm-writer/logging"
	"github.com/sidequant/qshm-writer/metrics"
	"github.com/sidequant/qshm-writer/shm"
	"github.com/sidequant/qshm-writer/stats"
	"github.com/sidequant/qshm-writer/supervisor"
	"github.com/sidequant/qshm-writer/symbols"
	"github.com/sidequant/qshm-writer/transport"
)

var allStates = []string{"connecting", "streaming", "backoff"}

func main() {
	log := logging.New(os.Getenv("QSHM_LOG_PRETTY") != "")

	re, err := bootstrap.LoadEnv()
	if err != nil {
		log.Warn().Err(err).Msg("invalid environment, falling back to defaults")
	}
	if err := bootstrap.PinToCPU(re.CPUCore, log); err != nil {
		log.Warn().Err(err).Msg("could not pin CPU affinity, continuing unpinned")
	}

	cfgPath := "./config.toml"
	if p := os.Getenv("QSHM_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Error().Err(err).Str("path", cfgPath).Int("exit_code", 1).Msg("failed to load config")
		os.Exit(1)
	}

	diag := diagnostics.NewReporter(cfg.Writer.DiagnosticsSocket, log)
	defer diag.Close()

	fail := func(code int, format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		log.Error().Int("exit_code", code).Msg(msg)
		diag.Close()
		os.Exit(code)
	}

	symbolsLog := logging.Component(log, "symbols")
	table, err := symbols.LoadTable(cfg.Writer.SymbolsTSV)
	if err != nil {
		fail(1, "symbols: %v", err)
		return
	}
	subscribed, err := symbols.LoadSubscriptionList(cfg.Writer.SubscribeList)
	if err != nil {
		fail(1, "symbols: %v", err)
		return
	}
	dir, err := symbols.BuildDirectory(subscribed, table)
	if err != nil {
		fail(1, "symbols: %v", err)
		return
	}
	symbolsLog.Info().Int("count", dir.Len()).Msg("subscription directory built")

	shmLog := logging.Component(log, "shm")
	mgr, err := shm.Open(cfg.Writer.ShmPath, shm.ValidateOptions{
		RequireVersion: cfg.Writer.RequireShmVersion,
		WantVersion:    cfg.Writer.ShmVersion,
	})
	if err != nil {
		fail(1, "shm: %v", err)
		return
	}
	defer mgr.Close()
	shmLog.Info().Uint64("n_sources", mgr.NSources()).Uint64("n_symbols", mgr.NSymbols()).Msg("shared memory mapped")

	sources := cfg.EnabledSources()
	if len(sources) == 0 {
		fail(1, "config: no enabled sources")
		return
	}

	var mtx *metrics.Metrics
	if cfg.Writer.MetricsAddr != "" {
		mtx = metrics.New()
		go serveMetrics(cfg.Writer.MetricsAddr, log)
	}

	latency := stats.NewLatency(cfg.Writer.SlowThresholdUs)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if diag.Enabled() {
		diagDone := make(chan struct{})
		defer close(diagDone)
		go diag.Run(diagDone, latency, diagnostics.DefaultInterval)
	}

	var wg sync.WaitGroup
	for _, src := range sources {
		names := namesForSource(dir, src)
		for _, name := range names {
			symbolID, _ := dir.Lookup(name)
			if err := mgr.InitSlot(src.SourceID, symbolID); err != nil {
				fail(11, "shm: init slot for source %d symbol %s: %v", src.SourceID, name, err)
				return
			}
		}

		dialer, err := buildDialer(src)
		if err != nil {
			fail(1, "config: source %s: %v", src.Name, err)
			return
		}

		wsLog := logging.Component(log, "ws-"+src.Name)
		statsLog := logging.Component(log, "stats")
		handlerLog := logging.Component(log, "handler")

		var onRecord handler.RecordFunc
		if mtx != nil {
			onRecord = func(procUs uint64, overThreshold bool) {
				mtx.RecordMessage(procUs, overThreshold)
				mtx.SetMaxLatency(latency.Snapshot().MaxProcUs)
			}
		}

		h := handler.New(src.SourceID, dir, mgr, latency, fail,
			func(symbol string, procUs uint64) {
				statsLog.Warn().Str("symbol", symbol).Uint64("proc_us", procUs).Msg("slow message")
			},
			func(symbol, field, raw string, err error) {
				handlerLog.Error().Str("symbol", symbol).Str("field", field).Str("raw", raw).Err(err).Msg("price parse failed, skipping message")
			},
			onRecord,
		)

		sup := &supervisor.Supervisor{
			Name:   src.Name,
			Shards: supervisor.ShardSymbols(names, cfg.Writer.ShardSize),
			Dial: func(ctx context.Context, shardIndex int, shard []string, onConnected func()) error {
				return dialer.Connect(ctx, shard, h.Handle, onConnected)
			},
			OnFatal: fail,
			OnStateChange: func(shardIndex int, state supervisor.State, consecutiveErrors int) {
				wsLog.Info().Int("shard", shardIndex).Str("state", state.String()).Int("consecutive_errors", consecutiveErrors).Msg("connection state changed")
				diag.SetShardState(shardIndex, state.String())
				if mtx != nil {
					mtx.SetConnectionState(shardIndex, state.String(), allStates)
					mtx.SetConsecutiveErrors(shardIndex, consecutiveErrors)
				}
			},
		}

		wg.Add(1)
		go func(sup *supervisor.Supervisor) {
			defer wg.Done()
			sup.Run(ctx)
		}(sup)
	}

	log.Info().Msg("writer running")
	wg.Wait()

	report := latency.Snapshot()
	logging.Component(log, "stats").Info().
		Uint64("total_messages", report.TotalMessages).
		Uint64("max_proc_us", report.MaxProcUs).
		Uint64("over_threshold_count", report.OverThresholdCnt).
		Float64("over_threshold_percent", report.OverThresholdPercent()).
		Msg("final stats")
	os.Exit(0)
}

// namesForSource restricts the shared directory to the names this source
// knows how to translate, when the source declares an explicit symbol map
// (multi-exchange deployments); a source with no symbol map consumes the
// full subscribed set verbatim, the single-source deployment spec.md §6
// describes.
func namesForSource(dir *symbols.Directory, src config.Source) []string {
	if len(src.Symbols) == 0 {
		return dir.Names()
	}
	names := make([]string, 0, len(src.Symbols))
	for _, name := range dir.Names() {
		if _, ok := src.Symbols[name]; ok {
			names = append(names, name)
		}
	}
	return names
}

func buildDialer(src config.Source) (transport.Dialer, error) {
	switch src.Name {
	case "binance":
		return transport.NewBinance(src.WSURL), nil
	case "hyperliquid":
		return transport.NewHyperliquid(src.Symbols), nil
	case "lighter":
		return transport.NewLighter(src.Symbols), nil
	case "edgex":
		return transport.NewEdgeX(src.Symbols), nil
	case "backpack":
		return transport.NewBackpack(src.Symbols), nil
	case "01":
		return transport.NewZeroOne(src.Symbols), nil
	default:
		return nil, fmt.Errorf("unknown source %q", src.Name)
	}
}

func serveMetrics(addr string, log zerolog.Logger) {
	metricsLog := logging.Component(log, "metrics")
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	metricsLog.Info().Str("addr", addr).Msg("metrics server listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		metricsLog.Warn().Err(err).Msg("metrics server stopped")
	}
}
