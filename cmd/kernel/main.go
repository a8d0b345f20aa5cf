// Package main wires the strategy kernel's components and runs one
// driver (backtest, live, or walker) to completion or until a shutdown
// signal arrives.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atlas-desktop/strategy-kernel/internal/backtest"
	"github.com/atlas-desktop/strategy-kernel/internal/breakeven"
	"github.com/atlas-desktop/strategy-kernel/internal/config"
	"github.com/atlas-desktop/strategy-kernel/internal/events"
	"github.com/atlas-desktop/strategy-kernel/internal/exchange"
	"github.com/atlas-desktop/strategy-kernel/internal/kernel"
	"github.com/atlas-desktop/strategy-kernel/internal/live"
	"github.com/atlas-desktop/strategy-kernel/internal/metrics"
	"github.com/atlas-desktop/strategy-kernel/internal/oracle"
	"github.com/atlas-desktop/strategy-kernel/internal/partial"
	"github.com/atlas-desktop/strategy-kernel/internal/risk"
	"github.com/atlas-desktop/strategy-kernel/internal/signalgen"
	"github.com/atlas-desktop/strategy-kernel/internal/stats"
	"github.com/atlas-desktop/strategy-kernel/internal/store"
	"github.com/atlas-desktop/strategy-kernel/internal/walker"
	"github.com/atlas-desktop/strategy-kernel/pkg/types"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	mode := flag.String("mode", "backtest", "Driver to run: backtest, live, walker")
	symbol := flag.String("symbol", "SOLUSDT", "Trading symbol")
	strategyName := flag.String("strategy", "momentum", "Strategy name (momentum, mean_reversion)")
	exchangeName := flag.String("exchange", "file", "Exchange provider name")
	dataDir := flag.String("data", "./data", "Data directory for the file exchange provider and position store")
	configPath := flag.String("config", "", "Path to a config file (optional)")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics listen address")
	frameStart := flag.String("frame-start", "", "Backtest/walker frame start (RFC3339), required in those modes")
	frameEnd := flag.String("frame-end", "", "Backtest/walker frame end (RFC3339), required in those modes")
	liveTickSeconds := flag.Int("live-tick-seconds", 5, "Live driver tick cadence")
	flag.Parse()

	logger := setupLogger(*logLevel)
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsReg := metrics.New()
	go func() {
		if err := metricsReg.Serve(*metricsAddr); err != nil {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()

	provider, err := exchange.NewFileProvider(logger, *dataDir)
	if err != nil {
		logger.Fatal("failed to initialize exchange provider", zap.Error(err))
	}
	bus := events.New(logger, 64)
	agg := stats.New()
	wireStatsSubscriber(bus, agg)
	wireMetricsSubscriber(bus, metricsReg)

	liveMode := *mode == "live"
	or := oracle.New(logger, provider, cfg, liveMode)
	gate := risk.New(logger, bus, defaultRiskProfile())

	var posStore store.Store
	if liveMode {
		fileStore, err := storeOrFatal(logger, *dataDir)
		if err != nil {
			logger.Fatal("failed to open position store", zap.Error(err))
		}
		posStore = fileStore
	} else {
		posStore = store.NewMemoryStore()
	}

	generator, err := resolveGenerator(*strategyName, or)
	if err != nil {
		logger.Fatal("failed to resolve signal generator", zap.Error(err))
	}

	routing := kernel.RoutingContext{StrategyName: *strategyName, ExchangeName: *exchangeName}
	deps := kernel.Deps{
		Logger:     logger,
		Bus:        bus,
		Oracle:     or,
		Gate:       gate,
		Store:      posStore,
		Partials:   partial.New(bus),
		Breakevens: breakeven.New(bus),
		Generator:  generator,
		Config:     cfg,
	}

	switch *mode {
	case "live":
		runLive(ctx, logger, bus, deps, routing, *symbol, *liveTickSeconds)
	case "backtest":
		frame, err := parseFrame(*symbol, *frameStart, *frameEnd)
		if err != nil {
			logger.Fatal("invalid frame", zap.Error(err))
		}
		runBacktest(ctx, logger, provider, deps, routing, *symbol, frame)
	case "walker":
		frame, err := parseFrame(*symbol, *frameStart, *frameEnd)
		if err != nil {
			logger.Fatal("invalid frame", zap.Error(err))
		}
		runWalker(ctx, logger, bus, provider, deps, *symbol, *exchangeName, frame)
	default:
		logger.Fatal("unknown mode", zap.String("mode", *mode))
	}
}

func runLive(ctx context.Context, logger *zap.Logger, bus *events.Bus, deps kernel.Deps, routing kernel.RoutingContext, symbol string, tickSeconds int) {
	core := kernel.New(deps, routing, symbol, kernel.Live, time.Minute)
	driver := live.New(logger, core, bus, time.Duration(tickSeconds)*time.Second)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received, draining live driver")
		driver.Stop()
	}()

	if err := driver.Run(ctx); err != nil {
		logger.Error("live driver exited with error", zap.Error(err))
	}
}

func runBacktest(ctx context.Context, logger *zap.Logger, provider exchange.Provider, deps kernel.Deps, routing kernel.RoutingContext, symbol string, frame types.Frame) {
	core := kernel.New(deps, routing, symbol, kernel.Backtest, 0)
	driver := backtest.New(logger, core, provider, symbol, frame)

	for !driver.Done() {
		res, ok, err := driver.Next(ctx)
		if err != nil {
			logger.Error("backtest driver error", zap.Error(err))
			return
		}
		if !ok {
			break
		}
		logger.Info("backtest result", zap.String("action", string(res.Action)))
	}
}

func runWalker(ctx context.Context, logger *zap.Logger, bus *events.Bus, provider exchange.Provider, deps kernel.Deps, symbol, exchangeName string, frame types.Frame) {
	w := types.Walker{
		Name:         "default",
		Strategies:   []string{"momentum", "mean_reversion"},
		Metric:       "sharpeRatio",
		ExchangeName: exchangeName,
		Frame:        frame,
	}

	factory := func(strategyName string) (*kernel.StrategyCore, error) {
		generator, err := resolveGenerator(strategyName, deps.Oracle)
		if err != nil {
			return nil, err
		}
		perStrategyDeps := deps
		perStrategyDeps.Generator = generator
		perStrategyDeps.Store = store.NewMemoryStore()
		routing := kernel.RoutingContext{StrategyName: strategyName, ExchangeName: w.ExchangeName, FrameName: frame.Name}
		return kernel.New(perStrategyDeps, routing, symbol, kernel.Backtest, 0), nil
	}

	driver := walker.New(logger, bus, provider, symbol, w, factory)
	if err := driver.Run(ctx); err != nil {
		logger.Error("walker driver error", zap.Error(err))
	}
}

func resolveGenerator(name string, or *oracle.Oracle) (kernel.SignalGenerator, error) {
	switch name {
	case "momentum":
		return signalgen.NewMomentum(or), nil
	case "mean_reversion":
		return signalgen.NewMeanReversion(or), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
}

func defaultRiskProfile() types.RiskProfile {
	return types.RiskProfile{
		Name:                   "default",
		MaxConcurrentPositions: 5,
	}
}

func storeOrFatal(logger *zap.Logger, dataDir string) (store.Store, error) {
	return store.NewFileStore(logger, dataDir+"/positions"), nil
}

func parseFrame(symbol, start, end string) (types.Frame, error) {
	if start == "" || end == "" {
		return types.Frame{}, fmt.Errorf("frame-start and frame-end are required")
	}
	startAt, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return types.Frame{}, fmt.Errorf("frame-start: %w", err)
	}
	endAt, err := time.Parse(time.RFC3339, end)
	if err != nil {
		return types.Frame{}, fmt.Errorf("frame-end: %w", err)
	}
	return types.Frame{Name: symbol, StartDate: startAt, EndDate: endAt, Interval: types.Interval1m}, nil
}

// wireStatsSubscriber feeds every lifecycle event observed on the union
// channel into the StatsAggregator.
func wireStatsSubscriber(bus *events.Bus, agg *stats.Aggregator) {
	bus.Subscribe(events.SignalAny, func(ev events.Event) {
		if sig, ok := ev.Payload.(events.SignalEvent); ok {
			agg.Observe(sig)
		}
	})
}

// wireMetricsSubscriber feeds lifecycle/risk/partial events into the
// prometheus registry's counters.
func wireMetricsSubscriber(bus *events.Bus, reg *metrics.Registry) {
	bus.Subscribe(events.SignalAny, func(ev events.Event) {
		sig, ok := ev.Payload.(events.SignalEvent)
		if !ok {
			return
		}
		reg.Ticks.WithLabelValues(sig.StrategyName, sig.Symbol, modeLabel(sig.BacktestFlag)).Inc()
		switch sig.Action {
		case events.ActionOpened:
			reg.SignalsOpened.WithLabelValues(sig.StrategyName, sig.Symbol).Inc()
		case events.ActionClosed:
			reg.SignalsClosed.WithLabelValues(sig.StrategyName, sig.Symbol, string(sig.CloseReason)).Inc()
		}
	})
	bus.Subscribe(events.RiskReject, func(ev events.Event) {
		if r, ok := ev.Payload.(events.RiskRejectEvent); ok {
			reg.RiskRejects.WithLabelValues(r.StrategyName, r.Symbol).Inc()
		}
	})
	bus.Subscribe(events.PartialProfit, func(ev events.Event) {
		if p, ok := ev.Payload.(events.PartialEvent); ok {
			reg.Partials.WithLabelValues("", p.Symbol, string(p.Kind)).Inc()
		}
	})
	bus.Subscribe(events.PartialLoss, func(ev events.Event) {
		if p, ok := ev.Payload.(events.PartialEvent); ok {
			reg.Partials.WithLabelValues("", p.Symbol, string(p.Kind)).Inc()
		}
	})
}

func modeLabel(backtest bool) string {
	if backtest {
		return "backtest"
	}
	return "live"
}

func setupLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
