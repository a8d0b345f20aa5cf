// Package walker implements WalkerDriver: a sequential strategy-sweep
// comparison over one shared timeframe, ranked by a chosen statistic.
//
// Each strategy in the sweep runs its own complete backtest over the
// same frame; metrics for ranking come from stats.Aggregator rather
// than a bespoke per-run accumulator.
package walker

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/atlas-desktop/strategy-kernel/internal/backtest"
	"github.com/atlas-desktop/strategy-kernel/internal/events"
	"github.com/atlas-desktop/strategy-kernel/internal/exchange"
	"github.com/atlas-desktop/strategy-kernel/internal/kernel"
	"github.com/atlas-desktop/strategy-kernel/internal/stats"
	"github.com/atlas-desktop/strategy-kernel/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CoreFactory builds a fresh StrategyCore bound to a given strategy name,
// for one backtest run over Symbol/Frame. The caller resolves the
// strategy name to a concrete SignalGenerator.
type CoreFactory func(strategyName string) (*kernel.StrategyCore, error)

// Driver runs walker.Strategies sequentially, each as a complete
// BacktestDriver sweep, and ranks the results by walker.Metric.
type Driver struct {
	logger   *zap.Logger
	bus      *events.Bus
	provider exchange.Provider
	symbol   string
	walker   types.Walker
	factory  CoreFactory

	mu      sync.Mutex
	current string
	stopped bool
}

// New creates a Driver for one Walker definition, over symbol, using
// factory to construct a per-strategy StrategyCore.
func New(logger *zap.Logger, bus *events.Bus, provider exchange.Provider, symbol string, w types.Walker, factory CoreFactory) *Driver {
	return &Driver{logger: logger, bus: bus, provider: provider, symbol: symbol, walker: w, factory: factory}
}

// Stop requests cancellation. If strategyName matches the strategy
// currently running, the in-flight backtest aborts; the sweep itself
// also stops without evaluating further strategies.
func (d *Driver) Stop(strategyName string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == strategyName {
		d.stopped = true
	}
}

func (d *Driver) shouldStop() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopped
}

func (d *Driver) setCurrent(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.current = name
}

// Run sweeps every strategy in the walker to completion, publishes a
// progress event after each, then a completion event with the ranked
// outcome.
func (d *Driver) Run(ctx context.Context) error {
	total := len(d.walker.Strategies)
	results := make([]events.WalkerResult, 0, total)

	for idx, strategyName := range d.walker.Strategies {
		if d.shouldStop() {
			break
		}
		d.setCurrent(strategyName)

		metric, err := d.runOne(ctx, strategyName)
		if err != nil {
			return fmt.Errorf("walker: strategy %q: %w", strategyName, err)
		}
		results = append(results, events.WalkerResult{StrategyName: strategyName, Metric: metric})

		if d.bus != nil {
			d.bus.Publish(events.Event{
				Channel: events.ProgressWalker,
				Payload: events.ProgressEvent{WalkerName: d.walker.Name, Processed: idx + 1, Total: total},
			})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return rankLess(results[j].Metric, results[i].Metric)
	})

	var best string
	var bestMetric *decimal.Decimal
	if len(results) > 0 && results[0].Metric != nil {
		best = results[0].StrategyName
		bestMetric = results[0].Metric
	}

	if d.bus != nil {
		d.bus.Publish(events.Event{
			Channel: events.WalkerComplete,
			Payload: events.WalkerCompleteEvent{
				WalkerName:   d.walker.Name,
				BestStrategy: best,
				BestMetric:   bestMetric,
				Results:      results,
			},
		})
		d.bus.Publish(events.Event{Channel: events.DoneWalker, Payload: events.DoneEvent{StrategyName: d.walker.Name}})
	}

	return nil
}

// runOne runs one strategy's complete BacktestDriver sweep against a
// dedicated stats.Aggregator, and returns the chosen metric.
func (d *Driver) runOne(ctx context.Context, strategyName string) (*decimal.Decimal, error) {
	core, err := d.factory(strategyName)
	if err != nil {
		return nil, err
	}

	agg := stats.New()
	driver := backtest.New(d.logger, core, d.provider, d.symbol, d.walker.Frame)

	for !driver.Done() {
		if d.shouldStop() {
			break
		}
		res, ok, err := driver.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		agg.Observe(res)
	}

	snap, ok := agg.Snapshot(stats.Key{Symbol: d.symbol, StrategyName: strategyName})
	if !ok {
		return nil, nil
	}
	return extractMetric(snap, d.walker.Metric)
}

// rankLess orders nil metrics last, then descending by value.
func rankLess(a, b *decimal.Decimal) bool {
	if a == nil {
		return b != nil
	}
	if b == nil {
		return false
	}
	return a.LessThan(*b)
}

// extractMetric pulls the named statistic from a snapshot.
func extractMetric(snap stats.Snapshot, metric string) (*decimal.Decimal, error) {
	switch metric {
	case "winRate":
		return snap.WinRate, nil
	case "totalPnl":
		return &snap.TotalPnl, nil
	case "avgPnl":
		return snap.AvgPnl, nil
	case "stdDev":
		return snap.StdDev, nil
	case "sharpeRatio":
		return snap.SharpeRatio, nil
	case "annualizedSharpeRatio":
		return snap.AnnualizedSharpeRatio, nil
	case "certaintyRatio":
		return snap.CertaintyRatio, nil
	case "expectedYearlyReturns":
		return snap.ExpectedYearlyReturns, nil
	default:
		return nil, fmt.Errorf("walker: unknown metric %q", metric)
	}
}
