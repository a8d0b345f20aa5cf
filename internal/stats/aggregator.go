// Package stats implements StatsAggregator: a per-(symbol, strategy)
// accumulator of closed-signal outcomes, producing win rate, PnL
// statistics, Sharpe-style ratios, and a bounded recent-event history.
//
// Math runs in float64 with decimal used only at the storage/reporting
// boundary. Standard deviation is computed as a population statistic
// (divided by the full sample count) rather than a sample statistic
// (n-1), since it describes the complete set of closed signals observed
// so far, not a sample drawn from a larger population.
package stats

import (
	"math"
	"sync"

	"github.com/atlas-desktop/strategy-kernel/internal/events"
	"github.com/shopspring/decimal"
)

// Key identifies one accumulation bucket.
type Key struct {
	Symbol       string
	StrategyName string
}

// Snapshot is the reportable statistic set for one bucket. Any field is
// nil when its denominator was zero or its input was NaN/±Inf.
type Snapshot struct {
	TotalClosed int
	WinCount    int
	LossCount   int

	WinRate               *decimal.Decimal
	TotalPnl              decimal.Decimal
	AvgPnl                *decimal.Decimal
	StdDev                *decimal.Decimal
	SharpeRatio           *decimal.Decimal
	AnnualizedSharpeRatio *decimal.Decimal
	CertaintyRatio        *decimal.Decimal
	ExpectedYearlyReturns *decimal.Decimal
}

type bucket struct {
	pnls          []float64
	durationsDays []float64
	winCount      int
	lossCount     int
	totalWinPnl   float64
	totalLossPnl  float64
}

// Aggregator accumulates closed events into per-(symbol, strategy)
// buckets and keeps a bounded, deduplicated recent history.
type Aggregator struct {
	mu      sync.Mutex
	buckets map[Key]*bucket
	history []events.SignalEvent
}

const historyLimit = 250

// New creates an empty Aggregator.
func New() *Aggregator {
	return &Aggregator{buckets: make(map[Key]*bucket)}
}

// Observe records one lifecycle event. Closed events feed the per-bucket
// statistics; every event (including idle) feeds the bounded history,
// with idle events deduplicated so only the last idle in a run survives
// when no signal event intervenes.
func (a *Aggregator) Observe(ev events.SignalEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if ev.Action == events.ActionClosed && ev.Signal != nil && ev.PnL != nil {
		a.record(ev)
	}
	a.appendHistory(ev)
}

func (a *Aggregator) record(ev events.SignalEvent) {
	key := Key{Symbol: ev.Symbol, StrategyName: ev.StrategyName}
	b, ok := a.buckets[key]
	if !ok {
		b = &bucket{}
		a.buckets[key] = b
	}

	pnl, _ := ev.PnL.PnLPercentage.Float64()
	if math.IsNaN(pnl) || math.IsInf(pnl, 0) {
		return
	}
	b.pnls = append(b.pnls, pnl)

	if !ev.Signal.PendingAt.IsZero() && !ev.CloseTimestamp.IsZero() {
		days := ev.CloseTimestamp.Sub(ev.Signal.PendingAt).Hours() / 24
		if days > 0 {
			b.durationsDays = append(b.durationsDays, days)
		}
	}

	if pnl > 0 {
		b.winCount++
		b.totalWinPnl += pnl
	} else if pnl < 0 {
		b.lossCount++
		b.totalLossPnl += pnl
	}
}

func (a *Aggregator) appendHistory(ev events.SignalEvent) {
	if ev.Action == events.ActionIdle && len(a.history) > 0 {
		last := a.history[len(a.history)-1]
		if last.Action == events.ActionIdle {
			a.history[len(a.history)-1] = ev
			return
		}
	}

	a.history = append(a.history, ev)
	if len(a.history) > historyLimit {
		a.history = a.history[len(a.history)-historyLimit:]
	}
}

// Snapshot returns the current statistics for one (symbol, strategy)
// bucket. ok=false if nothing has ever closed for that key.
func (a *Aggregator) Snapshot(key Key) (Snapshot, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	b, ok := a.buckets[key]
	if !ok {
		return Snapshot{}, false
	}
	return computeSnapshot(b), true
}

// History returns a copy of the bounded recent-event list, oldest first.
func (a *Aggregator) History() []events.SignalEvent {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]events.SignalEvent, len(a.history))
	copy(out, a.history)
	return out
}

func computeSnapshot(b *bucket) Snapshot {
	total := len(b.pnls)
	snap := Snapshot{
		TotalClosed: total,
		WinCount:    b.winCount,
		LossCount:   b.lossCount,
	}
	if total == 0 {
		return snap
	}

	totalPnl := sum(b.pnls)
	snap.TotalPnl = decimal.NewFromFloat(totalPnl)

	winRate := float64(b.winCount) / float64(total) * 100
	snap.WinRate = safePtr(winRate)

	avgPnl := totalPnl / float64(total)
	avgPnlOk := safePtr(avgPnl)
	snap.AvgPnl = avgPnlOk

	sd := populationStdDev(b.pnls, avgPnl)
	snap.StdDev = safePtr(sd)

	if avgPnlOk != nil && sd > 0 {
		sharpe := avgPnl / sd
		snap.SharpeRatio = safePtr(sharpe)
		snap.AnnualizedSharpeRatio = safePtr(sharpe * math.Sqrt(365))
	}

	if b.winCount > 0 && b.lossCount > 0 {
		avgWin := b.totalWinPnl / float64(b.winCount)
		avgLoss := b.totalLossPnl / float64(b.lossCount)
		if avgLoss != 0 {
			snap.CertaintyRatio = safePtr(avgWin / math.Abs(avgLoss))
		}
	}

	if avgPnlOk != nil && len(b.durationsDays) > 0 {
		avgDurationDays := mean(b.durationsDays)
		if avgDurationDays > 0 {
			snap.ExpectedYearlyReturns = safePtr(avgPnl * (365 / avgDurationDays))
		}
	}

	return snap
}

func sum(values []float64) float64 {
	var s float64
	for _, v := range values {
		s += v
	}
	return s
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return sum(values) / float64(len(values))
}

// populationStdDev divides by n, not n-1 — see the package doc comment.
func populationStdDev(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sumSquares float64
	for _, v := range values {
		d := v - mean
		sumSquares += d * d
	}
	return math.Sqrt(sumSquares / float64(len(values)))
}

// safePtr returns nil for NaN/±Inf or zero-denominator inputs, otherwise
// a decimal pointer.
func safePtr(v float64) *decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	d := decimal.NewFromFloat(v)
	return &d
}
