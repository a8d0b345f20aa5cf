package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/atlas-desktop/strategy-kernel/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// FileProvider is a deterministic, file-backed reference Provider: it
// loads candles from a per-(symbol, interval) JSON file under dataDir,
// generating a synthetic deterministic series on first use if none
// exists. The series is produced by a seeded random walk rather than
// wall-clock-derived randomness, so repeated runs and tests are
// reproducible.
type FileProvider struct {
	mu      sync.Mutex
	logger  *zap.Logger
	dataDir string
	cache   map[string][]types.Candle
}

// NewFileProvider creates a FileProvider rooted at dataDir, creating the
// directory if needed.
func NewFileProvider(logger *zap.Logger, dataDir string) (*FileProvider, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("exchange: create data dir: %w", err)
	}
	return &FileProvider{
		logger:  logger,
		dataDir: dataDir,
		cache:   make(map[string][]types.Candle),
	}, nil
}

func cacheKey(symbol string, interval types.Interval) string {
	return fmt.Sprintf("%s_%s", symbol, interval)
}

// GetCandles implements Provider.
func (p *FileProvider) GetCandles(ctx context.Context, symbol string, interval types.Interval, since time.Time, limit int) ([]types.Candle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := cacheKey(symbol, interval)
	bars, ok := p.cache[key]
	if !ok {
		var err error
		bars, err = p.load(key)
		if err != nil {
			return nil, err
		}
		if bars == nil {
			p.logger.Info("generating deterministic sample data", zap.String("symbol", symbol))
			bars = generateSample(symbol, interval, since, limit)
		}
		p.cache[key] = bars
	}

	out := make([]types.Candle, 0, limit)
	for _, b := range bars {
		if b.Timestamp.Before(since) {
			continue
		}
		out = append(out, b)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// FormatPrice implements Provider with two-decimal presentational
// formatting; real precision tables are an exchange concern outside the
// kernel's scope.
func (p *FileProvider) FormatPrice(symbol string, price float64) string {
	return fmt.Sprintf("%.2f", price)
}

// FormatQuantity implements Provider.
func (p *FileProvider) FormatQuantity(symbol string, qty float64) string {
	return fmt.Sprintf("%.6f", qty)
}

// SaveCandles persists bars for (symbol, interval), used by tests to seed
// fixtures. Unlike internal/store.FileStore, this path is demo/test
// infrastructure only and does not need crash-safe atomic replace.
func (p *FileProvider) SaveCandles(symbol string, interval types.Interval, bars []types.Candle) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := cacheKey(symbol, interval)
	p.cache[key] = bars

	data, err := json.MarshalIndent(bars, "", "  ")
	if err != nil {
		return fmt.Errorf("exchange: marshal candles: %w", err)
	}
	return os.WriteFile(filepath.Join(p.dataDir, key+".json"), data, 0o644)
}

func (p *FileProvider) load(key string) ([]types.Candle, error) {
	data, err := os.ReadFile(filepath.Join(p.dataDir, key+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("exchange: read %s: %w", key, err)
	}
	var bars []types.Candle
	if err := json.Unmarshal(data, &bars); err != nil {
		return nil, fmt.Errorf("exchange: parse %s: %w", key, err)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	return bars, nil
}

// generateSample produces a deterministic random-walk series from the
// symbol's base price, seeded only by symbol/interval/since — no time.Now()-derived
// randomness, so repeated runs are identical.
func generateSample(symbol string, interval types.Interval, since time.Time, count int) []types.Candle {
	price := basePrice(symbol)
	step := interval.Duration()

	out := make([]types.Candle, 0, count)
	seed := uint64(since.Unix())
	for i := 0; i < count; i++ {
		seed = seed*6364136223846793005 + 1442695040888963407
		noise := (float64(seed%1000)/1000.0 - 0.5) * 0.002 * price

		open := price
		price += noise
		closeP := price
		high := maxf(open, closeP) * 1.0005
		low := minf(open, closeP) * 0.9995
		volume := float64(seed%1_000_000) + 1

		out = append(out, types.Candle{
			Timestamp: since.Add(time.Duration(i) * step),
			Open:      decimal.NewFromFloat(open),
			High:      decimal.NewFromFloat(high),
			Low:       decimal.NewFromFloat(low),
			Close:     decimal.NewFromFloat(closeP),
			Volume:    decimal.NewFromFloat(volume),
		})
	}
	return out
}

func basePrice(symbol string) float64 {
	switch symbol {
	case "SOL/USDT":
		return 100.0
	case "ETH/USDT":
		return 2000.0
	case "BTC/USDT":
		return 40000.0
	default:
		return 100.0
	}
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
