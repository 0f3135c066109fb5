package chart

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/rewired-gh/btcview/internal/models"
)

// PlaceholderLabel marks charts drawn from synthetic candles.
const PlaceholderLabel = "Placeholder data, not market history"

// PlaceholderConfig shapes the synthetic series.
type PlaceholderConfig struct {
	Candles    int
	Interval   time.Duration
	BasePrice  float64
	Volatility float64
}

// DefaultPlaceholderConfig is 101 four-hour candles around 68000 with 2% swings.
func DefaultPlaceholderConfig() PlaceholderConfig {
	return PlaceholderConfig{
		Candles:    101,
		Interval:   4 * time.Hour,
		BasePrice:  68000,
		Volatility: 0.02,
	}
}

// Placeholder synthesizes a random walk of candles ending at now. The shape
// (count, spacing, volatility) is fixed; prices depend on rng.
func Placeholder(cfg PlaceholderConfig, now time.Time, rng *rand.Rand) []models.Candle {
	if cfg.Candles <= 0 {
		return nil
	}
	candles := make([]models.Candle, 0, cfg.Candles)
	base := cfg.BasePrice

	for i := cfg.Candles - 1; i >= 0; i-- {
		t := now.Add(-time.Duration(i) * cfg.Interval).Unix()
		swing := base * cfg.Volatility
		open := base + (rng.Float64()-0.5)*swing
		closePrice := open + (rng.Float64()-0.5)*swing
		high := math.Max(open, closePrice) + rng.Float64()*swing*0.5
		low := math.Min(open, closePrice) - rng.Float64()*swing*0.5

		candles = append(candles, models.Candle{
			Time:  t,
			Open:  math.Round(open),
			High:  math.Round(high),
			Low:   math.Round(low),
			Close: math.Round(closePrice),
		})
		base = closePrice
	}
	return candles
}
