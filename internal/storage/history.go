package storage

import (
	"context"
	"time"

	"github.com/rewired-gh/btcview/internal/models"
)

// History serves journaled candles to the chart engine. It reports no
// candles until at least MinCandles buckets exist.
type History struct {
	store      *Storage
	interval   time.Duration
	minCandles int
	maxCandles int
}

// NewHistory creates a history source over store.
func NewHistory(store *Storage, interval time.Duration, minCandles, maxCandles int) *History {
	return &History{
		store:      store,
		interval:   interval,
		minCandles: minCandles,
		maxCandles: maxCandles,
	}
}

// Candles returns the newest candles, or nil when history is too short.
func (h *History) Candles(ctx context.Context) ([]models.Candle, error) {
	candles, err := h.store.Candles(ctx, h.interval, h.maxCandles)
	if err != nil {
		return nil, err
	}
	if len(candles) < h.minCandles {
		return nil, nil
	}
	return candles, nil
}
