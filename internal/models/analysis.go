// Package models defines the data exchanged with the analysis backend:
// analysis snapshots, trade signals, user settings and candles.
package models

import (
	"errors"
	"fmt"
)

// Trend is the backend's overall market direction.
type Trend string

const (
	TrendBullish Trend = "BULLISH"
	TrendBearish Trend = "BEARISH"
	TrendNeutral Trend = "NEUTRAL"
)

// Valid reports whether t is a known trend.
func (t Trend) Valid() bool {
	switch t {
	case TrendBullish, TrendBearish, TrendNeutral:
		return true
	}
	return false
}

// SignalType is the direction of a trade signal.
type SignalType string

const (
	SignalLong    SignalType = "LONG"
	SignalShort   SignalType = "SHORT"
	SignalNeutral SignalType = "NEUTRAL"
)

// Valid reports whether s is a known signal type.
func (s SignalType) Valid() bool {
	switch s {
	case SignalLong, SignalShort, SignalNeutral:
		return true
	}
	return false
}

// MovingAverages holds the indicator values reported alongside a snapshot.
type MovingAverages struct {
	SMA20 float64 `json:"sma20"`
	SMA50 float64 `json:"sma50"`
	EMA12 float64 `json:"ema12"`
	EMA26 float64 `json:"ema26"`
}

// SupportResistance lists price levels ordered as the backend sent them.
type SupportResistance struct {
	Support           []float64 `json:"support"`
	Resistance        []float64 `json:"resistance"`
	CurrentPrice      float64   `json:"currentPrice,omitempty"`
	NearestSupport    *float64  `json:"nearestSupport"`
	NearestResistance *float64  `json:"nearestResistance"`
}

// TradeSignal is a directional recommendation or NEUTRAL.
// For NEUTRAL signals the price and ratio fields carry no meaning.
type TradeSignal struct {
	Type                   SignalType `json:"type"`
	Confidence             float64    `json:"confidence"`
	EntryPrice             float64    `json:"entryPrice"`
	StopLoss               float64    `json:"stopLoss"`
	TakeProfit             float64    `json:"takeProfit"`
	RiskRewardRatio        float64    `json:"riskRewardRatio"`
	PotentialProfitPercent float64    `json:"potentialProfitPercent"`
	PotentialLossPercent   float64    `json:"potentialLossPercent"`
	Reason                 string     `json:"reason"`
}

// Directional reports whether the signal is LONG or SHORT.
func (s TradeSignal) Directional() bool {
	return s.Type == SignalLong || s.Type == SignalShort
}

// AnalysisSnapshot is the backend state captured at Timestamp.
// Values are treated as immutable once received.
type AnalysisSnapshot struct {
	CurrentPrice      float64           `json:"currentPrice"`
	SupportResistance SupportResistance `json:"supportResistance"`
	MovingAverages    MovingAverages    `json:"movingAverages"`
	RSI               float64           `json:"rsi"`
	Signal            TradeSignal       `json:"signal"`
	Trend             Trend             `json:"trend"`
	Timestamp         string            `json:"timestamp"`
}

// Validate checks that the snapshot has a usable shape.
func (a *AnalysisSnapshot) Validate() error {
	if a.CurrentPrice <= 0 {
		return errors.New("current price must be positive")
	}
	if !a.Trend.Valid() {
		return fmt.Errorf("unknown trend %q", a.Trend)
	}
	if a.RSI < 0 || a.RSI > 100 {
		return errors.New("rsi must be between 0 and 100")
	}
	if !a.Signal.Type.Valid() {
		return fmt.Errorf("unknown signal type %q", a.Signal.Type)
	}
	if a.Signal.Confidence < 0 || a.Signal.Confidence > 100 {
		return errors.New("signal confidence must be between 0 and 100")
	}
	return nil
}

// Candle is a single OHLC bar. Time is in unix seconds.
type Candle struct {
	Time  int64   `json:"time"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}
