package render

import (
	"math"

	"github.com/rewired-gh/btcview/internal/models"
)

// SignalDisplayThreshold is the minimum confidence for an actionable card.
// It is independent of the user's confidenceThreshold setting.
const SignalDisplayThreshold = 60

// Disclaimer is shown under every signal.
const Disclaimer = "This is technical analysis only, not financial advice."

// SignalVisible reports whether the actionable signal card is shown for snap.
func SignalVisible(snap *models.AnalysisSnapshot) bool {
	if snap == nil {
		return false
	}
	return snap.Signal.Directional() && snap.Signal.Confidence >= SignalDisplayThreshold
}

// Tone is a semantic color used by the templates.
type Tone string

const (
	ToneGreen Tone = "green"
	ToneRed   Tone = "red"
	ToneGray  Tone = "gray"
	ToneBlue  Tone = "blue"
)

// SignalCard is the actionable card for a LONG or SHORT signal.
type SignalCard struct {
	Title      string
	Arrow      string
	Tone       Tone
	Confidence string
	RiskReward string
	Entry      string
	StopLoss   string
	TakeProfit string
	ProfitLoss string
	Reason     string
	Disclaimer string
}

// NewSignalCard returns the card for snap, or nil when the gate hides it.
func NewSignalCard(snap *models.AnalysisSnapshot) *SignalCard {
	if !SignalVisible(snap) {
		return nil
	}
	s := snap.Signal
	card := &SignalCard{
		Title:      string(s.Type) + " SIGNAL",
		Confidence: "Confidence: " + Whole(s.Confidence) + "%",
		RiskReward: RiskReward(s.RiskRewardRatio),
		Entry:      Money(s.EntryPrice),
		StopLoss:   Money(s.StopLoss),
		TakeProfit: Money(s.TakeProfit),
		ProfitLoss: "+" + Percent2(s.PotentialProfitPercent) + "% / " + Percent2(s.PotentialLossPercent) + "%",
		Reason:     s.Reason,
		Disclaimer: Disclaimer,
	}
	if s.Type == models.SignalLong {
		card.Arrow, card.Tone = "↑", ToneGreen
	} else {
		card.Arrow, card.Tone = "↓", ToneRed
	}
	return card
}

// SignalSummary is the compact signal panel shown in the indicator grid.
type SignalSummary struct {
	Label      string
	Tone       Tone
	Neutral    bool
	Confidence string
	Entry      string
	Stop       string
	Target     string
	RiskReward string
}

// NewSignalSummary builds the compact panel. Price fields stay empty for
// NEUTRAL signals.
func NewSignalSummary(s models.TradeSignal) SignalSummary {
	switch s.Type {
	case models.SignalLong, models.SignalShort:
		tone := ToneGreen
		if s.Type == models.SignalShort {
			tone = ToneRed
		}
		return SignalSummary{
			Label:      string(s.Type),
			Tone:       tone,
			Confidence: "Confidence: " + Whole(s.Confidence) + "%",
			Entry:      "Entry: " + Amount(s.EntryPrice),
			Stop:       "Stop: " + Amount(s.StopLoss),
			Target:     "Target: " + Amount(s.TakeProfit),
			RiskReward: "R:R " + RiskReward(s.RiskRewardRatio),
		}
	default:
		return SignalSummary{Label: "No Signal", Tone: ToneGray, Neutral: true}
	}
}

// RSIPanel describes the RSI indicator.
type RSIPanel struct {
	Value    string
	BarWidth float64
	State    string
	Tone     Tone
}

// RSIState labels an RSI reading.
func RSIState(rsi float64) string {
	switch {
	case rsi < 30:
		return "Oversold"
	case rsi > 70:
		return "Overbought"
	default:
		return "Neutral"
	}
}

// NewRSIPanel builds the RSI panel with the bar clamped to 0–100%.
func NewRSIPanel(rsi float64) RSIPanel {
	p := RSIPanel{
		Value:    decimalOne(rsi),
		BarWidth: math.Min(100, math.Max(0, rsi)),
		State:    RSIState(rsi),
		Tone:     ToneGray,
	}
	switch p.State {
	case "Oversold":
		p.Tone = ToneGreen
	case "Overbought":
		p.Tone = ToneRed
	}
	return p
}

// TrendBadge is the trend indicator next to the price.
type TrendBadge struct {
	Label string
	Arrow string
	Tone  Tone
}

// NewTrendBadge maps a trend to its badge.
func NewTrendBadge(t models.Trend) TrendBadge {
	switch t {
	case models.TrendBullish:
		return TrendBadge{Label: "BULLISH", Arrow: "↗", Tone: ToneGreen}
	case models.TrendBearish:
		return TrendBadge{Label: "BEARISH", Arrow: "↘", Tone: ToneRed}
	default:
		return TrendBadge{Label: "NEUTRAL", Arrow: "–", Tone: ToneGray}
	}
}

func decimalOne(v float64) string {
	return Number(math.Round(v*10) / 10)
}
