package render

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rewired-gh/btcview/internal/controller"
	"github.com/rewired-gh/btcview/internal/models"
)

func sampleSnapshot(sigType models.SignalType, confidence float64) *models.AnalysisSnapshot {
	support := 67000.0
	return &models.AnalysisSnapshot{
		CurrentPrice: 68000,
		SupportResistance: models.SupportResistance{
			Support:        []float64{67000, 66000},
			Resistance:     []float64{69500.5},
			NearestSupport: &support,
		},
		MovingAverages: models.MovingAverages{SMA20: 67500, SMA50: 66000.25, EMA12: 67800, EMA26: 67200},
		RSI:            55.56,
		Signal: models.TradeSignal{
			Type:                   sigType,
			Confidence:             confidence,
			EntryPrice:             68000,
			StopLoss:               66640,
			TakeProfit:             70720,
			RiskRewardRatio:        2,
			PotentialProfitPercent: 4,
			PotentialLossPercent:   2,
			Reason:                 "Bullish crossover",
		},
		Trend:     models.TrendBullish,
		Timestamp: "2026-01-01T00:00:00Z",
	}
}

func TestSignalVisible(t *testing.T) {
	tests := []struct {
		name string
		snap *models.AnalysisSnapshot
		want bool
	}{
		{"nil snapshot", nil, false},
		{"long above threshold", sampleSnapshot(models.SignalLong, 72), true},
		{"short at threshold", sampleSnapshot(models.SignalShort, 60), true},
		{"long below threshold", sampleSnapshot(models.SignalLong, 55), false},
		{"neutral high confidence", sampleSnapshot(models.SignalNeutral, 90), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SignalVisible(tt.snap); got != tt.want {
				t.Errorf("SignalVisible() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewSignalCard(t *testing.T) {
	card := NewSignalCard(sampleSnapshot(models.SignalLong, 72))
	if card == nil {
		t.Fatal("expected card for LONG 72")
	}

	checks := []struct{ field, got, want string }{
		{"Title", card.Title, "LONG SIGNAL"},
		{"Confidence", card.Confidence, "Confidence: 72%"},
		{"RiskReward", card.RiskReward, "1:2"},
		{"Entry", card.Entry, "$68,000.00"},
		{"StopLoss", card.StopLoss, "$66,640.00"},
		{"TakeProfit", card.TakeProfit, "$70,720.00"},
		{"ProfitLoss", card.ProfitLoss, "+4.00% / 2.00%"},
		{"Reason", card.Reason, "Bullish crossover"},
		{"Disclaimer", card.Disclaimer, Disclaimer},
		{"Tone", string(card.Tone), string(ToneGreen)},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.field, c.got, c.want)
		}
	}

	if NewSignalCard(sampleSnapshot(models.SignalLong, 55)) != nil {
		t.Error("expected no card below display threshold")
	}

	short := NewSignalCard(sampleSnapshot(models.SignalShort, 80))
	if short == nil || short.Title != "SHORT SIGNAL" || short.Tone != ToneRed {
		t.Errorf("unexpected short card: %+v", short)
	}
}

func TestNewSignalSummary(t *testing.T) {
	neutral := NewSignalSummary(models.TradeSignal{Type: models.SignalNeutral, Confidence: 90})
	if neutral.Label != "No Signal" || !neutral.Neutral || neutral.Entry != "" {
		t.Errorf("unexpected neutral summary: %+v", neutral)
	}

	s := sampleSnapshot(models.SignalShort, 65).Signal
	s.RiskRewardRatio = 2.5
	got := NewSignalSummary(s)
	if got.Label != "SHORT" || got.RiskReward != "R:R 1:2.5" || got.Entry != "Entry: $68,000" {
		t.Errorf("unexpected summary: %+v", got)
	}

	long := NewSignalSummary(models.TradeSignal{
		Type: models.SignalLong, Confidence: 72,
		EntryPrice: 68000, StopLoss: 66000, TakeProfit: 72000, RiskRewardRatio: 2,
	})
	if long.RiskReward != "R:R 1:2" || long.Confidence != "Confidence: 72%" || long.Tone != ToneGreen {
		t.Errorf("unexpected long summary: %+v", long)
	}
}

func TestRSIState(t *testing.T) {
	tests := []struct {
		rsi  float64
		want string
	}{
		{0, "Oversold"},
		{29.9, "Oversold"},
		{30, "Neutral"},
		{50, "Neutral"},
		{70, "Neutral"},
		{70.1, "Overbought"},
		{100, "Overbought"},
	}

	for _, tt := range tests {
		if got := RSIState(tt.rsi); got != tt.want {
			t.Errorf("RSIState(%v) = %q, want %q", tt.rsi, got, tt.want)
		}
	}
}

func TestNewRSIPanel(t *testing.T) {
	p := NewRSIPanel(55.56)
	if p.Value != "55.6" || p.BarWidth != 55.56 || p.State != "Neutral" {
		t.Errorf("unexpected panel: %+v", p)
	}
	if p := NewRSIPanel(20); p.Tone != ToneGreen {
		t.Errorf("oversold tone = %s, want green", p.Tone)
	}
}

func TestFormatting(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"money", Money(68000), "$68,000.00"},
		{"money fraction", Money(1234.5), "$1,234.50"},
		{"amount", Amount(67950.5), "$67,950.5"},
		{"amount whole", Amount(68000), "$68,000"},
		{"ratio whole", RiskReward(3), "1:3"},
		{"ratio half", RiskReward(1.5), "1:1.5"},
		{"whole", Whole(72.4), "72"},
		{"percent", Percent2(4.5), "4.50"},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestNewDashboard(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	loading := NewDashboard(controller.State{Loading: true}, now)
	if !loading.Loading || loading.Empty {
		t.Errorf("expected loading state: %+v", loading)
	}

	empty := NewDashboard(controller.State{Err: errors.New("boom")}, now)
	if !empty.Empty || empty.Error != "boom" || empty.Stale {
		t.Errorf("expected empty state with error: %+v", empty)
	}

	st := controller.State{
		Analysis:   sampleSnapshot(models.SignalLong, 72),
		Settings:   &models.UserSettings{TradeType: models.TradeBoth, RiskRewardRatio: 2, ConfidenceThreshold: 70},
		Ready:      true,
		LastUpdate: now.Add(-2 * time.Minute),
		Err:        errors.New("timeout"),
	}
	d := NewDashboard(st, now)
	if d.Empty || d.Card == nil {
		t.Fatalf("expected populated dashboard: %+v", d)
	}
	if !d.Stale {
		t.Error("expected stale flag when a refresh failed after data loaded")
	}
	if d.Price != "$68,000.00" {
		t.Errorf("Price = %q", d.Price)
	}
	if len(d.Support) != 2 || len(d.Resistance) != 1 {
		t.Errorf("levels = %v / %v", d.Support, d.Resistance)
	}
	if len(d.Nearest) != 1 || d.Nearest[0].Label != "Nearest Support" {
		t.Errorf("Nearest = %+v", d.Nearest)
	}
	if d.LastUpdatedAgo != "2 minutes ago" {
		t.Errorf("LastUpdatedAgo = %q", d.LastUpdatedAgo)
	}
}

func TestNewSettingsForm(t *testing.T) {
	if f := NewSettingsForm(nil); !f.Loading {
		t.Error("expected loading form for nil settings")
	}

	f := NewSettingsForm(&models.UserSettings{
		TradeType:            models.TradeShort,
		RiskRewardRatio:      2.5,
		ConfidenceThreshold:  75,
		NotificationsEnabled: true,
	})
	if f.RiskReward != "2.5" || f.Confidence != "75" || !f.NotificationsEnabled {
		t.Errorf("unexpected form: %+v", f)
	}
	if f.RiskRewardMin != "1" || f.RiskRewardMax != "10" || f.RiskRewardStep != "0.5" {
		t.Errorf("unexpected ratio bounds: %+v", f)
	}
	selected := 0
	for _, o := range f.TradeTypes {
		if o.Selected {
			selected++
			if o.Value != "SHORT" {
				t.Errorf("selected %q, want SHORT", o.Value)
			}
		}
	}
	if selected != 1 {
		t.Errorf("selected options = %d, want 1", selected)
	}
}

func TestWriteText(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	st := controller.State{
		Analysis:   sampleSnapshot(models.SignalLong, 72),
		Settings:   &models.UserSettings{TradeType: models.TradeBoth, RiskRewardRatio: 2, ConfidenceThreshold: 70},
		Ready:      true,
		LastUpdate: now,
	}

	var buf bytes.Buffer
	if err := WriteText(&buf, st, now); err != nil {
		t.Fatalf("WriteText() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"LONG SIGNAL", "Confidence: 72%", "$68,000.00", Disclaimer, "Trade type", "Last updated"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Stale") {
		t.Errorf("fresh data reported stale:\n%s", out)
	}

	buf.Reset()
	st.Err = errors.New("timeout")
	if err := WriteText(&buf, st, now); err != nil {
		t.Fatalf("WriteText() error = %v", err)
	}
	if !strings.Contains(buf.String(), "showing last known data (timeout)") {
		t.Errorf("expected stale line, got:\n%s", buf.String())
	}

	buf.Reset()
	if err := WriteText(&buf, controller.State{}, now); err != nil {
		t.Fatalf("WriteText() error = %v", err)
	}
	if !strings.Contains(buf.String(), NoAnalysisMessage) {
		t.Errorf("expected empty message, got:\n%s", buf.String())
	}
}

func TestStatusLine(t *testing.T) {
	st := controller.State{Analysis: sampleSnapshot(models.SignalNeutral, 40), ConsecutiveFailures: 2}
	got := StatusLine(st)
	want := "BTC $68,000.00 | BULLISH | RSI 55.6 | No Signal | 2 failed refreshes"
	if got != want {
		t.Errorf("StatusLine() = %q, want %q", got, want)
	}
}
