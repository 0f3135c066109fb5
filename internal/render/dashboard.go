package render

import (
	"time"

	"github.com/dustin/go-humanize"

	"github.com/rewired-gh/btcview/internal/chart"
	"github.com/rewired-gh/btcview/internal/controller"
	"github.com/rewired-gh/btcview/internal/models"
)

// Fixed dashboard copy.
const (
	NoAnalysisMessage = "No analysis data available"
	LoadingMessage    = "Loading analysis..."
	Title             = "BTC Technical Analysis"
)

// Row is a labelled value.
type Row struct {
	Label string
	Value string
}

// LegendItem describes one overlay color on the chart.
type LegendItem struct {
	Label string
	Color string
}

// Legend lists the chart overlays in display order.
var Legend = []LegendItem{
	{Label: "Current Price", Color: chart.ColorBlue},
	{Label: "Support", Color: chart.ColorGreen},
	{Label: "Resistance", Color: chart.ColorRed},
}

// Dashboard is the presentation model of the live view.
type Dashboard struct {
	Title   string
	Loading bool
	Empty   bool
	Error   string
	Stale   bool

	Price          string
	Trend          TrendBadge
	RSI            RSIPanel
	Signal         SignalSummary
	Card           *SignalCard
	MovingAverages []Row
	Support        []string
	Resistance     []string
	Nearest        []Row

	LastUpdated    string
	LastUpdatedAgo string

	Legend           []LegendItem
	PlaceholderLabel string
}

// NewDashboard builds the dashboard for st. now drives the relative
// "updated" text.
func NewDashboard(st controller.State, now time.Time) Dashboard {
	d := Dashboard{
		Title:            Title,
		Loading:          st.Loading,
		Legend:           Legend,
		PlaceholderLabel: chart.PlaceholderLabel,
	}
	if st.Err != nil {
		d.Error = st.Err.Error()
		d.Stale = st.Analysis != nil
	}
	if !st.LastUpdate.IsZero() {
		d.LastUpdated = st.LastUpdate.Format("15:04:05")
		d.LastUpdatedAgo = humanize.RelTime(st.LastUpdate, now, "ago", "from now")
	}
	if st.Loading {
		return d
	}
	a := st.Analysis
	if a == nil {
		d.Empty = true
		return d
	}

	d.Price = Money(a.CurrentPrice)
	d.Trend = NewTrendBadge(a.Trend)
	d.RSI = NewRSIPanel(a.RSI)
	d.Signal = NewSignalSummary(a.Signal)
	d.Card = NewSignalCard(a)
	d.MovingAverages = movingAverageRows(a.MovingAverages)
	d.Support = levels(a.SupportResistance.Support)
	d.Resistance = levels(a.SupportResistance.Resistance)
	d.Nearest = nearestRows(a.SupportResistance)
	return d
}

func movingAverageRows(ma models.MovingAverages) []Row {
	return []Row{
		{Label: "SMA 20", Value: Amount(ma.SMA20)},
		{Label: "SMA 50", Value: Amount(ma.SMA50)},
		{Label: "EMA 12", Value: Amount(ma.EMA12)},
		{Label: "EMA 26", Value: Amount(ma.EMA26)},
	}
}

func levels(prices []float64) []string {
	out := make([]string, 0, len(prices))
	for _, p := range prices {
		out = append(out, Amount(p))
	}
	return out
}

func nearestRows(sr models.SupportResistance) []Row {
	var rows []Row
	if sr.NearestSupport != nil {
		rows = append(rows, Row{Label: "Nearest Support", Value: Amount(*sr.NearestSupport)})
	}
	if sr.NearestResistance != nil {
		rows = append(rows, Row{Label: "Nearest Resistance", Value: Amount(*sr.NearestResistance)})
	}
	return rows
}
