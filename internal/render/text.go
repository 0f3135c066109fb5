package render

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rewired-gh/btcview/internal/controller"
)

// WriteText writes a plain-text report of st to w.
func WriteText(w io.Writer, st controller.State, now time.Time) error {
	d := NewDashboard(st, now)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, d.Title)
	switch {
	case d.Loading:
		fmt.Fprintln(tw, LoadingMessage)
		return tw.Flush()
	case d.Empty:
		fmt.Fprintln(tw, NoAnalysisMessage)
		if d.Error != "" {
			fmt.Fprintf(tw, "Error:\t%s\n", d.Error)
		}
		return tw.Flush()
	}

	fmt.Fprintf(tw, "Price:\t%s\t%s %s\n", d.Price, d.Trend.Arrow, d.Trend.Label)
	fmt.Fprintf(tw, "RSI:\t%s\t%s\n", d.RSI.Value, d.RSI.State)
	for _, r := range d.MovingAverages {
		fmt.Fprintf(tw, "%s:\t%s\n", r.Label, r.Value)
	}
	fmt.Fprintf(tw, "Support:\t%s\n", joinOrDash(d.Support))
	fmt.Fprintf(tw, "Resistance:\t%s\n", joinOrDash(d.Resistance))
	for _, r := range d.Nearest {
		fmt.Fprintf(tw, "%s:\t%s\n", r.Label, r.Value)
	}

	fmt.Fprintf(tw, "Signal:\t%s\n", d.Signal.Label)
	if c := d.Card; c != nil {
		fmt.Fprintf(tw, "\t%s %s\t%s\n", c.Arrow, c.Title, c.Confidence)
		fmt.Fprintf(tw, "\tEntry\t%s\n", c.Entry)
		fmt.Fprintf(tw, "\tStop Loss\t%s\n", c.StopLoss)
		fmt.Fprintf(tw, "\tTake Profit\t%s\n", c.TakeProfit)
		fmt.Fprintf(tw, "\tRisk/Reward\t%s\n", c.RiskReward)
		fmt.Fprintf(tw, "\tProfit/Loss\t%s\n", c.ProfitLoss)
		if c.Reason != "" {
			fmt.Fprintf(tw, "\tReason\t%s\n", c.Reason)
		}
		fmt.Fprintf(tw, "\t%s\n", c.Disclaimer)
	}

	if rows := SettingsRows(st.Settings); len(rows) > 0 {
		fmt.Fprintln(tw, "Settings:")
		for _, r := range rows {
			fmt.Fprintf(tw, "\t%s\t%s\n", r.Label, r.Value)
		}
	}
	if d.LastUpdated != "" {
		fmt.Fprintf(tw, "Last updated:\t%s (%s)\n", d.LastUpdated, d.LastUpdatedAgo)
	}
	if d.Stale {
		fmt.Fprintf(tw, "Stale:\trefresh failed, showing last known data (%s)\n", d.Error)
	}
	return tw.Flush()
}

// StatusLine is a one-line summary of st for operator messages.
func StatusLine(st controller.State) string {
	switch {
	case st.Loading:
		return LoadingMessage
	case st.Analysis == nil:
		return NoAnalysisMessage
	}
	a := st.Analysis
	parts := []string{
		"BTC " + Money(a.CurrentPrice),
		string(a.Trend),
		"RSI " + NewRSIPanel(a.RSI).Value,
		NewSignalSummary(a.Signal).Label,
	}
	if st.ConsecutiveFailures > 0 {
		parts = append(parts, fmt.Sprintf("%d failed refreshes", st.ConsecutiveFailures))
	}
	return strings.Join(parts, " | ")
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
