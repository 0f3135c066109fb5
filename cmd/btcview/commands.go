package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/btcview/internal/controller"
	"github.com/rewired-gh/btcview/internal/models"
	"github.com/rewired-gh/btcview/internal/render"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Fetch the current analysis and print the dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		ctrl := controller.New(newBackend(cfg), controller.Config{RefreshInterval: cfg.Sync.RefreshInterval})
		defer ctrl.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout())
		defer cancel()
		err := ctrl.Initialize(ctx)

		st := ctrl.State()
		if asJSON {
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				Analysis *models.AnalysisSnapshot `json:"analysis"`
				Settings *models.UserSettings     `json:"settings"`
			}{st.Analysis, st.Settings})
		}
		if werr := render.WriteText(os.Stdout, st, time.Now()); werr != nil {
			return werr
		}
		return err
	},
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or update the backend's user settings",
	Long: `Without flags, prints the current settings. Each flag that is set is
sent as part of a partial update; unset flags are left unchanged.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		patch := patchFromFlags(cmd)
		client := newBackend(cfg)
		ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout())
		defer cancel()

		var (
			settings *models.UserSettings
			err      error
		)
		if patch.Empty() {
			settings, err = client.FetchSettings(ctx)
		} else {
			if err := patch.Validate(); err != nil {
				return err
			}
			settings, err = client.UpdateSettings(ctx, patch)
		}
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		for _, r := range render.SettingsRows(settings) {
			fmt.Fprintf(tw, "%s:\t%s\n", r.Label, r.Value)
		}
		return tw.Flush()
	},
}

func init() {
	snapshotCmd.Flags().Bool("json", false, "print the raw snapshot pair as JSON")

	settingsCmd.Flags().String("trade-type", "", "trade direction (LONG, SHORT, BOTH)")
	settingsCmd.Flags().Float64("risk-reward", 0, "risk/reward ratio (1-10, step 0.5)")
	settingsCmd.Flags().Int("confidence", 0, "minimum confidence threshold (50-90)")
	settingsCmd.Flags().Bool("notifications", false, "enable or disable notifications")
}

func patchFromFlags(cmd *cobra.Command) models.SettingsPatch {
	var patch models.SettingsPatch
	flags := cmd.Flags()
	if flags.Changed("trade-type") {
		v, _ := flags.GetString("trade-type")
		t := models.TradeType(v)
		patch.TradeType = &t
	}
	if flags.Changed("risk-reward") {
		v, _ := flags.GetFloat64("risk-reward")
		patch.RiskRewardRatio = &v
	}
	if flags.Changed("confidence") {
		v, _ := flags.GetInt("confidence")
		f := float64(v)
		patch.ConfidenceThreshold = &f
	}
	if flags.Changed("notifications") {
		v, _ := flags.GetBool("notifications")
		patch.NotificationsEnabled = &v
	}
	return patch
}

var notifyTestCmd = &cobra.Command{
	Use:   "notify-test",
	Short: "Ask the backend to send a test Telegram notification",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout())
		defer cancel()
		if err := newBackend(cfg).SendTestNotification(ctx); err != nil {
			fmt.Println(render.TestFailedMessage)
			return err
		}
		fmt.Println(render.TestSentMessage)
		return nil
	},
}

// commandTimeout bounds one-shot commands, leaving room for GET retries.
func commandTimeout() time.Duration {
	d := cfg.API.Timeout * time.Duration(cfg.API.MaxRetries+1)
	if d <= 0 {
		d = time.Minute
	}
	return d
}
