package render

import (
	"github.com/rewired-gh/btcview/internal/models"
)

// Settings form copy.
const (
	LoadingSettingsMessage = "Loading settings..."
	TestSentMessage        = "Test notification sent!"
	TestFailedMessage      = "Failed to send test notification"
	TestButtonLabel        = "Send Test Telegram Notification"
)

// Option is one choice of a select input.
type Option struct {
	Value    string
	Label    string
	Selected bool
}

// SettingsForm is the presentation model of the settings panel.
type SettingsForm struct {
	Loading bool

	TradeTypes     []Option
	RiskReward     string
	RiskRewardMin  string
	RiskRewardMax  string
	RiskRewardStep string

	Confidence    string
	ConfidenceMin string
	ConfidenceMax string

	NotificationsEnabled bool

	Notice string
	Error  string
}

var tradeTypeLabels = []Option{
	{Value: string(models.TradeBoth), Label: "Both (Long & Short)"},
	{Value: string(models.TradeLong), Label: "Long Only"},
	{Value: string(models.TradeShort), Label: "Short Only"},
}

// NewSettingsForm builds the form for s. A nil s renders the loading state.
func NewSettingsForm(s *models.UserSettings) SettingsForm {
	f := SettingsForm{
		RiskRewardMin:  Number(models.MinRiskRewardRatio),
		RiskRewardMax:  Number(models.MaxRiskRewardRatio),
		RiskRewardStep: Number(models.RiskRewardStep),
		ConfidenceMin:  Number(models.MinConfidenceThreshold),
		ConfidenceMax:  Number(models.MaxConfidenceThreshold),
	}
	if s == nil {
		f.Loading = true
		return f
	}
	f.TradeTypes = make([]Option, len(tradeTypeLabels))
	for i, o := range tradeTypeLabels {
		o.Selected = o.Value == string(s.TradeType)
		f.TradeTypes[i] = o
	}
	f.RiskReward = Number(s.RiskRewardRatio)
	f.Confidence = Number(s.ConfidenceThreshold)
	f.NotificationsEnabled = s.NotificationsEnabled
	return f
}

// SettingsRows summarizes s for text output.
func SettingsRows(s *models.UserSettings) []Row {
	if s == nil {
		return nil
	}
	notify := "off"
	if s.NotificationsEnabled {
		notify = "on"
	}
	return []Row{
		{Label: "Trade type", Value: string(s.TradeType)},
		{Label: "Risk/reward", Value: RiskReward(s.RiskRewardRatio)},
		{Label: "Min confidence", Value: Whole(s.ConfidenceThreshold) + "%"},
		{Label: "Notifications", Value: notify},
	}
}
