package models

import (
	"errors"
	"fmt"
)

// TradeType selects which signal directions the backend notifies about.
type TradeType string

const (
	TradeLong  TradeType = "LONG"
	TradeShort TradeType = "SHORT"
	TradeBoth  TradeType = "BOTH"
)

// Valid reports whether t is a known trade type.
func (t TradeType) Valid() bool {
	switch t {
	case TradeLong, TradeShort, TradeBoth:
		return true
	}
	return false
}

// Client-side bounds for the settings form.
const (
	MinRiskRewardRatio     = 1.0
	MaxRiskRewardRatio     = 10.0
	RiskRewardStep         = 0.5
	MinConfidenceThreshold = 50
	MaxConfidenceThreshold = 90
)

// ErrInvalidSettings is returned for settings patches outside the client bounds.
var ErrInvalidSettings = errors.New("invalid settings")

// UserSettings is the backend-authoritative settings record.
type UserSettings struct {
	TradeType            TradeType `json:"tradeType"`
	RiskRewardRatio      float64   `json:"riskRewardRatio"`
	ConfidenceThreshold  float64   `json:"confidenceThreshold"`
	NotificationsEnabled bool      `json:"notificationsEnabled"`
}

// Validate checks the shape of settings received from the backend.
// Numeric bounds are not enforced here; the backend may clamp them.
func (s *UserSettings) Validate() error {
	if !s.TradeType.Valid() {
		return fmt.Errorf("unknown trade type %q", s.TradeType)
	}
	return nil
}

// SettingsPatch is a partial settings update. Nil fields are omitted from
// the request body.
type SettingsPatch struct {
	TradeType            *TradeType `json:"tradeType,omitempty"`
	RiskRewardRatio      *float64   `json:"riskRewardRatio,omitempty"`
	ConfidenceThreshold  *float64   `json:"confidenceThreshold,omitempty"`
	NotificationsEnabled *bool      `json:"notificationsEnabled,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p SettingsPatch) Empty() bool {
	return p.TradeType == nil && p.RiskRewardRatio == nil &&
		p.ConfidenceThreshold == nil && p.NotificationsEnabled == nil
}

// Validate applies the client-side form bounds.
func (p SettingsPatch) Validate() error {
	if p.Empty() {
		return fmt.Errorf("%w: empty update", ErrInvalidSettings)
	}
	if p.TradeType != nil && !p.TradeType.Valid() {
		return fmt.Errorf("%w: unknown trade type %q", ErrInvalidSettings, *p.TradeType)
	}
	if r := p.RiskRewardRatio; r != nil && !within(*r, MinRiskRewardRatio, MaxRiskRewardRatio) {
		return fmt.Errorf("%w: risk reward ratio must be between %g and %g", ErrInvalidSettings, MinRiskRewardRatio, MaxRiskRewardRatio)
	}
	if c := p.ConfidenceThreshold; c != nil && !within(*c, MinConfidenceThreshold, MaxConfidenceThreshold) {
		return fmt.Errorf("%w: confidence threshold must be between %d and %d", ErrInvalidSettings, MinConfidenceThreshold, MaxConfidenceThreshold)
	}
	return nil
}

// within is false for NaN.
func within(v, lo, hi float64) bool {
	return lo <= v && v <= hi
}
