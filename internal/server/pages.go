package server

import (
	"bytes"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/rewired-gh/btcview/internal/logger"
	"github.com/rewired-gh/btcview/internal/models"
	"github.com/rewired-gh/btcview/internal/render"
)

type dashboardPage struct {
	render.Dashboard
	LoadingMessage    string
	NoAnalysisMessage string
}

type settingsPage struct {
	Form                   render.SettingsForm
	LoadingSettingsMessage string
	TestButtonLabel        string
}

type ackPage struct {
	OK      bool
	Message string
}

func (s *Server) dashboardPage() dashboardPage {
	return dashboardPage{
		Dashboard:         render.NewDashboard(s.view.Controller().State(), s.now()),
		LoadingMessage:    render.LoadingMessage,
		NoAnalysisMessage: render.NoAnalysisMessage,
	}
}

func (s *Server) settingsPage(form render.SettingsForm) settingsPage {
	return settingsPage{
		Form:                   form,
		LoadingSettingsMessage: render.LoadingSettingsMessage,
		TestButtonLabel:        render.TestButtonLabel,
	}
}

// renderHTML executes a template into a buffer so a failure never leaves a
// half-written page.
func (s *Server) renderHTML(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		logger.Error("Failed to render %s: %v", name, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    map[string]any{"status": "ok", "running": s.view.Controller().Running()},
	})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	s.renderHTML(w, http.StatusOK, "dashboard", s.dashboardPage())
}

func (s *Server) handlePanel(w http.ResponseWriter, r *http.Request) {
	s.renderHTML(w, http.StatusOK, "panel", s.dashboardPage())
}

func (s *Server) handleSettingsPage(w http.ResponseWriter, r *http.Request) {
	form := render.NewSettingsForm(s.view.Controller().State().Settings)
	s.renderHTML(w, http.StatusOK, "settings", s.settingsPage(form))
}

// handleSettingsForm applies the single field a settings form submitted.
func (s *Server) handleSettingsForm(w http.ResponseWriter, r *http.Request) {
	patch, err := patchFromForm(r)
	status := http.StatusOK
	var updated *models.UserSettings
	if err == nil {
		updated, err = s.view.Controller().ApplySettingsUpdate(r.Context(), patch)
	}

	settings := updated
	if settings == nil {
		settings = s.view.Controller().State().Settings
	}
	form := render.NewSettingsForm(settings)
	if err != nil {
		status = updateErrorStatus(err)
		form.Error = "Failed to update settings: " + err.Error()
	} else {
		form.Notice = "Settings saved"
	}
	s.renderHTML(w, status, "settings", s.settingsPage(form))
}

func (s *Server) handleNotifyTestForm(w http.ResponseWriter, r *http.Request) {
	page := ackPage{OK: true, Message: render.TestSentMessage}
	status := http.StatusOK
	if err := s.sendTestNotification(r.Context()); err != nil {
		page = ackPage{Message: render.TestFailedMessage}
		status = notifyErrorStatus(err)
	}
	s.renderHTML(w, status, "ack", page)
}

// patchFromForm reads one settings field from a form submission. Numeric
// fields parse the way the form inputs report them; confidence is truncated
// to a whole number.
func patchFromForm(r *http.Request) (models.SettingsPatch, error) {
	var patch models.SettingsPatch
	if err := r.ParseForm(); err != nil {
		return patch, err
	}

	if v := r.PostForm.Get("trade_type"); v != "" {
		t := models.TradeType(v)
		patch.TradeType = &t
	}
	if v := r.PostForm.Get("risk_reward_ratio"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return patch, errors.Join(models.ErrInvalidSettings, err)
		}
		patch.RiskRewardRatio = &f
	}
	if v := r.PostForm.Get("confidence_threshold"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return patch, errors.Join(models.ErrInvalidSettings, err)
		}
		f = math.Trunc(f)
		patch.ConfidenceThreshold = &f
	}
	if v := r.PostForm.Get("notifications_enabled"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return patch, errors.Join(models.ErrInvalidSettings, err)
		}
		patch.NotificationsEnabled = &b
	}
	if patch.Empty() {
		return patch, errors.Join(models.ErrInvalidSettings, errors.New("no settings field submitted"))
	}
	return patch, nil
}
