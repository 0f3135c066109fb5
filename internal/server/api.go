package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rewired-gh/btcview/internal/controller"
	"github.com/rewired-gh/btcview/internal/models"
	"github.com/rewired-gh/btcview/internal/render"
)

// ViewResponse is the data of GET /api/view.
type ViewResponse struct {
	Analysis      *models.AnalysisSnapshot `json:"analysis"`
	Settings      *models.UserSettings     `json:"settings"`
	Loading       bool                     `json:"loading"`
	Ready         bool                     `json:"ready"`
	LastUpdate    *time.Time               `json:"lastUpdate,omitempty"`
	Error         string                   `json:"error,omitempty"`
	SignalVisible bool                     `json:"signalVisible"`
	RSIState      string                   `json:"rsiState,omitempty"`
	Dashboard     render.Dashboard         `json:"dashboard"`
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	st := s.view.Controller().State()
	resp := ViewResponse{
		Analysis:      st.Analysis,
		Settings:      st.Settings,
		Loading:       st.Loading,
		Ready:         st.Ready,
		SignalVisible: render.SignalVisible(st.Analysis),
		Dashboard:     render.NewDashboard(st, s.now()),
	}
	if !st.LastUpdate.IsZero() {
		t := st.LastUpdate
		resp.LastUpdate = &t
	}
	if st.Err != nil {
		resp.Error = st.Err.Error()
	}
	if st.Analysis != nil {
		resp.RSIState = render.RSIState(st.Analysis.RSI)
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: resp})
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch models.SettingsPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	updated, err := s.view.Controller().ApplySettingsUpdate(r.Context(), patch)
	if err != nil {
		writeError(w, updateErrorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: updated})
}

func (s *Server) handleNotifyTest(w http.ResponseWriter, r *http.Request) {
	if err := s.sendTestNotification(r.Context()); err != nil {
		writeError(w, notifyErrorStatus(err), render.TestFailedMessage+": "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: map[string]string{"message": render.TestSentMessage}})
}

func updateErrorStatus(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidSettings):
		return http.StatusBadRequest
	case errors.Is(err, controller.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func notifyErrorStatus(err error) int {
	switch {
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, controller.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}
