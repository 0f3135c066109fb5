package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rewired-gh/btcview/internal/config"
	"github.com/rewired-gh/btcview/internal/controller"
	"github.com/rewired-gh/btcview/internal/dashboard"
	"github.com/rewired-gh/btcview/internal/models"
)

type fakeBackend struct {
	mu          sync.Mutex
	analysis    *models.AnalysisSnapshot
	settings    *models.UserSettings
	updateErr   error
	notifyErr   error
	patches     []models.SettingsPatch
	notifyCalls int
	analysisErr error
}

func (f *fakeBackend) FetchAnalysis(ctx context.Context) (*models.AnalysisSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.analysisErr != nil {
		return nil, f.analysisErr
	}
	return f.analysis, nil
}

func (f *fakeBackend) FetchSettings(ctx context.Context) (*models.UserSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := *f.settings
	return &s, nil
}

func (f *fakeBackend) UpdateSettings(ctx context.Context, patch models.SettingsPatch) (*models.UserSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patches = append(f.patches, patch)
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	s := *f.settings
	if patch.TradeType != nil {
		s.TradeType = *patch.TradeType
	}
	if patch.RiskRewardRatio != nil {
		s.RiskRewardRatio = *patch.RiskRewardRatio
	}
	if patch.ConfidenceThreshold != nil {
		s.ConfidenceThreshold = *patch.ConfidenceThreshold
	}
	if patch.NotificationsEnabled != nil {
		s.NotificationsEnabled = *patch.NotificationsEnabled
	}
	f.settings = &s
	out := s
	return &out, nil
}

func (f *fakeBackend) SendTestNotification(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifyCalls++
	return f.notifyErr
}

func longSnapshot() *models.AnalysisSnapshot {
	return &models.AnalysisSnapshot{
		CurrentPrice: 68000,
		Trend:        models.TrendBullish,
		RSI:          25,
		Signal: models.TradeSignal{
			Type:            models.SignalLong,
			Confidence:      72,
			EntryPrice:      68000,
			StopLoss:        66000,
			TakeProfit:      72000,
			RiskRewardRatio: 2,
		},
		SupportResistance: models.SupportResistance{
			Support:    []float64{67000, 66000},
			Resistance: []float64{70000},
		},
		Timestamp: "2026-03-01T00:00:00Z",
	}
}

func testServer(t *testing.T, fb *fakeBackend, load bool) (*Server, *dashboard.View) {
	t.Helper()
	if fb.settings == nil {
		fb.settings = &models.UserSettings{TradeType: models.TradeBoth, RiskRewardRatio: 2, ConfidenceThreshold: 70}
	}
	view := dashboard.New(fb, dashboard.Options{Controller: controller.Config{RefreshInterval: time.Hour}})
	t.Cleanup(view.Teardown)
	if load {
		if err := view.Controller().Initialize(context.Background()); err != nil {
			t.Fatalf("Initialize: %v", err)
		}
	}
	srv, err := New(view, config.ServerConfig{TestNotifyEvery: time.Hour})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv, view
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

func do(srv *Server, method, target string, body string, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv, _ := testServer(t, &fakeBackend{analysis: longSnapshot()}, false)
	rec := do(srv, http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if resp := decodeResponse(t, rec); !resp.Success {
		t.Errorf("expected success, got %+v", resp)
	}
}

func TestDashboardPage(t *testing.T) {
	t.Run("loading", func(t *testing.T) {
		srv, _ := testServer(t, &fakeBackend{analysis: longSnapshot()}, false)
		rec := do(srv, http.MethodGet, "/", "", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Loading analysis...") {
			t.Error("expected loading message")
		}
	})

	t.Run("loaded", func(t *testing.T) {
		srv, _ := testServer(t, &fakeBackend{analysis: longSnapshot()}, true)
		rec := do(srv, http.MethodGet, "/", "", "")
		body := rec.Body.String()
		for _, want := range []string{"LONG SIGNAL", "Confidence: 72%", "R:R 1:2", "Oversold", "$68,000.00", "Last updated"} {
			if !strings.Contains(body, want) {
				t.Errorf("dashboard missing %q", want)
			}
		}
		if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
			t.Errorf("Content-Type = %q", ct)
		}
	})

	t.Run("stale after failed refresh", func(t *testing.T) {
		fb := &fakeBackend{analysis: longSnapshot()}
		srv, view := testServer(t, fb, true)
		if strings.Contains(do(srv, http.MethodGet, "/panel", "", "").Body.String(), "showing last known data") {
			t.Fatal("fresh data marked stale")
		}

		fb.mu.Lock()
		fb.analysisErr = errors.New("backend down")
		fb.mu.Unlock()
		if err := view.Controller().Refresh(context.Background()); err == nil {
			t.Fatal("expected refresh error")
		}
		body := do(srv, http.MethodGet, "/panel", "", "").Body.String()
		for _, want := range []string{"Refresh failed, showing last known data", "backend down", "$68,000.00"} {
			if !strings.Contains(body, want) {
				t.Errorf("stale panel missing %q", want)
			}
		}
	})

	t.Run("neutral hides card", func(t *testing.T) {
		snap := longSnapshot()
		snap.Signal.Type = models.SignalNeutral
		snap.Signal.Confidence = 90
		srv, _ := testServer(t, &fakeBackend{analysis: snap}, true)
		body := do(srv, http.MethodGet, "/panel", "", "").Body.String()
		if strings.Contains(body, "SIGNAL") {
			t.Error("neutral signal rendered an actionable card")
		}
		if !strings.Contains(body, "No Signal") {
			t.Error("expected No Signal in compact panel")
		}
	})
}

func TestViewAPI(t *testing.T) {
	srv, _ := testServer(t, &fakeBackend{analysis: longSnapshot()}, true)
	rec := do(srv, http.MethodGet, "/api/view", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		Success bool         `json:"success"`
		Data    ViewResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || !resp.Data.Ready || resp.Data.Loading {
		t.Errorf("unexpected view: %+v", resp.Data)
	}
	if !resp.Data.SignalVisible || resp.Data.RSIState != "Oversold" {
		t.Errorf("signalVisible=%v rsiState=%q", resp.Data.SignalVisible, resp.Data.RSIState)
	}
	if resp.Data.Analysis == nil || resp.Data.Analysis.CurrentPrice != 68000 {
		t.Errorf("analysis = %+v", resp.Data.Analysis)
	}
}

func TestUpdateSettingsAPI(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		updateErr  error
		wantStatus int
		wantPatch  bool
	}{
		{"valid", `{"riskRewardRatio": 3}`, nil, http.StatusOK, true},
		{"out of bounds", `{"confidenceThreshold": 95}`, nil, http.StatusBadRequest, false},
		{"empty", `{}`, nil, http.StatusBadRequest, false},
		{"bad json", `{`, nil, http.StatusBadRequest, false},
		{"backend failure", `{"tradeType": "LONG"}`, errors.New("boom"), http.StatusBadGateway, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := &fakeBackend{analysis: longSnapshot(), updateErr: tt.updateErr}
			srv, view := testServer(t, fb, true)
			before := *view.Controller().State().Settings

			rec := do(srv, http.MethodPost, "/api/view/settings", tt.body, "application/json")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if got := len(fb.patches) > 0; got != tt.wantPatch {
				t.Errorf("backend called = %v, want %v", got, tt.wantPatch)
			}

			after := *view.Controller().State().Settings
			if tt.wantStatus == http.StatusOK {
				if after.RiskRewardRatio != 3 {
					t.Errorf("settings not replaced: %+v", after)
				}
			} else if after != before {
				t.Errorf("settings changed on failure: %+v -> %+v", before, after)
			}
		})
	}
}

func TestSettingsForm(t *testing.T) {
	fb := &fakeBackend{analysis: longSnapshot()}
	srv, view := testServer(t, fb, true)

	rec := do(srv, http.MethodGet, "/settings", "", "")
	if !strings.Contains(rec.Body.String(), "Send Test Telegram Notification") {
		t.Error("settings page missing test button")
	}

	form := url.Values{"confidence_threshold": {"75.8"}}
	rec = do(srv, http.MethodPost, "/settings", form.Encode(), "application/x-www-form-urlencoded")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Settings saved") {
		t.Error("expected saved notice")
	}
	if len(fb.patches) != 1 || fb.patches[0].ConfidenceThreshold == nil || *fb.patches[0].ConfidenceThreshold != 75 {
		t.Fatalf("unexpected patch: %+v", fb.patches)
	}
	if p := fb.patches[0]; p.TradeType != nil || p.RiskRewardRatio != nil || p.NotificationsEnabled != nil {
		t.Errorf("patch carried unsubmitted fields: %+v", p)
	}
	if got := view.Controller().State().Settings.ConfidenceThreshold; got != 75 {
		t.Errorf("cached threshold = %v, want 75", got)
	}

	for _, form := range []url.Values{
		{"risk_reward_ratio": {"11"}},
		{"risk_reward_ratio": {"NaN"}},
		{"risk_reward_ratio": {"+Inf"}},
		{"confidence_threshold": {"NaN"}},
	} {
		rec = do(srv, http.MethodPost, "/settings", form.Encode(), "application/x-www-form-urlencoded")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%v: status = %d, want 400", form, rec.Code)
		}
	}
	if len(fb.patches) != 1 {
		t.Error("invalid form value reached the backend")
	}
}

func TestSettingsPageLoading(t *testing.T) {
	srv, _ := testServer(t, &fakeBackend{analysis: longSnapshot()}, false)
	rec := do(srv, http.MethodGet, "/settings", "", "")
	if !strings.Contains(rec.Body.String(), "Loading settings...") {
		t.Error("expected loading settings message")
	}
}

func TestNotifyTest(t *testing.T) {
	fb := &fakeBackend{analysis: longSnapshot()}
	srv, _ := testServer(t, fb, true)

	rec := do(srv, http.MethodPost, "/api/view/notify-test", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if resp := decodeResponse(t, rec); !resp.Success {
		t.Errorf("expected success: %+v", resp)
	}

	rec = do(srv, http.MethodPost, "/api/view/notify-test", "", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", rec.Code)
	}
	if fb.notifyCalls != 1 {
		t.Errorf("backend calls = %d, want 1", fb.notifyCalls)
	}
}

func TestNotifyTestForm(t *testing.T) {
	fb := &fakeBackend{analysis: longSnapshot(), notifyErr: errors.New("telegram down")}
	srv, _ := testServer(t, fb, true)

	rec := do(srv, http.MethodPost, "/notify-test", "", "application/x-www-form-urlencoded")
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Failed to send test notification") {
		t.Error("expected failure acknowledgment")
	}
}

func TestWebSocketSession(t *testing.T) {
	fb := &fakeBackend{analysis: longSnapshot()}
	srv, view := testServer(t, fb, true)
	if err := view.Mount(); err != nil {
		t.Fatalf("Mount: %v", err)
	}

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?width=800"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	readFrame := func() dashboard.Frame {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if msg.Type != "frame" {
			t.Fatalf("message type = %q", msg.Type)
		}
		var f dashboard.Frame
		if err := json.Unmarshal(msg.Data, &f); err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		return f
	}

	first := readFrame()
	if first.Scene.Width != 800 || len(first.Scene.PriceLines) != 4 {
		t.Errorf("first frame width=%d lines=%d", first.Scene.Width, len(first.Scene.PriceLines))
	}
	if !first.Placeholder || first.PlaceholderLabel == "" {
		t.Error("expected placeholder flag and label without history")
	}

	if err := conn.WriteJSON(map[string]any{"type": "resize", "data": map[string]int{"width": 500}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		if f := readFrame(); f.Scene.Width == 500 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("resize never reflected in a frame")
		}
	}

	if n := view.SessionCount(); n != 1 {
		t.Errorf("SessionCount() = %d, want 1", n)
	}
	conn.Close()

	deadline = time.Now().Add(2 * time.Second)
	for view.SessionCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("session not closed after disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
