package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rewired-gh/btcview/internal/chart"
	"github.com/rewired-gh/btcview/internal/controller"
	"github.com/rewired-gh/btcview/internal/models"
)

type fakeBackend struct {
	mu       sync.Mutex
	analysis *models.AnalysisSnapshot
	gate     chan struct{}
	entered  chan struct{}
}

func (f *fakeBackend) setAnalysis(a *models.AnalysisSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.analysis = a
}

func (f *fakeBackend) FetchAnalysis(ctx context.Context) (*models.AnalysisSnapshot, error) {
	if f.entered != nil {
		select {
		case f.entered <- struct{}{}:
		default:
		}
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.analysis, nil
}

func (f *fakeBackend) FetchSettings(ctx context.Context) (*models.UserSettings, error) {
	return &models.UserSettings{TradeType: models.TradeBoth, RiskRewardRatio: 2, ConfidenceThreshold: 70}, nil
}

func (f *fakeBackend) UpdateSettings(ctx context.Context, patch models.SettingsPatch) (*models.UserSettings, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeBackend) SendTestNotification(ctx context.Context) error { return nil }

type fakeRecorder struct {
	mu    sync.Mutex
	snaps []*models.AnalysisSnapshot
}

func (r *fakeRecorder) RecordSample(ctx context.Context, snap *models.AnalysisSnapshot, _ time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, snap)
	return true, nil
}

func (r *fakeRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snaps)
}

func snapshot(support ...float64) *models.AnalysisSnapshot {
	return &models.AnalysisSnapshot{
		CurrentPrice: 68000,
		Trend:        models.TrendBullish,
		RSI:          55,
		Signal:       models.TradeSignal{Type: models.SignalLong, Confidence: 72},
		SupportResistance: models.SupportResistance{
			Support:    support,
			Resistance: []float64{70000},
		},
		Timestamp: "2026-03-01T00:00:00Z",
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestViewReconcilesSessions(t *testing.T) {
	fb := &fakeBackend{analysis: snapshot(67000, 66000)}
	rec := &fakeRecorder{}
	v := New(fb, Options{Controller: controller.Config{RefreshInterval: time.Hour}, Recorder: rec})
	t.Cleanup(v.Teardown)

	s, err := v.OpenSession(800)
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	if f := s.Frame(); !f.Placeholder || len(f.Scene.PriceLines) != 0 {
		t.Fatalf("session before first load: placeholder=%v lines=%d", f.Placeholder, len(f.Scene.PriceLines))
	}

	if err := v.Mount(); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	waitFor(t, "first reconcile", func() bool { return len(s.Frame().Scene.PriceLines) == 4 })
	waitFor(t, "history sample", func() bool { return rec.count() == 1 })

	select {
	case <-s.Changed():
	case <-time.After(time.Second):
		t.Fatal("session not notified of change")
	}

	fb.setAnalysis(snapshot(67500))
	for {
		err := v.Controller().Refresh(context.Background())
		if errors.Is(err, controller.ErrRefreshInFlight) {
			time.Sleep(time.Millisecond)
			continue
		}
		if err != nil {
			t.Fatalf("Refresh: %v", err)
		}
		break
	}
	waitFor(t, "second reconcile", func() bool { return len(s.Frame().Scene.PriceLines) == 3 })

	late, err := v.OpenSession(0)
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	if n := len(late.Frame().Scene.PriceLines); n != 3 {
		t.Errorf("late session lines = %d, want 3", n)
	}

	late.Resize(640)
	if w := late.Frame().Scene.Width; w != 640 {
		t.Errorf("width after resize = %d, want 640", w)
	}

	late.Close()
	if v.SessionCount() != 1 {
		t.Errorf("SessionCount() = %d, want 1", v.SessionCount())
	}
	if late.Listeners() != 0 || late.State() != chart.Destroyed {
		t.Errorf("closed session: listeners=%d state=%s", late.Listeners(), late.State())
	}
}

func TestTeardownDuringInFlightRefresh(t *testing.T) {
	fb := &fakeBackend{
		analysis: snapshot(67000),
		gate:     make(chan struct{}),
		entered:  make(chan struct{}, 1),
	}
	v := New(fb, Options{Controller: controller.Config{RefreshInterval: time.Hour}})

	sessions := make([]*Session, 0, 3)
	for i := 0; i < 3; i++ {
		s, err := v.OpenSession(800)
		if err != nil {
			t.Fatalf("OpenSession: %v", err)
		}
		sessions = append(sessions, s)
	}
	if err := v.Mount(); err != nil {
		t.Fatalf("Mount: %v", err)
	}

	select {
	case <-fb.entered:
	case <-time.After(time.Second):
		t.Fatal("initial refresh never started")
	}

	v.Teardown()

	if v.Controller().Running() {
		t.Error("refresh loop still running after teardown")
	}
	for i, s := range sessions {
		if s.Listeners() != 0 {
			t.Errorf("session %d has %d resize listeners", i, s.Listeners())
		}
		if s.State() != chart.Destroyed {
			t.Errorf("session %d state = %s, want destroyed", i, s.State())
		}
		select {
		case <-s.Done():
		default:
			t.Errorf("session %d not done", i)
		}
	}
	if st := v.Controller().State(); st.Analysis != nil {
		t.Error("in-flight response was applied after teardown")
	}

	if _, err := v.OpenSession(800); !errors.Is(err, ErrTornDown) {
		t.Errorf("OpenSession after teardown error = %v, want ErrTornDown", err)
	}
	if err := v.Mount(); !errors.Is(err, ErrTornDown) {
		t.Errorf("Mount after teardown error = %v, want ErrTornDown", err)
	}
	v.Teardown()
}
