// Package dashboard composes the live view: one sync controller, the chart
// sessions mounted against it and optional price history recording.
package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rewired-gh/btcview/internal/chart"
	"github.com/rewired-gh/btcview/internal/controller"
	"github.com/rewired-gh/btcview/internal/logger"
	"github.com/rewired-gh/btcview/internal/models"
)

// ErrTornDown is returned when the view has been torn down.
var ErrTornDown = errors.New("view has been torn down")

// Recorder journals observed snapshots.
type Recorder interface {
	RecordSample(ctx context.Context, snap *models.AnalysisSnapshot, fallback time.Time) (bool, error)
}

// Options configures a View.
type Options struct {
	Controller  controller.Config
	Recorder    Recorder
	History     chart.HistorySource
	Placeholder chart.PlaceholderConfig
	ChartHeight int
}

// View is one mounted dashboard. It owns its controller and every chart
// session opened against it; Teardown releases all of them.
type View struct {
	ctrl     *controller.Controller
	recorder Recorder
	history  chart.HistorySource
	phCfg    chart.PlaceholderConfig
	height   int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	sessions map[string]*Session
	current  *models.AnalysisSnapshot
	mounted  bool
	torn     bool
}

// New creates an unmounted view over backend.
func New(backend controller.Backend, opts Options) *View {
	if opts.ChartHeight <= 0 {
		opts.ChartHeight = 400
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &View{
		ctrl:     controller.New(backend, opts.Controller),
		recorder: opts.Recorder,
		history:  opts.History,
		phCfg:    opts.Placeholder,
		height:   opts.ChartHeight,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*Session),
	}
}

// Controller returns the view's sync controller.
func (v *View) Controller() *controller.Controller {
	return v.ctrl
}

// Mount starts the refresh loop and the reconciliation of chart sessions.
func (v *View) Mount() error {
	v.mu.Lock()
	if v.torn {
		v.mu.Unlock()
		return ErrTornDown
	}
	if v.mounted {
		v.mu.Unlock()
		return nil
	}
	v.mounted = true
	v.mu.Unlock()

	states, unsubscribe := v.ctrl.Subscribe()
	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		defer unsubscribe()
		v.follow(states)
	}()

	v.ctrl.Start()
	logger.Info("Dashboard view mounted")
	return nil
}

// follow applies every new analysis snapshot to history and open sessions.
func (v *View) follow(states <-chan controller.State) {
	var last *models.AnalysisSnapshot
	for {
		select {
		case <-v.ctx.Done():
			return
		case st, ok := <-states:
			if !ok {
				return
			}
			if st.Analysis == nil || st.Analysis == last {
				continue
			}
			last = st.Analysis
			v.record(st.Analysis)
			v.apply(st.Analysis)
		}
	}
}

func (v *View) record(snap *models.AnalysisSnapshot) {
	if v.recorder == nil {
		return
	}
	ok, err := v.recorder.RecordSample(v.ctx, snap, time.Now())
	if err != nil {
		logger.Warn("Failed to record price sample: %v", err)
		return
	}
	if ok {
		logger.Debug("Recorded price sample %.2f at %s", snap.CurrentPrice, snap.Timestamp)
	}
}

func (v *View) apply(snap *models.AnalysisSnapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.torn {
		return
	}
	v.current = snap
	for id, s := range v.sessions {
		if err := s.engine.Reconcile(v.ctx, snap); err != nil {
			logger.Warn("Failed to reconcile chart session %s: %v", id, err)
			continue
		}
		s.notify()
	}
}

// OpenSession mounts a new chart of the given width and draws the latest
// analysis on it.
func (v *View) OpenSession(width int) (*Session, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.torn {
		return nil, ErrTornDown
	}

	s := &Session{
		ID:      uuid.NewString(),
		view:    v,
		window:  chart.NewWindow(),
		changed: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	factory := chart.SceneFactory(func(surface *chart.SceneSurface) { s.surface = surface })
	s.engine = chart.NewEngine(factory, s.window, chart.Options{
		History:     v.history,
		Placeholder: v.phCfg,
	})
	if err := s.engine.Mount(chart.Box{W: width, H: v.height}); err != nil {
		return nil, err
	}
	snap := v.current
	if snap == nil {
		snap = v.ctrl.State().Analysis
	}
	if err := s.engine.Reconcile(v.ctx, snap); err != nil {
		s.engine.Destroy()
		return nil, err
	}
	v.sessions[s.ID] = s
	logger.Debug("Opened chart session %s (width %d)", s.ID, width)
	return s, nil
}

func (v *View) closeSession(id string) {
	v.mu.Lock()
	s, ok := v.sessions[id]
	delete(v.sessions, id)
	v.mu.Unlock()
	if ok {
		s.destroy()
		logger.Debug("Closed chart session %s", id)
	}
}

// SessionCount returns the number of open chart sessions.
func (v *View) SessionCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.sessions)
}

// Teardown stops the refresh loop, discards in-flight responses and destroys
// every chart session. It is safe to call more than once.
func (v *View) Teardown() {
	v.mu.Lock()
	if v.torn {
		v.mu.Unlock()
		return
	}
	v.torn = true
	sessions := v.sessions
	v.sessions = make(map[string]*Session)
	v.mu.Unlock()

	v.cancel()
	v.ctrl.Close()
	v.wg.Wait()

	for _, s := range sessions {
		s.destroy()
	}
	logger.Info("Dashboard view torn down (%d chart sessions closed)", len(sessions))
}

// Session is one mounted chart. Resize events come in through Resize and the
// drawable scene goes out through Frame.
type Session struct {
	ID string

	view    *View
	window  *chart.Window
	engine  *chart.Engine
	surface *chart.SceneSurface

	changed chan struct{}
	done    chan struct{}
	once    sync.Once
}

// Frame is what the browser draws for a session.
type Frame struct {
	Session          string      `json:"session"`
	Scene            chart.Scene `json:"scene"`
	Placeholder      bool        `json:"placeholder"`
	PlaceholderLabel string      `json:"placeholderLabel,omitempty"`
}

// Frame returns the current drawable state.
func (s *Session) Frame() Frame {
	f := Frame{
		Session:     s.ID,
		Scene:       s.surface.Scene(),
		Placeholder: s.engine.Placeholder(),
	}
	if f.Placeholder {
		f.PlaceholderLabel = chart.PlaceholderLabel
	}
	return f
}

// Resize reports a new viewport width.
func (s *Session) Resize(width int) {
	s.window.Resize(width)
	s.notify()
}

// Changed signals that Frame has new content.
func (s *Session) Changed() <-chan struct{} {
	return s.changed
}

// Done is closed when the session is destroyed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close unmounts the chart.
func (s *Session) Close() {
	s.view.closeSession(s.ID)
}

// Listeners returns the number of resize listeners still installed.
func (s *Session) Listeners() int {
	return s.window.ListenerCount()
}

// State returns the chart lifecycle stage.
func (s *Session) State() chart.State {
	return s.engine.State()
}

func (s *Session) notify() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

func (s *Session) destroy() {
	s.once.Do(func() {
		s.engine.Destroy()
		close(s.done)
	})
}
