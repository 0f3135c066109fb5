// Package controller keeps the canonical {analysis, settings} snapshot pair in
// sync with the backend and publishes every replacement to subscribers.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rewired-gh/btcview/internal/logger"
	"github.com/rewired-gh/btcview/internal/models"
)

// DefaultRefreshInterval is the polling cadence of the refresh loop.
const DefaultRefreshInterval = 5 * time.Minute

var (
	// ErrRefreshInFlight is returned when a refresh is suppressed by one already running.
	ErrRefreshInFlight = errors.New("refresh already in flight")
	// ErrClosed is returned by operations on a closed controller.
	ErrClosed = errors.New("controller closed")
)

// Backend is the analysis service the controller reads from and writes to.
type Backend interface {
	FetchAnalysis(ctx context.Context) (*models.AnalysisSnapshot, error)
	FetchSettings(ctx context.Context) (*models.UserSettings, error)
	UpdateSettings(ctx context.Context, patch models.SettingsPatch) (*models.UserSettings, error)
	SendTestNotification(ctx context.Context) error
}

// State is an immutable view of the controller. Analysis and Settings are
// replaced, never mutated; nil means no data has been loaded yet.
type State struct {
	Analysis *models.AnalysisSnapshot
	Settings *models.UserSettings

	// Loading is true until the first load attempt has completed.
	Loading bool
	// Ready is true once a complete pair has been loaded.
	Ready bool
	// LastUpdate is when the pair was last replaced by a refresh.
	LastUpdate time.Time

	// Err is the failure of the latest refresh, nil after a success.
	Err                 error
	ConsecutiveFailures int
}

// Config controls the refresh loop.
type Config struct {
	RefreshInterval time.Duration
}

// Controller owns the snapshot pair and the refresh loop.
type Controller struct {
	backend Backend
	config  Config
	now     func() time.Time

	mu     sync.Mutex
	state  State
	closed bool
	subs   map[int]chan State
	nextID int

	inFlight atomic.Bool

	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	done    chan struct{}
}

// New creates a controller. Nothing is fetched until Initialize or Start.
func New(backend Backend, config Config) *Controller {
	if config.RefreshInterval <= 0 {
		config.RefreshInterval = DefaultRefreshInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		backend: backend,
		config:  config,
		now:     time.Now,
		state:   State{Loading: true},
		subs:    make(map[int]chan State),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe returns a channel that receives the current state and every
// replacement after it. Slow subscribers only see the latest state.
// The returned func unsubscribes and closes the channel.
func (c *Controller) Subscribe() (<-chan State, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan State, 1)
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	id := c.nextID
	c.nextID++
	c.subs[id] = ch
	ch <- c.state

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if _, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(ch)
			}
		})
	}
}

// Initialize performs the first load. A failure is recorded in State and
// returned, but prior data is kept and the controller stays usable.
func (c *Controller) Initialize(ctx context.Context) error {
	err := c.Refresh(ctx)
	if errors.Is(err, ErrRefreshInFlight) {
		return nil
	}
	return err
}

// Refresh fetches analysis and settings concurrently and replaces both on
// success. Failures keep the last known-good pair.
func (c *Controller) Refresh(ctx context.Context) error {
	if !c.inFlight.CompareAndSwap(false, true) {
		return ErrRefreshInFlight
	}
	defer c.inFlight.Store(false)

	ctx, stop := c.bind(ctx)
	defer stop()

	var (
		analysis *models.AnalysisSnapshot
		settings *models.UserSettings
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a, err := c.backend.FetchAnalysis(gctx)
		if err != nil {
			return err
		}
		analysis = a
		return nil
	})
	g.Go(func() error {
		s, err := c.backend.FetchSettings(gctx)
		if err != nil {
			return err
		}
		settings = s
		return nil
	})
	fetchErr := g.Wait()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		logger.Debug("Discarding refresh result after close")
		return ErrClosed
	}
	next := c.state
	next.Loading = false
	if fetchErr != nil {
		next.Err = fetchErr
		next.ConsecutiveFailures++
	} else {
		next.Analysis = analysis
		next.Settings = settings
		next.Ready = true
		next.LastUpdate = c.now()
		next.Err = nil
		next.ConsecutiveFailures = 0
	}
	c.publishLocked(next)
	c.mu.Unlock()

	if fetchErr != nil {
		logger.Error("Failed to load data: %v", fetchErr)
		return fmt.Errorf("refresh failed: %w", fetchErr)
	}
	logger.Info("Refreshed analysis (price: %.2f, trend: %s, signal: %s)",
		analysis.CurrentPrice, analysis.Trend, analysis.Signal.Type)
	return nil
}

// ApplySettingsUpdate sends patch to the backend and replaces the settings
// snapshot with the backend's response. On failure the snapshot is untouched.
func (c *Controller) ApplySettingsUpdate(ctx context.Context, patch models.SettingsPatch) (*models.UserSettings, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	ctx, stop := c.bind(ctx)
	defer stop()

	updated, err := c.backend.UpdateSettings(ctx, patch)
	if err != nil {
		logger.Error("Failed to update settings: %v", err)
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	next := c.state
	next.Settings = updated
	c.publishLocked(next)
	logger.Info("Settings updated (trade type: %s, r:r %.1f, threshold %.0f, notifications %v)",
		updated.TradeType, updated.RiskRewardRatio, updated.ConfidenceThreshold, updated.NotificationsEnabled)
	return updated, nil
}

// SendTestNotification asks the backend for a test notification. The result
// is returned to the caller only.
func (c *Controller) SendTestNotification(ctx context.Context) error {
	ctx, stop := c.bind(ctx)
	defer stop()

	if err := c.backend.SendTestNotification(ctx); err != nil {
		logger.Warn("Test notification failed: %v", err)
		return err
	}
	logger.Info("Test notification sent")
	return nil
}

// Start runs Initialize and then refreshes on every tick until Close.
// It returns immediately.
func (c *Controller) Start() {
	c.mu.Lock()
	if c.started || c.closed {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	go c.run()
}

func (c *Controller) run() {
	defer close(c.done)

	logger.Debug("Running initial load")
	_ = c.Initialize(c.ctx)

	ticker := time.NewTicker(c.config.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			logger.Debug("Refresh loop stopped")
			return
		case <-ticker.C:
			logger.Debug("Starting scheduled refresh")
			if err := c.Refresh(c.ctx); errors.Is(err, ErrRefreshInFlight) {
				logger.Debug("Scheduled refresh skipped: previous refresh still running")
			}
		}
	}
}

// Running reports whether the refresh loop is active.
func (c *Controller) Running() bool {
	c.mu.Lock()
	started := c.started
	c.mu.Unlock()
	if !started {
		return false
	}
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// Close stops the refresh loop, cancels in-flight requests and closes all
// subscriptions. Responses that arrive afterwards are discarded.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	started := c.started
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
	c.mu.Unlock()

	c.cancel()
	if started {
		<-c.done
	}
}

// bind derives a context that is also cancelled when the controller closes.
func (c *Controller) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// publishLocked replaces the state and notifies subscribers. c.mu must be held.
func (c *Controller) publishLocked(next State) {
	c.state = next
	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		ch <- next
	}
}
