package chart

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rewired-gh/btcview/internal/logger"
	"github.com/rewired-gh/btcview/internal/models"
)

var (
	// ErrNoContainer is returned by Mount without a container.
	ErrNoContainer = errors.New("chart container is required")
	// ErrNotActive is returned when the engine has no live surface.
	ErrNotActive = errors.New("chart surface is not active")
)

// State is the lifecycle stage of an Engine.
type State int

const (
	Uninitialized State = iota
	Active
	Destroyed
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Destroyed:
		return "destroyed"
	default:
		return "uninitialized"
	}
}

// HistorySource supplies real candles. Returning no candles selects the
// placeholder series.
type HistorySource interface {
	Candles(ctx context.Context) ([]models.Candle, error)
}

// HistoryFunc adapts a function to HistorySource.
type HistoryFunc func(ctx context.Context) ([]models.Candle, error)

func (f HistoryFunc) Candles(ctx context.Context) ([]models.Candle, error) { return f(ctx) }

// Options configures an Engine. Zero values select defaults.
type Options struct {
	History     HistorySource
	Placeholder PlaceholderConfig
	Rand        *rand.Rand
	Now         func() time.Time
}

// Engine owns one surface per mounted view and reconciles its overlays.
type Engine struct {
	mu sync.Mutex

	factory SurfaceFactory
	window  *Window
	history HistorySource
	phCfg   PlaceholderConfig
	rng     *rand.Rand
	now     func() time.Time

	state       State
	surface     Surface
	listener    ListenerID
	lines       []PriceLineHandle
	placeholder bool
	phSeries    []models.Candle
}

// NewEngine creates an uninitialized engine drawing on surfaces from factory
// and listening for resizes on window.
func NewEngine(factory SurfaceFactory, window *Window, opts Options) *Engine {
	if opts.Placeholder.Candles == 0 {
		opts.Placeholder = DefaultPlaceholderConfig()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		factory: factory,
		window:  window,
		history: opts.History,
		phCfg:   opts.Placeholder,
		rng:     opts.Rand,
		now:     opts.Now,
	}
}

// Mount creates the surface and installs the resize listener. A container
// with zero width is accepted; the first resize corrects it.
func (e *Engine) Mount(container Container) error {
	if container == nil {
		return ErrNoContainer
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case Active:
		return nil
	case Destroyed:
		return ErrNotActive
	}

	surface, err := e.factory(container)
	if err != nil {
		return fmt.Errorf("failed to create chart surface: %w", err)
	}
	e.surface = surface
	e.state = Active
	if e.window != nil {
		e.listener = e.window.OnResize(e.handleResize)
	}
	if container.Width() == 0 {
		logger.Debug("Chart container has zero width; waiting for first resize")
	}
	return nil
}

func (e *Engine) handleResize(width int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Active {
		return
	}
	e.surface.Resize(width)
}

// Reconcile makes the surface match snap by clearing every overlay and
// rebuilding series, markers and price lines. A nil snap leaves only the series.
func (e *Engine) Reconcile(ctx context.Context, snap *models.AnalysisSnapshot) error {
	candles, placeholder := e.series(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Active {
		return ErrNotActive
	}

	e.surface.SetSeries(candles)
	e.placeholder = placeholder

	at := e.now().Unix()
	if n := len(candles); n > 0 {
		at = candles[n-1].Time
	}
	e.surface.SetMarkers(signalMarkers(snap, at))

	for _, h := range e.lines {
		e.surface.RemovePriceLine(h)
	}
	e.lines = e.lines[:0]
	for _, spec := range priceLines(snap) {
		e.lines = append(e.lines, e.surface.AddPriceLine(spec))
	}

	e.surface.FitContent()
	return nil
}

// series returns history candles, or a placeholder series flagged true. The
// placeholder is generated once per engine and reused.
func (e *Engine) series(ctx context.Context) ([]models.Candle, bool) {
	if e.history != nil {
		candles, err := e.history.Candles(ctx)
		if err != nil {
			logger.Warn("Failed to load candle history, using placeholder: %v", err)
		} else if len(candles) > 0 {
			return candles, false
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.phSeries == nil {
		e.phSeries = Placeholder(e.phCfg, e.now(), e.rng)
	}
	return e.phSeries, true
}

// signalMarkers places the entry marker on the bar at time at.
func signalMarkers(snap *models.AnalysisSnapshot, at int64) []Marker {
	if snap == nil || !snap.Signal.Directional() {
		return nil
	}
	m := Marker{
		Time: at,
		Text: string(snap.Signal.Type) + " Entry",
		Size: 2,
	}
	if snap.Signal.Type == models.SignalLong {
		m.Position, m.Color, m.Shape = BelowBar, ColorGreen, ArrowUp
	} else {
		m.Position, m.Color, m.Shape = AboveBar, ColorRed, ArrowDown
	}
	return []Marker{m}
}

func priceLines(snap *models.AnalysisSnapshot) []PriceLineSpec {
	if snap == nil {
		return nil
	}
	sr := snap.SupportResistance
	specs := make([]PriceLineSpec, 0, 1+len(sr.Support)+len(sr.Resistance))
	specs = append(specs, PriceLineSpec{
		Price:     snap.CurrentPrice,
		Color:     ColorBlue,
		LineWidth: 2,
		LineStyle: LineDashed,
		Title:     "Current Price",
	})
	specs = appendLevels(specs, sr.Support, ColorGreen, "Support")
	specs = appendLevels(specs, sr.Resistance, ColorRed, "Resistance")
	return specs
}

// appendLevels titles only the first line of a group.
func appendLevels(specs []PriceLineSpec, levels []float64, color, title string) []PriceLineSpec {
	for i, level := range levels {
		spec := PriceLineSpec{
			Price:     level,
			Color:     color,
			LineWidth: 1,
			LineStyle: LineLargeDashed,
		}
		if i == 0 {
			spec.Title = title
		}
		specs = append(specs, spec)
	}
	return specs
}

// Destroy removes the resize listener and releases the surface. It is safe
// to call in any state and more than once.
func (e *Engine) Destroy() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == Destroyed {
		return
	}
	if e.state == Active {
		if e.window != nil {
			e.window.RemoveListener(e.listener)
		}
		e.surface.Destroy()
		e.surface = nil
		e.lines = nil
		e.phSeries = nil
	}
	e.state = Destroyed
}

// State returns the lifecycle stage.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Placeholder reports whether the current series is synthetic.
func (e *Engine) Placeholder() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.placeholder
}

// PriceLineCount returns the number of price lines the engine has created and
// not yet removed.
func (e *Engine) PriceLineCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.lines)
}
