package chart

import (
	"sort"
	"sync"

	"github.com/rewired-gh/btcview/internal/models"
)

// Scene is the drawable state of a surface, sent to the browser for the
// charting library to render. Revision changes on every directive; Overlays
// changes only when the series, markers or price lines do.
type Scene struct {
	Width      int             `json:"width"`
	Height     int             `json:"height"`
	Series     []models.Candle `json:"series"`
	Markers    []Marker        `json:"markers"`
	PriceLines []PriceLineSpec `json:"priceLines"`
	Fit        bool            `json:"fit"`
	Revision   int             `json:"revision"`
	Overlays   int             `json:"overlays"`
	Destroyed  bool            `json:"destroyed,omitempty"`
}

// SceneSurface is a Surface that records directives into a Scene.
type SceneSurface struct {
	mu        sync.Mutex
	width     int
	height    int
	series    []models.Candle
	markers   []Marker
	lines     map[PriceLineHandle]PriceLineSpec
	next      PriceLineHandle
	fit       bool
	revision  int
	overlays  int
	destroyed bool
}

// NewSceneSurface creates a surface sized to container.
func NewSceneSurface(container Container) *SceneSurface {
	return &SceneSurface{
		width:  container.Width(),
		height: container.Height(),
		lines:  make(map[PriceLineHandle]PriceLineSpec),
	}
}

// SceneFactory is a SurfaceFactory producing SceneSurfaces. created, when
// non-nil, receives every surface the factory makes.
func SceneFactory(created func(*SceneSurface)) SurfaceFactory {
	return func(container Container) (Surface, error) {
		s := NewSceneSurface(container)
		if created != nil {
			created(s)
		}
		return s, nil
	}
}

func (s *SceneSurface) SetSeries(candles []models.Candle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.series = append([]models.Candle(nil), candles...)
	s.fit = false
	s.revision++
	s.overlays++
}

func (s *SceneSurface) SetMarkers(markers []Marker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markers = append([]Marker(nil), markers...)
	s.revision++
	s.overlays++
}

func (s *SceneSurface) AddPriceLine(spec PriceLineSpec) PriceLineHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.lines[s.next] = spec
	s.revision++
	s.overlays++
	return s.next
}

func (s *SceneSurface) RemovePriceLine(h PriceLineHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lines, h)
	s.revision++
	s.overlays++
}

func (s *SceneSurface) FitContent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fit = true
	s.revision++
	s.overlays++
}

func (s *SceneSurface) Resize(width int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width = width
	s.revision++
}

func (s *SceneSurface) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroyed = true
	s.series = nil
	s.markers = nil
	s.lines = make(map[PriceLineHandle]PriceLineSpec)
	s.revision++
	s.overlays++
}

// Scene returns a copy of the current drawable state. Price lines are in
// creation order.
func (s *SceneSurface) Scene() Scene {
	s.mu.Lock()
	defer s.mu.Unlock()

	handles := make([]PriceLineHandle, 0, len(s.lines))
	for h := range s.lines {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })
	lines := make([]PriceLineSpec, 0, len(handles))
	for _, h := range handles {
		lines = append(lines, s.lines[h])
	}

	return Scene{
		Width:      s.width,
		Height:     s.height,
		Series:     append([]models.Candle(nil), s.series...),
		Markers:    append([]Marker(nil), s.markers...),
		PriceLines: lines,
		Fit:        s.fit,
		Revision:   s.revision,
		Overlays:   s.overlays,
		Destroyed:  s.destroyed,
	}
}
