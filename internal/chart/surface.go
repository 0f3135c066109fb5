// Package chart keeps a chart surface's series, markers and price lines
// consistent with the latest analysis snapshot.
package chart

import "github.com/rewired-gh/btcview/internal/models"

// MarkerPosition places a marker relative to its bar.
type MarkerPosition string

const (
	BelowBar MarkerPosition = "belowBar"
	AboveBar MarkerPosition = "aboveBar"
)

// MarkerShape is the glyph drawn for a marker.
type MarkerShape string

const (
	ArrowUp   MarkerShape = "arrowUp"
	ArrowDown MarkerShape = "arrowDown"
)

// LineStyle follows the charting library's numeric line styles.
type LineStyle int

const (
	LineSolid       LineStyle = 0
	LineDotted      LineStyle = 1
	LineDashed      LineStyle = 2
	LineLargeDashed LineStyle = 3
)

// Colors shared with the rendered legend.
const (
	ColorGreen = "#22c55e"
	ColorRed   = "#ef4444"
	ColorBlue  = "#3b82f6"
)

// Marker annotates a single bar.
type Marker struct {
	Time     int64          `json:"time"`
	Position MarkerPosition `json:"position"`
	Color    string         `json:"color"`
	Shape    MarkerShape    `json:"shape"`
	Text     string         `json:"text"`
	Size     int            `json:"size"`
}

// PriceLineSpec describes a horizontal line at Price.
type PriceLineSpec struct {
	Price     float64   `json:"price"`
	Color     string    `json:"color"`
	LineWidth int       `json:"lineWidth"`
	LineStyle LineStyle `json:"lineStyle"`
	Title     string    `json:"title"`
}

// PriceLineHandle identifies a price line created on a surface.
type PriceLineHandle int

// Surface is the imperative charting collaborator. Implementations need not
// be safe for concurrent use; the Engine serialises all calls.
type Surface interface {
	SetSeries(candles []models.Candle)
	SetMarkers(markers []Marker)
	AddPriceLine(spec PriceLineSpec) PriceLineHandle
	RemovePriceLine(h PriceLineHandle)
	FitContent()
	Resize(width int)
	Destroy()
}

// Container is the element a surface is mounted into.
type Container interface {
	Width() int
	Height() int
}

// Box is a fixed-size Container.
type Box struct {
	W, H int
}

func (b Box) Width() int  { return b.W }
func (b Box) Height() int { return b.H }

// SurfaceFactory creates a surface inside container.
type SurfaceFactory func(container Container) (Surface, error)
