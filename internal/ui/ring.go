package ui

import (
	"image/color"
	"math"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
	"github.com/tartampluch/life-progress/internal/config"
	"github.com/tartampluch/life-progress/internal/engine"
)

// ProgressRing draws a circular arc whose sweep is proportional to a fraction.
// The arc starts at 12 o'clock and runs clockwise.
type ProgressRing struct {
	widget.BaseWidget

	Color    color.Color
	Diameter float32
	Stroke   float32

	progress float64
	raster   *canvas.Raster
}

// NewProgressRing creates an empty ring of the given diameter.
func NewProgressRing(c color.Color, diameter float32) *ProgressRing {
	r := &ProgressRing{
		Color:    c,
		Diameter: diameter,
		Stroke:   config.RingStrokeWidth,
	}
	r.raster = canvas.NewRasterWithPixels(r.pixel)
	r.ExtendBaseWidget(r)
	return r
}

// SetProgress updates the drawn fraction and repaints.
func (r *ProgressRing) SetProgress(fraction float64) {
	r.progress = engine.Clamp(fraction)
	r.Refresh()
}

// Progress returns the fraction currently drawn.
func (r *ProgressRing) Progress() float64 {
	return r.progress
}

// MinSize keeps the ring at its nominal diameter.
func (r *ProgressRing) MinSize() fyne.Size {
	return fyne.NewSquareSize(r.Diameter)
}

// CreateRenderer implements fyne.Widget.
func (r *ProgressRing) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(r.raster)
}

func (r *ProgressRing) pixel(x, y, w, h int) color.Color {
	strokeRatio := float64(r.Stroke / r.Diameter)
	if ringCovers(r.progress, float64(x)+0.5, float64(y)+0.5, float64(w), float64(h), strokeRatio) {
		return r.Color
	}
	return color.Transparent
}

// ringCovers reports whether the point (px, py) of a w×h raster lies on the
// painted part of a ring. strokeRatio is the band thickness relative to the
// ring's outer diameter.
func ringCovers(fraction, px, py, w, h, strokeRatio float64) bool {
	if fraction <= 0 {
		return false
	}

	outer := math.Min(w, h) / 2
	inner := outer - strokeRatio*2*outer
	dx, dy := px-w/2, py-h/2
	dist := math.Hypot(dx, dy)
	if dist > outer || dist < inner {
		return false
	}

	// Screen y grows downwards, so atan2(dx, -dy) is the clockwise angle from 12 o'clock.
	angle := math.Atan2(dx, -dy) * 180 / math.Pi
	if angle < 0 {
		angle += 360
	}
	return angle <= engine.SweepDegrees(fraction)
}
