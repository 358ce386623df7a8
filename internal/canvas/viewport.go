package canvas

import (
	"math"

	"pinned/internal/api"
)

const (
	MinZoom = 0.1
	MaxZoom = 4.0
)

// Point is a position in screen space, relative to the canvas element.
type Point struct {
	X, Y float64
}

// Viewport is the local pan and zoom of a canvas. It is never persisted;
// tiles always store unpanned, unzoomed canvas coordinates.
type Viewport struct {
	PanX, PanY float64
	Zoom       float64
}

func NewViewport() Viewport { return Viewport{Zoom: 1} }

func (v Viewport) scale() float64 {
	if v.Zoom <= 0 {
		return 1
	}
	return v.Zoom
}

// ToCanvas maps a screen point to canvas coordinates, rounded to whole
// units.
func (v Viewport) ToCanvas(p Point) api.Position {
	z := v.scale()
	return api.Position{
		X: math.Round((p.X - v.PanX) / z),
		Y: math.Round((p.Y - v.PanY) / z),
	}
}

func (v Viewport) ToScreen(pos api.Position) Point {
	z := v.scale()
	return Point{X: pos.X*z + v.PanX, Y: pos.Y*z + v.PanY}
}

func (v *Viewport) Pan(dx, dy float64) {
	v.PanX += dx
	v.PanY += dy
}

// ZoomBy multiplies the zoom by factor, clamped to [MinZoom, MaxZoom],
// keeping the canvas point under anchor in place.
func (v *Viewport) ZoomBy(factor float64, anchor Point) {
	old := v.scale()
	next := math.Min(MaxZoom, math.Max(MinZoom, old*factor))
	v.PanX = anchor.X - (anchor.X-v.PanX)*next/old
	v.PanY = anchor.Y - (anchor.Y-v.PanY)*next/old
	v.Zoom = next
}
