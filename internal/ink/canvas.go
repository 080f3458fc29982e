// Package ink collects handwriting strokes and renders them to PNG.
package ink

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"

	"golang.org/x/image/vector"
)

// Default canvas size in pixels.
const (
	DefaultWidth  = 320
	DefaultHeight = 320
)

// DefaultPenWidth is the stroke width used when rasterizing.
const DefaultPenWidth = 6

// Point is a canvas position in pixels.
type Point struct {
	X, Y float32
}

// Canvas accumulates strokes for one handwriting session.
// Not safe for concurrent use.
type Canvas struct {
	width, height int
	penWidth      float32

	strokes [][]Point
	drawing bool
}

// NewCanvas creates an empty canvas. Non-positive sizes fall back to
// the defaults.
func NewCanvas(width, height int) *Canvas {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	return &Canvas{width: width, height: height, penWidth: DefaultPenWidth}
}

// Size returns the canvas dimensions.
func (c *Canvas) Size() (int, int) {
	return c.width, c.height
}

// StrokeStart begins a new stroke at p.
func (c *Canvas) StrokeStart(p Point) {
	c.strokes = append(c.strokes, []Point{c.clamp(p)})
	c.drawing = true
}

// StrokeMove extends the current stroke. Ignored when no stroke is open.
func (c *Canvas) StrokeMove(p Point) {
	if !c.drawing || len(c.strokes) == 0 {
		return
	}
	last := len(c.strokes) - 1
	c.strokes[last] = append(c.strokes[last], c.clamp(p))
}

// StrokeEnd closes the current stroke. It reports whether a stroke was open.
func (c *Canvas) StrokeEnd() bool {
	was := c.drawing
	c.drawing = false
	return was
}

// Drawing reports whether a stroke is in progress.
func (c *Canvas) Drawing() bool {
	return c.drawing
}

// Clear removes every stroke.
func (c *Canvas) Clear() {
	c.strokes = nil
	c.drawing = false
}

// Len is the number of strokes.
func (c *Canvas) Len() int {
	return len(c.strokes)
}

// Empty reports whether nothing has been drawn.
func (c *Canvas) Empty() bool {
	return len(c.strokes) == 0
}

// Strokes returns a deep copy of the strokes.
func (c *Canvas) Strokes() [][]Point {
	out := make([][]Point, len(c.strokes))
	for i, s := range c.strokes {
		out[i] = append([]Point(nil), s...)
	}
	return out
}

func (c *Canvas) clamp(p Point) Point {
	return Point{
		X: min(max(p.X, 0), float32(c.width)),
		Y: min(max(p.Y, 0), float32(c.height)),
	}
}

// Image renders the strokes as black ink on a white background.
func (c *Canvas) Image() *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, c.width, c.height))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	if len(c.strokes) == 0 {
		return dst
	}

	z := vector.NewRasterizer(c.width, c.height)
	half := c.penWidth / 2
	for _, s := range c.strokes {
		for i, p := range s {
			dot(z, p, half)
			if i > 0 {
				segment(z, s[i-1], p, half)
			}
		}
	}
	z.Draw(dst, dst.Bounds(), image.NewUniform(color.Black), image.Point{})
	return dst
}

// PNG encodes the rendered canvas.
func (c *Canvas) PNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, c.Image()); err != nil {
		return nil, fmt.Errorf("encoding canvas: %w", err)
	}
	return buf.Bytes(), nil
}

// All paths below are wound the same way, so overlapping pieces add up
// and the rasterizer clamps them to full coverage instead of cancelling.

// segment adds a quad of width 2*half around a-b.
func segment(z *vector.Rasterizer, a, b Point, half float32) {
	dx, dy := b.X-a.X, b.Y-a.Y
	l := float32(math.Hypot(float64(dx), float64(dy)))
	if l == 0 {
		return
	}
	nx, ny := -dy/l*half, dx/l*half
	z.MoveTo(a.X+nx, a.Y+ny)
	z.LineTo(b.X+nx, b.Y+ny)
	z.LineTo(b.X-nx, b.Y-ny)
	z.LineTo(a.X-nx, a.Y-ny)
	z.ClosePath()
}

// dot adds an octagon of radius r centred on p.
func dot(z *vector.Rasterizer, p Point, r float32) {
	for i := 0; i < 8; i++ {
		a := -float64(i) * math.Pi / 4
		x := p.X + r*float32(math.Cos(a))
		y := p.Y + r*float32(math.Sin(a))
		if i == 0 {
			z.MoveTo(x, y)
		} else {
			z.LineTo(x, y)
		}
	}
	z.ClosePath()
}
