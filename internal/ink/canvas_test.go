package ink

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

func isInk(r, g, b, _ uint32) bool {
	return r < 0x4000 && g < 0x4000 && b < 0x4000
}

func TestStrokeLifecycle(t *testing.T) {
	c := NewCanvas(100, 100)
	require.True(t, c.Empty())

	c.StrokeMove(Point{X: 5, Y: 5}) // no open stroke
	require.Equal(t, 0, c.Len())
	require.False(t, c.StrokeEnd())

	c.StrokeStart(Point{X: 10, Y: 10})
	require.True(t, c.Drawing())
	c.StrokeMove(Point{X: 20, Y: 10})
	c.StrokeMove(Point{X: 30, Y: 10})
	require.True(t, c.StrokeEnd())
	require.False(t, c.Drawing())

	c.StrokeMove(Point{X: 40, Y: 10}) // stroke closed, ignored
	c.StrokeStart(Point{X: 50, Y: 50})
	c.StrokeEnd()

	strokes := c.Strokes()
	require.Len(t, strokes, 2)
	require.Len(t, strokes[0], 3)
	require.Len(t, strokes[1], 1)

	strokes[0][0] = Point{}
	require.Equal(t, Point{X: 10, Y: 10}, c.Strokes()[0][0])

	c.Clear()
	require.True(t, c.Empty())
	require.False(t, c.Drawing())
}

func TestPointsAreClamped(t *testing.T) {
	c := NewCanvas(50, 40)
	c.StrokeStart(Point{X: -10, Y: 100})
	require.Equal(t, Point{X: 0, Y: 40}, c.Strokes()[0][0])
}

func TestNewCanvasDefaults(t *testing.T) {
	w, h := NewCanvas(0, -1).Size()
	require.Equal(t, DefaultWidth, w)
	require.Equal(t, DefaultHeight, h)
}

func TestPNGRendersInk(t *testing.T) {
	c := NewCanvas(64, 64)
	c.StrokeStart(Point{X: 8, Y: 32})
	c.StrokeMove(Point{X: 56, Y: 32})
	c.StrokeEnd()
	// A crossing stroke wound in the other direction must not erase ink.
	c.StrokeStart(Point{X: 32, Y: 56})
	c.StrokeMove(Point{X: 32, Y: 8})
	c.StrokeEnd()

	data, err := c.PNG()
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, 64, img.Bounds().Dx())
	require.Equal(t, 64, img.Bounds().Dy())

	require.True(t, isInk(img.At(20, 32).RGBA()), "horizontal stroke missing")
	require.True(t, isInk(img.At(32, 20).RGBA()), "vertical stroke missing")
	require.True(t, isInk(img.At(32, 32).RGBA()), "crossing cancelled out")

	r, g, b, _ := img.At(2, 2).RGBA()
	require.Equal(t, uint32(0xffff), r)
	require.Equal(t, uint32(0xffff), g)
	require.Equal(t, uint32(0xffff), b)
}

func TestTapLeavesADot(t *testing.T) {
	c := NewCanvas(32, 32)
	c.StrokeStart(Point{X: 16, Y: 16})
	c.StrokeEnd()

	img := c.Image()
	require.True(t, isInk(img.At(16, 16).RGBA()))
}

func TestEmptyCanvasIsWhite(t *testing.T) {
	img := NewCanvas(16, 16).Image()
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			require.Equal(t, uint32(0xffff), r&g&b, "pixel %d,%d", x, y)
		}
	}
}
