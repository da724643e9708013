package overlays

import (
	"math"

	"github.com/kikiluvv/spotlight/internal/annotations"
)

// PixelBox is a rectangle in pixel units
type PixelBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Area returns W*H
func (p PixelBox) Area() float64 {
	return p.W * p.H
}

// Clamp restricts the box to [0,frameW]x[0,frameH]
func (p PixelBox) Clamp(frameW, frameH float64) PixelBox {
	x := clamp(p.X, 0, frameW)
	y := clamp(p.Y, 0, frameH)
	right := clamp(p.X+p.W, x, frameW)
	bottom := clamp(p.Y+p.H, y, frameH)
	return PixelBox{X: x, Y: y, W: right - x, H: bottom - y}
}

// Rect rounds the box to whole pixels that stay inside the frame
func (p PixelBox) Rect(frameW, frameH int) (x, y, w, h int) {
	x = int(math.Floor(p.X))
	y = int(math.Floor(p.Y))
	x = clampInt(x, 0, frameW)
	y = clampInt(y, 0, frameH)
	w = clampInt(int(math.Round(p.W)), 0, frameW-x)
	h = clampInt(int(math.Round(p.H)), 0, frameH-y)
	return x, y, w, h
}

// DirectBox scales a normalized box to pixel units for the given frame
func DirectBox(box annotations.BoundingBox, frameW, frameH float64) PixelBox {
	return PixelBox{
		X: box.Left * frameW,
		Y: box.Top * frameH,
		W: box.Width * frameW,
		H: box.Height * frameH,
	}.Clamp(frameW, frameH)
}

// Size is a width/height pair in pixels
type Size struct {
	W float64 `json:"w" yaml:"w"`
	H float64 `json:"h" yaml:"h"`
}

// Masks are the four rectangles dimming everything outside a window
type Masks struct {
	Top    PixelBox `json:"top"`
	Left   PixelBox `json:"left"`
	Right  PixelBox `json:"right"`
	Bottom PixelBox `json:"bottom"`
}

// All returns the masks in draw order
func (m Masks) All() []PixelBox {
	return []PixelBox{m.Top, m.Left, m.Right, m.Bottom}
}

// Window is a fixed-size viewport centered on a detection
type Window struct {
	Box   PixelBox `json:"box"`
	Masks Masks    `json:"masks"`
}

// FixedWindow centers a win-sized window on the box center, then clamps it
// so it never leaves the frame. A window larger than the frame is shrunk to fit.
func FixedWindow(box annotations.BoundingBox, frameW, frameH float64, win Size) Window {
	winW := clamp(win.W, 0, frameW)
	winH := clamp(win.H, 0, frameH)

	cx := box.CenterX() * frameW
	cy := box.CenterY() * frameH

	x := clamp(cx-winW/2, 0, frameW-winW)
	y := clamp(cy-winH/2, 0, frameH-winH)

	return Window{
		Box: PixelBox{X: x, Y: y, W: winW, H: winH},
		Masks: Masks{
			Top:    PixelBox{X: 0, Y: 0, W: frameW, H: y},
			Left:   PixelBox{X: 0, Y: y, W: x, H: winH},
			Right:  PixelBox{X: x + winW, Y: y, W: frameW - (x + winW), H: winH},
			Bottom: PixelBox{X: 0, Y: y + winH, W: frameW, H: frameH - (y + winH)},
		},
	}
}

// Offset is a pan translation in pixels. The view is moved by (-DX, -DY).
type Offset struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

// PanOffset computes the translation that brings the box center to the
// center of a container holding the video at its natural size
func PanOffset(box annotations.BoundingBox, videoW, videoH float64, container Size) Offset {
	return Offset{
		DX: box.CenterX()*videoW - container.W/2,
		DY: box.CenterY()*videoH - container.H/2,
	}
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
