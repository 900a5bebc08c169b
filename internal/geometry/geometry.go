// Package geometry keeps page-space and raster-space rectangles apart.
//
// PDF page space has its origin at the bottom-left corner with y growing
// upward, measured in points. Raster space (rendered pages, OCR boxes, MuPDF
// HTML line positions) has its origin at the top-left corner with y growing
// downward. Every conversion between the two goes through this package.
package geometry

import (
	"errors"
	"image"
	"math"
)

// PointsPerInch is the PDF user-space unit density.
const PointsPerInch = 72.0

// Origin names the corner a coordinate system is anchored to.
type Origin int

const (
	// OriginBottomLeft is PDF page space (y up).
	OriginBottomLeft Origin = iota
	// OriginTopLeft is raster space (y down).
	OriginTopLeft
)

func (o Origin) String() string {
	if o == OriginTopLeft {
		return "top-left"
	}
	return "bottom-left"
}

// Rect is an axis-aligned box. X0/Y0 is the smaller corner after Normalize.
type Rect struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// ErrEmptyCrop is returned when a crop area does not overlap the image.
var ErrEmptyCrop = errors.New("crop area outside image bounds")

// Normalize orders the corners so that X0 <= X1 and Y0 <= Y1.
func (r Rect) Normalize() Rect {
	if r.X0 > r.X1 {
		r.X0, r.X1 = r.X1, r.X0
	}
	if r.Y0 > r.Y1 {
		r.Y0, r.Y1 = r.Y1, r.Y0
	}
	return r
}

func (r Rect) Width() float64  { return math.Abs(r.X1 - r.X0) }
func (r Rect) Height() float64 { return math.Abs(r.Y1 - r.Y0) }

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.Width() == 0 || r.Height() == 0
}

// Clamp limits the rectangle to [0,width] x [0,height]. The result may be
// empty when the rectangle lies entirely outside the page.
func (r Rect) Clamp(width, height float64) Rect {
	r = r.Normalize()
	r.X0 = clamp(r.X0, 0, width)
	r.X1 = clamp(r.X1, 0, width)
	r.Y0 = clamp(r.Y0, 0, height)
	r.Y1 = clamp(r.Y1, 0, height)
	return r
}

// FlipY mirrors the rectangle vertically inside a page of the given height,
// converting between bottom-left and top-left origins. It is its own inverse.
func (r Rect) FlipY(pageHeight float64) Rect {
	return Rect{X0: r.X0, Y0: pageHeight - r.Y1, X1: r.X1, Y1: pageHeight - r.Y0}.Normalize()
}

// Scale multiplies every coordinate by s.
func (r Rect) Scale(s float64) Rect {
	return Rect{X0: r.X0 * s, Y0: r.Y0 * s, X1: r.X1 * s, Y1: r.Y1 * s}
}

// PDFToRaster converts a PDF-space rectangle on a page of the given size into
// pixel coordinates of that page rendered at scale (pixels per point). The
// rectangle is clamped to the page first.
func PDFToRaster(r Rect, pageWidth, pageHeight, scale float64) image.Rectangle {
	c := r.Clamp(pageWidth, pageHeight).FlipY(pageHeight).Scale(scale)
	return image.Rect(
		int(math.Floor(c.X0)),
		int(math.Floor(c.Y0)),
		int(math.Ceil(c.X1)),
		int(math.Ceil(c.Y1)),
	)
}

// RasterToPDF converts a pixel rectangle of a page rendered at scale back
// into PDF space.
func RasterToPDF(px image.Rectangle, pageHeight, scale float64) Rect {
	if scale <= 0 {
		scale = 1
	}
	r := Rect{
		X0: float64(px.Min.X) / scale,
		Y0: float64(px.Min.Y) / scale,
		X1: float64(px.Max.X) / scale,
		Y1: float64(px.Max.Y) / scale,
	}
	return r.FlipY(pageHeight)
}

// FromImageRect converts a pixel rectangle into a raster-space Rect.
func FromImageRect(px image.Rectangle) Rect {
	return Rect{X0: float64(px.Min.X), Y0: float64(px.Min.Y), X1: float64(px.Max.X), Y1: float64(px.Max.Y)}
}

// DPI returns the render resolution for a scale factor.
func DPI(scale float64) float64 {
	return scale * PointsPerInch
}

// Crop returns the part of img inside area, intersected with the image bounds.
func Crop(img image.Image, area image.Rectangle) (image.Image, error) {
	rect := area.Intersect(img.Bounds())
	if rect.Empty() {
		return nil, ErrEmptyCrop
	}
	sub, ok := img.(interface {
		SubImage(r image.Rectangle) image.Image
	})
	if !ok {
		return nil, errors.New("image does not support sub-image")
	}
	return sub.SubImage(rect), nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
