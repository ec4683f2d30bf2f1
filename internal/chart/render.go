package chart

import (
	"fmt"
	"io"

	"github.com/fogleman/gg"
)

const (
	DefaultWidth  = 640
	DefaultHeight = 360
	margin        = 40.0
)

// RenderPNG draws the curve with a dashed reference line at mean and writes a PNG.
func RenderPNG(w io.Writer, points []Point, mean float64, width, height int) error {
	if len(points) < 2 {
		return fmt.Errorf("need at least 2 points, got %d", len(points))
	}
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}

	minX, maxX := points[0].X, points[len(points)-1].X
	maxY := 0.0
	for _, p := range points {
		maxY = max(maxY, p.Y)
	}
	if maxX <= minX || maxY <= 0 {
		return fmt.Errorf("degenerate curve")
	}

	plotW := float64(width) - 2*margin
	plotH := float64(height) - 2*margin
	px := func(x float64) float64 { return margin + (x-minX)/(maxX-minX)*plotW }
	py := func(y float64) float64 { return margin + plotH - y/(maxY*1.1)*plotH }

	dc := gg.NewContext(width, height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	// Axes.
	dc.SetRGB255(100, 116, 139)
	dc.SetLineWidth(1)
	dc.DrawLine(margin, margin+plotH, margin+plotW, margin+plotH)
	dc.DrawLine(margin, margin, margin, margin+plotH)
	dc.Stroke()
	dc.DrawStringAnchored(fmt.Sprintf("%.1f", minX), margin, margin+plotH+14, 0.5, 0.5)
	dc.DrawStringAnchored(fmt.Sprintf("%.1f", maxX), margin+plotW, margin+plotH+14, 0.5, 0.5)
	dc.DrawStringAnchored("Probability Density", margin, margin-14, 0, 0.5)

	// Curve.
	dc.SetRGB255(59, 130, 246)
	dc.SetLineWidth(2)
	dc.MoveTo(px(points[0].X), py(points[0].Y))
	for _, p := range points[1:] {
		dc.LineTo(px(p.X), py(p.Y))
	}
	dc.Stroke()

	// Mean.
	dc.SetRGB255(239, 68, 68)
	dc.SetDash(4, 4)
	dc.DrawLine(px(mean), margin, px(mean), margin+plotH)
	dc.Stroke()
	dc.SetDash()
	dc.DrawStringAnchored(fmt.Sprintf("mean=%g", mean), px(mean), margin-4, 0.5, 0)

	return dc.EncodePNG(w)
}
