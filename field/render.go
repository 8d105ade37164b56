package field

import (
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/paulmach/orb"
	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"
)

// QuicklookRenderer draws the catalog as a vector quicklook: each field
// filled by its NDVI mean on a red-to-green ramp, outlined in a neutral
// stroke. Fields without NDVI stats render gray. The quicklook is a visual
// sanity check, not a cartographic product: no graticule, no labels.
type QuicklookRenderer struct {
	TargetWidth float64 // output width in mm
	Padding     float64 // padding in world units
	StrokeWidth float64 // outline width in mm
	Resolution  canvas.Resolution
}

// NewQuicklookRenderer creates a renderer with default settings.
func NewQuicklookRenderer() *QuicklookRenderer {
	return &QuicklookRenderer{
		TargetWidth: 200.0,
		Padding:     50.0,
		StrokeWidth: 0.2,
		Resolution:  canvas.DPI(150),
	}
}

type canvasRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
}

// RenderToSVG writes the catalog quicklook as SVG.
func (r *QuicklookRenderer) RenderToSVG(cat *Catalog, w io.Writer) error {
	width, height := r.canvasSize(cat)
	svgRenderer := svg.New(w, width, height, nil)
	r.renderToCanvas(cat, svgRenderer, width, height)
	return svgRenderer.Close()
}

// RenderToPNG writes the catalog quicklook as PNG.
func (r *QuicklookRenderer) RenderToPNG(cat *Catalog, w io.Writer) error {
	width, height := r.canvasSize(cat)
	rast := rasterizer.New(width, height, r.Resolution, canvas.DefaultColorSpace)
	r.renderToCanvas(cat, rast, width, height)
	return png.Encode(w, rast)
}

// RenderFile picks the encoder from the file extension (.svg or .png).
func (r *QuicklookRenderer) RenderFile(cat *Catalog, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".png") {
		return r.RenderToPNG(cat, f)
	}
	return r.RenderToSVG(cat, f)
}

func (r *QuicklookRenderer) canvasSize(cat *Catalog) (width, height float64) {
	minX, minY, maxX, maxY := catalogBounds(cat)
	worldW := (maxX - minX) + 2*r.Padding
	worldH := (maxY - minY) + 2*r.Padding
	if worldW <= 0 || worldH <= 0 {
		return r.TargetWidth, r.TargetWidth
	}
	return r.TargetWidth, r.TargetWidth * worldH / worldW
}

func (r *QuicklookRenderer) renderToCanvas(cat *Catalog, renderer canvasRenderer, width, height float64) {
	bgStyle := canvas.DefaultStyle
	bgStyle.Fill = canvas.Paint{Color: canvas.White}
	renderer.RenderPath(canvas.Rectangle(width, height), bgStyle, canvas.Identity)

	minX, minY, maxX, _ := catalogBounds(cat)
	worldW := (maxX - minX) + 2*r.Padding
	if worldW <= 0 {
		return
	}
	scale := width / worldW

	toCanvas := func(pt orb.Point) (float64, float64) {
		return (pt[0] - minX + r.Padding) * scale, (pt[1] - minY + r.Padding) * scale
	}

	for _, p := range cat.Polygons() {
		path := &canvas.Path{}
		for _, ring := range p.Geometry {
			if len(ring) < 4 {
				continue
			}
			x, y := toCanvas(ring[0])
			path.MoveTo(x, y)
			for _, pt := range ring[1:] {
				x, y = toCanvas(pt)
				path.LineTo(x, y)
			}
			path.Close()
		}

		style := canvas.DefaultStyle
		style.Fill = canvas.Paint{Color: r.fieldColor(p)}
		style.Stroke = canvas.Paint{Color: color.RGBA{60, 60, 60, 255}}
		style.StrokeWidth = r.StrokeWidth
		style.FillRule = canvas.EvenOdd
		renderer.RenderPath(path, style, canvas.Identity)
	}
}

// fieldColor maps a field's NDVI mean onto a red-to-green ramp. The ramp
// spans NDVI 0.0 to 0.8, the range bare soil to dense canopy occupies in
// practice.
func (r *QuicklookRenderer) fieldColor(p *FieldPolygon) color.RGBA {
	mean, ok := p.Metric(MetricNDVIMean)
	if !ok {
		return color.RGBA{180, 180, 180, 255}
	}

	t := mean / 0.8
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	low := colorful.Hsv(25, 0.85, 0.85)  // dry orange
	high := colorful.Hsv(120, 0.8, 0.65) // canopy green
	c := low.BlendLuv(high, t).Clamped()
	red, green, blue := c.RGB255()
	return color.RGBA{red, green, blue, 255}
}

func catalogBounds(cat *Catalog) (minX, minY, maxX, maxY float64) {
	first := true
	for _, p := range cat.Polygons() {
		for _, ring := range p.Geometry {
			for _, pt := range ring {
				if first {
					minX, maxX, minY, maxY = pt[0], pt[0], pt[1], pt[1]
					first = false
					continue
				}
				if pt[0] < minX {
					minX = pt[0]
				}
				if pt[0] > maxX {
					maxX = pt[0]
				}
				if pt[1] < minY {
					minY = pt[1]
				}
				if pt[1] > maxY {
					maxY = pt[1]
				}
			}
		}
	}
	return minX, minY, maxX, maxY
}
