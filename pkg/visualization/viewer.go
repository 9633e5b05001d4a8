package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"

	"coupledsnakes/internal/models"
	"coupledsnakes/pkg/contour"
)

// palette colors curves and labels; label i uses palette[(i-1) % len]
var palette = []color.RGBA{
	{230, 25, 75, 255},
	{60, 180, 75, 255},
	{0, 130, 200, 255},
	{245, 130, 48, 255},
	{145, 30, 180, 255},
	{70, 240, 240, 255},
	{240, 50, 230, 255},
	{210, 245, 60, 255},
}

// Viewer renders segmentation results on top of the working image
type Viewer struct {
	// luminance of the working image
	luminance []float64

	// dimensions of the image
	width  int
	height int

	// zoom is the integer upscaling factor of overlays
	zoom int

	// scale is the size of one pixel in curve coordinates
	scale float64
}

// NewViewer creates a viewer for an image. Zoom values below 1 mean 1.
func NewViewer(img *models.Image, zoom int, scale float64) *Viewer {
	if zoom < 1 {
		zoom = 1
	}
	if scale == 0 {
		scale = 1
	}
	return &Viewer{
		luminance: img.Luminance(),
		width:     img.Width,
		height:    img.Height,
		zoom:      zoom,
		scale:     scale,
	}
}

// Background returns the luminance as a 16-bit gray image
func (v *Viewer) Background() image.Image {
	return v.FieldImage(v.luminance)
}

// FieldImage converts a [0,1] field of the image's size to 16-bit gray
func (v *Viewer) FieldImage(data []float64) image.Image {
	img := image.NewGray16(image.Rect(0, 0, v.width, v.height))
	for y := 0; y < v.height; y++ {
		for x := 0; x < v.width; x++ {
			idx := y*v.width + x
			if idx < len(data) {
				value := uint16(math.Max(0, math.Min(65535, data[idx]*65535)))
				img.SetGray16(x, y, color.Gray16{Y: value})
			}
		}
	}
	return img
}

// LabelImage stores the raw label values in a 16-bit gray image
func (v *Viewer) LabelImage(labels *models.Labels) (image.Image, error) {
	if labels.Width != v.width || labels.Height != v.height {
		return nil, fmt.Errorf("labels %dx%d do not match image %dx%d",
			labels.Width, labels.Height, v.width, v.height)
	}
	img := image.NewGray16(image.Rect(0, 0, v.width, v.height))
	for y := 0; y < v.height; y++ {
		for x := 0; x < v.width; x++ {
			img.SetGray16(x, y, color.Gray16{Y: labels.Data[y*v.width+x]})
		}
	}
	return img, nil
}

// Overlay draws the labels as translucent regions and the curves as
// polylines over the background, upscaled by the zoom factor. Either
// argument may be nil.
func (v *Viewer) Overlay(labels *models.Labels, curves []*contour.Curve) image.Image {
	base := image.NewRGBA(image.Rect(0, 0, v.width, v.height))
	for y := 0; y < v.height; y++ {
		for x := 0; x < v.width; x++ {
			g := uint8(math.Max(0, math.Min(255, v.luminance[y*v.width+x]*255)))
			c := color.RGBA{g, g, g, 255}
			if labels != nil {
				if l := labels.Data[y*v.width+x]; l != 0 {
					c = blend(c, palette[int(l-1)%len(palette)], 0.4)
				}
			}
			base.SetRGBA(x, y, c)
		}
	}

	out := image.NewRGBA(image.Rect(0, 0, v.width*v.zoom, v.height*v.zoom))
	draw.NearestNeighbor.Scale(out, out.Bounds(), base, base.Bounds(), draw.Src, nil)

	for i, c := range curves {
		col := palette[i%len(palette)]
		for j := range c.Points {
			a, b := v.toOverlay(c.At(j)), v.toOverlay(c.At(j+1))
			drawLine(out, a, b, col)
		}
		for _, p := range c.Points {
			q := v.toOverlay(p)
			out.SetRGBA(int(q.X), int(q.Y), color.RGBA{255, 255, 255, 255})
		}
	}
	return out
}

// toOverlay maps curve coordinates to the center of the zoomed pixel
func (v *Viewer) toOverlay(p contour.Point) contour.Point {
	z := float64(v.zoom)
	return contour.Point{
		X: (p.X/v.scale)*z + z/2,
		Y: (p.Y/v.scale)*z + z/2,
	}
}

func blend(a, b color.RGBA, t float64) color.RGBA {
	mix := func(x, y uint8) uint8 { return uint8(float64(x)*(1-t) + float64(y)*t) }
	return color.RGBA{mix(a.R, b.R), mix(a.G, b.G), mix(a.B, b.B), 255}
}

func drawLine(img *image.RGBA, a, b contour.Point, col color.RGBA) {
	steps := int(math.Ceil(math.Max(math.Abs(b.X-a.X), math.Abs(b.Y-a.Y))))
	if steps == 0 {
		steps = 1
	}
	for s := 0; s <= steps; s++ {
		t := float64(s) / float64(steps)
		x := int(a.X + (b.X-a.X)*t)
		y := int(a.Y + (b.Y-a.Y)*t)
		if image.Pt(x, y).In(img.Bounds()) {
			img.SetRGBA(x, y, col)
		}
	}
}

// SaveImage writes an image as PNG, or as JPEG for .jpg and .jpeg names
func (v *Viewer) SaveImage(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
	default:
		return png.Encode(file, img)
	}
}

// SaveSequence saves frames as prefix_000.png, prefix_001.png, ... in outputDir
func (v *Viewer) SaveSequence(frames []image.Image, outputDir, prefix string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}
	for i, frame := range frames {
		filename := filepath.Join(outputDir, fmt.Sprintf("%s_%03d.png", prefix, i))
		if err := v.SaveImage(frame, filename); err != nil {
			return err
		}
	}
	return nil
}
