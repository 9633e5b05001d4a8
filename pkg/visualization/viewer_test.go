package visualization

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"coupledsnakes/internal/models"
	"coupledsnakes/pkg/contour"
)

func testImage(width, height int) *models.Image {
	img := models.NewImage(width, height, 1)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(0, x, y, float64(x+y)/float64(width+height))
		}
	}
	return img
}

// TestNewViewer verifies that a new viewer is created with the correct parameters
func TestNewViewer(t *testing.T) {
	viewer := NewViewer(testImage(10, 8), 0, 0)

	if viewer.width != 10 {
		t.Errorf("Expected width %d, got %d", 10, viewer.width)
	}
	if viewer.height != 8 {
		t.Errorf("Expected height %d, got %d", 8, viewer.height)
	}
	if viewer.zoom != 1 || viewer.scale != 1 {
		t.Errorf("Expected zoom and scale to default to 1, got %d and %f", viewer.zoom, viewer.scale)
	}
}

func TestBackground(t *testing.T) {
	img := testImage(10, 8)
	viewer := NewViewer(img, 1, 1)
	bg := viewer.Background()

	if bg.Bounds().Dx() != 10 || bg.Bounds().Dy() != 8 {
		t.Fatalf("Expected 10x8 image, got %v", bg.Bounds())
	}
	got := bg.At(5, 3).(color.Gray16).Y
	want := uint16(img.At(0, 5, 3) * 65535)
	if got != want {
		t.Errorf("Expected gray %d, got %d", want, got)
	}
}

func TestLabelImage(t *testing.T) {
	viewer := NewViewer(testImage(6, 6), 1, 1)
	labels := models.NewLabels(6, 6)
	labels.Data[7] = 2

	img, err := viewer.LabelImage(labels)
	if err != nil {
		t.Fatalf("LabelImage failed: %v", err)
	}
	if v := img.At(1, 1).(color.Gray16).Y; v != 2 {
		t.Errorf("Expected label 2, got %d", v)
	}
	if _, err := viewer.LabelImage(models.NewLabels(3, 3)); err == nil {
		t.Errorf("Expected size mismatch error")
	}
}

func TestOverlay(t *testing.T) {
	viewer := NewViewer(testImage(20, 20), 3, 1)
	c, err := contour.NewCircle(10, 10, 5, 16)
	if err != nil {
		t.Fatal(err)
	}
	labels := models.NewLabels(20, 20)
	labels.Paint(c.Rasterize(20, 20, 1), 1)

	out := viewer.Overlay(labels, []*contour.Curve{c})
	if out.Bounds().Dx() != 60 || out.Bounds().Dy() != 60 {
		t.Fatalf("Expected 60x60 overlay, got %v", out.Bounds())
	}
	// the curve's first point is drawn in white
	q := viewer.toOverlay(c.Points[0])
	r, g, b, _ := out.At(int(q.X), int(q.Y)).RGBA()
	if r != 0xffff || g != 0xffff || b != 0xffff {
		t.Errorf("Expected a white control point, got %d %d %d", r, g, b)
	}
	// the labelled interior is tinted
	r, g, b, _ = out.At(31, 31).RGBA()
	if r == g && g == b {
		t.Errorf("Expected a tinted interior pixel")
	}
	// a pixel far from the curve stays gray
	r, g, b, _ = out.At(1, 58).RGBA()
	if r != g || g != b {
		t.Errorf("Expected a gray background pixel")
	}
}

func TestSaveImageFormats(t *testing.T) {
	dir := t.TempDir()
	viewer := NewViewer(testImage(8, 8), 1, 1)
	bg := viewer.Background()

	for _, name := range []string{"bg.png", "bg.jpg"} {
		path := filepath.Join(dir, name)
		if err := viewer.SaveImage(bg, path); err != nil {
			t.Fatalf("SaveImage %s failed: %v", name, err)
		}
		f, err := os.Open(path)
		if err != nil {
			t.Fatal(err)
		}
		_, format, err := image.DecodeConfig(f)
		f.Close()
		if err != nil {
			t.Fatalf("Failed to decode %s: %v", name, err)
		}
		want := "png"
		if filepath.Ext(name) == ".jpg" {
			want = "jpeg"
		}
		if format != want {
			t.Errorf("%s: expected format %s, got %s", name, want, format)
		}
	}
}

func TestSaveSequence(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "frames")
	viewer := NewViewer(testImage(8, 8), 1, 1)
	frames := []image.Image{viewer.Background(), viewer.Overlay(nil, nil)}
	if err := viewer.SaveSequence(frames, dir, "step"); err != nil {
		t.Fatalf("SaveSequence failed: %v", err)
	}
	for _, name := range []string{"step_000.png", "step_001.png"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("Expected %s to exist: %v", name, err)
		}
	}
}
