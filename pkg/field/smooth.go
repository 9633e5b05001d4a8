package field

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// GaussianSmooth blurs a row-major plane with a Gaussian of standard
// deviation sigma, filtering rows and then columns in the frequency domain.
// Each line is mirrored to twice its length first so the periodic FFT does
// not wrap one border onto the other. sigma <= 0 returns a copy.
func GaussianSmooth(data []float64, width, height int, sigma float64) []float64 {
	out := make([]float64, len(data))
	copy(out, data)
	if sigma <= 0 {
		return out
	}

	rowFilter := newLineFilter(width, sigma)
	line := make([]float64, width)
	for y := 0; y < height; y++ {
		copy(line, out[y*width:(y+1)*width])
		rowFilter.apply(line)
		copy(out[y*width:(y+1)*width], line)
	}

	colFilter := newLineFilter(height, sigma)
	line = make([]float64, height)
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			line[y] = out[y*width+x]
		}
		colFilter.apply(line)
		for y := 0; y < height; y++ {
			out[y*width+x] = line[y]
		}
	}
	return out
}

// lineFilter holds the FFT plan and transfer function for one line length.
type lineFilter struct {
	n        int
	fft      *fourier.FFT
	transfer []float64
	padded   []float64
	coeff    []complex128
}

func newLineFilter(n int, sigma float64) *lineFilter {
	size := 2 * n
	f := &lineFilter{
		n:        n,
		fft:      fourier.NewFFT(size),
		transfer: make([]float64, size/2+1),
		padded:   make([]float64, size),
		coeff:    make([]complex128, size/2+1),
	}
	for k := range f.transfer {
		freq := f.fft.Freq(k)
		f.transfer[k] = math.Exp(-2 * math.Pi * math.Pi * sigma * sigma * freq * freq)
	}
	return f
}

func (f *lineFilter) apply(line []float64) {
	size := 2 * f.n
	for i := 0; i < f.n; i++ {
		f.padded[i] = line[i]
		f.padded[size-1-i] = line[i]
	}
	f.fft.Coefficients(f.coeff, f.padded)
	for k := range f.coeff {
		f.coeff[k] *= complex(f.transfer[k], 0)
	}
	f.fft.Sequence(f.padded, f.coeff)
	// gonum's inverse is unnormalized
	for i := 0; i < f.n; i++ {
		line[i] = f.padded[i] / float64(size)
	}
}
