package field

// Gradient returns the central-difference derivatives of a row-major plane.
// Borders use one-sided differences against the clamped neighbour.
func Gradient(data []float64, width, height int) (gx, gy []float64) {
	gx = make([]float64, width*height)
	gy = make([]float64, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			gx[y*width+x] = CentralX(data, width, height, x, y)
			gy[y*width+x] = CentralY(data, width, height, x, y)
		}
	}
	return gx, gy
}

// CentralX is the x central difference at (x, y) with clamped neighbours.
func CentralX(data []float64, width, height, x, y int) float64 {
	l, r := clampInt(x-1, 0, width-1), clampInt(x+1, 0, width-1)
	if l == r {
		return 0
	}
	y = clampInt(y, 0, height-1)
	return (data[y*width+r] - data[y*width+l]) / float64(r-l)
}

// CentralY is the y central difference at (x, y) with clamped neighbours.
func CentralY(data []float64, width, height, x, y int) float64 {
	u, d := clampInt(y-1, 0, height-1), clampInt(y+1, 0, height-1)
	if u == d {
		return 0
	}
	x = clampInt(x, 0, width-1)
	return (data[d*width+x] - data[u*width+x]) / float64(d-u)
}

// GradientMagnitudeSquared returns |∇data|² per pixel.
func GradientMagnitudeSquared(data []float64, width, height int) []float64 {
	gx, gy := Gradient(data, width, height)
	out := make([]float64, len(data))
	for i := range out {
		out[i] = gx[i]*gx[i] + gy[i]*gy[i]
	}
	return out
}

// laplacian is the 5-point Laplacian with replicated borders.
func laplacian(data []float64, width, height, x, y int) float64 {
	c := data[y*width+x]
	l := data[y*width+clampInt(x-1, 0, width-1)]
	r := data[y*width+clampInt(x+1, 0, width-1)]
	u := data[clampInt(y-1, 0, height-1)*width+x]
	d := data[clampInt(y+1, 0, height-1)*width+x]
	return l + r + u + d - 4*c
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
