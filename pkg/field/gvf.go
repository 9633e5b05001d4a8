package field

import (
	"gonum.org/v1/gonum/floats"
)

// Flow is a gradient vector flow field together with an approximate scalar
// potential whose gradient reproduces it.
type Flow struct {
	Width, Height int

	// U and V are the x and y flow components
	U, V []float64

	// Potential satisfies ∇Potential ≈ (U, V)
	Potential []float64
}

// MaxGVFMu is the largest diffusion weight for which the explicit update
// with unit time step stays stable.
const MaxGVFMu = 0.25

// GradientVectorFlow diffuses the gradient of the edge map for the given
// number of iterations: u += mu∇²u - |∇f|²(u - f_x), likewise for v.
// The edge map is usually a normalized squared gradient magnitude.
func GradientVectorFlow(edge []float64, width, height, iterations int, mu float64) *Flow {
	if mu > MaxGVFMu {
		mu = MaxGVFMu
	}
	fx, fy := Gradient(edge, width, height)
	n := width * height
	mag := make([]float64, n)
	for i := range mag {
		mag[i] = fx[i]*fx[i] + fy[i]*fy[i]
	}

	u := append([]float64(nil), fx...)
	v := append([]float64(nil), fy...)
	nu := make([]float64, n)
	nv := make([]float64, n)
	for it := 0; it < iterations; it++ {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				i := y*width + x
				nu[i] = u[i] + mu*laplacian(u, width, height, x, y) - mag[i]*(u[i]-fx[i])
				nv[i] = v[i] + mu*laplacian(v, width, height, x, y) - mag[i]*(v[i]-fy[i])
			}
		}
		u, nu = nu, u
		v, nv = nv, v
	}

	return &Flow{
		Width:     width,
		Height:    height,
		U:         u,
		V:         v,
		Potential: ReconstructPotential(u, v, width, height, 4*iterations+50),
	}
}

// ReconstructPotential approximately integrates a vector field by solving
// the Poisson equation ∇²Φ = div(u, v) with Jacobi sweeps and replicated
// borders. The result is shifted to a zero minimum.
func ReconstructPotential(u, v []float64, width, height, sweeps int) []float64 {
	n := width * height
	div := make([]float64, n)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			div[y*width+x] = CentralX(u, width, height, x, y) + CentralY(v, width, height, x, y)
		}
	}
	phi := make([]float64, n)
	next := make([]float64, n)
	for s := 0; s < sweeps; s++ {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				i := y*width + x
				next[i] = phi[i] + 0.25*(laplacian(phi, width, height, x, y)-div[i])
			}
		}
		phi, next = next, phi
	}
	if n > 0 {
		floats.AddConst(-floats.Min(phi), phi)
	}
	return phi
}
