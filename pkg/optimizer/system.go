package optimizer

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"coupledsnakes/pkg/energy"
)

// Assemble sums the weighted matrix and vector parts of the derivable
// energies for st's curve. Both results are always allocated; terms without
// a contribution leave them untouched.
func Assemble(energies []energy.Energy, st *energy.Status) (*mat.Dense, *mat.VecDense) {
	n := 2 * st.Curve.Len()
	sys := mat.NewDense(n, n, nil)
	vec := mat.NewVecDense(n, nil)
	for _, e := range energies {
		d, ok := e.(energy.Derivable)
		if !ok || !e.Capabilities().Derivable {
			continue
		}
		w := e.Weight()
		if m := d.MatrixPart(st); m != nil {
			var scaled mat.Dense
			scaled.Scale(w, m)
			sys.Add(sys, &scaled)
		}
		if v := d.VectorPart(st); v != nil {
			vec.AddScaledVec(vec, w, v)
		}
	}
	return sys, vec
}

// Solve solves a·x = b with a QR factorization. An ill-conditioned system is
// retried with a small diagonal regularization, then with LU.
func Solve(a *mat.Dense, b *mat.VecDense) (*mat.VecDense, error) {
	n, _ := a.Dims()
	x := mat.NewVecDense(n, nil)

	var qr mat.QR
	qr.Factorize(a)
	if err := qr.SolveVecTo(x, false, b); err == nil && finite(x) {
		return x, nil
	}

	// regularize relative to the diagonal
	var diag float64
	for i := 0; i < n; i++ {
		diag = math.Max(diag, math.Abs(a.At(i, i)))
	}
	lambda := 1e-6 * math.Max(diag, 1)
	reg := mat.DenseCopyOf(a)
	for i := 0; i < n; i++ {
		reg.Set(i, i, reg.At(i, i)+lambda)
	}
	qr.Factorize(reg)
	if err := qr.SolveVecTo(x, false, b); err == nil && finite(x) {
		return x, nil
	}

	var lu mat.LU
	lu.Factorize(reg)
	if err := lu.SolveVecTo(x, false, b); err != nil || !finite(x) {
		return nil, errors.Wrapf(ErrSingular, "%d×%d system", n, n)
	}
	return x, nil
}

func finite(v *mat.VecDense) bool {
	for i := 0; i < v.Len(); i++ {
		if f := v.AtVec(i); math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
