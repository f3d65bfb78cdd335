package ccfl

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

//PCALite is a light principal component analysis. X is centred column
//wise (optionally scaled to unit variance when bScale is set) and
//decomposed with a thin SVD. The returned coefficient matrix holds one
//principal direction per column, with the sign convention that the
//largest-magnitude entry of each direction is positive. When
//bMakeFullRank is set, directions belonging to numerically zero singular
//values are dropped.
func PCALite(X *mat.Dense, bScale, bMakeFullRank bool) (coeff *mat.Dense, mu []float64, score *mat.Dense) {
	h, w := X.Dims()
	Xc, muX := centerColumns(X)
	if bScale {
		sd := nanColStds(X)
		for q := 0; q < w; q++ {
			s := sd[q]
			if s == 0 {
				s = 1
			}
			for p := 0; p < h; p++ {
				Xc.Set(p, q, Xc.At(p, q)/s)
			}
		}
	}

	var svd mat.SVD
	if !svd.Factorize(Xc, mat.SVDThin) {
		// Degenerate factorization, fall back to the raw axes.
		eye := mat.NewDense(w, w, nil)
		for q := 0; q < w; q++ {
			eye.Set(q, q, 1)
		}
		return eye, muX, mat.DenseCopyOf(Xc)
	}

	var v mat.Dense
	svd.VTo(&v)
	s := svd.Values(nil)

	k := len(s)
	if bMakeFullRank && k > 0 {
		tol := float64(maxInt(h, w)) * s[0] * 2.220446049250313e-16
		for k > 0 && s[k-1] <= tol {
			k--
		}
	}
	if k == 0 {
		k = 1
	}

	coeff = mat.NewDense(w, k, nil)
	for c := 0; c < k; c++ {
		iMax, vMax := 0, 0.0
		for r := 0; r < w; r++ {
			if a := math.Abs(v.At(r, c)); a > vMax {
				vMax = a
				iMax = r
			}
		}
		sign := 1.0
		if v.At(iMax, c) < 0 {
			sign = -1
		}
		for r := 0; r < w; r++ {
			coeff.Set(r, c, sign*v.At(r, c))
		}
	}

	score = mat.NewDense(h, k, nil)
	score.Mul(Xc, coeff)
	return coeff, muX, score
}

//RandomRotation draws a uniformly random n-by-n rotation matrix by
//orthogonalising a standard normal matrix, with the determinant sign
//fixed to +1.
func RandomRotation(rng *rand.Rand, n int) *mat.Dense {
	a := mat.NewDense(n, n, nil)
	for p := 0; p < n; p++ {
		for q := 0; q < n; q++ {
			a.Set(p, q, rng.NormFloat64())
		}
	}
	var qr mat.QR
	qr.Factorize(a)
	q := mat.NewDense(n, n, nil)
	qr.QTo(q)
	if mat.Det(q) < 0 {
		for p := 0; p < n; p++ {
			q.Set(p, 0, -q.At(p, 0))
		}
	}
	return q
}

//GenFeatureExpansionParameters draws the frequency matrix and phase
//vector of a random Fourier feature expansion with nFeatures output
//features and the given length scale.
func GenFeatureExpansionParameters(rng *rand.Rand, X *mat.Dense, nFeatures int, lengthScale float64) (w *mat.Dense, b []float64) {
	_, d := X.Dims()
	w = mat.NewDense(d, nFeatures, nil)
	for p := 0; p < d; p++ {
		for q := 0; q < nFeatures; q++ {
			w.Set(p, q, rng.NormFloat64()/lengthScale)
		}
	}
	b = make([]float64, nFeatures)
	for q := 0; q < nFeatures; q++ {
		b[q] = rng.Float64() * 2 * math.Pi
	}
	return w, b
}

//RandomFeatureExpansion maps X through the random Fourier features
//defined by w and b: sqrt(2/M) * cos(X*w + b).
func RandomFeatureExpansion(X, w *mat.Dense, b []float64) *mat.Dense {
	h, _ := X.Dims()
	_, m := w.Dims()
	out := mat.NewDense(h, m, nil)
	out.Mul(X, w)
	scale := math.Sqrt(2 / float64(m))
	for p := 0; p < h; p++ {
		for q := 0; q < m; q++ {
			out.Set(p, q, scale*math.Cos(out.At(p, q)+b[q]))
		}
	}
	return out
}

//RegCCA computes a regularized canonical correlation analysis between X
//and Y. The joint covariance is stabilised with ridge terms gammaX and
//gammaY on the respective diagonal blocks, whitened through the block
//factors and decomposed by SVD. Directions whose canonical correlation
//does not exceed corrTol are dropped; the results are nil when nothing
//correlates or the factorization degenerates.
func RegCCA(X, Y *mat.Dense, gammaX, gammaY, corrTol float64) (a, b *mat.Dense, r []float64) {
	n, dx := X.Dims()
	_, dy := Y.Dims()
	if n < 2 {
		return nil, nil, nil
	}
	Xc, _ := centerColumns(X)
	Yc, _ := centerColumns(Y)

	scale := 1 / float64(n-1)
	cxx := mat.NewDense(dx, dx, nil)
	cxx.Mul(Xc.T(), Xc)
	cxx.Scale(scale, cxx)
	for q := 0; q < dx; q++ {
		cxx.Set(q, q, cxx.At(q, q)+gammaX)
	}
	cyy := mat.NewDense(dy, dy, nil)
	cyy.Mul(Yc.T(), Yc)
	cyy.Scale(scale, cyy)
	for q := 0; q < dy; q++ {
		cyy.Set(q, q, cyy.At(q, q)+gammaY)
	}
	cxy := mat.NewDense(dx, dy, nil)
	cxy.Mul(Xc.T(), Yc)
	cxy.Scale(scale, cxy)

	var cholX, cholY mat.Cholesky
	if !cholX.Factorize(denseToSym(cxx)) || !cholY.Factorize(denseToSym(cyy)) {
		return nil, nil, nil
	}
	var rx, ry mat.TriDense
	cholX.UTo(&rx)
	cholY.UTo(&ry)

	// M = Rx^-T * Cxy * Ry^-1
	var z mat.Dense
	if err := z.Solve(rx.T(), cxy); err != nil {
		return nil, nil, nil
	}
	var mT mat.Dense
	if err := mT.Solve(ry.T(), z.T()); err != nil {
		return nil, nil, nil
	}
	var m mat.Dense
	m.CloneFrom(mT.T())

	var svd mat.SVD
	if !svd.Factorize(&m, mat.SVDThin) {
		return nil, nil, nil
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	s := svd.Values(nil)

	k := 0
	for k < len(s) && s[k] > corrTol {
		k++
	}
	if k == 0 {
		return nil, nil, nil
	}

	var aFull, bFull mat.Dense
	if err := aFull.Solve(&rx, &u); err != nil {
		return nil, nil, nil
	}
	if err := bFull.Solve(&ry, &v); err != nil {
		return nil, nil, nil
	}

	a = mat.NewDense(dx, k, nil)
	b = mat.NewDense(dy, k, nil)
	for c := 0; c < k; c++ {
		for p := 0; p < dx; p++ {
			a.Set(p, c, aFull.At(p, c))
		}
		for p := 0; p < dy; p++ {
			b.Set(p, c, bFull.At(p, c))
		}
	}
	return a, b, s[:k]
}

//RandomMissingVals replaces every NaN entry of X in place with a draw
//from a normal distribution fitted to the finite entries of its column.
func RandomMissingVals(rng *rand.Rand, X *mat.Dense) {
	h, w := X.Dims()
	mu := nanColMeans(X)
	sd := nanColStds(X)
	for q := 0; q < w; q++ {
		for p := 0; p < h; p++ {
			if math.IsNaN(X.At(p, q)) {
				X.Set(p, q, mu[q]+rng.NormFloat64()*sd[q])
			}
		}
	}
}

func denseToSym(d *mat.Dense) *mat.SymDense {
	n, _ := d.Dims()
	s := mat.NewSymDense(n, nil)
	for p := 0; p < n; p++ {
		for q := p; q < n; q++ {
			s.SetSym(p, q, 0.5*(d.At(p, q)+d.At(q, p)))
		}
	}
	return s
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
