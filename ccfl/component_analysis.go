package ccfl

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

//Projections gives the selection weight of each projection family. At
//every split each weight is compared against an independent uniform
//draw, so a weight of 1 always selects the family, 0 never does and
//fractional weights select it that fraction of the time. When no family
//wins its draw, CCA is used.
type Projections struct {
	CCA          float64 `json:"cca"`
	PCA          float64 `json:"pca"`
	CCAClasswise float64 `json:"cca_classwise"`
	Original     float64 `json:"original"`
	Random       float64 `json:"random"`
}

//Any reports whether at least one projection family can ever be selected.
func (p Projections) Any() bool {
	return p.CCA > 0 || p.PCA > 0 || p.CCAClasswise > 0 || p.Original > 0 || p.Random > 0
}

const componentVariationTol = 1e-12

//ComponentAnalysis computes the candidate projection matrix for a split.
//Constant columns of X take no part in the analysis but keep zero rows
//in the result, so the projection width always equals the width of X.
//A nil projection means no direction could be found at all. The Y-side
//projection and the canonical correlations are only populated when the
//CCA family ran.
func ComponentAnalysis(rng *rand.Rand, X, Y *mat.Dense, proj Projections, epsilonCCA float64) (projMat, yProjMat *mat.Dense, r []float64) {
	_, w := X.Dims()
	bXVaries := QueryIfColumnsVary(X, componentVariationTol)
	iVar := trueIndices(bXVaries)
	dv := len(iVar)
	if dv == 0 {
		return nil, nil, nil
	}
	Xv := takeCols(X, iVar)
	Xc, _ := centerColumns(Xv)
	Yc, _ := centerColumns(Y)

	useCCA := drawFamily(rng, proj.CCA)
	usePCA := drawFamily(rng, proj.PCA)
	useClasswise := drawFamily(rng, proj.CCAClasswise)
	useOriginal := drawFamily(rng, proj.Original)
	useRandom := drawFamily(rng, proj.Random)
	if !(useCCA || usePCA || useClasswise || useOriginal || useRandom) {
		useCCA = true
	}

	var comps []*mat.Dense
	if useCCA {
		a, b, corrs := canonicalCorrelation(Xc, Yc, epsilonCCA)
		if cols(a) > 0 {
			comps = append(comps, a)
			yProjMat = b
			r = corrs
		}
	}
	if usePCA {
		coeff, _, _ := PCALite(Xv, false, true)
		comps = append(comps, coeff)
	}
	if useClasswise {
		_, k := Y.Dims()
		for c := 0; c < k; c++ {
			yc := takeCols(Yc, []int{c})
			a, _, _ := canonicalCorrelation(Xc, yc, epsilonCCA)
			if cols(a) > 0 {
				comps = append(comps, a)
			}
		}
	}
	if useOriginal {
		eye := mat.NewDense(dv, dv, nil)
		for q := 0; q < dv; q++ {
			eye.Set(q, q, 1)
		}
		comps = append(comps, eye)
	}
	if useRandom {
		comps = append(comps, RandomRotation(rng, dv))
	}

	total := 0
	for _, c := range comps {
		total += cols(c)
	}
	if total == 0 {
		return nil, nil, nil
	}

	projMat = mat.NewDense(w, total, nil)
	off := 0
	for _, c := range comps {
		_, k := c.Dims()
		for q := 0; q < k; q++ {
			for p := 0; p < dv; p++ {
				projMat.Set(iVar[p], off+q, c.At(p, q))
			}
		}
		off += k
	}
	return projMat, yProjMat, r
}

func drawFamily(rng *rand.Rand, weight float64) bool {
	if weight <= 0 {
		return false
	}
	if weight >= 1 {
		return true
	}
	return rng.Float64() < weight
}

//canonicalCorrelation performs the CCA core on already centred data via
//SVD whitening of both sides. Directions whose side-singular values fall
//below epsilon relative to the leading one are treated as rank deficient
//and excluded before correlating. Degenerate inputs give nil results.
func canonicalCorrelation(Xc, Yc *mat.Dense, epsilon float64) (a, b *mat.Dense, r []float64) {
	n, dx := Xc.Dims()
	_, dy := Yc.Dims()
	if n < 2 {
		return nil, nil, nil
	}

	ux, sx, vx, kx := thinRankSVD(Xc, epsilon)
	uy, sy, vy, ky := thinRankSVD(Yc, epsilon)
	if kx == 0 || ky == 0 {
		return nil, nil, nil
	}

	c := mat.NewDense(kx, ky, nil)
	c.Mul(ux.T(), uy)

	var svd mat.SVD
	if !svd.Factorize(c, mat.SVDThin) {
		return nil, nil, nil
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	r = svd.Values(nil)

	k := minInt(kx, ky)
	scale := math.Sqrt(float64(n - 1))
	a = whitenBack(vx, sx, &u, dx, kx, k, scale)
	b = whitenBack(vy, sy, &v, dy, ky, k, scale)
	return a, b, r[:k]
}

//thinRankSVD returns the rank-truncated thin SVD factors of Zc.
func thinRankSVD(Zc *mat.Dense, epsilon float64) (u *mat.Dense, s []float64, v *mat.Dense, k int) {
	n, d := Zc.Dims()
	var svd mat.SVD
	if !svd.Factorize(Zc, mat.SVDThin) {
		return nil, nil, nil, 0
	}
	var uf, vf mat.Dense
	svd.UTo(&uf)
	svd.VTo(&vf)
	s = svd.Values(nil)
	if len(s) == 0 || s[0] == 0 {
		return nil, nil, nil, 0
	}
	tol := s[0] * math.Max(float64(maxInt(n, d))*2.220446049250313e-16, epsilon)
	k = 0
	for k < len(s) && s[k] > tol {
		k++
	}
	if k == 0 {
		return nil, nil, nil, 0
	}
	u = mat.NewDense(n, k, nil)
	v = mat.NewDense(d, k, nil)
	for c := 0; c < k; c++ {
		for p := 0; p < n; p++ {
			u.Set(p, c, uf.At(p, c))
		}
		for p := 0; p < d; p++ {
			v.Set(p, c, vf.At(p, c))
		}
	}
	return u, s[:k], v, k
}

//whitenBack maps correlation-space directions back to data space:
//V * diag(1/s) * U[:, :k] * sqrt(n-1).
func whitenBack(v *mat.Dense, s []float64, u *mat.Dense, d, rank, k int, scale float64) *mat.Dense {
	inv := mat.NewDense(rank, k, nil)
	for p := 0; p < rank; p++ {
		for q := 0; q < k; q++ {
			inv.Set(p, q, u.At(p, q)/s[p])
		}
	}
	out := mat.NewDense(d, k, nil)
	out.Mul(v, inv)
	out.Scale(scale, out)
	return out
}

func cols(m *mat.Dense) int {
	if m == nil {
		return 0
	}
	_, c := m.Dims()
	return c
}
