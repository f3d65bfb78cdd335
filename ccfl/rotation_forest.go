package ccfl

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

//RotationDetails records a per tree rotation of the input space so it
//can be replayed on unseen rows before descending the tree.
type RotationDetails struct {
	Kind TreeRotation `json:"kind"`
	R    [][]float64  `json:"r"`
	MuX  []float64    `json:"mu_x,omitempty"`
}

//Apply rotates X into the frame the tree was grown in.
func (rd *RotationDetails) Apply(X *mat.Dense) *mat.Dense {
	if rd == nil || rd.Kind == RotationNone {
		return X
	}
	work := X
	if len(rd.MuX) > 0 {
		h, w := X.Dims()
		work = mat.NewDense(h, w, nil)
		for p := 0; p < h; p++ {
			for q := 0; q < w; q++ {
				work.Set(p, q, X.At(p, q)-rd.MuX[q])
			}
		}
	}
	r := slicesToDense(rd.R)
	h, _ := work.Dims()
	_, rw := r.Dims()
	out := mat.NewDense(h, rw, nil)
	out.Mul(work, r)
	return out
}

//makeRotation builds the configured rotation from the training rows of
//one tree and returns the rotated features together with the replay
//details. RotationNone returns the input untouched.
func makeRotation(rng *rand.Rand, X, Y *mat.Dense, bReg bool, opts *CCFOptions) (*mat.Dense, *RotationDetails) {
	switch opts.TreeRotation {
	case RotationRandom:
		_, w := X.Dims()
		r := RandomRotation(rng, w)
		rd := &RotationDetails{Kind: RotationRandom, R: denseToSlices(r)}
		return rd.Apply(X), rd
	case RotationPCA:
		coeff, mu, score := PCALite(X, false, true)
		rd := &RotationDetails{Kind: RotationPCA, R: denseToSlices(coeff), MuX: mu}
		return score, rd
	case RotationForest:
		r, mu := rotationForestRotation(rng, X, Y, bReg, opts)
		rd := &RotationDetails{Kind: RotationForest, R: denseToSlices(r), MuX: mu}
		return rd.Apply(X), rd
	default:
		return X, nil
	}
}

//rotationForestRotation builds a block diagonal PCA rotation in the
//manner of rotation forests: features are split into random groups of
//size M, each group runs PCA on a row subsample that leaves out a
//random share of classes and keeps only a proportion of the remaining
//rows, and the per group loadings are reassembled into one matrix.
func rotationForestRotation(rng *rand.Rand, X, Y *mat.Dense, bReg bool, opts *CCFOptions) (*mat.Dense, []float64) {
	n, d := X.Dims()
	mu := colMeans(X)
	xc := mat.NewDense(n, d, nil)
	for p := 0; p < n; p++ {
		for q := 0; q < d; q++ {
			xc.Set(p, q, X.At(p, q)-mu[q])
		}
	}

	perm := rng.Perm(d)
	r := mat.NewDense(d, d, nil)
	for lo := 0; lo < d; lo += opts.RotForM {
		hi := minInt(lo+opts.RotForM, d)
		group := perm[lo:hi]

		rows := rotForRowSample(rng, Y, bReg, opts)
		if len(rows) < 2 {
			rows = make([]int, n)
			for p := range rows {
				rows[p] = p
			}
		}
		sub := takeRowsCols(xc, rows, group)
		coeff, _, _ := PCALite(sub, false, true)
		for a, qa := range group {
			for b, qb := range group {
				r.Set(qa, qb, coeff.At(a, b))
			}
		}
	}
	return r, mu
}

//rotForRowSample leaves out a random share of classes and then keeps a
//RotForPS proportion of the surviving rows without replacement. For
//regression the class stage is skipped.
func rotForRowSample(rng *rand.Rand, Y *mat.Dense, bReg bool, opts *CCFOptions) []int {
	n, k := Y.Dims()
	keep := make([]bool, n)
	if bReg || k == 1 {
		for p := range keep {
			keep[p] = true
		}
	} else {
		classKeep := make([]bool, k)
		nKept := 0
		for q := 0; q < k; q++ {
			if rng.Float64() >= opts.RotForPClassLeaveOut {
				classKeep[q] = true
				nKept++
			}
		}
		if nKept == 0 {
			classKeep[rng.Intn(k)] = true
		}
		for p := 0; p < n; p++ {
			for q := 0; q < k; q++ {
				if classKeep[q] && Y.At(p, q) > 0.5 {
					keep[p] = true
					break
				}
			}
		}
	}

	cand := trueIndices(keep)
	nSample := int(math.Ceil(opts.RotForPS * float64(len(cand))))
	if nSample >= len(cand) {
		return cand
	}
	for i := 0; i < nSample; i++ {
		j := i + rng.Intn(len(cand)-i)
		cand[i], cand[j] = cand[j], cand[i]
	}
	out := cand[:nSample]
	insertionSortInts(out)
	return out
}
