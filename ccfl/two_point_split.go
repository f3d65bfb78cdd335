package ccfl

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

//twoPointMaxMarginSplit handles the special case of a sample that
//collapses to two unique points. When the two points carry different
//outputs it returns the maximum-margin separating hyperplane between
//them: the projection is the difference vector of the points and the
//partition point is the midpoint of their projections. When the points
//cannot be told apart by their outputs no split is beneficial and ok is
//false.
func twoPointMaxMarginSplit(X, Y *mat.Dense, tol float64) (ok bool, projection []float64, partitionPoint float64) {
	h, w := X.Dims()
	_, k := Y.Dims()

	// Assign every row to the group of the first row or its complement.
	bType1 := make([]bool, h)
	n1 := 0
	for p := 0; p < h; p++ {
		same := true
		for q := 0; q < w; q++ {
			if math.Abs(X.At(p, q)-X.At(0, q)) >= tol {
				same = false
				break
			}
		}
		bType1[p] = same
		if same {
			n1++
		}
	}
	if n1 == 0 || n1 == h {
		return false, nil, 0
	}

	// The split only helps when the two groups differ in their outputs.
	mean1 := make([]float64, k)
	mean2 := make([]float64, k)
	iType2 := -1
	for p := 0; p < h; p++ {
		for q := 0; q < k; q++ {
			if bType1[p] {
				mean1[q] += Y.At(p, q) / float64(n1)
			} else {
				mean2[q] += Y.At(p, q) / float64(h-n1)
			}
		}
		if !bType1[p] && iType2 == -1 {
			iType2 = p
		}
	}
	differ := false
	for q := 0; q < k; q++ {
		if math.Abs(mean1[q]-mean2[q]) > tol {
			differ = true
			break
		}
	}
	if !differ {
		return false, nil, 0
	}

	projection = make([]float64, w)
	u1, u2 := 0.0, 0.0
	for q := 0; q < w; q++ {
		projection[q] = X.At(iType2, q) - X.At(0, q)
		u1 += X.At(0, q) * projection[q]
		u2 += X.At(iType2, q) * projection[q]
	}
	partitionPoint = 0.5*u1 + 0.5*u2
	return true, projection, partitionPoint
}
