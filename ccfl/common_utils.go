package ccfl

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

//FastUnique returns the sorted distinct values of v.
func FastUnique(v []float64) []float64 {
	seen := make(map[float64]struct{}, len(v))
	out := make([]float64, 0, len(v))
	for _, x := range v {
		if _, ok := seen[x]; !ok {
			seen[x] = struct{}{}
			out = append(out, x)
		}
	}
	sort.Float64s(out)
	return out
}

func uniqueGroups(groups []int) []int {
	seen := make(map[int]struct{}, len(groups))
	out := make([]int, 0, len(groups))
	for _, g := range groups {
		if g < 0 {
			continue // masked column
		}
		if _, ok := seen[g]; !ok {
			seen[g] = struct{}{}
			out = append(out, g)
		}
	}
	sort.Ints(out)
	return out
}

//QueryIfColumnsVary reports, for every column of X, whether the spread
//between its smallest and largest value exceeds tol.
func QueryIfColumnsVary(X *mat.Dense, tol float64) []bool {
	h, w := X.Dims()
	varies := make([]bool, w)
	for q := 0; q < w; q++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for p := 0; p < h; p++ {
			v := X.At(p, q)
			if math.IsNaN(v) {
				continue
			}
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		varies[q] = hi-lo > tol
	}
	return varies
}

//QueryIfOnlyTwoUniqueRows reports whether the rows of X collapse to at
//most two distinct points. Checking is skipped for more than ten rows as
//the two-point case then cannot pay for the quadratic scan.
func QueryIfOnlyTwoUniqueRows(X *mat.Dense) bool {
	h, w := X.Dims()
	if h > 10 {
		return false
	}
	rowEq := func(a, b int) bool {
		for q := 0; q < w; q++ {
			if X.At(a, q) != X.At(b, q) {
				return false
			}
		}
		return true
	}
	second := -1
	for p := 1; p < h; p++ {
		if rowEq(p, 0) {
			continue
		}
		if second == -1 {
			second = p
			continue
		}
		if !rowEq(p, second) {
			return false
		}
	}
	return true
}

//nanColMeans returns per-column means of X ignoring NaN entries. A column
//with no finite entries gets mean zero.
func nanColMeans(X *mat.Dense) []float64 {
	h, w := X.Dims()
	mu := make([]float64, w)
	for q := 0; q < w; q++ {
		sum, n := 0.0, 0
		for p := 0; p < h; p++ {
			v := X.At(p, q)
			if math.IsNaN(v) {
				continue
			}
			sum += v
			n++
		}
		if n > 0 {
			mu[q] = sum / float64(n)
		}
	}
	return mu
}

//nanColStds returns per-column sample standard deviations of X (ddof 1)
//ignoring NaN entries.
func nanColStds(X *mat.Dense) []float64 {
	h, w := X.Dims()
	mu := nanColMeans(X)
	sd := make([]float64, w)
	for q := 0; q < w; q++ {
		sum, n := 0.0, 0
		for p := 0; p < h; p++ {
			v := X.At(p, q)
			if math.IsNaN(v) {
				continue
			}
			d := v - mu[q]
			sum += d * d
			n++
		}
		if n > 1 {
			sd[q] = math.Sqrt(sum / float64(n-1))
		}
	}
	return sd
}

//colMeans returns the plain per-column means of Y.
func colMeans(Y *mat.Dense) []float64 {
	h, w := Y.Dims()
	mu := make([]float64, w)
	for q := 0; q < w; q++ {
		sum := 0.0
		for p := 0; p < h; p++ {
			sum += Y.At(p, q)
		}
		mu[q] = sum / float64(h)
	}
	return mu
}

func colSums(Y *mat.Dense) []float64 {
	h, w := Y.Dims()
	s := make([]float64, w)
	for q := 0; q < w; q++ {
		for p := 0; p < h; p++ {
			s[q] += Y.At(p, q)
		}
	}
	return s
}

//takeRows copies the listed rows of X into a new matrix in the given order.
func takeRows(X *mat.Dense, idx []int) *mat.Dense {
	_, w := X.Dims()
	out := mat.NewDense(len(idx), w, nil)
	for p, i := range idx {
		for q := 0; q < w; q++ {
			out.Set(p, q, X.At(i, q))
		}
	}
	return out
}

//takeCols copies the listed columns of X into a new matrix in the given order.
func takeCols(X *mat.Dense, cols []int) *mat.Dense {
	h, _ := X.Dims()
	out := mat.NewDense(h, len(cols), nil)
	for p := 0; p < h; p++ {
		for q, c := range cols {
			out.Set(p, q, X.At(p, c))
		}
	}
	return out
}

//takeRowsCols copies the intersection of the listed rows and columns.
func takeRowsCols(X *mat.Dense, idx, cols []int) *mat.Dense {
	out := mat.NewDense(len(idx), len(cols), nil)
	for p, i := range idx {
		for q, c := range cols {
			out.Set(p, q, X.At(i, c))
		}
	}
	return out
}

//centerColumns subtracts per-column means, returning the centred copy and
//the means used.
func centerColumns(X *mat.Dense) (*mat.Dense, []float64) {
	h, w := X.Dims()
	mu := colMeans(X)
	out := mat.NewDense(h, w, nil)
	for p := 0; p < h; p++ {
		for q := 0; q < w; q++ {
			out.Set(p, q, X.At(p, q)-mu[q])
		}
	}
	return out, mu
}

func anyTrue(bs []bool) bool {
	for _, b := range bs {
		if b {
			return true
		}
	}
	return false
}

func trueIndices(bs []bool) []int {
	out := make([]int, 0, len(bs))
	for i, b := range bs {
		if b {
			out = append(out, i)
		}
	}
	return out
}

//argsortFloats returns the indices that sort v ascending, stable in the
//original order for equal values.
func argsortFloats(v []float64) []int {
	idx := make([]int, len(v))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool { return v[idx[i]] < v[idx[j]] })
	return idx
}
