package ccfl

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

//CCTNode is one node of a canonical correlation tree. A node is either a
//leaf carrying the output distribution (or mean) of its training rows,
//or an internal node carrying the input columns it used, a single
//projection direction over those columns and a partition threshold.
//Leaf and internal are mutually exclusive: the child pointers are nil
//exactly when BLeaf is set.
type CCTNode struct {
	BLeaf   bool      `json:"b_leaf"`
	NPoints int       `json:"n_points"`
	Mean    []float64 `json:"mean"`

	IIn                []int             `json:"i_in,omitempty"`
	DecisionProjection []float64         `json:"decision_projection,omitempty"`
	PartitionPoint     float64           `json:"partition_point,omitempty"`
	FeatureExpansion   *FeatureExpansion `json:"feature_expansion,omitempty"`
	LessThanChild      *CCTNode          `json:"less_than_child,omitempty"`
	GreaterThanChild   *CCTNode          `json:"greater_than_child,omitempty"`
}

//FeatureExpansion stores the parameters of a random feature expansion so
//the expansion can be replayed at prediction time and survives
//serialization.
type FeatureExpansion struct {
	W               [][]float64 `json:"w"`
	B               []float64   `json:"b"`
	IncludeOriginal bool        `json:"include_original"`
}

//Apply maps X through the stored expansion, optionally keeping the raw
//features alongside the expanded ones.
func (f *FeatureExpansion) Apply(X *mat.Dense) *mat.Dense {
	z := RandomFeatureExpansion(X, slicesToDense(f.W), f.B)
	if !f.IncludeOriginal {
		return z
	}
	h, w := X.Dims()
	_, m := z.Dims()
	out := mat.NewDense(h, w+m, nil)
	for p := 0; p < h; p++ {
		for q := 0; q < w; q++ {
			out.Set(p, q, X.At(p, q))
		}
		for q := 0; q < m; q++ {
			out.Set(p, w+q, z.At(p, q))
		}
	}
	return out
}

func setupLeaf(Y *mat.Dense) *CCTNode {
	h, _ := Y.Dims()
	return &CCTNode{BLeaf: true, NPoints: h, Mean: colMeans(Y)}
}

const outputVariationTol = 1e-12

//growCCT grows one canonical correlation tree by greedy recursive
//partitioning. X and Y are the (already processed and encoded) features
//and outputs of the rows reaching this node, featureGroups maps columns
//to their source feature and is masked in place as columns stop varying,
//and depth is zero based. The recursion has no depth ceiling of its own;
//MaxDepthSplit caps it when configured.
func growCCT(rng *rand.Rand, X, Y *mat.Dense, bReg bool, opts *CCFOptions, featureGroups []int, depth int) *CCTNode {
	n, _ := X.Dims()

	minPts := maxInt(2, maxInt(opts.MinPointsForSplit, 2*opts.MinPointsLeaf))
	if n < minPts || (opts.MaxDepthSplit > 0 && depth > opts.MaxDepthSplit) {
		return setupLeaf(Y)
	}
	if !outputsVary(Y, bReg) {
		return setupLeaf(Y)
	}

	iIn := subsampleFeatures(rng, X, opts, featureGroups)
	if len(iIn) == 0 {
		return setupLeaf(Y)
	}

	// Projection bootstrap: the projection may be computed on a resample
	//of the node while the final partition still uses every row.
	xBag := takeCols(X, iIn)
	yBag := Y
	if opts.bProjBootRes {
		boot := make([]int, n)
		for p := range boot {
			boot[p] = rng.Intn(n)
		}
		xBag = takeRowsCols(X, boot, iIn)
		yBag = takeRows(Y, boot)
	}
	if bagIsDegenerate(xBag, yBag, bReg, opts.XVariationTol) {
		if !opts.BContinueProjBootDegenerate {
			return setupLeaf(Y)
		}
		xBag = takeCols(X, iIn)
		yBag = Y
	}

	var (
		decisionProjection []float64
		partitionPoint     float64
		fExp               *FeatureExpansion
		bLessThan          []bool
	)

	nBag, _ := xBag.Dims()
	if opts.Projections.Any() && (nBag == 2 || QueryIfOnlyTwoUniqueRows(xBag)) {
		ok, projVec, pp := twoPointMaxMarginSplit(xBag, yBag, opts.XVariationTol)
		if !ok {
			return setupLeaf(Y)
		}
		decisionProjection = projVec
		partitionPoint = pp
		bLessThan = make([]bool, n)
		nLeft := 0
		for p := 0; p < n; p++ {
			u := 0.0
			for j, c := range iIn {
				u += X.At(p, c) * projVec[j]
			}
			bLessThan[p] = u <= pp
			if bLessThan[p] {
				nLeft++
			}
		}
		// A bootstrapped bag can suggest a hyperplane that fails to
		//separate the full sample, or one cutting off fewer rows than a
		//leaf may hold.
		if nLeft == 0 || nLeft == n {
			return setupLeaf(Y)
		}
		if nLeft < opts.MinPointsLeaf || n-nLeft < opts.MinPointsLeaf {
			return setupLeaf(Y)
		}
	} else {
		var projMat, uTrain *mat.Dense
		if opts.BRCCA {
			wZ, bZ := GenFeatureExpansionParameters(rng, xBag, opts.RCCANFeatures, opts.RCCALengthScale)
			fExp = &FeatureExpansion{W: denseToSlices(wZ), B: bZ, IncludeOriginal: opts.RCCAIncludeOriginal}
			zBag := fExp.Apply(xBag)
			pm, _, _ := RegCCA(zBag, yBag, opts.RCCARegLambda, opts.RCCARegLambda, 1e-8)
			if cols(pm) == 0 {
				_, zw := zBag.Dims()
				pm = mat.NewDense(zw, 1, nil)
				for q := 0; q < zw; q++ {
					pm.Set(q, 0, 1)
				}
			}
			projMat = pm
			uTrain = mat.NewDense(n, cols(pm), nil)
			uTrain.Mul(fExp.Apply(takeCols(X, iIn)), pm)
		} else {
			pm, _, _ := ComponentAnalysis(rng, xBag, yBag, opts.Projections, opts.EpsilonCCA)
			if cols(pm) == 0 {
				return setupLeaf(Y)
			}
			projMat = pm
			uTrain = mat.NewDense(n, cols(pm), nil)
			uTrain.Mul(takeCols(X, iIn), pm)
		}

		bUVaries := QueryIfColumnsVary(uTrain, opts.XVariationTol)
		keep := trueIndices(bUVaries)
		if len(keep) == 0 {
			return setupLeaf(Y)
		}
		uTrain = takeCols(uTrain, keep)
		projMat = takeCols(projMat, keep)

		nDirs := len(keep)
		splits := make([]directionSplit, nDirs)
		u := make([]float64, n)
		for dir := 0; dir < nDirs; dir++ {
			for p := 0; p < n; p++ {
				u[p] = uTrain.At(p, dir)
			}
			splits[dir] = bestSplitForDirection(rng, u, Y, bReg, opts)
		}

		maxGain := math.Inf(-1)
		for _, s := range splits {
			if s.gain > maxGain {
				maxGain = s.gain
			}
		}
		// No candidate split improves on the parent.
		if math.IsInf(maxGain, -1) || maxGain < 0 {
			return setupLeaf(Y)
		}
		ties := make([]int, 0, nDirs)
		for dir, s := range splits {
			if math.Abs(s.gain-maxGain) < tieTol {
				ties = append(ties, dir)
			}
		}
		iDir := pickTied(rng, ties, opts.TieBreak)
		iSplit := splits[iDir].iSplit

		for p := 0; p < n; p++ {
			u[p] = uTrain.At(p, iDir)
		}
		uSort := append([]float64(nil), u...)
		idx := argsortFloats(u)
		for p, i := range idx {
			uSort[p] = u[i]
		}
		partitionPoint = partitionPointFor(uSort, iSplit)

		decisionProjection = make([]float64, len(iIn))
		if opts.BRCCA {
			// RCCA projections act on the expanded features, so the
			//stored direction spans the expansion width instead.
			pr, _ := projMat.Dims()
			decisionProjection = make([]float64, pr)
		}
		for j := range decisionProjection {
			decisionProjection[j] = projMat.At(j, iDir)
		}

		bLessThan = make([]bool, n)
		for p := 0; p < n; p++ {
			bLessThan[p] = u[p] <= partitionPoint
		}
	}

	idxL := make([]int, 0, n)
	idxR := make([]int, 0, n)
	for p, b := range bLessThan {
		if b {
			idxL = append(idxL, p)
		} else {
			idxR = append(idxR, p)
		}
	}

	left := growCCT(rng, takeRows(X, idxL), takeRows(Y, idxL), bReg, opts, featureGroups, depth+1)
	right := growCCT(rng, takeRows(X, idxR), takeRows(Y, idxR), bReg, opts, featureGroups, depth+1)

	return &CCTNode{
		NPoints:            n,
		Mean:               colMeans(Y),
		IIn:                iIn,
		DecisionProjection: decisionProjection,
		PartitionPoint:     partitionPoint,
		FeatureExpansion:   fExp,
		LessThanChild:      left,
		GreaterThanChild:   right,
	}
}

//outputsVary reports whether the outputs still vary: for classification,
//at least one class column neither empty nor full; for regression, some
//output variance remains.
func outputsVary(Y *mat.Dense, bReg bool) bool {
	h, k := Y.Dims()
	if bReg {
		for q := 0; q < k; q++ {
			lo, hi := math.Inf(1), math.Inf(-1)
			for p := 0; p < h; p++ {
				v := Y.At(p, q)
				if v < lo {
					lo = v
				}
				if v > hi {
					hi = v
				}
			}
			if hi-lo > outputVariationTol {
				return true
			}
		}
		return false
	}
	sums := colSums(Y)
	for _, s := range sums {
		if s > outputVariationTol && s < float64(h)-outputVariationTol {
			return true
		}
	}
	return false
}

//subsampleFeatures draws lambda distinct feature groups from the still
//varying pool and expands them to their numeric columns. Groups whose
//drawn columns show no variation in the current rows are masked out of
//the group vector and replaced by further draws until variation is found
//or the pool runs dry.
func subsampleFeatures(rng *rand.Rand, X *mat.Dense, opts *CCFOptions, featureGroups []int) []int {
	pool := uniqueGroups(featureGroups)
	lambda := minInt(len(pool), opts.lambdaRes)
	if lambda == 0 {
		return nil
	}

	iIn := make([]int, 0, lambda)
	nVarying := 0

	check := func(drawn []int) {
		for _, g := range drawn {
			groupVaried := false
			for c, gc := range featureGroups {
				if gc != g {
					continue
				}
				if columnVaries(X, c, opts.XVariationTol) {
					iIn = append(iIn, c)
					groupVaried = true
				} else {
					featureGroups[c] = -1
				}
			}
			if groupVaried {
				nVarying++
			}
		}
	}

	drawn, rest := sampleGroups(rng, pool, lambda)
	pool = rest
	check(drawn)
	for nVarying < lambda && len(pool) > 0 {
		drawn, rest = sampleGroups(rng, pool, minInt(lambda-nVarying, len(pool)))
		pool = rest
		check(drawn)
	}

	if len(iIn) == 0 {
		return nil
	}
	sortedCopy := append([]int(nil), iIn...)
	insertionSortInts(sortedCopy)
	return sortedCopy
}

//sampleGroups draws k elements without replacement via a partial shuffle
//and returns the drawn elements and the untouched remainder.
func sampleGroups(rng *rand.Rand, pool []int, k int) (drawn, rest []int) {
	work := append([]int(nil), pool...)
	for i := 0; i < k; i++ {
		j := i + rng.Intn(len(work)-i)
		work[i], work[j] = work[j], work[i]
	}
	return work[:k], work[k:]
}

func columnVaries(X *mat.Dense, c int, tol float64) bool {
	h, _ := X.Dims()
	lo, hi := math.Inf(1), math.Inf(-1)
	for p := 0; p < h; p++ {
		v := X.At(p, c)
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
	return hi-lo > tol
}

//bagIsDegenerate reports whether the (possibly bootstrapped) projection
//sample carries no usable signal: no input variation, or fewer than two
//classes represented, or no output variance for regression.
func bagIsDegenerate(xBag, yBag *mat.Dense, bReg bool, tol float64) bool {
	if !anyTrue(QueryIfColumnsVary(xBag, tol)) {
		return true
	}
	h, k := yBag.Dims()
	if bReg {
		return !outputsVary(yBag, true)
	}
	sums := colSums(yBag)
	if k > 1 {
		present := 0
		for _, s := range sums {
			if math.Abs(s) > outputVariationTol {
				present++
			}
		}
		return present < 2
	}
	return sums[0] <= outputVariationTol || sums[0] >= float64(h)-outputVariationTol
}

func insertionSortInts(v []int) {
	for i := 1; i < len(v); i++ {
		for j := i; j > 0 && v[j] < v[j-1]; j-- {
			v[j], v[j-1] = v[j-1], v[j]
		}
	}
}

func denseToSlices(m *mat.Dense) [][]float64 {
	h, w := m.Dims()
	out := make([][]float64, h)
	for p := 0; p < h; p++ {
		out[p] = make([]float64, w)
		for q := 0; q < w; q++ {
			out[p][q] = m.At(p, q)
		}
	}
	return out
}

func slicesToDense(s [][]float64) *mat.Dense {
	h := len(s)
	w := len(s[0])
	out := mat.NewDense(h, w, nil)
	for p := 0; p < h; p++ {
		for q := 0; q < w; q++ {
			out.Set(p, q, s[p][q])
		}
	}
	return out
}
