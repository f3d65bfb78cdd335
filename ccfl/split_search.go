package ccfl

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"
)

//directionSplit is the outcome of the split search along one projected
//direction: the best achievable gain and the cut index into the sorted
//order achieving it.
type directionSplit struct {
	gain   float64
	iSplit int
}

//cumLabelSums precomputes the cumulative label sums of the sorted sample
//from both ends as the two planes of a rank-3 tensor: plane 0 holds the
//forward cumulative sums (rows 0..i), plane 1 the complementary sums
//(rows i+1..N-1). The split scan reads left and right conditional
//distributions for every candidate cut from this workspace.
func cumLabelSums(vSort *mat.Dense) *tensor.Dense {
	h, k := vSort.Dims()
	cum := tensor.New(tensor.WithShape(2, h, k), tensor.Of(tensor.Float64))
	for q := 0; q < k; q++ {
		run := 0.0
		for p := 0; p < h; p++ {
			run += vSort.At(p, q)
			HandleError(cum.SetAt(run, 0, p, q))
		}
		total := run
		for p := 0; p < h; p++ {
			fwd, err := cum.At(0, p, q)
			HandleError(err)
			HandleError(cum.SetAt(total-fwd.(float64), 1, p, q))
		}
	}
	return cum
}

func cumAt(cum *tensor.Dense, end, p, q int) float64 {
	v, err := cum.At(end, p, q)
	HandleError(err)
	return v.(float64)
}

//bestSplitForDirection scans every candidate cut along one projected
//direction. u holds the projected values, Y the (encoded) outputs in the
//same row order. Cuts between numerically equal projected values and
//cuts leaving either child below MinPointsLeaf are excluded. Among
//exactly tied maxima the configured tie-break policy picks the cut.
func bestSplitForDirection(rng *rand.Rand, u []float64, Y *mat.Dense, bReg bool, opts *CCFOptions) directionSplit {
	n := len(u)
	_, k := Y.Dims()

	idx := argsortFloats(u)
	uSort := make([]float64, n)
	for p, i := range idx {
		uSort[p] = u[i]
	}

	// bUnique marks cuts falling between distinguishable values.
	bUnique := make([]bool, n-1)
	for p := 0; p < n-1; p++ {
		bUnique[p] = uSort[p+1]-uSort[p] > opts.XVariationTol
	}

	// Column layout of the cumulative workspace: regression stacks the
	//raw sums and the sums of squares; single-output (or separated)
	//classification stacks the class-absent counterpart next to the
	//class-present counts.
	augment := !bReg && (k == 1 || opts.BSepPred)
	kc := k
	if bReg || augment {
		kc = 2 * k
	}
	vSort := mat.NewDense(n, kc, nil)
	for p, i := range idx {
		for q := 0; q < k; q++ {
			y := Y.At(i, q)
			vSort.Set(p, q, y)
			if bReg {
				vSort.Set(p, k+q, y*y)
			} else if augment {
				vSort.Set(p, k+q, 1-y)
			}
		}
	}
	cum := cumLabelSums(vSort)

	taskIDs := opts.taskIDs
	if len(taskIDs) == 0 {
		taskIDs = []int{0}
	}
	nTasks := len(taskIDs)
	taskEnd := func(t int) int {
		if t+1 < nTasks {
			return taskIDs[t+1]
		}
		return k
	}

	//metricFor computes the per-task impurity of one side of a cut. end
	//selects the tensor plane, row the cut index, nPts the side's count.
	metricFor := func(end, row int, nPts float64, out []float64) {
		for t := 0; t < nTasks; t++ {
			m := 0.0
			for q := taskIDs[t]; q < taskEnd(t); q++ {
				if bReg {
					s := cumAt(cum, end, row, q)
					sq := cumAt(cum, end, row, k+q)
					mean := s / nPts
					m += sq/nPts - mean*mean
					continue
				}
				m += classTerm(cumAt(cum, end, row, q)/nPts, opts.SplitCriterion)
				if augment {
					m += classTerm(cumAt(cum, end, row, k+q)/nPts, opts.SplitCriterion)
				}
			}
			out[t] = m
		}
	}

	current := make([]float64, nTasks)
	metricFor(0, n-1, float64(n), current)

	mL := make([]float64, nTasks)
	mR := make([]float64, nTasks)
	gains := make([]float64, n-1)
	for i := 0; i < n-1; i++ {
		nL := i + 1
		nR := n - nL
		if !bUnique[i] || nL < opts.MinPointsLeaf || nR < opts.MinPointsLeaf {
			gains[i] = math.Inf(-1)
			continue
		}
		metricFor(0, i, float64(nL), mL)
		metricFor(1, i, float64(nR), mR)
		gains[i] = combineTaskGains(current, mL, mR, nL, nR, n, opts)
	}

	best := math.Inf(-1)
	for _, g := range gains {
		if g > best {
			best = g
		}
	}
	if math.IsInf(best, -1) {
		return directionSplit{gain: best, iSplit: -1}
	}
	ties := make([]int, 0, 4)
	for i, g := range gains {
		if math.Abs(g-best) < tieTol {
			ties = append(ties, i)
		}
	}
	return directionSplit{gain: best, iSplit: pickTied(rng, ties, opts.TieBreak)}
}

func classTerm(p float64, criterion SplitCriterion) float64 {
	switch criterion {
	case CriterionInfo:
		if p == 0 {
			return 0
		}
		return -p * math.Log2(p)
	default: // gini; the +1 cancels in the gain
		return -p * p
	}
}

//combineTaskGains turns the parent and child impurities into a single
//gain, weighting children by their sample shares and combining tasks by
//the configured mode.
func combineTaskGains(current, mL, mR []float64, nL, nR, n int, opts *CCFOptions) float64 {
	nTasks := len(current)
	combined := 0.0
	if opts.MultiTaskGainCombination == GainMax {
		combined = math.Inf(-1)
	}
	for t := 0; t < nTasks; t++ {
		g := current[t] - (float64(nL)*mL[t]+float64(nR)*mR[t])/float64(n)
		if len(opts.TaskWeights) == nTasks {
			g *= opts.TaskWeights[t]
		}
		if opts.MultiTaskGainCombination == GainMax {
			if g > combined {
				combined = g
			}
		} else {
			combined += g / float64(nTasks)
		}
	}
	return combined
}

func pickTied(rng *rand.Rand, ties []int, policy TieBreak) int {
	if len(ties) == 0 {
		return 0
	}
	if policy == TieBreakFirst {
		return ties[0]
	}
	return ties[rng.Intn(len(ties))]
}

//partitionPointFor places the threshold at the midpoint between the two
//sorted values straddling the cut. The subtraction of the left value
//before halving reduces floating-point cancellation when both values are
//large and close.
func partitionPointFor(uSort []float64, iSplit int) float64 {
	left := uSort[iSplit]
	return (uSort[iSplit]-left)*0.5 + (uSort[iSplit+1]-left)*0.5 + left
}
