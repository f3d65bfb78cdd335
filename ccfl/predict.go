package ccfl

import (
	"math"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

//predictRowFromTree descends one tree with one (already rotated) row
//and returns the leaf mean.
func predictRowFromTree(node *CCTNode, x []float64) []float64 {
	for !node.BLeaf {
		u := projectRow(node, x)
		if u <= node.PartitionPoint {
			node = node.LessThanChild
		} else {
			node = node.GreaterThanChild
		}
	}
	return node.Mean
}

//projectRow evaluates the node's decision direction on the row,
//replaying the feature expansion when the node carries one.
func projectRow(node *CCTNode, x []float64) float64 {
	if node.FeatureExpansion == nil {
		u := 0.0
		for j, c := range node.IIn {
			u += x[c] * node.DecisionProjection[j]
		}
		return u
	}
	sub := mat.NewDense(1, len(node.IIn), nil)
	for j, c := range node.IIn {
		sub.Set(0, j, x[c])
	}
	z := node.FeatureExpansion.Apply(sub)
	u := 0.0
	for j := range node.DecisionProjection {
		u += z.At(0, j) * node.DecisionProjection[j]
	}
	return u
}

//Predict averages the leaf outputs of every tree over the rows of X.
//For classification the result rows hold per class scores summing to
//one within each task block; for regression they hold the predictions
//on the original output scale. NaN cells are imputed with the training
//column means first.
func (f *Forest) Predict(X *mat.Dense) (*mat.Dense, error) {
	n, d := X.Dims()
	if d != f.D {
		return nil, &InvalidInputError{Reason: "column count differs from the training data"}
	}
	k := f.numOutputs()

	xc := mat.DenseCopyOf(X)
	for p := 0; p < n; p++ {
		for q := 0; q < d; q++ {
			if math.IsNaN(xc.At(p, q)) {
				v := f.MissingMeans[q]
				if math.IsNaN(v) {
					v = 0
				}
				xc.Set(p, q, v)
			}
		}
	}

	out := mat.NewDense(n, k, nil)
	for _, t := range f.Trees {
		xr := t.RotDetails.Apply(xc)
		for p := 0; p < n; p++ {
			pred := predictRowFromTree(t.Root, rowOf(xr, p))
			for q := 0; q < k; q++ {
				out.Set(p, q, out.At(p, q)+pred[q])
			}
		}
	}
	nt := float64(len(f.Trees))
	for p := 0; p < n; p++ {
		for q := 0; q < k; q++ {
			v := out.At(p, q) / nt
			if f.BReg {
				v = v*f.StdY[q] + f.MuY[q]
			}
			out.Set(p, q, v)
		}
	}
	return out, nil
}

func (f *Forest) numOutputs() int {
	if f.codec != nil {
		return f.codec.NumEncoded()
	}
	return len(f.MuY)
}

//PredictClassIndices reduces the class scores to one class index per
//task block by argmax. With BSepPred set, every output column is
//instead thresholded at one half and returned as a 0/1 indicator.
func (f *Forest) PredictClassIndices(X *mat.Dense) ([][]int, error) {
	if f.BReg {
		return nil, &InvalidInputError{Reason: "class prediction on a regression forest"}
	}
	scores, err := f.Predict(X)
	if err != nil {
		return nil, err
	}
	n, k := scores.Dims()

	out := make([][]int, n)
	if f.Options.BSepPred {
		for p := 0; p < n; p++ {
			out[p] = make([]int, k)
			for q := 0; q < k; q++ {
				if scores.At(p, q) > 0.5 {
					out[p][q] = 1
				}
			}
		}
		return out, nil
	}

	tids := f.codec.TaskIDs()
	for p := 0; p < n; p++ {
		out[p] = make([]int, len(tids))
		row := rowOf(scores, p)
		for t := range tids {
			end := k
			if t+1 < len(tids) {
				end = tids[t+1]
			}
			out[p][t] = argmaxRange(row, tids[t], end)
		}
	}
	return out, nil
}

//PredictLabels maps the argmax class indices back through the codec to
//the representation the training labels arrived in: integers, strings
//or per task integers. One-hot trained forests report the class index.
func (f *Forest) PredictLabels(X *mat.Dense) ([][]string, error) {
	idx, err := f.PredictClassIndices(X)
	if err != nil {
		return nil, err
	}
	out := make([][]string, len(idx))
	for p, row := range idx {
		out[p] = make([]string, len(row))
		for t, i := range row {
			out[p][t] = f.labelName(t, i)
		}
	}
	return out, nil
}

func (f *Forest) labelName(task, index int) string {
	switch c := f.codec.(type) {
	case *IntegerLabels:
		return strconv.Itoa(c.Classes[index])
	case *StringLabels:
		return c.Classes[index]
	case *MultiIntegerLabels:
		return strconv.Itoa(c.ClassesPerTask[task][index])
	default:
		return strconv.Itoa(index)
	}
}
