package ccfl

import (
	"math"
	"math/rand"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

//CCT is one grown canonical correlation tree together with everything
//needed to replay it on unseen rows: the optional input rotation and
//the indices of training rows the tree never saw.
type CCT struct {
	Root       *CCTNode         `json:"root"`
	RotDetails *RotationDetails `json:"rot_details,omitempty"`
	IOutOfBag  []int            `json:"i_out_of_bag,omitempty"`
}

//TrainParams bundles the forest level knobs that are not per split
//options: ensemble size, the master seed every per tree stream derives
//from, and the worker count for parallel growth.
type TrainParams struct {
	NTrees     int         `json:"n_trees"`
	Seed       int64       `json:"seed"`
	NWorkers   int         `json:"n_workers"`
	BKeepTrees bool        `json:"b_keep_trees"`
	Options    *CCFOptions `json:"options"`
}

//Forest is a fitted canonical correlation forest. MuY and StdY undo the
//output normalization of regression forests, MissingMeans impute NaN
//cells on unseen rows, and OOBError is NaN when the configuration
//produced no out-of-bag rows. InputDetails, when set by the caller,
//records the input transform the training features went through so
//prediction inputs can be pushed through the same transform.
type Forest struct {
	Options      *CCFOptions          `json:"options"`
	Trees        []*CCT               `json:"trees"`
	BReg         bool                 `json:"b_reg"`
	D            int                  `json:"d"`
	MuY          []float64            `json:"mu_y,omitempty"`
	StdY         []float64            `json:"std_y,omitempty"`
	MissingMeans []float64            `json:"missing_means,omitempty"`
	OOBError     float64              `json:"oob_error"`
	InputDetails *InputProcessDetails `json:"input_details,omitempty"`

	codec LabelCodec
}

//Codec exposes the label codec the forest was fitted with.
func (f *Forest) Codec() LabelCodec { return f.codec }

//NewCCF fits a canonical correlation forest. X holds the processed
//features, target the outputs in one of the supported encodings, and
//featureGroups maps columns of X to their source feature so expanded
//categoricals are sampled as one unit; nil treats every column as its
//own group.
func NewCCF(params TrainParams, X *mat.Dense, target Target, featureGroups []int) (*Forest, error) {
	n, d := X.Dims()
	if n == 0 || d == 0 {
		return nil, &InvalidInputError{Reason: "empty training matrix"}
	}

	y, codec, bReg, err := target.encode()
	if err != nil {
		return nil, err
	}
	if yh, _ := y.Dims(); yh != n {
		return nil, &InvalidInputError{Reason: "row count mismatch between features and outputs"}
	}

	opts := params.Options
	if opts == nil {
		opts = DefaultOptions()
		if bReg {
			opts.SplitCriterion = CriterionMSE
		}
	}
	opts = opts.clone()
	if err := opts.Validate(bReg); err != nil {
		return nil, err
	}
	if params.NTrees < 1 {
		return nil, &InvalidOptionError{Field: "NTrees", Reason: "must be at least 1"}
	}
	if !params.BKeepTrees {
		Logger().Warn("discarding trees would leave nothing to predict with, keeping them")
	}

	if featureGroups == nil {
		featureGroups = make([]int, d)
		for q := range featureGroups {
			featureGroups[q] = q
		}
	} else if len(featureGroups) != d {
		return nil, &InvalidInputError{Reason: "feature group vector length mismatch"}
	}
	opts.resolveForD(len(uniqueGroups(featureGroups)))
	if codec != nil {
		if tids := codec.TaskIDs(); len(tids) > 1 {
			opts.taskIDs = tids
		}
	}

	forest := &Forest{
		Options:  opts,
		Trees:    make([]*CCT, params.NTrees),
		BReg:     bReg,
		D:        d,
		OOBError: math.NaN(),
		codec:    codec,
	}

	// Mean imputation happens once on the training matrix; the random
	//method leaves NaN cells in place so every tree can redraw them. The
	//column means also serve unseen rows at prediction time.
	xWork := mat.DenseCopyOf(X)
	forest.MissingMeans = nanColMeans(xWork)
	if opts.MissingValues != MissingRandom {
		imputeMeans(xWork, forest.MissingMeans)
	}

	yWork := y
	if bReg {
		forest.MuY = colMeans(y)
		forest.StdY = nanColStds(y)
		for q, s := range forest.StdY {
			if s == 0 {
				forest.StdY[q] = 1
			}
		}
		yh, yk := y.Dims()
		yWork = mat.NewDense(yh, yk, nil)
		for p := 0; p < yh; p++ {
			for q := 0; q < yk; q++ {
				yWork.Set(p, q, (y.At(p, q)-forest.MuY[q])/forest.StdY[q])
			}
		}
	}

	nWorkers := params.NWorkers
	if nWorkers <= 1 || params.NTrees == 1 {
		for pos := range forest.Trees {
			forest.Trees[pos] = genTree(params.Seed+int64(pos), xWork, yWork, bReg, opts, featureGroups)
		}
	} else {
		pool := NewPool(minInt(nWorkers, params.NTrees))
		for pos := range forest.Trees {
			pool.AddTask(&treeTask{
				seed: params.Seed + int64(pos), x: xWork, y: yWork,
				bReg: bReg, opts: opts, groups: featureGroups,
				out: forest.Trees, pos: pos,
			})
		}
		pool.Close()
		pool.WaitAll()
	}

	xEval := xWork
	if opts.MissingValues == MissingRandom {
		xEval = mat.DenseCopyOf(xWork)
		imputeMeans(xEval, forest.MissingMeans)
	}
	forest.OOBError = outOfBagError(forest, xEval, y)
	Logger().Info("forest fitted",
		zap.Int("n_trees", params.NTrees),
		zap.Int("n_rows", n),
		zap.Int("lambda", opts.lambdaRes),
		zap.Bool("b_reg", bReg),
		zap.Float64("oob_error", forest.OOBError))
	return forest, nil
}

//treeTask grows one tree on a worker goroutine. Trees write into
//distinct slots of a shared slice, so no locking is needed; each task
//reseeds from the master seed and its position, which makes parallel
//and sequential growth produce identical forests.
type treeTask struct {
	seed   int64
	x, y   *mat.Dense
	bReg   bool
	opts   *CCFOptions
	groups []int
	out    []*CCT
	pos    int
}

func (t *treeTask) Execute() {
	t.out[t.pos] = genTree(t.seed, t.x, t.y, t.bReg, t.opts, t.groups)
}

//genTree grows one tree: bag the rows, rotate the bag, grow. The group
//vector is copied per tree because growth masks dead columns in place.
func genTree(seed int64, X, Y *mat.Dense, bReg bool, opts *CCFOptions, featureGroups []int) *CCT {
	rng := rand.New(rand.NewSource(seed))
	n, _ := X.Dims()

	iTrain, iOut := bagRows(rng, n, opts)
	xBag := takeRows(X, iTrain)
	yBag := takeRows(Y, iTrain)
	if opts.MissingValues == MissingRandom {
		RandomMissingVals(rng, xBag)
	}

	xRot, rd := makeRotation(rng, xBag, yBag, bReg, opts)

	groups := append([]int(nil), featureGroups...)
	root := growCCT(rng, xRot, yBag, bReg, opts, groups, 0)
	return &CCT{Root: root, RotDetails: rd, IOutOfBag: iOut}
}

//bagRows draws the training rows of one tree. Bagging samples
//n*PropTrain rows with replacement; without bagging, PropTrain below
//one takes a subsample without replacement and PropTrain of one keeps
//every row. iOut lists the rows the tree never saw.
func bagRows(rng *rand.Rand, n int, opts *CCFOptions) (iTrain, iOut []int) {
	nTrain := int(math.Ceil(opts.PropTrain * float64(n)))
	if opts.bBagTreesRes {
		iTrain = make([]int, nTrain)
		seen := make([]bool, n)
		for p := range iTrain {
			i := rng.Intn(n)
			iTrain[p] = i
			seen[i] = true
		}
		insertionSortInts(iTrain)
		for i, s := range seen {
			if !s {
				iOut = append(iOut, i)
			}
		}
		return iTrain, iOut
	}
	if nTrain >= n {
		iTrain = make([]int, n)
		for p := range iTrain {
			iTrain[p] = p
		}
		return iTrain, nil
	}
	perm := rng.Perm(n)
	iTrain = append([]int(nil), perm[:nTrain]...)
	iOut = append([]int(nil), perm[nTrain:]...)
	insertionSortInts(iTrain)
	insertionSortInts(iOut)
	return iTrain, iOut
}

//imputeMeans replaces NaN cells with the column means in place.
func imputeMeans(X *mat.Dense, mu []float64) {
	h, w := X.Dims()
	for p := 0; p < h; p++ {
		for q := 0; q < w; q++ {
			if math.IsNaN(X.At(p, q)) {
				v := mu[q]
				if math.IsNaN(v) {
					v = 0
				}
				X.Set(p, q, v)
			}
		}
	}
}

//outOfBagError averages, per training row, the predictions of every
//tree that did not see the row, and scores the averages against the raw
//outputs: mean squared error for regression, misclassification rate
//otherwise. Rows every tree saw are skipped; NaN when no row was ever
//out of bag.
func outOfBagError(f *Forest, X, yRaw *mat.Dense) float64 {
	n, _ := X.Dims()
	_, k := yRaw.Dims()
	sums := make([][]float64, n)
	counts := make([]int, n)

	for _, t := range f.Trees {
		if len(t.IOutOfBag) == 0 {
			continue
		}
		xo := t.RotDetails.Apply(takeRows(X, t.IOutOfBag))
		for p, row := range t.IOutOfBag {
			pred := predictRowFromTree(t.Root, rowOf(xo, p))
			if sums[row] == nil {
				sums[row] = make([]float64, k)
			}
			for q := 0; q < k; q++ {
				sums[row][q] += pred[q]
			}
			counts[row]++
		}
	}

	total, nScored := 0.0, 0
	for p := 0; p < n; p++ {
		if counts[p] == 0 {
			continue
		}
		nScored++
		avg := sums[p]
		for q := range avg {
			avg[q] /= float64(counts[p])
		}
		if f.BReg {
			for q := 0; q < k; q++ {
				d := avg[q]*f.StdY[q] + f.MuY[q] - yRaw.At(p, q)
				total += d * d
			}
			continue
		}
		if misclassified(f, avg, yRaw, p) {
			total++
		}
	}
	if nScored == 0 {
		return math.NaN()
	}
	if f.BReg {
		return total / float64(nScored*k)
	}
	return total / float64(nScored)
}

//misclassified compares the averaged class scores with the true row:
//threshold at one half per column when outputs are scored separately,
//argmax within each task block otherwise.
func misclassified(f *Forest, avg []float64, yRaw *mat.Dense, row int) bool {
	_, k := yRaw.Dims()
	if f.Options.BSepPred {
		for q := 0; q < k; q++ {
			if (avg[q] > 0.5) != (yRaw.At(row, q) > 0.5) {
				return true
			}
		}
		return false
	}
	tids := f.Options.taskIDs
	if len(tids) == 0 {
		tids = []int{0}
	}
	for t := 0; t < len(tids); t++ {
		end := k
		if t+1 < len(tids) {
			end = tids[t+1]
		}
		if argmaxRange(avg, tids[t], end) != argmaxRow(yRaw, row, tids[t], end) {
			return true
		}
	}
	return false
}

func argmaxRange(v []float64, lo, hi int) int {
	best, bi := math.Inf(-1), lo
	for q := lo; q < hi; q++ {
		if v[q] > best {
			best, bi = v[q], q
		}
	}
	return bi - lo
}

func argmaxRow(m *mat.Dense, row, lo, hi int) int {
	best, bi := math.Inf(-1), lo
	for q := lo; q < hi; q++ {
		if v := m.At(row, q); v > best {
			best, bi = v, q
		}
	}
	return bi - lo
}

func rowOf(m *mat.Dense, p int) []float64 {
	_, w := m.Dims()
	out := make([]float64, w)
	for q := 0; q < w; q++ {
		out[q] = m.At(p, q)
	}
	return out
}
