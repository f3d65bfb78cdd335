package ccfl

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func newTestRand() *rand.Rand {
	return rand.New(rand.NewSource(1))
}

func twoBlobData() (*mat.Dense, IntTarget) {
	X := mat.NewDense(12, 2, []float64{
		0.0, 0.1,
		0.2, 0.0,
		0.1, 0.3,
		0.3, 0.2,
		0.0, 0.2,
		0.2, 0.3,
		3.0, 3.1,
		3.2, 3.0,
		3.1, 3.3,
		3.3, 3.2,
		3.0, 3.2,
		3.2, 3.3,
	})
	labels := IntTarget{0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 1, 1}
	return X, labels
}

func noResampleOptions() *CCFOptions {
	opts := DefaultOptions()
	f := false
	opts.BBagTrees = &f
	opts.BProjBoot = &f
	opts.TieBreak = TieBreakFirst
	return opts
}

func TestNewCCFDeterministicForSeed(t *testing.T) {
	X, labels := twoBlobData()
	params := TrainParams{NTrees: 4, Seed: 7, BKeepTrees: true}

	clfA, err := NewCCF(params, X, labels, nil)
	if err != nil {
		t.Fatal(err)
	}
	clfB, err := NewCCF(params, X, labels, nil)
	if err != nil {
		t.Fatal(err)
	}

	predA, err := clfA.Predict(X)
	if err != nil {
		t.Fatal(err)
	}
	predB, err := clfB.Predict(X)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.Equal(predA, predB) {
		t.Error("the same seed must reproduce the same forest")
	}
}

func TestNewCCFParallelMatchesSequential(t *testing.T) {
	X, labels := twoBlobData()

	seq, err := NewCCF(TrainParams{NTrees: 6, Seed: 11, BKeepTrees: true}, X, labels, nil)
	if err != nil {
		t.Fatal(err)
	}
	par, err := NewCCF(TrainParams{NTrees: 6, Seed: 11, NWorkers: 3, BKeepTrees: true}, X, labels, nil)
	if err != nil {
		t.Fatal(err)
	}

	predSeq, err := seq.Predict(X)
	if err != nil {
		t.Fatal(err)
	}
	predPar, err := par.Predict(X)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.Equal(predSeq, predPar) {
		t.Error("worker count must not change the fitted forest")
	}
	if !(math.IsNaN(seq.OOBError) && math.IsNaN(par.OOBError)) &&
		seq.OOBError != par.OOBError {
		t.Errorf("out-of-bag errors differ: %v vs %v", seq.OOBError, par.OOBError)
	}
}

func TestNewCCFOutOfBagClassification(t *testing.T) {
	X, labels := twoBlobData()
	params := TrainParams{
		NTrees: 10, Seed: 3, BKeepTrees: true,
		Options: DefaultOptionsCCFBag(),
	}

	clf, err := NewCCF(params, X, labels, nil)
	if err != nil {
		t.Fatal(err)
	}
	if math.IsNaN(clf.OOBError) {
		t.Fatal("bagged training must produce an out-of-bag estimate")
	}
	if clf.OOBError < 0 || clf.OOBError > 1 {
		t.Errorf("a misclassification rate lies in [0,1], got %v", clf.OOBError)
	}
	// Two well separated blobs should be easy even out of bag.
	if clf.OOBError > 0.5 {
		t.Errorf("out-of-bag error suspiciously high: %v", clf.OOBError)
	}
}

func TestNewCCFRegressionRecoversScale(t *testing.T) {
	n := 10
	X := mat.NewDense(n, 1, nil)
	Y := mat.NewDense(n, 1, nil)
	for p := 0; p < n; p++ {
		X.Set(p, 0, float64(p+1))
		Y.Set(p, 0, 3*float64(p+1)+2)
	}

	opts := noResampleOptions()
	opts.SplitCriterion = CriterionMSE
	clf, err := NewCCF(TrainParams{NTrees: 3, Seed: 5, BKeepTrees: true, Options: opts},
		X, RegressionTarget{Y: Y}, nil)
	if err != nil {
		t.Fatal(err)
	}

	pred, err := clf.Predict(X)
	if err != nil {
		t.Fatal(err)
	}
	for p := 0; p < n; p++ {
		if math.Abs(pred.At(p, 0)-Y.At(p, 0)) > 1e-6 {
			t.Errorf("training row %d: got %v, want %v", p, pred.At(p, 0), Y.At(p, 0))
		}
	}
}

func TestNewCCFRegressionOutOfBag(t *testing.T) {
	n := 20
	X := mat.NewDense(n, 1, nil)
	Y := mat.NewDense(n, 1, nil)
	for p := 0; p < n; p++ {
		X.Set(p, 0, float64(p))
		Y.Set(p, 0, 2*float64(p))
	}

	opts := DefaultOptionsCCFBag()
	opts.SplitCriterion = CriterionMSE
	clf, err := NewCCF(TrainParams{NTrees: 8, Seed: 9, BKeepTrees: true, Options: opts},
		X, RegressionTarget{Y: Y}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if math.IsNaN(clf.OOBError) || clf.OOBError < 0 {
		t.Errorf("expected a non-negative out-of-bag mse, got %v", clf.OOBError)
	}
}

func TestNewCCFRejectsBadOptions(t *testing.T) {
	X, labels := twoBlobData()

	opts := DefaultOptions()
	opts.SplitCriterion = CriterionMSE
	if _, err := NewCCF(TrainParams{NTrees: 2, BKeepTrees: true, Options: opts}, X, labels, nil); err == nil {
		t.Error("mse splitting on a classification target must be rejected")
	}

	if _, err := NewCCF(TrainParams{NTrees: 0, BKeepTrees: true}, X, labels, nil); err == nil {
		t.Error("a forest needs at least one tree")
	}

	if _, err := NewCCF(TrainParams{NTrees: 2, BKeepTrees: true}, X, labels, []int{0}); err == nil {
		t.Error("a short feature group vector must be rejected")
	}
}

func TestNewCCFKeepsTreesDespiteFlag(t *testing.T) {
	X, labels := twoBlobData()

	clf, err := NewCCF(TrainParams{NTrees: 2, Seed: 1, BKeepTrees: false}, X, labels, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(clf.Trees) != 2 || clf.Trees[0] == nil {
		t.Error("trees must survive training regardless of the keep flag")
	}
}

func TestNewCCFConstantInputGivesLeafRoots(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 2,
		1, 2,
		1, 2,
		1, 2,
	})
	labels := IntTarget{0, 0, 1, 1}

	clf, err := NewCCF(TrainParams{NTrees: 3, Seed: 1, BKeepTrees: true}, X, labels, nil)
	if err != nil {
		t.Fatal(err)
	}
	for pos, tree := range clf.Trees {
		if !tree.Root.BLeaf {
			t.Errorf("tree %d grew a split on constant features", pos)
		}
	}
}

func TestNewCCFRandomImputationPerTree(t *testing.T) {
	X, labels := twoBlobData()
	X.Set(2, 0, math.NaN())
	X.Set(8, 1, math.NaN())

	opts := DefaultOptions()
	opts.MissingValues = MissingRandom
	clf, err := NewCCF(TrainParams{NTrees: 4, Seed: 19, BKeepTrees: true, Options: opts},
		X, labels, nil)
	if err != nil {
		t.Fatal(err)
	}

	pred, err := clf.Predict(X)
	if err != nil {
		t.Fatal(err)
	}
	h, k := pred.Dims()
	for p := 0; p < h; p++ {
		for q := 0; q < k; q++ {
			if math.IsNaN(pred.At(p, q)) {
				t.Fatal("missing cells must never leak into predictions")
			}
		}
	}
}

func TestBagRowsWithReplacement(t *testing.T) {
	opts := DefaultOptions()
	tr := true
	opts.BBagTrees = &tr
	opts.resolveForD(4)

	rng := newTestRand()
	iTrain, iOut := bagRows(rng, 10, opts)
	if len(iTrain) != 10 {
		t.Fatalf("a full bootstrap draws as many rows as the sample has, got %d", len(iTrain))
	}
	seen := make(map[int]bool)
	for _, i := range iTrain {
		seen[i] = true
	}
	for _, i := range iOut {
		if seen[i] {
			t.Errorf("row %d is both in and out of bag", i)
		}
	}
	if len(seen)+len(iOut) != 10 {
		t.Errorf("in-bag uniques and out-of-bag rows must cover the sample: %d + %d", len(seen), len(iOut))
	}
}

func TestBagRowsSubsampling(t *testing.T) {
	opts := DefaultOptions()
	f := false
	opts.BBagTrees = &f
	opts.PropTrain = 0.5
	opts.resolveForD(4)

	iTrain, iOut := bagRows(newTestRand(), 10, opts)
	if len(iTrain) != 5 || len(iOut) != 5 {
		t.Errorf("half the rows train, half are held out: %d / %d", len(iTrain), len(iOut))
	}
}
