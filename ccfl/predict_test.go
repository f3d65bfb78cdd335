package ccfl

import (
	"math"
	"path"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestPredictLabelsRoundTrip(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{0, 0, 1, 1})
	labels := StringTarget{"a", "a", "b", "b"}

	clf, err := NewCCF(TrainParams{NTrees: 3, Seed: 2, BKeepTrees: true, Options: noResampleOptions()},
		X, labels, nil)
	if err != nil {
		t.Fatal(err)
	}

	got, err := clf.PredictLabels(X)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a", "a", "b", "b"}
	for p := range want {
		if got[p][0] != want[p] {
			t.Errorf("row %d: got %q, want %q", p, got[p][0], want[p])
		}
	}
}

func TestPredictScoresSumToOne(t *testing.T) {
	X, labels := twoBlobData()
	clf, err := NewCCF(TrainParams{NTrees: 5, Seed: 4, BKeepTrees: true}, X, labels, nil)
	if err != nil {
		t.Fatal(err)
	}

	scores, err := clf.Predict(X)
	if err != nil {
		t.Fatal(err)
	}
	h, k := scores.Dims()
	for p := 0; p < h; p++ {
		s := 0.0
		for q := 0; q < k; q++ {
			v := scores.At(p, q)
			if v < 0 || v > 1 {
				t.Fatalf("score out of range at (%d,%d): %v", p, q, v)
			}
			s += v
		}
		if math.Abs(s-1) > 1e-9 {
			t.Errorf("class scores of row %d sum to %v", p, s)
		}
	}
}

func TestPredictSeparateOutputs(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{0, 0, 1, 1})
	Y := mat.NewDense(4, 2, []float64{
		1, 0,
		1, 0,
		0, 1,
		0, 1,
	})

	opts := noResampleOptions()
	opts.BSepPred = true
	clf, err := NewCCF(TrainParams{NTrees: 2, Seed: 6, BKeepTrees: true, Options: opts},
		X, OneHotTarget{Y: Y}, nil)
	if err != nil {
		t.Fatal(err)
	}

	idx, err := clf.PredictClassIndices(X)
	if err != nil {
		t.Fatal(err)
	}
	want := [][]int{{1, 0}, {1, 0}, {0, 1}, {0, 1}}
	for p := range want {
		for q := range want[p] {
			if idx[p][q] != want[p][q] {
				t.Errorf("indicator at (%d,%d): got %d, want %d", p, q, idx[p][q], want[p][q])
			}
		}
	}
}

func TestPredictMultiTask(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{0, 0, 1, 1})
	labels := MultiIntTarget{
		{0, 1},
		{0, 1},
		{1, 0},
		{1, 0},
	}

	clf, err := NewCCF(TrainParams{NTrees: 3, Seed: 8, BKeepTrees: true, Options: noResampleOptions()},
		X, labels, nil)
	if err != nil {
		t.Fatal(err)
	}

	idx, err := clf.PredictClassIndices(X)
	if err != nil {
		t.Fatal(err)
	}
	want := [][]int{{0, 1}, {0, 1}, {1, 0}, {1, 0}}
	for p := range want {
		for task := range want[p] {
			if idx[p][task] != want[p][task] {
				t.Errorf("task prediction at (%d,%d): got %d, want %d", p, task, idx[p][task], want[p][task])
			}
		}
	}
}

func TestPredictBinaryColumnTarget(t *testing.T) {
	X := mat.NewDense(8, 1, []float64{1, 2, 3, 4, 5, 6, 7, 8})
	Y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})

	clf, err := NewCCF(TrainParams{NTrees: 4, Seed: 5, BKeepTrees: true, Options: noResampleOptions()},
		X, OneHotTarget{Y: Y}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if clf.Codec().NumEncoded() != 2 {
		t.Fatalf("a binary indicator column stands for two classes, codec has %d", clf.Codec().NumEncoded())
	}

	scores, err := clf.Predict(X)
	if err != nil {
		t.Fatal(err)
	}
	if _, k := scores.Dims(); k != 2 {
		t.Fatalf("expected two score columns, got %d", k)
	}
	idx, err := clf.PredictClassIndices(X)
	if err != nil {
		t.Fatal(err)
	}
	for p := range idx {
		want := 0
		if p >= 4 {
			want = 1
		}
		if idx[p][0] != want {
			t.Errorf("row %d: predicted class %d, want %d", p, idx[p][0], want)
		}
	}
}

func TestPredictRejectsWidthMismatch(t *testing.T) {
	X, labels := twoBlobData()
	clf, err := NewCCF(TrainParams{NTrees: 2, Seed: 1, BKeepTrees: true}, X, labels, nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := clf.Predict(mat.NewDense(1, 3, []float64{1, 2, 3})); err == nil {
		t.Error("a width mismatch must be rejected")
	}
	if _, err := clf.PredictClassIndices(mat.NewDense(1, 3, []float64{1, 2, 3})); err == nil {
		t.Error("a width mismatch must be rejected")
	}
}

func TestPredictImputesMissingCells(t *testing.T) {
	X, labels := twoBlobData()
	clf, err := NewCCF(TrainParams{NTrees: 4, Seed: 2, BKeepTrees: true}, X, labels, nil)
	if err != nil {
		t.Fatal(err)
	}

	row := mat.NewDense(1, 2, []float64{3.1, math.NaN()})
	scores, err := clf.Predict(row)
	if err != nil {
		t.Fatal(err)
	}
	for q := 0; q < 2; q++ {
		if math.IsNaN(scores.At(0, q)) {
			t.Fatal("missing cells must be imputed before descent")
		}
	}
}

func TestClassPredictionOnRegressionForest(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	Y := mat.NewDense(4, 1, []float64{1, 2, 3, 4})

	opts := noResampleOptions()
	opts.SplitCriterion = CriterionMSE
	clf, err := NewCCF(TrainParams{NTrees: 1, Seed: 1, BKeepTrees: true, Options: opts},
		X, RegressionTarget{Y: Y}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := clf.PredictClassIndices(X); err == nil {
		t.Error("class indices make no sense for a regression forest")
	}
}

func TestSaveLoadForestRoundTrip(t *testing.T) {
	X, labels := twoBlobData()
	clf, err := NewCCF(TrainParams{NTrees: 4, Seed: 13, BKeepTrees: true}, X, labels, nil)
	if err != nil {
		t.Fatal(err)
	}

	fileName := path.Join(t.TempDir(), "forest.json")
	if err := clf.Save(fileName); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadForest(fileName)
	if err != nil {
		t.Fatal(err)
	}

	predOrig, err := clf.Predict(X)
	if err != nil {
		t.Fatal(err)
	}
	predLoaded, err := loaded.Predict(X)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.Equal(predOrig, predLoaded) {
		t.Error("a reloaded forest must predict exactly like the original")
	}

	labelsOrig, err := clf.PredictLabels(X)
	if err != nil {
		t.Fatal(err)
	}
	labelsLoaded, err := loaded.PredictLabels(X)
	if err != nil {
		t.Fatal(err)
	}
	for p := range labelsOrig {
		if labelsOrig[p][0] != labelsLoaded[p][0] {
			t.Errorf("row %d: reloaded label %q differs from %q", p, labelsLoaded[p][0], labelsOrig[p][0])
		}
	}
	if loaded.OOBError != clf.OOBError &&
		!(math.IsNaN(loaded.OOBError) && math.IsNaN(clf.OOBError)) {
		t.Errorf("out-of-bag error not preserved: %v vs %v", loaded.OOBError, clf.OOBError)
	}
}

func TestSaveLoadRegressionForest(t *testing.T) {
	X := mat.NewDense(6, 1, []float64{1, 2, 3, 4, 5, 6})
	Y := mat.NewDense(6, 1, []float64{2, 4, 6, 8, 10, 12})

	opts := noResampleOptions()
	opts.SplitCriterion = CriterionMSE
	clf, err := NewCCF(TrainParams{NTrees: 2, Seed: 3, BKeepTrees: true, Options: opts},
		X, RegressionTarget{Y: Y}, nil)
	if err != nil {
		t.Fatal(err)
	}

	fileName := path.Join(t.TempDir(), "regression.json")
	if err := clf.Save(fileName); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadForest(fileName)
	if err != nil {
		t.Fatal(err)
	}

	predOrig, err := clf.Predict(X)
	if err != nil {
		t.Fatal(err)
	}
	predLoaded, err := loaded.Predict(X)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.EqualApprox(predOrig, predLoaded, 1e-12) {
		t.Error("a reloaded regression forest must predict like the original")
	}
	// Without resampling no row is ever out of bag, so the error is NaN
	//and must survive the trip to disk.
	if !math.IsNaN(clf.OOBError) || !math.IsNaN(loaded.OOBError) {
		t.Errorf("expected NaN out-of-bag error on both sides, got %v and %v", clf.OOBError, loaded.OOBError)
	}
}
