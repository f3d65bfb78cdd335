package ccfl

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestComponentAnalysisConstantColumnGetsZeroRow(t *testing.T) {
	X := mat.NewDense(8, 2, []float64{
		1, 5,
		2, 5,
		3, 5,
		4, 5,
		5, 5,
		6, 5,
		7, 5,
		8, 5,
	})
	Y := mat.NewDense(8, 2, []float64{
		1, 0,
		1, 0,
		1, 0,
		1, 0,
		0, 1,
		0, 1,
		0, 1,
		0, 1,
	})

	projMat, _, r := ComponentAnalysis(rand.New(rand.NewSource(1)), X, Y, Projections{CCA: 1}, 1e-4)

	rows, ncols := projMat.Dims()
	if rows != 2 {
		t.Fatalf("the projection must span the full input width, got %d rows", rows)
	}
	if ncols < 1 {
		t.Fatal("expected at least one canonical component")
	}
	for q := 0; q < ncols; q++ {
		if projMat.At(1, q) != 0 {
			t.Errorf("the constant column must carry zero weight, got %v", projMat.At(1, q))
		}
	}
	if projMat.At(0, 0) == 0 {
		t.Error("the varying column should carry weight")
	}
	if len(r) == 0 || r[0] < 0.8 || r[0] > 1+1e-9 {
		t.Errorf("the canonical correlation of a monotone column with the class indicator should be high, got %v", r)
	}
}

func TestComponentAnalysisAllConstant(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		3, 5,
		3, 5,
		3, 5,
		3, 5,
	})
	Y := mat.NewDense(4, 2, []float64{
		1, 0,
		1, 0,
		0, 1,
		0, 1,
	})

	projMat, yProjMat, r := ComponentAnalysis(rand.New(rand.NewSource(1)), X, Y, Projections{CCA: 1}, 1e-4)
	if ncols := cols(projMat); ncols != 0 {
		t.Errorf("no varying column admits no projection, got %d columns", ncols)
	}
	if yProjMat != nil || r != nil {
		t.Error("a degenerate analysis carries no side projection or correlations")
	}
}

func TestCanonicalCorrelationDegenerateSides(t *testing.T) {
	Xc := mat.NewDense(4, 2, nil)
	Yc := mat.NewDense(4, 1, []float64{-1.5, -0.5, 0.5, 1.5})

	a, b, r := canonicalCorrelation(Xc, Yc, 1e-4)
	if a != nil || b != nil || r != nil {
		t.Error("a rank zero side admits no canonical pair")
	}
}

func TestRandomRotationOrthonormal(t *testing.T) {
	r := RandomRotation(rand.New(rand.NewSource(3)), 4)

	var gram mat.Dense
	gram.Mul(r.T(), r)
	for p := 0; p < 4; p++ {
		for q := 0; q < 4; q++ {
			want := 0.0
			if p == q {
				want = 1
			}
			if math.Abs(gram.At(p, q)-want) > 1e-10 {
				t.Fatalf("R^T R differs from identity at (%d,%d): %v", p, q, gram.At(p, q))
			}
		}
	}
}

func TestPCALiteCenteredScores(t *testing.T) {
	X := mat.NewDense(6, 2, []float64{
		1, 2,
		2, 4.1,
		3, 5.9,
		4, 8,
		5, 10.2,
		6, 11.8,
	})

	coeff, mu, score := PCALite(X, false, true)

	if len(mu) != 2 {
		t.Fatalf("expected two column means, got %d", len(mu))
	}
	_, k := score.Dims()
	for q := 0; q < k; q++ {
		s := 0.0
		for p := 0; p < 6; p++ {
			s += score.At(p, q)
		}
		if math.Abs(s/6) > 1e-9 {
			t.Errorf("score column %d is not centered: mean %v", q, s/6)
		}
	}

	var gram mat.Dense
	gram.Mul(coeff.T(), coeff)
	cr, _ := gram.Dims()
	for p := 0; p < cr; p++ {
		if math.Abs(gram.At(p, p)-1) > 1e-9 {
			t.Errorf("loading column %d is not unit length: %v", p, gram.At(p, p))
		}
	}
}

func TestRegCCAPerfectlyCorrelatedPair(t *testing.T) {
	n := 10
	X := mat.NewDense(n, 1, nil)
	Y := mat.NewDense(n, 1, nil)
	for p := 0; p < n; p++ {
		X.Set(p, 0, float64(p))
		Y.Set(p, 0, 2*float64(p)+1)
	}

	a, b, r := RegCCA(X, Y, 1e-8, 1e-8, 1e-10)
	if cols(a) == 0 || cols(b) == 0 {
		t.Fatal("expected one canonical pair")
	}
	if len(r) == 0 || r[0] < 0.99 {
		t.Errorf("a linear relation should give a correlation near one, got %v", r)
	}
}

func TestRegCCAUncorrelatedGivesNoPair(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{3, 3, 3, 3})
	Y := mat.NewDense(4, 1, []float64{1, 2, 3, 4})

	a, b, r := RegCCA(X, Y, 1e-8, 1e-8, 1e-10)
	if cols(a) != 0 || cols(b) != 0 || len(r) != 0 {
		t.Errorf("a constant side correlates with nothing, got %d pairs", cols(a))
	}

	short := mat.NewDense(1, 1, []float64{1})
	if a, b, r = RegCCA(short, short, 1e-8, 1e-8, 1e-10); a != nil || b != nil || r != nil {
		t.Error("a single row admits no canonical pair")
	}
}

func TestRandomFeatureExpansionRange(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	X := mat.NewDense(4, 2, []float64{
		0, 1,
		1, 0,
		2, 2,
		3, 1,
	})
	w, b := GenFeatureExpansionParameters(rng, X, 6, 1)
	z := RandomFeatureExpansion(X, w, b)

	h, m := z.Dims()
	if h != 4 || m != 6 {
		t.Fatalf("expected a 4x6 expansion, got %dx%d", h, m)
	}
	bound := math.Sqrt(2.0/6.0) + 1e-12
	for p := 0; p < h; p++ {
		for q := 0; q < m; q++ {
			if math.Abs(z.At(p, q)) > bound {
				t.Fatalf("expansion value %v exceeds the cosine bound %v", z.At(p, q), bound)
			}
		}
	}
}
