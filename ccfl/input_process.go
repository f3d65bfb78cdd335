package ccfl

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

//InputProcessDetails records everything needed to replay the training
//input transform on new data: z-score parameters for numeric columns,
//category-to-code maps for one-hot expanded columns and the ordinal
//flags that drove the expansion.
type InputProcessDetails struct {
	//BOrdinal flags, per original column, whether the column was treated
	//as numeric/ordinal (true) or categorical (false).
	BOrdinal []bool `json:"b_ordinal"`
	//MuX and StdX are the z-score parameters of numeric columns, indexed
	//by original column. Categorical columns carry zeros.
	MuX  []float64 `json:"mu_x"`
	StdX []float64 `json:"std_x"`
	//Categories lists, per original categorical column, the category
	//values in code order. Empty for numeric columns.
	Categories [][]string `json:"categories"`
	//FeatureGroups maps each expanded numeric column back to its original
	//source column.
	FeatureGroups []int `json:"feature_groups"`
	//BNaNToMean records whether missing numeric values were mean-imputed.
	BNaNToMean bool `json:"b_nan_to_mean"`
}

func isMissingCell(s string) bool {
	t := strings.TrimSpace(s)
	return t == "" || t == "?" || strings.EqualFold(t, "nan")
}

//ProcessInputData converts a raw table of mixed categorical, numeric and
//ordinal columns into a fully numeric training matrix, the feature-group
//vector keeping one-hot expanded categorical groups atomic for feature
//subsampling, and the details record used to replay the same transform
//on test data. Columns default to numeric when every non-missing cell
//parses as a number; bOrdinal, when non-nil, overrides the detection and
//must have one entry per column. Missing numeric cells become the column
//mean when bNaNToMean is set and NaN otherwise (for per-tree random
//imputation).
func ProcessInputData(rows [][]string, bOrdinal []bool, bNaNToMean bool) (*mat.Dense, []int, *InputProcessDetails, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, nil, nil, &InvalidInputError{Reason: "empty training set"}
	}
	nCols := len(rows[0])
	for p, row := range rows {
		if len(row) != nCols {
			return nil, nil, nil, &InvalidInputError{Reason: fmt.Sprintf("row %d has %d columns, want %d", p, len(row), nCols)}
		}
	}
	if bOrdinal != nil && len(bOrdinal) != nCols {
		return nil, nil, nil, &InvalidInputError{Reason: fmt.Sprintf("bOrdinal has %d entries for %d columns", len(bOrdinal), nCols)}
	}

	details := &InputProcessDetails{
		BOrdinal:   make([]bool, nCols),
		MuX:        make([]float64, nCols),
		StdX:       make([]float64, nCols),
		Categories: make([][]string, nCols),
		BNaNToMean: bNaNToMean,
	}

	for j := 0; j < nCols; j++ {
		if bOrdinal != nil {
			details.BOrdinal[j] = bOrdinal[j]
			continue
		}
		numeric := true
		for _, row := range rows {
			if isMissingCell(row[j]) {
				continue
			}
			if _, err := strconv.ParseFloat(strings.TrimSpace(row[j]), 64); err != nil {
				numeric = false
				break
			}
		}
		details.BOrdinal[j] = numeric
	}

	for j := 0; j < nCols; j++ {
		if details.BOrdinal[j] {
			sum, sumSq, n := 0.0, 0.0, 0
			for _, row := range rows {
				if isMissingCell(row[j]) {
					continue
				}
				v, err := strconv.ParseFloat(strings.TrimSpace(row[j]), 64)
				if err != nil {
					return nil, nil, nil, &InvalidInputError{Reason: fmt.Sprintf("non-numeric value %q in ordinal column %d", row[j], j)}
				}
				sum += v
				sumSq += v * v
				n++
			}
			mu, sd := 0.0, 1.0
			if n > 0 {
				mu = sum / float64(n)
			}
			if n > 1 {
				variance := (sumSq - sum*sum/float64(n)) / float64(n-1)
				if variance > 0 {
					sd = math.Sqrt(variance)
				}
			}
			details.MuX[j] = mu
			details.StdX[j] = sd
		} else {
			seen := make(map[string]struct{})
			cats := make([]string, 0)
			for _, row := range rows {
				v := strings.TrimSpace(row[j])
				if _, ok := seen[v]; !ok {
					seen[v] = struct{}{}
					cats = append(cats, v)
				}
			}
			sort.Strings(cats)
			details.Categories[j] = cats
		}
	}

	x, err := ReplicateInputProcess(details, rows)
	if err != nil {
		return nil, nil, nil, err
	}
	details.FeatureGroups = expandedGroups(details)
	groups := append([]int(nil), details.FeatureGroups...)
	return x, groups, details, nil
}

//ReplicateInputProcess replays the training transform on a new raw
//table: z-scoring for numeric columns and one-hot expansion for
//categorical ones. Categories never seen in training expand to an
//all-zero block.
func ReplicateInputProcess(details *InputProcessDetails, rows [][]string) (*mat.Dense, error) {
	nCols := len(details.BOrdinal)
	if len(rows) == 0 {
		return nil, &InvalidInputError{Reason: "empty data set"}
	}
	for p, row := range rows {
		if len(row) != nCols {
			return nil, &InvalidInputError{Reason: fmt.Sprintf("row %d has %d columns, want %d", p, len(row), nCols)}
		}
	}

	width := 0
	for j := 0; j < nCols; j++ {
		if details.BOrdinal[j] {
			width++
		} else {
			width += len(details.Categories[j])
		}
	}

	x := mat.NewDense(len(rows), width, nil)
	for p, row := range rows {
		off := 0
		for j := 0; j < nCols; j++ {
			if details.BOrdinal[j] {
				var v float64
				if isMissingCell(row[j]) {
					if details.BNaNToMean {
						v = details.MuX[j]
					} else {
						v = math.NaN()
					}
				} else {
					raw, err := strconv.ParseFloat(strings.TrimSpace(row[j]), 64)
					if err != nil {
						return nil, &InvalidInputError{Reason: fmt.Sprintf("non-numeric value %q in ordinal column %d", row[j], j)}
					}
					v = raw
				}
				if !math.IsNaN(v) {
					v = (v - details.MuX[j]) / details.StdX[j]
				}
				x.Set(p, off, v)
				off++
			} else {
				val := strings.TrimSpace(row[j])
				for c, cat := range details.Categories[j] {
					if cat == val {
						x.Set(p, off+c, 1)
						break
					}
				}
				off += len(details.Categories[j])
			}
		}
	}
	return x, nil
}

//processNumericMatrix is the all-numeric fast path: z-score every column
//with NaN-aware statistics and give each column its own feature group.
func processNumericMatrix(X *mat.Dense, bNaNToMean bool) (*mat.Dense, []int, *InputProcessDetails) {
	h, w := X.Dims()
	mu := nanColMeans(X)
	sd := nanColStds(X)
	for q := range sd {
		if sd[q] == 0 {
			sd[q] = 1
		}
	}
	details := &InputProcessDetails{
		BOrdinal:   make([]bool, w),
		MuX:        mu,
		StdX:       sd,
		Categories: make([][]string, w),
		BNaNToMean: bNaNToMean,
	}
	groups := make([]int, w)
	for q := 0; q < w; q++ {
		details.BOrdinal[q] = true
		groups[q] = q
	}
	details.FeatureGroups = append([]int(nil), groups...)

	out := mat.NewDense(h, w, nil)
	for p := 0; p < h; p++ {
		for q := 0; q < w; q++ {
			v := X.At(p, q)
			if math.IsNaN(v) {
				if bNaNToMean {
					out.Set(p, q, 0)
				} else {
					out.Set(p, q, math.NaN())
				}
				continue
			}
			out.Set(p, q, (v-mu[q])/sd[q])
		}
	}
	return out, groups, details
}

//ReplicateNumericMatrix replays the numeric z-score transform on test
//data. Missing cells land on the column mean.
func ReplicateNumericMatrix(details *InputProcessDetails, X *mat.Dense) (*mat.Dense, error) {
	h, w := X.Dims()
	if w != len(details.MuX) {
		return nil, &InvalidInputError{Reason: fmt.Sprintf("matrix has %d columns, transform expects %d", w, len(details.MuX))}
	}
	out := mat.NewDense(h, w, nil)
	for p := 0; p < h; p++ {
		for q := 0; q < w; q++ {
			v := X.At(p, q)
			if math.IsNaN(v) {
				out.Set(p, q, 0)
				continue
			}
			out.Set(p, q, (v-details.MuX[q])/details.StdX[q])
		}
	}
	return out, nil
}

func expandedGroups(details *InputProcessDetails) []int {
	groups := make([]int, 0)
	for j := range details.BOrdinal {
		if details.BOrdinal[j] {
			groups = append(groups, j)
			continue
		}
		for range details.Categories[j] {
			groups = append(groups, j)
		}
	}
	return groups
}
