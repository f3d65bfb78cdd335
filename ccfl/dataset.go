package ccfl

import (
	"encoding/csv"
	"os"

	"github.com/sbinet/npyio"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

//DataSet couples a processed feature matrix with its raw outputs and
//the feature group vector produced by input processing.
type DataSet struct {
	X             *mat.Dense
	YRows         [][]string
	FeatureGroups []int
	Details       *InputProcessDetails
}

//ReadNpy reads the content of an npy file into a dense matrix.
func ReadNpy(fileName string) (*mat.Dense, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer func() { HandleError(f.Close()) }()

	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, err
	}
	denseMat := &mat.Dense{}
	if err = r.Read(denseMat); err != nil {
		return nil, err
	}
	return denseMat, nil
}

//ReadNumericDataSet reads an already numeric feature matrix and output
//matrix from npy files and z-scores the features, giving every column
//its own feature group. The returned details replay the transform on
//test data.
func ReadNumericDataSet(fileNameX, fileNameY string, bNaNToMean bool) (*DataSet, *mat.Dense, error) {
	Logger().Info("loading features", zap.String("file", fileNameX))
	x, err := ReadNpy(fileNameX)
	if err != nil {
		return nil, nil, err
	}
	Logger().Info("loading outputs", zap.String("file", fileNameY))
	y, err := ReadNpy(fileNameY)
	if err != nil {
		return nil, nil, err
	}
	xh, _ := x.Dims()
	yh, _ := y.Dims()
	if xh != yh {
		return nil, nil, &InvalidInputError{Reason: "row count mismatch between features and outputs"}
	}
	xp, groups, details := processNumericMatrix(x, bNaNToMean)
	return &DataSet{X: xp, FeatureGroups: groups, Details: details}, y, nil
}

//ReadCSVDataSet reads a csv table, treats yColumn as the output, runs
//input processing on the remaining columns and returns the processed
//set. bOrdinal may be nil for auto detection; a negative yColumn counts
//from the last column.
func ReadCSVDataSet(fileName string, yColumn int, bOrdinal []bool, bNaNToMean bool) (*DataSet, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer func() { HandleError(f.Close()) }()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, &InvalidInputError{Reason: "empty csv file"}
	}
	w := len(records[0])
	if yColumn < 0 {
		yColumn += w
	}
	if yColumn < 0 || yColumn >= w {
		return nil, &InvalidInputError{Reason: "output column out of range"}
	}

	rows := make([][]string, len(records))
	yRows := make([][]string, len(records))
	for p, rec := range records {
		if len(rec) != w {
			return nil, &InvalidInputError{Reason: "ragged csv row"}
		}
		row := make([]string, 0, w-1)
		for q, cell := range rec {
			if q == yColumn {
				yRows[p] = []string{cell}
				continue
			}
			row = append(row, cell)
		}
		rows[p] = row
	}

	x, groups, details, err := ProcessInputData(rows, bOrdinal, bNaNToMean)
	if err != nil {
		return nil, err
	}
	Logger().Info("csv data set processed",
		zap.String("file", fileName),
		zap.Int("n_rows", len(rows)),
		zap.Int("n_columns", w-1))
	return &DataSet{X: x, YRows: yRows, FeatureGroups: groups, Details: details}, nil
}

//YStrings flattens the single output column into a label slice.
func (ds *DataSet) YStrings() []string {
	out := make([]string, len(ds.YRows))
	for p, row := range ds.YRows {
		out[p] = row[0]
	}
	return out
}
