package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/sbinet/npyio"
	"github.com/tonyjo/canonical_correlation_forest/ccfl"
	"gonum.org/v1/gonum/mat"
)

func decodeConfig(srcConfig string, out interface{}) {
	file, err := os.Open(srcConfig)
	ccfl.HandleError(err)
	defer func() { ccfl.HandleError(file.Close()) }()

	decoder := json.NewDecoder(file)
	ccfl.HandleError(decoder.Decode(out))
}

type TrainConfig struct {
	FileNameTrainCSV string           `json:"filename_train_csv"`
	FileNameTrainX   string           `json:"filename_train_x"`
	FileNameTrainY   string           `json:"filename_train_y"`
	YColumn          int              `json:"y_column"`
	BRegression      bool             `json:"b_regression"`
	FileNameModel    string           `json:"filename_model"`
	NTrees           int              `json:"n_trees"`
	Seed             int64            `json:"seed"`
	ThreadsNum       int              `json:"threads_num"`
	Options          *ccfl.CCFOptions `json:"options"`
}

func train(srcConfig string) {
	var trainConfig TrainConfig
	decodeConfig(srcConfig, &trainConfig)

	params := ccfl.TrainParams{
		NTrees:     trainConfig.NTrees,
		Seed:       trainConfig.Seed,
		NWorkers:   trainConfig.ThreadsNum,
		BKeepTrees: true,
		Options:    trainConfig.Options,
	}

	var (
		clf *ccfl.Forest
		err error
	)
	if trainConfig.FileNameTrainCSV != "" {
		var ds *ccfl.DataSet
		ds, err = ccfl.ReadCSVDataSet(trainConfig.FileNameTrainCSV, trainConfig.YColumn, nil, true)
		ccfl.HandleError(err)
		if trainConfig.BRegression {
			clf, err = ccfl.NewCCF(params, ds.X, regressionTargetFromStrings(ds.YStrings()), ds.FeatureGroups)
		} else {
			clf, err = ccfl.NewCCF(params, ds.X, ccfl.StringTarget(ds.YStrings()), ds.FeatureGroups)
		}
	} else {
		var (
			ds *ccfl.DataSet
			y  *mat.Dense
		)
		ds, y, err = ccfl.ReadNumericDataSet(trainConfig.FileNameTrainX, trainConfig.FileNameTrainY, true)
		ccfl.HandleError(err)
		if trainConfig.BRegression {
			clf, err = ccfl.NewCCF(params, ds.X, ccfl.RegressionTarget{Y: y}, ds.FeatureGroups)
		} else {
			clf, err = ccfl.NewCCF(params, ds.X, ccfl.OneHotTarget{Y: y}, ds.FeatureGroups)
		}
		ccfl.HandleError(err)
		clf.InputDetails = ds.Details
	}
	ccfl.HandleError(err)

	log.Print("out-of-bag error = ", clf.OOBError)
	ccfl.HandleError(clf.Save(trainConfig.FileNameModel))
}

func regressionTargetFromStrings(labels []string) ccfl.RegressionTarget {
	y := mat.NewDense(len(labels), 1, nil)
	for p, s := range labels {
		var v float64
		_, err := fmt.Sscanf(s, "%g", &v)
		ccfl.HandleError(err)
		y.Set(p, 0, v)
	}
	return ccfl.RegressionTarget{Y: y}
}

type PredictConfig struct {
	DataFileName       string `json:"filename_features"`
	ModelFileName      string `json:"filename_model"`
	PredictionFileName string `json:"filename_target"`
	BLabels            bool   `json:"b_labels"`
}

func predict(srcConfig string) {
	var predictConfig PredictConfig
	decodeConfig(srcConfig, &predictConfig)

	features, err := ccfl.ReadNpy(predictConfig.DataFileName)
	ccfl.HandleError(err)

	clf, err := ccfl.LoadForest(predictConfig.ModelFileName)
	ccfl.HandleError(err)

	if clf.InputDetails != nil {
		features, err = ccfl.ReplicateNumericMatrix(clf.InputDetails, features)
		ccfl.HandleError(err)
	}

	if predictConfig.BLabels && !clf.BReg {
		labels, err := clf.PredictLabels(features)
		ccfl.HandleError(err)
		dst, err := os.Create(predictConfig.PredictionFileName)
		ccfl.HandleError(err)
		defer func() { ccfl.HandleError(dst.Close()) }()
		for _, row := range labels {
			for t, label := range row {
				if t > 0 {
					_, err = fmt.Fprint(dst, ",")
					ccfl.HandleError(err)
				}
				_, err = fmt.Fprint(dst, label)
				ccfl.HandleError(err)
			}
			_, err = fmt.Fprintln(dst)
			ccfl.HandleError(err)
		}
		return
	}

	prediction, err := clf.Predict(features)
	ccfl.HandleError(err)
	dst, err := os.Create(predictConfig.PredictionFileName)
	ccfl.HandleError(err)
	defer func() { ccfl.HandleError(dst.Close()) }()
	ccfl.HandleError(npyio.Write(dst, prediction))
}

type GraphConfig struct {
	ModelFileName     string `json:"filename_model"`
	FigureType        string `json:"figure_type"`
	PicturesDirectory string `json:"pictures_directory"`
	DumpPrefix        string `json:"dump_prefix"`
}

func graph(srcConfig string) {
	var graphConfig GraphConfig
	decodeConfig(srcConfig, &graphConfig)

	clf, err := ccfl.LoadForest(graphConfig.ModelFileName)
	ccfl.HandleError(err)
	clf.RenderTrees(graphConfig.DumpPrefix, graphConfig.FigureType, graphConfig.PicturesDirectory)
}

func main() {
	runMode := flag.String("mode", "train", "you can select either 'train', 'predict' or 'graph' modes")
	config := flag.String("config", "ccf_config.json", "a config file for the run of the program")
	memprofile := flag.String("memprofile", "", "write memory profile to `file`")

	flag.Parse()

	map[string]func(string){
		"train":   train,
		"predict": predict,
		"graph":   graph,
	}[*runMode](*config)

	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		ccfl.HandleError(err)
		defer func() { ccfl.HandleError(f.Close()) }()
		runtime.GC()
		if err := pprof.WriteHeapProfile(f); err != nil {
			log.Fatal("could not write memory profile: ", err)
		}
	}
}
