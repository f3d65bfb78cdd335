package ccfl

import (
	"encoding/json"
	"math"
	"os"
)

//forestRecord is the on-disk shape of a forest. The label codec hides
//behind an interface in memory, so it is written with an explicit kind
//tag and re-hydrated by it. The out-of-bag error is a pointer because
//it is NaN when no rows were out of bag and JSON cannot carry NaN.
type forestRecord struct {
	Options      *CCFOptions     `json:"options"`
	Trees        []*CCT          `json:"trees"`
	BReg         bool            `json:"b_reg"`
	D            int             `json:"d"`
	MuY          []float64       `json:"mu_y,omitempty"`
	StdY         []float64       `json:"std_y,omitempty"`
	MissingMeans []float64       `json:"missing_means,omitempty"`
	OOBError     *float64        `json:"oob_error,omitempty"`
	CodecKind    string          `json:"codec_kind,omitempty"`
	Codec        json.RawMessage `json:"codec,omitempty"`
	TaskIDs      []int           `json:"task_ids,omitempty"`

	InputDetails *InputProcessDetails `json:"input_details,omitempty"`
}

//Save writes the forest to fileName as JSON.
func (f *Forest) Save(fileName string) error {
	rec := forestRecord{
		Options:      f.Options,
		Trees:        f.Trees,
		BReg:         f.BReg,
		D:            f.D,
		MuY:          f.MuY,
		StdY:         f.StdY,
		MissingMeans: f.MissingMeans,
		TaskIDs:      f.Options.taskIDs,
		InputDetails: f.InputDetails,
	}
	if !math.IsNaN(f.OOBError) {
		oob := f.OOBError
		rec.OOBError = &oob
	}
	if f.codec != nil {
		rec.CodecKind = f.codec.codecKind()
		raw, err := json.Marshal(f.codec)
		if err != nil {
			return err
		}
		rec.Codec = raw
	}
	data, err := json.MarshalIndent(&rec, "", " ")
	if err != nil {
		return err
	}
	return os.WriteFile(fileName, data, 0644)
}

//LoadForest reads a forest previously written by Save.
func LoadForest(fileName string) (*Forest, error) {
	data, err := os.ReadFile(fileName)
	if err != nil {
		return nil, err
	}
	var rec forestRecord
	if err = json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}

	f := &Forest{
		Options:      rec.Options,
		Trees:        rec.Trees,
		BReg:         rec.BReg,
		D:            rec.D,
		MuY:          rec.MuY,
		StdY:         rec.StdY,
		MissingMeans: rec.MissingMeans,
		OOBError:     math.NaN(),
		InputDetails: rec.InputDetails,
	}
	if rec.OOBError != nil {
		f.OOBError = *rec.OOBError
	}
	if f.Options == nil {
		return nil, &InvalidInputError{Reason: "forest file carries no options"}
	}
	f.Options.taskIDs = rec.TaskIDs

	switch rec.CodecKind {
	case "":
		if !rec.BReg {
			return nil, &InvalidInputError{Reason: "classification forest file carries no label codec"}
		}
	case "int":
		c := &IntegerLabels{}
		err = json.Unmarshal(rec.Codec, c)
		f.codec = c
	case "string":
		c := &StringLabels{}
		err = json.Unmarshal(rec.Codec, c)
		f.codec = c
	case "onehot":
		c := &OneHotLabels{}
		err = json.Unmarshal(rec.Codec, c)
		f.codec = c
	case "multiint":
		c := &MultiIntegerLabels{}
		err = json.Unmarshal(rec.Codec, c)
		f.codec = c
	default:
		return nil, &InvalidInputError{Reason: "unknown label codec kind " + rec.CodecKind}
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}
