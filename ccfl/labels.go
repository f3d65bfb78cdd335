package ccfl

import (
	"sort"

	"gonum.org/v1/gonum/mat"
)

//LabelCodec captures the caller's original label representation. It is
//chosen once when the forest is built and threaded through prediction so
//that forest outputs come back in the representation the labels arrived
//in.
type LabelCodec interface {
	//NumEncoded is the number of columns in the encoded output matrix.
	NumEncoded() int
	//TaskIDs gives the start column of each task block.
	TaskIDs() []int
	codecKind() string
}

//IntegerLabels encodes a single classification task with integer class
//labels.
type IntegerLabels struct {
	Classes []int `json:"classes"`
}

func (c *IntegerLabels) NumEncoded() int   { return len(c.Classes) }
func (c *IntegerLabels) TaskIDs() []int    { return []int{0} }
func (c *IntegerLabels) codecKind() string { return "int" }

//StringLabels encodes a single classification task with string class
//names.
type StringLabels struct {
	Classes []string `json:"classes"`
}

func (c *StringLabels) NumEncoded() int   { return len(c.Classes) }
func (c *StringLabels) TaskIDs() []int    { return []int{0} }
func (c *StringLabels) codecKind() string { return "string" }

//OneHotLabels passes through labels that already arrived one-hot
//encoded.
type OneHotLabels struct {
	K int `json:"k"`
}

func (c *OneHotLabels) NumEncoded() int   { return c.K }
func (c *OneHotLabels) TaskIDs() []int    { return []int{0} }
func (c *OneHotLabels) codecKind() string { return "onehot" }

//MultiIntegerLabels encodes several classification tasks, one integer
//label column per task.
type MultiIntegerLabels struct {
	ClassesPerTask [][]int `json:"classes_per_task"`
}

func (c *MultiIntegerLabels) NumEncoded() int {
	n := 0
	for _, cs := range c.ClassesPerTask {
		n += len(cs)
	}
	return n
}

func (c *MultiIntegerLabels) TaskIDs() []int {
	ids := make([]int, len(c.ClassesPerTask))
	off := 0
	for t, cs := range c.ClassesPerTask {
		ids[t] = off
		off += len(cs)
	}
	return ids
}

func (c *MultiIntegerLabels) codecKind() string { return "multiint" }

//Target is the training output in one of the accepted representations.
type Target interface {
	encode() (y *mat.Dense, codec LabelCodec, bReg bool, err error)
}

//IntTarget is a column of integer class labels.
type IntTarget []int

func (t IntTarget) encode() (*mat.Dense, LabelCodec, bool, error) {
	if len(t) == 0 {
		return nil, nil, false, &InvalidInputError{Reason: "empty training set"}
	}
	classes := uniqueInts(t)
	index := make(map[int]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	y := mat.NewDense(len(t), len(classes), nil)
	for p, label := range t {
		y.Set(p, index[label], 1)
	}
	return y, &IntegerLabels{Classes: classes}, false, nil
}

//StringTarget is a column of string class names.
type StringTarget []string

func (t StringTarget) encode() (*mat.Dense, LabelCodec, bool, error) {
	if len(t) == 0 {
		return nil, nil, false, &InvalidInputError{Reason: "empty training set"}
	}
	seen := make(map[string]struct{}, len(t))
	classes := make([]string, 0, len(t))
	for _, s := range t {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			classes = append(classes, s)
		}
	}
	sort.Strings(classes)
	index := make(map[string]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	y := mat.NewDense(len(t), len(classes), nil)
	for p, label := range t {
		y.Set(p, index[label], 1)
	}
	return y, &StringLabels{Classes: classes}, false, nil
}

//OneHotTarget is an already one-hot (or multi-label binary) matrix. A
//single column is read as a binary indicator and expanded to the two
//class columns it stands for.
type OneHotTarget struct {
	Y *mat.Dense
}

func (t OneHotTarget) encode() (*mat.Dense, LabelCodec, bool, error) {
	if t.Y == nil {
		return nil, nil, false, &InvalidInputError{Reason: "empty training set"}
	}
	h, k := t.Y.Dims()
	if h == 0 || k == 0 {
		return nil, nil, false, &InvalidInputError{Reason: "empty training set"}
	}
	if k == 1 {
		y := mat.NewDense(h, 2, nil)
		for p := 0; p < h; p++ {
			if t.Y.At(p, 0) > 0.5 {
				y.Set(p, 1, 1)
			} else {
				y.Set(p, 0, 1)
			}
		}
		return y, &OneHotLabels{K: 2}, false, nil
	}
	return mat.DenseCopyOf(t.Y), &OneHotLabels{K: k}, false, nil
}

//MultiIntTarget is a table of integer class labels, one column per task.
type MultiIntTarget [][]int

func (t MultiIntTarget) encode() (*mat.Dense, LabelCodec, bool, error) {
	if len(t) == 0 || len(t[0]) == 0 {
		return nil, nil, false, &InvalidInputError{Reason: "empty training set"}
	}
	nTasks := len(t[0])
	for _, row := range t {
		if len(row) != nTasks {
			return nil, nil, false, &InvalidInputError{Reason: "ragged multi-task label table"}
		}
	}
	classesPerTask := make([][]int, nTasks)
	indexPerTask := make([]map[int]int, nTasks)
	for task := 0; task < nTasks; task++ {
		col := make([]int, len(t))
		for p, row := range t {
			col[p] = row[task]
		}
		classesPerTask[task] = uniqueInts(col)
		indexPerTask[task] = make(map[int]int, len(classesPerTask[task]))
		for i, c := range classesPerTask[task] {
			indexPerTask[task][c] = i
		}
	}
	codec := &MultiIntegerLabels{ClassesPerTask: classesPerTask}
	y := mat.NewDense(len(t), codec.NumEncoded(), nil)
	taskIDs := codec.TaskIDs()
	for p, row := range t {
		for task := 0; task < nTasks; task++ {
			y.Set(p, taskIDs[task]+indexPerTask[task][row[task]], 1)
		}
	}
	return y, codec, false, nil
}

//RegressionTarget is a numeric output column (or matrix for multivariate
//regression).
type RegressionTarget struct {
	Y *mat.Dense
}

func (t RegressionTarget) encode() (*mat.Dense, LabelCodec, bool, error) {
	if t.Y == nil {
		return nil, nil, false, &InvalidInputError{Reason: "empty training set"}
	}
	h, k := t.Y.Dims()
	if h == 0 || k == 0 {
		return nil, nil, false, &InvalidInputError{Reason: "empty training set"}
	}
	return mat.DenseCopyOf(t.Y), nil, true, nil
}

func uniqueInts(v []int) []int {
	seen := make(map[int]struct{}, len(v))
	out := make([]int, 0, len(v))
	for _, x := range v {
		if _, ok := seen[x]; !ok {
			seen[x] = struct{}{}
			out = append(out, x)
		}
	}
	sort.Ints(out)
	return out
}
