package ccfl

import (
	"math"
	"strconv"

	"go.uber.org/zap"
)

//SplitCriterion selects the impurity measure driving the split search.
type SplitCriterion string

const (
	CriterionGini SplitCriterion = "gini"
	CriterionInfo SplitCriterion = "info"
	CriterionMSE  SplitCriterion = "mse"
)

//TieBreak selects how exactly tied best splits (and best directions) are
//resolved: uniformly at random or first in order.
type TieBreak string

const (
	TieBreakRandom TieBreak = "rand"
	TieBreakFirst  TieBreak = "first"
)

//GainCombination selects how per-task gains are combined in multi-output
//settings.
type GainCombination string

const (
	GainMean GainCombination = "mean"
	GainMax  GainCombination = "max"
)

//TreeRotation selects an optional per-tree pre-rotation of the inputs.
type TreeRotation string

const (
	RotationNone   TreeRotation = "none"
	RotationRandom TreeRotation = "random"
	RotationPCA    TreeRotation = "pca"
	RotationForest TreeRotation = "rotationForest"
)

//MissingValuesMethod selects how missing feature values are filled.
type MissingValuesMethod string

const (
	MissingMean   MissingValuesMethod = "mean"
	MissingRandom MissingValuesMethod = "random"
)

//tieTol is the tolerance within which two gains count as exactly tied.
const tieTol = 10 * 2.220446049250313e-16

//CCFOptions is the configuration record for forest training. It is a
//plain value: NewCCF clones it and resolves the dimension-dependent
//fields once, so a fitted forest is never affected by later mutation of
//the options it was built from.
type CCFOptions struct {
	//SplitCriterion is gini or info for classification, mse for regression.
	SplitCriterion SplitCriterion `json:"split_criterion"`
	//Lambda is the number of feature groups sampled per split: "sqrt",
	//"log", "all" or an explicit integer in string form.
	Lambda string `json:"lambda"`
	//MinPointsForSplit is the minimum sample count to consider splitting.
	MinPointsForSplit int `json:"min_points_for_split"`
	//MinPointsLeaf is the minimum sample count of either child.
	MinPointsLeaf int `json:"min_points_leaf"`
	//MaxDepthSplit caps the tree depth; zero or negative grows until pure.
	MaxDepthSplit int `json:"max_depth_split"`
	//BProjBoot bootstraps the sample used to compute projections. Left
	//nil, it defaults to true unless lambda covers every feature group.
	BProjBoot *bool `json:"b_proj_boot"`
	//BBagTrees bags the training rows per tree. Left nil, it defaults to
	//the opposite of the BProjBoot default.
	BBagTrees *bool `json:"b_bag_trees"`
	//BContinueProjBootDegenerate falls back to the full sample when the
	//projection bootstrap has no output variation, instead of emitting a
	//leaf.
	BContinueProjBootDegenerate bool `json:"b_continue_proj_boot_degenerate"`
	//TreeRotation applies a per-tree pre-rotation before growth.
	TreeRotation TreeRotation `json:"tree_rotation"`
	//Projections weights the projection families used at each split.
	Projections Projections `json:"projections"`
	//TieBreak resolves exactly tied splits and directions.
	TieBreak TieBreak `json:"tie_break"`
	//MultiTaskGainCombination combines per-task gains (mean or max).
	MultiTaskGainCombination GainCombination `json:"multi_task_gain_combination"`
	//TaskWeights optionally weights tasks in the gain combination.
	TaskWeights []float64 `json:"task_weights,omitempty"`
	//XVariationTol is the spread below which a column counts as constant.
	XVariationTol float64 `json:"x_variation_tol"`
	//EpsilonCCA is the rank tolerance of the CCA core.
	EpsilonCCA float64 `json:"epsilon_cca"`
	//PropTrain is the fraction of rows drawn for each tree.
	PropTrain float64 `json:"prop_train"`
	//MissingValues selects mean imputation at processing time or random
	//imputation per tree.
	MissingValues MissingValuesMethod `json:"missing_values"`
	//BSepPred treats each output column as an independent binary task.
	BSepPred bool `json:"b_sep_pred"`

	//BRCCA switches the projection to random feature expansion followed
	//by regularized CCA.
	BRCCA bool `json:"b_rcca"`
	//RCCANFeatures is the random feature expansion width.
	RCCANFeatures int `json:"rcca_n_features"`
	//RCCALengthScale is the expansion kernel length scale.
	RCCALengthScale float64 `json:"rcca_length_scale"`
	//RCCARegLambda is the ridge term of the regularized CCA.
	RCCARegLambda float64 `json:"rcca_reg_lambda"`
	//RCCAIncludeOriginal appends the raw features to the expansion.
	RCCAIncludeOriginal bool `json:"rcca_include_original"`

	//RotForM is the feature subset size of the rotation-forest rotation.
	RotForM int `json:"rot_for_m"`
	//RotForPS is the row subsample proportion per rotation subset.
	RotForPS float64 `json:"rot_for_ps"`
	//RotForPClassLeaveOut is the proportion of classes dropped per subset.
	RotForPClassLeaveOut float64 `json:"rot_for_p_class_leave_out"`

	// Resolved once per forest by NewCCF.
	lambdaRes    int
	bProjBootRes bool
	bBagTreesRes bool
	taskIDs      []int
}

//DefaultOptions returns the options used when nothing is configured:
//CCA projections, gini splitting, log2 feature sampling.
func DefaultOptions() *CCFOptions {
	return &CCFOptions{
		SplitCriterion:           CriterionGini,
		Lambda:                   "log",
		MinPointsForSplit:        2,
		MinPointsLeaf:            1,
		Projections:              Projections{CCA: 1},
		TieBreak:                 TieBreakRandom,
		MultiTaskGainCombination: GainMean,
		XVariationTol:            1e-10,
		EpsilonCCA:               1e-4,
		PropTrain:                1,
		MissingValues:            MissingMean,
		TreeRotation:             RotationNone,
		RCCANFeatures:            50,
		RCCALengthScale:          1,
		RCCARegLambda:            1e-3,
		RotForM:                  3,
		RotForPS:                 0.75,
		RotForPClassLeaveOut:     0.5,
	}
}

//DefaultOptionsCCFBag returns the bagged variant: tree-level bagging on,
//projection bootstrap off. This is the configuration under which
//out-of-bag error estimates become available.
func DefaultOptionsCCFBag() *CCFOptions {
	o := DefaultOptions()
	t, f := true, false
	o.BBagTrees = &t
	o.BProjBoot = &f
	return o
}

//Validate fails fast on unsupported option values, before any tree is
//grown. bReg tells whether the forest is a regression forest, which
//constrains the admissible split criteria.
func (o *CCFOptions) Validate(bReg bool) error {
	switch o.SplitCriterion {
	case CriterionGini, CriterionInfo:
		if bReg {
			return &InvalidOptionError{Field: "SplitCriterion", Reason: "regression requires mse"}
		}
	case CriterionMSE:
		if !bReg {
			return &InvalidOptionError{Field: "SplitCriterion", Reason: "mse only applies to regression"}
		}
	default:
		return &InvalidOptionError{Field: "SplitCriterion", Reason: "unsupported criterion " + string(o.SplitCriterion)}
	}
	switch o.TieBreak {
	case TieBreakRandom, TieBreakFirst:
	default:
		return &InvalidOptionError{Field: "TieBreak", Reason: "unsupported policy " + string(o.TieBreak)}
	}
	switch o.MultiTaskGainCombination {
	case GainMean, GainMax:
	default:
		return &InvalidOptionError{Field: "MultiTaskGainCombination", Reason: "unsupported mode " + string(o.MultiTaskGainCombination)}
	}
	switch o.TreeRotation {
	case RotationNone, RotationRandom, RotationPCA, RotationForest, "":
	default:
		return &InvalidOptionError{Field: "TreeRotation", Reason: "unsupported rotation " + string(o.TreeRotation)}
	}
	switch o.MissingValues {
	case MissingMean, MissingRandom, "":
	default:
		return &InvalidOptionError{Field: "MissingValues", Reason: "unsupported method " + string(o.MissingValues)}
	}
	if o.MinPointsLeaf < 1 {
		return &InvalidOptionError{Field: "MinPointsLeaf", Reason: "must be at least 1"}
	}
	if o.PropTrain <= 0 || o.PropTrain > 1 {
		return &InvalidOptionError{Field: "PropTrain", Reason: "must lie in (0, 1]"}
	}
	if p := o.Projections; p.CCA < 0 || p.PCA < 0 || p.CCAClasswise < 0 || p.Original < 0 || p.Random < 0 {
		return &InvalidOptionError{Field: "Projections", Reason: "weights must be non-negative"}
	}
	return nil
}

//clone copies the options so that per-forest resolution never mutates
//the caller's record.
func (o *CCFOptions) clone() *CCFOptions {
	c := *o
	if o.TaskWeights != nil {
		c.TaskWeights = append([]float64(nil), o.TaskWeights...)
	}
	if o.taskIDs != nil {
		c.taskIDs = append([]int(nil), o.taskIDs...)
	}
	return &c
}

//resolveForD freezes the dimension-dependent fields for a feature-group
//count of D: lambda from its "sqrt"/"log"/"all"/integer spec, and the
//projection-bootstrap and tree-bagging defaults, which flip together on
//whether lambda covers every group.
func (o *CCFOptions) resolveForD(d int) {
	switch o.Lambda {
	case "sqrt":
		o.lambdaRes = int(math.Ceil(math.Sqrt(float64(d))))
	case "log":
		if d == 3 {
			o.lambdaRes = 2
		} else {
			o.lambdaRes = int(math.Ceil(math.Log2(float64(d)) + 1))
		}
	case "all":
		o.lambdaRes = d
	default:
		v, err := strconv.Atoi(o.Lambda)
		if err != nil || v < 1 {
			Logger().Warn("invalid lambda spec ignored, using log",
				zap.String("lambda", o.Lambda))
			if d == 3 {
				o.lambdaRes = 2
			} else {
				o.lambdaRes = int(math.Ceil(math.Log2(float64(d)) + 1))
			}
		} else {
			o.lambdaRes = v
		}
	}
	if o.lambdaRes > d {
		o.lambdaRes = d
	}
	if o.lambdaRes < 1 {
		o.lambdaRes = 1
	}

	if o.BProjBoot != nil {
		o.bProjBootRes = *o.BProjBoot
	} else {
		o.bProjBootRes = d > o.lambdaRes
	}
	if o.BBagTrees != nil {
		o.bBagTreesRes = *o.BBagTrees
	} else {
		o.bBagTreesRes = d <= o.lambdaRes
	}
}
