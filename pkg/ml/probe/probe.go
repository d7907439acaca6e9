// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package probe measures how the attention strategies behave as the sequence length grows: the entropy
// and sharpness of the attention coefficients for each strategy and sequence length, and the query
// scale curves of the position dependent strategies.
//
// Results can be exported to CSV and plotted.
package probe

import (
	"math/rand/v2"

	"github.com/gomlx/attnscale/pkg/ml/layers/attention"
	"github.com/gomlx/attnscale/pkg/ml/scaling"
	"github.com/gomlx/attnscale/pkg/ml/softmax"
	"github.com/gomlx/compute"
	"github.com/gomlx/compute/dtypes"
	"github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Config of a probe run.
type Config struct {
	// Strategies to probe. Defaults to all.
	Strategies []attention.Strategy

	// Lengths of the sequences to probe. Defaults to DefaultLengths.
	Lengths []int

	// Batch size of the random inputs. Defaults to 1.
	Batch int

	// Dim of the input. Defaults to attention.DefaultDim.
	Dim int

	// Seed for the random inputs.
	Seed uint64

	// DType of the inputs and variables. Defaults to Float32.
	DType dtypes.DType

	// Progress, if set, is called after each measurement.
	Progress func(done, total int)
}

// DefaultLengths used when Config.Lengths is not set.
var DefaultLengths = []int{16, 64, 256, 1024}

// Measurement of one strategy on one sequence length.
type Measurement struct {
	RunID    string
	Strategy string
	SeqLen   int

	// MeanEntropy and MaxEntropy of the rows of attention coefficients, over all batch, heads and queries.
	MeanEntropy, MaxEntropy float64

	// MeanMaxWeight is the mean of the largest coefficient of each row.
	MeanMaxWeight float64

	// MeanRowSum is the mean of the sum of each row of coefficients: 1 except for the "softmax plus" strategies.
	MeanRowSum float64

	// OutputRMS is the root mean square of the layer output.
	OutputRMS float64

	// Finite is false if any of the outputs is NaN or infinite.
	Finite bool
}

func (cfg *Config) setDefaults() {
	if len(cfg.Strategies) == 0 {
		cfg.Strategies = attention.StrategyValues()
	}
	if len(cfg.Lengths) == 0 {
		cfg.Lengths = DefaultLengths
	}
	if cfg.Batch <= 0 {
		cfg.Batch = 1
	}
	if cfg.Dim <= 0 {
		cfg.Dim = attention.DefaultDim
	}
	if cfg.DType == dtypes.InvalidDType {
		cfg.DType = dtypes.Float32
	}
}

// randomInput returns a [batch, seqLen, dim] float32 tensor with normal random values.
func randomInput(rng *rand.Rand, batch, seqLen, dim int) *tensors.Tensor {
	data := make([]float32, batch*seqLen*dim)
	for ii := range data {
		data[ii] = float32(rng.NormFloat64())
	}
	return tensors.FromFlatDataAndDimensions(data, batch, seqLen, dim)
}

// statistics reduces the attention output and coefficients to the values of a Measurement, all as float64 scalars.
func statistics(output, coefficients *Node) []*Node {
	coefficients = ConvertDType(coefficients, dtypes.Float64)
	entropy := softmax.Entropy(coefficients)
	return []*Node{
		ReduceAllMean(entropy),
		ReduceAllMax(entropy),
		ReduceAllMean(ReduceMax(coefficients, -1)),
		ReduceAllMean(ReduceSum(coefficients, -1)),
		Sqrt(ReduceAllMean(Square(ConvertDType(output, dtypes.Float64)))),
		LogicalAll(IsFinite(output)),
	}
}

// Run the attention layer of each strategy over random inputs of each length, and measure its coefficients.
//
// Hyperparameters (heads, base sequence length, bias, position policy) are taken from ctx. Each strategy
// creates (or reuses) its variables under its own scope (the strategy name), so loaded checkpoints can
// provide them.
func Run(backend compute.Backend, ctx *context.Context, cfg Config) (measurements []Measurement, err error) {
	cfg.setDefaults()
	runID := uuid.NewString()
	total := len(cfg.Strategies) * len(cfg.Lengths)
	err = exceptions.TryCatch[error](func() {
		for _, strategy := range cfg.Strategies {
			strategyCtx := ctx.In(strategy.String()).Checked(false)
			exec := context.MustNewExec(backend, strategyCtx, func(ctx *context.Context, x *Node) []*Node {
				x = ConvertDType(x, cfg.DType)
				output, coefficients := attention.Causal(ctx, x).Strategy(strategy).DoneWithCoefficients()
				return statistics(output, coefficients)
			})
			// Same inputs for every strategy.
			rng := rand.New(rand.NewPCG(cfg.Seed, 0))
			for _, seqLen := range cfg.Lengths {
				if seqLen < 1 {
					exceptions.Panicf("probe: invalid sequence length %d", seqLen)
				}
				results := exec.MustExec(randomInput(rng, cfg.Batch, seqLen, cfg.Dim))
				m := Measurement{
					RunID:         runID,
					Strategy:      strategy.String(),
					SeqLen:        seqLen,
					MeanEntropy:   results[0].Value().(float64),
					MaxEntropy:    results[1].Value().(float64),
					MeanMaxWeight: results[2].Value().(float64),
					MeanRowSum:    results[3].Value().(float64),
					OutputRMS:     results[4].Value().(float64),
					Finite:        results[5].Value().(bool),
				}
				klog.V(1).Infof("probe %s: %+v", runID, m)
				measurements = append(measurements, m)
				if cfg.Progress != nil {
					cfg.Progress(len(measurements), total)
				}
			}
			exec.Finalize()
		}
	})
	if err != nil {
		err = errors.WithMessagef(err, "probe run %s failed", runID)
	}
	return
}

// Curve is the query scale of a position dependent strategy, per position, for the first head.
type Curve struct {
	Strategy  string
	Positions []float64
	Scales    []float64
}

// ScaleCurves returns the query scale (for the first head) of each strategy over the first maxLen
// positions, following ctx's position policy.
//
// StrategyBase is included as the reference 1/sqrt(headDim). Strategies that don't scale queries are skipped.
// Learned parameters are read from ctx (under the strategy scope, as created by Run) if present, otherwise
// their initial values are used.
func ScaleCurves(backend compute.Backend, ctx *context.Context, dim, maxLen int) (curves []Curve, err error) {
	numHeads := context.GetParamOr(ctx, attention.ParamHeads, attention.DefaultHeads)
	baseSeqLen := context.GetParamOr(ctx, attention.ParamBaseSeqLen, attention.DefaultBaseSeqLen)
	bias := context.GetParamOr(ctx, attention.ParamBias, attention.DefaultBias)
	if numHeads <= 0 || dim%numHeads != 0 {
		return nil, errors.Wrapf(attention.ErrInvalidHeads, "dim=%d, heads=%d", dim, numHeads)
	}
	headDim := dim / numHeads

	// firstHead returns the value of the first head of a per-head variable, or defaultValue if not set.
	firstHead := func(strategy attention.Strategy, name string, defaultValue float64) float64 {
		v := ctx.GetVariableByScopeAndName(ctx.In(strategy.String()).In("attention").Scope(), name)
		if v == nil {
			return defaultValue
		}
		value, err := v.Value()
		if err != nil || value == nil {
			return defaultValue
		}
		return tensors.MustCopyFlatData[float64](convertTensor(backend, value))[0]
	}

	err = exceptions.TryCatch[error](func() {
		policy := scaling.PolicyFromName(context.GetParamOr(ctx, attention.ParamPositionPolicy, ""))
		for _, strategy := range attention.StrategyValues() {
			if strategy != attention.StrategyBase && !strategy.PreScalesQuery() {
				continue
			}
			attnBias := firstHead(strategy, attention.VarAttnBias, bias)
			alpha := firstHead(strategy, attention.VarAlphas, 0)
			beta := firstHead(strategy, attention.VarBetas, 0)
			results := MustExecOnceN(backend, func(g *Graph) []*Node {
				positions := scaling.Positions(g, dtypes.Float64, maxLen, policy)
				perHead := func(v float64) *Node { return Const(g, [][][][]float64{{{{v}}}}) }
				var scale *Node
				switch strategy {
				case attention.StrategyRelative:
					scale = scaling.Relative(positions, headDim, baseSeqLen)
				case attention.StrategyRelativeBiased:
					scale = scaling.RelativeBiased(positions, headDim, perHead(attnBias), baseSeqLen)
				case attention.StrategyYarn:
					scale = scaling.YaRN(positions, headDim)
				case attention.StrategyLearnedLog:
					scale = scaling.LearnedLog(positions, perHead(alpha), perHead(beta), sqrt(headDim))
				default:
					scale = MulScalar(OnesLike(positions), 1/sqrt(headDim))
				}
				return []*Node{positions, Reshape(scale, maxLen)}
			})
			curves = append(curves, Curve{
				Strategy:  strategy.String(),
				Positions: results[0].Value().([]float64),
				Scales:    results[1].Value().([]float64),
			})
		}
	})
	return
}
