// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package attention

import (
	"math"

	"github.com/gomlx/attnscale/pkg/ml/scaling"
	"github.com/gomlx/attnscale/pkg/ml/softmax"
	"github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/pkg/core/graph"
)

// Attend runs the configured strategy over the already projected query, key and value, shaped
// [batch, numHeads, seqLen, headDim]. It returns the attended values shaped like value, and the
// attention coefficients shaped [batch, numHeads, seqLen, seqLen].
//
// Per-head scaling parameters are created (or reused) in the builder's context.
// It panics with ErrIncrementalDecoding if the sequence lengths of query, key and value differ.
func (b *CausalBuilder) Attend(query, key, value *Node) (output, coefficients *Node) {
	return b.attend(query, key, value, true)
}

// attend implements Attend. Strategies normalized with the plain softmax run on the engine's causal
// attention, and when wantCoefficients is false their coefficients are nil.
func (b *CausalBuilder) attend(query, key, value *Node, wantCoefficients bool) (output, coefficients *Node) {
	CheckSameSequence(query, key, value)
	g := query.Graph()
	dtype := query.DType()
	numHeads, seqLen, headDim := query.Shape().Dim(1), query.Shape().Dim(2), query.Shape().Dim(3)
	standardScale := 1 / math.Sqrt(float64(headDim))
	positions := func() *Node {
		return scaling.Positions(g, dtype, seqLen, b.positionPolicy)
	}

	switch b.strategy {
	case StrategyBase:
		return causalSDPA(b.ctx, query, key, value, standardScale, wantCoefficients)

	case StrategyRelative:
		query = scaling.ScaleQuery(query, scaling.Relative(positions(), headDim, b.baseSeqLen))
		return causalSDPA(b.ctx, query, key, value, 1, wantCoefficients)

	case StrategyRelativeBiased:
		bias := newPerHeadParam(b.ctx, VarAttnBias, dtype, numHeads, b.attnBias, b.learnedBias)
		scale := scaling.RelativeBiased(positions(), headDim, bias.Value(g), b.baseSeqLen)
		query = scaling.ScaleQuery(query, scale)
		return causalSDPA(b.ctx, query, key, value, 1, wantCoefficients)

	case StrategyYarn:
		query = scaling.ScaleQuery(query, scaling.YaRN(positions(), headDim))
		return causalSDPA(b.ctx, query, key, value, 1, wantCoefficients)

	case StrategyPolyFit:
		coefficients = softmax.AdaptiveTemperature(Scores(query, key, standardScale))

	case StrategyLearnedLog:
		alphas := newPerHeadParam(b.ctx, VarAlphas, dtype, numHeads, 0, true)
		betas := newPerHeadParam(b.ctx, VarBetas, dtype, numHeads, 0, true)
		scale := scaling.LearnedLog(positions(), alphas.Value(g), betas.Value(g), math.Sqrt(float64(headDim)))
		query = scaling.ScaleQuery(query, scale)
		return causalSDPA(b.ctx, query, key, value, 1, wantCoefficients)

	case StrategySoftmaxPlusConstant:
		denomBias := newPerHeadParam(b.ctx, VarDenomBias, dtype, numHeads, 0, true)
		coefficients = softmax.PlusDenominator(Scores(query, key, standardScale), denomBias.Value(g))

	case StrategySoftmaxPlusFunction:
		alphas := newPerHeadParam(b.ctx, VarAlphas, dtype, numHeads, 0, true)
		betas := newPerHeadParam(b.ctx, VarBetas, dtype, numHeads, 0, true)
		logExtra := scaling.LogAffine(positions(), alphas.Value(g), betas.Value(g))
		coefficients = softmax.PlusDenominator(Scores(query, key, standardScale), logExtra)

	default:
		exceptions.Panicf("attention: unknown strategy %s", b.strategy)
	}
	output = Combine(coefficients, value)
	return
}
