// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package attention

import (
	"math"

	"github.com/gomlx/compute/dtypes"
	"github.com/gomlx/compute/dtypes/bfloat16"
	"github.com/gomlx/compute/dtypes/float16"
	"github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
	gattention "github.com/gomlx/gomlx/pkg/ml/layers/attention"
	"github.com/pkg/errors"
)

// LowestFinite returns a scalar with the most negative finite value representable in dtype.
//
// It is used to mask attention scores instead of -Inf, which turns fully masked rows into NaN.
func LowestFinite(g *Graph, dtype dtypes.DType) *Node {
	switch dtype {
	case dtypes.Float64:
		return Scalar(g, dtype, -math.MaxFloat64)
	case dtypes.Float32:
		return Scalar(g, dtype, -math.MaxFloat32)
	case dtypes.Float16:
		// -65504
		return Const(g, float16.FromBits(0xfbff))
	case dtypes.BFloat16:
		return Const(g, bfloat16.FromBits(0xff7f))
	}
	exceptions.Panicf("LowestFinite requires a float dtype, got %s", dtype)
	return nil
}

// CausalMask returns a boolean mask shaped [1, 1, seqLen, seqLen], true where query i can attend key j (j <= i).
func CausalMask(g *Graph, seqLen int) *Node {
	return Reshape(LowerTriangular(g, seqLen), 1, 1, seqLen, seqLen)
}

// MaskFuture replaces the scores (shaped [batch, numHeads, seqLen, seqLen]) of future keys by the
// lowest finite value of the dtype.
func MaskFuture(scores *Node) *Node {
	dims := scores.Shape().Dimensions
	mask := BroadcastToDims(CausalMask(scores.Graph(), dims[2]), dims...)
	return Where(mask, scores, LowestFinite(scores.Graph(), scores.DType()))
}

// CheckSameSequence panics with ErrIncrementalDecoding if query, key and value (shaped
// [batch, numHeads, seqLen, headDim]) don't share the same sequence length, or with a plain error for other
// shape mismatches.
func CheckSameSequence(query, key, value *Node) {
	for _, x := range []*Node{query, key, value} {
		if x.Rank() != 4 {
			exceptions.Panicf("attention: query, key and value must be shaped [batch, numHeads, seqLen, headDim], got %s", x.Shape())
		}
	}
	qLen, kLen, vLen := query.Shape().Dim(2), key.Shape().Dim(2), value.Shape().Dim(2)
	if qLen != kLen || qLen != vLen {
		panic(errors.Wrapf(ErrIncrementalDecoding, "query has %d positions, key %d and value %d", qLen, kLen, vLen))
	}
	if query.Shape().Dim(-1) != key.Shape().Dim(-1) {
		exceptions.Panicf("attention: query (%s) and key (%s) head dimensions differ", query.Shape(), key.Shape())
	}
	if query.Shape().Dim(0) != key.Shape().Dim(0) || query.Shape().Dim(1) != key.Shape().Dim(1) ||
		query.Shape().Dim(0) != value.Shape().Dim(0) || query.Shape().Dim(1) != value.Shape().Dim(1) {
		exceptions.Panicf("attention: query (%s), key (%s) and value (%s) batch and heads dimensions differ",
			query.Shape(), key.Shape(), value.Shape())
	}
	if qLen < 1 {
		exceptions.Panicf("attention: sequence length must be >= 1, got %d", qLen)
	}
}

// Scores returns the masked attention scores query·key^T*scale, shaped [batch, numHeads, seqLen, seqLen].
func Scores(query, key *Node, scale float64) *Node {
	scores := Einsum("bhqd,bhkd->bhqk", query, key)
	if scale != 1 {
		scores = MulScalar(scores, scale)
	}
	return MaskFuture(scores)
}

// Combine returns the weighted sum of values, given the coefficients shaped [batch, numHeads, seqLen, seqLen].
func Combine(coefficients, value *Node) *Node {
	return Einsum("bhqk,bhkd->bhqd", coefficients, value)
}

// CausalSDPA is the causal scaled dot-product attention over query, key and value shaped
// [batch, numHeads, seqLen, headDim]. It returns the output shaped like value, and the attention coefficients
// shaped [batch, numHeads, seqLen, seqLen].
//
// The usual scale is 1/sqrt(headDim), but strategies that pre-scale the query use 1.
func CausalSDPA(query, key, value *Node, scale float64) (output, coefficients *Node) {
	return causalSDPA(nil, query, key, value, scale, true)
}

// causalSDPA runs the causal attention with the engine's attention.Core. If wantCoefficients is false the
// backend may use a fused implementation, and coefficients is nil.
func causalSDPA(ctx *context.Context, query, key, value *Node, scale float64, wantCoefficients bool) (output, coefficients *Node) {
	CheckSameSequence(query, key, value)
	return gattention.Core(ctx, query, key, value, scale, nil, nil, gattention.LayoutBHSD, true, wantCoefficients)
}

// SplitHeads reshapes x from [batch, seqLen, numHeads*headDim] to [batch, numHeads, seqLen, headDim].
func SplitHeads(x *Node, numHeads int) *Node {
	dims := x.Shape().Dimensions
	if x.Rank() != 3 || numHeads <= 0 || dims[2]%numHeads != 0 {
		panic(errors.Wrapf(ErrInvalidHeads, "can't split %s into %d heads", x.Shape(), numHeads))
	}
	x = Reshape(x, dims[0], dims[1], numHeads, dims[2]/numHeads)
	return TransposeAllDims(x, 0, 2, 1, 3)
}

// MergeHeads reshapes x from [batch, numHeads, seqLen, headDim] to [batch, seqLen, numHeads*headDim].
func MergeHeads(x *Node) *Node {
	dims := x.Shape().Dimensions
	x = TransposeAllDims(x, 0, 2, 1, 3)
	return Reshape(x, dims[0], dims[2], dims[1]*dims[3])
}
