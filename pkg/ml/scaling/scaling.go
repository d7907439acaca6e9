// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package scaling implements position (and head) dependent scale factors applied to attention
// queries, as a function of how far into the sequence the query is.
//
// All functions build graph nodes, are pure and differentiable with respect to their *Node operands.
// Scale factors are returned shaped [1, numHeads, seqLen, 1] (numHeads=1 when they don't depend on the head),
// so they broadcast against queries shaped [batch, numHeads, seqLen, headDim].
//
// The logarithm of the position is undefined at position 0: see PositionPolicy for how positions
// are generated.
package scaling

import (
	"math"

	"github.com/gomlx/compute/dtypes"
	"github.com/gomlx/compute/shapes"
	"github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/pkg/core/graph"
)

// PositionPolicy defines how the position operand of the scaling functions is generated from the query index.
type PositionPolicy int

const (
	// PositionShift uses index+1 as position: the number of keys the query can attend to.
	// The query at index baseSeqLen-1 sees exactly baseSeqLen keys. This is the default.
	PositionShift PositionPolicy = iota

	// PositionClamp uses max(index, 1) as position, so the first two queries share position 1.
	PositionClamp

	// PositionRaw uses the index itself. The log of position 0 is -Inf, and the scale factors of the first
	// query are not finite (or NaN): callers are responsible for dealing with that.
	PositionRaw
)

//go:generate go tool enumer -type PositionPolicy -trimprefix=Position -transform=snake -output=gen_positionpolicy_enumer.go scaling.go

// PolicyFromName converts a policy name ("shift", "clamp" or "raw") to a PositionPolicy.
// Empty defaults to PositionShift. It panics for unknown names.
func PolicyFromName(name string) PositionPolicy {
	if name == "" {
		return PositionShift
	}
	policy, err := PositionPolicyString(name)
	if err != nil {
		exceptions.Panicf("invalid position policy %q: options are %v", name, PositionPolicyValues())
	}
	return policy
}

// Positions returns the position operand for a sequence of length seqLen, shaped [seqLen], following policy.
// The dtype must be a float.
func Positions(g *Graph, dtype dtypes.DType, seqLen int, policy PositionPolicy) *Node {
	if seqLen < 1 {
		exceptions.Panicf("scaling.Positions requires seqLen >= 1, got %d", seqLen)
	}
	if !dtype.IsFloat() {
		exceptions.Panicf("scaling.Positions requires a float dtype, got %s", dtype)
	}
	positions := Iota(g, shapes.Make(dtype, seqLen), 0)
	switch policy {
	case PositionShift:
		positions = OnePlus(positions)
	case PositionClamp:
		positions = MaxScalar(positions, 1)
	case PositionRaw:
	default:
		exceptions.Panicf("scaling.Positions: unknown position policy %d", policy)
	}
	return positions
}

// LogBase returns log_base(x) = ln(x)/ln(base).
func LogBase(x *Node, base float64) *Node {
	if base <= 0 || base == 1 {
		exceptions.Panicf("scaling.LogBase requires base > 0 and base != 1, got %g", base)
	}
	return DivScalar(Log(x), math.Log(base))
}

// asQueryAxis reshapes positions (or any per-position values) shaped [seqLen] to [1, 1, seqLen, 1].
func asQueryAxis(positions *Node) *Node {
	if positions.Rank() != 1 {
		exceptions.Panicf("scaling: positions must be shaped [seqLen], got %s", positions.Shape())
	}
	return Reshape(positions, 1, 1, positions.Shape().Dimensions[0], 1)
}

func checkHeadDim(headDim int) {
	if headDim <= 0 {
		exceptions.Panicf("scaling: headDim must be > 0, got %d", headDim)
	}
}

// checkPerHead validates a per-head parameter shaped [1, numHeads, 1, 1].
func checkPerHead(name string, param *Node) {
	dims := param.Shape().Dimensions
	if param.Rank() != 4 || dims[0] != 1 || dims[2] != 1 || dims[3] != 1 {
		exceptions.Panicf("scaling: %s must be shaped [1, numHeads, 1, 1], got %s", name, param.Shape())
	}
}

// perHeadAndPosition broadcasts perPosition [1, 1, seqLen, 1] and perHead [1, numHeads, 1, 1] values
// to [1, numHeads, seqLen, 1].
func perHeadAndPosition(perPosition, perHead *Node) (*Node, *Node) {
	dims := []int{1, perHead.Shape().Dimensions[1], perPosition.Shape().Dimensions[2], 1}
	if perHead.DType() != perPosition.DType() {
		perHead = ConvertDType(perHead, perPosition.DType())
	}
	return BroadcastToDims(perPosition, dims...), BroadcastToDims(perHead, dims...)
}

// sqrtAtZero is Sqrt(x), but with a zero gradient where x == 0 (position 1 has ln(1) = 0), instead of NaN.
// Negative values (and -Inf) still yield NaN.
func sqrtAtZero(x *Node) *Node {
	isZero := Equal(x, ZerosLike(x))
	safe := Where(isZero, OnesLike(x), x)
	return Where(isZero, ZerosLike(x), Sqrt(safe))
}

// YaRN returns ((0.1*ln(pos) + 1)^2) / sqrt(headDim), shaped [1, 1, seqLen, 1].
func YaRN(positions *Node, headDim int) *Node {
	checkHeadDim(headDim)
	scale := Square(OnePlus(MulScalar(Log(positions), 0.1)))
	scale = DivScalar(scale, math.Sqrt(float64(headDim)))
	return asQueryAxis(scale)
}

// Relative returns sqrt(log_{baseSeqLen}(pos) / headDim), shaped [1, 1, seqLen, 1].
//
// At pos == baseSeqLen it equals sqrt(1/headDim), the standard dot-product attention scale.
func Relative(positions *Node, headDim, baseSeqLen int) *Node {
	checkHeadDim(headDim)
	scale := sqrtAtZero(DivScalar(LogBase(positions, float64(baseSeqLen)), float64(headDim)))
	return asQueryAxis(scale)
}

// RelativeBiased returns sqrt(log_{baseSeqLen}(pos) * bias / headDim), shaped [1, numHeads, seqLen, 1].
//
// bias is a per-head value shaped [1, numHeads, 1, 1].
func RelativeBiased(positions *Node, headDim int, bias *Node, baseSeqLen int) *Node {
	checkHeadDim(headDim)
	checkPerHead("bias", bias)
	logPos, bias := perHeadAndPosition(asQueryAxis(LogBase(positions, float64(baseSeqLen))), bias)
	return sqrtAtZero(DivScalar(Mul(logPos, bias), float64(headDim)))
}

// LearnedLog returns 1 / ((1 + alpha*ln(pos) + beta) * baseScale), shaped [1, numHeads, seqLen, 1].
//
// alphas and betas are per-head values shaped [1, numHeads, 1, 1], usually trainable and initialized to 0,
// in which case it reduces to the standard 1/baseScale. baseScale is usually sqrt(headDim).
func LearnedLog(positions, alphas, betas *Node, baseScale float64) *Node {
	if baseScale == 0 {
		exceptions.Panicf("scaling.LearnedLog requires a non-zero baseScale")
	}
	multiplier := OnePlus(LogAffine(positions, alphas, betas))
	return Reciprocal(MulScalar(multiplier, baseScale))
}

// LogAffine returns alpha*ln(pos) + beta, shaped [1, numHeads, seqLen, 1].
//
// alphas and betas are per-head values shaped [1, numHeads, 1, 1].
func LogAffine(positions, alphas, betas *Node) *Node {
	checkPerHead("alphas", alphas)
	checkPerHead("betas", betas)
	logPos, alphas := perHeadAndPosition(asQueryAxis(Log(positions)), alphas)
	_, betas = perHeadAndPosition(logPos, betas)
	return Add(Mul(alphas, logPos), betas)
}

// Broadcastable panics if scale (shaped [1 or batch, 1 or numHeads, seqLen, 1 or headDim]) can't be
// broadcast against query, shaped [batch, numHeads, seqLen, headDim].
func Broadcastable(scale, query *Node) {
	if scale.Rank() != 4 || query.Rank() != 4 {
		exceptions.Panicf("scaling: scale %s and query %s must both be rank-4", scale.Shape(), query.Shape())
	}
	for axis, dim := range scale.Shape().Dimensions {
		if dim != 1 && dim != query.Shape().Dimensions[axis] {
			exceptions.Panicf("scaling: scale shaped %s can't be broadcast to query shaped %s (axis %d)",
				scale.Shape(), query.Shape(), axis)
		}
	}
}

// ScaleQuery multiplies query by scale, after checking that it broadcasts.
func ScaleQuery(query, scale *Node) *Node {
	Broadcastable(scale, query)
	if scale.DType() != query.DType() {
		scale = ConvertDType(scale, query.DType())
	}
	return Mul(query, BroadcastToDims(scale, query.Shape().Dimensions...))
}
