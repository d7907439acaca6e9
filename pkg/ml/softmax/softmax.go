// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package softmax implements softmax variants used to normalize attention scores, on top of graph.Softmax:
//
//   - AdaptiveTemperature: sharpens high-entropy rows, with a temperature that is a polynomial fit of the
//     row entropy (Veličković et al., "softmax is not enough (for sharp out-of-distribution)").
//   - PlusDenominator: softmax with an extra term added to the denominator, so rows can sum to less than 1
//     ("softmax plus one", with a learned or position dependent term).
//
// All functions operate over the last axis.
package softmax

import (
	"github.com/gomlx/compute/dtypes"
	"github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/pkg/core/graph"
)

// PolyFitCoefficients of the polynomial mapping the entropy of a row to the inverse temperature (beta),
// highest degree first.
var PolyFitCoefficients = []float64{-0.037, 0.481, -2.3, 4.917, -1.791}

const (
	// EntropyThreshold below (or at) which rows are left untouched by AdaptiveTemperature.
	EntropyThreshold = 0.5

	// EntropyEpsilon added to probabilities before taking the log in Entropy.
	EntropyEpsilon = 1e-9
)

func checkLogits(logits *Node) {
	if !logits.DType().IsFloat() {
		exceptions.Panicf("invalid logits dtype (%s), it must be float", logits.DType())
	}
	if logits.Rank() == 0 {
		exceptions.Panicf("softmax requires logits with at least one axis, got a scalar")
	}
}

// PlusDenominator computes a softmax over the last axis whose denominator has an extra term exp(logExtra):
//
//	exp(x - max(x)) / (sum(exp(x - max(x))) + exp(logExtra))
//
// Notice the extra term is added to the max-shifted sum, so it competes against the largest logit.
//
// logExtra must have the same rank as logits, with the last axis of dimension 1, and other axes either 1 or
// matching logits (e.g.: a per-head [1, numHeads, 1, 1] or per-head and position [1, numHeads, seqLen, 1]).
// If logExtra is nil, this is graph.Softmax over the last axis.
//
// Since the extra term is not shifted, the result depends on max(x), and the gradient flows through it.
func PlusDenominator(logits, logExtra *Node) *Node {
	checkLogits(logits)
	if logExtra == nil {
		return Softmax(logits, -1)
	}
	if logExtra.Rank() != logits.Rank() {
		exceptions.Panicf("softmax.PlusDenominator: logExtra (%s) must have the same rank as logits (%s)",
			logExtra.Shape(), logits.Shape())
	}
	if logExtra.DType() != logits.DType() {
		logExtra = ConvertDType(logExtra, logits.DType())
	}
	normalizingMax := ReduceAndKeep(logits, ReduceMax, -1)
	numerator := Exp(Sub(logits, normalizingMax))
	denominator := ReduceAndKeep(numerator, ReduceSum, -1)
	denominator = Add(denominator, BroadcastToDims(Exp(logExtra), denominator.Shape().Dimensions...))
	return Div(numerator, BroadcastToDims(denominator, numerator.Shape().Dimensions...))
}

// Entropy returns the Shannon entropy -sum(p*ln(p+EntropyEpsilon)) over the last axis of probs,
// keeping the reduced axis (with dimension 1).
//
// Half precision inputs are computed in float32, where EntropyEpsilon doesn't round to 0, and the result
// is converted back to the input dtype.
func Entropy(probs *Node) *Node {
	dtype := probs.DType()
	if dtype == dtypes.Float16 || dtype == dtypes.BFloat16 {
		return ConvertDType(Entropy(ConvertDType(probs, dtypes.Float32)), dtype)
	}
	terms := Mul(probs, Log(AddScalar(probs, EntropyEpsilon)))
	return Neg(ReduceAndKeep(terms, ReduceSum, -1))
}

// Polyval evaluates the polynomial with the given coefficients (highest degree first) on x, element-wise.
func Polyval(coefficients []float64, x *Node) *Node {
	if len(coefficients) == 0 {
		exceptions.Panicf("softmax.Polyval requires at least one coefficient")
	}
	y := AddScalar(ZerosLike(x), coefficients[0])
	for _, c := range coefficients[1:] {
		y = AddScalar(Mul(y, x), c)
	}
	return y
}

// AdaptiveBeta returns the inverse temperature used by AdaptiveTemperature for each row of logits, shaped like
// logits with the last axis of dimension 1.
//
// It is 1 for rows with entropy <= EntropyThreshold, and max(polyval(PolyFitCoefficients, entropy), 1) otherwise,
// so the temperature never increases the entropy of a row.
func AdaptiveBeta(logits *Node) *Node {
	checkLogits(logits)
	entropy := Entropy(Softmax(logits, -1))
	beta := MaxScalar(Polyval(PolyFitCoefficients, entropy), 1)
	highEntropy := GreaterThan(entropy, ConstAs(entropy, EntropyThreshold))
	return Where(highEntropy, beta, OnesLike(beta))
}

// AdaptiveTemperature returns softmax(logits * beta) over the last axis, with beta given by AdaptiveBeta.
//
// Rows are probability distributions (non-negative, summing to 1), and rows with low entropy are
// exactly the plain softmax.
func AdaptiveTemperature(logits *Node) *Node {
	beta := AdaptiveBeta(logits)
	return Softmax(Mul(logits, BroadcastToDims(beta, logits.Shape().Dimensions...)), -1)
}
