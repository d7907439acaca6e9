// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package reference implements the attention scaling formulas in plain Go, over Go slices.
//
// It is slow and only meant to be used as ground truth in tests.
package reference

import (
	"math"

	"golang.org/x/exp/constraints"
)

// PolyFitCoefficients of the entropy to temperature polynomial, highest degree first.
var PolyFitCoefficients = []float64{-0.037, 0.481, -2.3, 4.917, -1.791}

// YaRN returns ((0.1*ln(pos)+1)^2)/sqrt(headDim).
func YaRN[T constraints.Float](pos T, headDim int) T {
	v := 0.1*math.Log(float64(pos)) + 1
	return T(v * v / math.Sqrt(float64(headDim)))
}

// Relative returns sqrt(log_base(pos)/headDim).
func Relative[T constraints.Float](pos T, headDim, baseSeqLen int) T {
	return RelativeBiased(pos, headDim, 1, baseSeqLen)
}

// RelativeBiased returns sqrt(log_base(pos)*bias/headDim).
func RelativeBiased[T constraints.Float](pos T, headDim int, bias T, baseSeqLen int) T {
	logBase := math.Log(float64(pos)) / math.Log(float64(baseSeqLen))
	return T(math.Sqrt(logBase * float64(bias) / float64(headDim)))
}

// LearnedLog returns 1/((1+alpha*ln(pos)+beta)*baseScale).
func LearnedLog[T constraints.Float](pos, alpha, beta T, baseScale float64) T {
	return T(1 / ((1 + float64(alpha)*math.Log(float64(pos)) + float64(beta)) * baseScale))
}

// Softmax of a row, with an extra term added to the denominator (use 0 for the plain softmax).
//
// The exponentials are shifted by the row max, and extra is added to their sum:
// the denominator is sum(exp(x - max(x))) + extra.
func Softmax[T constraints.Float](row []T, extra float64) []T {
	maxV := math.Inf(-1)
	for _, v := range row {
		maxV = max(maxV, float64(v))
	}
	var sum float64
	exps := make([]float64, len(row))
	for ii, v := range row {
		exps[ii] = math.Exp(float64(v) - maxV)
		sum += exps[ii]
	}
	sum += extra
	out := make([]T, len(row))
	for ii := range row {
		out[ii] = T(exps[ii] / sum)
	}
	return out
}

// Entropy returns -sum(p*ln(p+1e-9)).
func Entropy[T constraints.Float](probs []T) T {
	var h float64
	for _, p := range probs {
		h -= float64(p) * math.Log(float64(p)+1e-9)
	}
	return T(h)
}

// Polyval evaluates the polynomial with the given coefficients (highest degree first) at x.
func Polyval(coefficients []float64, x float64) float64 {
	var y float64
	for _, c := range coefficients {
		y = y*x + c
	}
	return y
}

// AdaptiveBeta returns the temperature multiplier used for a row with the given entropy.
func AdaptiveBeta(entropy float64) float64 {
	if entropy <= 0.5 {
		return 1
	}
	return max(Polyval(PolyFitCoefficients, entropy), 1)
}

// AdaptiveSoftmax is the entropy adaptive temperature softmax of one row.
func AdaptiveSoftmax[T constraints.Float](row []T) []T {
	beta := AdaptiveBeta(float64(Entropy(Softmax(row, 0))))
	scaled := make([]T, len(row))
	for ii, v := range row {
		scaled[ii] = T(float64(v) * beta)
	}
	return Softmax(scaled, 0)
}

// CausalSDPA computes causal scaled dot-product attention for one head.
// query, key and value are shaped [seqLen][headDim].
func CausalSDPA[T constraints.Float](query, key, value [][]T, scale float64) [][]T {
	seqLen := len(query)
	output := make([][]T, seqLen)
	for q := range seqLen {
		scores := make([]T, q+1)
		for k := 0; k <= q; k++ {
			var dot float64
			for d := range query[q] {
				dot += float64(query[q][d]) * float64(key[k][d])
			}
			scores[k] = T(dot * scale)
		}
		weights := Softmax(scores, 0)
		output[q] = make([]T, len(value[0]))
		for k, w := range weights {
			for d := range value[k] {
				output[q][d] += w * value[k][d]
			}
		}
	}
	return output
}

// MatMul multiplies x [n][k] by w [k][m].
func MatMul[T constraints.Float](x, w [][]T) [][]T {
	out := make([][]T, len(x))
	for ii := range x {
		out[ii] = make([]T, len(w[0]))
		for jj := range w[0] {
			var sum T
			for kk := range w {
				sum += x[ii][kk] * w[kk][jj]
			}
			out[ii][jj] = sum
		}
	}
	return out
}
