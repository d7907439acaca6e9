// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package attention

import (
	"github.com/gomlx/exceptions"
)

// Strategy enumerates how attention scores are scaled or normalized as a function of the position
// of the query, the head and the entropy of the scores.
//
// It is converted to snake-format strings (e.g.: StrategyPolyFit -> "poly_fit"), and can be converted
// from string with StrategyFromName.
type Strategy int

const (
	// StrategyBase is the standard scaled dot-product attention, with scale 1/sqrt(headDim).
	StrategyBase Strategy = iota

	// StrategyRelative scales queries by sqrt(log_{baseSeqLen}(pos)/headDim), from "Training-free Diffusion
	// Model Adaptation for Variable-Sized Text-to-Image Synthesis".
	StrategyRelative

	// StrategyRelativeBiased scales queries by sqrt(log_{baseSeqLen}(pos)*bias/headDim), with a per-head bias
	// that can be fixed or learned, from "Pippo: High-Resolution Multi-View Humans from a Single Image".
	StrategyRelativeBiased

	// StrategyYarn scales queries by ((0.1*ln(pos)+1)^2)/sqrt(headDim), from "YaRN: Efficient Context Window
	// Extension of Large Language Models".
	StrategyYarn

	// StrategyPolyFit uses the entropy adaptive temperature softmax, see softmax.AdaptiveTemperature.
	StrategyPolyFit

	// StrategyLearnedLog scales queries by 1/((1+alpha*ln(pos)+beta)*sqrt(headDim)), with learned per-head
	// alpha and beta, initialized to 0.
	StrategyLearnedLog

	// StrategySoftmaxPlusConstant adds a learned per-head exp(denom_bias) to the softmax denominator.
	// With denom_bias = 0 it is the "softmax plus one".
	StrategySoftmaxPlusConstant

	// StrategySoftmaxPlusFunction adds a learned per-head exp(alpha*ln(pos)+beta) to the softmax denominator.
	StrategySoftmaxPlusFunction
)

//go:generate go tool enumer -type Strategy -trimprefix=Strategy -transform=snake -output=gen_strategy_enumer.go strategy.go

// StrategyFromName converts a name (e.g. "relative_biased") to a Strategy.
// Empty defaults to StrategyBase. It panics for unknown names.
func StrategyFromName(name string) Strategy {
	if name == "" {
		return StrategyBase
	}
	strategy, err := StrategyString(name)
	if err != nil {
		exceptions.Panicf("invalid attention strategy %q: options are %v", name, StrategyValues())
	}
	return strategy
}

// PreScalesQuery returns whether the strategy multiplies the queries by a position dependent scale,
// in which case the dot-product itself uses scale 1.
func (s Strategy) PreScalesQuery() bool {
	switch s {
	case StrategyRelative, StrategyRelativeBiased, StrategyYarn, StrategyLearnedLog:
		return true
	default:
		return false
	}
}

// HasLearnedParams returns whether the strategy always creates trainable per-head parameters.
// StrategyRelativeBiased creates them only if configured with LearnedBias.
func (s Strategy) HasLearnedParams() bool {
	switch s {
	case StrategyLearnedLog, StrategySoftmaxPlusConstant, StrategySoftmaxPlusFunction:
		return true
	default:
		return false
	}
}
