// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package attention

import (
	"github.com/gomlx/attnscale/pkg/ml/scaling"
	"github.com/gomlx/gomlx/pkg/ml/context"
)

// Hyperparameters read from the context by Causal. They can be overridden by the builder methods.
const (
	// ParamHeads is the number of attention heads. The input dimension must be divisible by it.
	// Default is 8.
	ParamHeads = "attention_heads"

	// ParamStrategy selects the attention Strategy by name, see StrategyValues for the options.
	// Default is "base".
	ParamStrategy = "attention_strategy"

	// ParamBaseSeqLen is the sequence length at which the relative strategies match the standard
	// scale of 1/sqrt(headDim). Default is 2048.
	ParamBaseSeqLen = "attention_base_seq_len"

	// ParamBias is the initial per-head bias used by StrategyRelativeBiased. Default is 1.5.
	ParamBias = "attention_bias"

	// ParamLearnedBias defines whether the StrategyRelativeBiased bias is trainable. Default is false.
	ParamLearnedBias = "attention_learned_bias"

	// ParamPositionPolicy selects how positions are generated for the position dependent strategies:
	// "shift" (default), "clamp" or "raw". See scaling.PositionPolicy.
	ParamPositionPolicy = "attention_position_policy"
)

// Defaults for the hyperparameters.
const (
	DefaultHeads      = 8
	DefaultBaseSeqLen = 2048
	DefaultBias       = 1.5
	DefaultDim        = 512
)

// DefaultPositionPolicy used when none is configured.
var DefaultPositionPolicy = scaling.PositionShift

// SetDefaultParams sets the default values of all hyperparameters in ctx, so they show up in listings
// (and can be overwritten by command-line settings).
func SetDefaultParams(ctx *context.Context) {
	ctx.SetParams(map[string]any{
		ParamHeads:          DefaultHeads,
		ParamStrategy:       StrategyBase.String(),
		ParamBaseSeqLen:     DefaultBaseSeqLen,
		ParamBias:           DefaultBias,
		ParamLearnedBias:    false,
		ParamPositionPolicy: DefaultPositionPolicy.String(),
	})
}
