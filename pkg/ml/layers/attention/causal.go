// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package attention

import (
	"github.com/gomlx/attnscale/pkg/ml/scaling"
	"github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// CausalBuilder is a helper to build a causal self-attention layer with one of the scaling strategies.
// Create it with Causal, set the desired parameters, and when all is set, call Done.
type CausalBuilder struct {
	ctx *context.Context
	x   *Node

	numHeads       int
	strategy       Strategy
	baseSeqLen     int
	attnBias       float64
	learnedBias    bool
	positionPolicy scaling.PositionPolicy
}

// Causal defines a causal multi-head self-attention layer over x, shaped [batch, seqLen, dim].
//
// Queries, keys and values are projected from x (without bias) to dim, split into numHeads heads of
// dimension dim/numHeads, attended with the configured Strategy, merged and projected back to dim (with bias).
//
// The defaults are taken from the context hyperparameters (see ParamHeads, ParamStrategy, ParamBaseSeqLen,
// ParamBias, ParamLearnedBias and ParamPositionPolicy), and can be overridden with the builder methods.
//
// Variables are created under the scope "attention" of ctx: the projections "query", "key", "value" and
// "output", and the per-head scaling parameters used by the strategy.
func Causal(ctx *context.Context, x *Node) *CausalBuilder {
	if x.Rank() != 3 {
		exceptions.Panicf("attention.Causal requires x shaped [batch, seqLen, dim], got %s", x.Shape())
	}
	if !x.DType().IsFloat() {
		exceptions.Panicf("attention.Causal requires a float input, got %s", x.Shape())
	}
	return &CausalBuilder{
		ctx:            ctx.In("attention"),
		x:              x,
		numHeads:       context.GetParamOr(ctx, ParamHeads, DefaultHeads),
		strategy:       StrategyFromName(context.GetParamOr(ctx, ParamStrategy, "")),
		baseSeqLen:     context.GetParamOr(ctx, ParamBaseSeqLen, DefaultBaseSeqLen),
		attnBias:       context.GetParamOr(ctx, ParamBias, DefaultBias),
		learnedBias:    context.GetParamOr(ctx, ParamLearnedBias, false),
		positionPolicy: scaling.PolicyFromName(context.GetParamOr(ctx, ParamPositionPolicy, "")),
	}
}

// Heads sets the number of attention heads. The input dimension must be divisible by it.
func (b *CausalBuilder) Heads(numHeads int) *CausalBuilder {
	b.numHeads = numHeads
	return b
}

// Strategy sets the attention scaling strategy.
func (b *CausalBuilder) Strategy(strategy Strategy) *CausalBuilder {
	b.strategy = strategy
	return b
}

// BaseSeqLen sets the sequence length at which the relative strategies match the standard scale.
func (b *CausalBuilder) BaseSeqLen(baseSeqLen int) *CausalBuilder {
	if baseSeqLen < 2 {
		exceptions.Panicf("attention: BaseSeqLen must be >= 2, got %d", baseSeqLen)
	}
	b.baseSeqLen = baseSeqLen
	return b
}

// AttnBias sets the initial per-head bias of StrategyRelativeBiased.
func (b *CausalBuilder) AttnBias(bias float64) *CausalBuilder {
	b.attnBias = bias
	return b
}

// LearnedBias sets whether the StrategyRelativeBiased bias is trainable.
func (b *CausalBuilder) LearnedBias(learned bool) *CausalBuilder {
	b.learnedBias = learned
	return b
}

// PositionPolicy sets how positions are generated for the position dependent strategies.
func (b *CausalBuilder) PositionPolicy(policy scaling.PositionPolicy) *CausalBuilder {
	b.positionPolicy = policy
	return b
}

// Done builds the attention layer and returns its output, shaped like the input [batch, seqLen, dim].
func (b *CausalBuilder) Done() *Node {
	output, _ := b.build(false)
	return output
}

// DoneWithCoefficients builds the attention layer and returns its output, shaped [batch, seqLen, dim],
// and the attention coefficients, shaped [batch, numHeads, seqLen, seqLen].
//
// Rows of the coefficients sum to 1, except for the "softmax plus" strategies, where they sum to less than 1.
func (b *CausalBuilder) DoneWithCoefficients() (output, coefficients *Node) {
	return b.build(true)
}

func (b *CausalBuilder) build(wantCoefficients bool) (output, coefficients *Node) {
	dims := b.x.Shape().Dimensions
	dim := dims[2]
	if b.numHeads <= 0 || dim%b.numHeads != 0 {
		panic(errors.Wrapf(ErrInvalidHeads, "dim=%d is not divisible by numHeads=%d", dim, b.numHeads))
	}
	if b.baseSeqLen < 2 {
		exceptions.Panicf("attention: base sequence length must be >= 2, got %d", b.baseSeqLen)
	}
	klog.V(1).Infof("attention %q: strategy=%s, heads=%d, position policy=%s, input=%s",
		b.ctx.Scope(), b.strategy, b.numHeads, b.positionPolicy, b.x.Shape())

	query := SplitHeads(layers.Dense(b.ctx.In("query"), b.x, false, dim), b.numHeads)
	key := SplitHeads(layers.Dense(b.ctx.In("key"), b.x, false, dim), b.numHeads)
	value := SplitHeads(layers.Dense(b.ctx.In("value"), b.x, false, dim), b.numHeads)

	var heads *Node
	heads, coefficients = b.attend(query, key, value, wantCoefficients)
	output = layers.Dense(b.ctx.In("output"), MergeHeads(heads), true, dim)
	return
}
