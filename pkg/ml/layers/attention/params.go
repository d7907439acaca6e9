// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package attention

import (
	"github.com/gomlx/compute/dtypes"
	"github.com/gomlx/compute/dtypes/bfloat16"
	"github.com/gomlx/compute/dtypes/float16"
	"github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
)

// Names of the per-head scaling variables.
const (
	VarAttnBias  = "attn_bias"
	VarAlphas    = "alphas"
	VarBetas     = "betas"
	VarDenomBias = "denom_bias"
)

// perHeadParam is a scalar per head, shaped [1, numHeads, 1, 1], stored as a context variable.
//
// Learned and fixed parameters only differ on whether the variable is trainable. Forward code reads
// both with Value.
type perHeadParam struct {
	v *context.Variable
}

// newPerHeadParam returns the per-head variable name in ctx, creating it filled with initial if it doesn't
// exist yet (e.g. it was not loaded from a checkpoint).
func newPerHeadParam(ctx *context.Context, name string, dtype dtypes.DType, numHeads int, initial float64, trainable bool) perHeadParam {
	v := ctx.VariableWithValue(name, perHeadTensor(dtype, numHeads, initial))
	if v.Shape().Rank() != 4 || v.Shape().Dimensions[1] != numHeads {
		exceptions.Panicf("attention: variable %q in scope %q is shaped %s, expected [1, %d, 1, 1]",
			name, ctx.Scope(), v.Shape(), numHeads)
	}
	v.SetTrainable(trainable)
	return perHeadParam{v: v}
}

// Value of the parameter in graph g.
func (p perHeadParam) Value(g *Graph) *Node {
	return p.v.ValueGraph(g)
}

// Trainable returns whether the parameter is updated by optimizers.
func (p perHeadParam) Trainable() bool {
	return p.v.Trainable
}

// perHeadTensor returns a tensor of the given float dtype shaped [1, numHeads, 1, 1] filled with value.
func perHeadTensor(dtype dtypes.DType, numHeads int, value float64) *tensors.Tensor {
	switch dtype {
	case dtypes.Float64:
		return tensors.FromScalarAndDimensions(value, 1, numHeads, 1, 1)
	case dtypes.Float32:
		return tensors.FromScalarAndDimensions(float32(value), 1, numHeads, 1, 1)
	case dtypes.Float16:
		return tensors.FromScalarAndDimensions(float16.FromFloat32(float32(value)), 1, numHeads, 1, 1)
	case dtypes.BFloat16:
		return tensors.FromScalarAndDimensions(bfloat16.FromFloat64(value), 1, numHeads, 1, 1)
	}
	exceptions.Panicf("attention: per-head parameters require a float dtype, got %s", dtype)
	return nil
}
