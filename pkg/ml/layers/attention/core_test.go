// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package attention

import (
	"math"
	"testing"

	"github.com/gomlx/compute/dtypes"
	"github.com/gomlx/compute/dtypes/bfloat16"
	"github.com/gomlx/compute/dtypes/float16"
	"github.com/gomlx/compute/shapes"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/graph/graphtest"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/support/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shapesInput(batch, seqLen, dim int) shapes.Shape {
	return shapes.Make(dtypes.Float32, batch, seqLen, dim)
}

func shapesHeads(batch, numHeads, seqLen, headDim int) shapes.Shape {
	return shapes.Make(dtypes.Float32, batch, numHeads, seqLen, headDim)
}

func TestLowestFinite(t *testing.T) {
	assert.Equal(t, float32(-65504), float16.FromBits(0xfbff).Float32())
	lowestBF16 := bfloat16.FromBits(0xff7f).Float32()
	assert.False(t, math.IsInf(float64(lowestBF16), 0))
	assert.Less(t, lowestBF16, float32(-3e38))

	graphtest.RunTestGraphFn(t, "LowestFinite", func(g *Graph) (inputs, outputs []*Node) {
		outputs = []*Node{LowestFinite(g, dtypes.Float32), LowestFinite(g, dtypes.Float64)}
		return
	}, []any{float32(-math.MaxFloat32), -math.MaxFloat64}, -1)
}

func TestMaskFuture(t *testing.T) {
	graphtest.RunTestGraphFn(t, "MaskFuture", func(g *Graph) (inputs, outputs []*Node) {
		scores := OnesLike(IotaFull(g, shapes.Make(dtypes.Float32, 1, 1, 3, 3)))
		inputs = []*Node{scores}
		outputs = []*Node{MaskFuture(scores)}
		return
	}, []any{
		[][][][]float32{{{
			{1, -math.MaxFloat32, -math.MaxFloat32},
			{1, 1, -math.MaxFloat32},
			{1, 1, 1},
		}}},
	}, -1)
}

func TestSplitMergeHeads(t *testing.T) {
	graphtest.RunTestGraphFn(t, "SplitHeads", func(g *Graph) (inputs, outputs []*Node) {
		x := IotaFull(g, shapes.Make(dtypes.Float32, 1, 2, 4))
		split := SplitHeads(x, 2)
		inputs = []*Node{x}
		outputs = []*Node{split, MergeHeads(split)}
		return
	}, []any{
		[][][][]float32{{{{0, 1}, {4, 5}}, {{2, 3}, {6, 7}}}},
		[][][]float32{{{0, 1, 2, 3}, {4, 5, 6, 7}}},
	}, -1)
}

func TestPerHeadTensorHalfPrecision(t *testing.T) {
	f16 := perHeadTensor(dtypes.Float16, 2, 1.5)
	require.NoError(t, f16.Shape().Check(dtypes.Float16, 1, 2, 1, 1))
	for _, v := range tensors.MustCopyFlatData[float16.Float16](f16) {
		assert.Equal(t, float32(1.5), v.Float32())
	}
	bf16 := perHeadTensor(dtypes.BFloat16, 3, -2)
	require.NoError(t, bf16.Shape().Check(dtypes.BFloat16, 1, 3, 1, 1))
	for _, v := range tensors.MustCopyFlatData[bfloat16.BFloat16](bf16) {
		assert.Equal(t, float32(-2), v.Float32())
	}
}

func TestCausalSDPAFirstPosition(t *testing.T) {
	// The first query can only attend to the first key: output is the first value.
	backend := testutil.BuildTestBackend()
	outputs := MustNewExec(backend, func(g *Graph) []*Node {
		q := IotaFull(g, shapes.Make(dtypes.Float32, 1, 1, 3, 2))
		v := MulScalar(q, 10)
		output, coefficients := CausalSDPA(q, q, v, 1/math.Sqrt(2))
		return []*Node{output, coefficients}
	}).MustExec()
	output := outputs[0].Value().([][][][]float32)
	require.Equal(t, []float32{0, 10}, output[0][0][0])
	coefficients := outputs[1].Value().([][][][]float32)
	require.Equal(t, []float32{1, 0, 0}, coefficients[0][0][0])
}

func TestMaskFutureFloat16(t *testing.T) {
	// Masked scores must stay finite in half precision: -65504 instead of -Inf.
	graphtest.RunTestGraphFn(t, "MaskFuture(float16)", func(g *Graph) (inputs, outputs []*Node) {
		scores := ConvertDType(OnesLike(IotaFull(g, shapes.Make(dtypes.Float32, 1, 1, 2, 2))), dtypes.Float16)
		outputs = []*Node{ConvertDType(MaskFuture(scores), dtypes.Float32)}
		return
	}, []any{
		[][][][]float32{{{{1, -65504}, {1, 1}}}},
	}, -1)
}

func TestCausalSDPAMatchesScores(t *testing.T) {
	// The engine's causal attention matches the softmax over the masked Scores.
	backend := testutil.BuildTestBackend()
	x := randomInput[float64](9, 2, 5, testDim)
	outputs := MustNewExec(backend, func(x *Node) []*Node {
		q := SplitHeads(x, testHeads)
		k := SplitHeads(MulScalar(x, 0.5), testHeads)
		v := SplitHeads(Neg(x), testHeads)
		scale := 1 / math.Sqrt(testHeadDim)
		output, coefficients := CausalSDPA(q, k, v, scale)
		manualCoefficients := Softmax(Scores(q, k, scale), -1)
		return []*Node{output, coefficients, Combine(manualCoefficients, v), manualCoefficients}
	}).MustExec(x)
	require.NoError(t, outputs[0].Shape().CheckDims(2, testHeads, 5, testHeadDim))
	assert.InDeltaSlice(t, tensors.MustCopyFlatData[float64](outputs[2]), tensors.MustCopyFlatData[float64](outputs[0]), 1e-9)
	assert.InDeltaSlice(t, tensors.MustCopyFlatData[float64](outputs[3]), tensors.MustCopyFlatData[float64](outputs[1]), 1e-9)
}
