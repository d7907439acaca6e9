// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package softmax

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/gomlx/attnscale/internal/reference"
	"github.com/gomlx/compute/dtypes"
	_ "github.com/gomlx/gomlx/backends/default"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/graph/graphtest"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/support/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolyval(t *testing.T) {
	graphtest.RunTestGraphFn(t, "Polyval", func(g *Graph) (inputs, outputs []*Node) {
		x := Const(g, []float32{0, 1, 2})
		inputs = []*Node{x}
		outputs = []*Node{Polyval([]float64{2, 3, 4}, x)}
		return
	}, []any{[]float32{4, 9, 18}}, 1e-6)
}

func TestEntropy(t *testing.T) {
	graphtest.RunTestGraphFn(t, "Entropy", func(g *Graph) (inputs, outputs []*Node) {
		probs := Const(g, [][]float64{{0.25, 0.25, 0.25, 0.25}, {1, 0, 0, 0}})
		inputs = []*Node{probs}
		outputs = []*Node{Entropy(probs)}
		return
	}, []any{[][]float64{
		{reference.Entropy([]float64{0.25, 0.25, 0.25, 0.25})},
		{reference.Entropy([]float64{1, 0, 0, 0})},
	}}, 1e-9)
}

func randomRows(rng *rand.Rand, numRows, rowLen int, spread float32) [][]float32 {
	rows := make([][]float32, numRows)
	for ii := range rows {
		rows[ii] = make([]float32, rowLen)
		for jj := range rows[ii] {
			rows[ii][jj] = float32(rng.NormFloat64()) * spread
		}
	}
	return rows
}

func TestAdaptiveTemperature(t *testing.T) {
	backend := testutil.BuildTestBackend()
	exec := MustNewExec(backend, func(logits *Node) []*Node {
		return []*Node{AdaptiveTemperature(logits), Softmax(logits, -1), AdaptiveBeta(logits)}
	})
	rng := rand.New(rand.NewPCG(42, 0))
	for _, spread := range []float32{0.1, 1, 10} {
		t.Run(fmt.Sprintf("spread=%g", spread), func(t *testing.T) {
			rows := randomRows(rng, 8, 16, spread)
			outputs := exec.MustExec(rows)
			adaptive := outputs[0].Value().([][]float32)
			plain := outputs[1].Value().([][]float32)
			betas := outputs[2].Value().([][]float32)
			for ii, row := range rows {
				var sum float64
				for _, p := range adaptive[ii] {
					require.GreaterOrEqual(t, p, float32(0))
					sum += float64(p)
				}
				require.InDelta(t, 1.0, sum, 1e-5, "row %d must sum to 1", ii)
				require.InDeltaSlice(t, reference.AdaptiveSoftmax(row), adaptive[ii], 1e-4)
				require.GreaterOrEqual(t, betas[ii][0], float32(1))

				entropy := reference.Entropy(reference.Softmax(row, 0))
				if entropy <= EntropyThreshold {
					// Low entropy rows are left untouched.
					require.Equal(t, plain[ii], adaptive[ii])
				}
			}
		})
	}
}

func TestAdaptiveTemperatureLowEntropyIsSoftmax(t *testing.T) {
	backend := testutil.BuildTestBackend()
	logits := [][]float32{{20, 0, 0, 0}, {0, 30, -5, 1}}
	outputs := MustNewExec(backend, func(logits *Node) []*Node {
		return []*Node{AdaptiveTemperature(logits), Softmax(logits, -1), Entropy(Softmax(logits, -1))}
	}).MustExec(logits)
	for _, h := range tensors.MustCopyFlatData[float32](outputs[2]) {
		require.LessOrEqual(t, h, float32(EntropyThreshold))
	}
	assert.Equal(t, outputs[1].Value(), outputs[0].Value())
}

func TestAdaptiveTemperatureSharpensUniform(t *testing.T) {
	// A uniform row has entropy ln(n) > 0.5, but any beta keeps it uniform.
	// A near-uniform row gets sharper.
	backend := testutil.BuildTestBackend()
	logits := [][]float64{{0.1, 0, 0, 0, 0, 0, 0, 0}}
	outputs := MustNewExec(backend, func(logits *Node) []*Node {
		return []*Node{AdaptiveTemperature(logits), Softmax(logits, -1), AdaptiveBeta(logits)}
	}).MustExec(logits)
	adaptive := outputs[0].Value().([][]float64)
	plain := outputs[1].Value().([][]float64)
	beta := outputs[2].Value().([][]float64)[0][0]
	wantBeta := reference.AdaptiveBeta(math.Log(8))
	assert.InDelta(t, wantBeta, beta, 1e-3)
	assert.Greater(t, adaptive[0][0], plain[0][0])
	assert.InDeltaSlice(t, reference.AdaptiveSoftmax(logits[0]), adaptive[0], 1e-9)
}

func TestPlusDenominator(t *testing.T) {
	// With a zero logExtra, the shifted denominator gets +1.
	graphtest.RunTestGraphFn(t, "PlusDenominator(logExtra=0)", func(g *Graph) (inputs, outputs []*Node) {
		logits := Const(g, [][]float64{{0, 0}, {1, 0}})
		logExtra := Const(g, [][]float64{{0}})
		inputs = []*Node{logits}
		outputs = []*Node{PlusDenominator(logits, logExtra)}
		return
	}, []any{
		[][]float64{
			{1.0 / 3, 1.0 / 3},
			{1 / (2 + math.Exp(-1)), math.Exp(-1) / (2 + math.Exp(-1))},
		},
	}, 1e-9)

	// Per-row extra terms.
	graphtest.RunTestGraphFn(t, "PlusDenominator(per-row)", func(g *Graph) (inputs, outputs []*Node) {
		logits := Const(g, [][]float64{{0, 0}, {1, 0}})
		logExtra := Const(g, [][]float64{{math.Log(2)}, {math.Log(0.5)}})
		inputs = []*Node{logits}
		outputs = []*Node{PlusDenominator(logits, logExtra)}
		return
	}, []any{
		[][]float64{
			reference.Softmax([]float64{0, 0}, 2),
			reference.Softmax([]float64{1, 0}, 0.5),
		},
	}, 1e-9)

	// Nil extra is the plain softmax.
	graphtest.RunTestGraphFn(t, "PlusDenominator(nil)", func(g *Graph) (inputs, outputs []*Node) {
		logits := Const(g, [][]float64{{1, 2, 3}, {0, 0, 0}})
		inputs = []*Node{logits}
		outputs = []*Node{PlusDenominator(logits, nil)}
		return
	}, []any{
		[][]float64{
			reference.Softmax([]float64{1, 2, 3}, 0),
			{1.0 / 3, 1.0 / 3, 1.0 / 3},
		},
	}, 1e-9)
}

// numericGradient returns the central finite differences of fn at x.
func numericGradient(fn func(x []float64) float64, x []float64, h float64) []float64 {
	grad := make([]float64, len(x))
	for ii := range x {
		plus, minus := slices.Clone(x), slices.Clone(x)
		plus[ii] += h
		minus[ii] -= h
		grad[ii] = (fn(plus) - fn(minus)) / (2 * h)
	}
	return grad
}

func TestPlusDenominatorGradient(t *testing.T) {
	backend := testutil.BuildTestBackend()
	// loss = sum(PlusDenominator(logits, logExtra) * weights), returns the gradients of logits and logExtra.
	exec := MustNewExec(backend, func(logits, logExtra, weights *Node) (*Node, *Node) {
		loss := ReduceAllSum(Mul(PlusDenominator(logits, logExtra), weights))
		grads := Gradient(loss, logits, logExtra)
		return grads[0], grads[1]
	})
	loss := func(row, weights []float64, logExtra float64) float64 {
		var total float64
		for ii, p := range reference.Softmax(row, math.Exp(logExtra)) {
			total += p * weights[ii]
		}
		return total
	}
	for _, tc := range []struct {
		name     string
		logits   []float64
		logExtra float64
		weights  []float64
	}{
		{"first", []float64{1, 2, 0}, 0, []float64{1, 0, 0}},
		{"max", []float64{1, 2, 0}, 0, []float64{0, 1, 0}},
		{"mixed", []float64{-0.5, 0.3, 1.2, 0.7}, math.Log(2), []float64{0.2, -1, 0.5, 3}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			outputs := exec.MustExec([][]float64{tc.logits}, [][]float64{{tc.logExtra}}, [][]float64{tc.weights})
			gotLogits := outputs[0].Value().([][]float64)[0]
			gotExtra := outputs[1].Value().([][]float64)[0][0]
			wantLogits := numericGradient(func(x []float64) float64 {
				return loss(x, tc.weights, tc.logExtra)
			}, tc.logits, 1e-6)
			wantExtra := numericGradient(func(x []float64) float64 {
				return loss(tc.logits, tc.weights, x[0])
			}, []float64{tc.logExtra}, 1e-6)[0]
			require.InDeltaSlice(t, wantLogits, gotLogits, 1e-6)
			require.InDelta(t, wantExtra, gotExtra, 1e-6)
		})
	}
	// Values for logits [1, 2, 0], logExtra 0 and loss p[0].
	outputs := exec.MustExec([][]float64{{1, 2, 0}}, [][]float64{{0}}, [][]float64{{1, 0, 0}})
	assert.InDeltaSlice(t, []float64{0.125365, -0.117419, -0.007945}, outputs[0].Value().([][]float64)[0], 1e-6)
}

func TestEntropyHalfPrecision(t *testing.T) {
	backend := testutil.BuildTestBackend()
	for _, dtype := range []dtypes.DType{dtypes.Float16, dtypes.BFloat16} {
		t.Run(dtype.String(), func(t *testing.T) {
			outputs := MustNewExec(backend, func(logits *Node) (*Node, *Node) {
				logits = ConvertDType(logits, dtype)
				entropy := Entropy(Softmax(logits, -1))
				require.Equal(t, dtype, entropy.DType())
				return ConvertDType(entropy, dtypes.Float32), ConvertDType(AdaptiveTemperature(logits), dtypes.Float32)
			}).MustExec([][]float32{{0.3, -65504, -65504}, {0, 0, 0}})
			entropy := outputs[0].Value().([][]float32)
			require.False(t, math.IsNaN(float64(entropy[0][0])))
			assert.InDelta(t, 0, entropy[0][0], 1e-3)
			assert.InDelta(t, math.Log(3), entropy[1][0], 1e-2)
			for _, row := range outputs[1].Value().([][]float32) {
				for _, p := range row {
					require.False(t, math.IsNaN(float64(p)))
				}
			}
		})
	}
}

func TestInvalidLogits(t *testing.T) {
	backend := testutil.BuildTestBackend()
	require.Panics(t, func() {
		_ = MustNewExec(backend, func(g *Graph) *Node {
			return PlusDenominator(Const(g, []int32{1, 2}), nil)
		}).MustExec()
	})
	require.Panics(t, func() {
		_ = MustNewExec(backend, func(g *Graph) *Node {
			return PlusDenominator(Const(g, [][]float32{{1, 2}}), Const(g, []float32{0}))
		}).MustExec()
	})
}
