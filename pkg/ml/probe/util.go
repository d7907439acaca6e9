// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package probe

import (
	"math"

	"github.com/gomlx/compute"
	"github.com/gomlx/compute/dtypes"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
)

func sqrt(x int) float64 {
	return math.Sqrt(float64(x))
}

// convertTensor converts a float tensor of any dtype to float64.
func convertTensor(backend compute.Backend, t *tensors.Tensor) *tensors.Tensor {
	if t.Shape().DType == dtypes.Float64 {
		return t
	}
	return MustExecOnce(backend, func(x *Node) *Node {
		return ConvertDType(x, dtypes.Float64)
	}, t)
}
