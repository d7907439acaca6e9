// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package scaling

import (
	"github.com/gomlx/compute/dtypes"
	"github.com/gomlx/compute/shapes"
)

func shapesPerHead(dtype dtypes.DType, numHeads int) shapes.Shape {
	return shapes.Make(dtype, 1, numHeads, 1, 1)
}

func shapesQuery(dtype dtypes.DType, batch, numHeads, seqLen, headDim int) shapes.Shape {
	return shapes.Make(dtype, batch, numHeads, seqLen, headDim)
}
