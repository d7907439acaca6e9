// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package attention

import (
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

var (
	// ErrIncrementalDecoding is raised when query, key and value don't share the same sequence length,
	// as in cached/incremental decoding, which is not supported.
	ErrIncrementalDecoding = errors.New("unsupported: cached/incremental decoding, query, key and value must have the same sequence length")

	// ErrInvalidHeads is raised when the number of heads is not positive or doesn't divide the input dimension.
	ErrInvalidHeads = errors.New("invalid number of attention heads")
)

// Try runs fn, which builds attention graphs (and panic on errors, as graph building functions do),
// and returns the panic as an error, if one happened.
//
// Errors can be checked with errors.Is against ErrIncrementalDecoding or ErrInvalidHeads.
func Try(fn func()) error {
	return exceptions.TryCatch[error](fn)
}
