// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// attnscale runs the causal attention scaling strategies over seeded inputs of growing sequence lengths,
// and reports how their attention entropy and query scales behave.
//
// Examples:
//
//	attnscale run --seq_len=512
//	attnscale sweep --lengths=16,64,256,1024,4096 --csv=sweep.csv --plot=entropy.png
//	attnscale curves --max_len=8192 --plot=curves.png --set="attention_base_seq_len=1024"
//
// Hyperparameters are set with --set (see the list of parameters in --help), and variables can be
// loaded from (and saved to) a checkpoint directory with --checkpoint.
package main

import (
	"flag"

	"github.com/gomlx/gomlx/ui/commandline"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

func main() {
	klog.InitFlags(nil)
	ctx := newDefaultContext()
	settings := commandline.CreateContextSettingsFlag(ctx, "")
	root := NewCLI(ctx, settings)
	root.PersistentFlags().AddGoFlagSet(flag.CommandLine)
	cobra.CheckErr(root.Execute())
}
