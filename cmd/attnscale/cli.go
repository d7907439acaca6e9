// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"strings"

	"github.com/gomlx/attnscale/pkg/ml/layers/attention"
	"github.com/gomlx/attnscale/pkg/ml/probe"
	"github.com/gomlx/compute"
	_ "github.com/gomlx/gomlx/backends/default"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/context/checkpoints"
	"github.com/gomlx/gomlx/ui/commandline"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

// cli holds the global flags and the state shared by the subcommands.
type cli struct {
	ctx      *context.Context
	settings *string

	backendName   string
	dim, batch    int
	heads         int
	seed          uint64
	strategyNames []string
	checkpointDir string
	save          bool

	backend    compute.Backend
	strategies []attention.Strategy
	checkpoint *checkpoints.Handler
}

// newDefaultContext returns a context with the default attention hyperparameters, which can be
// changed with --set.
func newDefaultContext() *context.Context {
	ctx := context.New()
	attention.SetDefaultParams(ctx)
	return ctx
}

// NewCLI returns the root command. settings is the value of the --set flag, created with
// commandline.CreateContextSettingsFlag.
func NewCLI(ctx *context.Context, settings *string) *cobra.Command {
	c := &cli{ctx: ctx, settings: settings}
	root := &cobra.Command{
		Use:          "attnscale",
		Short:        "Probe causal attention scaling strategies over growing sequence lengths",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return c.finish()
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&c.backendName, "backend", "", "Backend to use. If empty it uses $GOMLX_BACKEND or the default backend.")
	flags.IntVar(&c.dim, "dim", attention.DefaultDim, "Dimension of the attention layer input and output.")
	flags.IntVar(&c.heads, "heads", 0, "Number of attention heads. If > 0 it overrides the \""+attention.ParamHeads+"\" hyperparameter.")
	flags.IntVar(&c.batch, "batch", 1, "Batch size of the random inputs.")
	flags.Uint64Var(&c.seed, "seed", 42, "Seed of the random inputs.")
	flags.StringSliceVar(&c.strategyNames, "strategies", nil,
		"Comma-separated list of strategies to probe. Defaults to all of "+joinStrategies()+".")
	flags.StringVar(&c.checkpointDir, "checkpoint", "", "Directory to load variables and hyperparameters from, if it has a checkpoint.")
	flags.BoolVar(&c.save, "save", false, "Save the variables and hyperparameters to --checkpoint in the end.")

	root.AddCommand(c.runCmd(), c.sweepCmd(), c.curvesCmd())
	return root
}

func joinStrategies() string {
	return strings.Join(attention.StrategyStrings(), ", ")
}

// setup parses the hyperparameters, creates the backend and loads the checkpoint.
func (c *cli) setup() error {
	configureColors()
	var paramsSet []string
	if c.settings != nil {
		var err error
		paramsSet, err = commandline.ParseContextSettings(c.ctx, *c.settings)
		if err != nil {
			return errors.WithMessage(err, "invalid --set")
		}
	}
	if c.heads > 0 {
		c.ctx.SetParam(attention.ParamHeads, c.heads)
		paramsSet = append(paramsSet, attention.ParamHeads)
	}
	c.strategies = nil
	for _, name := range c.strategyNames {
		strategy, err := attention.StrategyString(name)
		if err != nil {
			return errors.Errorf("unknown strategy %q in --strategies, valid values are %s", name, joinStrategies())
		}
		c.strategies = append(c.strategies, strategy)
	}
	if c.save && c.checkpointDir == "" {
		return errors.New("--save requires --checkpoint")
	}

	var err error
	if c.backendName != "" {
		c.backend, err = compute.NewWithConfig(c.backendName)
	} else {
		c.backend, err = compute.New()
	}
	if err != nil {
		return errors.WithMessagef(err, "failed to create backend %q", c.backendName)
	}
	klog.V(1).Infof("backend: %s", c.backend.Description())

	if c.checkpointDir != "" {
		// Hyperparameters given in the command line take precedence over the ones saved.
		c.checkpoint, err = checkpoints.Build(c.ctx).Dir(c.checkpointDir).
			ExcludeParams(paramsSet...).Immediate().Done()
		if err != nil {
			return errors.WithMessagef(err, "failed to load checkpoint from %q", c.checkpointDir)
		}
		klog.V(1).Infof("checkpoint: %s", c.checkpoint.Dir())
	}
	return nil
}

// finish saves the checkpoint, if requested.
func (c *cli) finish() error {
	if !c.save || c.checkpoint == nil {
		return nil
	}
	if err := c.checkpoint.Save(); err != nil {
		return errors.WithMessagef(err, "failed to save checkpoint to %q", c.checkpointDir)
	}
	klog.Infof("saved checkpoint to %s", c.checkpoint.Dir())
	return nil
}

// probeConfig for the given sequence lengths.
func (c *cli) probeConfig(lengths []int, progress func(done, total int)) probe.Config {
	return probe.Config{
		Strategies: c.strategies,
		Lengths:    lengths,
		Batch:      c.batch,
		Dim:        c.dim,
		Seed:       c.seed,
		Progress:   progress,
	}
}

// numParams returns the number of parameters (total size of the variables) created for strategy.
func (c *cli) numParams(strategy string) int64 {
	var total int64
	for v := range c.ctx.In(strategy).IterVariablesInScope() {
		total += int64(v.Shape().Size())
	}
	return total
}
