// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/attnscale/pkg/ml/layers/attention"
	"github.com/gomlx/attnscale/pkg/ml/probe"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

func (c *cli) runCmd() *cobra.Command {
	var seqLen int
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run each strategy once on a seeded random input and print a summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			measurements, err := probe.Run(c.backend, c.ctx, c.probeConfig([]int{seqLen}, nil))
			if err != nil {
				return err
			}
			c.printMeasurements(cmd.OutOrStdout(), fmt.Sprintf("Attention at sequence length %s", humanize.Comma(int64(seqLen))), measurements)
			return nil
		},
	}
	cmd.Flags().IntVar(&seqLen, "seq_len", 64, "Sequence length of the random input.")
	return cmd
}

func (c *cli) sweepCmd() *cobra.Command {
	var (
		lengths           []int
		csvPath, plotPath string
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Probe the strategies over a list of sequence lengths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var bar *progressbar.ProgressBar
			progress := func(done, total int) {
				if bar == nil {
					bar = progressbar.NewOptions(total,
						progressbar.OptionSetDescription("probing"),
						progressbar.OptionSetWriter(cmd.ErrOrStderr()),
						progressbar.OptionShowCount(),
						progressbar.OptionSetItsString("measurements"),
						progressbar.OptionSetTheme(progressbar.ThemeASCII),
						progressbar.OptionClearOnFinish(),
					)
				}
				_ = bar.Set(done)
			}
			measurements, err := probe.Run(c.backend, c.ctx, c.probeConfig(lengths, progress))
			if bar != nil {
				_ = bar.Finish()
			}
			if err != nil {
				return err
			}
			c.printMeasurements(cmd.OutOrStdout(), "Sweep "+measurements[0].RunID, measurements)
			if csvPath != "" {
				if err := writeCSVFile(csvPath, measurements); err != nil {
					return err
				}
				klog.Infof("measurements written to %s", csvPath)
			}
			if plotPath != "" {
				if err := probe.PlotEntropy(plotPath, measurements); err != nil {
					return err
				}
				klog.Infof("entropy plot saved to %s", plotPath)
			}
			return nil
		},
	}
	cmd.Flags().IntSliceVar(&lengths, "lengths", probe.DefaultLengths, "Comma-separated sequence lengths to probe.")
	cmd.Flags().StringVar(&csvPath, "csv", "", "If set, write the measurements to this CSV file.")
	cmd.Flags().StringVar(&plotPath, "plot", "", "If set, save the plot of the entropy per sequence length to this file (.png, .svg, .pdf).")
	return cmd
}

func (c *cli) curvesCmd() *cobra.Command {
	var (
		maxLen   int
		plotPath string
	)
	cmd := &cobra.Command{
		Use:   "curves",
		Short: "Compute the query scale per position of the position dependent strategies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if maxLen < 1 {
				return errors.Errorf("--max_len must be >= 1, got %d", maxLen)
			}
			curves, err := probe.ScaleCurves(c.backend, c.ctx, c.dim, maxLen)
			if err != nil {
				return err
			}
			baseSeqLen := context.GetParamOr(c.ctx, attention.ParamBaseSeqLen, attention.DefaultBaseSeqLen)
			printCurves(cmd.OutOrStdout(), curves, baseSeqLen)
			if plotPath != "" {
				if err := probe.PlotCurves(plotPath, curves); err != nil {
					return err
				}
				klog.Infof("scale curves plot saved to %s", plotPath)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&maxLen, "max_len", 8192, "Last position of the curves.")
	cmd.Flags().StringVar(&plotPath, "plot", "", "If set, save the plot of the curves to this file (.png, .svg, .pdf).")
	return cmd
}

func writeCSVFile(path string, measurements []probe.Measurement) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %q", path)
	}
	if err := probe.WriteCSV(f, measurements); err != nil {
		_ = f.Close()
		return err
	}
	return errors.Wrapf(f.Close(), "failed to close %q", path)
}

func formatFloat(v float64) string {
	return humanize.FtoaWithDigits(v, 4)
}

func (c *cli) printMeasurements(w io.Writer, title string, measurements []probe.Measurement) {
	_, _ = fmt.Fprintln(w, titleStyle.Render(title))
	table := newTable("strategy", "seq_len", "output rms", "mean entropy", "max entropy", "max weight", "row sum", "# params")
	for _, m := range measurements {
		table.Row(!m.Finite,
			m.Strategy,
			humanize.Comma(int64(m.SeqLen)),
			formatFloat(m.OutputRMS),
			formatFloat(m.MeanEntropy),
			formatFloat(m.MaxEntropy),
			formatFloat(m.MeanMaxWeight),
			formatFloat(m.MeanRowSum),
			humanize.Comma(c.numParams(m.Strategy)),
		)
	}
	_, _ = fmt.Fprintln(w, table.Render())
}

// printCurves prints the scale of each curve at the first and last positions, and at the base sequence length
// if within the curve.
func printCurves(w io.Writer, curves []probe.Curve, baseSeqLen int) {
	_, _ = fmt.Fprintln(w, titleStyle.Render("Query scales"))
	table := newTable("strategy", "position", "scale")
	for _, curve := range curves {
		last := len(curve.Positions) - 1
		indices := []int{0}
		for ii, pos := range curve.Positions {
			if ii != 0 && ii != last && pos == float64(baseSeqLen) {
				indices = append(indices, ii)
			}
		}
		if last > 0 {
			indices = append(indices, last)
		}
		for _, ii := range indices {
			table.Row(false, curve.Strategy, humanize.Comma(int64(curve.Positions[ii])), formatFloat(curve.Scales[ii]))
		}
	}
	_, _ = fmt.Fprintln(w, table.Render())
}
