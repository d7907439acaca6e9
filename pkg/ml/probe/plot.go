// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package probe

import (
	"math"
	"slices"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Plot dimensions.
var (
	PlotWidth  = 12 * vg.Inch
	PlotHeight = 6 * vg.Inch
)

// PlotEntropy saves a plot of the mean entropy per sequence length (log scale), one line per strategy.
// The image format is taken from the path extension (e.g.: ".png", ".svg").
func PlotEntropy(path string, measurements []Measurement) error {
	if len(measurements) == 0 {
		return errors.New("probe.PlotEntropy: no measurements to plot")
	}
	p := plot.New()
	p.Title.Text = "Attention entropy per sequence length"
	p.X.Label.Text = "sequence length"
	p.Y.Label.Text = "mean entropy (nats)"
	p.X.Scale = plot.LogScale{}
	p.X.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Legend.Top = true
	p.Legend.Left = true

	// Group by strategy, keeping the order of first appearance.
	var names []string
	lines := make(map[string]plotter.XYs)
	for _, m := range measurements {
		if _, found := lines[m.Strategy]; !found {
			names = append(names, m.Strategy)
		}
		lines[m.Strategy] = append(lines[m.Strategy], plotter.XY{X: float64(m.SeqLen), Y: m.MeanEntropy})
	}
	var args []any
	for _, name := range names {
		xys := lines[name]
		slices.SortFunc(xys, func(a, b plotter.XY) int {
			switch {
			case a.X < b.X:
				return -1
			case a.X > b.X:
				return 1
			}
			return 0
		})
		args = append(args, name, xys)
	}
	if err := plotutil.AddLinePoints(p, args...); err != nil {
		return errors.Wrap(err, "failed to add entropy lines")
	}
	return errors.Wrapf(p.Save(PlotWidth, PlotHeight, path), "failed to save entropy plot to %q", path)
}

// PlotCurves saves a plot of the query scale curves returned by ScaleCurves.
func PlotCurves(path string, curves []Curve) error {
	if len(curves) == 0 {
		return errors.New("probe.PlotCurves: no curves to plot")
	}
	p := plot.New()
	p.Title.Text = "Query scale per position"
	p.X.Label.Text = "position"
	p.Y.Label.Text = "scale"
	p.Legend.Top = true

	var args []any
	for _, curve := range curves {
		if len(curve.Positions) != len(curve.Scales) {
			return errors.Errorf("probe.PlotCurves: curve %q has %d positions and %d scales",
				curve.Strategy, len(curve.Positions), len(curve.Scales))
		}
		// Non-finite scales (e.g.: position 0 without shifting) are left out.
		xys := make(plotter.XYs, 0, len(curve.Positions))
		for ii, x := range curve.Positions {
			y := curve.Scales[ii]
			if math.IsNaN(y) || math.IsInf(y, 0) {
				continue
			}
			xys = append(xys, plotter.XY{X: x, Y: y})
		}
		args = append(args, curve.Strategy, xys)
	}
	if err := plotutil.AddLines(p, args...); err != nil {
		return errors.Wrap(err, "failed to add scale curves")
	}
	return errors.Wrapf(p.Save(PlotWidth, PlotHeight, path), "failed to save scale curves plot to %q", path)
}
