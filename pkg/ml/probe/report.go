// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package probe

import (
	"io"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/pkg/errors"
)

// Column names of the CSV reports.
const (
	ColRunID         = "run_id"
	ColStrategy      = "strategy"
	ColSeqLen        = "seq_len"
	ColMeanEntropy   = "mean_entropy"
	ColMaxEntropy    = "max_entropy"
	ColMeanMaxWeight = "mean_max_weight"
	ColMeanRowSum    = "mean_row_sum"
	ColOutputRMS     = "output_rms"
	ColFinite        = "finite"
)

// row is the CSV layout of a Measurement.
type row struct {
	RunID         string  `dataframe:"run_id"`
	Strategy      string  `dataframe:"strategy"`
	SeqLen        int     `dataframe:"seq_len"`
	MeanEntropy   float64 `dataframe:"mean_entropy"`
	MaxEntropy    float64 `dataframe:"max_entropy"`
	MeanMaxWeight float64 `dataframe:"mean_max_weight"`
	MeanRowSum    float64 `dataframe:"mean_row_sum"`
	OutputRMS     float64 `dataframe:"output_rms"`
	Finite        bool    `dataframe:"finite"`
}

var columnTypes = map[string]series.Type{
	ColRunID:         series.String,
	ColStrategy:      series.String,
	ColSeqLen:        series.Int,
	ColMeanEntropy:   series.Float,
	ColMaxEntropy:    series.Float,
	ColMeanMaxWeight: series.Float,
	ColMeanRowSum:    series.Float,
	ColOutputRMS:     series.Float,
	ColFinite:        series.Bool,
}

// DataFrame returns the measurements as a dataframe, one row per measurement.
func DataFrame(measurements []Measurement) dataframe.DataFrame {
	rows := make([]row, len(measurements))
	for ii, m := range measurements {
		rows[ii] = row(m)
	}
	return dataframe.LoadStructs(rows)
}

// WriteCSV writes the measurements as CSV, with a header line.
func WriteCSV(w io.Writer, measurements []Measurement) error {
	if len(measurements) == 0 {
		return errors.New("probe.WriteCSV: no measurements to write")
	}
	df := DataFrame(measurements)
	if df.Err != nil {
		return errors.Wrap(df.Err, "failed to build measurements dataframe")
	}
	return errors.Wrap(df.WriteCSV(w), "failed to write measurements CSV")
}

// ReadCSV reads measurements written by WriteCSV.
func ReadCSV(r io.Reader) ([]Measurement, error) {
	df := dataframe.ReadCSV(r, dataframe.HasHeader(true), dataframe.WithTypes(columnTypes))
	if df.Err != nil {
		return nil, errors.Wrap(df.Err, "failed to read measurements CSV")
	}
	records := df.Maps()
	measurements := make([]Measurement, 0, len(records))
	for ii, record := range records {
		var m Measurement
		var ok [9]bool
		m.RunID, ok[0] = record[ColRunID].(string)
		m.Strategy, ok[1] = record[ColStrategy].(string)
		m.SeqLen, ok[2] = record[ColSeqLen].(int)
		m.MeanEntropy, ok[3] = record[ColMeanEntropy].(float64)
		m.MaxEntropy, ok[4] = record[ColMaxEntropy].(float64)
		m.MeanMaxWeight, ok[5] = record[ColMeanMaxWeight].(float64)
		m.MeanRowSum, ok[6] = record[ColMeanRowSum].(float64)
		m.OutputRMS, ok[7] = record[ColOutputRMS].(float64)
		m.Finite, ok[8] = record[ColFinite].(bool)
		for _, good := range ok {
			if !good {
				return nil, errors.Errorf("invalid or missing value in measurements CSV row %d: %v", ii, record)
			}
		}
		measurements = append(measurements, m)
	}
	return measurements, nil
}
