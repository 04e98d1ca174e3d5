// Package label attaches training targets to a feature frame.
package label

import (
	"errors"
	"fmt"

	"github.com/amirphl/mlsignal/internal/frame"
	"github.com/amirphl/mlsignal/internal/indicator"
)

// ErrInvalidLabelPeriod is returned for a forward window shorter than one row.
var ErrInvalidLabelPeriod = errors.New("label: label period must be positive")

// SetTargets adds the forward return target:
//
//	&-s_close[i] = mean(close[i+1 .. i+n]) / close[i] - 1
//
// The last n rows have no complete forward window and stay undefined. The
// column is for training only and must never drive a live decision.
func SetTargets(f *frame.Frame, n int, meta frame.Metadata) error {
	if n < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidLabelPeriod, n)
	}
	closes, err := f.Float(frame.Close)
	if err != nil {
		return fmt.Errorf("set targets %s: %w", meta.Pair, err)
	}
	forward := indicator.Ratio(indicator.ForwardMean(closes, n), closes)
	for i, v := range forward {
		forward[i] = v - 1
	}
	return f.SetFloat(frame.Target, forward)
}

// TrainingRows returns the indices of rows whose target and every feature
// column are defined.
func TrainingRows(f *frame.Frame) []int {
	names := append(f.Columns(frame.FeaturePrefix), frame.Target)
	cols := make([][]float64, 0, len(names))
	for _, name := range names {
		v, err := f.Float(name)
		if err != nil {
			return nil
		}
		cols = append(cols, v)
	}

	var rows []int
	for i := 0; i < f.Len(); i++ {
		usable := true
		for _, c := range cols {
			if frame.Undefined(c[i]) {
				usable = false
				break
			}
		}
		if usable {
			rows = append(rows, i)
		}
	}
	return rows
}
