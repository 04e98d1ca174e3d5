// Package dataset exports labeled feature rows for training the external
// model.
package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/amirphl/mlsignal/internal/frame"
	"github.com/amirphl/mlsignal/internal/label"
)

// ErrUnknownFeature is returned when a frame carries a feature column the
// training schema has no field for.
var ErrUnknownFeature = errors.New("dataset: unknown feature column")

// TrainingRecord is one labeled row. Column names match the frame columns so
// the model sees the same names at training and prediction time.
type TrainingRecord struct {
	Pair      string  `parquet:"pair"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"`
	Close     float64 `parquet:"close"`

	RSI            float64 `parquet:"%-rsi-period"`
	MFI            float64 `parquet:"%-mfi-period"`
	ADX            float64 `parquet:"%-adx-period"`
	SMA            float64 `parquet:"%-sma-period"`
	EMA            float64 `parquet:"%-ema-period"`
	BBWidth        float64 `parquet:"%-bb_width-period"`
	CloseToBBLower float64 `parquet:"%-close-bb_lower-period"`
	ROC            float64 `parquet:"%-roc-period"`
	RelativeVolume float64 `parquet:"%-relative_volume-period"`
	PctChange      float64 `parquet:"%-pct-change"`
	RawVolume      float64 `parquet:"%-raw_volume"`
	RawPrice       float64 `parquet:"%-raw_price"`
	DayOfWeek      float64 `parquet:"%-day_of_week"`
	HourOfDay      float64 `parquet:"%-hour_of_day"`

	Target float64 `parquet:"&-s_close"`
}

func (r *TrainingRecord) field(name string) *float64 {
	switch name {
	case frame.Close:
		return &r.Close
	case frame.RSI:
		return &r.RSI
	case frame.MFI:
		return &r.MFI
	case frame.ADX:
		return &r.ADX
	case frame.SMA:
		return &r.SMA
	case frame.EMA:
		return &r.EMA
	case frame.BBWidth:
		return &r.BBWidth
	case frame.CloseToBBLower:
		return &r.CloseToBBLower
	case frame.ROC:
		return &r.ROC
	case frame.RelativeVolume:
		return &r.RelativeVolume
	case frame.PctChange:
		return &r.PctChange
	case frame.RawVolume:
		return &r.RawVolume
	case frame.RawPrice:
		return &r.RawPrice
	case frame.DayOfWeek:
		return &r.DayOfWeek
	case frame.HourOfDay:
		return &r.HourOfDay
	case frame.Target:
		return &r.Target
	}
	return nil
}

// Feature returns the named feature value.
func (r TrainingRecord) Feature(name string) (float64, bool) {
	p := r.field(name)
	if p == nil {
		return 0, false
	}
	return *p, true
}

// Build returns the rows of f whose features and target are all defined.
func Build(f *frame.Frame, meta frame.Metadata) ([]TrainingRecord, error) {
	names := append([]string{frame.Close, frame.Target}, f.Columns(frame.FeaturePrefix)...)
	cols := make(map[string][]float64, len(names))
	var blank TrainingRecord
	for _, name := range names {
		if blank.field(name) == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownFeature, name)
		}
		v, err := f.Float(name)
		if err != nil {
			return nil, fmt.Errorf("build dataset %s: %w", meta.Pair, err)
		}
		cols[name] = v
	}

	rows := label.TrainingRows(f)
	out := make([]TrainingRecord, 0, len(rows))
	pair := strings.ToUpper(meta.Pair)
	for _, i := range rows {
		r := TrainingRecord{Pair: pair, Timestamp: f.Date(i).UnixMilli()}
		for name, v := range cols {
			*r.field(name) = v[i]
		}
		out = append(out, r)
	}
	return out, nil
}

// Write writes records sorted by pair and timestamp.
func Write(path string, records []TrainingRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	sorted := append([]TrainingRecord(nil), records...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Pair != sorted[j].Pair {
			return sorted[i].Pair < sorted[j].Pair
		}
		return sorted[i].Timestamp < sorted[j].Timestamp
	})
	if err := parquet.WriteFile(path, sorted); err != nil {
		return fmt.Errorf("write dataset %s: %w", path, err)
	}
	return nil
}

// Read loads a dataset written by Write.
func Read(path string) ([]TrainingRecord, error) {
	records, err := parquet.ReadFile[TrainingRecord](path)
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", path, err)
	}
	return records, nil
}
