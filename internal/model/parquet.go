package model

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/amirphl/mlsignal/internal/frame"
)

// PredictionRecord is one row of a predictions file written by the external
// model.
type PredictionRecord struct {
	Pair       string  `parquet:"pair"`
	Timestamp  int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms, candle open time
	Prediction float64 `parquet:"prediction"`
	DoPredict  int64   `parquet:"do_predict"`
}

type predictionKey struct {
	pair string
	ts   int64
}

// ParquetPredictor serves predictions produced offline by the external model.
// Rows without a prediction get an undefined target and do_predict = 0.
type ParquetPredictor struct {
	predictions map[predictionKey]PredictionRecord
}

// NewParquetPredictor indexes records by (pair, timestamp). Later records win.
func NewParquetPredictor(records []PredictionRecord) *ParquetPredictor {
	p := &ParquetPredictor{predictions: make(map[predictionKey]PredictionRecord, len(records))}
	for _, r := range records {
		p.predictions[predictionKey{strings.ToUpper(r.Pair), r.Timestamp}] = r
	}
	return p
}

// LoadParquetPredictor reads a predictions file.
func LoadParquetPredictor(path string) (*ParquetPredictor, error) {
	records, err := parquet.ReadFile[PredictionRecord](path)
	if err != nil {
		return nil, fmt.Errorf("read predictions %s: %w", path, err)
	}
	return NewParquetPredictor(records), nil
}

// Len returns the number of indexed predictions.
func (p *ParquetPredictor) Len() int {
	return len(p.predictions)
}

func (p *ParquetPredictor) Predict(ctx context.Context, f *frame.Frame, meta frame.Metadata) (*frame.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := f.Copy()
	pred := make([]float64, out.Len())
	accept := make([]int, out.Len())
	pair := strings.ToUpper(meta.Pair)
	for i, d := range out.Dates() {
		r, ok := p.predictions[predictionKey{pair, d.UnixMilli()}]
		if !ok || math.IsNaN(r.Prediction) {
			pred[i] = math.NaN()
			continue
		}
		pred[i] = r.Prediction
		if r.DoPredict == 1 {
			accept[i] = 1
		}
	}
	if err := out.SetFloat(frame.Target, pred); err != nil {
		return nil, err
	}
	if err := out.SetInt(frame.DoPredict, accept); err != nil {
		return nil, err
	}
	return out, nil
}

// WritePredictions writes records sorted by pair and timestamp.
func WritePredictions(path string, records []PredictionRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	sorted := append([]PredictionRecord(nil), records...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Pair != sorted[j].Pair {
			return sorted[i].Pair < sorted[j].Pair
		}
		return sorted[i].Timestamp < sorted[j].Timestamp
	})
	return parquet.WriteFile(path, sorted)
}
