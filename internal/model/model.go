// Package model defines the boundary to the external prediction model. The
// pipeline hands a feature frame to a Predictor and only relies on the OHLCV
// columns, the target prediction and do_predict surviving the round trip.
package model

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/amirphl/mlsignal/internal/frame"
)

// ErrIncompletePrediction is returned when a predictor drops a required column
// or changes the row count.
var ErrIncompletePrediction = errors.New("model: prediction frame is incomplete")

// Predictor attaches the target prediction and do_predict columns to a frame.
// Implementations may return a new frame with any other column missing or
// altered.
type Predictor interface {
	Predict(ctx context.Context, f *frame.Frame, meta frame.Metadata) (*frame.Frame, error)
}

// Func adapts a plain function to Predictor.
type Func func(ctx context.Context, f *frame.Frame, meta frame.Metadata) (*frame.Frame, error)

func (fn Func) Predict(ctx context.Context, f *frame.Frame, meta frame.Metadata) (*frame.Frame, error) {
	return fn(ctx, f, meta)
}

// Disabled marks every row as untrusted, so no signal can fire.
type Disabled struct{}

func (Disabled) Predict(ctx context.Context, f *frame.Frame, meta frame.Metadata) (*frame.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := f.Copy()
	pred := make([]float64, out.Len())
	for i := range pred {
		pred[i] = math.NaN()
	}
	if err := out.SetFloat(frame.Target, pred); err != nil {
		return nil, err
	}
	if err := out.SetInt(frame.DoPredict, make([]int, out.Len())); err != nil {
		return nil, err
	}
	return out, nil
}

// Required lists the columns a prediction frame must carry.
var Required = append(append([]string{}, frame.OHLCV...), frame.Target, frame.DoPredict)

// Input returns a copy of f without the training label. The realized forward
// return must never reach a predictor as a live value.
func Input(f *frame.Frame) *frame.Frame {
	in := f.Copy()
	in.Drop(frame.Target)
	return in
}

// Check verifies that out is a usable prediction for in. in must come from
// Input, so a target column in out was attached by the predictor.
func Check(in, out *frame.Frame) error {
	if in.Has(frame.Target) {
		return fmt.Errorf("%w: input carries the %s label", ErrIncompletePrediction, frame.Target)
	}
	if out == nil || out.Len() != in.Len() || !out.Has(Required...) {
		return ErrIncompletePrediction
	}
	return nil
}
