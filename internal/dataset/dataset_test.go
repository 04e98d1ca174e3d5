package dataset

import (
	"math"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirphl/mlsignal/internal/candle"
	"github.com/amirphl/mlsignal/internal/feature"
	"github.com/amirphl/mlsignal/internal/frame"
	"github.com/amirphl/mlsignal/internal/label"
)

var meta = frame.Metadata{Pair: "btc/usdt", Timeframe: "5m"}

func labeledFrame(t *testing.T, n int) *frame.Frame {
	t.Helper()
	r := rand.New(rand.NewSource(7))
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]candle.Candle, n)
	price := 100.0
	for i := range candles {
		open := price
		price *= 1 + (r.Float64()-0.5)*0.03
		candles[i] = candle.Candle{
			Timestamp: start.Add(time.Duration(i) * 5 * time.Minute),
			Open:      open,
			High:      math.Max(open, price) + 0.1,
			Low:       math.Min(open, price) - 0.1,
			Close:     price,
			Volume:    100 + r.Float64()*100,
			Symbol:    meta.Pair,
			Timeframe: meta.Timeframe,
		}
	}
	f := frame.FromCandles(candles)
	require.NoError(t, feature.ExpandAll(f, 14, meta))
	require.NoError(t, feature.ExpandBasic(f, meta))
	require.NoError(t, feature.Standard(f, meta))
	require.NoError(t, label.SetTargets(f, 4, meta))
	return f
}

func TestBuild(t *testing.T) {
	f := labeledFrame(t, 80)
	records, err := Build(f, meta)
	require.NoError(t, err)

	rows := label.TrainingRows(f)
	require.Len(t, records, len(rows))
	assert.Equal(t, 27, rows[0])
	assert.Equal(t, 75, rows[len(rows)-1])

	for k, i := range rows {
		r := records[k]
		assert.Equal(t, "BTC/USDT", r.Pair)
		assert.Equal(t, f.Date(i).UnixMilli(), r.Timestamp)
		for _, name := range append(f.Columns(frame.FeaturePrefix), frame.Target, frame.Close) {
			want, err := f.FloatAt(name, i)
			require.NoError(t, err)
			got, ok := r.Feature(name)
			require.True(t, ok, name)
			assert.Equal(t, want, got, "%s at %d", name, i)
			assert.False(t, math.IsNaN(got), "%s at %d", name, i)
		}
	}
}

func TestBuild_CoversEveryFeature(t *testing.T) {
	f := labeledFrame(t, 60)
	var r TrainingRecord
	for _, name := range f.Columns(frame.FeaturePrefix) {
		_, ok := r.Feature(name)
		assert.True(t, ok, name)
	}
}

func TestBuild_UnknownFeature(t *testing.T) {
	f := labeledFrame(t, 60)
	require.NoError(t, f.SetFloat("%-something_new", make([]float64, f.Len())))
	_, err := Build(f, meta)
	assert.ErrorIs(t, err, ErrUnknownFeature)
}

func TestBuild_MissingTarget(t *testing.T) {
	f := labeledFrame(t, 60)
	f.Drop(frame.Target)
	_, err := Build(f, meta)
	assert.ErrorIs(t, err, frame.ErrMissingColumn)
}

func TestWriteRead(t *testing.T) {
	f := labeledFrame(t, 100)
	records, err := Build(f, meta)
	require.NoError(t, err)

	eth := records[0]
	eth.Pair = "ETH/USDT"
	path := filepath.Join(t.TempDir(), "out", "train.parquet")
	require.NoError(t, Write(path, append([]TrainingRecord{eth}, records...)))

	got, err := Read(path)
	require.NoError(t, err)
	require.Len(t, got, len(records)+1)
	assert.Equal(t, "BTC/USDT", got[0].Pair)
	assert.Equal(t, "ETH/USDT", got[len(got)-1].Pair)
	assert.Equal(t, records[0], got[0])
	for i := 1; i < len(records); i++ {
		assert.Less(t, got[i-1].Timestamp, got[i].Timestamp)
	}
}

func TestRead_MissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "missing.parquet"))
	assert.Error(t, err)
}
