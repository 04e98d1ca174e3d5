package dataprovider

import (
	"math"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirphl/mlsignal/internal/frame"
)

func analyzed(t *testing.T, adx ...float64) *frame.Frame {
	t.Helper()
	dates := make([]time.Time, len(adx))
	for i := range dates {
		dates[i] = time.Date(2024, 3, 1, 0, 5*i, 0, 0, time.UTC)
	}
	f := frame.New(dates)
	require.NoError(t, f.SetFloat(frame.ADX, adx))
	tags := make([]string, len(adx))
	require.NoError(t, f.SetString(frame.EnterTag, tags))
	return f
}

func TestProvider_NoData(t *testing.T) {
	p := New()
	_, _, err := p.GetAnalyzedDataFrame("BTC/USDT", "5m")
	assert.ErrorIs(t, err, ErrNoAnalyzedData)
	_, err = p.LastRow("BTC/USDT", "5m")
	assert.ErrorIs(t, err, ErrNoAnalyzedData)

	p.Store("BTC/USDT", "5m", frame.New(nil))
	_, err = p.LastRow("BTC/USDT", "5m")
	assert.ErrorIs(t, err, ErrNoAnalyzedData)
}

func TestProvider_StoreAndGet(t *testing.T) {
	p := New()
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	f := analyzed(t, 10, 20, 30)
	p.Store("btc/usdt", "5M", f)

	got, at, err := p.GetAnalyzedDataFrame("BTC/USDT", "5m")
	require.NoError(t, err)
	assert.Equal(t, fixed, at)
	assert.Equal(t, 3, got.Len())

	// Stored and returned frames are copies.
	require.NoError(t, f.SetFloat(frame.ADX, []float64{0, 0, 0}))
	require.NoError(t, got.SetFloat(frame.ADX, []float64{1, 1, 1}))
	row, err := p.LastRow("BTC/USDT", "5m")
	require.NoError(t, err)
	assert.Equal(t, 30.0, row.Value(frame.ADX))
	assert.Equal(t, time.Date(2024, 3, 1, 0, 10, 0, 0, time.UTC), row.Date)
	assert.True(t, math.IsNaN(row.Value(frame.RelativeVolume)))

	_, _, err = p.GetAnalyzedDataFrame("BTC/USDT", "1h")
	assert.ErrorIs(t, err, ErrNoAnalyzedData)
}

func TestProvider_Pairs(t *testing.T) {
	p := New()
	p.Store("BTC/USDT", "5m", analyzed(t, 1))
	p.Store("ETH/USDT", "5m", analyzed(t, 1))
	p.Store("SOL/USDT", "1h", analyzed(t, 1))
	pairs := p.Pairs("5m")
	sort.Strings(pairs)
	assert.Equal(t, []string{"BTC/USDT", "ETH/USDT"}, pairs)
}

func TestProvider_Concurrent(t *testing.T) {
	p := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		f := analyzed(t, float64(i))
		wg.Add(2)
		go func() {
			defer wg.Done()
			p.Store("BTC/USDT", "5m", f)
		}()
		go func() {
			defer wg.Done()
			_, _ = p.LastRow("BTC/USDT", "5m")
		}()
	}
	wg.Wait()
	row, err := p.LastRow("BTC/USDT", "5m")
	require.NoError(t, err)
	assert.False(t, math.IsNaN(row.Value(frame.ADX)))
}
