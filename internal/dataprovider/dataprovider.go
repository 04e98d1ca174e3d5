// Package dataprovider caches the latest analyzed frame per pair and timeframe
// for readers that run outside the analysis loop, such as the trade
// confirmation gate.
package dataprovider

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/amirphl/mlsignal/internal/frame"
)

// ErrNoAnalyzedData is returned when no non-empty frame has been stored for a
// pair and timeframe.
var ErrNoAnalyzedData = errors.New("dataprovider: no analyzed data")

type key struct {
	pair      string
	timeframe string
}

type entry struct {
	frame     *frame.Frame
	updatedAt time.Time
}

// Provider is safe for concurrent use.
type Provider struct {
	mu      sync.RWMutex
	entries map[key]entry
	now     func() time.Time
}

func New() *Provider {
	return &Provider{
		entries: make(map[key]entry),
		now:     time.Now,
	}
}

func makeKey(pair, timeframe string) key {
	return key{strings.ToUpper(strings.TrimSpace(pair)), strings.ToLower(strings.TrimSpace(timeframe))}
}

// Store keeps a copy of f as the latest analysis of pair/timeframe.
func (p *Provider) Store(pair, timeframe string, f *frame.Frame) {
	c := f.Copy()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[makeKey(pair, timeframe)] = entry{frame: c, updatedAt: p.now()}
}

// GetAnalyzedDataFrame returns a copy of the latest analyzed frame and the time
// it was stored.
func (p *Provider) GetAnalyzedDataFrame(pair, timeframe string) (*frame.Frame, time.Time, error) {
	p.mu.RLock()
	e, ok := p.entries[makeKey(pair, timeframe)]
	p.mu.RUnlock()
	if !ok || e.frame.Len() == 0 {
		return nil, time.Time{}, fmt.Errorf("%w for %s %s", ErrNoAnalyzedData, pair, timeframe)
	}
	return e.frame.Copy(), e.updatedAt, nil
}

// Row is a read-only view of one analyzed row.
type Row struct {
	Date   time.Time
	values map[string]float64
}

// Value returns the named column, NaN when it is absent.
func (r Row) Value(name string) float64 {
	v, ok := r.values[name]
	if !ok {
		return math.NaN()
	}
	return v
}

// LastRow returns the most recent row of the latest analyzed frame. Only
// numeric columns are included.
func (p *Provider) LastRow(pair, timeframe string) (Row, error) {
	p.mu.RLock()
	e, ok := p.entries[makeKey(pair, timeframe)]
	p.mu.RUnlock()
	if !ok || e.frame.Len() == 0 {
		return Row{}, fmt.Errorf("%w for %s %s", ErrNoAnalyzedData, pair, timeframe)
	}
	last := e.frame.Len() - 1
	row := Row{Date: e.frame.Date(last), values: make(map[string]float64)}
	for _, name := range e.frame.Names() {
		if name == frame.EnterTag || name == frame.ExitTag {
			continue
		}
		v, err := e.frame.FloatAt(name, last)
		if err != nil {
			continue
		}
		row.values[name] = v
	}
	return row, nil
}

// Pairs returns the stored pairs for timeframe.
func (p *Provider) Pairs(timeframe string) []string {
	tf := strings.ToLower(timeframe)
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []string
	for k := range p.entries {
		if k.timeframe == tf {
			out = append(out, k.pair)
		}
	}
	return out
}
