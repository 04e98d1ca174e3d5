package strategy

import (
	"fmt"

	"github.com/amirphl/mlsignal/internal/config"
	"github.com/amirphl/mlsignal/internal/frame"
)

// Tags written to enter_tag and exit_tag.
const (
	TagLong      = "long"
	TagShort     = "short"
	TagExitLong  = "exit_long"
	TagExitShort = "exit_short"
)

// row holds the operands of the signal rules for one frame row.
type row struct {
	doPredict  int
	prediction float64
	adx        float64
	relVolume  float64
	rsi        float64
	close      float64
	lower      float64
	upper      float64
}

// Rules evaluates the entry, exit and confirmation predicates. A predicate with
// an undefined operand is false. Only Confirm is used outside the package; the
// row predicates run through PopulateEntryTrend and PopulateExitTrend.
type Rules struct {
	T config.Thresholds
}

func defined(values ...float64) bool {
	for _, v := range values {
		if frame.Undefined(v) {
			return false
		}
	}
	return true
}

func (r Rules) accepted(x row) bool {
	return x.doPredict == 1 && defined(x.prediction)
}

// trendStrong is ADX above the trend threshold.
func (r Rules) trendStrong(x row) bool {
	return defined(x.adx) && x.adx > r.T.ADXTrend
}

// volumeConfirm is relative volume above the volume threshold.
func (r Rules) volumeConfirm(x row) bool {
	return defined(x.relVolume) && x.relVolume > r.T.RelativeVolume
}

func (r Rules) oversoldBelowBand(x row) bool {
	return defined(x.rsi, x.close, x.lower) && x.rsi < r.T.RSIOversold && x.close < x.lower
}

func (r Rules) overboughtAboveBand(x row) bool {
	return defined(x.rsi, x.close, x.upper) && x.rsi > r.T.RSIOverbought && x.close > x.upper
}

// enterLong needs a bullish prediction in a strong, volume-confirmed trend
// with RSI oversold and close below the lower band.
func (r Rules) enterLong(x row) bool {
	return r.accepted(x) &&
		x.prediction > r.T.EnterLongPrediction &&
		r.trendStrong(x) &&
		r.volumeConfirm(x) &&
		r.oversoldBelowBand(x)
}

// enterShort mirrors enterLong on the bearish side.
func (r Rules) enterShort(x row) bool {
	return r.accepted(x) &&
		x.prediction < r.T.EnterShortPrediction &&
		r.trendStrong(x) &&
		r.volumeConfirm(x) &&
		r.overboughtAboveBand(x)
}

// exitLong fires on a weak prediction while overbought above the upper band.
func (r Rules) exitLong(x row) bool {
	return r.accepted(x) &&
		x.prediction < r.T.ExitLongPrediction &&
		r.overboughtAboveBand(x)
}

func (r Rules) exitShort(x row) bool {
	return r.accepted(x) &&
		x.prediction > r.T.ExitShortPrediction &&
		r.oversoldBelowBand(x)
}

// Confirm is the trade confirmation check. It is the same for both sides:
// deny when relative volume or ADX is below its threshold.
func (r Rules) Confirm(adx, relVolume float64) bool {
	if relVolume < r.T.RelativeVolume {
		return false
	}
	if adx < r.T.ADXTrend {
		return false
	}
	return true
}

var ruleColumns = []string{
	frame.DoPredict, frame.Target, frame.ADX, frame.RelativeVolume,
	frame.RSI, frame.Close, frame.BBLower, frame.BBUpper,
}

// rows reads the rule operands of every row of f.
func rows(f *frame.Frame) ([]row, error) {
	doPredict, err := f.Int(frame.DoPredict)
	if err != nil {
		return nil, err
	}
	cols := make(map[string][]float64, len(ruleColumns))
	for _, name := range ruleColumns[1:] {
		v, err := f.Float(name)
		if err != nil {
			return nil, err
		}
		cols[name] = v
	}
	out := make([]row, f.Len())
	for i := range out {
		out[i] = row{
			doPredict:  doPredict[i],
			prediction: cols[frame.Target][i],
			adx:        cols[frame.ADX][i],
			relVolume:  cols[frame.RelativeVolume][i],
			rsi:        cols[frame.RSI][i],
			close:      cols[frame.Close][i],
			lower:      cols[frame.BBLower][i],
			upper:      cols[frame.BBUpper][i],
		}
	}
	return out, nil
}

// PopulateEntryTrend writes enter_long, enter_short and enter_tag. Short
// entries are only flagged when shorting is enabled.
func (s *MLStrategy) PopulateEntryTrend(f *frame.Frame, meta frame.Metadata) error {
	rs, err := rows(f)
	if err != nil {
		return fmt.Errorf("populate entry trend %s: %w", meta.Pair, err)
	}
	long := make([]int, len(rs))
	short := make([]int, len(rs))
	tags := make([]string, len(rs))
	for i, x := range rs {
		if s.rules.enterLong(x) {
			long[i] = 1
			tags[i] = TagLong
		}
		if s.cfg.CanShort && s.rules.enterShort(x) {
			short[i] = 1
			tags[i] = TagShort
		}
	}
	if err := f.SetInt(frame.EnterLong, long); err != nil {
		return err
	}
	if err := f.SetInt(frame.EnterShort, short); err != nil {
		return err
	}
	return f.SetString(frame.EnterTag, tags)
}

// PopulateExitTrend writes exit_long, exit_short and exit_tag. With exit
// signals disabled the columns are written with no flags set.
func (s *MLStrategy) PopulateExitTrend(f *frame.Frame, meta frame.Metadata) error {
	rs, err := rows(f)
	if err != nil {
		return fmt.Errorf("populate exit trend %s: %w", meta.Pair, err)
	}
	long := make([]int, len(rs))
	short := make([]int, len(rs))
	tags := make([]string, len(rs))
	if s.cfg.UseExitSignal {
		for i, x := range rs {
			if s.rules.exitLong(x) {
				long[i] = 1
				tags[i] = TagExitLong
			}
			if s.rules.exitShort(x) {
				short[i] = 1
				tags[i] = TagExitShort
			}
		}
	}
	if err := f.SetInt(frame.ExitLong, long); err != nil {
		return err
	}
	if err := f.SetInt(frame.ExitShort, short); err != nil {
		return err
	}
	return f.SetString(frame.ExitTag, tags)
}

// conflicts returns the rows flagged with both an entry and an exit.
func conflicts(f *frame.Frame) ([]int, error) {
	flags := make([][]int, 4)
	for i, name := range []string{frame.EnterLong, frame.EnterShort, frame.ExitLong, frame.ExitShort} {
		v, err := f.Int(name)
		if err != nil {
			return nil, err
		}
		flags[i] = v
	}
	var out []int
	for i := 0; i < f.Len(); i++ {
		entry := flags[0][i] == 1 || flags[1][i] == 1
		exit := flags[2][i] == 1 || flags[3][i] == 1
		if entry && exit {
			out = append(out, i)
		}
	}
	return out, nil
}
