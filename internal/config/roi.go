package config

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// HoldUntilStoploss is the ROI value that disables ROI exits from its key on.
const HoldUntilStoploss = -1

// MinimalROI maps minutes since trade entry to the profit ratio at which the
// trade is closed.
type MinimalROI map[int]float64

// DefaultMinimalROI returns {0: 5%, 60: 2.5%, 120: 1%, 240: hold until stoploss}.
func DefaultMinimalROI() MinimalROI {
	return MinimalROI{
		0:   0.05,
		60:  0.025,
		120: 0.01,
		240: HoldUntilStoploss,
	}
}

// UnmarshalYAML accepts the host's string-keyed form ("60": 0.025).
func (r *MinimalROI) UnmarshalYAML(value *yaml.Node) error {
	var raw map[string]float64
	if err := value.Decode(&raw); err != nil {
		return err
	}
	out := make(MinimalROI, len(raw))
	for k, v := range raw {
		minutes, err := strconv.Atoi(k)
		if err != nil || minutes < 0 {
			return fmt.Errorf("minimal_roi: invalid minute key %q", k)
		}
		out[minutes] = v
	}
	*r = out
	return nil
}

// Threshold returns the ROI in force after elapsed: the value of the largest key
// not greater than the elapsed minutes. ok is false when no key applies.
func (r MinimalROI) Threshold(elapsed time.Duration) (roi float64, ok bool) {
	minutes := int(elapsed / time.Minute)
	best := -1
	for k := range r {
		if k <= minutes && k > best {
			best = k
		}
	}
	if best < 0 {
		return 0, false
	}
	return r[best], true
}

// ShouldExit reports whether a trade open for elapsed with the given profit
// ratio has reached its ROI target.
func (r MinimalROI) ShouldExit(elapsed time.Duration, profit float64) bool {
	roi, ok := r.Threshold(elapsed)
	if !ok || roi == HoldUntilStoploss {
		return false
	}
	return profit > roi
}

// Minutes returns the table keys in ascending order.
func (r MinimalROI) Minutes() []int {
	keys := make([]int, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
