package tfutils

import (
	"fmt"
	"sort"
	"time"
)

var timeframes = map[string]time.Duration{
	"1m":  time.Minute,
	"3m":  3 * time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"2h":  2 * time.Hour,
	"4h":  4 * time.Hour,
	"1d":  24 * time.Hour,
}

// ParseTimeframe parses timeframe string (e.g., "5m", "1h") to time.Duration
func ParseTimeframe(timeframe string) (time.Duration, error) {
	d, ok := timeframes[timeframe]
	if !ok {
		return 0, fmt.Errorf("unsupported timeframe %q", timeframe)
	}
	return d, nil
}

// GetTimeframeDuration returns the duration for a given timeframe, or 0 if unknown
func GetTimeframeDuration(timeframe string) time.Duration {
	return timeframes[timeframe]
}

// TimeframeMinutes returns the timeframe length in minutes.
func TimeframeMinutes(timeframe string) int {
	return int(timeframes[timeframe] / time.Minute)
}

// CandlesIn returns how many whole candles of timeframe fit into d.
func CandlesIn(timeframe string, d time.Duration) int {
	tf := timeframes[timeframe]
	if tf == 0 {
		return 0
	}
	return int(d / tf)
}

// GetSupportedTimeframes returns all supported timeframes, shortest first
func GetSupportedTimeframes() []string {
	out := make([]string, 0, len(timeframes))
	for tf := range timeframes {
		out = append(out, tf)
	}
	sort.Slice(out, func(i, j int) bool { return timeframes[out[i]] < timeframes[out[j]] })
	return out
}

// IsValidTimeframe checks if a timeframe is supported
func IsValidTimeframe(timeframe string) bool {
	return GetTimeframeDuration(timeframe) > 0
}
