package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMinimalROI_Threshold(t *testing.T) {
	roi := DefaultMinimalROI()
	tests := []struct {
		elapsed  time.Duration
		expected float64
	}{
		{0, 0.05},
		{59 * time.Minute, 0.05},
		{60 * time.Minute, 0.025},
		{119*time.Minute + 59*time.Second, 0.025},
		{120 * time.Minute, 0.01},
		{240 * time.Minute, HoldUntilStoploss},
		{48 * time.Hour, HoldUntilStoploss},
	}
	for _, tt := range tests {
		got, ok := roi.Threshold(tt.elapsed)
		assert.True(t, ok, "elapsed %s", tt.elapsed)
		assert.Equal(t, tt.expected, got, "elapsed %s", tt.elapsed)
	}

	_, ok := MinimalROI{30: 0.01}.Threshold(10 * time.Minute)
	assert.False(t, ok)
}

func TestMinimalROI_ShouldExit(t *testing.T) {
	roi := DefaultMinimalROI()
	assert.True(t, roi.ShouldExit(10*time.Minute, 0.06))
	assert.False(t, roi.ShouldExit(10*time.Minute, 0.04))
	assert.True(t, roi.ShouldExit(90*time.Minute, 0.03))
	assert.True(t, roi.ShouldExit(150*time.Minute, 0.011))
	assert.False(t, roi.ShouldExit(300*time.Minute, 0.5), "hold until stoploss")
	assert.False(t, MinimalROI{}.ShouldExit(time.Hour, 1))
}

func TestMinimalROI_Minutes(t *testing.T) {
	assert.Equal(t, []int{0, 60, 120, 240}, DefaultMinimalROI().Minutes())
}
