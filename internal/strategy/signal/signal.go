package signal

import (
	"time"

	"github.com/amirphl/mlsignal/internal/strategy/position"
)

// Kind names the flag column a signal came from.
type Kind string

const (
	EnterLong  Kind = "enter_long"
	EnterShort Kind = "enter_short"
	ExitLong   Kind = "exit_long"
	ExitShort  Kind = "exit_short"
)

// Kinds lists every signal kind in column order.
var Kinds = []Kind{EnterLong, EnterShort, ExitLong, ExitShort}

// IsEntry reports whether k opens a position.
func (k Kind) IsEntry() bool {
	return k == EnterLong || k == EnterShort
}

// Side returns the side of the position k opens or closes.
func (k Kind) Side() position.Side {
	if k == EnterShort || k == ExitShort {
		return position.Short
	}
	return position.Long
}

// Signal is one flagged row of an analyzed frame.
type Signal struct {
	Time         time.Time `json:"time"`
	Pair         string    `json:"pair"`
	Timeframe    string    `json:"timeframe"`
	Kind         Kind      `json:"kind"`
	Tag          string    `json:"tag"`
	TriggerPrice float64   `json:"trigger_price"`
	Prediction   float64   `json:"prediction"`
	StrategyName string    `json:"strategy_name"`
}
