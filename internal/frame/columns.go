package frame

// Column name prefixes reserved by the host: model inputs start with
// FeaturePrefix, model targets with TargetPrefix.
const (
	FeaturePrefix = "%-"
	TargetPrefix  = "&-"
)

// Observation columns.
const (
	Date   = "date"
	Open   = "open"
	High   = "high"
	Low    = "low"
	Close  = "close"
	Volume = "volume"
)

// Windowed feature columns.
const (
	RSI            = "%-rsi-period"
	MFI            = "%-mfi-period"
	ADX            = "%-adx-period"
	SMA            = "%-sma-period"
	EMA            = "%-ema-period"
	BBLower        = "bb_lowerband-period"
	BBMiddle       = "bb_middleband-period"
	BBUpper        = "bb_upperband-period"
	BBWidth        = "%-bb_width-period"
	CloseToBBLower = "%-close-bb_lower-period"
	ROC            = "%-roc-period"
	RelativeVolume = "%-relative_volume-period"
)

// Unwindowed feature columns.
const (
	PctChange = "%-pct-change"
	RawVolume = "%-raw_volume"
	RawPrice  = "%-raw_price"
	DayOfWeek = "%-day_of_week"
	HourOfDay = "%-hour_of_day"
)

// Model columns.
const (
	Target    = "&-s_close"
	DoPredict = "do_predict"
)

// Signal columns.
const (
	EnterLong  = "enter_long"
	EnterShort = "enter_short"
	ExitLong   = "exit_long"
	ExitShort  = "exit_short"
	EnterTag   = "enter_tag"
	ExitTag    = "exit_tag"
)

// OHLCV lists the observation columns every frame carries.
var OHLCV = []string{Open, High, Low, Close, Volume}
