// Package config
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/amirphl/mlsignal/internal/tfutils"
)

/*
YAML config example:
db_conn_str: "postgres://..."
db_max_open: 10
db_max_idle: 5
run_migration: false
mode: "analyze"
pairs: ["BTC/USDT", "ETH/USDT"]
candles_csv: "data/{pair}-5m.csv"
predictions: "data/predictions.parquet"
dataset_out: "data/train.parquet"
journal: "signals.db"
summary_csv: "out/signals.csv"
metrics_addr: ":9100"
telegram_token: ""
telegram_chat_id: ""
notification_retries: 3
notification_delay: 2s
log:
  level: "info"
  file: "mlsignal.log"
  console: true
strategy:
  timeframe: "5m"
  indicator_period: 14
  startup_candle_count: 40
  can_short: true
  use_exit_signal: true
  process_only_new_candles: true
  stoploss: -0.02
  minimal_roi: { "0": 0.05, "60": 0.025, "120": 0.01, "240": -1 }
  thresholds:
    adx_trend: 25
    relative_volume: 1.5
    rsi_oversold: 30
    rsi_overbought: 70
freqai:
  feature_parameters:
    indicator_periods_candles: [14]
    label_period_candles: 24
*/

// DefaultPeriod is the indicator window used when none is configured.
const DefaultPeriod = 14

// Modes understood by the command line.
const (
	ModeAnalyze = "analyze"
	ModeDataset = "dataset"
	ModeConfirm = "confirm"
	ModeImport  = "import"
)

var (
	// ErrInvalidConfig wraps every validation failure.
	ErrInvalidConfig = errors.New("invalid config")
)

type Config struct {
	DBConnStr           string        `yaml:"db_conn_str"`
	DBMaxOpen           int           `yaml:"db_max_open"`
	DBMaxIdle           int           `yaml:"db_max_idle"`
	RunMigration        bool          `yaml:"run_migration"`
	Mode                string        `yaml:"mode"`
	Pairs               []string      `yaml:"pairs"`
	From                time.Time     `yaml:"from"`
	To                  time.Time     `yaml:"to"`
	CandlesCSV          string        `yaml:"candles_csv"`
	Predictions         string        `yaml:"predictions"`
	DatasetOut          string        `yaml:"dataset_out"`
	Journal             string        `yaml:"journal"`
	SummaryCSV          string        `yaml:"summary_csv"`
	MetricsAddr         string        `yaml:"metrics_addr"`
	TelegramToken       string        `yaml:"telegram_token"`
	TelegramChatID      string        `yaml:"telegram_chat_id"`
	NotificationRetries int           `yaml:"notification_retries"`
	NotificationDelay   time.Duration `yaml:"notification_delay"`
	Log                 LogConfig     `yaml:"log"`
	Strategy            Strategy      `yaml:"strategy"`
	FreqAI              FreqAI        `yaml:"freqai"`

	// Confirm mode only.
	ConfirmPair string `yaml:"-"`
	ConfirmSide string `yaml:"-"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
}

// Strategy holds the static settings declared to the host and the rule
// thresholds.
type Strategy struct {
	Timeframe             string     `yaml:"timeframe"`
	IndicatorPeriod       int        `yaml:"indicator_period"`
	StartupCandleCount    int        `yaml:"startup_candle_count"`
	CanShort              bool       `yaml:"can_short"`
	UseExitSignal         bool       `yaml:"use_exit_signal"`
	ProcessOnlyNewCandles bool       `yaml:"process_only_new_candles"`
	Stoploss              float64    `yaml:"stoploss"`
	MinimalROI            MinimalROI `yaml:"minimal_roi"`
	Thresholds            Thresholds `yaml:"thresholds"`
}

// Thresholds parameterise the entry, exit and confirmation rules.
type Thresholds struct {
	ADXTrend             float64 `yaml:"adx_trend"`
	RelativeVolume       float64 `yaml:"relative_volume"`
	RSIOversold          float64 `yaml:"rsi_oversold"`
	RSIOverbought        float64 `yaml:"rsi_overbought"`
	EnterLongPrediction  float64 `yaml:"enter_long_prediction"`
	EnterShortPrediction float64 `yaml:"enter_short_prediction"`
	ExitLongPrediction   float64 `yaml:"exit_long_prediction"`
	ExitShortPrediction  float64 `yaml:"exit_short_prediction"`
}

type FreqAI struct {
	FeatureParameters FeatureParameters `yaml:"feature_parameters"`
}

type FeatureParameters struct {
	IndicatorPeriodsCandles []int `yaml:"indicator_periods_candles"`
	LabelPeriodCandles      int   `yaml:"label_period_candles"`
}

// DefaultThresholds returns the rule thresholds of the strategy.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ADXTrend:             25,
		RelativeVolume:       1.5,
		RSIOversold:          30,
		RSIOverbought:        70,
		EnterLongPrediction:  0.02,
		EnterShortPrediction: -0.02,
		ExitLongPrediction:   0.01,
		ExitShortPrediction:  -0.01,
	}
}

// DefaultStrategy returns the static strategy settings.
func DefaultStrategy() Strategy {
	return Strategy{
		Timeframe:             "5m",
		IndicatorPeriod:       DefaultPeriod,
		StartupCandleCount:    40,
		CanShort:              true,
		UseExitSignal:         true,
		ProcessOnlyNewCandles: true,
		Stoploss:              -0.02,
		MinimalROI:            DefaultMinimalROI(),
		Thresholds:            DefaultThresholds(),
	}
}

// Default returns a complete configuration with every default applied.
func Default() Config {
	return Config{
		DBMaxOpen: 10,
		DBMaxIdle: 5,
		Mode:      ModeAnalyze,
		Pairs:     []string{"BTC/USDT"},
		Journal:   "signals.db",

		NotificationRetries: 3,
		NotificationDelay:   2 * time.Second,

		Log: LogConfig{
			Level:   "info",
			File:    "mlsignal.log",
			Console: true,
		},
		Strategy: DefaultStrategy(),
		FreqAI: FreqAI{
			FeatureParameters: FeatureParameters{
				IndicatorPeriodsCandles: []int{DefaultPeriod},
				LabelPeriodCandles:      24,
			},
		},
	}
}

// Period returns the indicator window shared by feature derivation and the
// post-model refresh.
func (c Config) Period() int {
	if c.Strategy.IndicatorPeriod > 0 {
		return c.Strategy.IndicatorPeriod
	}
	if p := c.FreqAI.FeatureParameters.IndicatorPeriodsCandles; len(p) > 0 && p[0] > 0 {
		return p[0]
	}
	return DefaultPeriod
}

// LabelPeriod returns the forward window used for targets.
func (c Config) LabelPeriod() int {
	return c.FreqAI.FeatureParameters.LabelPeriodCandles
}

// CandlesPath returns the CSV path for pair. A "{pair}" placeholder is
// replaced with the pair name with "/" replaced by "_".
func (c Config) CandlesPath(pair string) string {
	return strings.ReplaceAll(c.CandlesCSV, "{pair}", strings.ReplaceAll(pair, "/", "_"))
}

// Load reads a YAML file on top of the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	if err := Parse(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Parse decodes YAML into cfg. Keys absent from data keep their current value.
func Parse(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// ApplyEnv overlays environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("DB_CONN_STR"); v != "" {
		c.DBConnStr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		c.MetricsAddr = v
	}
	if v := os.Getenv("TELEGRAM_TOKEN"); v != "" {
		c.TelegramToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.TelegramChatID = v
	}
}

// Validate reports the first inconsistency in the configuration.
func (c Config) Validate() error {
	s := c.Strategy
	t := s.Thresholds
	switch {
	case c.Mode != ModeAnalyze && c.Mode != ModeDataset && c.Mode != ModeConfirm && c.Mode != ModeImport:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, c.Mode)
	case len(c.Pairs) == 0:
		return fmt.Errorf("%w: no pairs configured", ErrInvalidConfig)
	case !tfutils.IsValidTimeframe(s.Timeframe):
		return fmt.Errorf("%w: unsupported timeframe %q", ErrInvalidConfig, s.Timeframe)
	case c.Period() < 2:
		return fmt.Errorf("%w: indicator period %d must be at least 2", ErrInvalidConfig, c.Period())
	case c.LabelPeriod() < 1:
		return fmt.Errorf("%w: label_period_candles %d must be positive", ErrInvalidConfig, c.LabelPeriod())
	case s.StartupCandleCount < c.Period():
		return fmt.Errorf("%w: startup_candle_count %d is shorter than the indicator period %d", ErrInvalidConfig, s.StartupCandleCount, c.Period())
	case s.Stoploss >= 0:
		return fmt.Errorf("%w: stoploss %v must be negative", ErrInvalidConfig, s.Stoploss)
	case t.RSIOversold >= t.RSIOverbought:
		return fmt.Errorf("%w: rsi_oversold %v must be below rsi_overbought %v", ErrInvalidConfig, t.RSIOversold, t.RSIOverbought)
	case t.ADXTrend < 0 || t.RelativeVolume < 0:
		return fmt.Errorf("%w: adx_trend and relative_volume must not be negative", ErrInvalidConfig)
	case !c.From.IsZero() && !c.To.IsZero() && c.To.Before(c.From):
		return fmt.Errorf("%w: to %s is before from %s", ErrInvalidConfig, c.To.Format(time.DateOnly), c.From.Format(time.DateOnly))
	case c.Mode == ModeConfirm && (c.ConfirmPair == "" || c.ConfirmSide == ""):
		return fmt.Errorf("%w: confirm mode needs -pair and -side", ErrInvalidConfig)
	case c.Mode == ModeImport && (c.CandlesCSV == "" || c.DBConnStr == ""):
		return fmt.Errorf("%w: import mode needs -candles-csv and DB_CONN_STR", ErrInvalidConfig)
	}
	return nil
}

// MustLoadConfig builds the configuration from flags, an optional YAML file
// and the environment. It exits the process on invalid input.
func MustLoadConfig() Config {
	cfg, err := LoadFromFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	return cfg
}

// LoadFromFlags parses args with fs. Flags given explicitly win over the file.
func LoadFromFlags(fs *flag.FlagSet, args []string) (Config, error) {
	configFile := fs.String("config", "", "Path to YAML config file")
	mode := fs.String("mode", ModeAnalyze, "Mode: analyze, dataset, confirm or import")
	pairs := fs.String("pairs", "BTC/USDT", "Comma-separated list of pairs")
	timeframe := fs.String("timeframe", "5m", "Candle timeframe")
	candlesCSV := fs.String("candles-csv", "", "Candle CSV path; {pair} is replaced by the pair (empty reads from postgres)")
	predictions := fs.String("predictions", "", "Parquet file with external model predictions")
	datasetOut := fs.String("dataset-out", "", "Parquet file to write the training set to")
	journal := fs.String("journal", "signals.db", "SQLite signal journal path (empty disables it)")
	summaryCSV := fs.String("summary-csv", "", "CSV file to write the signals of an analyze run to")
	migrate := fs.Bool("migrate", false, "Apply scripts/schema.sql to the database before running")
	metricsAddr := fs.String("metrics-addr", "", "Address to serve prometheus metrics on (e.g., :9100)")
	logLevel := fs.String("log-level", "info", "Log level: debug or info or warn or error")
	logFile := fs.String("log-file", "mlsignal.log", "Rotating log file path (empty disables it)")
	from := fs.String("from", "", "Start date (YYYY-MM-DD)")
	to := fs.String("to", "", "End date (YYYY-MM-DD)")
	pair := fs.String("pair", "", "Pair to confirm in confirm mode")
	side := fs.String("side", "", "Side to confirm in confirm mode: long or short")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := Default()
	if *configFile != "" {
		loaded, err := Load(*configFile)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	override := func(name string, apply func()) {
		if set[name] || *configFile == "" {
			apply()
		}
	}
	override("mode", func() { cfg.Mode = *mode })
	override("pairs", func() { cfg.Pairs = splitList(*pairs) })
	override("timeframe", func() { cfg.Strategy.Timeframe = *timeframe })
	override("candles-csv", func() { cfg.CandlesCSV = *candlesCSV })
	override("predictions", func() { cfg.Predictions = *predictions })
	override("dataset-out", func() { cfg.DatasetOut = *datasetOut })
	override("journal", func() { cfg.Journal = *journal })
	override("summary-csv", func() { cfg.SummaryCSV = *summaryCSV })
	override("migrate", func() { cfg.RunMigration = *migrate })
	override("metrics-addr", func() { cfg.MetricsAddr = *metricsAddr })
	override("log-level", func() { cfg.Log.Level = *logLevel })
	override("log-file", func() { cfg.Log.File = *logFile })
	cfg.ConfirmPair = *pair
	cfg.ConfirmSide = *side

	var err error
	if *from != "" {
		if cfg.From, err = time.Parse(time.DateOnly, *from); err != nil {
			return cfg, fmt.Errorf("parse -from: %w", err)
		}
	}
	if *to != "" {
		if cfg.To, err = time.Parse(time.DateOnly, *to); err != nil {
			return cfg, fmt.Errorf("parse -to: %w", err)
		}
	}

	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for item := range strings.SplitSeq(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
