package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"landScope/internal/model"
)

// DefaultLookback is the window used when neither --from nor --lookback is given.
const DefaultLookback = 50000

// ReadConfig holds configuration for history, market and watch.
type ReadConfig struct {
	Common
	FromBlock      uint64
	ToBlock        uint64
	Lookback       uint64
	Limit          int
	Account        string
	Types          []model.EventType
	BatchSize      uint64
	Concurrency    int
	WithTimestamps bool
	WithOrderPlots bool
	Out            string
	PGDSN          string

	Heads        string
	PollInterval time.Duration
	Debounce     time.Duration
	Policy       string

	NATSURL     string
	NATSSubject string
}

// LoadRead merges config file, environment variables, and flags into ReadConfig.
func LoadRead(cfgFile string, flags *pflag.FlagSet) (ReadConfig, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("limit", 50)
		v.SetDefault("batch-size", uint64(5000))
		v.SetDefault("concurrency", 4)
		v.SetDefault("timestamps", true)
		v.SetDefault("order-plots", true)
		v.SetDefault("heads", "poll")
		v.SetDefault("poll-interval", 4*time.Second)
		v.SetDefault("debounce", 500*time.Millisecond)
		v.SetDefault("policy", "drop")
		v.SetDefault("nats-subject", "landscope")
	})
	if err != nil {
		return ReadConfig{}, err
	}

	types, err := parseEventTypes(getStringSlice(v, "types"))
	if err != nil {
		return ReadConfig{}, err
	}

	cfg := ReadConfig{
		Common:         loadCommon(v),
		FromBlock:      v.GetUint64("from"),
		ToBlock:        v.GetUint64("to"),
		Lookback:       v.GetUint64("lookback"),
		Limit:          v.GetInt("limit"),
		Account:        strings.TrimSpace(v.GetString("account")),
		Types:          types,
		BatchSize:      v.GetUint64("batch-size"),
		Concurrency:    v.GetInt("concurrency"),
		WithTimestamps: v.GetBool("timestamps"),
		WithOrderPlots: v.GetBool("order-plots"),
		Out:            v.GetString("out"),
		PGDSN:          v.GetString("pg-dsn"),
		Heads:          strings.ToLower(v.GetString("heads")),
		PollInterval:   v.GetDuration("poll-interval"),
		Debounce:       v.GetDuration("debounce"),
		Policy:         strings.ToLower(v.GetString("policy")),
		NATSURL:        v.GetString("nats-url"),
		NATSSubject:    v.GetString("nats-subject"),
	}

	if cfg.Lookback == 0 && cfg.FromBlock == 0 {
		cfg.Lookback = DefaultLookback
	}
	if cfg.Heads != "poll" && cfg.Heads != "ws" {
		return ReadConfig{}, fmt.Errorf("heads must be poll or ws, got %q", cfg.Heads)
	}

	return cfg, nil
}

func parseEventTypes(values []string) ([]model.EventType, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make([]model.EventType, 0, len(values))
	for _, value := range values {
		t := model.EventType(strings.ToUpper(value))
		if !t.Valid() {
			return nil, fmt.Errorf("unknown event type %q", value)
		}
		out = append(out, t)
	}
	return out, nil
}
