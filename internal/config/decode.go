package config

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DecodeConfig holds configuration for the decode command.
type DecodeConfig struct {
	LogLevel string
	In       string
	Out      string
	Errors   string
	Symbol   string
	Decimals uint8
}

// LoadDecode merges config file, environment variables, and flags into DecodeConfig.
func LoadDecode(cfgFile string, flags *pflag.FlagSet) (DecodeConfig, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("in", "./data/logs.jsonl")
		v.SetDefault("out", "./data/event_rows.jsonl")
		v.SetDefault("errors", "./data/decode_errors.jsonl")
		v.SetDefault("symbol", "GMCLT")
		v.SetDefault("decimals", 18)
	})
	if err != nil {
		return DecodeConfig{}, err
	}

	return DecodeConfig{
		LogLevel: v.GetString("log-level"),
		In:       v.GetString("in"),
		Out:      v.GetString("out"),
		Errors:   v.GetString("errors"),
		Symbol:   v.GetString("symbol"),
		Decimals: uint8(v.GetUint("decimals")),
	}, nil
}
