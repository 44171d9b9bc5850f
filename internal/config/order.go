package config

import (
	"github.com/spf13/pflag"
)

// OrderConfig holds configuration for the order commands.
type OrderConfig struct {
	Common
	PrivateKey   string
	KeystorePath string
	Passphrase   string
}

// LoadOrder merges config file, environment variables, and flags into OrderConfig.
func LoadOrder(cfgFile string, flags *pflag.FlagSet) (OrderConfig, error) {
	v, err := newViper(cfgFile, flags, nil)
	if err != nil {
		return OrderConfig{}, err
	}

	return OrderConfig{
		Common:       loadCommon(v),
		PrivateKey:   v.GetString("private-key"),
		KeystorePath: v.GetString("keystore"),
		Passphrase:   v.GetString("passphrase"),
	}, nil
}
