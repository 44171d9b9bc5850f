package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

// EnvPrefix namespaces environment variables, e.g. LANDSCOPE_CONTRACT.
const EnvPrefix = "LANDSCOPE"

var (
	ErrNoContractAddress      = errors.New("no contract address configured")
	ErrInvalidContractAddress = errors.New("invalid contract address")
)

// LoadEnvFiles loads .env style files into the process environment without
// overriding variables that are already set. With an explicit path the file
// must exist; otherwise .env and .env.local are tried and missing ones ignored.
func LoadEnvFiles(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	for _, candidate := range []string{".env.local", ".env"} {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		if err := godotenv.Load(candidate); err != nil {
			return fmt.Errorf("load env file %s: %w", candidate, err)
		}
	}
	return nil
}

// ContractAddress validates the configured contract. Empty, malformed and
// zero addresses are rejected before any call is attempted.
func ContractAddress(value string) (common.Address, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return common.Address{}, fmt.Errorf("%w: set --contract or %s_CONTRACT", ErrNoContractAddress, EnvPrefix)
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidContractAddress, value)
	}
	addr := common.HexToAddress(value)
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: zero address", ErrInvalidContractAddress)
	}
	return addr, nil
}
