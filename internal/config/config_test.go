package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"landScope/internal/model"
)

func TestContractAddress(t *testing.T) {
	if _, err := ContractAddress(""); !errors.Is(err, ErrNoContractAddress) {
		t.Fatalf("expected ErrNoContractAddress, got %v", err)
	}
	if _, err := ContractAddress("0x1234"); !errors.Is(err, ErrInvalidContractAddress) {
		t.Fatalf("expected ErrInvalidContractAddress, got %v", err)
	}
	if _, err := ContractAddress("0x0000000000000000000000000000000000000000"); !errors.Is(err, ErrInvalidContractAddress) {
		t.Fatalf("zero address must be rejected, got %v", err)
	}
	addr, err := ContractAddress(" 0x5555555555555555555555555555555555555555 ")
	if err != nil {
		t.Fatalf("valid address rejected: %v", err)
	}
	if addr.Hex() != "0x5555555555555555555555555555555555555555" {
		t.Fatalf("unexpected address %s", addr.Hex())
	}
}

func TestLoadReadFlagsAndEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("LANDSCOPE_CONTRACT", "0x5555555555555555555555555555555555555555")
	t.Setenv("LANDSCOPE_CHAIN_ID", "11155111")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Uint64("from", 0, "")
	flags.Int("limit", 50, "")
	flags.String("types", "", "")
	flags.Duration("debounce", 0, "")
	if err := flags.Parse([]string{"--from=100", "--limit=10", "--types=transfer,sell_order_created", "--debounce=2s"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := LoadRead("", flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Contract != "0x5555555555555555555555555555555555555555" || cfg.ChainID != 11155111 {
		t.Fatalf("env not applied: %+v", cfg.Common)
	}
	if cfg.FromBlock != 100 || cfg.Lookback != 0 || cfg.Limit != 10 {
		t.Fatalf("range flags not applied: %+v", cfg)
	}
	if len(cfg.Types) != 2 || cfg.Types[0] != model.EventTransfer || cfg.Types[1] != model.EventSellOrderCreated {
		t.Fatalf("types not parsed: %v", cfg.Types)
	}
	if cfg.Debounce != 2*time.Second || cfg.Policy != "drop" || cfg.Heads != "poll" {
		t.Fatalf("live defaults mismatch: %+v", cfg)
	}
}

func TestLoadReadDefaultLookback(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := LoadRead("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Lookback != DefaultLookback || cfg.Concurrency != 4 || cfg.BatchSize != 5000 {
		t.Fatalf("defaults mismatch: %+v", cfg)
	}
}

func TestLoadReadRejectsUnknownType(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("LANDSCOPE_TYPES", "SWAP")
	if _, err := LoadRead("", nil); err == nil {
		t.Fatalf("expected unknown type error")
	}
}

func TestLoadRunDefaultsAddressToContract(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("LANDSCOPE_CONTRACT", "0x5555555555555555555555555555555555555555")
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Addresses) != 1 || cfg.Addresses[0] != cfg.Contract {
		t.Fatalf("addresses should default to contract: %v", cfg.Addresses)
	}
	if cfg.BatchSize != 2000 || !cfg.CheckpointEnabled || cfg.MaxRetries != 5 {
		t.Fatalf("defaults mismatch: %+v", cfg)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "landscope.yaml")
	if err := os.WriteFile(path, []byte("rpc: http://node:8545\nprivate-key: abc\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := LoadOrder(path, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCURL != "http://node:8545" || cfg.PrivateKey != "abc" {
		t.Fatalf("config file not applied: %+v", cfg)
	}
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("LANDSCOPE_RPC=http://from-dotenv\n"), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("LANDSCOPE_RPC", "")
	os.Unsetenv("LANDSCOPE_RPC")

	if err := LoadEnvFiles(""); err != nil {
		t.Fatalf("load env: %v", err)
	}
	if got := os.Getenv("LANDSCOPE_RPC"); got != "http://from-dotenv" {
		t.Fatalf("dotenv not loaded: %q", got)
	}

	if err := LoadEnvFiles(filepath.Join(dir, "missing.env")); err == nil {
		t.Fatalf("explicit missing env file must fail")
	}
}

// chdir changes the working directory for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restore working directory: %v", err)
		}
	})
}
