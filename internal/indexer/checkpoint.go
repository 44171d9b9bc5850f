package indexer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrCheckpointMismatch is returned when a checkpoint belongs to another chain or contract.
var ErrCheckpointMismatch = errors.New("checkpoint written for a different chain or contract")

// Checkpoint tracks the last processed block of one contract on one chain.
type Checkpoint struct {
	ChainID            uint64 `json:"chain_id,omitempty"`
	Contract           string `json:"contract,omitempty"`
	LastProcessedBlock uint64 `json:"last_processed_block"`
	UpdatedAt          string `json:"updated_at"`
}

// CheckpointStore persists checkpoints to disk with an atomic rename.
type CheckpointStore struct {
	path     string
	contract string
	enabled  bool
}

// NewCheckpointStore returns a store bound to contract; an empty contract
// accepts any checkpoint.
func NewCheckpointStore(path, contract string, enabled bool) *CheckpointStore {
	return &CheckpointStore{path: path, contract: contract, enabled: enabled}
}

// Load reads the checkpoint for chainID. A zero chainID, or a checkpoint
// written without one, skips the chain check.
func (c *CheckpointStore) Load(chainID uint64) (Checkpoint, bool, error) {
	if !c.enabled {
		return Checkpoint{}, false, nil
	}

	stat, err := os.Stat(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Checkpoint{}, false, nil
		}
		return Checkpoint{}, false, fmt.Errorf("stat checkpoint: %w", err)
	}
	if stat.IsDir() {
		return Checkpoint{}, false, fmt.Errorf("checkpoint path is a directory")
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return Checkpoint{}, false, fmt.Errorf("read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return Checkpoint{}, false, fmt.Errorf("parse checkpoint: %w", err)
	}
	if c.contract != "" && cp.Contract != "" && !strings.EqualFold(c.contract, cp.Contract) {
		return Checkpoint{}, false, fmt.Errorf("%w: contract %s", ErrCheckpointMismatch, cp.Contract)
	}
	if chainID != 0 && cp.ChainID != 0 && cp.ChainID != chainID {
		return Checkpoint{}, false, fmt.Errorf("%w: chain %d", ErrCheckpointMismatch, cp.ChainID)
	}

	return cp, true, nil
}

// Save atomically replaces the checkpoint.
func (c *CheckpointStore) Save(chainID, lastProcessed uint64) error {
	if !c.enabled {
		return nil
	}

	dir := filepath.Dir(c.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create checkpoint dir: %w", err)
		}
	}

	cp := Checkpoint{
		ChainID:            chainID,
		Contract:           c.contract,
		LastProcessedBlock: lastProcessed,
		UpdatedAt:          time.Now().UTC().Format(time.RFC3339Nano),
	}
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint tmp: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}

	return nil
}
