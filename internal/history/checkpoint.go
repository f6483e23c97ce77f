package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Checkpoint records how far a scan got and the ledger at that block, so a
// resumed scan continues the running totals instead of restarting them.
type Checkpoint struct {
	Vault              string  `json:"vault"`
	LastProcessedBlock uint64  `json:"last_processed_block"`
	Ledger             *Ledger `json:"ledger"`
	UpdatedAt          string  `json:"updated_at"`
}

// CheckpointStore persists checkpoints to disk.
type CheckpointStore struct {
	path    string
	enabled bool
}

func NewCheckpointStore(path string, enabled bool) *CheckpointStore {
	return &CheckpointStore{path: path, enabled: enabled && path != ""}
}

// Load returns the stored checkpoint. A checkpoint written for another vault
// or user is an error rather than a silent restart.
func (c *CheckpointStore) Load(vault, user string) (Checkpoint, bool, error) {
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
	if !strings.EqualFold(cp.Vault, vault) {
		return Checkpoint{}, false, fmt.Errorf("checkpoint is for vault %s, not %s", cp.Vault, vault)
	}
	if cp.Ledger == nil {
		return Checkpoint{}, false, fmt.Errorf("checkpoint has no ledger")
	}
	if !strings.EqualFold(cp.Ledger.User, user) {
		return Checkpoint{}, false, fmt.Errorf("checkpoint is for user %q, not %q", cp.Ledger.User, user)
	}
	cp.Ledger.init()

	return cp, true, nil
}

func (c *CheckpointStore) Save(vault string, lastProcessed uint64, ledger *Ledger) error {
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
		Vault:              vault,
		LastProcessedBlock: lastProcessed,
		Ledger:             ledger,
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
