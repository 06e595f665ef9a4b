// Package checkpoint persists scan progress so an interrupted scan can
// resume from its partition cursors instead of restarting.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrNoCheckpoint is returned when no checkpoint exists.
var ErrNoCheckpoint = errors.New("no checkpoint found")

// Checkpoint captures the resumable state of one scan: the cursor of every
// partition that still has data. Partitions absent from Cursors are done.
type Checkpoint struct {
	ScanID    string           `json:"scan_id"`
	Space     string           `json:"space"`
	Label     string           `json:"label"`
	Kind      string           `json:"kind"`
	Cursors   map[int32][]byte `json:"cursors"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Manager handles checkpoint persistence and retrieval.
type Manager interface {
	// Load reads the checkpoint of a space/label scan.
	Load(ctx context.Context, space, label string) (*Checkpoint, error)

	// Save persists the checkpoint.
	Save(ctx context.Context, cp *Checkpoint) error

	// Clear removes the checkpoint once a scan has finished.
	Clear(ctx context.Context, space, label string) error
}

// Config configures the checkpoint manager.
type Config struct {
	Enabled bool
	Dir     string // Directory for checkpoint files
}

// NewManager creates a checkpoint manager based on configuration.
func NewManager(cfg Config) (Manager, error) {
	if !cfg.Enabled {
		return &noopManager{}, nil
	}

	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create checkpoint directory %s: %w", cfg.Dir, err)
	}

	return &fileManager{dir: cfg.Dir}, nil
}

// fileManager persists checkpoints to local files.
type fileManager struct {
	dir string
}

func (m *fileManager) path(space, label string) string {
	filename := fmt.Sprintf("checkpoint_%s_%s.json", space, label)
	return filepath.Join(m.dir, filename)
}

// Load reads the checkpoint from file.
func (m *fileManager) Load(ctx context.Context, space, label string) (*Checkpoint, error) {
	data, err := os.ReadFile(m.path(space, label))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoCheckpoint
		}
		return nil, fmt.Errorf("read checkpoint file: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("parse checkpoint file: %w", err)
	}

	// A file moved between scans is not a resumable state.
	if cp.Space != space || cp.Label != label {
		return nil, ErrNoCheckpoint
	}
	return &cp, nil
}

// Save persists the checkpoint to file.
func (m *fileManager) Save(ctx context.Context, cp *Checkpoint) error {
	if cp == nil {
		return errors.New("checkpoint is nil")
	}
	cp.UpdatedAt = time.Now().UTC()
	path := m.path(cp.Space, cp.Label)

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	// Write atomically
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("write checkpoint temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename checkpoint file: %w", err)
	}

	return nil
}

// Clear removes the checkpoint file.
func (m *fileManager) Clear(ctx context.Context, space, label string) error {
	if err := os.Remove(m.path(space, label)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove checkpoint file: %w", err)
	}
	return nil
}

// noopManager is a no-op checkpoint manager for when checkpointing is disabled.
type noopManager struct{}

func (m *noopManager) Load(ctx context.Context, space, label string) (*Checkpoint, error) {
	return nil, ErrNoCheckpoint
}

func (m *noopManager) Save(ctx context.Context, cp *Checkpoint) error {
	return nil
}

func (m *noopManager) Clear(ctx context.Context, space, label string) error {
	return nil
}
