package scan

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/vireodb/partscan/internal/checkpoint"
	"github.com/vireodb/partscan/internal/meta"
	"github.com/vireodb/partscan/internal/pool"
	"github.com/vireodb/partscan/internal/records"
	"github.com/vireodb/partscan/internal/wire"
)

// Config is the explicit construction surface of an iterator. No hidden
// defaults beyond PartialSuccess=false: every collaborator is named here
// and checked by Validate.
type Config struct {
	// Meta resolves fresh partition leaders after LEADER_CHANGED.
	Meta meta.Provider

	// Conns provides and reclaims storage connections.
	Conns pool.Provider

	// Parts is the initial partition-to-leader assignment of the scan.
	Parts []PartState

	// Template carries the per-scan request parameters; it is cloned with
	// partition id and cursor substituted for every fetch.
	Template *wire.ScanRequest

	Space string
	Label string

	// PartialSuccess selects the lenient round policy: keep going and
	// report PART_SUCCESS when some hosts fail, as long as one succeeds.
	// The default strict policy fails the round on any host error.
	PartialSuccess bool

	// Processor decodes this scan's payloads; selected per entity kind.
	Processor records.Processor

	// Checkpoints, when set, persists partition cursors after each round
	// and lets New resume an interrupted scan. Optional.
	Checkpoints checkpoint.Manager

	// Logger defaults to slog.Default with a component attribute.
	Logger *slog.Logger
}

// Validate checks the configuration at construction time.
func (c *Config) Validate() error {
	if c.Meta == nil {
		return errors.New("meta provider is nil")
	}
	if c.Conns == nil {
		return errors.New("connection provider is nil")
	}
	if c.Template == nil {
		return errors.New("request template is nil")
	}
	if c.Space == "" {
		return errors.New("space name is empty")
	}
	if c.Label == "" {
		return errors.New("label name is empty")
	}
	if len(c.Parts) == 0 {
		return errors.New("no partitions to scan")
	}
	if c.Processor == nil {
		return errors.New("record processor is nil")
	}
	if got := c.Processor.Kind(); got != c.Template.Kind {
		return fmt.Errorf("processor kind %q does not match request kind %q", got, c.Template.Kind)
	}
	seen := make(map[int32]struct{}, len(c.Parts))
	for _, p := range c.Parts {
		if _, dup := seen[p.PartID]; dup {
			return fmt.Errorf("duplicate partition %d in initial assignment", p.PartID)
		}
		seen[p.PartID] = struct{}{}
		if p.Leader.Host == "" {
			return fmt.Errorf("partition %d has no leader host", p.PartID)
		}
	}
	return nil
}
