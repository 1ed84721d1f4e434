package config

import (
	"fmt"

	"github.com/tamzrod/modbus-monitor/internal/modbus"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	m := cfg.Monitor

	// ------------------------------------------------------------
	// CONNECTION
	// ------------------------------------------------------------

	if m.Connection.Host == "" {
		return fmt.Errorf("connection: host is required")
	}
	if m.Connection.Port != 0 && (m.Connection.Port < 1 || m.Connection.Port > 65535) {
		return fmt.Errorf("connection: port %d out of range", m.Connection.Port)
	}
	if m.Connection.UnitID > modbus.MaxUnitID {
		return fmt.Errorf("connection: unit_id %d exceeds %d", m.Connection.UnitID, modbus.MaxUnitID)
	}
	if m.Connection.TimeoutMs <= 0 {
		return fmt.Errorf("connection: timeout_ms must be > 0")
	}

	// ------------------------------------------------------------
	// POLL
	// ------------------------------------------------------------

	if m.Poll.IntervalMs <= 0 {
		return fmt.Errorf("poll: interval_ms must be > 0")
	}
	if m.Poll.Retries < 0 {
		return fmt.Errorf("poll: retries must be >= 0")
	}

	// ------------------------------------------------------------
	// GROUPS
	// ------------------------------------------------------------

	if len(m.Groups) == 0 {
		return fmt.Errorf("groups: at least one group is required")
	}

	for i, g := range m.Groups {
		kind, err := modbus.ParseKind(g.Kind)
		if err != nil {
			return fmt.Errorf("groups[%d]: %v", i, err)
		}
		if err := modbus.CheckRead(kind, g.Address, g.Count); err != nil {
			return fmt.Errorf("groups[%d] %q: %v", i, g.Name, err)
		}
	}

	return nil
}
