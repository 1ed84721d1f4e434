package monitor

import (
	"fmt"

	"github.com/tamzrod/modbus-monitor/internal/modbus"
)

// withDefaults returns the group with an empty name replaced by
// "<kind>_<address>".
func (g Group) withDefaults() Group {
	if g.Name == "" {
		g.Name = fmt.Sprintf("%s_%d", g.Kind, g.Address)
	}
	return g
}

// validate checks the group against the kind's protocol limits.
func (g Group) validate() error {
	return modbus.CheckRead(g.Kind, g.Address, g.Count)
}

// AddGroup registers a group for polling. Groups are polled and reported
// in registration order. Registration fails once the monitor has started;
// a failed registration never mutates the registry.
func (m *Monitor) AddGroup(g Group) error {
	if err := g.validate(); err != nil {
		return err
	}
	g = g.withDefaults()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.st != stateIdle {
		return fmt.Errorf("%w: cannot add group %q while monitor is running", modbus.ErrValidation, g.Name)
	}
	m.groups = append(m.groups, g)
	return nil
}

// Groups returns the registered groups in registration order.
func (m *Monitor) Groups() []Group {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Group, len(m.groups))
	copy(out, m.groups)
	return out
}
