package monitor

import (
	"net"
	"strconv"
	"time"

	cfg "github.com/tamzrod/modbus-monitor/internal/config"
	"github.com/tamzrod/modbus-monitor/internal/logger"
	"github.com/tamzrod/modbus-monitor/internal/modbus"
)

// Build constructs a Monitor from file configuration and wires the real
// Modbus TCP client. The monitor owns the client lifecycle from here on.
func Build(mc cfg.MonitorConfig, log logger.Logger) (*Monitor, error) {
	timeout := time.Duration(mc.Connection.TimeoutMs) * time.Millisecond

	client, err := modbus.NewClient(modbus.ClientConfig{
		Address: net.JoinHostPort(mc.Connection.Host, strconv.Itoa(mc.Connection.Port)),
		UnitID:  mc.Connection.UnitID,
		Timeout: timeout,
	})
	if err != nil {
		return nil, err
	}

	m, err := New(Config{
		Host:     mc.Connection.Host,
		Port:     mc.Connection.Port,
		UnitID:   mc.Connection.UnitID,
		Interval: time.Duration(mc.Poll.IntervalMs) * time.Millisecond,
		Timeout:  timeout,
		Retries:  mc.Poll.Retries,
	}, client, log)
	if err != nil {
		return nil, err
	}

	for _, g := range mc.Groups {
		kind, err := modbus.ParseKind(g.Kind)
		if err != nil {
			return nil, err
		}
		if err := m.AddGroup(Group{
			Name:    g.Name,
			Kind:    kind,
			Address: g.Address,
			Count:   g.Count,
		}); err != nil {
			return nil, err
		}
	}

	return m, nil
}
