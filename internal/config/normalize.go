package config

import "fmt"

// defaultPort is the standard Modbus TCP port.
const defaultPort = 502

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	m := &cfg.Monitor

	if m.Connection.Port == 0 {
		m.Connection.Port = defaultPort
	}

	if m.LogLevel == "" {
		m.LogLevel = "info"
	}

	// Groups without a name report under "<kind>_<address>".
	for i := range m.Groups {
		g := &m.Groups[i]
		if g.Name == "" {
			g.Name = fmt.Sprintf("%s_%d", g.Kind, g.Address)
		}
	}
}
