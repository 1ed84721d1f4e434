// Package monitor polls a configured set of register groups from one
// Modbus TCP device on a fixed cadence and delivers each cycle's readings
// to a caller-supplied handler.
package monitor

import (
	"context"
	"time"

	"github.com/tamzrod/modbus-monitor/internal/modbus"
)

// Client abstracts the Modbus read operations the cycle executor needs.
// The executor depends on geometry only.
type Client interface {
	ReadCoils(ctx context.Context, address, quantity uint16) ([]bool, error)          // FC 1
	ReadDiscreteInputs(ctx context.Context, address, quantity uint16) ([]bool, error) // FC 2
	ReadHoldingRegisters(ctx context.Context, address, quantity uint16) ([]uint16, error) // FC 3
	ReadInputRegisters(ctx context.Context, address, quantity uint16) ([]uint16, error)   // FC 4
}

// Conn adds the connection lifecycle the monitor loop owns. The loop is
// the only component that connects or disconnects.
type Conn interface {
	Client
	Connect(ctx context.Context) error
	Close() error
}

// Group is one contiguous range of a single kind, polled as a unit.
type Group struct {
	Name    string
	Kind    modbus.Kind
	Address uint16
	Count   uint16
}

// Reading is the decoded result for one group in one cycle.
// Exactly one of Registers or Bits is set, depending on the kind.
type Reading struct {
	Name string
	Kind modbus.Kind
	At   time.Time

	Registers []uint16 // holding, input
	Bits      []bool   // coils, discrete inputs
}

// Failure records one group whose every attempt failed this cycle.
type Failure struct {
	Name     string
	Attempts int
	Err      error
}

// CycleResult is one full pass over all registered groups. Readings keep
// registration order; groups that failed every attempt appear in Failures
// instead.
type CycleResult struct {
	At       time.Time
	Readings []Reading
	Failures []Failure
}

// Handler consumes one CycleResult per cycle. It runs to completion before
// the next cycle is scheduled; a non-nil error stops the monitor.
type Handler func(CycleResult) error
