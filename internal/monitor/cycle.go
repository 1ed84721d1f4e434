package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tamzrod/modbus-monitor/internal/logger"
	"github.com/tamzrod/modbus-monitor/internal/modbus"
)

// executor runs one poll cycle over the registered groups. It never
// touches the connection lifecycle; that belongs to the monitor loop.
type executor struct {
	client  Client
	retries int
	log     logger.Logger
}

// runCycle polls every group in order. One bad group never aborts the
// cycle: its reading is omitted and the failure recorded. A non-nil error
// is returned only when ctx is cancelled between group polls, in which
// case the partial result is not meaningful.
func (e *executor) runCycle(ctx context.Context, groups []Group) (CycleResult, error) {
	res := CycleResult{At: time.Now()}

	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		reading, attempts, err := e.pollOne(ctx, g)
		if err != nil {
			e.log.Warn(fmt.Sprintf(
				"group %s failed after %d attempts: %s", g.Name, attempts, err))
			res.Failures = append(res.Failures, Failure{Name: g.Name, Attempts: attempts, Err: err})
			continue
		}
		res.Readings = append(res.Readings, reading)
	}
	return res, nil
}

// pollOne reads one group with bounded retry: 1 + retries attempts, no
// added backoff beyond the per-exchange timeout. Validation errors are
// never retried.
func (e *executor) pollOne(ctx context.Context, g Group) (Reading, int, error) {
	var lastErr error
	attempts := 0

	for attempts <= e.retries {
		attempts++

		reading, err := e.readGroup(ctx, g)
		if err == nil {
			return reading, attempts, nil
		}
		lastErr = err

		if errors.Is(err, modbus.ErrValidation) || ctx.Err() != nil {
			break
		}
	}
	return Reading{}, attempts, lastErr
}

func (e *executor) readGroup(ctx context.Context, g Group) (Reading, error) {
	r := Reading{Name: g.Name, Kind: g.Kind, At: time.Now()}

	switch g.Kind {
	case modbus.Coil:
		bits, err := e.client.ReadCoils(ctx, g.Address, g.Count)
		if err != nil {
			return Reading{}, err
		}
		r.Bits = bits
	case modbus.DiscreteInput:
		bits, err := e.client.ReadDiscreteInputs(ctx, g.Address, g.Count)
		if err != nil {
			return Reading{}, err
		}
		r.Bits = bits
	case modbus.Holding:
		regs, err := e.client.ReadHoldingRegisters(ctx, g.Address, g.Count)
		if err != nil {
			return Reading{}, err
		}
		r.Registers = regs
	case modbus.Input:
		regs, err := e.client.ReadInputRegisters(ctx, g.Address, g.Count)
		if err != nil {
			return Reading{}, err
		}
		r.Registers = regs
	default:
		return Reading{}, fmt.Errorf("%w: unsupported kind %s", modbus.ErrValidation, g.Kind)
	}
	return r, nil
}

// hasDisconnect reports whether any failure means the connection is dead.
func hasDisconnect(failures []Failure) bool {
	for _, f := range failures {
		if modbus.IsDisconnect(f.Err) {
			return true
		}
	}
	return false
}
