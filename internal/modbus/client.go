package modbus

import (
	"context"
	"fmt"
	"time"
)

// ClientConfig is the connection config for one device.
type ClientConfig struct {
	Address string // host:port
	UnitID  uint8
	Timeout time.Duration // per-exchange deadline, also the dial timeout
}

// Client reads registers and bits from a single device over one Transport.
// It does not manage connection lifecycle beyond exposing Connect/Close;
// the caller decides when to (re)connect.
type Client struct {
	tr      *Transport
	unitID  uint8
	timeout time.Duration
}

// NewClient creates a disconnected client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("%w: address required", ErrValidation)
	}
	if cfg.UnitID > MaxUnitID {
		return nil, fmt.Errorf("%w: unit id %d exceeds %d", ErrValidation, cfg.UnitID, MaxUnitID)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("%w: timeout must be > 0", ErrValidation)
	}
	return &Client{
		tr:      NewTransport(cfg.Address, cfg.Timeout),
		unitID:  cfg.UnitID,
		timeout: cfg.Timeout,
	}, nil
}

// Connect establishes (or re-establishes) the TCP session.
func (c *Client) Connect(ctx context.Context) error {
	return c.tr.Connect(ctx)
}

// Close tears the session down. Idempotent.
func (c *Client) Close() error {
	return c.tr.Disconnect()
}

// Connected reports whether the underlying session is established.
func (c *Client) Connected() bool {
	return c.tr.Connected()
}

func (c *Client) ReadCoils(ctx context.Context, address, quantity uint16) ([]bool, error) {
	pdu, err := c.exchange(ctx, Coil, address, quantity)
	if err != nil {
		return nil, err
	}
	return DecodeBits(Coil, quantity, pdu)
}

func (c *Client) ReadDiscreteInputs(ctx context.Context, address, quantity uint16) ([]bool, error) {
	pdu, err := c.exchange(ctx, DiscreteInput, address, quantity)
	if err != nil {
		return nil, err
	}
	return DecodeBits(DiscreteInput, quantity, pdu)
}

func (c *Client) ReadHoldingRegisters(ctx context.Context, address, quantity uint16) ([]uint16, error) {
	pdu, err := c.exchange(ctx, Holding, address, quantity)
	if err != nil {
		return nil, err
	}
	return DecodeRegisters(Holding, quantity, pdu)
}

func (c *Client) ReadInputRegisters(ctx context.Context, address, quantity uint16) ([]uint16, error) {
	pdu, err := c.exchange(ctx, Input, address, quantity)
	if err != nil {
		return nil, err
	}
	return DecodeRegisters(Input, quantity, pdu)
}

func (c *Client) exchange(ctx context.Context, kind Kind, address, quantity uint16) ([]byte, error) {
	req, err := EncodeReadRequest(kind, address, quantity)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	return c.tr.Exchange(req, c.unitID, deadline)
}
