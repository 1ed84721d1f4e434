package modbus

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// mbapHeaderLen is the fixed MBAP header size: TID(2) PID(2) LEN(2) UID(1).
const mbapHeaderLen = 7

// maxPDULen bounds a response PDU: FC(1) + byte count(1) + 250 data bytes.
const maxPDULen = 253

// Transport owns one TCP connection to a Modbus device and performs one
// framed request/response exchange at a time. The transaction identifier
// is incremented per exchange and matched on the response so a stale reply
// is never handed to the caller.
type Transport struct {
	addr        string
	dialTimeout time.Duration

	mu   sync.Mutex
	conn net.Conn
	tid  uint16
}

// NewTransport creates a disconnected transport for addr (host:port).
func NewTransport(addr string, dialTimeout time.Duration) *Transport {
	t := &Transport{addr: addr, dialTimeout: dialTimeout}

	// Randomize the starting TID (best effort).
	var b [2]byte
	if _, err := rand.Read(b[:]); err == nil {
		t.tid = binary.BigEndian.Uint16(b[:])
	}
	return t
}

// Connect establishes the TCP session. An existing connection is closed
// first, so Connect doubles as the reconnect primitive.
func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}

	d := net.Dialer{Timeout: t.dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		return &ConnectError{Addr: t.addr, Err: err}
	}
	t.conn = conn
	return nil
}

// Disconnect closes the connection. Idempotent, always succeeds.
func (t *Transport) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
	return nil
}

// Connected reports whether a TCP session is established.
func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}

// Exchange writes one request PDU and reads exactly one framed response
// before deadline, returning the response PDU. Exchanges are serialized:
// Modbus TCP is not safely pipelined on one socket without a multiplexing
// layer, so at most one request is in flight.
func (t *Transport) Exchange(pdu []byte, unitID uint8, deadline time.Time) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return nil, ErrNotConnected
	}

	t.tid++
	tid := t.tid

	adu := make([]byte, mbapHeaderLen+len(pdu))
	binary.BigEndian.PutUint16(adu[0:2], tid)
	binary.BigEndian.PutUint16(adu[2:4], 0) // protocol id
	binary.BigEndian.PutUint16(adu[4:6], uint16(1+len(pdu)))
	adu[6] = unitID
	copy(adu[7:], pdu)

	if err := t.conn.SetDeadline(deadline); err != nil {
		return nil, t.failLocked(err)
	}
	if _, err := t.conn.Write(adu); err != nil {
		return nil, t.failLocked(err)
	}

	var header [mbapHeaderLen]byte
	if _, err := io.ReadFull(t.conn, header[:]); err != nil {
		return nil, t.failLocked(err)
	}

	respTID := binary.BigEndian.Uint16(header[0:2])
	respPID := binary.BigEndian.Uint16(header[2:4])
	length := binary.BigEndian.Uint16(header[4:6])
	respUID := header[6]

	// length covers unit id + PDU
	if length < 2 || length-1 > maxPDULen {
		return nil, t.desyncLocked(fmt.Sprintf("length field %d out of range", length))
	}

	resp := make([]byte, length-1)
	if _, err := io.ReadFull(t.conn, resp); err != nil {
		return nil, t.failLocked(err)
	}

	// Header mismatches mean the stream no longer lines up with our
	// transactions; the connection is dropped rather than resynchronized.
	if respPID != 0 {
		return nil, t.desyncLocked(fmt.Sprintf("protocol id %d, want 0", respPID))
	}
	if respTID != tid {
		return nil, t.desyncLocked(fmt.Sprintf("transaction id %d, want %d", respTID, tid))
	}
	if respUID != unitID {
		return nil, t.desyncLocked(fmt.Sprintf("unit id %d, want %d", respUID, unitID))
	}

	return resp, nil
}

// failLocked classifies an I/O error and drops the connection when the
// peer is gone. Deadline overruns keep the connection: the reply may still
// arrive and will then be rejected by TID matching.
func (t *Transport) failLocked(err error) error {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
	return fmt.Errorf("%w: %v", ErrDisconnected, err)
}

// desyncLocked drops the connection and reports a malformed frame.
func (t *Transport) desyncLocked(reason string) error {
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
	return &FrameError{Reason: reason}
}
