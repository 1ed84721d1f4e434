package modbus

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTimeout = 200 * time.Millisecond

// fakeDevice is an in-process Modbus TCP endpoint. respond builds a full
// response ADU from the parsed request; returning nil keeps the device
// silent so the exchange runs into its deadline.
type fakeDevice struct {
	t       *testing.T
	ln      net.Listener
	respond func(tid uint16, unitID uint8, pdu []byte) []byte
	closeOn bool // close the connection right after reading a request
}

func newFakeDevice(t *testing.T) *fakeDevice {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	d := &fakeDevice{t: t, ln: ln}
	go d.serve()
	t.Cleanup(func() { ln.Close() })
	return d
}

func (d *fakeDevice) addr() string { return d.ln.Addr().String() }

func (d *fakeDevice) serve() {
	for {
		conn, err := d.ln.Accept()
		if err != nil {
			return
		}
		go d.handle(conn)
	}
}

func (d *fakeDevice) handle(conn net.Conn) {
	defer conn.Close()
	for {
		var header [7]byte
		if _, err := io.ReadFull(conn, header[:]); err != nil {
			return
		}
		length := binary.BigEndian.Uint16(header[4:6])
		body := make([]byte, length-1)
		if _, err := io.ReadFull(conn, body); err != nil {
			return
		}

		if d.closeOn {
			return
		}
		if d.respond == nil {
			continue // silent device
		}

		tid := binary.BigEndian.Uint16(header[0:2])
		if resp := d.respond(tid, header[6], body); resp != nil {
			if _, err := conn.Write(resp); err != nil {
				return
			}
		}
	}
}

// respondRegisters answers any read with the given register values.
func respondRegisters(vals []uint16) func(uint16, uint8, []byte) []byte {
	return func(tid uint16, unitID uint8, pdu []byte) []byte {
		return buildResponseADU(tid, unitID, registerResponse(pdu[0], vals))
	}
}

func buildResponseADU(tid uint16, unitID uint8, pdu []byte) []byte {
	adu := make([]byte, 7+len(pdu))
	binary.BigEndian.PutUint16(adu[0:2], tid)
	binary.BigEndian.PutUint16(adu[4:6], uint16(1+len(pdu)))
	adu[6] = unitID
	copy(adu[7:], pdu)
	return adu
}

func connectTransport(t *testing.T, d *fakeDevice) *Transport {
	t.Helper()
	tr := NewTransport(d.addr(), testTimeout)
	require.NoError(t, tr.Connect(context.Background()))
	t.Cleanup(func() { tr.Disconnect() })
	return tr
}

func TestTransportExchange(t *testing.T) {
	d := newFakeDevice(t)
	d.respond = respondRegisters([]uint16{100, 101, 102, 103, 104})

	tr := connectTransport(t, d)

	req, err := EncodeReadRequest(Holding, 0, 5)
	require.NoError(t, err)

	resp, err := tr.Exchange(req, 1, time.Now().Add(testTimeout))
	require.NoError(t, err)

	got, err := DecodeRegisters(Holding, 5, resp)
	require.NoError(t, err)
	assert.Equal(t, []uint16{100, 101, 102, 103, 104}, got)
}

func TestTransportNotConnected(t *testing.T) {
	tr := NewTransport("127.0.0.1:1502", testTimeout)

	_, err := tr.Exchange([]byte{0x03, 0, 0, 0, 1}, 1, time.Now().Add(testTimeout))
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestTransportConnectRefused(t *testing.T) {
	// A listener that is closed immediately leaves a port nothing accepts on.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	tr := NewTransport(addr, testTimeout)
	err = tr.Connect(context.Background())
	var ce *ConnectError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, addr, ce.Addr)
}

func TestTransportTimeout(t *testing.T) {
	d := newFakeDevice(t) // no respond: silent device

	tr := connectTransport(t, d)

	_, err := tr.Exchange([]byte{0x03, 0, 0, 0, 1}, 1, time.Now().Add(50*time.Millisecond))
	assert.ErrorIs(t, err, ErrTimeout)

	// A timeout does not tear the session down; a late reply is rejected
	// by transaction id matching instead.
	assert.True(t, tr.Connected())
}

func TestTransportPeerClose(t *testing.T) {
	d := newFakeDevice(t)
	d.closeOn = true

	tr := connectTransport(t, d)

	_, err := tr.Exchange([]byte{0x03, 0, 0, 0, 1}, 1, time.Now().Add(testTimeout))
	assert.ErrorIs(t, err, ErrDisconnected)
	assert.False(t, tr.Connected())
}

func TestTransportTransactionIDMismatch(t *testing.T) {
	d := newFakeDevice(t)
	d.respond = func(tid uint16, unitID uint8, pdu []byte) []byte {
		return buildResponseADU(tid+7, unitID, registerResponse(pdu[0], []uint16{1}))
	}

	tr := connectTransport(t, d)

	_, err := tr.Exchange([]byte{0x03, 0, 0, 0, 1}, 1, time.Now().Add(testTimeout))
	var fe *FrameError
	require.ErrorAs(t, err, &fe)

	// Desync drops the connection.
	assert.False(t, tr.Connected())
	_, err = tr.Exchange([]byte{0x03, 0, 0, 0, 1}, 1, time.Now().Add(testTimeout))
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestTransportUnitIDMismatch(t *testing.T) {
	d := newFakeDevice(t)
	d.respond = func(tid uint16, unitID uint8, pdu []byte) []byte {
		return buildResponseADU(tid, unitID+1, registerResponse(pdu[0], []uint16{1}))
	}

	tr := connectTransport(t, d)

	_, err := tr.Exchange([]byte{0x03, 0, 0, 0, 1}, 1, time.Now().Add(testTimeout))
	var fe *FrameError
	assert.ErrorAs(t, err, &fe)
}

func TestTransportDisconnectIdempotent(t *testing.T) {
	d := newFakeDevice(t)
	tr := connectTransport(t, d)

	assert.NoError(t, tr.Disconnect())
	assert.NoError(t, tr.Disconnect())
	assert.False(t, tr.Connected())
}

func TestTransportReconnect(t *testing.T) {
	d := newFakeDevice(t)
	d.respond = respondRegisters([]uint16{9})

	tr := connectTransport(t, d)
	require.NoError(t, tr.Disconnect())

	// Connect doubles as the reconnect primitive.
	require.NoError(t, tr.Connect(context.Background()))
	_, err := tr.Exchange([]byte{0x03, 0, 0, 0, 1}, 1, time.Now().Add(testTimeout))
	assert.NoError(t, err)
}
