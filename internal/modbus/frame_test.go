package modbus

import (
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeReadRequest(t *testing.T) {
	cases := []struct {
		desc     string
		kind     Kind
		address  uint16
		quantity uint16
		want     []byte
		err      error
	}{
		{
			desc:     "holding registers at 0 count 5",
			kind:     Holding,
			address:  0,
			quantity: 5,
			want:     []byte{0x03, 0x00, 0x00, 0x00, 0x05},
		},
		{
			desc:     "input registers at 256 count 1",
			kind:     Input,
			address:  256,
			quantity: 1,
			want:     []byte{0x04, 0x01, 0x00, 0x00, 0x01},
		},
		{
			desc:     "coils at 16 count 8",
			kind:     Coil,
			address:  16,
			quantity: 8,
			want:     []byte{0x01, 0x00, 0x10, 0x00, 0x08},
		},
		{
			desc:     "discrete inputs at max address",
			kind:     DiscreteInput,
			address:  65535,
			quantity: 1,
			want:     []byte{0x02, 0xFF, 0xFF, 0x00, 0x01},
		},
		{
			desc:     "zero quantity rejected",
			kind:     Holding,
			address:  0,
			quantity: 0,
			err:      ErrValidation,
		},
		{
			desc:     "register quantity above 125 rejected",
			kind:     Holding,
			address:  0,
			quantity: 126,
			err:      ErrValidation,
		},
		{
			desc:     "bit quantity above 2000 rejected",
			kind:     Coil,
			address:  0,
			quantity: 2001,
			err:      ErrValidation,
		},
		{
			desc:     "address space overflow rejected",
			kind:     Holding,
			address:  65535,
			quantity: 2,
			err:      ErrValidation,
		},
		{
			desc:     "zero-value kind rejected",
			kind:     0,
			address:  0,
			quantity: 1,
			err:      ErrValidation,
		},
	}

	for _, tc := range cases {
		pdu, err := EncodeReadRequest(tc.kind, tc.address, tc.quantity)
		if tc.err != nil {
			assert.ErrorIs(t, err, tc.err, fmt.Sprintf("%s: expected validation error", tc.desc))
			continue
		}
		require.NoError(t, err, tc.desc)
		assert.Equal(t, tc.want, pdu, tc.desc)
	}
}

func TestDecodeRegisters(t *testing.T) {
	vals := []uint16{100, 101, 102, 103, 104}
	pdu := registerResponse(FuncCodeReadHoldingRegisters, vals)

	got, err := DecodeRegisters(Holding, 5, pdu)
	require.NoError(t, err)
	assert.Equal(t, vals, got)
}

func TestDecodeBits(t *testing.T) {
	// Bit 0 of the first byte is the first addressed point.
	pdu := []byte{FuncCodeReadCoils, 1, 0b00000101}

	got, err := DecodeBits(Coil, 8, pdu)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, true, false, false, false, false, false}, got)
}

func TestDecodeBitsSpanningBytes(t *testing.T) {
	pdu := []byte{FuncCodeReadDiscreteInputs, 2, 0xFF, 0x01}

	got, err := DecodeBits(DiscreteInput, 9, pdu)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, true, true, true, true, true, true, true, true}, got)
}

func TestDecodeException(t *testing.T) {
	pdu := []byte{FuncCodeReadHoldingRegisters | 0x80, ExceptionCodeIllegalDataAddress}

	_, err := DecodeRegisters(Holding, 5, pdu)
	var exc *ExceptionError
	require.ErrorAs(t, err, &exc)
	assert.Equal(t, FuncCodeReadHoldingRegisters, exc.Function)
	assert.Equal(t, ExceptionCodeIllegalDataAddress, exc.Code)
}

func TestDecodeMalformed(t *testing.T) {
	cases := []struct {
		desc string
		kind Kind
		qty  uint16
		pdu  []byte
	}{
		{
			desc: "empty PDU",
			kind: Holding,
			qty:  1,
			pdu:  nil,
		},
		{
			desc: "wrong function code echo",
			kind: Holding,
			qty:  1,
			pdu:  []byte{FuncCodeReadInputRegisters, 2, 0x00, 0x01},
		},
		{
			desc: "byte count disagrees with payload",
			kind: Holding,
			qty:  1,
			pdu:  []byte{FuncCodeReadHoldingRegisters, 4, 0x00, 0x01},
		},
		{
			desc: "payload shorter than quantity",
			kind: Holding,
			qty:  2,
			pdu:  []byte{FuncCodeReadHoldingRegisters, 2, 0x00, 0x01},
		},
	}

	for _, tc := range cases {
		_, err := DecodeRegisters(tc.kind, tc.qty, tc.pdu)
		var fe *FrameError
		assert.ErrorAs(t, err, &fe, tc.desc)
	}
}

func TestDecodeKindMismatch(t *testing.T) {
	_, err := DecodeRegisters(Coil, 1, []byte{FuncCodeReadCoils, 1, 0x01})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = DecodeBits(Holding, 1, []byte{FuncCodeReadHoldingRegisters, 2, 0x00, 0x01})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRoundTrip(t *testing.T) {
	// A synthetic response built from known values decodes back to exactly
	// those values for every kind.
	regs := []uint16{0, 1, 0xFFFF, 512, 7}
	for _, kind := range []Kind{Holding, Input} {
		pdu := registerResponse(kind.FuncCode(), regs)
		got, err := DecodeRegisters(kind, uint16(len(regs)), pdu)
		require.NoError(t, err, kind.String())
		assert.Equal(t, regs, got, kind.String())
	}

	bits := []bool{true, false, false, true, true, false, true, false, true, true}
	for _, kind := range []Kind{Coil, DiscreteInput} {
		pdu := bitResponse(kind.FuncCode(), bits)
		got, err := DecodeBits(kind, uint16(len(bits)), pdu)
		require.NoError(t, err, kind.String())
		assert.Equal(t, bits, got, kind.String())
	}
}

func TestParseKind(t *testing.T) {
	for tag, want := range map[string]Kind{
		"holding":         Holding,
		"input":           Input,
		"coils":           Coil,
		"discrete_inputs": DiscreteInput,
	} {
		got, err := ParseKind(tag)
		require.NoError(t, err, tag)
		assert.Equal(t, want, got, tag)
		assert.Equal(t, tag, got.String(), tag)
	}

	_, err := ParseKind("registers")
	assert.ErrorIs(t, err, ErrValidation)
}

// ---- response builders shared across tests ----

func registerResponse(fc uint8, vals []uint16) []byte {
	pdu := make([]byte, 2+2*len(vals))
	pdu[0] = fc
	pdu[1] = uint8(2 * len(vals))
	for i, v := range vals {
		binary.BigEndian.PutUint16(pdu[2+2*i:], v)
	}
	return pdu
}

func bitResponse(fc uint8, bits []bool) []byte {
	n := (len(bits) + 7) / 8
	pdu := make([]byte, 2+n)
	pdu[0] = fc
	pdu[1] = uint8(n)
	for i, b := range bits {
		if b {
			pdu[2+i/8] |= 1 << uint(i%8)
		}
	}
	return pdu
}
