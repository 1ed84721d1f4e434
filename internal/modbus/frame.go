package modbus

import (
	"encoding/binary"
	"fmt"
)

// exceptionBit is set on the echoed function code of an exception response.
const exceptionBit uint8 = 0x80

// EncodeReadRequest builds the request PDU for one read:
//
//	FC(1) Address(2) Quantity(2)
//
// Geometry is validated against the kind's protocol limits.
func EncodeReadRequest(kind Kind, address, quantity uint16) ([]byte, error) {
	if err := CheckRead(kind, address, quantity); err != nil {
		return nil, err
	}

	pdu := make([]byte, 5)
	pdu[0] = kind.FuncCode()
	binary.BigEndian.PutUint16(pdu[1:3], address)
	binary.BigEndian.PutUint16(pdu[3:5], quantity)
	return pdu, nil
}

// DecodeRegisters decodes a read-registers response PDU into one uint16 per
// addressed register, big-endian. kind must be a register kind.
func DecodeRegisters(kind Kind, quantity uint16, pdu []byte) ([]uint16, error) {
	if kind.Bits() {
		return nil, fmt.Errorf("%w: %s is not a register kind", ErrValidation, kind)
	}
	data, err := readPayload(kind.FuncCode(), pdu)
	if err != nil {
		return nil, err
	}
	if len(data) != int(quantity)*2 {
		return nil, &FrameError{Reason: fmt.Sprintf(
			"register payload is %d bytes, want %d for quantity %d", len(data), quantity*2, quantity)}
	}
	return unpackRegisters(data), nil
}

// DecodeBits decodes a read-bits response PDU into one bool per addressed
// point. Bit 0 of the first byte is the first addressed point. kind must be
// a bit kind.
func DecodeBits(kind Kind, quantity uint16, pdu []byte) ([]bool, error) {
	if !kind.Bits() {
		return nil, fmt.Errorf("%w: %s is not a bit kind", ErrValidation, kind)
	}
	data, err := readPayload(kind.FuncCode(), pdu)
	if err != nil {
		return nil, err
	}
	want := (int(quantity) + 7) / 8
	if len(data) != want {
		return nil, &FrameError{Reason: fmt.Sprintf(
			"bit payload is %d bytes, want %d for quantity %d", len(data), want, quantity)}
	}
	return unpackBits(data, int(quantity)), nil
}

// readPayload strips the function-code echo and byte-count prefix from a
// read response PDU, surfacing exception responses as ExceptionError.
func readPayload(fc uint8, pdu []byte) ([]byte, error) {
	if len(pdu) < 2 {
		return nil, &FrameError{Reason: "response PDU too short"}
	}

	if pdu[0] == fc|exceptionBit {
		return nil, &ExceptionError{Function: fc, Code: pdu[1]}
	}
	if pdu[0] != fc {
		return nil, &FrameError{Reason: fmt.Sprintf("function code echo %d, want %d", pdu[0], fc)}
	}

	byteCount := int(pdu[1])
	if len(pdu)-2 != byteCount {
		return nil, &FrameError{Reason: fmt.Sprintf(
			"payload is %d bytes, byte count says %d", len(pdu)-2, byteCount)}
	}
	return pdu[2:], nil
}

func unpackBits(data []byte, count int) []bool {
	out := make([]bool, count)
	for i := 0; i < count; i++ {
		out[i] = data[i/8]&(1<<uint(i%8)) != 0
	}
	return out
}

func unpackRegisters(data []byte) []uint16 {
	out := make([]uint16, len(data)/2)
	for i := range out {
		out[i] = binary.BigEndian.Uint16(data[2*i:])
	}
	return out
}
