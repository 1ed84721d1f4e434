// Package modbus implements the client side of Modbus TCP for the four
// read functions: framing, a single-connection transport, and a typed
// client on top of both.
package modbus

import "fmt"

// Function codes for the supported read operations.
const (
	FuncCodeReadCoils            uint8 = 0x01
	FuncCodeReadDiscreteInputs   uint8 = 0x02
	FuncCodeReadHoldingRegisters uint8 = 0x03
	FuncCodeReadInputRegisters   uint8 = 0x04
)

// Protocol maximums per read request.
const (
	MaxRegisterQuantity uint16 = 125  // FC 3, 4
	MaxBitQuantity      uint16 = 2000 // FC 1, 2
)

// MaxUnitID is the largest valid Modbus unit (slave) identifier.
const MaxUnitID uint8 = 247

// Kind is a closed set of readable Modbus data kinds.
// The zero value is invalid so an unset kind never reaches the wire.
type Kind uint8

const (
	Holding Kind = iota + 1
	Input
	Coil
	DiscreteInput
)

// ParseKind maps a config-file tag to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "holding":
		return Holding, nil
	case "input":
		return Input, nil
	case "coils":
		return Coil, nil
	case "discrete_inputs":
		return DiscreteInput, nil
	default:
		return 0, fmt.Errorf("%w: unknown register kind %q", ErrValidation, s)
	}
}

func (k Kind) String() string {
	switch k {
	case Holding:
		return "holding"
	case Input:
		return "input"
	case Coil:
		return "coils"
	case DiscreteInput:
		return "discrete_inputs"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// FuncCode returns the read function code for the kind.
func (k Kind) FuncCode() uint8 {
	switch k {
	case Holding:
		return FuncCodeReadHoldingRegisters
	case Input:
		return FuncCodeReadInputRegisters
	case Coil:
		return FuncCodeReadCoils
	case DiscreteInput:
		return FuncCodeReadDiscreteInputs
	default:
		return 0
	}
}

// Bits reports whether the kind addresses single-bit points.
func (k Kind) Bits() bool {
	return k == Coil || k == DiscreteInput
}

// MaxQuantity returns the largest quantity one request may carry for the kind.
func (k Kind) MaxQuantity() uint16 {
	if k.Bits() {
		return MaxBitQuantity
	}
	return MaxRegisterQuantity
}

// Valid reports whether k is one of the four recognized kinds.
func (k Kind) Valid() bool {
	return k >= Holding && k <= DiscreteInput
}

// CheckRead validates read geometry for the kind: quantity within the
// protocol maximum and the addressed range inside the 16-bit address space.
func CheckRead(kind Kind, address, quantity uint16) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: invalid register kind %d", ErrValidation, uint8(kind))
	}
	if quantity == 0 {
		return fmt.Errorf("%w: quantity must be > 0", ErrValidation)
	}
	if max := kind.MaxQuantity(); quantity > max {
		return fmt.Errorf("%w: quantity %d exceeds %d for %s", ErrValidation, quantity, max, kind)
	}
	if uint32(address)+uint32(quantity) > 0x10000 {
		return fmt.Errorf("%w: address %d + quantity %d overflows address space", ErrValidation, address, quantity)
	}
	return nil
}
