// Package utils holds the big-endian primitives shared by the NetFlow decoders.
package utils

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrTruncatedInput is returned when fewer bytes are available than a
	// fixed-width read needs.
	ErrTruncatedInput = errors.New("truncated input")

	ErrUnsupportedDestination = errors.New("unsupported destination")
)

// TruncatedError carries how many bytes a read wanted and how many were left.
type TruncatedError struct {
	Want int
	Have int
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("%s: want %d bytes, have %d", ErrTruncatedInput.Error(), e.Want, e.Have)
}

func (e *TruncatedError) Unwrap() error {
	return ErrTruncatedInput
}

// BytesBuffer is the subset of *bytes.Buffer used by the decoders.
type BytesBuffer interface {
	io.Reader
	Next(int) []byte
}

type lenBuffer interface {
	Len() int
}

// BinaryDecoder reads every destination in order from the payload.
func BinaryDecoder(payload BytesBuffer, dests ...interface{}) error {
	for _, dest := range dests {
		if err := BinaryRead(payload, binary.BigEndian, dest); err != nil {
			return err
		}
	}
	return nil
}

func dataSize(data interface{}) int {
	switch data := data.(type) {
	case *uint8, *int8, *bool:
		return 1
	case *uint16, *int16:
		return 2
	case *uint32, *int32:
		return 4
	case *uint64, *int64:
		return 8
	case []byte:
		return len(data)
	case []uint16:
		return 2 * len(data)
	case []uint32:
		return 4 * len(data)
	}
	return -1
}

// BinaryRead is a reduced binary.Read without reflection, limited to the
// fixed-width integers and slices NetFlow uses.
func BinaryRead(payload BytesBuffer, order binary.ByteOrder, data any) error {
	n := dataSize(data)
	if n < 0 {
		return fmt.Errorf("%w %T", ErrUnsupportedDestination, data)
	}
	if lb, ok := payload.(lenBuffer); ok && lb.Len() < n {
		return &TruncatedError{Want: n, Have: lb.Len()}
	}

	bs := payload.Next(n)
	if len(bs) < n {
		return &TruncatedError{Want: n, Have: len(bs)}
	}

	switch data := data.(type) {
	case *bool:
		*data = bs[0] != 0
	case *int8:
		*data = int8(bs[0])
	case *uint8:
		*data = bs[0]
	case *int16:
		*data = int16(order.Uint16(bs))
	case *uint16:
		*data = order.Uint16(bs)
	case *int32:
		*data = int32(order.Uint32(bs))
	case *uint32:
		*data = order.Uint32(bs)
	case *int64:
		*data = int64(order.Uint64(bs))
	case *uint64:
		*data = order.Uint64(bs)
	case []byte:
		copy(data, bs)
	case []uint16:
		for i := range data {
			data[i] = order.Uint16(bs[2*i:])
		}
	case []uint32:
		for i := range data {
			data[i] = order.Uint32(bs[4*i:])
		}
	}
	return nil
}

// DecodeUNumber reads an unsigned big-endian integer of 1 to 8 bytes.
func DecodeUNumber(b []byte) (uint64, error) {
	if len(b) == 0 {
		return 0, &TruncatedError{Want: 1, Have: 0}
	}
	if len(b) > 8 {
		return 0, fmt.Errorf("non-regular number of bytes for a number: %d", len(b))
	}
	var o uint64
	for _, v := range b {
		o = o<<8 | uint64(v)
	}
	return o, nil
}
