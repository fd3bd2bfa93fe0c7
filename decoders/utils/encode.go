package utils

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// PaddingTo4 returns how many zero bytes align size on a 4-byte boundary.
// An already aligned size needs none.
func PaddingTo4(size int) int {
	if rem := size % 4; rem != 0 {
		return 4 - rem
	}
	return 0
}

func WriteU8(buf *bytes.Buffer, v uint8) error {
	return buf.WriteByte(v)
}

func WriteU16(buf *bytes.Buffer, v uint16) error {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	_, err := buf.Write(b[:])
	return err
}

func WriteU32(buf *bytes.Buffer, v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	_, err := buf.Write(b[:])
	return err
}

func WriteU64(buf *bytes.Buffer, v uint64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	_, err := buf.Write(b[:])
	return err
}

// WritePadding writes the zero bytes needed to align size on 4 bytes.
func WritePadding(buf *bytes.Buffer, size int) error {
	var pad [3]byte
	_, err := buf.Write(pad[:PaddingTo4(size)])
	return err
}

// BinaryEncoder writes every value in order, big-endian. It accepts the same
// fixed-width kinds BinaryDecoder reads, passed by value.
func BinaryEncoder(buf *bytes.Buffer, values ...interface{}) error {
	for _, value := range values {
		var err error
		switch v := value.(type) {
		case uint8:
			err = WriteU8(buf, v)
		case uint16:
			err = WriteU16(buf, v)
		case uint32:
			err = WriteU32(buf, v)
		case uint64:
			err = WriteU64(buf, v)
		case []byte:
			_, err = buf.Write(v)
		default:
			err = fmt.Errorf("%w %T", ErrUnsupportedDestination, value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
