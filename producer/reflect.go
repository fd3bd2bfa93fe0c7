package producer

import (
	"fmt"
	"net/netip"
	"reflect"

	"github.com/netsampler/nfcollector/decoders/netflow"
	"github.com/netsampler/nfcollector/decoders/utils"
)

type EndianType string

var (
	BigEndian    EndianType = "big"
	LittleEndian EndianType = "little"
)

func IsUInt(k reflect.Kind) bool {
	return k == reflect.Uint8 || k == reflect.Uint16 || k == reflect.Uint32 || k == reflect.Uint64
}

type MapConfigBase struct {
	Destination string
	Endianness  EndianType
}

func decodeUNumber(v []byte, endian EndianType) (uint64, error) {
	if endian == LittleEndian {
		rev := make([]byte, len(v))
		for i := range v {
			rev[len(v)-1-i] = v[i]
		}
		v = rev
	}
	return utils.DecodeUNumber(v)
}

func MapCustomNetFlow(flowMessage *FlowMessage, df netflow.DataField, mapper *NetFlowMapper) error {
	mapped, ok := mapper.Map(df.Type)
	if !ok {
		return nil
	}
	return MapCustom(flowMessage, df.Raw, mapped)
}

// MapCustom writes v into the FlowMessage field named by cfg.Destination.
// Unsigned slices get v appended.
func MapCustom(flowMessage *FlowMessage, v []byte, cfg MapConfigBase) error {
	vfm := reflect.Indirect(reflect.ValueOf(flowMessage))

	fieldValue := vfm.FieldByName(cfg.Destination)
	if !fieldValue.IsValid() {
		return fmt.Errorf("unknown destination %q", cfg.Destination)
	}
	typeDest := fieldValue.Type()

	switch {
	case typeDest == addrType:
		addr, ok := netip.AddrFromSlice(v)
		if !ok {
			return fmt.Errorf("%s: %d bytes is not an address", cfg.Destination, len(v))
		}
		fieldValue.Set(reflect.ValueOf(addr))
	case typeDest.Kind() == reflect.Slice && IsUInt(typeDest.Elem().Kind()):
		n, err := decodeUNumber(v, cfg.Endianness)
		if err != nil {
			return fmt.Errorf("%s: %w", cfg.Destination, err)
		}
		item := reflect.New(typeDest.Elem()).Elem()
		item.SetUint(n)
		fieldValue.Set(reflect.Append(fieldValue, item))
	case IsUInt(typeDest.Kind()):
		n, err := decodeUNumber(v, cfg.Endianness)
		if err != nil {
			return fmt.Errorf("%s: %w", cfg.Destination, err)
		}
		fieldValue.SetUint(n)
	default:
		return fmt.Errorf("destination %q has unsupported type %s", cfg.Destination, typeDest)
	}
	return nil
}
