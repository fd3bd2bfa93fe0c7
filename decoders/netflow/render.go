package netflow

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/netsampler/nfcollector/decoders/utils"
)

// FieldKind tells how the bytes of a field are interpreted and rendered.
type FieldKind uint8

const (
	FieldKindRaw FieldKind = iota
	FieldKindUnsigned
	FieldKindIPv4
	FieldKindIPv6
	FieldKindMAC
	FieldKindProtocol
	FieldKindTCPFlags
	FieldKindMilliseconds
	FieldKindICMP
	FieldKindMPLSLabel
	FieldKindSamplingAlgorithm
	FieldKindEngineType
	FieldKindMPLSTopLabelType
	FieldKindDirection
)

var fieldKindNames = map[FieldKind]string{
	FieldKindRaw:               "raw",
	FieldKindUnsigned:          "unsigned",
	FieldKindIPv4:              "ipv4",
	FieldKindIPv6:              "ipv6",
	FieldKindMAC:               "mac",
	FieldKindProtocol:          "protocol",
	FieldKindTCPFlags:          "tcp-flags",
	FieldKindMilliseconds:      "milliseconds",
	FieldKindICMP:              "icmp",
	FieldKindMPLSLabel:         "mpls-label",
	FieldKindSamplingAlgorithm: "sampling-algorithm",
	FieldKindEngineType:        "engine-type",
	FieldKindMPLSTopLabelType:  "mpls-top-label-type",
	FieldKindDirection:         "direction",
}

func (k FieldKind) String() string {
	if name, ok := fieldKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// MPLSLabel is a 3-byte label stack entry: 20 bits of label, 3 bits of
// experimental use and the bottom of stack bit.
type MPLSLabel struct {
	Label  uint32 `json:"label"`
	Exp    uint8  `json:"exp"`
	Bottom bool   `json:"bottom"`
}

func (l MPLSLabel) String() string {
	return fmt.Sprintf("label:%d exp:%d bottom:%t", l.Label, l.Exp, l.Bottom)
}

// InterpretValue turns the bytes of a field into a typed value: uint64 for
// integers of 1 to 8 bytes, netip.Addr for 4 or 16 byte addresses,
// net.HardwareAddr for 6 byte MAC addresses and MPLSLabel for 3 byte labels.
// Anything else stays a []byte.
func InterpretValue(kind FieldKind, raw []byte) interface{} {
	switch kind {
	case FieldKindRaw:
		return raw
	case FieldKindIPv4, FieldKindIPv6:
		if len(raw) == 4 || len(raw) == 16 {
			addr, _ := netip.AddrFromSlice(raw)
			return addr
		}
	case FieldKindMAC:
		if len(raw) == 6 {
			return net.HardwareAddr(raw)
		}
	case FieldKindMPLSLabel:
		if len(raw) == 3 {
			return MPLSLabel{
				Label:  uint32(raw[0])<<12 | uint32(raw[1])<<4 | uint32(raw[2])>>4,
				Exp:    (raw[2] >> 1) & 0x7,
				Bottom: raw[2]&0x1 == 1,
			}
		}
	}
	if v, err := utils.DecodeUNumber(raw); err == nil {
		return v
	}
	return raw
}

// CheckLength validates a template length against a fixed-length type.
func (ft FieldType) CheckLength(length uint16) error {
	if length == 0 {
		return ErrInvalidFieldLength
	}
	if ft.Fixed && length != ft.Length {
		return fmt.Errorf("%s is %d bytes, got %d: %w", ft.Name, ft.Length, length, ErrTemplateFieldLengthMismatch)
	}
	return nil
}

var (
	samplingAlgorithms = map[uint64]string{1: "Deterministic", 2: "Random"}
	engineTypes        = map[uint64]string{0: "RP", 1: "Linecard"}
	mplsTopLabelTypes  = map[uint64]string{
		0: "UNKNOWN",
		1: "TE-MIDPT",
		2: "ATOM",
		3: "VPN",
		4: "BGP",
		5: "LDP",
	}
	directions = map[uint64]string{0: "Ingress", 1: "Egress"}
)

func lookupName(names map[uint64]string, v uint64, otherwise string) string {
	if name, ok := names[v]; ok {
		return name
	}
	return otherwise
}

// Render formats a value as "Description = value".
func (ft FieldType) Render(value interface{}) string {
	return fmt.Sprintf("%s = %s", ft.Description, ft.renderValue(value))
}

func (ft FieldType) renderValue(value interface{}) string {
	switch v := value.(type) {
	case uint64:
		switch ft.Kind {
		case FieldKindProtocol:
			return utils.ProtocolString(uint8(v))
		case FieldKindTCPFlags:
			return utils.TCPFlagsString(uint8(v))
		case FieldKindMilliseconds:
			return fmt.Sprintf("%d milliseconds", v)
		case FieldKindICMP:
			return fmt.Sprintf("type %d code %d", v>>8, v&0xff)
		case FieldKindSamplingAlgorithm:
			return lookupName(samplingAlgorithms, v, "Unknown")
		case FieldKindEngineType:
			return lookupName(engineTypes, v, "Unknown")
		case FieldKindMPLSTopLabelType:
			return lookupName(mplsTopLabelTypes, v, "Undefined")
		case FieldKindDirection:
			return lookupName(directions, v, "Unknown")
		}
		return fmt.Sprintf("%d", v)
	case netip.Addr:
		return v.String()
	case net.HardwareAddr:
		return v.String()
	case MPLSLabel:
		return v.String()
	case []byte:
		return fmt.Sprintf("%x", v)
	}
	return fmt.Sprintf("%v", value)
}

// Render formats the field with its registry description.
func (df DataField) Render() string {
	ft, _ := LookupFieldType(df.Type)
	return ft.Render(df.Value)
}
