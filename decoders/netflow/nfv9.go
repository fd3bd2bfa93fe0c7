package netflow

import (
	"fmt"
)

const (
	NFV9_FIELD_IN_BYTES                     = 1
	NFV9_FIELD_IN_PKTS                      = 2
	NFV9_FIELD_FLOWS                        = 3
	NFV9_FIELD_PROTOCOL                     = 4
	NFV9_FIELD_SRC_TOS                      = 5
	NFV9_FIELD_TCP_FLAGS                    = 6
	NFV9_FIELD_L4_SRC_PORT                  = 7
	NFV9_FIELD_IPV4_SRC_ADDR                = 8
	NFV9_FIELD_SRC_MASK                     = 9
	NFV9_FIELD_INPUT_SNMP                   = 10
	NFV9_FIELD_L4_DST_PORT                  = 11
	NFV9_FIELD_IPV4_DST_ADDR                = 12
	NFV9_FIELD_DST_MASK                     = 13
	NFV9_FIELD_OUTPUT_SNMP                  = 14
	NFV9_FIELD_IPV4_NEXT_HOP                = 15
	NFV9_FIELD_SRC_AS                       = 16
	NFV9_FIELD_DST_AS                       = 17
	NFV9_FIELD_BGP_IPV4_NEXT_HOP            = 18
	NFV9_FIELD_MUL_DST_PKTS                 = 19
	NFV9_FIELD_MUL_DST_BYTES                = 20
	NFV9_FIELD_LAST_SWITCHED                = 21
	NFV9_FIELD_FIRST_SWITCHED               = 22
	NFV9_FIELD_OUT_BYTES                    = 23
	NFV9_FIELD_OUT_PKTS                     = 24
	NFV9_FIELD_MIN_PKT_LNGTH                = 25
	NFV9_FIELD_MAX_PKT_LNGTH                = 26
	NFV9_FIELD_IPV6_SRC_ADDR                = 27
	NFV9_FIELD_IPV6_DST_ADDR                = 28
	NFV9_FIELD_IPV6_SRC_MASK                = 29
	NFV9_FIELD_IPV6_DST_MASK                = 30
	NFV9_FIELD_IPV6_FLOW_LABEL              = 31
	NFV9_FIELD_ICMP_TYPE                    = 32
	NFV9_FIELD_MUL_IGMP_TYPE                = 33
	NFV9_FIELD_SAMPLING_INTERVAL            = 34
	NFV9_FIELD_SAMPLING_ALGORITHM           = 35
	NFV9_FIELD_FLOW_ACTIVE_TIMEOUT          = 36
	NFV9_FIELD_FLOW_INACTIVE_TIMEOUT        = 37
	NFV9_FIELD_ENGINE_TYPE                  = 38
	NFV9_FIELD_ENGINE_ID                    = 39
	NFV9_FIELD_TOTAL_BYTES_EXP              = 40
	NFV9_FIELD_TOTAL_PKTS_EXP               = 41
	NFV9_FIELD_TOTAL_FLOWS_EXP              = 42
	NFV9_FIELD_IPV4_SRC_PREFIX              = 44
	NFV9_FIELD_IPV4_DST_PREFIX              = 45
	NFV9_FIELD_MPLS_TOP_LABEL_TYPE          = 46
	NFV9_FIELD_MPLS_TOP_LABEL_IP_ADDR       = 47
	NFV9_FIELD_FLOW_SAMPLER_ID              = 48
	NFV9_FIELD_FLOW_SAMPLER_MODE            = 49
	NFV9_FIELD_FLOW_SAMPLER_RANDOM_INTERVAL = 50
	NFV9_FIELD_MIN_TTL                      = 52
	NFV9_FIELD_MAX_TTL                      = 53
	NFV9_FIELD_IPV4_IDENT                   = 54
	NFV9_FIELD_DST_TOS                      = 55
	NFV9_FIELD_IN_SRC_MAC                   = 56
	NFV9_FIELD_OUT_DST_MAC                  = 57
	NFV9_FIELD_SRC_VLAN                     = 58
	NFV9_FIELD_DST_VLAN                     = 59
	NFV9_FIELD_IP_PROTOCOL_VERSION          = 60
	NFV9_FIELD_DIRECTION                    = 61
	NFV9_FIELD_IPV6_NEXT_HOP                = 62
	NFV9_FIELD_BGP_IPV6_NEXT_HOP            = 63
	NFV9_FIELD_IPV6_OPTION_HEADERS          = 64
	NFV9_FIELD_MPLS_LABEL_1                 = 70
	NFV9_FIELD_MPLS_LABEL_2                 = 71
	NFV9_FIELD_MPLS_LABEL_3                 = 72
	NFV9_FIELD_MPLS_LABEL_4                 = 73
	NFV9_FIELD_MPLS_LABEL_5                 = 74
	NFV9_FIELD_MPLS_LABEL_6                 = 75
	NFV9_FIELD_MPLS_LABEL_7                 = 76
	NFV9_FIELD_MPLS_LABEL_8                 = 77
	NFV9_FIELD_MPLS_LABEL_9                 = 78
	NFV9_FIELD_MPLS_LABEL_10                = 79
)

// FlowSet ids below 256 are reserved.
const (
	NFV9_FLOWSET_TEMPLATE         = 0
	NFV9_FLOWSET_OPTIONS_TEMPLATE = 1
	NFV9_FLOWSET_MIN_DATA         = 256
)

// NFv9Packet is a decoded NetFlow v9 export packet (RFC 3954 section 5.1).
type NFv9Packet struct {
	Version        uint16    `json:"version"`
	Count          uint16    `json:"count"`
	SystemUptime   uint32    `json:"system-uptime"`
	UnixSeconds    uint32    `json:"unix-seconds"`
	SequenceNumber uint32    `json:"sequence-number"`
	SourceId       uint32    `json:"source-id"`
	FlowSets       []FlowSet `json:"flowsets"`
}

// FieldType is one row of the field type registry.
type FieldType struct {
	Type        uint16
	Name        string
	Description string
	Kind        FieldKind
	// Length is the default length; when Fixed is set it is the only one the
	// type is defined for.
	Length uint16
	Fixed  bool
}

func fixed(t uint16, name, desc string, kind FieldKind, length uint16) FieldType {
	return FieldType{Type: t, Name: name, Description: desc, Kind: kind, Length: length, Fixed: true}
}

func variable(t uint16, name, desc string, kind FieldKind, length uint16) FieldType {
	return FieldType{Type: t, Name: name, Description: desc, Kind: kind, Length: length}
}

var nfv9FieldTypes = map[uint16]FieldType{}

func init() {
	rows := []FieldType{
		variable(NFV9_FIELD_IN_BYTES, "IN_BYTES", "Input Bytes", FieldKindUnsigned, 4),
		variable(NFV9_FIELD_IN_PKTS, "IN_PKTS", "Input Packets", FieldKindUnsigned, 4),
		variable(NFV9_FIELD_FLOWS, "FLOWS", "Flows", FieldKindUnsigned, 4),
		fixed(NFV9_FIELD_PROTOCOL, "PROTOCOL", "Protocol", FieldKindProtocol, 1),
		fixed(NFV9_FIELD_SRC_TOS, "SRC_TOS", "TOS", FieldKindUnsigned, 1),
		fixed(NFV9_FIELD_TCP_FLAGS, "TCP_FLAGS", "TCP Flags", FieldKindTCPFlags, 1),
		fixed(NFV9_FIELD_L4_SRC_PORT, "L4_SRC_PORT", "L4 Source port", FieldKindUnsigned, 2),
		fixed(NFV9_FIELD_IPV4_SRC_ADDR, "IPV4_SRC_ADDR", "IPv4 Source Address", FieldKindIPv4, 4),
		fixed(NFV9_FIELD_SRC_MASK, "SRC_MASK", "Source Netmask", FieldKindUnsigned, 1),
		variable(NFV9_FIELD_INPUT_SNMP, "INPUT_SNMP", "Input SNMP interface", FieldKindUnsigned, 2),
		fixed(NFV9_FIELD_L4_DST_PORT, "L4_DST_PORT", "L4 Destination Port", FieldKindUnsigned, 2),
		fixed(NFV9_FIELD_IPV4_DST_ADDR, "IPV4_DST_ADDR", "IPv4 Destination Address", FieldKindIPv4, 4),
		fixed(NFV9_FIELD_DST_MASK, "DST_MASK", "Destination Netmask", FieldKindUnsigned, 1),
		variable(NFV9_FIELD_OUTPUT_SNMP, "OUTPUT_SNMP", "Output SNMP Interface", FieldKindUnsigned, 2),
		fixed(NFV9_FIELD_IPV4_NEXT_HOP, "IPV4_NEXT_HOP", "IPv4 Next-Hop Address", FieldKindIPv4, 4),
		variable(NFV9_FIELD_SRC_AS, "SRC_AS", "Source AS number", FieldKindUnsigned, 2),
		variable(NFV9_FIELD_DST_AS, "DST_AS", "Destination AS number", FieldKindUnsigned, 2),
		fixed(NFV9_FIELD_BGP_IPV4_NEXT_HOP, "BGP_IPV4_NEXT_HOP", "BGP IPv4 Next-Hop Address", FieldKindIPv4, 4),
		variable(NFV9_FIELD_MUL_DST_PKTS, "MUL_DST_PKTS", "Multicast Destination Packets", FieldKindUnsigned, 4),
		variable(NFV9_FIELD_MUL_DST_BYTES, "MUL_DST_BYTES", "Multicast Destination Bytes", FieldKindUnsigned, 4),
		fixed(NFV9_FIELD_LAST_SWITCHED, "LAST_SWITCHED", "Last Switched Time", FieldKindMilliseconds, 4),
		fixed(NFV9_FIELD_FIRST_SWITCHED, "FIRST_SWITCHED", "First Switched Time", FieldKindMilliseconds, 4),
		variable(NFV9_FIELD_OUT_BYTES, "OUT_BYTES", "Output Bytes", FieldKindUnsigned, 4),
		variable(NFV9_FIELD_OUT_PKTS, "OUT_PKTS", "Output Packets", FieldKindUnsigned, 4),
		fixed(NFV9_FIELD_MIN_PKT_LNGTH, "MIN_PKT_LNGTH", "Minimum IP Packet Length", FieldKindUnsigned, 2),
		fixed(NFV9_FIELD_MAX_PKT_LNGTH, "MAX_PKT_LNGTH", "Maximum IP Packet Length", FieldKindUnsigned, 2),
		fixed(NFV9_FIELD_IPV6_SRC_ADDR, "IPV6_SRC_ADDR", "IPv6 Source Address", FieldKindIPv6, 16),
		fixed(NFV9_FIELD_IPV6_DST_ADDR, "IPV6_DST_ADDR", "IPv6 Destination Address", FieldKindIPv6, 16),
		fixed(NFV9_FIELD_IPV6_SRC_MASK, "IPV6_SRC_MASK", "IPv6 Source Mask", FieldKindUnsigned, 1),
		fixed(NFV9_FIELD_IPV6_DST_MASK, "IPV6_DST_MASK", "IPv6 Destination Mask", FieldKindUnsigned, 1),
		fixed(NFV9_FIELD_IPV6_FLOW_LABEL, "IPV6_FLOW_LABEL", "IPv6 Flow Label", FieldKindUnsigned, 3),
		fixed(NFV9_FIELD_ICMP_TYPE, "ICMP_TYPE", "ICMP packet", FieldKindICMP, 2),
		fixed(NFV9_FIELD_MUL_IGMP_TYPE, "MUL_IGMP_TYPE", "IGMP Packet Type", FieldKindUnsigned, 1),
		fixed(NFV9_FIELD_SAMPLING_INTERVAL, "SAMPLING_INTERVAL", "Sampling Interval", FieldKindUnsigned, 4),
		fixed(NFV9_FIELD_SAMPLING_ALGORITHM, "SAMPLING_ALGORITHM", "Sampling Algorithm", FieldKindSamplingAlgorithm, 1),
		fixed(NFV9_FIELD_FLOW_ACTIVE_TIMEOUT, "FLOW_ACTIVE_TIMEOUT", "Flow Active Timeout", FieldKindUnsigned, 2),
		fixed(NFV9_FIELD_FLOW_INACTIVE_TIMEOUT, "FLOW_INACTIVE_TIMEOUT", "Flow Inactive Timeout", FieldKindUnsigned, 2),
		fixed(NFV9_FIELD_ENGINE_TYPE, "ENGINE_TYPE", "Engine Type", FieldKindEngineType, 1),
		fixed(NFV9_FIELD_ENGINE_ID, "ENGINE_ID", "Engine Id", FieldKindUnsigned, 1),
		variable(NFV9_FIELD_TOTAL_BYTES_EXP, "TOTAL_BYTES_EXP", "Total Exported Bytes", FieldKindUnsigned, 4),
		variable(NFV9_FIELD_TOTAL_PKTS_EXP, "TOTAL_PKTS_EXP", "Total Exported Packets", FieldKindUnsigned, 4),
		variable(NFV9_FIELD_TOTAL_FLOWS_EXP, "TOTAL_FLOWS_EXP", "Total Exported Flows", FieldKindUnsigned, 4),
		fixed(NFV9_FIELD_IPV4_SRC_PREFIX, "IPV4_SRC_PREFIX", "Catalyst IPv4 Source Address Prefix", FieldKindIPv4, 4),
		fixed(NFV9_FIELD_IPV4_DST_PREFIX, "IPV4_DST_PREFIX", "Catalyst IPv4 Destination Address Prefix", FieldKindIPv4, 4),
		fixed(NFV9_FIELD_MPLS_TOP_LABEL_TYPE, "MPLS_TOP_LABEL_TYPE", "MPLS Top Label", FieldKindMPLSTopLabelType, 1),
		fixed(NFV9_FIELD_MPLS_TOP_LABEL_IP_ADDR, "MPLS_TOP_LABEL_IP_ADDR", "MPLS FEC Class", FieldKindIPv4, 4),
		fixed(NFV9_FIELD_FLOW_SAMPLER_ID, "FLOW_SAMPLER_ID", "Flow Sampler Id", FieldKindUnsigned, 1),
		fixed(NFV9_FIELD_FLOW_SAMPLER_MODE, "FLOW_SAMPLER_MODE", "Flow Sampler Mode", FieldKindUnsigned, 1),
		fixed(NFV9_FIELD_FLOW_SAMPLER_RANDOM_INTERVAL, "FLOW_SAMPLER_RANDOM_INTERVAL", "Flow Sampler Random Interval", FieldKindUnsigned, 4),
		fixed(NFV9_FIELD_MIN_TTL, "MIN_TTL", "Minimum TTL", FieldKindUnsigned, 1),
		fixed(NFV9_FIELD_MAX_TTL, "MAX_TTL", "Maximum TTL", FieldKindUnsigned, 1),
		fixed(NFV9_FIELD_IPV4_IDENT, "IPV4_IDENT", "IPv4 Identification Field", FieldKindUnsigned, 2),
		fixed(NFV9_FIELD_DST_TOS, "DST_TOS", "Outgoing interface assigned TOS", FieldKindUnsigned, 1),
		fixed(NFV9_FIELD_IN_SRC_MAC, "IN_SRC_MAC", "Incoming Source MAC Address", FieldKindMAC, 6),
		fixed(NFV9_FIELD_OUT_DST_MAC, "OUT_DST_MAC", "Outgoing Destination MAC Address", FieldKindMAC, 6),
		fixed(NFV9_FIELD_SRC_VLAN, "SRC_VLAN", "Ingress Interface VLAN ID", FieldKindUnsigned, 2),
		fixed(NFV9_FIELD_DST_VLAN, "DST_VLAN", "Egress Interface VLAN ID", FieldKindUnsigned, 2),
		fixed(NFV9_FIELD_IP_PROTOCOL_VERSION, "IP_PROTOCOL_VERSION", "IP Version", FieldKindUnsigned, 1),
		fixed(NFV9_FIELD_DIRECTION, "DIRECTION", "Direction", FieldKindDirection, 1),
		fixed(NFV9_FIELD_IPV6_NEXT_HOP, "IPV6_NEXT_HOP", "IPv6 address of the next-hop router", FieldKindIPv6, 16),
		fixed(NFV9_FIELD_BGP_IPV6_NEXT_HOP, "BGP_IPV6_NEXT_HOP", "IPv6 BGP Next-Hop Router", FieldKindIPv6, 16),
		fixed(NFV9_FIELD_IPV6_OPTION_HEADERS, "IPV6_OPTION_HEADERS", "IPv6 Option Headers", FieldKindUnsigned, 4),
	}
	for i := 1; i <= 10; i++ {
		code := uint16(NFV9_FIELD_MPLS_LABEL_1 + i - 1)
		rows = append(rows, fixed(code,
			fmt.Sprintf("MPLS_LABEL_%d", i),
			fmt.Sprintf("Position %d MPLS Label", i),
			FieldKindMPLSLabel, 3))
	}
	for _, row := range rows {
		nfv9FieldTypes[row.Type] = row
	}
}

// LookupFieldType returns the registry row for a field type code. Codes the
// registry does not know get a raw row named UNKNOWN_<code>; the second
// return value tells them apart.
func LookupFieldType(typeId uint16) (FieldType, bool) {
	if ft, ok := nfv9FieldTypes[typeId]; ok {
		return ft, true
	}
	return FieldType{
		Type:        typeId,
		Name:        fmt.Sprintf("UNKNOWN_%d", typeId),
		Description: fmt.Sprintf("Unknown field %d", typeId),
		Kind:        FieldKindRaw,
	}, false
}

func NFv9TypeToString(typeId uint16) string {
	ft, _ := LookupFieldType(typeId)
	return ft.Name
}

// FieldTypes lists every registered field type ordered by code.
func FieldTypes() []FieldType {
	out := make([]FieldType, 0, len(nfv9FieldTypes))
	for code := uint16(0); code <= NFV9_FIELD_MPLS_LABEL_10; code++ {
		if ft, ok := nfv9FieldTypes[code]; ok {
			out = append(out, ft)
		}
	}
	return out
}
