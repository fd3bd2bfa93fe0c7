package producer

import (
	"net/netip"

	"google.golang.org/protobuf/encoding/protowire"
)

// Protobuf field numbers of the binary encoding. Zero values are omitted,
// as in proto3.
const (
	pbType            = 1
	pbSamplingRate    = 3
	pbSequenceNum     = 4
	pbSrcAddr         = 6
	pbDstAddr         = 7
	pbBytes           = 9
	pbPackets         = 10
	pbSamplerAddress  = 11
	pbNextHop         = 12
	pbSrcAs           = 14
	pbDstAs           = 15
	pbSrcNet          = 16
	pbDstNet          = 17
	pbInIf            = 18
	pbOutIf           = 19
	pbProto           = 20
	pbSrcPort         = 21
	pbDstPort         = 22
	pbIpTos           = 23
	pbIpTtl           = 25
	pbTcpFlags        = 26
	pbSrcMac          = 27
	pbDstMac          = 28
	pbEtype           = 30
	pbIcmpType        = 31
	pbIcmpCode        = 32
	pbSrcVlan         = 33
	pbDstVlan         = 34
	pbFragmentId      = 35
	pbFragmentOffset  = 36
	pbIpv6FlowLabel   = 37
	pbFlowDirection   = 42
	pbMplsLabels      = 63
	pbSourceId        = 70
	pbEngineType      = 71
	pbEngineId        = 72
	pbBgpNextHop      = 100
	pbTimeReceivedNs  = 110
	pbTimeFlowStartMs = 113
	pbTimeFlowEndMs   = 114
	pbSrcCountry      = 1000
	pbDstCountry      = 1001
)

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendAddr(b []byte, num protowire.Number, addr netip.Addr) []byte {
	if !addr.IsValid() {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, addr.AsSlice())
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendPacked(b []byte, num protowire.Number, values []uint32) []byte {
	if len(values) == 0 {
		return b
	}
	var packed []byte
	for _, v := range values {
		packed = protowire.AppendVarint(packed, uint64(v))
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, packed)
}

// MarshalBinary encodes the message as a length-prefixed protobuf record.
func (m *FlowMessage) MarshalBinary() ([]byte, error) {
	var b []byte
	b = appendVarint(b, pbType, uint64(m.Type))
	b = appendVarint(b, pbTimeReceivedNs, m.TimeReceivedNs)
	b = appendVarint(b, pbSequenceNum, uint64(m.SequenceNum))
	b = appendVarint(b, pbSamplingRate, m.SamplingRate)
	b = appendAddr(b, pbSamplerAddress, m.SamplerAddress)
	b = appendVarint(b, pbSourceId, uint64(m.SourceId))
	b = appendVarint(b, pbTimeFlowStartMs, m.TimeFlowStartMs)
	b = appendVarint(b, pbTimeFlowEndMs, m.TimeFlowEndMs)
	b = appendVarint(b, pbBytes, m.Bytes)
	b = appendVarint(b, pbPackets, m.Packets)
	b = appendAddr(b, pbSrcAddr, m.SrcAddr)
	b = appendAddr(b, pbDstAddr, m.DstAddr)
	b = appendVarint(b, pbEtype, uint64(m.Etype))
	b = appendVarint(b, pbProto, uint64(m.Proto))
	b = appendVarint(b, pbSrcPort, uint64(m.SrcPort))
	b = appendVarint(b, pbDstPort, uint64(m.DstPort))
	b = appendVarint(b, pbInIf, uint64(m.InIf))
	b = appendVarint(b, pbOutIf, uint64(m.OutIf))
	b = appendVarint(b, pbSrcMac, m.SrcMac)
	b = appendVarint(b, pbDstMac, m.DstMac)
	b = appendVarint(b, pbSrcVlan, uint64(m.SrcVlan))
	b = appendVarint(b, pbDstVlan, uint64(m.DstVlan))
	b = appendVarint(b, pbIpTos, uint64(m.IpTos))
	b = appendVarint(b, pbIpTtl, uint64(m.IpTtl))
	b = appendVarint(b, pbTcpFlags, uint64(m.TcpFlags))
	b = appendVarint(b, pbIcmpType, uint64(m.IcmpType))
	b = appendVarint(b, pbIcmpCode, uint64(m.IcmpCode))
	b = appendVarint(b, pbIpv6FlowLabel, uint64(m.Ipv6FlowLabel))
	b = appendVarint(b, pbFragmentId, uint64(m.FragmentId))
	b = appendVarint(b, pbFragmentOffset, uint64(m.FragmentOffset))
	b = appendVarint(b, pbFlowDirection, uint64(m.FlowDirection))
	b = appendVarint(b, pbSrcAs, uint64(m.SrcAs))
	b = appendVarint(b, pbDstAs, uint64(m.DstAs))
	b = appendAddr(b, pbNextHop, m.NextHop)
	b = appendAddr(b, pbBgpNextHop, m.BgpNextHop)
	b = appendVarint(b, pbSrcNet, uint64(m.SrcNet))
	b = appendVarint(b, pbDstNet, uint64(m.DstNet))
	b = appendPacked(b, pbMplsLabels, m.MplsLabels)
	b = appendVarint(b, pbEngineType, uint64(m.EngineType))
	b = appendVarint(b, pbEngineId, uint64(m.EngineId))
	b = appendString(b, pbSrcCountry, m.SrcCountry)
	b = appendString(b, pbDstCountry, m.DstCountry)

	return protowire.AppendBytes(nil, b), nil
}
