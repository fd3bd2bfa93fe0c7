package producer

import (
	"encoding/binary"
	"net/netip"

	"github.com/netsampler/nfcollector/decoders/netflowlegacy"
)

func ipv4(addr uint32) netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], addr)
	return netip.AddrFrom4(b)
}

// ConvertNetFlowLegacyRecord converts one v5 record. baseTime is the export
// time in milliseconds since the epoch, uptime the router uptime at export.
func ConvertNetFlowLegacyRecord(baseTime uint64, uptime uint32, record netflowlegacy.RecordsNetFlowV5) *FlowMessage {
	flowMessage := NewFlowMessage()

	flowMessage.Type = NetFlowV5

	timeDiffFirst := uptime - record.First
	timeDiffLast := uptime - record.Last
	flowMessage.TimeFlowStartMs = baseTime - uint64(timeDiffFirst)
	flowMessage.TimeFlowEndMs = baseTime - uint64(timeDiffLast)

	flowMessage.SrcAddr = ipv4(record.SrcAddr)
	flowMessage.DstAddr = ipv4(record.DstAddr)
	flowMessage.NextHop = ipv4(record.NextHop)
	flowMessage.Etype = 0x800
	flowMessage.SrcAs = uint32(record.SrcAS)
	flowMessage.DstAs = uint32(record.DstAS)
	flowMessage.SrcNet = uint32(record.SrcMask)
	flowMessage.DstNet = uint32(record.DstMask)
	flowMessage.Proto = uint32(record.Proto)
	flowMessage.TcpFlags = uint32(record.TCPFlags)
	flowMessage.IpTos = uint32(record.Tos)
	flowMessage.InIf = uint32(record.Input)
	flowMessage.OutIf = uint32(record.Output)
	flowMessage.SrcPort = uint32(record.SrcPort)
	flowMessage.DstPort = uint32(record.DstPort)
	flowMessage.Packets = uint64(record.DPkts)
	flowMessage.Bytes = uint64(record.DOctets)

	return flowMessage
}

func SearchNetFlowLegacyRecords(baseTime uint64, uptime uint32, dataRecords []netflowlegacy.RecordsNetFlowV5) []*FlowMessage {
	var flowMsgSet []*FlowMessage
	for _, record := range dataRecords {
		fmsg := ConvertNetFlowLegacyRecord(baseTime, uptime, record)
		if fmsg != nil {
			flowMsgSet = append(flowMsgSet, fmsg)
		}
	}
	return flowMsgSet
}

func ProcessMessageNetFlowLegacy(packet *netflowlegacy.PacketNetFlowV5) ([]*FlowMessage, error) {
	seqnum := packet.FlowSequence
	// the two upper bits carry the sampling mode
	samplingRate := uint64(packet.SamplingInterval & 0x3FFF)
	baseTime := uint64(packet.UnixSecs)*1000 + uint64(packet.UnixNSecs)/1000000
	uptime := packet.SysUptime

	flowMessageSet := SearchNetFlowLegacyRecords(baseTime, uptime, packet.Records)
	for _, fmsg := range flowMessageSet {
		fmsg.SequenceNum = seqnum
		fmsg.SamplingRate = samplingRate
		fmsg.EngineType = uint32(packet.EngineType)
		fmsg.EngineId = uint32(packet.EngineId)
	}

	return flowMessageSet, nil
}
