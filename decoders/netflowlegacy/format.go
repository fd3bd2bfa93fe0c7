package netflowlegacy

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/netsampler/nfcollector/decoders/utils"
)

type recordJSON struct {
	SrcAddr  utils.IPAddress `json:"src_addr"`
	DstAddr  utils.IPAddress `json:"dst_addr"`
	NextHop  utils.IPAddress `json:"next_hop"`
	Input    uint16          `json:"input"`
	Output   uint16          `json:"output"`
	DPkts    uint32          `json:"packets"`
	DOctets  uint32          `json:"bytes"`
	First    uint32          `json:"first"`
	Last     uint32          `json:"last"`
	SrcPort  uint16          `json:"src_port"`
	DstPort  uint16          `json:"dst_port"`
	TCPFlags string          `json:"tcp_flags"`
	Proto    string          `json:"proto"`
	Tos      uint8           `json:"tos"`
	SrcAS    uint16          `json:"src_as"`
	DstAS    uint16          `json:"dst_as"`
	SrcMask  uint8           `json:"src_mask"`
	DstMask  uint8           `json:"dst_mask"`
}

func (r RecordsNetFlowV5) MarshalJSON() ([]byte, error) {
	return json.Marshal(recordJSON{
		SrcAddr:  utils.IPv4Address(r.SrcAddr),
		DstAddr:  utils.IPv4Address(r.DstAddr),
		NextHop:  utils.IPv4Address(r.NextHop),
		Input:    r.Input,
		Output:   r.Output,
		DPkts:    r.DPkts,
		DOctets:  r.DOctets,
		First:    r.First,
		Last:     r.Last,
		SrcPort:  r.SrcPort,
		DstPort:  r.DstPort,
		TCPFlags: utils.TCPFlagsString(r.TCPFlags),
		Proto:    utils.ProtocolString(r.Proto),
		Tos:      r.Tos,
		SrcAS:    r.SrcAS,
		DstAS:    r.DstAS,
		SrcMask:  r.SrcMask,
		DstMask:  r.DstMask,
	})
}

func (p PacketNetFlowV5) MarshalJSON() ([]byte, error) {
	type packet PacketNetFlowV5 // avoids recursion
	return json.Marshal(packet(p))
}

func (p *PacketNetFlowV5) String() string {
	return fmt.Sprintf("NetFlowV%d seq:%d count:%d", p.Version, p.FlowSequence, p.Count)
}

// Humanize renders the header and every record, one "Name = value" per line.
func (p PacketNetFlowV5) Humanize() string {
	var b strings.Builder
	b.WriteString("NetFlow v5 Packet\n")
	b.WriteString("-----------------\n")
	fmt.Fprintf(&b, "  Version: %v\n", p.Version)
	fmt.Fprintf(&b, "  Count:  %v\n", p.Count)

	unixSeconds := time.Unix(int64(p.UnixSecs), int64(p.UnixNSecs)).UTC()
	fmt.Fprintf(&b, "  SystemUptime: %v\n", time.Duration(p.SysUptime)*time.Millisecond)
	fmt.Fprintf(&b, "  UnixSeconds: %v\n", unixSeconds.String())
	fmt.Fprintf(&b, "  FlowSequence: %v\n", p.FlowSequence)
	fmt.Fprintf(&b, "  EngineType: %v\n", p.EngineType)
	fmt.Fprintf(&b, "  EngineId: %v\n", p.EngineId)
	fmt.Fprintf(&b, "  SamplingInterval: %v\n", p.SamplingInterval)
	fmt.Fprintf(&b, "  Records (%v):\n", len(p.Records))

	for i, record := range p.Records {
		fmt.Fprintf(&b, "    Record %v:\n", i)
		for _, line := range strings.Split(strings.TrimSuffix(record.String(), "\n"), "\n") {
			b.WriteString("      ")
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func (r RecordsNetFlowV5) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "IPv4 Source Address = %v\n", utils.IPv4Address(r.SrcAddr))
	fmt.Fprintf(&b, "IPv4 Destination Address = %v\n", utils.IPv4Address(r.DstAddr))
	fmt.Fprintf(&b, "IPv4 Next-Hop Address = %v\n", utils.IPv4Address(r.NextHop))
	fmt.Fprintf(&b, "Input SNMP Interface = %v\n", r.Input)
	fmt.Fprintf(&b, "Output SNMP Interface = %v\n", r.Output)
	fmt.Fprintf(&b, "Packets = %v\n", r.DPkts)
	fmt.Fprintf(&b, "Bytes = %v\n", r.DOctets)
	fmt.Fprintf(&b, "First Uptime = %v\n", r.First)
	fmt.Fprintf(&b, "Last Uptime = %v\n", r.Last)
	fmt.Fprintf(&b, "L4 Source port = %v\n", r.SrcPort)
	fmt.Fprintf(&b, "L4 Destination port = %v\n", r.DstPort)
	fmt.Fprintf(&b, "TCP flags = %v\n", utils.TCPFlagsString(r.TCPFlags))
	fmt.Fprintf(&b, "Protocol = %v\n", utils.ProtocolString(r.Proto))
	fmt.Fprintf(&b, "TOS = %v\n", r.Tos)
	fmt.Fprintf(&b, "Source AS = %v\n", r.SrcAS)
	fmt.Fprintf(&b, "Destination AS = %v\n", r.DstAS)
	fmt.Fprintf(&b, "Source Netmask = %v\n", r.SrcMask)
	fmt.Fprintf(&b, "Destination Netmask = %v\n", r.DstMask)
	return b.String()
}
