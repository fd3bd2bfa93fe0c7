package producer

import (
	"errors"
	"net"
	"net/netip"
	"sync"

	"github.com/netsampler/nfcollector/decoders/netflow"
)

var ErrNoSamplingRate = errors.New("no sampling rate")

type SamplingRateSystem interface {
	GetSamplingRate(version uint16, obsDomainId uint32) (uint32, error)
	AddSamplingRate(version uint16, obsDomainId uint32, samplingRate uint32)
}

type basicSamplingRateSystem struct {
	sampling     map[uint16]map[uint32]uint32
	samplinglock *sync.RWMutex
}

func CreateSamplingSystem() SamplingRateSystem {
	ts := &basicSamplingRateSystem{
		sampling:     make(map[uint16]map[uint32]uint32),
		samplinglock: &sync.RWMutex{},
	}
	return ts
}

func (s *basicSamplingRateSystem) AddSamplingRate(version uint16, obsDomainId uint32, samplingRate uint32) {
	s.samplinglock.Lock()
	defer s.samplinglock.Unlock()
	_, exists := s.sampling[version]
	if !exists {
		s.sampling[version] = make(map[uint32]uint32)
	}
	s.sampling[version][obsDomainId] = samplingRate
}

func (s *basicSamplingRateSystem) GetSamplingRate(version uint16, obsDomainId uint32) (uint32, error) {
	s.samplinglock.RLock()
	defer s.samplinglock.RUnlock()
	if samplingVersion, ok := s.sampling[version]; ok {
		if samplingRate, ok := samplingVersion[obsDomainId]; ok {
			return samplingRate, nil
		}
	}
	return 0, ErrNoSamplingRate
}

type SingleSamplingRateSystem struct {
	Sampling uint32
}

func (s *SingleSamplingRateSystem) AddSamplingRate(version uint16, obsDomainId uint32, samplingRate uint32) {
}

func (s *SingleSamplingRateSystem) GetSamplingRate(version uint16, obsDomainId uint32) (uint32, error) {
	return s.Sampling, nil
}

func NetFlowLookFor(dataFields []netflow.DataField, typeId uint16) (bool, interface{}) {
	for _, dataField := range dataFields {
		if dataField.Type == typeId {
			return true, dataField.Value
		}
	}
	return false, nil
}

func valueUint(v interface{}) (uint64, bool) {
	n, ok := v.(uint64)
	return n, ok
}

func setUint32(dst *uint32, v interface{}) {
	if n, ok := valueUint(v); ok {
		*dst = uint32(n)
	}
}

func setUint64(dst *uint64, v interface{}) {
	if n, ok := valueUint(v); ok {
		*dst = n
	}
}

func setAddr(dst *netip.Addr, v interface{}) {
	if addr, ok := v.(netip.Addr); ok {
		*dst = addr
	}
}

func setMac(dst *uint64, v interface{}) {
	if mac, ok := v.(net.HardwareAddr); ok && len(mac) == 6 {
		var n uint64
		for _, b := range mac {
			n = n<<8 | uint64(b)
		}
		*dst = n
	}
}

// switchedTime turns a FIRST_SWITCHED or LAST_SWITCHED uptime into
// milliseconds since the epoch.
func switchedTime(baseTime uint32, uptime uint32, v interface{}) uint64 {
	t, ok := valueUint(v)
	if !ok {
		return 0
	}
	return uint64(baseTime)*1000 - uint64(uptime-uint32(t))
}

func ConvertNetFlowDataSet(version uint16, baseTime uint32, uptime uint32, record []netflow.DataField, mapperNetFlow *NetFlowMapper) *FlowMessage {
	flowMessage := NewFlowMessage()
	flowMessage.Type = NetFlowV9

	for i := range record {
		df := record[i]
		v := df.Value

		MapCustomNetFlow(flowMessage, df, mapperNetFlow)

		switch df.Type {

		// Statistics
		case netflow.NFV9_FIELD_IN_BYTES, netflow.NFV9_FIELD_OUT_BYTES:
			setUint64(&flowMessage.Bytes, v)
		case netflow.NFV9_FIELD_IN_PKTS, netflow.NFV9_FIELD_OUT_PKTS:
			setUint64(&flowMessage.Packets, v)

		// L4
		case netflow.NFV9_FIELD_L4_SRC_PORT:
			setUint32(&flowMessage.SrcPort, v)
		case netflow.NFV9_FIELD_L4_DST_PORT:
			setUint32(&flowMessage.DstPort, v)
		case netflow.NFV9_FIELD_PROTOCOL:
			setUint32(&flowMessage.Proto, v)
		case netflow.NFV9_FIELD_TCP_FLAGS:
			setUint32(&flowMessage.TcpFlags, v)
		case netflow.NFV9_FIELD_ICMP_TYPE:
			if n, ok := valueUint(v); ok {
				flowMessage.IcmpType = uint32(n>>8) & 0xff
				flowMessage.IcmpCode = uint32(n) & 0xff
			}

		// Network
		case netflow.NFV9_FIELD_SRC_AS:
			setUint32(&flowMessage.SrcAs, v)
		case netflow.NFV9_FIELD_DST_AS:
			setUint32(&flowMessage.DstAs, v)

		// Interfaces
		case netflow.NFV9_FIELD_INPUT_SNMP:
			setUint32(&flowMessage.InIf, v)
		case netflow.NFV9_FIELD_OUTPUT_SNMP:
			setUint32(&flowMessage.OutIf, v)
		case netflow.NFV9_FIELD_DIRECTION:
			setUint32(&flowMessage.FlowDirection, v)

		// IP
		case netflow.NFV9_FIELD_SRC_TOS:
			setUint32(&flowMessage.IpTos, v)
		case netflow.NFV9_FIELD_MIN_TTL:
			setUint32(&flowMessage.IpTtl, v)
		case netflow.NFV9_FIELD_IPV4_IDENT:
			setUint32(&flowMessage.FragmentId, v)

		case netflow.NFV9_FIELD_IPV4_SRC_ADDR:
			setAddr(&flowMessage.SrcAddr, v)
			flowMessage.Etype = 0x800
		case netflow.NFV9_FIELD_IPV4_DST_ADDR:
			setAddr(&flowMessage.DstAddr, v)
			flowMessage.Etype = 0x800
		case netflow.NFV9_FIELD_SRC_MASK, netflow.NFV9_FIELD_IPV6_SRC_MASK:
			setUint32(&flowMessage.SrcNet, v)
		case netflow.NFV9_FIELD_DST_MASK, netflow.NFV9_FIELD_IPV6_DST_MASK:
			setUint32(&flowMessage.DstNet, v)
		case netflow.NFV9_FIELD_IPV4_NEXT_HOP, netflow.NFV9_FIELD_IPV6_NEXT_HOP:
			setAddr(&flowMessage.NextHop, v)
		case netflow.NFV9_FIELD_BGP_IPV4_NEXT_HOP, netflow.NFV9_FIELD_BGP_IPV6_NEXT_HOP:
			setAddr(&flowMessage.BgpNextHop, v)

		case netflow.NFV9_FIELD_IPV6_SRC_ADDR:
			setAddr(&flowMessage.SrcAddr, v)
			flowMessage.Etype = 0x86dd
		case netflow.NFV9_FIELD_IPV6_DST_ADDR:
			setAddr(&flowMessage.DstAddr, v)
			flowMessage.Etype = 0x86dd
		case netflow.NFV9_FIELD_IPV6_FLOW_LABEL:
			setUint32(&flowMessage.Ipv6FlowLabel, v)

		// Mac
		case netflow.NFV9_FIELD_IN_SRC_MAC:
			setMac(&flowMessage.SrcMac, v)
		case netflow.NFV9_FIELD_OUT_DST_MAC:
			setMac(&flowMessage.DstMac, v)
		case netflow.NFV9_FIELD_SRC_VLAN:
			setUint32(&flowMessage.SrcVlan, v)
		case netflow.NFV9_FIELD_DST_VLAN:
			setUint32(&flowMessage.DstVlan, v)

		case netflow.NFV9_FIELD_ENGINE_TYPE:
			setUint32(&flowMessage.EngineType, v)
		case netflow.NFV9_FIELD_ENGINE_ID:
			setUint32(&flowMessage.EngineId, v)

		case netflow.NFV9_FIELD_SAMPLING_INTERVAL, netflow.NFV9_FIELD_FLOW_SAMPLER_RANDOM_INTERVAL:
			setUint64(&flowMessage.SamplingRate, v)

		// Time
		case netflow.NFV9_FIELD_FIRST_SWITCHED:
			flowMessage.TimeFlowStartMs = switchedTime(baseTime, uptime, v)
		case netflow.NFV9_FIELD_LAST_SWITCHED:
			flowMessage.TimeFlowEndMs = switchedTime(baseTime, uptime, v)

		default:
			if df.Type >= netflow.NFV9_FIELD_MPLS_LABEL_1 && df.Type <= netflow.NFV9_FIELD_MPLS_LABEL_10 {
				if label, ok := v.(netflow.MPLSLabel); ok {
					flowMessage.MplsLabels = append(flowMessage.MplsLabels, label.Label)
				}
			}
		}
	}

	return flowMessage
}

func SearchNetFlowDataSetsRecords(version uint16, baseTime uint32, uptime uint32, dataRecords []netflow.DataRecord, mapperNetFlow *NetFlowMapper) []*FlowMessage {
	var flowMessageSet []*FlowMessage
	for _, record := range dataRecords {
		fmsg := ConvertNetFlowDataSet(version, baseTime, uptime, record.Values, mapperNetFlow)
		if fmsg != nil {
			flowMessageSet = append(flowMessageSet, fmsg)
		}
	}
	return flowMessageSet
}

func SearchNetFlowDataSets(version uint16, baseTime uint32, uptime uint32, dataFlowSet []netflow.DataFlowSet, mapperNetFlow *NetFlowMapper) []*FlowMessage {
	var flowMessageSet []*FlowMessage
	for _, dataFlowSetItem := range dataFlowSet {
		fmsg := SearchNetFlowDataSetsRecords(version, baseTime, uptime, dataFlowSetItem.Records, mapperNetFlow)
		if fmsg != nil {
			flowMessageSet = append(flowMessageSet, fmsg...)
		}
	}
	return flowMessageSet
}

func SplitNetFlowSets(packetNFv9 *netflow.NFv9Packet) []netflow.DataFlowSet {
	var dataFlowSet []netflow.DataFlowSet
	for _, flowSet := range packetNFv9.FlowSets {
		if dataSet, ok := flowSet.(netflow.DataFlowSet); ok {
			dataFlowSet = append(dataFlowSet, dataSet)
		}
	}
	return dataFlowSet
}

// ProcessMessageNetFlowV9Config converts the data flowsets of a packet.
// Records carrying a sampling interval update the rate remembered for the
// source id; the others inherit it.
func ProcessMessageNetFlowV9Config(packet *netflow.NFv9Packet, samplingRateSys SamplingRateSystem, config *producerConfigMapped) ([]*FlowMessage, error) {
	dataFlowSet := SplitNetFlowSets(packet)

	seqnum := packet.SequenceNumber
	baseTime := packet.UnixSeconds
	uptime := packet.SystemUptime
	obsDomainId := packet.SourceId

	var cfg *NetFlowMapper
	if config != nil {
		cfg = config.NetFlowV9
	}

	flowMessageSet := SearchNetFlowDataSets(9, baseTime, uptime, dataFlowSet, cfg)

	for _, fmsg := range flowMessageSet {
		if fmsg.SamplingRate > 0 {
			samplingRateSys.AddSamplingRate(9, obsDomainId, uint32(fmsg.SamplingRate))
		}
	}
	samplingRate, _ := samplingRateSys.GetSamplingRate(9, obsDomainId)

	for _, fmsg := range flowMessageSet {
		fmsg.SequenceNum = seqnum
		fmsg.SourceId = obsDomainId
		if fmsg.SamplingRate == 0 {
			fmsg.SamplingRate = uint64(samplingRate)
		}
	}
	return flowMessageSet, nil
}
