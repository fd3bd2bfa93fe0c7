package producer

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/netsampler/nfcollector/decoders/netflow"
	"github.com/netsampler/nfcollector/decoders/netflowlegacy"
)

type ProducerInterface interface {
	// Produce converts a decoded packet into flow messages.
	Produce(msg interface{}, args *ProduceArgs) ([]*FlowMessage, error)
	Close()
}

type ProduceArgs struct {
	SamplingRateSystem SamplingRateSystem

	Src          netip.AddrPort
	Dst          netip.AddrPort
	TimeReceived time.Time
}

type FlowProducer struct {
	cfgMapped *producerConfigMapped
}

func (p *FlowProducer) Produce(msg interface{}, args *ProduceArgs) (flowMessageSet []*FlowMessage, err error) {
	if args == nil {
		args = &ProduceArgs{}
	}
	switch msgConv := msg.(type) {
	case *netflowlegacy.PacketNetFlowV5:
		flowMessageSet, err = ProcessMessageNetFlowLegacy(msgConv)
	case *netflow.NFv9Packet:
		samplingRateSys := args.SamplingRateSystem
		if samplingRateSys == nil {
			samplingRateSys = CreateSamplingSystem()
		}
		flowMessageSet, err = ProcessMessageNetFlowV9Config(msgConv, samplingRateSys, p.cfgMapped)
	default:
		return nil, fmt.Errorf("flow not recognized")
	}

	timeReceived := args.TimeReceived
	if timeReceived.IsZero() {
		timeReceived = time.Now()
	}
	for _, fmsg := range flowMessageSet {
		fmsg.TimeReceivedNs = uint64(timeReceived.UnixNano())
		fmsg.SamplerAddress = args.Src.Addr().Unmap()
		fmsg.formatter = p.cfgMapped.Formatter
	}
	return flowMessageSet, err
}

func (p *FlowProducer) Close() {}

// CreateProducerWithConfig builds a producer; a nil config selects the
// default output fields and no custom mapping.
func CreateProducerWithConfig(cfg *ProducerConfig) (ProducerInterface, error) {
	cfgMapped, err := mapConfig(cfg)
	if err != nil {
		return nil, err
	}
	return &FlowProducer{
		cfgMapped: cfgMapped,
	}, nil
}
