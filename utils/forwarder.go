package utils

import (
	"errors"
	"net/netip"
	"sync"
	"time"

	"github.com/netsampler/nfcollector/decoders/netflow"
	"github.com/netsampler/nfcollector/decoders/netflowlegacy"
	"github.com/netsampler/nfcollector/enricher"
	"github.com/netsampler/nfcollector/format"
	"github.com/netsampler/nfcollector/producer"
	"github.com/netsampler/nfcollector/transport"
	"github.com/netsampler/nfcollector/utils/debug"
)

type ForwarderConfig struct {
	Producer  producer.ProducerInterface
	Enricher  *enricher.Enricher
	Format    format.FormatInterface
	Transport transport.TransportInterface

	Logger Logger
	ErrCnt int
	ErrInt time.Duration
}

// Forwarder is the Callbacks implementation of the collector: packets are
// turned into flow messages, enriched, formatted and sent.
type Forwarder struct {
	producer  producer.ProducerInterface
	enricher  *enricher.Enricher
	format    format.FormatInterface
	transport transport.TransportInterface
	logger    Logger

	samplinglock *sync.RWMutex
	sampling     map[netip.Addr]producer.SamplingRateSystem

	mute *BatchMute
}

// NewForwarder wraps the producer to turn its panics into errors.
func NewForwarder(cfg *ForwarderConfig) *Forwarder {
	f := &Forwarder{
		producer:     cfg.Producer,
		enricher:     cfg.Enricher,
		format:       cfg.Format,
		transport:    cfg.Transport,
		logger:       cfg.Logger,
		samplinglock: &sync.RWMutex{},
		sampling:     make(map[netip.Addr]producer.SamplingRateSystem),
		mute:         NewBatchMute(cfg.ErrInt, cfg.ErrCnt),
	}
	if f.producer != nil {
		f.producer = debug.WrapPanicProducer(f.producer)
	}
	if f.logger == nil {
		f.logger = defaultLogger()
	}
	return f
}

// samplingRateSystem keeps sampling rates apart per exporter address.
func (f *Forwarder) samplingRateSystem(exporter netip.Addr) producer.SamplingRateSystem {
	f.samplinglock.RLock()
	s, ok := f.sampling[exporter]
	f.samplinglock.RUnlock()
	if ok {
		return s
	}

	f.samplinglock.Lock()
	defer f.samplinglock.Unlock()
	if s, ok = f.sampling[exporter]; !ok {
		s = producer.CreateSamplingSystem()
		f.sampling[exporter] = s
	}
	return s
}

// Stages of the output pipeline, used to label forwarding errors.
const (
	stageProduce = "produce"
	stageFormat  = "format"
	stageSend    = "send"
)

func (f *Forwarder) formatSend(flowMessageSet []*producer.FlowMessage) (string, error) {
	for _, msg := range flowMessageSet {
		f.enricher.Enrich(msg)
		if f.format == nil {
			continue
		}
		key, data, err := f.format.Format(msg)
		if err != nil {
			return stageFormat, err
		}
		if f.transport != nil {
			if err = f.transport.Send(key, data); err != nil {
				return stageSend, err
			}
		}
	}
	return "", nil
}

// Forward runs one decoded packet through the output pipeline.
func (f *Forwarder) Forward(exporter netip.AddrPort, packet interface{}) error {
	_, err := f.forward(exporter, packet)
	return err
}

func (f *Forwarder) forward(exporter netip.AddrPort, packet interface{}) (string, error) {
	if f.producer == nil {
		return "", nil
	}
	args := &producer.ProduceArgs{
		SamplingRateSystem: f.samplingRateSystem(exporter.Addr().Unmap()),
		Src:                exporter,
		TimeReceived:       time.Now(),
	}
	flowMessageSet, err := f.producer.Produce(packet, args)
	defer producer.Release(flowMessageSet)
	if err != nil {
		return stageProduce, err
	}
	return f.formatSend(flowMessageSet)
}

// report mutes per stage; a producer panic counts as its own kind.
func (f *Forwarder) report(exporter netip.AddrPort, version int, stage string, err error) {
	kind := stage
	if errors.Is(err, debug.ErrPanic) {
		kind = "panic"
	}
	f.mute.Log(f.logger, kind, "forwarding errors", func() {
		f.logger.WithError(err).
			WithField("exporter", exporter.String()).
			WithField("version", version).
			WithField("stage", kind).
			Error("error forwarding flows")
	})
}

func (f *Forwarder) OnNetFlow5(exporter netip.AddrPort, packet *netflowlegacy.PacketNetFlowV5) {
	if stage, err := f.forward(exporter, packet); err != nil {
		f.report(exporter, 5, stage, err)
	}
}

func (f *Forwarder) OnNetFlow9(exporter netip.AddrPort, packet *netflow.NFv9Packet) {
	if stage, err := f.forward(exporter, packet); err != nil {
		f.report(exporter, 9, stage, err)
	}
}

func (f *Forwarder) Close() {
	if f.producer != nil {
		f.producer.Close()
	}
}
