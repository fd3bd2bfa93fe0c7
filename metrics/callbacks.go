package metrics

import (
	"net/netip"
	"strconv"

	"github.com/netsampler/nfcollector/decoders/netflow"
	"github.com/netsampler/nfcollector/decoders/netflowlegacy"
	"github.com/netsampler/nfcollector/utils"

	"github.com/prometheus/client_golang/prometheus"
)

type promCallbacks struct {
	wrapped utils.Callbacks
	tracker *utils.MissingFlowsTracker
}

// PromCallbacksWrapper records packet, flowset and sequence metrics before
// handing each packet to wrapped. tracker may be nil.
func PromCallbacksWrapper(wrapped utils.Callbacks, tracker *utils.MissingFlowsTracker) utils.Callbacks {
	return &promCallbacks{
		wrapped: wrapped,
		tracker: tracker,
	}
}

func routerKey(exporter netip.AddrPort) string {
	if !exporter.IsValid() {
		return "unk"
	}
	return exporter.Addr().Unmap().String()
}

func (p *promCallbacks) countMissing(key, router, version string, seqnum uint32, count uint16) {
	if p.tracker == nil {
		return
	}
	missing, reset := p.tracker.CountMissing(key, seqnum, count)
	NetFlowMissingFlows.With(
		prometheus.Labels{
			"router":  router,
			"version": version,
			"key":     key,
		}).
		Set(float64(missing))
	if reset > 0 {
		NetFlowSequenceResets.With(
			prometheus.Labels{
				"router":  router,
				"version": version,
			}).
			Add(float64(reset))
	}
}

func (p *promCallbacks) OnNetFlow5(exporter netip.AddrPort, packet *netflowlegacy.PacketNetFlowV5) {
	key := routerKey(exporter)
	NetFlowStats.With(
		prometheus.Labels{
			"router":  key,
			"version": "5",
		}).
		Inc()
	NetFlowSetStatsSum.With(
		prometheus.Labels{
			"router":  key,
			"version": "5",
			"type":    "DataFlowSet",
		}).
		Inc()
	NetFlowSetRecordsStatsSum.With(
		prometheus.Labels{
			"router":  key,
			"version": "5",
			"type":    "DataFlowSet",
		}).
		Add(float64(len(packet.Records)))

	delay := NetFlowTimeStatsSum.With(
		prometheus.Labels{
			"router":  key,
			"version": "5",
		})
	for _, record := range packet.Records {
		delay.Observe(float64(packet.SysUptime-record.Last) / 1000)
	}

	p.countMissing(utils.NetFlow5Key(exporter, packet.EngineType, packet.EngineId), key, "5", packet.FlowSequence, packet.Count)

	p.wrapped.OnNetFlow5(exporter, packet)
}

func (p *promCallbacks) OnNetFlow9(exporter netip.AddrPort, packet *netflow.NFv9Packet) {
	key := routerKey(exporter)
	recordCommonNetFlowMetrics(9, key, packet)

	p.countMissing(utils.NetFlow9Key(exporter, packet.SourceId), key, "9", packet.SequenceNumber, 1)

	p.wrapped.OnNetFlow9(exporter, packet)
}

func recordCommonNetFlowMetrics(version uint16, key string, packet *netflow.NFv9Packet) {
	versionStr := strconv.Itoa(int(version))
	NetFlowStats.With(
		prometheus.Labels{
			"router":  key,
			"version": versionStr,
		}).
		Inc()

	delay := NetFlowTimeStatsSum.With(
		prometheus.Labels{
			"router":  key,
			"version": versionStr,
		})

	for _, fs := range packet.FlowSets {
		var typeStr string
		var count int
		switch fsConv := fs.(type) {
		case netflow.TemplateFlowSet:
			typeStr = "TemplateFlowSet"
			count = len(fsConv.Records)
		case netflow.OptionsTemplateFlowSet:
			typeStr = "OptionsTemplateFlowSet"
		case netflow.RawFlowSet:
			typeStr = "RawFlowSet"
		case netflow.UnknownFlowSet:
			typeStr = "UnknownFlowSet"
		case netflow.DataFlowSet:
			typeStr = "DataFlowSet"
			count = len(fsConv.Records)
			for _, record := range fsConv.Records {
				for _, value := range record.Values {
					if value.LengthMismatch {
						NetFlowFieldLengthMismatch.With(
							prometheus.Labels{
								"router": key,
								"field":  netflow.NFv9TypeToString(value.Type),
							}).
							Inc()
					}
					if value.Type == netflow.NFV9_FIELD_LAST_SWITCHED {
						if last, ok := value.Value.(uint64); ok {
							delay.Observe(float64(packet.SystemUptime-uint32(last)) / 1000)
						}
					}
				}
			}
		default:
			continue
		}

		NetFlowSetStatsSum.With(
			prometheus.Labels{
				"router":  key,
				"version": versionStr,
				"type":    typeStr,
			}).
			Inc()
		NetFlowSetRecordsStatsSum.With(
			prometheus.Labels{
				"router":  key,
				"version": versionStr,
				"type":    typeStr,
			}).
			Add(float64(count))
	}
}
