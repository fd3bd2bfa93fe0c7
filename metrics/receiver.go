package metrics

import (
	"github.com/netsampler/nfcollector/utils"

	"github.com/prometheus/client_golang/prometheus"
)

// ReceiverMetric counts the datagrams a non-blocking listener dropped
// because its decode queue was full.
type ReceiverMetric struct {
	packets *prometheus.CounterVec
	bytes   *prometheus.CounterVec
}

// NewReceiverMetric binds the drop counters to one listener, named the way
// the listener is configured (e.g. netflow://:2055).
func NewReceiverMetric(listener string) *ReceiverMetric {
	labels := prometheus.Labels{"listener": listener}
	return &ReceiverMetric{
		packets: MetricReceivedDroppedPackets.MustCurryWith(labels),
		bytes:   MetricReceivedDroppedBytes.MustCurryWith(labels),
	}
}

// Dropped counts the datagram against its exporter.
func (r *ReceiverMetric) Dropped(pkt utils.Message) {
	labels := prometheus.Labels{
		"remote_ip": pkt.Src.Addr().Unmap().String(),
	}
	r.packets.With(labels).Inc()
	r.bytes.With(labels).Add(float64(len(pkt.Payload)))
}
