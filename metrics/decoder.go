package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/netsampler/nfcollector/utils"

	"github.com/prometheus/client_golang/prometheus"
)

func PromDecoderWrapper(wrapped utils.DecoderFunc, name string) utils.DecoderFunc {
	return func(msg interface{}) error {
		pkt, ok := msg.(*utils.Message)
		if !ok {
			return fmt.Errorf("flow is not *Message")
		}
		remote := pkt.Src.Addr().Unmap().String()
		localIP := pkt.Dst.Addr().Unmap().String()
		port := strconv.FormatUint(uint64(pkt.Dst.Port()), 10)
		size := len(pkt.Payload)

		labels := prometheus.Labels{
			"remote_ip":  remote,
			"local_ip":   localIP,
			"local_port": port,
			"type":       name,
		}
		MetricTrafficBytes.With(labels).Add(float64(size))
		MetricTrafficPackets.With(labels).Inc()
		MetricPacketSizeSum.With(labels).Observe(float64(size))

		timeTrackStart := time.Now().UTC()

		err := wrapped(msg)

		timeTrackStop := time.Now().UTC()

		DecoderTime.With(
			prometheus.Labels{
				"name": name,
			}).
			Observe(float64((timeTrackStop.Sub(timeTrackStart)).Nanoseconds()) / 1000)

		if err != nil {
			DecoderErrors.With(
				prometheus.Labels{
					"name": name,
				}).
				Inc()
		}
		return err
	}
}

// PromErrorCallback counts every error event of a collector, then calls
// wrapped when it is set.
func PromErrorCallback(wrapped func(utils.ErrorEvent)) func(utils.ErrorEvent) {
	return func(event utils.ErrorEvent) {
		router := "unk"
		if event.Exporter.IsValid() {
			router = event.Exporter.Addr().Unmap().String()
		}
		NetFlowErrors.With(
			prometheus.Labels{
				"router": router,
				"error":  event.Kind(),
				"fatal":  strconv.FormatBool(event.Fatal),
			}).
			Inc()
		if wrapped != nil {
			wrapped(event)
		}
	}
}
