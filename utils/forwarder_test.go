package utils

import (
	"bytes"
	"errors"
	"net/netip"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/netsampler/nfcollector/decoders/netflow"
	"github.com/netsampler/nfcollector/decoders/netflowlegacy"
	"github.com/netsampler/nfcollector/producer"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type keepFormat struct {
	fail bool
}

func (f *keepFormat) Format(data interface{}) ([]byte, []byte, error) {
	if f.fail {
		return nil, nil, errors.New("cannot format")
	}
	msg := data.(*producer.FlowMessage)
	return msg.Key(), []byte(msg.String()), nil
}

type memoryTransport struct {
	lock sync.Mutex
	keys []string
	data []string
}

func (t *memoryTransport) Send(key, data []byte) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.keys = append(t.keys, string(key))
	t.data = append(t.data, string(data))
	return nil
}

type panicProducer struct{}

func (panicProducer) Produce(msg interface{}, args *producer.ProduceArgs) ([]*producer.FlowMessage, error) {
	panic("producer failure")
}

func (panicProducer) Close() {}

func newTestForwarder(t *testing.T, f *keepFormat, tr *memoryTransport) *Forwarder {
	t.Helper()
	p, err := producer.CreateProducerWithConfig(nil)
	require.NoError(t, err)
	return NewForwarder(&ForwarderConfig{
		Producer:  p,
		Format:    f,
		Transport: tr,
	})
}

func sampledPacket(rate []byte) *netflow.NFv9Packet {
	values := []netflow.DataField{
		netflow.NewDataField(netflow.NFV9_FIELD_IPV4_SRC_ADDR, []byte{10, 0, 0, 1}),
	}
	if rate != nil {
		values = append(values, netflow.NewDataField(netflow.NFV9_FIELD_SAMPLING_INTERVAL, rate))
	}
	return &netflow.NFv9Packet{
		Version:  9,
		SourceId: 1,
		FlowSets: []netflow.FlowSet{
			netflow.DataFlowSet{
				FlowSetHeader: netflow.FlowSetHeader{Id: 256},
				Records:       []netflow.DataRecord{{Values: values}},
			},
		},
	}
}

func TestForwarderNetFlow5(t *testing.T) {
	tr := &memoryTransport{}
	f := newTestForwarder(t, &keepFormat{}, tr)
	defer f.Close()

	f.OnNetFlow5(testExporter, &netflowlegacy.PacketNetFlowV5{
		Version: 5,
		Count:   1,
		Records: []netflowlegacy.RecordsNetFlowV5{
			{SrcAddr: 0x0a000001, DstAddr: 0x0a000002, SrcPort: 1234, DstPort: 80, Proto: 6},
		},
	})

	require.Len(t, tr.data, 1)
	assert.Contains(t, tr.data[0], "type=NETFLOW_V5")
	assert.Contains(t, tr.data[0], "src_addr=10.0.0.1")
	assert.Contains(t, tr.data[0], "dst_port=80")
	assert.Equal(t, "192.0.2.1", tr.keys[0])
}

func TestForwarderSamplingPerExporter(t *testing.T) {
	tr := &memoryTransport{}
	f := newTestForwarder(t, &keepFormat{}, tr)
	other := netip.MustParseAddrPort("198.51.100.7:2055")

	f.OnNetFlow9(testExporter, sampledPacket([]byte{0x00, 0x00, 0x04, 0x00}))
	f.OnNetFlow9(testExporter, sampledPacket(nil))
	f.OnNetFlow9(other, sampledPacket(nil))

	require.Len(t, tr.data, 3)
	assert.Contains(t, tr.data[0], "sampling_rate=1024")
	assert.Contains(t, tr.data[1], "sampling_rate=1024")
	assert.Contains(t, tr.data[2], "sampling_rate=0")
}

func TestForwarderReportsErrors(t *testing.T) {
	var out bytes.Buffer
	logger := logrus.New()
	logger.Out = &out
	logger.Formatter = &logrus.JSONFormatter{}

	tr := &memoryTransport{}
	f := NewForwarder(&ForwarderConfig{
		Producer:  panicProducer{},
		Format:    &keepFormat{},
		Transport: tr,
		Logger:    logger,
	})
	f.OnNetFlow9(testExporter, sampledPacket(nil))
	assert.Empty(t, tr.data)
	assert.Contains(t, out.String(), `"exporter":"192.0.2.1:2055"`)
	assert.Contains(t, out.String(), "producer failure")
	assert.Contains(t, out.String(), `"stage":"panic"`)

	out.Reset()
	p, err := producer.CreateProducerWithConfig(nil)
	require.NoError(t, err)
	f = NewForwarder(&ForwarderConfig{
		Producer:  p,
		Format:    &keepFormat{fail: true},
		Transport: tr,
		Logger:    logger,
	})
	err = f.Forward(testExporter, sampledPacket(nil))
	assert.EqualError(t, err, "cannot format")
	f.OnNetFlow9(testExporter, sampledPacket(nil))
	assert.Contains(t, out.String(), "cannot format")
	assert.Contains(t, out.String(), `"stage":"format"`)
	assert.Empty(t, tr.data)
}

type failTransport struct{}

func (failTransport) Send(key, data []byte) error {
	return errors.New("broker unreachable")
}

func TestForwarderMutesPerStage(t *testing.T) {
	var out bytes.Buffer
	logger := logrus.New()
	logger.Out = &out
	logger.Formatter = &logrus.JSONFormatter{}

	p, err := producer.CreateProducerWithConfig(nil)
	require.NoError(t, err)
	f := NewForwarder(&ForwarderConfig{
		Producer:  p,
		Format:    &keepFormat{},
		Transport: failTransport{},
		Logger:    logger,
		ErrCnt:    1,
		ErrInt:    time.Hour,
	})
	for i := 0; i < 4; i++ {
		f.OnNetFlow9(testExporter, sampledPacket(nil))
	}
	assert.Equal(t, 1, strings.Count(out.String(), "broker unreachable"))
	assert.Contains(t, out.String(), `"stage":"send"`)
	assert.Contains(t, out.String(), "too many forwarding errors, muting")
	assert.Equal(t, 3, f.mute.skipped[stageSend])
}

func TestForwarderWithoutProducer(t *testing.T) {
	f := NewForwarder(&ForwarderConfig{})
	assert.NoError(t, f.Forward(testExporter, sampledPacket(nil)))
	f.Close()
}
