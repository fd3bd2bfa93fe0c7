package utils

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"net/netip"
	"sync"
	"testing"

	"github.com/netsampler/nfcollector/decoders/netflow"
	"github.com/netsampler/nfcollector/decoders/netflowlegacy"
	"github.com/netsampler/nfcollector/utils/debug"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingCallbacks struct {
	lock      sync.Mutex
	exporters []netip.AddrPort
	v5        []*netflowlegacy.PacketNetFlowV5
	v9        []*netflow.NFv9Packet
	panics    bool
}

func (r *recordingCallbacks) OnNetFlow5(exporter netip.AddrPort, packet *netflowlegacy.PacketNetFlowV5) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.panics {
		panic("callback failure")
	}
	r.exporters = append(r.exporters, exporter)
	r.v5 = append(r.v5, packet)
}

func (r *recordingCallbacks) OnNetFlow9(exporter netip.AddrPort, packet *netflow.NFv9Packet) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.panics {
		panic("callback failure")
	}
	r.exporters = append(r.exporters, exporter)
	r.v9 = append(r.v9, packet)
}

type eventRecorder struct {
	lock   sync.Mutex
	events []ErrorEvent
}

func (e *eventRecorder) record(event ErrorEvent) {
	e.lock.Lock()
	e.events = append(e.events, event)
	e.lock.Unlock()
}

func (e *eventRecorder) take() []ErrorEvent {
	e.lock.Lock()
	defer e.lock.Unlock()
	events := e.events
	e.events = nil
	return events
}

var testExporter = netip.MustParseAddrPort("192.0.2.1:2055")

func newTestCollector(t *testing.T) (*Collector, *recordingCallbacks, *eventRecorder) {
	t.Helper()
	logger := logrus.New()
	logger.Out = io.Discard

	callbacks := &recordingCallbacks{}
	recorder := &eventRecorder{}
	c := NewCollector(&CollectorConfig{
		Callbacks:     callbacks,
		ErrorCallback: recorder.record,
		Logger:        logger,
	})
	return c, callbacks, recorder
}

func receive(c *Collector, payload []byte) {
	c.Receive(&Message{Src: testExporter, Payload: payload})
}

// 24 bytes per record
var testFields = []netflow.Field{
	{Type: netflow.NFV9_FIELD_IPV4_SRC_ADDR, Length: 4},
	{Type: netflow.NFV9_FIELD_IPV4_DST_ADDR, Length: 4},
	{Type: netflow.NFV9_FIELD_L4_SRC_PORT, Length: 2},
	{Type: netflow.NFV9_FIELD_L4_DST_PORT, Length: 2},
	{Type: netflow.NFV9_FIELD_PROTOCOL, Length: 1},
	{Type: netflow.NFV9_FIELD_IN_BYTES, Length: 4},
	{Type: netflow.NFV9_FIELD_IN_PKTS, Length: 4},
	{Type: netflow.NFV9_FIELD_TCP_FLAGS, Length: 1},
	{Type: netflow.NFV9_FIELD_SRC_TOS, Length: 1},
	{Type: netflow.NFV9_FIELD_SRC_MASK, Length: 1},
}

var testRecordBytes = []byte{
	10, 0, 0, 1,
	10, 0, 0, 2,
	0x04, 0xd2, // 1234
	0x00, 0x50, // 80
	6,
	0x00, 0x00, 0x05, 0xdc, // 1500 bytes
	0x00, 0x00, 0x00, 0x03, // 3 packets
	0x12,
	0,
	24,
}

func testRecord() netflow.DataRecord {
	values := make([]netflow.DataField, len(testFields))
	offset := 0
	for i, field := range testFields {
		values[i] = netflow.NewDataField(field.Type, testRecordBytes[offset:offset+int(field.Length)])
		offset += int(field.Length)
	}
	return netflow.DataRecord{Values: values}
}

func encodeNFv9(t *testing.T, flowSets ...netflow.FlowSet) []byte {
	t.Helper()
	data, err := netflow.EncodeMessage(&netflow.NFv9Packet{
		SystemUptime:   0x1000,
		UnixSeconds:    0x65000000,
		SequenceNumber: 1,
		SourceId:       42,
		FlowSets:       flowSets,
	})
	require.NoError(t, err)
	return data
}

func templateSet(ids ...uint16) netflow.TemplateFlowSet {
	records := make([]netflow.TemplateRecord, len(ids))
	for i, id := range ids {
		records[i] = netflow.TemplateRecord{TemplateId: id, FieldCount: uint16(len(testFields)), Fields: testFields}
	}
	return netflow.TemplateFlowSet{Records: records}
}

func dataSet(id uint16, count int) netflow.DataFlowSet {
	records := make([]netflow.DataRecord, count)
	for i := range records {
		records[i] = testRecord()
	}
	return netflow.DataFlowSet{FlowSetHeader: netflow.FlowSetHeader{Id: id}, Records: records}
}

// addrPortTemplate is 12 bytes: addresses and ports only.
var addrPortTemplate = netflow.TemplateFlowSet{Records: []netflow.TemplateRecord{{
	TemplateId: 257,
	FieldCount: 4,
	Fields:     testFields[:4],
}}}

// nfv9Raw builds a version 9 datagram around hand written flowset bytes.
func nfv9Raw(flowSets ...[]byte) []byte {
	buf := []byte{
		0x00, 0x09, 0x00, 0x01,
		0x00, 0x00, 0x10, 0x00,
		0x65, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x02,
		0x00, 0x00, 0x00, 0x2a,
	}
	for _, fs := range flowSets {
		buf = append(buf, fs...)
	}
	return buf
}

func rawFlowSet(id, length uint16, body []byte) []byte {
	buf := make([]byte, 4, 4+len(body))
	binary.BigEndian.PutUint16(buf, id)
	binary.BigEndian.PutUint16(buf[2:], length)
	return append(buf, body...)
}

func TestCollectorNetFlow9(t *testing.T) {
	c, callbacks, recorder := newTestCollector(t)

	// data before its template in the same datagram
	receive(c, encodeNFv9(t, dataSet(256, 2), templateSet(256)))

	assert.Empty(t, recorder.take())
	require.Len(t, callbacks.v9, 1)
	assert.Equal(t, testExporter, callbacks.exporters[0])
	assert.Equal(t, 1, c.Templates().Len())

	packet := callbacks.v9[0]
	assert.Equal(t, uint32(42), packet.SourceId)
	require.Len(t, packet.FlowSets, 2)
	data, ok := packet.FlowSets[0].(netflow.DataFlowSet)
	require.True(t, ok, "got %T", packet.FlowSets[0])
	require.Len(t, data.Records, 2)

	values := data.Records[0].Values
	assert.Equal(t, netip.MustParseAddr("10.0.0.1"), values[0].Value)
	assert.Equal(t, netip.MustParseAddr("10.0.0.2"), values[1].Value)
	assert.Equal(t, uint64(1234), values[2].Value)
	assert.Equal(t, uint64(80), values[3].Value)
	assert.Equal(t, uint64(6), values[4].Value)
	assert.Equal(t, "Protocol = TCP", values[4].Render())
}

func TestCollectorNetFlow5(t *testing.T) {
	c, callbacks, recorder := newTestCollector(t)

	data, err := netflowlegacy.EncodeMessage(&netflowlegacy.PacketNetFlowV5{
		SysUptime:    1000,
		UnixSecs:     1700000000,
		FlowSequence: 7,
		Records: []netflowlegacy.RecordsNetFlowV5{
			{SrcAddr: 0x0a000001, DstAddr: 0x0a000002, SrcPort: 1234, DstPort: 80, Proto: 6, DPkts: 3, DOctets: 1500},
		},
	})
	require.NoError(t, err)
	receive(c, data)

	assert.Empty(t, recorder.take())
	require.Len(t, callbacks.v5, 1)
	packet := callbacks.v5[0]
	assert.Equal(t, uint16(5), packet.Version)
	assert.Equal(t, uint16(1), packet.Count)
	assert.Equal(t, uint32(7), packet.FlowSequence)
	require.Len(t, packet.Records, 1)
	assert.Equal(t, uint32(0x0a000001), packet.Records[0].SrcAddr)
	assert.Equal(t, uint16(80), packet.Records[0].DstPort)
}

func TestCollectorUnsupportedVersion(t *testing.T) {
	c, callbacks, recorder := newTestCollector(t)

	receive(c, []byte{0x00, 0x0a, 0x00, 0x00})

	events := recorder.take()
	require.Len(t, events, 1)
	assert.True(t, events[0].Fatal)
	assert.Equal(t, uint16(10), events[0].Version)
	assert.True(t, errors.Is(events[0].Err, ErrUnsupportedVersion))
	assert.Equal(t, "unsupported_version", events[0].Kind())
	assert.Empty(t, callbacks.v5)
	assert.Empty(t, callbacks.v9)
}

func TestCollectorMalformedDatagrams(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		kind    string
	}{
		{
			name:    "single byte",
			payload: []byte{0x00},
			kind:    "truncated",
		},
		{
			name:    "flowset length 3",
			payload: nfv9Raw(rawFlowSet(300, 3, nil)),
			kind:    "invalid_flowset_length",
		},
		{
			name: "data flowset 10 bytes short",
			// declares one 24 byte record, carries 14 bytes
			payload: nfv9Raw(rawFlowSet(256, 28, testRecordBytes[:14])),
			kind:    "truncated_record",
		},
		{
			name: "data flowset 10 bytes short of a 12 byte record",
			// two bytes left, the flowset is not 4 byte aligned
			payload: nfv9Raw(rawFlowSet(257, 6, testRecordBytes[:2])),
			kind:    "truncated_record",
		},
		{
			name:    "truncated v5",
			payload: []byte{0x00, 0x05, 0x00, 0x01, 0x00, 0x00},
			kind:    "truncated",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, callbacks, recorder := newTestCollector(t)
			receive(c, encodeNFv9(t, templateSet(256), addrPortTemplate))
			require.Empty(t, recorder.take())
			require.Len(t, callbacks.v9, 1)

			receive(c, tt.payload)

			events := recorder.take()
			require.Len(t, events, 1)
			assert.True(t, events[0].Fatal)
			assert.Equal(t, tt.kind, events[0].Kind())
			assert.Equal(t, testExporter, events[0].Exporter)
			assert.Len(t, callbacks.v9, 1)
			assert.Empty(t, callbacks.v5)

			// the next datagram is decoded with the template learned before
			receive(c, encodeNFv9(t, dataSet(256, 1)))
			assert.Empty(t, recorder.take())
			require.Len(t, callbacks.v9, 2)
			_, ok := callbacks.v9[1].FlowSets[0].(netflow.DataFlowSet)
			assert.True(t, ok)
			assert.Equal(t, 2, c.Templates().Len())
		})
	}
}

func TestCollectorTruncatedRecordContext(t *testing.T) {
	c, _, recorder := newTestCollector(t)
	receive(c, encodeNFv9(t, templateSet(256)))
	receive(c, nfv9Raw(rawFlowSet(256, 28, testRecordBytes[:14])))

	events := recorder.take()
	require.Len(t, events, 1)
	assert.Equal(t, uint16(9), events[0].Version)
	assert.Equal(t, uint16(256), events[0].FlowSetId)
	assert.Equal(t, uint16(256), events[0].TemplateId)

	var pipeErr *PipeMessageError
	require.ErrorAs(t, events[0].Err, &pipeErr)
	assert.Equal(t, testExporter, pipeErr.Message.Src)
	assert.True(t, errors.Is(events[0].Err, netflow.ErrTruncatedFlowRecord))
}

func TestCollectorCacheFull(t *testing.T) {
	c, callbacks, recorder := newTestCollector(t)

	ids := make([]uint16, 256)
	for i := range ids {
		ids[i] = uint16(256 + i)
	}
	receive(c, encodeNFv9(t, templateSet(ids...)))

	assert.Equal(t, netflow.DefaultMaxTemplates, c.Templates().Len())
	events := recorder.take()
	require.Len(t, events, 1)
	assert.False(t, events[0].Fatal)
	assert.Equal(t, "cache_full", events[0].Kind())
	assert.Equal(t, uint16(511), events[0].TemplateId)
	assert.Equal(t, uint16(0), events[0].FlowSetId)

	// non-fatal: the packet is still delivered
	require.Len(t, callbacks.v9, 1)
	templates, ok := callbacks.v9[0].FlowSets[0].(netflow.TemplateFlowSet)
	require.True(t, ok)
	assert.Len(t, templates.Records, 256)
}

func TestCollectorZeroLengthField(t *testing.T) {
	c, callbacks, recorder := newTestCollector(t)

	body := []byte{
		0x01, 0x2c, 0x00, 0x02, // template 300, 2 fields
		0x00, 0x08, 0x00, 0x04,
		0x00, 0x0c, 0x00, 0x00, // zero length
	}
	receive(c, nfv9Raw(rawFlowSet(0, uint16(4+len(body)), body)))

	events := recorder.take()
	require.Len(t, events, 1)
	assert.False(t, events[0].Fatal)
	assert.Equal(t, "invalid_field_length", events[0].Kind())
	assert.Equal(t, uint16(300), events[0].TemplateId)
	assert.Equal(t, 0, c.Templates().Len())
	assert.Len(t, callbacks.v9, 1)
}

func TestCollectorRecoversPanic(t *testing.T) {
	c, callbacks, recorder := newTestCollector(t)
	callbacks.panics = true

	receive(c, encodeNFv9(t, templateSet(256)))

	// the packet reached the callback, so it was not dropped
	events := recorder.take()
	require.Len(t, events, 1)
	assert.False(t, events[0].Fatal)
	assert.Equal(t, "panic", events[0].Kind())
	assert.True(t, errors.Is(events[0].Err, debug.ErrPanic))

	var pErr *debug.PanicErrorMessage
	require.ErrorAs(t, events[0].Err, &pErr)
	assert.Equal(t, "callback failure", pErr.Inner)
	assert.NotEmpty(t, pErr.Stacktrace)

	v5, err := netflowlegacy.EncodeMessage(&netflowlegacy.PacketNetFlowV5{
		Records: []netflowlegacy.RecordsNetFlowV5{{SrcAddr: 0x0a000001}},
	})
	require.NoError(t, err)
	receive(c, v5)
	events = recorder.take()
	require.Len(t, events, 1)
	assert.False(t, events[0].Fatal)
	assert.Equal(t, uint16(5), events[0].Version)

	callbacks.panics = false
	receive(c, encodeNFv9(t, dataSet(256, 1)))
	assert.Empty(t, recorder.take())
	assert.Len(t, callbacks.v9, 1)
}

func TestCollectorDecodeFlow(t *testing.T) {
	c, callbacks, _ := newTestCollector(t)

	assert.Error(t, c.DecodeFlow("not a message"))
	assert.NoError(t, c.DecodeFlow(&Message{Src: testExporter, Payload: encodeNFv9(t, templateSet(256))}))
	assert.Len(t, callbacks.v9, 1)
}

func TestCollectorReceiveBytes(t *testing.T) {
	c, callbacks, recorder := newTestCollector(t)

	c.ReceiveBytes(encodeNFv9(t, templateSet(256), dataSet(256, 3)))
	assert.Empty(t, recorder.take())
	require.Len(t, callbacks.v9, 1)
	assert.False(t, callbacks.exporters[0].IsValid())

	c.Close()
	assert.Equal(t, 0, c.Templates().Len())
}

func TestCollectorSharedTemplates(t *testing.T) {
	templates := netflow.CreateTemplateSystem(netflow.DefaultMaxTemplates)
	callbacks := &recordingCallbacks{}
	logger := logrus.New()
	logger.Out = io.Discard

	first := NewCollector(&CollectorConfig{Callbacks: callbacks, Templates: templates, Logger: logger})
	second := NewCollector(&CollectorConfig{Callbacks: callbacks, Templates: templates, Logger: logger})

	first.ReceiveBytes(encodeNFv9(t, templateSet(256)))
	second.ReceiveBytes(encodeNFv9(t, dataSet(256, 1)))

	require.Len(t, callbacks.v9, 2)
	_, ok := callbacks.v9[1].FlowSets[0].(netflow.DataFlowSet)
	assert.True(t, ok)
}

func TestCollectorLogsEvents(t *testing.T) {
	var out bytes.Buffer
	logger := logrus.New()
	logger.Out = &out
	logger.Formatter = &logrus.JSONFormatter{}

	c := NewCollector(&CollectorConfig{Callbacks: &recordingCallbacks{}, Logger: logger})
	c.Receive(&Message{Src: testExporter, Payload: nfv9Raw(rawFlowSet(300, 3, nil))})

	assert.Contains(t, out.String(), `"exporter":"192.0.2.1:2055"`)
	assert.Contains(t, out.String(), `"kind":"invalid_flowset_length"`)
	assert.Contains(t, out.String(), `"flowset_id":300`)
	assert.Contains(t, out.String(), `"level":"error"`)
}

func TestNewCollectorWithoutCallbacks(t *testing.T) {
	assert.Panics(t, func() { NewCollector(&CollectorConfig{}) })
	assert.Panics(t, func() { NewCollector(nil) })
}
