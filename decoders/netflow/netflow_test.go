package netflow

import (
	"bytes"
	"encoding/binary"
	"errors"
	"net/netip"
	"testing"

	"github.com/netsampler/nfcollector/decoders/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nfv9Datagram assembles a version 9 packet from already encoded flowsets.
func nfv9Datagram(count uint16, flowSets ...[]byte) []byte {
	buf := []byte{
		0x00, 0x09, // version
		byte(count >> 8), byte(count),
		0x00, 0x00, 0x10, 0x00, // uptime
		0x65, 0x00, 0x00, 0x00, // unix seconds
		0x00, 0x00, 0x00, 0x01, // sequence
		0x00, 0x00, 0x00, 0x2a, // source id
	}
	for _, fs := range flowSets {
		buf = append(buf, fs...)
	}
	return buf
}

// rawFlowSet writes a flowset header with an explicit length.
func rawFlowSet(id, length uint16, body []byte) []byte {
	buf := make([]byte, 4, 4+len(body))
	binary.BigEndian.PutUint16(buf, id)
	binary.BigEndian.PutUint16(buf[2:], length)
	return append(buf, body...)
}

func templateBody(id uint16, fields ...Field) []byte {
	buf := make([]byte, 4, 4+4*len(fields))
	binary.BigEndian.PutUint16(buf, id)
	binary.BigEndian.PutUint16(buf[2:], uint16(len(fields)))
	for _, field := range fields {
		buf = binary.BigEndian.AppendUint16(buf, field.Type)
		buf = binary.BigEndian.AppendUint16(buf, field.Length)
	}
	return buf
}

func templateFlowSet(bodies ...[]byte) []byte {
	body := bytes.Join(bodies, nil)
	return rawFlowSet(0, uint16(4+len(body)), body)
}

var flowFields = []Field{
	{Type: NFV9_FIELD_IPV4_SRC_ADDR, Length: 4},
	{Type: NFV9_FIELD_IPV4_DST_ADDR, Length: 4},
	{Type: NFV9_FIELD_L4_SRC_PORT, Length: 2},
	{Type: NFV9_FIELD_L4_DST_PORT, Length: 2},
	{Type: NFV9_FIELD_PROTOCOL, Length: 1},
}

var flowRecord = []byte{
	10, 0, 0, 1,
	10, 0, 0, 2,
	0x04, 0xd2,
	0x00, 0x50,
	0x06,
}

func decode(t *testing.T, data []byte, ts NetFlowTemplateSystem) (*NFv9Packet, error) {
	t.Helper()
	var packet NFv9Packet
	err := DecodeMessageVersion(bytes.NewBuffer(data), ts, &packet)
	return &packet, err
}

func TestDecodeTemplateAndData(t *testing.T) {
	ts := CreateTemplateSystem(DefaultMaxTemplates)
	data := nfv9Datagram(2,
		templateFlowSet(templateBody(256, flowFields...)),
		rawFlowSet(256, 20, append(append([]byte{}, flowRecord...), 0, 0, 0)),
	)

	packet, err := decode(t, data, ts)
	require.NoError(t, err)
	assert.Equal(t, uint16(9), packet.Version)
	assert.Equal(t, uint16(2), packet.Count)
	assert.Equal(t, uint32(42), packet.SourceId)
	require.Len(t, packet.FlowSets, 2)

	templatefs, ok := packet.FlowSets[0].(TemplateFlowSet)
	require.True(t, ok)
	require.Len(t, templatefs.Records, 1)
	assert.Equal(t, uint16(5), templatefs.Records[0].FieldCount)
	assert.Equal(t, 13, templatefs.Records[0].FlowSize())

	datafs, ok := packet.FlowSets[1].(DataFlowSet)
	require.True(t, ok)
	assert.Equal(t, uint16(256), datafs.Id)
	assert.Equal(t, uint16(20), datafs.Length)
	require.Len(t, datafs.Records, 1)

	values := datafs.Records[0].Values
	require.Len(t, values, 5)
	assert.Equal(t, netip.MustParseAddr("10.0.0.1"), values[0].Value)
	assert.Equal(t, netip.MustParseAddr("10.0.0.2"), values[1].Value)
	assert.Equal(t, uint64(1234), values[2].Value)
	assert.Equal(t, uint64(80), values[3].Value)
	assert.Equal(t, uint64(6), values[4].Value)
	assert.Equal(t, "Protocol = TCP", values[4].Render())
	assert.Equal(t, "IPv4 Source Address = 10.0.0.1", values[0].Render())
	for _, value := range values {
		assert.False(t, value.LengthMismatch)
	}

	// decoded values must not alias the datagram
	data[len(data)-16] = 0xff
	assert.Equal(t, []byte{10, 0, 0, 1}, values[0].Raw)

	assert.Equal(t, 1, ts.Len())
}

func TestDecodeTemplateAfterData(t *testing.T) {
	ts := CreateTemplateSystem(DefaultMaxTemplates)
	data := nfv9Datagram(2,
		rawFlowSet(256, 20, append(append([]byte{}, flowRecord...), 0, 0, 0)),
		templateFlowSet(templateBody(256, flowFields...)),
	)

	packet, err := decode(t, data, ts)
	require.NoError(t, err)
	require.Len(t, packet.FlowSets, 2)
	datafs, ok := packet.FlowSets[0].(DataFlowSet)
	require.True(t, ok)
	require.Len(t, datafs.Records, 1)
	_, ok = packet.FlowSets[1].(TemplateFlowSet)
	assert.True(t, ok)
}

func TestDecodeWithoutTemplate(t *testing.T) {
	ts := CreateTemplateSystem(DefaultMaxTemplates)
	data := nfv9Datagram(1, rawFlowSet(300, 17, flowRecord))

	packet, err := decode(t, data, ts)
	require.NoError(t, err)
	require.Len(t, packet.FlowSets, 1)
	rawfs, ok := packet.FlowSets[0].(RawFlowSet)
	require.True(t, ok)
	assert.Equal(t, flowRecord, rawfs.Records)

	packet, err = decode(t, data, nil)
	require.NoError(t, err)
	_, ok = packet.FlowSets[0].(RawFlowSet)
	assert.True(t, ok)
}

func TestDecodeZeroLengthField(t *testing.T) {
	ts := CreateTemplateSystem(DefaultMaxTemplates)
	data := nfv9Datagram(2, templateFlowSet(
		templateBody(256, Field{Type: NFV9_FIELD_IN_BYTES, Length: 0}),
		templateBody(257, flowFields...),
	))

	packet, err := decode(t, data, ts)
	require.Error(t, err)
	assert.False(t, IsFatal(err))
	assert.True(t, errors.Is(err, ErrInvalidFieldLength))
	require.Len(t, Flatten(err), 1)

	var terr *TemplateError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, uint16(256), terr.TemplateId)

	_, gerr := ts.GetTemplate(256)
	assert.True(t, errors.Is(gerr, ErrTemplateNotFound))
	_, gerr = ts.GetTemplate(257)
	assert.NoError(t, gerr)
	require.Len(t, packet.FlowSets, 1)
}

func TestDecodeEmptyTemplate(t *testing.T) {
	ts := CreateTemplateSystem(DefaultMaxTemplates)
	data := nfv9Datagram(1, templateFlowSet(
		templateBody(256),
		templateBody(257, flowFields...),
	))

	_, err := decode(t, data, ts)
	require.Error(t, err)
	assert.False(t, IsFatal(err))
	assert.True(t, errors.Is(err, ErrEmptyTemplate))
	assert.Equal(t, 1, ts.Len())
}

func TestDecodeRelearnTemplate(t *testing.T) {
	ts := CreateTemplateSystem(DefaultMaxTemplates)
	data := nfv9Datagram(1, templateFlowSet(templateBody(256, flowFields...)))

	_, err := decode(t, data, ts)
	require.NoError(t, err)
	first := ts.GetTemplates()

	_, err = decode(t, data, ts)
	require.NoError(t, err)
	assert.Equal(t, first, ts.GetTemplates())
	assert.Equal(t, 1, ts.Len())
}

func TestDecodeCacheFull(t *testing.T) {
	ts := CreateTemplateSystem(DefaultMaxTemplates)
	var bodies [][]byte
	for i := 0; i < 256; i++ {
		bodies = append(bodies, templateBody(uint16(256+i), Field{Type: NFV9_FIELD_IN_BYTES, Length: 4}))
	}
	// 256 records of 8 bytes fit in one flowset
	data := nfv9Datagram(256, templateFlowSet(bodies...))

	packet, err := decode(t, data, ts)
	require.Error(t, err)
	assert.False(t, IsFatal(err))
	errs := Flatten(err)
	require.Len(t, errs, 1)
	assert.True(t, errors.Is(errs[0], ErrCacheFull))
	assert.Equal(t, DefaultMaxTemplates, ts.Len())
	require.Len(t, packet.FlowSets, 1)
}

func TestDecodeInvalidFlowsetLength(t *testing.T) {
	for _, length := range []uint16{0, 3, 4} {
		ts := CreateTemplateSystem(DefaultMaxTemplates)
		data := nfv9Datagram(1, rawFlowSet(256, length, []byte{1, 2, 3, 4}))

		_, err := decode(t, data, ts)
		require.Error(t, err)
		assert.True(t, IsFatal(err))
		assert.True(t, errors.Is(err, ErrInvalidFlowsetLength))

		var ferr *FlowError
		require.ErrorAs(t, err, &ferr)
		assert.Equal(t, uint16(256), ferr.FlowSetId)
	}
}

func TestDecodeTruncatedRecord(t *testing.T) {
	ts := CreateTemplateSystem(DefaultMaxTemplates)
	require.NoError(t, ts.AddTemplate(TemplateRecord{TemplateId: 256, FieldCount: 5, Fields: flowFields}))

	// one record and 10 bytes of a second one
	body := append(append([]byte{}, flowRecord...), flowRecord[:10]...)
	data := nfv9Datagram(1, rawFlowSet(256, uint16(4+len(body)), body))

	_, err := decode(t, data, ts)
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.True(t, errors.Is(err, ErrTruncatedFlowRecord))

	var rerr *TruncatedRecordError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, 13, rerr.RecordSize)
	assert.Equal(t, 10, rerr.Remaining)
}

func TestDecodeTruncatedShortRecord(t *testing.T) {
	// 12 byte records: addresses and ports
	fields := flowFields[:4]
	for _, body := range [][]byte{
		flowRecord[:2],
		flowRecord[:3],
		append(append([]byte{}, flowRecord[:12]...), 0, 0),
	} {
		ts := CreateTemplateSystem(DefaultMaxTemplates)
		require.NoError(t, ts.AddTemplate(TemplateRecord{TemplateId: 256, FieldCount: 4, Fields: fields}))
		data := nfv9Datagram(1, rawFlowSet(256, uint16(4+len(body)), body))

		_, err := decode(t, data, ts)
		require.Error(t, err, "body of %d bytes", len(body))
		assert.True(t, IsFatal(err))

		var rerr *TruncatedRecordError
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, 12, rerr.RecordSize)
	}

	// one record fills an aligned flowset
	ts := CreateTemplateSystem(DefaultMaxTemplates)
	require.NoError(t, ts.AddTemplate(TemplateRecord{TemplateId: 256, FieldCount: 4, Fields: fields}))
	packet, err := decode(t, nfv9Datagram(1, rawFlowSet(256, 16, flowRecord[:12])), ts)
	require.NoError(t, err)
	require.Len(t, packet.FlowSets, 1)
	assert.Len(t, packet.FlowSets[0].(DataFlowSet).Records, 1)
}

func TestDecodeTemplateOverrun(t *testing.T) {
	ts := CreateTemplateSystem(DefaultMaxTemplates)
	body := templateBody(256, flowFields...)
	// claims 5 fields, carries 2
	body = body[:4+8]
	data := nfv9Datagram(1, rawFlowSet(0, uint16(4+len(body)), body))

	_, err := decode(t, data, ts)
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.True(t, errors.Is(err, utils.ErrTruncatedInput))
	assert.Equal(t, 0, ts.Len())
}

func TestDecodeMalformedKeepsCache(t *testing.T) {
	ts := CreateTemplateSystem(DefaultMaxTemplates)
	// a valid template followed by a broken flowset is not learned
	data := nfv9Datagram(2,
		templateFlowSet(templateBody(256, flowFields...)),
		rawFlowSet(300, 2, nil),
	)
	_, err := decode(t, data, ts)
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.Equal(t, 0, ts.Len())
}

func TestDecodeShortHeader(t *testing.T) {
	_, err := decode(t, []byte{0x00}, nil)
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.True(t, errors.Is(err, utils.ErrTruncatedInput))

	_, err = decode(t, []byte{0x00, 0x09, 0x00, 0x01}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrTruncatedInput))

	_, err = decode(t, []byte{0x00, 0x05, 0x00, 0x01}, nil)
	require.Error(t, err)
	assert.True(t, IsFatal(err))
}

func TestDecodeTrailingBytes(t *testing.T) {
	ts := CreateTemplateSystem(DefaultMaxTemplates)
	data := nfv9Datagram(1, templateFlowSet(templateBody(256, flowFields...)))
	data = append(data, 0, 0, 0)

	packet, err := decode(t, data, ts)
	require.NoError(t, err)
	assert.Len(t, packet.FlowSets, 1)
}

func TestDecodeReservedFlowSets(t *testing.T) {
	data := nfv9Datagram(0,
		rawFlowSet(1, 8, []byte{1, 2, 3, 4}),
		rawFlowSet(7, 8, []byte{5, 6, 7, 8}),
	)

	packet, err := decode(t, data, CreateTemplateSystem(DefaultMaxTemplates))
	require.NoError(t, err)
	require.Len(t, packet.FlowSets, 2)
	opts, ok := packet.FlowSets[0].(OptionsTemplateFlowSet)
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3, 4}, opts.Records)
	unknown, ok := packet.FlowSets[1].(UnknownFlowSet)
	require.True(t, ok)
	assert.Equal(t, uint16(7), unknown.Id)
}

func TestDecodeLengthMismatch(t *testing.T) {
	ts := CreateTemplateSystem(DefaultMaxTemplates)
	data := nfv9Datagram(2,
		templateFlowSet(templateBody(256,
			Field{Type: NFV9_FIELD_PROTOCOL, Length: 2},
			Field{Type: 200, Length: 2},
		)),
		rawFlowSet(256, 8, []byte{0x00, 0x11, 0xab, 0xcd}),
	)

	packet, err := decode(t, data, ts)
	require.NoError(t, err)
	datafs := packet.FlowSets[1].(DataFlowSet)
	values := datafs.Records[0].Values
	assert.True(t, values[0].LengthMismatch)
	assert.Equal(t, uint64(17), values[0].Value)
	assert.Equal(t, "Protocol = UDP", values[0].Render())
	assert.False(t, values[1].LengthMismatch)
	assert.Equal(t, []byte{0xab, 0xcd}, values[1].Value)
}

func TestEncodeDecodeNetFlowV9(t *testing.T) {
	template := TemplateRecord{TemplateId: 300, FieldCount: 5, Fields: flowFields}
	record := DataRecord{Values: []DataField{
		NewDataField(NFV9_FIELD_IPV4_SRC_ADDR, []byte{192, 168, 0, 1}),
		NewDataField(NFV9_FIELD_IPV4_DST_ADDR, []byte{192, 168, 0, 2}),
		NewDataField(NFV9_FIELD_L4_SRC_PORT, []byte{0x13, 0x88}),
		NewDataField(NFV9_FIELD_L4_DST_PORT, []byte{0x00, 0x35}),
		NewDataField(NFV9_FIELD_PROTOCOL, []byte{17}),
	}}
	packet := &NFv9Packet{
		SystemUptime:   1000,
		UnixSeconds:    1700000000,
		SequenceNumber: 7,
		SourceId:       1,
		FlowSets: []FlowSet{
			TemplateFlowSet{Records: []TemplateRecord{template}},
			DataFlowSet{FlowSetHeader: FlowSetHeader{Id: 300}, Records: []DataRecord{record, record}},
		},
	}

	data, err := EncodeMessage(packet)
	require.NoError(t, err)
	// header, template flowset, data flowset with 2 bytes of padding
	assert.Len(t, data, 20+(4+4+20)+(4+26+2))
	assert.Equal(t, 0, len(data)%4)

	ts := CreateTemplateSystem(DefaultMaxTemplates)
	decoded, err := decode(t, data, ts)
	require.NoError(t, err)
	assert.Equal(t, uint16(3), decoded.Count)
	assert.Equal(t, uint32(7), decoded.SequenceNumber)

	templatefs := decoded.FlowSets[0].(TemplateFlowSet)
	assert.Equal(t, []TemplateRecord{template}, templatefs.Records)
	datafs := decoded.FlowSets[1].(DataFlowSet)
	assert.Equal(t, []DataRecord{record, record}, datafs.Records)

	again, err := EncodeMessage(decoded)
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestEncodeRejectsInvalidTemplates(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	err := EncodeTemplateFlowSet(buf, []TemplateRecord{{TemplateId: 256, Fields: []Field{{Type: 1, Length: 0}}}})
	assert.True(t, errors.Is(err, ErrInvalidFieldLength))
	err = EncodeTemplateFlowSet(buf, []TemplateRecord{{TemplateId: 256}})
	assert.True(t, errors.Is(err, ErrEmptyTemplate))
	assert.Error(t, EncodeDataFlowSet(buf, 12, []DataRecord{{}}))
}

func TestPacketRender(t *testing.T) {
	ts := CreateTemplateSystem(DefaultMaxTemplates)
	data := nfv9Datagram(2,
		templateFlowSet(templateBody(256, flowFields...)),
		rawFlowSet(256, 20, append(append([]byte{}, flowRecord...), 0, 0, 0)),
	)
	packet, err := decode(t, data, ts)
	require.NoError(t, err)

	str := packet.String()
	assert.Contains(t, str, "IPV4_SRC_ADDR (8): IPv4 Source Address = 10.0.0.1")
	assert.Contains(t, str, "L4_DST_PORT (11): 2")

	text, err := packet.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "NetFlowV9 count:2 seq:1", string(text))

	out, err := packet.MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(out), `"name":"IPV4_DST_ADDR","value":"10.0.0.2"`)
}
