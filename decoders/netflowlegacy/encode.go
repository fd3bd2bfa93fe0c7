package netflowlegacy

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/netsampler/nfcollector/decoders/utils"
)

const (
	netflowV5HeaderLen = 24
	netflowV5RecordLen = 48
)

var (
	ErrNilPacket     = errors.New("nil packet")
	ErrCountMismatch = errors.New("count mismatch")
)

type EncoderError struct {
	Err error
}

func (e *EncoderError) Error() string {
	return fmt.Sprintf("NetFlowLegacy encode %s", e.Err.Error())
}

func (e *EncoderError) Unwrap() error {
	return e.Err
}

// MarshalBinary encodes the packet in its wire form.
func (p *PacketNetFlowV5) MarshalBinary() ([]byte, error) {
	return EncodeMessage(p)
}

// EncodeMessage is the inverse of DecodeMessageVersion. A zero Version or
// Count is filled in; the padding fields are always written as zero.
func EncodeMessage(packet *PacketNetFlowV5) ([]byte, error) {
	if packet == nil {
		return nil, &EncoderError{ErrNilPacket}
	}

	version := packet.Version
	if version == 0 {
		version = 5
	}
	if version != 5 {
		return nil, &EncoderError{fmt.Errorf("unknown version %d", version)}
	}
	if len(packet.Records) > math.MaxUint16 {
		return nil, &EncoderError{fmt.Errorf("%w: %d records do not fit the header", ErrCountMismatch, len(packet.Records))}
	}

	count := packet.Count
	if count == 0 {
		count = uint16(len(packet.Records))
	}
	if int(count) != len(packet.Records) {
		return nil, &EncoderError{fmt.Errorf("%w header:%d records:%d", ErrCountMismatch, count, len(packet.Records))}
	}

	buf := bytes.NewBuffer(make([]byte, 0, netflowV5HeaderLen+netflowV5RecordLen*len(packet.Records)))
	if err := utils.BinaryEncoder(buf,
		version,
		count,
		packet.SysUptime,
		packet.UnixSecs,
		packet.UnixNSecs,
		packet.FlowSequence,
		packet.EngineType,
		packet.EngineId,
		packet.SamplingInterval,
	); err != nil {
		return nil, &EncoderError{err}
	}

	for i := range packet.Records {
		record := &packet.Records[i]
		if err := utils.BinaryEncoder(buf,
			record.SrcAddr,
			record.DstAddr,
			record.NextHop,
			record.Input,
			record.Output,
			record.DPkts,
			record.DOctets,
			record.First,
			record.Last,
			record.SrcPort,
			record.DstPort,
			uint8(0),
			record.TCPFlags,
			record.Proto,
			record.Tos,
			record.SrcAS,
			record.DstAS,
			record.SrcMask,
			record.DstMask,
			uint16(0),
		); err != nil {
			return nil, &EncoderError{err}
		}
	}

	return buf.Bytes(), nil
}
