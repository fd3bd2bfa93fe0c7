package netflow

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/netsampler/nfcollector/decoders/utils"
)

const (
	nfv9HeaderLen    = 20
	flowSetHeaderLen = 4
)

// FlowSetEnvelope is a FlowSet header with its body, before the body is
// interpreted.
type FlowSetEnvelope struct {
	FlowSetHeader
	Body []byte
}

// DecodeFlowSetHeaders splits a packet body into FlowSets. A body shorter than
// the declared length is clamped to what is left; fewer than 4 trailing bytes
// are ignored.
func DecodeFlowSetHeaders(payload *bytes.Buffer) ([]FlowSetEnvelope, error) {
	var envelopes []FlowSetEnvelope
	for payload.Len() >= flowSetHeaderLen {
		fsheader := FlowSetHeader{}
		if err := utils.BinaryDecoder(payload,
			&fsheader.Id,
			&fsheader.Length,
		); err != nil {
			return envelopes, fmt.Errorf("header [%w]", err)
		}
		if fsheader.Length <= flowSetHeaderLen {
			return envelopes, &FlowSetLengthError{FlowSetId: fsheader.Id, Length: fsheader.Length}
		}
		envelopes = append(envelopes, FlowSetEnvelope{
			FlowSetHeader: fsheader,
			Body:          payload.Next(int(fsheader.Length) - flowSetHeaderLen),
		})
	}
	return envelopes, nil
}

// DecodeTemplateSet reads the template records of a Template FlowSet body.
// Records with a zero length field or without fields are left out and
// reported in the returned error; those errors are not fatal. A record
// running past the end of the body stops the decoding with a fatal error.
func DecodeTemplateSet(payload *bytes.Buffer) ([]TemplateRecord, error) {
	var records []TemplateRecord
	var errs error
	for payload.Len() >= 4 {
		templateRecord := TemplateRecord{}
		if err := utils.BinaryDecoder(payload,
			&templateRecord.TemplateId,
			&templateRecord.FieldCount,
		); err != nil {
			return records, fmt.Errorf("TemplateSet: reading header [%w]", err)
		}

		if templateRecord.FieldCount == 0 {
			errs = errors.Join(errs, &TemplateError{templateRecord.TemplateId, ErrEmptyTemplate})
			continue
		}

		if want := 4 * int(templateRecord.FieldCount); payload.Len() < want {
			return records, fmt.Errorf("TemplateSet: template %d fields [%w]",
				templateRecord.TemplateId, &utils.TruncatedError{Want: want, Have: payload.Len()})
		}

		fields := make([]Field, int(templateRecord.FieldCount)) // max 65535 which would be 262KB
		valid := true
		for i := range fields {
			field := &fields[i]
			if err := utils.BinaryDecoder(payload,
				&field.Type,
				&field.Length,
			); err != nil {
				return records, fmt.Errorf("TemplateSet: reading field [%w]", err)
			}
			if field.Length == 0 {
				valid = false
			}
		}
		if !valid {
			errs = errors.Join(errs, &TemplateError{templateRecord.TemplateId, ErrInvalidFieldLength})
			continue
		}
		templateRecord.Fields = fields
		records = append(records, templateRecord)
	}

	return records, errs
}

// DecodeDataSet decodes the data records of a flowset body with template.
// Trailing bytes are padding only when there are fewer than 4 of them, at
// least one record was decoded and they align the flowset on 4 bytes. Any
// other remainder is a truncated record.
func DecodeDataSet(payload *bytes.Buffer, template TemplateRecord) ([]DataRecord, error) {
	var records []DataRecord
	bodyLen := payload.Len()

	size := template.FlowSize()
	if size <= 0 {
		return records, &TemplateError{template.TemplateId, ErrEmptyTemplate}
	}

	types := make([]FieldType, len(template.Fields))
	mismatch := make([]bool, len(template.Fields))
	for i, field := range template.Fields {
		ft, known := LookupFieldType(field.Type)
		types[i] = ft
		mismatch[i] = known && errors.Is(ft.CheckLength(field.Length), ErrTemplateFieldLengthMismatch)
	}

	for payload.Len() >= size {
		// one allocation per record, every field slices its own part
		data := make([]byte, size)
		copy(data, payload.Next(size))

		values := make([]DataField, len(template.Fields))
		offset := 0
		for i, field := range template.Fields {
			raw := data[offset : offset+int(field.Length) : offset+int(field.Length)]
			offset += int(field.Length)
			values[i] = DataField{
				Type:           field.Type,
				Raw:            raw,
				Value:          InterpretValue(types[i].Kind, raw),
				LengthMismatch: mismatch[i],
			}
		}
		records = append(records, DataRecord{Values: values})
	}

	remaining := payload.Len()
	if remaining == 0 {
		return records, nil
	}
	if remaining >= 4 || len(records) == 0 || (flowSetHeaderLen+bodyLen)%4 != 0 {
		return records, &TruncatedRecordError{
			TemplateId: template.TemplateId,
			RecordSize: size,
			Remaining:  remaining,
		}
	}
	return records, nil
}

func copyBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// DecodeMessageNetFlow decodes a NetFlow v9 packet after its version field.
//
// Templates are learned before any data is decoded, so a data flowset can
// use a template defined further in the same packet. Templates are only
// learned once every flowset envelope and template record was read
// successfully.
//
// The returned error is either fatal (see IsFatal) and the packet must be
// dropped, or the join of the rejected templates, in which case the packet is
// complete.
func DecodeMessageNetFlow(payload *bytes.Buffer, templates NetFlowTemplateSystem, packetNFv9 *NFv9Packet) error {
	packetNFv9.Version = 9
	if err := utils.BinaryDecoder(payload,
		&packetNFv9.Count,
		&packetNFv9.SystemUptime,
		&packetNFv9.UnixSeconds,
		&packetNFv9.SequenceNumber,
		&packetNFv9.SourceId,
	); err != nil {
		return &DecoderError{"NetFlowV9 header", err}
	}
	sourceId := packetNFv9.SourceId

	envelopes, err := DecodeFlowSetHeaders(payload)
	if err != nil {
		var lerr *FlowSetLengthError
		var id uint16
		if errors.As(err, &lerr) {
			id = lerr.FlowSetId
		}
		return &DecoderError{"NetFlowV9", &FlowError{9, "FlowSet", sourceId, id, err}}
	}

	var errs error
	flowSets := make([]FlowSet, len(envelopes))

	// first pass: templates
	for i, envelope := range envelopes {
		switch {
		case envelope.Id == NFV9_FLOWSET_TEMPLATE:
			records, err := DecodeTemplateSet(bytes.NewBuffer(envelope.Body))
			if err != nil {
				if IsFatal(err) {
					return &DecoderError{"NetFlowV9", &FlowError{9, "TemplateFlowSet", sourceId, envelope.Id, err}}
				}
				for _, e := range Flatten(err) {
					errs = errors.Join(errs, &FlowError{9, "TemplateFlowSet", sourceId, envelope.Id, e})
				}
			}
			flowSets[i] = TemplateFlowSet{
				FlowSetHeader: envelope.FlowSetHeader,
				Records:       records,
			}
		case envelope.Id == NFV9_FLOWSET_OPTIONS_TEMPLATE:
			flowSets[i] = OptionsTemplateFlowSet{
				FlowSetHeader: envelope.FlowSetHeader,
				Records:       copyBytes(envelope.Body),
			}
		case envelope.Id < NFV9_FLOWSET_MIN_DATA:
			flowSets[i] = UnknownFlowSet{
				FlowSetHeader: envelope.FlowSetHeader,
				Records:       copyBytes(envelope.Body),
			}
		}
	}

	if templates != nil {
		for _, flowSet := range flowSets {
			templatefs, ok := flowSet.(TemplateFlowSet)
			if !ok {
				continue
			}
			for _, record := range templatefs.Records {
				if err := templates.AddTemplate(record); err != nil {
					errs = errors.Join(errs, &FlowError{9, "TemplateFlowSet", sourceId, templatefs.Id, err})
				}
			}
		}
	}

	// second pass: data
	for i, envelope := range envelopes {
		if envelope.Id < NFV9_FLOWSET_MIN_DATA {
			continue
		}
		var template TemplateRecord
		var terr error = ErrTemplateNotFound
		if templates != nil {
			template, terr = templates.GetTemplate(envelope.Id)
		}
		if terr != nil || template.FlowSize() == 0 {
			flowSets[i] = RawFlowSet{
				FlowSetHeader: envelope.FlowSetHeader,
				Records:       copyBytes(envelope.Body),
			}
			continue
		}
		records, err := DecodeDataSet(bytes.NewBuffer(envelope.Body), template)
		if err != nil {
			return &DecoderError{"NetFlowV9", &FlowError{9, "DataFlowSet", sourceId, envelope.Id, err}}
		}
		flowSets[i] = DataFlowSet{
			FlowSetHeader: envelope.FlowSetHeader,
			Records:       records,
		}
	}

	packetNFv9.FlowSets = flowSets
	return errs
}

// DecodeMessageVersion decodes a full NetFlow v9 packet, version included.
func DecodeMessageVersion(payload *bytes.Buffer, templates NetFlowTemplateSystem, packetNFv9 *NFv9Packet) error {
	var version uint16

	if err := utils.BinaryDecoder(payload,
		&version,
	); err != nil {
		return &DecoderError{"NetFlowV9 version", err}
	}

	if version != 9 {
		return &DecoderError{"NetFlowV9", fmt.Errorf("unknown version %d", version)}
	}
	return DecodeMessageNetFlow(payload, templates, packetNFv9)
}
