package netflow

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/netsampler/nfcollector/decoders/utils"
)

// MarshalBinary encodes the packet in its wire form.
func (p *NFv9Packet) MarshalBinary() ([]byte, error) {
	return EncodeMessage(p)
}

// NewDataField builds a field from its wire bytes.
func NewDataField(typeId uint16, raw []byte) DataField {
	ft, known := LookupFieldType(typeId)
	return DataField{
		Type:           typeId,
		Raw:            raw,
		Value:          InterpretValue(ft.Kind, raw),
		LengthMismatch: known && errors.Is(ft.CheckLength(uint16(len(raw))), ErrTemplateFieldLengthMismatch),
	}
}

// EncodeMessage is the inverse of DecodeMessageVersion. A zero Count is
// replaced by the number of template and data records of the packet.
// FlowSet lengths are recomputed; bodies are padded to 4 bytes when needed.
func EncodeMessage(packet *NFv9Packet) ([]byte, error) {
	if packet == nil {
		return nil, errors.New("netflow: nil packet")
	}

	count := packet.Count
	if count == 0 {
		for _, flowSet := range packet.FlowSets {
			switch fs := flowSet.(type) {
			case TemplateFlowSet:
				count += uint16(len(fs.Records))
			case DataFlowSet:
				count += uint16(len(fs.Records))
			}
		}
	}

	buf := bytes.NewBuffer(make([]byte, 0, nfv9HeaderLen))
	if err := utils.WriteU16(buf, 9); err != nil {
		return nil, err
	}
	if err := utils.WriteU16(buf, count); err != nil {
		return nil, err
	}
	if err := utils.WriteU32(buf, packet.SystemUptime); err != nil {
		return nil, err
	}
	if err := utils.WriteU32(buf, packet.UnixSeconds); err != nil {
		return nil, err
	}
	if err := utils.WriteU32(buf, packet.SequenceNumber); err != nil {
		return nil, err
	}
	if err := utils.WriteU32(buf, packet.SourceId); err != nil {
		return nil, err
	}

	for i, flowSet := range packet.FlowSets {
		var err error
		switch fs := flowSet.(type) {
		case TemplateFlowSet:
			err = EncodeTemplateFlowSet(buf, fs.Records)
		case DataFlowSet:
			err = EncodeDataFlowSet(buf, fs.Id, fs.Records)
		case OptionsTemplateFlowSet:
			err = encodeOpaqueFlowSet(buf, NFV9_FLOWSET_OPTIONS_TEMPLATE, fs.Records)
		case RawFlowSet:
			err = encodeOpaqueFlowSet(buf, fs.Id, fs.Records)
		case UnknownFlowSet:
			err = encodeOpaqueFlowSet(buf, fs.Id, fs.Records)
		default:
			err = fmt.Errorf("unsupported flowset %T", flowSet)
		}
		if err != nil {
			return nil, fmt.Errorf("netflow: flowset %d [%w]", i, err)
		}
	}
	return buf.Bytes(), nil
}

func writeFlowSet(buf *bytes.Buffer, id uint16, body []byte) error {
	length := flowSetHeaderLen + len(body) + utils.PaddingTo4(len(body))
	if length > 0xffff {
		return fmt.Errorf("flowset %d too large: %d bytes", id, length)
	}
	if err := utils.WriteU16(buf, id); err != nil {
		return err
	}
	if err := utils.WriteU16(buf, uint16(length)); err != nil {
		return err
	}
	if _, err := buf.Write(body); err != nil {
		return err
	}
	return utils.WritePadding(buf, len(body))
}

func encodeOpaqueFlowSet(buf *bytes.Buffer, id uint16, body []byte) error {
	if len(body) == 0 {
		return fmt.Errorf("flowset %d is empty", id)
	}
	return writeFlowSet(buf, id, body)
}

// EncodeTemplateFlowSet writes a Template FlowSet holding records.
func EncodeTemplateFlowSet(buf *bytes.Buffer, records []TemplateRecord) error {
	if len(records) == 0 {
		return errors.New("template flowset without records")
	}
	body := bytes.NewBuffer(nil)
	for _, record := range records {
		if len(record.Fields) == 0 {
			return &TemplateError{record.TemplateId, ErrEmptyTemplate}
		}
		if err := utils.WriteU16(body, record.TemplateId); err != nil {
			return err
		}
		if err := utils.WriteU16(body, uint16(len(record.Fields))); err != nil {
			return err
		}
		for _, field := range record.Fields {
			if field.Length == 0 {
				return &TemplateError{record.TemplateId, ErrInvalidFieldLength}
			}
			if err := utils.WriteU16(body, field.Type); err != nil {
				return err
			}
			if err := utils.WriteU16(body, field.Length); err != nil {
				return err
			}
		}
	}
	return writeFlowSet(buf, NFV9_FLOWSET_TEMPLATE, body.Bytes())
}

// EncodeDataFlowSet writes the raw bytes of records as a Data FlowSet for
// template id.
func EncodeDataFlowSet(buf *bytes.Buffer, id uint16, records []DataRecord) error {
	if id < NFV9_FLOWSET_MIN_DATA {
		return fmt.Errorf("data flowset id %d below %d", id, NFV9_FLOWSET_MIN_DATA)
	}
	if len(records) == 0 {
		return fmt.Errorf("data flowset %d without records", id)
	}
	body := bytes.NewBuffer(nil)
	for _, record := range records {
		for _, value := range record.Values {
			if len(value.Raw) == 0 {
				return fmt.Errorf("field %d [%w]", value.Type, ErrInvalidFieldLength)
			}
			if _, err := body.Write(value.Raw); err != nil {
				return err
			}
		}
	}
	return writeFlowSet(buf, id, body.Bytes())
}
