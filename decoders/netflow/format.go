package netflow

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"strings"
)

// MarshalJSON encodes the packet without triggering MarshalText.
func (p *NFv9Packet) MarshalJSON() ([]byte, error) {
	type packet NFv9Packet
	return json.Marshal((*packet)(p)) // this is a trick to avoid having the JSON marshaller defaults to MarshalText
}

// MarshalText formats a concise summary of the packet.
func (p *NFv9Packet) MarshalText() ([]byte, error) {
	return []byte(fmt.Sprintf("NetFlowV%d count:%d seq:%d", p.Version, p.Count, p.SequenceNumber)), nil
}

func (df DataField) MarshalJSON() ([]byte, error) {
	var value interface{} = df.Value
	switch v := df.Value.(type) {
	case net.HardwareAddr:
		value = v.String()
	case []byte:
		value = hex.EncodeToString(v)
	}
	return json.Marshal(struct {
		Type           uint16      `json:"type"`
		Name           string      `json:"name"`
		Value          interface{} `json:"value"`
		LengthMismatch bool        `json:"length-mismatch,omitempty"`
	}{df.Type, NFv9TypeToString(df.Type), value, df.LengthMismatch})
}

func (p NFv9Packet) String() string {
	var b strings.Builder
	b.WriteString("NetFlow v9 Packet\n")
	b.WriteString("-----------------\n")
	fmt.Fprintf(&b, "  Version: %v\n", p.Version)
	fmt.Fprintf(&b, "  Count:  %v\n", p.Count)
	fmt.Fprintf(&b, "  SystemUptime: %v\n", p.SystemUptime)
	fmt.Fprintf(&b, "  UnixSeconds: %v\n", p.UnixSeconds)
	fmt.Fprintf(&b, "  SequenceNumber: %v\n", p.SequenceNumber)
	fmt.Fprintf(&b, "  SourceId: %v\n", p.SourceId)
	fmt.Fprintf(&b, "  FlowSets (%v):\n", len(p.FlowSets))

	for i, flowSet := range p.FlowSets {
		fmt.Fprintf(&b, "    - FlowSet %v:\n", i)
		b.WriteString(flowSet.String())
	}
	return b.String()
}

func (flowSet RawFlowSet) String() string {
	str := fmt.Sprintf("       Id %v (no template)\n", flowSet.Id)
	str += fmt.Sprintf("       Length: %v\n", len(flowSet.Records))
	str += fmt.Sprintf("       Records: %x\n", flowSet.Records)

	return str
}

func (flowSet UnknownFlowSet) String() string {
	str := fmt.Sprintf("       Id %v (reserved)\n", flowSet.Id)
	str += fmt.Sprintf("       Length: %v\n", len(flowSet.Records))
	str += fmt.Sprintf("       Records: %x\n", flowSet.Records)

	return str
}

func (flowSet OptionsTemplateFlowSet) String() string {
	str := fmt.Sprintf("       Id %v (options template)\n", flowSet.Id)
	str += fmt.Sprintf("       Length: %v\n", len(flowSet.Records))
	str += fmt.Sprintf("       Records: %x\n", flowSet.Records)

	return str
}

func (flowSet DataFlowSet) String() string {
	str := fmt.Sprintf("       Id %v\n", flowSet.Id)
	str += fmt.Sprintf("       Length: %v\n", flowSet.Length)
	str += fmt.Sprintf("       Records (%v records):\n", len(flowSet.Records))

	for j, record := range flowSet.Records {
		str += fmt.Sprintf("       - Record %v:\n", j)
		str += fmt.Sprintf("            Values (%v):\n", len(record.Values))

		for k, value := range record.Values {
			str += fmt.Sprintf("            - %v. %v (%v): %v\n", k, NFv9TypeToString(value.Type), value.Type, value.Render())
		}
	}

	return str
}

func (flowSet TemplateFlowSet) String() string {
	str := fmt.Sprintf("       Id %v\n", flowSet.Id)
	str += fmt.Sprintf("       Length: %v\n", flowSet.Length)
	str += fmt.Sprintf("       Records (%v records):\n", len(flowSet.Records))

	for j, record := range flowSet.Records {
		str += fmt.Sprintf("       - %v. Record:\n", j)
		str += fmt.Sprintf("            TemplateId: %v\n", record.TemplateId)
		str += fmt.Sprintf("            FieldCount: %v\n", record.FieldCount)
		str += fmt.Sprintf("            Fields (%v):\n", len(record.Fields))

		for k, field := range record.Fields {
			str += fmt.Sprintf("            - %v. %v (%v): %v\n", k, NFv9TypeToString(field.Type), field.Type, field.Length)
		}
	}

	return str
}
