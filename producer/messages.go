package producer

import (
	"encoding/json"
	"fmt"
	"net/netip"
	"reflect"
	"strings"
	"sync"
)

type FlowType uint32

const (
	FlowUnknown FlowType = 0
	NetFlowV5   FlowType = 2
	NetFlowV9   FlowType = 3
)

func (t FlowType) String() string {
	switch t {
	case NetFlowV5:
		return "NETFLOW_V5"
	case NetFlowV9:
		return "NETFLOW_V9"
	}
	return "FLOWUNKNOWN"
}

func (t FlowType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// FlowMessage is one flow, flattened from a v5 record or a v9 data record.
type FlowMessage struct {
	Type           FlowType   `json:"type"`
	TimeReceivedNs uint64     `json:"time_received_ns"`
	SequenceNum    uint32     `json:"sequence_num"`
	SamplingRate   uint64     `json:"sampling_rate"`
	SamplerAddress netip.Addr `json:"sampler_address"`
	SourceId       uint32     `json:"source_id"`

	TimeFlowStartMs uint64 `json:"time_flow_start_ms"`
	TimeFlowEndMs   uint64 `json:"time_flow_end_ms"`

	Bytes   uint64 `json:"bytes"`
	Packets uint64 `json:"packets"`

	SrcAddr netip.Addr `json:"src_addr"`
	DstAddr netip.Addr `json:"dst_addr"`
	Etype   uint32     `json:"etype"`
	Proto   uint32     `json:"proto"`
	SrcPort uint32     `json:"src_port"`
	DstPort uint32     `json:"dst_port"`

	InIf  uint32 `json:"in_if"`
	OutIf uint32 `json:"out_if"`

	SrcMac  uint64 `json:"src_mac"`
	DstMac  uint64 `json:"dst_mac"`
	SrcVlan uint32 `json:"src_vlan"`
	DstVlan uint32 `json:"dst_vlan"`

	IpTos          uint32 `json:"ip_tos"`
	IpTtl          uint32 `json:"ip_ttl"`
	TcpFlags       uint32 `json:"tcp_flags"`
	IcmpType       uint32 `json:"icmp_type"`
	IcmpCode       uint32 `json:"icmp_code"`
	Ipv6FlowLabel  uint32 `json:"ipv6_flow_label"`
	FragmentId     uint32 `json:"fragment_id"`
	FragmentOffset uint32 `json:"fragment_offset"`
	FlowDirection  uint32 `json:"flow_direction"`

	SrcAs      uint32     `json:"src_as"`
	DstAs      uint32     `json:"dst_as"`
	NextHop    netip.Addr `json:"next_hop"`
	BgpNextHop netip.Addr `json:"bgp_next_hop"`
	SrcNet     uint32     `json:"src_net"`
	DstNet     uint32     `json:"dst_net"`

	MplsLabels []uint32 `json:"mpls_labels"`

	EngineType uint32 `json:"engine_type"`
	EngineId   uint32 `json:"engine_id"`

	SrcCountry string `json:"src_country"`
	DstCountry string `json:"dst_country"`

	formatter *formatterMapper
}

var flowMessagePool = sync.Pool{
	New: func() any {
		return &FlowMessage{}
	},
}

// NewFlowMessage takes a message from the pool. Release gives it back.
func NewFlowMessage() *FlowMessage {
	m := flowMessagePool.Get().(*FlowMessage)
	m.Reset()
	return m
}

func (m *FlowMessage) Reset() {
	*m = FlowMessage{MplsLabels: m.MplsLabels[:0]}
}

// Release returns messages to the pool once they were formatted.
func Release(flowMessageSet []*FlowMessage) {
	for _, m := range flowMessageSet {
		flowMessagePool.Put(m)
	}
}

func (m *FlowMessage) mapper() *formatterMapper {
	if m.formatter == nil {
		return defaultFormatter
	}
	return m.formatter
}

func (m *FlowMessage) String() string {
	return m.FormatMessageReflectText("")
}

// Key is used by transports that partition messages.
func (m *FlowMessage) Key() []byte {
	return []byte(m.mapper().format(m, m.mapper().key, "", "|", "", false))
}

func (m *FlowMessage) MarshalJSON() ([]byte, error) {
	return []byte(m.FormatMessageReflectJSON("")), nil
}

func (m *FlowMessage) FormatMessageReflectText(ext string) string {
	return m.mapper().format(m, m.mapper().fields, ext, " ", "=", false)
}

func (m *FlowMessage) FormatMessageReflectJSON(ext string) string {
	return fmt.Sprintf("{%s}", m.mapper().format(m, m.mapper().fields, ext, ",", ":", true))
}

func ExtractTag(name, original string, tag reflect.StructTag) string {
	lookup, ok := tag.Lookup(name)
	if !ok {
		return original
	}
	before, _, _ := strings.Cut(lookup, ",")
	return before
}

type formatterMapper struct {
	fields []string          // struct field names, in output order
	key    []string          // struct field names used by Key
	rename map[string]string // struct field name to output name
}

var (
	flowMessageFields []string          // struct field names
	flowMessageNames  map[string]string // struct or json name to struct name
	defaultFormatter  *formatterMapper
)

func init() {
	flowMessageNames = make(map[string]string)
	t := reflect.TypeOf(FlowMessage{})
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		flowMessageFields = append(flowMessageFields, field.Name)
		flowMessageNames[field.Name] = field.Name
		flowMessageNames[ExtractTag("json", field.Name, field.Tag)] = field.Name
	}
	defaultFormatter, _ = mapFormatter(nil)
}

func mapFormatter(cfg *FormatterConfig) (*formatterMapper, error) {
	m := &formatterMapper{
		fields: flowMessageFields,
		key:    []string{"SamplerAddress"},
		rename: make(map[string]string),
	}
	t := reflect.TypeOf(FlowMessage{})
	for _, name := range flowMessageFields {
		field, _ := t.FieldByName(name)
		m.rename[name] = ExtractTag("json", name, field.Tag)
	}
	if cfg == nil {
		return m, nil
	}

	resolve := func(names []string) ([]string, error) {
		out := make([]string, 0, len(names))
		for _, name := range names {
			structName, ok := flowMessageNames[name]
			if !ok {
				return nil, fmt.Errorf("unknown flow field %q", name)
			}
			out = append(out, structName)
		}
		return out, nil
	}

	var err error
	if len(cfg.Fields) > 0 {
		if m.fields, err = resolve(cfg.Fields); err != nil {
			return nil, err
		}
	}
	if len(cfg.Key) > 0 {
		if m.key, err = resolve(cfg.Key); err != nil {
			return nil, err
		}
	}
	for name, rename := range cfg.Rename {
		structName, ok := flowMessageNames[name]
		if !ok {
			return nil, fmt.Errorf("unknown flow field %q", name)
		}
		m.rename[structName] = rename
	}
	return m, nil
}

func renderMac(mac uint64) string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x",
		byte(mac>>40), byte(mac>>32), byte(mac>>24), byte(mac>>16), byte(mac>>8), byte(mac))
}

// render returns a string for values shown as text, anything else as is.
func render(name string, value reflect.Value) interface{} {
	switch v := value.Interface().(type) {
	case netip.Addr:
		if !v.IsValid() {
			return ""
		}
		return v.String()
	case FlowType:
		return v.String()
	case uint64:
		if name == "SrcMac" || name == "DstMac" {
			return renderMac(v)
		}
		return v
	default:
		return v
	}
}

func quote(s string, jsonQuote bool) string {
	if !jsonQuote {
		return s
	}
	b, _ := json.Marshal(s)
	return string(b)
}

func (f *formatterMapper) format(m *FlowMessage, fields []string, ext, sep, sign string, jsonQuote bool) string {
	vfm := reflect.Indirect(reflect.ValueOf(m))

	fstr := make([]string, 0, len(fields))
	for _, fieldName := range fields {
		fieldValue := vfm.FieldByName(fieldName)
		if !fieldValue.IsValid() {
			continue
		}
		finalName := fieldName
		if sign != "" {
			if rename, ok := f.rename[fieldName]; ok && rename != "" {
				finalName = rename
			}
		}

		var v string
		if labels, ok := fieldValue.Interface().([]uint32); ok {
			items := make([]string, len(labels))
			for i, label := range labels {
				items[i] = fmt.Sprintf("%d", label)
			}
			v = "[" + strings.Join(items, ",") + "]"
		} else {
			switch rendered := render(fieldName, fieldValue).(type) {
			case string:
				v = quote(rendered, jsonQuote)
			default:
				v = fmt.Sprintf("%v", rendered)
			}
		}

		if sign == "" {
			fstr = append(fstr, v)
		} else {
			fstr = append(fstr, quote(finalName, jsonQuote)+sign+v)
		}
	}
	if ext != "" {
		fstr = append(fstr, ext)
	}
	return strings.Join(fstr, sep)
}
