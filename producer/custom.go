package producer

import (
	"fmt"
	"io"
	"net/netip"
	"reflect"

	"gopkg.in/yaml.v2"
)

// NetFlowMapField copies the bytes of a v9 field type into a FlowMessage
// field, on top of the built-in conversion.
type NetFlowMapField struct {
	Type        uint16     `json:"field" yaml:"field"`
	Destination string     `json:"destination" yaml:"destination"`
	Endian      EndianType `json:"endianness" yaml:"endianness"`
}

type NetFlowV9ProducerConfig struct {
	Mapping []NetFlowMapField `json:"mapping" yaml:"mapping"`
}

// FormatterConfig selects, orders and renames the fields of the text and
// JSON output. Key lists the fields hashed into the message key.
type FormatterConfig struct {
	Fields []string          `yaml:"fields"`
	Key    []string          `yaml:"key"`
	Rename map[string]string `yaml:"rename"`
}

type ProducerConfig struct {
	Formatter FormatterConfig         `yaml:"formatter"`
	NetFlowV9 NetFlowV9ProducerConfig `yaml:"netflowv9"`
}

// LoadProducerConfig reads a YAML mapping file.
func LoadProducerConfig(r io.Reader) (*ProducerConfig, error) {
	config := &ProducerConfig{}
	dec := yaml.NewDecoder(r)
	dec.SetStrict(true)
	if err := dec.Decode(config); err != nil && err != io.EOF {
		return nil, err
	}
	return config, nil
}

type producerConfigMapped struct {
	Formatter *formatterMapper
	NetFlowV9 *NetFlowMapper
}

type NetFlowMapper struct {
	data map[uint16]MapConfigBase
}

func (m *NetFlowMapper) Map(typeId uint16) (MapConfigBase, bool) {
	if m == nil {
		return MapConfigBase{}, false
	}
	mapped, found := m.data[typeId]
	return mapped, found
}

var addrType = reflect.TypeOf(netip.Addr{})

func checkDestination(name string) error {
	field, ok := reflect.TypeOf(FlowMessage{}).FieldByName(name)
	if !ok || !field.IsExported() {
		return fmt.Errorf("unknown destination %q", name)
	}
	kind := field.Type.Kind()
	if IsUInt(kind) || field.Type == addrType {
		return nil
	}
	if kind == reflect.Slice && IsUInt(field.Type.Elem().Kind()) {
		return nil
	}
	return fmt.Errorf("destination %q has unsupported type %s", name, field.Type)
}

func mapFieldsNetFlow(fields []NetFlowMapField) (*NetFlowMapper, error) {
	ret := &NetFlowMapper{
		data: make(map[uint16]MapConfigBase),
	}
	for _, field := range fields {
		destination, ok := flowMessageNames[field.Destination]
		if !ok {
			return nil, fmt.Errorf("unknown destination %q", field.Destination)
		}
		if err := checkDestination(destination); err != nil {
			return nil, err
		}
		endian := field.Endian
		if endian == "" {
			endian = BigEndian
		}
		if endian != BigEndian && endian != LittleEndian {
			return nil, fmt.Errorf("field %d: unknown endianness %q", field.Type, endian)
		}
		ret.data[field.Type] = MapConfigBase{Destination: destination, Endianness: endian}
	}
	return ret, nil
}

func mapConfig(cfg *ProducerConfig) (*producerConfigMapped, error) {
	newCfg := &producerConfigMapped{}
	if cfg == nil {
		newCfg.Formatter = defaultFormatter
		return newCfg, nil
	}
	var err error
	if newCfg.Formatter, err = mapFormatter(&cfg.Formatter); err != nil {
		return nil, err
	}
	if newCfg.NetFlowV9, err = mapFieldsNetFlow(cfg.NetFlowV9.Mapping); err != nil {
		return nil, err
	}
	return newCfg, nil
}
