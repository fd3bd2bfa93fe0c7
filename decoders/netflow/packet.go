package netflow

// FlowSetHeader contains fields shared by all Flow Sets (DataFlowSet,
// TemplateFlowSet, OptionsTemplateFlowSet).
type FlowSetHeader struct {
	// FlowSet ID:
	//    0 for TemplateFlowSet
	//    1 for OptionsTemplateFlowSet
	//    2-255 reserved
	//    256-65535 for DataFlowSet (used as TemplateId)
	Id uint16 `json:"id"`

	// The total length of this FlowSet in bytes (including padding).
	Length uint16 `json:"length"`
}

func (h FlowSetHeader) Header() FlowSetHeader {
	return h
}

// FlowSet is one of TemplateFlowSet, OptionsTemplateFlowSet, DataFlowSet,
// RawFlowSet or UnknownFlowSet.
type FlowSet interface {
	Header() FlowSetHeader
	String() string
	flowSet()
}

// TemplateFlowSet is a collection of templates that describe structure of Data
// Records (actual NetFlow data).
type TemplateFlowSet struct {
	FlowSetHeader

	// List of Template Records
	Records []TemplateRecord `json:"records"`
}

// OptionsTemplateFlowSet is kept as the undecoded flowset body.
type OptionsTemplateFlowSet struct {
	FlowSetHeader

	Records []byte `json:"records"`
}

// DataFlowSet is a collection of Data Records decoded with the template whose
// id is the FlowSet id.
type DataFlowSet struct {
	FlowSetHeader

	Records []DataRecord `json:"records"`
}

// RawFlowSet is a a set that could not be decoded due to the absence of a template
type RawFlowSet struct {
	FlowSetHeader

	Records []byte `json:"records"`
}

// UnknownFlowSet carries a flowset with a reserved id (2 to 255).
type UnknownFlowSet struct {
	FlowSetHeader

	Records []byte `json:"records"`
}

func (TemplateFlowSet) flowSet()        {}
func (OptionsTemplateFlowSet) flowSet() {}
func (DataFlowSet) flowSet()            {}
func (RawFlowSet) flowSet()             {}
func (UnknownFlowSet) flowSet()         {}

// TemplateRecord is a single template that describes structure of a Flow Record
// (actual Netflow data).
type TemplateRecord struct {
	// Each of the newly generated Template Records is given a unique
	// Template ID. Template IDs of Data FlowSets are numbered
	// from 256 to 65535.
	TemplateId uint16 `json:"template-id"`

	// Number of fields in this Template Record. Because a Template FlowSet
	// usually contains multiple Template Records, this field allows the
	// Collector to determine the end of the current Template Record and
	// the start of the next.
	FieldCount uint16 `json:"field-count"`

	// List of fields in this Template Record.
	Fields []Field `json:"fields"`
}

// FlowSize is the number of bytes of one data record described by the template.
func (t TemplateRecord) FlowSize() int {
	sum := 0
	for _, field := range t.Fields {
		sum += int(field.Length)
	}
	return sum
}

func (t TemplateRecord) clone() TemplateRecord {
	fields := make([]Field, len(t.Fields))
	copy(fields, t.Fields)
	t.Fields = fields
	return t
}

type DataRecord struct {
	Values []DataField `json:"values"`
}

// Field describes type and length of a single value in a Flow Data Record.
// Field does not contain the record value itself it is just a description of
// what record value will look like.
type Field struct {
	// A numeric value that represents the type of field.
	Type uint16 `json:"type"`

	// The length (in bytes) of the field.
	Length uint16 `json:"length"`
}

type DataField struct {
	// A numeric value that represents the type of field.
	Type uint16 `json:"type"`

	// The bytes of the field, owned by the record.
	Raw []byte `json:"-"`

	// The interpreted value, see InterpretValue.
	Value interface{} `json:"value"`

	// Set when the template length differs from the fixed length of the type.
	LengthMismatch bool `json:"length-mismatch,omitempty"`
}
