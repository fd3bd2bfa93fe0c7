package metrics

import (
	"errors"
	"strconv"

	"github.com/netsampler/nfcollector/decoders/netflow"

	"github.com/prometheus/client_golang/prometheus"
)

// PromTemplateSystem counts the templates offered to the wrapped cache and
// keeps the cache size gauge current.
type PromTemplateSystem struct {
	wrapped netflow.NetFlowTemplateSystem
}

func NewPromTemplateSystem(wrapped netflow.NetFlowTemplateSystem) netflow.NetFlowTemplateSystem {
	return &PromTemplateSystem{
		wrapped: wrapped,
	}
}

func (s *PromTemplateSystem) AddTemplate(template netflow.TemplateRecord) error {
	err := s.wrapped.AddTemplate(template)

	typeStr := "template"
	if errors.Is(err, netflow.ErrCacheFull) {
		typeStr = "rejected"
	}
	NetFlowTemplatesStats.With(
		prometheus.Labels{
			"template_id": strconv.Itoa(int(template.TemplateId)),
			"type":        typeStr,
		}).
		Inc()
	NetFlowTemplates.Set(float64(s.wrapped.Len()))
	return err
}

func (s *PromTemplateSystem) GetTemplate(templateId uint16) (netflow.TemplateRecord, error) {
	return s.wrapped.GetTemplate(templateId)
}

func (s *PromTemplateSystem) RemoveTemplate(templateId uint16) (netflow.TemplateRecord, error) {
	template, err := s.wrapped.RemoveTemplate(templateId)
	NetFlowTemplates.Set(float64(s.wrapped.Len()))
	return template, err
}

func (s *PromTemplateSystem) GetTemplates() map[uint16]netflow.TemplateRecord {
	return s.wrapped.GetTemplates()
}

func (s *PromTemplateSystem) Clear() {
	s.wrapped.Clear()
	NetFlowTemplates.Set(0)
}

func (s *PromTemplateSystem) Len() int {
	return s.wrapped.Len()
}
