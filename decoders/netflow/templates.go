package netflow

import (
	"sync"
)

// DefaultMaxTemplates is the number of templates a cache holds unless told
// otherwise.
const DefaultMaxTemplates = 255

// Store interface that allows storing, removing and retrieving template data
type NetFlowTemplateSystem interface {
	// AddTemplate stores or replaces a template. A new template id offered
	// to a full store is rejected with a *CacheFullError.
	AddTemplate(template TemplateRecord) error
	GetTemplate(templateId uint16) (TemplateRecord, error)
	RemoveTemplate(templateId uint16) (TemplateRecord, error)
	GetTemplates() map[uint16]TemplateRecord
	Clear()
	Len() int
}

type BasicTemplateSystem struct {
	templates     map[uint16]TemplateRecord
	templateslock *sync.RWMutex
	maxEntries    int
}

// Creates a basic store for NetFlow templates holding at most maxEntries
// templates (DefaultMaxTemplates when maxEntries is not positive).
// Everyting is stored in memory.
func CreateTemplateSystem(maxEntries int) NetFlowTemplateSystem {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxTemplates
	}
	ts := &BasicTemplateSystem{
		templates:     make(map[uint16]TemplateRecord),
		templateslock: &sync.RWMutex{},
		maxEntries:    maxEntries,
	}
	return ts
}

func (ts *BasicTemplateSystem) GetTemplates() map[uint16]TemplateRecord {
	ts.templateslock.RLock()
	defer ts.templateslock.RUnlock()
	tmp := make(map[uint16]TemplateRecord, len(ts.templates))
	for id, template := range ts.templates {
		tmp[id] = template.clone()
	}
	return tmp
}

func (ts *BasicTemplateSystem) AddTemplate(template TemplateRecord) error {
	ts.templateslock.Lock()
	defer ts.templateslock.Unlock()

	if _, ok := ts.templates[template.TemplateId]; !ok && len(ts.templates) >= ts.maxEntries {
		return &CacheFullError{TemplateId: template.TemplateId, Capacity: ts.maxEntries}
	}
	ts.templates[template.TemplateId] = template.clone()
	return nil
}

func (ts *BasicTemplateSystem) GetTemplate(templateId uint16) (TemplateRecord, error) {
	ts.templateslock.RLock()
	defer ts.templateslock.RUnlock()
	if template, ok := ts.templates[templateId]; ok {
		return template.clone(), nil
	}
	return TemplateRecord{}, ErrTemplateNotFound
}

func (ts *BasicTemplateSystem) RemoveTemplate(templateId uint16) (TemplateRecord, error) {
	ts.templateslock.Lock()
	defer ts.templateslock.Unlock()

	if template, ok := ts.templates[templateId]; ok {
		delete(ts.templates, templateId)
		return template, nil
	}
	return TemplateRecord{}, ErrTemplateNotFound
}

func (ts *BasicTemplateSystem) Clear() {
	ts.templateslock.Lock()
	ts.templates = make(map[uint16]TemplateRecord)
	ts.templateslock.Unlock()
}

func (ts *BasicTemplateSystem) Len() int {
	ts.templateslock.RLock()
	defer ts.templateslock.RUnlock()
	return len(ts.templates)
}
