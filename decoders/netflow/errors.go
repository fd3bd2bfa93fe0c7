package netflow

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidFieldLength          = errors.New("template field with zero length")
	ErrInvalidFlowsetLength        = errors.New("invalid flowset length")
	ErrTruncatedFlowRecord         = errors.New("truncated flow record")
	ErrCacheFull                   = errors.New("template cache full")
	ErrEmptyTemplate               = errors.New("template without fields")
	ErrTemplateNotFound            = errors.New("template not found")
	ErrTemplateFieldLengthMismatch = errors.New("template field length differs from field type")
)

type DecoderError struct {
	Decoder string
	Err     error
}

func (e *DecoderError) Error() string {
	return fmt.Sprintf("%s %s", e.Decoder, e.Err.Error())
}

func (e *DecoderError) Unwrap() error {
	return e.Err
}

type FlowError struct {
	Version   uint16
	Type      string
	SourceId  uint32
	FlowSetId uint16
	Err       error
}

func (e *FlowError) Error() string {
	return fmt.Sprintf("[version:%d type:%s sourceId:%v: flowSetId:%d] %s", e.Version, e.Type, e.SourceId, e.FlowSetId, e.Err.Error())
}

func (e *FlowError) Unwrap() error {
	return e.Err
}

// CacheFullError is returned when a new template id is offered to a cache
// already holding Capacity templates.
type CacheFullError struct {
	TemplateId uint16
	Capacity   int
}

func (e *CacheFullError) Error() string {
	return fmt.Sprintf("%s: template %d rejected, capacity %d", ErrCacheFull.Error(), e.TemplateId, e.Capacity)
}

func (e *CacheFullError) Unwrap() error {
	return ErrCacheFull
}

type TemplateError struct {
	TemplateId uint16
	Err        error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template %d: %s", e.TemplateId, e.Err.Error())
}

func (e *TemplateError) Unwrap() error {
	return e.Err
}

// FlowSetLengthError reports a FlowSet whose length cannot even hold its header.
type FlowSetLengthError struct {
	FlowSetId uint16
	Length    uint16
}

func (e *FlowSetLengthError) Error() string {
	return fmt.Sprintf("%s: flowset %d declares %d bytes", ErrInvalidFlowsetLength.Error(), e.FlowSetId, e.Length)
}

func (e *FlowSetLengthError) Unwrap() error {
	return ErrInvalidFlowsetLength
}

// TruncatedRecordError reports trailing data flowset bytes that are too long
// to be padding and too short to hold a record.
type TruncatedRecordError struct {
	TemplateId uint16
	RecordSize int
	Remaining  int
}

func (e *TruncatedRecordError) Error() string {
	return fmt.Sprintf("%s: template %d needs %d bytes, %d left", ErrTruncatedFlowRecord.Error(), e.TemplateId, e.RecordSize, e.Remaining)
}

func (e *TruncatedRecordError) Unwrap() error {
	return ErrTruncatedFlowRecord
}

func isRecoverable(err error) bool {
	return err == ErrCacheFull || err == ErrInvalidFieldLength || err == ErrEmptyTemplate
}

// IsFatal reports whether err means the packet could not be decoded.
// A nil error, or an aggregate made only of rejected templates, is not fatal:
// the packet was decoded and can be used.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	for err != nil {
		if isRecoverable(err) {
			return false
		}
		if multi, ok := err.(interface{ Unwrap() []error }); ok {
			for _, e := range multi.Unwrap() {
				if IsFatal(e) {
					return true
				}
			}
			return false
		}
		err = errors.Unwrap(err)
	}
	return true
}

// Flatten expands joined errors into their members, keeping wrappers intact.
func Flatten(err error) []error {
	if err == nil {
		return nil
	}
	if multi, ok := err.(interface{ Unwrap() []error }); ok {
		var errs []error
		for _, e := range multi.Unwrap() {
			errs = append(errs, Flatten(e)...)
		}
		return errs
	}
	return []error{err}
}
