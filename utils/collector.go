package utils

import (
	"bytes"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/netsampler/nfcollector/decoders/netflow"
	"github.com/netsampler/nfcollector/decoders/netflowlegacy"
	decoders "github.com/netsampler/nfcollector/decoders/utils"
	"github.com/netsampler/nfcollector/utils/debug"

	"github.com/sirupsen/logrus"
)

var ErrUnsupportedVersion = errors.New("unsupported NetFlow version")

type VersionError struct {
	Version uint16
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("%s %d", ErrUnsupportedVersion.Error(), e.Version)
}

func (e *VersionError) Unwrap() error {
	return ErrUnsupportedVersion
}

// PipeMessageError attaches the datagram to an error raised while handling it.
type PipeMessageError struct {
	Message *Message
	Err     error
}

func (e *PipeMessageError) Error() string {
	return fmt.Sprintf("message from %s %s", e.Message.Src.String(), e.Err.Error())
}

func (e *PipeMessageError) Unwrap() error {
	return e.Err
}

// Callbacks receives every decoded packet. The packet belongs to the
// callback; the collector keeps no reference to it.
type Callbacks interface {
	OnNetFlow5(exporter netip.AddrPort, packet *netflowlegacy.PacketNetFlowV5)
	OnNetFlow9(exporter netip.AddrPort, packet *netflow.NFv9Packet)
}

// ErrorEvent describes one problem found while handling a datagram.
// A fatal event means the datagram was dropped.
type ErrorEvent struct {
	Exporter   netip.AddrPort
	Version    uint16
	FlowSetId  uint16
	TemplateId uint16
	Fatal      bool
	Err        error
}

// Kind is a short label for the cause of the event.
func (e ErrorEvent) Kind() string {
	return ErrorKind(e.Err)
}

func (e ErrorEvent) Fields() logrus.Fields {
	fields := logrus.Fields{
		"exporter": e.Exporter.String(),
		"version":  e.Version,
		"fatal":    e.Fatal,
		"kind":     e.Kind(),
	}
	if e.Version == 9 {
		fields["flowset_id"] = e.FlowSetId
	}
	if e.TemplateId != 0 {
		fields["template_id"] = e.TemplateId
	}
	return fields
}

// ErrorKind maps an error to the label used in logs and metrics.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, debug.ErrPanic):
		return "panic"
	case errors.Is(err, ErrUnsupportedVersion):
		return "unsupported_version"
	case errors.Is(err, netflow.ErrCacheFull):
		return "cache_full"
	case errors.Is(err, netflow.ErrInvalidFieldLength):
		return "invalid_field_length"
	case errors.Is(err, netflow.ErrEmptyTemplate):
		return "empty_template"
	case errors.Is(err, netflow.ErrInvalidFlowsetLength):
		return "invalid_flowset_length"
	case errors.Is(err, netflow.ErrTruncatedFlowRecord):
		return "truncated_record"
	case errors.Is(err, decoders.ErrTruncatedInput):
		return "truncated"
	}
	return "error_decoding"
}

type CollectorConfig struct {
	Callbacks Callbacks

	// Templates defaults to a cache of netflow.DefaultMaxTemplates entries.
	Templates     netflow.NetFlowTemplateSystem
	ErrorCallback func(ErrorEvent)

	Logger Logger
	// Error logs above ErrCnt per ErrInt are muted. Zero disables muting.
	ErrCnt int
	ErrInt time.Duration
}

// Collector decodes NetFlow v5 and v9 datagrams and hands the packets to
// Callbacks. Errors never escape: they are logged and turned into
// ErrorEvent values for the ErrorCallback.
type Collector struct {
	callbacks     Callbacks
	templates     netflow.NetFlowTemplateSystem
	errorCallback func(ErrorEvent)
	logger        Logger

	mute *BatchMute
}

// NewCollector panics when cfg has no Callbacks.
func NewCollector(cfg *CollectorConfig) *Collector {
	if cfg == nil || cfg.Callbacks == nil {
		panic("utils: collector without callbacks")
	}
	c := &Collector{
		callbacks:     cfg.Callbacks,
		templates:     cfg.Templates,
		errorCallback: cfg.ErrorCallback,
		logger:        cfg.Logger,
		mute:          NewBatchMute(cfg.ErrInt, cfg.ErrCnt),
	}
	if c.templates == nil {
		c.templates = netflow.CreateTemplateSystem(netflow.DefaultMaxTemplates)
	}
	if c.logger == nil {
		c.logger = defaultLogger()
	}
	return c
}

func (c *Collector) Templates() netflow.NetFlowTemplateSystem {
	return c.templates
}

// Close forgets every learned template.
func (c *Collector) Close() {
	c.templates.Clear()
}

// DecodeFlow lets the collector be used as a DecoderFunc. Decoding errors are
// reported as events, so only a wrong message type is returned.
func (c *Collector) DecodeFlow(msg interface{}) error {
	pkt, ok := msg.(*Message)
	if !ok {
		return fmt.Errorf("flow is not *Message")
	}
	c.Receive(pkt)
	return nil
}

// ReceiveBytes handles a datagram of unknown origin.
func (c *Collector) ReceiveBytes(payload []byte) {
	c.Receive(&Message{
		Payload:  payload,
		Received: time.Now().UTC(),
	})
}

// Receive decodes one datagram. A panic raised by a callback is reported as
// a non-fatal event since the packet was already handed over.
func (c *Collector) Receive(msg *Message) {
	var version uint16
	var delivered bool
	defer func() {
		if pErr := recover(); pErr != nil {
			c.report(c.newEvent(msg, version, debug.Recovered(msg, pErr), !delivered))
		}
	}()

	buf := bytes.NewBuffer(msg.Payload)
	if err := decoders.BinaryDecoder(buf, &version); err != nil {
		c.report(c.newEvent(msg, version, err, true))
		return
	}

	switch version {
	case 5:
		var packet netflowlegacy.PacketNetFlowV5
		packet.Version = 5
		if err := netflowlegacy.DecodeMessage(buf, &packet); err != nil {
			c.report(c.newEvent(msg, version, err, true))
			return
		}
		delivered = true
		c.callbacks.OnNetFlow5(msg.Src, &packet)
	case 9:
		var packet netflow.NFv9Packet
		err := netflow.DecodeMessageNetFlow(buf, c.templates, &packet)
		if netflow.IsFatal(err) {
			c.report(c.newEvent(msg, version, err, true))
			return
		}
		for _, e := range netflow.Flatten(err) {
			c.report(c.newEvent(msg, version, e, false))
		}
		delivered = true
		c.callbacks.OnNetFlow9(msg.Src, &packet)
	default:
		c.report(c.newEvent(msg, version, &VersionError{version}, true))
	}
}

func (c *Collector) newEvent(msg *Message, version uint16, err error, fatal bool) ErrorEvent {
	event := ErrorEvent{
		Exporter: msg.Src,
		Version:  version,
		Fatal:    fatal,
		Err:      &PipeMessageError{msg, err},
	}

	var flowErr *netflow.FlowError
	if errors.As(err, &flowErr) {
		event.FlowSetId = flowErr.FlowSetId
	}
	var cacheErr *netflow.CacheFullError
	var templateErr *netflow.TemplateError
	var recordErr *netflow.TruncatedRecordError
	switch {
	case errors.As(err, &cacheErr):
		event.TemplateId = cacheErr.TemplateId
	case errors.As(err, &templateErr):
		event.TemplateId = templateErr.TemplateId
	case errors.As(err, &recordErr):
		event.TemplateId = recordErr.TemplateId
	}
	return event
}

func (c *Collector) report(event ErrorEvent) {
	if c.errorCallback != nil {
		c.errorCallback(event)
	}

	c.mute.Log(c.logger, event.Kind(), "decoding errors", func() {
		logger := c.logger.WithFields(event.Fields())
		var pErrMsg *debug.PanicErrorMessage
		switch {
		case errors.As(event.Err, &pErrMsg):
			logger.WithField("stacktrace", string(pErrMsg.Stacktrace)).Errorf("intercepted panic: %v", pErrMsg.Inner)
		case event.Fatal:
			logger.Error(event.Err.Error())
		default:
			logger.Warn(event.Err.Error())
		}
	})
}
