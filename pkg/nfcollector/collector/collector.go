package collector

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/netsampler/nfcollector/decoders/netflow"
	"github.com/netsampler/nfcollector/metrics"
	"github.com/netsampler/nfcollector/pkg/nfcollector/listen"
	"github.com/netsampler/nfcollector/transport"
	"github.com/netsampler/nfcollector/utils"
	"github.com/netsampler/nfcollector/utils/debug"

	"github.com/sirupsen/logrus"
)

// Config configures a Collector.
type Config struct {
	Listeners []listen.ListenerConfig
	// Callbacks receive the decoded packets of every listener.
	Callbacks utils.Callbacks
	Transport *transport.Transport

	MaxTemplates       int
	MissingFlowsMaxGap int

	ErrCnt int
	ErrInt time.Duration
	Logger logrus.FieldLogger
}

type pipe struct {
	name      string
	receiver  *utils.UDPReceiver
	collector *utils.Collector
}

// Collector runs one UDP receiver and one NetFlow collector per listener.
// Templates are learned per listener.
type Collector struct {
	listeners    []listen.ListenerConfig
	callbacks    utils.Callbacks
	transport    *transport.Transport
	maxTemplates int
	tracker      *utils.MissingFlowsTracker
	errCnt       int
	errInt       time.Duration
	logger       logrus.FieldLogger

	pipesLock sync.RWMutex
	pipes     []*pipe
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// New creates a Collector from config.
func New(cfg Config) (*Collector, error) {
	if cfg.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if cfg.Callbacks == nil {
		return nil, errors.New("callbacks are required")
	}
	if cfg.MaxTemplates <= 0 {
		cfg.MaxTemplates = netflow.DefaultMaxTemplates
	}
	return &Collector{
		listeners:    cfg.Listeners,
		callbacks:    cfg.Callbacks,
		transport:    cfg.Transport,
		maxTemplates: cfg.MaxTemplates,
		tracker:      utils.NewMissingFlowsTracker(cfg.MissingFlowsMaxGap),
		errCnt:       cfg.ErrCnt,
		errInt:       cfg.ErrInt,
		logger:       cfg.Logger,
	}, nil
}

func (c *Collector) newPipe(listenCfg listen.ListenerConfig, logger logrus.FieldLogger) (*pipe, error) {
	if listenCfg.Scheme != listen.SchemeNetFlow {
		return nil, fmt.Errorf("scheme does not exist: %s", listenCfg.Scheme)
	}
	recv, err := utils.NewUDPReceiver(&utils.UDPReceiverConfig{
		Sockets:          listenCfg.NumSockets,
		Workers:          listenCfg.NumWorkers,
		QueueSize:        listenCfg.QueueSize,
		Blocking:         listenCfg.Blocking,
		ReceiverCallback: metrics.NewReceiverMetric(listenCfg.String()),
	})
	if err != nil {
		return nil, err
	}

	coll := utils.NewCollector(&utils.CollectorConfig{
		Callbacks:     metrics.PromCallbacksWrapper(c.callbacks, c.tracker),
		Templates:     metrics.NewPromTemplateSystem(netflow.CreateTemplateSystem(c.maxTemplates)),
		ErrorCallback: metrics.PromErrorCallback(nil),
		Logger:        logger,
		ErrCnt:        c.errCnt,
		ErrInt:        c.errInt,
	})
	return &pipe{
		name:      listenCfg.String(),
		receiver:  recv,
		collector: coll,
	}, nil
}

func (c *Collector) watchReceiver(recv *utils.UDPReceiver, logger logrus.FieldLogger) {
	defer c.wg.Done()
	bm := utils.NewBatchMute(c.errInt, c.errCnt)
	for {
		select {
		case <-c.stopCh:
			return
		case err := <-recv.Errors():
			if errors.Is(err, net.ErrClosed) {
				logger.Info("closed receiver")
				continue
			}

			kind := "receive"
			if errors.Is(err, debug.ErrPanic) {
				kind = "panic"
			}
			bm.Log(logger, kind, "receiver messages", func() {
				var pErrMsg *debug.PanicErrorMessage
				if errors.As(err, &pErrMsg) {
					logger.WithField("stacktrace", string(pErrMsg.Stacktrace)).Errorf("intercepted panic: %v", pErrMsg.Inner)
				} else {
					logger.WithError(err).Error("receiver error")
				}
			})
		}
	}
}

func (c *Collector) watchTransport() {
	defer c.wg.Done()

	var transportErr <-chan error
	if c.transport != nil {
		if transportErrorFct, ok := c.transport.TransportDriver.(interface {
			Errors() <-chan error
		}); ok {
			transportErr = transportErrorFct.Errors()
		}
	}

	bm := utils.NewBatchMute(c.errInt, c.errCnt)
	for {
		select {
		case <-c.stopCh:
			return
		case err, ok := <-transportErr:
			if !ok || err == nil {
				return
			}
			bm.Log(c.logger, "transport", "transport errors", func() {
				c.logger.WithError(err).Error("transport error")
			})
		}
	}
}

// Start launches the receivers and error handlers.
func (c *Collector) Start() error {
	c.stopCh = make(chan struct{})

	for _, listenCfg := range c.listeners {
		logger := c.logger.WithFields(logrus.Fields{
			"scheme":     listenCfg.Scheme,
			"hostname":   listenCfg.Hostname,
			"port":       listenCfg.Port,
			"count":      listenCfg.NumSockets,
			"workers":    listenCfg.NumWorkers,
			"blocking":   listenCfg.Blocking,
			"queue_size": listenCfg.QueueSize,
		})
		logger.Info("starting collection")

		p, err := c.newPipe(listenCfg, logger)
		if err != nil {
			return err
		}

		decodeFunc := p.collector.DecodeFlow
		decodeFunc = debug.PanicDecoderWrapper(decodeFunc)
		decodeFunc = metrics.PromDecoderWrapper(decodeFunc, listenCfg.Scheme)

		if err := p.receiver.Start(listenCfg.Hostname, listenCfg.Port, decodeFunc); err != nil {
			return err
		}
		c.pipesLock.Lock()
		c.pipes = append(c.pipes, p)
		c.pipesLock.Unlock()

		c.wg.Add(1)
		go c.watchReceiver(p.receiver, logger)
	}

	c.wg.Add(1)
	go c.watchTransport()

	return nil
}

// Stop stops the receivers, forgets the templates, then waits for the
// error handlers.
func (c *Collector) Stop() {
	if c.stopCh != nil {
		close(c.stopCh)
	}

	c.pipesLock.RLock()
	for _, p := range c.pipes {
		if err := p.receiver.Stop(); err != nil {
			c.logger.WithError(err).Error("error stopping receiver")
		}
		p.collector.Close()
	}
	c.pipesLock.RUnlock()
	c.wg.Wait()
}

// NetFlowTemplates lists the templates learned by each listener.
func (c *Collector) NetFlowTemplates() map[string]map[uint16]netflow.TemplateRecord {
	c.pipesLock.RLock()
	defer c.pipesLock.RUnlock()
	if len(c.pipes) == 0 {
		return nil
	}
	templates := make(map[string]map[uint16]netflow.TemplateRecord, len(c.pipes))
	for _, p := range c.pipes {
		templates[p.name] = p.collector.Templates().GetTemplates()
	}
	return templates
}
