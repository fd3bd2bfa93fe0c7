package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/netsampler/nfcollector/enricher"
	"github.com/netsampler/nfcollector/metrics"
	"github.com/netsampler/nfcollector/pkg/nfcollector/builder"
	"github.com/netsampler/nfcollector/pkg/nfcollector/collector"
	"github.com/netsampler/nfcollector/pkg/nfcollector/config"
	"github.com/netsampler/nfcollector/pkg/nfcollector/httpserver"
	"github.com/netsampler/nfcollector/pkg/nfcollector/listen"
	"github.com/netsampler/nfcollector/pkg/nfcollector/logging"
	"github.com/netsampler/nfcollector/transport"
	"github.com/netsampler/nfcollector/utils"

	"github.com/sirupsen/logrus"
)

// App wires and runs the collector daemon.
type App struct {
	cfg        *config.Config
	logger     *logrus.Logger
	collector  *collector.Collector
	forwarder  *utils.Forwarder
	transport  *transport.Transport
	enricher   *enricher.Enricher
	pusher     *metrics.Pusher
	server     *http.Server
	serverErr  chan error
	collecting atomic.Bool

	cancelPush context.CancelFunc
	pushWg     sync.WaitGroup
}

// New constructs a new App from config.
func New(cfg *config.Config) (*App, error) {
	logger, err := logging.NewLogger(cfg.LogLevel, cfg.LogFmt)
	if err != nil {
		return nil, err
	}
	logrus.SetLevel(logger.GetLevel())
	logrus.SetFormatter(logger.Formatter)

	listeners, err := listen.ParseListenAddresses(cfg.ListenAddresses)
	if err != nil {
		return nil, err
	}

	formatter, err := builder.BuildFormatter(cfg.Format)
	if err != nil {
		return nil, err
	}
	flowProducer, err := builder.BuildProducer(cfg)
	if err != nil {
		return nil, err
	}
	flowEnricher, err := builder.BuildEnricher(cfg)
	if err != nil {
		return nil, err
	}
	transporter, err := builder.BuildTransport(cfg.Transport)
	if err != nil {
		_ = flowEnricher.Close()
		return nil, err
	}

	forwarder := utils.NewForwarder(&utils.ForwarderConfig{
		Producer:  flowProducer,
		Enricher:  flowEnricher,
		Format:    formatter,
		Transport: transporter,
		Logger:    logger,
		ErrCnt:    cfg.ErrCnt,
		ErrInt:    cfg.ErrInt,
	})

	coll, err := collector.New(collector.Config{
		Listeners:          listeners,
		Callbacks:          forwarder,
		Transport:          transporter,
		MaxTemplates:       cfg.MaxTemplates,
		MissingFlowsMaxGap: int(cfg.MissingFlowsMaxGap),
		ErrCnt:             cfg.ErrCnt,
		ErrInt:             cfg.ErrInt,
		Logger:             logger,
	})
	if err != nil {
		return nil, err
	}

	app := &App{
		cfg:       cfg,
		logger:    logger,
		collector: coll,
		forwarder: forwarder,
		transport: transporter,
		enricher:  flowEnricher,
		serverErr: make(chan error, 1),
	}

	if cfg.PushGateway != "" {
		instance, _ := os.Hostname()
		app.pusher = metrics.NewPusher(cfg.PushGateway, cfg.PushJob, instance, nil)
	}

	if cfg.Addr != "" {
		mux := httpserver.New(httpserver.Config{
			Addr:         cfg.Addr,
			TemplatePath: cfg.TemplatePath,
			FieldsPath:   cfg.FieldsPath,
		}, coll.NetFlowTemplates, app.collecting.Load)
		app.server = &http.Server{
			Addr:              cfg.Addr,
			Handler:           mux,
			ReadHeaderTimeout: time.Second * 5,
		}
	}

	return app, nil
}

// Start starts the collector, the metrics pusher and the HTTP server.
func (a *App) Start() error {
	a.logger.Info("starting nfcollector")

	if err := a.collector.Start(); err != nil {
		return err
	}
	a.collecting.Store(true)

	if a.pusher != nil {
		var ctx context.Context
		ctx, a.cancelPush = context.WithCancel(context.Background())
		a.pushWg.Add(1)
		go func() {
			defer a.pushWg.Done()
			a.pusher.Run(ctx, a.cfg.PushInterval, a.logger.WithField("pushgateway", a.cfg.PushGateway))
		}()
	}

	if a.server == nil {
		return nil
	}

	go func() {
		err := a.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.serverErr <- err
			return
		}
		a.logger.WithField("http", a.cfg.Addr).Info("closed HTTP server")
	}()

	return nil
}

// Run starts the app and blocks until context cancellation or server error.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(); err != nil {
		a.shutdown()
		return err
	}

	var err error
	select {
	case <-ctx.Done():
	case err = <-a.Wait():
	}
	a.shutdown()
	return err
}

func (a *App) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	a.Shutdown(shutdownCtx)
}

// Wait returns a channel that receives HTTP server errors.
func (a *App) Wait() <-chan error {
	return a.serverErr
}

// Shutdown stops the receivers, closes the outputs and shuts down the HTTP
// server. A last push sends the final counters to the gateway.
func (a *App) Shutdown(ctx context.Context) {
	a.collecting.Store(false)

	a.collector.Stop()
	a.forwarder.Close()
	if err := a.transport.Close(); err != nil {
		a.logger.WithError(err).Error("error closing transport")
	}
	a.logger.Info("transporter closed")
	if err := a.enricher.Close(); err != nil {
		a.logger.WithError(err).Error("error closing GeoIP databases")
	}

	if a.pusher != nil {
		if a.cancelPush != nil {
			a.cancelPush()
			a.pushWg.Wait()
		}
		if err := a.pusher.Push(); err != nil {
			a.logger.Warn(err)
		}
	}

	if a.server == nil {
		return
	}
	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.WithError(err).Error("error shutting-down HTTP server")
	}
}
