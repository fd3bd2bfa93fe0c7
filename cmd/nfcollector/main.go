package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	// various formatters
	_ "github.com/netsampler/nfcollector/format/binary"
	_ "github.com/netsampler/nfcollector/format/json"
	_ "github.com/netsampler/nfcollector/format/text"

	// various transports
	_ "github.com/netsampler/nfcollector/transport/file"
	_ "github.com/netsampler/nfcollector/transport/kafka"

	"github.com/netsampler/nfcollector/pkg/nfcollector/app"
	"github.com/netsampler/nfcollector/pkg/nfcollector/config"

	log "github.com/sirupsen/logrus"
)

var (
	version    = ""
	buildinfos = ""
	AppVersion = "nfcollector " + version + " " + buildinfos
)

func main() {
	cfg := config.BindFlags(flag.CommandLine)
	configFile := flag.String("config", "", "YAML configuration file")
	printVersion := flag.Bool("v", false, "Print version")
	flag.Parse()

	if *printVersion {
		fmt.Println(AppVersion)
		os.Exit(0)
	}

	if *configFile != "" {
		if err := cfg.LoadFile(flag.CommandLine, *configFile); err != nil {
			log.WithError(err).Fatal("error loading configuration")
		}
	} else if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	a, err := app.New(cfg)
	if err != nil {
		log.WithError(err).Fatal("error starting")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		log.WithError(err).Error("stopped with error")
		os.Exit(1)
	}
}
