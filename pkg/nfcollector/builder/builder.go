// Package builder resolves the configured drivers and producer.
package builder

import (
	"fmt"
	"os"

	"github.com/netsampler/nfcollector/enricher"
	"github.com/netsampler/nfcollector/format"
	"github.com/netsampler/nfcollector/pkg/nfcollector/config"
	"github.com/netsampler/nfcollector/producer"
	"github.com/netsampler/nfcollector/transport"
)

// BuildFormatter resolves a formatter by name.
func BuildFormatter(name string) (*format.Format, error) {
	formatter, err := format.FindFormat(name)
	if err != nil {
		return nil, fmt.Errorf("build formatter %s: %w", name, err)
	}
	return formatter, nil
}

// BuildTransport resolves a transport by name.
func BuildTransport(name string) (*transport.Transport, error) {
	t, err := transport.FindTransport(name)
	if err != nil {
		return nil, fmt.Errorf("build transport %s: %w", name, err)
	}
	return t, nil
}

// BuildProducer creates the flow producer, with the custom mapping file
// when one is configured.
func BuildProducer(cfg *config.Config) (producer.ProducerInterface, error) {
	var cfgProducer *producer.ProducerConfig
	if cfg.MappingFile != "" {
		f, err := os.Open(cfg.MappingFile)
		if err != nil {
			return nil, fmt.Errorf("load mapping %s: open: %w", cfg.MappingFile, err)
		}
		cfgProducer, err = producer.LoadProducerConfig(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("load mapping %s: decode: %w", cfg.MappingFile, err)
		}
	}

	p, err := producer.CreateProducerWithConfig(cfgProducer)
	if err != nil {
		return nil, fmt.Errorf("compile mapping: %w", err)
	}
	return p, nil
}

// BuildEnricher opens the GeoIP databases. Without databases the enricher
// leaves messages untouched.
func BuildEnricher(cfg *config.Config) (*enricher.Enricher, error) {
	e, err := enricher.Open(cfg.GeoIPASN, cfg.GeoIPCountry)
	if err != nil {
		return nil, fmt.Errorf("build enricher: %w", err)
	}
	return e, nil
}
