// Package config holds the settings of the nfcollector daemon. Every
// setting is a flag; a YAML file can provide them too, flags given on the
// command line win over the file.
package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/netsampler/nfcollector/decoders/netflow"
	"github.com/netsampler/nfcollector/format"
	"github.com/netsampler/nfcollector/transport"
	"github.com/netsampler/nfcollector/utils/errwrap"

	"gopkg.in/yaml.v2"
)

type Config struct {
	ListenAddresses string `yaml:"listen"`

	LogLevel string `yaml:"loglevel"`
	LogFmt   string `yaml:"logfmt"`

	Format    string `yaml:"format"`
	Transport string `yaml:"transport"`

	ErrCnt int           `yaml:"err_cnt"`
	ErrInt time.Duration `yaml:"err_int"`

	Addr         string `yaml:"addr"`
	TemplatePath string `yaml:"templates_path"`
	FieldsPath   string `yaml:"fields_path"`
	MaxTemplates int    `yaml:"max_templates"`

	MappingFile string `yaml:"mapping"`

	GeoIPASN     string `yaml:"geoip_asn"`
	GeoIPCountry string `yaml:"geoip_country"`

	PushGateway  string        `yaml:"push_gateway"`
	PushJob      string        `yaml:"push_job"`
	PushInterval time.Duration `yaml:"push_interval"`

	MissingFlowsMaxGap int64 `yaml:"missing_flows_max_gap"`
}

// BindFlags registers the flags on fs and returns the Config they fill.
func BindFlags(fs *flag.FlagSet) *Config {
	cfg := &Config{}

	fs.StringVar(&cfg.ListenAddresses, "listen", "netflow://:2055", "listen addresses")
	fs.StringVar(&cfg.LogLevel, "loglevel", "info", "Log level")
	fs.StringVar(&cfg.LogFmt, "logfmt", "normal", "Log formatter (normal or json)")
	fs.StringVar(&cfg.Format, "format", "json", fmt.Sprintf("Choose the format (available: %s)", strings.Join(format.GetFormats(), ", ")))
	fs.StringVar(&cfg.Transport, "transport", "file", fmt.Sprintf("Choose the transport (available: %s)", strings.Join(transport.GetTransports(), ", ")))
	fs.IntVar(&cfg.ErrCnt, "err.cnt", 10, "Maximum errors per batch for muting")
	fs.DurationVar(&cfg.ErrInt, "err.int", time.Second*10, "Maximum errors interval for muting")
	fs.StringVar(&cfg.Addr, "addr", ":8080", "HTTP server address")
	fs.StringVar(&cfg.TemplatePath, "templates.path", "/templates", "NetFlow v9 templates list")
	fs.StringVar(&cfg.FieldsPath, "fields.path", "/fields", "NetFlow v9 field types list")
	fs.IntVar(&cfg.MaxTemplates, "templates.max", netflow.DefaultMaxTemplates, "Maximum number of templates kept per listener")
	fs.StringVar(&cfg.MappingFile, "mapping", "", "Configuration file for custom mappings")
	fs.StringVar(&cfg.GeoIPASN, "geoip.asn", "", "IP->ASN database (GeoLite2-ASN.mmdb)")
	fs.StringVar(&cfg.GeoIPCountry, "geoip.country", "", "IP->Country database (GeoLite2-Country.mmdb)")
	fs.StringVar(&cfg.PushGateway, "metrics.push", "", "Prometheus Pushgateway URL (empty to disable pushing)")
	fs.StringVar(&cfg.PushJob, "metrics.push.job", "nfcollector", "Pushgateway job name")
	fs.DurationVar(&cfg.PushInterval, "metrics.push.interval", time.Second*15, "Pushgateway push interval")
	fs.Int64Var(&cfg.MissingFlowsMaxGap, "missing.maxgap", 1000000, "Sequence gap above which an exporter is considered restarted")

	return cfg
}

// Load reads YAML settings from r into cfg. Flags already set on fs keep
// their command line value.
func (cfg *Config) Load(fs *flag.FlagSet, r io.Reader) error {
	explicit := make(map[string]string)
	fs.Visit(func(f *flag.Flag) {
		explicit[f.Name] = f.Value.String()
	})

	dec := yaml.NewDecoder(r)
	dec.SetStrict(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return errwrap.Wrap(err)
	}

	for name, value := range explicit {
		if err := fs.Set(name, value); err != nil {
			return errwrap.WrapWith(err, name)
		}
	}
	return cfg.Validate()
}

// LoadFile is Load on the content of path.
func (cfg *Config) LoadFile(fs *flag.FlagSet, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errwrap.Wrap(err)
	}
	defer f.Close()
	return errwrap.WrapWith(cfg.Load(fs, f), path)
}

func (cfg *Config) Validate() error {
	if cfg.ListenAddresses == "" {
		return fmt.Errorf("no listen address")
	}
	if cfg.MaxTemplates <= 0 || cfg.MaxTemplates > netflow.DefaultMaxTemplates {
		return fmt.Errorf("templates.max must be between 1 and %d", netflow.DefaultMaxTemplates)
	}
	if cfg.PushGateway != "" && cfg.PushInterval <= 0 {
		return fmt.Errorf("metrics.push.interval must be positive")
	}
	return nil
}
