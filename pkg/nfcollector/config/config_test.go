package config

import (
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlagSet() (*flag.FlagSet, *Config) {
	fs := flag.NewFlagSet("nfcollector", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs, BindFlags(fs)
}

func TestDefaults(t *testing.T) {
	fs, cfg := newFlagSet()
	require.NoError(t, fs.Parse(nil))
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "netflow://:2055", cfg.ListenAddresses)
	assert.Equal(t, 255, cfg.MaxTemplates)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, time.Second*10, cfg.ErrInt)
}

func TestLoadFlagsWin(t *testing.T) {
	fs, cfg := newFlagSet()
	require.NoError(t, fs.Parse([]string{"-format", "text", "-err.cnt", "3"}))

	err := cfg.Load(fs, strings.NewReader(`
listen: netflow://:9995,netflow://:2055?count=2
format: bin
err_cnt: 50
err_int: 1m
max_templates: 64
geoip_country: /var/lib/GeoIP/GeoLite2-Country.mmdb
`))
	require.NoError(t, err)

	assert.Equal(t, "netflow://:9995,netflow://:2055?count=2", cfg.ListenAddresses)
	assert.Equal(t, "text", cfg.Format)
	assert.Equal(t, 3, cfg.ErrCnt)
	assert.Equal(t, time.Minute, cfg.ErrInt)
	assert.Equal(t, 64, cfg.MaxTemplates)
	assert.Equal(t, "/var/lib/GeoIP/GeoLite2-Country.mmdb", cfg.GeoIPCountry)
	assert.Equal(t, "file", cfg.Transport)
}

func TestLoadErrors(t *testing.T) {
	fs, cfg := newFlagSet()
	require.NoError(t, fs.Parse(nil))
	assert.Error(t, cfg.Load(fs, strings.NewReader("unknown_setting: 1\n")))

	fs, cfg = newFlagSet()
	require.NoError(t, fs.Parse(nil))
	assert.Error(t, cfg.Load(fs, strings.NewReader("max_templates: 256\n")))

	fs, cfg = newFlagSet()
	require.NoError(t, fs.Parse(nil))
	assert.Error(t, cfg.LoadFile(fs, filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nfcollector.yaml")
	require.NoError(t, os.WriteFile(path, []byte("transport: kafka\n"), 0o644))

	fs, cfg := newFlagSet()
	require.NoError(t, fs.Parse(nil))
	require.NoError(t, cfg.LoadFile(fs, path))
	assert.Equal(t, "kafka", cfg.Transport)
}
