package listen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseListenAddresses(t *testing.T) {
	cfgs, err := ParseListenAddresses("netflow://:2055,netflow://127.0.0.1:9995?count=4&workers=3&blocking=true")
	require.NoError(t, err)
	require.Len(t, cfgs, 2)

	assert.Equal(t, ListenerConfig{
		Scheme:     "netflow",
		Port:       2055,
		NumSockets: 1,
		NumWorkers: 2,
		QueueSize:  1000000,
	}, cfgs[0])
	assert.Equal(t, "netflow://:2055", cfgs[0].String())

	assert.Equal(t, ListenerConfig{
		Scheme:     "netflow",
		Hostname:   "127.0.0.1",
		Port:       9995,
		NumSockets: 4,
		NumWorkers: 3,
		Blocking:   true,
	}, cfgs[1])
	assert.Equal(t, "netflow://127.0.0.1:9995", cfgs[1].String())
}

func TestParseListenAddressesErrors(t *testing.T) {
	for _, addr := range []string{
		"sflow://:6343",
		"netflow://:notaport",
		"netflow://:70000",
		"netflow://:2055?count=-1",
		"netflow://:2055?blocking=maybe",
		"netflow://:2055?queue_size=x",
	} {
		_, err := ParseListenAddresses(addr)
		assert.Error(t, err, addr)
	}
}
