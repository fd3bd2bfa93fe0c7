package listen

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// SchemeNetFlow accepts NetFlow v5 and v9 on the same socket.
const SchemeNetFlow = "netflow"

type ListenerConfig struct {
	Scheme     string
	Hostname   string
	Port       int
	NumSockets int
	NumWorkers int
	Blocking   bool
	QueueSize  int
}

func (l ListenerConfig) String() string {
	return fmt.Sprintf("%s://%s", l.Scheme, net.JoinHostPort(l.Hostname, strconv.Itoa(l.Port)))
}

func queryUint(query url.Values, name string) (int, bool, error) {
	if !query.Has(name) {
		return 0, false, nil
	}
	v, err := strconv.ParseUint(query.Get(name), 10, 64)
	if err != nil {
		return 0, true, fmt.Errorf("error parsing %s in URL: %w", name, err)
	}
	return int(v), true, nil
}

// ParseListenAddresses parses a comma-separated list of URLs such as
// netflow://:2055?count=4&workers=8&blocking=false&queue_size=100000.
func ParseListenAddresses(addresses string) ([]ListenerConfig, error) {
	var cfgs []ListenerConfig
	for _, listenAddress := range strings.Split(addresses, ",") {
		listenAddrURL, err := url.Parse(strings.TrimSpace(listenAddress))
		if err != nil {
			return nil, fmt.Errorf("parse listen address %q: %w", listenAddress, err)
		}
		if listenAddrURL.Scheme != SchemeNetFlow {
			return nil, fmt.Errorf("scheme does not exist: %q", listenAddrURL.Scheme)
		}
		query := listenAddrURL.Query()

		numSockets, _, err := queryUint(query, "count")
		if err != nil {
			return nil, err
		}
		if numSockets == 0 {
			numSockets = 1
		}

		numWorkers, _, err := queryUint(query, "workers")
		if err != nil {
			return nil, err
		}
		if numWorkers == 0 {
			numWorkers = numSockets * 2
		}

		var isBlocking bool
		if query.Has("blocking") {
			isBlocking, err = strconv.ParseBool(query.Get("blocking"))
			if err != nil {
				return nil, fmt.Errorf("error parsing blocking in URL: %w", err)
			}
		}

		queueSize, set, err := queryUint(query, "queue_size")
		if err != nil {
			return nil, err
		}
		if !set && !isBlocking {
			queueSize = 1000000
		}

		port, err := strconv.ParseUint(listenAddrURL.Port(), 10, 16)
		if err != nil {
			return nil, fmt.Errorf("port could not be converted to integer: %q: %w", listenAddrURL.Port(), err)
		}

		cfgs = append(cfgs, ListenerConfig{
			Scheme:     listenAddrURL.Scheme,
			Hostname:   listenAddrURL.Hostname(),
			Port:       int(port),
			NumSockets: numSockets,
			NumWorkers: numWorkers,
			Blocking:   isBlocking,
			QueueSize:  queueSize,
		})
	}

	return cfgs, nil
}
