package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
)

// Endpoints holds the current backend address. It is built once at startup
// and passed explicitly to every component that needs a URL; SetBackend
// re-points all of them at once.
type Endpoints struct {
	mu          sync.RWMutex
	host        string
	port        int
	commonHosts []string
	explicit    []string
	mqttBroker  string
	pollPath    string
}

// NewEndpoints builds the endpoint set from configuration.
func NewEndpoints(cfg *Config) *Endpoints {
	return &Endpoints{
		host:        cfg.BackendHost,
		port:        cfg.BackendPort,
		commonHosts: append([]string(nil), cfg.BackendCommonHosts...),
		explicit:    append([]string(nil), cfg.PushEndpoints...),
		mqttBroker:  cfg.MQTTBroker,
		pollPath:    cfg.PollPath,
	}
}

// SetBackend re-points the backend at host:port.
func (e *Endpoints) SetBackend(host string, port int) error {
	host = strings.TrimSpace(host)
	if host == "" {
		return fmt.Errorf("backend host is empty")
	}
	if port <= 0 || port > 65535 {
		return fmt.Errorf("backend port %d out of range", port)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.host = host
	e.port = port
	return nil
}

// Backend returns the current host and port.
func (e *Endpoints) Backend() (string, int) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.host, e.port
}

// BackendURL is the REST base, e.g. http://192.168.1.5:5000.
func (e *Endpoints) BackendURL() string {
	host, port := e.Backend()
	return "http://" + hostPort(host, port)
}

// WebSocketURL is the push base for the current host.
func (e *Endpoints) WebSocketURL() string {
	host, port := e.Backend()
	return "ws://" + hostPort(host, port)
}

// PollURL is the latest-reading endpoint on the current backend.
func (e *Endpoints) PollURL() string {
	e.mu.RLock()
	path := e.pollPath
	e.mu.RUnlock()
	return e.BackendURL() + path
}

// PushCandidates returns the ordered push endpoints to try: the explicit
// list when configured, otherwise the current host followed by the common
// hosts, without duplicates. An MQTT broker, when set, is tried last.
func (e *Endpoints) PushCandidates() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []string
	seen := make(map[string]bool)
	add := func(u string) {
		if u != "" && !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}

	if len(e.explicit) > 0 {
		for _, u := range e.explicit {
			add(u)
		}
	} else {
		add("ws://" + hostPort(e.host, e.port))
		for _, h := range e.commonHosts {
			add("ws://" + hostPort(h, e.port))
		}
	}
	add(e.mqttBroker)
	return out
}

func hostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
