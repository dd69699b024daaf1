package telemetry

import (
	"net"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

// Telemetry serves the prometheus metrics endpoint for hosts that want to
// expose the supervisor's collectors over HTTP. Library use does not
// require it.
type Telemetry struct {
	URL       string
	mux       *http.ServeMux
	addr      net.TCPAddr
	lock      sync.RWMutex
	listen    net.Listener
	listening bool
}

// NewTelemetry configures a metrics endpoint on the given address.
func NewTelemetry(ip net.IP, port int) *Telemetry {
	t := &Telemetry{
		URL:  "/metrics",
		addr: net.TCPAddr{IP: ip, Port: port},
	}
	t.mux = http.NewServeMux()
	t.mux.Handle(t.URL, prometheus.Handler())
	return t
}

// Serve starts serving the telemetry endpoint
func (t *Telemetry) Serve() error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.listening {
		return nil
	}
	ln, err := net.Listen(t.addr.Network(), t.addr.String())
	if err != nil {
		log.Errorf("telemetry: error serving on %s: %v", t.addr.String(), err)
		return err
	}
	t.listen = ln
	t.listening = true
	go func() {
		log.Debugf("telemetry: listening on %s", ln.Addr().String())
		http.Serve(ln, t.mux)
		log.Debugf("telemetry: stopped listening on %s", ln.Addr().String())
	}()
	return nil
}

// Addr reports the bound listener address, for callers that serve on
// port 0.
func (t *Telemetry) Addr() string {
	t.lock.RLock()
	defer t.lock.RUnlock()
	if !t.listening {
		return ""
	}
	return t.listen.Addr().String()
}

// Shutdown stops the telemetry endpoint
func (t *Telemetry) Shutdown() {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.listening {
		t.listen.Close()
		t.listening = false
	}
}
