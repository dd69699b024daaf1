// Package telemetry exports prometheus metrics for the supervisor's
// child-process lifecycle, fed by subscribing to its event bus, and an
// optional HTTP server for the metrics endpoint.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/tritondatacenter/procwrapper/events"
)

const eventBufferSize = 1000

// Metrics consumes supervisor lifecycle events and records them into
// prometheus collectors.
type Metrics struct {
	started prometheus.Counter
	running prometheus.Gauge
	exits   *prometheus.CounterVec
	killed  prometheus.Counter

	events.Subscriber
}

// NewMetrics creates the lifecycle collectors and registers them with the
// default prometheus registry. Re-registering (as happens across tests)
// reuses the existing collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		started: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "procwrapper",
			Name:      "processes_started_total",
			Help:      "Number of child processes started.",
		}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "procwrapper",
			Name:      "processes_running",
			Help:      "Number of child processes currently running.",
		}),
		exits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "procwrapper",
			Name:      "process_exits_total",
			Help:      "Number of child processes reaped, by result.",
		}, []string{"result"}),
		killed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "procwrapper",
			Name:      "processes_killed_total",
			Help:      "Number of child processes that needed SIGKILL escalation.",
		}),
	}
	m.started = registerCounter(m.started)
	m.running = registerGauge(m.running)
	m.exits = registerCounterVec(m.exits)
	m.killed = registerCounter(m.killed)
	m.Rx = make(chan events.Event, eventBufferSize)
	return m
}

// Run subscribes to the bus and consumes events until Shutdown.
func (m *Metrics) Run(bus *events.EventBus) {
	m.Subscribe(bus)
	go func() {
		for event := range m.Rx {
			switch event.Code {
			case events.Started:
				m.started.Inc()
				m.running.Inc()
			case events.ExitSuccess:
				m.running.Dec()
				m.exits.WithLabelValues("success").Inc()
			case events.ExitFailed:
				m.running.Dec()
				m.exits.WithLabelValues("failure").Inc()
			case events.Killed:
				m.killed.Inc()
			case events.Shutdown:
				m.Unsubscribe()
				close(m.Rx)
				return
			}
		}
	}()
}

func registerCounter(collector prometheus.Counter) prometheus.Counter {
	if err := prometheus.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(prometheus.Counter)
		}
		log.Errorf("telemetry: could not register collector: %v", err)
	}
	return collector
}

func registerGauge(collector prometheus.Gauge) prometheus.Gauge {
	if err := prometheus.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(prometheus.Gauge)
		}
		log.Errorf("telemetry: could not register collector: %v", err)
	}
	return collector
}

func registerCounterVec(collector *prometheus.CounterVec) *prometheus.CounterVec {
	if err := prometheus.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(*prometheus.CounterVec)
		}
		log.Errorf("telemetry: could not register collector: %v", err)
	}
	return collector
}
