package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ethereum/go-ethereum/log"

	"github.com/hyperlane-xyz/hyperlane-localnet/hl-devstack/sysgo"
)

const Namespace = "hl_localnet"

type Metricer interface {
	sysgo.Metrics
	RecordInfo(version string)
	RecordUp()
}

// Metrics are the self-metrics of the orchestrator.
type Metrics struct {
	registry *prometheus.Registry

	info          *prometheus.GaugeVec
	up            prometheus.Gauge
	phaseDuration *prometheus.HistogramVec
	dispatched    *prometheus.CounterVec
	gasPayments   prometheus.Gauge
	confirmed     prometheus.Gauge
	balance       prometheus.Gauge
	outcome       *prometheus.GaugeVec
	runDuration   prometheus.Gauge
}

var _ Metricer = (*Metrics)(nil)

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		info: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "info",
			Help:      "Pseudo-metric tracking version and config info",
		}, []string{"version"}),
		up: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "up",
			Help:      "1 if the localnet run has started",
		}),
		phaseDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "phase_duration_seconds",
			Help:      "Duration of the setup phases of a run",
			Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"phase"}),
		dispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "messages_dispatched_total",
			Help:      "Test messages dispatched, by origin and destination domain",
		}, []string{"origin", "destination"}),
		gasPayments: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "observed_gas_payments",
			Help:      "Gas payments indexed by the relayer, as last observed",
		}),
		confirmed: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "observed_confirmed_messages",
			Help:      "Messages confirmed by the relayer, as last observed",
		}),
		balance: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "observed_relayer_balance",
			Help:      "Summed relayer wallet balance, as last observed",
		}),
		outcome: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "outcome",
			Help:      "1 for the final status of the run",
		}, []string{"status"}),
		runDuration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of the whole run",
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RecordInfo(version string) {
	m.info.WithLabelValues(version).Set(1)
}

func (m *Metrics) RecordUp() {
	m.up.Set(1)
}

func (m *Metrics) RecordPhase(phase sysgo.Phase, d time.Duration) {
	m.phaseDuration.WithLabelValues(string(phase)).Observe(d.Seconds())
}

func (m *Metrics) RecordDispatch(origin, destination uint32) {
	m.dispatched.WithLabelValues(strconv.FormatUint(uint64(origin), 10), strconv.FormatUint(uint64(destination), 10)).Inc()
}

func (m *Metrics) RecordObservation(obs sysgo.Observation) {
	m.gasPayments.Set(obs.GasPayments)
	m.confirmed.Set(obs.Confirmed)
	if obs.BalanceKnown {
		m.balance.Set(obs.Balance)
	}
}

func (m *Metrics) RecordOutcome(status sysgo.Status, d time.Duration) {
	m.outcome.WithLabelValues(status.String()).Set(1)
	m.runDuration.Set(d.Seconds())
}

type noopMetrics struct{}

func (noopMetrics) RecordInfo(string)                         {}
func (noopMetrics) RecordUp()                                 {}
func (noopMetrics) RecordPhase(sysgo.Phase, time.Duration)    {}
func (noopMetrics) RecordDispatch(uint32, uint32)             {}
func (noopMetrics) RecordObservation(sysgo.Observation)       {}
func (noopMetrics) RecordOutcome(sysgo.Status, time.Duration) {}

var NoopMetrics Metricer = noopMetrics{}

// Server serves a registry on /metrics.
type Server struct {
	srv      *http.Server
	listener net.Listener
}

// StartServer listens on host:port, port 0 picks a free port.
func StartServer(logger log.Logger, reg *prometheus.Registry, host string, port int) (*Server, error) {
	listener, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("failed to bind metrics server: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	s := &Server{
		srv:      &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second},
		listener: listener,
	}
	go func() {
		if err := s.srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", "err", err)
		}
	}()
	logger.Info("Started metrics server", "addr", s.Addr())
	return s, nil
}

func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
