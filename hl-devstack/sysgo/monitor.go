package sysgo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/hyperlane-xyz/hyperlane-localnet/hl-service/metrics"
)

const (
	MetricStoredEvents     = "hyperlane_contract_sync_stored_events"
	MetricOperationsCount  = "hyperlane_operations_processed_count"
	MetricWalletBalance    = "hyperlane_wallet_balance"
	defaultScrapeTimeout   = 5 * time.Second
	defaultBalanceAttempts = 12
)

// Status is the state of the termination monitor.
type Status int

const (
	StatusWaiting Status = iota
	StatusSucceeded
	StatusTimedOut
)

func (s Status) String() string {
	switch s {
	case StatusWaiting:
		return "waiting"
	case StatusSucceeded:
		return "succeeded"
	case StatusTimedOut:
		return "timed-out"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Observation is one reading of the relayer metrics.
// BalanceKnown is false while the relayer does not export its wallet balance.
type Observation struct {
	GasPayments  float64
	Confirmed    float64
	Balance      float64
	BalanceKnown bool
}

// TerminationState is fixed before polling starts.
type TerminationState struct {
	ExpectedMessages uint64
	StartingBalance  float64
	Start            time.Time
	Timeout          time.Duration
}

func (s TerminationState) Deadline() time.Time {
	return s.Start.Add(s.Timeout)
}

// Unmet describes one termination invariant that does not hold.
type Unmet struct {
	Invariant string
	Observed  float64
	Expected  float64
}

func (u Unmet) String() string {
	return fmt.Sprintf("%s: observed %v, expected %v", u.Invariant, u.Observed, u.Expected)
}

// Evaluate checks the termination invariants against an observation, and returns the unmet ones.
// The run succeeded when none are returned.
func Evaluate(state TerminationState, obs Observation) []Unmet {
	var unmet []Unmet
	expected := float64(state.ExpectedMessages)
	if obs.GasPayments != expected {
		unmet = append(unmet, Unmet{Invariant: "gas payments indexed", Observed: obs.GasPayments, Expected: expected})
	}
	if obs.Confirmed != expected {
		unmet = append(unmet, Unmet{Invariant: "messages confirmed", Observed: obs.Confirmed, Expected: expected})
	}
	// the relayer must have paid for deliveries
	if !obs.BalanceKnown || obs.Balance >= state.StartingBalance {
		unmet = append(unmet, Unmet{Invariant: "relayer balance decreased", Observed: obs.Balance, Expected: state.StartingBalance})
	}
	return unmet
}

// MetricsSource reads the relayer metrics.
type MetricsSource interface {
	Observe(ctx context.Context) (Observation, error)
}

// RelayerMetrics scrapes the metrics endpoint of the relayer.
type RelayerMetrics struct {
	Scraper *metrics.Scraper
	URL     string
}

func NewRelayerMetrics(port int) *RelayerMetrics {
	return &RelayerMetrics{
		Scraper: metrics.NewScraper(defaultScrapeTimeout),
		URL:     metrics.LocalURL(port),
	}
}

// Observe scrapes the relayer once. Counters that are not exported yet count as zero,
// a missing balance gauge leaves BalanceKnown unset.
func (r *RelayerMetrics) Observe(ctx context.Context) (Observation, error) {
	fams, err := r.Scraper.Scrape(ctx, r.URL)
	if err != nil {
		return Observation{}, fmt.Errorf("%w: %w", ErrMetricsUnavailable, err)
	}
	gas, _ := fams.Sum(MetricStoredEvents, map[string]string{"data_type": "gas_payment"})
	confirmed, _ := fams.Sum(MetricOperationsCount, map[string]string{"phase": "confirmed"})
	balance, known := fams.Sum(MetricWalletBalance, nil)
	return Observation{GasPayments: gas, Confirmed: confirmed, Balance: balance, BalanceKnown: known}, nil
}

// Monitor polls a metrics source until the termination invariants hold, or the deadline passes.
type Monitor struct {
	Log          log.Logger
	Source       MetricsSource
	Metrics      Metrics
	PollInterval time.Duration
	now          func() time.Time
}

func (m *Monitor) clock() time.Time {
	if m.now != nil {
		return m.now()
	}
	return time.Now()
}

// StartingBalance reads the relayer balance, retrying while the endpoint is unavailable
// or the balance gauge is not exported yet.
func (m *Monitor) StartingBalance(ctx context.Context, attempts int) (float64, error) {
	if attempts <= 0 {
		attempts = defaultBalanceAttempts
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		obs, err := m.Source.Observe(ctx)
		switch {
		case err != nil && !errors.Is(err, ErrMetricsUnavailable):
			return 0, err
		case err == nil && obs.BalanceKnown:
			return obs.Balance, nil
		case err == nil:
			err = fmt.Errorf("%w: %s not exported", ErrMetricsUnavailable, MetricWalletBalance)
		}
		lastErr = err
		m.Log.Warn("Relayer balance not available yet", "attempt", i+1, "err", err)
		if err := sleepCtx(ctx, m.PollInterval); err != nil {
			return 0, err
		}
	}
	return 0, fmt.Errorf("failed to read starting relayer balance: %w", lastErr)
}

// Run polls at a fixed interval until the run succeeded or timed out.
// A timeout returns the last observation together with ErrTerminationTimeout.
func (m *Monitor) Run(ctx context.Context, state TerminationState) (Status, Observation, error) {
	ticker := time.NewTicker(m.PollInterval)
	defer ticker.Stop()
	var last Observation
	for {
		obs, err := m.Source.Observe(ctx)
		switch {
		case errors.Is(err, ErrMetricsUnavailable):
			m.Log.Warn("Relayer metrics unavailable, still waiting", "err", err)
		case err != nil:
			return StatusWaiting, last, err
		default:
			last = obs
			if m.Metrics != nil {
				m.Metrics.RecordObservation(obs)
			}
			unmet := Evaluate(state, obs)
			if len(unmet) == 0 {
				m.Log.Info("Termination invariants met", "messages", state.ExpectedMessages, "balance", obs.Balance)
				return StatusSucceeded, obs, nil
			}
			for _, u := range unmet {
				m.Log.Info("Termination invariant not met", "invariant", u.Invariant, "observed", u.Observed, "expected", u.Expected)
			}
		}
		if m.clock().Sub(state.Start) > state.Timeout {
			m.Log.Error("Timeout reached before message submission was confirmed", "timeout", state.Timeout)
			return StatusTimedOut, last, ErrTerminationTimeout
		}
		select {
		case <-ctx.Done():
			return StatusWaiting, last, ctx.Err()
		case <-ticker.C:
		}
	}
}
