package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"poolCustody/internal/model"
)

// Custody tracks custody events and keeper activity.
type Custody struct {
	events        *prometheus.CounterVec
	vaultFlow     *prometheus.CounterVec
	activeLoans   prometheus.Gauge
	principalOut  prometheus.Gauge
	feesCollected *prometheus.CounterVec

	sweeps       prometheus.Counter
	liquidations *prometheus.CounterVec
	sweepSeconds prometheus.Histogram
}

var (
	custodyOnce     sync.Once
	custodyRegistry *Custody
)

// Default returns collectors registered with the default prometheus registry.
func Default() *Custody {
	custodyOnce.Do(func() {
		custodyRegistry = New(prometheus.DefaultRegisterer)
	})
	return custodyRegistry
}

// New builds the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Custody {
	m := &Custody{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "custody_events_total",
			Help: "Committed custody events by type.",
		}, []string{"type"}),
		vaultFlow: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "custody_vault_flow_lamports_total",
			Help: "Lamports moved in and out of the service vault by direction.",
		}, []string{"direction"}),
		activeLoans: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "custody_active_loans",
			Help: "Loans whose LP collateral is in custody.",
		}),
		principalOut: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "custody_principal_outstanding_lamports",
			Help: "Principal fronted to loans that have not closed.",
		}),
		feesCollected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "custody_fees_collected_lamports_total",
			Help: "Service fees collected by kind.",
		}, []string{"kind"}),
		sweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "custody_keeper_sweeps_total",
			Help: "Completed keeper sweeps.",
		}),
		liquidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "custody_keeper_liquidations_total",
			Help: "Keeper liquidation attempts by result.",
		}, []string{"result"}),
		sweepSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "custody_keeper_sweep_seconds",
			Help:    "Duration of keeper sweeps.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.events,
			m.vaultFlow,
			m.activeLoans,
			m.principalOut,
			m.feesCollected,
			m.sweeps,
			m.liquidations,
			m.sweepSeconds,
		)
	}
	return m
}

// Observe updates the collectors for one committed event.
func (m *Custody) Observe(ev model.Event) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(ev.Type).Inc()
	switch ev.Type {
	case model.EventVaultDeposit:
		m.vaultFlow.WithLabelValues("in").Add(float64(ev.Uint("amount")))
	case model.EventVaultWithdraw:
		m.vaultFlow.WithLabelValues("out").Add(float64(ev.Uint("amount")))
	case model.EventLoanCreated:
		m.principalOut.Add(float64(ev.Uint("principal")))
		m.feesCollected.WithLabelValues("service").Add(float64(ev.Uint("service_fee")))
	case model.EventLoanActivated:
		m.activeLoans.Inc()
	case model.EventLoanRepaid:
		m.closeLoan(ev, "removal")
	case model.EventLoanLiquidated:
		m.closeLoan(ev, "liquidation")
	}
}

func (m *Custody) closeLoan(ev model.Event, kind string) {
	m.activeLoans.Dec()
	m.principalOut.Sub(float64(ev.Uint("principal")))
	m.feesCollected.WithLabelValues(kind).Add(float64(ev.Uint("fee")))
}

// Consume observes events from ch until it closes or ctx is done.
func (m *Custody) Consume(ctx context.Context, ch <-chan model.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			m.Observe(ev)
		}
	}
}

// ObserveSweep records a finished keeper sweep.
func (m *Custody) ObserveSweep(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.sweeps.Inc()
	m.sweepSeconds.Observe(elapsed.Seconds())
}

// ObserveLiquidation records one keeper liquidation attempt.
func (m *Custody) ObserveLiquidation(result string) {
	if m == nil {
		return
	}
	if result == "" {
		result = "unknown"
	}
	m.liquidations.WithLabelValues(result).Inc()
}
