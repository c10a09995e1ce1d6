package app

import (
	"strconv"

	"github.com/calehh/propvote/types"
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	prometheus "github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

const (
	MetricsNamespace = "propvote"
	MetricsSubsystem = "registry"
)

// Metrics are registered with the default prometheus registry, which the
// CometBFT instrumentation server already exposes.
type Metrics struct {
	Proposals         metrics.Gauge
	ProposalsCreated  metrics.Counter
	ProposalsActive   metrics.Counter
	ProposalsAccepted metrics.Counter
	TxDelivered       metrics.Counter
	TxRejected        metrics.Counter
}

// Notify counts lifecycle events. It is registered as a registry notifier.
func (m *Metrics) Notify(ev types.Event) {
	switch ev.(type) {
	case *types.EventProposalCreated:
		m.ProposalsCreated.Add(1)
		m.Proposals.Add(1)
	case *types.EventProposalActive:
		m.ProposalsActive.Add(1)
	case *types.EventProposalApproved:
		m.ProposalsAccepted.Add(1)
	}
}

func (m *Metrics) delivered(typ string) {
	m.TxDelivered.With("type", typ).Add(1)
}

func (m *Metrics) rejected(code uint32) {
	m.TxRejected.With("code", strconv.FormatUint(uint64(code), 10)).Add(1)
}

func PrometheusMetrics() *Metrics {
	return &Metrics{
		Proposals: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "proposals",
			Help:      "Number of proposals in the registry.",
		}, []string{}),
		ProposalsCreated: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "proposals_created_total",
			Help:      "Proposals created.",
		}, []string{}),
		ProposalsActive: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "proposals_active_total",
			Help:      "Proposals that received their first vote without reaching quorum.",
		}, []string{}),
		ProposalsAccepted: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "proposals_accepted_total",
			Help:      "Proposals that reached quorum.",
		}, []string{}),
		TxDelivered: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "tx_delivered_total",
			Help:      "Transactions applied successfully, by type.",
		}, []string{"type"}),
		TxRejected: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "tx_rejected_total",
			Help:      "Transactions rejected in a block, by result code.",
		}, []string{"code"}),
	}
}

func NopMetrics() *Metrics {
	return &Metrics{
		Proposals:         discard.NewGauge(),
		ProposalsCreated:  discard.NewCounter(),
		ProposalsActive:   discard.NewCounter(),
		ProposalsAccepted: discard.NewCounter(),
		TxDelivered:       discard.NewCounter(),
		TxRejected:        discard.NewCounter(),
	}
}
