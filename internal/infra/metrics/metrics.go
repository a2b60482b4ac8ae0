// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fastprodman/rewardsledger/internal/services/ledger"
)

const namespace = "rewards"

var LedgerTransactions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "transactions_total",
	Help:      "Ledger transactions recorded, by kind.",
}, []string{"kind"})

var LedgerCoins = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "coins_total",
	Help:      "Absolute coin volume moved by ledger transactions, by kind.",
}, []string{"kind"})

var ModerationActions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "moderation",
	Name:      "actions_total",
	Help:      "Moderation actions attempted, by action and result.",
}, []string{"action", "result"})

var ReferralEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "referral",
	Name:      "events_total",
	Help:      "Referral lifecycle events, by event and result.",
}, []string{"event", "result"})

var CampaignUsage = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "campaign",
	Name:      "usage_total",
	Help:      "Campaign redemptions, by campaign type and result.",
}, []string{"type", "result"})

var JournalWrites = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "journal",
	Name:      "writes_total",
	Help:      "Audit journal writes, by result.",
}, []string{"result"})

var JournalBacklog = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Subsystem: "journal",
	Name:      "backlog",
	Help:      "Ledger transactions waiting to be journaled.",
})

// ObserveLedger is a ledger subscriber feeding the ledger collectors.
func ObserveLedger(ev ledger.TransactionRecorded) {
	kind := string(ev.Transaction.Kind)
	amount := ev.Transaction.Amount
	if amount < 0 {
		amount = -amount
	}

	LedgerTransactions.WithLabelValues(kind).Inc()
	LedgerCoins.WithLabelValues(kind).Add(float64(amount))
}

// Result maps an error to the result label.
func Result(err error) string {
	if err != nil {
		return "error"
	}

	return "ok"
}
