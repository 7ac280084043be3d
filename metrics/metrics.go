package metrics

import (
	"context"
	"net/http"
	"sync"

	"betrounds/events"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

const namespace = "betrounds"

// Metrics holds the Prometheus instruments fed from the event bus
type Metrics struct {
	registry *prometheus.Registry

	roundsOpened        prometheus.Counter
	roundsSettled       *prometheus.CounterVec
	activeRounds        prometheus.Gauge
	wagersPlaced        prometheus.Counter
	wagerVolume         prometheus.Counter
	feesWithheld        prometheus.Counter
	payoutsTotal        prometheus.Counter
	balanceTransactions *prometheus.CounterVec
	usersCreated        prometheus.Counter
	eventsPublished     *prometheus.CounterVec

	// open tracks rounds opened by this process; rounds abandoned by an
	// earlier run settle without ever counting as active here
	mu   sync.Mutex
	open map[int64]struct{}
}

// New creates the instruments on a private registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		open:     make(map[int64]struct{}),
		roundsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_opened_total",
			Help:      "Rounds opened",
		}),
		roundsSettled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_settled_total",
			Help:      "Rounds settled, by outcome",
		}, []string{"outcome"}),
		activeRounds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rounds_active",
			Help:      "Rounds opened but not yet settled",
		}),
		wagersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wagers_placed_total",
			Help:      "Wagers committed",
		}),
		wagerVolume: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wager_volume_coins_total",
			Help:      "Coins staked, before fees",
		}),
		feesWithheld: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wager_fees_coins_total",
			Help:      "Coins withheld from stakes as fees",
		}),
		payoutsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payouts_coins_total",
			Help:      "Coins credited by settlements, refunds included",
		}),
		balanceTransactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "balance_transactions_total",
			Help:      "Balance changes, by transaction type",
		}, []string{"type"}),
		usersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "users_created_total",
			Help:      "Participants added to the ledger",
		}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Events forwarded to the message bus, by subject and result",
		}, []string{"subject", "result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.roundsOpened,
		m.roundsSettled,
		m.activeRounds,
		m.wagersPlaced,
		m.wagerVolume,
		m.feesWithheld,
		m.payoutsTotal,
		m.balanceTransactions,
		m.usersCreated,
		m.eventsPublished,
	)
	return m
}

// Subscribe wires the instruments to the bus
func (m *Metrics) Subscribe(bus *events.Bus) {
	bus.SubscribeAll(m.handle,
		events.EventTypeRoundStateChange,
		events.EventTypeRoundSettled,
		events.EventTypeWagerPlaced,
		events.EventTypeBalanceChange,
		events.EventTypeUserCreated,
	)
}

func (m *Metrics) handle(ctx context.Context, event events.Event) {
	switch e := event.(type) {
	case events.RoundStateChangeEvent:
		// Opening is the only transition out of an empty stage
		if e.OldStage == "" {
			m.mu.Lock()
			m.open[e.RoundID] = struct{}{}
			m.mu.Unlock()
			m.roundsOpened.Inc()
			m.activeRounds.Inc()
		}
	case events.RoundSettledEvent:
		m.roundsSettled.WithLabelValues(string(e.Outcome)).Inc()
		m.payoutsTotal.Add(float64(e.TotalPaid))
		m.mu.Lock()
		if _, ok := m.open[e.RoundID]; ok {
			delete(m.open, e.RoundID)
			m.activeRounds.Dec()
		}
		m.mu.Unlock()
	case events.WagerPlacedEvent:
		m.wagersPlaced.Inc()
		m.wagerVolume.Add(float64(e.Amount))
		m.feesWithheld.Add(float64(e.Amount - e.PooledAmount))
	case events.BalanceChangeEvent:
		m.balanceTransactions.WithLabelValues(string(e.TransactionType)).Inc()
	case events.UserCreatedEvent:
		m.usersCreated.Inc()
	default:
		log.WithField("eventType", event.Type()).Debug("Metrics ignoring event")
	}
}

// RecordEventPublished counts a message bus publish attempt
func (m *Metrics) RecordEventPublished(subject string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.eventsPublished.WithLabelValues(subject, result).Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
