// Package metrics exports vault and keeper activity to Prometheus.
package metrics

import (
	"github.com/ftchann/uniswap-vault/lib/keeper"
	"github.com/ftchann/uniswap-vault/lib/vault"

	ui "github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// Sink is a vault.EventSink and keeper.Observer backed by its own registry.
type Sink struct {
	registry *prometheus.Registry

	Events      *prometheus.CounterVec
	KeeperRuns  *prometheus.CounterVec
	TotalSupply prometheus.Gauge
	LastTick    prometheus.Gauge
	LastBlock   prometheus.Gauge
}

var (
	_ vault.EventSink = (*Sink)(nil)
	_ keeper.Observer = (*Sink)(nil)
)

func New(namespace string) *Sink {
	s := &Sink{
		registry: prometheus.NewRegistry(),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Completed vault operations by kind.",
		}, []string{"kind"}),
		KeeperRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keeper_runs_total",
			Help:      "Keeper rebalance attempts by outcome.",
		}, []string{"outcome"}),
		TotalSupply: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "total_supply",
			Help:      "Outstanding vault shares.",
		}),
		LastTick: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_rebalance_tick",
			Help:      "Tick at the last successful rebalance.",
		}),
		LastBlock: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_event_block",
			Help:      "Block of the most recent vault event.",
		}),
	}
	s.registry.MustRegister(s.Events, s.KeeperRuns, s.TotalSupply, s.LastTick, s.LastBlock)
	return s
}

func (s *Sink) Registry() *prometheus.Registry { return s.registry }

func (s *Sink) Record(e vault.Event) error {
	s.Events.WithLabelValues(string(e.Kind)).Inc()
	s.LastBlock.Set(float64(e.Block))
	if e.TotalSupply != nil {
		s.TotalSupply.Set(toFloat(e.TotalSupply))
	}
	if e.Kind == vault.EventRebalance {
		s.LastTick.Set(float64(e.Tick))
	}
	return nil
}

func (s *Sink) ObserveKeeperRun(o keeper.Outcome) {
	s.KeeperRuns.WithLabelValues(string(o)).Inc()
}

func toFloat(x *ui.Int) float64 {
	return decimal.NewFromBigInt(x.ToBig(), 0).InexactFloat64()
}
