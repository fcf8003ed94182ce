package vault

import (
	"time"

	"github.com/ftchann/uniswap-vault/lib/rebalance"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	ui "github.com/holiman/uint256"
)

type EventKind string

const (
	EventDeposit   EventKind = "deposit"
	EventWithdraw  EventKind = "withdraw"
	EventTransfer  EventKind = "transfer"
	EventRebalance EventKind = "rebalance"
	EventEarn      EventKind = "earn"
)

// Event describes a completed vault operation. Fields that do not apply to
// Kind are left nil or zero.
type Event struct {
	ID          uuid.UUID
	Kind        EventKind
	Block       uint64
	Time        time.Time
	Account     common.Address
	Recipient   common.Address
	Shares      *ui.Int
	Amount0     *ui.Int
	Amount1     *ui.Int
	TotalSupply *ui.Int
	Base        rebalance.Range
	Limit       rebalance.Range
	Tick        int
}

// EventSink receives every event after the operation that produced it has
// committed. A failing sink is logged and never undoes the operation.
type EventSink interface {
	Record(Event) error
}

func (v *Vault) emit(e Event) {
	e.ID = uuid.New()
	e.Block = v.chain.BlockNumber()
	e.Time = v.chain.Now()
	e.TotalSupply = v.shares.totalSupply()
	for _, sink := range v.sinks {
		if err := sink.Record(e); err != nil {
			v.lg.Warn().Err(err).Str("Event", string(e.Kind)).Str("ID", e.ID.String()).Msg("Event sink failed")
		}
	}
}
