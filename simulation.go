package main

import (
	"time"

	"github.com/ftchann/uniswap-vault/lib/access"
	"github.com/ftchann/uniswap-vault/lib/amm"
	"github.com/ftchann/uniswap-vault/lib/chain"
	"github.com/ftchann/uniswap-vault/lib/config"
	"github.com/ftchann/uniswap-vault/lib/executor"
	"github.com/ftchann/uniswap-vault/lib/history"
	"github.com/ftchann/uniswap-vault/lib/keeper"
	"github.com/ftchann/uniswap-vault/lib/ledger"
	"github.com/ftchann/uniswap-vault/lib/metrics"
	ppool "github.com/ftchann/uniswap-vault/lib/pool"
	"github.com/ftchann/uniswap-vault/lib/router"
	ent "github.com/ftchann/uniswap-vault/lib/transaction"
	"github.com/ftchann/uniswap-vault/lib/vault"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

// simulation is everything a replay needs, wired from a config.
type simulation struct {
	Pool    *ppool.Pool
	Vault   *vault.Vault
	Keeper  *keeper.Keeper
	Metrics *metrics.Sink
	History *history.Recorder
	Exec    *executor.Execution
	Token0  *ledger.Token
	Token1  *ledger.Token
	Router  *router.Controller
	lg      zerolog.Logger
}

func newSimulation(cfg *config.Config, transactions []ent.Transaction, lg zerolog.Logger) (*simulation, error) {
	if len(transactions) == 0 {
		return nil, executor.ErrNoTransactions
	}
	token0 := ledger.NewToken(common.HexToAddress(cfg.Pool.Token0.Address), cfg.Pool.Token0.Symbol, cfg.Pool.Token0.Decimals)
	token1 := ledger.NewToken(common.HexToAddress(cfg.Pool.Token1.Address), cfg.Pool.Token1.Symbol, cfg.Pool.Token1.Decimals)
	sqrtPriceX96, err := cfg.SqrtPriceX96()
	if err != nil {
		return nil, err
	}
	first := transactions[0].Timestamp
	pool, err := ppool.NewPool(token0.Symbol(), token1.Symbol(), cfg.Pool.Fee, sqrtPriceX96, first)
	if err != nil {
		return nil, err
	}

	vaultAddr := common.HexToAddress(cfg.Vault.Address)
	governance := common.HexToAddress(cfg.Vault.Governance)
	keeperAddr := common.HexToAddress(cfg.Vault.Keeper)
	clock := chain.NewClock(1, time.Unix(first, 0))
	adapter := amm.NewAdapter(pool, vaultAddr, token0, token1)

	s := &simulation{Pool: pool, Token0: token0, Token1: token1, lg: lg}
	s.Metrics = metrics.New(config.DefaultMetricsNamespace)
	opts := []vault.Option{vault.WithLogger(lg.With().Str("Module", "Vault").Logger()), vault.WithEventSink(s.Metrics)}
	if cfg.Vault.Router != "" {
		s.Router = router.NewController(common.HexToAddress(cfg.Vault.Router), vaultAddr, token0, token1)
		opts = append(opts, vault.WithRouter(s.Router))
	}
	if cfg.HistoryPath != "" {
		if s.History, err = history.Open(cfg.HistoryPath); err != nil {
			return nil, err
		}
		opts = append(opts, vault.WithEventSink(s.History))
	}

	s.Vault, err = vault.New(vault.Config{
		Address:      vaultAddr,
		Governance:   governance,
		Token0:       token0,
		Token1:       token1,
		Oracle:       adapter,
		Positions:    adapter,
		Chain:        clock,
		Rebalance:    cfg.RebalanceConfig(),
		ReserveRatio: cfg.ReserveRatio(),
	}, opts...)
	if err != nil {
		s.Close()
		return nil, err
	}
	if err := s.Vault.Unpause(governance); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.Vault.Roles().Grant(governance, access.RoleKeeper, keeperAddr); err != nil {
		s.Close()
		return nil, err
	}
	s.Keeper = keeper.New(s.Vault, keeperAddr,
		keeper.WithObserver(s.Metrics),
		keeper.WithLogger(lg.With().Str("Module", "Keeper").Logger()))

	deposit0, deposit1, err := cfg.Deposits()
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Exec = executor.CreateExecution(pool, s.Vault, s.Keeper, clock, token0, token1,
		common.HexToAddress(cfg.Simulation.Depositor), deposit0, deposit1,
		cfg.Simulation.StartTime, cfg.Simulation.UpdateInterval, cfg.Simulation.SnapshotInterval, transactions).
		WithLogger(lg.With().Str("Module", "Executor").Logger())
	return s, nil
}

func (s *simulation) Close() {
	if s.History == nil {
		return
	}
	if err := s.History.Close(); err != nil {
		s.lg.Warn().Err(err).Msg("Closing history")
	}
}
