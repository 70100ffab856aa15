// Package sim deploys a complete ilpswap system into an in-process runtime and drives
// it through scripted scenarios.
package sim

import (
	"context"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"ilpswap/internal/amm"
	"ilpswap/internal/auth"
	"ilpswap/internal/chain"
	"ilpswap/internal/events"
	"ilpswap/internal/ilp"
	"ilpswap/internal/metrics"
	"ilpswap/internal/model"
	"ilpswap/internal/registry"
	"ilpswap/internal/token"
)

// Default identities used when a scenario does not name its own.
var (
	DefaultGovernor = common.HexToAddress("0x00000000000000000000000000000000000000a0")
	DefaultKeeper   = common.HexToAddress("0x00000000000000000000000000000000000000a3")
	DefaultTreasury = common.HexToAddress("0x00000000000000000000000000000000000000a4")
)

// WorldConfig wires a World.
type WorldConfig struct {
	ChainID   uint64
	StartTime uint64
	Governor  common.Address
	Keeper    common.Address
	Treasury  common.Address
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
}

// World is one deployment: tokens, registry, accumulator and pairs sharing a runtime.
type World struct {
	Runtime     *chain.Runtime
	Clock       *chain.ManualClock
	Registry    *registry.MemoryRegistry
	Roles       *auth.Table
	Accumulator *ilp.Accumulator
	PairMeta    *events.PairMetaCache
	Metrics     *metrics.Metrics

	Governor common.Address
	Keeper   common.Address
	Treasury common.Address

	logger  *zap.Logger
	tokens  map[string]*token.MemoryToken
	pairs   map[common.Address]*amm.Pair
	created map[common.Address]uint64
}

// NewWorld deploys the accumulator and grants every accumulator role to the governor.
// The treasury and upkeep caller are configured in the same transaction.
func NewWorld(ctx context.Context, cfg WorldConfig) (*World, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Governor == (common.Address{}) {
		cfg.Governor = DefaultGovernor
	}
	if cfg.Keeper == (common.Address{}) {
		cfg.Keeper = DefaultKeeper
	}
	if cfg.Treasury == (common.Address{}) {
		cfg.Treasury = DefaultTreasury
	}

	clock := chain.NewManualClock(cfg.StartTime)
	rt := chain.NewRuntime(clock, logger)
	if cfg.ChainID != 0 {
		rt.SetChainID(cfg.ChainID)
	}

	roles := auth.NewTable()
	for _, role := range []auth.Role{
		auth.RoleTreasuryAdmin, auth.RoleThresholdAdmin, auth.RoleProcessingFeeAdmin,
		auth.RoleUpkeepAdmin, auth.RoleRebalanceAdmin,
	} {
		roles.Grant(role, cfg.Governor)
	}

	reg := registry.NewMemoryRegistry()
	acc, err := ilp.NewAccumulator(ilp.Config{
		Address:  rt.NextAddress(cfg.Governor),
		Registry: reg,
		Roles:    roles,
		Logger:   logger,
		Metrics:  cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	if err := rt.Deploy(acc); err != nil {
		return nil, err
	}

	w := &World{
		Runtime:     rt,
		Clock:       clock,
		Registry:    reg,
		Roles:       roles,
		Accumulator: acc,
		PairMeta:    events.NewPairMetaCache(),
		Metrics:     cfg.Metrics,
		Governor:    cfg.Governor,
		Keeper:      cfg.Keeper,
		Treasury:    cfg.Treasury,
		logger:      logger,
		tokens:      make(map[string]*token.MemoryToken),
		pairs:       make(map[common.Address]*amm.Pair),
		created:     make(map[common.Address]uint64),
	}

	err = rt.Execute(ctx, cfg.Governor, func(call *chain.Call) error {
		if err := acc.SetTreasury(call, cfg.Treasury); err != nil {
			return err
		}
		return acc.SetUpkeepCaller(call, cfg.Keeper)
	})
	if err != nil {
		return nil, fmt.Errorf("configure accumulator: %w", err)
	}
	return w, nil
}

// DeployToken deploys a faucet token registered under symbol.
func (w *World) DeployToken(symbol, name string, decimals uint8) (*token.MemoryToken, error) {
	if symbol == "" {
		return nil, fmt.Errorf("token symbol is empty")
	}
	if _, ok := w.tokens[symbol]; ok {
		return nil, fmt.Errorf("token %s already deployed", symbol)
	}
	tok := token.NewMemoryToken(w.Runtime.NextAddress(w.Governor), name, symbol, decimals)
	if err := w.Runtime.Deploy(tok); err != nil {
		return nil, err
	}
	w.tokens[symbol] = tok
	w.logger.Info("token deployed", zap.String("symbol", symbol), zap.String("address", tok.Address().Hex()))
	return tok, nil
}

// Token looks a deployed token up by symbol.
func (w *World) Token(symbol string) (*token.MemoryToken, error) {
	tok, ok := w.tokens[symbol]
	if !ok {
		return nil, fmt.Errorf("unknown token %s", symbol)
	}
	return tok, nil
}

// CreatePair registers and deploys the pair for two deployed tokens. Zero admin or
// manager default to the governor.
func (w *World) CreatePair(symbolA, symbolB string, admin, manager common.Address) (*amm.Pair, error) {
	tokA, err := w.Token(symbolA)
	if err != nil {
		return nil, err
	}
	tokB, err := w.Token(symbolB)
	if err != nil {
		return nil, err
	}
	addr, token0, token1, err := w.Registry.CreatePair(tokA.Address(), tokB.Address())
	if err != nil {
		return nil, err
	}
	if admin == (common.Address{}) {
		admin = w.Governor
	}
	if manager == (common.Address{}) {
		manager = w.Governor
	}
	w.Registry.SetPairAdmin(addr, admin)
	w.Registry.SetPairManager(addr, manager)

	pair, err := amm.NewPair(amm.Config{
		Address:        addr,
		Token0:         token0,
		Token1:         token1,
		Registry:       w.Registry,
		FeeAccumulator: w.Accumulator.Address(),
		Logger:         w.logger,
		Metrics:        w.Metrics,
	})
	if err != nil {
		return nil, err
	}
	if err := w.Runtime.Deploy(pair); err != nil {
		return nil, err
	}
	w.pairs[addr] = pair
	w.created[addr] = w.Runtime.BlockNumber()

	tok0, tok1 := tokA, tokB
	if token0 != tokA.Address() {
		tok0, tok1 = tokB, tokA
	}
	w.PairMeta.Set(addr, model.PairMeta{
		Token0:    token0.Hex(),
		Token1:    token1.Hex(),
		Decimals0: tok0.Decimals(),
		Decimals1: tok1.Decimals(),
		LpFeeBps:  amm.LpFeeBps,
	})
	w.logger.Info("pair created",
		zap.String("pair", addr.Hex()),
		zap.String("token0", tok0.Symbol()),
		zap.String("token1", tok1.Symbol()),
	)
	return pair, nil
}

// Pair returns the pair of two token symbols in either order.
func (w *World) Pair(symbolA, symbolB string) (*amm.Pair, error) {
	tokA, err := w.Token(symbolA)
	if err != nil {
		return nil, err
	}
	tokB, err := w.Token(symbolB)
	if err != nil {
		return nil, err
	}
	addr := w.Registry.GetPair(tokA.Address(), tokB.Address())
	pair, ok := w.pairs[addr]
	if !ok {
		return nil, fmt.Errorf("no pair for %s/%s", symbolA, symbolB)
	}
	return pair, nil
}

// Pairs lists deployed pairs in creation order.
func (w *World) Pairs() []*amm.Pair {
	out := make([]*amm.Pair, 0, len(w.pairs))
	for _, addr := range w.Registry.AllPairs() {
		if p, ok := w.pairs[addr]; ok {
			out = append(out, p)
		}
	}
	return out
}

// PairRecords describes deployed pairs for storage. FirstSeenBlock is the last block
// executed before the pair was deployed.
func (w *World) PairRecords() []model.Pair {
	chainID := w.Runtime.ChainID()
	out := make([]model.Pair, 0, len(w.pairs))
	for _, pair := range w.Pairs() {
		out = append(out, model.Pair{
			ChainID:        chainID,
			Address:        pair.Address().Hex(),
			Token0:         pair.Token0().Hex(),
			Token1:         pair.Token1().Hex(),
			LpFeeBps:       amm.LpFeeBps,
			FirstSeenBlock: w.created[pair.Address()],
		})
	}
	return out
}

// TokenSymbols lists deployed token symbols, sorted.
func (w *World) TokenSymbols() []string {
	out := make([]string, 0, len(w.tokens))
	for symbol := range w.tokens {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

// Balance returns account's balance of a token or pool share at addr.
func (w *World) Balance(ctx context.Context, addr, account common.Address) (*uint256.Int, error) {
	var out *uint256.Int
	err := w.Runtime.View(ctx, func(call *chain.Call) error {
		tok, err := token.At(call, addr)
		if err != nil {
			return err
		}
		out = tok.BalanceOf(account)
		return nil
	})
	return out, err
}

// Snapshot reads the observable state of pair at the current block.
func (w *World) Snapshot(ctx context.Context, pair *amm.Pair) (model.PairSnapshot, error) {
	var snap model.PairSnapshot
	chainID, block := w.Runtime.ChainID(), w.Runtime.BlockNumber()
	err := w.Runtime.View(ctx, func(call *chain.Call) error {
		reserve0, reserve1, ts := pair.GetReserves()
		rate0, rate1 := pair.IlpFeeRates()
		snap = model.PairSnapshot{
			ChainID:            chainID,
			Address:            pair.Address().Hex(),
			BlockNumber:        block,
			Timestamp:          call.Time,
			Reserve0:           reserve0.Dec(),
			Reserve1:           reserve1.Dec(),
			TotalSupply:        pair.TotalSupply().Dec(),
			KLast:              pair.KLast().Dec(),
			Price0Cumulative:   pair.Price0CumulativeLast().Raw().Dec(),
			Price1Cumulative:   pair.Price1CumulativeLast().Raw().Dec(),
			BlockTimestampLast: ts,
			IlpFeeActive:       pair.IsIlpFeeActive(),
			IlpFeeRate0:        rate0,
			IlpFeeRate1:        rate1,
		}
		return nil
	})
	return snap, err
}
