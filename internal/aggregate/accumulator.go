package aggregate

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"ilpswap/internal/amm"
	"ilpswap/internal/events"
	"ilpswap/internal/model"
)

// Accumulator holds aggregate values for one pair window.
type Accumulator struct {
	ChainID     uint64
	PairAddress string
	PairMeta    model.PairMeta
	WindowStart uint64
	WindowEnd   uint64
	SwapCount   uint64
	Volume0     *big.Int
	Volume1     *big.Int
	LpFee0      *big.Int
	LpFee1      *big.Int
	IlpFee0     *big.Int
	IlpFee1     *big.Int
	// Reserve0 and Reserve1 hold the last synced reserves, nil until a Sync is seen.
	Reserve0   *big.Int
	Reserve1   *big.Int
	Rebalances uint64
	LastBlock  uint64
	LastTS     uint64
	FirstBlock uint64
}

func NewAccumulator(record model.TypedEventRecord, pair string, windowStart, windowEnd uint64) *Accumulator {
	acc := &Accumulator{
		ChainID:     record.ChainID,
		PairAddress: pair,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		Volume0:     big.NewInt(0),
		Volume1:     big.NewInt(0),
		LpFee0:      big.NewInt(0),
		LpFee1:      big.NewInt(0),
		IlpFee0:     big.NewInt(0),
		IlpFee1:     big.NewInt(0),
		LastBlock:   record.BlockNumber,
		LastTS:      record.Timestamp,
		FirstBlock:  record.BlockNumber,
	}
	if record.PairMeta != nil {
		acc.PairMeta = *record.PairMeta
	}
	return acc
}

// AddEvent folds one decoded event into the window. Events that carry no metrics are
// ignored.
func (a *Accumulator) AddEvent(record model.TypedEventRecord) error {
	if record.Timestamp >= a.LastTS {
		a.LastTS = record.Timestamp
		a.LastBlock = record.BlockNumber
	}
	if a.FirstBlock == 0 || record.BlockNumber < a.FirstBlock {
		a.FirstBlock = record.BlockNumber
	}
	if a.PairMeta.Token0 == "" && record.PairMeta != nil {
		a.PairMeta = *record.PairMeta
	}

	switch record.EventName {
	case events.Swap:
		var swap model.SwapEventData
		if err := json.Unmarshal(record.Decoded, &swap); err != nil {
			return fmt.Errorf("decode swap: %w", err)
		}
		return a.applySwap(swap)
	case events.Sync:
		var sync model.SyncEventData
		if err := json.Unmarshal(record.Decoded, &sync); err != nil {
			return fmt.Errorf("decode sync: %w", err)
		}
		return a.applySync(sync)
	case events.FeeDeposited:
		var deposit model.FeeDepositedEventData
		if err := json.Unmarshal(record.Decoded, &deposit); err != nil {
			return fmt.Errorf("decode fee deposited: %w", err)
		}
		return a.applyFeeDeposit(deposit)
	case events.Rebalanced:
		a.Rebalances++
		return nil
	default:
		return nil
	}
}

func (a *Accumulator) applySwap(swap model.SwapEventData) error {
	amounts, err := parseBigInts(swap.Amount0In, swap.Amount1In, swap.Amount0Out, swap.Amount1Out)
	if err != nil {
		return err
	}
	in0, in1, out0, out1 := amounts[0], amounts[1], amounts[2], amounts[3]

	a.Volume0.Add(a.Volume0, in0).Add(a.Volume0, out0)
	a.Volume1.Add(a.Volume1, in1).Add(a.Volume1, out1)
	a.LpFee0.Add(a.LpFee0, feeFromAmount(in0, a.lpFeeBps()))
	a.LpFee1.Add(a.LpFee1, feeFromAmount(in1, a.lpFeeBps()))
	a.SwapCount++
	return nil
}

func (a *Accumulator) applySync(sync model.SyncEventData) error {
	reserves, err := parseBigInts(sync.Reserve0, sync.Reserve1)
	if err != nil {
		return err
	}
	a.Reserve0, a.Reserve1 = reserves[0], reserves[1]
	return nil
}

func (a *Accumulator) applyFeeDeposit(deposit model.FeeDepositedEventData) error {
	amounts, err := parseBigInts(deposit.Amount)
	if err != nil {
		return err
	}
	switch {
	case strings.EqualFold(deposit.Token, a.PairMeta.Token0):
		a.IlpFee0.Add(a.IlpFee0, amounts[0])
	case strings.EqualFold(deposit.Token, a.PairMeta.Token1):
		a.IlpFee1.Add(a.IlpFee1, amounts[0])
	default:
		return fmt.Errorf("fee token %s not in pair %s", deposit.Token, a.PairAddress)
	}
	return nil
}

func (a *Accumulator) lpFeeBps() uint32 {
	if a.PairMeta.LpFeeBps == 0 {
		return amm.LpFeeBps
	}
	return a.PairMeta.LpFeeBps
}

// pairOf returns the pair an event belongs to. Accumulator events carry it in the payload.
func pairOf(record model.TypedEventRecord) (string, error) {
	switch record.EventName {
	case events.FeeDeposited, events.Rebalanced:
		var payload struct {
			Pair string `json:"pair"`
		}
		if err := json.Unmarshal(record.Decoded, &payload); err != nil {
			return "", fmt.Errorf("decode %s: %w", record.EventName, err)
		}
		if payload.Pair == "" {
			return "", fmt.Errorf("%s without pair", record.EventName)
		}
		return payload.Pair, nil
	default:
		return record.Address, nil
	}
}

func parseBigInts(values ...string) ([]*big.Int, error) {
	out := make([]*big.Int, len(values))
	for i, value := range values {
		if value == "" {
			out[i] = big.NewInt(0)
			continue
		}
		parsed, ok := new(big.Int).SetString(value, 10)
		if !ok {
			return nil, fmt.Errorf("invalid int: %s", value)
		}
		out[i] = parsed
	}
	return out, nil
}

// feeFromAmount returns amountIn * bps / 10000.
func feeFromAmount(amountIn *big.Int, bps uint32) *big.Int {
	if amountIn == nil || amountIn.Sign() == 0 {
		return big.NewInt(0)
	}
	fee := new(big.Int).Mul(amountIn, big.NewInt(int64(bps)))
	return fee.Div(fee, big.NewInt(amm.FeeDenominator))
}
