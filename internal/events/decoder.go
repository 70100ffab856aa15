package events

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"ilpswap/internal/model"
)

// DecoderConfig configures decoder behavior.
type DecoderConfig struct {
	// Topic0Map registers extra topic0 aliases for known event names.
	Topic0Map map[string]string
	// Pairs, when set, attaches pair metadata to events emitted by known pairs.
	Pairs *PairMetaCache
}

// Decoder turns raw log records into typed events.
type Decoder struct {
	abi         abi.ABI
	topicToName map[string]string
	pairs       *PairMetaCache
}

// NewDecoder builds a decoder for every event in ABI().
func NewDecoder(cfg DecoderConfig) (*Decoder, error) {
	parsed, err := ABI()
	if err != nil {
		return nil, err
	}

	topicToName := make(map[string]string, len(parsed.Events))
	for name, event := range parsed.Events {
		topicToName[strings.ToLower(event.ID.Hex())] = name
	}

	for topic0, name := range cfg.Topic0Map {
		if _, ok := parsed.Events[name]; !ok {
			return nil, fmt.Errorf("unsupported event name in topic0 map: %s", name)
		}
		if topic0 == "" {
			continue
		}
		topicToName[strings.ToLower(topic0)] = name
	}

	return &Decoder{
		abi:         parsed,
		topicToName: topicToName,
		pairs:       cfg.Pairs,
	}, nil
}

// CanDecode checks if the topic0 is supported.
func (d *Decoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.topicToName[strings.ToLower(topic0)]
	return ok
}

// Decode converts a LogRecord into a TypedEvent.
func (d *Decoder) Decode(log model.LogRecord) (*model.TypedEvent, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("missing topics")
	}
	name, ok := d.topicToName[strings.ToLower(log.Topics[0])]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}
	if !common.IsHexAddress(log.Address) {
		return nil, fmt.Errorf("invalid emitter address: %s", log.Address)
	}

	values, err := d.unpack(d.abi.Events[name], log)
	if err != nil {
		return nil, err
	}
	decoded, err := buildPayload(name, values)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}

	event := &model.TypedEvent{
		ChainID:     log.ChainID,
		BlockNumber: log.BlockNumber,
		BlockHash:   log.BlockHash,
		TxHash:      log.TxHash,
		LogIndex:    log.LogIndex,
		Address:     log.Address,
		EventName:   name,
		Timestamp:   log.Timestamp,
		Decoded:     decoded,
		Raw:         &model.RawLogRef{Topic0: log.Topics[0], Data: log.Data},
	}
	if d.pairs != nil {
		if meta, ok := d.pairs.Get(pairOf(log.Address, decoded)); ok {
			event.PairMeta = &meta
		}
	}
	return event, nil
}

// pairOf returns the pair an event is about. Accumulator events name it in the payload.
func pairOf(emitter string, decoded interface{}) common.Address {
	switch payload := decoded.(type) {
	case model.FeeDepositedEventData:
		return common.HexToAddress(payload.Pair)
	case model.RebalancedEventData:
		return common.HexToAddress(payload.Pair)
	default:
		return common.HexToAddress(emitter)
	}
}

func (d *Decoder) unpack(event abi.Event, log model.LogRecord) (map[string]interface{}, error) {
	indexed := indexedArguments(event.Inputs)
	if len(log.Topics) != len(indexed)+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", len(indexed)+1, len(log.Topics))
	}
	topics, err := parseTopicHashes(log.Topics[1:])
	if err != nil {
		return nil, err
	}

	values := make(map[string]interface{}, len(event.Inputs))
	if len(indexed) > 0 {
		if err := abi.ParseTopicsIntoMap(values, indexed, topics); err != nil {
			return nil, fmt.Errorf("parse topics: %w", err)
		}
	}

	data, err := hexutil.Decode(log.Data)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	if err := event.Inputs.NonIndexed().UnpackIntoMap(values, data); err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}

func buildPayload(name string, v map[string]interface{}) (interface{}, error) {
	r := reader{values: v}
	var out interface{}
	switch name {
	case Transfer:
		out = model.TransferEventData{From: r.address("from"), To: r.address("to"), Value: r.amount("value")}
	case Approval:
		out = model.ApprovalEventData{Owner: r.address("owner"), Spender: r.address("spender"), Value: r.amount("value")}
	case Mint:
		out = model.MintEventData{Sender: r.address("sender"), Amount0: r.amount("amount0"), Amount1: r.amount("amount1")}
	case Burn:
		out = model.BurnEventData{
			Sender:  r.address("sender"),
			To:      r.address("to"),
			Amount0: r.amount("amount0"),
			Amount1: r.amount("amount1"),
		}
	case Swap:
		out = model.SwapEventData{
			Sender:     r.address("sender"),
			To:         r.address("to"),
			Amount0In:  r.amount("amount0In"),
			Amount1In:  r.amount("amount1In"),
			Amount0Out: r.amount("amount0Out"),
			Amount1Out: r.amount("amount1Out"),
		}
	case Sync:
		out = model.SyncEventData{Reserve0: r.amount("reserve0"), Reserve1: r.amount("reserve1")}
	case IlpFeeStatusToggled:
		out = model.IlpFeeStatusEventData{Active: r.boolean("isActive")}
	case IlpFeeRatesSet:
		out = model.IlpFeeRatesEventData{Rate0: r.amount("rate0"), Rate1: r.amount("rate1")}
	case FeeDeposited:
		out = model.FeeDepositedEventData{Pair: r.address("pair"), Token: r.address("token"), Amount: r.amount("amount")}
	case Rebalanced:
		out = model.RebalancedEventData{
			Pair:           r.address("pair"),
			Treasury:       r.address("treasury"),
			Amount0:        r.amount("amount0"),
			Amount1:        r.amount("amount1"),
			ProcessingFee0: r.amount("processingFee0"),
			ProcessingFee1: r.amount("processingFee1"),
			Liquidity:      r.amount("liquidity"),
		}
	case ConfigUpdated:
		out = model.ConfigUpdatedEventData{Key: r.text("key"), Value: r.amount("value"), Account: r.address("account")}
	default:
		return nil, fmt.Errorf("unsupported event name: %s", name)
	}
	if r.err != nil {
		return nil, r.err
	}
	return out, nil
}

func parseTopicHashes(topics []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(topics))
	for _, topic := range topics {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}
