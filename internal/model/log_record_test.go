package model

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

func TestNewLogRecord(t *testing.T) {
	log := types.Log{
		Address:     common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Topics:      []common.Hash{common.HexToHash("0xaa"), common.HexToHash("0xbb")},
		Data:        []byte{0xde, 0xad, 0xbe, 0xef},
		BlockNumber: 42,
		TxHash:      common.HexToHash("0xdef456"),
		Index:       3,
	}
	ingested := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	record := NewLogRecord(31337, log, 1700000000, ingested)

	if record.Address != log.Address.Hex() {
		t.Fatalf("address mismatch: %s", record.Address)
	}
	if len(record.Topics) != 2 || record.Topic0() != log.Topics[0].Hex() {
		t.Fatalf("topics mismatch: %v", record.Topics)
	}
	if record.Data != "0xdeadbeef" {
		t.Fatalf("data mismatch: %s", record.Data)
	}
	if record.LogIndex != 3 || record.BlockNumber != 42 || record.ChainID != 31337 {
		t.Fatalf("position mismatch: %+v", record)
	}
	if record.IngestedAt != "2024-01-01T00:00:00Z" {
		t.Fatalf("ingested_at mismatch: %s", record.IngestedAt)
	}
}

func TestTopic0Empty(t *testing.T) {
	if (LogRecord{}).Topic0() != "" {
		t.Fatalf("expected empty topic0")
	}
}
