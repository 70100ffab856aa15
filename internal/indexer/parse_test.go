package indexer

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
)

func TestParseAddresses(t *testing.T) {
	got, err := ParseAddresses([]string{" 0x1000000000000000000000000000000000000001 ", ""})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Hex() != "0x1000000000000000000000000000000000000001" {
		t.Fatalf("unexpected addresses: %v", got)
	}
	if _, err := ParseAddresses([]string{"0x123"}); err == nil {
		t.Fatalf("expected error for short address")
	}
}

func TestParseTopic0AcceptsNamesAndHashes(t *testing.T) {
	swapTopic := crypto.Keccak256Hash([]byte("Swap(address,uint256,uint256,uint256,uint256,address)"))
	got, err := ParseTopic0([]string{"Swap", swapTopic.Hex()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != swapTopic || got[1] != swapTopic {
		t.Fatalf("unexpected topics: %v", got)
	}
	if _, err := ParseTopic0([]string{"Unknown"}); err == nil {
		t.Fatalf("expected error for unknown event")
	}
	if _, err := ParseTopic0([]string{"0x1234"}); err == nil {
		t.Fatalf("expected error for short topic")
	}
}
