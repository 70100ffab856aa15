package storage

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"ilpswap/internal/model"
)

type countingStorage struct {
	batches int
	err     error
}

func (c *countingStorage) PutLogBatch([]model.LogRecord) error {
	if c.err != nil {
		return c.err
	}
	c.batches++
	return nil
}

func TestMultiFansOutAndStopsOnError(t *testing.T) {
	a, b := &countingStorage{}, &countingStorage{}
	sink := Multi(a, nil, b)
	if err := sink.PutLogBatch([]model.LogRecord{{}}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if a.batches != 1 || b.batches != 1 {
		t.Fatalf("expected one batch each, got %d/%d", a.batches, b.batches)
	}

	boom := errors.New("boom")
	failing := &countingStorage{err: boom}
	after := &countingStorage{}
	if err := Multi(failing, after).PutLogBatch(nil); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if after.batches != 0 {
		t.Fatalf("sink after failure should not be called")
	}
}

func TestWindowMetricsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.jsonl")
	f, err := NewWindowMetricsFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()
	if err := f.UpsertPairs(ctx, []model.Pair{{Address: "0xpair"}}); err != nil {
		t.Fatalf("pairs: %v", err)
	}
	if err := f.UpsertWindowMetrics(ctx, []model.PairWindowMetrics{{PairAddress: "0xpair", SwapCount: 2}, {PairAddress: "0xpair"}}); err != nil {
		t.Fatalf("metrics: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	var swaps []uint64
	err = ReadJSONL(path, func(line []byte) error {
		var m model.PairWindowMetrics
		if err := json.Unmarshal(line, &m); err != nil {
			return err
		}
		swaps = append(swaps, m.SwapCount)
		return nil
	})
	if err != nil || len(swaps) != 2 || swaps[0] != 2 {
		t.Fatalf("unexpected metrics: %v %v", swaps, err)
	}

	var pairs int
	if err := ReadJSONL(PairsPath(path), func([]byte) error { pairs++; return nil }); err != nil || pairs != 1 {
		t.Fatalf("unexpected pairs: %d %v", pairs, err)
	}
}
