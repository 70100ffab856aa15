package storage

import (
	"context"
	"strings"

	"ilpswap/internal/model"
)

// WindowMetricsFile writes aggregation output as JSONL: window metrics to the main
// path and pair records next to it with a _pairs suffix.
type WindowMetricsFile struct {
	metrics *JSONLWriter
	pairs   *JSONLWriter
}

func NewWindowMetricsFile(path string) (*WindowMetricsFile, error) {
	metrics, err := NewJSONLWriter(path, false)
	if err != nil {
		return nil, err
	}
	pairs, err := NewJSONLWriter(PairsPath(path), false)
	if err != nil {
		metrics.Close()
		return nil, err
	}
	return &WindowMetricsFile{metrics: metrics, pairs: pairs}, nil
}

// PairsPath derives the pair file path for a metrics path.
func PairsPath(path string) string {
	return strings.TrimSuffix(path, ".jsonl") + "_pairs.jsonl"
}

func (f *WindowMetricsFile) UpsertPairs(_ context.Context, pairs []model.Pair) error {
	for _, pair := range pairs {
		if err := f.pairs.Write(pair); err != nil {
			return err
		}
	}
	return nil
}

func (f *WindowMetricsFile) UpsertWindowMetrics(_ context.Context, metrics []model.PairWindowMetrics) error {
	for _, m := range metrics {
		if err := f.metrics.Write(m); err != nil {
			return err
		}
	}
	return nil
}

func (f *WindowMetricsFile) Close() error {
	errPairs := f.pairs.Close()
	if err := f.metrics.Close(); err != nil {
		return err
	}
	return errPairs
}
