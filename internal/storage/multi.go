package storage

import (
	"fmt"

	"ilpswap/internal/model"
)

type multi []Storage

// Multi writes every batch to each sink in order and stops at the first failure.
func Multi(sinks ...Storage) Storage {
	out := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m multi) PutLogBatch(logs []model.LogRecord) error {
	for i, s := range m {
		if err := s.PutLogBatch(logs); err != nil {
			return fmt.Errorf("sink %d: %w", i, err)
		}
	}
	return nil
}
