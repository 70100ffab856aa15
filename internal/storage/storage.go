// Package storage holds sinks for exported runtime logs.
package storage

import "ilpswap/internal/model"

// Storage defines a sink for log records.
type Storage interface {
	PutLogBatch(logs []model.LogRecord) error
}
