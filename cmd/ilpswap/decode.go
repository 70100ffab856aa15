package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ilpswap/internal/config"
	"ilpswap/internal/events"
	"ilpswap/internal/model"
	"ilpswap/internal/storage"
)

func runDecode(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadDecode(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pairs, err := loadPairMeta(cfg.PairMeta, logger)
	if err != nil {
		return err
	}
	decoder, err := events.NewDecoder(events.DecoderConfig{Topic0Map: cfg.Topic0Map, Pairs: pairs})
	if err != nil {
		return err
	}

	outWriter, err := storage.NewJSONLWriter(cfg.Out, false)
	if err != nil {
		return err
	}
	defer outWriter.Close()

	errWriter, err := storage.NewJSONLWriter(cfg.Errors, false)
	if err != nil {
		return err
	}
	defer errWriter.Close()

	logger.Info("decode start",
		zap.String("in", cfg.In),
		zap.String("out", cfg.Out),
		zap.String("errors", cfg.Errors),
		zap.Int("pairs", pairs.Len()),
	)

	d := &decodeRun{decoder: decoder, out: outWriter, errs: errWriter}
	err = storage.ReadJSONL(cfg.In, func(line []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		var record model.LogRecord
		if err := json.Unmarshal(line, &record); err != nil {
			d.total++
			d.failed++
			return d.writeError(model.DecodeError{Error: err.Error()})
		}
		return d.decode(record)
	})
	if err != nil {
		return err
	}

	d.log(logger)
	return nil
}

// decodeRun decodes log records into typed events and counts outcomes.
type decodeRun struct {
	decoder *events.Decoder
	out     *storage.JSONLWriter
	errs    *storage.JSONLWriter

	total, decoded, skipped, failed int
}

func (d *decodeRun) decode(record model.LogRecord) error {
	d.total++
	if len(record.Topics) == 0 {
		d.failed++
		return d.writeError(decodeErrorFromRecord(record, fmt.Errorf("missing topic0")))
	}
	if !d.decoder.CanDecode(record.Topic0()) {
		d.skipped++
		return nil
	}

	event, err := d.decoder.Decode(record)
	if err != nil {
		d.failed++
		return d.writeError(decodeErrorFromRecord(record, err))
	}
	if err := d.out.Write(event); err != nil {
		return err
	}
	d.decoded++
	return nil
}

func (d *decodeRun) writeError(e model.DecodeError) error {
	if d.errs == nil {
		return nil
	}
	return d.errs.Write(e)
}

func (d *decodeRun) log(logger *zap.Logger) {
	logger.Info("decode complete",
		zap.Int("total", d.total),
		zap.Int("decoded", d.decoded),
		zap.Int("skipped", d.skipped),
		zap.Int("failed", d.failed),
	)
}

func decodeErrorFromRecord(record model.LogRecord, err error) model.DecodeError {
	return model.DecodeError{
		ChainID:     record.ChainID,
		BlockNumber: record.BlockNumber,
		TxHash:      record.TxHash,
		LogIndex:    record.LogIndex,
		Address:     record.Address,
		Topic0:      record.Topic0(),
		Error:       err.Error(),
	}
}

// loadPairMeta reads pair metadata when the file exists. Without it, pair events are
// still decoded but carry no pair_meta.
func loadPairMeta(path string, logger *zap.Logger) (*events.PairMetaCache, error) {
	if path == "" {
		return events.NewPairMetaCache(), nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		logger.Warn("pair metadata not found, decoding without it", zap.String("path", path))
		return events.NewPairMetaCache(), nil
	}
	return events.LoadPairMeta(path)
}
