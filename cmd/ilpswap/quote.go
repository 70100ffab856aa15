package main

import (
	"encoding/json"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ilpswap/internal/amm"
	"ilpswap/internal/config"
	"ilpswap/internal/sim"
)

type quoteResult struct {
	ReserveIn  string `json:"reserve_in"`
	ReserveOut string `json:"reserve_out"`
	AmountIn   string `json:"amount_in"`
	IlpFee     string `json:"ilp_fee"`
	LpFee      string `json:"lp_fee"`
	AmountOut  string `json:"amount_out"`
	IlpRate    uint64 `json:"ilp_rate_bps"`
}

func runQuote(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadQuote(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	result, err := quote(cfg)
	if err != nil {
		return err
	}
	logger.Debug("quote",
		zap.String("amount_in", result.AmountIn),
		zap.String("amount_out", result.AmountOut),
		zap.Uint64("ilp_rate", result.IlpRate),
	)
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func quote(cfg config.QuoteConfig) (quoteResult, error) {
	if cfg.IlpRate > amm.MaxIlpFeeRate {
		return quoteResult{}, fmt.Errorf("ilp rate %d above maximum %d", cfg.IlpRate, amm.MaxIlpFeeRate)
	}
	reserveIn, err := sim.ParseAmount(cfg.ReserveIn)
	if err != nil {
		return quoteResult{}, fmt.Errorf("reserve-in: %w", err)
	}
	reserveOut, err := sim.ParseAmount(cfg.ReserveOut)
	if err != nil {
		return quoteResult{}, fmt.Errorf("reserve-out: %w", err)
	}

	var amountIn, amountOut *uint256.Int
	if cfg.AmountIn != "" {
		if amountIn, err = sim.ParseAmount(cfg.AmountIn); err != nil {
			return quoteResult{}, fmt.Errorf("amount-in: %w", err)
		}
		if amountOut, err = amm.GetAmountOutWithIlpFee(amountIn, reserveIn, reserveOut, cfg.IlpRate); err != nil {
			return quoteResult{}, err
		}
	} else {
		if amountOut, err = sim.ParseAmount(cfg.AmountOut); err != nil {
			return quoteResult{}, fmt.Errorf("amount-out: %w", err)
		}
		if amountIn, err = amm.GetAmountInWithIlpFee(amountOut, reserveIn, reserveOut, cfg.IlpRate); err != nil {
			return quoteResult{}, err
		}
	}

	ilpFee, err := amm.IlpFee(amountIn, cfg.IlpRate)
	if err != nil {
		return quoteResult{}, err
	}
	lpFee := new(uint256.Int).Sub(amountIn, ilpFee)
	lpFee.Mul(lpFee, uint256.NewInt(amm.LpFeeBps))
	lpFee.Div(lpFee, uint256.NewInt(amm.FeeDenominator))

	return quoteResult{
		ReserveIn:  reserveIn.Dec(),
		ReserveOut: reserveOut.Dec(),
		AmountIn:   amountIn.Dec(),
		IlpFee:     ilpFee.Dec(),
		LpFee:      lpFee.Dec(),
		AmountOut:  amountOut.Dec(),
		IlpRate:    cfg.IlpRate,
	}, nil
}
