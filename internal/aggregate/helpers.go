package aggregate

import (
	"math/big"
	"time"
)

const ratioScale = 18

func formatTokenAmount(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	if decimals == 0 {
		return value.String()
	}
	sign := value.Sign()
	abs := new(big.Int).Abs(value)
	denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	text := new(big.Rat).SetFrac(abs, denom).FloatString(int(decimals))
	if sign < 0 {
		return "-" + text
	}
	return text
}

func sum(a, b *big.Int) *big.Int {
	return new(big.Int).Add(a, b)
}

// computeFeeRates returns fee/reserve per side, nil where either is zero or unknown.
func computeFeeRates(fee0, fee1, reserve0, reserve1 *big.Int) (*string, *string) {
	var feeRate0, feeRate1 *string
	if rate := computeRateFromInt(fee0, reserve0); rate != "" {
		feeRate0 = &rate
	}
	if rate := computeRateFromInt(fee1, reserve1); rate != "" {
		feeRate1 = &rate
	}
	return feeRate0, feeRate1
}

func computeRateFromInt(fee, reserve *big.Int) string {
	if fee == nil || fee.Sign() == 0 || reserve == nil || reserve.Sign() == 0 {
		return ""
	}
	return new(big.Rat).SetFrac(fee, reserve).FloatString(ratioScale)
}

// computeAPR annualizes the window fee rate. With both sides present the two rates are
// averaged, since each is already relative to its own reserve.
func computeAPR(feeRate0, feeRate1 *string, windowSeconds uint64) *string {
	if windowSeconds == 0 {
		return nil
	}
	var rates []*big.Rat
	for _, s := range []*string{feeRate0, feeRate1} {
		if s == nil {
			continue
		}
		rat, ok := new(big.Rat).SetString(*s)
		if !ok {
			return nil
		}
		rates = append(rates, rat)
	}
	if len(rates) == 0 {
		return nil
	}

	rate := new(big.Rat)
	for _, r := range rates {
		rate.Add(rate, r)
	}
	rate.Quo(rate, big.NewRat(int64(len(rates)), 1))

	yearSeconds := big.NewRat(int64(365*24*time.Hour/time.Second), 1)
	apr := new(big.Rat).Mul(rate, yearSeconds)
	apr.Quo(apr, big.NewRat(int64(windowSeconds), 1))
	val := apr.FloatString(ratioScale)
	return &val
}
