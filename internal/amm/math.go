package amm

import (
	"github.com/holiman/uint256"

	errorsmod "cosmossdk.io/errors"
)

const (
	// MinimumLiquidity is locked at the burn address on the first mint.
	MinimumLiquidity = 1000
	// FeeDenominator is the basis point scale.
	FeeDenominator = 10000
	// LpFeeBps is the liquidity provider fee charged on every swap input.
	LpFeeBps = 36
	// LpFeeMultiplier is the share of the input that counts toward the invariant.
	LpFeeMultiplier = FeeDenominator - LpFeeBps
	// MaxIlpFeeRate caps each directional ILP fee rate.
	MaxIlpFeeRate = 200
)

var (
	feeDenominator  = uint256.NewInt(FeeDenominator)
	lpFeeBps        = uint256.NewInt(LpFeeBps)
	lpFeeMultiplier = uint256.NewInt(LpFeeMultiplier)
)

// GetAmountOut returns the maximum output for amountIn against the given reserves:
// floor(amountIn*9964*reserveOut / (reserveIn*10000 + amountIn*9964)).
func GetAmountOut(amountIn, reserveIn, reserveOut *uint256.Int) (*uint256.Int, error) {
	if amountIn.IsZero() {
		return nil, ErrInsufficientInputAmount
	}
	if reserveIn.IsZero() || reserveOut.IsZero() {
		return nil, ErrInsufficientLiquidity
	}
	amountInWithFee, err := mul(amountIn, lpFeeMultiplier)
	if err != nil {
		return nil, err
	}
	numerator, err := mul(amountInWithFee, reserveOut)
	if err != nil {
		return nil, err
	}
	scaledReserve, err := mul(reserveIn, feeDenominator)
	if err != nil {
		return nil, err
	}
	denominator, err := add(scaledReserve, amountInWithFee)
	if err != nil {
		return nil, err
	}
	return numerator.Div(numerator, denominator), nil
}

// GetAmountIn returns the minimum input required to receive amountOut.
func GetAmountIn(amountOut, reserveIn, reserveOut *uint256.Int) (*uint256.Int, error) {
	if amountOut.IsZero() {
		return nil, ErrInsufficientOutputAmount
	}
	if reserveIn.IsZero() || reserveOut.IsZero() || !amountOut.Lt(reserveOut) {
		return nil, ErrInsufficientLiquidity
	}
	numerator, err := mul(reserveIn, amountOut)
	if err != nil {
		return nil, err
	}
	if numerator, err = mul(numerator, feeDenominator); err != nil {
		return nil, err
	}
	denominator, err := mul(new(uint256.Int).Sub(reserveOut, amountOut), lpFeeMultiplier)
	if err != nil {
		return nil, err
	}
	numerator.Div(numerator, denominator)
	return numerator.AddUint64(numerator, 1), nil
}

// Quote returns the amount of B equivalent to amountA at the reserve ratio, without fees.
func Quote(amountA, reserveA, reserveB *uint256.Int) (*uint256.Int, error) {
	if amountA.IsZero() {
		return nil, ErrInsufficientInputAmount
	}
	if reserveA.IsZero() || reserveB.IsZero() {
		return nil, ErrInsufficientLiquidity
	}
	out, err := mul(amountA, reserveB)
	if err != nil {
		return nil, err
	}
	return out.Div(out, reserveA), nil
}

// IlpFee returns amountIn*rate/10000.
func IlpFee(amountIn *uint256.Int, rate uint64) (*uint256.Int, error) {
	fee, err := mul(amountIn, uint256.NewInt(rate))
	if err != nil {
		return nil, err
	}
	return fee.Div(fee, feeDenominator), nil
}

// GetAmountOutWithIlpFee quotes a swap on a pair charging an ILP fee of rate basis
// points on the input side. The fee is taken before the LP fee.
func GetAmountOutWithIlpFee(amountIn, reserveIn, reserveOut *uint256.Int, rate uint64) (*uint256.Int, error) {
	fee, err := IlpFee(amountIn, rate)
	if err != nil {
		return nil, err
	}
	return GetAmountOut(new(uint256.Int).Sub(amountIn, fee), reserveIn, reserveOut)
}

// GetAmountInWithIlpFee returns the smallest gross input that, after the ILP fee of
// rate basis points, still covers GetAmountIn for amountOut.
func GetAmountInWithIlpFee(amountOut, reserveIn, reserveOut *uint256.Int, rate uint64) (*uint256.Int, error) {
	net, err := GetAmountIn(amountOut, reserveIn, reserveOut)
	if err != nil {
		return nil, err
	}
	if rate == 0 {
		return net, nil
	}
	if rate > MaxIlpFeeRate {
		return nil, errorsmod.Wrapf(ErrInvalidFeeRate, "ilp rate %d", rate)
	}
	gross, err := mul(net, feeDenominator)
	if err != nil {
		return nil, err
	}
	gross.Div(gross, uint256.NewInt(FeeDenominator-rate))
	for {
		fee, err := IlpFee(gross, rate)
		if err != nil {
			return nil, err
		}
		if !new(uint256.Int).Sub(gross, fee).Lt(net) {
			return gross, nil
		}
		gross.AddUint64(gross, 1)
	}
}

// Sqrt returns floor(sqrt(y)).
func Sqrt(y *uint256.Int) *uint256.Int {
	return new(uint256.Int).Sqrt(y)
}

func mul(a, b *uint256.Int) (*uint256.Int, error) {
	out, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		return nil, errorsmod.Wrapf(ErrOverflow, "%s * %s", a, b)
	}
	return out, nil
}

func add(a, b *uint256.Int) (*uint256.Int, error) {
	out, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return nil, errorsmod.Wrapf(ErrOverflow, "%s + %s", a, b)
	}
	return out, nil
}

func minInt(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return a
	}
	return b
}
