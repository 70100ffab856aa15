package sim

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/spf13/viper"
)

// Step actions.
const (
	ActionMint        = "mint"
	ActionBurn        = "burn"
	ActionSwap        = "swap"
	ActionToggleIlp   = "toggle-ilp"
	ActionSetIlpRates = "set-ilp-rates"
	ActionUpkeep      = "upkeep"
	ActionAdvance     = "advance"
	ActionSync        = "sync"
	ActionSkim        = "skim"
	ActionDonate      = "donate"
)

// Scenario is a scripted deployment plus a list of steps.
type Scenario struct {
	Name      string            `mapstructure:"name"`
	ChainID   uint64            `mapstructure:"chain_id"`
	StartTime uint64            `mapstructure:"start_time"`
	Governor  string            `mapstructure:"governor"`
	Keeper    string            `mapstructure:"keeper"`
	Treasury  string            `mapstructure:"treasury"`
	Accounts  map[string]string `mapstructure:"accounts"`
	Tokens    []TokenSpec       `mapstructure:"tokens"`
	Pairs     []PairSpec        `mapstructure:"pairs"`
	Rebalance RebalanceSpec     `mapstructure:"rebalance"`
	Steps     []Step            `mapstructure:"steps"`
}

type TokenSpec struct {
	Symbol   string `mapstructure:"symbol"`
	Name     string `mapstructure:"name"`
	Decimals uint8  `mapstructure:"decimals"`
}

type PairSpec struct {
	Tokens  []string `mapstructure:"tokens"`
	Admin   string   `mapstructure:"admin"`
	Manager string   `mapstructure:"manager"`
}

type RebalanceSpec struct {
	Threshold         string `mapstructure:"threshold"`
	ProcessingFeeRate uint64 `mapstructure:"processing_fee_rate"`
	// BypassIlpFee defaults to true when omitted.
	BypassIlpFee *bool `mapstructure:"bypass_ilp_fee"`
}

// Step is one scripted action. Which fields apply depends on Action.
type Step struct {
	Action       string `mapstructure:"action"`
	Pair         string `mapstructure:"pair"`
	Account      string `mapstructure:"account"`
	Amount0      string `mapstructure:"amount0"`
	Amount1      string `mapstructure:"amount1"`
	TokenIn      string `mapstructure:"token_in"`
	AmountIn     string `mapstructure:"amount_in"`
	MinOut       string `mapstructure:"min_out"`
	Liquidity    string `mapstructure:"liquidity"`
	Token        string `mapstructure:"token"`
	Amount       string `mapstructure:"amount"`
	To           string `mapstructure:"to"`
	Active       bool   `mapstructure:"active"`
	Rate0        uint64 `mapstructure:"rate0"`
	Rate1        uint64 `mapstructure:"rate1"`
	Seconds      uint64 `mapstructure:"seconds"`
	Force        bool   `mapstructure:"force"`
	ExpectRevert bool   `mapstructure:"expect_revert"`
}

// LoadScenario reads a scenario file in any format viper understands.
func LoadScenario(path string) (Scenario, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Scenario{}, fmt.Errorf("read scenario: %w", err)
	}
	var sc Scenario
	if err := v.Unmarshal(&sc); err != nil {
		return Scenario{}, fmt.Errorf("parse scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return Scenario{}, err
	}
	return sc, nil
}

// Validate checks the static shape of the scenario.
func (sc Scenario) Validate() error {
	if len(sc.Tokens) < 2 {
		return fmt.Errorf("scenario needs at least two tokens")
	}
	if len(sc.Pairs) == 0 {
		return fmt.Errorf("scenario needs at least one pair")
	}
	for i, p := range sc.Pairs {
		if len(p.Tokens) != 2 {
			return fmt.Errorf("pair %d: expected two tokens, got %d", i, len(p.Tokens))
		}
	}
	for i, step := range sc.Steps {
		switch step.Action {
		case ActionMint, ActionBurn, ActionSwap, ActionToggleIlp, ActionSetIlpRates,
			ActionUpkeep, ActionAdvance, ActionSync, ActionSkim, ActionDonate:
		default:
			return fmt.Errorf("step %d: unknown action %q", i, step.Action)
		}
	}
	return nil
}

// resolveAccount maps an account alias or hex address to an address. Alias lookup is
// case-insensitive because viper lowercases map keys.
func (sc Scenario) resolveAccount(name string, fallback common.Address) (common.Address, error) {
	if name == "" {
		return fallback, nil
	}
	if hex, ok := sc.Accounts[strings.ToLower(name)]; ok {
		name = hex
	}
	if !common.IsHexAddress(name) {
		return common.Address{}, fmt.Errorf("unknown account %q", name)
	}
	return common.HexToAddress(name), nil
}

// splitPair parses "TKA/TKB".
func splitPair(name string) (string, string, error) {
	parts := strings.Split(name, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid pair %q, want SYMBOL/SYMBOL", name)
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), nil
}

// ParseAmount parses a base-unit integer. Scientific shorthand such as "25e17" is
// accepted as long as the result is integral.
func ParseAmount(input string) (*uint256.Int, error) {
	input = strings.TrimSpace(strings.ReplaceAll(input, "_", ""))
	if input == "" {
		return nil, fmt.Errorf("empty amount")
	}
	if !strings.ContainsAny(input, "eE.") {
		return uint256.FromDecimal(input)
	}
	rat, ok := new(big.Rat).SetString(input)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", input)
	}
	if !rat.IsInt() || rat.Sign() < 0 {
		return nil, fmt.Errorf("amount %q is not a non-negative integer", input)
	}
	out, overflow := uint256.FromBig(rat.Num())
	if overflow {
		return nil, fmt.Errorf("amount %q overflows 256 bits", input)
	}
	return out, nil
}
