// Package tokens defines the settlement currencies the gateway accepts
// and the conversions between display amounts and on-chain minor units.
package tokens

import (
	"encoding/json"
	"math/big"
	"sort"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/cryptonow/paygate/types"
)

// Kind discriminates how a token settles on chain.
type Kind int

const (
	// KindNative settles through system transfers of lamports.
	KindNative Kind = iota
	// KindAsset settles through token-program transfers of a mint.
	KindAsset
)

// Well-known mainnet mints.
var (
	USDCMint = solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	USDTMint = solana.MustPublicKeyFromBase58("Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB")
)

// MaxDisplayAmount caps a single payment leg in display units.
var MaxDisplayAmount = decimal.NewFromInt(1_000_000)

// Token describes one supported settlement currency.
type Token struct {
	Symbol   string
	Name     string
	Kind     Kind
	Mint     solana.PublicKey
	Decimals uint8
}

// Native reports whether the token settles in lamports.
func (t Token) Native() bool {
	return t.Kind == KindNative
}

// AssetID identifies the settled asset: the mint address for assets,
// "native" for SOL.
func (t Token) AssetID() string {
	if t.Kind == KindNative {
		return "native"
	}
	return t.Mint.String()
}

// MinorUnits converts a display amount to the token's smallest unit,
// truncating anything below it.
func (t Token) MinorUnits(amount decimal.Decimal) (uint64, error) {
	minor := amount.Shift(int32(t.Decimals)).Truncate(0)
	if minor.Sign() <= 0 {
		return 0, types.Errorf(types.ErrCodeAmountOutOfRange, "amount %s is below the smallest %s unit", amount, t.Symbol)
	}
	bi := minor.BigInt()
	if !bi.IsUint64() {
		return 0, types.Errorf(types.ErrCodeAmountOutOfRange, "amount %s overflows %s minor units", amount, t.Symbol)
	}
	return bi.Uint64(), nil
}

// DisplayUnits converts minor units back to display units.
func (t Token) DisplayUnits(minor uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(minor), -int32(t.Decimals))
}

// ValidateAmount checks a requested display amount against the positive
// floor and the per-payment ceiling.
func ValidateAmount(amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return types.Errorf(types.ErrCodeAmountOutOfRange, "amount must be positive, got %s", amount)
	}
	if amount.GreaterThan(MaxDisplayAmount) {
		return types.Errorf(types.ErrCodeAmountOutOfRange, "amount %s exceeds the %s ceiling", amount, MaxDisplayAmount)
	}
	return nil
}

// Registry maps token symbols to their settlement parameters.
type Registry struct {
	tokens map[string]Token
}

// NewRegistry returns a registry preloaded with SOL, USDC and USDT.
func NewRegistry() *Registry {
	r := &Registry{tokens: make(map[string]Token)}
	r.Register(Token{Symbol: "SOL", Name: "Solana", Kind: KindNative, Decimals: 9})
	r.Register(Token{Symbol: "USDC", Name: "USD Coin", Kind: KindAsset, Mint: USDCMint, Decimals: 6})
	r.Register(Token{Symbol: "USDT", Name: "Tether USD", Kind: KindAsset, Mint: USDTMint, Decimals: 6})
	return r
}

// Register adds or replaces a token. Symbols are case-insensitive.
func (r *Registry) Register(t Token) {
	r.tokens[strings.ToUpper(t.Symbol)] = t
}

// Resolve looks up a token by symbol, case-insensitively.
func (r *Registry) Resolve(symbol string) (Token, error) {
	t, ok := r.tokens[strings.ToUpper(symbol)]
	if !ok {
		return Token{}, types.Errorf(types.ErrCodeUnsupportedToken, "unsupported token %q, supported: %s", symbol, strings.Join(r.Symbols(), ", "))
	}
	return t, nil
}

// Symbols lists the registered symbols in sorted order.
func (r *Registry) Symbols() []string {
	out := make([]string, 0, len(r.tokens))
	for s := range r.tokens {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// LoadJSON merges token definitions from a JSON array into the registry.
// An entry with an empty mint registers a native token; a missing name
// falls back to the symbol.
func (r *Registry) LoadJSON(raw string) error {
	var entries []struct {
		Symbol   string `json:"symbol"`
		Name     string `json:"name"`
		Mint     string `json:"mint"`
		Decimals uint8  `json:"decimals"`
	}
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return types.Errorf(types.ErrCodeConfigInvalid, "token registry: %v", err)
	}
	for _, e := range entries {
		if e.Symbol == "" {
			return types.Errorf(types.ErrCodeConfigInvalid, "token registry: entry missing symbol")
		}
		t := Token{Symbol: e.Symbol, Name: e.Name, Kind: KindNative, Decimals: e.Decimals}
		if t.Name == "" {
			t.Name = e.Symbol
		}
		if e.Mint != "" {
			mint, err := solana.PublicKeyFromBase58(e.Mint)
			if err != nil {
				return types.Errorf(types.ErrCodeConfigInvalid, "token registry: %s: bad mint: %v", e.Symbol, err)
			}
			t.Kind = KindAsset
			t.Mint = mint
		}
		r.Register(t)
	}
	return nil
}
