package tokens

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptonow/paygate/types"
)

func TestRegistryResolve(t *testing.T) {
	r := NewRegistry()

	sol, err := r.Resolve("sol")
	require.NoError(t, err)
	assert.Equal(t, "SOL", sol.Symbol)
	assert.Equal(t, "Solana", sol.Name)
	assert.True(t, sol.Native())
	assert.Equal(t, uint8(9), sol.Decimals)

	usdc, err := r.Resolve("USDC")
	require.NoError(t, err)
	assert.Equal(t, "USD Coin", usdc.Name)
	assert.Equal(t, KindAsset, usdc.Kind)
	assert.Equal(t, USDCMint, usdc.Mint)
	assert.Equal(t, uint8(6), usdc.Decimals)

	_, err = r.Resolve("DOGE")
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeUnsupportedToken))
	assert.Contains(t, err.Error(), "SOL, USDC, USDT", "refusal lists what is supported")

	assert.Equal(t, []string{"SOL", "USDC", "USDT"}, r.Symbols())
}

func TestAssetID(t *testing.T) {
	r := NewRegistry()
	sol, _ := r.Resolve("SOL")
	usdc, _ := r.Resolve("USDC")
	usdt, _ := r.Resolve("USDT")

	assert.Equal(t, "native", sol.AssetID())
	assert.Equal(t, "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", usdc.AssetID())
	assert.NotEqual(t, usdc.AssetID(), usdt.AssetID())
}

func TestMinorUnits(t *testing.T) {
	r := NewRegistry()
	sol, _ := r.Resolve("SOL")
	usdc, _ := r.Resolve("USDC")

	got, err := sol.MinorUnits(decimal.RequireFromString("1.5"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1_500_000_000), got)

	got, err = usdc.MinorUnits(decimal.RequireFromString("2.5"))
	require.NoError(t, err)
	assert.Equal(t, uint64(2_500_000), got)

	// Sub-minor-unit dust truncates away.
	got, err = usdc.MinorUnits(decimal.RequireFromString("1.0000009"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000), got)

	// An amount entirely below the smallest unit is rejected.
	_, err = usdc.MinorUnits(decimal.RequireFromString("0.0000001"))
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeAmountOutOfRange))

	// Past uint64 range.
	_, err = sol.MinorUnits(decimal.RequireFromString("20000000000"))
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeAmountOutOfRange))
}

func TestDisplayUnits(t *testing.T) {
	r := NewRegistry()
	sol, _ := r.Resolve("SOL")
	usdc, _ := r.Resolve("USDC")

	assert.True(t, decimal.RequireFromString("1.5").Equal(sol.DisplayUnits(1_500_000_000)))
	assert.True(t, decimal.RequireFromString("0.000001").Equal(usdc.DisplayUnits(1)))
}

func TestValidateAmount(t *testing.T) {
	assert.NoError(t, ValidateAmount(decimal.RequireFromString("0.01")))
	assert.NoError(t, ValidateAmount(MaxDisplayAmount))

	err := ValidateAmount(MaxDisplayAmount.Add(decimal.New(1, -6)))
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeAmountOutOfRange))

	assert.Error(t, ValidateAmount(decimal.Zero))
	assert.Error(t, ValidateAmount(decimal.RequireFromString("-1")))
}

func TestLoadJSON(t *testing.T) {
	r := NewRegistry()

	err := r.LoadJSON(`[
		{"symbol": "BONK", "name": "Bonk", "mint": "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263", "decimals": 5},
		{"symbol": "WSOL", "mint": "", "decimals": 9},
		{"symbol": "usdc", "mint": "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", "decimals": 6}
	]`)
	require.NoError(t, err)

	bonk, err := r.Resolve("BONK")
	require.NoError(t, err)
	assert.Equal(t, KindAsset, bonk.Kind)
	assert.Equal(t, "Bonk", bonk.Name)
	assert.Equal(t, uint8(5), bonk.Decimals)

	wsol, err := r.Resolve("WSOL")
	require.NoError(t, err)
	assert.True(t, wsol.Native(), "empty mint registers a native token")
	assert.Equal(t, "WSOL", wsol.Name, "missing name falls back to the symbol")

	// Re-registering an existing symbol replaces it.
	usdc, err := r.Resolve("USDC")
	require.NoError(t, err)
	assert.Equal(t, USDCMint, usdc.Mint)
}

func TestLoadJSONRejectsBadEntries(t *testing.T) {
	r := NewRegistry()

	err := r.LoadJSON(`not json`)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeConfigInvalid))

	err = r.LoadJSON(`[{"mint": "", "decimals": 6}]`)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeConfigInvalid))

	err = r.LoadJSON(`[{"symbol": "X", "mint": "oops", "decimals": 6}]`)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeConfigInvalid))
}
