package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptonow/paygate/types"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddress)
	assert.Equal(t, "http://localhost:8080", cfg.BaseURL)
	assert.Equal(t, []string{"https://api.mainnet-beta.solana.com"}, cfg.RPCEndpoints)
	assert.Equal(t, DefaultFeeWallet, cfg.FeeWallet)
	assert.Equal(t, "USDC", cfg.FeeToken)
	assert.True(t, cfg.FeeAmount.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, 30*time.Minute, cfg.PaymentTTL)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Equal(t, 15*time.Second, cfg.ComposeDeadline)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.MetricsEnabled)

	policy := cfg.FallbackPolicy()
	assert.Equal(t, 2, policy.AttemptsPerEndpoint)
	assert.Equal(t, 5*time.Second, policy.AttemptTimeout)
	assert.Equal(t, time.Second, policy.RetryDelay)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("PAYGATE_LISTEN", ":9000")
	t.Setenv("PAYGATE_BASE_URL", "https://pay.example/")
	t.Setenv("PAYGATE_RPC_ENDPOINTS", "https://rpc-a.example, https://rpc-b.example ,")
	t.Setenv("PAYGATE_FEE_AMOUNT", "0.5")
	t.Setenv("PAYGATE_PAYMENT_TTL", "10m")
	t.Setenv("PAYGATE_COMPOSE_DEADLINE", "20s")
	t.Setenv("PAYGATE_RPC_ATTEMPTS", "3")
	t.Setenv("PAYGATE_METRICS", "false")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.ListenAddress)
	assert.Equal(t, "https://pay.example", cfg.BaseURL, "trailing slash is trimmed")
	assert.Equal(t, []string{"https://rpc-a.example", "https://rpc-b.example"}, cfg.RPCEndpoints)
	assert.True(t, cfg.FeeAmount.Equal(decimal.RequireFromString("0.5")))
	assert.Equal(t, 10*time.Minute, cfg.PaymentTTL)
	assert.Equal(t, 20*time.Second, cfg.ComposeDeadline)
	assert.Equal(t, 3, cfg.RPCAttempts)
	assert.False(t, cfg.MetricsEnabled)
}

func TestLoadFromEnvBadValuesFallBack(t *testing.T) {
	t.Setenv("PAYGATE_PAYMENT_TTL", "soon")
	t.Setenv("PAYGATE_RPC_ATTEMPTS", "-4")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, cfg.PaymentTTL)
	assert.Equal(t, 2, cfg.RPCAttempts)
}

func TestLoadFromEnvRejectsInvalidMoneySettings(t *testing.T) {
	t.Setenv("PAYGATE_FEE_WALLET", "not-an-address")
	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeConfigInvalid))

	t.Setenv("PAYGATE_FEE_WALLET", DefaultFeeWallet)
	t.Setenv("PAYGATE_FEE_AMOUNT", "one")
	_, err = LoadFromEnv()
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeConfigInvalid))

	t.Setenv("PAYGATE_FEE_AMOUNT", "-1")
	_, err = LoadFromEnv()
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeConfigInvalid))
}

func TestFeeConfig(t *testing.T) {
	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	fee := cfg.FeeConfig()
	assert.Equal(t, DefaultFeeWallet, fee.Recipient)
	assert.Equal(t, "USDC", fee.Token)
	assert.True(t, fee.Amount.Equal(decimal.NewFromInt(1)))
}
