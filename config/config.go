// Package config resolves gateway configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cryptonow/paygate/clients"
	"github.com/cryptonow/paygate/types"
	"github.com/cryptonow/paygate/utils"
)

// Config captures runtime configuration for the payment gateway.
type Config struct {
	ListenAddress string
	BaseURL       string
	RPCEndpoints  []string

	FeeWallet string
	FeeToken  string
	FeeAmount decimal.Decimal

	PaymentTTL      time.Duration
	SweepInterval   time.Duration
	ComposeDeadline time.Duration

	TokensJSON string
	IconURL    string

	RPCAttempts       int
	RPCAttemptTimeout time.Duration
	RPCRetryDelay     time.Duration

	LogLevel  string
	LogFormat string

	MetricsEnabled bool
}

const (
	envListen         = "PAYGATE_LISTEN"
	envBaseURL        = "PAYGATE_BASE_URL"
	envRPCEndpoints   = "PAYGATE_RPC_ENDPOINTS"
	envFeeWallet      = "PAYGATE_FEE_WALLET"
	envFeeToken       = "PAYGATE_FEE_TOKEN"
	envFeeAmount      = "PAYGATE_FEE_AMOUNT"
	envPaymentTTL     = "PAYGATE_PAYMENT_TTL"
	envSweepInterval  = "PAYGATE_SWEEP_INTERVAL"
	envComposeTimeout = "PAYGATE_COMPOSE_DEADLINE"
	envTokens         = "PAYGATE_TOKENS"
	envIconURL        = "PAYGATE_ICON_URL"
	envRPCAttempts    = "PAYGATE_RPC_ATTEMPTS"
	envRPCTimeout     = "PAYGATE_RPC_ATTEMPT_TIMEOUT"
	envRPCRetryDelay  = "PAYGATE_RPC_RETRY_DELAY"
	envLogLevel       = "PAYGATE_LOG_LEVEL"
	envLogFormat      = "PAYGATE_LOG_FORMAT"
	envMetricsEnabled = "PAYGATE_METRICS"
)

// DefaultFeeWallet collects the service fee unless overridden.
const DefaultFeeWallet = "9E9ME8Xjrnnz5tyLqPWUbXVbPjXusEp9NdjKeugDjW5t"

// LoadFromEnv resolves configuration from environment variables with
// sane defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		ListenAddress:     getenvDefault(envListen, ":8080"),
		BaseURL:           strings.TrimRight(getenvDefault(envBaseURL, "http://localhost:8080"), "/"),
		RPCEndpoints:      splitList(getenvDefault(envRPCEndpoints, "https://api.mainnet-beta.solana.com")),
		FeeWallet:         getenvDefault(envFeeWallet, DefaultFeeWallet),
		FeeToken:          getenvDefault(envFeeToken, "USDC"),
		PaymentTTL:        parseDurationDefault(envPaymentTTL, 30*time.Minute),
		SweepInterval:     parseDurationDefault(envSweepInterval, time.Minute),
		ComposeDeadline:   parseDurationDefault(envComposeTimeout, 15*time.Second),
		TokensJSON:        strings.TrimSpace(os.Getenv(envTokens)),
		IconURL:           getenvDefault(envIconURL, "https://cryptonow.app/icon.png"),
		RPCAttempts:       parseIntDefault(envRPCAttempts, 2),
		RPCAttemptTimeout: parseDurationDefault(envRPCTimeout, 5*time.Second),
		RPCRetryDelay:     parseDurationDefault(envRPCRetryDelay, time.Second),
		LogLevel:          getenvDefault(envLogLevel, "info"),
		LogFormat:         getenvDefault(envLogFormat, "json"),
		MetricsEnabled:    parseBoolDefault(envMetricsEnabled, true),
	}

	feeAmount := getenvDefault(envFeeAmount, "1")
	amt, err := decimal.NewFromString(feeAmount)
	if err != nil {
		return nil, types.Errorf(types.ErrCodeConfigInvalid, "%s: %v", envFeeAmount, err)
	}
	if amt.Sign() < 0 {
		return nil, types.Errorf(types.ErrCodeConfigInvalid, "%s cannot be negative", envFeeAmount)
	}
	cfg.FeeAmount = amt

	if _, err := utils.ValidateAddress(cfg.FeeWallet); err != nil {
		return nil, types.Errorf(types.ErrCodeConfigInvalid, "%s: %v", envFeeWallet, err)
	}
	if len(cfg.RPCEndpoints) == 0 {
		return nil, types.Errorf(types.ErrCodeConfigInvalid, "%s is required", envRPCEndpoints)
	}
	if cfg.PaymentTTL <= 0 {
		return nil, types.Errorf(types.ErrCodeConfigInvalid, "%s must be positive", envPaymentTTL)
	}

	return cfg, nil
}

// FallbackPolicy converts the RPC retry settings into a policy value.
func (c *Config) FallbackPolicy() clients.FallbackPolicy {
	return clients.FallbackPolicy{
		AttemptsPerEndpoint: c.RPCAttempts,
		AttemptTimeout:      c.RPCAttemptTimeout,
		RetryDelay:          c.RPCRetryDelay,
	}
}

// FeeConfig converts the fee settings into the fee leg description.
func (c *Config) FeeConfig() types.FeeConfig {
	return types.FeeConfig{
		Recipient: c.FeeWallet,
		Token:     c.FeeToken,
		Amount:    c.FeeAmount,
	}
}

func getenvDefault(key, def string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return def
}

func parseDurationDefault(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func parseIntDefault(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func parseBoolDefault(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return b
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
