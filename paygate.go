// Package paygate implements a Solana payment gateway: merchants
// register payment intents, payer wallets fetch unsigned settlement
// transactions for them, and the gateway verifies the settled result
// on chain before marking the payment completed.
package paygate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/cryptonow/paygate/clients"
	"github.com/cryptonow/paygate/compose"
	"github.com/cryptonow/paygate/config"
	"github.com/cryptonow/paygate/logger"
	"github.com/cryptonow/paygate/metrics"
	"github.com/cryptonow/paygate/qr"
	"github.com/cryptonow/paygate/store"
	"github.com/cryptonow/paygate/tokens"
	"github.com/cryptonow/paygate/types"
	"github.com/cryptonow/paygate/utils"
	"github.com/cryptonow/paygate/verification"
)

const Version = "1.0.0"

// Service is the facade over payment creation, transaction composition
// and settlement verification.
type Service struct {
	registry *tokens.Registry
	store    *store.Store
	gateway  *clients.Gateway
	composer *compose.Composer
	verifier *verification.Verifier

	blockhash compose.BlockhashSource
	txsource  verification.TransactionSource

	baseURL  string
	iconURL  string
	ttl      time.Duration
	fee      types.FeeConfig
	feeToken tokens.Token

	log   logger.Logger
	rec   metrics.Recorder
	nowFn func() time.Time
}

// New builds a gateway service from configuration. Options override
// individual config values.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, types.NewPaymentError(types.ErrCodeConfigInvalid, "configuration is required", nil)
	}

	s := &Service{
		registry: tokens.NewRegistry(),
		store:    store.New(),
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		iconURL:  cfg.IconURL,
		ttl:      cfg.PaymentTTL,
		fee:      cfg.FeeConfig(),
		log:      logger.NoopLogger{},
		rec:      metrics.NoopRecorder{},
		nowFn:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.ttl <= 0 {
		return nil, types.NewPaymentError(types.ErrCodeConfigInvalid, "payment TTL must be positive", nil)
	}
	if cfg.TokensJSON != "" {
		if err := s.registry.LoadJSON(cfg.TokensJSON); err != nil {
			return nil, err
		}
	}

	if s.fee.Amount.Sign() < 0 {
		return nil, types.NewPaymentError(types.ErrCodeConfigInvalid, "fee amount cannot be negative", nil)
	}
	if s.fee.Amount.Sign() > 0 {
		feeToken, err := s.registry.Resolve(s.fee.Token)
		if err != nil {
			return nil, types.Errorf(types.ErrCodeConfigInvalid, "fee token: %v", err)
		}
		if _, err := utils.ValidateAddress(s.fee.Recipient); err != nil {
			return nil, types.Errorf(types.ErrCodeConfigInvalid, "fee wallet: %v", err)
		}
		s.feeToken = feeToken
	}

	if s.blockhash == nil || s.txsource == nil {
		gw, err := clients.NewGateway(cfg.RPCEndpoints,
			clients.WithFallbackPolicy(cfg.FallbackPolicy()),
			clients.WithLogger(s.log),
		)
		if err != nil {
			return nil, err
		}
		s.gateway = gw
		if s.blockhash == nil {
			s.blockhash = gw
		}
		if s.txsource == nil {
			s.txsource = gw
		}
	}
	s.composer = compose.NewComposer(s.blockhash, s.log, compose.WithDeadline(cfg.ComposeDeadline))
	s.verifier = verification.NewVerifier(s.txsource, s.store, s.log)
	return s, nil
}

// NewWithDefaults builds a gateway service from the environment.
func NewWithDefaults(opts ...Option) (*Service, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, err
	}
	return New(cfg, opts...)
}

// CreatePayment registers a payment intent and returns the stored
// record, wallet-facing payment URL and QR rendering included.
func (s *Service) CreatePayment(ctx context.Context, req *types.CreatePaymentRequest) (*types.Payment, error) {
	start := time.Now()
	if req == nil {
		return nil, types.NewPaymentError(types.ErrCodeInvalidRequest, "request is required", nil)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}
	if _, err := utils.ValidateAddress(req.Recipient); err != nil {
		return nil, err
	}
	token, err := s.registry.Resolve(req.Token)
	if err != nil {
		return nil, err
	}
	if err := tokens.ValidateAmount(req.Amount); err != nil {
		return nil, err
	}
	if _, err := token.MinorUnits(req.Amount); err != nil {
		return nil, err
	}

	now := s.nowFn()
	p := &types.Payment{
		ID:        utils.NewPaymentID(),
		Recipient: req.Recipient,
		Amount:    req.Amount,
		Token:     token.Symbol,
		Label:     req.Label,
		Message:   req.Message,
		Status:    types.StatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if s.fee.Amount.Sign() > 0 {
		p.FeeRecipient = s.fee.Recipient
		p.FeeAmount = s.fee.Amount
		p.FeeToken = s.feeToken.Symbol
	}
	if p.Label == "" {
		p.Label = "Payment " + token.Symbol
	}
	if p.Message == "" {
		p.Message = s.defaultMessage(p, token)
	}

	p.URL = s.PaymentURL(p.ID)
	qrURI, err := qr.DataURI(p.URL)
	if err != nil {
		return nil, err
	}
	p.QRCode = qrURI
	s.store.Save(p)

	s.rec.IncCounter("payment_created", map[string]string{"token": token.Symbol})
	s.rec.ObserveLatency("create_payment", time.Since(start), map[string]string{"token": token.Symbol})
	s.log.Info("payment created", map[string]any{
		"payment_id": p.ID,
		"token":      token.Symbol,
		"amount":     p.Amount.String(),
		"expires_at": p.ExpiresAt,
	})
	return p, nil
}

// GetPayment returns the payment with the given id. A pending payment
// whose window has closed reads as expired; the stored record is left
// for the sweeper so the read path stays write-free.
func (s *Service) GetPayment(id string) (*types.Payment, error) {
	p, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	if p.Status == types.StatusPending && p.ExpiredAt(s.nowFn()) {
		p.Status = types.StatusExpired
	}
	return p, nil
}

// ListPayments returns all payments, newest first, with the same lazy
// expiry view as GetPayment.
func (s *Service) ListPayments() []*types.Payment {
	now := s.nowFn()
	list := s.store.List()
	for _, p := range list {
		if p.Status == types.StatusPending && p.ExpiredAt(now) {
			p.Status = types.StatusExpired
		}
	}
	return list
}

// Stats summarizes stored payments by status as of now. Overdue
// pending records count as expired even before a sweep collects them.
func (s *Service) Stats() types.StoreStats {
	return s.store.Stats(s.nowFn())
}

// Metadata returns the label and icon a wallet shows before requesting
// the transaction.
func (s *Service) Metadata(id string) (*types.TransactionMetadata, error) {
	p, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	return &types.TransactionMetadata{Label: p.Label, Icon: s.iconURL}, nil
}

// BuildTransaction composes the unsigned settlement transaction for the
// payment, paid and signed by account. Requests against an expired
// payment persist the expiry and fail; a completed payment can still be
// composed for, since serving a transaction settles nothing by itself.
func (s *Service) BuildTransaction(ctx context.Context, id string, req *types.BuildTransactionRequest) (*types.TransactionBundle, error) {
	start := time.Now()
	if req == nil {
		return nil, types.NewPaymentError(types.ErrCodeInvalidRequest, "request is required", nil)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}
	payer, err := utils.ValidateAddress(req.Account)
	if err != nil {
		return nil, err
	}

	p, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	if p.Status == types.StatusExpired {
		return nil, types.Errorf(types.ErrCodePaymentExpired, "payment %s expired at %s", id, p.ExpiresAt.Format(time.RFC3339))
	}
	if p.Status == types.StatusPending && p.ExpiredAt(s.nowFn()) {
		if _, err := s.store.Expire(id); err != nil {
			return nil, err
		}
		return nil, types.Errorf(types.ErrCodePaymentExpired, "payment %s expired at %s", id, p.ExpiresAt.Format(time.RFC3339))
	}

	legs, err := s.composeLegs(p)
	if err != nil {
		return nil, err
	}
	tx, err := s.composer.Compose(ctx, payer, legs)
	if err != nil {
		return nil, err
	}

	s.rec.ObserveLatency("build_transaction", time.Since(start), map[string]string{"token": p.Token})
	s.log.Debug("transaction served", map[string]any{
		"payment_id": id,
		"payer":      payer.String(),
	})
	return &types.TransactionBundle{Transaction: tx, Message: p.Message}, nil
}

// VerifyPayment checks a settlement signature for the payment and
// persists the resulting transition.
func (s *Service) VerifyPayment(ctx context.Context, id string, req *types.VerifyPaymentRequest) (*types.VerificationResult, error) {
	start := time.Now()
	if req == nil {
		return nil, types.NewPaymentError(types.ErrCodeInvalidRequest, "request is required", nil)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}

	p, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	legs, err := s.expectedLegs(p)
	if err != nil {
		return nil, err
	}

	res, err := s.verifier.Verify(ctx, id, req.Signature, legs)
	if err != nil {
		return nil, err
	}
	if res.Verified && res.Details == verification.ReasonTransfersMatched {
		s.rec.IncCounter("payment_completed", map[string]string{"token": p.Token})
	}
	s.rec.ObserveLatency("verify_payment", time.Since(start), map[string]string{"token": p.Token})
	return res, nil
}

// SweepExpired removes every payment whose window has closed,
// completed ones included, reclaiming store memory. Reports how many
// records were dropped.
func (s *Service) SweepExpired() int {
	n := s.store.SweepExpired(s.nowFn())
	if n > 0 {
		s.rec.AddCounter("payments_swept", float64(n), nil)
		s.log.Info("swept expired payments", map[string]any{"count": n})
	}
	return n
}

// RunSweeper sweeps overdue payments every interval until ctx ends.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.SweepExpired()
		}
	}
}

// PaymentURL is the wallet-protocol URL encoded into the QR code.
func (s *Service) PaymentURL(id string) string {
	return "solana:" + s.baseURL + "/api/payment/" + id + "/transaction"
}

// Endpoints lists the configured RPC endpoints, primary first. Nil
// when the service was wired with custom sources.
func (s *Service) Endpoints() []string {
	if s.gateway == nil {
		return nil
	}
	return s.gateway.Endpoints()
}

func (s *Service) defaultMessage(p *types.Payment, token tokens.Token) string {
	if s.fee.Amount.Sign() > 0 {
		return fmt.Sprintf("%s %s + %s %s fee", p.Amount, token.Symbol, s.fee.Amount, s.feeToken.Symbol)
	}
	return fmt.Sprintf("%s %s", p.Amount, token.Symbol)
}

// composeLegs builds the transfer legs in minor units for the composer.
// The fee leg reads the values frozen on the record at creation, not
// the live fee configuration.
func (s *Service) composeLegs(p *types.Payment) ([]compose.Leg, error) {
	token, err := s.registry.Resolve(p.Token)
	if err != nil {
		return nil, err
	}
	recipient, err := utils.ValidateAddress(p.Recipient)
	if err != nil {
		return nil, err
	}
	amount, err := token.MinorUnits(p.Amount)
	if err != nil {
		return nil, err
	}
	legs := []compose.Leg{{Recipient: recipient, Token: token, Amount: amount}}
	if p.FeeAmount.Sign() > 0 {
		feeToken, feeKey, err := s.feeLeg(p)
		if err != nil {
			return nil, err
		}
		feeAmount, err := feeToken.MinorUnits(p.FeeAmount)
		if err != nil {
			return nil, err
		}
		legs = append(legs, compose.Leg{Recipient: feeKey, Token: feeToken, Amount: feeAmount})
	}
	return legs, nil
}

// expectedLegs builds the same legs in display units for the verifier.
func (s *Service) expectedLegs(p *types.Payment) ([]verification.ExpectedLeg, error) {
	token, err := s.registry.Resolve(p.Token)
	if err != nil {
		return nil, err
	}
	recipient, err := utils.ValidateAddress(p.Recipient)
	if err != nil {
		return nil, err
	}
	legs := []verification.ExpectedLeg{{Recipient: recipient, Token: token, Amount: p.Amount, Role: "main transfer"}}
	if p.FeeAmount.Sign() > 0 {
		feeToken, feeKey, err := s.feeLeg(p)
		if err != nil {
			return nil, err
		}
		legs = append(legs, verification.ExpectedLeg{Recipient: feeKey, Token: feeToken, Amount: p.FeeAmount, Role: "fee transfer"})
	}
	return legs, nil
}

// feeLeg resolves the token and wallet of the fee leg frozen on p.
func (s *Service) feeLeg(p *types.Payment) (tokens.Token, solana.PublicKey, error) {
	feeToken, err := s.registry.Resolve(p.FeeToken)
	if err != nil {
		return tokens.Token{}, solana.PublicKey{}, err
	}
	feeKey, err := utils.ValidateAddress(p.FeeRecipient)
	if err != nil {
		return tokens.Token{}, solana.PublicKey{}, err
	}
	return feeToken, feeKey, nil
}
