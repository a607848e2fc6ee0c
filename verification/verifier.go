// Package verification settles payments by checking a claimed signature
// against the balance movements the transaction caused on chain.
package verification

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/cryptonow/paygate/clients"
	"github.com/cryptonow/paygate/logger"
	"github.com/cryptonow/paygate/store"
	"github.com/cryptonow/paygate/tokens"
	"github.com/cryptonow/paygate/types"
	"github.com/cryptonow/paygate/utils"
)

// TransactionSource loads settled transactions by signature.
// *clients.Gateway satisfies it.
type TransactionSource interface {
	FetchTransaction(ctx context.Context, sig solana.Signature) (*clients.ConfirmedTransaction, error)
}

// ExpectedLeg is one transfer, in display units, that the settlement
// transaction must have performed. Role names the leg in refusal
// details ("main transfer", "fee transfer").
type ExpectedLeg struct {
	Recipient solana.PublicKey
	Token     tokens.Token
	Amount    decimal.Decimal
	Role      string
}

// Tolerance is the allowed gap between an expected transfer and the
// observed balance delta, in display units.
var Tolerance = decimal.New(1, -6)

// Verifier checks settlement signatures and persists the resulting
// status transitions.
type Verifier struct {
	source TransactionSource
	store  *store.Store
	log    logger.Logger
	locks  *lockTable
	nowFn  func() time.Time
}

func NewVerifier(source TransactionSource, st *store.Store, log logger.Logger) *Verifier {
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &Verifier{
		source: source,
		store:  st,
		log:    log,
		locks:  newLockTable(),
		nowFn:  time.Now,
	}
}

// Verify checks that the transaction behind signature performed every
// expected leg for the stored payment. A matching transaction completes
// the payment; checking a completed payment short-circuits without
// touching the chain. Transport failures surface as errors, every
// domain outcome comes back as a result.
func (v *Verifier) Verify(ctx context.Context, paymentID, signature string, legs []ExpectedLeg) (*types.VerificationResult, error) {
	if len(legs) == 0 {
		return nil, types.NewPaymentError(types.ErrCodeInvalidRequest, "no expected legs to verify against", nil)
	}

	l := v.locks.acquire(paymentID)
	defer v.locks.release(paymentID, l)
	log := logger.With(v.log, map[string]any{"payment_id": paymentID})

	p, err := v.store.Get(paymentID)
	if err != nil {
		return nil, err
	}

	if p.Status == types.StatusCompleted {
		return &types.VerificationResult{
			Verified:   true,
			Status:     types.StatusCompleted,
			Signature:  p.Signature,
			VerifiedAt: p.VerifiedAt,
			Details:    ReasonAlreadyCompleted,
		}, nil
	}
	if p.Status == types.StatusExpired {
		return refusal(types.StatusExpired, ReasonPaymentExpired), nil
	}
	if p.ExpiredAt(v.nowFn()) {
		if _, err := v.store.Expire(paymentID); err != nil {
			return nil, err
		}
		return refusal(types.StatusExpired, ReasonPaymentExpired), nil
	}

	sig, err := utils.ValidateSignature(signature)
	if err != nil {
		return refusal(p.Status, ReasonInvalidSignature), nil
	}

	ct, err := v.source.FetchTransaction(ctx, sig)
	if err != nil {
		if types.IsCode(err, types.ErrCodeTxNotFound) {
			return refusal(p.Status, ReasonTxNotFound), nil
		}
		return nil, err
	}
	if ct.Failed {
		reason := ReasonTxFailedOnChain
		if ct.FailureDetail != "" {
			reason = reason + ": " + ct.FailureDetail
		}
		return refusal(p.Status, reason), nil
	}

	if reason := v.matchTransfers(ct, legs); reason != "" {
		log.Debug("settlement mismatch", map[string]any{
			"signature": sig.String(),
			"reason":    reason,
		})
		return refusal(p.Status, reason), nil
	}

	done, err := v.store.Complete(paymentID, sig.String(), v.nowFn())
	if err != nil {
		if types.IsCode(err, types.ErrCodePaymentExpired) {
			return refusal(types.StatusExpired, ReasonPaymentExpired), nil
		}
		return nil, err
	}

	log.Info("payment completed", map[string]any{
		"signature": done.Signature,
		"token":     p.Token,
	})
	return &types.VerificationResult{
		Verified:   true,
		Status:     types.StatusCompleted,
		Signature:  done.Signature,
		VerifiedAt: done.VerifiedAt,
		Details:    ReasonTransfersMatched,
	}, nil
}

// matchTransfers compares expected legs against observed balance
// deltas. Legs sharing a recipient and asset are checked as one sum,
// since balance deltas cannot tell such transfers apart. Returns the
// refusal details naming the failing leg, or "" when everything
// matches.
func (v *Verifier) matchTransfers(ct *clients.ConfirmedTransaction, legs []ExpectedLeg) string {
	type bucket struct {
		recipient solana.PublicKey
		token     tokens.Token
		total     decimal.Decimal
		roles     []string
	}
	buckets := make(map[string]*bucket)
	order := make([]string, 0, len(legs))
	for _, leg := range legs {
		key := leg.Recipient.String() + "/" + leg.Token.AssetID()
		b, ok := buckets[key]
		if !ok {
			b = &bucket{recipient: leg.Recipient, token: leg.Token}
			buckets[key] = b
			order = append(order, key)
		}
		b.total = b.total.Add(leg.Amount)
		role := leg.Role
		if role == "" {
			role = "transfer"
		}
		b.roles = append(b.roles, role)
	}

	for _, key := range order {
		b := buckets[key]
		role := strings.Join(b.roles, " + ")
		var delta *big.Int
		if b.token.Native() {
			if !ct.TouchesAccount(b.recipient) {
				return ReasonRecipientMissing + ": " + role
			}
			delta = big.NewInt(ct.LamportDelta(b.recipient))
		} else {
			if !ct.HoldsTokenAccount(b.recipient, b.token.Mint) {
				return ReasonHoldingMissing + ": " + role
			}
			delta = ct.TokenDelta(b.recipient, b.token.Mint)
		}

		expected := b.total.Shift(int32(b.token.Decimals)).Truncate(0).BigInt()
		tol := Tolerance.Shift(int32(b.token.Decimals)).Truncate(0).BigInt()
		diff := new(big.Int).Sub(delta, expected)
		if diff.Abs(diff).Cmp(tol) > 0 {
			observed := decimal.NewFromBigInt(delta, -int32(b.token.Decimals))
			return fmt.Sprintf("%s: %s expected %s %s, observed %s",
				ReasonAmountMismatch, role, b.total, b.token.Symbol, observed)
		}
	}
	return ""
}

func refusal(status types.PaymentStatus, details string) *types.VerificationResult {
	return &types.VerificationResult{
		Verified: false,
		Status:   status,
		Details:  details,
	}
}
