// Package compose assembles the unsigned settlement transactions that
// payer wallets sign and submit.
package compose

import (
	"context"
	"encoding/base64"
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"

	"github.com/cryptonow/paygate/logger"
	"github.com/cryptonow/paygate/tokens"
	"github.com/cryptonow/paygate/types"
)

// BlockhashSource provides a recent blockhash for new transactions.
// *clients.Gateway satisfies it.
type BlockhashSource interface {
	LatestBlockhash(ctx context.Context) (solana.Hash, uint64, error)
}

// Leg is one transfer the settlement transaction must perform, in the
// leg token's minor units.
type Leg struct {
	Recipient solana.PublicKey
	Token     tokens.Token
	Amount    uint64
}

// DefaultDeadline bounds one whole Compose call, blockhash fetch
// included, independent of the gateway's per-attempt timeouts.
const DefaultDeadline = 15 * time.Second

// Composer builds unsigned multi-leg payment transactions.
type Composer struct {
	source   BlockhashSource
	log      logger.Logger
	deadline time.Duration
}

type Option func(*Composer)

// WithDeadline overrides the overall Compose deadline.
func WithDeadline(d time.Duration) Option {
	return func(c *Composer) {
		if d > 0 {
			c.deadline = d
		}
	}
}

func NewComposer(source BlockhashSource, log logger.Logger, opts ...Option) *Composer {
	if log == nil {
		log = logger.NoopLogger{}
	}
	c := &Composer{source: source, log: log, deadline: DefaultDeadline}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compose builds one atomic transaction moving every leg from payer and
// returns it base64-serialized for a wallet to sign. The payer is the
// fee payer and sole required signer; its signature slot stays zeroed.
// The whole call is bounded by the composer deadline; hitting it maps
// to DEADLINE_EXCEEDED rather than NETWORK_UNAVAILABLE.
func (c *Composer) Compose(ctx context.Context, payer solana.PublicKey, legs []Leg) (string, error) {
	if len(legs) == 0 {
		return "", types.NewPaymentError(types.ErrCodeInvalidRequest, "no transfer legs to compose", nil)
	}
	for _, leg := range legs {
		if leg.Amount == 0 {
			return "", types.Errorf(types.ErrCodeInvalidRequest, "zero-amount %s leg to %s", leg.Token.Symbol, leg.Recipient)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.deadline)
	defer cancel()

	hash, _, err := c.source.LatestBlockhash(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", types.Errorf(types.ErrCodeDeadlineExceeded, "blockhash fetch: %v", err)
		}
		return "", err
	}

	var instrs []solana.Instruction
	prepared := make(map[string]bool)
	for _, leg := range legs {
		if leg.Token.Native() {
			instrs = append(instrs, system.NewTransferInstruction(leg.Amount, payer, leg.Recipient).Build())
			continue
		}

		source, _, err := solana.FindAssociatedTokenAddress(payer, leg.Token.Mint)
		if err != nil {
			return "", types.Errorf(types.ErrCodeSerializationFailed, "derive source token account: %v", err)
		}
		dest, _, err := solana.FindAssociatedTokenAddress(leg.Recipient, leg.Token.Mint)
		if err != nil {
			return "", types.Errorf(types.ErrCodeSerializationFailed, "derive destination token account: %v", err)
		}
		if key := dest.String(); !prepared[key] {
			prepared[key] = true
			instrs = append(instrs, createAssociatedAccountIdempotent(payer, leg.Recipient, leg.Token.Mint, dest))
		}
		instrs = append(instrs, token.NewTransferInstruction(leg.Amount, source, dest, payer, nil).Build())
	}

	tx, err := solana.NewTransaction(instrs, hash, solana.TransactionPayer(payer))
	if err != nil {
		return "", types.Errorf(types.ErrCodeSerializationFailed, "assemble transaction: %v", err)
	}
	// One empty signature slot for the payer's wallet to fill.
	tx.Signatures = make([]solana.Signature, tx.Message.Header.NumRequiredSignatures)

	bin, err := tx.MarshalBinary()
	if err != nil {
		return "", types.Errorf(types.ErrCodeSerializationFailed, "serialize transaction: %v", err)
	}

	c.log.Debug("composed transaction", map[string]any{
		"payer":        payer.String(),
		"legs":         len(legs),
		"instructions": len(instrs),
	})
	return base64.StdEncoding.EncodeToString(bin), nil
}

// createAssociatedAccountIdempotent issues the associated token account
// program's CreateIdempotent instruction so the destination account
// exists by the time the transfer leg runs.
func createAssociatedAccountIdempotent(payer, owner, mint, ata solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(
		solana.SPLAssociatedTokenAccountProgramID,
		solana.AccountMetaSlice{
			solana.Meta(payer).SIGNER().WRITE(),
			solana.Meta(ata).WRITE(),
			solana.Meta(owner),
			solana.Meta(mint),
			solana.Meta(solana.SystemProgramID),
			solana.Meta(solana.TokenProgramID),
		},
		[]byte{1},
	)
}
