package clients

import (
	"fmt"
	"math/big"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// ConfirmedTransaction is a settled transaction together with the
// balance movements it caused.
type ConfirmedTransaction struct {
	Signature solana.Signature
	Slot      uint64
	BlockTime *time.Time
	// Failed reports that the transaction landed on chain but its
	// execution errored, so no transfers took effect. FailureDetail
	// carries the on-chain error as reported by the node.
	Failed        bool
	FailureDetail string

	tx   *solana.Transaction
	meta *rpc.TransactionMeta
}

// NewConfirmedTransaction wraps a raw RPC transaction result.
func NewConfirmedTransaction(sig solana.Signature, res *rpc.GetTransactionResult) (*ConfirmedTransaction, error) {
	if res.Transaction == nil {
		return nil, fmt.Errorf("transaction envelope missing")
	}
	tx, err := res.Transaction.GetTransaction()
	if err != nil {
		return nil, err
	}
	ct := &ConfirmedTransaction{
		Signature: sig,
		Slot:      res.Slot,
		tx:        tx,
		meta:      res.Meta,
	}
	if res.BlockTime != nil {
		t := res.BlockTime.Time()
		ct.BlockTime = &t
	}
	if res.Meta != nil && res.Meta.Err != nil {
		ct.Failed = true
		ct.FailureDetail = fmt.Sprint(res.Meta.Err)
	}
	return ct, nil
}

// LamportDelta returns the lamport balance change of account across the
// transaction, zero when the account does not appear in it.
func (c *ConfirmedTransaction) LamportDelta(account solana.PublicKey) int64 {
	if c.meta == nil || c.tx == nil {
		return 0
	}
	for i, key := range c.tx.Message.AccountKeys {
		if !key.Equals(account) {
			continue
		}
		if i < len(c.meta.PreBalances) && i < len(c.meta.PostBalances) {
			return int64(c.meta.PostBalances[i]) - int64(c.meta.PreBalances[i])
		}
	}
	return 0
}

// TokenDelta returns the minor-unit balance change of the given mint
// across all of owner's token accounts touched by the transaction.
func (c *ConfirmedTransaction) TokenDelta(owner, mint solana.PublicKey) *big.Int {
	delta := new(big.Int)
	if c.meta == nil {
		return delta
	}
	sum := func(balances []rpc.TokenBalance, negate bool) {
		for _, b := range balances {
			if b.Owner == nil || !b.Owner.Equals(owner) || !b.Mint.Equals(mint) {
				continue
			}
			if b.UiTokenAmount == nil {
				continue
			}
			amt, ok := new(big.Int).SetString(b.UiTokenAmount.Amount, 10)
			if !ok {
				continue
			}
			if negate {
				delta.Sub(delta, amt)
			} else {
				delta.Add(delta, amt)
			}
		}
	}
	sum(c.meta.PostTokenBalances, false)
	sum(c.meta.PreTokenBalances, true)
	return delta
}

// HoldsTokenAccount reports whether the transaction touched a token
// account of the given mint owned by owner.
func (c *ConfirmedTransaction) HoldsTokenAccount(owner, mint solana.PublicKey) bool {
	if c.meta == nil {
		return false
	}
	for _, balances := range [][]rpc.TokenBalance{c.meta.PreTokenBalances, c.meta.PostTokenBalances} {
		for _, b := range balances {
			if b.Owner != nil && b.Owner.Equals(owner) && b.Mint.Equals(mint) {
				return true
			}
		}
	}
	return false
}

// TouchesAccount reports whether account appears in the transaction's
// account list at all.
func (c *ConfirmedTransaction) TouchesAccount(account solana.PublicKey) bool {
	if c.tx == nil {
		return false
	}
	for _, key := range c.tx.Message.AccountKeys {
		if key.Equals(account) {
			return true
		}
	}
	return false
}
