// Package clients wraps Solana JSON-RPC access behind a gateway that
// walks a ranked endpoint list with per-attempt timeouts.
package clients

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/cryptonow/paygate/logger"
	"github.com/cryptonow/paygate/types"
)

// FallbackPolicy controls how the gateway retries across its endpoints.
type FallbackPolicy struct {
	// AttemptsPerEndpoint is how many times each endpoint is tried
	// before moving to the next one.
	AttemptsPerEndpoint int
	// AttemptTimeout bounds a single RPC call.
	AttemptTimeout time.Duration
	// RetryDelay is the pause between consecutive attempts.
	RetryDelay time.Duration
}

func DefaultFallbackPolicy() FallbackPolicy {
	return FallbackPolicy{
		AttemptsPerEndpoint: 2,
		AttemptTimeout:      5 * time.Second,
		RetryDelay:          time.Second,
	}
}

// rpcNode is the slice of the RPC client surface the gateway uses.
// *rpc.Client satisfies it.
type rpcNode interface {
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	GetTransaction(ctx context.Context, signature solana.Signature, opts *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error)
}

type endpointNode struct {
	url  string
	node rpcNode
}

// Gateway talks to one or more Solana RPC endpoints, in order, falling
// back to the next endpoint when the current one keeps failing.
type Gateway struct {
	nodes  []endpointNode
	policy FallbackPolicy
	log    logger.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

type Option func(*Gateway)

func WithFallbackPolicy(p FallbackPolicy) Option {
	return func(g *Gateway) { g.policy = p }
}

func WithLogger(l logger.Logger) Option {
	return func(g *Gateway) { g.log = l }
}

// NewGateway builds a gateway over the given RPC endpoints. The first
// endpoint is the primary; the rest are fallbacks in order.
func NewGateway(endpoints []string, opts ...Option) (*Gateway, error) {
	if len(endpoints) == 0 {
		return nil, types.NewPaymentError(types.ErrCodeConfigInvalid, "at least one RPC endpoint is required", nil)
	}
	g := &Gateway{
		policy: DefaultFallbackPolicy(),
		log:    logger.NoopLogger{},
		sleep:  sleepCtx,
	}
	for _, ep := range endpoints {
		g.nodes = append(g.nodes, endpointNode{url: ep, node: rpc.New(ep)})
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.policy.AttemptsPerEndpoint < 1 {
		g.policy.AttemptsPerEndpoint = 1
	}
	return g, nil
}

// Endpoints lists the configured endpoint URLs, primary first.
func (g *Gateway) Endpoints() []string {
	out := make([]string, len(g.nodes))
	for i, ep := range g.nodes {
		out[i] = ep.url
	}
	return out
}

// LatestBlockhash fetches a recent blockhash from the first endpoint
// that answers, together with its last valid block height.
func (g *Gateway) LatestBlockhash(ctx context.Context) (solana.Hash, uint64, error) {
	type blockhash struct {
		hash   solana.Hash
		height uint64
	}
	out, err := tryEndpoints(ctx, g, g.nodes, "latest_blockhash", func(ctx context.Context, n rpcNode) (blockhash, error) {
		res, err := n.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
		if err != nil {
			return blockhash{}, err
		}
		if res == nil || res.Value == nil {
			return blockhash{}, fmt.Errorf("empty blockhash response")
		}
		return blockhash{hash: res.Value.Blockhash, height: res.Value.LastValidBlockHeight}, nil
	})
	if err != nil {
		return solana.Hash{}, 0, err
	}
	return out.hash, out.height, nil
}

// FetchTransaction loads a confirmed transaction from the primary
// endpoint. A missing transaction is a definitive answer and is not
// retried; transient failures follow the fallback policy on the
// primary alone so that all settlement reads come from one node.
func (g *Gateway) FetchTransaction(ctx context.Context, sig solana.Signature) (*ConfirmedTransaction, error) {
	maxVersion := uint64(0)
	return tryEndpoints(ctx, g, g.nodes[:1], "fetch_transaction", func(ctx context.Context, n rpcNode) (*ConfirmedTransaction, error) {
		res, err := n.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
			Encoding:                       solana.EncodingBase64,
			Commitment:                     rpc.CommitmentConfirmed,
			MaxSupportedTransactionVersion: &maxVersion,
		})
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, definitive(types.Errorf(types.ErrCodeTxNotFound, "transaction %s not found", sig))
		}
		if err != nil {
			return nil, err
		}
		if res == nil {
			return nil, definitive(types.Errorf(types.ErrCodeTxNotFound, "transaction %s not found", sig))
		}
		ct, err := NewConfirmedTransaction(sig, res)
		if err != nil {
			return nil, definitive(types.Errorf(types.ErrCodeSerializationFailed, "decode transaction %s: %v", sig, err))
		}
		return ct, nil
	})
}

// noRetryError marks a definitive answer that must stop the retry walk.
type noRetryError struct {
	err error
}

func (e *noRetryError) Error() string { return e.err.Error() }
func (e *noRetryError) Unwrap() error { return e.err }

func definitive(err error) error {
	return &noRetryError{err: err}
}

// tryEndpoints runs call against each node in order, retrying per the
// fallback policy. Definitive errors and parent context expiry end the
// walk immediately; exhausting every node yields NETWORK_UNAVAILABLE.
func tryEndpoints[T any](ctx context.Context, g *Gateway, nodes []endpointNode, op string, call func(context.Context, rpcNode) (T, error)) (T, error) {
	var zero T
	var lastErr error
	for i, ep := range nodes {
		for attempt := 1; attempt <= g.policy.AttemptsPerEndpoint; attempt++ {
			if err := ctx.Err(); err != nil {
				return zero, err
			}
			attemptCtx := ctx
			cancel := context.CancelFunc(func() {})
			if g.policy.AttemptTimeout > 0 {
				attemptCtx, cancel = context.WithTimeout(ctx, g.policy.AttemptTimeout)
			}
			out, err := call(attemptCtx, ep.node)
			cancel()
			if err == nil {
				return out, nil
			}
			var nr *noRetryError
			if errors.As(err, &nr) {
				return zero, nr.err
			}
			lastErr = err
			g.log.Debug("rpc attempt failed", map[string]any{
				"operation": op,
				"endpoint":  ep.url,
				"attempt":   attempt,
				"error":     err.Error(),
			})
			if err := ctx.Err(); err != nil {
				return zero, err
			}
			if i == len(nodes)-1 && attempt == g.policy.AttemptsPerEndpoint {
				break
			}
			if err := g.sleep(ctx, g.policy.RetryDelay); err != nil {
				return zero, err
			}
		}
		g.log.Warn("rpc endpoint exhausted", map[string]any{
			"operation": op,
			"endpoint":  ep.url,
		})
	}
	msg := "all endpoints failed"
	if lastErr != nil {
		msg = lastErr.Error()
	}
	return zero, types.NewPaymentError(types.ErrCodeNetworkUnavailable, msg, map[string]any{
		"operation": op,
		"endpoints": len(nodes),
	})
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
