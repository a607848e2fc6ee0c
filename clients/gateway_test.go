package clients

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptonow/paygate/logger"
	"github.com/cryptonow/paygate/types"
)

type fakeNode struct {
	name      string
	calls     *[]string
	blockhash func() (*rpc.GetLatestBlockhashResult, error)
	tx        func() (*rpc.GetTransactionResult, error)
}

func (f *fakeNode) GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	*f.calls = append(*f.calls, f.name)
	return f.blockhash()
}

func (f *fakeNode) GetTransaction(ctx context.Context, sig solana.Signature, opts *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error) {
	*f.calls = append(*f.calls, f.name)
	return f.tx()
}

func testGateway(nodes []endpointNode, sleeps *int) *Gateway {
	return &Gateway{
		nodes: nodes,
		policy: FallbackPolicy{
			AttemptsPerEndpoint: 2,
			AttemptTimeout:      time.Second,
			RetryDelay:          time.Millisecond,
		},
		log: logger.NoopLogger{},
		sleep: func(context.Context, time.Duration) error {
			if sleeps != nil {
				*sleeps++
			}
			return nil
		},
	}
}

func failingNode(name string, calls *[]string) endpointNode {
	return endpointNode{url: name, node: &fakeNode{
		name:      name,
		calls:     calls,
		blockhash: func() (*rpc.GetLatestBlockhashResult, error) { return nil, errors.New("boom-" + name) },
		tx:        func() (*rpc.GetTransactionResult, error) { return nil, errors.New("boom-" + name) },
	}}
}

func TestLatestBlockhashFallbackOrder(t *testing.T) {
	var calls []string
	var sleeps int
	want := solana.HashFromBytes([]byte("00000000000000000000000000000001"))

	nodes := []endpointNode{
		failingNode("a", &calls),
		failingNode("b", &calls),
		{url: "c", node: &fakeNode{name: "c", calls: &calls, blockhash: func() (*rpc.GetLatestBlockhashResult, error) {
			return &rpc.GetLatestBlockhashResult{Value: &rpc.LatestBlockhashResult{
				Blockhash:            want,
				LastValidBlockHeight: 900,
			}}, nil
		}}},
	}

	g := testGateway(nodes, &sleeps)
	hash, height, err := g.LatestBlockhash(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, hash)
	assert.Equal(t, uint64(900), height)
	assert.Equal(t, []string{"a", "a", "b", "b", "c"}, calls)
	assert.Equal(t, 4, sleeps, "one pause after each failed attempt")
}

func TestLatestBlockhashAllEndpointsExhausted(t *testing.T) {
	var calls []string
	nodes := []endpointNode{failingNode("a", &calls), failingNode("b", &calls), failingNode("c", &calls)}

	g := testGateway(nodes, nil)
	_, _, err := g.LatestBlockhash(context.Background())
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeNetworkUnavailable))
	assert.Contains(t, err.Error(), "boom-c")
	assert.Len(t, calls, 6)
}

func TestFetchTransactionUsesPrimaryOnly(t *testing.T) {
	var calls []string
	nodes := []endpointNode{failingNode("primary", &calls), failingNode("fallback", &calls)}

	g := testGateway(nodes, nil)
	_, err := g.FetchTransaction(context.Background(), solana.Signature{})
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeNetworkUnavailable))
	assert.Equal(t, []string{"primary", "primary"}, calls)
}

func TestFetchTransactionNotFoundStopsRetrying(t *testing.T) {
	var calls []string
	nodes := []endpointNode{{url: "primary", node: &fakeNode{name: "primary", calls: &calls, tx: func() (*rpc.GetTransactionResult, error) {
		return nil, rpc.ErrNotFound
	}}}}

	g := testGateway(nodes, nil)
	_, err := g.FetchTransaction(context.Background(), solana.Signature{})
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeTxNotFound))
	assert.Len(t, calls, 1, "a missing transaction is definitive")
}

func TestFetchTransactionDecodesResult(t *testing.T) {
	from := solana.NewWallet().PublicKey()
	to := solana.NewWallet().PublicKey()
	tx := testTransfer(t, from, to, 1000)

	blockTime := solana.UnixTimeSeconds(1_700_000_000)
	res := &rpc.GetTransactionResult{
		Slot:        42,
		BlockTime:   &blockTime,
		Transaction: txEnvelope(t, tx),
		Meta: &rpc.TransactionMeta{
			PreBalances:  []uint64{5000, 0, 1},
			PostBalances: []uint64{3000, 1000, 1},
		},
	}

	var calls []string
	nodes := []endpointNode{{url: "primary", node: &fakeNode{name: "primary", calls: &calls, tx: func() (*rpc.GetTransactionResult, error) {
		return res, nil
	}}}}

	g := testGateway(nodes, nil)
	ct, err := g.FetchTransaction(context.Background(), solana.Signature{})
	require.NoError(t, err)
	assert.False(t, ct.Failed)
	assert.Equal(t, uint64(42), ct.Slot)
	require.NotNil(t, ct.BlockTime)
	assert.Equal(t, blockTime.Time(), *ct.BlockTime)
	assert.Equal(t, int64(1000), ct.LamportDelta(to))
	assert.Equal(t, int64(-2000), ct.LamportDelta(from))
	assert.True(t, ct.TouchesAccount(from))
	assert.False(t, ct.TouchesAccount(solana.NewWallet().PublicKey()))
}

func TestFetchTransactionFailedOnChain(t *testing.T) {
	from := solana.NewWallet().PublicKey()
	to := solana.NewWallet().PublicKey()
	tx := testTransfer(t, from, to, 1000)

	res := &rpc.GetTransactionResult{
		Transaction: txEnvelope(t, tx),
		Meta: &rpc.TransactionMeta{
			Err: map[string]any{"InstructionError": []any{0.0, "Custom"}},
		},
	}

	var calls []string
	nodes := []endpointNode{{url: "primary", node: &fakeNode{name: "primary", calls: &calls, tx: func() (*rpc.GetTransactionResult, error) {
		return res, nil
	}}}}

	g := testGateway(nodes, nil)
	ct, err := g.FetchTransaction(context.Background(), solana.Signature{})
	require.NoError(t, err)
	assert.True(t, ct.Failed)
	assert.Contains(t, ct.FailureDetail, "InstructionError", "the node's error survives the decode")
	assert.Equal(t, int64(0), ct.LamportDelta(to))
}

func TestGatewayHonorsParentContext(t *testing.T) {
	var calls []string
	nodes := []endpointNode{failingNode("a", &calls)}
	g := testGateway(nodes, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := g.LatestBlockhash(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, calls)

	ctx, cancel = context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	_, _, err = g.LatestBlockhash(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewGatewayRequiresEndpoints(t *testing.T) {
	_, err := NewGateway(nil)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeConfigInvalid))

	g, err := NewGateway([]string{"https://rpc-a.example", "https://rpc-b.example"})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://rpc-a.example", "https://rpc-b.example"}, g.Endpoints())
}

func testTransfer(t *testing.T, from, to solana.PublicKey, lamports uint64) *solana.Transaction {
	t.Helper()
	ix := system.NewTransferInstruction(lamports, from, to).Build()
	tx, err := solana.NewTransaction([]solana.Instruction{ix}, solana.Hash{}, solana.TransactionPayer(from))
	require.NoError(t, err)
	tx.Signatures = make([]solana.Signature, tx.Message.Header.NumRequiredSignatures)
	return tx
}

func txEnvelope(t *testing.T, tx *solana.Transaction) *rpc.TransactionResultEnvelope {
	t.Helper()
	bin, err := tx.MarshalBinary()
	require.NoError(t, err)
	raw, err := json.Marshal([]any{base64.StdEncoding.EncodeToString(bin), "base64"})
	require.NoError(t, err)
	env := new(rpc.TransactionResultEnvelope)
	require.NoError(t, json.Unmarshal(raw, env))
	return env
}
