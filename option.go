package paygate

import (
	"time"

	"github.com/cryptonow/paygate/compose"
	"github.com/cryptonow/paygate/logger"
	"github.com/cryptonow/paygate/metrics"
	"github.com/cryptonow/paygate/store"
	"github.com/cryptonow/paygate/tokens"
	"github.com/cryptonow/paygate/types"
	"github.com/cryptonow/paygate/verification"
)

type Option func(*Service)

func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		s.log = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(s *Service) {
		s.rec = r
	}
}

func WithStore(st *store.Store) Option {
	return func(s *Service) {
		s.store = st
	}
}

func WithRegistry(r *tokens.Registry) Option {
	return func(s *Service) {
		s.registry = r
	}
}

// WithFee overrides the fee leg attached to every payment. A zero
// amount disables the fee leg entirely.
func WithFee(fee types.FeeConfig) Option {
	return func(s *Service) {
		s.fee = fee
	}
}

func WithTTL(d time.Duration) Option {
	return func(s *Service) {
		s.ttl = d
	}
}

func WithIconURL(url string) Option {
	return func(s *Service) {
		s.iconURL = url
	}
}

// withSources swaps the chain access out, for tests.
func withSources(bh compose.BlockhashSource, txs verification.TransactionSource) Option {
	return func(s *Service) {
		s.blockhash = bh
		s.txsource = txs
	}
}
