// Package store keeps payment records in memory, safe for concurrent use.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/cryptonow/paygate/types"
)

type Store struct {
	mu       sync.RWMutex
	payments map[string]*types.Payment
}

func New() *Store {
	return &Store{payments: make(map[string]*types.Payment)}
}

// Save inserts or replaces a payment record. The store keeps its own
// copy, so later mutation of p does not leak in.
func (s *Store) Save(p *types.Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[p.ID] = p.Clone()
}

// Get returns a copy of the payment with the given id.
func (s *Store) Get(id string) (*types.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payments[id]
	if !ok {
		return nil, types.Errorf(types.ErrCodePaymentNotFound, "payment %s not found", id)
	}
	return p.Clone(), nil
}

// List returns all payments, newest first.
func (s *Store) List() []*types.Payment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.Payment, 0, len(s.payments))
	for _, p := range s.payments {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Complete marks a pending payment completed, recording the settlement
// signature and verification time. Completing an already completed
// payment is a no-op that returns the stored record.
func (s *Store) Complete(id, signature string, at time.Time) (*types.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return nil, types.Errorf(types.ErrCodePaymentNotFound, "payment %s not found", id)
	}
	if p.Status == types.StatusCompleted {
		return p.Clone(), nil
	}
	if !p.Status.CanTransition(types.StatusCompleted) {
		return nil, types.Errorf(types.ErrCodePaymentExpired, "payment %s is %s", id, p.Status)
	}
	p.Status = types.StatusCompleted
	p.Signature = signature
	t := at
	p.VerifiedAt = &t
	return p.Clone(), nil
}

// Expire marks a pending payment expired. Expiring a payment that is
// already terminal is a no-op that returns the stored record.
func (s *Store) Expire(id string) (*types.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return nil, types.Errorf(types.ErrCodePaymentNotFound, "payment %s not found", id)
	}
	if p.Status.Terminal() {
		return p.Clone(), nil
	}
	p.Status = types.StatusExpired
	return p.Clone(), nil
}

// Delete removes the payment with the given id and reports whether it
// was present.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.payments[id]
	delete(s.payments, id)
	return ok
}

// SweepExpired removes every payment whose window closed before now,
// regardless of status, and reports how many it dropped. Records whose
// window is still open are untouched even when already marked expired.
func (s *Store) SweepExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, p := range s.payments {
		if p.ExpiredAt(now) {
			delete(s.payments, id)
			n++
		}
	}
	return n
}

// Stats counts stored payments as of now. A pending record whose
// window already closed counts as expired, not pending, even before a
// sweep collects it.
func (s *Store) Stats(now time.Time) types.StoreStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := types.StoreStats{Total: len(s.payments)}
	for _, p := range s.payments {
		switch {
		case p.Status == types.StatusCompleted:
			st.Completed++
		case p.Status == types.StatusExpired || p.ExpiredAt(now):
			st.Expired++
		case p.Status == types.StatusPending:
			st.Pending++
		}
	}
	return st
}
