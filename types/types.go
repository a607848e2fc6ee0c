package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus represents the lifecycle state of a payment.
type PaymentStatus string

const (
	StatusPending   PaymentStatus = "pending"
	StatusCompleted PaymentStatus = "completed"
	StatusExpired   PaymentStatus = "expired"

	// StatusFailed is part of the model for operator tooling. No gateway
	// operation assigns it: an unsettled signature keeps a payment pending
	// and retriable until the window closes.
	StatusFailed PaymentStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s PaymentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusExpired || s == StatusFailed
}

// CanTransition reports whether moving from s to next is legal. Statuses
// only move forward: pending is the sole non-terminal state.
func (s PaymentStatus) CanTransition(next PaymentStatus) bool {
	if s != StatusPending {
		return false
	}
	return next == StatusCompleted || next == StatusExpired || next == StatusFailed
}

func (s PaymentStatus) String() string {
	return string(s)
}

// Payment is a single payment intent tracked by the gateway. The fee
// fields are frozen from configuration at creation time so the record
// stays self-describing even if the service fee changes later.
type Payment struct {
	ID           string          `json:"id"`
	Recipient    string          `json:"recipient"`
	Amount       decimal.Decimal `json:"amount"`
	Token        string          `json:"token"`
	Label        string          `json:"label,omitempty"`
	Message      string          `json:"message,omitempty"`
	FeeRecipient string          `json:"fee_recipient,omitempty"`
	FeeAmount    decimal.Decimal `json:"fee_amount"`
	FeeToken     string          `json:"fee_token,omitempty"`
	URL          string          `json:"url,omitempty"`
	QRCode       string          `json:"qr_code,omitempty"`
	Status       PaymentStatus   `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	ExpiresAt    time.Time       `json:"expires_at"`
	Signature    string          `json:"signature,omitempty"`
	VerifiedAt   *time.Time      `json:"verified_at,omitempty"`
}

// ExpiredAt reports whether the payment window has closed at the given time.
func (p *Payment) ExpiredAt(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// Clone returns an independent copy of the payment.
func (p *Payment) Clone() *Payment {
	cp := *p
	if p.VerifiedAt != nil {
		t := *p.VerifiedAt
		cp.VerifiedAt = &t
	}
	return &cp
}

// CreatePaymentRequest is the payload for registering a new payment intent.
type CreatePaymentRequest struct {
	Recipient string          `json:"recipient" validate:"required"`
	Amount    decimal.Decimal `json:"amount" validate:"required"`
	Token     string          `json:"token" validate:"required"`
	Label     string          `json:"label,omitempty" validate:"omitempty,max=128"`
	Message   string          `json:"message,omitempty" validate:"omitempty,max=256"`
}

// BuildTransactionRequest is the wallet's transaction request body.
type BuildTransactionRequest struct {
	Account string `json:"account" validate:"required"`
}

// VerifyPaymentRequest asks the gateway to check a settlement signature.
type VerifyPaymentRequest struct {
	Signature string `json:"signature" validate:"required"`
}

// TransactionMetadata is the label/icon pair wallets fetch before asking
// for the transaction itself.
type TransactionMetadata struct {
	Label string `json:"label"`
	Icon  string `json:"icon"`
}

// TransactionBundle is an unsigned, serialized transaction ready for the
// payer's wallet to sign, plus the display message shown alongside it.
type TransactionBundle struct {
	Transaction string `json:"transaction"`
	Message     string `json:"message,omitempty"`
}

// VerificationResult reports the outcome of checking a settlement
// signature against a payment.
type VerificationResult struct {
	Verified   bool          `json:"verified"`
	Status     PaymentStatus `json:"status"`
	Signature  string        `json:"signature,omitempty"`
	VerifiedAt *time.Time    `json:"verified_at,omitempty"`
	Details    string        `json:"details"`
}

// FeeConfig describes the mandatory service-fee leg attached to every
// payment transaction.
type FeeConfig struct {
	Recipient string          `json:"recipient"`
	Token     string          `json:"token"`
	Amount    decimal.Decimal `json:"amount"`
}

// StoreStats summarizes the stored records by status.
type StoreStats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Completed int `json:"completed"`
	Expired   int `json:"expired"`
}
