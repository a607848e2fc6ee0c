package verification

// Outcome details attached to verification results. Chain-state
// refusals carry the reason as a prefix followed by which leg failed.
const (
	// ---- settled ----
	ReasonAlreadyCompleted = "already_completed"
	ReasonTransfersMatched = "transfers_matched"

	// ---- refused before touching the chain ----
	ReasonPaymentExpired   = "payment_expired"
	ReasonInvalidSignature = "invalid_signature"

	// ---- chain state ----
	ReasonTxNotFound       = "transaction_not_found"
	ReasonTxFailedOnChain  = "transaction_failed_on_chain"
	ReasonRecipientMissing = "recipient_account_missing"
	ReasonHoldingMissing   = "holding_account_missing"
	ReasonAmountMismatch   = "amount_mismatch"
)
