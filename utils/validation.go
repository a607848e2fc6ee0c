package utils

import (
	"regexp"

	"github.com/gagliardetto/solana-go"

	"github.com/cryptonow/paygate/types"
)

// Base58 alphabet: 123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz
var base58Re = regexp.MustCompile("^[1-9A-HJ-NP-Za-km-z]+$")

// ValidateAddress checks a base58 Solana address and returns its key.
func ValidateAddress(address string) (solana.PublicKey, error) {
	if address == "" {
		return solana.PublicKey{}, types.NewPaymentError(types.ErrCodeInvalidAddress, "address cannot be empty", nil)
	}
	if len(address) < 32 || len(address) > 44 || !base58Re.MatchString(address) {
		return solana.PublicKey{}, types.Errorf(types.ErrCodeInvalidAddress, "address %q is not valid base58", address)
	}
	pub, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return solana.PublicKey{}, types.Errorf(types.ErrCodeInvalidAddress, "address %q: %v", address, err)
	}
	return pub, nil
}

// ValidateSignature checks a base58 transaction signature and returns it.
// Signatures encode 64 bytes, which lands at 87 or 88 base58 characters.
func ValidateSignature(signature string) (solana.Signature, error) {
	if signature == "" {
		return solana.Signature{}, types.NewPaymentError(types.ErrCodeInvalidRequest, "signature cannot be empty", nil)
	}
	if len(signature) < 80 || len(signature) > 90 || !base58Re.MatchString(signature) {
		return solana.Signature{}, types.Errorf(types.ErrCodeInvalidRequest, "signature %q is not a valid transaction signature", signature)
	}
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return solana.Signature{}, types.Errorf(types.ErrCodeInvalidRequest, "signature %q: %v", signature, err)
	}
	return sig, nil
}
