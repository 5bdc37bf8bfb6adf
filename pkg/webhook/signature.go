// Package webhook receives inbound webhook requests and turns them into
// workflow executions: signature validation, header and payload filtering,
// and trigger data mapping.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// SignatureHeader carries the sender's HMAC signature of the raw body.
const SignatureHeader = "X-Webhook-Signature"

const signaturePrefix = "sha256="

var (
	ErrMissingSignature = errors.New("missing webhook signature")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// Sign computes the signature header value for a payload, the same value
// ValidateSignature expects.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)

	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// ValidateSignature checks an inbound signature header against the HMAC of
// the raw payload bytes. The comparison is constant time. Validation runs
// over the bytes as received, before any JSON decoding, so re-encoding
// differences cannot break it.
func ValidateSignature(secret string, payload []byte, header string) error {
	if header == "" {
		return ErrMissingSignature
	}

	if !strings.HasPrefix(header, signaturePrefix) {
		return ErrInvalidSignature
	}

	if !hmac.Equal([]byte(Sign(secret, payload)), []byte(header)) {
		return ErrInvalidSignature
	}

	return nil
}
