// Package signature provides reference response-signature verifiers. The
// controller treats verification as pluggable; these implementations cover a
// detached HMAC over the raw body and a digest check over the Body payload.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
)

// Extraction errors.
var (
	ErrNoSignature = errors.New("signature: response carries no SignatureValue element")
	ErrNoDigest    = errors.New("signature: response carries no DigestValue element")
	ErrNoBody      = errors.New("signature: response carries no Body element")
	ErrMismatch    = errors.New("signature: value does not match the response body")
)

var (
	bodyPattern      = regexp.MustCompile(`(?s)<(?:[A-Za-z0-9_.-]+:)?Body[^>]*>(.*)</(?:[A-Za-z0-9_.-]+:)?Body>`)
	signaturePattern = regexp.MustCompile(`<(?:[A-Za-z0-9_.-]+:)?SignatureValue[^>]*>([^<]*)</`)
	digestPattern    = regexp.MustCompile(`<(?:[A-Za-z0-9_.-]+:)?DigestValue[^>]*>([^<]*)</`)
)

// HMACVerifier checks a detached HMAC-SHA256 carried in the response's
// SignatureValue element against the Body payload.
type HMACVerifier struct {
	Secret []byte
}

// Verify implements the savon.Verifier interface.
func (v *HMACVerifier) Verify(body []byte) error {
	payload, err := bodyContent(body)
	if err != nil {
		return err
	}
	carried, err := extract(signaturePattern, body, ErrNoSignature)
	if err != nil {
		return err
	}

	mac := hmac.New(sha256.New, v.Secret)
	mac.Write(payload)
	if !hmac.Equal(mac.Sum(nil), carried) {
		return ErrMismatch
	}
	return nil
}

// Sign computes the detached HMAC-SHA256 of the Body payload, base64
// encoded. Exposed so services under test can produce verifiable responses.
func (v *HMACVerifier) Sign(body []byte) (string, error) {
	payload, err := bodyContent(body)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, v.Secret)
	mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// DigestVerifier checks the DigestValue element against the SHA-256 digest
// of the Body payload.
type DigestVerifier struct{}

// Verify implements the savon.Verifier interface.
func (v *DigestVerifier) Verify(body []byte) error {
	payload, err := bodyContent(body)
	if err != nil {
		return err
	}
	carried, err := extract(digestPattern, body, ErrNoDigest)
	if err != nil {
		return err
	}

	sum := sha256.Sum256(payload)
	if !hmac.Equal(sum[:], carried) {
		return ErrMismatch
	}
	return nil
}

// Digest computes the base64 SHA-256 digest of the Body payload.
func Digest(body []byte) (string, error) {
	payload, err := bodyContent(body)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return base64.StdEncoding.EncodeToString(sum[:]), nil
}

func bodyContent(body []byte) ([]byte, error) {
	m := bodyPattern.FindSubmatch(body)
	if m == nil {
		return nil, ErrNoBody
	}
	return m[1], nil
}

func extract(pattern *regexp.Regexp, body []byte, missing error) ([]byte, error) {
	m := pattern.FindSubmatch(body)
	if m == nil {
		return nil, missing
	}
	decoded, err := base64.StdEncoding.DecodeString(string(m[1]))
	if err != nil {
		return nil, fmt.Errorf("signature: decoding carried value: %w", err)
	}
	return decoded, nil
}
