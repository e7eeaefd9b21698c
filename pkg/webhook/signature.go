package webhook

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// SignatureHeader carries the payload signature on outgoing requests.
const SignatureHeader = "X-BMAD-Signature"

const signaturePrefix = "sha256="

// CanonicalJSON encodes v as compact JSON with object keys sorted at every
// level and without HTML escaping. Equal payloads always produce equal bytes,
// which makes the output suitable for signing.
func CanonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	// Round-trip through generic values: encoding/json sorts map keys, while
	// struct fields would otherwise keep declaration order.
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(generic); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Sign returns "sha256=<hex>" where hex is HMAC-SHA256(secret, payload).
func Sign(secret string, payload []byte) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("%w: secret is required", ErrInvalidConfiguration)
	}
	if len(payload) == 0 {
		return "", fmt.Errorf("%w: payload cannot be empty", ErrInvalidPayload)
	}
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return signaturePrefix + hex.EncodeToString(h.Sum(nil)), nil
}

// SignPayload canonicalises v and signs the result.
func SignPayload(secret string, v any) (string, error) {
	payload, err := CanonicalJSON(v)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return Sign(secret, payload)
}

// VerifySignature checks a received signature header against the raw body
// using a constant-time comparison.
func VerifySignature(secret string, body []byte, signature string) error {
	if !strings.HasPrefix(signature, signaturePrefix) {
		return fmt.Errorf("%w: missing %q prefix", ErrSignatureMismatch, signaturePrefix)
	}
	expected, err := Sign(secret, body)
	if err != nil {
		return err
	}
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrSignatureMismatch
	}
	return nil
}
