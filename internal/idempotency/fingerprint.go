// Package idempotency fingerprints request payloads so that a replayed
// idempotency key can be checked against the body it was first used with.
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Scopes partition the key space per operation
const (
	ScopeCreateReservation = "reservation:create"
	ScopeSupplierCreate    = "supplier:create"
)

// Fingerprint returns the hex SHA-256 of the canonical form of a JSON body.
// Two requests fingerprint equal iff they are semantically the same JSON:
// key order, insignificant whitespace and Unicode representation of the same
// text do not matter.
func Fingerprint(body []byte) (string, error) {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return "", fmt.Errorf("failed to parse request body: %w", err)
	}

	var b strings.Builder
	if err := writeCanonical(&b, v); err != nil {
		return "", err
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:]), nil
}

// writeCanonical emits JSON with sorted object keys, no whitespace and NFC
// normalized strings.
func writeCanonical(b *strings.Builder, v any) error {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := writeString(b, k); err != nil {
				return err
			}
			b.WriteByte(':')
			if err := writeCanonical(b, t[k]); err != nil {
				return err
			}
		}
		b.WriteByte('}')
		return nil

	case []any:
		b.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := writeCanonical(b, e); err != nil {
				return err
			}
		}
		b.WriteByte(']')
		return nil

	case string:
		return writeString(b, t)

	default:
		// Numbers, booleans and null round-trip through encoding/json.
		out, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("failed to encode canonical value: %w", err)
		}
		b.Write(out)
		return nil
	}
}

func writeString(b *strings.Builder, s string) error {
	out, err := json.Marshal(norm.NFC.String(s))
	if err != nil {
		return fmt.Errorf("failed to encode canonical string: %w", err)
	}
	b.Write(out)
	return nil
}
