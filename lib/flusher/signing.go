// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package flusher

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"

	"github.com/bureau-foundation/bureau-connect/lib/secret"
)

// signingKeyPrefix matches the environment prefix on signing keys,
// e.g. "signkey-prod-".
var signingKeyPrefix = regexp.MustCompile(`^signkey-\w+-`)

// HashSigningKey returns the bearer token for a signing key: the hex
// SHA-256 of the key's hex-decoded bytes, after stripping any
// "signkey-<env>-" prefix. The raw key never leaves the worker.
func HashSigningKey(key string) (string, error) {
	token, err := hashSigningKey(key)
	if err != nil {
		return "", err
	}
	return string(token), nil
}

func hashSigningKey(key string) ([]byte, error) {
	stripped := signingKeyPrefix.ReplaceAllString(key, "")
	raw, err := hex.DecodeString(stripped)
	if err != nil {
		return nil, fmt.Errorf("flusher: signing key is not hex after its prefix: %w", err)
	}
	sum := sha256.Sum256(raw)
	secret.Zero(raw)
	token := make([]byte, hex.EncodedLen(len(sum)))
	hex.Encode(token, sum[:])
	return token, nil
}

// newToken derives the bearer token for key into protected memory.
func newToken(key string) (*secret.Buffer, error) {
	token, err := hashSigningKey(key)
	if err != nil {
		return nil, err
	}
	return secret.NewFromBytes(token)
}
