// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NewUID creates a random identifier for sessions and anonymous users:
// a v4 UUID rendered as 32 lowercase hex characters
func NewUID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

// NewToken creates a random secure join token
// Tokens gate session membership, so they carry real entropy
func NewToken() (string, error) {
	b := make([]byte, 24) // 24 bytes = 192 bits of entropy
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	// URL-safe base64 without padding
	return strings.TrimRight(base64.URLEncoding.EncodeToString(b), "="), nil
}
