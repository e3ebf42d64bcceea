package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/GriffinCanCode/livepen/internal/shared/types"
)

// HashString computes a SHA-256 hex digest of s
func HashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashFields hashes fields joined with a separator that cannot appear in them.
// Field order matters.
func HashFields(fields ...string) string {
	return HashString(strings.Join(fields, "\x00"))
}

// BufferETag returns a strong entity tag for a buffer set.
func BufferETag(b types.BufferSet) string {
	flag := "0"
	if b.SuppressDialogs {
		flag = "1"
	}
	return `"` + HashFields(b.Markup, b.Style, b.Script, b.Library, flag)[:16] + `"`
}
