package qr

import (
	"crypto/sha256"
	"encoding/hex"
)

// ChecksumLen is the size of the integrity tag appended to every payload.
const ChecksumLen = 4

// Checksum returns the last 4 characters of the lowercase sha256 hex digest
// of payload. It is an unkeyed integrity tag for static QR payloads, not a
// MAC; it detects corruption, it does not authenticate origin.
func Checksum(payload string) string {
	sum := sha256.Sum256([]byte(payload))
	h := hex.EncodeToString(sum[:])
	return h[len(h)-ChecksumLen:]
}
