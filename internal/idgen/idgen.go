// Package idgen issues stable identities and short human identifiers.
//
// The two identifier classes have opposite contracts: a stable identity
// (UUIDv4) never collides and never changes; a human identifier is a short
// base36 hash that is expected to collide across independently edited
// branches, and collision resolution may reassign it.
package idgen

import (
	"crypto/sha256"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// DefaultLength is the base36 suffix width for generated human identifiers.
const DefaultLength = 4

// NewUUID mints a stable identity. Treat as cryptographically random:
// issuing a new stable identity never collides.
func NewUUID() string {
	return uuid.NewString()
}

// EncodeBase36 converts bytes to a base36 string of exactly length chars,
// zero-padded on the left, truncated to the least significant digits.
func EncodeBase36(data []byte, length int) string {
	num := new(big.Int).SetBytes(data)
	base := big.NewInt(36)
	mod := new(big.Int)

	chars := make([]byte, 0, length)
	for num.Sign() > 0 {
		num.DivMod(num, base, mod)
		chars = append(chars, base36Alphabet[mod.Int64()])
	}
	for i, j := 0, len(chars)-1; i < j; i, j = i+1, j-1 {
		chars[i], chars[j] = chars[j], chars[i]
	}

	s := string(chars)
	if len(s) < length {
		s = strings.Repeat("0", length-len(s)) + s
	}
	if len(s) > length {
		s = s[len(s)-length:]
	}
	return s
}

// HumanID derives a human identifier from a stable identity. The result is
// a pure function of (prefix, uuid, length), so every clone derives the same
// ID for the same entity without coordination.
func HumanID(prefix, uuid string, length int) string {
	if length <= 0 {
		length = DefaultLength
	}
	hash := sha256.Sum256([]byte(uuid))
	return fmt.Sprintf("%s-%s", prefix, EncodeBase36(hash[:5], length))
}

// Renumber deterministically reassigns a colliding human identifier.
// It is a pure function of the contested ID and the loser's stable identity,
// so repeated resolution runs converge on the same assignment.
func Renumber(oldID, uuid string) string {
	prefix, suffix := SplitID(oldID)
	length := len(suffix)
	if length == 0 {
		length = DefaultLength
	}
	hash := sha256.Sum256([]byte(oldID + "|" + uuid))
	if prefix == "" {
		return EncodeBase36(hash[:5], length)
	}
	return fmt.Sprintf("%s-%s", prefix, EncodeBase36(hash[:5], length))
}

// SplitID separates a human identifier into its kind prefix and hash suffix.
// IDs without a dash have no prefix.
func SplitID(id string) (prefix, suffix string) {
	idx := strings.LastIndex(id, "-")
	if idx < 0 {
		return "", id
	}
	return id[:idx], id[idx+1:]
}
