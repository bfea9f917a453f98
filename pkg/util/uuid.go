package util

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"

	"github.com/google/uuid"
)

// Md5ThenHex is a quick hasher
func Md5ThenHex(value []byte) string {
	hasher := md5.New()
	hasher.Write(value)
	return hex.EncodeToString(hasher.Sum(nil))
}

// HashUUID derives a stable UUID from the JSON form of value, so the same
// input always maps to the same id across runs.
func HashUUID(value any) string {
	raw, err := json.Marshal(value)
	if err != nil {
		return ""
	}
	hasher := md5.New()
	hasher.Write([]byte(raw))
	hash := hasher.Sum(nil)
	id, err := uuid.FromBytes(hash[:16])
	if err != nil {
		return ""
	}
	return id.String()
}

// NewUUID returns a random UUID.
func NewUUID() string {
	return uuid.New().String()
}

// ShortID returns the first 8 characters of id, or id itself when shorter.
func ShortID(id string) string {
	if len(id) < 8 {
		return id
	}
	return id[:8]
}
