package domain

import (
	"crypto/rand"
	"strings"

	"github.com/oklog/ulid/v2"
)

// ID prefixes for the entity types that use generated identifiers.
// Format: {prefix}{ulid_lowercase}, prefix (5) + ULID (26) = 31 characters.
const (
	SaleIDPrefix    = "sale-"
	ProductIDPrefix = "prod-"
	ReceiptIDPrefix = "rcpt-"
	AuditIDPrefix   = "audt-"
)

// GenerateID generates a new prefixed identifier using ULID.
// ULIDs are lexicographically sortable by creation time, which keeps
// range scans over id-keyed collections in insertion order.
func GenerateID(prefix string) (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(timeNow()), entropy)
	if err != nil {
		return "", ErrStorage.WithDetails("id generation failed").WithCause(err)
	}
	return prefix + strings.ToLower(id.String()), nil
}

// IsValidID reports whether id is a well-formed identifier with the
// given prefix.
func IsValidID(id, prefix string) bool {
	id = strings.ToLower(id)
	if !strings.HasPrefix(id, prefix) {
		return false
	}
	if len(id) != len(prefix)+26 {
		return false
	}
	_, err := ulid.ParseStrict(strings.ToUpper(id[len(prefix):]))
	return err == nil
}
