package shared

import (
	"strings"
	"unicode"
)

const keySeparator = ":"

// Record is the unit of stored data. (Domain, RecordType) is its identity.
type Record struct {
	Domain     string `cbor:"domain" json:"domain"`
	RecordType string `cbor:"record_type" json:"record_type"`
	Value      string `cbor:"value" json:"value"`
}

func (r Record) CacheKey() string {
	return CacheKey(r.Domain, r.RecordType)
}

func CacheKey(domain, recordType string) string {
	return domain + keySeparator + recordType
}

// ValidateIdentity checks a domain or record type field coming from any endpoint.
// Fields are joined with ':' on the wire and in cache keys, so ':' is rejected.
func ValidateIdentity(domain, recordType string) error {
	if !validField(domain) || !validField(recordType) {
		return ErrInvalidArgument
	}
	return nil
}

func validField(s string) bool {
	if s == "" || strings.Contains(s, keySeparator) {
		return false
	}
	for _, ch := range s {
		if unicode.IsSpace(ch) {
			return false
		}
	}
	return true
}
