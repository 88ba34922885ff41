package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/fxamacker/cbor/v2"

	"github.com/meidoworks/nekoq-dnsreplica/internal/shared"
)

var ErrKeyFormatInvalid = errors.New("key format invalid")

// recordKey is the composite primary key (domain, record_type).
func recordKey(domain, recordType string) ([]byte, error) {
	if err := shared.ValidateIdentity(domain, recordType); err != nil {
		return nil, ErrKeyFormatInvalid
	}
	key := make([]byte, 0, len(domain)+len(recordType)+1)
	key = append(key, domain...)
	key = append(key, 0)
	key = append(key, recordType...)
	return key, nil
}

// diskv keys become file names, the digest keeps them under NAME_MAX for
// any domain length.
func diskvKey(domain, recordType string) (string, error) {
	k, err := recordKey(domain, recordType)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(k)
	return hex.EncodeToString(sum[:]), nil
}

func encodeRecord(r shared.Record) ([]byte, error) {
	return cbor.Marshal(r)
}

func decodeRecord(dat []byte) (shared.Record, error) {
	var r shared.Record
	err := cbor.Unmarshal(dat, &r)
	return r, err
}
