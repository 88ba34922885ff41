package storage

import (
	"errors"

	"github.com/meidoworks/nekoq-dnsreplica/internal/iface"
)

type RecordStorage interface {
	iface.RecordStorage
	iface.ClosableStorage
}

// Open selects the record store implementation by provider name.
func Open(provider, path string) (RecordStorage, error) {
	switch provider {
	case "bolt":
		return NewBoltStorage(path)
	case "diskv":
		return NewDiskvStorage(path)
	case "mem":
		return NewMemStorage(), nil
	default:
		return nil, errors.New("unknown storage provider:" + provider)
	}
}
