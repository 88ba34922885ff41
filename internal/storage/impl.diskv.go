package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/peterbourgon/diskv/v3"
	"github.com/pkg/errors"

	"github.com/meidoworks/nekoq-dnsreplica/internal/iface"
	"github.com/meidoworks/nekoq-dnsreplica/internal/shared"
)

var _ iface.RecordStorage = new(DiskvStorage)
var _ iface.ClosableStorage = new(DiskvStorage)

// DiskvStorage stores one file per record, fanned out by a hash prefix.
type DiskvStorage struct {
	diskv *diskv.Diskv
}

func NewDiskvStorage(folder string) (*DiskvStorage, error) {
	f, err := filepath.Abs(folder)
	if err != nil {
		return nil, err
	}
	d := diskv.New(diskv.Options{
		BasePath: f,
		Transform: func(s string) []string {
			return []string{diskvSha256prefix(s)}
		},
		CacheSizeMax: 1024 * 1024,
	})

	return &DiskvStorage{
		diskv: d,
	}, nil
}

func (d *DiskvStorage) PutRecord(r shared.Record) error {
	key, err := diskvKey(r.Domain, r.RecordType)
	if err != nil {
		return err
	}
	dat, err := encodeRecord(r)
	if err != nil {
		return errors.Wrap(err, "encode record")
	}
	return d.diskv.Write(key, dat)
}

func (d *DiskvStorage) GetRecord(domain, recordType string) (shared.Record, bool, error) {
	key, err := diskvKey(domain, recordType)
	if err != nil {
		return shared.Record{}, false, err
	}
	dat, err := d.diskv.Read(key)
	if os.IsNotExist(err) {
		return shared.Record{}, false, nil
	}
	if err != nil {
		return shared.Record{}, false, err
	}
	r, err := decodeRecord(dat)
	if err != nil {
		return shared.Record{}, false, errors.Wrap(err, "decode record")
	}
	return r, true, nil
}

func (d *DiskvStorage) DeleteRecord(domain, recordType string) (bool, error) {
	key, err := diskvKey(domain, recordType)
	if err != nil {
		return false, err
	}
	err = d.diskv.Erase(key)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (d *DiskvStorage) Close() error {
	return nil
}

func diskvSha256prefix(s string) string {
	v := sha256.Sum256([]byte(s))
	return hex.EncodeToString(v[:])[:4]
}
