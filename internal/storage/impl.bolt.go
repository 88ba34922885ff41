package storage

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/meidoworks/nekoq-dnsreplica/internal/iface"
	"github.com/meidoworks/nekoq-dnsreplica/internal/shared"
)

var bucketRecords = []byte("dns_records")

var _ iface.RecordStorage = new(BoltStorage)
var _ iface.ClosableStorage = new(BoltStorage)

// BoltStorage keeps the records table in a single bolt bucket.
type BoltStorage struct {
	db *bolt.DB
}

func NewBoltStorage(path string) (*BoltStorage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "mkdir for record store")
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "open bolt db")
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRecords)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create records bucket")
	}
	return &BoltStorage{db: db}, nil
}

func (b *BoltStorage) PutRecord(r shared.Record) error {
	key, err := recordKey(r.Domain, r.RecordType)
	if err != nil {
		return err
	}
	dat, err := encodeRecord(r)
	if err != nil {
		return errors.Wrap(err, "encode record")
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRecords).Put(key, dat)
	})
}

func (b *BoltStorage) GetRecord(domain, recordType string) (shared.Record, bool, error) {
	key, err := recordKey(domain, recordType)
	if err != nil {
		return shared.Record{}, false, err
	}
	var dat []byte
	err = b.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketRecords).Get(key); v != nil {
			// bolt values are only valid inside the transaction
			dat = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return shared.Record{}, false, err
	}
	if dat == nil {
		return shared.Record{}, false, nil
	}
	r, err := decodeRecord(dat)
	if err != nil {
		return shared.Record{}, false, errors.Wrap(err, "decode record")
	}
	return r, true, nil
}

func (b *BoltStorage) DeleteRecord(domain, recordType string) (bool, error) {
	key, err := recordKey(domain, recordType)
	if err != nil {
		return false, err
	}
	existed := false
	err = b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketRecords)
		existed = bucket.Get(key) != nil
		if !existed {
			return nil
		}
		return bucket.Delete(key)
	})
	return existed, err
}

// Count returns the number of rows, used by status reporting and tests.
func (b *BoltStorage) Count() (int, error) {
	n := 0
	err := b.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketRecords).Stats().KeyN
		return nil
	})
	return n, err
}

func (b *BoltStorage) Close() error {
	return b.db.Close()
}
