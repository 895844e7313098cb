// Package progress persists and reports transfer progress. Records are kept
// in a bolt database keyed by transfer id, so an observer process can read
// the state of transfers it did not start.
package progress

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
	"google.golang.org/protobuf/encoding/protowire"
)

var bucketTransfers = []byte("transfers")

// Record is one transfer's progress snapshot.
type Record struct {
	CurrentBytes int64
	TotalBytes   int64
	UpdatedAt    int64 // unix milliseconds
}

func (r Record) marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.CurrentBytes))
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.TotalBytes))
	b = protowire.AppendTag(b, 3, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.UpdatedAt))
	return b
}

func unmarshalRecord(data []byte) (Record, error) {
	var r Record
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return Record{}, fmt.Errorf("progress: bad record tag: %w", protowire.ParseError(n))
		}
		data = data[n:]
		if typ != protowire.VarintType {
			return Record{}, fmt.Errorf("progress: unexpected wire type %d for field %d", typ, num)
		}
		v, n := protowire.ConsumeVarint(data)
		if n < 0 {
			return Record{}, fmt.Errorf("progress: bad varint for field %d: %w", num, protowire.ParseError(n))
		}
		data = data[n:]
		switch num {
		case 1:
			r.CurrentBytes = int64(v)
		case 2:
			r.TotalBytes = int64(v)
		case 3:
			r.UpdatedAt = int64(v)
		}
	}
	return r, nil
}

// Store is the bolt-backed progress database.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("progress: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketTransfers)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("progress: create bucket: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Put writes the record for a transfer.
func (s *Store) Put(id uuid.UUID, r Record) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTransfers).Put(id[:], r.marshal())
	})
}

// Get reads a transfer's record; the second result is false when no record
// exists.
func (s *Store) Get(id uuid.UUID) (Record, bool, error) {
	var r Record
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketTransfers).Get(id[:])
		if data == nil {
			return nil
		}
		rec, err := unmarshalRecord(data)
		if err != nil {
			return err
		}
		r = rec
		found = true
		return nil
	})
	return r, found, err
}

// Delete removes a transfer's record.
func (s *Store) Delete(id uuid.UUID) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTransfers).Delete(id[:])
	})
}
