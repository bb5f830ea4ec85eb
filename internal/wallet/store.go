// store.go - Pebble-backed persistence for wallets.
//
// One store may hold several wallets; every key is namespaced by username.
//
//	state/<user>                                 wallet state JSON
//	note/<user>/<active|spent>/<addr>/<short>    note description JSON
//	index/<user>/<active|spent>/<addr>/<short>   index record JSON
//
// addr is zero-padded to 20 digits so lexical order is tree order.

package wallet

import (
	"fmt"
	"io"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/pkg/errors"
)

// Partition names a note set.
type Partition string

const (
	Active Partition = "active"
	Spent  Partition = "spent"
)

// Store is a pebble key-value store.
type Store struct {
	db *pebble.DB
}

// OpenStore opens (or creates) the store in dir.
func OpenStore(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "open wallet store %s", dir)
	}
	return &Store{db: db}, nil
}

// OpenMemStore opens a store that lives only in memory.
func OpenMemStore() (*Store, error) {
	db, err := pebble.Open("", &pebble.Options{FS: vfs.NewMem()})
	if err != nil {
		return nil, errors.Wrap(err, "open memory store")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// get returns a copy of the value, or nil when the key is absent.
func (s *Store) get(key []byte) ([]byte, error) {
	val, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get %s", key)
	}
	defer closer.Close()
	return append([]byte(nil), val...), nil
}

func (s *Store) set(key, value []byte) error {
	return errors.Wrapf(s.db.Set(key, value, &pebble.WriteOptions{Sync: true}), "set %s", key)
}

// scan calls fn for every key with the given prefix, in key order.
func (s *Store) scan(prefix []byte, fn func(key, value []byte) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upperBound(prefix),
	})
	if err != nil {
		return errors.Wrap(err, "scan")
	}
	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(iter.Key(), iter.Value()); err != nil {
			_ = iter.Close()
			return err
		}
	}
	if err := iter.Error(); err != nil {
		_ = iter.Close()
		return errors.Wrap(err, "scan")
	}
	return errors.Wrap(iter.Close(), "scan")
}

type batch struct {
	b *pebble.Batch
}

func (s *Store) newBatch() *batch { return &batch{b: s.db.NewBatch()} }

func (b *batch) set(key, value []byte) error { return b.b.Set(key, value, nil) }

func (b *batch) delete(key []byte) error { return b.b.Delete(key, nil) }

func (b *batch) commit() error {
	return errors.Wrap(b.b.Commit(&pebble.WriteOptions{Sync: true}), "commit batch")
}

var _ io.Closer = (*Store)(nil)

func stateKey(user string) []byte {
	return []byte("state/" + user)
}

func notePrefix(user string, part Partition) []byte {
	return []byte(fmt.Sprintf("note/%s/%s/", user, part))
}

func indexPrefix(user string, part Partition) []byte {
	return []byte(fmt.Sprintf("index/%s/%s/", user, part))
}

func noteKey(user string, part Partition, addr uint64, short string) []byte {
	return append(notePrefix(user, part), []byte(fmt.Sprintf("%020d/%s", addr, short))...)
}

func indexKey(user string, part Partition, addr uint64, short string) []byte {
	return append(indexPrefix(user, part), []byte(fmt.Sprintf("%020d/%s", addr, short))...)
}

// upperBound is the smallest key greater than every key with prefix.
func upperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
