/*
fixengine — FIX protocol engine
Copyright (C) 2025 Steve Clarke <stephenlclarke@mac.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.

In accordance with section 13 of the AGPL, if you modify this program,
your modified version must prominently offer all users interacting with it
remotely through a computer network an opportunity to receive the source
code of your version.
*/
package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v3"

	"github.com/stephenlclarke/fixengine/fix"
)

// BadgerFactory keeps the stores of every session in one Badger database.
type BadgerFactory struct {
	db *badger.DB
}

// NewBadgerFactory opens (or creates) the database in dir.
func NewBadgerFactory(dir string) (*BadgerFactory, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil // disable internal logging
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger db: %w", err)
	}
	return &BadgerFactory{db: db}, nil
}

// Create returns the store of id, loading any state already persisted.
func (f *BadgerFactory) Create(id fix.SessionID) (MessageStore, error) {
	s := &BadgerStore{db: f.db, prefix: id.String() + "\x00"}
	if err := s.Refresh(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close closes the shared database. Stores created by f are unusable afterwards.
func (f *BadgerFactory) Close() error { return f.db.Close() }

// BadgerStore is a MessageStore kept under a per session key prefix, the
// SessionID followed by a NUL:
//
//	<session>seq/sender, <session>seq/target  big endian uint64
//	<session>created                          RFC3339Nano
//	<session>msg/<seq, 10 digits>             raw message
type BadgerStore struct {
	seqCache
	db     *badger.DB
	prefix string
}

func (s *BadgerStore) key(parts ...string) []byte {
	k := s.prefix
	for i, p := range parts {
		if i > 0 {
			k += "/"
		}
		k += p
	}
	return []byte(k)
}

func (s *BadgerStore) msgKey(seq int) []byte {
	return s.key("msg", fmt.Sprintf("%010d", seq))
}

func encodeSeq(n int) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(n))
	return b
}

// Refresh reloads sequence numbers and creation time, initialising them
// when the session has never been stored.
func (s *BadgerStore) Refresh() error {
	cache := newSeqCache()
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		for name, dst := range map[string]*int{"sender": &cache.senderSeq, "target": &cache.targetSeq} {
			item, err := txn.Get(s.key("seq", name))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if err := item.Value(func(v []byte) error {
				*dst = int(binary.BigEndian.Uint64(v))
				return nil
			}); err != nil {
				return err
			}
		}
		item, err := txn.Get(s.key("created"))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(v []byte) error {
			t, err := time.Parse(time.RFC3339Nano, string(v))
			if err != nil {
				return fmt.Errorf("badger store %s: creation time: %w", s.prefix, err)
			}
			cache.creationTime = t
			return nil
		})
	})
	if err != nil {
		return err
	}
	s.seqCache = cache
	if !found {
		return s.persistAll()
	}
	return nil
}

func (s *BadgerStore) persistAll() error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(s.key("seq", "sender"), encodeSeq(s.senderSeq)); err != nil {
			return err
		}
		if err := txn.Set(s.key("seq", "target"), encodeSeq(s.targetSeq)); err != nil {
			return err
		}
		return txn.Set(s.key("created"), []byte(s.creationTime.Format(time.RFC3339Nano)))
	})
}

func (s *BadgerStore) setSeq(name string, n int) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.key("seq", name), encodeSeq(n))
	})
}

func (s *BadgerStore) SetNextSenderMsgSeqNum(next int) error {
	if err := s.setSeq("sender", next); err != nil {
		return err
	}
	s.senderSeq = next
	return nil
}

func (s *BadgerStore) SetNextTargetMsgSeqNum(next int) error {
	if err := s.setSeq("target", next); err != nil {
		return err
	}
	s.targetSeq = next
	return nil
}

func (s *BadgerStore) IncrNextSenderMsgSeqNum() error {
	return s.SetNextSenderMsgSeqNum(s.senderSeq + 1)
}

func (s *BadgerStore) IncrNextTargetMsgSeqNum() error {
	return s.SetNextTargetMsgSeqNum(s.targetSeq + 1)
}

func (s *BadgerStore) SaveMessage(seqNum int, raw string) (bool, error) {
	stored := false
	err := s.db.Update(func(txn *badger.Txn) error {
		key := s.msgKey(seqNum)
		_, err := txn.Get(key)
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		stored = true
		return txn.Set(key, []byte(raw))
	})
	return stored, err
}

func (s *BadgerStore) GetMessages(begin, end int) ([]string, error) {
	var out []string
	prefix := s.key("msg", "")
	last := string(s.msgKey(end))
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(s.msgKey(begin)); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			if string(item.Key()) > last {
				break
			}
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			out = append(out, string(v))
		}
		return nil
	})
	return out, err
}

func (s *BadgerStore) Reset() error {
	if err := s.db.DropPrefix(s.key("msg", "")); err != nil {
		return err
	}
	s.seqCache = newSeqCache()
	return s.persistAll()
}

// Close is a no-op; the database belongs to the factory.
func (s *BadgerStore) Close() error { return nil }
