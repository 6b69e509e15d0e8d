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
	"github.com/tidwall/btree"

	"github.com/stephenlclarke/fixengine/fix"
)

// MemoryStore keeps everything in process memory. Its state is lost with
// the process.
type MemoryStore struct {
	seqCache
	messages *btree.Map[int, string]
}

// NewMemoryStore returns an empty store starting at sequence number 1.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seqCache: newSeqCache(), messages: btree.NewMap[int, string](32)}
}

func (s *MemoryStore) SetNextSenderMsgSeqNum(next int) error {
	s.senderSeq = next
	return nil
}

func (s *MemoryStore) SetNextTargetMsgSeqNum(next int) error {
	s.targetSeq = next
	return nil
}

func (s *MemoryStore) IncrNextSenderMsgSeqNum() error {
	s.senderSeq++
	return nil
}

func (s *MemoryStore) IncrNextTargetMsgSeqNum() error {
	s.targetSeq++
	return nil
}

func (s *MemoryStore) SaveMessage(seqNum int, raw string) (bool, error) {
	if _, exists := s.messages.Get(seqNum); exists {
		return false, nil
	}
	s.messages.Set(seqNum, raw)
	return true, nil
}

func (s *MemoryStore) GetMessages(begin, end int) ([]string, error) {
	var out []string
	s.messages.Ascend(begin, func(seq int, raw string) bool {
		if seq > end {
			return false
		}
		out = append(out, raw)
		return true
	})
	return out, nil
}

func (s *MemoryStore) Reset() error {
	s.seqCache = newSeqCache()
	s.messages.Clear()
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// MemoryFactory creates a fresh MemoryStore per session.
type MemoryFactory struct{}

func (MemoryFactory) Create(fix.SessionID) (MessageStore, error) {
	return NewMemoryStore(), nil
}
