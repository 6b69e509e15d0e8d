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

// Package store persists the sequence numbers and sent messages a session
// needs for gap recovery.
package store

import (
	"errors"
	"time"

	"github.com/stephenlclarke/fixengine/fix"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store: closed")

// MessageStore holds the state of one session. Sequence numbers are served
// from memory and written through to the backing storage on change.
type MessageStore interface {
	NextSenderMsgSeqNum() int
	NextTargetMsgSeqNum() int
	SetNextSenderMsgSeqNum(next int) error
	SetNextTargetMsgSeqNum(next int) error
	IncrNextSenderMsgSeqNum() error
	IncrNextTargetMsgSeqNum() error

	// CreationTime is when the store was created or last reset.
	CreationTime() time.Time

	// SaveMessage stores raw under seqNum. It reports false when a message
	// already exists for seqNum, which is left untouched.
	SaveMessage(seqNum int, raw string) (bool, error)

	// GetMessages returns the stored messages in [begin, end] by ascending
	// sequence number. Gaps are skipped.
	GetMessages(begin, end int) ([]string, error)

	// Reset sets both sequence numbers to 1, drops every message and
	// renews the creation time.
	Reset() error

	Close() error
}

// RefreshableMessageStore can reload its state from the backing storage,
// which lets a standby take over a session at logon.
type RefreshableMessageStore interface {
	MessageStore
	Refresh() error
}

// Factory creates the store of a session.
type Factory interface {
	Create(id fix.SessionID) (MessageStore, error)
}

// seqCache is the in memory part every store shares.
type seqCache struct {
	senderSeq    int
	targetSeq    int
	creationTime time.Time
}

func newSeqCache() seqCache {
	return seqCache{senderSeq: 1, targetSeq: 1, creationTime: time.Now().UTC()}
}

func (c *seqCache) NextSenderMsgSeqNum() int { return c.senderSeq }

func (c *seqCache) NextTargetMsgSeqNum() int { return c.targetSeq }

func (c *seqCache) CreationTime() time.Time { return c.creationTime }
