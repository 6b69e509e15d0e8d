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
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/stephenlclarke/fixengine/fix"
)

type sessionRecord struct {
	SessionID      string `gorm:"primaryKey;size:255"`
	CreationTime   time.Time
	IncomingSeqNum int
	OutgoingSeqNum int
}

func (sessionRecord) TableName() string { return "sessions" }

type messageRecord struct {
	SessionID string `gorm:"primaryKey;size:255"`
	MsgSeqNum int    `gorm:"primaryKey;autoIncrement:false"`
	Message   string `gorm:"type:text"`
}

func (messageRecord) TableName() string { return "messages" }

// SQLFactory keeps session stores in the sessions and messages tables of a
// gorm database.
type SQLFactory struct {
	db *gorm.DB
}

// NewSQLFactory migrates the schema on db.
func NewSQLFactory(db *gorm.DB) (*SQLFactory, error) {
	if err := db.AutoMigrate(&sessionRecord{}, &messageRecord{}); err != nil {
		return nil, fmt.Errorf("migrating store schema: %w", err)
	}
	return &SQLFactory{db: db}, nil
}

// OpenSQLite opens the sqlite database at dsn (":memory:" for a private
// in memory database) and returns a factory on it.
func OpenSQLite(dsn string) (*SQLFactory, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", dsn, err)
	}
	return NewSQLFactory(db)
}

func (f *SQLFactory) Create(id fix.SessionID) (MessageStore, error) {
	s := &SQLStore{db: f.db, id: id.String()}
	if err := s.Refresh(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close closes the underlying connection pool.
func (f *SQLFactory) Close() error {
	sqlDB, err := f.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SQLStore is a MessageStore backed by a relational database through gorm.
type SQLStore struct {
	seqCache
	db *gorm.DB
	id string
}

// Refresh reloads the session row, creating it on first use.
func (s *SQLStore) Refresh() error {
	var rec sessionRecord
	err := s.db.Where("session_id = ?", s.id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.seqCache = newSeqCache()
		return s.db.Create(&sessionRecord{
			SessionID:      s.id,
			CreationTime:   s.creationTime,
			IncomingSeqNum: s.targetSeq,
			OutgoingSeqNum: s.senderSeq,
		}).Error
	}
	if err != nil {
		return fmt.Errorf("loading session %s: %w", s.id, err)
	}
	s.seqCache = seqCache{
		senderSeq:    rec.OutgoingSeqNum,
		targetSeq:    rec.IncomingSeqNum,
		creationTime: rec.CreationTime.UTC(),
	}
	return nil
}

func (s *SQLStore) update(column string, value any) error {
	return s.db.Model(&sessionRecord{}).Where("session_id = ?", s.id).Update(column, value).Error
}

func (s *SQLStore) SetNextSenderMsgSeqNum(next int) error {
	if err := s.update("outgoing_seq_num", next); err != nil {
		return err
	}
	s.senderSeq = next
	return nil
}

func (s *SQLStore) SetNextTargetMsgSeqNum(next int) error {
	if err := s.update("incoming_seq_num", next); err != nil {
		return err
	}
	s.targetSeq = next
	return nil
}

func (s *SQLStore) IncrNextSenderMsgSeqNum() error {
	return s.SetNextSenderMsgSeqNum(s.senderSeq + 1)
}

func (s *SQLStore) IncrNextTargetMsgSeqNum() error {
	return s.SetNextTargetMsgSeqNum(s.targetSeq + 1)
}

func (s *SQLStore) SaveMessage(seqNum int, raw string) (bool, error) {
	res := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&messageRecord{
		SessionID: s.id,
		MsgSeqNum: seqNum,
		Message:   raw,
	})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *SQLStore) GetMessages(begin, end int) ([]string, error) {
	var recs []messageRecord
	err := s.db.Where("session_id = ? AND msg_seq_num BETWEEN ? AND ?", s.id, begin, end).
		Order("msg_seq_num").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Message
	}
	return out, nil
}

func (s *SQLStore) Reset() error {
	fresh := newSeqCache()
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", s.id).Delete(&messageRecord{}).Error; err != nil {
			return err
		}
		return tx.Model(&sessionRecord{}).Where("session_id = ?", s.id).Updates(map[string]any{
			"creation_time":    fresh.creationTime,
			"incoming_seq_num": fresh.targetSeq,
			"outgoing_seq_num": fresh.senderSeq,
		}).Error
	})
	if err != nil {
		return err
	}
	s.seqCache = fresh
	return nil
}

// Close is a no-op; the connection pool belongs to the factory.
func (s *SQLStore) Close() error { return nil }
