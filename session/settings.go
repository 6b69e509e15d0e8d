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
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/stephenlclarke/fixengine/datadictionary"
	"github.com/stephenlclarke/fixengine/fix"
)

// ConnectionType is the role a session plays when connecting.
type ConnectionType int

const (
	Acceptor ConnectionType = iota
	Initiator
)

func (c ConnectionType) String() string {
	if c == Initiator {
		return "initiator"
	}
	return "acceptor"
}

// ParseConnectionType accepts "initiator" or "acceptor".
func ParseConnectionType(s string) (ConnectionType, error) {
	switch s {
	case "initiator":
		return Initiator, nil
	case "acceptor":
		return Acceptor, nil
	}
	return Acceptor, fmt.Errorf("unknown connection type %q", s)
}

// Settings configure one session.
type Settings struct {
	SessionID      fix.SessionID
	ConnectionType ConnectionType

	HeartBtInt    time.Duration
	LogonTimeout  time.Duration
	LogoutTimeout time.Duration

	CheckCompID  bool
	CheckLatency bool
	MaxLatency   time.Duration

	ResetOnLogon      bool
	ResetOnLogout     bool
	ResetOnDisconnect bool
	RefreshOnLogon    bool

	ValidateSequenceNumbers     bool
	PersistMessages             bool
	RequiresOrigSendingTime     bool
	SendRedundantResendRequests bool
	// ClosedResendInterval sends the real EndSeqNo in ResendRequests
	// instead of the "through current" sentinel.
	ClosedResendInterval bool

	// Dictionary enables inbound validation when set.
	Dictionary *datadictionary.DataDictionary
	Validation datadictionary.ValidationSettings

	// Schedule is nil for sessions that never stop.
	Schedule *Schedule

	TimestampPrecision fix.TimestampPrecision
	DefaultApplVerID   string
}

// DefaultSettings returns the settings used for anything not configured.
func DefaultSettings() Settings {
	return Settings{
		HeartBtInt:              30 * time.Second,
		LogonTimeout:            10 * time.Second,
		LogoutTimeout:           2 * time.Second,
		CheckCompID:             true,
		CheckLatency:            true,
		MaxLatency:              120 * time.Second,
		ValidateSequenceNumbers: true,
		PersistMessages:         true,
		RequiresOrigSendingTime: true,
		Validation:              datadictionary.DefaultValidationSettings(),
		TimestampPrecision:      fix.Millis,
	}
}

// Validate reports settings that cannot run a session.
func (s *Settings) Validate() error {
	id := s.SessionID
	if id.BeginString == "" {
		return errors.New("BeginString is required")
	}
	if id.SenderCompID == "" || id.TargetCompID == "" {
		return errors.New("SenderCompID and TargetCompID are required")
	}
	if s.HeartBtInt < 0 {
		return fmt.Errorf("negative heartbeat interval %s", s.HeartBtInt)
	}
	if s.ConnectionType == Initiator && s.HeartBtInt == 0 {
		return errors.New("initiator sessions need a heartbeat interval")
	}
	if s.CheckLatency && s.MaxLatency <= 0 {
		return errors.New("MaxLatency must be positive when latency is checked")
	}
	if s.Dictionary != nil && s.Dictionary.BeginString() != id.BeginString {
		return fmt.Errorf("dictionary is %s but session is %s", s.Dictionary.BeginString(), id.BeginString)
	}
	if id.IsFIXT() && s.ConnectionType == Initiator && s.DefaultApplVerID == "" {
		return errors.New("DefaultApplVerID is required for FIXT initiators")
	}
	return nil
}
