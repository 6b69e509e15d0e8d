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
package fix

import "strings"

// SessionID identifies a session. It is a comparable value and is used
// directly as a map key.
type SessionID struct {
	BeginString      string
	SenderCompID     string
	SenderSubID      string
	SenderLocationID string
	TargetCompID     string
	TargetSubID      string
	TargetLocationID string
	Qualifier        string
}

// IsZero reports whether id is the zero SessionID.
func (id SessionID) IsZero() bool { return id == SessionID{} }

// IsFIXT reports whether the session runs over the FIXT transport.
func (id SessionID) IsFIXT() bool { return id.BeginString == BeginStringFIXT11 }

func appendCompID(b *strings.Builder, comp, sub, loc string) {
	b.WriteString(comp)
	if sub != "" {
		b.WriteByte('/')
		b.WriteString(sub)
	}
	if loc != "" {
		b.WriteByte('/')
		b.WriteString(loc)
	}
}

// String renders the canonical form BEGIN:SENDER[/SUB[/LOC]]->TARGET[/SUB[/LOC]][:QUALIFIER].
func (id SessionID) String() string {
	var b strings.Builder
	b.WriteString(id.BeginString)
	b.WriteByte(':')
	appendCompID(&b, id.SenderCompID, id.SenderSubID, id.SenderLocationID)
	b.WriteString("->")
	appendCompID(&b, id.TargetCompID, id.TargetSubID, id.TargetLocationID)
	if id.Qualifier != "" {
		b.WriteByte(':')
		b.WriteString(id.Qualifier)
	}
	return b.String()
}

// SessionIDFromHeader builds the SessionID of the sender of a message with
// header h, as seen from the sending side.
func SessionIDFromHeader(h *FieldMap, qualifier string) SessionID {
	get := func(tag int) string { v, _ := h.Get(tag); return v }
	return SessionID{
		BeginString:      get(TagBeginString),
		SenderCompID:     get(TagSenderCompID),
		SenderSubID:      get(TagSenderSubID),
		SenderLocationID: get(TagSenderLocationID),
		TargetCompID:     get(TagTargetCompID),
		TargetSubID:      get(TagTargetSubID),
		TargetLocationID: get(TagTargetLocationID),
		Qualifier:        qualifier,
	}
}

// Reverse returns the SessionID seen from the counterparty.
func (id SessionID) Reverse() SessionID {
	return SessionID{
		BeginString:      id.BeginString,
		SenderCompID:     id.TargetCompID,
		SenderSubID:      id.TargetSubID,
		SenderLocationID: id.TargetLocationID,
		TargetCompID:     id.SenderCompID,
		TargetSubID:      id.SenderSubID,
		TargetLocationID: id.SenderLocationID,
		Qualifier:        id.Qualifier,
	}
}
