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

import "github.com/stephenlclarke/fixengine/fix"

// Application receives the callbacks of the sessions it is attached to.
//
// FromAdmin may return a *fix.RejectLogonError to refuse a Logon, or any of
// the field errors to reject the message. ToApp may return fix.ErrDoNotSend
// to veto a send or a resend. FromApp may also return
// fix.ErrUnsupportedMessageType.
type Application interface {
	OnCreate(id fix.SessionID)
	OnLogon(id fix.SessionID)
	OnLogout(id fix.SessionID)
	ToAdmin(msg *fix.Message, id fix.SessionID)
	ToApp(msg *fix.Message, id fix.SessionID) error
	FromAdmin(msg *fix.Message, id fix.SessionID) error
	FromApp(msg *fix.Message, id fix.SessionID) error
}

// NopApplication accepts everything and does nothing.
type NopApplication struct{}

func (NopApplication) OnCreate(fix.SessionID) {}
func (NopApplication) OnLogon(fix.SessionID) {}
func (NopApplication) OnLogout(fix.SessionID) {}
func (NopApplication) ToAdmin(*fix.Message, fix.SessionID) {}
func (NopApplication) ToApp(*fix.Message, fix.SessionID) error { return nil }
func (NopApplication) FromAdmin(*fix.Message, fix.SessionID) error { return nil }
func (NopApplication) FromApp(*fix.Message, fix.SessionID) error { return nil }

// Responder is the transport a connected session writes to.
type Responder interface {
	Send(raw string) error
	Disconnect()
}
