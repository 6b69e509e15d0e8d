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
	"fmt"

	"github.com/stephenlclarke/fixengine/fix"
)

// verify runs the checks every inbound message goes through and hands the
// message to the application when they pass. ok is false when the message
// has been dealt with here and must not be processed any further.
func (s *Session) verify(msg *fix.Message, checkTooHigh, checkTooLow bool) (ok bool, err error) {
	msgType, _ := msg.MsgType()
	seq, err := msg.SeqNum()
	if err != nil {
		return false, err
	}

	if !s.validLogonState(msgType) {
		text := fmt.Sprintf("Logon state is not valid for message (MsgType=%s)", msgType)
		s.log.OnErrorEvent(text)
		s.disconnect(text)
		return false, nil
	}
	if !s.correctCompID(msg) {
		return false, s.doBadCompID(msg)
	}
	good, err := s.goodTime(msg)
	if err != nil {
		return false, err
	}
	if !good {
		return false, s.doBadTime(msg)
	}

	s.state.lastReceivedTime = s.now()
	s.state.testRequestCounter = 0

	if !s.settings.ValidateSequenceNumbers {
		checkTooHigh, checkTooLow = false, false
	}
	expected := s.store.NextTargetMsgSeqNum()
	if checkTooHigh && seq > expected {
		return false, s.doTargetTooHigh(msg, seq, expected)
	}
	if checkTooLow && seq < expected {
		return false, s.doTargetTooLow(msg, seq, expected)
	}
	if (checkTooHigh || checkTooLow) && s.state.resend != nil && seq >= s.state.resend.end {
		r := s.state.resend
		s.log.OnEvent(fmt.Sprintf("ResendRequest for messages FROM: %d TO: %d has been satisfied.", r.begin, r.end))
		s.state.resend = nil
	}

	if fix.IsAdminMsgType(msgType) {
		return true, s.app.FromAdmin(msg, s.id)
	}
	return true, s.app.FromApp(msg, s.id)
}

func (s *Session) validLogonState(msgType string) bool {
	st := s.state
	logon := msgType == fix.MsgTypeLogon
	switch {
	case logon && (st.resetSent || st.resetReceived):
		return true
	case logon && !st.logonReceived, !logon && st.logonReceived:
		return true
	case msgType == fix.MsgTypeLogout && st.logonSent:
		return true
	case msgType != fix.MsgTypeLogout && st.logoutSent:
		return true
	case msgType == fix.MsgTypeSequenceReset, msgType == fix.MsgTypeReject:
		return true
	}
	return false
}

func (s *Session) correctCompID(msg *fix.Message) bool {
	if !s.settings.CheckCompID {
		return true
	}
	sender, _ := msg.Header.GetString(fix.TagSenderCompID)
	target, _ := msg.Header.GetString(fix.TagTargetCompID)
	return sender == s.id.TargetCompID && target == s.id.SenderCompID
}

func (s *Session) goodTime(msg *fix.Message) (bool, error) {
	if !s.settings.CheckLatency {
		return true, nil
	}
	sent, err := msg.Header.GetUTCTimestamp(fix.TagSendingTime)
	if err != nil {
		return false, err
	}
	d := s.now().Sub(sent)
	if d < 0 {
		d = -d
	}
	return d <= s.settings.MaxLatency, nil
}

func (s *Session) doBadCompID(msg *fix.Message) error {
	if err := s.generateReject(msg, fix.RejectReasonCompIDProblem, 0); err != nil {
		return err
	}
	return s.generateLogout("")
}

func (s *Session) doBadTime(msg *fix.Message) error {
	if err := s.generateReject(msg, fix.RejectReasonSendingTimeAccuracyProblem, fix.TagSendingTime); err != nil {
		return err
	}
	return s.generateLogout("")
}

// doTargetTooHigh queues msg until the gap before it is filled and asks for
// the missing messages, unless an outstanding ResendRequest already covers them.
func (s *Session) doTargetTooHigh(msg *fix.Message, seq, expected int) error {
	s.log.OnErrorEvent(fmt.Sprintf("MsgSeqNum too high, expecting %d but received %d", expected, seq))
	s.state.enqueue(seq, msg)

	if r := s.state.resend; r != nil && !s.settings.SendRedundantResendRequests && seq >= r.begin {
		s.log.OnEvent(fmt.Sprintf("Already sent ResendRequest FROM: %d TO: %d. Not sending another.", r.begin, r.end))
		return nil
	}
	return s.generateResendRequest(expected, seq-1)
}

// doTargetTooLow ends the session unless msg is a possible duplicate, which
// is dropped after its OrigSendingTime has been checked.
func (s *Session) doTargetTooLow(msg *fix.Message, seq, expected int) error {
	if !msg.Header.BoolOr(fix.TagPossDupFlag, false) {
		text := fmt.Sprintf("MsgSeqNum too low, expecting %d but received %d", expected, seq)
		s.log.OnErrorEvent(text)
		return s.logoutAndDisconnect(text)
	}
	return s.validatePossDup(msg)
}

func (s *Session) validatePossDup(msg *fix.Message) error {
	if msg.IsMsgTypeOf(fix.MsgTypeSequenceReset) {
		return nil
	}
	if !msg.Header.Has(fix.TagOrigSendingTime) {
		if s.settings.RequiresOrigSendingTime {
			return s.generateReject(msg, fix.RejectReasonRequiredTagMissing, fix.TagOrigSendingTime)
		}
		return nil
	}
	orig, err := msg.Header.GetUTCTimestamp(fix.TagOrigSendingTime)
	if err != nil {
		return s.generateReject(msg, fix.RejectReasonIncorrectDataFormat, fix.TagOrigSendingTime)
	}
	sent, err := msg.Header.GetUTCTimestamp(fix.TagSendingTime)
	if err != nil {
		return s.generateReject(msg, fix.RejectReasonIncorrectDataFormat, fix.TagSendingTime)
	}
	if orig.After(sent) {
		if err := s.generateReject(msg, fix.RejectReasonSendingTimeAccuracyProblem, 0); err != nil {
			return err
		}
		return s.generateLogout("")
	}
	return nil
}
