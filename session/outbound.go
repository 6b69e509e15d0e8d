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

	"github.com/stephenlclarke/fixengine/fix"
)

// Send stamps msg with the session header and the next sender sequence
// number, stores it and writes it to the transport. Application messages
// sent while not logged on are stored only and go out later on resend.
// A send vetoed by the application returns nil and uses no sequence number.
func (s *Session) Send(msg *fix.Message) error {
	msgType, err := msg.MsgType()
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return s.send(msg, msgType)
}

func (s *Session) send(msg *fix.Message, msgType string) error {
	admin := fix.IsAdminMsgType(msgType)
	seq := s.store.NextSenderMsgSeqNum()
	s.initializeHeader(msg, seq, s.now())

	if admin {
		s.app.ToAdmin(msg, s.id)
	} else if err := s.app.ToApp(msg, s.id); err != nil {
		if errors.Is(err, fix.ErrDoNotSend) {
			return nil
		}
		return err
	}

	raw := msg.String()
	if s.settings.PersistMessages {
		if _, err := s.store.SaveMessage(seq, raw); err != nil {
			return fmt.Errorf("persist message %d: %w", seq, err)
		}
	}
	if err := s.store.IncrNextSenderMsgSeqNum(); err != nil {
		return fmt.Errorf("increment sender seq: %w", err)
	}

	if !admin && !s.state.LoggedOn() {
		return nil
	}
	return s.transmit(raw, msgType)
}

// transmit writes raw without touching the store.
func (s *Session) transmit(raw, msgType string) error {
	if s.responder == nil {
		return nil
	}
	s.log.OnOutgoing(raw)
	if err := s.responder.Send(raw); err != nil {
		s.log.OnErrorEvent("Send failed: " + err.Error())
		return fmt.Errorf("transmit %s: %w", msgType, err)
	}
	s.state.lastSentTime = s.now()
	s.metrics.sent(msgType)
	return nil
}

func (s *Session) initializeHeader(msg *fix.Message, seq int, now time.Time) {
	h := &msg.Header
	h.SetString(fix.TagBeginString, s.id.BeginString)
	h.SetString(fix.TagSenderCompID, s.id.SenderCompID)
	if s.id.SenderSubID != "" {
		h.SetString(fix.TagSenderSubID, s.id.SenderSubID)
	}
	if s.id.SenderLocationID != "" {
		h.SetString(fix.TagSenderLocationID, s.id.SenderLocationID)
	}
	h.SetString(fix.TagTargetCompID, s.id.TargetCompID)
	if s.id.TargetSubID != "" {
		h.SetString(fix.TagTargetSubID, s.id.TargetSubID)
	}
	if s.id.TargetLocationID != "" {
		h.SetString(fix.TagTargetLocationID, s.id.TargetLocationID)
	}
	h.SetInt(fix.TagMsgSeqNum, seq)
	h.SetUTCTimestamp(fix.TagSendingTime, now, s.settings.TimestampPrecision)
}

func newMessage(msgType string) *fix.Message {
	m := fix.NewMessage()
	m.Header.SetString(fix.TagMsgType, msgType)
	return m
}

// generateLogon sends a Logon, either to open the session or in answer to reply.
func (s *Session) generateLogon(reply *fix.Message) error {
	logon := newMessage(fix.MsgTypeLogon)
	logon.Body.SetInt(fix.TagEncryptMethod, 0)
	logon.Body.SetInt(fix.TagHeartBtInt, int(s.state.heartBtInt/time.Second))
	if s.id.IsFIXT() && s.settings.DefaultApplVerID != "" {
		logon.Body.SetString(fix.TagDefaultApplVerID, s.settings.DefaultApplVerID)
	}

	if reply == nil {
		now := s.now()
		if err := s.resetIfSessionNotCurrent(now); err != nil {
			return err
		}
		if s.settings.RefreshOnLogon {
			s.refresh()
		}
		if s.settings.ResetOnLogon {
			if err := s.resetStore(); err != nil {
				return err
			}
			logon.Body.SetBool(fix.TagResetSeqNumFlag, true)
			s.state.resetSent = true
		}
		s.state.lastReceivedTime = now
		s.state.testRequestCounter = 0
	} else if reply.Body.BoolOr(fix.TagResetSeqNumFlag, false) {
		logon.Body.SetBool(fix.TagResetSeqNumFlag, true)
	}

	if err := s.send(logon, fix.MsgTypeLogon); err != nil {
		return err
	}
	s.transition(evSendLogon)
	if reply == nil {
		s.log.OnEvent("Initiated logon request")
	}
	return nil
}

func (s *Session) generateLogout(text string) error {
	logout := newMessage(fix.MsgTypeLogout)
	if text != "" {
		logout.Body.SetString(fix.TagText, text)
	}
	if err := s.send(logout, fix.MsgTypeLogout); err != nil {
		return err
	}
	s.transition(evSendLogout)
	s.state.logoutSentTime = s.now()
	return nil
}

func (s *Session) generateHeartbeat(testReqID string) error {
	hb := newMessage(fix.MsgTypeHeartbeat)
	if testReqID != "" {
		hb.Body.SetString(fix.TagTestReqID, testReqID)
	}
	return s.send(hb, fix.MsgTypeHeartbeat)
}

func (s *Session) generateTestRequest(id string) error {
	tr := newMessage(fix.MsgTypeTestRequest)
	tr.Body.SetString(fix.TagTestReqID, id)
	if err := s.send(tr, fix.MsgTypeTestRequest); err != nil {
		return err
	}
	s.state.testRequestCounter++
	s.log.OnEvent("Sent test request " + id)
	return nil
}

// generateResendRequest asks for [begin, end]. Unless the interval is
// closed the request runs open ended.
func (s *Session) generateResendRequest(begin, end int) error {
	wireEnd := end
	if !s.settings.ClosedResendInterval {
		if s.atLeastFIX42() {
			wireEnd = 0
		} else {
			wireEnd = 999999
		}
	}
	rr := newMessage(fix.MsgTypeResendRequest)
	rr.Body.SetInt(fix.TagBeginSeqNo, begin)
	rr.Body.SetInt(fix.TagEndSeqNo, wireEnd)
	if err := s.send(rr, fix.MsgTypeResendRequest); err != nil {
		return err
	}
	s.state.resend = &resendRange{begin: begin, end: end}
	s.log.OnEvent(fmt.Sprintf("Sent ResendRequest FROM: %d TO: %d", begin, wireEnd))
	s.metrics.resendRequest()
	return nil
}

// generateSequenceReset sends a GapFill numbered begin that moves the
// counterparty on to newSeq. It is neither stored nor counted.
func (s *Session) generateSequenceReset(begin, newSeq int) error {
	now := s.now()
	sr := newMessage(fix.MsgTypeSequenceReset)
	s.initializeHeader(sr, begin, now)
	sr.Header.SetBool(fix.TagPossDupFlag, true)
	sr.Header.SetUTCTimestamp(fix.TagOrigSendingTime, now, s.settings.TimestampPrecision)
	sr.Body.SetBool(fix.TagGapFillFlag, true)
	sr.Body.SetInt(fix.TagNewSeqNo, newSeq)
	s.app.ToAdmin(sr, s.id)

	if err := s.transmit(sr.String(), fix.MsgTypeSequenceReset); err != nil {
		return err
	}
	s.log.OnEvent(fmt.Sprintf("Sent SequenceReset TO: %d", newSeq))
	s.metrics.gapFill()
	return nil
}

// generateReject answers msg with a session level Reject.
func (s *Session) generateReject(msg *fix.Message, reason fix.RejectReason, tag int) error {
	if !s.state.LogonReceived() {
		return fmt.Errorf("%w: %s, field=%d", ErrRejectBeforeLogon, reason, tag)
	}
	msgType, _ := msg.MsgType()
	seq, seqErr := msg.SeqNum()

	reject := newMessage(fix.MsgTypeReject)
	reject.ReverseRoute(msg)
	if seqErr == nil {
		reject.Body.SetInt(fix.TagRefSeqNum, seq)
	}
	text := reason.String()
	if s.atLeastFIX42() {
		if msgType != "" {
			reject.Body.SetString(fix.TagRefMsgType, msgType)
		}
		if s.id.BeginString != fix.BeginStringFIX42 || reason <= fix.RejectReasonInvalidMsgType {
			reject.Body.SetInt(fix.TagSessionRejectReason, int(reason))
		}
		if tag > 0 {
			reject.Body.SetInt(fix.TagRefTagID, tag)
		}
	} else if tag > 0 {
		text = fmt.Sprintf("%s (%d)", text, tag)
	}
	reject.Body.SetString(fix.TagText, text)

	expected := s.store.NextTargetMsgSeqNum()
	if msgType != fix.MsgTypeLogon && msgType != fix.MsgTypeSequenceReset && seqErr == nil &&
		(seq == expected || !s.settings.ValidateSequenceNumbers) {
		if err := s.incrTarget(); err != nil {
			return err
		}
	}

	if tag > 0 {
		s.log.OnErrorEvent(fmt.Sprintf("Message %d Rejected: %s (field %d)", seq, reason, tag))
	} else {
		s.log.OnErrorEvent(fmt.Sprintf("Message %d Rejected: %s", seq, reason))
	}
	s.metrics.reject(int(reason))
	return s.send(reject, fix.MsgTypeReject)
}

// generateBusinessReject answers an application message with a
// BusinessMessageReject. The rejected message always counts as received.
func (s *Session) generateBusinessReject(msg *fix.Message, reason fix.BusinessRejectReason, tag int) error {
	msgType, _ := msg.MsgType()
	seq, seqErr := msg.SeqNum()

	reject := newMessage(fix.MsgTypeBusinessMessageReject)
	reject.ReverseRoute(msg)
	if seqErr == nil {
		reject.Body.SetInt(fix.TagRefSeqNum, seq)
	}
	reject.Body.SetString(fix.TagRefMsgType, msgType)
	reject.Body.SetInt(fix.TagBusinessRejectReason, int(reason))
	text := reason.String()
	if tag > 0 {
		text = fmt.Sprintf("%s (%d)", text, tag)
	}
	reject.Body.SetString(fix.TagText, text)

	if err := s.incrTarget(); err != nil {
		return err
	}
	s.log.OnErrorEvent(fmt.Sprintf("Message %d Rejected: %s", seq, text))
	return s.send(reject, fix.MsgTypeBusinessMessageReject)
}
