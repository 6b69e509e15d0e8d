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

// Package session implements the FIX session layer: logon and logout,
// heartbeats, sequence number checks, gap recovery and rejects.
package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stephenlclarke/fixengine/fix"
	"github.com/stephenlclarke/fixengine/sessionlog"
	"github.com/stephenlclarke/fixengine/store"
)

// ErrRejectBeforeLogon is returned when a message would have to be rejected
// before the counterparty has logged on. The session disconnects.
var ErrRejectBeforeLogon = errors.New("tried to send a reject while not logged on")

// Option customises a Session.
type Option func(*Session)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithMetrics records the session in m.
func WithMetrics(m *Metrics) Option {
	return func(s *Session) { s.metrics.m = m }
}

// Session is one FIX session. Its methods must be called from a single
// goroutine at a time; Run provides such a goroutine and Submit posts work to it.
type Session struct {
	id       fix.SessionID
	settings Settings
	store    store.MessageStore
	log      sessionlog.Log
	app      Application
	metrics  sessionMetrics
	now      func() time.Time

	responder     Responder
	state         *State
	enabled       bool
	logoutReason  string
	outOfSchedule bool

	cmds chan func()
}

// New creates a session from settings, opening its store with stores and
// its log with logs. app may be nil.
func New(settings Settings, stores store.Factory, logs sessionlog.Factory, app Application, opts ...Option) (*Session, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("session %s: %w", settings.SessionID, err)
	}
	id := settings.SessionID
	ms, err := stores.Create(id)
	if err != nil {
		return nil, fmt.Errorf("session %s: create store: %w", id, err)
	}
	if logs == nil {
		logs = sessionlog.NopFactory{}
	}
	if app == nil {
		app = NopApplication{}
	}

	s := &Session{
		id:       id,
		settings: settings,
		store:    ms,
		log:      logs.Create(id),
		app:      app,
		metrics:  sessionMetrics{label: id.String()},
		now:      time.Now,
		enabled:  true,
		cmds:     make(chan func()),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.state = newState(settings.ConnectionType == Initiator, settings.HeartBtInt, s.metrics.status)
	s.metrics.status(Disconnected)

	app.OnCreate(id)
	s.log.OnEvent("Created session")
	return s, nil
}

// ID returns the session's identity.
func (s *Session) ID() fix.SessionID { return s.id }

// State returns the connection state.
func (s *Session) State() *State { return s.state }

// Store returns the message store.
func (s *Session) Store() store.MessageStore { return s.store }

// Enabled reports whether the session wants to be logged on.
func (s *Session) Enabled() bool { return s.enabled }

// Logon enables the session. An initiator sends its Logon on the next Tick.
func (s *Session) Logon() {
	s.enabled = true
	s.logoutReason = ""
}

// Logout disables the session. The Logout is sent on the next Tick.
func (s *Session) Logout(reason string) {
	s.enabled = false
	s.logoutReason = reason
}

// Connect attaches a transport.
func (s *Session) Connect(r Responder) error {
	if s.state.Connected() {
		return errors.New("session already connected")
	}
	s.responder = r
	if err := s.state.fire(evConnect); err != nil {
		return err
	}
	now := s.now()
	s.state.lastReceivedTime = now
	s.state.lastSentTime = now
	s.log.OnEvent("Connected")
	return nil
}

// Disconnect drops the transport.
func (s *Session) Disconnect(reason string) { s.disconnect(reason) }

func (s *Session) disconnect(reason string) {
	if !s.state.Connected() {
		return
	}
	loggedOn := s.state.LoggedOn()
	s.log.OnEvent("Disconnecting: " + reason)
	if s.responder != nil {
		s.responder.Disconnect()
		s.responder = nil
	}
	s.transition(evDisconnect)
	if loggedOn {
		s.app.OnLogout(s.id)
	}
	if s.settings.ResetOnDisconnect {
		if err := s.resetStore(); err != nil {
			s.log.OnErrorEvent(err.Error())
		}
	}
}

// Reset logs out if needed, disconnects and resets the sequence numbers.
func (s *Session) Reset() error { return s.reset("Session reset") }

func (s *Session) reset(reason string) error {
	if s.state.LoggedOn() && !s.state.LogoutSent() {
		if err := s.generateLogout(reason); err != nil {
			s.log.OnErrorEvent(err.Error())
		}
	}
	s.disconnect(reason)
	return s.resetStore()
}

func (s *Session) resetStore() error {
	if err := s.store.Reset(); err != nil {
		return fmt.Errorf("reset store: %w", err)
	}
	s.state.resend = nil
	s.log.OnEvent("Sequence numbers reset to 1")
	return nil
}

func (s *Session) refresh() {
	rs, ok := s.store.(store.RefreshableMessageStore)
	if !ok {
		return
	}
	if err := rs.Refresh(); err != nil {
		s.log.OnErrorEvent("Refresh failed: " + err.Error())
		return
	}
	s.log.OnEvent("Refreshed session state from store")
}

func (s *Session) resetIfSessionNotCurrent(now time.Time) error {
	if s.settings.Schedule == nil || s.settings.Schedule.IsSameSession(s.store.CreationTime(), now) {
		return nil
	}
	s.log.OnEvent("Session state is not current, resetting")
	return s.resetStore()
}

func (s *Session) transition(event string) {
	if err := s.state.fire(event); err != nil {
		s.log.OnErrorEvent(fmt.Sprintf("state %s: %v", s.state.Status(), err))
	}
}

func (s *Session) dictionary() fix.Dictionary {
	if s.settings.Dictionary == nil {
		return nil
	}
	return s.settings.Dictionary
}

// atLeastFIX42 reports whether the session speaks FIX 4.2 or later.
func (s *Session) atLeastFIX42() bool {
	b := s.id.BeginString
	return b != fix.BeginStringFIX40 && b != fix.BeginStringFIX41
}

// Tick runs the timers. Call it about once a second.
func (s *Session) Tick() error {
	now := s.now()
	if !s.settings.Schedule.IsSessionTime(now) {
		if s.outOfSchedule {
			return nil
		}
		s.outOfSchedule = true
		return s.reset("Session outside schedule")
	}
	s.outOfSchedule = false

	if !s.state.Connected() {
		return nil
	}

	if !s.enabled {
		if s.state.LoggedOn() && !s.state.LogoutSent() {
			return s.generateLogout(s.logoutReason)
		}
		if s.state.logoutTimedOut(now, s.settings.LogoutTimeout) {
			s.disconnect("Timed out waiting for logout response")
		}
		return nil
	}

	if !s.state.LogonReceived() {
		if s.state.logonSendNeeded() {
			return s.generateLogon(nil)
		}
		if s.state.logonTimedOut(now, s.settings.LogonTimeout) {
			s.disconnect("Timed out waiting for logon response")
		}
		return nil
	}

	if s.state.heartBtInt == 0 {
		return nil
	}
	switch {
	case s.state.logoutTimedOut(now, s.settings.LogoutTimeout):
		s.disconnect("Timed out waiting for logout response")
	case s.state.timedOut(now):
		s.disconnect("Timed out waiting for heartbeat")
	case s.state.testRequestNeeded(now):
		return s.generateTestRequest(uuid.NewString())
	case s.state.heartbeatNeeded(now):
		return s.generateHeartbeat("")
	}
	return nil
}

// NextRaw parses and processes one inbound message. Messages that do not
// parse are logged and dropped; a broken Logon also disconnects.
func (s *Session) NextRaw(raw string) error {
	s.log.OnIncoming(raw)
	msg, err := fix.ParseMessageWithDictionary(raw, s.dictionary(), true)
	if err != nil {
		var invalid *fix.InvalidMessageError
		if !errors.As(err, &invalid) {
			return err
		}
		s.log.OnErrorEvent("Skipping invalid message: " + err.Error())
		if strings.Contains(raw, "\x0135=A\x01") {
			s.disconnect("Invalid Logon message")
		}
		return nil
	}
	return s.Next(msg)
}

// Next processes one parsed inbound message.
func (s *Session) Next(msg *fix.Message) error {
	err := s.next(msg, false)
	if errors.Is(err, ErrRejectBeforeLogon) {
		s.log.OnErrorEvent(err.Error())
		s.disconnect("Protocol error before logon")
	}
	return err
}

func (s *Session) next(msg *fix.Message, queued bool) error {
	if !s.settings.Schedule.IsSessionTime(s.now()) {
		s.log.OnEvent("Message received outside of session time")
		return nil
	}

	msgType, err := msg.MsgType()
	if err != nil {
		return s.handleError(msg, "", fix.RequiredTagMissing(fix.TagMsgType))
	}
	if !queued {
		s.metrics.received(msgType)
	}

	if begin, _ := msg.Header.GetString(fix.TagBeginString); begin != s.id.BeginString {
		verr := &fix.UnsupportedVersionError{Expected: s.id.BeginString, Received: begin}
		s.log.OnErrorEvent(verr.Error())
		if msgType == fix.MsgTypeLogout {
			return s.handleError(msg, msgType, s.nextLogout(msg))
		}
		return s.logoutAndDisconnect(verr.Error())
	}

	if s.settings.Dictionary != nil && !queued {
		if err := s.settings.Dictionary.ValidateWith(msg, s.settings.Validation); err != nil {
			return s.handleError(msg, msgType, err)
		}
	}

	switch msgType {
	case fix.MsgTypeLogon:
		err = s.nextLogon(msg)
	case fix.MsgTypeHeartbeat:
		err = s.nextHeartbeat(msg)
	case fix.MsgTypeTestRequest:
		err = s.nextTestRequest(msg)
	case fix.MsgTypeSequenceReset:
		err = s.nextSequenceReset(msg)
	case fix.MsgTypeLogout:
		err = s.nextLogout(msg)
	case fix.MsgTypeResendRequest:
		err = s.nextResendRequest(msg)
	case fix.MsgTypeReject:
		err = s.nextReject(msg)
	default:
		err = s.nextApp(msg)
	}
	return s.handleError(msg, msgType, err)
}

// handleError turns the errors of message processing into rejects, logouts
// and disconnects. Errors it cannot handle are returned.
func (s *Session) handleError(msg *fix.Message, msgType string, err error) error {
	if err == nil {
		return nil
	}
	var (
		rejectLogon *fix.RejectLogonError
		unsupported *fix.UnsupportedVersionError
		fieldErr    *fix.FieldError
		notFound    *fix.FieldNotFoundError
	)
	switch {
	case errors.As(err, &rejectLogon):
		s.log.OnErrorEvent("Logon rejected: " + err.Error())
		if lerr := s.generateLogout(rejectLogon.Text); lerr != nil {
			return lerr
		}
		if ierr := s.incrTarget(); ierr != nil {
			return ierr
		}
		s.disconnect("Logon rejected: " + err.Error())
		return nil

	case errors.As(err, &unsupported):
		s.log.OnErrorEvent(err.Error())
		return s.logoutAndDisconnect(err.Error())

	case errors.As(err, &fieldErr):
		if msgType == fix.MsgTypeLogon {
			return s.logoutAndDisconnect(err.Error())
		}
		return s.generateReject(msg, fieldErr.Reason, fieldErr.Tag)

	case errors.As(err, &notFound):
		if s.atLeastFIX42() && msgType != "" && !fix.IsAdminMsgType(msgType) {
			return s.generateBusinessReject(msg, fix.BusinessRejectReasonConditionallyRequiredField, notFound.Tag)
		}
		if msgType == fix.MsgTypeLogon {
			return s.logoutAndDisconnect(err.Error())
		}
		return s.generateReject(msg, fix.RejectReasonRequiredTagMissing, notFound.Tag)

	case errors.Is(err, fix.ErrUnsupportedMessageType):
		if s.atLeastFIX42() {
			return s.generateBusinessReject(msg, fix.BusinessRejectReasonUnsupportedMessageType, 0)
		}
		return s.generateReject(msg, fix.RejectReasonInvalidMsgType, fix.TagMsgType)
	}
	return err
}

func (s *Session) logoutAndDisconnect(text string) error {
	if s.state.Connected() && !s.state.LogoutSent() {
		if err := s.generateLogout(text); err != nil {
			return err
		}
	}
	s.disconnect(text)
	return nil
}

func (s *Session) incrTarget() error {
	if err := s.store.IncrNextTargetMsgSeqNum(); err != nil {
		return fmt.Errorf("increment target seq: %w", err)
	}
	return nil
}

// nextQueued replays messages that arrived ahead of a gap once the gap has
// closed. A queued Logon or ResendRequest was acted on when it arrived and
// only advances the sequence number.
func (s *Session) nextQueued() error {
	for {
		expected := s.store.NextTargetMsgSeqNum()
		msg, ok := s.state.dequeue(expected)
		if !ok {
			return nil
		}
		s.log.OnEvent(fmt.Sprintf("Processing queued message: %d", expected))
		if msg.IsMsgTypeOf(fix.MsgTypeLogon) || msg.IsMsgTypeOf(fix.MsgTypeResendRequest) {
			if err := s.incrTarget(); err != nil {
				return err
			}
			continue
		}
		if err := s.next(msg, true); err != nil {
			return err
		}
	}
}

func (s *Session) nextLogon(msg *fix.Message) error {
	now := s.now()
	if err := s.resetIfSessionNotCurrent(now); err != nil {
		return err
	}
	if s.settings.RefreshOnLogon {
		s.refresh()
	}

	resetFlag := msg.Body.BoolOr(fix.TagResetSeqNumFlag, false)
	switch {
	case resetFlag:
		s.state.resetReceived = true
		s.log.OnEvent("Logon contains ResetSeqNumFlag=Y, resetting sequence numbers to 1")
		if !s.state.resetSent {
			if err := s.resetStore(); err != nil {
				return err
			}
		}
	case s.settings.ResetOnLogon && !s.state.initiator:
		if err := s.resetStore(); err != nil {
			return err
		}
	}

	if s.state.logonSendNeeded() && !s.state.resetReceived {
		s.log.OnErrorEvent("Received logon response before sending request")
		s.disconnect("Received logon response before sending request")
		return nil
	}

	checkTooLow := !s.state.resetReceived
	if ok, err := s.verify(msg, false, checkTooLow); !ok || err != nil {
		return err
	}

	if !s.state.initiator {
		if hb, err := msg.Body.GetInt(fix.TagHeartBtInt); err == nil {
			s.state.heartBtInt = time.Duration(hb) * time.Second
		}
	}
	s.transition(evReceiveLogon)
	s.log.OnEvent("Received logon")

	if !s.state.initiator || (s.state.resetReceived && !s.state.resetSent) {
		s.log.OnEvent("Responding to Logon request")
		if err := s.generateLogon(msg); err != nil {
			return err
		}
	}
	s.state.resetSent = false
	s.state.resetReceived = false

	seq, _ := msg.SeqNum()
	expected := s.store.NextTargetMsgSeqNum()
	if s.settings.ValidateSequenceNumbers && !resetFlag && seq > expected {
		if err := s.doTargetTooHigh(msg, seq, expected); err != nil {
			return err
		}
	} else if err := s.incrTarget(); err != nil {
		return err
	}

	if s.state.LoggedOn() {
		s.log.OnEvent("Logged on")
		s.app.OnLogon(s.id)
	}
	return s.nextQueued()
}

func (s *Session) nextHeartbeat(msg *fix.Message) error {
	if ok, err := s.verify(msg, true, true); !ok || err != nil {
		return err
	}
	if err := s.incrTarget(); err != nil {
		return err
	}
	return s.nextQueued()
}

func (s *Session) nextTestRequest(msg *fix.Message) error {
	if ok, err := s.verify(msg, true, true); !ok || err != nil {
		return err
	}
	id, _ := msg.Body.GetString(fix.TagTestReqID)
	if err := s.generateHeartbeat(id); err != nil {
		return err
	}
	if err := s.incrTarget(); err != nil {
		return err
	}
	return s.nextQueued()
}

func (s *Session) nextReject(msg *fix.Message) error {
	if ok, err := s.verify(msg, false, true); !ok || err != nil {
		return err
	}
	if err := s.incrTarget(); err != nil {
		return err
	}
	return s.nextQueued()
}

func (s *Session) nextApp(msg *fix.Message) error {
	if ok, err := s.verify(msg, true, true); !ok || err != nil {
		return err
	}
	if err := s.incrTarget(); err != nil {
		return err
	}
	return s.nextQueued()
}

func (s *Session) nextSequenceReset(msg *fix.Message) error {
	gapFill := msg.Body.BoolOr(fix.TagGapFillFlag, false)
	if ok, err := s.verify(msg, gapFill, gapFill); !ok || err != nil {
		return err
	}
	newSeq, err := msg.Body.GetInt(fix.TagNewSeqNo)
	if err != nil {
		return err
	}
	expected := s.store.NextTargetMsgSeqNum()
	s.log.OnEvent(fmt.Sprintf("Received SequenceReset FROM: %d TO: %d", expected, newSeq))

	switch {
	case newSeq > expected:
		if err := s.store.SetNextTargetMsgSeqNum(newSeq); err != nil {
			return fmt.Errorf("set target seq: %w", err)
		}
		return s.nextQueued()
	case newSeq < expected:
		return s.generateReject(msg, fix.RejectReasonValueIsIncorrect, fix.TagNewSeqNo)
	}
	return nil
}

func (s *Session) nextLogout(msg *fix.Message) error {
	if ok, err := s.verify(msg, false, false); !ok || err != nil {
		return err
	}
	var reason string
	if s.state.LogoutSent() {
		reason = "Received logout response"
		s.log.OnEvent(reason)
	} else {
		reason = "Received logout request"
		s.log.OnEvent(reason)
		if err := s.generateLogout(""); err != nil {
			return err
		}
		s.log.OnEvent("Sent logout response")
	}
	s.transition(evReceiveLogout)
	if err := s.incrTarget(); err != nil {
		return err
	}
	if s.settings.ResetOnLogout {
		if err := s.resetStore(); err != nil {
			return err
		}
	}
	s.disconnect(reason)
	return nil
}

func (s *Session) nextResendRequest(msg *fix.Message) error {
	if ok, err := s.verify(msg, false, false); !ok || err != nil {
		return err
	}
	begin, err := msg.Body.GetInt(fix.TagBeginSeqNo)
	if err != nil {
		return err
	}
	end, err := msg.Body.GetInt(fix.TagEndSeqNo)
	if err != nil {
		return err
	}
	s.log.OnEvent(fmt.Sprintf("Received ResendRequest FROM: %d TO: %d", begin, end))

	last := s.store.NextSenderMsgSeqNum() - 1
	if s.throughCurrent(end) || end >= last {
		end = last
	}

	if s.settings.PersistMessages {
		err = s.resendMessages(begin, end)
	} else if begin <= end {
		err = s.generateSequenceReset(begin, end+1)
	}
	if err != nil {
		return err
	}

	seq, _ := msg.SeqNum()
	expected := s.store.NextTargetMsgSeqNum()
	switch {
	case seq == expected:
		if err := s.incrTarget(); err != nil {
			return err
		}
		return s.nextQueued()
	case seq > expected && s.settings.ValidateSequenceNumbers:
		return s.doTargetTooHigh(msg, seq, expected)
	}
	return nil
}

// throughCurrent reports whether EndSeqNo is the "up to the latest" sentinel.
func (s *Session) throughCurrent(end int) bool {
	switch s.id.BeginString {
	case fix.BeginStringFIX40, fix.BeginStringFIX41:
		return end == 999999
	case fix.BeginStringFIX42:
		return end == 0 || end == 999999
	}
	return end == 0
}

// resendMessages resends the stored messages in [begin, end]. Admin
// messages, messages the application refuses and holes in the store are
// replaced by SequenceReset-GapFill messages, one per run.
func (s *Session) resendMessages(begin, end int) error {
	raws, err := s.store.GetMessages(begin, end)
	if err != nil {
		return fmt.Errorf("load messages %d-%d: %w", begin, end, err)
	}

	gapStart := 0
	next := begin
	for _, raw := range raws {
		msg, err := fix.ParseMessageWithDictionary(raw, s.dictionary(), false)
		if err != nil {
			s.log.OnErrorEvent("Cannot resend stored message: " + err.Error())
			continue
		}
		seq, err := msg.SeqNum()
		if err != nil {
			continue
		}
		if seq > next && gapStart == 0 {
			gapStart = next
		}

		if msg.IsAdmin() || !s.resendApproved(msg) {
			if gapStart == 0 {
				gapStart = seq
			}
		} else {
			if gapStart != 0 {
				if err := s.generateSequenceReset(gapStart, seq); err != nil {
					return err
				}
				gapStart = 0
			}
			msgType, _ := msg.MsgType()
			if err := s.transmit(msg.String(), msgType); err != nil {
				return err
			}
			s.log.OnEvent(fmt.Sprintf("Resending message: %d", seq))
			s.metrics.resent()
		}
		next = seq + 1
	}

	if next <= end && gapStart == 0 {
		gapStart = next
	}
	if gapStart != 0 {
		return s.generateSequenceReset(gapStart, end+1)
	}
	return nil
}

// resendApproved marks msg as a possible duplicate and asks the application
// whether it may go out again.
func (s *Session) resendApproved(msg *fix.Message) bool {
	if sent, err := msg.Header.GetString(fix.TagSendingTime); err == nil {
		msg.Header.SetString(fix.TagOrigSendingTime, sent)
	}
	msg.Header.SetBool(fix.TagPossDupFlag, true)
	msg.Header.SetUTCTimestamp(fix.TagSendingTime, s.now(), s.settings.TimestampPrecision)

	if err := s.app.ToApp(msg, s.id); err != nil {
		if !errors.Is(err, fix.ErrDoNotSend) {
			s.log.OnErrorEvent("Resend refused: " + err.Error())
		}
		return false
	}
	return true
}
