package session

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/stephenlclarke/fixengine/datadictionary"
	"github.com/stephenlclarke/fixengine/fix"
)

func outboundOrder(clOrdID string) *fix.Message {
	m := fix.NewMessage()
	m.Header.SetString(fix.TagMsgType, "D")
	m.Body.SetString(11, clOrdID)
	m.Body.SetString(55, "IBM")
	return m
}

// badChecksum rewrites the CheckSum of raw to a wrong value.
func badChecksum(raw string) string {
	body, sum := raw[:len(raw)-4], raw[len(raw)-4:len(raw)-1]
	if sum == "000" {
		return body + "001\x01"
	}
	return body + "000\x01"
}

func TestAcceptorLogon(t *testing.T) {
	h := newHarness(t, nil)
	assert.Equal(t, NotLoggedOn, h.s.State().Status())

	h.deliver(t, h.logon(1))

	st := h.s.State()
	assert.Equal(t, LoggedOn, st.Status())
	assert.True(t, st.LogonSent())
	assert.True(t, st.LogonReceived())
	assert.Equal(t, 1, h.app.logons)

	reply := h.r.last(t)
	assert.True(t, reply.IsMsgTypeOf(fix.MsgTypeLogon))
	assert.Equal(t, 1, intField(t, &reply.Header, fix.TagMsgSeqNum))
	assert.Equal(t, 30, intField(t, &reply.Body, fix.TagHeartBtInt))
	assert.Equal(t, "ISLD", strField(t, &reply.Header, fix.TagSenderCompID))
	assert.Equal(t, "TW", strField(t, &reply.Header, fix.TagTargetCompID))

	assert.Equal(t, 2, h.s.Store().NextTargetMsgSeqNum())
	assert.Equal(t, 2, h.s.Store().NextSenderMsgSeqNum())
}

func TestInitiatorLogon(t *testing.T) {
	h := newHarness(t, func(s *Settings) { s.ConnectionType = Initiator })

	require.NoError(t, h.s.Tick())
	assert.Equal(t, LogonPending, h.s.State().Status())
	assert.Equal(t, []string{fix.MsgTypeLogon}, h.r.msgTypes(t))

	require.NoError(t, h.s.Tick())
	assert.Len(t, h.r.sent, 1, "logon is sent once")

	h.deliver(t, h.logon(1))
	assert.Equal(t, LoggedOn, h.s.State().Status())
	assert.Len(t, h.r.sent, 1, "initiator does not answer the logon response")
	assert.Equal(t, 1, h.app.logons)
}

func TestInitiatorLogonTimeout(t *testing.T) {
	h := newHarness(t, func(s *Settings) { s.ConnectionType = Initiator })
	require.NoError(t, h.s.Tick())

	h.clock.advance(9 * time.Second)
	require.NoError(t, h.s.Tick())
	assert.False(t, h.r.disconnected)

	h.clock.advance(time.Second)
	require.NoError(t, h.s.Tick())
	assert.True(t, h.r.disconnected)
	assert.Equal(t, Disconnected, h.s.State().Status())
}

func TestInitiatorLogonResponseBeforeRequest(t *testing.T) {
	h := newHarness(t, func(s *Settings) { s.ConnectionType = Initiator })

	h.deliver(t, h.logon(1))
	assert.True(t, h.r.disconnected)
	assert.Empty(t, h.r.sent)
}

func TestGapSendsOneResendRequestAndReplaysQueue(t *testing.T) {
	h := newHarness(t, nil)
	h.loggedOn(t)

	h.deliver(t, h.order(5))
	h.deliver(t, h.order(6))

	require.Equal(t, []string{fix.MsgTypeResendRequest}, h.r.msgTypes(t))
	rr := h.r.last(t)
	assert.Equal(t, 2, intField(t, &rr.Body, fix.TagBeginSeqNo))
	assert.Equal(t, 0, intField(t, &rr.Body, fix.TagEndSeqNo))
	assert.Equal(t, []int{5, 6}, h.s.State().QueuedSeqNums())
	assert.Empty(t, h.app.fromApp)

	for seq := 2; seq <= 4; seq++ {
		h.deliver(t, h.order(seq))
	}

	assert.Equal(t, []int{2, 3, 4, 5, 6}, h.app.fromApp)
	assert.Equal(t, 7, h.s.Store().NextTargetMsgSeqNum())
	assert.Empty(t, h.s.State().QueuedSeqNums())
	assert.False(t, h.s.State().resendRequested())
	assert.Equal(t, []string{fix.MsgTypeResendRequest}, h.r.msgTypes(t), "no second ResendRequest")
}

func TestClosedResendInterval(t *testing.T) {
	h := newHarness(t, func(s *Settings) { s.ClosedResendInterval = true })
	h.loggedOn(t)

	h.deliver(t, h.order(4))
	rr := h.r.last(t)
	assert.Equal(t, 2, intField(t, &rr.Body, fix.TagBeginSeqNo))
	assert.Equal(t, 3, intField(t, &rr.Body, fix.TagEndSeqNo))
}

func TestRedundantResendRequests(t *testing.T) {
	h := newHarness(t, func(s *Settings) { s.SendRedundantResendRequests = true })
	h.loggedOn(t)

	h.deliver(t, h.order(5))
	h.deliver(t, h.order(6))
	assert.Equal(t, []string{fix.MsgTypeResendRequest, fix.MsgTypeResendRequest}, h.r.msgTypes(t))
}

func TestTestRequestAnsweredWithHeartbeat(t *testing.T) {
	h := newHarness(t, nil)
	h.loggedOn(t)

	tr := h.inbound(fix.MsgTypeTestRequest, 2)
	tr.Body.SetString(fix.TagTestReqID, "abc")
	h.deliver(t, tr)

	hb := h.r.last(t)
	assert.True(t, hb.IsMsgTypeOf(fix.MsgTypeHeartbeat))
	assert.Equal(t, "abc", strField(t, &hb.Body, fix.TagTestReqID))
	assert.Equal(t, 3, h.s.Store().NextTargetMsgSeqNum())
}

func TestHeartbeatTimers(t *testing.T) {
	h := newHarness(t, nil)
	h.loggedOn(t)

	h.clock.advance(29 * time.Second)
	require.NoError(t, h.s.Tick())
	assert.Empty(t, h.r.sent)

	h.clock.advance(time.Second)
	require.NoError(t, h.s.Tick())
	assert.Equal(t, []string{fix.MsgTypeHeartbeat}, h.r.msgTypes(t))

	h.clock.advance(6 * time.Second)
	require.NoError(t, h.s.Tick())
	tr := h.r.last(t)
	require.True(t, tr.IsMsgTypeOf(fix.MsgTypeTestRequest))
	assert.NotEmpty(t, strField(t, &tr.Body, fix.TagTestReqID))

	h.clock.advance(36 * time.Second)
	require.NoError(t, h.s.Tick())
	assert.True(t, h.r.disconnected)
	assert.Equal(t, 1, h.app.logouts)
}

func TestHeartbeatResetsTestRequestCounter(t *testing.T) {
	h := newHarness(t, nil)
	h.loggedOn(t)

	h.clock.advance(36 * time.Second)
	require.NoError(t, h.s.Tick())
	require.Equal(t, 1, h.s.State().testRequestCounter)

	h.deliver(t, h.inbound(fix.MsgTypeHeartbeat, 2))
	assert.Equal(t, 0, h.s.State().testRequestCounter)
	assert.Equal(t, 3, h.s.Store().NextTargetMsgSeqNum())
}

func TestSequenceReset(t *testing.T) {
	h := newHarness(t, nil)
	h.loggedOn(t)

	gf := h.inbound(fix.MsgTypeSequenceReset, 2)
	gf.Body.SetBool(fix.TagGapFillFlag, true)
	gf.Body.SetInt(fix.TagNewSeqNo, 10)
	h.deliver(t, gf)
	assert.Equal(t, 10, h.s.Store().NextTargetMsgSeqNum())
	assert.Empty(t, h.r.sent)

	back := h.inbound(fix.MsgTypeSequenceReset, 10)
	back.Body.SetInt(fix.TagNewSeqNo, 5)
	h.deliver(t, back)

	reject := h.r.last(t)
	require.True(t, reject.IsMsgTypeOf(fix.MsgTypeReject))
	assert.Equal(t, 10, intField(t, &reject.Body, fix.TagRefSeqNum))
	assert.Equal(t, fix.MsgTypeSequenceReset, strField(t, &reject.Body, fix.TagRefMsgType))
	assert.Equal(t, int(fix.RejectReasonValueIsIncorrect), intField(t, &reject.Body, fix.TagSessionRejectReason))
	assert.Equal(t, fix.TagNewSeqNo, intField(t, &reject.Body, fix.TagRefTagID))
	assert.Equal(t, 10, h.s.Store().NextTargetMsgSeqNum())
}

func TestLogoutRequest(t *testing.T) {
	h := newHarness(t, nil)
	h.loggedOn(t)

	h.deliver(t, h.inbound(fix.MsgTypeLogout, 2))

	assert.Equal(t, []string{fix.MsgTypeLogout}, h.r.msgTypes(t))
	assert.True(t, h.r.disconnected)
	assert.Equal(t, Disconnected, h.s.State().Status())
	assert.False(t, h.s.State().LoggedOn())
	assert.Equal(t, 1, h.app.logouts)
	assert.Equal(t, 3, h.s.Store().NextTargetMsgSeqNum())
}

func TestResetOnLogout(t *testing.T) {
	h := newHarness(t, func(s *Settings) { s.ResetOnLogout = true })
	h.loggedOn(t)

	h.deliver(t, h.inbound(fix.MsgTypeLogout, 2))
	assert.Equal(t, 1, h.s.Store().NextTargetMsgSeqNum())
	assert.Equal(t, 1, h.s.Store().NextSenderMsgSeqNum())
}

func TestApplicationLogout(t *testing.T) {
	h := newHarness(t, nil)
	h.loggedOn(t)

	h.s.Logout("end of day")
	assert.Empty(t, h.r.sent, "logout waits for the next tick")
	require.NoError(t, h.s.Tick())

	logout := h.r.last(t)
	require.True(t, logout.IsMsgTypeOf(fix.MsgTypeLogout))
	assert.Equal(t, "end of day", strField(t, &logout.Body, fix.TagText))
	assert.Equal(t, LogoutPending, h.s.State().Status())

	h.deliver(t, h.inbound(fix.MsgTypeLogout, 2))
	assert.Len(t, h.r.sent, 1, "a logout response is not answered")
	assert.True(t, h.r.disconnected)
}

func TestLogoutTimeout(t *testing.T) {
	h := newHarness(t, nil)
	h.loggedOn(t)

	h.s.Logout("")
	require.NoError(t, h.s.Tick())
	h.clock.advance(2 * time.Second)
	require.NoError(t, h.s.Tick())
	assert.True(t, h.r.disconnected)
}

func TestResendRequestGapFillsAdminMessages(t *testing.T) {
	h := newHarness(t, nil)
	h.loggedOn(t)

	require.NoError(t, h.s.Send(outboundOrder("A")))
	require.NoError(t, h.s.Send(outboundOrder("B")))
	require.NoError(t, h.s.generateHeartbeat(""))
	require.NoError(t, h.s.Send(outboundOrder("C")))
	h.r.clear()

	rr := h.inbound(fix.MsgTypeResendRequest, 2)
	rr.Body.SetInt(fix.TagBeginSeqNo, 1)
	rr.Body.SetInt(fix.TagEndSeqNo, 0)
	h.deliver(t, rr)

	msgs := h.r.messages(t)
	require.Equal(t, []string{"4", "D", "D", "4", "D"}, h.r.msgTypes(t))

	assert.Equal(t, 1, intField(t, &msgs[0].Header, fix.TagMsgSeqNum))
	assert.Equal(t, 2, intField(t, &msgs[0].Body, fix.TagNewSeqNo))
	assert.True(t, msgs[0].Body.BoolOr(fix.TagGapFillFlag, false))

	assert.Equal(t, 2, intField(t, &msgs[1].Header, fix.TagMsgSeqNum))
	assert.Equal(t, "A", strField(t, &msgs[1].Body, 11))
	assert.True(t, msgs[1].Header.BoolOr(fix.TagPossDupFlag, false))
	assert.True(t, msgs[1].Header.Has(fix.TagOrigSendingTime))

	assert.Equal(t, 4, intField(t, &msgs[3].Header, fix.TagMsgSeqNum))
	assert.Equal(t, 5, intField(t, &msgs[3].Body, fix.TagNewSeqNo))
	assert.Equal(t, 5, intField(t, &msgs[4].Header, fix.TagMsgSeqNum))

	assert.Equal(t, 6, h.s.Store().NextSenderMsgSeqNum(), "resending uses no new sequence numbers")
	assert.Equal(t, 3, h.s.Store().NextTargetMsgSeqNum())
}

func TestResendRequestGapFillsVetoedMessages(t *testing.T) {
	h := newHarness(t, nil)
	h.loggedOn(t)

	require.NoError(t, h.s.Send(outboundOrder("A")))
	require.NoError(t, h.s.Send(outboundOrder("B")))
	h.r.clear()
	h.app.toAppErr = fix.ErrDoNotSend

	rr := h.inbound(fix.MsgTypeResendRequest, 2)
	rr.Body.SetInt(fix.TagBeginSeqNo, 2)
	rr.Body.SetInt(fix.TagEndSeqNo, 3)
	h.deliver(t, rr)

	require.Equal(t, []string{fix.MsgTypeSequenceReset}, h.r.msgTypes(t))
	sr := h.r.last(t)
	assert.Equal(t, 2, intField(t, &sr.Header, fix.TagMsgSeqNum))
	assert.Equal(t, 4, intField(t, &sr.Body, fix.TagNewSeqNo))
}

func TestResendRequestWithoutPersistence(t *testing.T) {
	h := newHarness(t, func(s *Settings) { s.PersistMessages = false })
	h.loggedOn(t)
	require.NoError(t, h.s.Send(outboundOrder("A")))
	h.r.clear()

	rr := h.inbound(fix.MsgTypeResendRequest, 2)
	rr.Body.SetInt(fix.TagBeginSeqNo, 1)
	rr.Body.SetInt(fix.TagEndSeqNo, 0)
	h.deliver(t, rr)

	require.Equal(t, []string{fix.MsgTypeSequenceReset}, h.r.msgTypes(t))
	assert.Equal(t, 3, intField(t, &h.r.last(t).Body, fix.TagNewSeqNo))
}

func TestSeqNumTooLowDisconnects(t *testing.T) {
	h := newHarness(t, nil)
	h.loggedOn(t)

	h.deliver(t, h.order(1))

	logout := h.r.last(t)
	require.True(t, logout.IsMsgTypeOf(fix.MsgTypeLogout))
	assert.Equal(t, "MsgSeqNum too low, expecting 2 but received 1", strField(t, &logout.Body, fix.TagText))
	assert.True(t, h.r.disconnected)
}

func TestPossDupTooLow(t *testing.T) {
	t.Run("ignored", func(t *testing.T) {
		h := newHarness(t, nil)
		h.loggedOn(t)
		dup := h.order(1)
		dup.Header.SetBool(fix.TagPossDupFlag, true)
		dup.Header.SetUTCTimestamp(fix.TagOrigSendingTime, h.clock.now().Add(-time.Minute), fix.Millis)
		h.deliver(t, dup)

		assert.Empty(t, h.r.sent)
		assert.Empty(t, h.app.fromApp)
		assert.Equal(t, 2, h.s.Store().NextTargetMsgSeqNum())
	})

	t.Run("missing OrigSendingTime", func(t *testing.T) {
		h := newHarness(t, nil)
		h.loggedOn(t)
		dup := h.order(1)
		dup.Header.SetBool(fix.TagPossDupFlag, true)
		h.deliver(t, dup)

		reject := h.r.last(t)
		require.True(t, reject.IsMsgTypeOf(fix.MsgTypeReject))
		assert.Equal(t, int(fix.RejectReasonRequiredTagMissing), intField(t, &reject.Body, fix.TagSessionRejectReason))
		assert.Equal(t, fix.TagOrigSendingTime, intField(t, &reject.Body, fix.TagRefTagID))
		assert.Equal(t, 2, h.s.Store().NextTargetMsgSeqNum())
	})

	t.Run("OrigSendingTime after SendingTime", func(t *testing.T) {
		h := newHarness(t, nil)
		h.loggedOn(t)
		dup := h.order(1)
		dup.Header.SetBool(fix.TagPossDupFlag, true)
		dup.Header.SetUTCTimestamp(fix.TagOrigSendingTime, h.clock.now().Add(time.Minute), fix.Millis)
		h.deliver(t, dup)

		assert.Equal(t, []string{fix.MsgTypeReject, fix.MsgTypeLogout}, h.r.msgTypes(t))
		reject := h.r.messages(t)[0]
		assert.Equal(t, int(fix.RejectReasonSendingTimeAccuracyProblem), intField(t, &reject.Body, fix.TagSessionRejectReason))
	})
}

func TestBadCompID(t *testing.T) {
	h := newHarness(t, nil)
	h.loggedOn(t)

	m := h.inbound(fix.MsgTypeHeartbeat, 2)
	m.Header.SetString(fix.TagSenderCompID, "XX")
	h.deliver(t, m)

	require.Equal(t, []string{fix.MsgTypeReject, fix.MsgTypeLogout}, h.r.msgTypes(t))
	reject := h.r.messages(t)[0]
	assert.Equal(t, int(fix.RejectReasonCompIDProblem), intField(t, &reject.Body, fix.TagSessionRejectReason))
	assert.Equal(t, "TW", strField(t, &reject.Header, fix.TagTargetCompID))
	assert.Equal(t, 3, h.s.Store().NextTargetMsgSeqNum())
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.rejects.WithLabelValues(testID.String(), "9")))
}

func TestBadSendingTime(t *testing.T) {
	h := newHarness(t, nil)
	h.loggedOn(t)

	m := h.inbound(fix.MsgTypeHeartbeat, 2)
	m.Header.SetUTCTimestamp(fix.TagSendingTime, h.clock.now().Add(-5*time.Minute), fix.Millis)
	h.deliver(t, m)

	require.Equal(t, []string{fix.MsgTypeReject, fix.MsgTypeLogout}, h.r.msgTypes(t))
	reject := h.r.messages(t)[0]
	assert.Equal(t, int(fix.RejectReasonSendingTimeAccuracyProblem), intField(t, &reject.Body, fix.TagSessionRejectReason))
	assert.Equal(t, fix.TagSendingTime, intField(t, &reject.Body, fix.TagRefTagID))
}

func TestUnsupportedVersionLogsOut(t *testing.T) {
	h := newHarness(t, nil)
	h.loggedOn(t)

	m := h.inbound(fix.MsgTypeHeartbeat, 2)
	m.Header.SetString(fix.TagBeginString, fix.BeginStringFIX42)
	h.deliver(t, m)

	assert.Equal(t, []string{fix.MsgTypeLogout}, h.r.msgTypes(t))
	assert.True(t, h.r.disconnected)
}

func TestRejectLogon(t *testing.T) {
	h := newHarness(t, nil)
	h.app.fromAdminErr = fix.RejectLogon("bad password")

	h.deliver(t, h.logon(1))

	logout := h.r.last(t)
	require.True(t, logout.IsMsgTypeOf(fix.MsgTypeLogout))
	assert.Equal(t, "bad password", strField(t, &logout.Body, fix.TagText))
	assert.True(t, h.r.disconnected)
	assert.Zero(t, h.app.logons)
	assert.Zero(t, h.app.logouts)
}

func TestApplicationErrorsBecomeRejects(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		msgType    string
		reasonTag  int
		reason     int
		refTagID   int
		textSuffix string
	}{
		{"unsupported message type", fix.ErrUnsupportedMessageType, fix.MsgTypeBusinessMessageReject, fix.TagBusinessRejectReason, int(fix.BusinessRejectReasonUnsupportedMessageType), 0, ""},
		{"conditionally required field", fix.FieldNotFound(55), fix.MsgTypeBusinessMessageReject, fix.TagBusinessRejectReason, int(fix.BusinessRejectReasonConditionallyRequiredField), 0, "(55)"},
		{"incorrect tag value", fix.IncorrectTagValue(54), fix.MsgTypeReject, fix.TagSessionRejectReason, int(fix.RejectReasonValueIsIncorrect), 54, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.loggedOn(t)
			h.app.fromAppErr = tt.err

			h.deliver(t, h.order(2))

			reject := h.r.last(t)
			require.True(t, reject.IsMsgTypeOf(tt.msgType))
			assert.Equal(t, 2, intField(t, &reject.Body, fix.TagRefSeqNum))
			assert.Equal(t, "D", strField(t, &reject.Body, fix.TagRefMsgType))
			assert.Equal(t, tt.reason, intField(t, &reject.Body, tt.reasonTag))
			if tt.refTagID != 0 {
				assert.Equal(t, tt.refTagID, intField(t, &reject.Body, fix.TagRefTagID))
			}
			assert.Contains(t, strField(t, &reject.Body, fix.TagText), tt.textSuffix)
			assert.Equal(t, 3, h.s.Store().NextTargetMsgSeqNum())
		})
	}
}

func TestFIX42RejectOmitsLaterReasons(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		hasReason  bool
		textSuffix string
	}{
		{"reason known to FIX.4.2", fix.IncorrectTagValue(54), true, "Value is incorrect"},
		{"group fields out of order", fix.NewFieldError(fix.RejectReasonRepeatingGroupFieldsOutOfOrder, 269), false, "Repeating group fields out of order"},
		{"other", fix.NewFieldError(fix.RejectReasonOther, 55), false, "Other"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, func(s *Settings) { s.SessionID.BeginString = fix.BeginStringFIX42 })
			h.loggedOn(t)
			h.app.fromAppErr = tt.err

			h.deliver(t, h.order(2))

			reject := h.r.last(t)
			require.True(t, reject.IsMsgTypeOf(fix.MsgTypeReject))
			assert.Equal(t, tt.hasReason, reject.Body.Has(fix.TagSessionRejectReason))
			assert.Contains(t, strField(t, &reject.Body, fix.TagText), tt.textSuffix)
			assert.True(t, reject.Body.Has(fix.TagRefTagID))
			assert.Equal(t, 3, h.s.Store().NextTargetMsgSeqNum())
		})
	}
}

func TestRejectBeforeLogon(t *testing.T) {
	dd, err := datadictionary.Embedded(fix.BeginStringFIX44)
	require.NoError(t, err)
	h := newHarness(t, func(s *Settings) { s.Dictionary = dd })

	err = h.s.NextRaw(h.order(1).String())
	require.ErrorIs(t, err, ErrRejectBeforeLogon)
	assert.True(t, h.r.disconnected)
	assert.Empty(t, h.r.sent)

	err = h.s.generateReject(h.order(1), fix.RejectReasonOther, 0)
	assert.ErrorIs(t, err, ErrRejectBeforeLogon)
}

func TestDictionaryValidationRejects(t *testing.T) {
	dd, err := datadictionary.Embedded(fix.BeginStringFIX44)
	require.NoError(t, err)
	h := newHarness(t, func(s *Settings) { s.Dictionary = dd })
	h.loggedOn(t)

	h.deliver(t, h.inbound("ZZ", 2))

	reject := h.r.last(t)
	require.True(t, reject.IsMsgTypeOf(fix.MsgTypeReject))
	assert.Equal(t, int(fix.RejectReasonInvalidMsgType), intField(t, &reject.Body, fix.TagSessionRejectReason))
	assert.Equal(t, fix.TagMsgType, intField(t, &reject.Body, fix.TagRefTagID))
	assert.Equal(t, "ZZ", strField(t, &reject.Body, fix.TagRefMsgType))
	assert.Equal(t, 3, h.s.Store().NextTargetMsgSeqNum())
}

func TestInvalidMessagesAreSkipped(t *testing.T) {
	h := newHarness(t, nil)
	h.loggedOn(t)

	require.NoError(t, h.s.NextRaw(badChecksum(h.inbound(fix.MsgTypeHeartbeat, 2).String())))
	assert.Empty(t, h.r.sent)
	assert.False(t, h.r.disconnected)
	assert.Equal(t, 2, h.s.Store().NextTargetMsgSeqNum())
}

func TestInvalidLogonDisconnects(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.s.NextRaw(badChecksum(h.logon(1).String())))
	assert.True(t, h.r.disconnected)
}

func TestAppMessagesStoredWhileLoggedOff(t *testing.T) {
	h := newHarness(t, nil)

	require.NoError(t, h.s.Send(outboundOrder("A")))
	assert.Empty(t, h.r.sent)
	assert.Equal(t, 2, h.s.Store().NextSenderMsgSeqNum())

	stored, err := h.s.Store().GetMessages(1, 1)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Contains(t, stored[0], "\x0111=A\x01")
}

func TestDoNotSend(t *testing.T) {
	h := newHarness(t, nil)
	h.loggedOn(t)
	h.app.toAppErr = fix.ErrDoNotSend

	require.NoError(t, h.s.Send(outboundOrder("A")))
	assert.Empty(t, h.r.sent)
	assert.Equal(t, 2, h.s.Store().NextSenderMsgSeqNum())
}

func TestLogonWithResetSeqNumFlag(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.s.Store().SetNextSenderMsgSeqNum(5))
	require.NoError(t, h.s.Store().SetNextTargetMsgSeqNum(7))

	logon := h.logon(1)
	logon.Body.SetBool(fix.TagResetSeqNumFlag, true)
	h.deliver(t, logon)

	reply := h.r.last(t)
	assert.True(t, reply.Body.BoolOr(fix.TagResetSeqNumFlag, false))
	assert.Equal(t, 1, intField(t, &reply.Header, fix.TagMsgSeqNum))
	assert.Equal(t, 2, h.s.Store().NextTargetMsgSeqNum())
	assert.Equal(t, 2, h.s.Store().NextSenderMsgSeqNum())
	assert.True(t, h.s.State().LoggedOn())
}

func TestResetLogonWhileLoggedOn(t *testing.T) {
	h := newHarness(t, nil)
	h.loggedOn(t)
	h.deliver(t, h.order(2))
	h.r.clear()

	logon := h.logon(1)
	logon.Body.SetBool(fix.TagResetSeqNumFlag, true)
	h.deliver(t, logon)

	reply := h.r.last(t)
	require.True(t, reply.IsMsgTypeOf(fix.MsgTypeLogon))
	assert.True(t, reply.Body.BoolOr(fix.TagResetSeqNumFlag, false))
	assert.Equal(t, 1, intField(t, &reply.Header, fix.TagMsgSeqNum))
	assert.Equal(t, LoggedOn, h.s.State().Status())
	assert.Equal(t, 2, h.s.Store().NextTargetMsgSeqNum())
	assert.Zero(t, h.logs.FilterLevelExact(zapcore.ErrorLevel).Len())
}

func TestLogonSeqNumTooHigh(t *testing.T) {
	h := newHarness(t, nil)

	h.deliver(t, h.logon(3))
	assert.True(t, h.s.State().LoggedOn())
	assert.Equal(t, []string{fix.MsgTypeLogon, fix.MsgTypeResendRequest}, h.r.msgTypes(t))
	assert.Equal(t, 1, h.s.Store().NextTargetMsgSeqNum())

	h.deliver(t, h.order(1))
	h.deliver(t, h.order(2))
	assert.Equal(t, 4, h.s.Store().NextTargetMsgSeqNum(), "queued logon only advances the sequence")
	assert.Equal(t, []int{1, 2}, h.app.fromApp)
}

func TestTickOutsideScheduleResets(t *testing.T) {
	h := newHarness(t, func(s *Settings) {
		s.Schedule = NewDailySchedule(TimeOfDay{Hour: 9}, TimeOfDay{Hour: 17}, time.UTC)
	})
	h.loggedOn(t)
	require.NoError(t, h.s.Send(outboundOrder("A")))
	h.r.clear()

	h.clock.advance(6 * time.Hour)
	require.NoError(t, h.s.Tick())

	assert.Equal(t, []string{fix.MsgTypeLogout}, h.r.msgTypes(t))
	assert.True(t, h.r.disconnected)
	assert.Equal(t, 1, h.s.Store().NextSenderMsgSeqNum())
	assert.Equal(t, 1, h.s.Store().NextTargetMsgSeqNum())

	require.NoError(t, h.s.Store().SetNextSenderMsgSeqNum(3))
	require.NoError(t, h.s.Tick())
	assert.Equal(t, 3, h.s.Store().NextSenderMsgSeqNum(), "reset happens once per closed period")
}

func TestMetrics(t *testing.T) {
	h := newHarness(t, nil)
	label := testID.String()
	assert.Equal(t, float64(NotLoggedOn), testutil.ToFloat64(h.metrics.status.WithLabelValues(label)))

	h.loggedOn(t)
	assert.Equal(t, float64(LoggedOn), testutil.ToFloat64(h.metrics.status.WithLabelValues(label)))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.received.WithLabelValues(label, fix.MsgTypeLogon)))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.sent.WithLabelValues(label, fix.MsgTypeLogon)))

	h.deliver(t, h.order(3))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.resendRequests.WithLabelValues(label)))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.received.WithLabelValues(label, "D")))

	h.deliver(t, h.order(2))
	assert.Equal(t, []int{2, 3}, h.app.fromApp)
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.received.WithLabelValues(label, "D")), "replayed messages count once")
}

func TestNewRejectsBadSettings(t *testing.T) {
	settings := DefaultSettings()
	_, err := New(settings, nil, nil, nil)
	assert.Error(t, err)

	settings.SessionID = testID
	settings.ConnectionType = Initiator
	settings.HeartBtInt = 0
	_, err = New(settings, nil, nil, nil)
	assert.Error(t, err)
}
