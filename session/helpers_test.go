package session

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/stephenlclarke/fixengine/fix"
	"github.com/stephenlclarke/fixengine/sessionlog"
	"github.com/stephenlclarke/fixengine/store"
)

var testID = fix.SessionID{BeginString: fix.BeginStringFIX44, SenderCompID: "ISLD", TargetCompID: "TW"}

type fakeResponder struct {
	sent         []string
	disconnected bool
}

func (r *fakeResponder) Send(raw string) error {
	r.sent = append(r.sent, raw)
	return nil
}

func (r *fakeResponder) Disconnect() { r.disconnected = true }

func (r *fakeResponder) messages(t *testing.T) []*fix.Message {
	t.Helper()
	msgs := make([]*fix.Message, 0, len(r.sent))
	for _, raw := range r.sent {
		m, err := fix.ParseMessage(raw)
		require.NoError(t, err, raw)
		msgs = append(msgs, m)
	}
	return msgs
}

func (r *fakeResponder) last(t *testing.T) *fix.Message {
	t.Helper()
	msgs := r.messages(t)
	require.NotEmpty(t, msgs)
	return msgs[len(msgs)-1]
}

func (r *fakeResponder) msgTypes(t *testing.T) []string {
	t.Helper()
	var types []string
	for _, m := range r.messages(t) {
		mt, _ := m.MsgType()
		types = append(types, mt)
	}
	return types
}

func (r *fakeResponder) clear() { r.sent = nil }

type testClock struct{ t time.Time }

func (c *testClock) now() time.Time { return c.t }
func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

type recordingApp struct {
	NopApplication
	logons, logouts int
	fromApp         []int
	fromAdminErr    error
	fromAppErr      error
	toAppErr        error
}

func (a *recordingApp) OnLogon(fix.SessionID) { a.logons++ }
func (a *recordingApp) OnLogout(fix.SessionID) { a.logouts++ }

func (a *recordingApp) FromAdmin(msg *fix.Message, _ fix.SessionID) error {
	if msg.IsMsgTypeOf(fix.MsgTypeLogon) {
		return a.fromAdminErr
	}
	return nil
}

func (a *recordingApp) FromApp(msg *fix.Message, _ fix.SessionID) error {
	if a.fromAppErr != nil {
		return a.fromAppErr
	}
	seq, _ := msg.SeqNum()
	a.fromApp = append(a.fromApp, seq)
	return nil
}

func (a *recordingApp) ToApp(*fix.Message, fix.SessionID) error { return a.toAppErr }

type harness struct {
	s       *Session
	r       *fakeResponder
	clock   *testClock
	app     *recordingApp
	metrics *Metrics
	logs    *observer.ObservedLogs
}

func newHarness(t *testing.T, mutate func(*Settings)) *harness {
	t.Helper()
	settings := DefaultSettings()
	settings.SessionID = testID
	if mutate != nil {
		mutate(&settings)
	}
	h := &harness{
		r:       &fakeResponder{},
		clock:   &testClock{t: time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)},
		app:     &recordingApp{},
		metrics: NewMetrics(prometheus.NewRegistry()),
	}
	core, logs := observer.New(zapcore.InfoLevel)
	h.logs = logs
	logger := zap.New(zapcore.NewTee(zaptest.NewLogger(t).Core(), core))
	s, err := New(settings, store.MemoryFactory{}, sessionlog.NewZapFactory(logger, nil), h.app,
		WithClock(h.clock.now), WithMetrics(h.metrics))
	require.NoError(t, err)
	require.NoError(t, s.Connect(h.r))
	h.s = s
	return h
}

// inbound builds a message from the counterparty.
func (h *harness) inbound(msgType string, seq int) *fix.Message {
	id := h.s.ID()
	m := fix.NewMessage()
	m.Header.SetString(fix.TagBeginString, id.BeginString)
	m.Header.SetString(fix.TagMsgType, msgType)
	m.Header.SetString(fix.TagSenderCompID, id.TargetCompID)
	m.Header.SetString(fix.TagTargetCompID, id.SenderCompID)
	m.Header.SetInt(fix.TagMsgSeqNum, seq)
	m.Header.SetUTCTimestamp(fix.TagSendingTime, h.clock.now(), fix.Millis)
	return m
}

func (h *harness) logon(seq int) *fix.Message {
	m := h.inbound(fix.MsgTypeLogon, seq)
	m.Body.SetInt(fix.TagEncryptMethod, 0)
	m.Body.SetInt(fix.TagHeartBtInt, 30)
	return m
}

func (h *harness) order(seq int) *fix.Message {
	m := h.inbound("D", seq)
	m.Body.SetString(11, "ORD-1")
	m.Body.SetString(55, "IBM")
	m.Body.SetChar(54, '1')
	return m
}

func (h *harness) deliver(t *testing.T, m *fix.Message) {
	t.Helper()
	require.NoError(t, h.s.NextRaw(m.String()))
}

// loggedOn completes an acceptor logon and forgets the reply.
func (h *harness) loggedOn(t *testing.T) {
	t.Helper()
	h.deliver(t, h.logon(1))
	require.True(t, h.s.State().LoggedOn())
	h.r.clear()
}

func intField(t *testing.T, fm *fix.FieldMap, tag int) int {
	t.Helper()
	v, err := fm.GetInt(tag)
	require.NoError(t, err)
	return v
}

func strField(t *testing.T, fm *fix.FieldMap, tag int) string {
	t.Helper()
	v, err := fm.GetString(tag)
	require.NoError(t, err)
	return v
}
