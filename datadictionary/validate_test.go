package datadictionary_test

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stephenlclarke/fixengine/datadictionary"
	"github.com/stephenlclarke/fixengine/fix"
)

func fix42(t *testing.T) *datadictionary.DataDictionary {
	t.Helper()
	dd, err := datadictionary.Embedded(fix.BeginStringFIX42)
	require.NoError(t, err)
	return dd
}

func newMsg(msgType string) *fix.Message {
	m := fix.NewMessage()
	m.Header.SetString(fix.TagBeginString, fix.BeginStringFIX42)
	m.Header.SetString(fix.TagMsgType, msgType)
	m.Header.SetString(fix.TagSenderCompID, "ISLD")
	m.Header.SetString(fix.TagTargetCompID, "TW")
	m.Header.SetInt(fix.TagMsgSeqNum, 1)
	m.Header.SetUTCTimestamp(fix.TagSendingTime, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), fix.Millis)
	return m
}

// roundTrip serializes m and parses it back with dd, as a receiving session would.
func roundTrip(t *testing.T, dd *datadictionary.DataDictionary, raw string) *fix.Message {
	t.Helper()
	m, err := fix.ParseMessageWithDictionary(raw, dd, true)
	require.NoError(t, err)
	return m
}

func requireReason(t *testing.T, err error, reason fix.RejectReason, tag int) {
	t.Helper()
	var fe *fix.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, reason, fe.Reason, fe.Error())
	assert.Equal(t, tag, fe.Tag, fe.Error())
}

// frame wraps fields with correct BodyLength and CheckSum.
func frame(rest string) string {
	head := "8=FIX.4.2\x019=" + strconv.Itoa(len(rest)) + "\x01" + rest
	return head + "10=" + fix.FormatChecksum(fix.Checksum(head)) + "\x01"
}

const stdHeader = "49=ISLD\x0156=TW\x0134=1\x0152=20250102-03:04:05.000\x01"

func TestValidateLogonPasses(t *testing.T) {
	dd := fix42(t)
	m := newMsg(fix.MsgTypeLogon)
	m.Body.SetInt(fix.TagEncryptMethod, 0)
	m.Body.SetInt(fix.TagHeartBtInt, 30)
	assert.NoError(t, dd.Validate(roundTrip(t, dd, m.String())))
}

func TestValidateWrongBeginString(t *testing.T) {
	dd := fix42(t)
	m := newMsg(fix.MsgTypeHeartbeat)
	m.Header.SetString(fix.TagBeginString, fix.BeginStringFIX44)
	var uv *fix.UnsupportedVersionError
	require.ErrorAs(t, dd.Validate(m), &uv)
	assert.Equal(t, fix.BeginStringFIX44, uv.Received)
}

func TestValidateConsecutiveDuplicate(t *testing.T) {
	dd := fix42(t)
	m := roundTrip(t, dd, frame("35=1\x01"+stdHeader+"112=A\x01112=B\x01"))
	requireReason(t, dd.Validate(m), fix.RejectReasonTagAppearsMoreThanOnce, 112)
}

func TestValidateRequiredHeaderFieldMissing(t *testing.T) {
	dd := fix42(t)
	m := newMsg(fix.MsgTypeHeartbeat)
	m.Header.Remove(fix.TagSenderCompID)
	m = roundTrip(t, dd, m.String())
	requireReason(t, dd.Validate(m), fix.RejectReasonRequiredTagMissing, fix.TagSenderCompID)
}

func TestValidateRequiredBodyFieldMissing(t *testing.T) {
	dd := fix42(t)
	m := newMsg(fix.MsgTypeTestRequest)
	m = roundTrip(t, dd, m.String())
	requireReason(t, dd.Validate(m), fix.RejectReasonRequiredTagMissing, fix.TagTestReqID)
}

func TestValidateRequiredFieldInGroup(t *testing.T) {
	dd := fix42(t)
	raw := frame("35=W\x01" + stdHeader + "55=EUR/USD\x01268=1\x01269=0\x01")
	requireReason(t, dd.Validate(roundTrip(t, dd, raw)), fix.RejectReasonRequiredTagMissing, 270)
}

func TestValidateNumInGroupMismatch(t *testing.T) {
	dd := fix42(t)
	raw := frame("35=W\x01" + stdHeader + "55=EUR/USD\x01268=3\x01269=0\x01270=1.1\x01269=1\x01270=1.2\x01")
	requireReason(t, dd.Validate(roundTrip(t, dd, raw)), fix.RejectReasonIncorrectNumInGroupCount, 268)
}

func TestValidateGroupPasses(t *testing.T) {
	dd := fix42(t)
	m := newMsg("W")
	m.Body.SetString(55, "EUR/USD")
	for _, side := range []string{"0", "1"} {
		g := fix.NewGroup(268, 269, 269, 270, 271)
		g.SetString(269, side)
		g.SetString(270, "1.25")
		m.Body.AddGroup(g)
	}
	parsed := roundTrip(t, dd, m.String())
	require.NoError(t, dd.Validate(parsed))
	assert.Equal(t, 2, parsed.Body.GroupCount(268))
}

func TestValidateUnknownMsgType(t *testing.T) {
	dd := fix42(t)
	m := roundTrip(t, dd, newMsg("ZZ").String())
	requireReason(t, dd.Validate(m), fix.RejectReasonInvalidMsgType, fix.TagMsgType)
}

func TestValidateFieldChecks(t *testing.T) {
	dd := fix42(t)
	cases := []struct {
		name   string
		body   string
		reason fix.RejectReason
		tag    int
	}{
		{"empty value", "112=\x01", fix.RejectReasonTagSpecifiedWithoutValue, 112},
		{"invalid tag", "112=X\x014999=1\x01", fix.RejectReasonInvalidTagNumber, 4999},
		{"not in message", "112=X\x0155=IBM\x01", fix.RejectReasonTagNotDefinedForMessageType, 55},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			m := roundTrip(t, dd, frame("35=1\x01"+stdHeader+c.body))
			requireReason(t, dd.Validate(m), c.reason, c.tag)
		})
	}
}

func TestValidateEnumAndFormat(t *testing.T) {
	dd := fix42(t)
	m := newMsg(fix.MsgTypeLogon)
	m.Body.SetInt(fix.TagEncryptMethod, 9)
	m.Body.SetInt(fix.TagHeartBtInt, 30)
	requireReason(t, dd.Validate(roundTrip(t, dd, m.String())), fix.RejectReasonValueIsIncorrect, fix.TagEncryptMethod)

	m.Body.SetInt(fix.TagEncryptMethod, 0)
	m.Body.SetString(fix.TagHeartBtInt, "thirty")
	requireReason(t, dd.Validate(roundTrip(t, dd, m.String())), fix.RejectReasonIncorrectDataFormat, fix.TagHeartBtInt)
}

func TestValidateUserDefinedFields(t *testing.T) {
	dd := fix42(t)
	m := roundTrip(t, dd, frame("35=1\x01"+stdHeader+"112=X\x015001=custom\x01"))
	requireReason(t, dd.Validate(m), fix.RejectReasonInvalidTagNumber, 5001)

	s := datadictionary.DefaultValidationSettings()
	s.CheckUserDefinedFields = false
	assert.NoError(t, dd.ValidateWith(m, s))
}

func TestValidateOutOfOrderHonoursSettings(t *testing.T) {
	dd := fix42(t)
	m := roundTrip(t, dd, frame("35=1\x0156=TW\x0134=1\x0152=20250102-03:04:05.000\x01112=X\x0149=ISLD\x01"))
	requireReason(t, dd.Validate(m), fix.RejectReasonTagSpecifiedOutOfRequiredOrder, fix.TagSenderCompID)

	s := datadictionary.DefaultValidationSettings()
	s.CheckFieldsOutOfOrder = false
	assert.NoError(t, dd.ValidateWith(m, s))
}

func TestValidateAllowUnknownMessageFields(t *testing.T) {
	dd := fix42(t).Clone()
	dd.SetAllowUnknownMessageFields(true)
	m := roundTrip(t, dd, frame("35=1\x01"+stdHeader+"112=X\x0155=IBM\x01"))
	assert.NoError(t, dd.Validate(m))
}

func TestValidateEmptyValueAllowedWhenDisabled(t *testing.T) {
	dd := fix42(t).Clone()
	dd.SetCheckFieldsHaveValues(false)
	m := roundTrip(t, dd, frame("35=0\x01"+stdHeader+"112=\x01"))
	assert.NoError(t, dd.Validate(m))
}

func TestParsedGroupKeepsWireOrder(t *testing.T) {
	dd, err := datadictionary.Embedded(fix.BeginStringFIX44)
	require.NoError(t, err)

	rest := "35=W\x0134=1\x0149=ISLD\x0152=20250102-03:04:05.000\x0156=TW\x01" +
		"55=EUR/USD\x01262=R1\x01268=2\x01" +
		"269=0\x01271=100\x01453=1\x01448=DESK\x01452=3\x01270=1.1\x01" +
		"269=1\x01270=1.2\x01271=50\x01"
	head := "8=FIX.4.4\x019=" + strconv.Itoa(len(rest)) + "\x01" + rest
	raw := head + "10=" + fix.FormatChecksum(fix.Checksum(head)) + "\x01"

	m := roundTrip(t, dd, raw)
	require.NoError(t, dd.Validate(m))
	entries := m.Body.Groups(268)
	require.Len(t, entries, 2)
	assert.Equal(t, []int{269, 271, 453, 270}, entries[0].Tags())
	assert.Equal(t, raw, m.String())
}
