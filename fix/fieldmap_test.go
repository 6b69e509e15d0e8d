package fix

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldOrderExplicitTagsFirst(t *testing.T) {
	for _, inserts := range [][]int{{1, 2, 3}, {3, 2, 1}, {2, 1, 3}, {2, 3, 1}} {
		fm := newFieldMap(1, 3)
		for _, tag := range inserts {
			fm.SetString(tag, "x")
		}
		assert.Equal(t, []int{1, 3, 2}, fm.Tags(), "inserted as %v", inserts)
	}
}

func TestFieldOrderFallsBackToTagNumber(t *testing.T) {
	var fm FieldMap
	fm.SetInt(55, 1)
	fm.SetInt(11, 2)
	fm.SetInt(38, 3)
	assert.Equal(t, []int{11, 38, 55}, fm.Tags())
	assert.Equal(t, "11=2\x0138=3\x0155=1\x01", fm.String())
}

func TestFieldMapLastSetWins(t *testing.T) {
	var fm FieldMap
	fm.SetString(58, "first")
	fm.SetString(58, "second")
	v, err := fm.GetString(58)
	require.NoError(t, err)
	assert.Equal(t, "second", v)
	assert.Equal(t, 1, fm.Len())
}

func TestFieldMapTypedAccessors(t *testing.T) {
	var fm FieldMap
	ts := time.Date(2024, 3, 1, 12, 30, 45, 123_000_000, time.UTC)

	fm.SetInt(34, 7)
	fm.SetFloat(44, 101.25)
	fm.SetDecimal(38, decimal.RequireFromString("1500"), 2)
	fm.SetBool(43, true)
	fm.SetChar(54, '1')
	fm.SetUTCTimestamp(52, ts, Millis)
	fm.SetUTCDateOnly(75, ts)
	fm.SetUTCTimeOnly(273, ts, Seconds)

	i, err := fm.GetInt(34)
	require.NoError(t, err)
	assert.Equal(t, 7, i)

	f, err := fm.GetFloat(44)
	require.NoError(t, err)
	assert.InDelta(t, 101.25, f, 1e-9)

	raw, _ := fm.Get(38)
	assert.Equal(t, "1500.00", raw)
	d, err := fm.GetDecimal(38)
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.NewFromInt(1500)))

	b, err := fm.GetBool(43)
	require.NoError(t, err)
	assert.True(t, b)

	c, err := fm.GetChar(54)
	require.NoError(t, err)
	assert.Equal(t, byte('1'), c)

	got, err := fm.GetUTCTimestamp(52)
	require.NoError(t, err)
	assert.True(t, got.Equal(ts))

	raw, _ = fm.Get(75)
	assert.Equal(t, "20240301", raw)
	raw, _ = fm.Get(273)
	assert.Equal(t, "12:30:45", raw)
}

func TestFieldMapSetRejectsZeroValue(t *testing.T) {
	var fm FieldMap
	assert.ErrorIs(t, fm.Set(58, Value{}), ErrNilValue)
	require.NoError(t, fm.Set(58, StringValue("hi")))
	assert.True(t, fm.Has(58))
}

func TestFieldMapGetMissingField(t *testing.T) {
	var fm FieldMap
	_, err := fm.GetInt(34)
	var nf *FieldNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, 34, nf.Tag)
}

func TestFieldMapGetBadFormat(t *testing.T) {
	var fm FieldMap
	fm.SetString(34, "abc")
	_, err := fm.GetInt(34)
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, RejectReasonIncorrectDataFormat, fe.Reason)
	assert.Equal(t, 34, fe.Tag)
}

func TestFieldMapGroupsSerializeAfterFields(t *testing.T) {
	var fm FieldMap
	fm.SetString(55, "EUR/USD")
	for _, side := range []string{"0", "1"} {
		g := NewGroup(268, 269)
		g.SetString(270, "1.1")
		g.SetString(269, side)
		fm.AddGroup(g)
	}
	assert.Equal(t, 2, fm.GroupCount(268))
	assert.Equal(t, "55=EUR/USD\x01268=2\x01269=0\x01270=1.1\x01269=1\x01270=1.1\x01", fm.String())
}

func TestFieldMapOrderedGroupWrittenInPlace(t *testing.T) {
	fm := newFieldMap(11, 78, 55)
	fm.SetString(55, "IBM")
	fm.SetString(11, "ORD1")
	g := NewGroup(78, 79)
	g.SetString(79, "ACC1")
	fm.AddGroup(g)
	assert.Equal(t, "11=ORD1\x0178=1\x0179=ACC1\x0155=IBM\x01", fm.String())
}

func TestFieldMapCopyIntoIsDeep(t *testing.T) {
	var fm FieldMap
	fm.SetString(1, "a")
	g := NewGroup(78, 79)
	g.SetString(79, "x")
	fm.AddGroup(g)

	var cp FieldMap
	fm.CopyInto(&cp)
	cp.SetString(1, "b")
	cp.Groups(78)[0].SetString(79, "y")

	v, _ := fm.GetString(1)
	assert.Equal(t, "a", v)
	v, _ = fm.Groups(78)[0].GetString(79)
	assert.Equal(t, "x", v)
}

func TestFieldMapRemoveGroups(t *testing.T) {
	var fm FieldMap
	fm.AddGroup(NewGroup(78, 79))
	fm.RemoveGroups(78)
	assert.False(t, fm.Has(78))
	assert.Zero(t, fm.GroupCount(78))
}
