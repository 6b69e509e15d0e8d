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

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Kind identifies the type a Value was built from.
type Kind int

const (
	KindInvalid Kind = iota
	KindString
	KindInt
	KindFloat
	KindDecimal
	KindBool
	KindChar
	KindUTCTimestamp
	KindUTCDateOnly
	KindUTCTimeOnly
	KindData
)

// Value is a typed field value. Every kind encodes to the wire text stored in
// a FieldMap; the zero Value is invalid and cannot be set.
type Value struct {
	kind Kind
	text string
}

// Kind returns the kind the value was built from.
func (v Value) Kind() Kind { return v.kind }

// String returns the wire encoding of the value.
func (v Value) String() string { return v.text }

func StringValue(s string) Value { return Value{kind: KindString, text: s} }

func IntValue(i int) Value { return Value{kind: KindInt, text: strconv.Itoa(i)} }

// FloatValue encodes f with the shortest representation that round trips.
func FloatValue(f float64) Value {
	return Value{kind: KindFloat, text: strconv.FormatFloat(f, 'f', -1, 64)}
}

// DecimalValue encodes d with exactly scale decimal places.
func DecimalValue(d decimal.Decimal, scale int32) Value {
	return Value{kind: KindDecimal, text: d.StringFixed(scale)}
}

func BoolValue(b bool) Value {
	if b {
		return Value{kind: KindBool, text: "Y"}
	}
	return Value{kind: KindBool, text: "N"}
}

func CharValue(c byte) Value { return Value{kind: KindChar, text: string([]byte{c})} }

func UTCTimestampValue(t time.Time, p TimestampPrecision) Value {
	return Value{kind: KindUTCTimestamp, text: FormatUTCTimestamp(t, p)}
}

func UTCDateOnlyValue(t time.Time) Value {
	return Value{kind: KindUTCDateOnly, text: FormatUTCDateOnly(t)}
}

func UTCTimeOnlyValue(t time.Time, p TimestampPrecision) Value {
	return Value{kind: KindUTCTimeOnly, text: FormatUTCTimeOnly(t, p)}
}

// DataValue carries raw bytes, which may include SOH.
func DataValue(b []byte) Value { return Value{kind: KindData, text: string(b)} }
