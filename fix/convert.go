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

// TimestampPrecision selects the sub-second digits written in UTCTimestamp values.
type TimestampPrecision int

const (
	Seconds TimestampPrecision = iota
	Millis
	Micros
	Nanos
)

const (
	utcDateOnlyLayout = "20060102"
	utcTimeOnlyLayout = "15:04:05"
	utcTimestampBase  = "20060102-15:04:05"
)

var timestampLayouts = map[TimestampPrecision]string{
	Seconds: utcTimestampBase,
	Millis:  utcTimestampBase + ".000",
	Micros:  utcTimestampBase + ".000000",
	Nanos:   utcTimestampBase + ".000000000",
}

var timeOnlyLayouts = map[TimestampPrecision]string{
	Seconds: utcTimeOnlyLayout,
	Millis:  utcTimeOnlyLayout + ".000",
	Micros:  utcTimeOnlyLayout + ".000000",
	Nanos:   utcTimeOnlyLayout + ".000000000",
}

// ConvertInt parses a FIX int.
func ConvertInt(s string) (int, error) {
	if s == "" {
		return 0, &FieldConvertError{Value: s, Type: "int"}
	}
	// FIX ints never carry a leading '+'
	if s[0] == '+' {
		return 0, &FieldConvertError{Value: s, Type: "int"}
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, &FieldConvertError{Value: s, Type: "int"}
	}
	return i, nil
}

// ConvertFloat parses a FIX float (Price, Qty, Amt ...).
func ConvertFloat(s string) (float64, error) {
	if s == "" {
		return 0, &FieldConvertError{Value: s, Type: "float"}
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && c != '.' && !(c == '-' && i == 0) {
			return 0, &FieldConvertError{Value: s, Type: "float"}
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &FieldConvertError{Value: s, Type: "float"}
	}
	return f, nil
}

// ConvertDecimal parses a FIX float into an exact decimal.
func ConvertDecimal(s string) (decimal.Decimal, error) {
	if _, err := ConvertFloat(s); err != nil {
		return decimal.Zero, &FieldConvertError{Value: s, Type: "decimal"}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &FieldConvertError{Value: s, Type: "decimal"}
	}
	return d, nil
}

// ConvertBool parses a FIX Boolean, "Y" or "N".
func ConvertBool(s string) (bool, error) {
	switch s {
	case "Y":
		return true, nil
	case "N":
		return false, nil
	}
	return false, &FieldConvertError{Value: s, Type: "boolean"}
}

// ConvertChar parses a FIX char.
func ConvertChar(s string) (byte, error) {
	if len(s) != 1 {
		return 0, &FieldConvertError{Value: s, Type: "char"}
	}
	return s[0], nil
}

// ConvertUTCTimestamp parses YYYYMMDD-HH:MM:SS[.sss[sss[sss]]].
func ConvertUTCTimestamp(s string) (time.Time, error) {
	var layout string
	switch len(s) {
	case 17:
		layout = timestampLayouts[Seconds]
	case 21:
		layout = timestampLayouts[Millis]
	case 24:
		layout = timestampLayouts[Micros]
	case 27:
		layout = timestampLayouts[Nanos]
	default:
		return time.Time{}, &FieldConvertError{Value: s, Type: "UTCTimestamp"}
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, &FieldConvertError{Value: s, Type: "UTCTimestamp"}
	}
	return t, nil
}

// ConvertUTCDateOnly parses YYYYMMDD.
func ConvertUTCDateOnly(s string) (time.Time, error) {
	t, err := time.Parse(utcDateOnlyLayout, s)
	if err != nil || len(s) != 8 {
		return time.Time{}, &FieldConvertError{Value: s, Type: "UTCDateOnly"}
	}
	return t, nil
}

// ConvertUTCTimeOnly parses HH:MM:SS[.sss[sss[sss]]]. The date part of the
// result is zero.
func ConvertUTCTimeOnly(s string) (time.Time, error) {
	var layout string
	switch len(s) {
	case 8:
		layout = timeOnlyLayouts[Seconds]
	case 12:
		layout = timeOnlyLayouts[Millis]
	case 15:
		layout = timeOnlyLayouts[Micros]
	case 18:
		layout = timeOnlyLayouts[Nanos]
	default:
		return time.Time{}, &FieldConvertError{Value: s, Type: "UTCTimeOnly"}
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, &FieldConvertError{Value: s, Type: "UTCTimeOnly"}
	}
	return t, nil
}

// FormatUTCTimestamp renders t in UTC with the given precision.
func FormatUTCTimestamp(t time.Time, p TimestampPrecision) string {
	layout, ok := timestampLayouts[p]
	if !ok {
		layout = timestampLayouts[Millis]
	}
	return t.UTC().Format(layout)
}

// FormatUTCTimeOnly renders the time of day of t in UTC.
func FormatUTCTimeOnly(t time.Time, p TimestampPrecision) string {
	layout, ok := timeOnlyLayouts[p]
	if !ok {
		layout = timeOnlyLayouts[Millis]
	}
	return t.UTC().Format(layout)
}

// FormatUTCDateOnly renders the date of t in UTC.
func FormatUTCDateOnly(t time.Time) string {
	return t.UTC().Format(utcDateOnlyLayout)
}
