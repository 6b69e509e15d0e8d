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
	"errors"
	"fmt"
)

var (
	// ErrDoNotSend is returned by Application.ToApp to veto an outbound message.
	ErrDoNotSend = errors.New("do not send")
	// ErrUnsupportedMessageType is returned by Application.FromApp for messages it does not handle.
	ErrUnsupportedMessageType = errors.New("unsupported message type")
	// ErrNilValue is returned when a field is set with an empty Value.
	ErrNilValue = errors.New("null field values are not allowed")
)

// FieldNotFoundError is returned when a requested tag is absent.
type FieldNotFoundError struct {
	Tag int
}

func (e *FieldNotFoundError) Error() string {
	return fmt.Sprintf("field not found: %d", e.Tag)
}

// FieldNotFound builds a FieldNotFoundError for tag.
func FieldNotFound(tag int) error {
	return &FieldNotFoundError{Tag: tag}
}

// FieldError is a value level problem carrying the SessionRejectReason that
// should be reported back to the counterparty.
type FieldError struct {
	Reason RejectReason
	Tag    int
	Text   string
}

func (e *FieldError) Error() string {
	text := e.Text
	if text == "" {
		text = e.Reason.String()
	}
	if e.Tag == 0 {
		return text
	}
	return fmt.Sprintf("%s, field=%d", text, e.Tag)
}

// NewFieldError builds a FieldError with the default text for reason.
func NewFieldError(reason RejectReason, tag int) error {
	return &FieldError{Reason: reason, Tag: tag}
}

// IncorrectDataFormat reports a value that does not parse as its declared type.
func IncorrectDataFormat(tag int) error {
	return NewFieldError(RejectReasonIncorrectDataFormat, tag)
}

// IncorrectTagValue reports a value outside the field's allowed set.
func IncorrectTagValue(tag int) error {
	return NewFieldError(RejectReasonValueIsIncorrect, tag)
}

// RequiredTagMissing reports a missing mandatory field.
func RequiredTagMissing(tag int) error {
	return NewFieldError(RejectReasonRequiredTagMissing, tag)
}

// InvalidMessageError is a structural parse failure. The message is skipped.
type InvalidMessageError struct {
	Text string
	Raw  string
}

func (e *InvalidMessageError) Error() string {
	if e.Raw == "" {
		return e.Text
	}
	return e.Text + " in " + e.Raw
}

func invalidMessage(raw, format string, args ...any) error {
	return &InvalidMessageError{Text: fmt.Sprintf(format, args...), Raw: raw}
}

// UnsupportedVersionError reports a BeginString that does not match the session.
type UnsupportedVersionError struct {
	Expected string
	Received string
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("Incorrect BeginString: expected %s, received %s", e.Expected, e.Received)
}

// RejectLogonError is returned by Application.FromAdmin to refuse a Logon.
// Text is sent back in the Logout.
type RejectLogonError struct {
	Text string
}

func (e *RejectLogonError) Error() string {
	if e.Text == "" {
		return "logon rejected"
	}
	return e.Text
}

// RejectLogon builds a RejectLogonError.
func RejectLogon(text string) error {
	return &RejectLogonError{Text: text}
}

// FieldConvertError reports a value that could not be converted to the requested type.
type FieldConvertError struct {
	Value string
	Type  string
}

func (e *FieldConvertError) Error() string {
	return fmt.Sprintf("cannot convert %q to %s", e.Value, e.Type)
}
