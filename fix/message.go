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
	"strings"
)

var (
	headerOrder  = []int{TagBeginString, TagBodyLength, TagMsgType}
	trailerOrder = []int{TagSignatureLength, TagSignature, TagCheckSum}
)

// routing tag pairs swapped when replying to a message
var routePairs = [][2]int{
	{TagSenderCompID, TagTargetCompID},
	{TagSenderSubID, TagTargetSubID},
	{TagSenderLocationID, TagTargetLocationID},
	{TagOnBehalfOfCompID, TagDeliverToCompID},
	{TagOnBehalfOfSubID, TagDeliverToSubID},
	{TagOnBehalfOfLocationID, TagDeliverToLocationID},
}

// Message is a FIX message split into header, body and trailer. A parsed
// message remembers the first structural problem seen so that validation can
// report it with the offending tag.
type Message struct {
	Header  FieldMap
	Body    FieldMap
	Trailer FieldMap

	raw          string
	structureErr *FieldError
}

// NewMessage returns an empty message with the standard header and trailer ordering.
func NewMessage() *Message {
	return &Message{
		Header:  newFieldMap(headerOrder...),
		Trailer: newFieldMap(trailerOrder...),
	}
}

func (m *Message) reset() {
	m.Header = newFieldMap(headerOrder...)
	m.Body = FieldMap{}
	m.Trailer = newFieldMap(trailerOrder...)
	m.raw = ""
	m.structureErr = nil
}

// MsgType returns the value of tag 35.
func (m *Message) MsgType() (string, error) {
	return m.Header.GetString(TagMsgType)
}

// IsMsgTypeOf reports whether the message carries msgType.
func (m *Message) IsMsgTypeOf(msgType string) bool {
	v, err := m.MsgType()
	return err == nil && v == msgType
}

// IsAdmin reports whether the message is a session level message.
func (m *Message) IsAdmin() bool {
	v, err := m.MsgType()
	return err == nil && IsAdminMsgType(v)
}

// SeqNum returns MsgSeqNum(34).
func (m *Message) SeqNum() (int, error) {
	return m.Header.GetInt(TagMsgSeqNum)
}

// Raw returns the text the message was parsed from, empty for built messages.
func (m *Message) Raw() string { return m.raw }

// HasValidStructure reports whether parsing found the fields in legal places.
func (m *Message) HasValidStructure() bool { return m.structureErr == nil }

// InvalidTag returns the tag behind the first structural problem, 0 if none.
func (m *Message) InvalidTag() int {
	if m.structureErr == nil {
		return 0
	}
	return m.structureErr.Tag
}

// StructureError returns the first structural problem, nil if none.
func (m *Message) StructureError() *FieldError { return m.structureErr }

func (m *Message) markInvalid(reason RejectReason, tag int) {
	if m.structureErr == nil {
		m.structureErr = &FieldError{Reason: reason, Tag: tag}
	}
}

// String serializes the message, filling in BodyLength and CheckSum.
func (m *Message) String() string {
	var body strings.Builder
	m.Header.write(&body, TagBeginString, TagBodyLength)
	m.Body.write(&body)
	m.Trailer.write(&body, TagCheckSum)

	var b strings.Builder
	if v, ok := m.Header.values[TagBeginString]; ok {
		writeField(&b, TagBeginString, v)
	}
	m.Header.setRaw(TagBodyLength, strconv.Itoa(body.Len()))
	writeField(&b, TagBodyLength, m.Header.values[TagBodyLength])
	b.WriteString(body.String())

	m.Trailer.setRaw(TagCheckSum, FormatChecksum(Checksum(b.String())))
	writeField(&b, TagCheckSum, m.Trailer.values[TagCheckSum])
	return b.String()
}

// Clone returns a deep copy of m.
func (m *Message) Clone() *Message {
	c := &Message{raw: m.raw}
	m.Header.CopyInto(&c.Header)
	m.Body.CopyInto(&c.Body)
	m.Trailer.CopyInto(&c.Trailer)
	if m.structureErr != nil {
		e := *m.structureErr
		c.structureErr = &e
	}
	return c
}

// ReverseRoute sets up m's header as a reply to from: BeginString is copied
// and each sender side routing field swaps with its target side peer.
func (m *Message) ReverseRoute(from *Message) {
	for _, p := range routePairs {
		m.Header.Remove(p[0])
		m.Header.Remove(p[1])
	}
	if v, ok := from.Header.values[TagBeginString]; ok {
		m.Header.setRaw(TagBeginString, v)
	}
	for _, p := range routePairs {
		if v, ok := from.Header.values[p[0]]; ok && v != "" {
			m.Header.setRaw(p[1], v)
		}
		if v, ok := from.Header.values[p[1]]; ok && v != "" {
			m.Header.setRaw(p[0], v)
		}
	}
}
