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

import "strings"

type token struct {
	tag   int
	value string
	start int
}

// cursor walks raw one field at a time and can hand back one field so the
// next reader sees it again.
type cursor struct {
	raw    string
	pos    int
	held   token
	isHeld bool
}

// next returns the following field. dataLen reports the byte length of data
// fields whose value may contain SOH.
func (c *cursor) next(dataLen func(tag int) (int, bool)) (token, bool, error) {
	if c.isHeld {
		c.isHeld = false
		return c.held, true, nil
	}
	if c.pos >= len(c.raw) {
		return token{}, false, nil
	}
	start := c.pos
	eq := strings.IndexByte(c.raw[start:], '=')
	if eq == -1 {
		return token{}, false, invalidMessage(c.raw, "Equal sign not found in field")
	}
	tag, err := ConvertInt(c.raw[start : start+eq])
	if err != nil || tag <= 0 {
		return token{}, false, invalidMessage(c.raw, "Bad tag format %q", c.raw[start:start+eq])
	}
	valueStart := start + eq + 1
	var end int
	if n, ok := dataLen(tag); ok {
		end = valueStart + n
		if end >= len(c.raw) || c.raw[end] != soh {
			return token{}, false, invalidMessage(c.raw, "Data field %d does not match its length %d", tag, n)
		}
	} else {
		i := strings.IndexByte(c.raw[valueStart:], soh)
		if i == -1 {
			return token{}, false, invalidMessage(c.raw, "SOH not found at end of field %d", tag)
		}
		end = valueStart + i
	}
	c.pos = end + 1
	return token{tag: tag, value: c.raw[valueStart:end], start: start}, true, nil
}

func (c *cursor) pushBack(t token) {
	c.held = t
	c.isHeld = true
}

type parser struct {
	cur     cursor
	msg     *Message
	dict    Dictionary
	msgType string

	bodyStart     int
	checksumStart int
	lastTag       int
}

// ParseMessage parses raw without a dictionary, checking BodyLength and CheckSum.
func ParseMessage(raw string) (*Message, error) {
	return ParseMessageWithDictionary(raw, nil, true)
}

// ParseMessageWithDictionary parses raw using dict to classify fields and
// recognise repeating groups. dict may be nil. When validate is set the
// header must open with 8, 9, 35 and BodyLength and CheckSum must agree with
// the bytes received.
func ParseMessageWithDictionary(raw string, dict Dictionary, validate bool) (*Message, error) {
	m := NewMessage()
	if err := m.FromString(raw, dict, validate); err != nil {
		return nil, err
	}
	return m, nil
}

// FromString replaces the contents of m with the fields of raw.
func (m *Message) FromString(raw string, dict Dictionary, validate bool) error {
	m.reset()
	m.raw = raw
	p := &parser{cur: cursor{raw: raw}, msg: m, dict: dict, checksumStart: -1}
	if err := p.parse(validate); err != nil {
		return err
	}
	if validate {
		return p.validateFraming()
	}
	return nil
}

func (p *parser) isHeader(tag int) bool {
	return IsHeaderTag(tag) || (p.dict != nil && p.dict.IsHeaderField(tag))
}

func (p *parser) isTrailer(tag int) bool {
	return IsTrailerTag(tag) || (p.dict != nil && p.dict.IsTrailerField(tag))
}

func (p *parser) isDataField(tag int) bool {
	if p.dict != nil {
		return p.dict.IsDataField(tag)
	}
	_, ok := defaultDataFields[tag]
	return ok
}

// dataLen finds the length field of a data field in the map being filled,
// falling back to the message sections parsed so far.
func (p *parser) dataLen(current *FieldMap) func(int) (int, bool) {
	return func(tag int) (int, bool) {
		if !p.isDataField(tag) {
			return 0, false
		}
		lenTag := DataLengthTag(tag)
		for _, fm := range []*FieldMap{current, &p.msg.Header, &p.msg.Body, &p.msg.Trailer} {
			if fm == nil {
				continue
			}
			if v, ok := fm.values[lenTag]; ok {
				n, err := ConvertInt(v)
				if err != nil || n < 0 {
					return 0, false
				}
				return n, true
			}
		}
		return 0, false
	}
}

func (p *parser) set(fm *FieldMap, t token) {
	if t.tag == p.lastTag {
		p.msg.markInvalid(RejectReasonTagAppearsMoreThanOnce, t.tag)
	}
	p.lastTag = t.tag
	fm.setRaw(t.tag, t.value)
}

// setInGroup stores t in a group instance, which keeps the order its
// fields arrived in.
func (p *parser) setInGroup(g *Group, t token) {
	p.set(&g.FieldMap, t)
	g.appendOrder(t.tag)
}

func (p *parser) group(section string, tag int) (GroupLayout, bool) {
	if p.dict == nil {
		return nil, false
	}
	return p.dict.GroupLayout(section, tag)
}

func (p *parser) parse(validate bool) error {
	m := p.msg
	for _, want := range headerOrder {
		t, ok, err := p.cur.next(p.dataLen(&m.Header))
		if err != nil {
			return err
		}
		if !ok {
			return invalidMessage(p.cur.raw, "Message is truncated before field %d", want)
		}
		if t.tag != want {
			if validate {
				return invalidMessage(p.cur.raw, "Header fields out of order: expected %d, found %d", want, t.tag)
			}
			p.cur.pushBack(t)
			break
		}
		p.set(&m.Header, t)
		if want == TagBodyLength {
			p.bodyStart = p.cur.pos
		}
	}
	p.msgType = m.Header.values[TagMsgType]

	if err := p.parseHeader(); err != nil {
		return err
	}
	if err := p.parseBody(); err != nil {
		return err
	}
	return p.parseTrailer()
}

func (p *parser) parseHeader() error {
	m := p.msg
	for {
		t, ok, err := p.cur.next(p.dataLen(&m.Header))
		if err != nil || !ok {
			return err
		}
		if !p.isHeader(t.tag) {
			p.cur.pushBack(t)
			return nil
		}
		if err := p.headerField(t); err != nil {
			return err
		}
	}
}

func (p *parser) headerField(t token) error {
	p.set(&p.msg.Header, t)
	if t.tag == TagMsgType && p.msgType == "" {
		p.msgType = t.value
	}
	if layout, ok := p.group(HeaderSection, t.tag); ok {
		return p.parseGroup(t, layout, &p.msg.Header)
	}
	return nil
}

func (p *parser) parseBody() error {
	m := p.msg
	for {
		t, ok, err := p.cur.next(p.dataLen(&m.Body))
		if err != nil || !ok {
			return err
		}
		switch {
		case p.isTrailer(t.tag):
			p.cur.pushBack(t)
			return nil
		case p.isHeader(t.tag):
			m.markInvalid(RejectReasonTagSpecifiedOutOfRequiredOrder, t.tag)
			if err := p.headerField(t); err != nil {
				return err
			}
		default:
			p.set(&m.Body, t)
			if layout, ok := p.group(p.msgType, t.tag); ok {
				if err := p.parseGroup(t, layout, &m.Body); err != nil {
					return err
				}
			}
		}
	}
}

func (p *parser) parseTrailer() error {
	m := p.msg
	for {
		t, ok, err := p.cur.next(p.dataLen(&m.Trailer))
		if err != nil || !ok {
			return err
		}
		switch {
		case p.isTrailer(t.tag):
			if t.tag == TagCheckSum {
				p.checksumStart = t.start
			}
			p.set(&m.Trailer, t)
		case p.isHeader(t.tag):
			m.markInvalid(RejectReasonTagSpecifiedOutOfRequiredOrder, t.tag)
			p.set(&m.Header, t)
		default:
			m.markInvalid(RejectReasonTagSpecifiedOutOfRequiredOrder, t.tag)
			p.set(&m.Body, t)
		}
	}
}

// parseGroup reads the instances of the group counted by count into parent.
// The delimiter opens each instance; the first field that does not belong to
// the group is handed back to the caller.
func (p *parser) parseGroup(count token, layout GroupLayout, parent *FieldMap) error {
	if _, err := ConvertInt(count.value); err != nil {
		return invalidMessage(p.cur.raw, "Repeating group count requires an Integer but found %q", count.value)
	}
	delim := layout.Delimiter()
	var g *Group
	for {
		current := parent
		if g != nil {
			current = &g.FieldMap
		}
		t, ok, err := p.cur.next(p.dataLen(current))
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		nested, isNested := layout.NestedGroup(t.tag)
		switch {
		case t.tag == delim:
			if g != nil {
				parent.appendGroup(g)
			}
			g = NewGroup(count.tag, delim)
			p.lastTag = 0
			p.setInGroup(g, t)
		case isNested:
			if g == nil {
				return invalidMessage(p.cur.raw, "The group %d must set the delimiter field %d", count.tag, delim)
			}
			p.setInGroup(g, t)
		case layout.IsField(t.tag):
			if g == nil {
				p.msg.markInvalid(RejectReasonRepeatingGroupFieldsOutOfOrder, t.tag)
				p.cur.pushBack(t)
				return nil
			}
			p.setInGroup(g, t)
		default:
			p.cur.pushBack(t)
			if g != nil {
				parent.appendGroup(g)
			}
			return nil
		}
		if isNested {
			if err := p.parseGroup(t, nested, &g.FieldMap); err != nil {
				return err
			}
		}
	}
	if g != nil {
		parent.appendGroup(g)
	}
	return nil
}

func (p *parser) validateFraming() error {
	m := p.msg
	raw := p.cur.raw
	if p.checksumStart == -1 {
		return invalidMessage(raw, "Missing CheckSum")
	}
	declared, err := m.Header.GetInt(TagBodyLength)
	if err != nil {
		return invalidMessage(raw, "BodyLength is not an Integer")
	}
	if actual := p.checksumStart - p.bodyStart; actual != declared {
		return invalidMessage(raw, "Expected BodyLength=%d, Received BodyLength=%d", actual, declared)
	}
	expected := FormatChecksum(Checksum(raw[:p.checksumStart]))
	if received := m.Trailer.values[TagCheckSum]; received != expected {
		return invalidMessage(raw, "Expected CheckSum=%s, Received CheckSum=%s", expected, received)
	}
	return nil
}
