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
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const soh = '\x01'

// FieldMap is an ordered collection of tag=value fields plus the repeating
// groups hanging off group count tags. Values are held in wire form; typed
// accessors convert on the way in and out.
//
// Iteration follows the explicit field order when one is set: tags present in
// the order come first in listed order, the rest follow by ascending tag.
type FieldMap struct {
	values map[int]string
	groups map[int][]*Group
	order  []int
	index  map[int]int
}

func newFieldMap(order ...int) FieldMap {
	fm := FieldMap{}
	fm.SetFieldOrder(order)
	return fm
}

func (m *FieldMap) init() {
	if m.values == nil {
		m.values = make(map[int]string)
	}
}

// SetFieldOrder replaces the explicit ordering used for iteration and serialization.
func (m *FieldMap) SetFieldOrder(order []int) {
	if len(order) == 0 {
		m.order, m.index = nil, nil
		return
	}
	m.order = slices.Clone(order)
	m.index = make(map[int]int, len(order))
	for i, tag := range m.order {
		if _, dup := m.index[tag]; !dup {
			m.index[tag] = i
		}
	}
}

// appendOrder places tag after the tags already ordered, if it is not yet among them.
func (m *FieldMap) appendOrder(tag int) {
	if m.inOrder(tag) {
		return
	}
	if m.index == nil {
		m.index = make(map[int]int)
	}
	m.index[tag] = len(m.order)
	m.order = append(m.order, tag)
}

// FieldOrder returns the explicit ordering, nil when fields sort by tag.
func (m *FieldMap) FieldOrder() []int { return slices.Clone(m.order) }

func (m *FieldMap) inOrder(tag int) bool {
	_, ok := m.index[tag]
	return ok
}

// compare orders ordered tags by position, ahead of unordered tags by number.
func (m *FieldMap) compare(a, b int) int {
	ia, oka := m.index[a]
	ib, okb := m.index[b]
	switch {
	case oka && okb:
		return ia - ib
	case oka:
		return -1
	case okb:
		return 1
	}
	return a - b
}

// Tags returns the tags held in iteration order.
func (m *FieldMap) Tags() []int {
	tags := slices.Collect(maps.Keys(m.values))
	slices.SortFunc(tags, m.compare)
	return tags
}

// Len returns the number of fields held, group count fields included.
func (m *FieldMap) Len() int { return len(m.values) }

// Has reports whether tag is set.
func (m *FieldMap) Has(tag int) bool {
	_, ok := m.values[tag]
	return ok
}

// Remove deletes tag and any groups it leads.
func (m *FieldMap) Remove(tag int) {
	delete(m.values, tag)
	delete(m.groups, tag)
}

// Clear removes every field and group, keeping the field order.
func (m *FieldMap) Clear() {
	m.values = nil
	m.groups = nil
}

func (m *FieldMap) setRaw(tag int, value string) {
	m.init()
	m.values[tag] = value
}

// Set stores a typed value. The zero Value is rejected.
func (m *FieldMap) Set(tag int, v Value) error {
	if v.kind == KindInvalid {
		return ErrNilValue
	}
	m.setRaw(tag, v.text)
	return nil
}

func (m *FieldMap) SetString(tag int, s string) { m.setRaw(tag, s) }

func (m *FieldMap) SetInt(tag int, i int) { m.setRaw(tag, strconv.Itoa(i)) }

func (m *FieldMap) SetFloat(tag int, f float64) { m.setRaw(tag, FloatValue(f).text) }

func (m *FieldMap) SetDecimal(tag int, d decimal.Decimal, scale int32) {
	m.setRaw(tag, d.StringFixed(scale))
}

func (m *FieldMap) SetBool(tag int, b bool) { m.setRaw(tag, BoolValue(b).text) }

func (m *FieldMap) SetChar(tag int, c byte) { m.setRaw(tag, string([]byte{c})) }

func (m *FieldMap) SetUTCTimestamp(tag int, t time.Time, p TimestampPrecision) {
	m.setRaw(tag, FormatUTCTimestamp(t, p))
}

func (m *FieldMap) SetUTCDateOnly(tag int, t time.Time) { m.setRaw(tag, FormatUTCDateOnly(t)) }

func (m *FieldMap) SetUTCTimeOnly(tag int, t time.Time, p TimestampPrecision) {
	m.setRaw(tag, FormatUTCTimeOnly(t, p))
}

func (m *FieldMap) SetData(tag int, b []byte) { m.setRaw(tag, string(b)) }

// Get returns the raw wire text of tag.
func (m *FieldMap) Get(tag int) (string, error) {
	v, ok := m.values[tag]
	if !ok {
		return "", FieldNotFound(tag)
	}
	return v, nil
}

func (m *FieldMap) GetString(tag int) (string, error) { return m.Get(tag) }

func (m *FieldMap) GetInt(tag int) (int, error) {
	return convertField(m, tag, ConvertInt)
}

func (m *FieldMap) GetFloat(tag int) (float64, error) {
	return convertField(m, tag, ConvertFloat)
}

func (m *FieldMap) GetDecimal(tag int) (decimal.Decimal, error) {
	return convertField(m, tag, ConvertDecimal)
}

func (m *FieldMap) GetBool(tag int) (bool, error) {
	return convertField(m, tag, ConvertBool)
}

func (m *FieldMap) GetChar(tag int) (byte, error) {
	return convertField(m, tag, ConvertChar)
}

func (m *FieldMap) GetUTCTimestamp(tag int) (time.Time, error) {
	return convertField(m, tag, ConvertUTCTimestamp)
}

func (m *FieldMap) GetUTCDateOnly(tag int) (time.Time, error) {
	return convertField(m, tag, ConvertUTCDateOnly)
}

func (m *FieldMap) GetUTCTimeOnly(tag int) (time.Time, error) {
	return convertField(m, tag, ConvertUTCTimeOnly)
}

func (m *FieldMap) GetData(tag int) ([]byte, error) {
	v, err := m.Get(tag)
	if err != nil {
		return nil, err
	}
	return []byte(v), nil
}

// BoolOr returns the boolean at tag, or def when absent or malformed.
func (m *FieldMap) BoolOr(tag int, def bool) bool {
	b, err := m.GetBool(tag)
	if err != nil {
		return def
	}
	return b
}

func convertField[T any](m *FieldMap, tag int, conv func(string) (T, error)) (T, error) {
	var zero T
	raw, err := m.Get(tag)
	if err != nil {
		return zero, err
	}
	v, err := conv(raw)
	if err != nil {
		return zero, IncorrectDataFormat(tag)
	}
	return v, nil
}

// AddGroup appends an instance to the group led by g's count tag and keeps
// the count field in step.
func (m *FieldMap) AddGroup(g *Group) {
	m.appendGroup(g)
	m.setRaw(g.tag, strconv.Itoa(len(m.groups[g.tag])))
}

// appendGroup adds an instance without touching the declared count.
func (m *FieldMap) appendGroup(g *Group) {
	if m.groups == nil {
		m.groups = make(map[int][]*Group)
	}
	m.groups[g.tag] = append(m.groups[g.tag], g)
}

// Groups returns the instances of the group led by tag.
func (m *FieldMap) Groups(tag int) []*Group { return m.groups[tag] }

// GroupCount returns the number of instances held for tag.
func (m *FieldMap) GroupCount(tag int) int { return len(m.groups[tag]) }

// GroupTags returns the tags that lead groups, ascending.
func (m *FieldMap) GroupTags() []int {
	tags := slices.Collect(maps.Keys(m.groups))
	slices.Sort(tags)
	return tags
}

// RemoveGroups deletes every instance of the group led by tag.
func (m *FieldMap) RemoveGroups(tag int) {
	delete(m.groups, tag)
	delete(m.values, tag)
}

// CopyInto replaces dst's contents with a deep copy of m.
func (m *FieldMap) CopyInto(dst *FieldMap) {
	dst.values = maps.Clone(m.values)
	dst.order = slices.Clone(m.order)
	dst.index = maps.Clone(m.index)
	dst.groups = nil
	for _, gs := range m.groups {
		for _, g := range gs {
			dst.appendGroup(g.Clone())
		}
	}
}

func writeField(b *strings.Builder, tag int, value string) {
	b.WriteString(strconv.Itoa(tag))
	b.WriteByte('=')
	b.WriteString(value)
	b.WriteByte(soh)
}

// write serializes m into b, skipping the tags in exclude. Group count fields
// named by the field order are written in place; all other groups follow the
// plain fields in ascending count tag order.
func (m *FieldMap) write(b *strings.Builder, exclude ...int) {
	for _, tag := range m.Tags() {
		if slices.Contains(exclude, tag) {
			continue
		}
		gs, isGroup := m.groups[tag]
		if !isGroup {
			writeField(b, tag, m.values[tag])
			continue
		}
		if m.inOrder(tag) {
			writeGroups(b, tag, gs)
		}
	}
	for _, tag := range m.GroupTags() {
		if m.inOrder(tag) || slices.Contains(exclude, tag) {
			continue
		}
		writeGroups(b, tag, m.groups[tag])
	}
}

func writeGroups(b *strings.Builder, tag int, gs []*Group) {
	if len(gs) == 0 {
		return
	}
	writeField(b, tag, strconv.Itoa(len(gs)))
	for _, g := range gs {
		g.write(b)
	}
}

// String renders the fields of m in wire form.
func (m *FieldMap) String() string {
	var b strings.Builder
	m.write(&b)
	return b.String()
}
