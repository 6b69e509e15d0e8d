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
package datadictionary

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/stephenlclarke/fixengine/fix"
)

// ConfigError reports a dictionary that cannot be used.
type ConfigError struct {
	Source string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Source == "" {
		return "data dictionary: " + e.Reason
	}
	return fmt.Sprintf("data dictionary %s: %s", e.Source, e.Reason)
}

// FieldDef is one <field> of the <fields> section.
type FieldDef struct {
	Tag   int
	Name  string
	Type  string            // upper case, e.g. "INT", "UTCTIMESTAMP"
	Enums map[string]string // value -> description
}

// Section lists the fields allowed in a message, header, trailer or group
// instance together with their required flags and nested groups.
type Section struct {
	Name     string
	required map[int]bool // tag -> required
	order    []int
	groups   map[int]*GroupInfo
}

func newSection(name string) *Section {
	return &Section{
		Name:     name,
		required: make(map[int]bool),
		groups:   make(map[int]*GroupInfo),
	}
}

func (s *Section) add(tag int, required bool) {
	if _, dup := s.required[tag]; !dup {
		s.order = append(s.order, tag)
	}
	s.required[tag] = s.required[tag] || required
}

// IsField reports whether tag may appear in the section.
func (s *Section) IsField(tag int) bool {
	_, ok := s.required[tag]
	return ok
}

// IsRequired reports whether tag must appear in the section.
func (s *Section) IsRequired(tag int) bool { return s.required[tag] }

// RequiredFields returns the required tags in declaration order.
func (s *Section) RequiredFields() []int {
	var out []int
	for _, tag := range s.order {
		if s.required[tag] {
			out = append(out, tag)
		}
	}
	return out
}

// FieldOrder returns the tags in declaration order.
func (s *Section) FieldOrder() []int { return slices.Clone(s.order) }

// Group returns the group counted by tag.
func (s *Section) Group(tag int) (*GroupInfo, bool) {
	g, ok := s.groups[tag]
	return g, ok
}

func (s *Section) clone() *Section {
	c := &Section{
		Name:     s.Name,
		required: maps.Clone(s.required),
		order:    slices.Clone(s.order),
		groups:   make(map[int]*GroupInfo, len(s.groups)),
	}
	for tag, g := range s.groups {
		c.groups[tag] = &GroupInfo{Tag: g.Tag, Delim: g.Delim, Section: g.Section.clone()}
	}
	return c
}

// GroupInfo describes a repeating group: the NumInGroup tag that counts it,
// the delimiter that opens each instance and the instance layout.
type GroupInfo struct {
	Tag   int
	Delim int
	*Section
}

// Delimiter returns the first field tag of every instance.
func (g *GroupInfo) Delimiter() int { return g.Delim }

// NestedGroup returns the layout of a group nested in this one.
func (g *GroupInfo) NestedGroup(tag int) (fix.GroupLayout, bool) {
	n, ok := g.groups[tag]
	if !ok {
		return nil, false
	}
	return n, true
}

// DataDictionary holds the protocol metadata of one FIX version. It is
// read only once loaded and is shared between sessions; per session
// validation behaviour is carried in ValidationSettings.
type DataDictionary struct {
	beginString string
	major       string
	minor       string
	servicePack string

	fields   map[int]*FieldDef
	names    map[string]int
	messages map[string]*Section
	msgNames map[string]string // msgType -> name
	header   *Section
	trailer  *Section

	settings ValidationSettings
}

// BeginString returns the version string messages must carry, e.g. "FIX.4.4".
func (dd *DataDictionary) BeginString() string { return dd.beginString }

// Version returns the major, minor and service pack attributes.
func (dd *DataDictionary) Version() (major, minor, servicePack string) {
	return dd.major, dd.minor, dd.servicePack
}

func (dd *DataDictionary) IsField(tag int) bool {
	_, ok := dd.fields[tag]
	return ok
}

// Field returns the definition of tag.
func (dd *DataDictionary) Field(tag int) (*FieldDef, bool) {
	f, ok := dd.fields[tag]
	return f, ok
}

// FieldType returns the declared type of tag in upper case.
func (dd *DataDictionary) FieldType(tag int) (string, bool) {
	f, ok := dd.fields[tag]
	if !ok {
		return "", false
	}
	return f.Type, true
}

// FieldName returns the name of tag, or the tag number when unknown.
func (dd *DataDictionary) FieldName(tag int) string {
	if f, ok := dd.fields[tag]; ok {
		return f.Name
	}
	return fmt.Sprint(tag)
}

// FieldTag returns the tag of the field called name.
func (dd *DataDictionary) FieldTag(name string) (int, bool) {
	tag, ok := dd.names[name]
	return tag, ok
}

// EnumDescription returns the description of value for tag, empty when none.
func (dd *DataDictionary) EnumDescription(tag int, value string) string {
	if f, ok := dd.fields[tag]; ok {
		return f.Enums[value]
	}
	return ""
}

func (dd *DataDictionary) IsMsgType(msgType string) bool {
	_, ok := dd.messages[msgType]
	return ok
}

// MessageName returns the name of msgType, empty when unknown.
func (dd *DataDictionary) MessageName(msgType string) string { return dd.msgNames[msgType] }

// MsgTypes returns every known message type, sorted.
func (dd *DataDictionary) MsgTypes() []string {
	types := slices.Collect(maps.Keys(dd.messages))
	slices.Sort(types)
	return types
}

// Message returns the layout of msgType.
func (dd *DataDictionary) Message(msgType string) (*Section, bool) {
	s, ok := dd.messages[msgType]
	return s, ok
}

// Header returns the header layout.
func (dd *DataDictionary) Header() *Section { return dd.header }

// Trailer returns the trailer layout.
func (dd *DataDictionary) Trailer() *Section { return dd.trailer }

// Fields returns every field definition ordered by tag.
func (dd *DataDictionary) Fields() []*FieldDef {
	out := slices.Collect(maps.Values(dd.fields))
	slices.SortFunc(out, func(a, b *FieldDef) int { return a.Tag - b.Tag })
	return out
}

// IsMsgField reports whether tag belongs to the body of msgType.
func (dd *DataDictionary) IsMsgField(msgType string, tag int) bool {
	s, ok := dd.messages[msgType]
	return ok && s.IsField(tag)
}

func (dd *DataDictionary) IsHeaderField(tag int) bool {
	return dd != nil && dd.header.IsField(tag)
}

func (dd *DataDictionary) IsTrailerField(tag int) bool {
	return dd != nil && dd.trailer.IsField(tag)
}

// IsDataField reports whether tag holds raw data whose length is given by a
// preceding length field.
func (dd *DataDictionary) IsDataField(tag int) bool {
	if dd == nil {
		return false
	}
	f, ok := dd.fields[tag]
	return ok && (f.Type == "DATA" || f.Type == "XMLDATA")
}

// IsRequiredField reports whether tag is mandatory in msgType. Header and
// trailer sections are addressed with fix.HeaderSection and fix.TrailerSection.
func (dd *DataDictionary) IsRequiredField(msgType string, tag int) bool {
	s, ok := dd.section(msgType)
	return ok && s.IsRequired(tag)
}

// HasFieldValue reports whether tag declares enumerated values.
func (dd *DataDictionary) HasFieldValue(tag int) bool {
	f, ok := dd.fields[tag]
	return ok && len(f.Enums) > 0
}

// IsFieldValue reports whether value is an allowed value of tag. Multiple
// value types are split on spaces and every token must be allowed.
func (dd *DataDictionary) IsFieldValue(tag int, value string) bool {
	f, ok := dd.fields[tag]
	if !ok {
		return false
	}
	if len(f.Enums) == 0 {
		return true
	}
	if !isMultipleValueType(f.Type) {
		_, ok := f.Enums[value]
		return ok
	}
	for _, v := range strings.Fields(value) {
		if _, ok := f.Enums[v]; !ok {
			return false
		}
	}
	return value != ""
}

func isMultipleValueType(typ string) bool {
	switch typ {
	case "MULTIPLEVALUESTRING", "MULTIPLESTRINGVALUE", "MULTIPLECHARVALUE":
		return true
	}
	return false
}

func (dd *DataDictionary) section(msgType string) (*Section, bool) {
	switch msgType {
	case fix.HeaderSection:
		return dd.header, true
	case fix.TrailerSection:
		return dd.trailer, true
	}
	s, ok := dd.messages[msgType]
	return s, ok
}

// IsGroup reports whether tag counts a repeating group in msgType.
func (dd *DataDictionary) IsGroup(msgType string, tag int) bool {
	_, ok := dd.GetGroup(msgType, tag)
	return ok
}

// GetGroup returns the group counted by tag in msgType, or in the header or
// trailer when msgType is fix.HeaderSection or fix.TrailerSection.
func (dd *DataDictionary) GetGroup(msgType string, tag int) (*GroupInfo, bool) {
	s, ok := dd.section(msgType)
	if !ok {
		return nil, false
	}
	return s.Group(tag)
}

// GroupLayout lets the parser recognise repeating groups.
func (dd *DataDictionary) GroupLayout(msgType string, tag int) (fix.GroupLayout, bool) {
	if dd == nil {
		return nil, false
	}
	g, ok := dd.GetGroup(msgType, tag)
	if !ok {
		return nil, false
	}
	return g, true
}

// Settings returns the validation settings used by Validate.
func (dd *DataDictionary) Settings() ValidationSettings { return dd.settings }

// SetCheckFieldsOutOfOrder changes Validate's default. Call it on a Clone,
// never on a shared dictionary.
func (dd *DataDictionary) SetCheckFieldsOutOfOrder(v bool) { dd.settings.CheckFieldsOutOfOrder = v }

func (dd *DataDictionary) SetCheckFieldsHaveValues(v bool) { dd.settings.CheckFieldsHaveValues = v }

func (dd *DataDictionary) SetCheckUserDefinedFields(v bool) { dd.settings.CheckUserDefinedFields = v }

func (dd *DataDictionary) SetAllowUnknownMessageFields(v bool) {
	dd.settings.AllowUnknownMessageFields = v
}

// Clone returns a deep copy that can be customised without affecting dd.
func (dd *DataDictionary) Clone() *DataDictionary {
	c := &DataDictionary{
		beginString: dd.beginString,
		major:       dd.major,
		minor:       dd.minor,
		servicePack: dd.servicePack,
		fields:      make(map[int]*FieldDef, len(dd.fields)),
		names:       maps.Clone(dd.names),
		messages:    make(map[string]*Section, len(dd.messages)),
		msgNames:    maps.Clone(dd.msgNames),
		header:      dd.header.clone(),
		trailer:     dd.trailer.clone(),
		settings:    dd.settings,
	}
	for tag, f := range dd.fields {
		cp := *f
		cp.Enums = maps.Clone(f.Enums)
		c.fields[tag] = &cp
	}
	for msgType, s := range dd.messages {
		c.messages[msgType] = s.clone()
	}
	return c
}
