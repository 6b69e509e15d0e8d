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
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"
)

// xmlNode keeps element order and attribute presence, both of which the
// typed decoding of encoding/xml loses.
type xmlNode struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Nodes   []xmlNode  `xml:",any"`
}

func (n *xmlNode) attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func (n *xmlNode) child(name string) (*xmlNode, bool) {
	for i := range n.Nodes {
		if n.Nodes[i].XMLName.Local == name {
			return &n.Nodes[i], true
		}
	}
	return nil, false
}

// maxComponentDepth bounds component expansion so that a self referencing
// component fails instead of recursing forever.
const maxComponentDepth = 32

type loader struct {
	source     string
	dd         *DataDictionary
	components map[string]*xmlNode
}

func (l *loader) fail(format string, args ...any) error {
	return &ConfigError{Source: l.source, Reason: fmt.Sprintf(format, args...)}
}

// Load reads a dictionary from the XML file at path.
func Load(path string) (*DataDictionary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ConfigError{Source: path, Reason: err.Error()}
	}
	defer f.Close()
	return Parse(f, path)
}

// ParseBytes reads a dictionary held in memory.
func ParseBytes(b []byte, source string) (*DataDictionary, error) {
	return Parse(bytes.NewReader(b), source)
}

// Parse reads a dictionary from r. source names r in errors.
func Parse(r io.Reader, source string) (*DataDictionary, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel

	var root xmlNode
	if err := dec.Decode(&root); err != nil {
		return nil, &ConfigError{Source: source, Reason: "could not parse XML: " + err.Error()}
	}
	l := &loader{
		source: source,
		dd: &DataDictionary{
			fields:   make(map[int]*FieldDef),
			names:    make(map[string]int),
			messages: make(map[string]*Section),
			msgNames: make(map[string]string),
			settings: DefaultValidationSettings(),
		},
		components: make(map[string]*xmlNode),
	}
	if err := l.load(&root); err != nil {
		return nil, err
	}
	return l.dd, nil
}

func (l *loader) load(root *xmlNode) error {
	if root.XMLName.Local != "fix" {
		return l.fail("root element must be <fix>, found <%s>", root.XMLName.Local)
	}
	if err := l.loadVersion(root); err != nil {
		return err
	}
	if err := l.loadFields(root); err != nil {
		return err
	}
	if comps, ok := root.child("components"); ok {
		for i := range comps.Nodes {
			c := &comps.Nodes[i]
			name, ok := c.attr("name")
			if !ok || name == "" {
				return l.fail("<component> definition without a name")
			}
			l.components[name] = c
		}
	}

	var err error
	if l.dd.header, err = l.loadSection(root, "header"); err != nil {
		return err
	}
	if l.dd.trailer, err = l.loadSection(root, "trailer"); err != nil {
		return err
	}
	return l.loadMessages(root)
}

func (l *loader) loadVersion(root *xmlNode) error {
	typ, ok := root.attr("type")
	if !ok || typ == "" {
		typ = "FIX"
	}
	major, ok := root.attr("major")
	if !ok || major == "" {
		return l.fail("major version not found")
	}
	minor, ok := root.attr("minor")
	if (!ok || minor == "") && major != "Latest" {
		return l.fail("minor version not found")
	}
	sp, _ := root.attr("servicepack")

	l.dd.major, l.dd.minor, l.dd.servicePack = major, minor, sp
	l.dd.beginString = typ + "." + major
	if minor != "" {
		l.dd.beginString += "." + minor
	}
	if sp != "" && sp != "0" {
		l.dd.beginString += "SP" + sp
	}
	return nil
}

func (l *loader) loadFields(root *xmlNode) error {
	fields, ok := root.child("fields")
	if !ok {
		return l.fail("<fields> section not found")
	}
	if len(fields.Nodes) == 0 {
		return l.fail("no fields defined")
	}
	for i := range fields.Nodes {
		n := &fields.Nodes[i]
		if n.XMLName.Local != "field" {
			continue
		}
		name, okName := n.attr("name")
		number, okNumber := n.attr("number")
		typ, okType := n.attr("type")
		if !okName || name == "" {
			return l.fail("<field> without a name attribute")
		}
		if !okNumber || !okType {
			return l.fail("field %s must define number and type", name)
		}
		tag, err := strconv.Atoi(number)
		if err != nil || tag <= 0 {
			return l.fail("field %s has invalid number %q", name, number)
		}
		if _, dup := l.dd.names[name]; dup {
			return l.fail("field %s is defined more than once", name)
		}
		if prev, dup := l.dd.fields[tag]; dup {
			return l.fail("fields %s and %s share tag %d", prev.Name, name, tag)
		}
		def := &FieldDef{Tag: tag, Name: name, Type: strings.ToUpper(typ)}
		for j := range n.Nodes {
			v := &n.Nodes[j]
			if v.XMLName.Local != "value" {
				continue
			}
			enum, ok := v.attr("enum")
			if !ok {
				return l.fail("field %s has a <value> without enum", name)
			}
			desc, _ := v.attr("description")
			if def.Enums == nil {
				def.Enums = make(map[string]string)
			}
			def.Enums[enum] = desc
		}
		l.dd.fields[tag] = def
		l.dd.names[name] = tag
	}
	return nil
}

func (l *loader) loadSection(root *xmlNode, name string) (*Section, error) {
	n, ok := root.child(name)
	if !ok {
		return nil, l.fail("<%s> section not found", name)
	}
	if len(n.Nodes) == 0 {
		return nil, l.fail("no %s fields defined", name)
	}
	s := newSection(strings.ToUpper(name))
	if err := l.addEntries(s, n, true, 0); err != nil {
		return nil, err
	}
	return s, nil
}

func (l *loader) loadMessages(root *xmlNode) error {
	msgs, ok := root.child("messages")
	if !ok {
		return l.fail("<messages> section not found")
	}
	if len(msgs.Nodes) == 0 {
		return l.fail("no messages defined")
	}
	for i := range msgs.Nodes {
		n := &msgs.Nodes[i]
		if n.XMLName.Local != "message" {
			continue
		}
		name, _ := n.attr("name")
		msgType, ok := n.attr("msgtype")
		if !ok || msgType == "" {
			return l.fail("message %s has no msgtype", name)
		}
		if len(n.Nodes) == 0 {
			return l.fail("message %s contains no fields", name)
		}
		s := newSection(name)
		if err := l.addEntries(s, n, true, 0); err != nil {
			return err
		}
		l.dd.messages[msgType] = s
		l.dd.msgNames[msgType] = name
	}
	return nil
}

// addEntries adds the field, group and component children of n to s. A
// field is required only when it and every enclosing component are.
func (l *loader) addEntries(s *Section, n *xmlNode, parentRequired bool, depth int) error {
	if depth > maxComponentDepth {
		return l.fail("components nested deeper than %d levels", maxComponentDepth)
	}
	for i := range n.Nodes {
		c := &n.Nodes[i]
		kind := c.XMLName.Local
		if kind != "field" && kind != "group" && kind != "component" {
			continue
		}
		name, ok := c.attr("name")
		if !ok || name == "" {
			return l.fail("<%s> in %s without a name", kind, s.Name)
		}
		req, ok := c.attr("required")
		if !ok {
			return l.fail("<%s name=%q> in %s does not specify required", kind, name, s.Name)
		}
		required := parentRequired && strings.EqualFold(req, "Y")

		switch kind {
		case "field":
			tag, ok := l.dd.names[name]
			if !ok {
				return l.fail("field %s used in %s is not defined", name, s.Name)
			}
			s.add(tag, required)
		case "group":
			if err := l.addGroup(s, c, name, required, depth); err != nil {
				return err
			}
		case "component":
			comp, ok := l.components[name]
			if !ok {
				return l.fail("component %s used in %s is not defined", name, s.Name)
			}
			if err := l.addEntries(s, comp, required, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

func (l *loader) addGroup(s *Section, n *xmlNode, name string, required bool, depth int) error {
	tag, ok := l.dd.names[name]
	if !ok {
		return l.fail("group %s used in %s is not defined as a field", name, s.Name)
	}
	nested := newSection(name)
	if err := l.addEntries(nested, n, true, depth+1); err != nil {
		return err
	}
	if len(nested.order) == 0 {
		return l.fail("group %s has no fields", name)
	}
	s.add(tag, required)
	s.groups[tag] = &GroupInfo{Tag: tag, Delim: nested.order[0], Section: nested}
	return nil
}
