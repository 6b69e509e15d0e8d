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

// Group is one instance of a repeating group. Its count tag names the NoXXX
// field in the parent; its delimiter is the first field of every instance.
type Group struct {
	FieldMap
	tag   int
	delim int
}

// NewGroup builds an empty instance of the group counted by tag. When no field
// order is given the delimiter alone leads.
func NewGroup(tag, delim int, order ...int) *Group {
	if len(order) == 0 {
		order = []int{delim}
	}
	return &Group{FieldMap: newFieldMap(order...), tag: tag, delim: delim}
}

// Tag returns the group count tag.
func (g *Group) Tag() int { return g.tag }

// Delimiter returns the first field tag of each instance.
func (g *Group) Delimiter() int { return g.delim }

// Clone returns a deep copy of g.
func (g *Group) Clone() *Group {
	c := &Group{tag: g.tag, delim: g.delim}
	g.CopyInto(&c.FieldMap)
	return c
}

func (g *Group) write(b *strings.Builder) {
	g.FieldMap.write(b)
}
