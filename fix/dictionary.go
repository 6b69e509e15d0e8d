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

// Section names used to address repeating groups outside the message body.
const (
	HeaderSection  = "HEADER"
	TrailerSection = "TRAILER"
)

// Dictionary is the view of a data dictionary the parser needs to classify
// fields and recognise repeating groups. It is implemented by
// datadictionary.DataDictionary.
type Dictionary interface {
	IsHeaderField(tag int) bool
	IsTrailerField(tag int) bool
	IsDataField(tag int) bool
	// GroupLayout returns the layout of the group counted by tag in msgType,
	// or in HeaderSection / TrailerSection.
	GroupLayout(msgType string, tag int) (GroupLayout, bool)
}

// GroupLayout describes the shape of one repeating group.
type GroupLayout interface {
	Delimiter() int
	IsField(tag int) bool
	NestedGroup(tag int) (GroupLayout, bool)
}
