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
package decoder

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/stephenlclarke/fixengine/datadictionary"
	"github.com/stephenlclarke/fixengine/fix"
)

// DisplayOptions control how dictionary entries are printed.
type DisplayOptions struct {
	Verbose        bool // print enum values
	Column         bool // print lists and enums in columns
	IncludeHeader  bool
	IncludeTrailer bool
}

// Summary prints the version and size of dd.
func Summary(w io.Writer, dd *datadictionary.DataDictionary) {
	major, minor, sp := dd.Version()
	fmt.Fprintf(w, "%s (major %s, minor %s", dd.BeginString(), major, minor)
	if sp != "" && sp != "0" {
		fmt.Fprintf(w, ", service pack %s", sp)
	}
	fmt.Fprintf(w, "): %d fields, %d messages\n", len(dd.Fields()), len(dd.MsgTypes()))
}

// ListAllMessages prints every message sorted by MsgType.
func ListAllMessages(w io.Writer, dd *datadictionary.DataDictionary, column bool) {
	types := dd.MsgTypes()
	lines := make([]string, len(types))
	for i, mt := range types {
		cat := "app"
		if fix.IsAdminMsgType(mt) {
			cat = "admin"
		}
		lines[i] = fmt.Sprintf("%-4s: %s (%s)", mt, dd.MessageName(mt), cat)
	}
	printLines(w, lines, column)
}

// ListAllTags prints every tag number, name, and type.
func ListAllTags(w io.Writer, dd *datadictionary.DataDictionary, column bool) {
	fields := dd.Fields()
	lines := make([]string, len(fields))
	for i, f := range fields {
		lines[i] = fmt.Sprintf("%-4d: %s (%s)", f.Tag, f.Name, f.Type)
	}
	printLines(w, lines, column)
}

func printLines(w io.Writer, lines []string, column bool) {
	if column {
		printStringColumns(w, lines, terminalWidth())
		return
	}
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
}

// PrintTagDetails prints a field's header and, if verbose, its enum values.
func PrintTagDetails(w io.Writer, dd *datadictionary.DataDictionary, tag int, opts DisplayOptions) error {
	f, ok := dd.Field(tag)
	if !ok {
		return fmt.Errorf("tag %d is not defined in %s", tag, dd.BeginString())
	}
	fmt.Fprintf(w, "%-4d: %s (%s)\n", f.Tag, f.Name, f.Type)
	if opts.Verbose {
		printEnums(w, f, opts.Column, 4)
	}
	return nil
}

// DisplayMessage prints the layout of msgType, groups indented below the
// field that counts them.
func DisplayMessage(w io.Writer, dd *datadictionary.DataDictionary, msgType string, opts DisplayOptions) error {
	body, ok := dd.Message(msgType)
	if !ok {
		return fmt.Errorf("message %q is not defined in %s", msgType, dd.BeginString())
	}
	fmt.Fprintf(w, "Message: %s (%s)\n", dd.MessageName(msgType), msgType)

	if opts.IncludeHeader {
		fmt.Fprintln(w, "Component: Header")
		printSection(w, dd, dd.Header(), opts, 4)
	}
	printSection(w, dd, body, opts, 0)
	if opts.IncludeTrailer {
		fmt.Fprintln(w, "Component: Trailer")
		printSection(w, dd, dd.Trailer(), opts, 4)
	}
	return nil
}

func printSection(w io.Writer, dd *datadictionary.DataDictionary, s *datadictionary.Section, opts DisplayOptions, indent int) {
	for _, tag := range s.FieldOrder() {
		f, ok := dd.Field(tag)
		if !ok {
			continue
		}
		if g, isGroup := s.Group(tag); isGroup {
			printIndent(w, indent)
			fmt.Fprintf(w, "Group: %s (%d)%s\n", f.Name, f.Tag, formatRequired(s.IsRequired(tag)))
			printSection(w, dd, g.Section, opts, indent+4)
			continue
		}
		printIndent(w, indent)
		fmt.Fprintf(w, "%-4d: %s (%s)%s\n", f.Tag, f.Name, f.Type, formatRequired(s.IsRequired(tag)))
		if opts.Verbose {
			printEnums(w, f, opts.Column, indent+4)
		}
	}
}

func printIndent(w io.Writer, level int) {
	io.WriteString(w, strings.Repeat(" ", level))
}

func formatRequired(required bool) string {
	if required {
		return " - (Y)"
	}
	return ""
}

func sortedEnums(f *datadictionary.FieldDef) []string {
	values := make([]string, 0, len(f.Enums))
	for v := range f.Enums {
		values = append(values, v)
	}
	slices.Sort(values)
	return values
}

func printEnums(w io.Writer, f *datadictionary.FieldDef, column bool, indent int) {
	values := sortedEnums(f)
	if len(values) == 0 {
		return
	}
	if !column {
		for _, v := range values {
			printIndent(w, indent)
			fmt.Fprintf(w, "%s : %s\n", v, f.Enums[v])
		}
		return
	}

	items := make([]string, len(values))
	for i, v := range values {
		items[i] = fmt.Sprintf("%s: %s", v, f.Enums[v])
	}
	width := terminalWidth() - indent
	if width <= 0 {
		width = 80
	}
	var sb strings.Builder
	printStringColumns(&sb, items, width)
	for _, line := range strings.SplitAfter(sb.String(), "\n") {
		if line == "" {
			continue
		}
		printIndent(w, indent)
		io.WriteString(w, line)
	}
}

// printStringColumns prints items down then across in as many columns as fit width.
func printStringColumns(w io.Writer, items []string, width int) {
	maxLen := 0
	for _, s := range items {
		maxLen = max(maxLen, len(s))
	}
	cols := max(width/(maxLen+2), 1)
	rows := (len(items) + cols - 1) / cols

	for r := range rows {
		for c := range cols {
			if i := c*rows + r; i < len(items) {
				fmt.Fprintf(w, "%-*s", maxLen+2, items[i])
			}
		}
		fmt.Fprintln(w)
	}
}
