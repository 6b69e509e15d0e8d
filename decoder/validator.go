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
	"errors"
	"fmt"

	"github.com/stephenlclarke/fixengine/datadictionary"
	"github.com/stephenlclarke/fixengine/fix"
)

// validation holds the checks applied by Validate. Log files often carry
// user defined fields, so those are accepted.
var validation = datadictionary.ValidationSettings{
	CheckFieldsOutOfOrder:  true,
	CheckFieldsHaveValues:  true,
	CheckUserDefinedFields: false,
}

// Validate lists the problems of one raw message: framing first, then the
// first problem the dictionary reports, then every field whose value is
// not a valid enum or does not fit the field's type. dd may be nil, in
// which case only the framing is checked.
func Validate(msg string, dd *datadictionary.DataDictionary) []string {
	var (
		problems []string
		dict     fix.Dictionary
	)
	if dd != nil {
		dict = dd
	}

	if _, err := fix.ParseMessageWithDictionary(msg, dict, true); err != nil {
		problems = append(problems, err.Error())
	}
	parsed, err := fix.ParseMessageWithDictionary(msg, dict, false)
	if err != nil {
		if len(problems) == 0 {
			problems = append(problems, err.Error())
		}
		return problems
	}
	if dd == nil {
		return problems
	}

	seen := make(map[string]bool)
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			problems = append(problems, p)
		}
	}

	if err := dd.ValidateWith(parsed, validation); err != nil {
		add(describe(err, dd))
	}
	for _, f := range splitFields(msg) {
		if dd.HasFieldValue(f.tag) && !dd.IsFieldValue(f.tag, f.value) {
			add(fmt.Sprintf("Invalid enum value '%s' for tag %d (%s)", f.value, f.tag, dd.FieldName(f.tag)))
		}
		if typ, ok := dd.FieldType(f.tag); ok && f.value != "" && !datadictionary.IsValidType(f.value, typ) {
			add(fmt.Sprintf("Invalid type for tag %d: expected %s, got '%s'", f.tag, typ, f.value))
		}
	}
	return problems
}

func describe(err error, dd *datadictionary.DataDictionary) string {
	var fe *fix.FieldError
	if errors.As(err, &fe) && fe.Tag > 0 {
		return fmt.Sprintf("%s (%s)", fe.Error(), dd.FieldName(fe.Tag))
	}
	return err.Error()
}
