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
	"regexp"

	"github.com/stephenlclarke/fixengine/fix"
)

// ValidationSettings switch individual checks of Validate on or off. A
// session keeps its own settings next to a shared dictionary.
type ValidationSettings struct {
	// CheckFieldsOutOfOrder rejects messages whose fields sit in the wrong section.
	CheckFieldsOutOfOrder bool
	// CheckFieldsHaveValues rejects fields with an empty value.
	CheckFieldsHaveValues bool
	// CheckUserDefinedFields validates tags >= 5000 like any other tag.
	CheckUserDefinedFields bool
	// AllowUnknownMessageFields accepts known fields that are not part of the message.
	AllowUnknownMessageFields bool
}

// DefaultValidationSettings enables every check.
func DefaultValidationSettings() ValidationSettings {
	return ValidationSettings{
		CheckFieldsOutOfOrder:  true,
		CheckFieldsHaveValues:  true,
		CheckUserDefinedFields: true,
	}
}

// Validate checks msg with the dictionary's own settings.
func (dd *DataDictionary) Validate(msg *fix.Message) error {
	return dd.ValidateWith(msg, dd.settings)
}

// ValidateWith checks msg against the dictionary. Problems a counterparty
// should be told about come back as *fix.FieldError; a BeginString mismatch
// is a *fix.UnsupportedVersionError.
func (dd *DataDictionary) ValidateWith(msg *fix.Message, s ValidationSettings) error {
	if begin, _ := msg.Header.GetString(fix.TagBeginString); begin != dd.beginString {
		return &fix.UnsupportedVersionError{Expected: dd.beginString, Received: begin}
	}

	if fe := msg.StructureError(); fe != nil {
		if fe.Reason == fix.RejectReasonTagAppearsMoreThanOnce || s.CheckFieldsOutOfOrder {
			e := *fe
			return &e
		}
	}

	msgType, err := msg.MsgType()
	if err != nil {
		return fix.RequiredTagMissing(fix.TagMsgType)
	}
	body, ok := dd.messages[msgType]
	if !ok {
		return fix.NewFieldError(fix.RejectReasonInvalidMsgType, fix.TagMsgType)
	}

	if err := checkRequired(dd.header, &msg.Header); err != nil {
		return err
	}
	if err := checkRequired(dd.trailer, &msg.Trailer); err != nil {
		return err
	}
	if err := checkRequired(body, &msg.Body); err != nil {
		return err
	}

	v := validator{dd: dd, settings: s}
	if err := v.checkFields(dd.header, &msg.Header, false); err != nil {
		return err
	}
	if err := v.checkFields(body, &msg.Body, true); err != nil {
		return err
	}
	return v.checkFields(dd.trailer, &msg.Trailer, false)
}

// checkRequired reports the first required field of sec missing from fm,
// descending into every group instance present.
func checkRequired(sec *Section, fm *fix.FieldMap) error {
	for _, tag := range sec.RequiredFields() {
		if !fm.Has(tag) {
			return fix.RequiredTagMissing(tag)
		}
	}
	for _, tag := range fm.GroupTags() {
		g, ok := sec.Group(tag)
		if !ok {
			continue
		}
		for _, inst := range fm.Groups(tag) {
			if err := checkRequired(g.Section, &inst.FieldMap); err != nil {
				return err
			}
		}
	}
	return nil
}

type validator struct {
	dd       *DataDictionary
	settings ValidationSettings
}

func (v validator) checkFields(sec *Section, fm *fix.FieldMap, body bool) error {
	for _, tag := range fm.Tags() {
		value, _ := fm.Get(tag)
		if err := v.checkField(sec, tag, value, body); err != nil {
			return err
		}
		g, ok := sec.Group(tag)
		if !ok {
			continue
		}
		declared, err := fm.GetInt(tag)
		if err != nil {
			return err
		}
		if declared != fm.GroupCount(tag) {
			return fix.NewFieldError(fix.RejectReasonIncorrectNumInGroupCount, tag)
		}
		for _, inst := range fm.Groups(tag) {
			if err := v.checkFields(g.Section, &inst.FieldMap, body); err != nil {
				return err
			}
		}
	}
	return nil
}

func (v validator) checkField(sec *Section, tag int, value string, body bool) error {
	dd := v.dd
	if value == "" && v.settings.CheckFieldsHaveValues {
		return fix.NewFieldError(fix.RejectReasonTagSpecifiedWithoutValue, tag)
	}
	if tag >= fix.UserDefinedTagMin && !v.settings.CheckUserDefinedFields {
		return nil
	}
	f, ok := dd.fields[tag]
	if !ok {
		return fix.NewFieldError(fix.RejectReasonInvalidTagNumber, tag)
	}
	if value != "" && !IsValidType(value, f.Type) {
		return fix.IncorrectDataFormat(tag)
	}
	if value != "" && len(f.Enums) > 0 && !dd.IsFieldValue(tag, value) {
		return fix.IncorrectTagValue(tag)
	}
	if body && !sec.IsField(tag) && !dd.IsHeaderField(tag) && !dd.IsTrailerField(tag) {
		if !v.settings.AllowUnknownMessageFields {
			return fix.NewFieldError(fix.RejectReasonTagNotDefinedForMessageType, tag)
		}
	}
	return nil
}

var monthYear = regexp.MustCompile(`^\d{6}(\d{2}|-\d{1,2}|-?w[1-5])?$`)

// IsValidType reports whether val is well formed for the dictionary type typ.
// Unknown types accept any value.
func IsValidType(val string, typ string) bool {
	var err error
	switch typ {
	case "INT", "LENGTH", "NUMINGROUP", "SEQNUM", "TAGNUM", "DAYOFMONTH":
		_, err = fix.ConvertInt(val)
	case "FLOAT", "QTY", "PRICE", "PRICEOFFSET", "AMT", "PERCENTAGE":
		_, err = fix.ConvertFloat(val)
	case "BOOLEAN":
		_, err = fix.ConvertBool(val)
	case "CHAR":
		_, err = fix.ConvertChar(val)
	case "UTCTIMESTAMP", "TIME":
		_, err = fix.ConvertUTCTimestamp(val)
	case "UTCDATEONLY", "UTCDATE", "LOCALMKTDATE", "DATE":
		_, err = fix.ConvertUTCDateOnly(val)
	case "UTCTIMEONLY":
		_, err = fix.ConvertUTCTimeOnly(val)
	case "MONTHYEAR":
		return monthYear.MatchString(val)
	}
	return err == nil
}
