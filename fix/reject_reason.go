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

// RejectReason is a SessionRejectReason(373) code.
type RejectReason int

const (
	RejectReasonInvalidTagNumber               RejectReason = 0
	RejectReasonRequiredTagMissing             RejectReason = 1
	RejectReasonTagNotDefinedForMessageType    RejectReason = 2
	RejectReasonUndefinedTag                   RejectReason = 3
	RejectReasonTagSpecifiedWithoutValue       RejectReason = 4
	RejectReasonValueIsIncorrect               RejectReason = 5
	RejectReasonIncorrectDataFormat            RejectReason = 6
	RejectReasonDecryptionProblem              RejectReason = 7
	RejectReasonSignatureProblem               RejectReason = 8
	RejectReasonCompIDProblem                  RejectReason = 9
	RejectReasonSendingTimeAccuracyProblem     RejectReason = 10
	RejectReasonInvalidMsgType                 RejectReason = 11
	RejectReasonTagAppearsMoreThanOnce         RejectReason = 13
	RejectReasonTagSpecifiedOutOfRequiredOrder RejectReason = 14
	RejectReasonRepeatingGroupFieldsOutOfOrder RejectReason = 15
	RejectReasonIncorrectNumInGroupCount       RejectReason = 16
	RejectReasonNonDataValueIncludesDelimiter  RejectReason = 17
	RejectReasonOther                          RejectReason = 99
)

var rejectReasonText = map[RejectReason]string{
	RejectReasonInvalidTagNumber:               "Invalid tag number",
	RejectReasonRequiredTagMissing:             "Required tag missing",
	RejectReasonTagNotDefinedForMessageType:    "Tag not defined for this message type",
	RejectReasonUndefinedTag:                   "Undefined Tag",
	RejectReasonTagSpecifiedWithoutValue:       "Tag specified without a value",
	RejectReasonValueIsIncorrect:               "Value is incorrect (out of range) for this tag",
	RejectReasonIncorrectDataFormat:            "Incorrect data format for value",
	RejectReasonDecryptionProblem:              "Decryption problem",
	RejectReasonSignatureProblem:               "Signature problem",
	RejectReasonCompIDProblem:                  "CompID problem",
	RejectReasonSendingTimeAccuracyProblem:     "SendingTime accuracy problem",
	RejectReasonInvalidMsgType:                 "Invalid MsgType",
	RejectReasonTagAppearsMoreThanOnce:         "Tag appears more than once",
	RejectReasonTagSpecifiedOutOfRequiredOrder: "Tag specified out of required order",
	RejectReasonRepeatingGroupFieldsOutOfOrder: "Repeating group fields out of order",
	RejectReasonIncorrectNumInGroupCount:       "Incorrect NumInGroup count for repeating group",
	RejectReasonNonDataValueIncludesDelimiter:  "Non Data value includes field delimiter (SOH character)",
	RejectReasonOther:                          "Other",
}

func (r RejectReason) String() string {
	if s, ok := rejectReasonText[r]; ok {
		return s
	}
	return "Other"
}

// BusinessRejectReason is a BusinessRejectReason(380) code.
type BusinessRejectReason int

const (
	BusinessRejectReasonOther                      BusinessRejectReason = 0
	BusinessRejectReasonUnknownID                  BusinessRejectReason = 1
	BusinessRejectReasonUnknownSecurity            BusinessRejectReason = 2
	BusinessRejectReasonUnsupportedMessageType     BusinessRejectReason = 3
	BusinessRejectReasonApplicationNotAvailable    BusinessRejectReason = 4
	BusinessRejectReasonConditionallyRequiredField BusinessRejectReason = 5
	BusinessRejectReasonNotAuthorized              BusinessRejectReason = 6
	BusinessRejectReasonDeliverToFirmNotAvailable  BusinessRejectReason = 7
)

var businessRejectReasonText = map[BusinessRejectReason]string{
	BusinessRejectReasonOther:                      "Other",
	BusinessRejectReasonUnknownID:                  "Unknown ID",
	BusinessRejectReasonUnknownSecurity:            "Unknown Security",
	BusinessRejectReasonUnsupportedMessageType:     "Unsupported Message Type",
	BusinessRejectReasonApplicationNotAvailable:    "Application not available",
	BusinessRejectReasonConditionallyRequiredField: "Conditionally Required Field Missing",
	BusinessRejectReasonNotAuthorized:              "Not authorized",
	BusinessRejectReasonDeliverToFirmNotAvailable:  "DeliverTo firm not available at this time",
}

func (r BusinessRejectReason) String() string {
	if s, ok := businessRejectReasonText[r]; ok {
		return s
	}
	return "Other"
}
