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

// Standard header tags.
const (
	TagBeginString          = 8
	TagBodyLength           = 9
	TagMsgType              = 35
	TagSenderCompID         = 49
	TagTargetCompID         = 56
	TagOnBehalfOfCompID     = 115
	TagDeliverToCompID      = 128
	TagSecureDataLen        = 90
	TagSecureData           = 91
	TagMsgSeqNum            = 34
	TagSenderSubID          = 50
	TagSenderLocationID     = 142
	TagTargetSubID          = 57
	TagTargetLocationID     = 143
	TagOnBehalfOfSubID      = 116
	TagOnBehalfOfLocationID = 144
	TagDeliverToSubID       = 129
	TagDeliverToLocationID  = 145
	TagPossDupFlag          = 43
	TagPossResend           = 97
	TagSendingTime          = 52
	TagOrigSendingTime      = 122
	TagXMLDataLen           = 212
	TagXMLData              = 213
	TagMessageEncoding      = 347
	TagLastMsgSeqNumProc    = 369
	TagNoHops               = 627
	TagHopCompID            = 628
	TagHopSendingTime       = 629
	TagHopRefID             = 630
	TagApplVerID            = 1128
	TagCstmApplVerID        = 1129
	TagApplExtID            = 1156
)

// Standard trailer tags.
const (
	TagSignatureLength = 93
	TagSignature       = 89
	TagCheckSum        = 10
)

// Session level body tags.
const (
	TagBeginSeqNo           = 7
	TagEndSeqNo             = 16
	TagEncryptMethod        = 98
	TagHeartBtInt           = 108
	TagTestReqID            = 112
	TagGapFillFlag          = 123
	TagNewSeqNo             = 36
	TagRefSeqNum            = 45
	TagRefTagID             = 371
	TagRefMsgType           = 372
	TagSessionRejectReason  = 373
	TagBusinessRejectRefID  = 379
	TagBusinessRejectReason = 380
	TagResetSeqNumFlag      = 141
	TagText                 = 58
	TagRawDataLength        = 95
	TagRawData              = 96
	TagUsername             = 553
	TagPassword             = 554
	TagAccount              = 1
	TagDefaultApplVerID     = 1137
)

// UserDefinedTagMin is the first tag number reserved for bilateral use.
const UserDefinedTagMin = 5000

// Session message types.
const (
	MsgTypeHeartbeat             = "0"
	MsgTypeTestRequest           = "1"
	MsgTypeResendRequest         = "2"
	MsgTypeReject                = "3"
	MsgTypeSequenceReset         = "4"
	MsgTypeLogout                = "5"
	MsgTypeLogon                 = "A"
	MsgTypeBusinessMessageReject = "j"
)

// BeginString values.
const (
	BeginStringFIX40  = "FIX.4.0"
	BeginStringFIX41  = "FIX.4.1"
	BeginStringFIX42  = "FIX.4.2"
	BeginStringFIX43  = "FIX.4.3"
	BeginStringFIX44  = "FIX.4.4"
	BeginStringFIXT11 = "FIXT.1.1"
)

// IsAdminMsgType reports whether msgType names a session level message.
func IsAdminMsgType(msgType string) bool {
	return len(msgType) == 1 && (msgType == MsgTypeLogon || (msgType[0] >= '0' && msgType[0] <= '5'))
}

var headerTags = map[int]bool{
	TagBeginString: true, TagBodyLength: true, TagMsgType: true, TagSenderCompID: true,
	TagTargetCompID: true, TagOnBehalfOfCompID: true, TagDeliverToCompID: true,
	TagSecureDataLen: true, TagSecureData: true, TagMsgSeqNum: true, TagSenderSubID: true,
	TagSenderLocationID: true, TagTargetSubID: true, TagTargetLocationID: true,
	TagOnBehalfOfSubID: true, TagOnBehalfOfLocationID: true, TagDeliverToSubID: true,
	TagDeliverToLocationID: true, TagPossDupFlag: true, TagPossResend: true,
	TagSendingTime: true, TagOrigSendingTime: true, TagXMLDataLen: true, TagXMLData: true,
	TagMessageEncoding: true, TagLastMsgSeqNumProc: true, TagNoHops: true,
	TagHopCompID: true, TagHopSendingTime: true, TagHopRefID: true,
	TagApplVerID: true, TagCstmApplVerID: true, TagApplExtID: true,
}

var trailerTags = map[int]bool{
	TagSignatureLength: true,
	TagSignature:       true,
	TagCheckSum:        true,
}

// data field -> length field, used when no dictionary is supplied
var defaultDataFields = map[int]int{
	TagSecureData: TagSecureDataLen,
	TagSignature:  TagSignatureLength,
	TagRawData:    TagRawDataLength,
	TagXMLData:    TagXMLDataLen,
}

// IsHeaderTag reports whether tag is one of the standard header tags.
func IsHeaderTag(tag int) bool { return headerTags[tag] }

// IsTrailerTag reports whether tag is one of the standard trailer tags.
func IsTrailerTag(tag int) bool { return trailerTags[tag] }

// DataLengthTag returns the tag carrying the byte length of data field tag.
// Signature is the one data field whose length does not sit at tag-1.
func DataLengthTag(tag int) int {
	if tag == TagSignature {
		return TagSignatureLength
	}
	return tag - 1
}
