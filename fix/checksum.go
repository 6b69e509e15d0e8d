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
	"fmt"
	"strings"
)

// Checksum returns the sum of the bytes of s modulo 256.
func Checksum(s string) int {
	sum := 0
	for i := 0; i < len(s); i++ {
		sum += int(s[i])
	}
	return sum % 256
}

// CalculateChecksum returns the checksum of msg up to and including the SOH
// ahead of its CheckSum field, or -1 when msg carries no CheckSum.
func CalculateChecksum(msg string) int {
	cutoff := strings.LastIndex(msg, "\x0110=")
	if cutoff == -1 {
		return -1
	}
	return Checksum(msg[:cutoff+1])
}

// FormatChecksum renders a checksum as the three digits carried in tag 10.
func FormatChecksum(sum int) string {
	return fmt.Sprintf("%03d", sum)
}
