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
	"maps"
	"strconv"
	"strings"
	"sync"
)

// DefaultSensitiveTags are masked when no explicit tag set is configured.
var DefaultSensitiveTags = map[int]string{
	TagAccount:  "Account",
	TagUsername: "Username",
	TagPassword: "Password",
	TagRawData:  "RawData",
}

// Obfuscator replaces values of sensitive tags with stable aliases such as
// Account0001. The same tag=value pair always maps to the same alias.
// It is safe for concurrent use.
type Obfuscator struct {
	enabled  bool
	tags     map[int]string
	mu       sync.Mutex
	aliasMap map[string]string // "tag=value" -> alias
	counter  map[int]int

	// FirstUse, when set, is called once for every new tag=value pair.
	FirstUse func(tag int, name, value, alias string)
}

// NewObfuscator builds an Obfuscator over tags (tag -> alias prefix). A nil
// map selects DefaultSensitiveTags.
func NewObfuscator(tags map[int]string, enabled bool) *Obfuscator {
	if tags == nil {
		tags = DefaultSensitiveTags
	}
	return &Obfuscator{
		enabled:  enabled,
		tags:     maps.Clone(tags),
		aliasMap: make(map[string]string),
		counter:  make(map[int]int),
	}
}

// Enabled reports whether lines are rewritten.
func (o *Obfuscator) Enabled() bool { return o != nil && o.enabled }

// Obfuscate rewrites one SOH delimited line. Fields that are not tag=value
// pairs with a numeric tag pass through untouched.
func (o *Obfuscator) Obfuscate(line string) string {
	if !o.Enabled() || len(o.tags) == 0 {
		return line
	}
	fields := strings.Split(line, string(soh))
	for i, f := range fields {
		tagStr, val, ok := strings.Cut(f, "=")
		if !ok {
			continue
		}
		tag, err := strconv.Atoi(tagStr)
		if err != nil {
			continue
		}
		name, sensitive := o.tags[tag]
		if !sensitive {
			continue
		}
		fields[i] = tagStr + "=" + o.alias(tag, name, val)
	}
	return strings.Join(fields, string(soh))
}

func (o *Obfuscator) alias(tag int, name, val string) string {
	key := strconv.Itoa(tag) + "=" + val

	o.mu.Lock()
	alias, exists := o.aliasMap[key]
	if !exists {
		o.counter[tag]++
		alias = fmt.Sprintf("%s%04d", name, o.counter[tag])
		o.aliasMap[key] = alias
	}
	o.mu.Unlock()

	if !exists && o.FirstUse != nil {
		o.FirstUse(tag, name, val, alias)
	}
	return alias
}
