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
	"embed"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/stephenlclarke/fixengine/fix"
)

//go:embed spec/*.xml
var specFS embed.FS

// BeginString -> embedded dictionary file
var embeddedFiles = map[string]string{
	fix.BeginStringFIX42: "spec/FIX42.xml",
	fix.BeginStringFIX44: "spec/FIX44.xml",
}

var (
	dicts   = make(map[string]*DataDictionary) // cache key -> dictionary
	dictMux sync.RWMutex                       // guards the map
)

func cached(key string, load func() (*DataDictionary, error)) (*DataDictionary, error) {
	// Fast path: read lock
	dictMux.RLock()
	if d, ok := dicts[key]; ok {
		dictMux.RUnlock()
		return d, nil
	}
	dictMux.RUnlock()

	// Parse without holding the lock
	parsed, err := load()
	if err != nil {
		return nil, err
	}

	dictMux.Lock()
	defer dictMux.Unlock()
	if d, ok := dicts[key]; ok {
		return d, nil
	}
	dicts[key] = parsed
	return parsed, nil
}

// LoadCached loads the dictionary at path once and hands out the same shared
// instance afterwards. Callers must not modify it; use Clone for that.
func LoadCached(path string) (*DataDictionary, error) {
	return cached("file:"+path, func() (*DataDictionary, error) { return Load(path) })
}

// Embedded returns the built in session dictionary for beginString.
func Embedded(beginString string) (*DataDictionary, error) {
	file, ok := embeddedFiles[normaliseVersion(beginString)]
	if !ok {
		return nil, &ConfigError{Source: beginString, Reason: "no embedded dictionary for this version"}
	}
	return cached("embedded:"+file, func() (*DataDictionary, error) {
		b, err := specFS.ReadFile(file)
		if err != nil {
			return nil, &ConfigError{Source: file, Reason: err.Error()}
		}
		return ParseBytes(b, file)
	})
}

// EmbeddedVersions lists the versions Embedded knows, sorted.
func EmbeddedVersions() []string {
	return slices.Sorted(maps.Keys(embeddedFiles))
}

// Resolve returns the embedded dictionary when ref names a version such as
// "FIX.4.4" or "FIX44", otherwise the cached dictionary loaded from path ref.
func Resolve(ref string) (*DataDictionary, error) {
	if _, ok := embeddedFiles[normaliseVersion(ref)]; ok {
		return Embedded(ref)
	}
	return LoadCached(ref)
}

// normaliseVersion turns FIX42 into FIX.4.2; other forms pass through.
func normaliseVersion(v string) string {
	if len(v) == 5 && strings.HasPrefix(v, "FIX") {
		return "FIX." + v[3:4] + "." + v[4:5]
	}
	return v
}
