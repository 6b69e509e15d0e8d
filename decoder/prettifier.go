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
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/stephenlclarke/fixengine/datadictionary"
	"github.com/stephenlclarke/fixengine/fix"
)

var (
	resolveDictionary = datadictionary.Resolve
	streamLogFunc     = streamLog
	getTermSize       = term.GetSize // allow override in tests

	enableValidation = false // controlled by -validate flag
	forcedDictionary *datadictionary.DataDictionary

	fixMessagePattern = regexp.MustCompile(`8=FIX.*?\x0110=\d{3}\x01`)
)

var (
	ColourReset = "\033[0m"
	ColourLine  = "\033[38;5;244m"
	ColourTag   = "\033[38;5;81m"
	ColourName  = "\033[38;5;151m"
	ColourValue = "\033[38;5;228m"
	ColourEnum  = "\033[38;5;214m"
	ColourFile  = "\033[95m"
	ColourError = "\033[31m"
	ColourMsg   = "\033[97m"
	ColourTitle = "\033[31m"
)

func DisableColours() {
	ColourReset = ""
	ColourLine = ""
	ColourTag = ""
	ColourName = ""
	ColourValue = ""
	ColourEnum = ""
	ColourFile = ""
	ColourError = ""
	ColourMsg = ""
	ColourTitle = ""
}

// SetValidation turns per message validation on or off.
func SetValidation(enabled bool) {
	enableValidation = enabled
}

// SetDictionary decodes every message with dd instead of picking a
// dictionary from the message's BeginString. nil restores the default.
func SetDictionary(dd *datadictionary.DataDictionary) {
	forcedDictionary = dd
}

type field struct {
	tag   int
	value string
}

// splitFields returns the tag=value pairs of msg in wire order, skipping
// anything that is not a numeric tag.
func splitFields(msg string) []field {
	var out []field
	for rest := msg; rest != ""; {
		var pair string
		pair, rest, _ = strings.Cut(rest, "\x01")
		tagStr, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		tag, err := strconv.Atoi(tagStr)
		if err != nil {
			continue
		}
		out = append(out, field{tag: tag, value: value})
	}
	return out
}

// dictionaryFor picks the dictionary for msg by its BeginString, falling
// back to FIX.4.4. It returns nil only when no dictionary can be loaded.
func dictionaryFor(msg string) *datadictionary.DataDictionary {
	if forcedDictionary != nil {
		return forcedDictionary
	}
	begin := fix.BeginStringFIX44
	if v, _, ok := strings.Cut(strings.TrimPrefix(msg, "8="), "\x01"); ok && strings.HasPrefix(msg, "8=") {
		begin = v
	}
	if dd, err := resolveDictionary(begin); err == nil {
		return dd
	}
	dd, err := resolveDictionary(fix.BeginStringFIX44)
	if err != nil {
		return nil
	}
	return dd
}

// PrettifySimple decodes msg with the dictionary of its version.
func PrettifySimple(msg string) string {
	return Prettify(msg, dictionaryFor(msg))
}

// Prettify renders one field per line with its name and, for enumerated
// fields, the meaning of the value. dd may be nil.
func Prettify(msg string, dd *datadictionary.DataDictionary) string {
	var sb strings.Builder

	for _, f := range splitFields(msg) {
		name := strconv.Itoa(f.tag)
		desc := ""
		if dd != nil {
			name = dd.FieldName(f.tag)
			desc = dd.EnumDescription(f.tag, f.value)
		}

		fmt.Fprintf(&sb, "    %s%4d%s (%s%s%s): %s%s%s",
			ColourTag, f.tag, ColourReset,
			ColourName, name, ColourReset,
			ColourValue, f.value, ColourReset,
		)
		if desc != "" {
			fmt.Fprintf(&sb, " (%s%s%s)", ColourEnum, desc, ColourReset)
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// PrettifyFiles decodes every FIX message found in the given log files, or
// in stdin when paths is empty or "-". It returns the process exit code.
func PrettifyFiles(paths []string, out io.Writer, errOut io.Writer, obfuscator *fix.Obfuscator) int {
	if len(paths) == 0 {
		if err := streamLogFunc(os.Stdin, out, obfuscator); err != nil {
			fmt.Fprintln(errOut, ColourError+"Error reading input:"+err.Error()+ColourReset)
			return 1
		}
		return 0
	}

	hadError := false
	for _, path := range paths {
		if path == "-" {
			fmt.Fprint(out, "Processing: (stdin)\n\n")
			if err := streamLogFunc(os.Stdin, out, obfuscator); err != nil {
				fmt.Fprintln(errOut, ColourError+"Error reading file:"+err.Error()+ColourReset)
				hadError = true
			}
			continue
		}

		fmt.Fprint(out, "Processing: ", ColourFile, path, ColourReset, "\n\n")
		f, err := os.Open(path)
		if err != nil {
			fmt.Fprintln(errOut, ColourError+"Cannot open file:"+err.Error()+ColourReset)
			hadError = true
			continue
		}
		if err := streamLogFunc(f, out, obfuscator); err != nil {
			fmt.Fprintln(errOut, ColourError+"Error reading file:"+err.Error()+ColourReset)
			hadError = true
		}
		f.Close()
	}

	if hadError {
		return 1
	}
	return 0
}

func streamLog(in io.Reader, out io.Writer, obfuscator *fix.Obfuscator) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	separator := ColourTitle + strings.Repeat("=", terminalWidth()) + ColourReset + "\n"

	for scanner.Scan() {
		handleLogLine(obfuscator.Obfuscate(scanner.Text()), out, separator)
	}

	return scanner.Err()
}

func handleLogLine(line string, out io.Writer, separator string) {
	matches := fixMessagePattern.FindAllStringIndex(line, -1)
	if len(matches) == 0 {
		fmt.Fprint(out, ColourLine, line, ColourReset, "\n")
		return
	}

	fixMessages, colouredLine := extractFixMessagesAndFormat(line, matches)
	fmt.Fprint(out, colouredLine)
	fmt.Fprint(out, separator)

	for _, msg := range fixMessages {
		processFixMessage(msg, out, separator)
	}
}

func processFixMessage(msg string, out io.Writer, separator string) {
	dd := dictionaryFor(msg)
	fmt.Fprint(out, Prettify(msg, dd))

	if enableValidation {
		if problems := Validate(msg, dd); len(problems) > 0 {
			fmt.Fprint(out, separator)
			for _, p := range problems {
				fmt.Fprintf(out, "%s== %s%s\n", ColourError, p, ColourReset)
			}
		}
	}

	fmt.Fprint(out, separator)
}

func terminalWidth() int {
	if w, _, err := getTermSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 80
}

func extractFixMessagesAndFormat(line string, matches [][]int) ([]string, string) {
	var (
		output      strings.Builder
		lastIndex   int
		fixMessages []string
	)

	for _, match := range matches {
		start, end := match[0], match[1]
		output.WriteString(ColourLine + line[lastIndex:start] + ColourMsg + line[start:end])
		fixMessages = append(fixMessages, line[start:end])
		lastIndex = end
	}
	output.WriteString(ColourLine + line[lastIndex:] + ColourReset + "\n")

	return fixMessages, output.String()
}
