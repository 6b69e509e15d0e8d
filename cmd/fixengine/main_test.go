package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/stephenlclarke/fixengine/decoder"
	"github.com/stephenlclarke/fixengine/fix"
)

const expectedSetValueMsg = "Expected String to return the set value"

func TestMain(m *testing.M) {
	newLogger = func(bool) (*zap.Logger, error) { return zap.NewNop(), nil }
	decoder.DisableColours()
	os.Exit(m.Run())
}

func process(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := Process(context.Background(), args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestOptionalFlagSet(t *testing.T) {
	var f optionalFlag
	err := f.Set("35")
	if err != nil || f.value != "35" || !f.isSet {
		t.Error("Expected optionalFlag to set correctly")
	}
	if !f.IsBoolFlag() {
		t.Error("Expected optionalFlag to report IsBoolFlag true")
	}
	if f.String() != "35" {
		t.Error(expectedSetValueMsg)
	}
}

func TestColourFlagSet(t *testing.T) {
	cases := map[string]bool{"": true, "yes": true, "TRUE": true, "no": false, "false": false}
	for in, want := range cases {
		var c colourFlag
		if err := c.Set(in); err != nil || c.value != want || !c.isSet {
			t.Errorf("Set(%q) = %v, %v", in, c.value, err)
		}
	}

	var c colourFlag
	if err := c.Set("maybe"); err == nil {
		t.Error("Expected error for invalid colour value")
	}
	if c.String() != "false" || !c.IsBoolFlag() {
		t.Error("Expected false bool flag")
	}
}

func TestParseFlagsArgsDefaults(t *testing.T) {
	args := []string{"-fix=44", "-verbose", "-header", "-trailer", "-column", "-info"}
	opts, err := parseFlagsArgs(args, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}

	if opts.FixVersion != "44" || !opts.Verbose || !opts.IncludeHeader || !opts.IncludeTrailer || !opts.ColumnOutput || !opts.Info {
		t.Error("Expected flags to parse correctly with defaults")
	}
	if len(opts.Files) != 1 || opts.Files[0] != "-" {
		t.Errorf("Expected stdin placeholder, got %v", opts.Files)
	}
}

func TestParseFlagsArgsWithMessageTagAndFiles(t *testing.T) {
	args := []string{"-message=Logon", "-tag=35", "-config", "x.yaml", "a.log", "b.log"}
	opts, err := parseFlagsArgs(args, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}

	if opts.Message.value != "Logon" || opts.Tag.value != "35" || opts.ConfigPath != "x.yaml" {
		t.Error("Expected flags to capture correct values")
	}
	if !opts.Message.isSet || !opts.Tag.isSet {
		t.Error("Expected flags to mark isSet true")
	}
	if strings.Join(opts.Files, ",") != "a.log,b.log" {
		t.Errorf("Expected positional files, got %v", opts.Files)
	}
}

func TestParseFlagsArgsUnknownFlag(t *testing.T) {
	var errOut bytes.Buffer
	if _, err := parseFlagsArgs([]string{"-bogus"}, &errOut); err == nil {
		t.Error("Expected error for unknown flag")
	}
	if !strings.Contains(errOut.String(), "Usage: fixengine") {
		t.Error("Expected usage on error output")
	}
}

func TestPrintUsage(t *testing.T) {
	var out bytes.Buffer
	PrintUsage(&out)

	if !strings.Contains(out.String(), "fixengine "+Version) || !strings.Contains(out.String(), "-sessions") {
		t.Errorf("Unexpected usage %q", out.String())
	}
}

func TestLoadDictionary(t *testing.T) {
	for _, v := range []string{"44", "4.4", "42"} {
		dd, err := loadDictionary(CLIOptions{FixVersion: v})
		if err != nil || dd == nil {
			t.Errorf("Expected dictionary for %s, got %v", v, err)
		}
	}
	if _, err := loadDictionary(CLIOptions{FixVersion: "99"}); err == nil {
		t.Error("Expected error for unknown version")
	}
	if _, err := loadDictionary(CLIOptions{XMLPath: filepath.Join(t.TempDir(), "missing.xml")}); err == nil {
		t.Error("Expected error for missing XML file")
	}
}

func TestProcessInfo(t *testing.T) {
	code, out, _ := process(t, "-info")

	if code != 0 {
		t.Errorf("Expected exit 0, got %d", code)
	}
	if !strings.Contains(out, "Available FIX Dictionaries: FIX.4.2, FIX.4.4") || !strings.Contains(out, "Current Dictionary: FIX.4.4") {
		t.Errorf("Unexpected output %q", out)
	}
}

func TestProcessBadVersion(t *testing.T) {
	code, _, errOut := process(t, "-fix=99", "-info")

	if code != 1 || !strings.Contains(errOut, "unsupported FIX version") {
		t.Errorf("Expected version error, got %d %q", code, errOut)
	}
}

func TestProcessDecodesFiles(t *testing.T) {
	m := fix.NewMessage()
	m.Header.SetString(fix.TagBeginString, fix.BeginStringFIX44)
	m.Header.SetString(fix.TagMsgType, "A")
	m.Body.SetString(fix.TagPassword, "hunter2")
	path := filepath.Join(t.TempDir(), "in.log")
	if err := os.WriteFile(path, []byte("12:00:00 IN "+m.String()+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	code, out, _ := process(t, "-colour=no", "-obfuscate", path)

	if code != 0 {
		t.Errorf("Expected exit 0, got %d", code)
	}
	if !strings.Contains(out, "(MsgType): A (LOGON)") {
		t.Errorf("Expected decoded Logon, got %q", out)
	}
	if strings.Contains(out, "hunter2") || !strings.Contains(out, "Password0001") {
		t.Errorf("Expected password masked, got %q", out)
	}
}

func TestProcessMissingFile(t *testing.T) {
	code, _, errOut := process(t, "-colour=no", filepath.Join(t.TempDir(), "nope.log"))

	if code != 1 || !strings.Contains(errOut, "Cannot open file:") {
		t.Errorf("Expected open failure, got %d %q", code, errOut)
	}
}
