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
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/stephenlclarke/fixengine/datadictionary"
	"github.com/stephenlclarke/fixengine/decoder"
	"github.com/stephenlclarke/fixengine/fix"
)

// Version, Branch, GitUrl, Sha are injected at build time via -ldflags
var (
	Version = "0.0.0"
	Branch  = "main"
	GitUrl  = "git@github.com:stephenlclarke/fixengine.git"
	Sha     = "0000000"
)

var isTerminal = term.IsTerminal

// optionalFlag supports an optional string argument; bare -flag lists
// everything, explicit -flag= shows usage and -flag=X selects X.
type optionalFlag struct {
	value string
	isSet bool
}

func (o *optionalFlag) String() string     { return o.value }
func (o *optionalFlag) Set(s string) error { o.value, o.isSet = s, true; return nil }
func (o *optionalFlag) IsBoolFlag() bool   { return true }

type colourFlag struct {
	isSet bool
	value bool
}

func (c *colourFlag) String() string {
	if c.value {
		return "true"
	}
	return "false"
}

func (c *colourFlag) Set(s string) error {
	c.isSet = true
	s = strings.ToLower(s)
	switch s {
	case "", "true", "yes":
		c.value = true
	case "false", "no":
		c.value = false
	default:
		return fmt.Errorf("invalid value for -colour: %q", s)
	}
	return nil
}

func (c *colourFlag) IsBoolFlag() bool {
	return true
}

// CLIOptions holds all parsed flag values.
type CLIOptions struct {
	XMLPath        string
	FixVersion     string
	Verbose        bool
	IncludeHeader  bool
	IncludeTrailer bool
	ColumnOutput   bool
	Message        optionalFlag
	Tag            optionalFlag
	Info           bool
	Validate       bool
	Obfuscate      bool
	Colour         colourFlag
	ConfigPath     string
	Sessions       bool
	Files          []string
}

// parseFlagsArgs parses command-line arguments using a fresh FlagSet.
func parseFlagsArgs(args []string, errOut io.Writer) (CLIOptions, error) {
	var opts CLIOptions

	fs := flag.NewFlagSet("fixengine", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.StringVar(&opts.XMLPath, "xml", "", "Path to alternative FIX XML file")
	fs.StringVar(&opts.FixVersion, "fix", "44", "FIX version to use ("+supportedVersions()+")")
	fs.BoolVar(&opts.Verbose, "verbose", false, "Show enums and log at debug level")
	fs.BoolVar(&opts.IncludeHeader, "header", false, "Include Header block")
	fs.BoolVar(&opts.IncludeTrailer, "trailer", false, "Include Trailer block")
	fs.BoolVar(&opts.ColumnOutput, "column", false, "Display lists and enums in columns")
	fs.BoolVar(&opts.Info, "info", false, "Show dictionary summary (version, fields, messages)")
	fs.BoolVar(&opts.Validate, "validate", false, "Validate FIX messages during decoding")
	fs.BoolVar(&opts.Obfuscate, "obfuscate", false, "Mask sensitive tag values while decoding")
	fs.StringVar(&opts.ConfigPath, "config", "", "Session configuration file")
	fs.BoolVar(&opts.Sessions, "sessions", false, "Report schedule and store state of every configured session")
	fs.Var(&opts.Message, "message", "Message name or MsgType (omit to list all messages)")
	fs.Var(&opts.Tag, "tag", "Tag number to display details for (omit to list all tags)")
	fs.Var(&opts.Colour, "colour", "Force coloured output (yes|no). Default: auto-detect based on stdout")

	fs.Usage = func() {
		PrintUsage(errOut)
		fmt.Fprintln(errOut, "\nFlags:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	opts.Files = extractFileArgsOrStdin(fs.Args())
	return opts, nil
}

func supportedVersions() string {
	return strings.Join(datadictionary.EmbeddedVersions(), ", ")
}

// PrintUsage prints the program usage.
func PrintUsage(w io.Writer) {
	fmt.Fprintf(w, "fixengine %s (branch:%s, commit:%s)\n\n", Version, Branch, Sha)
	fmt.Fprintf(w, "  git clone %s\n\n", GitUrl)
	fmt.Fprintln(w, "Usage: fixengine [[-fix=44] | [-xml FIX44.xml]] [-message[=MSG] [-verbose] [-column] [-header] [-trailer]]")
	fmt.Fprintln(w, "       fixengine [[-fix=44] | [-xml FIX44.xml]] [-tag[=TAG] [-verbose] [-column]]")
	fmt.Fprintln(w, "       fixengine [[-fix=44] | [-xml FIX44.xml]] [-info]")
	fmt.Fprintln(w, "       fixengine -config fixengine.yaml -sessions")
	fmt.Fprintln(w, "       fixengine [-validate] [-obfuscate] [-colour=yes|no] [file1.log file2.log ...]")
}

// extractFileArgsOrStdin returns the positional arguments, or []{"-"} when
// there are none, which decoder.PrettifyFiles reads as os.Stdin.
func extractFileArgsOrStdin(args []string) []string {
	if len(args) == 0 {
		return []string{"-"}
	}
	return args
}

// loadDictionary picks between an explicit XML file or an embedded dictionary.
func loadDictionary(opts CLIOptions) (*datadictionary.DataDictionary, error) {
	if opts.XMLPath != "" {
		return datadictionary.Load(opts.XMLPath)
	}
	dd, err := datadictionary.Resolve("FIX" + strings.ReplaceAll(opts.FixVersion, ".", ""))
	if err != nil {
		return nil, fmt.Errorf("unsupported FIX version %q (%s): %w", opts.FixVersion, supportedVersions(), err)
	}
	return dd, nil
}

var newLogger = func(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// Process is the entry point: parses flags, loads a dictionary, runs
// handlers and returns an exit code.
func Process(ctx context.Context, args []string, out, errOut io.Writer) int {
	opts, err := parseFlagsArgs(args, errOut)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	logger, err := newLogger(opts.Verbose)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer logger.Sync() //nolint:errcheck

	if opts.Sessions {
		return handleSessions(ctx, opts, out, logger)
	}

	decoder.SetValidation(opts.Validate)

	dd, err := loadDictionary(opts)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}

	if handled, ok := runHandlers(opts, dd, out); handled {
		if !ok {
			return 1
		}
		return 0
	}

	if opts.XMLPath != "" {
		decoder.SetDictionary(dd)
		defer decoder.SetDictionary(nil)
	}

	if !opts.Colour.isSet {
		if !isTerminal(int(os.Stdout.Fd())) {
			decoder.DisableColours()
		}
	} else if !opts.Colour.value {
		decoder.DisableColours()
	}

	obfuscator := fix.NewObfuscator(nil, opts.Obfuscate)
	obfuscator.FirstUse = func(tag int, name, _, alias string) {
		logger.Debug("masking sensitive value", zap.Int("tag", tag), zap.String("name", name), zap.String("alias", alias))
	}

	return decoder.PrettifyFiles(opts.Files, out, errOut, obfuscator)
}

func main() {
	os.Exit(Process(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
