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
	"fmt"
	"io"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stephenlclarke/fixengine/config"
	"github.com/stephenlclarke/fixengine/datadictionary"
	"github.com/stephenlclarke/fixengine/decoder"
	"github.com/stephenlclarke/fixengine/session"
)

var now = time.Now

func displayOptions(opts CLIOptions) decoder.DisplayOptions {
	return decoder.DisplayOptions{
		Verbose:        opts.Verbose,
		Column:         opts.ColumnOutput,
		IncludeHeader:  opts.IncludeHeader,
		IncludeTrailer: opts.IncludeTrailer,
	}
}

// handleXML is triggered when the user supplied -xml=FILE.
// It prints a short description of the external dictionary that has just
// been loaded.
func handleXML(opts CLIOptions, dd *datadictionary.DataDictionary, out io.Writer) {
	if opts.XMLPath == "" {
		return
	}
	fmt.Fprintf(out, "Dictionary loaded from: %s%s%s\n\n", decoder.ColourError, opts.XMLPath, decoder.ColourReset)
	decoder.Summary(out, dd)
}

// handleInfo prints a summary of the dictionary. Returns true if handled.
func handleInfo(opts CLIOptions, dd *datadictionary.DataDictionary, out io.Writer) bool {
	if !opts.Info {
		return false
	}
	fmt.Fprintf(out, "Available FIX Dictionaries: %s\n", supportedVersions())
	fmt.Fprint(out, "Current Dictionary: ")
	decoder.Summary(out, dd)
	return true
}

// handleMessage processes the -message flag. Returns handled and whether
// the requested message was found.
func handleMessage(opts CLIOptions, dd *datadictionary.DataDictionary, out io.Writer) (bool, bool) {
	if !opts.Message.isSet {
		return false, true
	}
	switch opts.Message.value {
	case "true": // bare -message
		decoder.ListAllMessages(out, dd, opts.ColumnOutput)
	case "": // explicit -message=
		PrintUsage(out)
	default:
		for _, mt := range dd.MsgTypes() {
			if mt == opts.Message.value || dd.MessageName(mt) == opts.Message.value {
				return true, decoder.DisplayMessage(out, dd, mt, displayOptions(opts)) == nil
			}
		}
		fmt.Fprintf(out, "Message not found: %s\n", opts.Message.value)
		return true, false
	}
	return true, true
}

// handleTag processes the -tag flag. Returns handled and whether the
// requested tag was found.
func handleTag(opts CLIOptions, dd *datadictionary.DataDictionary, out io.Writer) (bool, bool) {
	if !opts.Tag.isSet {
		return false, true
	}
	switch opts.Tag.value {
	case "true": // bare -tag
		decoder.ListAllTags(out, dd, opts.ColumnOutput)
	case "": // explicit -tag=
		PrintUsage(out)
	default:
		return true, handleSpecificTag(opts, dd, out)
	}
	return true, true
}

func handleSpecificTag(opts CLIOptions, dd *datadictionary.DataDictionary, out io.Writer) bool {
	id, err := strconv.Atoi(opts.Tag.value)
	if err != nil {
		if tag, ok := dd.FieldTag(opts.Tag.value); ok {
			id = tag
		} else {
			fmt.Fprintf(out, "Invalid tag: %s\n", opts.Tag.value)
			return false
		}
	}
	if err := decoder.PrintTagDetails(out, dd, id, displayOptions(opts)); err != nil {
		fmt.Fprintf(out, "Tag not found: %d\n", id)
		return false
	}
	return true
}

// runHandlers invokes each of the "-info", "-message" and "-tag" handlers.
// It reports whether any handler ran and whether all of them succeeded.
func runHandlers(opts CLIOptions, dd *datadictionary.DataDictionary, out io.Writer) (handled, ok bool) {
	handleXML(opts, dd, out)

	ok = true
	if handleInfo(opts, dd, out) {
		handled = true
	}
	if h, found := handleMessage(opts, dd, out); h {
		handled, ok = true, ok && found
	}
	if h, found := handleTag(opts, dd, out); h {
		handled, ok = true, ok && found
	}
	return handled, ok
}

// sessionStatus is one line of the -sessions report.
type sessionStatus struct {
	settings   session.Settings
	nextSender int
	nextTarget int
	created    time.Time
}

func (s sessionStatus) String() string {
	state := "out of session"
	if s.settings.Schedule.IsSessionTime(now()) {
		state = "in session"
	}
	return fmt.Sprintf("%s [%s] %s, %s\n    next sender %d, next target %d, store created %s",
		s.settings.SessionID, s.settings.ConnectionType, s.settings.Schedule, state,
		s.nextSender, s.nextTarget, s.created.Format(time.RFC3339))
}

// handleSessions loads -config and reports the schedule and stored
// sequence numbers of every session, reading the stores concurrently.
func handleSessions(ctx context.Context, opts CLIOptions, out io.Writer, logger *zap.Logger) int {
	if opts.ConfigPath == "" {
		fmt.Fprintln(out, "-sessions needs -config")
		return 1
	}
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		logger.Error("loading configuration", zap.Error(err))
		return 1
	}
	factory, closeStore, err := cfg.Store.Open()
	if err != nil {
		logger.Error("opening store", zap.String("type", cfg.Store.Type), zap.Error(err))
		return 1
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("closing store", zap.Error(err))
		}
	}()

	statuses := make([]sessionStatus, len(cfg.Sessions))
	g, ctx := errgroup.WithContext(ctx)
	for i, s := range cfg.Sessions {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			ms, err := factory.Create(s.SessionID)
			if err != nil {
				return fmt.Errorf("%s: %w", s.SessionID, err)
			}
			statuses[i] = sessionStatus{
				settings:   s,
				nextSender: ms.NextSenderMsgSeqNum(),
				nextTarget: ms.NextTargetMsgSeqNum(),
				created:    ms.CreationTime(),
			}
			logger.Debug("read session store", zap.Stringer("session_id", s.SessionID))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error("reading session stores", zap.Error(err))
		return 1
	}

	for _, st := range statuses {
		fmt.Fprintln(out, st)
	}
	return 0
}
