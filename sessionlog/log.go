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

// Package sessionlog records the messages and events of FIX sessions.
package sessionlog

import (
	"strings"

	"go.uber.org/zap"

	"github.com/stephenlclarke/fixengine/fix"
)

// Log receives the traffic and events of one session.
type Log interface {
	OnIncoming(raw string)
	OnOutgoing(raw string)
	OnEvent(text string)
	OnErrorEvent(text string)
}

// Factory creates the Log of a session.
type Factory interface {
	Create(id fix.SessionID) Log
}

// ZapFactory writes session logs through a zap.Logger.
type ZapFactory struct {
	logger *zap.Logger
	obf    *fix.Obfuscator
}

// NewZapFactory logs through logger, masking sensitive tags with obf when it
// is enabled. obf may be nil.
func NewZapFactory(logger *zap.Logger, obf *fix.Obfuscator) *ZapFactory {
	if obf.Enabled() && obf.FirstUse == nil {
		obf.FirstUse = func(tag int, name, _ string, alias string) {
			logger.Debug("sensitive value masked",
				zap.Int("tag", tag),
				zap.String("name", name),
				zap.String("alias", alias))
		}
	}
	return &ZapFactory{logger: logger, obf: obf}
}

func (f *ZapFactory) Create(id fix.SessionID) Log {
	return &ZapLog{
		logger: f.logger.With(zap.String("session_id", id.String())),
		obf:    f.obf,
	}
}

// ZapLog is the zap backed Log of one session.
type ZapLog struct {
	logger *zap.Logger
	obf    *fix.Obfuscator
}

// render masks sensitive values and makes SOH visible.
func (l *ZapLog) render(raw string) string {
	return strings.ReplaceAll(l.obf.Obfuscate(raw), "\x01", "|")
}

func (l *ZapLog) OnIncoming(raw string) {
	l.logger.Info("message", zap.String("direction", "in"), zap.String("fix", l.render(raw)))
}

func (l *ZapLog) OnOutgoing(raw string) {
	l.logger.Info("message", zap.String("direction", "out"), zap.String("fix", l.render(raw)))
}

func (l *ZapLog) OnEvent(text string) {
	l.logger.Info(text)
}

func (l *ZapLog) OnErrorEvent(text string) {
	l.logger.Error(text)
}

type nopLog struct{}

func (nopLog) OnIncoming(string) {}
func (nopLog) OnOutgoing(string) {}
func (nopLog) OnEvent(string) {}
func (nopLog) OnErrorEvent(string) {}

// Nop discards everything.
var Nop Log = nopLog{}

// NopFactory hands out Nop.
type NopFactory struct{}

func (NopFactory) Create(fix.SessionID) Log { return Nop }
