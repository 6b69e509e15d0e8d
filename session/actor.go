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
package session

import (
	"context"
	"time"
)

// TickInterval is how often Run drives the session timers.
const TickInterval = time.Second

// Run owns the session until ctx is done. It processes raw inbound messages
// from inbound, work posted with Submit and the timers. A closed inbound
// channel means the transport went away.
func (s *Session) Run(ctx context.Context, inbound <-chan string) error {
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case raw, ok := <-inbound:
			if !ok {
				s.disconnect("Connection closed")
				inbound = nil
				continue
			}
			if err := s.NextRaw(raw); err != nil {
				s.log.OnErrorEvent(err.Error())
			}

		case cmd := <-s.cmds:
			cmd()

		case <-ticker.C:
			if err := s.Tick(); err != nil {
				s.log.OnErrorEvent(err.Error())
			}
		}
	}
}

// Submit runs fn on the goroutine executing Run and waits for its result.
func (s *Session) Submit(ctx context.Context, fn func(*Session) error) error {
	done := make(chan error, 1)
	cmd := func() { done <- fn(s) }

	select {
	case s.cmds <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
