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
	"errors"
	"time"

	"github.com/looplab/fsm"
	"github.com/tidwall/btree"

	"github.com/stephenlclarke/fixengine/fix"
)

// Status is the connection status of a session.
type Status int

const (
	Disconnected Status = iota
	NotLoggedOn
	LogonPending
	LoggedOn
	LogoutPending
)

var statusNames = [...]string{"Disconnected", "NotLoggedOn", "LogonPending", "LoggedOn", "LogoutPending"}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "Unknown"
	}
	return statusNames[s]
}

func parseStatus(name string) Status {
	for i, n := range statusNames {
		if n == name {
			return Status(i)
		}
	}
	return Disconnected
}

// transition events
const (
	evConnect       = "connect"
	evSendLogon     = "send_logon"
	evReceiveLogon  = "receive_logon"
	evSendLogout    = "send_logout"
	evReceiveLogout = "receive_logout"
	evDisconnect    = "disconnect"
)

// A Logon exchange needs one Logon each way, so whichever side moves first
// goes to LogonPending and the other completes it. A Logon carrying
// ResetSeqNumFlag may be exchanged again while logged on.
var transitions = fsm.Events{
	{Name: evConnect, Src: []string{"Disconnected"}, Dst: "NotLoggedOn"},
	{Name: evSendLogon, Src: []string{"NotLoggedOn"}, Dst: "LogonPending"},
	{Name: evReceiveLogon, Src: []string{"NotLoggedOn"}, Dst: "LogonPending"},
	{Name: evSendLogon, Src: []string{"LogonPending", "LoggedOn"}, Dst: "LoggedOn"},
	{Name: evReceiveLogon, Src: []string{"LogonPending", "LoggedOn"}, Dst: "LoggedOn"},
	{Name: evSendLogout, Src: []string{"NotLoggedOn", "LogonPending", "LoggedOn", "LogoutPending"}, Dst: "LogoutPending"},
	{Name: evReceiveLogout, Src: []string{"NotLoggedOn", "LogonPending", "LoggedOn", "LogoutPending"}, Dst: "LogoutPending"},
	{Name: evDisconnect, Src: []string{"NotLoggedOn", "LogonPending", "LoggedOn", "LogoutPending"}, Dst: "Disconnected"},
}

type resendRange struct {
	begin, end int
}

// State is the per connection state of a session. It is owned by the
// goroutine running the session and is not safe for concurrent use.
type State struct {
	machine *fsm.FSM

	logonSent      bool
	logonReceived  bool
	logoutSent     bool
	logoutReceived bool
	resetSent      bool
	resetReceived  bool

	initiator  bool
	heartBtInt time.Duration

	lastSentTime     time.Time
	lastReceivedTime time.Time
	logoutSentTime   time.Time

	testRequestCounter int

	resend *resendRange
	queue  *btree.Map[int, *fix.Message]
}

func newState(initiator bool, heartBtInt time.Duration, onEnter func(Status)) *State {
	st := &State{
		initiator:  initiator,
		heartBtInt: heartBtInt,
		queue:      btree.NewMap[int, *fix.Message](32),
	}
	st.machine = fsm.NewFSM("Disconnected", transitions, fsm.Callbacks{
		"after_" + evSendLogon:     func(context.Context, *fsm.Event) { st.logonSent = true },
		"after_" + evReceiveLogon:  func(context.Context, *fsm.Event) { st.logonReceived = true },
		"after_" + evSendLogout:    func(context.Context, *fsm.Event) { st.logoutSent = true },
		"after_" + evReceiveLogout: func(context.Context, *fsm.Event) { st.logoutReceived = true },
		"enter_Disconnected":       func(context.Context, *fsm.Event) { st.clear() },
		"enter_state": func(_ context.Context, e *fsm.Event) {
			if onEnter != nil {
				onEnter(parseStatus(e.Dst))
			}
		},
	})
	return st
}

// fire applies a transition. Staying in LoggedOn or LogoutPending is not an error.
func (st *State) fire(event string) error {
	err := st.machine.Event(context.Background(), event)
	var noTransition fsm.NoTransitionError
	if errors.As(err, &noTransition) {
		return nil
	}
	return err
}

func (st *State) can(event string) bool { return st.machine.Can(event) }

func (st *State) clear() {
	st.logonSent = false
	st.logonReceived = false
	st.logoutSent = false
	st.logoutReceived = false
	st.resetSent = false
	st.resetReceived = false
	st.testRequestCounter = 0
	st.resend = nil
	st.queue = btree.NewMap[int, *fix.Message](32)
}

// Status returns the current connection status.
func (st *State) Status() Status { return parseStatus(st.machine.Current()) }

func (st *State) LogonSent() bool     { return st.logonSent }
func (st *State) LogonReceived() bool { return st.logonReceived }
func (st *State) LogoutSent() bool    { return st.logoutSent }

// LoggedOn holds once a Logon has gone each way on this connection, and
// stays true while a Logout exchange is in progress.
func (st *State) LoggedOn() bool { return st.logonSent && st.logonReceived }

// Connected reports whether a transport is attached.
func (st *State) Connected() bool { return st.Status() != Disconnected }

func (st *State) logonSendNeeded() bool { return st.initiator && !st.logonSent }

func (st *State) logonTimedOut(now time.Time, timeout time.Duration) bool {
	return st.logonSent && !st.logonReceived && now.Sub(st.lastReceivedTime) >= timeout
}

func (st *State) logoutTimedOut(now time.Time, timeout time.Duration) bool {
	return st.logoutSent && now.Sub(st.logoutSentTime) >= timeout
}

func (st *State) timedOut(now time.Time) bool {
	return now.Sub(st.lastReceivedTime) >= st.heartBtInt*12/5
}

func (st *State) heartbeatNeeded(now time.Time) bool {
	return now.Sub(st.lastSentTime) >= st.heartBtInt && st.testRequestCounter == 0
}

func (st *State) testRequestNeeded(now time.Time) bool {
	limit := st.heartBtInt * time.Duration(st.testRequestCounter+1) * 6 / 5
	return now.Sub(st.lastReceivedTime) >= limit
}

func (st *State) enqueue(seq int, msg *fix.Message) { st.queue.Set(seq, msg) }

// dequeue removes and returns the queued message for seq, discarding any
// older entries that can no longer be processed.
func (st *State) dequeue(seq int) (*fix.Message, bool) {
	for {
		k, _, ok := st.queue.Min()
		if !ok || k >= seq {
			break
		}
		st.queue.Delete(k)
	}
	return st.queue.Delete(seq)
}

// QueuedSeqNums returns the sequence numbers waiting for a gap to close.
func (st *State) QueuedSeqNums() []int {
	seqs := make([]int, 0, st.queue.Len())
	st.queue.Scan(func(seq int, _ *fix.Message) bool {
		seqs = append(seqs, seq)
		return true
	})
	return seqs
}

func (st *State) resendRequested() bool { return st.resend != nil }
