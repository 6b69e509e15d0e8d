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
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/stephenlclarke/fixengine/fix"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExists   = errors.New("session already registered")
)

// Registry maps SessionIDs to the sessions of a process. It is owned by
// whoever creates the sessions and is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	sessions map[fix.SessionID]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[fix.SessionID]*Session)}
}

// Add registers s under its SessionID.
func (r *Registry) Add(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.id]; ok {
		return fmt.Errorf("%w: %s", ErrSessionExists, s.id)
	}
	r.sessions[s.id] = s
	return nil
}

func (r *Registry) Lookup(id fix.SessionID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *Registry) Remove(id fix.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// IDs returns the registered SessionIDs in string order.
func (r *Registry) IDs() []fix.SessionID {
	r.mu.RLock()
	ids := make([]fix.SessionID, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	slices.SortFunc(ids, func(a, b fix.SessionID) int { return strings.Compare(a.String(), b.String()) })
	return ids
}

// SendToTarget sends msg on the session id through the session's Run loop.
// A zero id is taken from the routing fields of msg's header.
func (r *Registry) SendToTarget(ctx context.Context, msg *fix.Message, id fix.SessionID) error {
	if id.IsZero() {
		id = fix.SessionIDFromHeader(&msg.Header, "")
	}
	s, ok := r.Lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s.Submit(ctx, func(s *Session) error { return s.Send(msg) })
}
