// Copyright 2025 RagForge
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package chat keeps per-session conversation history and turns
// retrieved context plus that history into LLM answers.
package chat

import (
	"sort"
	"sync"
	"time"
)

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message in a conversation.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// session is a small owned record; its mutex serializes every chat
// call that shares the id, so history stays linearizable.
type session struct {
	mu    sync.Mutex
	turns []Turn
}

// Sessions is the in-process conversation store. Sessions are created
// on first use and live until cleared or process exit.
type Sessions struct {
	mu sync.RWMutex
	m  map[string]*session
}

func NewSessions() *Sessions {
	return &Sessions{m: make(map[string]*session)}
}

// get returns the record for id, creating it on first use.
func (s *Sessions) get(id string) *session {
	s.mu.RLock()
	sess, ok := s.m[id]
	s.mu.RUnlock()
	if ok {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.m[id]; ok {
		return sess
	}
	sess = &session{}
	s.m[id] = sess
	return sess
}

// History returns a copy of the session's turns. Unknown ids yield an
// empty history.
func (s *Sessions) History(id string) []Turn {
	s.mu.RLock()
	sess, ok := s.m[id]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return append([]Turn(nil), sess.turns...)
}

// Clear forgets a session and reports whether it existed.
func (s *Sessions) Clear(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.m[id]
	delete(s.m, id)
	return ok
}

// List returns active session ids in sorted order.
func (s *Sessions) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.m))
	for id := range s.m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
