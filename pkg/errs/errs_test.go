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

package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	base := E(NotFound, "kb.get", "KB 'legal' not found", nil)
	if KindOf(base) != NotFound {
		t.Errorf("KindOf = %v, want NotFound", KindOf(base))
	}

	wrapped := fmt.Errorf("upload_document: %w", base)
	if KindOf(wrapped) != NotFound {
		t.Errorf("kind lost through wrapping: %v", KindOf(wrapped))
	}

	if KindOf(errors.New("plain")) != Internal {
		t.Error("unclassified errors must default to Internal")
	}
	if KindOf(nil) != Internal {
		t.Error("nil defaults to Internal")
	}
}

func TestErrorString(t *testing.T) {
	e := E(InvalidArgument, "create_kb", "invalid KB name", nil)
	if got := e.Error(); got != "create_kb: invalid KB name" {
		t.Errorf("Error() = %q", got)
	}

	cause := errors.New("connection refused")
	e = E(Transient, "vector.search", "", cause)
	if got := e.Error(); got != "vector.search: connection refused" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(e, cause) {
		t.Error("Unwrap chain broken")
	}
}

func TestHelpers(t *testing.T) {
	if !IsNotFound(E(NotFound, "", "missing", nil)) {
		t.Error("IsNotFound false for NotFound error")
	}
	if IsNotFound(E(RateLimited, "", "quota", nil)) {
		t.Error("IsNotFound true for RateLimited error")
	}
	if !IsRateLimited(fmt.Errorf("tier: %w", E(RateLimited, "vlm", "quota exceeded", nil))) {
		t.Error("IsRateLimited must see through wrapping")
	}
}

func TestUserMessage(t *testing.T) {
	if got := UserMessage(E(NotFound, "kb.get", "KB 'hr' not found", errors.New("grpc: not found"))); got != "KB 'hr' not found" {
		t.Errorf("UserMessage = %q", got)
	}
	if got := UserMessage(Ef(InvalidArgument, "search", "kb_name is required. Use auto_routing_chat to search without a target KB")); got == "" {
		t.Error("formatted message dropped")
	}
}
