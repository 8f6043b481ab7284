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

package extract

import (
	"context"
	"reflect"
	"testing"

	"github.com/ragforge/mcprag/pkg/errs"
)

func TestNewVLMRequiresKey(t *testing.T) {
	_, err := NewVLM(context.Background(), "", 0)
	if !errs.Is(err, errs.InvalidArgument) {
		t.Errorf("expected invalid argument, got %v", err)
	}
}

func TestSplitReplyPages(t *testing.T) {
	reply := "## Page 1\n\nfirst page text\n\n## Page 2\n\nsecond page text"
	got := splitReply(reply)
	want := []string{
		"## Page 1\n\nfirst page text",
		"## Page 2\n\nsecond page text",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSplitReplyWithoutMarkers(t *testing.T) {
	got := splitReply("just a single block of text")
	want := []string{"## Page 1\n\njust a single block of text"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSplitReplyPreambleStaysWithFirstPage(t *testing.T) {
	got := splitReply("Here is the extracted text:\n\n## Page 1\n\nbody")
	if len(got) != 1 {
		t.Fatalf("sections: %q", got)
	}
	if got[0] != "Here is the extracted text:\n\n## Page 1\n\nbody" {
		t.Errorf("got %q", got[0])
	}
}

func TestSplitReplyIgnoresInlineMarkers(t *testing.T) {
	// A header with trailing words is content, not a page boundary.
	got := splitReply("## Page 5 appendix\ncontent")
	if len(got) != 1 {
		t.Errorf("sections: %q", got)
	}
}

func TestSplitReplyEmpty(t *testing.T) {
	if got := splitReply("   \n "); got != nil {
		t.Errorf("expected nil, got %q", got)
	}
}

func TestVLMMIMEType(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"report.pdf", "application/pdf"},
		{"scan.PNG", "image/png"},
		{"photo.jpg", "image/jpeg"},
		{"photo.jpeg", "image/jpeg"},
		{"letter.docx", ""},
	}
	for _, tc := range cases {
		if got := vlmMIMEType(tc.name); got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}
