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

package tool

import (
	"encoding/json"
	"testing"
)

func decodeSchema(t *testing.T, raw json.RawMessage) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("schema is not valid JSON: %v", err)
	}
	return m
}

func TestDefinitionsStableSurface(t *testing.T) {
	defs := Definitions()

	want := []string{
		NameCreateKB, NameDeleteKB, NameListKBs,
		NameUploadDocument, NameListDocuments, NameGetDocument,
		NameDeleteDocument, NameUpdateDocument,
		NameSearch, NameChat, NameAutoRoutingChat, NameClearHistory,
		NameHealth,
	}
	if len(defs) != len(want) {
		t.Fatalf("got %d tools, want %d", len(defs), len(want))
	}
	for i, d := range defs {
		if d.Name != want[i] {
			t.Errorf("tool %d: got %q, want %q", i, d.Name, want[i])
		}
		if d.Description == "" {
			t.Errorf("tool %s: empty description", d.Name)
		}
		if d.Category == "" {
			t.Errorf("tool %s: empty category", d.Name)
		}
		m := decodeSchema(t, d.InputSchema)
		if m["type"] != "object" {
			t.Errorf("tool %s: schema type %v, want object", d.Name, m["type"])
		}
		if _, present := m["$schema"]; present {
			t.Errorf("tool %s: schema leaks $schema", d.Name)
		}
	}
}

func TestSchemaRequiredFields(t *testing.T) {
	schemas := make(map[string]map[string]any)
	for _, d := range Definitions() {
		schemas[d.Name] = decodeSchema(t, d.InputSchema)
	}

	cases := []struct {
		tool     string
		required []string
	}{
		{NameCreateKB, []string{"kb_name", "description"}},
		{NameDeleteKB, []string{"kb_name"}},
		{NameUploadDocument, []string{"kb_name", "file_content", "filename"}},
		{NameUpdateDocument, []string{"kb_name", "filename", "file_content"}},
		{NameSearch, []string{"query", "kb_name"}},
		{NameChat, []string{"query"}},
		{NameAutoRoutingChat, []string{"query"}},
		{NameClearHistory, []string{"session_id"}},
	}
	for _, tc := range cases {
		raw, present := schemas[tc.tool]["required"]
		if !present {
			t.Errorf("%s: schema has no required list", tc.tool)
			continue
		}
		list, isList := raw.([]any)
		if !isList {
			t.Errorf("%s: required is %T", tc.tool, raw)
			continue
		}
		got := make(map[string]bool, len(list))
		for _, v := range list {
			got[v.(string)] = true
		}
		for _, name := range tc.required {
			if !got[name] {
				t.Errorf("%s: %q missing from required %v", tc.tool, name, list)
			}
		}
		if len(got) != len(tc.required) {
			t.Errorf("%s: required %v, want exactly %v", tc.tool, list, tc.required)
		}
	}
}

func TestSchemaPropertiesAndDefaults(t *testing.T) {
	var searchSchema map[string]any
	for _, d := range Definitions() {
		if d.Name == NameSearch {
			searchSchema = decodeSchema(t, d.InputSchema)
		}
	}

	props, isMap := searchSchema["properties"].(map[string]any)
	if !isMap {
		t.Fatalf("search schema has no properties object")
	}
	for _, name := range []string{"query", "kb_name", "top_k", "use_reranking", "include_metadata", "deduplicate"} {
		if _, present := props[name]; !present {
			t.Errorf("search schema missing property %q", name)
		}
	}

	topK := props["top_k"].(map[string]any)
	if topK["default"] != float64(5) {
		t.Errorf("top_k default = %v, want 5", topK["default"])
	}
	if topK["minimum"] != float64(1) || topK["maximum"] != float64(20) {
		t.Errorf("top_k bounds = %v..%v, want 1..20", topK["minimum"], topK["maximum"])
	}
	rerank := props["use_reranking"].(map[string]any)
	if rerank["default"] != true {
		t.Errorf("use_reranking default = %v, want true", rerank["default"])
	}
	if desc, _ := topK["description"].(string); desc == "" {
		t.Error("top_k has no description")
	}
}

func TestEmptyArgumentSchemas(t *testing.T) {
	for _, d := range Definitions() {
		if d.Name != NameListKBs && d.Name != NameHealth {
			continue
		}
		m := decodeSchema(t, d.InputSchema)
		props, isMap := m["properties"].(map[string]any)
		if !isMap {
			t.Fatalf("%s: properties missing", d.Name)
		}
		if len(props) != 0 {
			t.Errorf("%s: expected no properties, got %v", d.Name, props)
		}
		if _, present := m["required"]; present {
			t.Errorf("%s: empty schema should have no required list", d.Name)
		}
	}
}

func TestByCategory(t *testing.T) {
	grouped := ByCategory()

	if got := grouped[CategoryKBManagement]; len(got) != 3 {
		t.Errorf("kb_management = %v, want 3 tools", got)
	}
	if got := grouped[CategoryDocumentManagement]; len(got) != 5 {
		t.Errorf("document_management = %v, want 5 tools", got)
	}
	if got := grouped[CategorySearchChat]; len(got) != 4 {
		t.Errorf("search_chat = %v, want 4 tools", got)
	}
	if got := grouped[CategoryAdmin]; len(got) != 1 || got[0] != NameHealth {
		t.Errorf("admin = %v, want [health]", got)
	}
}
