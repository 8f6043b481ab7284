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
	"fmt"

	"github.com/invopop/jsonschema"
)

// schemaFor generates a tool input schema from a Go argument struct.
//
// Struct tags drive the output:
//   - json:"name"                      parameter name
//   - jsonschema:"required"            required parameter
//   - jsonschema:"description=..."     parameter description
//   - jsonschema:"default=..."         default value
//   - jsonschema:"minimum=N,maximum=M" numeric bounds
//
// Definitions are static, so a generation failure is a programming
// error and panics at startup rather than returning an error nobody
// can handle.
func schemaFor[T any]() json.RawMessage {
	reflector := &jsonschema.Reflector{
		// Required fields come from jsonschema tags, not from the
		// absence of omitempty.
		RequiredFromJSONSchemaTags: true,

		// Inline everything; no $ref indirection.
		ExpandedStruct: true,

		// No $schema and $id keys.
		DoNotReference: true,
	}

	schema := reflector.Reflect(new(T))

	raw, err := json.Marshal(schema)
	if err != nil {
		panic(fmt.Sprintf("tool: marshal schema for %T: %v", *new(T), err))
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		panic(fmt.Sprintf("tool: decode schema for %T: %v", *new(T), err))
	}
	delete(m, "$schema")
	delete(m, "$id")

	// Clients expect a plain object schema: type, properties, required.
	trimmed := map[string]any{"type": "object"}
	if props, present := m["properties"]; present {
		trimmed["properties"] = props
	} else {
		trimmed["properties"] = map[string]any{}
	}
	if req, present := m["required"]; present {
		trimmed["required"] = req
	}

	out, err := json.Marshal(trimmed)
	if err != nil {
		panic(fmt.Sprintf("tool: marshal schema for %T: %v", *new(T), err))
	}
	return out
}
