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

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ragforge/mcprag/pkg/tool"
)

// SchemaCmd dumps the tool catalog as JSON, mirroring what MCP clients
// receive from tools/list. Output goes to stdout for redirection.
type SchemaCmd struct {
	Compact bool `help:"Compact JSON output (no indentation)."`
}

type toolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	InputSchema json.RawMessage `json:"input_schema"`
}

func (c *SchemaCmd) Run(cli *CLI) error {
	defs := tool.Definitions()
	tools := make([]toolSchema, 0, len(defs))
	for _, def := range defs {
		tools = append(tools, toolSchema{
			Name:        def.Name,
			Description: def.Description,
			Category:    def.Category,
			InputSchema: def.InputSchema,
		})
	}

	encoder := json.NewEncoder(os.Stdout)
	if !c.Compact {
		encoder.SetIndent("", "  ")
	}

	if err := encoder.Encode(map[string]any{"tools": tools}); err != nil {
		return fmt.Errorf("failed to encode tool schemas: %w", err)
	}

	return nil
}
