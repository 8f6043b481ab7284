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

package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ragforge/mcprag/pkg/tool"
)

// newMCPHandler wraps the MCP server in the stateless streamable HTTP
// transport. Stateless keeps clients like Dify working: they call
// tools without holding a session.
func newMCPHandler(dispatcher *tool.Dispatcher, name, version string) http.Handler {
	return server.NewStreamableHTTPServer(
		newMCPServer(dispatcher, name, version),
		server.WithStateLess(true),
	)
}

// newMCPServer registers every tool definition with its generated
// schema. Handlers defer to the dispatcher, so MCP calls are traced
// exactly like REST calls.
func newMCPServer(dispatcher *tool.Dispatcher, name, version string) *server.MCPServer {
	s := server.NewMCPServer(name, version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	for _, def := range tool.Definitions() {
		s.AddTool(
			mcp.NewToolWithRawSchema(def.Name, def.Description, def.InputSchema),
			toolHandler(dispatcher, def.Name),
		)
	}
	return s
}

// toolHandler adapts one tool to the MCP calling convention. Dispatch
// errors surface as protocol errors (-32603); service-level failures
// stay inside the result text, matching the REST behavior.
func toolHandler(dispatcher *tool.Dispatcher, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := dispatcher.Dispatch(ctx, name, request.GetArguments())
		if err != nil {
			return nil, err
		}

		payload, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("encoding %s result: %w", name, err)
		}
		return mcp.NewToolResultText(string(payload)), nil
	}
}
