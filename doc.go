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

// Package mcprag provides a multi-tenant retrieval-augmented generation
// server exposed over the Model Context Protocol and plain REST.
//
// The server manages named knowledge bases backed by a vector store,
// ingests documents in common office and text formats, and answers
// hybrid search, grounded chat, and auto-routed chat requests through
// a single tool catalog that both transports share.
//
// # Quick Start
//
// Install the server:
//
//	go install github.com/ragforge/mcprag/cmd/mcprag@latest
//
// Create a configuration:
//
//	vector_store:
//	  url: "localhost:6334"
//	embedding:
//	  endpoint: "http://localhost:8080"
//	llm:
//	  provider: "gemini"
//	  model: "gemini-2.0-flash"
//	  api_key: "${GEMINI_API_KEY}"
//
// Start it:
//
//	mcprag serve --config mcprag.yaml
//
// MCP clients connect to /mcp using streamable HTTP; everything else can
// use the REST mirror under /tools. The same thirteen tools are served
// on both surfaces with identical semantics.
//
// # Using as a Go Library
//
// Import the packages directly:
//
//	import (
//	    "github.com/ragforge/mcprag/pkg/config"
//	    "github.com/ragforge/mcprag/pkg/service"
//	    "github.com/ragforge/mcprag/pkg/tool"
//	)
//
// Build a *service.Service from a config, wrap it in a tool.Dispatcher,
// and hand the dispatcher to transport.New, or call the service methods
// directly from your own server.
package mcprag
