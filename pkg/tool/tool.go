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

// Package tool defines the service's tool surface: the thirteen tool
// definitions with their generated input schemas, the dispatcher that
// decodes arguments and routes calls into the RAG service, and the
// tracer that records every invocation.
//
// Both transports (MCP and REST) go through the same dispatcher, so
// tracing, stats and error shaping are uniform no matter how a call
// arrives.
package tool

import "encoding/json"

// Tool names. These are part of the public contract and never change.
const (
	NameCreateKB        = "create_kb"
	NameDeleteKB        = "delete_kb"
	NameListKBs         = "list_kbs"
	NameUploadDocument  = "upload_document"
	NameListDocuments   = "list_documents"
	NameGetDocument     = "get_document"
	NameDeleteDocument  = "delete_document"
	NameUpdateDocument  = "update_document"
	NameSearch          = "search"
	NameChat            = "chat"
	NameAutoRoutingChat = "auto_routing_chat"
	NameClearHistory    = "clear_history"
	NameHealth          = "health"
)

// Tool categories, used for stats grouping and the service info
// endpoint.
const (
	CategoryKBManagement       = "kb_management"
	CategoryDocumentManagement = "document_management"
	CategorySearchChat         = "search_chat"
	CategoryAdmin              = "admin"
)

// Definition describes one callable tool.
type Definition struct {
	Name        string
	Description string
	Category    string
	InputSchema json.RawMessage
}

// CreateKBArgs creates a knowledge base.
type CreateKBArgs struct {
	KBName      string `json:"kb_name" jsonschema:"required,description=Knowledge base name (letters digits _ or -)"`
	Description string `json:"description" jsonschema:"required,description=What the knowledge base contains; used for semantic routing"`
	Category    string `json:"category,omitempty" jsonschema:"description=Category such as legal or finance or hr,default=general"`
}

// DeleteKBArgs deletes a knowledge base.
type DeleteKBArgs struct {
	KBName string `json:"kb_name" jsonschema:"required,description=Knowledge base to delete"`
}

// UploadDocumentArgs uploads one document into a knowledge base.
type UploadDocumentArgs struct {
	KBName      string `json:"kb_name" jsonschema:"required,description=Target knowledge base"`
	FileContent string `json:"file_content" jsonschema:"required,description=File content encoded as base64"`
	Filename    string `json:"filename" jsonschema:"required,description=File name such as document.pdf"`
	// ContentType is accepted for interface parity; the document type
	// is decided from the filename extension.
	ContentType string `json:"content_type,omitempty" jsonschema:"description=MIME type such as application/pdf"`
}

// ListDocumentsArgs lists the documents of a knowledge base.
type ListDocumentsArgs struct {
	KBName string `json:"kb_name" jsonschema:"required,description=Knowledge base name"`
	Limit  int    `json:"limit,omitempty" jsonschema:"description=Maximum documents to return,default=100,minimum=1,maximum=1000"`
	Offset int    `json:"offset,omitempty" jsonschema:"description=Pagination offset,default=0,minimum=0"`
}

// GetDocumentArgs fetches one document's details.
type GetDocumentArgs struct {
	KBName        string `json:"kb_name" jsonschema:"required,description=Knowledge base name"`
	Filename      string `json:"filename" jsonschema:"required,description=Document filename"`
	IncludeChunks bool   `json:"include_chunks,omitempty" jsonschema:"description=Include the stored chunk texts,default=false"`
}

// DeleteDocumentArgs removes one document and its chunks.
type DeleteDocumentArgs struct {
	KBName   string `json:"kb_name" jsonschema:"required,description=Knowledge base name"`
	Filename string `json:"filename" jsonschema:"required,description=Document filename to delete"`
}

// UpdateDocumentArgs replaces a stored document with new content.
type UpdateDocumentArgs struct {
	KBName      string `json:"kb_name" jsonschema:"required,description=Knowledge base name"`
	Filename    string `json:"filename" jsonschema:"required,description=Document filename"`
	FileContent string `json:"file_content" jsonschema:"required,description=New file content encoded as base64"`
}

// SearchArgs runs a hybrid search against one knowledge base.
type SearchArgs struct {
	Query           string `json:"query" jsonschema:"required,description=Search query or question"`
	KBName          string `json:"kb_name" jsonschema:"required,description=Knowledge base to search; use auto_routing_chat when unknown"`
	TopK            int    `json:"top_k,omitempty" jsonschema:"description=Number of results,default=5,minimum=1,maximum=20"`
	UseReranking    *bool  `json:"use_reranking,omitempty" jsonschema:"description=Rescore results with the cross-encoder,default=true"`
	IncludeMetadata *bool  `json:"include_metadata,omitempty" jsonschema:"description=Include source metadata for attribution,default=true"`
	Deduplicate     *bool  `json:"deduplicate,omitempty" jsonschema:"description=Drop near-duplicate passages,default=true"`
}

// ChatArgs asks a question against one knowledge base; without a
// kb_name the query is routed to the best match.
type ChatArgs struct {
	Query     string `json:"query" jsonschema:"required,description=Question or message"`
	KBName    string `json:"kb_name,omitempty" jsonschema:"description=Knowledge base; routed automatically when omitted"`
	SessionID string `json:"session_id,omitempty" jsonschema:"description=Session ID for conversation history"`
	TopK      int    `json:"top_k,omitempty" jsonschema:"description=Number of context documents,default=5"`
}

// AutoRoutingChatArgs asks a question with forced semantic routing.
type AutoRoutingChatArgs struct {
	Query     string `json:"query" jsonschema:"required,description=Question or message"`
	SessionID string `json:"session_id,omitempty" jsonschema:"description=Session ID; a new one is created when omitted"`
	TopK      int    `json:"top_k,omitempty" jsonschema:"description=Number of context documents,default=5"`
}

// ClearHistoryArgs clears one conversation session.
type ClearHistoryArgs struct {
	SessionID string `json:"session_id" jsonschema:"required,description=Session ID to clear"`
}

// emptySchema is the input schema of tools that take no arguments.
var emptySchema = json.RawMessage(`{"type":"object","properties":{}}`)

// Definitions returns the full tool surface in its stable order.
func Definitions() []Definition {
	return []Definition{
		{
			Name:        NameCreateKB,
			Description: "Create a new knowledge base for storing documents. The description is used for semantic routing, so state clearly what the KB will contain.",
			Category:    CategoryKBManagement,
			InputSchema: schemaFor[CreateKBArgs](),
		},
		{
			Name:        NameDeleteKB,
			Description: "Delete a knowledge base and every document stored in it. This cannot be undone.",
			Category:    CategoryKBManagement,
			InputSchema: schemaFor[DeleteKBArgs](),
		},
		{
			Name:        NameListKBs,
			Description: "List all knowledge bases with their descriptions, categories and document counts.",
			Category:    CategoryKBManagement,
			InputSchema: emptySchema,
		},
		{
			Name:        NameUploadDocument,
			Description: "Upload a document (PDF, DOCX, XLSX, TXT, MD) into a knowledge base. The file is extracted, chunked, embedded and stored for retrieval.",
			Category:    CategoryDocumentManagement,
			InputSchema: schemaFor[UploadDocumentArgs](),
		},
		{
			Name:        NameListDocuments,
			Description: "List the documents of a knowledge base with chunk counts and upload dates. Supports limit/offset pagination.",
			Category:    CategoryDocumentManagement,
			InputSchema: schemaFor[ListDocumentsArgs](),
		},
		{
			Name:        NameGetDocument,
			Description: "Get details of one document, optionally including every stored chunk.",
			Category:    CategoryDocumentManagement,
			InputSchema: schemaFor[GetDocumentArgs](),
		},
		{
			Name:        NameDeleteDocument,
			Description: "Delete a document and all of its chunks from a knowledge base.",
			Category:    CategoryDocumentManagement,
			InputSchema: schemaFor[DeleteDocumentArgs](),
		},
		{
			Name:        NameUpdateDocument,
			Description: "Replace a document: the old version is deleted and the new content is uploaded under the same filename.",
			Category:    CategoryDocumentManagement,
			InputSchema: schemaFor[UpdateDocumentArgs](),
		},
		{
			Name:        NameSearch,
			Description: "Search a knowledge base with hybrid retrieval (dense + BM25 fused with RRF, optional reranking) and return formatted context with source metadata, ready for answering questions.",
			Category:    CategorySearchChat,
			InputSchema: schemaFor[SearchArgs](),
		},
		{
			Name:        NameChat,
			Description: "Chat with a knowledge base using retrieval-augmented generation and per-session conversation history.",
			Category:    CategorySearchChat,
			InputSchema: schemaFor[ChatArgs](),
		},
		{
			Name:        NameAutoRoutingChat,
			Description: "Chat with automatic knowledge base selection: the query is matched against every KB description and answered from the best fit.",
			Category:    CategorySearchChat,
			InputSchema: schemaFor[AutoRoutingChatArgs](),
		},
		{
			Name:        NameClearHistory,
			Description: "Clear the conversation history of one session.",
			Category:    CategorySearchChat,
			InputSchema: schemaFor[ClearHistoryArgs](),
		},
		{
			Name:        NameHealth,
			Description: "Check service health, including the vector store and embedding backends.",
			Category:    CategoryAdmin,
			InputSchema: emptySchema,
		},
	}
}

// ByCategory groups tool names by category, preserving definition
// order inside each group.
func ByCategory() map[string][]string {
	grouped := make(map[string][]string)
	for _, d := range Definitions() {
		grouped[d.Category] = append(grouped[d.Category], d.Name)
	}
	return grouped
}
